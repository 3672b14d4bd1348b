package nn

import (
	"math"

	"github.com/arches-ml/arches/internal/tensor"
)

// CrossEntropyLoss computes cross-entropy loss for multi-class
// classification. The cell-type classifier trains with this criterion.
//
// The implementation uses the LogSoftmax + NLLLoss decomposition:
//
//	Loss = -log_probs[target]
//	where log_probs = LogSoftmax(logits)
//
// and the log-sum-exp trick keeps it stable for large logits.
//
// Usage:
//
//	criterion := nn.NewCrossEntropyLoss(backend)
//	logits := classifier.Forward(z)        // [batch_size, num_classes]
//	loss := criterion.Forward(logits, labels) // labels: [batch_size] class codes
type CrossEntropyLoss[B tensor.Backend] struct {
	backend B
}

// NewCrossEntropyLoss creates a new cross-entropy loss function.
func NewCrossEntropyLoss[B tensor.Backend](backend B) *CrossEntropyLoss[B] {
	return &CrossEntropyLoss[B]{
		backend: backend,
	}
}

// Forward computes the mean cross-entropy over the batch.
//
// logits must be [batch_size, num_classes]; targets holds class codes
// in [0, num_classes). Returns a scalar loss with shape [1].
//
// When the backend records operations for differentiation, the loss is
// computed through it so gradients reach the logits.
func (c *CrossEntropyLoss[B]) Forward(
	logits *tensor.Tensor[float32, B],
	targets *tensor.Tensor[int64, B],
) *tensor.Tensor[float32, B] {
	// Tape-aware backends provide the op directly.
	type CrossEntropyBackend interface {
		CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor
	}

	if adBackend, ok := any(c.backend).(CrossEntropyBackend); ok {
		resultRaw := adBackend.CrossEntropy(logits.Raw(), targets.Raw())
		return tensor.New[float32, B](resultRaw, c.backend)
	}

	shape := logits.Shape()
	if len(shape) != 2 {
		panic("CrossEntropyLoss: logits must be 2D [batch_size, num_classes]")
	}

	batchSize := shape[0]
	numClasses := shape[1]

	targetsData := targets.Raw().AsInt64()
	if len(targetsData) != batchSize {
		panic("CrossEntropyLoss: targets must have shape [batch_size]")
	}

	logitsData := logits.Raw().AsFloat32()

	totalLoss := float32(0.0)

	for b := 0; b < batchSize; b++ {
		sampleLogits := logitsData[b*numClasses : (b+1)*numClasses]
		logProbs := logSoftmax(sampleLogits)

		target := int(targetsData[b])
		if target < 0 || target >= numClasses {
			panic("CrossEntropyLoss: target index out of bounds")
		}

		totalLoss += -logProbs[target]
	}

	meanLoss := totalLoss / float32(batchSize)

	lossRaw, err := tensor.NewRaw(tensor.Shape{1}, tensor.Float32, c.backend.Device())
	if err != nil {
		panic(err)
	}
	lossRaw.AsFloat32()[0] = meanLoss

	return tensor.New[float32, B](lossRaw, c.backend)
}

// Parameters returns an empty slice (loss functions have no trainable parameters).
func (c *CrossEntropyLoss[B]) Parameters() []*Parameter[B] {
	return nil
}

// logSoftmax computes log(softmax(z)) in a numerically stable way:
//
//	LogSoftmax(z)[i] = z[i] - (max(z) + log(Σ exp(z - max(z))))
func logSoftmax(z []float32) []float32 {
	n := len(z)
	result := make([]float32, n)

	maxZ := z[0]
	for i := 1; i < n; i++ {
		if z[i] > maxZ {
			maxZ = z[i]
		}
	}

	sumExp := float32(0.0)
	for i := 0; i < n; i++ {
		sumExp += float32(math.Exp(float64(z[i] - maxZ)))
	}

	logSumExp := maxZ + float32(math.Log(float64(sumExp)))

	for i := 0; i < n; i++ {
		result[i] = z[i] - logSumExp
	}

	return result
}

// softmax computes softmax(z) = exp(LogSoftmax(z)).
func softmax(z []float32) []float32 {
	logProbs := logSoftmax(z)
	result := make([]float32, len(logProbs))
	for i, lp := range logProbs {
		result[i] = float32(math.Exp(float64(lp)))
	}
	return result
}

// CrossEntropyBackward computes the gradient of CrossEntropyLoss with
// respect to the logits:
//
//	∂L/∂logits[i] = softmax(logits)[i] - (1 if i == target else 0)
//
// Gradients are averaged over the batch. Classifier fine-tuning uses
// this directly when the forward pass ran outside the tape.
func CrossEntropyBackward[B tensor.Backend](
	logits *tensor.Tensor[float32, B],
	targets *tensor.Tensor[int64, B],
	backend B,
) *tensor.Tensor[float32, B] {
	shape := logits.Shape()
	batchSize := shape[0]
	numClasses := shape[1]

	logitsData := logits.Raw().AsFloat32()
	targetsData := targets.Raw().AsInt64()

	gradRaw, err := tensor.NewRaw(shape, tensor.Float32, backend.Device())
	if err != nil {
		panic(err)
	}
	gradData := gradRaw.AsFloat32()

	for b := 0; b < batchSize; b++ {
		sampleLogits := logitsData[b*numClasses : (b+1)*numClasses]
		probs := softmax(sampleLogits)

		target := int(targetsData[b])
		for i := 0; i < numClasses; i++ {
			grad := probs[i]
			if i == target {
				grad -= 1.0
			}
			gradData[b*numClasses+i] = grad / float32(batchSize)
		}
	}

	return tensor.New[float32, B](gradRaw, backend)
}

// argmax returns the index of the maximum value in the slice.
func argmax(z []float32) int {
	maxIdx := 0
	maxVal := z[0]
	for i := 1; i < len(z); i++ {
		if z[i] > maxVal {
			maxVal = z[i]
			maxIdx = i
		}
	}
	return maxIdx
}

// Accuracy computes classification accuracy for a batch of logits
// against class-code targets. Returns a value between 0 and 1.
func Accuracy[B tensor.Backend](
	logits *tensor.Tensor[float32, B],
	targets *tensor.Tensor[int64, B],
) float32 {
	shape := logits.Shape()
	batchSize := shape[0]
	numClasses := shape[1]

	logitsData := logits.Raw().AsFloat32()
	targetsData := targets.Raw().AsInt64()

	correct := 0
	for b := 0; b < batchSize; b++ {
		sampleLogits := logitsData[b*numClasses : (b+1)*numClasses]
		if argmax(sampleLogits) == int(targetsData[b]) {
			correct++
		}
	}

	return float32(correct) / float32(batchSize)
}

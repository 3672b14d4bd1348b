package ops

import (
	"fmt"
	"math"

	"github.com/arches-ml/arches/internal/tensor"
)

// CrossEntropyOp represents the fused softmax + cross-entropy loss.
//
// Forward:
//
//	Loss = mean(-log_softmax(logits)[targets])
//
// where log_softmax uses the log-sum-exp trick for stability.
//
// Backward:
//
//	∂L/∂logits = (softmax(logits) - y_one_hot) / batch_size
//
// Fusing the two keeps the gradient a single subtraction, which is why the
// classifier head trains against this op rather than Softmax followed by Log.
//
// Shapes:
//   - logits: [batch_size, num_classes]
//   - targets: [batch_size] class codes (int32 or int64), not differentiated
//   - output: [1] mean loss
type CrossEntropyOp struct {
	logits  *tensor.RawTensor
	targets *tensor.RawTensor
	output  *tensor.RawTensor
}

// NewCrossEntropyOp creates a new CrossEntropyOp.
func NewCrossEntropyOp(logits, targets, output *tensor.RawTensor) *CrossEntropyOp {
	return &CrossEntropyOp{
		logits:  logits,
		targets: targets,
		output:  output,
	}
}

// Inputs returns the differentiable inputs [logits].
func (op *CrossEntropyOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.logits}
}

// Output returns the scalar loss tensor.
func (op *CrossEntropyOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes the logits gradient (softmax - one_hot) / batch_size,
// scaled by the upstream gradient.
func (op *CrossEntropyOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	shape := op.logits.Shape()
	if len(shape) != 2 {
		panic("CrossEntropyOp: logits must be 2D [batch_size, num_classes]")
	}
	batchSize := shape[0]
	numClasses := shape[1]

	logitsGrad, err := tensor.NewRaw(shape, op.logits.DType(), op.logits.Device())
	if err != nil {
		panic(err)
	}

	targets := targetCodes(op.targets)

	switch op.logits.DType() {
	case tensor.Float32:
		logitsData := op.logits.AsFloat32()
		gradData := logitsGrad.AsFloat32()
		gradScale := outputGrad.AsFloat32()[0]

		for b := 0; b < batchSize; b++ {
			probs := stableSoftmax32(logitsData[b*numClasses : (b+1)*numClasses])
			target := int(targets[b])
			for i := 0; i < numClasses; i++ {
				g := probs[i]
				if i == target {
					g -= 1.0
				}
				gradData[b*numClasses+i] = gradScale * g / float32(batchSize)
			}
		}

	default:
		panic(fmt.Sprintf("CrossEntropyOp: unsupported logits dtype %s", op.logits.DType()))
	}

	return []*tensor.RawTensor{logitsGrad}
}

// CrossEntropyForward computes the mean cross-entropy loss.
//
// This is the forward half of CrossEntropyOp, usable outside autodiff.
func CrossEntropyForward(logits, targets *tensor.RawTensor, device tensor.Device) *tensor.RawTensor {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic("CrossEntropyForward: logits must be 2D [batch_size, num_classes]")
	}
	if len(targets.Shape()) != 1 || targets.Shape()[0] != shape[0] {
		panic("CrossEntropyForward: targets must be [batch_size]")
	}

	batchSize := shape[0]
	numClasses := shape[1]

	output, err := tensor.NewRaw(tensor.Shape{1}, logits.DType(), device)
	if err != nil {
		panic(err)
	}

	codes := targetCodes(targets)

	switch logits.DType() {
	case tensor.Float32:
		logitsData := logits.AsFloat32()

		var totalLoss float64
		for b := 0; b < batchSize; b++ {
			sample := logitsData[b*numClasses : (b+1)*numClasses]
			target := int(codes[b])
			if target < 0 || target >= numClasses {
				panic(fmt.Sprintf("CrossEntropyForward: target %d out of range [0, %d)", target, numClasses))
			}

			// -log_softmax(sample)[target] via log-sum-exp
			maxVal := sample[0]
			for _, v := range sample[1:] {
				if v > maxVal {
					maxVal = v
				}
			}
			var sumExp float64
			for _, v := range sample {
				sumExp += math.Exp(float64(v - maxVal))
			}
			logSumExp := float64(maxVal) + math.Log(sumExp)
			totalLoss += logSumExp - float64(sample[target])
		}

		output.AsFloat32()[0] = float32(totalLoss / float64(batchSize))

	default:
		panic(fmt.Sprintf("CrossEntropyForward: unsupported logits dtype %s", logits.DType()))
	}

	return output
}

// targetCodes reads class codes from an int32 or int64 tensor.
func targetCodes(targets *tensor.RawTensor) []int64 {
	switch targets.DType() {
	case tensor.Int64:
		return targets.AsInt64()
	case tensor.Int32:
		data := targets.AsInt32()
		codes := make([]int64, len(data))
		for i, v := range data {
			codes[i] = int64(v)
		}
		return codes
	default:
		panic(fmt.Sprintf("targetCodes: expected integer targets, got %s", targets.DType()))
	}
}

// stableSoftmax32 computes softmax for one sample with max-shifting.
func stableSoftmax32(logits []float32) []float32 {
	n := len(logits)
	probs := make([]float32, n)

	maxVal := logits[0]
	for _, v := range logits[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	var sumExp float64
	for i, v := range logits {
		e := math.Exp(float64(v - maxVal))
		probs[i] = float32(e)
		sumExp += e
	}

	inv := float32(1.0 / sumExp)
	for i := range probs {
		probs[i] *= inv
	}
	return probs
}

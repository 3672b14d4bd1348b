package nn

import (
	"fmt"

	"github.com/arches-ml/arches/internal/tensor"
)

// BatchNorm applies Batch Normalization over a [batch, features] input.
//
// In training mode the statistics come from the current batch and the
// running estimates are updated with momentum; in evaluation mode the
// running estimates are used. The defaults (momentum 0.01, eps 0.001)
// are the configuration of the fully connected blocks in the
// variational models this toolkit loads.
//
// The adaptation loader may call FreezeStats to stop the running
// estimates from drifting while fine-tuning on a new dataset; the
// affine transform still applies, its parameters frozen separately.
type BatchNorm[B tensor.Backend] struct {
	Gamma *Parameter[B] // weight [dim]
	Beta  *Parameter[B] // bias [dim]

	runningMean       *tensor.Tensor[float32, B] // [dim]
	runningVar        *tensor.Tensor[float32, B] // [dim]
	numBatchesTracked *tensor.RawTensor          // [1] int64

	Epsilon  float32
	Momentum float32

	dim               int
	training          bool
	trackRunningStats bool
	backend           B
}

// NewBatchNorm creates a BatchNorm layer for the given feature count.
//
// Running mean starts at zero, running variance at one. The layer
// starts in training mode with running-statistics tracking on.
func NewBatchNorm[B tensor.Backend](dim int, backend B) *BatchNorm[B] {
	gamma := tensor.Ones[float32](tensor.Shape{dim}, backend)
	beta := tensor.Zeros[float32](tensor.Shape{dim}, backend)

	tracked, err := tensor.NewRaw(tensor.Shape{1}, tensor.Int64, backend.Device())
	if err != nil {
		panic(err)
	}

	return &BatchNorm[B]{
		Gamma:             NewParameter("weight", gamma),
		Beta:              NewParameter("bias", beta),
		runningMean:       tensor.Zeros[float32](tensor.Shape{dim}, backend),
		runningVar:        tensor.Ones[float32](tensor.Shape{dim}, backend),
		numBatchesTracked: tracked,
		Epsilon:           1e-3,
		Momentum:          0.01,
		dim:               dim,
		training:          true,
		trackRunningStats: true,
		backend:           backend,
	}
}

// SetTraining switches between batch statistics (training) and running
// statistics (evaluation).
func (bn *BatchNorm[B]) SetTraining(training bool) {
	bn.training = training
}

// FreezeStats stops updates to the running mean and variance. The
// estimates loaded from a pretrained artifact stay as they are.
func (bn *BatchNorm[B]) FreezeStats() {
	bn.trackRunningStats = false
}

// TracksRunningStats reports whether running statistics still update
// during training.
func (bn *BatchNorm[B]) TracksRunningStats() bool {
	return bn.trackRunningStats
}

// Forward normalizes the input.
//
// Input shape: [batch, dim]. Output shape: [batch, dim].
func (bn *BatchNorm[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 2 || shape[1] != bn.dim {
		panic(fmt.Sprintf("BatchNorm.Forward: expected [batch, %d] input, got shape %v", bn.dim, shape))
	}
	batch := shape[0]

	var xNorm *tensor.Tensor[float32, B]
	if bn.training {
		batchMean := x.MeanDim(0, true) // [1, dim]

		releaseX := x.Raw().ForceNonUnique()
		centered := x.Sub(batchMean)
		releaseX()

		releaseC := centered.Raw().ForceNonUnique()
		squared := centered.Mul(centered)
		biasedVar := squared.MeanDim(0, true) // [1, dim]
		std := biasedVar.AddScalar(bn.Epsilon).Sqrt()
		xNorm = centered.Div(std)
		releaseC()

		if bn.trackRunningStats {
			bn.updateRunningStats(batchMean.Data(), biasedVar.Data(), batch)
		}
	} else {
		meanRow := bn.runningMean.Reshape(1, bn.dim)
		stdRow := bn.runningVar.AddScalar(bn.Epsilon).Sqrt().Reshape(1, bn.dim)

		releaseX := x.Raw().ForceNonUnique()
		xNorm = x.Sub(meanRow).Div(stdRow)
		releaseX()
	}

	gamma := bn.Gamma.Tensor().Reshape(1, bn.dim)
	beta := bn.Beta.Tensor().Reshape(1, bn.dim)
	return xNorm.Mul(gamma).Add(beta)
}

// updateRunningStats folds batch statistics into the running estimates.
// The variance estimate is unbiased (n-1 denominator), matching how the
// pretrained artifacts were produced.
func (bn *BatchNorm[B]) updateRunningStats(batchMean, biasedVar []float32, batch int) {
	correction := float32(1)
	if batch > 1 {
		correction = float32(batch) / float32(batch-1)
	}

	m := bn.Momentum
	rm := bn.runningMean.Data()
	rv := bn.runningVar.Data()
	for i := 0; i < bn.dim; i++ {
		rm[i] = (1-m)*rm[i] + m*batchMean[i]
		rv[i] = (1-m)*rv[i] + m*biasedVar[i]*correction
	}
	bn.numBatchesTracked.AsInt64()[0]++
}

// RunningMean returns the running mean buffer.
func (bn *BatchNorm[B]) RunningMean() *tensor.Tensor[float32, B] {
	return bn.runningMean
}

// RunningVar returns the running variance buffer.
func (bn *BatchNorm[B]) RunningVar() *tensor.Tensor[float32, B] {
	return bn.runningVar
}

// Parameters returns the affine parameters.
func (bn *BatchNorm[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.Gamma, bn.Beta}
}

// StateDict returns parameters and running-statistics buffers.
func (bn *BatchNorm[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight":              bn.Gamma.Tensor().Raw(),
		"bias":                bn.Beta.Tensor().Raw(),
		"running_mean":        bn.runningMean.Raw(),
		"running_var":         bn.runningVar.Raw(),
		"num_batches_tracked": bn.numBatchesTracked,
	}
}

// LoadStateDict loads parameters and buffers. num_batches_tracked is
// optional; artifacts that never tracked it load with a zero count.
func (bn *BatchNorm[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	float32Entries := map[string][]float32{
		"weight":       bn.Gamma.Tensor().Data(),
		"bias":         bn.Beta.Tensor().Data(),
		"running_mean": bn.runningMean.Data(),
		"running_var":  bn.runningVar.Data(),
	}
	for name, dst := range float32Entries {
		raw, ok := stateDict[name]
		if !ok {
			return fmt.Errorf("missing %s in state dict", name)
		}
		if !raw.Shape().Equal(tensor.Shape{bn.dim}) {
			return fmt.Errorf("%s shape mismatch: expected [%d], got %v", name, bn.dim, raw.Shape())
		}
		if raw.DType() != tensor.Float32 {
			return fmt.Errorf("%s dtype mismatch: expected float32, got %v", name, raw.DType())
		}
		copy(dst, raw.AsFloat32())
	}

	if raw, ok := stateDict["num_batches_tracked"]; ok {
		if raw.DType() != tensor.Int64 || raw.NumElements() != 1 {
			return fmt.Errorf("num_batches_tracked must be a single int64, got %s %v", raw.DType(), raw.Shape())
		}
		bn.numBatchesTracked.AsInt64()[0] = raw.AsInt64()[0]
	}

	return nil
}

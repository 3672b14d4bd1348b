package ops

import (
	"fmt"

	"github.com/arches-ml/arches/internal/tensor"
)

// SoftmaxOp represents the softmax operation along a dimension.
//
// Forward (per slice along dim):
//
//	softmax(x)_i = exp(x_i - max(x)) / Σ_j exp(x_j - max(x))
//
// Backward:
//
//	The Jacobian contracts to, per slice:
//	∂L/∂x_j = s_j * (∂L/∂s_j - Σ_i (∂L/∂s_i * s_i))
//
// The cached output s is all the backward pass needs. Cell-type posteriors
// from the classifier head and the mean head of log-normal latents
// differentiate through here.
type SoftmaxOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor // cached softmax values
	dim    int               // normalized (non-negative) dimension
}

// NewSoftmaxOp creates a new SoftmaxOp. dim may be negative.
func NewSoftmaxOp(input, output *tensor.RawTensor, dim int) *SoftmaxOp {
	if dim < 0 {
		dim += len(input.Shape())
	}
	return &SoftmaxOp{
		input:  input,
		output: output,
		dim:    dim,
	}
}

// Backward computes the input gradient slice by slice along dim.
func (op *SoftmaxOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	shape := op.input.Shape()

	inputGrad, err := tensor.NewRaw(shape, op.input.DType(), op.input.Device())
	if err != nil {
		panic(err)
	}

	outerSize := 1
	for i := 0; i < op.dim; i++ {
		outerSize *= shape[i]
	}
	dimSize := shape[op.dim]
	innerSize := 1
	for i := op.dim + 1; i < len(shape); i++ {
		innerSize *= shape[i]
	}

	switch op.input.DType() {
	case tensor.Float32:
		softmaxBackwardFloat32(inputGrad.AsFloat32(), outputGrad.AsFloat32(), op.output.AsFloat32(),
			outerSize, dimSize, innerSize)
	case tensor.Float64:
		softmaxBackwardFloat64(inputGrad.AsFloat64(), outputGrad.AsFloat64(), op.output.AsFloat64(),
			outerSize, dimSize, innerSize)
	default:
		panic(fmt.Sprintf("SoftmaxOp: unsupported dtype %s", op.input.DType()))
	}

	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the input tensors [x].
func (op *SoftmaxOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor softmax(x, dim).
func (op *SoftmaxOp) Output() *tensor.RawTensor {
	return op.output
}

func softmaxBackwardFloat32(dst, grad, s []float32, outerSize, dimSize, innerSize int) {
	for outer := 0; outer < outerSize; outer++ {
		for inner := 0; inner < innerSize; inner++ {
			base := outer*dimSize*innerSize + inner

			var dot float64
			for d := 0; d < dimSize; d++ {
				idx := base + d*innerSize
				dot += float64(grad[idx]) * float64(s[idx])
			}

			for d := 0; d < dimSize; d++ {
				idx := base + d*innerSize
				dst[idx] = s[idx] * (grad[idx] - float32(dot))
			}
		}
	}
}

func softmaxBackwardFloat64(dst, grad, s []float64, outerSize, dimSize, innerSize int) {
	for outer := 0; outer < outerSize; outer++ {
		for inner := 0; inner < innerSize; inner++ {
			base := outer*dimSize*innerSize + inner

			var dot float64
			for d := 0; d < dimSize; d++ {
				idx := base + d*innerSize
				dot += grad[idx] * s[idx]
			}

			for d := 0; d < dimSize; d++ {
				idx := base + d*innerSize
				dst[idx] = s[idx] * (grad[idx] - dot)
			}
		}
	}
}

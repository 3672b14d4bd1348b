package ops

import (
	"fmt"

	"github.com/arches-ml/arches/internal/tensor"
)

// SumOp represents a full reduction: output = sum(x), shape [1].
//
// Backward:
//
//	Every element contributed with weight 1, so grad_x is the scalar output
//	gradient broadcast over the input shape.
//
// Minibatch losses collapse through here before the optimizer steps.
type SumOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSumOp creates a new SumOp.
func NewSumOp(input, output *tensor.RawTensor) *SumOp {
	return &SumOp{input: input, output: output}
}

// Backward fills the input shape with the scalar output gradient.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	var v float64
	switch outputGrad.DType() {
	case tensor.Float32:
		v = float64(outputGrad.AsFloat32()[0])
	case tensor.Float64:
		v = outputGrad.AsFloat64()[0]
	default:
		panic(fmt.Sprintf("SumOp: unsupported dtype %s", outputGrad.DType()))
	}

	inputGrad := createScalar(op.input.Shape(), op.input.DType(), v, backend.Device())
	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the input tensors [x].
func (op *SumOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor sum(x).
func (op *SumOp) Output() *tensor.RawTensor {
	return op.output
}

// SumDimOp represents a sum along one dimension: output = sum(x, dim).
//
// Backward:
//
//	grad_x = expand(grad_y, x.shape)
//
// With keepDim=false the reduced axis is first restored as size 1 so the
// expansion lines up.
type SumDimOp struct {
	input   *tensor.RawTensor
	output  *tensor.RawTensor
	dim     int
	keepDim bool
}

// NewSumDimOp creates a new SumDimOp. dim may be negative.
func NewSumDimOp(input, output *tensor.RawTensor, dim int, keepDim bool) *SumDimOp {
	if dim < 0 {
		dim += len(input.Shape())
	}
	return &SumDimOp{
		input:   input,
		output:  output,
		dim:     dim,
		keepDim: keepDim,
	}
}

// Backward broadcasts the output gradient back over the reduced dimension.
func (op *SumDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grad := restoreReducedDim(outputGrad, op.input.Shape(), op.dim, op.keepDim, backend)
	inputGrad := backend.Expand(grad, op.input.Shape())
	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the input tensors [x].
func (op *SumDimOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor sum(x, dim).
func (op *SumDimOp) Output() *tensor.RawTensor {
	return op.output
}

// MeanDimOp represents a mean along one dimension: output = mean(x, dim).
//
// Backward:
//
//	grad_x = expand(grad_y, x.shape) / size[dim]
type MeanDimOp struct {
	input   *tensor.RawTensor
	output  *tensor.RawTensor
	dim     int
	keepDim bool
	dimSize int
}

// NewMeanDimOp creates a new MeanDimOp. dim may be negative.
func NewMeanDimOp(input, output *tensor.RawTensor, dim int, keepDim bool) *MeanDimOp {
	if dim < 0 {
		dim += len(input.Shape())
	}
	return &MeanDimOp{
		input:   input,
		output:  output,
		dim:     dim,
		keepDim: keepDim,
		dimSize: input.Shape()[dim],
	}
}

// Backward broadcasts the output gradient and divides by the reduced size.
func (op *MeanDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grad := restoreReducedDim(outputGrad, op.input.Shape(), op.dim, op.keepDim, backend)
	expanded := backend.Expand(grad, op.input.Shape())
	inputGrad := backend.DivScalar(expanded, dtypeScalar(expanded.DType(), float64(op.dimSize)))
	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the input tensors [x].
func (op *MeanDimOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor mean(x, dim).
func (op *MeanDimOp) Output() *tensor.RawTensor {
	return op.output
}

// restoreReducedDim reshapes grad so the reduced dimension reappears as
// size 1, making it broadcastable against the original input shape.
func restoreReducedDim(grad *tensor.RawTensor, inputShape tensor.Shape, dim int, keepDim bool, backend tensor.Backend) *tensor.RawTensor {
	if keepDim {
		return grad
	}
	restored := inputShape.Clone()
	restored[dim] = 1
	return backend.Reshape(grad, restored)
}

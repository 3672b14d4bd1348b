package ops

import "github.com/arches-ml/arches/internal/tensor"

// Scalar operations shift or scale a tensor by a Go constant. The constant is
// not a graph input, so only the tensor side receives a gradient. Variance
// floors (qv + 1e-4) and the log1p shift on raw counts go through these.

// AddScalarOp represents output = x + c.
//
// Backward: d(x+c)/dx = 1, so grad_x = outputGrad.
type AddScalarOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewAddScalarOp creates a new AddScalarOp.
func NewAddScalarOp(input, output *tensor.RawTensor) *AddScalarOp {
	return &AddScalarOp{input: input, output: output}
}

// Backward passes the gradient through unchanged.
func (op *AddScalarOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad.Clone()}
}

// Inputs returns the input tensors [x].
func (op *AddScalarOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor x + c.
func (op *AddScalarOp) Output() *tensor.RawTensor {
	return op.output
}

// SubScalarOp represents output = x - c.
//
// Backward: d(x-c)/dx = 1, so grad_x = outputGrad.
type SubScalarOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSubScalarOp creates a new SubScalarOp.
func NewSubScalarOp(input, output *tensor.RawTensor) *SubScalarOp {
	return &SubScalarOp{input: input, output: output}
}

// Backward passes the gradient through unchanged.
func (op *SubScalarOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad.Clone()}
}

// Inputs returns the input tensors [x].
func (op *SubScalarOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor x - c.
func (op *SubScalarOp) Output() *tensor.RawTensor {
	return op.output
}

// MulScalarOp represents output = x * c.
//
// Backward: d(x*c)/dx = c, so grad_x = outputGrad * c.
type MulScalarOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	scalar float64
}

// NewMulScalarOp creates a new MulScalarOp.
func NewMulScalarOp(input, output *tensor.RawTensor, scalar float64) *MulScalarOp {
	return &MulScalarOp{input: input, output: output, scalar: scalar}
}

// Backward scales the gradient by the constant.
func (op *MulScalarOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grad := backend.MulScalar(outputGrad, dtypeScalar(outputGrad.DType(), op.scalar))
	return []*tensor.RawTensor{grad}
}

// Inputs returns the input tensors [x].
func (op *MulScalarOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor x * c.
func (op *MulScalarOp) Output() *tensor.RawTensor {
	return op.output
}

// DivScalarOp represents output = x / c.
//
// Backward: d(x/c)/dx = 1/c, so grad_x = outputGrad / c.
type DivScalarOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	scalar float64
}

// NewDivScalarOp creates a new DivScalarOp.
func NewDivScalarOp(input, output *tensor.RawTensor, scalar float64) *DivScalarOp {
	return &DivScalarOp{input: input, output: output, scalar: scalar}
}

// Backward divides the gradient by the constant.
func (op *DivScalarOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grad := backend.DivScalar(outputGrad, dtypeScalar(outputGrad.DType(), op.scalar))
	return []*tensor.RawTensor{grad}
}

// Inputs returns the input tensors [x].
func (op *DivScalarOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor x / c.
func (op *DivScalarOp) Output() *tensor.RawTensor {
	return op.output
}

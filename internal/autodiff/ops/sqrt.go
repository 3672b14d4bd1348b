package ops

import "github.com/arches-ml/arches/internal/tensor"

// SqrtOp represents the element-wise square root: y = sqrt(x).
//
// Backward pass:
//
//	dy/dx = 1 / (2 * sqrt(x)) = 0.5 / y
//
// so grad_input = outputGrad * 0.5 / output.
type SqrtOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSqrtOp creates a new SqrtOp.
func NewSqrtOp(input, output *tensor.RawTensor) *SqrtOp {
	return &SqrtOp{
		input:  input,
		output: output,
	}
}

// Backward computes grad_input = outputGrad * 0.5 / sqrt(x).
func (op *SqrtOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	halved := backend.MulScalar(outputGrad, dtypeScalar(outputGrad.DType(), 0.5))
	inputGrad := backend.Div(halved, op.output)
	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the input tensors [x].
func (op *SqrtOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor sqrt(x).
func (op *SqrtOp) Output() *tensor.RawTensor {
	return op.output
}

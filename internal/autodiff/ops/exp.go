package ops

import "github.com/arches-ml/arches/internal/tensor"

// ExpOp represents the element-wise exponential: y = exp(x).
//
// Backward pass:
//
//	dy/dx = exp(x) = y
//
// so grad_input = outputGrad * output, reusing the cached forward result.
// The variance head (qv = exp(raw)) and the rate link (rate = exp(library)
// * scale) differentiate through here.
type ExpOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewExpOp creates a new ExpOp.
func NewExpOp(input, output *tensor.RawTensor) *ExpOp {
	return &ExpOp{
		input:  input,
		output: output,
	}
}

// Backward computes grad_input = outputGrad * exp(x).
func (op *ExpOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.Mul(outputGrad, op.output)
	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the input tensors [x].
func (op *ExpOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor exp(x).
func (op *ExpOp) Output() *tensor.RawTensor {
	return op.output
}

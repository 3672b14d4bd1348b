package ops

import "github.com/arches-ml/arches/internal/tensor"

// ExpandOp represents broadcasting a tensor to a larger shape.
//
// Forward: output = Expand(input, shape), size-1 dimensions replicated.
//
// Backward:
//
//	Replicated elements each receive gradient, so grad_input sums the
//	output gradient back over the expanded dimensions.
type ExpandOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewExpandOp creates a new ExpandOp.
func NewExpandOp(input, output *tensor.RawTensor) *ExpandOp {
	return &ExpandOp{
		input:  input,
		output: output,
	}
}

// Backward reduces the output gradient to the input shape.
func (op *ExpandOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := reduceBroadcast(outputGrad, op.input.Shape(), backend)
	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the input tensors.
func (op *ExpandOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *ExpandOp) Output() *tensor.RawTensor {
	return op.output
}

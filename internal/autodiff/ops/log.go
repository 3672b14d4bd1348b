package ops

import "github.com/arches-ml/arches/internal/tensor"

// LogOp represents the element-wise natural logarithm: y = log(x).
//
// Backward pass:
//
//	dy/dx = 1 / x
//
// so grad_input = outputGrad / x. Inputs must be positive; likelihood terms
// that can approach zero add a floor before taking the log.
type LogOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewLogOp creates a new LogOp.
func NewLogOp(input, output *tensor.RawTensor) *LogOp {
	return &LogOp{
		input:  input,
		output: output,
	}
}

// Backward computes grad_input = outputGrad / x.
func (op *LogOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.Div(outputGrad, op.input)
	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the input tensors [x].
func (op *LogOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor log(x).
func (op *LogOp) Output() *tensor.RawTensor {
	return op.output
}

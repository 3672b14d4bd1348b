package ops

import "github.com/arches-ml/arches/internal/tensor"

// SigmoidOp represents the sigmoid activation: σ(x) = 1 / (1 + exp(-x)).
//
// Backward pass:
//
//	dσ/dx = σ(x) * (1 - σ(x))
//
// The output σ(x) is cached from the forward pass, so the derivative needs
// no extra transcendental evaluation.
type SigmoidOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSigmoidOp creates a new SigmoidOp.
func NewSigmoidOp(input, output *tensor.RawTensor) *SigmoidOp {
	return &SigmoidOp{
		input:  input,
		output: output,
	}
}

// Backward computes grad_input = outputGrad * σ(x) * (1 - σ(x)).
func (op *SigmoidOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	output := op.output

	ones := createScalar(output.Shape(), output.DType(), 1.0, backend.Device())
	oneMinus := backend.Sub(ones, output)
	derivative := backend.Mul(output, oneMinus)
	inputGrad := backend.Mul(outputGrad, derivative)

	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the input tensors [x].
func (op *SigmoidOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor σ(x).
func (op *SigmoidOp) Output() *tensor.RawTensor {
	return op.output
}

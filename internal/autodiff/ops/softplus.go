package ops

import "github.com/arches-ml/arches/internal/tensor"

// SoftplusOp represents the softplus activation: y = log(1 + exp(x)).
//
// Backward pass:
//
//	dy/dx = exp(x) / (1 + exp(x)) = σ(x)
//
// so grad_input = outputGrad * sigmoid(x). The decoder's scale head and the
// zero-inflation mixing logits both differentiate through here.
type SoftplusOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSoftplusOp creates a new SoftplusOp.
func NewSoftplusOp(input, output *tensor.RawTensor) *SoftplusOp {
	return &SoftplusOp{
		input:  input,
		output: output,
	}
}

// Backward computes grad_input = outputGrad * σ(x).
func (op *SoftplusOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	sig := backend.Sigmoid(op.input)
	inputGrad := backend.Mul(outputGrad, sig)
	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the input tensors [x].
func (op *SoftplusOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor log(1 + exp(x)).
func (op *SoftplusOp) Output() *tensor.RawTensor {
	return op.output
}

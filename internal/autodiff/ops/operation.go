// Package ops defines the differentiable operations recorded on the gradient
// tape during a forward pass.
//
// Each operation implements the Operation interface: the forward result is
// computed by the wrapped backend, and Backward maps the output gradient to
// input gradients via the chain rule.
//
// The op set is the closure of what the variational models evaluate: the
// arithmetic and matmul of affine layers, the activations and link functions
// of the likelihood heads (ReLU, sigmoid, softplus, exp, log), the reductions
// that assemble per-cell losses, and the concat that injects one-hot
// covariates into expression features.
package ops

import "github.com/arches-ml/arches/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
// Each operation records its inputs and output during the forward pass,
// and computes input gradients during the backward pass.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns a slice of gradients corresponding to each input tensor.
	//
	// Example for AddOp:
	//   inputs: [a, b]
	//   outputGrad: dL/d(a+b)
	//   returns: [dL/d(a+b), dL/d(a+b)] (gradient flows equally to both inputs)
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}

// Package optim implements optimization algorithms for training models.
//
// This package provides:
//   - Optimizer interface: base interface for all optimizers
//   - SGD: stochastic gradient descent with momentum
//   - Adam: adaptive moment estimation
//
// Both optimizers honor the freeze state carried on nn.Parameter:
// fully frozen parameters are skipped, and parameters with a column
// mask only receive updates in their trainable trailing columns. This
// is what keeps reference weights intact while a query fine-tune
// trains the appended covariate columns.
//
// Example usage:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{
//	    LR: 0.001,
//	}, backend)
//
//	for epoch := range epochs {
//	    backend.Tape().StartRecording()
//	    loss := lossFunc.Forward(model.Forward(input), targets)
//	    grads := autodiff.Backward(loss, backend)
//
//	    optimizer.Step(grads)
//	    optimizer.ZeroGrad()
//	}
package optim

import (
	"github.com/arches-ml/arches/internal/nn"
	"github.com/arches-ml/arches/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
//
// Optimizers update model parameters based on computed gradients to
// minimize the loss function during training.
type Optimizer interface {
	// Step applies gradient updates to all parameters.
	//
	// Takes the gradient map produced by autodiff.Backward and updates
	// parameters in place. Parameters without a gradient and frozen
	// parameters are skipped.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears all parameter gradients.
	//
	// Call before each backward pass to prevent gradient accumulation
	// across iterations.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float32 // Learning rate
}

// getGradient retrieves the gradient for a parameter.
//
// Returns nil if no gradient is found (parameter wasn't part of the
// computation graph).
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	return grads[param.Tensor().Raw()]
}

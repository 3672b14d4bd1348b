// Package nn implements the neural network modules of the arches toolkit.
//
// The building blocks mirror the layer zoo of single-cell variational
// models: fully connected blocks with categorical covariate injection,
// batch/layer normalization, dropout, and the encoder/decoder pairs
// assembled by the vae package. Modules expose their parameters both as
// a flat list (for optimizers) and as a named state dictionary (for
// serialization and for the adaptation loader, which reconciles and
// freezes parameters by dotted path).
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"strings"

	"github.com/arches-ml/arches/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Modules can be composed to build deeper architectures:
//
//	model := nn.NewSequential[B](
//	    nn.NewLinear(nGenes, nHidden, backend),
//	    nn.NewReLU[B](),
//	    nn.NewLinear(nHidden, nLatent, backend),
//	)
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	//
	// The input tensor should have the appropriate shape for this module.
	// For example, Linear expects [batch_size, in_features].
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module,
	// including nested module parameters. Returns an empty slice for
	// modules without parameters (e.g. activation functions).
	Parameters() []*Parameter[B]

	// StateDict returns the module's parameters and persistent buffers
	// keyed by dotted path (e.g. "fc_layers.0.linear.weight"). The
	// returned raw tensors alias the module's storage.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict copies values from a state dictionary into the
	// module. Shapes and dtypes must match exactly; reconciling grown
	// shapes is the adaptation loader's job, not the module's.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// StateLoader loads parameter values from a state dictionary. It is
// the part of Module needed when routing prefixed state-dict entries
// to submodules.
type StateLoader interface {
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// MergeStateDict copies every entry of src into dst with the given key
// prefix. Composite modules use it to assemble their state dictionary
// from their submodules'.
func MergeStateDict(dst map[string]*tensor.RawTensor, prefix string, src map[string]*tensor.RawTensor) {
	for name, raw := range src {
		dst[prefix+name] = raw
	}
}

// LoadSubmodule routes the entries of stateDict under prefix to
// target, with the prefix stripped. A prefix with no entries is
// skipped, so partial dictionaries load leniently; callers that need
// full coverage must check it themselves.
func LoadSubmodule(stateDict map[string]*tensor.RawTensor, prefix string, target StateLoader) error {
	sub := make(map[string]*tensor.RawTensor)
	for key, raw := range stateDict {
		if strings.HasPrefix(key, prefix) {
			sub[strings.TrimPrefix(key, prefix)] = raw
		}
	}
	if len(sub) == 0 {
		return nil
	}
	return target.LoadStateDict(sub)
}

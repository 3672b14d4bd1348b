// Copyright 2025 Arches ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/arches-ml/arches/internal/nn"
	"github.com/arches-ml/arches/internal/serialization"
	"github.com/arches-ml/arches/tensor"
)

// Module is the base interface for all neural network components.
//
// Every NN module must implement:
//   - Forward: Compute output from input
//   - Parameters: Return all trainable parameters
//   - StateDict: Export parameters for serialization
//   - LoadStateDict: Import parameters from serialization
//
// Modules can be composed to build complex architectures:
//
//	model := nn.NewSequential(
//	    nn.NewLinear(784, 128, backend),
//	    nn.NewReLU[*cpu.CPUBackend](),
//	    nn.NewLinear(128, 10, backend),
//	)
//
// The composite models of this toolkit (FCBlock, Encoder, Decoder, the
// variational autoencoder) are not Modules: their forward signatures
// take categorical covariates alongside the input. They still satisfy
// StatefulModel, so persistence treats them uniformly.
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] = nn.Module[B]

// StateLoader is the piece of Module that deserialization needs.
type StateLoader = nn.StateLoader

// MergeStateDict copies src's entries into dst under a key prefix.
// Composite models build their state dictionaries this way:
//
//	sd := make(map[string]*tensor.RawTensor)
//	nn.MergeStateDict(sd, "z_encoder.", encoder.StateDict())
func MergeStateDict(dst map[string]*tensor.RawTensor, prefix string, src map[string]*tensor.RawTensor) {
	nn.MergeStateDict(dst, prefix, src)
}

// LoadSubmodule loads the entries of stateDict under a key prefix into
// a submodule, stripping the prefix.
func LoadSubmodule(stateDict map[string]*tensor.RawTensor, prefix string, target StateLoader) error {
	return nn.LoadSubmodule(stateDict, prefix, target)
}

// Save writes a model's state dictionary to a .arcv file.
//
// The file is written in the checksummed v2 container. modelType is a
// free-form label recorded in the header ("vae", "classifier");
// metadata may be nil.
//
// Example:
//
//	backend := cpu.New()
//	model := nn.NewLinear(784, 10, backend)
//	err := nn.Save(model, "model.arcv", "Linear", nil)
func Save(model StatefulModel, path, modelType string, metadata map[string]string) error {
	return nn.Save(model, path, modelType, metadata)
}

// Load reads a .arcv file into a pre-constructed model.
//
// The model must already have the architecture the file was saved from;
// its parameters are replaced in place. Returns the file header so
// callers can inspect model type and metadata.
//
// Example:
//
//	backend := cpu.New()
//	model := nn.NewLinear(784, 10, backend)
//	header, err := nn.Load("model.arcv", backend, model)
func Load[B tensor.Backend](path string, backend B, model StatefulModel) (serialization.Header, error) {
	return nn.Load(path, backend, model)
}

// Copyright 2025 Arches ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides neural network layers and building blocks.
//
// # Overview
//
// This package contains:
//   - Layers: Linear, BatchNorm, LayerNorm, Dropout, Embedding
//   - Blocks: FCBlock, Encoder, Decoder, Classifier
//   - Activations: ReLU, Sigmoid, Softplus, Softmax
//   - Loss functions: CrossEntropyLoss, MSELoss
//   - Utilities: Sequential, Module interface, Parameter
//   - Initialization: Xavier, He, Normal, Zeros, Ones, Randn
//   - Persistence: Save, Load, SaveCheckpoint, LoadCheckpoint
//
// # Basic Usage
//
//	import (
//	    "github.com/arches-ml/arches/backend/cpu"
//	    "github.com/arches-ml/arches/nn"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    // Build a simple MLP
//	    model := nn.NewSequential(
//	        nn.NewLinear(784, 128, backend),
//	        nn.NewReLU[*cpu.CPUBackend](),
//	        nn.NewLinear(128, 10, backend),
//	    )
//
//	    // Forward pass
//	    output := model.Forward(input)
//	}
//
// # Covariate-Aware Blocks
//
// The FCBlock is the workhorse of the variational models in this toolkit.
// It stacks linear layers with optional batch normalization, layer
// normalization, ReLU, and dropout, and concatenates one-hot encoded
// categorical covariates (batch, label) onto the layer input:
//
//	fc := nn.NewFCBlock(nn.FCBlockConfig{
//	    In:            genes,
//	    Out:           128,
//	    Layers:        1,
//	    CovariateDims: []int{batches},
//	    UseBatchNorm:  true,
//	    UseActivation: true,
//	    Bias:          true,
//	    Dropout:       0.1,
//	}, backend)
//
// The covariate columns sit after the feature columns, so a category
// vocabulary can grow by appending weight columns without disturbing the
// pretrained ones. Encoder and Decoder build on FCBlock to form the
// recognition and generative halves of a variational autoencoder, and
// Classifier adds a label head for annotation transfer.
//
// # Loss Functions
//
// CrossEntropyLoss: For classification tasks (numerically stable)
//
//	criterion := nn.NewCrossEntropyLoss(backend)
//	loss := criterion.Forward(logits, labels)
//
// MSELoss: For regression tasks
//
//	criterion := nn.NewMSELoss(backend)
//	loss := criterion.Forward(predictions, targets)
//
// # Parameter Management
//
// Access model parameters for optimization:
//
//	params := model.Parameters()
//	for _, param := range params {
//	    fmt.Println(param.Name(), param.Tensor().Shape())
//	}
//
// Parameters carry the gradient-masking state used by model adaptation:
// SetTrainable toggles whole-parameter updates and FreezeColumnsBefore
// restricts updates to trailing columns. See the model package for the
// adaptation workflow that drives these.
//
// # Persistence
//
// Save and Load move a model's state dictionary through the .arcv
// container format; SaveCheckpoint and LoadCheckpoint snapshot model and
// optimizer state together so fine-tuning can resume mid-run.
package nn

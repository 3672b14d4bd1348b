// Copyright 2025 Arches ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/arches-ml/arches/internal/nn"
	"github.com/arches-ml/arches/tensor"
)

// Layers

// Linear represents a fully connected (dense) layer.
//
// The weight matrix has shape [outFeatures, inFeatures], so growing the
// input side appends columns.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a new linear layer with Xavier initialization.
//
// Example:
//
//	backend := cpu.New()
//	layer := nn.NewLinear(784, 128, backend)
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, backend)
}

// NewLinearNoBias creates a linear layer without a bias vector.
func NewLinearNoBias[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return nn.NewLinearNoBias(inFeatures, outFeatures, backend)
}

// BatchNorm represents 1D batch normalization with running statistics.
type BatchNorm[B tensor.Backend] = nn.BatchNorm[B]

// NewBatchNorm creates a new batch normalization layer over dim features.
//
// Example:
//
//	backend := cpu.New()
//	norm := nn.NewBatchNorm(128, backend)
func NewBatchNorm[B tensor.Backend](dim int, backend B) *BatchNorm[B] {
	return nn.NewBatchNorm(dim, backend)
}

// LayerNorm represents Layer Normalization.
type LayerNorm[B tensor.Backend] = nn.LayerNorm[B]

// NewLayerNorm creates a new LayerNorm layer.
//
// Example:
//
//	backend := cpu.New()
//	norm := nn.NewLayerNorm[B](128, 1e-5, backend)
func NewLayerNorm[B tensor.Backend](normalizedShape int, epsilon float32, backend B) *LayerNorm[B] {
	return nn.NewLayerNorm(normalizedShape, epsilon, backend)
}

// NewLayerNormNoAffine creates a LayerNorm layer without the learnable
// scale and shift, the variant the fully connected blocks use.
func NewLayerNormNoAffine[B tensor.Backend](normalizedShape int, epsilon float32, backend B) *LayerNorm[B] {
	return nn.NewLayerNormNoAffine(normalizedShape, epsilon, backend)
}

// Dropout represents a dropout layer.
//
// Dropout is active only while the layer is in training mode; Forward is
// the identity in evaluation mode. Adaptation freezes dropout by setting
// its rate to zero.
type Dropout[B tensor.Backend] = nn.Dropout[B]

// NewDropout creates a new dropout layer with the given drop rate.
//
// Example:
//
//	drop := nn.NewDropout[*cpu.CPUBackend](0.1)
func NewDropout[B tensor.Backend](rate float32) *Dropout[B] {
	return nn.NewDropout[B](rate)
}

// Embedding represents a lookup table for embeddings.
type Embedding[B tensor.Backend] = nn.Embedding[B]

// NewEmbedding creates a new embedding layer.
//
// Example:
//
//	backend := cpu.New()
//	embed := nn.NewEmbedding(batches, 16, backend)
func NewEmbedding[B tensor.Backend](numEmbeddings, embeddingDim int, backend B) *Embedding[B] {
	return nn.NewEmbedding(numEmbeddings, embeddingDim, backend)
}

// NewEmbeddingWithWeight creates an embedding layer from an existing
// weight tensor. This is useful when loading pre-trained embeddings.
func NewEmbeddingWithWeight[B tensor.Backend](weight *tensor.Tensor[float32, B]) *Embedding[B] {
	return nn.NewEmbeddingWithWeight(weight)
}

// Blocks

// FCBlockConfig configures a fully connected block.
type FCBlockConfig = nn.FCBlockConfig

// FCBlock is a stack of fully connected layers with optional categorical
// covariate injection.
//
// Each covariate is a column of integer category codes. Covariates are
// one-hot encoded and concatenated onto the input of the first layer
// (and onto every layer's input with InjectAll), after the feature
// columns. Category vocabularies can therefore grow by appending weight
// columns without disturbing the pretrained ones.
//
// Example:
//
//	backend := cpu.New()
//	fc := nn.NewFCBlock(nn.FCBlockConfig{
//	    In:            100,
//	    Out:           128,
//	    Layers:        1,
//	    CovariateDims: []int{2},
//	    UseBatchNorm:  true,
//	    UseActivation: true,
//	    Bias:          true,
//	}, backend)
//	h := fc.Forward(x, batchCodes)
type FCBlock[B tensor.Backend] = nn.FCBlock[B]

// NewFCBlock creates a new fully connected block.
func NewFCBlock[B tensor.Backend](cfg FCBlockConfig, backend B) *FCBlock[B] {
	return nn.NewFCBlock(cfg, backend)
}

// Distribution selects the latent transformation of an Encoder.
type Distribution = nn.Distribution

// Latent distributions.
const (
	// DistNormal samples the latent directly from the encoded Gaussian.
	DistNormal Distribution = nn.DistNormal

	// DistLogNormal exponentiates the Gaussian sample, for strictly
	// positive latents such as library size.
	DistLogNormal Distribution = nn.DistLogNormal
)

// EncoderConfig configures an Encoder.
type EncoderConfig = nn.EncoderConfig

// Encoder maps observations to the mean and variance of a diagonal
// Gaussian over the latent space and draws a reparameterized sample.
type Encoder[B tensor.Backend] = nn.Encoder[B]

// NewEncoder creates a new variational encoder.
//
// Example:
//
//	backend := cpu.New()
//	enc := nn.NewEncoder(nn.EncoderConfig{
//	    In:            100,
//	    Out:           10,
//	    Hidden:        128,
//	    Layers:        1,
//	    CovariateDims: []int{2},
//	    UseBatchNorm:  true,
//	}, backend)
//	mean, variance, z := enc.Forward(x, batchCodes)
func NewEncoder[B tensor.Backend](cfg EncoderConfig, backend B) *Encoder[B] {
	return nn.NewEncoder(cfg, backend)
}

// ScaleActivation selects the link of a Decoder's expression-scale head.
type ScaleActivation = nn.ScaleActivation

// Expression-scale links.
const (
	// ScaleSoftmax normalizes the scale head over genes.
	ScaleSoftmax ScaleActivation = nn.ScaleSoftmax

	// ScaleSoftplus maps the scale head to unconstrained positive values.
	ScaleSoftplus ScaleActivation = nn.ScaleSoftplus
)

// DecoderConfig configures a Decoder.
type DecoderConfig = nn.DecoderConfig

// Decoder maps latent samples back to the parameters of a count
// likelihood over genes: expression scale, rate, zero-inflation logits,
// and optionally a per-cell dispersion.
type Decoder[B tensor.Backend] = nn.Decoder[B]

// NewDecoder creates a new generative decoder.
func NewDecoder[B tensor.Backend](cfg DecoderConfig, backend B) *Decoder[B] {
	return nn.NewDecoder(cfg, backend)
}

// ClassifierConfig configures a Classifier.
type ClassifierConfig = nn.ClassifierConfig

// Classifier predicts cell-type logits from latent representations, for
// annotation transfer after adaptation.
type Classifier[B tensor.Backend] = nn.Classifier[B]

// NewClassifier creates a new latent-space classifier.
func NewClassifier[B tensor.Backend](cfg ClassifierConfig, backend B) *Classifier[B] {
	return nn.NewClassifier(cfg, backend)
}

// Activations

// ReLU represents the Rectified Linear Unit activation function.
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates a new ReLU activation layer.
//
// Example:
//
//	relu := nn.NewReLU[*cpu.CPUBackend]()
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// Sigmoid represents the Sigmoid activation function.
type Sigmoid[B tensor.Backend] = nn.Sigmoid[B]

// NewSigmoid creates a new Sigmoid activation layer.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] {
	return nn.NewSigmoid[B]()
}

// Softplus represents the Softplus activation function,
// Softplus(x) = log(1 + exp(x)).
type Softplus[B tensor.Backend] = nn.Softplus[B]

// NewSoftplus creates a new Softplus activation layer.
func NewSoftplus[B tensor.Backend]() *Softplus[B] {
	return nn.NewSoftplus[B]()
}

// Softmax represents the Softmax activation function along a dimension.
type Softmax[B tensor.Backend] = nn.Softmax[B]

// NewSoftmax creates a new Softmax activation layer along dim.
func NewSoftmax[B tensor.Backend](dim int) *Softmax[B] {
	return nn.NewSoftmax[B](dim)
}

// Loss Functions

// CrossEntropyLoss represents the cross-entropy loss for classification.
type CrossEntropyLoss[B tensor.Backend] = nn.CrossEntropyLoss[B]

// NewCrossEntropyLoss creates a new cross-entropy loss function.
//
// Example:
//
//	backend := cpu.New()
//	criterion := nn.NewCrossEntropyLoss(backend)
//	loss := criterion.Forward(logits, labels)
func NewCrossEntropyLoss[B tensor.Backend](backend B) *CrossEntropyLoss[B] {
	return nn.NewCrossEntropyLoss(backend)
}

// MSELoss represents the mean squared error loss for regression.
type MSELoss[B tensor.Backend] = nn.MSELoss[B]

// NewMSELoss creates a new MSE loss function.
//
// Example:
//
//	backend := cpu.New()
//	criterion := nn.NewMSELoss(backend)
//	loss := criterion.Forward(predictions, targets)
func NewMSELoss[B tensor.Backend](backend B) *MSELoss[B] {
	return nn.NewMSELoss(backend)
}

// Sequential

// Sequential represents a sequential container of modules.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a new sequential model.
//
// Example:
//
//	backend := cpu.New()
//	model := nn.NewSequential(
//	    nn.NewLinear(784, 128, backend),
//	    nn.NewReLU[*cpu.CPUBackend](),
//	    nn.NewLinear(128, 10, backend),
//	)
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// Initialization functions

// Xavier initializes a tensor using Xavier/Glorot initialization.
//
// Example:
//
//	backend := cpu.New()
//	weights := nn.Xavier(784, 128, tensor.Shape{128, 784}, backend)
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Xavier(fanIn, fanOut, shape, backend)
}

// He initializes a tensor using He/Kaiming initialization, suited to
// ReLU stacks.
func He[B tensor.Backend](fanIn int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.He(fanIn, shape, backend)
}

// Normal initializes a tensor with values drawn from N(mean, std²).
func Normal[B tensor.Backend](mean, std float64, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Normal(mean, std, shape, backend)
}

// Zeros initializes a tensor with zeros (for biases).
//
// Example:
//
//	backend := cpu.New()
//	bias := nn.Zeros(tensor.Shape{128}, backend)
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Zeros(shape, backend)
}

// Ones initializes a tensor with ones.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Ones(shape, backend)
}

// Randn initializes a tensor with random values from N(0, 1).
func Randn[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Randn(shape, backend)
}

// Checkpointing

// StatefulModel is anything whose parameters travel through a state
// dictionary: every Module, but also the composite models whose forward
// signatures take covariates and therefore do not fit the Module
// interface.
type StatefulModel = nn.StatefulModel

// OptimizerState represents an optimizer that can save and load its
// state. Optimizers from the optim package implement this interface.
type OptimizerState = nn.OptimizerState

// Checkpoint represents a complete training state snapshot: model
// parameters, optimizer state, and training metadata.
type Checkpoint[B tensor.Backend] = nn.Checkpoint[B]

// SaveCheckpoint saves a training checkpoint with model and optimizer
// state.
//
// Example:
//
//	err := nn.SaveCheckpoint[*cpu.CPUBackend]("checkpoint.arcv", model, optimizer, epoch)
func SaveCheckpoint[B tensor.Backend](path string, model StatefulModel, optimizer OptimizerState, epoch int) error {
	return nn.SaveCheckpoint[B](path, model, optimizer, epoch)
}

// LoadCheckpoint loads a training checkpoint into a pre-constructed
// model and optimizer.
//
// Example:
//
//	checkpoint, err := nn.LoadCheckpoint("checkpoint.arcv", backend, model, optimizer)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// Resume training from checkpoint.Epoch + 1.
func LoadCheckpoint[B tensor.Backend](path string, backend B, model StatefulModel, optimizer OptimizerState) (*Checkpoint[B], error) {
	return nn.LoadCheckpoint(path, backend, model, optimizer)
}

// Utility functions

// CrossEntropyBackward computes the backward pass for cross-entropy loss.
func CrossEntropyBackward[B tensor.Backend](
	logits *tensor.Tensor[float32, B],
	targets *tensor.Tensor[int64, B],
	backend B,
) *tensor.Tensor[float32, B] {
	return nn.CrossEntropyBackward(logits, targets, backend)
}

// Accuracy computes the classification accuracy.
//
// Example:
//
//	acc := nn.Accuracy(logits, labels)
//	fmt.Printf("Accuracy: %.2f%%\n", acc*100)
func Accuracy[B tensor.Backend](
	logits *tensor.Tensor[float32, B],
	targets *tensor.Tensor[int64, B],
) float32 {
	return nn.Accuracy(logits, targets)
}

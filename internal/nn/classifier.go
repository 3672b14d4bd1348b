package nn

import (
	"fmt"

	"github.com/arches-ml/arches/internal/tensor"
)

// ClassifierConfig configures a cell-type classifier head.
type ClassifierConfig struct {
	// In is the number of input features (usually the latent
	// dimension).
	In int

	// Labels is the number of classes.
	Labels int

	// Hidden is the width of the fully connected stack.
	Hidden int

	// Layers is the number of fully connected layers before the
	// label head.
	Layers int

	// Dropout is the dropout rate of the fully connected stack.
	Dropout float32

	// UseBatchNorm and UseLayerNorm select the normalization of the
	// fully connected stack.
	UseBatchNorm bool
	UseLayerNorm bool

	// Logits makes Forward return raw scores instead of softmax
	// probabilities. Training against CrossEntropyLoss wants raw
	// scores.
	Logits bool
}

// Classifier predicts class probabilities (or logits) from latent
// representations. Label-transfer workflows attach one to the encoder
// and fine-tune it on the query data while the rest of the model stays
// frozen.
type Classifier[B tensor.Backend] struct {
	fc     *FCBlock[B]
	head   *Linear[B]
	logits bool
}

// NewClassifier creates a classifier from the given configuration.
func NewClassifier[B tensor.Backend](cfg ClassifierConfig, backend B) *Classifier[B] {
	if cfg.Labels <= 0 {
		panic(fmt.Sprintf("NewClassifier: label count must be positive, got %d", cfg.Labels))
	}

	fc := NewFCBlock(FCBlockConfig{
		In:            cfg.In,
		Out:           cfg.Hidden,
		Hidden:        cfg.Hidden,
		Layers:        cfg.Layers,
		Dropout:       cfg.Dropout,
		UseBatchNorm:  cfg.UseBatchNorm,
		UseLayerNorm:  cfg.UseLayerNorm,
		UseActivation: true,
		Bias:          true,
	}, backend)

	return &Classifier[B]{
		fc:     fc,
		head:   NewLinear(cfg.Hidden, cfg.Labels, backend),
		logits: cfg.Logits,
	}
}

// Forward maps a [batch, features] input to [batch, labels] scores,
// softmax-normalized unless the classifier was configured for logits.
func (c *Classifier[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := c.head.Forward(c.fc.Forward(input))
	if !c.logits {
		out = out.Softmax(-1)
	}
	return out
}

// Parameters returns the parameters of the stack and the label head.
func (c *Classifier[B]) Parameters() []*Parameter[B] {
	return append(c.fc.Parameters(), c.head.Parameters()...)
}

// SetTraining switches the fully connected stack between training and
// evaluation behavior.
func (c *Classifier[B]) SetTraining(training bool) {
	c.fc.SetTraining(training)
}

// FC returns the fully connected stack.
func (c *Classifier[B]) FC() *FCBlock[B] {
	return c.fc
}

// Head returns the label head.
func (c *Classifier[B]) Head() *Linear[B] {
	return c.head
}

// StateDict returns the classifier's parameters and buffers keyed by
// dotted path, e.g. "fc_layers.0.linear.weight" or "head.weight".
func (c *Classifier[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := c.fc.StateDict()
	MergeStateDict(stateDict, "head.", c.head.StateDict())
	return stateDict
}

// LoadStateDict loads the classifier's parameters and buffers from a
// state dictionary produced by StateDict.
func (c *Classifier[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := c.fc.LoadStateDict(stateDict); err != nil {
		return fmt.Errorf("failed to load classifier stack: %w", err)
	}
	if err := LoadSubmodule(stateDict, "head.", c.head); err != nil {
		return fmt.Errorf("failed to load label head: %w", err)
	}
	return nil
}

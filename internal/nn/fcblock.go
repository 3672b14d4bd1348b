package nn

import (
	"fmt"

	"github.com/arches-ml/arches/internal/tensor"
)

// FCBlockConfig configures a stack of fully connected layers.
type FCBlockConfig struct {
	// In is the number of input features.
	In int

	// Out is the number of output features.
	Out int

	// Hidden is the width of the intermediate layers. Ignored when
	// Layers is 1.
	Hidden int

	// Layers is the number of fully connected layers. Must be at
	// least 1.
	Layers int

	// CovariateDims holds the number of categories of each categorical
	// covariate whose one-hot encoding is concatenated onto the layer
	// input. Covariates with fewer than two categories carry no
	// information and are skipped.
	CovariateDims []int

	// InjectAll concatenates the covariate encodings onto every
	// layer's input instead of only the first layer's.
	InjectAll bool

	// Dropout is the dropout rate applied after each layer. Zero
	// disables dropout.
	Dropout float32

	// UseBatchNorm enables batch normalization after each linear
	// transform.
	UseBatchNorm bool

	// UseLayerNorm enables affine-free layer normalization after each
	// linear transform (and after batch normalization, when both are
	// enabled).
	UseLayerNorm bool

	// UseActivation enables the ReLU activation.
	UseActivation bool

	// Bias enables the additive bias of each linear transform.
	Bias bool
}

// fcLayer is one linear -> batch norm -> layer norm -> activation ->
// dropout unit of an FCBlock. Normalization and dropout stages are nil
// when disabled.
type fcLayer[B tensor.Backend] struct {
	linear        *Linear[B]
	batchNorm     *BatchNorm[B]
	layerNorm     *LayerNorm[B]
	useActivation bool
	dropout       *Dropout[B]
}

func (l *fcLayer[B]) forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := l.linear.Forward(x)

	if l.batchNorm != nil {
		out = l.batchNorm.Forward(out)
	}
	if l.layerNorm != nil {
		out = l.layerNorm.Forward(out)
	}
	if l.useActivation {
		out = out.ReLU()
	}
	if l.dropout != nil {
		out = l.dropout.Forward(out)
	}

	return out
}

// FCBlock is a stack of fully connected layers with optional
// categorical covariate injection.
//
// Each covariate is a column of integer category codes. Covariates are
// one-hot encoded and concatenated onto the input of the first layer,
// and onto every layer's input when configured with InjectAll. The
// extra input columns sit after the feature columns, so category
// vocabularies can grow by appending weight columns without disturbing
// the pretrained ones.
//
// FCBlock is not a Module: its Forward takes the covariate code
// tensors alongside the input.
type FCBlock[B tensor.Backend] struct {
	layers        []*fcLayer[B]
	covariateDims []int
	catDim        int
	injectAll     bool
	backend       B
}

// NewFCBlock creates a fully connected block from the given
// configuration.
func NewFCBlock[B tensor.Backend](cfg FCBlockConfig, backend B) *FCBlock[B] {
	if cfg.In <= 0 || cfg.Out <= 0 {
		panic(fmt.Sprintf("NewFCBlock: feature counts must be positive, got in=%d out=%d", cfg.In, cfg.Out))
	}
	if cfg.Layers < 1 {
		panic(fmt.Sprintf("NewFCBlock: need at least one layer, got %d", cfg.Layers))
	}

	catDim := 0
	for _, n := range cfg.CovariateDims {
		if n > 1 {
			catDim += n
		}
	}

	// dims[i] is the feature width entering layer i before covariate
	// injection; dims[len] is the output width.
	dims := make([]int, cfg.Layers+1)
	dims[0] = cfg.In
	for i := 1; i < cfg.Layers; i++ {
		dims[i] = cfg.Hidden
	}
	dims[cfg.Layers] = cfg.Out

	block := &FCBlock[B]{
		covariateDims: append([]int(nil), cfg.CovariateDims...),
		catDim:        catDim,
		injectAll:     cfg.InjectAll,
		backend:       backend,
	}

	for i := 0; i < cfg.Layers; i++ {
		in := dims[i]
		if block.injectInto(i) {
			in += catDim
		}
		out := dims[i+1]

		layer := &fcLayer[B]{useActivation: cfg.UseActivation}
		if cfg.Bias {
			layer.linear = NewLinear(in, out, backend)
		} else {
			layer.linear = NewLinearNoBias(in, out, backend)
		}
		if cfg.UseBatchNorm {
			layer.batchNorm = NewBatchNorm(out, backend)
		}
		if cfg.UseLayerNorm {
			layer.layerNorm = NewLayerNormNoAffine(out, 1e-5, backend)
		}
		if cfg.Dropout > 0 {
			layer.dropout = NewDropout[B](cfg.Dropout)
		}

		block.layers = append(block.layers, layer)
	}

	return block
}

// injectInto reports whether covariate encodings are concatenated onto
// the input of the given layer. The first layer always receives them;
// deeper layers only when the block injects everywhere.
func (f *FCBlock[B]) injectInto(layer int) bool {
	return layer == 0 || f.injectAll
}

// Forward applies the block to a [batch, features] input.
//
// covariates must supply one [batch] code tensor per configured
// covariate, in configuration order.
func (f *FCBlock[B]) Forward(x *tensor.Tensor[float32, B], covariates ...*tensor.Tensor[int64, B]) *tensor.Tensor[float32, B] {
	if len(covariates) != len(f.covariateDims) {
		panic(fmt.Sprintf("FCBlock.Forward: expected %d covariate code tensors, got %d",
			len(f.covariateDims), len(covariates)))
	}

	oneHots := f.encodeCovariates(covariates)

	out := x
	for i, layer := range f.layers {
		in := out
		if len(oneHots) > 0 && f.injectInto(i) {
			pieces := make([]*tensor.Tensor[float32, B], 0, len(oneHots)+1)
			pieces = append(pieces, in)
			pieces = append(pieces, oneHots...)
			in = tensor.Cat(pieces, 1)
		}
		out = layer.forward(in)
	}

	return out
}

// encodeCovariates one-hot encodes the covariate code tensors, skipping
// covariates with fewer than two categories.
func (f *FCBlock[B]) encodeCovariates(covariates []*tensor.Tensor[int64, B]) []*tensor.Tensor[float32, B] {
	var oneHots []*tensor.Tensor[float32, B]

	for i, codes := range covariates {
		nCat := f.covariateDims[i]
		if nCat <= 1 {
			continue
		}
		raw := f.backend.OneHot(codes.Raw(), nCat)
		oneHots = append(oneHots, tensor.New[float32, B](raw, f.backend))
	}

	return oneHots
}

// Parameters returns the parameters of every layer.
func (f *FCBlock[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, layer := range f.layers {
		params = append(params, layer.linear.Parameters()...)
		if layer.batchNorm != nil {
			params = append(params, layer.batchNorm.Parameters()...)
		}
		if layer.layerNorm != nil {
			params = append(params, layer.layerNorm.Parameters()...)
		}
	}
	return params
}

// SetTraining switches batch normalization and dropout between
// training and evaluation behavior.
func (f *FCBlock[B]) SetTraining(training bool) {
	for _, layer := range f.layers {
		if layer.batchNorm != nil {
			layer.batchNorm.SetTraining(training)
		}
		if layer.dropout != nil {
			layer.dropout.SetTraining(training)
		}
	}
}

// NumLayers returns the number of fully connected layers.
func (f *FCBlock[B]) NumLayers() int {
	return len(f.layers)
}

// LinearAt returns the linear transform of the given layer.
func (f *FCBlock[B]) LinearAt(layer int) *Linear[B] {
	return f.layers[layer].linear
}

// BatchNormAt returns the batch normalization of the given layer, or
// nil when the block was built without batch normalization.
func (f *FCBlock[B]) BatchNormAt(layer int) *BatchNorm[B] {
	return f.layers[layer].batchNorm
}

// DropoutAt returns the dropout stage of the given layer, or nil when
// the block was built without dropout.
func (f *FCBlock[B]) DropoutAt(layer int) *Dropout[B] {
	return f.layers[layer].dropout
}

// CatDim returns the summed width of the injected covariate encodings.
func (f *FCBlock[B]) CatDim() int {
	return f.catDim
}

// CovariateDims returns the configured category counts.
func (f *FCBlock[B]) CovariateDims() []int {
	return append([]int(nil), f.covariateDims...)
}

// StateDict returns the parameters and buffers of every layer keyed by
// dotted path, e.g. "fc_layers.0.linear.weight".
func (f *FCBlock[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)

	for i, layer := range f.layers {
		MergeStateDict(stateDict, fmt.Sprintf("fc_layers.%d.linear.", i), layer.linear.StateDict())
		if layer.batchNorm != nil {
			MergeStateDict(stateDict, fmt.Sprintf("fc_layers.%d.batch_norm.", i), layer.batchNorm.StateDict())
		}
		if layer.layerNorm != nil {
			MergeStateDict(stateDict, fmt.Sprintf("fc_layers.%d.layer_norm.", i), layer.layerNorm.StateDict())
		}
	}

	return stateDict
}

// LoadStateDict loads the parameters and buffers of every layer from a
// state dictionary produced by StateDict.
func (f *FCBlock[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i, layer := range f.layers {
		if err := LoadSubmodule(stateDict, fmt.Sprintf("fc_layers.%d.linear.", i), layer.linear); err != nil {
			return fmt.Errorf("failed to load layer %d linear: %w", i, err)
		}
		if layer.batchNorm != nil {
			if err := LoadSubmodule(stateDict, fmt.Sprintf("fc_layers.%d.batch_norm.", i), layer.batchNorm); err != nil {
				return fmt.Errorf("failed to load layer %d batch norm: %w", i, err)
			}
		}
		if layer.layerNorm != nil {
			if err := LoadSubmodule(stateDict, fmt.Sprintf("fc_layers.%d.layer_norm.", i), layer.layerNorm); err != nil {
				return fmt.Errorf("failed to load layer %d layer norm: %w", i, err)
			}
		}
	}

	return nil
}

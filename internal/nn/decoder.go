package nn

import (
	"fmt"

	"github.com/arches-ml/arches/internal/tensor"
)

// ScaleActivation selects the link function of the expression-scale
// head of a Decoder.
type ScaleActivation string

const (
	// ScaleSoftmax normalizes the scale head over genes, producing
	// proportions of the library size.
	ScaleSoftmax ScaleActivation = "softmax"

	// ScaleSoftplus maps the scale head to unconstrained positive
	// values, for models driven by an observed size factor.
	ScaleSoftplus ScaleActivation = "softplus"
)

// DecoderConfig configures an expression decoder.
type DecoderConfig struct {
	// In is the dimensionality of the latent space.
	In int

	// Out is the number of genes.
	Out int

	// Hidden is the width of the fully connected stack.
	Hidden int

	// Layers is the number of fully connected layers before the
	// output heads.
	Layers int

	// CovariateDims holds the category counts of the injected
	// categorical covariates.
	CovariateDims []int

	// InjectAll injects covariates into every fully connected layer
	// instead of only the first.
	InjectAll bool

	// UseBatchNorm and UseLayerNorm select the normalization of the
	// fully connected stack.
	UseBatchNorm bool
	UseLayerNorm bool

	// ScaleActivation selects the link of the expression-scale head.
	// Empty means ScaleSoftmax.
	ScaleActivation ScaleActivation

	// PerCellDispersion enables the per-cell dispersion head. When
	// false the head still exists (so checkpoints stay exchangeable
	// between dispersion modes) but Forward does not evaluate it.
	PerCellDispersion bool
}

// Decoder maps latent samples back to the parameters of a count
// likelihood over genes: the expression scale, the expected rate given
// a library size, the zero-inflation logits, and optionally a per-cell
// dispersion.
//
// The fully connected stack runs without dropout. Decoded scales feed a
// sampling distribution, and dropping units there would bias the rates
// rather than regularize them.
type Decoder[B tensor.Backend] struct {
	pxDecoder        *FCBlock[B]
	pxScaleDecoder   *Sequential[B]
	pxRDecoder       *Linear[B]
	pxDropoutDecoder *Linear[B]

	perCellDispersion bool
}

// NewDecoder creates an expression decoder from the given
// configuration.
func NewDecoder[B tensor.Backend](cfg DecoderConfig, backend B) *Decoder[B] {
	if cfg.Out <= 0 {
		panic(fmt.Sprintf("NewDecoder: gene count must be positive, got %d", cfg.Out))
	}

	pxDecoder := NewFCBlock(FCBlockConfig{
		In:            cfg.In,
		Out:           cfg.Hidden,
		Hidden:        cfg.Hidden,
		Layers:        cfg.Layers,
		CovariateDims: cfg.CovariateDims,
		InjectAll:     cfg.InjectAll,
		Dropout:       0,
		UseBatchNorm:  cfg.UseBatchNorm,
		UseLayerNorm:  cfg.UseLayerNorm,
		UseActivation: true,
		Bias:          true,
	}, backend)

	var scaleActivation Module[B]
	switch cfg.ScaleActivation {
	case "", ScaleSoftmax:
		scaleActivation = NewSoftmax[B](-1)
	case ScaleSoftplus:
		scaleActivation = NewSoftplus[B]()
	default:
		panic(fmt.Sprintf("NewDecoder: unknown scale activation %q", cfg.ScaleActivation))
	}

	return &Decoder[B]{
		pxDecoder: pxDecoder,
		pxScaleDecoder: NewSequential[B](
			NewLinear(cfg.Hidden, cfg.Out, backend),
			scaleActivation,
		),
		pxRDecoder:        NewLinear(cfg.Hidden, cfg.Out, backend),
		pxDropoutDecoder:  NewLinear(cfg.Hidden, cfg.Out, backend),
		perCellDispersion: cfg.PerCellDispersion,
	}
}

// Forward decodes a [batch, latent] sample into likelihood parameters.
//
// library is the [batch, 1] log library size; the expected rate is
// pxRate = exp(library) * pxScale. pxDropout holds zero-inflation
// logits. pxR is the per-cell log dispersion, nil unless the decoder
// was configured with PerCellDispersion.
func (d *Decoder[B]) Forward(z, library *tensor.Tensor[float32, B], covariates ...*tensor.Tensor[int64, B]) (pxScale, pxR, pxRate, pxDropout *tensor.Tensor[float32, B]) {
	px := d.pxDecoder.Forward(z, covariates...)

	pxScale = d.pxScaleDecoder.Forward(px)
	pxDropout = d.pxDropoutDecoder.Forward(px)

	// exp(library) is fresh and broadcasts against the scale, so the
	// multiply allocates and pxScale survives for the caller.
	pxRate = library.Exp().Mul(pxScale)

	if d.perCellDispersion {
		pxR = d.pxRDecoder.Forward(px)
	}

	return pxScale, pxR, pxRate, pxDropout
}

// Parameters returns the parameters of the fully connected stack and
// all output heads.
func (d *Decoder[B]) Parameters() []*Parameter[B] {
	params := d.pxDecoder.Parameters()
	params = append(params, d.pxScaleDecoder.Parameters()...)
	params = append(params, d.pxRDecoder.Parameters()...)
	params = append(params, d.pxDropoutDecoder.Parameters()...)
	return params
}

// SetTraining switches the fully connected stack between training and
// evaluation behavior.
func (d *Decoder[B]) SetTraining(training bool) {
	d.pxDecoder.SetTraining(training)
}

// PxDecoder returns the fully connected stack. The adaptation loader
// uses it to reach the first-layer weights and the batch normalization
// stages.
func (d *Decoder[B]) PxDecoder() *FCBlock[B] {
	return d.pxDecoder
}

// StateDict returns the decoder's parameters and buffers keyed by
// dotted path, e.g. "px_decoder.fc_layers.0.linear.weight" or
// "px_scale_decoder.0.weight".
func (d *Decoder[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	MergeStateDict(stateDict, "px_decoder.", d.pxDecoder.StateDict())
	MergeStateDict(stateDict, "px_scale_decoder.", d.pxScaleDecoder.StateDict())
	MergeStateDict(stateDict, "px_r_decoder.", d.pxRDecoder.StateDict())
	MergeStateDict(stateDict, "px_dropout_decoder.", d.pxDropoutDecoder.StateDict())
	return stateDict
}

// LoadStateDict loads the decoder's parameters and buffers from a
// state dictionary produced by StateDict.
func (d *Decoder[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := LoadSubmodule(stateDict, "px_decoder.", d.pxDecoder); err != nil {
		return fmt.Errorf("failed to load decoder stack: %w", err)
	}
	if err := LoadSubmodule(stateDict, "px_scale_decoder.", d.pxScaleDecoder); err != nil {
		return fmt.Errorf("failed to load scale head: %w", err)
	}
	if err := LoadSubmodule(stateDict, "px_r_decoder.", d.pxRDecoder); err != nil {
		return fmt.Errorf("failed to load dispersion head: %w", err)
	}
	if err := LoadSubmodule(stateDict, "px_dropout_decoder.", d.pxDropoutDecoder); err != nil {
		return fmt.Errorf("failed to load dropout head: %w", err)
	}
	return nil
}

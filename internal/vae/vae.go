// Package vae implements the conditional variational autoencoder over
// gene counts: two variational encoders (latent state and log library
// size), a batch-conditioned decoder producing count-likelihood
// parameters, and the shared dispersion parameter px_r whose shape
// follows the dispersion mode.
//
// The network mirrors the architecture single-cell checkpoints are
// trained with, so state dictionaries keyed by the usual dotted paths
// (z_encoder.*, l_encoder.*, decoder.*, px_r) load directly.
package vae

import (
	"fmt"

	"github.com/arches-ml/arches/internal/nn"
	"github.com/arches-ml/arches/internal/tensor"
)

// VAE is a conditional variational autoencoder over gene expression
// counts. Construct it with New; the zero value is not usable.
type VAE[B tensor.Backend] struct {
	cfg Config

	zEncoder *nn.Encoder[B]
	lEncoder *nn.Encoder[B]
	decoder  *nn.Decoder[B]

	// pxR is the shared dispersion parameter. Its trailing axis is the
	// category axis (batches or labels), so vocabulary growth extends
	// it by appended columns. nil in gene-cell mode, where the decoder
	// predicts dispersion per cell.
	pxR *nn.Parameter[B]

	backend B
}

// New builds a VAE from its configuration. Parameters start at their
// random initialization; load a state dictionary to restore trained
// weights.
func New[B tensor.Backend](cfg Config, backend B) (*VAE[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var encoderCovs []int
	if cfg.EncodeCovariates {
		encoderCovs = []int{cfg.Batches}
	}

	zEncoder := nn.NewEncoder(nn.EncoderConfig{
		In:            cfg.Genes,
		Out:           cfg.Latent,
		Hidden:        cfg.Hidden,
		Layers:        cfg.Layers,
		CovariateDims: encoderCovs,
		InjectAll:     cfg.DeepInjectCovariates,
		Dropout:       cfg.Dropout,
		UseBatchNorm:  cfg.UseBatchNorm,
		UseLayerNorm:  cfg.UseLayerNorm,
		Distribution:  cfg.LatentDistribution,
	}, backend)

	// The library encoder is always a single layer to one dimension;
	// depth configuration applies to the latent encoder only.
	lEncoder := nn.NewEncoder(nn.EncoderConfig{
		In:            cfg.Genes,
		Out:           1,
		Hidden:        cfg.Hidden,
		Layers:        1,
		CovariateDims: encoderCovs,
		InjectAll:     cfg.DeepInjectCovariates,
		Dropout:       cfg.Dropout,
		UseBatchNorm:  cfg.UseBatchNorm,
		UseLayerNorm:  cfg.UseLayerNorm,
	}, backend)

	decoder := nn.NewDecoder(nn.DecoderConfig{
		In:                cfg.Latent,
		Out:               cfg.Genes,
		Hidden:            cfg.Hidden,
		Layers:            cfg.Layers,
		CovariateDims:     []int{cfg.Batches},
		InjectAll:         cfg.DeepInjectCovariates,
		UseBatchNorm:      cfg.UseBatchNorm,
		UseLayerNorm:      cfg.UseLayerNorm,
		ScaleActivation:   nn.ScaleSoftmax,
		PerCellDispersion: cfg.Dispersion == DispersionGeneCell,
	}, backend)

	v := &VAE[B]{
		cfg:      cfg,
		zEncoder: zEncoder,
		lEncoder: lEncoder,
		decoder:  decoder,
		backend:  backend,
	}

	switch cfg.Dispersion {
	case DispersionGene:
		v.pxR = nn.NewParameter("px_r", nn.Randn(tensor.Shape{cfg.Genes}, backend))
	case DispersionGeneBatch:
		v.pxR = nn.NewParameter("px_r", nn.Randn(tensor.Shape{cfg.Genes, cfg.Batches}, backend))
	case DispersionGeneLabel:
		v.pxR = nn.NewParameter("px_r", nn.Randn(tensor.Shape{cfg.Genes, cfg.Labels}, backend))
	case DispersionGeneCell:
		// Dispersion comes from the decoder head.
	}

	return v, nil
}

// Outputs bundles the results of one full pass: the latent posterior,
// the library posterior, and the decoded count-likelihood parameters.
type Outputs[B tensor.Backend] struct {
	// QzM and QzV are the [cells, latent] posterior mean and variance;
	// Z is the reparameterized sample.
	QzM, QzV, Z *tensor.Tensor[float32, B]

	// QlM and QlV are the [cells, 1] posterior over the log library
	// size; Library is its sample.
	QlM, QlV, Library *tensor.Tensor[float32, B]

	// PxScale is the [cells, genes] expression proportion, PxRate the
	// expected count exp(library) * scale, PxR the dispersion (shape
	// [1, genes] in gene mode, [cells, genes] otherwise), and
	// PxDropout the zero-inflation logits.
	PxScale, PxR, PxRate, PxDropout *tensor.Tensor[float32, B]
}

// Forward runs inference and generation for a [cells, genes] count
// matrix. batch holds per-cell batch codes and is always required; the
// decoder conditions on it. labels is required only in gene-label
// dispersion mode and may be nil otherwise. Code tensors may be shaped
// [cells] or [cells, 1].
func (v *VAE[B]) Forward(x *tensor.Tensor[float32, B], batch, labels *tensor.Tensor[int64, B]) *Outputs[B] {
	if batch == nil {
		panic("vae: Forward requires batch codes")
	}
	batch = flattenCodes(batch)

	xEnc := x
	if v.cfg.LogVariational {
		xEnc = x.AddScalar(1).Log()
	}

	var encoderCovs []*tensor.Tensor[int64, B]
	if v.cfg.EncodeCovariates {
		encoderCovs = []*tensor.Tensor[int64, B]{batch}
	}

	out := &Outputs[B]{}
	out.QzM, out.QzV, out.Z = v.zEncoder.Forward(xEnc, encoderCovs...)
	out.QlM, out.QlV, out.Library = v.lEncoder.Forward(xEnc, encoderCovs...)

	pxScale, pxR, pxRate, pxDropout := v.decoder.Forward(out.Z, out.Library, batch)
	out.PxScale, out.PxRate, out.PxDropout = pxScale, pxRate, pxDropout

	switch v.cfg.Dispersion {
	case DispersionGene:
		pxR = v.pxR.Tensor().Reshape(1, v.cfg.Genes)
	case DispersionGeneBatch:
		pxR = v.selectDispersion(batch)
	case DispersionGeneLabel:
		if labels == nil {
			panic("vae: gene-label dispersion requires label codes")
		}
		pxR = v.selectDispersion(flattenCodes(labels))
	case DispersionGeneCell:
		// pxR already holds the decoder head output.
	}
	out.PxR = pxR.Exp()

	return out
}

// Latent encodes counts and returns the [cells, latent] posterior mean,
// the embedding used for integration and visualization.
func (v *VAE[B]) Latent(x *tensor.Tensor[float32, B], batch *tensor.Tensor[int64, B]) *tensor.Tensor[float32, B] {
	xEnc := x
	if v.cfg.LogVariational {
		xEnc = x.AddScalar(1).Log()
	}

	var encoderCovs []*tensor.Tensor[int64, B]
	if v.cfg.EncodeCovariates {
		if batch == nil {
			panic("vae: Latent requires batch codes when covariates are encoded")
		}
		encoderCovs = []*tensor.Tensor[int64, B]{flattenCodes(batch)}
	}

	qm, _, _ := v.zEncoder.Forward(xEnc, encoderCovs...)
	return qm
}

// selectDispersion picks per-cell dispersion rows from the shared
// [genes, categories] parameter as one_hot(codes) @ px_r^T.
func (v *VAE[B]) selectDispersion(codes *tensor.Tensor[int64, B]) *tensor.Tensor[float32, B] {
	categories := v.pxR.Tensor().Shape()[1]
	oneHot := tensor.New[float32, B](v.backend.OneHot(codes.Raw(), categories), v.backend)
	return oneHot.MatMul(v.pxR.Tensor().Transpose())
}

// flattenCodes accepts [n] or [n, 1] code tensors and returns the 1-D
// form the covariate encoders expect.
func flattenCodes[B tensor.Backend](codes *tensor.Tensor[int64, B]) *tensor.Tensor[int64, B] {
	shape := codes.Shape()
	if len(shape) == 2 && shape[1] == 1 {
		return codes.Reshape(shape[0])
	}
	return codes
}

// Config returns the constructor arguments this VAE was built from.
func (v *VAE[B]) Config() Config {
	return v.cfg
}

// ZEncoder returns the latent-state encoder.
func (v *VAE[B]) ZEncoder() *nn.Encoder[B] {
	return v.zEncoder
}

// LEncoder returns the library-size encoder.
func (v *VAE[B]) LEncoder() *nn.Encoder[B] {
	return v.lEncoder
}

// Decoder returns the expression decoder.
func (v *VAE[B]) Decoder() *nn.Decoder[B] {
	return v.decoder
}

// PxR returns the shared dispersion parameter, nil in gene-cell mode.
func (v *VAE[B]) PxR() *nn.Parameter[B] {
	return v.pxR
}

// Backend returns the backend this VAE computes on.
func (v *VAE[B]) Backend() B {
	return v.backend
}

// Parameters returns every trainable parameter of the model.
func (v *VAE[B]) Parameters() []*nn.Parameter[B] {
	params := v.zEncoder.Parameters()
	params = append(params, v.lEncoder.Parameters()...)
	params = append(params, v.decoder.Parameters()...)
	if v.pxR != nil {
		params = append(params, v.pxR)
	}
	return params
}

// NamedParameters returns the trainable parameters keyed by their state
// dictionary path. Buffers such as batch normalization statistics are
// not parameters and do not appear.
func (v *VAE[B]) NamedParameters() map[string]*nn.Parameter[B] {
	byStorage := make(map[*tensor.RawTensor]*nn.Parameter[B])
	for _, p := range v.Parameters() {
		byStorage[p.Tensor().Raw()] = p
	}

	named := make(map[string]*nn.Parameter[B])
	for name, raw := range v.StateDict() {
		if p, ok := byStorage[raw]; ok {
			named[name] = p
		}
	}
	return named
}

// SetTraining switches dropout and batch normalization between
// training and evaluation behavior.
func (v *VAE[B]) SetTraining(training bool) {
	v.zEncoder.SetTraining(training)
	v.lEncoder.SetTraining(training)
	v.decoder.SetTraining(training)
}

// StateDict returns all parameters and buffers keyed by dotted path:
// z_encoder.*, l_encoder.*, decoder.*, and px_r.
func (v *VAE[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	nn.MergeStateDict(stateDict, "z_encoder.", v.zEncoder.StateDict())
	nn.MergeStateDict(stateDict, "l_encoder.", v.lEncoder.StateDict())
	nn.MergeStateDict(stateDict, "decoder.", v.decoder.StateDict())
	if v.pxR != nil {
		stateDict["px_r"] = v.pxR.Tensor().Raw()
	}
	return stateDict
}

// LoadStateDict loads parameters and buffers from a state dictionary
// produced by StateDict. Shapes must match exactly; reconciling grown
// tensors is the adaptation loader's job, not this method's.
func (v *VAE[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := nn.LoadSubmodule(stateDict, "z_encoder.", v.zEncoder); err != nil {
		return fmt.Errorf("failed to load z encoder: %w", err)
	}
	if err := nn.LoadSubmodule(stateDict, "l_encoder.", v.lEncoder); err != nil {
		return fmt.Errorf("failed to load l encoder: %w", err)
	}
	if err := nn.LoadSubmodule(stateDict, "decoder.", v.decoder); err != nil {
		return fmt.Errorf("failed to load decoder: %w", err)
	}

	if v.pxR != nil {
		raw, ok := stateDict["px_r"]
		if !ok {
			return fmt.Errorf("missing px_r in state dict")
		}
		want := v.pxR.Tensor().Shape()
		if !raw.Shape().Equal(want) {
			return fmt.Errorf("px_r shape mismatch: expected %v, got %v", want, raw.Shape())
		}
		if raw.DType() != tensor.Float32 {
			return fmt.Errorf("px_r dtype mismatch: expected float32, got %v", raw.DType())
		}
		copy(v.pxR.Tensor().Data(), raw.AsFloat32())
	}

	return nil
}

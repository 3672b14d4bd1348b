package nn

import (
	"fmt"

	"github.com/arches-ml/arches/internal/tensor"
)

// Distribution selects the transformation applied to latent samples
// drawn by an Encoder.
type Distribution string

const (
	// DistNormal leaves latent samples on the real line.
	DistNormal Distribution = "normal"

	// DistLogNormal pushes latent samples through a softmax so they
	// live on the probability simplex (a logistic-normal latent).
	DistLogNormal Distribution = "ln"
)

// defaultVarEps keeps encoded variances strictly positive so the
// reparameterized sample never divides by a zero standard deviation.
const defaultVarEps = 1e-4

// EncoderConfig configures a variational encoder.
type EncoderConfig struct {
	// In is the number of input features.
	In int

	// Out is the dimensionality of the latent space.
	Out int

	// Hidden is the width of the fully connected stack.
	Hidden int

	// Layers is the number of fully connected layers before the
	// mean/variance heads.
	Layers int

	// CovariateDims holds the category counts of the injected
	// categorical covariates.
	CovariateDims []int

	// InjectAll injects covariates into every fully connected layer
	// instead of only the first.
	InjectAll bool

	// Dropout is the dropout rate of the fully connected stack.
	Dropout float32

	// UseBatchNorm and UseLayerNorm select the normalization of the
	// fully connected stack.
	UseBatchNorm bool
	UseLayerNorm bool

	// Distribution selects the latent transformation. Empty means
	// DistNormal.
	Distribution Distribution

	// VarEps is added to the encoded variance. Zero means the
	// default of 1e-4.
	VarEps float32
}

// Encoder maps observations to the mean and variance of a diagonal
// Gaussian over the latent space and draws a reparameterized sample
// from it.
//
// The variance head is exponentiated, so the network parameterizes
// log-variance; VarEps keeps the result strictly positive.
type Encoder[B tensor.Backend] struct {
	fc          *FCBlock[B]
	meanEncoder *Linear[B]
	varEncoder  *Linear[B]

	distribution Distribution
	varEps       float32
	backend      B
}

// NewEncoder creates a variational encoder from the given
// configuration.
func NewEncoder[B tensor.Backend](cfg EncoderConfig, backend B) *Encoder[B] {
	if cfg.Out <= 0 {
		panic(fmt.Sprintf("NewEncoder: latent dimension must be positive, got %d", cfg.Out))
	}

	distribution := cfg.Distribution
	if distribution == "" {
		distribution = DistNormal
	}
	varEps := cfg.VarEps
	if varEps == 0 {
		varEps = defaultVarEps
	}

	fc := NewFCBlock(FCBlockConfig{
		In:            cfg.In,
		Out:           cfg.Hidden,
		Hidden:        cfg.Hidden,
		Layers:        cfg.Layers,
		CovariateDims: cfg.CovariateDims,
		InjectAll:     cfg.InjectAll,
		Dropout:       cfg.Dropout,
		UseBatchNorm:  cfg.UseBatchNorm,
		UseLayerNorm:  cfg.UseLayerNorm,
		UseActivation: true,
		Bias:          true,
	}, backend)

	return &Encoder[B]{
		fc:           fc,
		meanEncoder:  NewLinear(cfg.Hidden, cfg.Out, backend),
		varEncoder:   NewLinear(cfg.Hidden, cfg.Out, backend),
		distribution: distribution,
		varEps:       varEps,
		backend:      backend,
	}
}

// Forward encodes a [batch, features] input into the posterior mean qm
// and variance qv, and draws the sample z = transform(qm + sqrt(qv) * eps)
// with eps drawn from a standard normal.
func (e *Encoder[B]) Forward(x *tensor.Tensor[float32, B], covariates ...*tensor.Tensor[int64, B]) (qm, qv, z *tensor.Tensor[float32, B]) {
	q := e.fc.Forward(x, covariates...)

	qm = e.meanEncoder.Forward(q)
	qv = e.varEncoder.Forward(q).Exp().AddScalar(e.varEps)
	z = e.Sample(qm, qv)

	return qm, qv, z
}

// Sample draws one reparameterized latent sample from the diagonal
// Gaussian with mean qm and variance qv, applying the encoder's latent
// transformation.
func (e *Encoder[B]) Sample(qm, qv *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	std := qv.Sqrt()
	eps := tensor.Randn[float32](qm.Shape(), e.backend)

	// eps and std are fresh, so the in-place path may consume them;
	// qm only ever appears as a right operand and stays intact.
	scaled := eps.Mul(std)
	z := scaled.Add(qm)

	if e.distribution == DistLogNormal {
		z = z.Softmax(-1)
	}
	return z
}

// Parameters returns the parameters of the fully connected stack and
// both heads.
func (e *Encoder[B]) Parameters() []*Parameter[B] {
	params := e.fc.Parameters()
	params = append(params, e.meanEncoder.Parameters()...)
	params = append(params, e.varEncoder.Parameters()...)
	return params
}

// SetTraining switches the fully connected stack between training and
// evaluation behavior.
func (e *Encoder[B]) SetTraining(training bool) {
	e.fc.SetTraining(training)
}

// FC returns the fully connected stack. The adaptation loader uses it
// to reach the first-layer weights and the batch normalization stages.
func (e *Encoder[B]) FC() *FCBlock[B] {
	return e.fc
}

// MeanEncoder returns the posterior-mean head.
func (e *Encoder[B]) MeanEncoder() *Linear[B] {
	return e.meanEncoder
}

// VarEncoder returns the posterior-variance head.
func (e *Encoder[B]) VarEncoder() *Linear[B] {
	return e.varEncoder
}

// Distribution returns the configured latent transformation.
func (e *Encoder[B]) Distribution() Distribution {
	return e.distribution
}

// StateDict returns the encoder's parameters and buffers keyed by
// dotted path, e.g. "encoder.fc_layers.0.linear.weight" or
// "mean_encoder.weight".
func (e *Encoder[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	MergeStateDict(stateDict, "encoder.", e.fc.StateDict())
	MergeStateDict(stateDict, "mean_encoder.", e.meanEncoder.StateDict())
	MergeStateDict(stateDict, "var_encoder.", e.varEncoder.StateDict())
	return stateDict
}

// LoadStateDict loads the encoder's parameters and buffers from a
// state dictionary produced by StateDict.
func (e *Encoder[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := LoadSubmodule(stateDict, "encoder.", e.fc); err != nil {
		return fmt.Errorf("failed to load encoder stack: %w", err)
	}
	if err := LoadSubmodule(stateDict, "mean_encoder.", e.meanEncoder); err != nil {
		return fmt.Errorf("failed to load mean head: %w", err)
	}
	if err := LoadSubmodule(stateDict, "var_encoder.", e.varEncoder); err != nil {
		return fmt.Errorf("failed to load variance head: %w", err)
	}
	return nil
}

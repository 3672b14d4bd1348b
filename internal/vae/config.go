package vae

import (
	"fmt"

	"github.com/arches-ml/arches/internal/nn"
)

// Dispersion selects how the negative-binomial dispersion is shared.
type Dispersion string

// Dispersion modes. The mode decides the shape of the px_r parameter,
// which is why it belongs to the saved constructor arguments: a loaded
// artifact must rebuild the exact same parameter set.
const (
	// DispersionGene shares one dispersion per gene, px_r [genes].
	DispersionGene Dispersion = "gene"

	// DispersionGeneBatch keeps a dispersion per gene and batch,
	// px_r [genes, batches]. The batch axis is last so a grown batch
	// vocabulary extends it by appended columns.
	DispersionGeneBatch Dispersion = "gene-batch"

	// DispersionGeneLabel keeps a dispersion per gene and label,
	// px_r [genes, labels].
	DispersionGeneLabel Dispersion = "gene-label"

	// DispersionGeneCell predicts a dispersion per cell and gene from
	// the decoder; there is no px_r parameter.
	DispersionGeneCell Dispersion = "gene-cell"
)

// Likelihood selects the count likelihood the decoder parameterizes.
type Likelihood string

// Count likelihoods.
const (
	LikelihoodZINB    Likelihood = "zinb"
	LikelihoodNB      Likelihood = "nb"
	LikelihoodPoisson Likelihood = "poisson"
)

// Config holds the constructor arguments of a VAE. It is persisted as
// the init-params payload of saved artifacts, so every field that
// affects the parameter set must live here.
//
// JSON keys follow the Python stack's argument names, keeping saved
// descriptors readable next to checkpoints from that ecosystem.
type Config struct {
	Genes   int `json:"n_input"`
	Batches int `json:"n_batch"`
	Labels  int `json:"n_labels"`
	Hidden  int `json:"n_hidden"`
	Latent  int `json:"n_latent"`
	Layers  int `json:"n_layers"`

	Dropout float32 `json:"dropout_rate"`

	Dispersion Dispersion `json:"dispersion"`
	Likelihood Likelihood `json:"gene_likelihood"`

	// LatentDistribution selects the latent transformation of the
	// z encoder: nn.DistNormal or nn.DistLogNormal.
	LatentDistribution nn.Distribution `json:"latent_distribution"`

	// LogVariational feeds log(1 + x) to the encoders. The decoder
	// still parameterizes a likelihood over raw counts.
	LogVariational bool `json:"log_variational"`

	// EncodeCovariates injects the batch covariate into the encoders
	// as well as the decoder. Required if the encoder side should
	// adapt to new batches through appended input columns.
	EncodeCovariates bool `json:"encode_covariates"`

	// DeepInjectCovariates injects covariates into every layer of the
	// conditioned blocks instead of only the first.
	DeepInjectCovariates bool `json:"deeply_inject_covariates"`

	UseBatchNorm bool `json:"use_batch_norm"`
	UseLayerNorm bool `json:"use_layer_norm"`
}

// DefaultConfig returns the standard architecture for a dataset with
// the given gene, batch, and label counts: one hidden layer of 128
// units, a 10-dimensional latent space, 10% dropout, per-gene
// dispersion, ZINB likelihood, batch-normalized stacks.
func DefaultConfig(genes, batches, labels int) Config {
	return Config{
		Genes:              genes,
		Batches:            batches,
		Labels:             labels,
		Hidden:             128,
		Latent:             10,
		Layers:             1,
		Dropout:            0.1,
		Dispersion:         DispersionGene,
		Likelihood:         LikelihoodZINB,
		LatentDistribution: nn.DistNormal,
		LogVariational:     true,
		UseBatchNorm:       true,
	}
}

// Validate checks that the configuration can construct a model.
func (c Config) Validate() error {
	if c.Genes < 1 {
		return fmt.Errorf("vae: config needs at least one gene, got %d", c.Genes)
	}
	if c.Batches < 1 {
		return fmt.Errorf("vae: config needs at least one batch, got %d", c.Batches)
	}
	if c.Labels < 1 {
		return fmt.Errorf("vae: config needs at least one label, got %d", c.Labels)
	}
	if c.Hidden < 1 || c.Latent < 1 || c.Layers < 1 {
		return fmt.Errorf("vae: config needs positive hidden/latent/layers, got %d/%d/%d",
			c.Hidden, c.Latent, c.Layers)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("vae: dropout rate must be in [0, 1), got %g", c.Dropout)
	}
	switch c.Dispersion {
	case DispersionGene, DispersionGeneBatch, DispersionGeneLabel, DispersionGeneCell:
	default:
		return fmt.Errorf("vae: unknown dispersion mode %q", c.Dispersion)
	}
	switch c.Likelihood {
	case LikelihoodZINB, LikelihoodNB, LikelihoodPoisson:
	default:
		return fmt.Errorf("vae: unknown likelihood %q", c.Likelihood)
	}
	switch c.LatentDistribution {
	case nn.DistNormal, nn.DistLogNormal:
	default:
		return fmt.Errorf("vae: unknown latent distribution %q", c.LatentDistribution)
	}
	return nil
}

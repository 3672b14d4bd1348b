// Package model ties a VAE to the data registry it was set up against
// and moves the pair in and out of .arcv artifacts. The artifact always
// carries the constructor parameters and the registry in its header, so
// a saved model can be rebuilt, inspected, or adapted to a new dataset
// without guessing at its architecture.
package model

import (
	"fmt"

	"github.com/arches-ml/arches/internal/data"
	"github.com/arches-ml/arches/internal/tensor"
	"github.com/arches-ml/arches/internal/vae"
)

// Model is a VAE bound to the registry describing its training data.
type Model[B tensor.Backend] struct {
	vae      *vae.VAE[B]
	registry *data.Registry
	backend  B
	trained  bool
}

// DefaultConfig returns the standard architecture sized for a registry:
// gene, batch, and label counts come from the registry's summary.
func DefaultConfig(registry *data.Registry) vae.Config {
	return vae.DefaultConfig(
		registry.Summary.Genes,
		registry.Summary.Batches,
		registry.Summary.Labels,
	)
}

// New builds a model from a configuration and the registry of its
// reference data. The configuration's dimensions must agree with the
// registry summary; a mismatch means the caller is wiring a model to
// data it was not set up for.
func New[B tensor.Backend](cfg vae.Config, registry *data.Registry, backend B) (*Model[B], error) {
	if registry == nil {
		return nil, fmt.Errorf("model: registry is required")
	}
	if cfg.Genes != registry.Summary.Genes {
		return nil, fmt.Errorf("model: config has %d genes but registry has %d",
			cfg.Genes, registry.Summary.Genes)
	}
	if cfg.Batches != registry.Summary.Batches {
		return nil, fmt.Errorf("model: config has %d batches but registry has %d",
			cfg.Batches, registry.Summary.Batches)
	}
	if cfg.Labels != registry.Summary.Labels {
		return nil, fmt.Errorf("model: config has %d labels but registry has %d",
			cfg.Labels, registry.Summary.Labels)
	}

	v, err := vae.New(cfg, backend)
	if err != nil {
		return nil, err
	}

	return &Model[B]{
		vae:      v,
		registry: registry.Clone(),
		backend:  backend,
	}, nil
}

// VAE returns the underlying network.
func (m *Model[B]) VAE() *vae.VAE[B] {
	return m.vae
}

// Registry returns the model's setup descriptor.
func (m *Model[B]) Registry() *data.Registry {
	return m.registry
}

// Config returns the constructor arguments of the underlying network.
func (m *Model[B]) Config() vae.Config {
	return m.vae.Config()
}

// Backend returns the compute backend the model runs on.
func (m *Model[B]) Backend() B {
	return m.backend
}

// IsTrained reports whether training completed on this model's weights.
// Freshly constructed and freshly adapted models are untrained.
func (m *Model[B]) IsTrained() bool {
	return m.trained
}

// SetTrained records whether the current weights are trained.
func (m *Model[B]) SetTrained(trained bool) {
	m.trained = trained
}

// LatentRepresentation encodes a dataset and returns the [cells, latent]
// posterior means. The dataset must have been set up against this
// model's registry so its batch codes resolve.
func (m *Model[B]) LatentRepresentation(ds *data.Dataset) (*tensor.Tensor[float32, B], error) {
	if got, want := ds.NumGenes(), m.Config().Genes; got != want {
		return nil, fmt.Errorf("model: dataset has %d genes but the model expects %d", got, want)
	}

	xRaw, err := data.GetFromRegistry(ds, m.registry, data.FieldX)
	if err != nil {
		return nil, err
	}
	batchRaw, err := data.GetFromRegistry(ds, m.registry, data.FieldBatch)
	if err != nil {
		return nil, err
	}

	x, err := countsTensor[B](xRaw, m.backend)
	if err != nil {
		return nil, err
	}
	batch := tensor.New[int64](batchRaw, m.backend)

	m.vae.SetTraining(false)
	return m.vae.Latent(x, batch), nil
}

// countsTensor views a count matrix as float32, converting float64
// storage on the way.
func countsTensor[B tensor.Backend](raw *tensor.RawTensor, backend B) (*tensor.Tensor[float32, B], error) {
	switch raw.DType() {
	case tensor.Float32:
		return tensor.New[float32](raw, backend), nil
	case tensor.Float64:
		return tensor.New[float64](raw, backend).Float32(), nil
	default:
		return nil, fmt.Errorf("model: count matrix must be float32 or float64, got %s", raw.DType())
	}
}

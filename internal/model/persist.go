package model

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/arches-ml/arches/internal/data"
	"github.com/arches-ml/arches/internal/serialization"
	"github.com/arches-ml/arches/internal/tensor"
	"github.com/arches-ml/arches/internal/vae"
)

// modelType is stamped into artifact headers written by Save.
const modelType = "VAE"

// Save and load errors.
var (
	// ErrMissingInitParams marks an artifact whose header lacks the
	// constructor parameters. Such a file was not written through Save
	// and cannot be rebuilt; loaders must reject it before reading any
	// tensor data.
	ErrMissingInitParams = errors.New("artifact header has no init params")

	// ErrMissingRegistry marks an artifact whose header lacks the data
	// registry, leaving no record of how training data mapped to
	// tensors.
	ErrMissingRegistry = errors.New("artifact header has no data registry")
)

// Save writes the model to path as a checksummed .arcv artifact. The
// header carries the constructor parameters, the registry, and the
// trained flag; the payload carries every parameter and buffer of the
// network.
func (m *Model[B]) Save(path string) error {
	initParams, err := json.Marshal(m.Config())
	if err != nil {
		return fmt.Errorf("failed to encode init params: %w", err)
	}
	registry, err := m.registry.JSON()
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}

	w, err := serialization.NewArcvWriter(path)
	if err != nil {
		return err
	}
	defer w.Close()

	return w.WriteStateDictWithHeader(m.vae.StateDict(), serialization.Header{
		FormatVersion: serialization.FormatVersionV2,
		ModelType:     modelType,
		Model: &serialization.ModelMeta{
			InitParams: initParams,
			Registry:   registry,
			IsTrained:  m.trained,
		},
	})
}

// Load rebuilds a model from an artifact written by Save.
//
// The header is parsed and vetted first: an artifact without init
// params or registry is rejected before any tensor data is read. The
// payload checksum is then verified and the weights loaded.
func Load[B tensor.Backend](path string, backend B) (*Model[B], error) {
	r, err := serialization.NewMmapReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	meta := r.ModelMeta()
	cfg, registry, err := DecodeMeta(meta)
	if err != nil {
		return nil, fmt.Errorf("cannot load %s: %w", path, err)
	}

	if err := r.VerifyChecksum(); err != nil {
		return nil, fmt.Errorf("cannot load %s: %w", path, err)
	}

	v, err := vae.New(cfg, backend)
	if err != nil {
		return nil, err
	}
	stateDict, err := r.ReadStateDict(backend)
	if err != nil {
		return nil, err
	}
	if err := v.LoadStateDict(stateDict); err != nil {
		return nil, fmt.Errorf("cannot load %s: %w", path, err)
	}

	return &Model[B]{
		vae:      v,
		registry: registry,
		backend:  backend,
		trained:  meta.IsTrained,
	}, nil
}

// DecodeMeta extracts the constructor parameters and registry from
// artifact model metadata. This is the gate every loader passes before
// reading tensor data: a header without init params or registry is
// rejected from the metadata alone.
func DecodeMeta(meta *serialization.ModelMeta) (vae.Config, *data.Registry, error) {
	if meta == nil || len(meta.InitParams) == 0 {
		return vae.Config{}, nil, ErrMissingInitParams
	}
	if len(meta.Registry) == 0 {
		return vae.Config{}, nil, ErrMissingRegistry
	}

	var cfg vae.Config
	if err := json.Unmarshal(meta.InitParams, &cfg); err != nil {
		return vae.Config{}, nil, fmt.Errorf("invalid init params: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return vae.Config{}, nil, fmt.Errorf("invalid init params: %w", err)
	}

	registry, err := data.ParseRegistry(meta.Registry)
	if err != nil {
		return vae.Config{}, nil, fmt.Errorf("invalid registry: %w", err)
	}

	return cfg, registry, nil
}

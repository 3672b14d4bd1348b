// Package transfer adapts a saved model to a query dataset.
//
// Adaptation rebuilds the saved architecture around the query's
// extended category vocabularies, merges the saved weights into the
// wider network, and freezes most of it, so that fine-tuning on the
// query only moves the parameters its new categories require. The
// reference model is never modified; the query model extends it.
package transfer

import (
	"fmt"

	"github.com/arches-ml/arches/internal/data"
	"github.com/arches-ml/arches/internal/model"
	"github.com/arches-ml/arches/internal/serialization"
	"github.com/arches-ml/arches/internal/tensor"
)

// Options configures LoadQuery.
type Options struct {
	// Device picks the backend: "auto", "cpu" or "gpu". Empty means
	// auto. An unavailable accelerator falls back to the CPU.
	Device string

	// Freeze controls which parts of the adapted model stay
	// trainable. Nil means DefaultFreezeConfig.
	Freeze *FreezeConfig
}

// Report describes what adaptation did to the network.
type Report struct {
	// Grown lists the parameters widened for new categories.
	Grown []Grown

	// Params records the freeze decision for every parameter.
	Params []ParamState
}

// LoadQuery builds a model for query from a saved artifact.
//
// The artifact's init params and registry are decoded and validated
// before any tensor payload is read; an artifact missing either is
// rejected without touching the payload. The query dataset is then set
// up against the saved registry with vocabulary extension, the saved
// weights are reconciled into the widened architecture, and the
// default or supplied freeze configuration is applied.
//
// The returned model is marked untrained: adaptation hands it to
// fine-tuning, not to inference.
func LoadQuery(query *data.Dataset, path string, opts Options) (*model.Model[tensor.Backend], *Report, error) {
	return LoadQueryBackend(query, path, opts, model.SelectBackend(opts.Device))
}

// LoadQueryBackend is LoadQuery on a caller-chosen backend.
func LoadQueryBackend[B tensor.Backend](query *data.Dataset, path string, opts Options, backend B) (*model.Model[B], *Report, error) {
	r, err := serialization.NewMmapReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open %s: %w", path, err)
	}
	defer r.Close()

	cfg, reg, err := model.DecodeMeta(r.ModelMeta())
	if err != nil {
		return nil, nil, fmt.Errorf("cannot adapt %s: %w", path, err)
	}

	newReg, err := data.TransferSetup(reg, query, true)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot adapt %s: %w", path, err)
	}
	cfg.Batches = newReg.Summary.Batches
	cfg.Labels = newReg.Summary.Labels

	if err := r.VerifyChecksum(); err != nil {
		return nil, nil, fmt.Errorf("cannot adapt %s: %w", path, err)
	}
	saved, err := r.ReadStateDict(backend)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot adapt %s: %w", path, err)
	}

	m, err := model.New(cfg, newReg, backend)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot adapt %s: %w", path, err)
	}
	merged, grown, err := Reconcile(saved, m.VAE().StateDict())
	if err != nil {
		return nil, nil, fmt.Errorf("cannot adapt %s: %w", path, err)
	}
	if err := m.VAE().LoadStateDict(merged); err != nil {
		return nil, nil, fmt.Errorf("cannot adapt %s: %w", path, err)
	}

	freeze := DefaultFreezeConfig()
	if opts.Freeze != nil {
		freeze = *opts.Freeze
	}
	states := Apply(m.VAE(), freeze, grown)

	// The merged weights are a starting point for fine-tuning on the
	// query, not a trained model.
	m.SetTrained(false)

	return m, &Report{Grown: grown, Params: states}, nil
}

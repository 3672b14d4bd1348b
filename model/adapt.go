// Copyright 2025 Arches ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package model

import (
	"github.com/arches-ml/arches/data"
	"github.com/arches-ml/arches/internal/tensor"
	"github.com/arches-ml/arches/internal/transfer"
)

// ----------------------------------------------------------------------------
// Query adaptation
// ----------------------------------------------------------------------------

// Options configures LoadQuery.
type Options = transfer.Options

// Report describes what adaptation did to the network: the parameters
// widened for new categories and the freeze decision applied to every
// parameter.
type Report = transfer.Report

// Grown records a parameter whose final dimension was widened by the
// query vocabulary, e.g. a first-layer weight that gained one input
// column per new batch.
type Grown = transfer.Grown

// ParamState records the freeze decision applied to one parameter.
// MaskFrom is the first trainable last-dim column for NewColumnsOnly
// parameters and -1 otherwise.
type ParamState = transfer.ParamState

// Decision says how a parameter may move during fine-tuning.
type Decision = transfer.Decision

// Every parameter of an adapted model lands in exactly one of these
// states.
const (
	// Trainable parameters receive full gradients.
	Trainable = transfer.Trainable

	// Frozen parameters receive no gradients.
	Frozen = transfer.Frozen

	// NewColumnsOnly parameters train only the input columns appended
	// for the query's new categories; columns carrying reference
	// weights receive zero gradient.
	NewColumnsOnly = transfer.NewColumnsOnly
)

// FreezeConfig selects which parts of an adapted model stay trainable.
// Use DefaultFreezeConfig for the standard surgery and adjust fields
// from there.
type FreezeConfig = transfer.FreezeConfig

// DefaultFreezeConfig returns the standard surgery: expression
// programs frozen, the library encoder and dispersion parameters
// trainable, and covariate columns open for the new categories.
func DefaultFreezeConfig() FreezeConfig {
	return transfer.DefaultFreezeConfig()
}

// Reconciliation errors. LoadQuery fails with one of these when the
// saved weights cannot be merged into the architecture the query
// requires.
var (
	// ErrStateMismatch reports saved and fresh state dictionaries that
	// disagree on which parameters exist.
	ErrStateMismatch = transfer.ErrStateMismatch

	// ErrDTypeMismatch reports a saved tensor whose element type differs
	// from the freshly initialized one.
	ErrDTypeMismatch = transfer.ErrDTypeMismatch

	// ErrShapeMismatch reports a shape difference that is not growth in
	// the final dimension.
	ErrShapeMismatch = transfer.ErrShapeMismatch
)

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
//
// Example:
//
//	adapted, report, err := model.LoadQuery(query, "reference.arcv", model.Options{
//	    Device: model.DeviceAuto,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, g := range report.Grown {
//	    fmt.Printf("grown %s: %d -> %d\n", g.Name, g.OldWidth, g.NewWidth)
//	}
func LoadQuery(query *data.Dataset, path string, opts Options) (*Model[tensor.Backend], *Report, error) {
	return transfer.LoadQuery(query, path, opts)
}

// LoadQueryBackend is LoadQuery on a caller-chosen backend.
//
// Example:
//
//	adapted, report, err := model.LoadQueryBackend(query, "reference.arcv",
//	    model.Options{}, cpu.New())
func LoadQueryBackend[B tensor.Backend](query *data.Dataset, path string, opts Options, backend B) (*Model[B], *Report, error) {
	return transfer.LoadQueryBackend(query, path, opts, backend)
}

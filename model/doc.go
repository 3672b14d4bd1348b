// Copyright 2025 Arches ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package model provides the high-level model API: building a
// variational autoencoder against a dataset registry, persisting it as
// a self-describing artifact, and adapting a saved model to a query
// dataset.
//
// # Overview
//
// A Model is a VAE bound to the registry describing its training data.
// The registry travels inside the saved artifact together with the
// constructor parameters, so a .arcv file is self-contained: it can be
// rebuilt, inspected, or adapted without any record of how it was
// produced.
//
// # Basic Usage
//
//	import (
//	    "github.com/arches-ml/arches/backend/cpu"
//	    "github.com/arches-ml/arches/data"
//	    "github.com/arches-ml/arches/model"
//	)
//
//	ds := data.Synthetic(data.DefaultSyntheticOptions())
//	reg, err := data.Setup(ds, data.SetupOptions{BatchKey: "batch", LabelsKey: "labels"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	m, err := model.New(model.DefaultConfig(reg), reg, cpu.New())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// ... train ...
//
//	latent, err := m.LatentRepresentation(ds)
//
// # Persistence
//
// Save writes a checksummed .arcv artifact whose header carries the
// constructor parameters, the registry, and the trained flag. Load
// rebuilds the exact architecture and restores the weights. An
// artifact missing its constructor parameters or registry is rejected
// from the header alone, before any tensor data is read
// (ErrMissingInitParams, ErrMissingRegistry).
//
//	if err := m.Save("reference.arcv"); err != nil {
//	    log.Fatal(err)
//	}
//	m2, err := model.Load("reference.arcv", cpu.New())
//
// # Adapting to New Data
//
// LoadQuery is the transfer-learning entry point. It rebuilds a saved
// reference model around a query dataset whose categorical
// vocabularies may extend the reference ones, merges the saved weights
// into the widened architecture, and freezes everything except the
// parts the new categories require:
//
//	query := data.Synthetic(...)  // e.g. new batches
//	adapted, report, err := model.LoadQuery(query, "reference.arcv", model.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, g := range report.Grown {
//	    fmt.Printf("%s: %d -> %d columns\n", g.Name, g.OldWidth, g.NewWidth)
//	}
//
// Reference weight columns keep their positions when a vocabulary
// grows; new categories get freshly initialized columns appended after
// them. The returned model is marked untrained: adaptation hands it to
// fine-tuning, not to inference.
//
// # Freeze Decisions
//
// Every parameter of an adapted model carries one of three decisions:
// Trainable (full gradients), Frozen (no gradients), or NewColumnsOnly
// (only the columns appended for new categories move). The decisions
// are recorded in the adaptation Report and enforced through the
// parameters themselves, so any optimizer built on this module observes
// them without freeze-aware logic of its own. FreezeConfig tunes the
// surgery; DefaultFreezeConfig is the standard one.
//
// # Device Selection
//
// SelectBackend maps a device request ("auto", "cpu", "gpu") to a
// compute backend. A GPU request on a machine without a usable adapter
// degrades to the CPU backend without error, so the same invocation
// works on any machine.
package model

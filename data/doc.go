// Copyright 2025 Arches ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package data provides the single-cell dataset container and the setup
// registry that binds models to it.
//
// # Overview
//
// A Dataset is a dense cells-by-genes count matrix plus per-cell
// annotation columns. Setup encodes the categorical columns (batch,
// labels) into integer codes, computes per-batch library-size
// statistics, and records where every model input lives in a Registry.
// The Registry travels inside saved model artifacts, so a query dataset
// can later be validated against the exact layout the reference model
// was trained on.
//
// # Basic Usage
//
//	import "github.com/arches-ml/arches/data"
//
//	// Generate a synthetic dataset (or load one from CSV)
//	ds := data.Synthetic(data.DefaultSyntheticOptions())
//
//	// Register the model inputs
//	reg, err := data.Setup(ds, data.SetupOptions{
//	    BatchKey:  "batch",
//	    LabelsKey: "labels",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Resolve a registered field to a tensor
//	batches, err := data.GetFromRegistry(ds, reg, data.FieldBatch)
//
// # Registered Fields
//
// Models fetch their inputs from a set-up dataset under fixed field
// names: FieldX (the count matrix), FieldBatch and FieldLabels (encoded
// categorical codes), FieldLibraryMu and FieldLibraryVar (per-cell log
// library-size statistics). GetFromRegistry resolves any of them. When
// X holds normalized values, SetupOptions.Layer registers a named layer
// as the count input instead, and FieldX resolves to that layer.
//
// # Category Vocabularies
//
// A CategoricalMapping is the ordered vocabulary of one categorical
// column; a category's code is its index. Vocabularies are append-only:
// TransferSetup with extension enabled grows a vocabulary by appending
// the query's unseen categories after the reference ones, never
// reordering codes a trained model has already bound weight columns to.
// Without extension, unseen query categories are an error
// (ErrUnseenCategory).
//
// # Loading and Saving
//
// LoadCSV and SaveCSV move datasets through gene-named CSV matrices
// with an optional annotation sidecar. ReadCSV, WriteCSV, ReadObsCSV
// and WriteObsCSV are the stream-level pieces. Concat stacks datasets
// cell-wise, which is how a reference and a query are combined for
// joint inspection.
package data

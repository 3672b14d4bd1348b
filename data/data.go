// Copyright 2025 Arches ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package data

import (
	"encoding/json"
	"io"

	"github.com/arches-ml/arches/internal/data"
	"github.com/arches-ml/arches/tensor"
)

// ----------------------------------------------------------------------------
// Dataset
// ----------------------------------------------------------------------------

// Dataset is a dense single-cell expression container: a cells-by-genes
// count matrix with per-cell annotations.
//
// Obs holds raw categorical columns as strings (one value per cell).
// Setup derives integer code columns from them into Codes and numeric
// per-cell statistics into ObsNum; those derived columns are what the
// registry points at. Layers holds alternative matrices aligned with X,
// so raw counts can ride alongside a normalized X and be registered as
// the model input instead. Uns carries free-form metadata, including
// the registry of the last setup.
//
// Methods: NumCells, NumGenes, Validate, SetObs, SetLayer.
type Dataset = data.Dataset

// NewDataset wraps a count matrix in an empty container. The matrix
// must be 2-D; annotation maps start empty.
//
// Example:
//
//	x, _ := tensor.NewRaw(tensor.Shape{400, 100}, tensor.Float32, tensor.CPU)
//	ds, err := data.NewDataset(x)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ds.SetObs("batch", batchValues)
func NewDataset(x *tensor.RawTensor) (*Dataset, error) {
	return data.NewDataset(x)
}

// Sentinel errors for dataset validation and registry resolution.
var (
	// ErrGeneCountMismatch reports a query dataset whose gene axis does
	// not match the reference the registry was built on.
	ErrGeneCountMismatch = data.ErrGeneCountMismatch

	// ErrUnseenCategory reports a query category absent from the
	// reference mapping when extension was not requested.
	ErrUnseenCategory = data.ErrUnseenCategory

	// ErrFieldNotRegistered reports a field name the registry does not
	// know about.
	ErrFieldNotRegistered = data.ErrFieldNotRegistered

	// ErrNotSetUp reports a dataset missing the encoded columns a
	// registered field resolves to. Run Setup or TransferSetup first.
	ErrNotSetUp = data.ErrNotSetUp
)

// ----------------------------------------------------------------------------
// Registry
// ----------------------------------------------------------------------------

// Registered field names. Models fetch their inputs under these keys.
const (
	FieldX          = data.FieldX
	FieldBatch      = data.FieldBatch
	FieldLabels     = data.FieldLabels
	FieldLibraryMu  = data.FieldLibraryMu
	FieldLibraryVar = data.FieldLibraryVar
)

// Dataset attributes a FieldLoc can point into.
const (
	AttrX      = data.AttrX
	AttrObs    = data.AttrObs
	AttrObsNum = data.AttrObsNum
	AttrCodes  = data.AttrCodes
	AttrLayers = data.AttrLayers
)

// KeyNone marks a field resolved at the attribute level rather than
// through a keyed column.
const KeyNone = data.KeyNone

// UnsKey is where Setup stores the active registry inside Dataset.Uns.
const UnsKey = data.UnsKey

// FieldLoc locates a registered field inside a Dataset.
type FieldLoc = data.FieldLoc

// CategoricalMapping is the ordered vocabulary of one categorical
// column. A category's code is its index, so the slice order is part
// of the trained model: extension may append, never reorder.
//
// Methods: NumCategories, Code.
type CategoricalMapping = data.CategoricalMapping

// SummaryStats records dataset-level counts and the per-batch
// library-size statistics the likelihood conditions on.
type SummaryStats = data.SummaryStats

// Registry is the setup descriptor: where each model input lives in
// the dataset, the ordered categorical vocabularies, and summary
// statistics of the data the model was set up on. It is persisted
// verbatim in the model artifact header.
//
// Methods: Categorical, Clone, JSON.
type Registry = data.Registry

// ParseRegistry decodes a registry from an artifact header.
func ParseRegistry(raw json.RawMessage) (*Registry, error) {
	return data.ParseRegistry(raw)
}

// GetFromRegistry resolves a registered field to a tensor.
//
// The count matrix comes back as stored. Encoded categorical columns
// come back as [cells, 1] int64, numeric columns as [cells, 1]
// float32, matching what the model layers consume.
//
// Example:
//
//	batches, err := data.GetFromRegistry(ds, reg, data.FieldBatch)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	codes := batches.AsInt64()
func GetFromRegistry(ds *Dataset, r *Registry, field string) (*tensor.RawTensor, error) {
	return data.GetFromRegistry(ds, r, field)
}

// ----------------------------------------------------------------------------
// Setup
// ----------------------------------------------------------------------------

// SetupOptions selects which dataset pieces feed the model.
//
// An empty key registers a synthesized single-category column, so
// models always see a batch and a label input even on unannotated
// data. Layer names an entry of ds.Layers as the count input instead
// of X.
type SetupOptions = data.SetupOptions

// Setup prepares a dataset for modeling and returns its registry.
//
// It encodes the batch and label columns into integer codes (category
// order is first appearance in the column), computes per-batch log
// library-size statistics, and records the location of every model
// input. The registry is also stored under ds.Uns[UnsKey].
//
// Example:
//
//	reg, err := data.Setup(ds, data.SetupOptions{
//	    BatchKey:  "batch",
//	    LabelsKey: "cell_type",
//	})
func Setup(ds *Dataset, opts SetupOptions) (*Registry, error) {
	return data.Setup(ds, opts)
}

// TransferSetup re-applies a reference registry to a query dataset.
//
// The query must present the reference gene count; anything else is a
// schema it cannot share parameters with. Categories unseen by the
// reference are an error unless extend is true, in which case each
// vocabulary grows by appending the query's new categories after the
// reference ones (reference codes never move). Library statistics are
// recomputed from the query's own cells.
//
// The reference registry is not modified; the returned registry is an
// extended copy and is also stored under query.Uns[UnsKey].
//
// Example:
//
//	queryReg, err := data.TransferSetup(refReg, query, true)
//	if err != nil {
//	    log.Fatal(err)
//	}
func TransferSetup(reg *Registry, query *Dataset, extend bool) (*Registry, error) {
	return data.TransferSetup(reg, query, extend)
}

// ExtendCategories appends the observed categories missing from a
// reference vocabulary, preserving reference order and first-appearance
// order of the new ones.
func ExtendCategories(categories []string, observed []string) []string {
	return data.ExtendCategories(categories, observed)
}

// ----------------------------------------------------------------------------
// Synthetic data
// ----------------------------------------------------------------------------

// SyntheticOptions sizes the generated dataset. Dropout is the
// zero-inflation probability applied entrywise; 0 disables it.
type SyntheticOptions = data.SyntheticOptions

// DefaultSyntheticOptions mirrors the classic simulation: two batches
// of 200 cells, 100 genes, three labels, 30% dropout.
func DefaultSyntheticOptions() SyntheticOptions {
	return data.DefaultSyntheticOptions()
}

// Synthetic generates a zero-inflated negative-binomial count dataset
// with per-batch library-size shifts and uniform random labels.
//
// The result is deterministic for a given options value. Obs columns
// "batch" and "labels" hold the category names.
//
// Example:
//
//	opts := data.DefaultSyntheticOptions()
//	opts.Cells = 1000
//	opts.Batches = 3
//	ds := data.Synthetic(opts)
func Synthetic(opts SyntheticOptions) *Dataset {
	return data.Synthetic(opts)
}

// ----------------------------------------------------------------------------
// Combination
// ----------------------------------------------------------------------------

// Concat stacks datasets on the genes they share, in the first
// dataset's gene order. Obs columns present in every input survive;
// derived columns (codes, numeric stats, Uns) do not, since codes and
// library statistics are only meaningful for one setup. Run Setup on
// the result.
//
// Example:
//
//	combined, err := data.Concat(reference, query)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	reg, err := data.Setup(combined, data.SetupOptions{BatchKey: "batch"})
func Concat(datasets ...*Dataset) (*Dataset, error) {
	return data.Concat(datasets...)
}

// ----------------------------------------------------------------------------
// CSV I/O
// ----------------------------------------------------------------------------

// ReadCSV parses a count matrix. The first header cell names the
// cell-id column, the rest are gene names; each row carries one cell's
// counts, parsed as float32.
func ReadCSV(r io.Reader) (*Dataset, error) {
	return data.ReadCSV(r)
}

// WriteCSV writes the count matrix in the layout ReadCSV reads.
// Missing cell or gene names fall back to positional ones.
func WriteCSV(w io.Writer, ds *Dataset) error {
	return data.WriteCSV(w, ds)
}

// ReadObsCSV merges annotation columns into an existing dataset. Rows
// follow dataset order; the first column is the cell identifier and is
// not stored. Every later column becomes a categorical obs column.
func ReadObsCSV(r io.Reader, ds *Dataset) error {
	return data.ReadObsCSV(r, ds)
}

// WriteObsCSV writes the named categorical columns alongside cell
// identifiers, in the layout ReadObsCSV reads.
func WriteObsCSV(w io.Writer, ds *Dataset, columns []string) error {
	return data.WriteObsCSV(w, ds, columns)
}

// LoadCSV reads a count matrix file, optionally merging an obs file.
// Pass "" to skip the obs file.
//
// Example:
//
//	ds, err := data.LoadCSV("counts.csv", "annotations.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadCSV(matrixPath, obsPath string) (*Dataset, error) {
	return data.LoadCSV(matrixPath, obsPath)
}

// SaveCSV writes the count matrix to a file.
func SaveCSV(path string, ds *Dataset) error {
	return data.SaveCSV(path, ds)
}

package data

import (
	"fmt"
	"log"
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/stat"

	"github.com/arches-ml/arches/internal/parallel"
	"github.com/arches-ml/arches/internal/tensor"
)

// registryVersion is the descriptor schema version stamped by Setup.
const registryVersion = "1"

// countSpotCheckSize is how many leading matrix values the raw-count
// heuristic inspects.
const countSpotCheckSize = 10

// SetupOptions selects which dataset pieces feed the model.
//
// An empty key registers a synthesized single-category column, so
// models always see a batch and a label input even on unannotated
// data. Layer names an entry of ds.Layers as the count input instead
// of X, the usual arrangement when X holds normalized values and the
// raw counts live in a layer. The zero Parallel config selects
// parallel.DefaultConfig.
type SetupOptions struct {
	BatchKey  string
	LabelsKey string
	Layer     string
	Parallel  parallel.Config
}

// Setup prepares a dataset for modeling and returns its registry.
//
// It encodes the batch and label columns into integer codes (category
// order is first appearance in the column), computes per-batch log
// library-size statistics, and records the location of every model
// input. The registry is also stored under ds.Uns[UnsKey].
//
// Count data is spot-checked, not enforced: negative or fractional
// values in the first few entries produce a warning because the count
// likelihoods assume raw counts, but normalized data may still be
// useful with a Gaussian-style likelihood.
func Setup(ds *Dataset, opts SetupOptions) (*Registry, error) {
	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("Setup: %w", err)
	}
	counts := ds.X
	xLoc := FieldLoc{Attr: AttrX, Key: KeyNone}
	if opts.Layer != "" {
		m, ok := ds.Layers[opts.Layer]
		if !ok {
			return nil, fmt.Errorf("Setup: layer %q not found", opts.Layer)
		}
		counts = m
		xLoc = FieldLoc{Attr: AttrLayers, Key: opts.Layer}
	}
	if dt := counts.DType(); dt != tensor.Float32 && dt != tensor.Float64 {
		return nil, fmt.Errorf("Setup: count matrix must be float32 or float64, got %s", dt)
	}
	cfg := opts.Parallel
	if cfg == (parallel.Config{}) {
		cfg = parallel.DefaultConfig()
	}

	if !looksLikeCounts(counts) {
		log.Printf("data: count matrix has negative or non-integer values in its first %d entries; count likelihoods expect raw counts", countSpotCheckSize)
	}

	batchMap, batchCodes, err := encodeCategorical(ds, opts.BatchKey, FieldBatch)
	if err != nil {
		return nil, fmt.Errorf("Setup: %w", err)
	}
	labelMap, labelCodes, err := encodeCategorical(ds, opts.LabelsKey, FieldLabels)
	if err != nil {
		return nil, fmt.Errorf("Setup: %w", err)
	}
	ds.Codes[colBatch] = batchCodes
	ds.Codes[colLabels] = labelCodes

	stats := computeLibraryStats(counts, batchCodes, len(batchMap.Categories), cfg)
	ds.ObsNum[colLibraryMu] = stats.cellMeans
	ds.ObsNum[colLibraryVar] = stats.cellVars

	reg := &Registry{
		Version: registryVersion,
		Fields: map[string]FieldLoc{
			FieldX:          xLoc,
			FieldBatch:      {Attr: AttrCodes, Key: colBatch},
			FieldLabels:     {Attr: AttrCodes, Key: colLabels},
			FieldLibraryMu:  {Attr: AttrObsNum, Key: colLibraryMu},
			FieldLibraryVar: {Attr: AttrObsNum, Key: colLibraryVar},
		},
		Categoricals: []CategoricalMapping{batchMap, labelMap},
		Summary: SummaryStats{
			Cells:           ds.NumCells(),
			Genes:           ds.NumGenes(),
			Batches:         len(batchMap.Categories),
			Labels:          len(labelMap.Categories),
			LibraryLogMeans: stats.batchMeans,
			LibraryLogVars:  stats.batchVars,
		},
	}
	if ds.Uns == nil {
		ds.Uns = make(map[string]any)
	}
	ds.Uns[UnsKey] = reg
	return reg, nil
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
func TransferSetup(reg *Registry, query *Dataset, extend bool) (*Registry, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("TransferSetup: %w", err)
	}
	counts := query.X
	if loc, ok := reg.Fields[FieldX]; ok && loc.Attr == AttrLayers {
		m, ok := query.Layers[loc.Key]
		if !ok {
			return nil, fmt.Errorf("TransferSetup: query is missing layer %q required by the reference setup", loc.Key)
		}
		counts = m
	}
	if dt := counts.DType(); dt != tensor.Float32 && dt != tensor.Float64 {
		return nil, fmt.Errorf("TransferSetup: count matrix must be float32 or float64, got %s", dt)
	}
	if query.NumGenes() != reg.Summary.Genes {
		return nil, fmt.Errorf("TransferSetup: %w: reference has %d genes, query has %d",
			ErrGeneCountMismatch, reg.Summary.Genes, query.NumGenes())
	}

	if !looksLikeCounts(counts) {
		log.Printf("data: count matrix has negative or non-integer values in its first %d entries; count likelihoods expect raw counts", countSpotCheckSize)
	}

	out := reg.Clone()
	for i := range out.Categoricals {
		m := &out.Categoricals[i]

		var values []string
		if m.Column == "" {
			// The reference synthesized this column; the query gets the
			// same single category.
			values = constantColumn(query.NumCells(), m.Categories[0])
		} else {
			col, ok := query.Obs[m.Column]
			if !ok {
				return nil, fmt.Errorf("TransferSetup: query is missing obs column %q required by the reference setup", m.Column)
			}
			values = col
		}

		unseen := unseenCategories(m.Categories, values)
		if len(unseen) > 0 {
			if !extend {
				return nil, fmt.Errorf("TransferSetup: %w: field %s has %v", ErrUnseenCategory, m.Field, unseen)
			}
			m.Categories = ExtendCategories(m.Categories, values)
		}

		codes, err := encodeWithMapping(values, m)
		if err != nil {
			return nil, fmt.Errorf("TransferSetup: %w", err)
		}
		query.Codes[codeColumn(m.Field)] = codes
	}

	cfg := parallel.DefaultConfig()
	batchCodes := query.Codes[codeColumn(FieldBatch)]
	nBatches := out.Categorical(FieldBatch).NumCategories()
	stats := computeLibraryStats(counts, batchCodes, nBatches, cfg)
	query.ObsNum[colLibraryMu] = stats.cellMeans
	query.ObsNum[colLibraryVar] = stats.cellVars

	out.Summary.Cells = query.NumCells()
	out.Summary.Batches = nBatches
	out.Summary.Labels = out.Categorical(FieldLabels).NumCategories()
	out.Summary.LibraryLogMeans = stats.batchMeans
	out.Summary.LibraryLogVars = stats.batchVars

	if query.Uns == nil {
		query.Uns = make(map[string]any)
	}
	query.Uns[UnsKey] = out
	return out, nil
}

// ExtendCategories unions observed values into an ordered category
// list. Existing entries keep their positions; new categories are
// appended in first-seen order. The input slices are not modified.
//
// Appending is the whole point: a category's code is its index, and
// trained one-hot weight columns are bound to those indices.
func ExtendCategories(categories []string, observed []string) []string {
	out := append([]string(nil), categories...)
	seen := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		seen[c] = struct{}{}
	}
	for _, v := range observed {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// encodeCategorical builds the mapping and code column for one field.
// An empty obs key synthesizes a single-category column so downstream
// layers always have a batch and label input to condition on.
func encodeCategorical(ds *Dataset, obsKey, field string) (CategoricalMapping, []int64, error) {
	if obsKey == "" {
		return CategoricalMapping{
			Field:      field,
			Column:     "",
			Categories: []string{"0"},
		}, make([]int64, ds.NumCells()), nil
	}

	values, ok := ds.Obs[obsKey]
	if !ok {
		return CategoricalMapping{}, nil, fmt.Errorf("obs column %q not found for field %s", obsKey, field)
	}

	categories := make([]string, 0, 8)
	index := make(map[string]int64, 8)
	for _, v := range values {
		if _, ok := index[v]; !ok {
			index[v] = int64(len(categories))
			categories = append(categories, v)
		}
	}

	m := CategoricalMapping{Field: field, Column: obsKey, Categories: categories}
	codes := make([]int64, len(values))
	for i, v := range values {
		codes[i] = index[v]
	}
	return m, codes, nil
}

// encodeWithMapping encodes values against a fixed vocabulary. Every
// value must be mapped; TransferSetup extends the vocabulary first.
func encodeWithMapping(values []string, m *CategoricalMapping) ([]int64, error) {
	index := make(map[string]int64, len(m.Categories))
	for i, c := range m.Categories {
		index[c] = int64(i)
	}
	codes := make([]int64, len(values))
	for i, v := range values {
		code, ok := index[v]
		if !ok {
			return nil, fmt.Errorf("%w: field %s value %q", ErrUnseenCategory, m.Field, v)
		}
		codes[i] = code
	}
	return codes, nil
}

// codeColumn names the derived code column for a field.
func codeColumn(field string) string {
	switch field {
	case FieldBatch:
		return colBatch
	case FieldLabels:
		return colLabels
	default:
		return "_arches_" + field
	}
}

// unseenCategories returns, in first-seen order, the values absent
// from the existing vocabulary.
func unseenCategories(categories []string, values []string) []string {
	known := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		known[c] = struct{}{}
	}
	var unseen []string
	for _, v := range values {
		if _, ok := known[v]; !ok {
			known[v] = struct{}{}
			unseen = append(unseen, v)
		}
	}
	return unseen
}

// constantColumn fills a column with one value.
func constantColumn(n int, value string) []string {
	col := make([]string, n)
	for i := range col {
		col[i] = value
	}
	return col
}

// libraryStats carries log library-size statistics at both
// granularities: one (mean, variance) pair per batch, and those pairs
// broadcast back onto cells for the registry's per-cell fields.
type libraryStats struct {
	batchMeans []float64
	batchVars  []float64
	cellMeans  []float64
	cellVars   []float64
}

// computeLibraryStats computes per-batch statistics of the log total
// count per cell. The library-size prior in the model conditions on
// these. Empty cells contribute log-size 0 and trigger a warning,
// since a zero row usually means upstream filtering was skipped.
//
// Batch codes with no cells (possible after vocabulary extension, when
// the reference knows batches the query never observed) keep zero
// statistics.
func computeLibraryStats(counts *tensor.RawTensor, batchCodes []int64, nBatches int, cfg parallel.Config) libraryStats {
	cells := counts.Shape()[0]
	logTotals := make([]float64, cells)
	var empty atomic.Int64

	parallel.ForChunks(cells, func(start, end int) {
		for i := start; i < end; i++ {
			sum := rowSum(counts, i)
			if sum > 0 {
				logTotals[i] = math.Log(sum)
			} else {
				empty.Add(1)
			}
		}
	}, cfg)
	if n := empty.Load(); n > 0 {
		log.Printf("data: %d empty cells (zero total count); their log library size is set to 0 and may skew inference", n)
	}

	perBatch := make([][]float64, nBatches)
	for i, code := range batchCodes {
		perBatch[code] = append(perBatch[code], logTotals[i])
	}

	s := libraryStats{
		batchMeans: make([]float64, nBatches),
		batchVars:  make([]float64, nBatches),
		cellMeans:  make([]float64, cells),
		cellVars:   make([]float64, cells),
	}
	for b, logs := range perBatch {
		if len(logs) == 0 {
			continue
		}
		mean, variance := stat.PopMeanVariance(logs, nil)
		s.batchMeans[b] = mean
		s.batchVars[b] = variance
	}
	for i, code := range batchCodes {
		s.cellMeans[i] = s.batchMeans[code]
		s.cellVars[i] = s.batchVars[code]
	}
	return s
}

// looksLikeCounts spot-checks the first few matrix values for
// nonnegative integers.
func looksLikeCounts(x *tensor.RawTensor) bool {
	n := x.NumElements()
	if n > countSpotCheckSize {
		n = countSpotCheckSize
	}
	switch x.DType() {
	case tensor.Float32:
		for _, v := range x.AsFloat32()[:n] {
			f := float64(v)
			if f < 0 || f != math.Trunc(f) {
				return false
			}
		}
	case tensor.Float64:
		for _, v := range x.AsFloat64()[:n] {
			if v < 0 || v != math.Trunc(v) {
				return false
			}
		}
	}
	return true
}

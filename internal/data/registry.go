package data

import (
	"encoding/json"
	"fmt"

	"github.com/arches-ml/arches/internal/tensor"
)

// Registered field names. Models fetch their inputs under these keys.
const (
	FieldX          = "X"
	FieldBatch      = "batch_indices"
	FieldLabels     = "labels"
	FieldLibraryMu  = "local_l_mean"
	FieldLibraryVar = "local_l_var"
)

// Dataset attributes a FieldLoc can point into.
const (
	AttrX      = "X"       // the count matrix itself
	AttrObs    = "obs"     // raw categorical columns
	AttrObsNum = "obs_num" // numeric columns
	AttrCodes  = "codes"   // encoded categorical columns
	AttrLayers = "layers"  // alternative matrices, keyed by layer name
)

// KeyNone marks a field resolved at the attribute level rather than
// through a keyed column. Serialized as the literal string so the
// descriptor JSON stays readable next to its Python counterpart.
const KeyNone = "None"

// Derived column names written into the dataset by Setup.
const (
	colBatch      = "_arches_batch"
	colLabels     = "_arches_labels"
	colLibraryMu  = "_arches_local_l_mean"
	colLibraryVar = "_arches_local_l_var"
)

// UnsKey is where Setup stores the active registry inside Dataset.Uns.
const UnsKey = "_arches"

// FieldLoc locates a registered field inside a Dataset.
type FieldLoc struct {
	Attr string `json:"attr_name"`
	Key  string `json:"attr_key"`
}

// CategoricalMapping is the ordered vocabulary of one categorical
// column. A category's code is its index, so the slice order is part
// of the trained model: extension may append, never reorder.
type CategoricalMapping struct {
	Field      string   `json:"field"`      // registered field name
	Column     string   `json:"column"`     // source obs column, "" when synthesized
	Categories []string `json:"categories"` // ordered, index = code
}

// NumCategories returns the vocabulary size.
func (m *CategoricalMapping) NumCategories() int { return len(m.Categories) }

// Code returns the integer code of a category, or -1 if unseen.
func (m *CategoricalMapping) Code(category string) int64 {
	for i, c := range m.Categories {
		if c == category {
			return int64(i)
		}
	}
	return -1
}

// SummaryStats records dataset-level counts and the per-batch
// library-size statistics the likelihood conditions on.
type SummaryStats struct {
	Cells   int `json:"n_cells"`
	Genes   int `json:"n_genes"`
	Batches int `json:"n_batches"`
	Labels  int `json:"n_labels"`

	// Log library-size mean and variance per batch code.
	LibraryLogMeans []float64 `json:"library_log_means,omitempty"`
	LibraryLogVars  []float64 `json:"library_log_vars,omitempty"`
}

// Registry is the setup descriptor: where each model input lives in
// the dataset, the ordered categorical vocabularies, and summary
// statistics of the data the model was set up on. It is persisted
// verbatim in the model artifact header.
type Registry struct {
	Version      string               `json:"version"`
	Fields       map[string]FieldLoc  `json:"data_registry"`
	Categoricals []CategoricalMapping `json:"categorical_mappings"`
	Summary      SummaryStats         `json:"summary_stats"`
}

// Categorical returns the mapping registered for a field, or nil.
func (r *Registry) Categorical(field string) *CategoricalMapping {
	for i := range r.Categoricals {
		if r.Categoricals[i].Field == field {
			return &r.Categoricals[i]
		}
	}
	return nil
}

// Clone returns a deep copy. TransferSetup works on a copy so the
// descriptor loaded from an artifact stays unmodified.
func (r *Registry) Clone() *Registry {
	out := &Registry{
		Version: r.Version,
		Fields:  make(map[string]FieldLoc, len(r.Fields)),
		Summary: r.Summary,
	}
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	out.Summary.LibraryLogMeans = append([]float64(nil), r.Summary.LibraryLogMeans...)
	out.Summary.LibraryLogVars = append([]float64(nil), r.Summary.LibraryLogVars...)
	out.Categoricals = make([]CategoricalMapping, len(r.Categoricals))
	for i, m := range r.Categoricals {
		out.Categoricals[i] = CategoricalMapping{
			Field:      m.Field,
			Column:     m.Column,
			Categories: append([]string(nil), m.Categories...),
		}
	}
	return out
}

// JSON encodes the registry in the form embedded in artifact headers.
func (r *Registry) JSON() (json.RawMessage, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("Registry.JSON: %w", err)
	}
	return raw, nil
}

// ParseRegistry decodes a registry from an artifact header.
func ParseRegistry(raw json.RawMessage) (*Registry, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("ParseRegistry: empty registry payload")
	}
	var r Registry
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("ParseRegistry: %w", err)
	}
	if r.Fields == nil {
		return nil, fmt.Errorf("ParseRegistry: descriptor has no data_registry")
	}
	return &r, nil
}

// GetFromRegistry resolves a registered field to a tensor.
//
// The count matrix comes back as stored. Encoded categorical columns
// come back as [cells, 1] int64, numeric columns as [cells, 1]
// float32, matching what the model layers consume.
func GetFromRegistry(ds *Dataset, r *Registry, field string) (*tensor.RawTensor, error) {
	loc, ok := r.Fields[field]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFieldNotRegistered, field)
	}

	switch loc.Attr {
	case AttrX:
		if ds.X == nil {
			return nil, fmt.Errorf("GetFromRegistry: dataset has no count matrix")
		}
		return ds.X, nil

	case AttrLayers:
		m, ok := ds.Layers[loc.Key]
		if !ok {
			return nil, fmt.Errorf("GetFromRegistry: dataset has no layer %q", loc.Key)
		}
		return m, nil

	case AttrCodes:
		col, ok := ds.Codes[loc.Key]
		if !ok {
			return nil, fmt.Errorf("%w: code column %q missing", ErrNotSetUp, loc.Key)
		}
		t, err := tensor.NewRaw(tensor.Shape{len(col), 1}, tensor.Int64, tensor.CPU)
		if err != nil {
			return nil, fmt.Errorf("GetFromRegistry: %w", err)
		}
		copy(t.AsInt64(), col)
		return t, nil

	case AttrObsNum:
		col, ok := ds.ObsNum[loc.Key]
		if !ok {
			return nil, fmt.Errorf("%w: numeric column %q missing", ErrNotSetUp, loc.Key)
		}
		t, err := tensor.NewRaw(tensor.Shape{len(col), 1}, tensor.Float32, tensor.CPU)
		if err != nil {
			return nil, fmt.Errorf("GetFromRegistry: %w", err)
		}
		dst := t.AsFloat32()
		for i, v := range col {
			dst[i] = float32(v)
		}
		return t, nil

	case AttrObs:
		return nil, fmt.Errorf("GetFromRegistry: field %q points at a raw string column; run Setup to encode it", field)

	default:
		return nil, fmt.Errorf("GetFromRegistry: unknown attribute %q for field %q", loc.Attr, field)
	}
}

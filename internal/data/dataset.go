package data

import (
	"errors"
	"fmt"

	"github.com/arches-ml/arches/internal/tensor"
)

// Sentinel errors for dataset validation and registry resolution.
var (
	// ErrGeneCountMismatch reports a query dataset whose gene axis does
	// not match the reference the registry was built on.
	ErrGeneCountMismatch = errors.New("query gene count does not match reference")

	// ErrUnseenCategory reports a query category absent from the
	// reference mapping when extension was not requested.
	ErrUnseenCategory = errors.New("category not present in reference mapping")

	// ErrFieldNotRegistered reports a field name the registry does not
	// know about.
	ErrFieldNotRegistered = errors.New("field not registered")

	// ErrNotSetUp reports a dataset missing the encoded columns a
	// registered field resolves to. Run Setup or TransferSetup first.
	ErrNotSetUp = errors.New("dataset has not been set up")
)

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
type Dataset struct {
	X        *tensor.RawTensor            // counts, [cells, genes]
	ObsNames []string                     // cell identifiers, optional
	VarNames []string                     // gene names, optional
	Obs      map[string][]string          // categorical columns
	ObsNum   map[string][]float64         // numeric columns
	Codes    map[string][]int64           // encoded categorical columns
	Layers   map[string]*tensor.RawTensor // alternative matrices, same shape as X
	Uns      map[string]any               // unstructured metadata
}

// NewDataset wraps a count matrix in an empty container. The matrix
// must be 2-D; annotation maps start empty.
func NewDataset(x *tensor.RawTensor) (*Dataset, error) {
	if x == nil {
		return nil, errors.New("NewDataset: nil count matrix")
	}
	if len(x.Shape()) != 2 {
		return nil, fmt.Errorf("NewDataset: count matrix must be 2-D, got shape %v", x.Shape())
	}
	return &Dataset{
		X:      x,
		Obs:    make(map[string][]string),
		ObsNum: make(map[string][]float64),
		Codes:  make(map[string][]int64),
		Layers: make(map[string]*tensor.RawTensor),
		Uns:    make(map[string]any),
	}, nil
}

// NumCells returns the number of cells (rows).
func (d *Dataset) NumCells() int {
	if d.X == nil {
		return 0
	}
	return d.X.Shape()[0]
}

// NumGenes returns the number of genes (columns).
func (d *Dataset) NumGenes() int {
	if d.X == nil {
		return 0
	}
	return d.X.Shape()[1]
}

// Validate checks internal consistency: a 2-D matrix and annotation
// columns whose lengths match the cell axis.
func (d *Dataset) Validate() error {
	if d.X == nil {
		return errors.New("dataset has no count matrix")
	}
	if len(d.X.Shape()) != 2 {
		return fmt.Errorf("count matrix must be 2-D, got shape %v", d.X.Shape())
	}
	cells, genes := d.NumCells(), d.NumGenes()
	if d.ObsNames != nil && len(d.ObsNames) != cells {
		return fmt.Errorf("obs names length %d does not match %d cells", len(d.ObsNames), cells)
	}
	if d.VarNames != nil && len(d.VarNames) != genes {
		return fmt.Errorf("var names length %d does not match %d genes", len(d.VarNames), genes)
	}
	for name, col := range d.Obs {
		if len(col) != cells {
			return fmt.Errorf("obs column %q length %d does not match %d cells", name, len(col), cells)
		}
	}
	for name, col := range d.ObsNum {
		if len(col) != cells {
			return fmt.Errorf("numeric column %q length %d does not match %d cells", name, len(col), cells)
		}
	}
	for name, col := range d.Codes {
		if len(col) != cells {
			return fmt.Errorf("code column %q length %d does not match %d cells", name, len(col), cells)
		}
	}
	for name, m := range d.Layers {
		if m == nil {
			return fmt.Errorf("layer %q is nil", name)
		}
		if len(m.Shape()) != 2 || m.Shape()[0] != cells || m.Shape()[1] != genes {
			return fmt.Errorf("layer %q shape %v does not match [%d %d]", name, m.Shape(), cells, genes)
		}
	}
	return nil
}

// SetObs installs a categorical column, allocating the map on first
// use so zero-value Datasets stay usable.
func (d *Dataset) SetObs(name string, values []string) error {
	if len(values) != d.NumCells() {
		return fmt.Errorf("SetObs: column %q length %d does not match %d cells", name, len(values), d.NumCells())
	}
	if d.Obs == nil {
		d.Obs = make(map[string][]string)
	}
	d.Obs[name] = values
	return nil
}

// SetLayer installs an alternative matrix under a name, allocating the
// map on first use. The matrix must match X's shape.
func (d *Dataset) SetLayer(name string, m *tensor.RawTensor) error {
	if m == nil {
		return fmt.Errorf("SetLayer: layer %q is nil", name)
	}
	if len(m.Shape()) != 2 || m.Shape()[0] != d.NumCells() || m.Shape()[1] != d.NumGenes() {
		return fmt.Errorf("SetLayer: layer %q shape %v does not match [%d %d]",
			name, m.Shape(), d.NumCells(), d.NumGenes())
	}
	if d.Layers == nil {
		d.Layers = make(map[string]*tensor.RawTensor)
	}
	d.Layers[name] = m
	return nil
}

// rowSum returns the total count of one cell of a matrix. Only float32
// and float64 matrices are supported; Setup rejects other dtypes before
// this runs.
func rowSum(x *tensor.RawTensor, row int) float64 {
	genes := x.Shape()[1]
	start := row * genes
	switch x.DType() {
	case tensor.Float32:
		vals := x.AsFloat32()[start : start+genes]
		var sum float64
		for _, v := range vals {
			sum += float64(v)
		}
		return sum
	case tensor.Float64:
		vals := x.AsFloat64()[start : start+genes]
		var sum float64
		for _, v := range vals {
			sum += v
		}
		return sum
	default:
		panic(fmt.Sprintf("data: unsupported count matrix dtype %s", x.DType()))
	}
}

package data

import (
	"fmt"

	"github.com/arches-ml/arches/internal/tensor"
)

// Concat stacks datasets on the genes they share, in the first
// dataset's gene order. Obs columns present in every input survive;
// layers and derived columns (codes, numeric stats, Uns) do not, since
// codes and library statistics are only meaningful for one setup and
// realigning layers is the caller's call. Run Setup on the result.
func Concat(datasets ...*Dataset) (*Dataset, error) {
	if len(datasets) == 0 {
		return nil, fmt.Errorf("Concat: no datasets")
	}
	for i, ds := range datasets {
		if err := ds.Validate(); err != nil {
			return nil, fmt.Errorf("Concat: dataset %d: %w", i, err)
		}
		if ds.VarNames == nil {
			return nil, fmt.Errorf("Concat: dataset %d has no gene names to align on", i)
		}
		if ds.X.DType() != tensor.Float32 {
			return nil, fmt.Errorf("Concat: dataset %d count matrix must be float32, got %s", i, ds.X.DType())
		}
	}

	// Column lookup per dataset, rejecting ambiguous duplicates.
	indexes := make([]map[string]int, len(datasets))
	for i, ds := range datasets {
		idx := make(map[string]int, len(ds.VarNames))
		for col, name := range ds.VarNames {
			if _, dup := idx[name]; dup {
				return nil, fmt.Errorf("Concat: dataset %d has duplicate gene name %q", i, name)
			}
			idx[name] = col
		}
		indexes[i] = idx
	}

	var shared []string
	for _, name := range datasets[0].VarNames {
		inAll := true
		for _, idx := range indexes[1:] {
			if _, ok := idx[name]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			shared = append(shared, name)
		}
	}
	if len(shared) == 0 {
		return nil, fmt.Errorf("Concat: datasets share no genes")
	}

	totalCells := 0
	for _, ds := range datasets {
		totalCells += ds.NumCells()
	}

	x, err := tensor.NewRaw(tensor.Shape{totalCells, len(shared)}, tensor.Float32, tensor.CPU)
	if err != nil {
		return nil, fmt.Errorf("Concat: %w", err)
	}
	out := x.AsFloat32()

	obsNames := make([]string, 0, totalCells)
	base := 0
	for k, ds := range datasets {
		cols := make([]int, len(shared))
		for j, name := range shared {
			cols[j] = indexes[k][name]
		}
		src := ds.X.AsFloat32()
		genes := ds.NumGenes()
		for i := 0; i < ds.NumCells(); i++ {
			row := src[i*genes : (i+1)*genes]
			dst := out[(base+i)*len(shared) : (base+i+1)*len(shared)]
			for j, col := range cols {
				dst[j] = row[col]
			}
			obsNames = append(obsNames, cellName(ds, i))
		}
		base += ds.NumCells()
	}

	merged := &Dataset{
		X:        x,
		ObsNames: obsNames,
		VarNames: shared,
		Obs:      make(map[string][]string),
		ObsNum:   make(map[string][]float64),
		Codes:    make(map[string][]int64),
		Layers:   make(map[string]*tensor.RawTensor),
		Uns:      make(map[string]any),
	}
	for name, col := range datasets[0].Obs {
		inAll := true
		for _, ds := range datasets[1:] {
			if _, ok := ds.Obs[name]; !ok {
				inAll = false
				break
			}
		}
		if !inAll {
			continue
		}
		values := append([]string(nil), col...)
		for _, ds := range datasets[1:] {
			values = append(values, ds.Obs[name]...)
		}
		merged.Obs[name] = values
	}
	return merged, nil
}

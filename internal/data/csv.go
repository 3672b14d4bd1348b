package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/arches-ml/arches/internal/tensor"
)

// CSV layout: the first column is the cell identifier, remaining
// header cells are gene names, and each row carries one cell's counts.
// Obs files use the same first-column convention with annotation
// columns after it. Fine for the small matrices the CLI moves around;
// real atlases arrive through the safetensors path.

// ReadCSV parses a count matrix. Values are parsed as float32.
func ReadCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("ReadCSV: reading header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("ReadCSV: header needs a cell-id column and at least one gene, got %d columns", len(header))
	}
	varNames := append([]string(nil), header[1:]...)
	genes := len(varNames)

	var (
		obsNames []string
		counts   []float32
	)
	for row := 1; ; row++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ReadCSV: row %d: %w", row, err)
		}
		if len(record) != genes+1 {
			return nil, fmt.Errorf("ReadCSV: row %d has %d columns, want %d", row, len(record), genes+1)
		}
		obsNames = append(obsNames, record[0])
		for i, field := range record[1:] {
			v, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return nil, fmt.Errorf("ReadCSV: row %d, gene %q: %w", row, varNames[i], err)
			}
			counts = append(counts, float32(v))
		}
	}
	if len(obsNames) == 0 {
		return nil, fmt.Errorf("ReadCSV: no data rows")
	}

	x, err := tensor.NewRaw(tensor.Shape{len(obsNames), genes}, tensor.Float32, tensor.CPU)
	if err != nil {
		return nil, fmt.Errorf("ReadCSV: %w", err)
	}
	copy(x.AsFloat32(), counts)

	ds, err := NewDataset(x)
	if err != nil {
		return nil, fmt.Errorf("ReadCSV: %w", err)
	}
	ds.ObsNames = obsNames
	ds.VarNames = varNames
	return ds, nil
}

// WriteCSV writes the count matrix in the layout ReadCSV reads.
// Missing cell or gene names fall back to positional ones.
func WriteCSV(w io.Writer, ds *Dataset) error {
	if err := ds.Validate(); err != nil {
		return fmt.Errorf("WriteCSV: %w", err)
	}
	if ds.X.DType() != tensor.Float32 {
		return fmt.Errorf("WriteCSV: count matrix must be float32, got %s", ds.X.DType())
	}
	cells, genes := ds.NumCells(), ds.NumGenes()

	cw := csv.NewWriter(w)
	header := make([]string, genes+1)
	header[0] = "cell_id"
	for i := 0; i < genes; i++ {
		header[i+1] = geneName(ds, i)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("WriteCSV: %w", err)
	}

	counts := ds.X.AsFloat32()
	record := make([]string, genes+1)
	for cell := 0; cell < cells; cell++ {
		record[0] = cellName(ds, cell)
		row := counts[cell*genes : (cell+1)*genes]
		for i, v := range row {
			record[i+1] = strconv.FormatFloat(float64(v), 'g', -1, 32)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("WriteCSV: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteCSV: %w", err)
	}
	return nil
}

// ReadObsCSV merges annotation columns into an existing dataset. Rows
// follow dataset order; the first column is the cell identifier and is
// not stored. Every later column becomes a categorical obs column.
func ReadObsCSV(r io.Reader, ds *Dataset) error {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("ReadObsCSV: reading header: %w", err)
	}
	if len(header) < 2 {
		return fmt.Errorf("ReadObsCSV: header needs a cell-id column and at least one annotation column")
	}
	names := header[1:]
	columns := make([][]string, len(names))

	rows := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("ReadObsCSV: row %d: %w", rows+1, err)
		}
		for i, v := range record[1:] {
			columns[i] = append(columns[i], v)
		}
		rows++
	}
	if rows != ds.NumCells() {
		return fmt.Errorf("ReadObsCSV: %d rows for %d cells", rows, ds.NumCells())
	}

	for i, name := range names {
		if err := ds.SetObs(name, columns[i]); err != nil {
			return fmt.Errorf("ReadObsCSV: %w", err)
		}
	}
	return nil
}

// WriteObsCSV writes the named categorical columns alongside cell
// identifiers, in the layout ReadObsCSV reads.
func WriteObsCSV(w io.Writer, ds *Dataset, columns []string) error {
	for _, name := range columns {
		if _, ok := ds.Obs[name]; !ok {
			return fmt.Errorf("WriteObsCSV: obs column %q not found", name)
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"cell_id"}, columns...)); err != nil {
		return fmt.Errorf("WriteObsCSV: %w", err)
	}
	record := make([]string, len(columns)+1)
	for cell := 0; cell < ds.NumCells(); cell++ {
		record[0] = cellName(ds, cell)
		for i, name := range columns {
			record[i+1] = ds.Obs[name][cell]
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("WriteObsCSV: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteObsCSV: %w", err)
	}
	return nil
}

// LoadCSV reads a count matrix file, optionally merging an obs file.
// Pass "" to skip the obs file.
func LoadCSV(matrixPath, obsPath string) (*Dataset, error) {
	f, err := os.Open(matrixPath)
	if err != nil {
		return nil, fmt.Errorf("LoadCSV: %w", err)
	}
	defer f.Close()

	ds, err := ReadCSV(f)
	if err != nil {
		return nil, err
	}
	if obsPath == "" {
		return ds, nil
	}

	of, err := os.Open(obsPath)
	if err != nil {
		return nil, fmt.Errorf("LoadCSV: %w", err)
	}
	defer of.Close()
	if err := ReadObsCSV(of, ds); err != nil {
		return nil, err
	}
	return ds, nil
}

// SaveCSV writes the count matrix to a file.
func SaveCSV(path string, ds *Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("SaveCSV: %w", err)
	}
	if err := WriteCSV(f, ds); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("SaveCSV: %w", err)
	}
	return nil
}

func geneName(ds *Dataset, i int) string {
	if ds.VarNames != nil {
		return ds.VarNames[i]
	}
	return fmt.Sprintf("gene_%d", i)
}

func cellName(ds *Dataset, i int) string {
	if ds.ObsNames != nil {
		return ds.ObsNames[i]
	}
	return fmt.Sprintf("cell_%d", i)
}

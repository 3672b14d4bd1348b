package data

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthetic_ShapeAndAnnotations(t *testing.T) {
	opts := SyntheticOptions{Cells: 60, Genes: 10, Batches: 3, Labels: 2, Dropout: 0.3, Seed: 7}
	ds := Synthetic(opts)

	require.NoError(t, ds.Validate())
	assert.Equal(t, 60, ds.NumCells())
	assert.Equal(t, 10, ds.NumGenes())
	assert.Len(t, ds.VarNames, 10)
	assert.Equal(t, "gene_0", ds.VarNames[0])
	assert.Equal(t, "cell_59", ds.ObsNames[59])

	batches := ds.Obs["batch"]
	require.Len(t, batches, 60)
	assert.Equal(t, "batch_0", batches[0])
	assert.Equal(t, "batch_1", batches[20])
	assert.Equal(t, "batch_2", batches[59], "cells assigned to batches in contiguous blocks")

	for _, label := range ds.Obs["labels"] {
		assert.True(t, strings.HasPrefix(label, "label_"))
	}
}

func TestSynthetic_Deterministic(t *testing.T) {
	opts := SyntheticOptions{Cells: 600, Genes: 20, Batches: 2, Labels: 3, Dropout: 0.3, Seed: 42}

	a := Synthetic(opts)
	b := Synthetic(opts)

	assert.Equal(t, a.X.AsFloat32(), b.X.AsFloat32(), "same seed, same counts")
	assert.Equal(t, a.Obs["labels"], b.Obs["labels"])

	opts.Seed = 43
	c := Synthetic(opts)
	assert.NotEqual(t, a.X.AsFloat32(), c.X.AsFloat32(), "different seed, different counts")
}

func TestSynthetic_CountsAreCounts(t *testing.T) {
	ds := Synthetic(DefaultSyntheticOptions())

	assert.True(t, looksLikeCounts(ds.X))
	for _, v := range ds.X.AsFloat32() {
		require.GreaterOrEqual(t, v, float32(0))
		require.Equal(t, v, float32(int64(v)), "counts are whole numbers")
	}
}

func TestSynthetic_Dropout(t *testing.T) {
	opts := SyntheticOptions{Cells: 200, Genes: 50, Batches: 1, Labels: 1, Seed: 3}

	dense := Synthetic(opts)
	denseZeros := countZeros(dense.X.AsFloat32())

	opts.Dropout = 0.5
	sparse := Synthetic(opts)
	sparseZeros := countZeros(sparse.X.AsFloat32())

	assert.Greater(t, sparseZeros, denseZeros+1000,
		"half the entries should be dropped on top of natural zeros")
}

func TestSynthetic_BatchLibraryShift(t *testing.T) {
	ds := Synthetic(SyntheticOptions{Cells: 400, Genes: 50, Batches: 2, Labels: 1, Seed: 11})

	counts := ds.X.AsFloat32()
	half := len(counts) / 2
	var sum0, sum1 float64
	for _, v := range counts[:half] {
		sum0 += float64(v)
	}
	for _, v := range counts[half:] {
		sum1 += float64(v)
	}
	assert.Greater(t, sum1, sum0, "later batches carry larger library sizes")
}

func TestSynthetic_SetupIntegration(t *testing.T) {
	ds := Synthetic(DefaultSyntheticOptions())

	reg, err := Setup(ds, SetupOptions{BatchKey: "batch", LabelsKey: "labels"})
	require.NoError(t, err)

	assert.Equal(t, 2, reg.Summary.Batches)
	assert.Equal(t, 3, reg.Summary.Labels)
	assert.Equal(t, 400, reg.Summary.Cells)
	require.Len(t, reg.Summary.LibraryLogMeans, 2)
	assert.Greater(t, reg.Summary.LibraryLogMeans[1], reg.Summary.LibraryLogMeans[0])
}

func countZeros(values []float32) int {
	n := 0
	for _, v := range values {
		if v == 0 {
			n++
		}
	}
	return n
}

package data

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arches-ml/arches/internal/tensor"
)

func testDataset(t *testing.T, counts []float32, cells, genes int) *Dataset {
	t.Helper()
	require.Len(t, counts, cells*genes)
	x, err := tensor.NewRaw(tensor.Shape{cells, genes}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(x.AsFloat32(), counts)
	ds, err := NewDataset(x)
	require.NoError(t, err)
	return ds
}

func TestSetup_EncodesFirstSeenOrder(t *testing.T) {
	ds := testDataset(t, []float32{
		1, 1,
		3, 1,
		2, 2,
	}, 3, 2)
	require.NoError(t, ds.SetObs("batch", []string{"b", "a", "b"}))
	require.NoError(t, ds.SetObs("cell_type", []string{"x", "x", "y"}))

	reg, err := Setup(ds, SetupOptions{BatchKey: "batch", LabelsKey: "cell_type"})
	require.NoError(t, err)

	batch := reg.Categorical(FieldBatch)
	require.NotNil(t, batch)
	assert.Equal(t, []string{"b", "a"}, batch.Categories, "categories follow first appearance")
	assert.Equal(t, "batch", batch.Column)
	assert.Equal(t, []int64{0, 1, 0}, ds.Codes[colBatch])

	labels := reg.Categorical(FieldLabels)
	require.NotNil(t, labels)
	assert.Equal(t, []string{"x", "y"}, labels.Categories)
	assert.Equal(t, []int64{0, 0, 1}, ds.Codes[colLabels])

	assert.Equal(t, 3, reg.Summary.Cells)
	assert.Equal(t, 2, reg.Summary.Genes)
	assert.Equal(t, 2, reg.Summary.Batches)
	assert.Equal(t, 2, reg.Summary.Labels)

	assert.Same(t, reg, ds.Uns[UnsKey].(*Registry), "registry stored on the dataset")
}

func TestSetup_SynthesizedColumns(t *testing.T) {
	ds := testDataset(t, []float32{1, 2, 3, 4}, 2, 2)

	reg, err := Setup(ds, SetupOptions{})
	require.NoError(t, err)

	batch := reg.Categorical(FieldBatch)
	require.NotNil(t, batch)
	assert.Equal(t, []string{"0"}, batch.Categories)
	assert.Equal(t, "", batch.Column, "synthesized columns record no source")
	assert.Equal(t, []int64{0, 0}, ds.Codes[colBatch])
	assert.Equal(t, 1, reg.Summary.Batches)
	assert.Equal(t, 1, reg.Summary.Labels)
}

func TestSetup_LibraryStatsPerBatch(t *testing.T) {
	// Batch "a" holds cells 0, 1 with totals 2 and 4; batch "b" holds
	// cells 2, 3 with totals 4 and 16.
	ds := testDataset(t, []float32{
		1, 1,
		3, 1,
		2, 2,
		8, 8,
	}, 4, 2)
	require.NoError(t, ds.SetObs("batch", []string{"a", "a", "b", "b"}))

	reg, err := Setup(ds, SetupOptions{BatchKey: "batch"})
	require.NoError(t, err)

	logsA := []float64{math.Log(2), math.Log(4)}
	logsB := []float64{math.Log(4), math.Log(16)}
	meanA := (logsA[0] + logsA[1]) / 2
	meanB := (logsB[0] + logsB[1]) / 2
	varA := ((logsA[0]-meanA)*(logsA[0]-meanA) + (logsA[1]-meanA)*(logsA[1]-meanA)) / 2
	varB := ((logsB[0]-meanB)*(logsB[0]-meanB) + (logsB[1]-meanB)*(logsB[1]-meanB)) / 2

	require.Len(t, reg.Summary.LibraryLogMeans, 2)
	assert.InDelta(t, meanA, reg.Summary.LibraryLogMeans[0], 1e-12)
	assert.InDelta(t, meanB, reg.Summary.LibraryLogMeans[1], 1e-12)
	assert.InDelta(t, varA, reg.Summary.LibraryLogVars[0], 1e-12)
	assert.InDelta(t, varB, reg.Summary.LibraryLogVars[1], 1e-12)

	// Per-cell columns broadcast the batch statistics.
	assert.InDelta(t, meanA, ds.ObsNum[colLibraryMu][1], 1e-12)
	assert.InDelta(t, meanB, ds.ObsNum[colLibraryMu][2], 1e-12)
	assert.InDelta(t, varB, ds.ObsNum[colLibraryVar][3], 1e-12)
}

func TestSetup_MissingObsColumn(t *testing.T) {
	ds := testDataset(t, []float32{1, 2}, 1, 2)

	_, err := Setup(ds, SetupOptions{BatchKey: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"nope"`)
}

func TestSetup_CountsFromLayer(t *testing.T) {
	// X holds normalized values; the raw counts live in a layer and are
	// what the model should see.
	ds := testDataset(t, []float32{
		0.1, 0.9,
		0.6, 0.4,
	}, 2, 2)
	raw, err := tensor.NewRaw(tensor.Shape{2, 2}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(raw.AsFloat32(), []float32{1, 3, 2, 6})
	require.NoError(t, ds.SetLayer("counts", raw))

	reg, err := Setup(ds, SetupOptions{Layer: "counts"})
	require.NoError(t, err)

	assert.Equal(t, FieldLoc{Attr: AttrLayers, Key: "counts"}, reg.Fields[FieldX])

	resolved, err := GetFromRegistry(ds, reg, FieldX)
	require.NoError(t, err)
	assert.Same(t, raw, resolved, "the model input is the layer, not X")

	// Library sizes come from the layer totals 4 and 8, not from X.
	require.Len(t, reg.Summary.LibraryLogMeans, 1)
	assert.InDelta(t, (math.Log(4)+math.Log(8))/2, reg.Summary.LibraryLogMeans[0], 1e-12)
}

func TestSetup_MissingLayer(t *testing.T) {
	ds := testDataset(t, []float32{1, 2}, 1, 2)

	_, err := Setup(ds, SetupOptions{Layer: "counts"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"counts"`)
}

func TestSetLayer_ShapeMismatch(t *testing.T) {
	ds := testDataset(t, []float32{1, 2, 3, 4}, 2, 2)
	bad, err := tensor.NewRaw(tensor.Shape{3, 2}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)

	require.Error(t, ds.SetLayer("counts", bad))
}

func TestLooksLikeCounts(t *testing.T) {
	counts := testDataset(t, []float32{0, 1, 5, 12}, 2, 2)
	assert.True(t, looksLikeCounts(counts.X))

	fractional := testDataset(t, []float32{0.5, 1, 2, 3}, 2, 2)
	assert.False(t, looksLikeCounts(fractional.X))

	negative := testDataset(t, []float32{-1, 1, 2, 3}, 2, 2)
	assert.False(t, looksLikeCounts(negative.X))
}

func TestExtendCategories_AppendOnly(t *testing.T) {
	ref := []string{"b0", "b1"}
	observed := []string{"b1", "b3", "b2", "b3"}

	got := ExtendCategories(ref, observed)

	assert.Equal(t, []string{"b0", "b1", "b3", "b2"}, got,
		"existing order kept, new categories appended in first-seen order")
	assert.Equal(t, []string{"b0", "b1"}, ref, "input not modified")
}

func TestExtendCategories_Idempotent(t *testing.T) {
	ref := []string{"b0", "b1"}
	observed := []string{"b2", "b0"}

	once := ExtendCategories(ref, observed)
	twice := ExtendCategories(once, observed)

	assert.Equal(t, once, twice)
}

func TestExtendCategories_NoNewCategories(t *testing.T) {
	ref := []string{"b0", "b1"}
	got := ExtendCategories(ref, []string{"b1", "b0", "b1"})
	assert.Equal(t, ref, got)
}

func TestTransferSetup_GeneCountMismatch(t *testing.T) {
	ref := testDataset(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, ref.SetObs("batch", []string{"b0", "b1"}))
	reg, err := Setup(ref, SetupOptions{BatchKey: "batch"})
	require.NoError(t, err)

	query := testDataset(t, []float32{1, 2, 3, 4}, 2, 2)
	require.NoError(t, query.SetObs("batch", []string{"b0", "b0"}))

	_, err = TransferSetup(reg, query, true)
	require.ErrorIs(t, err, ErrGeneCountMismatch)
}

func TestTransferSetup_UnseenCategoryWithoutExtend(t *testing.T) {
	ref := testDataset(t, []float32{1, 2, 3, 4}, 2, 2)
	require.NoError(t, ref.SetObs("batch", []string{"b0", "b1"}))
	reg, err := Setup(ref, SetupOptions{BatchKey: "batch"})
	require.NoError(t, err)

	query := testDataset(t, []float32{1, 2, 3, 4}, 2, 2)
	require.NoError(t, query.SetObs("batch", []string{"b1", "b2"}))

	_, err = TransferSetup(reg, query, false)
	require.ErrorIs(t, err, ErrUnseenCategory)
	assert.Contains(t, err.Error(), "b2")
}

func TestTransferSetup_ExtendsAppendOnly(t *testing.T) {
	ref := testDataset(t, []float32{1, 2, 3, 4}, 2, 2)
	require.NoError(t, ref.SetObs("batch", []string{"b0", "b1"}))
	reg, err := Setup(ref, SetupOptions{BatchKey: "batch"})
	require.NoError(t, err)

	query := testDataset(t, []float32{2, 2, 4, 4, 8, 8}, 3, 2)
	require.NoError(t, query.SetObs("batch", []string{"b1", "b3", "b2"}))

	out, err := TransferSetup(reg, query, true)
	require.NoError(t, err)

	merged := out.Categorical(FieldBatch)
	require.NotNil(t, merged)
	assert.Equal(t, []string{"b0", "b1", "b3", "b2"}, merged.Categories)
	assert.Equal(t, []int64{1, 2, 3}, query.Codes[colBatch],
		"codes resolve against the merged vocabulary")

	// Reference registry untouched.
	assert.Equal(t, []string{"b0", "b1"}, reg.Categorical(FieldBatch).Categories)
	assert.Equal(t, 2, reg.Summary.Batches)

	// Summary reflects the query.
	assert.Equal(t, 3, out.Summary.Cells)
	assert.Equal(t, 4, out.Summary.Batches)
	require.Len(t, out.Summary.LibraryLogMeans, 4)
	assert.Zero(t, out.Summary.LibraryLogMeans[0],
		"batches absent from the query keep zero statistics")
	assert.InDelta(t, math.Log(4), out.Summary.LibraryLogMeans[1], 1e-12)

	assert.Same(t, out, query.Uns[UnsKey].(*Registry))
}

func TestTransferSetup_SecondPassIsStable(t *testing.T) {
	ref := testDataset(t, []float32{1, 2, 3, 4}, 2, 2)
	require.NoError(t, ref.SetObs("batch", []string{"b0", "b1"}))
	reg, err := Setup(ref, SetupOptions{BatchKey: "batch"})
	require.NoError(t, err)

	query := testDataset(t, []float32{2, 2, 4, 4}, 2, 2)
	require.NoError(t, query.SetObs("batch", []string{"b1", "b2"}))

	first, err := TransferSetup(reg, query, true)
	require.NoError(t, err)
	second, err := TransferSetup(first, query, true)
	require.NoError(t, err)

	assert.Equal(t,
		first.Categorical(FieldBatch).Categories,
		second.Categorical(FieldBatch).Categories,
		"re-applying the extended registry adds nothing")
}

func TestTransferSetup_SynthesizedColumn(t *testing.T) {
	ref := testDataset(t, []float32{1, 2, 3, 4}, 2, 2)
	reg, err := Setup(ref, SetupOptions{})
	require.NoError(t, err)

	// Query has no batch column either; the synthesized single
	// category carries over.
	query := testDataset(t, []float32{5, 6, 7, 8}, 2, 2)
	out, err := TransferSetup(reg, query, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"0"}, out.Categorical(FieldBatch).Categories)
	assert.Equal(t, []int64{0, 0}, query.Codes[colBatch])
}

func TestTransferSetup_MissingQueryColumn(t *testing.T) {
	ref := testDataset(t, []float32{1, 2, 3, 4}, 2, 2)
	require.NoError(t, ref.SetObs("batch", []string{"b0", "b1"}))
	reg, err := Setup(ref, SetupOptions{BatchKey: "batch"})
	require.NoError(t, err)

	query := testDataset(t, []float32{1, 2, 3, 4}, 2, 2)

	_, err = TransferSetup(reg, query, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"batch"`)
}

func TestTransferSetup_CountsFromLayer(t *testing.T) {
	ref := testDataset(t, []float32{0.1, 0.9, 0.5, 0.5}, 2, 2)
	rawRef, err := tensor.NewRaw(tensor.Shape{2, 2}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(rawRef.AsFloat32(), []float32{1, 1, 2, 2})
	require.NoError(t, ref.SetLayer("counts", rawRef))
	reg, err := Setup(ref, SetupOptions{Layer: "counts"})
	require.NoError(t, err)

	// A query without the layer cannot satisfy the reference setup.
	bare := testDataset(t, []float32{0.2, 0.8, 0.3, 0.7}, 2, 2)
	_, err = TransferSetup(reg, bare, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"counts"`)

	query := testDataset(t, []float32{0.2, 0.8, 0.3, 0.7}, 2, 2)
	rawQuery, err := tensor.NewRaw(tensor.Shape{2, 2}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(rawQuery.AsFloat32(), []float32{2, 2, 4, 4})
	require.NoError(t, query.SetLayer("counts", rawQuery))

	out, err := TransferSetup(reg, query, false)
	require.NoError(t, err)
	assert.Equal(t, FieldLoc{Attr: AttrLayers, Key: "counts"}, out.Fields[FieldX])
	require.Len(t, out.Summary.LibraryLogMeans, 1)
	assert.InDelta(t, (math.Log(4)+math.Log(8))/2, out.Summary.LibraryLogMeans[0], 1e-12)
}

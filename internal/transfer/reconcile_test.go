package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arches-ml/arches/internal/backend/cpu"
	"github.com/arches-ml/arches/internal/tensor"
)

func rawF32(t *testing.T, data []float32, shape ...int) *tensor.RawTensor {
	t.Helper()
	tt, err := tensor.FromSlice(data, tensor.Shape(shape), cpu.New())
	require.NoError(t, err)
	return tt.Raw()
}

func rawI64(t *testing.T, data []int64, shape ...int) *tensor.RawTensor {
	t.Helper()
	tt, err := tensor.FromSlice(data, tensor.Shape(shape), cpu.New())
	require.NoError(t, err)
	return tt.Raw()
}

func TestReconcile_EqualShapesPassVerbatim(t *testing.T) {
	saved := map[string]*tensor.RawTensor{
		"weight":  rawF32(t, []float32{1, 2, 3, 4}, 2, 2),
		"tracked": rawI64(t, []int64{7}, 1),
	}
	fresh := map[string]*tensor.RawTensor{
		"weight":  rawF32(t, []float32{9, 9, 9, 9}, 2, 2),
		"tracked": rawI64(t, []int64{0}, 1),
	}

	merged, grown, err := Reconcile(saved, fresh)
	require.NoError(t, err)
	assert.Empty(t, grown)
	require.Len(t, merged, 2)
	assert.Equal(t, saved["weight"].Data(), merged["weight"].Data(),
		"unchanged shapes must keep the saved bytes")
	assert.Equal(t, saved["tracked"].Data(), merged["tracked"].Data())
}

func TestReconcile_TrailingGrowthKeepsSavedColumns(t *testing.T) {
	saved := map[string]*tensor.RawTensor{
		"weight": rawF32(t, []float32{
			1, 2, 3,
			4, 5, 6,
		}, 2, 3),
	}
	fresh := map[string]*tensor.RawTensor{
		"weight": rawF32(t, []float32{
			10, 11, 12, 13, 14,
			20, 21, 22, 23, 24,
		}, 2, 5),
	}

	merged, grown, err := Reconcile(saved, fresh)
	require.NoError(t, err)

	require.Len(t, grown, 1)
	assert.Equal(t, Grown{Name: "weight", OldWidth: 3, NewWidth: 5}, grown[0])

	got := merged["weight"]
	require.True(t, got.Shape().Equal(tensor.Shape{2, 5}))
	assert.Equal(t, []float32{
		1, 2, 3, 13, 14,
		4, 5, 6, 23, 24,
	}, got.AsFloat32(), "saved columns first, then the fresh trailing columns")
}

func TestReconcile_OneDimensionalGrowth(t *testing.T) {
	saved := map[string]*tensor.RawTensor{"px_r": rawF32(t, []float32{1, 2, 3}, 3)}
	fresh := map[string]*tensor.RawTensor{"px_r": rawF32(t, []float32{9, 8, 7, 6, 5}, 5)}

	merged, grown, err := Reconcile(saved, fresh)
	require.NoError(t, err)
	require.Len(t, grown, 1)
	assert.Equal(t, Grown{Name: "px_r", OldWidth: 3, NewWidth: 5}, grown[0])
	assert.Equal(t, []float32{1, 2, 3, 6, 5}, merged["px_r"].AsFloat32())
}

func TestReconcile_GrownReportIsSorted(t *testing.T) {
	saved := map[string]*tensor.RawTensor{
		"b.weight": rawF32(t, []float32{1, 2}, 1, 2),
		"a.weight": rawF32(t, []float32{3, 4}, 1, 2),
		"same":     rawF32(t, []float32{5}, 1),
	}
	fresh := map[string]*tensor.RawTensor{
		"b.weight": rawF32(t, []float32{0, 0, 0}, 1, 3),
		"a.weight": rawF32(t, []float32{0, 0, 0}, 1, 3),
		"same":     rawF32(t, []float32{0}, 1),
	}

	_, grown, err := Reconcile(saved, fresh)
	require.NoError(t, err)
	require.Len(t, grown, 2)
	assert.Equal(t, "a.weight", grown[0].Name)
	assert.Equal(t, "b.weight", grown[1].Name)
}

func TestReconcile_KeyDriftIsFatal(t *testing.T) {
	weight := rawF32(t, []float32{1, 2}, 1, 2)

	_, _, err := Reconcile(
		map[string]*tensor.RawTensor{"weight": weight, "extra": rawF32(t, []float32{0}, 1)},
		map[string]*tensor.RawTensor{"weight": weight},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStateMismatch)
	assert.Contains(t, err.Error(), "extra")

	_, _, err = Reconcile(
		map[string]*tensor.RawTensor{"weight": weight},
		map[string]*tensor.RawTensor{"weight": weight, "novel": rawF32(t, []float32{0}, 1)},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStateMismatch)
	assert.Contains(t, err.Error(), "novel")
}

func TestReconcile_DTypeChangeIsFatal(t *testing.T) {
	_, _, err := Reconcile(
		map[string]*tensor.RawTensor{"w": rawI64(t, []int64{1, 2}, 2)},
		map[string]*tensor.RawTensor{"w": rawF32(t, []float32{1, 2}, 2)},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDTypeMismatch)
}

func TestReconcile_NonTrailingMismatchIsFatal(t *testing.T) {
	cases := map[string]struct {
		saved, fresh *tensor.RawTensor
	}{
		"leading dimension": {
			saved: rawF32(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3),
			fresh: rawF32(t, make([]float32, 9), 3, 3),
		},
		"shrunk": {
			saved: rawF32(t, make([]float32, 10), 2, 5),
			fresh: rawF32(t, make([]float32, 6), 2, 3),
		},
		"rank": {
			saved: rawF32(t, make([]float32, 6), 2, 3),
			fresh: rawF32(t, make([]float32, 6), 2, 3, 1),
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := Reconcile(
				map[string]*tensor.RawTensor{"w": tc.saved},
				map[string]*tensor.RawTensor{"w": tc.fresh},
			)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrShapeMismatch)
		})
	}
}

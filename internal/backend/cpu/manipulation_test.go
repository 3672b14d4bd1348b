package cpu

import (
	"testing"

	"github.com/arches-ml/arches/internal/tensor"
)

// TestCPUBackend_Cat tests concatenation.
func TestCPUBackend_Cat(t *testing.T) {
	backend := newTestBackend()

	t.Run("LastDim", func(t *testing.T) {
		// Expression block next to a covariate block, the standard layer input.
		x := rawF32(t, tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
		cov := rawF32(t, tensor.Shape{2, 1}, []float32{9, 9})

		result := backend.Cat([]*tensor.RawTensor{x, cov}, 1)

		if !result.Shape().Equal(tensor.Shape{2, 3}) {
			t.Fatalf("Expected shape [2, 3], got %v", result.Shape())
		}
		if !float32SliceEqual(result.AsFloat32(), []float32{1, 2, 9, 3, 4, 9}) {
			t.Errorf("Cat failed: got %v", result.AsFloat32())
		}
	})

	t.Run("FirstDim", func(t *testing.T) {
		a := rawF32(t, tensor.Shape{1, 3}, []float32{1, 2, 3})
		b := rawF32(t, tensor.Shape{2, 3}, []float32{4, 5, 6, 7, 8, 9})

		result := backend.Cat([]*tensor.RawTensor{a, b}, 0)

		if !result.Shape().Equal(tensor.Shape{3, 3}) {
			t.Fatalf("Expected shape [3, 3], got %v", result.Shape())
		}
		if !float32SliceEqual(result.AsFloat32(), []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}) {
			t.Errorf("Cat dim 0 failed: got %v", result.AsFloat32())
		}
	})

	t.Run("ShapeMismatchPanics", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic for mismatched non-cat dimensions")
			}
		}()
		a := rawF32(t, tensor.Shape{2, 2}, make([]float32, 4))
		b := rawF32(t, tensor.Shape{3, 3}, make([]float32, 9))
		backend.Cat([]*tensor.RawTensor{a, b}, 1)
	})
}

// TestCPUBackend_Expand tests broadcasting to an explicit shape.
func TestCPUBackend_Expand(t *testing.T) {
	backend := newTestBackend()

	t.Run("RowToMatrix", func(t *testing.T) {
		a := rawF32(t, tensor.Shape{1, 3}, []float32{1, 2, 3})

		result := backend.Expand(a, tensor.Shape{2, 3})

		if !result.Shape().Equal(tensor.Shape{2, 3}) {
			t.Fatalf("Expected shape [2, 3], got %v", result.Shape())
		}
		if !float32SliceEqual(result.AsFloat32(), []float32{1, 2, 3, 1, 2, 3}) {
			t.Errorf("Expand failed: got %v", result.AsFloat32())
		}
	})

	t.Run("ColumnToMatrix", func(t *testing.T) {
		a := rawF32(t, tensor.Shape{2, 1}, []float32{5, 7})

		result := backend.Expand(a, tensor.Shape{2, 3})

		if !float32SliceEqual(result.AsFloat32(), []float32{5, 5, 5, 7, 7, 7}) {
			t.Errorf("Expand column failed: got %v", result.AsFloat32())
		}
	})

	t.Run("IncompatiblePanics", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic for incompatible expand")
			}
		}()
		a := rawF32(t, tensor.Shape{2, 3}, make([]float32, 6))
		backend.Expand(a, tensor.Shape{2, 4})
	})
}

// TestCPUBackend_OneHot tests one-hot encoding of category codes.
func TestCPUBackend_OneHot(t *testing.T) {
	backend := newTestBackend()

	t.Run("Int64Codes", func(t *testing.T) {
		codes, _ := tensor.NewRaw(tensor.Shape{3}, tensor.Int64, tensor.CPU)
		copy(codes.AsInt64(), []int64{0, 2, 1})

		result := backend.OneHot(codes, 3)

		if !result.Shape().Equal(tensor.Shape{3, 3}) {
			t.Fatalf("Expected shape [3, 3], got %v", result.Shape())
		}
		if result.DType() != tensor.Float32 {
			t.Fatalf("Expected Float32 output, got %v", result.DType())
		}
		expected := []float32{
			1, 0, 0,
			0, 0, 1,
			0, 1, 0,
		}
		if !float32SliceEqual(result.AsFloat32(), expected) {
			t.Errorf("OneHot failed: got %v", result.AsFloat32())
		}
	})

	t.Run("Int32Codes", func(t *testing.T) {
		codes, _ := tensor.NewRaw(tensor.Shape{2}, tensor.Int32, tensor.CPU)
		copy(codes.AsInt32(), []int32{1, 0})

		result := backend.OneHot(codes, 2)

		if !float32SliceEqual(result.AsFloat32(), []float32{0, 1, 1, 0}) {
			t.Errorf("OneHot int32 failed: got %v", result.AsFloat32())
		}
	})

	t.Run("OutOfRangePanics", func(t *testing.T) {
		// A code outside the trained vocabulary must fail loudly, not index
		// a column that belongs to another category.
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic for out-of-range code")
			}
		}()
		codes, _ := tensor.NewRaw(tensor.Shape{1}, tensor.Int64, tensor.CPU)
		codes.AsInt64()[0] = 5
		backend.OneHot(codes, 3)
	})

	t.Run("Rank2Panics", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic for non-1D indices")
			}
		}()
		codes, _ := tensor.NewRaw(tensor.Shape{2, 2}, tensor.Int64, tensor.CPU)
		backend.OneHot(codes, 4)
	})
}

// TestCPUBackend_Cast tests dtype conversion.
func TestCPUBackend_Cast(t *testing.T) {
	backend := newTestBackend()

	t.Run("Int64ToFloat32", func(t *testing.T) {
		counts, _ := tensor.NewRaw(tensor.Shape{4}, tensor.Int64, tensor.CPU)
		copy(counts.AsInt64(), []int64{0, 3, 17, 120})

		result := backend.Cast(counts, tensor.Float32)

		if result.DType() != tensor.Float32 {
			t.Fatalf("Expected Float32, got %v", result.DType())
		}
		if !float32SliceEqual(result.AsFloat32(), []float32{0, 3, 17, 120}) {
			t.Errorf("Cast failed: got %v", result.AsFloat32())
		}
	})

	t.Run("Float32ToInt64", func(t *testing.T) {
		a := rawF32(t, tensor.Shape{3}, []float32{1.9, 2.1, -3.7})

		result := backend.Cast(a, tensor.Int64)

		expected := []int64{1, 2, -3}
		for i, exp := range expected {
			if result.AsInt64()[i] != exp {
				t.Errorf("Cast truncation failed at %d: got %v, expected %v", i, result.AsInt64()[i], exp)
			}
		}
	})
}

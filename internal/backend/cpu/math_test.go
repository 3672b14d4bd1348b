package cpu

import (
	"math"
	"testing"

	"github.com/arches-ml/arches/internal/tensor"
)

// TestCPUBackend_Exp tests element-wise exponentiation.
func TestCPUBackend_Exp(t *testing.T) {
	backend := newTestBackend()

	a := rawF32(t, tensor.Shape{3}, []float32{0, 1, 2})
	result := backend.Exp(a)

	expected := []float32{1, float32(math.E), float32(math.E * math.E)}
	if !float32SliceEqual(result.AsFloat32(), expected) {
		t.Errorf("Exp failed: got %v, expected %v", result.AsFloat32(), expected)
	}
}

// TestCPUBackend_Log tests element-wise natural logarithm.
func TestCPUBackend_Log(t *testing.T) {
	backend := newTestBackend()

	t.Run("Positive", func(t *testing.T) {
		a := rawF32(t, tensor.Shape{3}, []float32{1, float32(math.E), 10})
		result := backend.Log(a)

		expected := []float32{0, 1, float32(math.Log(10))}
		if !float32SliceEqual(result.AsFloat32(), expected) {
			t.Errorf("Log failed: got %v, expected %v", result.AsFloat32(), expected)
		}
	})

	t.Run("ExpRoundTrip", func(t *testing.T) {
		// log-library values survive exp followed by log.
		a := rawF32(t, tensor.Shape{4}, []float32{0.5, 1.5, 3.0, 7.2})
		result := backend.Log(backend.Exp(a))

		if !float32SliceEqual(result.AsFloat32(), []float32{0.5, 1.5, 3.0, 7.2}) {
			t.Errorf("Log(Exp(x)) != x: got %v", result.AsFloat32())
		}
	})

	t.Run("ZeroPanics", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic for Log(0)")
			}
		}()
		a := rawF32(t, tensor.Shape{2}, []float32{1, 0})
		backend.Log(a)
	})
}

// TestCPUBackend_Sqrt tests element-wise square root.
func TestCPUBackend_Sqrt(t *testing.T) {
	backend := newTestBackend()

	t.Run("NonNegative", func(t *testing.T) {
		a := rawF32(t, tensor.Shape{4}, []float32{0, 1, 4, 9})
		result := backend.Sqrt(a)

		if !float32SliceEqual(result.AsFloat32(), []float32{0, 1, 2, 3}) {
			t.Errorf("Sqrt failed: got %v", result.AsFloat32())
		}
	})

	t.Run("NegativePanics", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic for Sqrt of negative input")
			}
		}()
		a := rawF32(t, tensor.Shape{1}, []float32{-1})
		backend.Sqrt(a)
	})
}

// TestCPUBackend_ScalarOps tests scalar arithmetic.
func TestCPUBackend_ScalarOps(t *testing.T) {
	backend := newTestBackend()

	t.Run("AddScalar", func(t *testing.T) {
		a := rawF32(t, tensor.Shape{3}, []float32{1, 2, 3})
		result := backend.AddScalar(a, float32(10))
		if !float32SliceEqual(result.AsFloat32(), []float32{11, 12, 13}) {
			t.Errorf("AddScalar failed: got %v", result.AsFloat32())
		}
	})

	t.Run("SubScalar", func(t *testing.T) {
		a := rawF32(t, tensor.Shape{3}, []float32{10, 20, 30})
		result := backend.SubScalar(a, float32(5))
		if !float32SliceEqual(result.AsFloat32(), []float32{5, 15, 25}) {
			t.Errorf("SubScalar failed: got %v", result.AsFloat32())
		}
	})

	t.Run("MulScalar", func(t *testing.T) {
		a := rawF32(t, tensor.Shape{3}, []float32{1, 2, 3})
		result := backend.MulScalar(a, float32(-2))
		if !float32SliceEqual(result.AsFloat32(), []float32{-2, -4, -6}) {
			t.Errorf("MulScalar failed: got %v", result.AsFloat32())
		}
	})

	t.Run("DivScalar", func(t *testing.T) {
		a := rawF32(t, tensor.Shape{3}, []float32{10, 20, 30})
		result := backend.DivScalar(a, float32(10))
		if !float32SliceEqual(result.AsFloat32(), []float32{1, 2, 3}) {
			t.Errorf("DivScalar failed: got %v", result.AsFloat32())
		}
	})

	t.Run("Int64Scalar", func(t *testing.T) {
		a, _ := tensor.NewRaw(tensor.Shape{3}, tensor.Int64, tensor.CPU)
		copy(a.AsInt64(), []int64{1, 2, 3})

		result := backend.AddScalar(a, int64(100))

		expected := []int64{101, 102, 103}
		for i, exp := range expected {
			if result.AsInt64()[i] != exp {
				t.Errorf("Int64 AddScalar failed at %d: got %v", i, result.AsInt64()[i])
			}
		}
	})

	t.Run("ScalarTypeMismatchPanics", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic for float64 scalar on Float32 tensor")
			}
		}()
		a := rawF32(t, tensor.Shape{2}, []float32{1, 2})
		backend.AddScalar(a, float64(1))
	})

	t.Run("FreshResult", func(t *testing.T) {
		a := rawF32(t, tensor.Shape{3}, []float32{1, 2, 3})
		result := backend.MulScalar(a, float32(2))

		if result == a {
			t.Error("scalar ops must not mutate the input")
		}
		if !float32SliceEqual(a.AsFloat32(), []float32{1, 2, 3}) {
			t.Errorf("input was modified: %v", a.AsFloat32())
		}
	})
}

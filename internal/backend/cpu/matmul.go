package cpu

import (
	"fmt"

	"github.com/arches-ml/arches/internal/tensor"
)

// MatMul performs 2D matrix multiplication. Every dense layer in the
// encoder/decoder stacks reduces to this; higher-rank inputs are reshaped
// to 2D by the caller before dispatch.
func (cb *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("MatMul: expected 2D tensors, got %v and %v", aShape, bShape))
	}
	if aShape[1] != bShape[0] {
		panic(fmt.Sprintf("MatMul: inner dimensions mismatch: %v x %v", aShape, bShape))
	}
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("MatMul: dtype mismatch: %v vs %v", a.DType(), b.DType()))
	}

	m, k, n := aShape[0], aShape[1], bShape[1]
	result := newResult(tensor.Shape{m, n}, a.DType(), a.Device(), "MatMul")

	switch a.DType() {
	case tensor.Float32:
		matmulFloat32(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), m, k, n)
	case tensor.Float64:
		matmulFloat64(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), m, k, n)
	default:
		panic(fmt.Sprintf("MatMul: unsupported dtype %v", a.DType()))
	}
	return result
}

func matmulFloat32(dst, a, b []float32, m, k, n int) {
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var sum float32
			for p := 0; p < k; p++ {
				sum += a[i*k+p] * b[p*n+j]
			}
			dst[i*n+j] = sum
		}
	}
}

func matmulFloat64(dst, a, b []float64, m, k, n int) {
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var sum float64
			for p := 0; p < k; p++ {
				sum += a[i*k+p] * b[p*n+j]
			}
			dst[i*n+j] = sum
		}
	}
}

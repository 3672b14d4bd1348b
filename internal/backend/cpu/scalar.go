package cpu

import (
	"fmt"

	"github.com/arches-ml/arches/internal/tensor"
)

// Scalar ops allocate a fresh result; the scalar's Go type must match the
// tensor dtype (float32 scalar for Float32 tensors, and so on). The typed
// Tensor wrappers guarantee this; raw-level callers must do the same.
//
//nolint:dupl // Per-op dtype switches are intentionally parallel

// AddScalar adds a scalar to every element.
func (cb *CPUBackend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	result := newResult(x.Shape(), x.DType(), x.Device(), "AddScalar")
	switch x.DType() {
	case tensor.Float32:
		s := mustFloat32(scalar, "AddScalar")
		src, dst := x.AsFloat32(), result.AsFloat32()
		for i, v := range src {
			dst[i] = v + s
		}
	case tensor.Float64:
		s := mustFloat64(scalar, "AddScalar")
		src, dst := x.AsFloat64(), result.AsFloat64()
		for i, v := range src {
			dst[i] = v + s
		}
	case tensor.Int32:
		s := mustInt32(scalar, "AddScalar")
		src, dst := x.AsInt32(), result.AsInt32()
		for i, v := range src {
			dst[i] = v + s
		}
	case tensor.Int64:
		s := mustInt64(scalar, "AddScalar")
		src, dst := x.AsInt64(), result.AsInt64()
		for i, v := range src {
			dst[i] = v + s
		}
	default:
		panic(fmt.Sprintf("AddScalar: unsupported dtype %v", x.DType()))
	}
	return result
}

// SubScalar subtracts a scalar from every element.
func (cb *CPUBackend) SubScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	result := newResult(x.Shape(), x.DType(), x.Device(), "SubScalar")
	switch x.DType() {
	case tensor.Float32:
		s := mustFloat32(scalar, "SubScalar")
		src, dst := x.AsFloat32(), result.AsFloat32()
		for i, v := range src {
			dst[i] = v - s
		}
	case tensor.Float64:
		s := mustFloat64(scalar, "SubScalar")
		src, dst := x.AsFloat64(), result.AsFloat64()
		for i, v := range src {
			dst[i] = v - s
		}
	case tensor.Int32:
		s := mustInt32(scalar, "SubScalar")
		src, dst := x.AsInt32(), result.AsInt32()
		for i, v := range src {
			dst[i] = v - s
		}
	case tensor.Int64:
		s := mustInt64(scalar, "SubScalar")
		src, dst := x.AsInt64(), result.AsInt64()
		for i, v := range src {
			dst[i] = v - s
		}
	default:
		panic(fmt.Sprintf("SubScalar: unsupported dtype %v", x.DType()))
	}
	return result
}

// MulScalar multiplies every element by a scalar.
func (cb *CPUBackend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	result := newResult(x.Shape(), x.DType(), x.Device(), "MulScalar")
	switch x.DType() {
	case tensor.Float32:
		s := mustFloat32(scalar, "MulScalar")
		src, dst := x.AsFloat32(), result.AsFloat32()
		for i, v := range src {
			dst[i] = v * s
		}
	case tensor.Float64:
		s := mustFloat64(scalar, "MulScalar")
		src, dst := x.AsFloat64(), result.AsFloat64()
		for i, v := range src {
			dst[i] = v * s
		}
	case tensor.Int32:
		s := mustInt32(scalar, "MulScalar")
		src, dst := x.AsInt32(), result.AsInt32()
		for i, v := range src {
			dst[i] = v * s
		}
	case tensor.Int64:
		s := mustInt64(scalar, "MulScalar")
		src, dst := x.AsInt64(), result.AsInt64()
		for i, v := range src {
			dst[i] = v * s
		}
	default:
		panic(fmt.Sprintf("MulScalar: unsupported dtype %v", x.DType()))
	}
	return result
}

// DivScalar divides every element by a scalar.
func (cb *CPUBackend) DivScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	result := newResult(x.Shape(), x.DType(), x.Device(), "DivScalar")
	switch x.DType() {
	case tensor.Float32:
		s := mustFloat32(scalar, "DivScalar")
		src, dst := x.AsFloat32(), result.AsFloat32()
		for i, v := range src {
			dst[i] = v / s
		}
	case tensor.Float64:
		s := mustFloat64(scalar, "DivScalar")
		src, dst := x.AsFloat64(), result.AsFloat64()
		for i, v := range src {
			dst[i] = v / s
		}
	case tensor.Int32:
		s := mustInt32(scalar, "DivScalar")
		src, dst := x.AsInt32(), result.AsInt32()
		for i, v := range src {
			dst[i] = v / s
		}
	case tensor.Int64:
		s := mustInt64(scalar, "DivScalar")
		src, dst := x.AsInt64(), result.AsInt64()
		for i, v := range src {
			dst[i] = v / s
		}
	default:
		panic(fmt.Sprintf("DivScalar: unsupported dtype %v", x.DType()))
	}
	return result
}

func mustFloat32(scalar any, op string) float32 {
	s, ok := scalar.(float32)
	if !ok {
		panic(fmt.Sprintf("%s: expected float32 scalar for Float32 tensor, got %T", op, scalar))
	}
	return s
}

func mustFloat64(scalar any, op string) float64 {
	s, ok := scalar.(float64)
	if !ok {
		panic(fmt.Sprintf("%s: expected float64 scalar for Float64 tensor, got %T", op, scalar))
	}
	return s
}

func mustInt32(scalar any, op string) int32 {
	s, ok := scalar.(int32)
	if !ok {
		panic(fmt.Sprintf("%s: expected int32 scalar for Int32 tensor, got %T", op, scalar))
	}
	return s
}

func mustInt64(scalar any, op string) int64 {
	s, ok := scalar.(int64)
	if !ok {
		panic(fmt.Sprintf("%s: expected int64 scalar for Int64 tensor, got %T", op, scalar))
	}
	return s
}

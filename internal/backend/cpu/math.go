package cpu

import (
	"fmt"
	"math"

	"github.com/arches-ml/arches/internal/tensor"
)

// Exp computes e^x element-wise. The decoder uses this to turn log-library
// sizes back into expected counts.
func (cb *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	result := newResult(x.Shape(), x.DType(), x.Device(), "Exp")
	switch x.DType() {
	case tensor.Float32:
		src, dst := x.AsFloat32(), result.AsFloat32()
		for i, v := range src {
			dst[i] = float32(math.Exp(float64(v)))
		}
	case tensor.Float64:
		src, dst := x.AsFloat64(), result.AsFloat64()
		for i, v := range src {
			dst[i] = math.Exp(v)
		}
	default:
		panic(fmt.Sprintf("Exp: unsupported dtype %v", x.DType()))
	}
	return result
}

// Log computes the natural logarithm element-wise. Panics on non-positive
// input rather than propagating NaN through a training run; callers working
// with counts or probabilities shift by a small epsilon first.
func (cb *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	result := newResult(x.Shape(), x.DType(), x.Device(), "Log")
	switch x.DType() {
	case tensor.Float32:
		src, dst := x.AsFloat32(), result.AsFloat32()
		for i, v := range src {
			if v <= 0 {
				panic(fmt.Sprintf("Log: non-positive input %v at index %d", v, i))
			}
			dst[i] = float32(math.Log(float64(v)))
		}
	case tensor.Float64:
		src, dst := x.AsFloat64(), result.AsFloat64()
		for i, v := range src {
			if v <= 0 {
				panic(fmt.Sprintf("Log: non-positive input %v at index %d", v, i))
			}
			dst[i] = math.Log(v)
		}
	default:
		panic(fmt.Sprintf("Log: unsupported dtype %v", x.DType()))
	}
	return result
}

// Sqrt computes the square root element-wise. Panics on negative input.
func (cb *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	result := newResult(x.Shape(), x.DType(), x.Device(), "Sqrt")
	switch x.DType() {
	case tensor.Float32:
		src, dst := x.AsFloat32(), result.AsFloat32()
		for i, v := range src {
			if v < 0 {
				panic(fmt.Sprintf("Sqrt: negative input %v at index %d", v, i))
			}
			dst[i] = float32(math.Sqrt(float64(v)))
		}
	case tensor.Float64:
		src, dst := x.AsFloat64(), result.AsFloat64()
		for i, v := range src {
			if v < 0 {
				panic(fmt.Sprintf("Sqrt: negative input %v at index %d", v, i))
			}
			dst[i] = math.Sqrt(v)
		}
	default:
		panic(fmt.Sprintf("Sqrt: unsupported dtype %v", x.DType()))
	}
	return result
}

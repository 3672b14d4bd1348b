package cpu

import (
	"fmt"
	"math"

	"github.com/arches-ml/arches/internal/tensor"
)

// ReLU computes max(0, x) element-wise.
func (cb *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result := newResult(x.Shape(), x.DType(), x.Device(), "ReLU")
	switch x.DType() {
	case tensor.Float32:
		src, dst := x.AsFloat32(), result.AsFloat32()
		for i, v := range src {
			if v > 0 {
				dst[i] = v
			}
		}
	case tensor.Float64:
		src, dst := x.AsFloat64(), result.AsFloat64()
		for i, v := range src {
			if v > 0 {
				dst[i] = v
			}
		}
	default:
		panic(fmt.Sprintf("ReLU: unsupported dtype %v", x.DType()))
	}
	return result
}

// Sigmoid computes 1/(1+e^-x) element-wise. Dropout gates and zero-inflation
// logits pass through here.
func (cb *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	result := newResult(x.Shape(), x.DType(), x.Device(), "Sigmoid")
	switch x.DType() {
	case tensor.Float32:
		src, dst := x.AsFloat32(), result.AsFloat32()
		for i, v := range src {
			dst[i] = float32(1.0 / (1.0 + math.Exp(-float64(v))))
		}
	case tensor.Float64:
		src, dst := x.AsFloat64(), result.AsFloat64()
		for i, v := range src {
			dst[i] = 1.0 / (1.0 + math.Exp(-v))
		}
	default:
		panic(fmt.Sprintf("Sigmoid: unsupported dtype %v", x.DType()))
	}
	return result
}

// Softplus computes log(1+e^x) element-wise using the overflow-safe form
// max(x,0) + log1p(e^-|x|). Dispersion heads rely on it staying positive.
func (cb *CPUBackend) Softplus(x *tensor.RawTensor) *tensor.RawTensor {
	result := newResult(x.Shape(), x.DType(), x.Device(), "Softplus")
	switch x.DType() {
	case tensor.Float32:
		src, dst := x.AsFloat32(), result.AsFloat32()
		for i, v := range src {
			fv := float64(v)
			dst[i] = float32(math.Max(fv, 0) + math.Log1p(math.Exp(-math.Abs(fv))))
		}
	case tensor.Float64:
		src, dst := x.AsFloat64(), result.AsFloat64()
		for i, v := range src {
			dst[i] = math.Max(v, 0) + math.Log1p(math.Exp(-math.Abs(v)))
		}
	default:
		panic(fmt.Sprintf("Softplus: unsupported dtype %v", x.DType()))
	}
	return result
}

// Softmax normalizes along dim so the slice sums to 1. The max is subtracted
// before exponentiation for numerical stability. Mean-decoder heads use this
// to produce per-gene expression proportions.
func (cb *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	if dim < 0 {
		dim += len(shape)
	}
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("Softmax: dim %d out of range for shape %v", dim, shape))
	}

	result := newResult(shape, x.DType(), x.Device(), "Softmax")

	outerSize := 1
	for i := 0; i < dim; i++ {
		outerSize *= shape[i]
	}
	dimSize := shape[dim]
	innerSize := 1
	for i := dim + 1; i < len(shape); i++ {
		innerSize *= shape[i]
	}

	switch x.DType() {
	case tensor.Float32:
		softmaxFloat32(result.AsFloat32(), x.AsFloat32(), outerSize, dimSize, innerSize)
	case tensor.Float64:
		softmaxFloat64(result.AsFloat64(), x.AsFloat64(), outerSize, dimSize, innerSize)
	default:
		panic(fmt.Sprintf("Softmax: unsupported dtype %v", x.DType()))
	}
	return result
}

func softmaxFloat32(dst, src []float32, outerSize, dimSize, innerSize int) {
	for outer := 0; outer < outerSize; outer++ {
		for inner := 0; inner < innerSize; inner++ {
			base := outer*dimSize*innerSize + inner

			maxVal := src[base]
			for d := 1; d < dimSize; d++ {
				if v := src[base+d*innerSize]; v > maxVal {
					maxVal = v
				}
			}

			var sum float64
			for d := 0; d < dimSize; d++ {
				e := math.Exp(float64(src[base+d*innerSize] - maxVal))
				dst[base+d*innerSize] = float32(e)
				sum += e
			}

			for d := 0; d < dimSize; d++ {
				dst[base+d*innerSize] = float32(float64(dst[base+d*innerSize]) / sum)
			}
		}
	}
}

func softmaxFloat64(dst, src []float64, outerSize, dimSize, innerSize int) {
	for outer := 0; outer < outerSize; outer++ {
		for inner := 0; inner < innerSize; inner++ {
			base := outer*dimSize*innerSize + inner

			maxVal := src[base]
			for d := 1; d < dimSize; d++ {
				if v := src[base+d*innerSize]; v > maxVal {
					maxVal = v
				}
			}

			var sum float64
			for d := 0; d < dimSize; d++ {
				e := math.Exp(src[base+d*innerSize] - maxVal)
				dst[base+d*innerSize] = e
				sum += e
			}

			for d := 0; d < dimSize; d++ {
				dst[base+d*innerSize] /= sum
			}
		}
	}
}

package cpu

import (
	"fmt"

	"github.com/arches-ml/arches/internal/tensor"
)

// Sum reduces all elements to a single value, returned as a 1-element tensor.
// Loss terms end up here: the ELBO over a minibatch is a Sum away from a
// scalar the optimizer can step on.
func (cb *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result := newResult(tensor.Shape{1}, x.DType(), x.Device(), "Sum")
	switch x.DType() {
	case tensor.Float32:
		var sum float64
		for _, v := range x.AsFloat32() {
			sum += float64(v)
		}
		result.AsFloat32()[0] = float32(sum)
	case tensor.Float64:
		var sum float64
		for _, v := range x.AsFloat64() {
			sum += v
		}
		result.AsFloat64()[0] = sum
	case tensor.Int32:
		var sum int32
		for _, v := range x.AsInt32() {
			sum += v
		}
		result.AsInt32()[0] = sum
	case tensor.Int64:
		var sum int64
		for _, v := range x.AsInt64() {
			sum += v
		}
		result.AsInt64()[0] = sum
	default:
		panic(fmt.Sprintf("Sum: unsupported dtype %v", x.DType()))
	}
	return result
}

// SumDim sums along a single dimension. With keepDim the reduced dimension
// stays as size 1, which keeps the result broadcastable against the input.
func (cb *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	if dim < 0 {
		dim += len(shape)
	}
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("SumDim: dim %d out of range for shape %v", dim, shape))
	}

	outShape := reducedShape(shape, dim, keepDim)
	result := newResult(outShape, x.DType(), x.Device(), "SumDim")

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
		sumDimFloat32(result.AsFloat32(), x.AsFloat32(), outerSize, dimSize, innerSize)
	case tensor.Float64:
		sumDimFloat64(result.AsFloat64(), x.AsFloat64(), outerSize, dimSize, innerSize)
	case tensor.Int32:
		sumDimInt32(result.AsInt32(), x.AsInt32(), outerSize, dimSize, innerSize)
	case tensor.Int64:
		sumDimInt64(result.AsInt64(), x.AsInt64(), outerSize, dimSize, innerSize)
	default:
		panic(fmt.Sprintf("SumDim: unsupported dtype %v", x.DType()))
	}
	return result
}

// MeanDim averages along a single dimension. Running batch statistics and
// per-cell reconstruction errors both reduce through here.
func (cb *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	normDim := dim
	if normDim < 0 {
		normDim += len(shape)
	}
	if normDim < 0 || normDim >= len(shape) {
		panic(fmt.Sprintf("MeanDim: dim %d out of range for shape %v", dim, shape))
	}

	result := cb.SumDim(x, normDim, keepDim)
	n := shape[normDim]

	switch result.DType() {
	case tensor.Float32:
		dst := result.AsFloat32()
		for i := range dst {
			dst[i] /= float32(n)
		}
	case tensor.Float64:
		dst := result.AsFloat64()
		for i := range dst {
			dst[i] /= float64(n)
		}
	default:
		panic(fmt.Sprintf("MeanDim: unsupported dtype %v", result.DType()))
	}
	return result
}

func reducedShape(shape tensor.Shape, dim int, keepDim bool) tensor.Shape {
	if keepDim {
		out := make(tensor.Shape, len(shape))
		copy(out, shape)
		out[dim] = 1
		return out
	}
	out := make(tensor.Shape, 0, len(shape)-1)
	for i, s := range shape {
		if i != dim {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		out = tensor.Shape{1}
	}
	return out
}

//nolint:dupl // Per-dtype reduction kernels are intentionally parallel
func sumDimFloat32(dst, src []float32, outerSize, dimSize, innerSize int) {
	for outer := 0; outer < outerSize; outer++ {
		for inner := 0; inner < innerSize; inner++ {
			var sum float64
			for d := 0; d < dimSize; d++ {
				sum += float64(src[outer*dimSize*innerSize+d*innerSize+inner])
			}
			dst[outer*innerSize+inner] = float32(sum)
		}
	}
}

func sumDimFloat64(dst, src []float64, outerSize, dimSize, innerSize int) {
	for outer := 0; outer < outerSize; outer++ {
		for inner := 0; inner < innerSize; inner++ {
			var sum float64
			for d := 0; d < dimSize; d++ {
				sum += src[outer*dimSize*innerSize+d*innerSize+inner]
			}
			dst[outer*innerSize+inner] = sum
		}
	}
}

func sumDimInt32(dst, src []int32, outerSize, dimSize, innerSize int) {
	for outer := 0; outer < outerSize; outer++ {
		for inner := 0; inner < innerSize; inner++ {
			var sum int32
			for d := 0; d < dimSize; d++ {
				sum += src[outer*dimSize*innerSize+d*innerSize+inner]
			}
			dst[outer*innerSize+inner] = sum
		}
	}
}

func sumDimInt64(dst, src []int64, outerSize, dimSize, innerSize int) {
	for outer := 0; outer < outerSize; outer++ {
		for inner := 0; inner < innerSize; inner++ {
			var sum int64
			for d := 0; d < dimSize; d++ {
				sum += src[outer*dimSize*innerSize+d*innerSize+inner]
			}
			dst[outer*innerSize+inner] = sum
		}
	}
}

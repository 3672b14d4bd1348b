package cpu

import (
	"fmt"

	"github.com/arches-ml/arches/internal/tensor"
)

// Cat concatenates tensors along dim. The model forward pass joins expression
// features with one-hot covariate blocks this way, and the weight reconciler
// splices retained columns next to freshly initialized ones.
func (cb *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	result, err := tensor.Concat(tensors, dim)
	if err != nil {
		panic(fmt.Sprintf("Cat: %v", err))
	}
	return result
}

// Expand broadcasts x to the given shape. Only size-1 dimensions (or missing
// leading dimensions) may grow; the data is materialized, not aliased.
func (cb *CPUBackend) Expand(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	broadcast, _, err := tensor.BroadcastShapes(x.Shape(), shape)
	if err != nil || !broadcast.Equal(shape) {
		panic(fmt.Sprintf("Expand: cannot expand %v to %v", x.Shape(), shape))
	}

	result := newResult(shape, x.DType(), x.Device(), "Expand")
	outStrides := shape.ComputeStrides()
	srcStrides := computeBroadcastStridesForShape(x.Shape(), shape)
	n := shape.NumElements()

	switch x.DType() {
	case tensor.Float32:
		src, dst := x.AsFloat32(), result.AsFloat32()
		for i := 0; i < n; i++ {
			dst[i] = src[computeFlatIndex(i, outStrides, srcStrides)]
		}
	case tensor.Float64:
		src, dst := x.AsFloat64(), result.AsFloat64()
		for i := 0; i < n; i++ {
			dst[i] = src[computeFlatIndex(i, outStrides, srcStrides)]
		}
	case tensor.Int32:
		src, dst := x.AsInt32(), result.AsInt32()
		for i := 0; i < n; i++ {
			dst[i] = src[computeFlatIndex(i, outStrides, srcStrides)]
		}
	case tensor.Int64:
		src, dst := x.AsInt64(), result.AsInt64()
		for i := 0; i < n; i++ {
			dst[i] = src[computeFlatIndex(i, outStrides, srcStrides)]
		}
	default:
		panic(fmt.Sprintf("Expand: unsupported dtype %v", x.DType()))
	}
	return result
}

// OneHot encodes a 1D tensor of integer codes as a [n, numClasses] Float32
// matrix. Batch and categorical-covariate codes become network inputs through
// this encoding, so codes must lie in [0, numClasses).
func (cb *CPUBackend) OneHot(indices *tensor.RawTensor, numClasses int) *tensor.RawTensor {
	if len(indices.Shape()) != 1 {
		panic(fmt.Sprintf("OneHot: expected 1D indices, got shape %v", indices.Shape()))
	}
	if numClasses <= 0 {
		panic(fmt.Sprintf("OneHot: numClasses must be positive, got %d", numClasses))
	}

	n := indices.Shape()[0]
	result := newResult(tensor.Shape{n, numClasses}, tensor.Float32, indices.Device(), "OneHot")
	dst := result.AsFloat32()

	set := func(row int, code int64) {
		if code < 0 || code >= int64(numClasses) {
			panic(fmt.Sprintf("OneHot: code %d out of range [0, %d)", code, numClasses))
		}
		dst[row*numClasses+int(code)] = 1
	}

	switch indices.DType() {
	case tensor.Int32:
		for i, v := range indices.AsInt32() {
			set(i, int64(v))
		}
	case tensor.Int64:
		for i, v := range indices.AsInt64() {
			set(i, v)
		}
	default:
		panic(fmt.Sprintf("OneHot: expected integer indices, got %v", indices.DType()))
	}
	return result
}

// Cast converts x to the given dtype, copying the data.
func (cb *CPUBackend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	result, err := tensor.CastRaw(x, dtype)
	if err != nil {
		panic(fmt.Sprintf("Cast: %v", err))
	}
	return result
}

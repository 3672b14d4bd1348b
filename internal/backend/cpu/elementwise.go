package cpu

import (
	"github.com/arches-ml/arches/internal/tensor"
)

// Element-wise kernels. Organized per operation; each dispatcher switches
// on dtype and the kernels loop over flat slices. Inplace variants require
// a.Shape().Equal(b.Shape()) && a.IsUnique().
//
//nolint:dupl // Per-op kernel groups are intentionally parallel

func addInplace(a, b *tensor.RawTensor) {
	switch a.DType() {
	case tensor.Float32:
		x, y := a.AsFloat32(), b.AsFloat32()
		for i := range x {
			x[i] += y[i]
		}
	case tensor.Float64:
		x, y := a.AsFloat64(), b.AsFloat64()
		for i := range x {
			x[i] += y[i]
		}
	case tensor.Int32:
		x, y := a.AsInt32(), b.AsInt32()
		for i := range x {
			x[i] += y[i]
		}
	case tensor.Int64:
		x, y := a.AsInt64(), b.AsInt64()
		for i := range x {
			x[i] += y[i]
		}
	default:
		panic("addInplace: unsupported dtype")
	}
}

func addVectorized(result, a, b *tensor.RawTensor) {
	switch a.DType() {
	case tensor.Float32:
		dst, x, y := result.AsFloat32(), a.AsFloat32(), b.AsFloat32()
		for i := range x {
			dst[i] = x[i] + y[i]
		}
	case tensor.Float64:
		dst, x, y := result.AsFloat64(), a.AsFloat64(), b.AsFloat64()
		for i := range x {
			dst[i] = x[i] + y[i]
		}
	case tensor.Int32:
		dst, x, y := result.AsInt32(), a.AsInt32(), b.AsInt32()
		for i := range x {
			dst[i] = x[i] + y[i]
		}
	case tensor.Int64:
		dst, x, y := result.AsInt64(), a.AsInt64(), b.AsInt64()
		for i := range x {
			dst[i] = x[i] + y[i]
		}
	default:
		panic("addVectorized: unsupported dtype")
	}
}

func addWithBroadcast(result, a, b *tensor.RawTensor, outShape tensor.Shape) {
	outStrides := outShape.ComputeStrides()
	aStrides := computeBroadcastStridesForShape(a.Shape(), outShape)
	bStrides := computeBroadcastStridesForShape(b.Shape(), outShape)
	n := outShape.NumElements()

	switch a.DType() {
	case tensor.Float32:
		dst, x, y := result.AsFloat32(), a.AsFloat32(), b.AsFloat32()
		for i := 0; i < n; i++ {
			dst[i] = x[computeFlatIndex(i, outStrides, aStrides)] + y[computeFlatIndex(i, outStrides, bStrides)]
		}
	case tensor.Float64:
		dst, x, y := result.AsFloat64(), a.AsFloat64(), b.AsFloat64()
		for i := 0; i < n; i++ {
			dst[i] = x[computeFlatIndex(i, outStrides, aStrides)] + y[computeFlatIndex(i, outStrides, bStrides)]
		}
	case tensor.Int32:
		dst, x, y := result.AsInt32(), a.AsInt32(), b.AsInt32()
		for i := 0; i < n; i++ {
			dst[i] = x[computeFlatIndex(i, outStrides, aStrides)] + y[computeFlatIndex(i, outStrides, bStrides)]
		}
	case tensor.Int64:
		dst, x, y := result.AsInt64(), a.AsInt64(), b.AsInt64()
		for i := 0; i < n; i++ {
			dst[i] = x[computeFlatIndex(i, outStrides, aStrides)] + y[computeFlatIndex(i, outStrides, bStrides)]
		}
	default:
		panic("addWithBroadcast: unsupported dtype")
	}
}

func subInplace(a, b *tensor.RawTensor) {
	switch a.DType() {
	case tensor.Float32:
		x, y := a.AsFloat32(), b.AsFloat32()
		for i := range x {
			x[i] -= y[i]
		}
	case tensor.Float64:
		x, y := a.AsFloat64(), b.AsFloat64()
		for i := range x {
			x[i] -= y[i]
		}
	case tensor.Int32:
		x, y := a.AsInt32(), b.AsInt32()
		for i := range x {
			x[i] -= y[i]
		}
	case tensor.Int64:
		x, y := a.AsInt64(), b.AsInt64()
		for i := range x {
			x[i] -= y[i]
		}
	default:
		panic("subInplace: unsupported dtype")
	}
}

func subVectorized(result, a, b *tensor.RawTensor) {
	switch a.DType() {
	case tensor.Float32:
		dst, x, y := result.AsFloat32(), a.AsFloat32(), b.AsFloat32()
		for i := range x {
			dst[i] = x[i] - y[i]
		}
	case tensor.Float64:
		dst, x, y := result.AsFloat64(), a.AsFloat64(), b.AsFloat64()
		for i := range x {
			dst[i] = x[i] - y[i]
		}
	case tensor.Int32:
		dst, x, y := result.AsInt32(), a.AsInt32(), b.AsInt32()
		for i := range x {
			dst[i] = x[i] - y[i]
		}
	case tensor.Int64:
		dst, x, y := result.AsInt64(), a.AsInt64(), b.AsInt64()
		for i := range x {
			dst[i] = x[i] - y[i]
		}
	default:
		panic("subVectorized: unsupported dtype")
	}
}

func subWithBroadcast(result, a, b *tensor.RawTensor, outShape tensor.Shape) {
	outStrides := outShape.ComputeStrides()
	aStrides := computeBroadcastStridesForShape(a.Shape(), outShape)
	bStrides := computeBroadcastStridesForShape(b.Shape(), outShape)
	n := outShape.NumElements()

	switch a.DType() {
	case tensor.Float32:
		dst, x, y := result.AsFloat32(), a.AsFloat32(), b.AsFloat32()
		for i := 0; i < n; i++ {
			dst[i] = x[computeFlatIndex(i, outStrides, aStrides)] - y[computeFlatIndex(i, outStrides, bStrides)]
		}
	case tensor.Float64:
		dst, x, y := result.AsFloat64(), a.AsFloat64(), b.AsFloat64()
		for i := 0; i < n; i++ {
			dst[i] = x[computeFlatIndex(i, outStrides, aStrides)] - y[computeFlatIndex(i, outStrides, bStrides)]
		}
	case tensor.Int32:
		dst, x, y := result.AsInt32(), a.AsInt32(), b.AsInt32()
		for i := 0; i < n; i++ {
			dst[i] = x[computeFlatIndex(i, outStrides, aStrides)] - y[computeFlatIndex(i, outStrides, bStrides)]
		}
	case tensor.Int64:
		dst, x, y := result.AsInt64(), a.AsInt64(), b.AsInt64()
		for i := 0; i < n; i++ {
			dst[i] = x[computeFlatIndex(i, outStrides, aStrides)] - y[computeFlatIndex(i, outStrides, bStrides)]
		}
	default:
		panic("subWithBroadcast: unsupported dtype")
	}
}

func mulInplace(a, b *tensor.RawTensor) {
	switch a.DType() {
	case tensor.Float32:
		x, y := a.AsFloat32(), b.AsFloat32()
		for i := range x {
			x[i] *= y[i]
		}
	case tensor.Float64:
		x, y := a.AsFloat64(), b.AsFloat64()
		for i := range x {
			x[i] *= y[i]
		}
	case tensor.Int32:
		x, y := a.AsInt32(), b.AsInt32()
		for i := range x {
			x[i] *= y[i]
		}
	case tensor.Int64:
		x, y := a.AsInt64(), b.AsInt64()
		for i := range x {
			x[i] *= y[i]
		}
	default:
		panic("mulInplace: unsupported dtype")
	}
}

func mulVectorized(result, a, b *tensor.RawTensor) {
	switch a.DType() {
	case tensor.Float32:
		dst, x, y := result.AsFloat32(), a.AsFloat32(), b.AsFloat32()
		for i := range x {
			dst[i] = x[i] * y[i]
		}
	case tensor.Float64:
		dst, x, y := result.AsFloat64(), a.AsFloat64(), b.AsFloat64()
		for i := range x {
			dst[i] = x[i] * y[i]
		}
	case tensor.Int32:
		dst, x, y := result.AsInt32(), a.AsInt32(), b.AsInt32()
		for i := range x {
			dst[i] = x[i] * y[i]
		}
	case tensor.Int64:
		dst, x, y := result.AsInt64(), a.AsInt64(), b.AsInt64()
		for i := range x {
			dst[i] = x[i] * y[i]
		}
	default:
		panic("mulVectorized: unsupported dtype")
	}
}

func mulWithBroadcast(result, a, b *tensor.RawTensor, outShape tensor.Shape) {
	outStrides := outShape.ComputeStrides()
	aStrides := computeBroadcastStridesForShape(a.Shape(), outShape)
	bStrides := computeBroadcastStridesForShape(b.Shape(), outShape)
	n := outShape.NumElements()

	switch a.DType() {
	case tensor.Float32:
		dst, x, y := result.AsFloat32(), a.AsFloat32(), b.AsFloat32()
		for i := 0; i < n; i++ {
			dst[i] = x[computeFlatIndex(i, outStrides, aStrides)] * y[computeFlatIndex(i, outStrides, bStrides)]
		}
	case tensor.Float64:
		dst, x, y := result.AsFloat64(), a.AsFloat64(), b.AsFloat64()
		for i := 0; i < n; i++ {
			dst[i] = x[computeFlatIndex(i, outStrides, aStrides)] * y[computeFlatIndex(i, outStrides, bStrides)]
		}
	case tensor.Int32:
		dst, x, y := result.AsInt32(), a.AsInt32(), b.AsInt32()
		for i := 0; i < n; i++ {
			dst[i] = x[computeFlatIndex(i, outStrides, aStrides)] * y[computeFlatIndex(i, outStrides, bStrides)]
		}
	case tensor.Int64:
		dst, x, y := result.AsInt64(), a.AsInt64(), b.AsInt64()
		for i := 0; i < n; i++ {
			dst[i] = x[computeFlatIndex(i, outStrides, aStrides)] * y[computeFlatIndex(i, outStrides, bStrides)]
		}
	default:
		panic("mulWithBroadcast: unsupported dtype")
	}
}

func divInplace(a, b *tensor.RawTensor) {
	switch a.DType() {
	case tensor.Float32:
		x, y := a.AsFloat32(), b.AsFloat32()
		for i := range x {
			x[i] /= y[i]
		}
	case tensor.Float64:
		x, y := a.AsFloat64(), b.AsFloat64()
		for i := range x {
			x[i] /= y[i]
		}
	case tensor.Int32:
		x, y := a.AsInt32(), b.AsInt32()
		for i := range x {
			x[i] /= y[i]
		}
	case tensor.Int64:
		x, y := a.AsInt64(), b.AsInt64()
		for i := range x {
			x[i] /= y[i]
		}
	default:
		panic("divInplace: unsupported dtype")
	}
}

func divVectorized(result, a, b *tensor.RawTensor) {
	switch a.DType() {
	case tensor.Float32:
		dst, x, y := result.AsFloat32(), a.AsFloat32(), b.AsFloat32()
		for i := range x {
			dst[i] = x[i] / y[i]
		}
	case tensor.Float64:
		dst, x, y := result.AsFloat64(), a.AsFloat64(), b.AsFloat64()
		for i := range x {
			dst[i] = x[i] / y[i]
		}
	case tensor.Int32:
		dst, x, y := result.AsInt32(), a.AsInt32(), b.AsInt32()
		for i := range x {
			dst[i] = x[i] / y[i]
		}
	case tensor.Int64:
		dst, x, y := result.AsInt64(), a.AsInt64(), b.AsInt64()
		for i := range x {
			dst[i] = x[i] / y[i]
		}
	default:
		panic("divVectorized: unsupported dtype")
	}
}

func divWithBroadcast(result, a, b *tensor.RawTensor, outShape tensor.Shape) {
	outStrides := outShape.ComputeStrides()
	aStrides := computeBroadcastStridesForShape(a.Shape(), outShape)
	bStrides := computeBroadcastStridesForShape(b.Shape(), outShape)
	n := outShape.NumElements()

	switch a.DType() {
	case tensor.Float32:
		dst, x, y := result.AsFloat32(), a.AsFloat32(), b.AsFloat32()
		for i := 0; i < n; i++ {
			dst[i] = x[computeFlatIndex(i, outStrides, aStrides)] / y[computeFlatIndex(i, outStrides, bStrides)]
		}
	case tensor.Float64:
		dst, x, y := result.AsFloat64(), a.AsFloat64(), b.AsFloat64()
		for i := 0; i < n; i++ {
			dst[i] = x[computeFlatIndex(i, outStrides, aStrides)] / y[computeFlatIndex(i, outStrides, bStrides)]
		}
	case tensor.Int32:
		dst, x, y := result.AsInt32(), a.AsInt32(), b.AsInt32()
		for i := 0; i < n; i++ {
			dst[i] = x[computeFlatIndex(i, outStrides, aStrides)] / y[computeFlatIndex(i, outStrides, bStrides)]
		}
	case tensor.Int64:
		dst, x, y := result.AsInt64(), a.AsInt64(), b.AsInt64()
		for i := 0; i < n; i++ {
			dst[i] = x[computeFlatIndex(i, outStrides, aStrides)] / y[computeFlatIndex(i, outStrides, bStrides)]
		}
	default:
		panic("divWithBroadcast: unsupported dtype")
	}
}

func transposeData(result, src *tensor.RawTensor, axes []int) {
	shape := src.Shape()
	ndim := len(shape)
	srcStrides := shape.ComputeStrides()

	dstShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		dstShape[i] = shape[ax]
	}
	dstStrides := dstShape.ComputeStrides()

	n := shape.NumElements()
	coords := make([]int, ndim)

	mapIndex := func(i int) int {
		idx := i
		for dim := 0; dim < ndim; dim++ {
			coords[dim] = idx / srcStrides[dim]
			idx %= srcStrides[dim]
		}
		dstIdx := 0
		for dstDim, srcDim := range axes {
			dstIdx += coords[srcDim] * dstStrides[dstDim]
		}
		return dstIdx
	}

	switch src.DType() {
	case tensor.Float32:
		in, out := src.AsFloat32(), result.AsFloat32()
		for i := 0; i < n; i++ {
			out[mapIndex(i)] = in[i]
		}
	case tensor.Float64:
		in, out := src.AsFloat64(), result.AsFloat64()
		for i := 0; i < n; i++ {
			out[mapIndex(i)] = in[i]
		}
	case tensor.Int32:
		in, out := src.AsInt32(), result.AsInt32()
		for i := 0; i < n; i++ {
			out[mapIndex(i)] = in[i]
		}
	case tensor.Int64:
		in, out := src.AsInt64(), result.AsInt64()
		for i := 0; i < n; i++ {
			out[mapIndex(i)] = in[i]
		}
	default:
		panic("transpose: unsupported dtype")
	}
}

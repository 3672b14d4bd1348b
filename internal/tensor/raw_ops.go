// Package tensor raw_ops provides type-specific RawTensor operations used
// outside the backend path: weight reconciliation, artifact import, and
// dataset encoding all manipulate tensors before any backend is chosen.
// Type-specific implementations (Float32, Float64, Int32, Int64) are
// intentionally similar/duplicated for performance - generics would add
// overhead.
//
//nolint:dupl // Type-specific implementations are intentionally similar for performance
package tensor

import (
	"fmt"
)

// Concat concatenates tensors along the specified axis.
//
// All tensors must agree on dtype and on every dimension except the
// concatenation axis. Negative axis counts from the end.
//
//nolint:gocyclo,cyclop // Concat validation has inherent complexity
func Concat(tensors []*RawTensor, axis int) (*RawTensor, error) {
	if len(tensors) == 0 {
		return nil, fmt.Errorf("Concat: no tensors provided")
	}
	if len(tensors) == 1 {
		return tensors[0].Clone(), nil
	}

	first := tensors[0]
	ndim := len(first.shape)

	if axis < 0 {
		axis = ndim + axis
	}
	if axis < 0 || axis >= ndim {
		return nil, fmt.Errorf("Concat: axis %d out of range for %d dimensions", axis, ndim)
	}

	for i, t := range tensors[1:] {
		if len(t.shape) != ndim {
			return nil, fmt.Errorf("Concat: tensor %d has %d dimensions, expected %d", i+1, len(t.shape), ndim)
		}
		if t.dtype != first.dtype {
			return nil, fmt.Errorf("Concat: tensor %d has dtype %v, expected %v", i+1, t.dtype, first.dtype)
		}
		for j := 0; j < ndim; j++ {
			if j != axis && t.shape[j] != first.shape[j] {
				return nil, fmt.Errorf("Concat: tensor %d has shape %v, incompatible with %v on axis %d", i+1, t.shape, first.shape, axis)
			}
		}
	}

	newShape := make(Shape, ndim)
	copy(newShape, first.shape)
	for _, t := range tensors[1:] {
		newShape[axis] += t.shape[axis]
	}

	result, err := NewRaw(newShape, first.dtype, first.device)
	if err != nil {
		return nil, fmt.Errorf("Concat: %w", err)
	}

	switch first.dtype {
	case Float32:
		concatFloat32(tensors, result, axis)
	case Float64:
		concatFloat64(tensors, result, axis)
	case Int64:
		concatInt64(tensors, result, axis)
	case Int32:
		concatInt32(tensors, result, axis)
	default:
		return nil, fmt.Errorf("Concat: unsupported dtype %v", first.dtype)
	}

	return result, nil
}

func concatFloat32(tensors []*RawTensor, result *RawTensor, axis int) {
	outData := result.AsFloat32()
	outShape := result.shape

	outerSize := 1
	for i := 0; i < axis; i++ {
		outerSize *= outShape[i]
	}
	innerSize := 1
	for i := axis + 1; i < len(outShape); i++ {
		innerSize *= outShape[i]
	}

	offset := 0
	for outer := 0; outer < outerSize; outer++ {
		for _, t := range tensors {
			inData := t.AsFloat32()
			axisSize := t.shape[axis]
			copyLen := axisSize * innerSize
			inStart := outer * copyLen
			copy(outData[offset:offset+copyLen], inData[inStart:inStart+copyLen])
			offset += copyLen
		}
	}
}

func concatFloat64(tensors []*RawTensor, result *RawTensor, axis int) {
	outData := result.AsFloat64()
	outShape := result.shape

	outerSize := 1
	for i := 0; i < axis; i++ {
		outerSize *= outShape[i]
	}
	innerSize := 1
	for i := axis + 1; i < len(outShape); i++ {
		innerSize *= outShape[i]
	}

	offset := 0
	for outer := 0; outer < outerSize; outer++ {
		for _, t := range tensors {
			inData := t.AsFloat64()
			axisSize := t.shape[axis]
			copyLen := axisSize * innerSize
			inStart := outer * copyLen
			copy(outData[offset:offset+copyLen], inData[inStart:inStart+copyLen])
			offset += copyLen
		}
	}
}

func concatInt64(tensors []*RawTensor, result *RawTensor, axis int) {
	outData := result.AsInt64()
	outShape := result.shape

	outerSize := 1
	for i := 0; i < axis; i++ {
		outerSize *= outShape[i]
	}
	innerSize := 1
	for i := axis + 1; i < len(outShape); i++ {
		innerSize *= outShape[i]
	}

	offset := 0
	for outer := 0; outer < outerSize; outer++ {
		for _, t := range tensors {
			inData := t.AsInt64()
			axisSize := t.shape[axis]
			copyLen := axisSize * innerSize
			inStart := outer * copyLen
			copy(outData[offset:offset+copyLen], inData[inStart:inStart+copyLen])
			offset += copyLen
		}
	}
}

func concatInt32(tensors []*RawTensor, result *RawTensor, axis int) {
	outData := result.AsInt32()
	outShape := result.shape

	outerSize := 1
	for i := 0; i < axis; i++ {
		outerSize *= outShape[i]
	}
	innerSize := 1
	for i := axis + 1; i < len(outShape); i++ {
		innerSize *= outShape[i]
	}

	offset := 0
	for outer := 0; outer < outerSize; outer++ {
		for _, t := range tensors {
			inData := t.AsInt32()
			axisSize := t.shape[axis]
			copyLen := axisSize * innerSize
			inStart := outer * copyLen
			copy(outData[offset:offset+copyLen], inData[inStart:inStart+copyLen])
			offset += copyLen
		}
	}
}

// Narrow returns a copy of the tensor restricted to [start, start+length)
// along the given axis. Negative axis counts from the end; negative start
// counts from the end of that axis.
//
//nolint:gocyclo,cyclop // index normalization plus validation
func Narrow(x *RawTensor, axis, start, length int) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("Narrow: input tensor is nil")
	}

	ndim := len(x.shape)
	if axis < 0 {
		axis = ndim + axis
	}
	if axis < 0 || axis >= ndim {
		return nil, fmt.Errorf("Narrow: axis %d out of range for %d dimensions", axis, ndim)
	}

	axisSize := x.shape[axis]
	if start < 0 {
		start = axisSize + start
	}
	if start < 0 || length <= 0 || start+length > axisSize {
		return nil, fmt.Errorf("Narrow: range [%d, %d) invalid for axis size %d", start, start+length, axisSize)
	}

	newShape := x.shape.Clone()
	newShape[axis] = length

	result, err := NewRaw(newShape, x.dtype, x.device)
	if err != nil {
		return nil, fmt.Errorf("Narrow: %w", err)
	}

	itemSize := x.dtype.Size()
	outerSize := 1
	for i := 0; i < axis; i++ {
		outerSize *= x.shape[i]
	}
	innerSize := 1
	for i := axis + 1; i < ndim; i++ {
		innerSize *= x.shape[i]
	}

	srcData := x.Data()
	dstData := result.Data()
	dstRowBytes := length * innerSize * itemSize
	srcRowBytes := axisSize * innerSize * itemSize
	srcOffset := start * innerSize * itemSize

	for outer := 0; outer < outerSize; outer++ {
		srcStart := outer*srcRowBytes + srcOffset
		dstStart := outer * dstRowBytes
		copy(dstData[dstStart:dstStart+dstRowBytes], srcData[srcStart:srcStart+dstRowBytes])
	}

	return result, nil
}

// TailColumns returns the trailing n columns of the tensor along its last
// axis. The weight reconciler takes this slice from a freshly initialized
// parameter when a categorical vocabulary grew by n entries.
func TailColumns(x *RawTensor, n int) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("TailColumns: input tensor is nil")
	}
	return Narrow(x, -1, -n, n)
}

// HeadColumns returns the leading n columns of the tensor along its last
// axis.
func HeadColumns(x *RawTensor, n int) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("HeadColumns: input tensor is nil")
	}
	return Narrow(x, -1, 0, n)
}

// ReshapeRaw returns a new tensor with the given shape. One dimension may
// be -1 to infer its size from the element count.
func ReshapeRaw(x *RawTensor, newShape Shape) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("ReshapeRaw: input tensor is nil")
	}

	totalElements := x.NumElements()
	inferIdx := -1
	product := 1
	for i, dim := range newShape {
		switch {
		case dim == -1:
			if inferIdx >= 0 {
				return nil, fmt.Errorf("ReshapeRaw: can only have one -1 dimension")
			}
			inferIdx = i
		case dim <= 0:
			return nil, fmt.Errorf("ReshapeRaw: dimensions must be positive, got %d", dim)
		default:
			product *= dim
		}
	}

	actualShape := make(Shape, len(newShape))
	copy(actualShape, newShape)

	if inferIdx >= 0 {
		if product == 0 || totalElements%product != 0 {
			return nil, fmt.Errorf("ReshapeRaw: cannot infer dimension for shape %v from %d elements", newShape, totalElements)
		}
		actualShape[inferIdx] = totalElements / product
	}

	if actualShape.NumElements() != totalElements {
		return nil, fmt.Errorf("ReshapeRaw: cannot reshape %d elements to shape %v (%d elements)",
			totalElements, actualShape, actualShape.NumElements())
	}

	result := x.Clone()
	result.shape = actualShape
	result.stride = actualShape.ComputeStrides()
	return result, nil
}

// CastRaw converts a tensor to a different numeric data type. Category
// codes arrive as integers and are cast to the float dtype of the model's
// parameters before entering the forward pass.
func CastRaw(x *RawTensor, dtype DataType) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("CastRaw: input tensor is nil")
	}

	if x.dtype == dtype {
		return x.Clone(), nil
	}

	result, err := NewRaw(x.shape, dtype, x.device)
	if err != nil {
		return nil, fmt.Errorf("CastRaw: %w", err)
	}

	src, err := toFloat64(x)
	if err != nil {
		return nil, fmt.Errorf("CastRaw: %w", err)
	}

	switch dtype {
	case Float32:
		dst := result.AsFloat32()
		for i, v := range src {
			dst[i] = float32(v)
		}
	case Float64:
		copy(result.AsFloat64(), src)
	case Int32:
		dst := result.AsInt32()
		for i, v := range src {
			dst[i] = int32(v)
		}
	case Int64:
		dst := result.AsInt64()
		for i, v := range src {
			dst[i] = int64(v)
		}
	default:
		return nil, fmt.Errorf("CastRaw: unsupported target dtype %v", dtype)
	}
	return result, nil
}

func toFloat64(x *RawTensor) ([]float64, error) {
	switch x.dtype {
	case Float32:
		src := x.AsFloat32()
		dst := make([]float64, len(src))
		for i, v := range src {
			dst[i] = float64(v)
		}
		return dst, nil
	case Float64:
		return x.AsFloat64(), nil
	case Int32:
		src := x.AsInt32()
		dst := make([]float64, len(src))
		for i, v := range src {
			dst[i] = float64(v)
		}
		return dst, nil
	case Int64:
		src := x.AsInt64()
		dst := make([]float64, len(src))
		for i, v := range src {
			dst[i] = float64(v)
		}
		return dst, nil
	default:
		return nil, fmt.Errorf("unsupported dtype %v", x.dtype)
	}
}

// Clip clamps values to the range [min, max]. Library-size encoders clip
// log-library values before exponentiation to keep rates finite.
func Clip(x *RawTensor, minVal, maxVal float32) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("Clip: input tensor is nil")
	}
	result, err := NewRaw(x.shape, x.dtype, x.device)
	if err != nil {
		return nil, fmt.Errorf("Clip: %w", err)
	}

	switch x.dtype {
	case Float32:
		in := x.AsFloat32()
		out := result.AsFloat32()
		for i := range in {
			v := in[i]
			if v < minVal {
				v = minVal
			}
			if v > maxVal {
				v = maxVal
			}
			out[i] = v
		}
	case Float64:
		in := x.AsFloat64()
		out := result.AsFloat64()
		min64, max64 := float64(minVal), float64(maxVal)
		for i := range in {
			v := in[i]
			if v < min64 {
				v = min64
			}
			if v > max64 {
				v = max64
			}
			out[i] = v
		}
	default:
		return nil, fmt.Errorf("Clip: unsupported dtype %v", x.dtype)
	}
	return result, nil
}

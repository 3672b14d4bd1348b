// Copyright 2025 Arches ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/arches-ml/arches/internal/tensor"
)

// RawTensor is the low-level tensor representation.
//
// RawTensor provides:
//   - Shape and type information via Shape(), DType(), Device()
//   - Type-safe data access via AsFloat32(), AsInt64(), etc.
//   - Copy-on-Write semantics via Clone() and DeepClone()
//   - Reference counting for efficient memory management
//
// Most users should use the high-level Tensor[T, B] type instead.
//
// Example:
//
//	raw, _ := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
//	data := raw.AsFloat32()  // Type-safe access
//	clone := raw.Clone()     // Shares buffer via reference counting
type RawTensor = tensor.RawTensor

// Backend-free RawTensor operations. Weight reconciliation, artifact
// import, and dataset encoding all manipulate tensors before any backend
// is chosen, so these run on the raw buffers directly.

// Concat concatenates raw tensors along an axis. All tensors must agree
// on dtype and on every dimension except the concatenation axis.
// Negative axis counts from the end.
//
// Example:
//
//	wide, err := tensor.Concat([]*tensor.RawTensor{saved, fresh}, -1)
func Concat(tensors []*RawTensor, axis int) (*RawTensor, error) {
	return tensor.Concat(tensors, axis)
}

// Narrow returns a copy of a slice of x along an axis, keeping length
// elements starting at start.
func Narrow(x *RawTensor, axis, start, length int) (*RawTensor, error) {
	return tensor.Narrow(x, axis, start, length)
}

// HeadColumns returns the first n columns of x along its last axis.
func HeadColumns(x *RawTensor, n int) (*RawTensor, error) {
	return tensor.HeadColumns(x, n)
}

// TailColumns returns the last n columns of x along its last axis.
func TailColumns(x *RawTensor, n int) (*RawTensor, error) {
	return tensor.TailColumns(x, n)
}

// ReshapeRaw returns a reshaped copy of x. The new shape must preserve
// the element count.
func ReshapeRaw(x *RawTensor, newShape Shape) (*RawTensor, error) {
	return tensor.ReshapeRaw(x, newShape)
}

// CastRaw converts x to another data type.
func CastRaw(x *RawTensor, dtype DataType) (*RawTensor, error) {
	return tensor.CastRaw(x, dtype)
}

// Clip clamps every element of x into [minVal, maxVal].
func Clip(x *RawTensor, minVal, maxVal float32) (*RawTensor, error) {
	return tensor.Clip(x, minVal, maxVal)
}

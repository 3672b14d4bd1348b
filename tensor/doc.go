// Copyright 2025 Arches ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides type-safe tensor operations for the Arches toolkit.
//
// # Overview
//
// Tensors are the fundamental data structure in Arches. This package provides:
//   - Generic type-safe tensors (Tensor[T, B])
//   - NumPy-style broadcasting
//   - Zero-copy operations where possible
//   - Device abstraction (CPU, WebGPU)
//
// The operation set is sized for the variational models this toolkit trains
// on single-cell count matrices: affine layers with one-hot covariate
// injection, normalization layers, count-likelihood link functions, and the
// reductions their statistics need.
//
// # Basic Usage
//
//	import (
//	    "github.com/arches-ml/arches/backend/cpu"
//	    "github.com/arches-ml/arches/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    // Create tensors
//	    x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	    y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//
//	    // Tensor operations
//	    z := x.Add(y)
//	    result := x.MatMul(y.Transpose())
//	}
//
// # Supported Data Types
//
// The tensor package supports the following data types via the DType constraint:
//   - float32, float64 (floating-point)
//   - int32, int64 (signed integers, used for categorical codes)
//   - uint8 (unsigned integers)
//   - bool (boolean masks)
//
// # Device Support
//
// Tensors can reside on different devices:
//   - CPU: Pure Go implementation, always available
//   - WebGPU: GPU acceleration via wgpu-native, probed at runtime
//
// When no GPU is available the toolkit degrades to the CPU backend without
// failing; see backend/webgpu.IsAvailable.
//
// # Broadcasting
//
// Tensor operations follow NumPy broadcasting rules:
//
//	a := tensor.Zeros[float32](tensor.Shape{3, 1}, backend)     // (3, 1)
//	b := tensor.Ones[float32](tensor.Shape{3, 4}, backend)      // (3, 4)
//	c := a.Add(b)                                                // (3, 4)
//
// # Memory Management
//
// Tensors use zero-copy operations where possible. The underlying data is
// reference-counted; Clone shares the buffer and DeepClone copies it.
//
// # Raw Tensor Surgery
//
// Model adaptation reshapes saved weights before any backend is chosen, so
// this package also exposes backend-free RawTensor helpers:
//
//	wide, _ := tensor.Concat([]*tensor.RawTensor{saved, fresh}, -1)
//	tail, _ := tensor.TailColumns(fresh, 2)
//
// See Concat, Narrow, HeadColumns, TailColumns, ReshapeRaw, CastRaw, and
// Clip.
package tensor

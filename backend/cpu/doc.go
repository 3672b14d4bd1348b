// Copyright 2025 Arches ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for tensor operations.
//
// # Overview
//
// This package implements a CPU backend with:
//   - Pure Go implementation (no CGO)
//   - Float32 and Float64 support
//   - NumPy-compatible broadcasting
//   - The full operation set the variational models evaluate
//
// # Basic Usage
//
//	import (
//	    "github.com/arches-ml/arches/backend/cpu"
//	    "github.com/arches-ml/arches/nn"
//	    "github.com/arches-ml/arches/tensor"
//	)
//
//	func main() {
//	    // Create CPU backend
//	    backend := cpu.New()
//
//	    // Use with tensors
//	    x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	    y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	    z := x.Add(y)
//
//	    // Use with neural networks
//	    model := nn.NewLinear(784, 10, backend)
//	}
//
// # Role
//
// The CPU backend is the reference implementation and the fallback
// device: model loading degrades to it when no GPU is available, so
// every artifact stays loadable on any machine. For GPU acceleration,
// see the webgpu package.
//
// # Thread Safety
//
// The CPU backend is safe for concurrent use. Each tensor operation
// is isolated and does not share mutable state.
package cpu

// Copyright 2025 Arches ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU backend for GPU-accelerated tensor
// operations.
//
// WebGPU is a cross-platform graphics and compute API. The backend is
// probed at runtime: on platforms where the native library is not wired
// up, IsAvailable reports false and New fails, and callers degrade to
// the CPU backend. Model loading does this automatically when asked for
// an accelerator.
//
// Example:
//
//	import (
//	    "github.com/arches-ml/arches/autodiff"
//	    "github.com/arches-ml/arches/backend/cpu"
//	    "github.com/arches-ml/arches/backend/webgpu"
//	)
//
//	func main() {
//	    if webgpu.IsAvailable() {
//	        gpu, _ := webgpu.New()
//	        backend := autodiff.New(gpu)
//	        _ = backend
//	    } else {
//	        backend := autodiff.New(cpu.New())
//	        _ = backend
//	    }
//	}
package webgpu

import (
	internalwebgpu "github.com/arches-ml/arches/internal/backend/webgpu"
	"github.com/arches-ml/arches/tensor"
)

// Backend represents the WebGPU backend implementation for GPU-accelerated
// tensor operations.
type Backend = internalwebgpu.Backend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new WebGPU backend.
//
// This function initializes the WebGPU device and returns a backend
// ready for tensor operations.
//
// Returns an error if WebGPU initialization fails (e.g., no compatible GPU).
func New() (*Backend, error) {
	return internalwebgpu.New()
}

// IsAvailable checks if WebGPU is available on the current system.
//
// This function attempts to initialize a WebGPU adapter to verify
// that a compatible GPU and drivers are present. It's useful for
// graceful fallback to CPU backend when GPU is not available.
//
// Example:
//
//	if webgpu.IsAvailable() {
//	    gpu, _ := webgpu.New()
//	    backend = autodiff.New(gpu)
//	} else {
//	    backend = autodiff.New(cpu.New())
//	}
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}

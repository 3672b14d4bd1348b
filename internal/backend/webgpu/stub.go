//go:build !windows

// Package webgpu provides GPU-accelerated tensor computation via
// wgpu-native. On platforms where the native library is not wired up,
// this stub reports the backend as unavailable and New always fails;
// callers degrade to the CPU backend.
package webgpu

import (
	"errors"

	"github.com/arches-ml/arches/internal/tensor"
)

var _ tensor.Backend = (*Backend)(nil)

// Backend is a placeholder on platforms without WebGPU support. New
// never returns one, so the operation methods below are unreachable.
type Backend struct{}

// New reports that WebGPU is not available on this platform.
func New() (*Backend, error) {
	return nil, errors.New("webgpu: not available on this platform")
}

// IsAvailable reports whether a WebGPU adapter can be acquired.
// Always false on this platform.
func IsAvailable() bool {
	return false
}

// Release is a no-op.
func (b *Backend) Release() {}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "WebGPU (unavailable)"
}

// Device returns the device this backend computes on.
func (b *Backend) Device() tensor.Device {
	return tensor.WebGPU
}

func (b *Backend) Add(a, other *tensor.RawTensor) *tensor.RawTensor  { panic("webgpu: unavailable") }
func (b *Backend) Sub(a, other *tensor.RawTensor) *tensor.RawTensor  { panic("webgpu: unavailable") }
func (b *Backend) Mul(a, other *tensor.RawTensor) *tensor.RawTensor  { panic("webgpu: unavailable") }
func (b *Backend) Div(a, other *tensor.RawTensor) *tensor.RawTensor  { panic("webgpu: unavailable") }
func (b *Backend) MatMul(a, other *tensor.RawTensor) *tensor.RawTensor {
	panic("webgpu: unavailable")
}

func (b *Backend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	panic("webgpu: unavailable")
}

func (b *Backend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	panic("webgpu: unavailable")
}

func (b *Backend) Expand(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	panic("webgpu: unavailable")
}

func (b *Backend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	panic("webgpu: unavailable")
}

func (b *Backend) SubScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	panic("webgpu: unavailable")
}

func (b *Backend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	panic("webgpu: unavailable")
}

func (b *Backend) DivScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	panic("webgpu: unavailable")
}

func (b *Backend) Exp(x *tensor.RawTensor) *tensor.RawTensor      { panic("webgpu: unavailable") }
func (b *Backend) Log(x *tensor.RawTensor) *tensor.RawTensor      { panic("webgpu: unavailable") }
func (b *Backend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor     { panic("webgpu: unavailable") }
func (b *Backend) ReLU(x *tensor.RawTensor) *tensor.RawTensor     { panic("webgpu: unavailable") }
func (b *Backend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor  { panic("webgpu: unavailable") }
func (b *Backend) Softplus(x *tensor.RawTensor) *tensor.RawTensor { panic("webgpu: unavailable") }

func (b *Backend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	panic("webgpu: unavailable")
}

func (b *Backend) Sum(x *tensor.RawTensor) *tensor.RawTensor { panic("webgpu: unavailable") }

func (b *Backend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	panic("webgpu: unavailable")
}

func (b *Backend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	panic("webgpu: unavailable")
}

func (b *Backend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	panic("webgpu: unavailable")
}

func (b *Backend) OneHot(indices *tensor.RawTensor, numClasses int) *tensor.RawTensor {
	panic("webgpu: unavailable")
}

func (b *Backend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	panic("webgpu: unavailable")
}

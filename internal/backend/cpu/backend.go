// Package cpu implements the reference CPU backend. It is the default
// execution engine for model adaptation: weight reconciliation, frozen
// forward passes and fine-tuning all run here unless an accelerator is
// available.
package cpu

import (
	"fmt"

	"github.com/arches-ml/arches/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	device tensor.Device
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
	}
}

// Name returns the backend name.
func (cb *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cb *CPUBackend) Device() tensor.Device {
	return cb.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cb *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("Add: %v", err))
	}

	if !needsBroadcast && a.Shape().Equal(b.Shape()) {
		// Fast path: same shape. Mutate a in place when nothing else
		// references its buffer (callers pin shared tensors with
		// ForceNonUnique).
		if a.IsUnique() {
			addInplace(a, b)
			return a
		}
		result := newResult(outShape, a.DType(), cb.device, "Add")
		addVectorized(result, a, b)
		return result
	}

	result := newResult(outShape, a.DType(), cb.device, "Add")
	addWithBroadcast(result, a, b, outShape)
	return result
}

// Sub performs element-wise subtraction with broadcasting.
func (cb *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("Sub: %v", err))
	}

	if !needsBroadcast && a.Shape().Equal(b.Shape()) {
		if a.IsUnique() {
			subInplace(a, b)
			return a
		}
		result := newResult(outShape, a.DType(), cb.device, "Sub")
		subVectorized(result, a, b)
		return result
	}

	result := newResult(outShape, a.DType(), cb.device, "Sub")
	subWithBroadcast(result, a, b, outShape)
	return result
}

// Mul performs element-wise multiplication with broadcasting.
func (cb *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("Mul: %v", err))
	}

	if !needsBroadcast && a.Shape().Equal(b.Shape()) {
		if a.IsUnique() {
			mulInplace(a, b)
			return a
		}
		result := newResult(outShape, a.DType(), cb.device, "Mul")
		mulVectorized(result, a, b)
		return result
	}

	result := newResult(outShape, a.DType(), cb.device, "Mul")
	mulWithBroadcast(result, a, b, outShape)
	return result
}

// Div performs element-wise division with broadcasting.
func (cb *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("Div: %v", err))
	}

	if !needsBroadcast && a.Shape().Equal(b.Shape()) {
		if a.IsUnique() {
			divInplace(a, b)
			return a
		}
		result := newResult(outShape, a.DType(), cb.device, "Div")
		divVectorized(result, a, b)
		return result
	}

	result := newResult(outShape, a.DType(), cb.device, "Div")
	divWithBroadcast(result, a, b, outShape)
	return result
}

// Reshape returns a tensor with the same data but a different shape.
func (cb *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(fmt.Sprintf("Reshape: invalid shape: %v", err))
	}

	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("Reshape: incompatible shapes: %v -> %v (different number of elements)",
			t.Shape(), newShape))
	}

	result := newResult(newShape, t.DType(), t.Device(), "Reshape")
	copy(result.Data(), t.Data())
	return result
}

// Transpose transposes the tensor by permuting its dimensions.
func (cb *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	// Default: reverse all dimensions
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	if len(axes) != ndim {
		panic(fmt.Sprintf("Transpose: axes length %d != ndim %d", len(axes), ndim))
	}

	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			panic(fmt.Sprintf("Transpose: invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(fmt.Sprintf("Transpose: duplicate axis %d", ax))
		}
		seen[ax] = true
	}

	newShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		newShape[i] = shape[ax]
	}

	result := newResult(newShape, t.DType(), t.Device(), "Transpose")
	transposeData(result, t, axes)
	return result
}

// newResult allocates an output tensor or panics with the operation name.
func newResult(shape tensor.Shape, dtype tensor.DataType, device tensor.Device, op string) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, dtype, device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return result
}

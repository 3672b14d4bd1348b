package ops

import (
	"fmt"

	"github.com/arches-ml/arches/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: a[n,1] + b[n,g] -> c[n,g]  (a was broadcast along dim 1)
//	Backward: grad_c[n,g] -> grad_a[n,1] (sum along dim 1)
//
// Per-cell library scalars broadcast against cell-by-gene matrices this way
// throughout the likelihood terms, so nearly every binary backward ends here.
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	gradShape := grad.Shape()

	// Shapes already match: clone so accumulation never aliases a shared
	// gradient buffer.
	if gradShape.Equal(targetShape) {
		return grad.Clone()
	}

	// Broadcasting aligns shapes from the right. Leading dimensions the
	// target never had are summed away first.
	result := grad
	for extra := len(result.Shape()) - len(targetShape); extra > 0; extra-- {
		summed := backend.SumDim(result, 0, false)
		result = summed
	}

	// Then sum along dimensions where the target is 1.
	for i := 0; i < len(targetShape); i++ {
		if targetShape[i] == 1 && result.Shape()[i] > 1 {
			result = backend.SumDim(result, i, true)
		}
	}

	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}
	return result
}

// negateGradient returns -grad.
func negateGradient(grad *tensor.RawTensor, backend tensor.Backend) *tensor.RawTensor {
	switch grad.DType() {
	case tensor.Float32:
		return backend.MulScalar(grad, float32(-1))
	case tensor.Float64:
		return backend.MulScalar(grad, float64(-1))
	default:
		panic(fmt.Sprintf("negateGradient: unsupported dtype %s", grad.DType()))
	}
}

// createScalar creates a tensor of the given shape filled with value.
func createScalar(shape tensor.Shape, dtype tensor.DataType, value float64, device tensor.Device) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, dtype, device)
	if err != nil {
		panic(fmt.Sprintf("createScalar: %v", err))
	}

	switch dtype {
	case tensor.Float32:
		data := result.AsFloat32()
		v := float32(value)
		for i := range data {
			data[i] = v
		}
	case tensor.Float64:
		data := result.AsFloat64()
		for i := range data {
			data[i] = value
		}
	default:
		panic(fmt.Sprintf("createScalar: unsupported dtype %s", dtype))
	}
	return result
}

// dtypeScalar converts a float64 to the scalar type the backend expects for
// tensors of the given dtype.
func dtypeScalar(dtype tensor.DataType, value float64) any {
	switch dtype {
	case tensor.Float32:
		return float32(value)
	case tensor.Float64:
		return value
	default:
		panic(fmt.Sprintf("dtypeScalar: unsupported dtype %s", dtype))
	}
}

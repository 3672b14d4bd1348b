package ops

import "github.com/arches-ml/arches/internal/tensor"

// ReLUOp represents the rectified linear unit activation: output = max(0, x).
//
// Backward pass:
//   - d(ReLU(x))/dx = 1 if x > 0, else 0
//   - grad_input = outputGrad * mask, where mask[i] = 1 if x[i] > 0
type ReLUOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewReLUOp creates a new ReLUOp.
func NewReLUOp(input, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{
		input:  input,
		output: output,
	}
}

// Backward computes the input gradient by masking where the input was
// non-positive.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	mask := createReLUMask(op.input, backend)
	inputGrad := backend.Mul(outputGrad, mask)
	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the input tensors [x].
func (op *ReLUOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor max(0, x).
func (op *ReLUOp) Output() *tensor.RawTensor {
	return op.output
}

// createReLUMask builds a tensor with 1 where input > 0 and 0 elsewhere.
func createReLUMask(input *tensor.RawTensor, backend tensor.Backend) *tensor.RawTensor {
	mask, err := tensor.NewRaw(input.Shape(), input.DType(), backend.Device())
	if err != nil {
		panic(err)
	}

	switch input.DType() {
	case tensor.Float32:
		in := input.AsFloat32()
		out := mask.AsFloat32()
		for i, v := range in {
			if v > 0 {
				out[i] = 1
			}
		}
	case tensor.Float64:
		in := input.AsFloat64()
		out := mask.AsFloat64()
		for i, v := range in {
			if v > 0 {
				out[i] = 1
			}
		}
	default:
		panic("createReLUMask: only float32 and float64 are differentiable")
	}
	return mask
}

package ops

import (
	"fmt"

	"github.com/arches-ml/arches/internal/tensor"
)

// CatOp represents concatenation along a dimension.
//
// Forward: output = Cat([x1, x2, ...], dim)
//
// Backward:
//
//	The output gradient is split along dim at the input boundaries; each
//	input receives the slice matching its contribution.
//
// The forward pass joins expression features with one-hot covariate blocks
// before the first encoder layer, so this backward is what routes gradient
// into (or away from) the appended covariate columns.
type CatOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
	dim    int   // normalized (non-negative) dimension
	sizes  []int // size of each input along dim
}

// NewCatOp creates a new CatOp. dim may be negative.
func NewCatOp(inputs []*tensor.RawTensor, dim int, output *tensor.RawTensor) *CatOp {
	if dim < 0 {
		dim += len(output.Shape())
	}
	sizes := make([]int, len(inputs))
	for i, in := range inputs {
		sizes[i] = in.Shape()[dim]
	}
	return &CatOp{
		inputs: inputs,
		output: output,
		dim:    dim,
		sizes:  sizes,
	}
}

// Backward slices the output gradient back to each input.
func (op *CatOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grads := make([]*tensor.RawTensor, len(op.inputs))

	offset := 0
	for i, size := range op.sizes {
		grad, err := tensor.Narrow(outputGrad, op.dim, offset, size)
		if err != nil {
			panic(fmt.Sprintf("CatOp: %v", err))
		}
		grads[i] = grad
		offset += size
	}

	return grads
}

// Inputs returns the concatenated input tensors.
func (op *CatOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the concatenated output tensor.
func (op *CatOp) Output() *tensor.RawTensor {
	return op.output
}

package cpu

import (
	"github.com/arches-ml/arches/internal/tensor"
)

// computeBroadcastStridesForShape returns strides for reading a tensor of
// shape `shape` as if it had shape `outShape`. Dimensions of size 1 (and
// missing leading dimensions) get stride 0, so the same element is reused
// across the broadcast dimension. This is how a [1, nFeatures] bias row or
// a [batch, 1] library-size column combines with a [batch, nFeatures] block
// without materializing the expansion.
func computeBroadcastStridesForShape(shape, outShape tensor.Shape) []int {
	realStrides := shape.ComputeStrides()
	strides := make([]int, len(outShape))
	offset := len(outShape) - len(shape)

	for i := range outShape {
		srcDim := i - offset
		if srcDim < 0 || shape[srcDim] == 1 {
			strides[i] = 0
		} else {
			strides[i] = realStrides[srcDim]
		}
	}
	return strides
}

// computeFlatIndex converts a flat index into the output tensor to the
// corresponding flat index into a (possibly broadcast) input, given the
// output strides and the input's broadcast strides.
func computeFlatIndex(flatIdx int, outStrides, srcStrides []int) int {
	srcIdx := 0
	for dim := 0; dim < len(outStrides); dim++ {
		coord := flatIdx / outStrides[dim]
		flatIdx %= outStrides[dim]
		srcIdx += coord * srcStrides[dim]
	}
	return srcIdx
}

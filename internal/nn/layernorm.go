package nn

import (
	"fmt"

	"github.com/arches-ml/arches/internal/tensor"
)

// LayerNorm applies Layer Normalization over the last dimension.
//
// Formula: Y = gamma * (X - mean(X)) / sqrt(var(X) + eps) + beta
//
// Mean and variance are computed per sample across features, so the
// normalization is independent of batch composition. That makes it safe
// to keep active on small fine-tuning batches where batch statistics
// would be noisy.
//
// Fully connected blocks use the affine-free variant (gamma and beta
// absent), matching how the normalization is configured inside the
// variational models this toolkit loads.
type LayerNorm[B tensor.Backend] struct {
	Gamma   *Parameter[B] // learnable scale [dim], nil when affine-free
	Beta    *Parameter[B] // learnable shift [dim], nil when affine-free
	Epsilon float32
	dim     int
	backend B
}

// NewLayerNorm creates a LayerNorm with learnable scale and shift.
//
// The gamma parameter is initialized to ones, beta to zeros. A typical
// epsilon is 1e-5.
func NewLayerNorm[B tensor.Backend](normalizedShape int, epsilon float32, backend B) *LayerNorm[B] {
	gamma := tensor.Ones[float32](tensor.Shape{normalizedShape}, backend)
	beta := tensor.Zeros[float32](tensor.Shape{normalizedShape}, backend)

	return &LayerNorm[B]{
		Gamma:   NewParameter("weight", gamma),
		Beta:    NewParameter("bias", beta),
		Epsilon: epsilon,
		dim:     normalizedShape,
		backend: backend,
	}
}

// NewLayerNormNoAffine creates a LayerNorm without learnable scale and
// shift, normalizing only.
func NewLayerNormNoAffine[B tensor.Backend](normalizedShape int, epsilon float32, backend B) *LayerNorm[B] {
	return &LayerNorm[B]{
		Gamma:   nil,
		Beta:    nil,
		Epsilon: epsilon,
		dim:     normalizedShape,
		backend: backend,
	}
}

// Forward applies LayerNorm to the input tensor.
//
// Shapes:
//   - input: [..., dim]
//   - output: [..., dim]
func (l *LayerNorm[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if shape[len(shape)-1] != l.dim {
		panic(fmt.Sprintf("LayerNorm.Forward: expected last dimension %d, got shape %v", l.dim, shape))
	}

	mean := x.MeanDim(-1, true)

	// Pin x and the centered values: both survive their first use as a
	// left operand.
	releaseX := x.Raw().ForceNonUnique()
	xCentered := x.Sub(mean)
	releaseX()

	releaseC := xCentered.Raw().ForceNonUnique()
	squared := xCentered.Mul(xCentered)
	variance := squared.MeanDim(-1, true)
	std := variance.AddScalar(l.Epsilon).Sqrt()
	xNorm := xCentered.Div(std)
	releaseC()

	if l.Gamma == nil {
		return xNorm
	}

	// Reshape gamma/beta [dim] to broadcastable [1, ..., 1, dim] rows.
	rowShape := make([]int, len(shape))
	for i := range rowShape {
		rowShape[i] = 1
	}
	rowShape[len(rowShape)-1] = l.dim

	gamma := l.Gamma.Tensor().Reshape(rowShape...)
	beta := l.Beta.Tensor().Reshape(rowShape...)

	return xNorm.Mul(gamma).Add(beta)
}

// Parameters returns the learnable parameters (empty when affine-free).
func (l *LayerNorm[B]) Parameters() []*Parameter[B] {
	if l.Gamma == nil {
		return nil
	}
	return []*Parameter[B]{l.Gamma, l.Beta}
}

// StateDict returns the affine parameters, keyed weight/bias.
func (l *LayerNorm[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	if l.Gamma != nil {
		stateDict["weight"] = l.Gamma.Tensor().Raw()
		stateDict["bias"] = l.Beta.Tensor().Raw()
	}
	return stateDict
}

// LoadStateDict loads the affine parameters when present.
func (l *LayerNorm[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if l.Gamma == nil {
		return nil
	}

	for name, param := range map[string]*Parameter[B]{"weight": l.Gamma, "bias": l.Beta} {
		raw, ok := stateDict[name]
		if !ok {
			return fmt.Errorf("missing %s in state dict", name)
		}
		if !raw.Shape().Equal(tensor.Shape{l.dim}) {
			return fmt.Errorf("%s shape mismatch: expected [%d], got %v", name, l.dim, raw.Shape())
		}
		if raw.DType() != tensor.Float32 {
			return fmt.Errorf("%s dtype mismatch: expected float32, got %v", name, raw.DType())
		}
		copy(param.Tensor().Data(), raw.AsFloat32())
	}
	return nil
}

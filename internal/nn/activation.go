package nn

import (
	"github.com/arches-ml/arches/internal/tensor"
)

// ReLU is a Rectified Linear Unit activation module.
//
// Applies the element-wise function: f(x) = max(0, x)
//
// ReLU is the activation used inside fully connected blocks; it keeps
// positive signal paths open while zeroing the rest.
//
// Example:
//
//	relu := nn.NewReLU[B]()
//	output := relu.Forward(input)
type ReLU[B tensor.Backend] struct{}

// NewReLU creates a new ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies ReLU activation: f(x) = max(0, x).
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.ReLU()
}

// Parameters returns an empty slice (ReLU has no trainable parameters).
func (r *ReLU[B]) Parameters() []*Parameter[B] {
	return nil
}

// StateDict returns an empty map (ReLU has no state).
func (r *ReLU[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op for ReLU.
func (r *ReLU[B]) LoadStateDict(_ map[string]*tensor.RawTensor) error {
	return nil
}

// Sigmoid is a sigmoid activation module.
//
// Applies the element-wise function: σ(x) = 1 / (1 + exp(-x))
//
// Sigmoid squashes values to the range (0, 1); zero-inflation logits
// pass through it to become mixture probabilities.
type Sigmoid[B tensor.Backend] struct{}

// NewSigmoid creates a new Sigmoid activation module.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] {
	return &Sigmoid[B]{}
}

// Forward applies Sigmoid activation: σ(x) = 1 / (1 + exp(-x)).
func (s *Sigmoid[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.Sigmoid()
}

// Parameters returns an empty slice (Sigmoid has no trainable parameters).
func (s *Sigmoid[B]) Parameters() []*Parameter[B] {
	return nil
}

// StateDict returns an empty map (Sigmoid has no state).
func (s *Sigmoid[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op for Sigmoid.
func (s *Sigmoid[B]) LoadStateDict(_ map[string]*tensor.RawTensor) error {
	return nil
}

// Softplus is a softplus activation module.
//
// Applies the element-wise function: f(x) = log(1 + exp(x))
//
// Softplus maps real values to positive ones; it is the link for
// strictly positive quantities like inverse-dispersion parameters.
type Softplus[B tensor.Backend] struct{}

// NewSoftplus creates a new Softplus activation module.
func NewSoftplus[B tensor.Backend]() *Softplus[B] {
	return &Softplus[B]{}
}

// Forward applies Softplus activation: f(x) = log(1 + exp(x)).
func (s *Softplus[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.Softplus()
}

// Parameters returns an empty slice (Softplus has no trainable parameters).
func (s *Softplus[B]) Parameters() []*Parameter[B] {
	return nil
}

// StateDict returns an empty map (Softplus has no state).
func (s *Softplus[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op for Softplus.
func (s *Softplus[B]) LoadStateDict(_ map[string]*tensor.RawTensor) error {
	return nil
}

// Softmax is a softmax activation module over a fixed dimension.
//
// Each slice along the dimension is normalized to sum to 1. Expression
// decoders end in a softmax over genes so their output is a proportion
// vector that scales with the library size.
type Softmax[B tensor.Backend] struct {
	dim int
}

// NewSoftmax creates a Softmax module normalizing along dim. Negative
// dims count from the end, so -1 normalizes the last dimension.
func NewSoftmax[B tensor.Backend](dim int) *Softmax[B] {
	return &Softmax[B]{dim: dim}
}

// Forward applies the softmax along the configured dimension.
func (s *Softmax[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.Softmax(s.dim)
}

// Parameters returns an empty slice (Softmax has no trainable parameters).
func (s *Softmax[B]) Parameters() []*Parameter[B] {
	return nil
}

// StateDict returns an empty map (Softmax has no state).
func (s *Softmax[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op for Softmax.
func (s *Softmax[B]) LoadStateDict(_ map[string]*tensor.RawTensor) error {
	return nil
}

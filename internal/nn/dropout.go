package nn

import (
	"fmt"
	"math/rand"

	"github.com/arches-ml/arches/internal/tensor"
)

// Dropout randomly zeroes elements during training with probability
// rate, scaling the survivors by 1/(1-rate) so activations keep their
// expected magnitude. In evaluation mode (or with rate 0) the input
// passes through unchanged.
//
// The adaptation loader's freeze_dropout switch forces the rate to 0,
// which turns the layer into an identity in both modes.
type Dropout[B tensor.Backend] struct {
	rate     float32
	training bool
}

// NewDropout creates a dropout layer. Rate must be in [0, 1).
func NewDropout[B tensor.Backend](rate float32) *Dropout[B] {
	if rate < 0 || rate >= 1 {
		panic(fmt.Sprintf("Dropout: rate must be in [0, 1), got %v", rate))
	}
	return &Dropout[B]{
		rate:     rate,
		training: true,
	}
}

// SetTraining switches between stochastic (training) and identity
// (evaluation) behavior.
func (d *Dropout[B]) SetTraining(training bool) {
	d.training = training
}

// Rate returns the current dropout probability.
func (d *Dropout[B]) Rate() float32 {
	return d.rate
}

// SetRate changes the dropout probability. Setting 0 disables the
// layer entirely; repeated calls are idempotent.
func (d *Dropout[B]) SetRate(rate float32) {
	if rate < 0 || rate >= 1 {
		panic(fmt.Sprintf("Dropout: rate must be in [0, 1), got %v", rate))
	}
	d.rate = rate
}

// Forward applies dropout.
func (d *Dropout[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !d.training || d.rate == 0 {
		return input
	}

	maskRaw, err := tensor.NewRaw(input.Shape(), tensor.Float32, input.Device())
	if err != nil {
		panic(err)
	}
	scale := 1 / (1 - d.rate)
	maskData := maskRaw.AsFloat32()
	for i := range maskData {
		//nolint:gosec // math/rand is appropriate for dropout masks (not security-critical)
		if rand.Float32() >= d.rate {
			maskData[i] = scale
		}
	}
	mask := tensor.New[float32, B](maskRaw, input.Backend())

	release := input.Raw().ForceNonUnique()
	output := input.Mul(mask)
	release()
	return output
}

// Parameters returns an empty slice (Dropout has no trainable parameters).
func (d *Dropout[B]) Parameters() []*Parameter[B] {
	return nil
}

// StateDict returns an empty map (Dropout has no state).
func (d *Dropout[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op for Dropout.
func (d *Dropout[B]) LoadStateDict(_ map[string]*tensor.RawTensor) error {
	return nil
}

package nn

import (
	"github.com/arches-ml/arches/internal/tensor"
)

// MSELoss computes mean squared error.
//
// Loss = mean((predictions - targets)²)
//
// Gaussian-likelihood fits and reconstruction checks use it; the count
// models go through the negative binomial likelihoods instead.
//
// Example:
//
//	mse := nn.NewMSELoss(backend)
//	loss := mse.Forward(predictions, targets)
type MSELoss[B tensor.Backend] struct {
	backend B
}

// NewMSELoss creates a new MSE loss function.
func NewMSELoss[B tensor.Backend](backend B) *MSELoss[B] {
	return &MSELoss[B]{
		backend: backend,
	}
}

// Forward computes the MSE loss over all elements.
//
// predictions and targets must share a shape. Returns a scalar loss
// with shape [1].
func (m *MSELoss[B]) Forward(predictions, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic("MSELoss: predictions and targets must have the same shape")
	}

	// Pin predictions so the difference allocates instead of
	// clobbering the caller's tensor.
	release := predictions.Raw().ForceNonUnique()
	diff := predictions.Sub(targets)
	release()

	squared := diff.Mul(diff)

	data := squared.Raw().AsFloat32()
	var sum float32
	for _, v := range data {
		sum += v
	}
	mean := sum / float32(len(data))

	lossRaw, err := tensor.NewRaw(tensor.Shape{1}, tensor.Float32, m.backend.Device())
	if err != nil {
		panic(err)
	}
	lossRaw.AsFloat32()[0] = mean

	return tensor.New[float32, B](lossRaw, m.backend)
}

// Parameters returns an empty slice (loss functions have no trainable parameters).
func (m *MSELoss[B]) Parameters() []*Parameter[B] {
	return nil
}

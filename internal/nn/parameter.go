package nn

import (
	"github.com/arches-ml/arches/internal/tensor"
)

// Parameter represents a learnable parameter in a neural network.
//
// Beyond the tensor and its gradient, a Parameter carries the freeze
// state the adaptation loader assigns: fully trainable, fully frozen,
// or trainable only in a trailing range of last-dimension columns (the
// columns appended for newly observed categories).
//
// Example:
//
//	weight := nn.NewParameter("weight", weightTensor)
//	weight.SetTrainable(false)           // freeze entirely
//	weight.FreezeColumnsBefore(oldWidth) // keep only new columns live
type Parameter[B tensor.Backend] struct {
	name      string
	tensor    *tensor.Tensor[float32, B]
	grad      *tensor.Tensor[float32, B]
	trainable bool
	// maskFrom >= 0 restricts gradients to last-dim columns >= maskFrom.
	maskFrom int
}

// NewParameter creates a new parameter. Parameters start fully
// trainable with no gradient and no column mask.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:      name,
		tensor:    t,
		grad:      nil,
		trainable: true,
		maskFrom:  -1,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Grad returns the gradient tensor, or nil if no gradient has been
// computed (or the parameter is frozen).
func (p *Parameter[B]) Grad() *tensor.Tensor[float32, B] {
	return p.grad
}

// SetGrad stores a gradient, honoring the freeze state: frozen
// parameters discard gradients, and a column mask zeroes the gradient
// of every last-dim column before the mask start.
func (p *Parameter[B]) SetGrad(grad *tensor.Tensor[float32, B]) {
	if !p.trainable {
		p.grad = nil
		return
	}
	if p.maskFrom >= 0 && grad != nil {
		maskLeadingColumns(grad, p.maskFrom)
	}
	p.grad = grad
}

// ZeroGrad clears the gradient tensor. Call before each training step
// to avoid accumulating gradients across iterations.
func (p *Parameter[B]) ZeroGrad() {
	p.grad = nil
}

// Trainable reports whether the optimizer may update this parameter.
func (p *Parameter[B]) Trainable() bool {
	return p.trainable
}

// SetTrainable marks the parameter trainable or frozen. Freezing also
// drops any pending gradient.
func (p *Parameter[B]) SetTrainable(trainable bool) {
	p.trainable = trainable
	if !trainable {
		p.grad = nil
	}
}

// FreezeColumnsBefore restricts training to last-dim columns >= col.
// The leading columns keep their loaded values: their gradients are
// zeroed in SetGrad. Passing col <= 0 clears the mask.
func (p *Parameter[B]) FreezeColumnsBefore(col int) {
	if col <= 0 {
		p.maskFrom = -1
		return
	}
	p.maskFrom = col
	p.trainable = true
}

// FrozenColumns returns the first trainable last-dim column, or -1 when
// no column mask is set.
func (p *Parameter[B]) FrozenColumns() int {
	return p.maskFrom
}

// maskLeadingColumns zeroes grad[..., :from] in place.
func maskLeadingColumns[B tensor.Backend](grad *tensor.Tensor[float32, B], from int) {
	shape := grad.Shape()
	lastDim := shape[len(shape)-1]
	if from > lastDim {
		from = lastDim
	}
	data := grad.Data()
	for base := 0; base < len(data); base += lastDim {
		row := data[base : base+from]
		for i := range row {
			row[i] = 0
		}
	}
}

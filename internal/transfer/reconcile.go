package transfer

import (
	"errors"
	"fmt"
	"sort"

	"github.com/arches-ml/arches/internal/tensor"
)

var (
	// ErrStateMismatch reports saved and fresh state dictionaries that
	// disagree on which parameters exist.
	ErrStateMismatch = errors.New("state dictionaries disagree on parameter names")

	// ErrDTypeMismatch reports a saved tensor whose element type differs
	// from the freshly initialized one.
	ErrDTypeMismatch = errors.New("parameter dtype mismatch")

	// ErrShapeMismatch reports a shape difference that is not growth in
	// the final dimension.
	ErrShapeMismatch = errors.New("parameter shape mismatch is not trailing growth")
)

// Grown records a parameter whose final dimension was widened by the
// query vocabulary, e.g. a first-layer weight that gained one input
// column per new batch.
type Grown struct {
	Name     string
	OldWidth int
	NewWidth int
}

// Reconcile merges a saved state dictionary into the shapes of a
// freshly initialized one.
//
// Tensors with identical shapes pass through verbatim, so an unchanged
// vocabulary reproduces the saved weights bit for bit. A tensor whose
// shape differs only in the final dimension, with the fresh one wider,
// is rebuilt as the saved columns followed by the fresh tensor's
// trailing columns. That keeps every trained column at its original
// index and leaves the appended ones at their fresh initialization.
//
// Any other disagreement is an error: a missing or extra parameter, a
// dtype change, or a shape change anywhere but the final dimension
// means the saved model and the new configuration do not describe the
// same architecture.
func Reconcile(saved, fresh map[string]*tensor.RawTensor) (map[string]*tensor.RawTensor, []Grown, error) {
	for name := range saved {
		if _, ok := fresh[name]; !ok {
			return nil, nil, fmt.Errorf("%w: saved parameter %q has no counterpart", ErrStateMismatch, name)
		}
	}
	names := make([]string, 0, len(fresh))
	for name := range fresh {
		if _, ok := saved[name]; !ok {
			return nil, nil, fmt.Errorf("%w: new parameter %q is absent from the saved model", ErrStateMismatch, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	merged := make(map[string]*tensor.RawTensor, len(fresh))
	var grown []Grown
	for _, name := range names {
		sv, fr := saved[name], fresh[name]
		if sv.DType() != fr.DType() {
			return nil, nil, fmt.Errorf("%w: %s is %s in the saved model and %s in the new one",
				ErrDTypeMismatch, name, sv.DType(), fr.DType())
		}
		ss, fs := sv.Shape(), fr.Shape()
		if ss.Equal(fs) {
			merged[name] = sv
			continue
		}
		d, err := trailingGrowth(name, ss, fs)
		if err != nil {
			return nil, nil, err
		}
		tail, err := tensor.TailColumns(fr, d)
		if err != nil {
			return nil, nil, fmt.Errorf("reconcile %s: %w", name, err)
		}
		widened, err := tensor.Concat([]*tensor.RawTensor{sv, tail}, -1)
		if err != nil {
			return nil, nil, fmt.Errorf("reconcile %s: %w", name, err)
		}
		merged[name] = widened
		grown = append(grown, Grown{Name: name, OldWidth: ss[len(ss)-1], NewWidth: fs[len(fs)-1]})
	}
	return merged, grown, nil
}

// trailingGrowth returns how many columns fresh adds over saved, or an
// error if the shapes differ anywhere else.
func trailingGrowth(name string, saved, fresh tensor.Shape) (int, error) {
	if len(saved) != len(fresh) || len(saved) == 0 {
		return 0, fmt.Errorf("%w: %s is %v in the saved model and %v in the new one",
			ErrShapeMismatch, name, saved, fresh)
	}
	for i := 0; i < len(saved)-1; i++ {
		if saved[i] != fresh[i] {
			return 0, fmt.Errorf("%w: %s is %v in the saved model and %v in the new one",
				ErrShapeMismatch, name, saved, fresh)
		}
	}
	d := fresh[len(fresh)-1] - saved[len(saved)-1]
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s shrank from %v to %v", ErrShapeMismatch, name, saved, fresh)
	}
	return d, nil
}

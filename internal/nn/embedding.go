package nn

import (
	"fmt"
	"math/rand"

	"github.com/arches-ml/arches/internal/tensor"
)

// Embedding is a lookup table that maps discrete category codes to
// dense vectors.
//
// It backs the embedding representation of categorical covariates: a
// batch code becomes a learned EmbedDim-vector instead of a one-hot
// column block. The lookup is expressed as one-hot times weight, so it
// runs on the ordinary op set and gradients reach the weight rows.
//
// Example:
//
//	// 4 batches, 5-dimensional representation
//	embed := nn.NewEmbedding[B](4, 5, backend)
//
//	codes, _ := tensor.FromSlice([]int64{0, 2, 1}, tensor.Shape{3}, backend)
//	vectors := embed.Forward(codes) // [3, 5]
type Embedding[B tensor.Backend] struct {
	Weight   *Parameter[B] // [NumEmbed, EmbedDim]
	NumEmbed int
	EmbedDim int
	backend  B
}

// NewEmbedding creates an Embedding layer with weights drawn from
// N(0, 1). For custom initialization use NewEmbeddingWithWeight.
func NewEmbedding[B tensor.Backend](numEmbeddings, embeddingDim int, backend B) *Embedding[B] {
	weightData := make([]float32, numEmbeddings*embeddingDim)
	for i := range weightData {
		//nolint:gosec // math/rand is appropriate for ML weight initialization
		weightData[i] = float32(rand.NormFloat64())
	}

	weight, err := tensor.FromSlice[float32, B](weightData, tensor.Shape{numEmbeddings, embeddingDim}, backend)
	if err != nil {
		panic(fmt.Sprintf("failed to create embedding weight: %v", err))
	}

	return &Embedding[B]{
		Weight:   NewParameter[B]("weight", weight),
		NumEmbed: numEmbeddings,
		EmbedDim: embeddingDim,
		backend:  backend,
	}
}

// NewEmbeddingWithWeight creates an Embedding layer from a
// pre-initialized [numEmbeddings, embeddingDim] weight tensor.
func NewEmbeddingWithWeight[B tensor.Backend](weight *tensor.Tensor[float32, B]) *Embedding[B] {
	shape := weight.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("embedding weight must be 2D, got shape %v", shape))
	}

	return &Embedding[B]{
		Weight:   NewParameter[B]("weight", weight),
		NumEmbed: shape[0],
		EmbedDim: shape[1],
		backend:  weight.Backend(),
	}
}

// Forward performs the embedding lookup.
//
// Parameters:
//   - codes: 1D int64 tensor [n] of category codes
//
// Returns a [n, EmbedDim] tensor of embedding vectors. Panics if any
// code is outside [0, NumEmbed).
func (e *Embedding[B]) Forward(codes *tensor.Tensor[int64, B]) *tensor.Tensor[float32, B] {
	oneHotRaw := e.backend.OneHot(codes.Raw(), e.NumEmbed)
	oneHot := tensor.New[float32, B](oneHotRaw, e.backend)

	// [n, NumEmbed] @ [NumEmbed, EmbedDim] = [n, EmbedDim]
	return oneHot.MatMul(e.Weight.Tensor())
}

// Parameters returns the list of trainable parameters.
func (e *Embedding[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{e.Weight}
}

// StateDict returns the embedding weight.
func (e *Embedding[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight": e.Weight.Tensor().Raw(),
	}
}

// LoadStateDict loads the embedding weight.
func (e *Embedding[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	raw, ok := stateDict["weight"]
	if !ok {
		return fmt.Errorf("missing weight in state dict")
	}
	expected := tensor.Shape{e.NumEmbed, e.EmbedDim}
	if !raw.Shape().Equal(expected) {
		return fmt.Errorf("weight shape mismatch: expected %v, got %v", expected, raw.Shape())
	}
	if raw.DType() != tensor.Float32 {
		return fmt.Errorf("weight dtype mismatch: expected float32, got %v", raw.DType())
	}
	copy(e.Weight.Tensor().Data(), raw.AsFloat32())
	return nil
}

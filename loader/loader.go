// Package loader provides model weight loading for the Arches toolkit.
//
// This package wraps internal loader implementations and exports a clean
// public API for loading model weights from the supported containers
// (SafeTensors, Arcv), mapping foreign parameter names onto native ones
// along the way.
//
// Example usage:
//
//	import (
//	    "github.com/arches-ml/arches/backend/cpu"
//	    "github.com/arches-ml/arches/loader"
//	)
//
//	// Open model with auto-detection
//	model, err := loader.OpenModel("path/to/model.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer model.Close()
//
//	// Get model information
//	fmt.Printf("Format: %s\n", model.Format())
//	fmt.Printf("Source: %s\n", model.Source())
//
//	// Load a specific tensor
//	backend := cpu.New()
//	tensor, err := model.LoadTensor("z_encoder.encoder.fc_layers.0.linear.weight", backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
package loader

import (
	"github.com/arches-ml/arches/internal/loader"
	"github.com/arches-ml/arches/internal/tensor"
)

// ModelFormat represents the model weight format.
type ModelFormat = loader.ModelFormat

// Supported model formats.
const (
	FormatUnknown     ModelFormat = loader.FormatUnknown
	FormatSafeTensors ModelFormat = loader.FormatSafeTensors
	FormatArcv        ModelFormat = loader.FormatArcv
)

// Checkpoint sources recognized by the weight mappers.
const (
	SourceNative = loader.SourceNative
	SourceScvi   = loader.SourceScvi
)

// ErrUnmappedWeight reports a source tensor with no native destination.
// Callers iterating a checkpoint skip these; anything else MapName
// returns is a real failure.
var ErrUnmappedWeight = loader.ErrUnmappedWeight

// ModelReader provides a unified interface for loading model weights.
// It abstracts away the underlying file format and provides consistent
// access to model tensors.
//
// Note: This is a type alias because the LoadTensor method signature references
// internal tensor types that cannot be abstracted without a wrapper layer.
type ModelReader = loader.ModelReader

// OpenModel opens a model file and auto-detects the format.
//
// Supported formats:
//   - .safetensors (Hugging Face standard)
//   - .arcv (native container)
//
// The function automatically detects the checkpoint source (native,
// scvi-tools) based on weight names.
//
// Example:
//
//	model, err := loader.OpenModel("path/to/pretrained.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer model.Close()
//
//	fmt.Printf("Format: %s\n", model.Format())  // "SafeTensors"
//	fmt.Printf("Source: %s\n", model.Source())  // "scvi-tools"
//
//	// List all tensors
//	for _, name := range model.TensorNames() {
//	    fmt.Println(name)
//	}
func OpenModel(path string) (ModelReader, error) {
	return loader.OpenModel(path)
}

// WeightMapper maps source-specific weight names to native Arches names.
// Checkpoints exported from the Python ecosystem use different naming
// conventions; this interface provides a way to normalize them.
type WeightMapper interface {
	// MapName converts a source weight name to its native name.
	MapName(name string) (string, error)

	// Source returns the checkpoint source this mapper understands.
	Source() string
}

// NewScviMapper creates a weight mapper for scvi-tools checkpoints.
// It rewrites the "fc_layers.Layer {i}.{j}" nesting of the Python stack
// into the flat native layout.
func NewScviMapper() WeightMapper {
	return loader.NewScviMapper()
}

// NewNativeMapper creates an identity weight mapper for checkpoints
// that already use native state-dict names.
func NewNativeMapper() WeightMapper {
	return loader.NewNativeMapper()
}

// DetectSource guesses the checkpoint source from its weight names.
// Returns "native" or "scvi-tools".
func DetectSource(names []string) string {
	return loader.DetectSource(names)
}

// GetMapper returns the weight mapper for a source.
func GetMapper(source string) WeightMapper {
	return loader.GetMapper(source)
}

// ReadMappedStateDict loads every tensor from a model under its native
// name. Source weights with no native destination are skipped; two
// source weights landing on the same native name is an error.
//
// Example:
//
//	model, _ := loader.OpenModel("pretrained.safetensors")
//	defer model.Close()
//
//	mapper := loader.GetMapper(model.Source())
//	stateDict, err := loader.ReadMappedStateDict(model, mapper, cpu.New())
func ReadMappedStateDict(m ModelReader, mapper WeightMapper, backend tensor.Backend) (map[string]*tensor.RawTensor, error) {
	return loader.ReadMappedStateDict(m, mapper, backend)
}

package loader

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/arches-ml/arches/internal/serialization"
	"github.com/arches-ml/arches/internal/tensor"
)

// ModelFormat represents the model weight format.
type ModelFormat int

// Supported model formats.
const (
	FormatUnknown ModelFormat = iota
	FormatSafeTensors
	FormatArcv
)

// String returns the format name.
func (f ModelFormat) String() string {
	switch f {
	case FormatSafeTensors:
		return "SafeTensors"
	case FormatArcv:
		return "Arcv"
	default:
		return "Unknown"
	}
}

// ModelReader provides a unified interface for loading model weights
// from either container.
type ModelReader interface {
	// Close closes the underlying file.
	Close() error

	// Format returns the model format.
	Format() ModelFormat

	// Source returns the detected checkpoint source (native, scvi-tools).
	Source() string

	// Metadata returns model metadata.
	Metadata() map[string]string

	// TensorNames returns all tensor names in the model.
	TensorNames() []string

	// LoadTensor loads a tensor by its source name.
	LoadTensor(name string, backend tensor.Backend) (*tensor.RawTensor, error)

	// ReadTensorData reads raw tensor bytes (for custom conversion).
	ReadTensorData(name string) ([]byte, error)
}

// safeTensorsModel wraps SafeTensorsReader to implement ModelReader.
type safeTensorsModel struct {
	reader *SafeTensorsReader
	source string
}

func (m *safeTensorsModel) Format() ModelFormat { return FormatSafeTensors }
func (m *safeTensorsModel) Source() string      { return m.source }

func (m *safeTensorsModel) Metadata() map[string]string {
	return m.reader.Metadata()
}

func (m *safeTensorsModel) TensorNames() []string {
	return m.reader.TensorNames()
}

func (m *safeTensorsModel) LoadTensor(name string, backend tensor.Backend) (*tensor.RawTensor, error) {
	return m.reader.LoadTensor(name, backend)
}

func (m *safeTensorsModel) ReadTensorData(name string) ([]byte, error) {
	return m.reader.ReadTensorData(name)
}

func (m *safeTensorsModel) Close() error {
	return m.reader.Close()
}

// arcvModel wraps serialization.ArcvReader to implement ModelReader.
type arcvModel struct {
	reader *serialization.ArcvReader
	source string
}

func (m *arcvModel) Format() ModelFormat { return FormatArcv }
func (m *arcvModel) Source() string      { return m.source }

func (m *arcvModel) Metadata() map[string]string {
	return m.reader.Metadata()
}

func (m *arcvModel) TensorNames() []string {
	return m.reader.TensorNames()
}

func (m *arcvModel) LoadTensor(name string, backend tensor.Backend) (*tensor.RawTensor, error) {
	return m.reader.LoadTensor(name, backend)
}

func (m *arcvModel) ReadTensorData(name string) ([]byte, error) {
	return m.reader.ReadTensorData(name)
}

func (m *arcvModel) Close() error {
	return m.reader.Close()
}

// OpenModel opens a model file and detects the format from its
// extension. Supports .safetensors and .arcv files.
//
// Example:
//
//	model, err := loader.OpenModel("pretrained.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer model.Close()
//
//	fmt.Printf("Format: %s\n", model.Format())
//	fmt.Printf("Source: %s\n", model.Source())
func OpenModel(path string) (ModelReader, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".safetensors":
		return openSafeTensors(path)
	case ".arcv":
		return openArcv(path)
	default:
		return nil, fmt.Errorf("unsupported file format: %s (expected .safetensors or .arcv)", ext)
	}
}

func openSafeTensors(path string) (ModelReader, error) {
	reader, err := NewSafeTensorsReader(path)
	if err != nil {
		return nil, err
	}

	return &safeTensorsModel{
		reader: reader,
		source: DetectSource(reader.TensorNames()),
	}, nil
}

func openArcv(path string) (ModelReader, error) {
	reader, err := serialization.NewArcvReader(path)
	if err != nil {
		return nil, err
	}

	return &arcvModel{
		reader: reader,
		source: DetectSource(reader.TensorNames()),
	}, nil
}

// ReadMappedStateDict loads every tensor from a model under its native
// name. Source weights with no native destination are skipped; two
// source weights landing on the same native name is an error.
func ReadMappedStateDict(m ModelReader, mapper WeightMapper, backend tensor.Backend) (map[string]*tensor.RawTensor, error) {
	stateDict := make(map[string]*tensor.RawTensor)
	mappedFrom := make(map[string]string)

	for _, name := range m.TensorNames() {
		native, err := mapper.MapName(name)
		if err != nil {
			if errors.Is(err, ErrUnmappedWeight) {
				continue
			}
			return nil, err
		}

		if prev, ok := mappedFrom[native]; ok {
			return nil, fmt.Errorf("weights %s and %s both map to %s", prev, name, native)
		}
		mappedFrom[native] = name

		raw, err := m.LoadTensor(name, backend)
		if err != nil {
			return nil, fmt.Errorf("failed to load tensor %s: %w", name, err)
		}
		stateDict[native] = raw
	}

	return stateDict, nil
}

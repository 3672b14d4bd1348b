package loader

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Weight sources.
const (
	SourceNative = "native"
	SourceScvi   = "scvi-tools"
)

// ErrUnmappedWeight reports a source tensor with no native destination.
// Callers iterating a checkpoint skip these; anything else MapName
// returns is a real failure.
var ErrUnmappedWeight = errors.New("weight has no native destination")

// WeightMapper converts checkpoint parameter names to native state-dict
// names.
type WeightMapper interface {
	// MapName converts a source weight name to its native name.
	MapName(name string) (string, error)

	// Source returns the checkpoint source this mapper understands.
	Source() string
}

// ScviMapper maps scvi-tools (PyTorch) parameter names to native names.
//
// The Python stack builds each hidden layer as a Sequential registered
// under "Layer {i}", with the Linear at index 0 and the BatchNorm1d at
// index 1, so a weight arrives as
//
//	z_encoder.encoder.fc_layers.Layer 0.0.weight
//
// and must land on
//
//	z_encoder.encoder.fc_layers.0.linear.weight
//
// Names outside the fc_layers scheme (mean_encoder, px_scale_decoder,
// px_r, ...) already match and pass through unchanged.
type ScviMapper struct{}

// NewScviMapper creates a new scvi-tools weight mapper.
func NewScviMapper() *ScviMapper {
	return &ScviMapper{}
}

var fcLayerPattern = regexp.MustCompile(`^(.*)fc_layers\.Layer (\d+)\.(\d+)\.(.+)$`)

// MapName converts an scvi-tools weight name to its native name.
func (m *ScviMapper) MapName(name string) (string, error) {
	// The scvi classifier is a Sequential of an FCLayers block and a
	// final Linear head.
	name = strings.Replace(name, "classifier.classifier.0.", "classifier.", 1)
	name = strings.Replace(name, "classifier.classifier.1.", "classifier.head.", 1)

	match := fcLayerPattern.FindStringSubmatch(name)
	if match == nil {
		return name, nil
	}
	prefix, layerIdx, componentIdx, param := match[1], match[2], match[3], match[4]

	switch componentIdx {
	case "0":
		switch param {
		case "weight", "bias":
			return fmt.Sprintf("%sfc_layers.%s.linear.%s", prefix, layerIdx, param), nil
		}
	case "1":
		switch param {
		case "weight", "bias", "running_mean", "running_var":
			return fmt.Sprintf("%sfc_layers.%s.batch_norm.%s", prefix, layerIdx, param), nil
		case "num_batches_tracked":
			// Batch counters are not carried natively.
			return "", fmt.Errorf("%w: %s", ErrUnmappedWeight, name)
		}
	}

	// Index 2 is the layer norm, which carries no parameters natively.
	return "", fmt.Errorf("%w: %s", ErrUnmappedWeight, name)
}

// Source returns "scvi-tools".
func (m *ScviMapper) Source() string {
	return SourceScvi
}

// NativeMapper passes names through unchanged, for checkpoints that
// already use native state-dict names.
type NativeMapper struct{}

// NewNativeMapper creates a new identity weight mapper.
func NewNativeMapper() *NativeMapper {
	return &NativeMapper{}
}

// MapName returns the name unchanged.
func (m *NativeMapper) MapName(name string) (string, error) {
	return name, nil
}

// Source returns "native".
func (m *NativeMapper) Source() string {
	return SourceNative
}

// DetectSource guesses the checkpoint source from its weight names.
func DetectSource(names []string) string {
	for _, name := range names {
		if strings.Contains(name, "fc_layers.Layer ") {
			return SourceScvi
		}
	}
	return SourceNative
}

// GetMapper returns the weight mapper for a source.
func GetMapper(source string) WeightMapper {
	if source == SourceScvi {
		return NewScviMapper()
	}
	return NewNativeMapper()
}

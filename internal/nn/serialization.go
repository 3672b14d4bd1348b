package nn

import (
	"github.com/arches-ml/arches/internal/serialization"
	"github.com/arches-ml/arches/internal/tensor"
)

// Save writes a model's state dictionary to a .arcv file.
//
// The file is written in the checksummed v2 container. modelType is a
// free-form label recorded in the header ("vae", "classifier"); metadata
// may be nil.
func Save(model StatefulModel, path, modelType string, metadata map[string]string) error {
	writer, err := serialization.NewArcvWriter(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = writer.Close()
	}()

	return writer.WriteStateDictV2(model.StateDict(), modelType, metadata)
}

// Load reads a .arcv file into a pre-constructed model.
//
// The model must already have the architecture the file was saved from;
// its parameters are replaced in place. Returns the file header so
// callers can inspect model type and metadata.
func Load[B tensor.Backend](path string, backend B, model StatefulModel) (serialization.Header, error) {
	reader, err := serialization.NewArcvReader(path)
	if err != nil {
		return serialization.Header{}, err
	}
	defer func() {
		_ = reader.Close()
	}()

	stateDict, err := reader.ReadStateDict(backend)
	if err != nil {
		return serialization.Header{}, err
	}

	if err := model.LoadStateDict(stateDict); err != nil {
		return serialization.Header{}, err
	}

	return reader.Header(), nil
}

// Package serialization provides the native .arcv container for saving
// and loading Arches model artifacts, plus a safetensors writer for
// interchange with the Python ecosystem.
//
// An .arcv file is a JSON header describing the tensors and the model,
// followed by raw little-endian tensor bytes:
//
//	v1 layout:
//	  [4 bytes: Magic "ARCV"]
//	  [4 bytes: Version (uint32 LE)]
//	  [4 bytes: Flags (uint32 LE)]
//	  [8 bytes: Header Size (uint64 LE)]
//	  [Header: JSON metadata]
//	  [Tensor data: raw bytes, 64-byte aligned]
//
//	v2 layout (default for model artifacts):
//	  [64 bytes: fixed header with magic, version, flags, header size,
//	   data size, and SHA-256 checksum of the tensor data]
//	  [Header: JSON metadata]
//	  [Tensor data: raw bytes, 64-byte aligned]
//
// The JSON header carries tensor metadata (name, dtype, shape, offset)
// and, for model artifacts, a model block with the constructor
// parameters and the data registry the model was trained against.
// Loaders that adapt a pretrained artifact to new data read that block
// before touching any tensor bytes, so a file missing it is rejected
// cheaply. The v2 checksum is verified when the file is opened, so a
// truncated or corrupted artifact fails at open rather than producing
// silently wrong weights.
//
// Tensors are laid out in sorted name order, which makes the bytes of a
// given state dict deterministic.
//
// Example usage:
//
//	// Save a model
//	writer, err := serialization.NewArcvWriter("model.arcv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := writer.WriteStateDictV2(model.StateDict(), "vae", nil); err != nil {
//	    log.Fatal(err)
//	}
//	writer.Close()
//
//	// Load a model
//	reader, err := serialization.NewArcvReader("model.arcv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	stateDict, err := reader.ReadStateDict(backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	model.LoadStateDict(stateDict)
//	reader.Close()
package serialization

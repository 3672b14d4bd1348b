// Package loader reads pretrained model weights for adaptation.
//
// Two containers are supported:
//   - SafeTensors: the interchange format exported by the Python
//     single-cell stack (scvi-tools via safetensors.torch)
//   - Arcv: the native artifact format written by this toolkit
//
// Checkpoints from the Python stack name their parameters after the
// PyTorch module tree ("z_encoder.encoder.fc_layers.Layer 0.0.weight");
// a WeightMapper rewrites those onto native state-dict names so the
// same reconciliation code serves both sources.
//
// Example:
//
//	model, err := loader.OpenModel("pretrained.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer model.Close()
//
//	mapper := loader.GetMapper(model.Source())
//	stateDict, err := loader.ReadMappedStateDict(model, mapper, backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Half-precision tensors (F16, BF16) are widened to float32 on load;
// the native stack computes in float32 throughout.
package loader

package loader

import (
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"

	"github.com/arches-ml/arches/internal/backend/cpu"
	"github.com/arches-ml/arches/internal/serialization"
	"github.com/arches-ml/arches/internal/tensor"
)

func writeScviFixture(t *testing.T, path string) {
	t.Helper()

	// A PyTorch-named linear weight plus a counter that has no native
	// destination.
	entries := map[string]SafeTensorInfo{
		"z_encoder.encoder.fc_layers.Layer 0.0.weight": {
			DType:       SafeTensorsF32,
			Shape:       []int{2, 2},
			DataOffsets: [2]int64{0, 16},
		},
		"z_encoder.encoder.fc_layers.Layer 0.1.num_batches_tracked": {
			DType:       SafeTensorsI64,
			Shape:       []int{},
			DataOffsets: [2]int64{16, 24},
		},
	}

	payload := make([]byte, 24)
	for i, v := range []float32{1, 2, 3, 4} {
		binary.LittleEndian.PutUint32(payload[i*4:], math.Float32bits(v))
	}
	binary.LittleEndian.PutUint64(payload[16:], 42)

	writeSafeTensorsFixture(t, path, entries, payload, nil)
}

func TestOpenModel_SafeTensors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pretrained.safetensors")
	writeScviFixture(t, path)

	model, err := OpenModel(path)
	if err != nil {
		t.Fatalf("OpenModel failed: %v", err)
	}
	defer model.Close()

	if model.Format() != FormatSafeTensors {
		t.Errorf("Expected SafeTensors format, got %s", model.Format())
	}
	if model.Source() != SourceScvi {
		t.Errorf("Expected scvi-tools source, got %s", model.Source())
	}
	if len(model.TensorNames()) != 2 {
		t.Errorf("Expected 2 tensors, got %d", len(model.TensorNames()))
	}
}

func TestOpenModel_Arcv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.arcv")
	backend := cpu.New()

	raw, err := tensor.NewRaw(tensor.Shape{2, 2}, tensor.Float32, backend.Device())
	if err != nil {
		t.Fatalf("Failed to create tensor: %v", err)
	}
	copy(raw.AsFloat32(), []float32{1, 2, 3, 4})

	writer, err := serialization.NewArcvWriter(path)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	stateDict := map[string]*tensor.RawTensor{
		"z_encoder.encoder.fc_layers.0.linear.weight": raw,
	}
	if err := writer.WriteStateDictV2(stateDict, "vae", nil); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	writer.Close()

	model, err := OpenModel(path)
	if err != nil {
		t.Fatalf("OpenModel failed: %v", err)
	}
	defer model.Close()

	if model.Format() != FormatArcv {
		t.Errorf("Expected Arcv format, got %s", model.Format())
	}
	if model.Source() != SourceNative {
		t.Errorf("Expected native source, got %s", model.Source())
	}

	loaded, err := model.LoadTensor("z_encoder.encoder.fc_layers.0.linear.weight", backend)
	if err != nil {
		t.Fatalf("LoadTensor failed: %v", err)
	}
	got := loaded.AsFloat32()
	for i, v := range []float32{1, 2, 3, 4} {
		if got[i] != v {
			t.Errorf("Expected data[%d]=%f, got %f", i, v, got[i])
		}
	}
}

func TestOpenModel_UnsupportedExtension(t *testing.T) {
	if _, err := OpenModel("model.gguf"); err == nil {
		t.Error("Expected error for unsupported extension")
	}
	if _, err := OpenModel("model"); err == nil {
		t.Error("Expected error for missing extension")
	}
}

func TestReadMappedStateDict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pretrained.safetensors")
	writeScviFixture(t, path)

	model, err := OpenModel(path)
	if err != nil {
		t.Fatalf("OpenModel failed: %v", err)
	}
	defer model.Close()

	backend := cpu.New()
	stateDict, err := ReadMappedStateDict(model, GetMapper(model.Source()), backend)
	if err != nil {
		t.Fatalf("ReadMappedStateDict failed: %v", err)
	}

	// The counter is skipped; the weight lands under its native name.
	if len(stateDict) != 1 {
		t.Fatalf("Expected 1 mapped tensor, got %d", len(stateDict))
	}
	raw, ok := stateDict["z_encoder.encoder.fc_layers.0.linear.weight"]
	if !ok {
		t.Fatal("Mapped weight not found under native name")
	}
	got := raw.AsFloat32()
	for i, v := range []float32{1, 2, 3, 4} {
		if got[i] != v {
			t.Errorf("Expected data[%d]=%f, got %f", i, v, got[i])
		}
	}
}

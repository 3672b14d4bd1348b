// Export tests live in an external package: they read the exported files back
// through the loader package, which itself imports serialization.
package serialization_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arches-ml/arches/internal/backend/cpu"
	"github.com/arches-ml/arches/internal/loader"
	"github.com/arches-ml/arches/internal/serialization"
	"github.com/arches-ml/arches/internal/tensor"
)

func newFloat32Tensor(t *testing.T, shape tensor.Shape, values []float32) *tensor.RawTensor {
	t.Helper()

	backend := cpu.New()
	raw, err := tensor.NewRaw(shape, tensor.Float32, backend.Device())
	if err != nil {
		t.Fatalf("Failed to create tensor: %v", err)
	}
	copy(raw.AsFloat32(), values)
	return raw
}

func TestSafeTensorsExportBasic(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "export.safetensors")

	stateDict := map[string]*tensor.RawTensor{
		"mean_encoder.weight": newFloat32Tensor(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6}),
		"mean_encoder.bias":   newFloat32Tensor(t, tensor.Shape{3}, []float32{0.1, 0.2, 0.3}),
	}
	metadata := map[string]string{
		"format":    "pt",
		"framework": "arches",
	}

	if err := serialization.WriteSafeTensors(testFile, stateDict, metadata); err != nil {
		t.Fatalf("WriteSafeTensors failed: %v", err)
	}

	if _, err := os.Stat(testFile); os.IsNotExist(err) {
		t.Fatal("SafeTensors file was not created")
	}
}

func TestSafeTensorsExportRoundTrip(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "roundtrip.safetensors")

	weight := newFloat32Tensor(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	bias := newFloat32Tensor(t, tensor.Shape{3}, []float32{0.1, 0.2, 0.3})
	original := map[string]*tensor.RawTensor{
		"mean_encoder.weight": weight,
		"mean_encoder.bias":   bias,
	}

	// Exercise the writer object directly rather than the convenience wrapper.
	writer, err := serialization.NewSafeTensorsWriter(testFile)
	if err != nil {
		t.Fatalf("NewSafeTensorsWriter failed: %v", err)
	}
	if err := writer.WriteStateDict(original, map[string]string{"format": "pt"}); err != nil {
		t.Fatalf("WriteStateDict failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reader, err := loader.NewSafeTensorsReader(testFile)
	if err != nil {
		t.Fatalf("NewSafeTensorsReader failed: %v", err)
	}
	defer reader.Close()

	if reader.Metadata()["format"] != "pt" {
		t.Errorf("Expected format=pt, got %s", reader.Metadata()["format"])
	}
	if len(reader.TensorNames()) != 2 {
		t.Errorf("Expected 2 tensors, got %d", len(reader.TensorNames()))
	}

	backend := cpu.New()
	loadedWeight, err := reader.LoadTensor("mean_encoder.weight", backend)
	if err != nil {
		t.Fatalf("Failed to load weight: %v", err)
	}
	if !tensorEqual(weight, loadedWeight) {
		t.Error("Weight tensor mismatch after round-trip")
	}

	loadedBias, err := reader.LoadTensor("mean_encoder.bias", backend)
	if err != nil {
		t.Fatalf("Failed to load bias: %v", err)
	}
	if !tensorEqual(bias, loadedBias) {
		t.Error("Bias tensor mismatch after round-trip")
	}
}

func TestSafeTensorsExportFloat64(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "float64.safetensors")
	backend := cpu.New()

	libraryMeans, err := tensor.NewRaw(tensor.Shape{2, 2}, tensor.Float64, backend.Device())
	if err != nil {
		t.Fatalf("Failed to create tensor: %v", err)
	}
	copy(libraryMeans.AsFloat64(), []float64{1.1, 2.2, 3.3, 4.4})

	stateDict := map[string]*tensor.RawTensor{
		"library_log_means": libraryMeans,
	}
	if err := serialization.WriteSafeTensors(testFile, stateDict, nil); err != nil {
		t.Fatalf("WriteSafeTensors failed: %v", err)
	}

	reader, err := loader.NewSafeTensorsReader(testFile)
	if err != nil {
		t.Fatalf("NewSafeTensorsReader failed: %v", err)
	}
	defer reader.Close()

	info, err := reader.TensorInfo("library_log_means")
	if err != nil {
		t.Fatalf("TensorInfo failed: %v", err)
	}
	if info.DType != loader.SafeTensorsF64 {
		t.Errorf("Expected dtype F64, got %s", info.DType)
	}

	loaded, err := reader.LoadTensor("library_log_means", backend)
	if err != nil {
		t.Fatalf("Failed to load tensor: %v", err)
	}
	if !tensorEqual(libraryMeans, loaded) {
		t.Error("Float64 tensor mismatch after round-trip")
	}
}

func TestSafeTensorsExportInt32(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "int32.safetensors")
	backend := cpu.New()

	indices, err := tensor.NewRaw(tensor.Shape{4}, tensor.Int32, backend.Device())
	if err != nil {
		t.Fatalf("Failed to create tensor: %v", err)
	}
	copy(indices.AsInt32(), []int32{10, 20, 30, 40})

	stateDict := map[string]*tensor.RawTensor{
		"batch_indices": indices,
	}
	if err := serialization.WriteSafeTensors(testFile, stateDict, nil); err != nil {
		t.Fatalf("WriteSafeTensors failed: %v", err)
	}

	reader, err := loader.NewSafeTensorsReader(testFile)
	if err != nil {
		t.Fatalf("NewSafeTensorsReader failed: %v", err)
	}
	defer reader.Close()

	info, err := reader.TensorInfo("batch_indices")
	if err != nil {
		t.Fatalf("TensorInfo failed: %v", err)
	}
	if info.DType != loader.SafeTensorsI32 {
		t.Errorf("Expected dtype I32, got %s", info.DType)
	}

	loaded, err := reader.LoadTensor("batch_indices", backend)
	if err != nil {
		t.Fatalf("Failed to load tensor: %v", err)
	}
	if !tensorEqual(indices, loaded) {
		t.Error("Int32 tensor mismatch after round-trip")
	}
}

func TestSafeTensorsExportMultipleShapes(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "shapes.safetensors")
	backend := cpu.New()

	scalar, _ := tensor.NewRaw(tensor.Shape{}, tensor.Float32, backend.Device())
	scalar.AsFloat32()[0] = 42.0
	vector, _ := tensor.NewRaw(tensor.Shape{5}, tensor.Float32, backend.Device())
	matrix, _ := tensor.NewRaw(tensor.Shape{3, 4}, tensor.Float32, backend.Device())
	tensor3d, _ := tensor.NewRaw(tensor.Shape{2, 3, 4}, tensor.Float32, backend.Device())

	stateDict := map[string]*tensor.RawTensor{
		"kl_weight":      scalar,
		"px_r":           vector,
		"decoder.weight": matrix,
		"activations":    tensor3d,
	}
	if err := serialization.WriteSafeTensors(testFile, stateDict, nil); err != nil {
		t.Fatalf("WriteSafeTensors failed: %v", err)
	}

	reader, err := loader.NewSafeTensorsReader(testFile)
	if err != nil {
		t.Fatalf("NewSafeTensorsReader failed: %v", err)
	}
	defer reader.Close()

	tests := []struct {
		name          string
		expectedShape []int
	}{
		{"kl_weight", []int{}},
		{"px_r", []int{5}},
		{"decoder.weight", []int{3, 4}},
		{"activations", []int{2, 3, 4}},
	}
	for _, tt := range tests {
		info, err := reader.TensorInfo(tt.name)
		if err != nil {
			t.Errorf("TensorInfo(%s) failed: %v", tt.name, err)
			continue
		}
		if len(info.Shape) != len(tt.expectedShape) {
			t.Errorf("%s: expected shape length %d, got %d", tt.name, len(tt.expectedShape), len(info.Shape))
			continue
		}
		for i, dim := range tt.expectedShape {
			if info.Shape[i] != dim {
				t.Errorf("%s: shape[%d] expected %d, got %d", tt.name, i, dim, info.Shape[i])
			}
		}
	}
}

func TestSafeTensorsExportEmptyMetadata(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "no_metadata.safetensors")

	stateDict := map[string]*tensor.RawTensor{
		"px_r": newFloat32Tensor(t, tensor.Shape{2}, []float32{1, 2}),
	}
	if err := serialization.WriteSafeTensors(testFile, stateDict, nil); err != nil {
		t.Fatalf("WriteSafeTensors failed: %v", err)
	}

	reader, err := loader.NewSafeTensorsReader(testFile)
	if err != nil {
		t.Fatalf("NewSafeTensorsReader failed: %v", err)
	}
	defer reader.Close()

	if metadata := reader.Metadata(); len(metadata) > 0 {
		t.Errorf("Expected empty metadata, got %v", metadata)
	}
}

func TestSafeTensorsExportAlphabeticalOrder(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "order.safetensors")
	backend := cpu.New()

	// Insertion order is irrelevant; the payload is laid out by sorted name.
	stateDict := map[string]*tensor.RawTensor{
		"z_encoder.weight": newFloat32Tensor(t, tensor.Shape{1}, []float32{3}),
		"decoder.weight":   newFloat32Tensor(t, tensor.Shape{1}, []float32{1}),
		"l_encoder.weight": newFloat32Tensor(t, tensor.Shape{1}, []float32{2}),
	}
	if err := serialization.WriteSafeTensors(testFile, stateDict, nil); err != nil {
		t.Fatalf("WriteSafeTensors failed: %v", err)
	}

	reader, err := loader.NewSafeTensorsReader(testFile)
	if err != nil {
		t.Fatalf("NewSafeTensorsReader failed: %v", err)
	}
	defer reader.Close()

	for name, want := range map[string]float32{
		"decoder.weight":   1,
		"l_encoder.weight": 2,
		"z_encoder.weight": 3,
	} {
		loaded, err := reader.LoadTensor(name, backend)
		if err != nil {
			t.Fatalf("Failed to load %s: %v", name, err)
		}
		if got := loaded.AsFloat32()[0]; got != want {
			t.Errorf("Expected %s=%f, got %f", name, want, got)
		}
	}
}

func tensorEqual(a, b *tensor.RawTensor) bool {
	if len(a.Shape()) != len(b.Shape()) {
		return false
	}
	for i := range a.Shape() {
		if a.Shape()[i] != b.Shape()[i] {
			return false
		}
	}
	if a.DType() != b.DType() {
		return false
	}
	aData := a.Data()
	bData := b.Data()
	if len(aData) != len(bData) {
		return false
	}
	for i := range aData {
		if aData[i] != bData[i] {
			return false
		}
	}
	return true
}

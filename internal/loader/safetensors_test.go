package loader

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/arches-ml/arches/internal/backend/cpu"
	"github.com/arches-ml/arches/internal/tensor"
)

// writeSafeTensorsFixture writes a safetensors file from parallel entry
// and payload slices, so tests control dtypes and raw bytes directly.
func writeSafeTensorsFixture(t *testing.T, path string, entries map[string]SafeTensorInfo, payload []byte, metadata map[string]string) {
	t.Helper()

	headerMap := make(map[string]interface{})
	if metadata != nil {
		headerMap["__metadata__"] = metadata
	}
	for name, info := range entries {
		headerMap[name] = info
	}

	headerJSON, err := json.Marshal(headerMap)
	if err != nil {
		t.Fatalf("Failed to marshal header: %v", err)
	}

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	defer file.Close()

	if err := binary.Write(file, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		t.Fatalf("Failed to write header size: %v", err)
	}
	if _, err := file.Write(headerJSON); err != nil {
		t.Fatalf("Failed to write header: %v", err)
	}
	if _, err := file.Write(payload); err != nil {
		t.Fatalf("Failed to write payload: %v", err)
	}
}

// createTestSafeTensorsFile writes a two-tensor float32 fixture.
func createTestSafeTensorsFile(t *testing.T, path string) {
	t.Helper()

	entries := map[string]SafeTensorInfo{
		"mean_encoder.weight": {
			DType:       SafeTensorsF32,
			Shape:       []int{2, 3},
			DataOffsets: [2]int64{0, 24},
		},
		"mean_encoder.bias": {
			DType:       SafeTensorsF32,
			Shape:       []int{3},
			DataOffsets: [2]int64{24, 36},
		},
	}

	payload := make([]byte, 36)
	for i, v := range []float32{1, 2, 3, 4, 5, 6} {
		binary.LittleEndian.PutUint32(payload[i*4:], math.Float32bits(v))
	}
	for i, v := range []float32{0.1, 0.2, 0.3} {
		binary.LittleEndian.PutUint32(payload[24+i*4:], math.Float32bits(v))
	}

	writeSafeTensorsFixture(t, path, entries, payload, map[string]string{"format": "pt"})
}

func TestNewSafeTensorsReader(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.safetensors")
	createTestSafeTensorsFile(t, testFile)

	reader, err := NewSafeTensorsReader(testFile)
	if err != nil {
		t.Fatalf("NewSafeTensorsReader failed: %v", err)
	}
	defer reader.Close()

	metadata := reader.Metadata()
	if metadata["format"] != "pt" {
		t.Errorf("Expected format=pt, got %s", metadata["format"])
	}

	names := reader.TensorNames()
	if len(names) != 2 {
		t.Errorf("Expected 2 tensors, got %d", len(names))
	}
}

func TestSafeTensorsReader_TensorInfo(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.safetensors")
	createTestSafeTensorsFile(t, testFile)

	reader, err := NewSafeTensorsReader(testFile)
	if err != nil {
		t.Fatalf("NewSafeTensorsReader failed: %v", err)
	}
	defer reader.Close()

	info, err := reader.TensorInfo("mean_encoder.weight")
	if err != nil {
		t.Fatalf("TensorInfo failed: %v", err)
	}
	if info.DType != SafeTensorsF32 {
		t.Errorf("Expected dtype F32, got %s", info.DType)
	}
	if len(info.Shape) != 2 || info.Shape[0] != 2 || info.Shape[1] != 3 {
		t.Errorf("Expected shape [2, 3], got %v", info.Shape)
	}

	if _, err := reader.TensorInfo("nonexistent"); err == nil {
		t.Error("Expected error for non-existent tensor")
	}
}

func TestSafeTensorsReader_ReadTensorData(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.safetensors")
	createTestSafeTensorsFile(t, testFile)

	reader, err := NewSafeTensorsReader(testFile)
	if err != nil {
		t.Fatalf("NewSafeTensorsReader failed: %v", err)
	}
	defer reader.Close()

	data, err := reader.ReadTensorData("mean_encoder.weight")
	if err != nil {
		t.Fatalf("ReadTensorData failed: %v", err)
	}

	expectedSize := 2 * 3 * 4
	if len(data) != expectedSize {
		t.Errorf("Expected %d bytes, got %d", expectedSize, len(data))
	}
}

func TestSafeTensorsReader_LoadTensor(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.safetensors")
	createTestSafeTensorsFile(t, testFile)

	reader, err := NewSafeTensorsReader(testFile)
	if err != nil {
		t.Fatalf("NewSafeTensorsReader failed: %v", err)
	}
	defer reader.Close()

	backend := cpu.New()

	raw, err := reader.LoadTensor("mean_encoder.weight", backend)
	if err != nil {
		t.Fatalf("LoadTensor failed: %v", err)
	}

	shape := raw.Shape()
	if len(shape) != 2 || shape[0] != 2 || shape[1] != 3 {
		t.Errorf("Expected shape [2, 3], got %v", shape)
	}
	if raw.DType() != tensor.Float32 {
		t.Errorf("Expected dtype Float32, got %v", raw.DType())
	}

	data := raw.AsFloat32()
	expected := []float32{1, 2, 3, 4, 5, 6}
	for i, v := range expected {
		if data[i] != v {
			t.Errorf("Expected data[%d]=%f, got %f", i, v, data[i])
		}
	}

	bias, err := reader.LoadTensor("mean_encoder.bias", backend)
	if err != nil {
		t.Fatalf("LoadTensor failed: %v", err)
	}
	biasData := bias.AsFloat32()
	for i, v := range []float32{0.1, 0.2, 0.3} {
		if !floatEqual(biasData[i], v, 1e-6) {
			t.Errorf("Expected bias[%d]=%f, got %f", i, v, biasData[i])
		}
	}
}

// TestSafeTensorsReader_LoadTensorF16 verifies half-precision widening
// against hand-encoded bit patterns.
func TestSafeTensorsReader_LoadTensorF16(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "f16.safetensors")

	// 1.0=0x3C00, 2.0=0x4000, 0.5=0x3800, -1.5=0xBE00,
	// smallest subnormal 2^-24=0x0001, +Inf=0x7C00.
	halves := []uint16{0x3C00, 0x4000, 0x3800, 0xBE00, 0x0001, 0x7C00}
	payload := make([]byte, len(halves)*2)
	for i, h := range halves {
		binary.LittleEndian.PutUint16(payload[i*2:], h)
	}

	entries := map[string]SafeTensorInfo{
		"half_weights": {
			DType:       SafeTensorsF16,
			Shape:       []int{6},
			DataOffsets: [2]int64{0, int64(len(payload))},
		},
	}
	writeSafeTensorsFixture(t, testFile, entries, payload, nil)

	reader, err := NewSafeTensorsReader(testFile)
	if err != nil {
		t.Fatalf("NewSafeTensorsReader failed: %v", err)
	}
	defer reader.Close()

	raw, err := reader.LoadTensor("half_weights", cpu.New())
	if err != nil {
		t.Fatalf("LoadTensor failed: %v", err)
	}
	if raw.DType() != tensor.Float32 {
		t.Fatalf("Expected widened Float32, got %v", raw.DType())
	}

	data := raw.AsFloat32()
	expected := []float32{1.0, 2.0, 0.5, -1.5, float32(math.Ldexp(1, -24)), float32(math.Inf(1))}
	for i, v := range expected {
		if data[i] != v {
			t.Errorf("Expected data[%d]=%g, got %g", i, v, data[i])
		}
	}
}

func TestSafeTensorsReader_LoadTensorBF16(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "bf16.safetensors")

	// bfloat16 is the upper half of float32: 1.0=0x3F80, -2.5=0xC020.
	halves := []uint16{0x3F80, 0xC020}
	payload := make([]byte, len(halves)*2)
	for i, h := range halves {
		binary.LittleEndian.PutUint16(payload[i*2:], h)
	}

	entries := map[string]SafeTensorInfo{
		"bf16_weights": {
			DType:       SafeTensorsBF16,
			Shape:       []int{2},
			DataOffsets: [2]int64{0, int64(len(payload))},
		},
	}
	writeSafeTensorsFixture(t, testFile, entries, payload, nil)

	reader, err := NewSafeTensorsReader(testFile)
	if err != nil {
		t.Fatalf("NewSafeTensorsReader failed: %v", err)
	}
	defer reader.Close()

	raw, err := reader.LoadTensor("bf16_weights", cpu.New())
	if err != nil {
		t.Fatalf("LoadTensor failed: %v", err)
	}

	data := raw.AsFloat32()
	expected := []float32{1.0, -2.5}
	for i, v := range expected {
		if data[i] != v {
			t.Errorf("Expected data[%d]=%g, got %g", i, v, data[i])
		}
	}
}

// Helper function for float comparison.
func floatEqual(a, b, epsilon float32) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < epsilon
}

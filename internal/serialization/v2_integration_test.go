package serialization

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/arches-ml/arches/internal/tensor"
)

func newTestTensor(t testing.TB, shape tensor.Shape, values []float32) *tensor.RawTensor {
	t.Helper()
	backend := tensor.NewMockBackend()
	raw, err := tensor.NewRaw(shape, tensor.Float32, backend.Device())
	if err != nil {
		t.Fatalf("Failed to create tensor: %v", err)
	}
	copy(raw.AsFloat32(), values)
	return raw
}

// corruptLastByte flips the final byte of the file, which always lands
// in the tensor data section.
func corruptLastByte(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat file: %v", err)
	}
	file, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	if _, err := file.Seek(info.Size()-1, 0); err != nil {
		t.Fatalf("Failed to seek: %v", err)
	}
	if _, err := file.Write([]byte{0xFF}); err != nil {
		t.Fatalf("Failed to corrupt file: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("Failed to close file: %v", err)
	}
}

func TestV2RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.arcv")
	backend := tensor.NewMockBackend()

	want := []float32{1.0, 2.0, 3.0, 4.0}
	stateDict := map[string]*tensor.RawTensor{
		"z_encoder.mean_encoder.weight": newTestTensor(t, tensor.Shape{2, 2}, want),
	}

	writer, err := NewArcvWriter(path)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	if err := writer.WriteStateDictV2(stateDict, "vae", map[string]string{"dataset": "synthetic"}); err != nil {
		t.Fatalf("Failed to write v2 file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	reader, err := NewArcvReader(path)
	if err != nil {
		t.Fatalf("Failed to open v2 file: %v", err)
	}
	defer reader.Close()

	if reader.version != FormatVersionV2 {
		t.Errorf("Expected version %d, got %d", FormatVersionV2, reader.version)
	}
	if reader.Header().ModelType != "vae" {
		t.Errorf("Expected model type vae, got %s", reader.Header().ModelType)
	}
	if reader.Metadata()["dataset"] != "synthetic" {
		t.Errorf("Metadata not preserved: %v", reader.Metadata())
	}

	loadedDict, err := reader.ReadStateDict(backend)
	if err != nil {
		t.Fatalf("Failed to read state dict: %v", err)
	}

	loaded, ok := loadedDict["z_encoder.mean_encoder.weight"]
	if !ok {
		t.Fatal("Tensor 'z_encoder.mean_encoder.weight' not found")
	}
	got := loaded.AsFloat32()
	if len(got) != len(want) {
		t.Fatalf("Expected %d elements, got %d", len(want), len(got))
	}
	for i, v := range want {
		if got[i] != v {
			t.Errorf("Element %d: expected %f, got %f", i, v, got[i])
		}
	}
}

// TestV2ModelMetaRoundTrip verifies that the model block survives a
// round trip untouched. The container stores init params and the data
// registry as raw JSON; the loader parses them.
func TestV2ModelMetaRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pretrained.arcv")

	stateDict := map[string]*tensor.RawTensor{
		"px_r": newTestTensor(t, tensor.Shape{3}, []float32{0.5, 1.0, 1.5}),
	}

	initParams := json.RawMessage(`{"n_input":3,"n_latent":2,"n_hidden":16,"n_layers":1}`)
	registry := json.RawMessage(`{"fields":{"batch":{"categories":["batch_a","batch_b"]}}}`)

	header := Header{
		FormatVersion: FormatVersionV2,
		ModelType:     "vae",
		Model: &ModelMeta{
			InitParams: initParams,
			Registry:   registry,
			IsTrained:  true,
		},
	}

	writer, err := NewArcvWriter(path)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	if err := writer.WriteStateDictWithHeader(stateDict, header); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	reader, err := NewArcvReader(path)
	if err != nil {
		t.Fatalf("Failed to open: %v", err)
	}
	defer reader.Close()

	if reader.flags&FlagHasModelMeta == 0 {
		t.Error("FlagHasModelMeta should be set when the header carries a model block")
	}

	meta := reader.ModelMeta()
	if meta == nil {
		t.Fatal("ModelMeta is nil")
	}
	if !meta.IsTrained {
		t.Error("Expected IsTrained=true")
	}

	var params map[string]int
	if err := json.Unmarshal(meta.InitParams, &params); err != nil {
		t.Fatalf("InitParams did not survive as JSON: %v", err)
	}
	if params["n_input"] != 3 || params["n_latent"] != 2 {
		t.Errorf("InitParams content mismatch: %v", params)
	}

	var reg map[string]any
	if err := json.Unmarshal(meta.Registry, &reg); err != nil {
		t.Fatalf("Registry did not survive as JSON: %v", err)
	}

	// A file written without a model block reads back as nil.
	bare := filepath.Join(t.TempDir(), "bare.arcv")
	bareWriter, err := NewArcvWriter(bare)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	if err := bareWriter.WriteStateDictV2(stateDict, "vae", nil); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	bareWriter.Close()

	bareReader, err := NewArcvReader(bare)
	if err != nil {
		t.Fatalf("Failed to open: %v", err)
	}
	defer bareReader.Close()
	if bareReader.ModelMeta() != nil {
		t.Error("Expected nil ModelMeta for a file written without one")
	}
	if bareReader.flags&FlagHasModelMeta != 0 {
		t.Error("FlagHasModelMeta should not be set without a model block")
	}
}

func TestV2CorruptionDetection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.arcv")

	stateDict := map[string]*tensor.RawTensor{
		"weight": newTestTensor(t, tensor.Shape{2, 4}, []float32{1, 2, 3, 4, 5, 6, 7, 8}),
	}

	writer, err := NewArcvWriter(path)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	if err := writer.WriteStateDictV2(stateDict, "vae", nil); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	corruptLastByte(t, path)

	_, err = NewArcvReader(path)
	if err == nil {
		t.Fatal("Expected checksum validation to fail, but open succeeded")
	}
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("Expected ErrChecksumMismatch, got: %v", err)
	}
}

// TestV2TruncatedFile verifies that a file cut short fails at open, not
// at some later tensor read.
func TestV2TruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truncated.arcv")

	stateDict := map[string]*tensor.RawTensor{
		"weight": newTestTensor(t, tensor.Shape{4, 4}, make([]float32, 16)),
	}

	writer, err := NewArcvWriter(path)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	if err := writer.WriteStateDictV2(stateDict, "vae", nil); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat file: %v", err)
	}
	if err := os.Truncate(path, info.Size()-10); err != nil {
		t.Fatalf("Failed to truncate file: %v", err)
	}

	if _, err := NewArcvReader(path); err == nil {
		t.Fatal("Expected open to fail on a truncated file")
	}
}

func TestV2SkipChecksumValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skip_checksum.arcv")

	stateDict := map[string]*tensor.RawTensor{
		"weight": newTestTensor(t, tensor.Shape{2, 2}, []float32{1, 2, 3, 4}),
	}

	writer, err := NewArcvWriter(path)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	if err := writer.WriteStateDictV2(stateDict, "vae", nil); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	corruptLastByte(t, path)

	_, err = NewArcvReaderWithOptions(path, ReaderOptions{
		SkipChecksumValidation: false,
		ValidationLevel:        ValidationStrict,
	})
	if err == nil {
		t.Fatal("Expected checksum validation to fail")
	}

	reader, err := NewArcvReaderWithOptions(path, ReaderOptions{
		SkipChecksumValidation: true,
		ValidationLevel:        ValidationNormal,
	})
	if err != nil {
		t.Fatalf("Expected open to succeed with skipped validation, got: %v", err)
	}
	defer reader.Close()

	if reader.version != FormatVersionV2 {
		t.Errorf("Expected v2, got v%d", reader.version)
	}
}

func TestV2WithCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.arcv")
	backend := tensor.NewMockBackend()

	stateDict := map[string]*tensor.RawTensor{
		"model.weight":       newTestTensor(t, tensor.Shape{2, 2}, []float32{1, 2, 3, 4}),
		"optimizer.momentum": newTestTensor(t, tensor.Shape{2, 2}, []float32{0.1, 0.2, 0.3, 0.4}),
	}

	header := Header{
		FormatVersion: FormatVersionV2,
		ArchesVersion: Version,
		ModelType:     "checkpoint",
		Metadata:      map[string]string{"dataset": "synthetic"},
		CheckpointMeta: &CheckpointMeta{
			IsCheckpoint:  true,
			Epoch:         10,
			Step:          1000,
			Loss:          0.05,
			OptimizerType: "Adam",
			OptimizerConfig: map[string]any{
				"learning_rate": 0.001,
				"beta1":         0.9,
			},
		},
	}

	writer, err := NewArcvWriter(path)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	if err := writer.WriteStateDictWithHeader(stateDict, header); err != nil {
		t.Fatalf("Failed to write checkpoint: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	reader, err := NewArcvReader(path)
	if err != nil {
		t.Fatalf("Failed to open checkpoint: %v", err)
	}
	defer reader.Close()

	readHeader := reader.Header()
	if readHeader.CheckpointMeta == nil {
		t.Fatal("CheckpointMeta is nil")
	}
	if !readHeader.CheckpointMeta.IsCheckpoint {
		t.Error("Expected IsCheckpoint=true")
	}
	if readHeader.CheckpointMeta.Epoch != 10 {
		t.Errorf("Expected epoch 10, got %d", readHeader.CheckpointMeta.Epoch)
	}
	if readHeader.CheckpointMeta.Loss != 0.05 {
		t.Errorf("Expected loss 0.05, got %f", readHeader.CheckpointMeta.Loss)
	}

	loadedDict, err := reader.ReadStateDict(backend)
	if err != nil {
		t.Fatalf("Failed to read state dict: %v", err)
	}
	if len(loadedDict) != 2 {
		t.Errorf("Expected 2 tensors, got %d", len(loadedDict))
	}
	if _, ok := loadedDict["model.weight"]; !ok {
		t.Error("model.weight not found")
	}
	if _, ok := loadedDict["optimizer.momentum"]; !ok {
		t.Error("optimizer.momentum not found")
	}
}

func TestV1Compatibility(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.arcv")
	backend := tensor.NewMockBackend()

	stateDict := map[string]*tensor.RawTensor{
		"weight": newTestTensor(t, tensor.Shape{2, 2}, []float32{1, 2, 3, 4}),
	}

	writer, err := NewArcvWriter(path)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	if err := writer.WriteStateDict(stateDict, "vae", nil); err != nil {
		t.Fatalf("Failed to write v1 file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	reader, err := NewArcvReader(path)
	if err != nil {
		t.Fatalf("Failed to open v1 file: %v", err)
	}
	defer reader.Close()

	if reader.version != FormatVersion {
		t.Errorf("Expected v1 format version %d, got %d", FormatVersion, reader.version)
	}

	loadedDict, err := reader.ReadStateDict(backend)
	if err != nil {
		t.Fatalf("Failed to read v1 state dict: %v", err)
	}
	if len(loadedDict) != 1 {
		t.Fatalf("Expected 1 tensor, got %d", len(loadedDict))
	}
}

func BenchmarkChecksumOverhead(b *testing.B) {
	sizes := []int{
		1024 * 1024,      // 1 MB
		16 * 1024 * 1024, // 16 MB
	}

	for _, size := range sizes {
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(i % 256)
		}

		b.Run(fmt.Sprintf("%dMB", size/(1024*1024)), func(b *testing.B) {
			b.SetBytes(int64(size))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = ComputeChecksum(data)
			}
		})
	}
}

func BenchmarkV2WriteWithChecksum(b *testing.B) {
	tmpDir := b.TempDir()

	numElements := 8 * 1024 * 1024 / 4
	values := make([]float32, numElements)
	for i := range values {
		values[i] = float32(i)
	}
	stateDict := map[string]*tensor.RawTensor{
		"large_weight": newTestTensor(b, tensor.Shape{numElements}, values),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		path := filepath.Join(tmpDir, fmt.Sprintf("bench_%d.arcv", i))
		writer, err := NewArcvWriter(path)
		if err != nil {
			b.Fatalf("Failed to create writer: %v", err)
		}
		if err := writer.WriteStateDictV2(stateDict, "bench", nil); err != nil {
			b.Fatalf("Failed to write: %v", err)
		}
		if err := writer.Close(); err != nil {
			b.Fatalf("Failed to close: %v", err)
		}
	}
}

func BenchmarkV2ReadWithChecksum(b *testing.B) {
	path := filepath.Join(b.TempDir(), "bench_read.arcv")
	backend := tensor.NewMockBackend()

	numElements := 8 * 1024 * 1024 / 4
	values := make([]float32, numElements)
	for i := range values {
		values[i] = float32(i)
	}
	stateDict := map[string]*tensor.RawTensor{
		"large_weight": newTestTensor(b, tensor.Shape{numElements}, values),
	}

	writer, err := NewArcvWriter(path)
	if err != nil {
		b.Fatalf("Failed to create writer: %v", err)
	}
	if err := writer.WriteStateDictV2(stateDict, "bench", nil); err != nil {
		b.Fatalf("Failed to write: %v", err)
	}
	writer.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reader, err := NewArcvReader(path)
		if err != nil {
			b.Fatalf("Failed to open: %v", err)
		}
		if _, err := reader.ReadStateDict(backend); err != nil {
			b.Fatalf("Failed to read: %v", err)
		}
		reader.Close()
	}
}

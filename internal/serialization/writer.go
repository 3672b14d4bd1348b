package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/arches-ml/arches/internal/tensor"
)

// ArcvWriter writes models in .arcv format.
type ArcvWriter struct {
	file   *os.File
	closed bool
}

// NewArcvWriter creates a new .arcv file writer.
func NewArcvWriter(path string) (*ArcvWriter, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	return &ArcvWriter{
		file:   file,
		closed: false,
	}, nil
}

// WriteStateDict writes a state dictionary to the .arcv file using
// format v1 (no checksum).
//
// The state dictionary is a map from parameter names to tensors.
func (w *ArcvWriter) WriteStateDict(stateDict map[string]*tensor.RawTensor, modelType string, metadata map[string]string) error {
	return w.WriteStateDictWithHeader(stateDict, Header{
		FormatVersion: FormatVersion,
		ModelType:     modelType,
		Metadata:      metadata,
	})
}

// WriteStateDictV2 writes a state dictionary using format v2, which
// carries a SHA-256 checksum over the tensor payload in a 64-byte fixed
// header. Model artifacts are written as v2 so a truncated or corrupted
// file fails at open instead of producing silently wrong weights.
func (w *ArcvWriter) WriteStateDictV2(stateDict map[string]*tensor.RawTensor, modelType string, metadata map[string]string) error {
	return w.WriteStateDictWithHeader(stateDict, Header{
		FormatVersion: FormatVersionV2,
		ModelType:     modelType,
		Metadata:      metadata,
	})
}

// WriteStateDictWithHeader writes a state dictionary with a custom
// header, honoring header.FormatVersion (v1 when unset). This is how
// CheckpointMeta and ModelMeta reach the file.
func (w *ArcvWriter) WriteStateDictWithHeader(stateDict map[string]*tensor.RawTensor, header Header) error {
	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	prepareHeader(&header)
	order := layoutTensors(&header, stateDict)

	switch header.FormatVersion {
	case FormatVersion:
		return writeV1(w.file, stateDict, order, header)
	case FormatVersionV2:
		return writeV2(w.file, stateDict, order, header)
	default:
		return fmt.Errorf("%w: cannot write version %d", ErrUnsupportedVersion, header.FormatVersion)
	}
}

// Close closes the writer and the underlying file.
func (w *ArcvWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// WriteTo writes a state dictionary in v1 format to an io.Writer.
// This is useful for writing to buffers or network connections.
func WriteTo(writer io.Writer, stateDict map[string]*tensor.RawTensor, modelType string, metadata map[string]string) error {
	header := Header{
		FormatVersion: FormatVersion,
		ModelType:     modelType,
		Metadata:      metadata,
	}
	prepareHeader(&header)
	order := layoutTensors(&header, stateDict)
	return writeV1(writer, stateDict, order, header)
}

// prepareHeader fills defaulted header fields in place.
func prepareHeader(header *Header) {
	if header.FormatVersion == 0 {
		header.FormatVersion = FormatVersion
	}
	if header.ArchesVersion == "" {
		header.ArchesVersion = Version
	}
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}
}

// layoutTensors fills header.Tensors with offsets into the data section
// and returns the tensor names in write order. Names are sorted so the
// same state dict always produces the same bytes.
func layoutTensors(header *Header, stateDict map[string]*tensor.RawTensor) []string {
	order := make([]string, 0, len(stateDict))
	for name := range stateDict {
		order = append(order, name)
	}
	sort.Strings(order)

	header.Tensors = make([]TensorMeta, 0, len(stateDict))
	var currentOffset int64
	for _, name := range order {
		raw := stateDict[name]
		size := int64(raw.NumElements() * raw.DType().Size())

		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  dtypeToString(raw.DType()),
			Shape:  []int(raw.Shape()),
			Offset: currentOffset,
			Size:   size,
		})

		currentOffset += size
	}

	return order
}

// headerFlags derives the flags word from header contents.
func headerFlags(header Header) uint32 {
	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if header.Model != nil {
		flags |= FlagHasModelMeta
	}
	if header.CheckpointMeta != nil && header.CheckpointMeta.IsCheckpoint {
		flags |= FlagHasOptimizer
	}
	return flags
}

// writeV1 writes the v1 layout:
//
//	[4 bytes magic][4 bytes version][4 bytes flags][8 bytes header size]
//	[header JSON][padding to 64][tensor payload]
func writeV1(out io.Writer, stateDict map[string]*tensor.RawTensor, order []string, header Header) error {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	if _, err := out.Write([]byte(MagicBytes)); err != nil {
		return fmt.Errorf("failed to write magic bytes: %w", err)
	}
	if err := binary.Write(out, binary.LittleEndian, uint32(FormatVersion)); err != nil {
		return fmt.Errorf("failed to write version: %w", err)
	}
	if err := binary.Write(out, binary.LittleEndian, headerFlags(header)); err != nil {
		return fmt.Errorf("failed to write flags: %w", err)
	}

	headerSize := uint64(len(headerJSON))
	if err := binary.Write(out, binary.LittleEndian, headerSize); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := out.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Pad so the payload starts on a 64-byte boundary.
	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize, conversion is safe
	currentPos := int64(4+4+4+8) + int64(headerSize)
	padding := (HeaderAlignment - (currentPos % HeaderAlignment)) % HeaderAlignment
	if padding > 0 {
		if _, err := out.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	for _, name := range order {
		if _, err := out.Write(stateDict[name].Data()); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}

	return nil
}

// writeV2 writes the v2 layout:
//
//	[64-byte fixed header: magic, version, flags, header size, data
//	size, SHA-256 of the payload][header JSON][padding to 64][payload]
//
// The payload is buffered so the checksum lands in the fixed header
// before any tensor byte is written.
func writeV2(out io.Writer, stateDict map[string]*tensor.RawTensor, order []string, header Header) error {
	var payload []byte
	for _, name := range order {
		payload = append(payload, stateDict[name].Data()...)
	}
	checksum := ComputeChecksum(payload)

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	headerSize := uint64(len(headerJSON))
	dataSize := uint64(len(payload))

	fixedHeader := make([]byte, FixedHeaderSizeV2)
	copy(fixedHeader[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixedHeader[4:8], uint32(FormatVersionV2))
	binary.LittleEndian.PutUint32(fixedHeader[8:12], headerFlags(header))
	// 0x0C-0x0F reserved, zero from make()
	binary.LittleEndian.PutUint64(fixedHeader[16:24], headerSize)
	binary.LittleEndian.PutUint64(fixedHeader[24:32], dataSize)
	copy(fixedHeader[ChecksumOffsetV2:ChecksumOffsetV2+ChecksumSize], checksum[:])

	if _, err := out.Write(fixedHeader); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := out.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header JSON: %w", err)
	}

	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize, conversion is safe
	currentPos := int64(FixedHeaderSizeV2) + int64(headerSize)
	padding := (HeaderAlignment - (currentPos % HeaderAlignment)) % HeaderAlignment
	if padding > 0 {
		if _, err := out.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	if _, err := out.Write(payload); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}

	return nil
}

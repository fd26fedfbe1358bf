package gltf

import (
	"encoding/binary"
	"fmt"
)

// GLB container constants.
const (
	GLBMagic       uint32 = 0x46546C67 // "glTF"
	GLBVersion     uint32 = 2
	ChunkTypeJSON  uint32 = 0x4E4F534A // "JSON"
	ChunkTypeBIN   uint32 = 0x004E4942 // "BIN\x00"
	glbHeaderSize         = 12
	chunkHeaderLen        = 8
)

// GLB is a parsed binary container: the JSON document plus the embedded
// binary chunk, which backs every buffer declared without a URI.
type GLB struct {
	Document *Document
	JSON     []byte
	Binary   []byte
}

// IsGLB reports whether data starts with the GLB magic.
func IsGLB(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data) == GLBMagic
}

// ParseGLB decodes a GLB container in a single pass. Chunks between the
// JSON chunk and the first BIN chunk are skipped.
func ParseGLB(data []byte) (*GLB, error) {
	if len(data) < glbHeaderSize || binary.LittleEndian.Uint32(data[0:4]) != GLBMagic {
		return nil, ErrNotAGlbFile
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != GLBVersion {
		return nil, fmt.Errorf("%w: GLB version %d", ErrUnsupportedVersion, v)
	}
	total := int(binary.LittleEndian.Uint32(data[8:12]))
	if total > len(data) {
		return nil, fmt.Errorf("%w: header declares %d bytes, file has %d", ErrMalformedAsset, total, len(data))
	}
	data = data[:total]

	pos := glbHeaderSize
	length, typ, ok := chunkHeader(data, pos)
	if !ok || typ != ChunkTypeJSON {
		return nil, ErrMissingJSONChunk
	}
	pos += chunkHeaderLen
	if pos+length > total {
		return nil, fmt.Errorf("%w: JSON chunk overruns file", ErrMalformedAsset)
	}
	jsonChunk := data[pos : pos+length]
	pos += length

	doc, err := Unmarshal(jsonChunk)
	if err != nil {
		return nil, err
	}

	for {
		length, typ, ok = chunkHeader(data, pos)
		if !ok {
			return nil, ErrMissingBinaryChunk
		}
		pos += chunkHeaderLen
		if pos+length > total {
			return nil, fmt.Errorf("%w: chunk overruns file", ErrMalformedAsset)
		}
		if typ == ChunkTypeBIN {
			return &GLB{Document: doc, JSON: jsonChunk, Binary: data[pos : pos+length]}, nil
		}
		pos += length
	}
}

func chunkHeader(data []byte, pos int) (length int, typ uint32, ok bool) {
	if pos+chunkHeaderLen > len(data) {
		return 0, 0, false
	}
	length = int(binary.LittleEndian.Uint32(data[pos:]))
	typ = binary.LittleEndian.Uint32(data[pos+4:])
	return length, typ, true
}

// EncodeGLB writes a JSON document and binary payload as a GLB container,
// padding both chunks to 4-byte boundaries.
func EncodeGLB(jsonData, bin []byte) []byte {
	jsonPad := pad4(len(jsonData))
	binPad := pad4(len(bin))
	total := glbHeaderSize + chunkHeaderLen + len(jsonData) + jsonPad
	if bin != nil {
		total += chunkHeaderLen + len(bin) + binPad
	}

	out := make([]byte, 0, total)
	out = binary.LittleEndian.AppendUint32(out, GLBMagic)
	out = binary.LittleEndian.AppendUint32(out, GLBVersion)
	out = binary.LittleEndian.AppendUint32(out, uint32(total))

	out = binary.LittleEndian.AppendUint32(out, uint32(len(jsonData)+jsonPad))
	out = binary.LittleEndian.AppendUint32(out, ChunkTypeJSON)
	out = append(out, jsonData...)
	for i := 0; i < jsonPad; i++ {
		out = append(out, ' ')
	}

	if bin != nil {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(bin)+binPad))
		out = binary.LittleEndian.AppendUint32(out, ChunkTypeBIN)
		out = append(out, bin...)
		out = append(out, make([]byte, binPad)...)
	}
	return out
}

func pad4(n int) int {
	return (4 - n%4) % 4
}

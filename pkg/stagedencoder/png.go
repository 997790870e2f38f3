package stagedencoder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"sort"
)

var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// injectPNGTextChunks implements Container A's embedding mechanism:
// one tEXt chunk per entry (workflow, parameters, and any extra
// caller-supplied PNG info keys), inserted immediately after the
// mandatory IHDR chunk. No ecosystem library in the dependency set
// offers PNG ancillary-chunk manipulation, so this is hand-rolled
// against the chunk layout in the PNG specification: a 4-byte length,
// a 4-byte type, the chunk data, and a CRC-32 over type plus data.
func injectPNGTextChunks(pngBytes []byte, workflowJSON, params string, extra map[string]string) ([]byte, error) {
	if len(pngBytes) < len(pngSignature) || !bytes.Equal(pngBytes[:len(pngSignature)], pngSignature) {
		return nil, fmt.Errorf("not a PNG stream: missing signature")
	}
	if len(pngBytes) < len(pngSignature)+12 {
		return nil, fmt.Errorf("truncated PNG stream")
	}

	ihdrDataLen := binary.BigEndian.Uint32(pngBytes[len(pngSignature) : len(pngSignature)+4])
	ihdrEnd := len(pngSignature) + 8 + int(ihdrDataLen) + 4
	if ihdrEnd > len(pngBytes) {
		return nil, fmt.Errorf("truncated IHDR chunk")
	}

	var inserted []byte
	if workflowJSON != "" {
		inserted = append(inserted, buildTextChunk("workflow", workflowJSON)...)
	}
	inserted = append(inserted, buildTextChunk("parameters", params)...)
	for _, k := range sortedKeys(extra) {
		inserted = append(inserted, buildTextChunk(k, extra[k])...)
	}

	out := make([]byte, 0, len(pngBytes)+len(inserted))
	out = append(out, pngBytes[:ihdrEnd]...)
	out = append(out, inserted...)
	out = append(out, pngBytes[ihdrEnd:]...)
	return out, nil
}

func buildTextChunk(keyword, text string) []byte {
	data := make([]byte, 0, len(keyword)+1+len(text))
	data = append(data, []byte(keyword)...)
	data = append(data, 0)
	data = append(data, []byte(text)...)
	return buildChunk([]byte("tEXt"), data)
}

func buildChunk(chunkType, data []byte) []byte {
	chunk := make([]byte, 0, 12+len(data))

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))
	chunk = append(chunk, length...)
	chunk = append(chunk, chunkType...)
	chunk = append(chunk, data...)

	crcInput := make([]byte, 0, len(chunkType)+len(data))
	crcInput = append(crcInput, chunkType...)
	crcInput = append(crcInput, data...)
	crcBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(crcBytes, crc32.ChecksumIEEE(crcInput))
	chunk = append(chunk, crcBytes...)

	return chunk
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

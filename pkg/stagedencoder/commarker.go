package stagedencoder

import (
	"encoding/binary"
	"fmt"
)

// maxMarkerPayload is the largest payload a single JPEG marker
// segment can carry: the segment length field is a 2-byte count that
// includes itself, leaving 0xFFFF-2 bytes for the payload.
const maxMarkerPayload = 0xFFFF - 2

// writeComMarker implements the com-marker stage (spec.md §4.8): the
// parameter string is written as a plain JPEG COM (0xFFFE) marker
// segment immediately after the SOI marker, carrying no EXIF segment
// at all.
func writeComMarker(jpegBytes []byte, text string) ([]byte, error) {
	if len(jpegBytes) < 2 || jpegBytes[0] != 0xFF || jpegBytes[1] != 0xD8 {
		return nil, fmt.Errorf("not a JPEG stream: missing SOI marker")
	}

	payload := []byte(text)
	if len(payload) > maxMarkerPayload {
		payload = payload[:maxMarkerPayload]
	}

	segment := make([]byte, 4+len(payload))
	segment[0] = 0xFF
	segment[1] = 0xFE
	binary.BigEndian.PutUint16(segment[2:4], uint16(len(payload)+2))
	copy(segment[4:], payload)

	out := make([]byte, 0, len(jpegBytes)+len(segment))
	out = append(out, jpegBytes[:2]...)
	out = append(out, segment...)
	out = append(out, jpegBytes[2:]...)
	return out, nil
}

package exif

import "encoding/binary"

const (
	// MarkerAPP1 introduces the EXIF application segment.
	MarkerAPP1 uint16 = 0xFFE1
	// MarkerSOS starts entropy-coded image data, after which no segment
	// table follows.
	MarkerSOS uint16 = 0xFFDA

	segmentTableStart = 2
)

// StripMetadataSegment returns a copy of buf with every APP1 segment removed.
//
// The scan starts after the 2-byte start-of-image marker and walks the
// segment table. A removed segment is spliced out and the scan re-reads the
// same offset. Scanning stops at start-of-scan, when fewer than 4 bytes
// remain, or at a segment that declares a zero length; whatever has been
// accumulated is returned as is.
func StripMetadataSegment(buf []byte) []byte {
	out := make([]byte, len(buf))
	copy(out, buf)

	offset := segmentTableStart
	for offset+4 <= len(out) {
		marker := binary.BigEndian.Uint16(out[offset:])
		length := int(binary.BigEndian.Uint16(out[offset+2:]))
		if length <= 0 || marker == MarkerSOS {
			break
		}

		if marker == MarkerAPP1 {
			end := offset + 2 + length
			if end > len(out) {
				end = len(out)
			}
			out = append(out[:offset], out[end:]...)
			continue
		}

		offset += 2 + length
	}

	return out
}

// HasMetadataSegment reports whether the segment table of buf still holds an
// APP1 segment.
func HasMetadataSegment(buf []byte) bool {
	offset := segmentTableStart
	for offset+4 <= len(buf) {
		marker := binary.BigEndian.Uint16(buf[offset:])
		length := int(binary.BigEndian.Uint16(buf[offset+2:]))
		if length <= 0 || marker == MarkerSOS {
			return false
		}
		if marker == MarkerAPP1 {
			return true
		}
		offset += 2 + length
	}
	return false
}

// IsJPEG reports whether buf starts with the JPEG start-of-image marker.
func IsJPEG(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == 0xFF && buf[1] == 0xD8
}

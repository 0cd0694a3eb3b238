// Package exiftest builds small JPEG, PNG and TIFF fixtures for tests.
package exiftest

import (
	"encoding/binary"
	"hash/crc32"
)

// Segment builds a JPEG segment: marker, big-endian length, payload.
func Segment(marker uint16, payload []byte) []byte {
	b := make([]byte, 4, 4+len(payload))
	binary.BigEndian.PutUint16(b, marker)
	binary.BigEndian.PutUint16(b[2:], uint16(len(payload)+2))
	return append(b, payload...)
}

// JPEG prefixes segments with the start-of-image marker.
func JPEG(segments ...[]byte) []byte {
	buf := []byte{0xFF, 0xD8}
	for _, s := range segments {
		buf = append(buf, s...)
	}
	return buf
}

// TIFFWithGPS builds a little-endian TIFF whose IFD0 points at a GPS IFD
// holding 40°26'46.14"N 79°58'56.4"W.
func TIFFWithGPS() []byte {
	le := binary.LittleEndian
	buf := make([]byte, 128)
	copy(buf, "II")
	le.PutUint16(buf[2:], 42)
	le.PutUint32(buf[4:], 8)

	entry := func(at int, tag, typ uint16, count, value uint32) {
		le.PutUint16(buf[at:], tag)
		le.PutUint16(buf[at+2:], typ)
		le.PutUint32(buf[at+4:], count)
		le.PutUint32(buf[at+8:], value)
	}

	// IFD0: GPSInfoIFDPointer -> 26
	le.PutUint16(buf[8:], 1)
	entry(10, 0x8825, 4, 1, 26)

	// GPS IFD at 26 with four entries, rationals at 80 and 104
	le.PutUint16(buf[26:], 4)
	entry(28, 0x0001, 2, 2, 0)
	buf[36] = 'N'
	entry(40, 0x0002, 5, 3, 80)
	entry(52, 0x0003, 2, 2, 0)
	buf[60] = 'W'
	entry(64, 0x0004, 5, 3, 104)

	rationals := func(at int, pairs ...uint32) {
		for i, v := range pairs {
			le.PutUint32(buf[at+4*i:], v)
		}
	}
	rationals(80, 40, 1, 26, 1, 4614, 100)
	rationals(104, 79, 1, 58, 1, 564, 10)
	return buf
}

// JPEGWithGPS is a minimal JPEG whose APP1 segment carries TIFFWithGPS.
func JPEGWithGPS() []byte {
	app1 := Segment(0xFFE1, append([]byte("Exif\x00\x00"), TIFFWithGPS()...))
	return JPEG(app1, Segment(0xFFDA, []byte{0}), []byte{0xFF, 0xD9})
}

// JPEGWithoutExif is a minimal JPEG with no APP1 segment.
func JPEGWithoutExif() []byte {
	return JPEG(Segment(0xFFE0, []byte("JFIF\x00")), Segment(0xFFDA, []byte{0}), []byte{0xFF, 0xD9})
}

// PNGChunk builds a PNG chunk: length, type, data and CRC.
func PNGChunk(typ string, data []byte) []byte {
	b := make([]byte, 8, 12+len(data))
	binary.BigEndian.PutUint32(b, uint32(len(data)))
	copy(b[4:], typ)
	b = append(b, data...)
	crc := crc32.ChecksumIEEE(b[4:])
	return binary.BigEndian.AppendUint32(b, crc)
}

// PNG builds a 1x1 grayscale PNG with extra chunks placed after IHDR.
func PNG(chunks ...[]byte) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr, 1)
	binary.BigEndian.PutUint32(ihdr[4:], 1)
	ihdr[8] = 8 // bit depth

	buf := []byte("\x89PNG\r\n\x1a\n")
	buf = append(buf, PNGChunk("IHDR", ihdr)...)
	for _, c := range chunks {
		buf = append(buf, c...)
	}
	// one filtered row holding a single black pixel, zlib stored block
	buf = append(buf, PNGChunk("IDAT", []byte{0x78, 0x01, 0x01, 0x02, 0x00, 0xFD, 0xFF, 0x00, 0x00, 0x00, 0x02, 0x00, 0x01})...)
	return append(buf, PNGChunk("IEND", nil)...)
}

// PNGWithGPS is a PNG whose eXIf chunk carries TIFFWithGPS.
func PNGWithGPS() []byte {
	return PNG(PNGChunk("eXIf", TIFFWithGPS()))
}

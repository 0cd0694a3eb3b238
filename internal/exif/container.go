package exif

import (
	"bytes"
	"fmt"

	heicexif "github.com/dsoprea/go-heic-exif-extractor"
	pngstructure "github.com/dsoprea/go-png-image-structure"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// isPNG reports whether data starts with the PNG signature.
func isPNG(data []byte) bool {
	return bytes.HasPrefix(data, pngSignature)
}

// isISOBMFF reports whether data is an ISO base media file (AVIF, HEIF),
// which opens with an "ftyp" box.
func isISOBMFF(data []byte) bool {
	return len(data) >= 12 && string(data[4:8]) == "ftyp"
}

// exifPayload returns the bytes goexif can decode: the file itself for JPEG
// and TIFF, or the TIFF block held by a PNG eXIf chunk or an AVIF/HEIF Exif
// item.
func exifPayload(data []byte) ([]byte, error) {
	switch {
	case isPNG(data):
		mc, err := pngstructure.NewPngMediaParser().ParseBytes(data)
		if err != nil {
			return nil, fmt.Errorf("parse png: %w", err)
		}
		_, raw, err := mc.Exif()
		if err != nil {
			return nil, fmt.Errorf("png exif chunk: %w", err)
		}
		return raw, nil
	case isISOBMFF(data):
		mc, err := heicexif.NewHeicExifMediaParser().ParseBytes(data)
		if err != nil {
			return nil, fmt.Errorf("parse heif container: %w", err)
		}
		_, raw, err := mc.Exif()
		if err != nil {
			return nil, fmt.Errorf("heif exif item: %w", err)
		}
		return raw, nil
	}
	return data, nil
}

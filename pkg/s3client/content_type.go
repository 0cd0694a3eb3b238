package s3client

import (
	"mime"
	"path/filepath"
	"strings"
)

// Image types the ingest path accepts, by extension.
var imageMimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".bmp":  "image/bmp",
	".heic": "image/heic",
	".heif": "image/heif",
	".avif": "image/avif",
}

// DetectContentType determines the content type of a file based on its extension
func DetectContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))

	if mimeType, ok := imageMimeTypes[ext]; ok {
		return mimeType
	}
	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		return mimeType
	}
	return "application/octet-stream"
}

// IsImageFile checks if a file is an image based on its extension
func IsImageFile(filename string) bool {
	_, ok := imageMimeTypes[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// ImageFormat returns the subtype of an image content type: "jpeg" for
// "image/jpeg; q=1". Non-image types give "".
func ImageFormat(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	major, sub, ok := strings.Cut(mediaType, "/")
	if !ok || major != "image" {
		return ""
	}
	return sub
}

package storage

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// DetectContentType picks a MIME type from, in order: the provided type, the
// file extension, a sniff of the first 512 bytes of data, and finally
// application/octet-stream.
func DetectContentType(providedType, filename string, data io.Reader) string {
	if providedType != "" {
		return providedType
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}

	if data != nil {
		buffer := make([]byte, 512)
		n, err := io.ReadFull(data, buffer)
		if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
			return http.DetectContentType(buffer[:n])
		}
	}

	return "application/octet-stream"
}

// AllowedLogoTypes are the MIME types accepted for logo uploads.
var AllowedLogoTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
}

func baseType(contentType string) string {
	return strings.TrimSpace(strings.ToLower(strings.Split(contentType, ";")[0]))
}

// IsAllowedLogoType reports whether contentType may be uploaded as a logo.
func IsAllowedLogoType(contentType string) bool {
	return AllowedLogoTypes[baseType(contentType)]
}

// IsPDF returns true if the content type is a PDF document.
func IsPDF(contentType string) bool {
	return baseType(contentType) == "application/pdf"
}

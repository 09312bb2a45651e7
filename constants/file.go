package constants

import "strings"

// MIME types accepted for OCR uploads.
const (
	MIMEPNG  = "image/png"
	MIMEJPG  = "image/jpg"
	MIMEJPEG = "image/jpeg"
	MIMEWEBP = "image/webp"
	MIMEPDF  = "application/pdf"
)

// AllowedMIMETypes mirrors what the upload form accepts.
var AllowedMIMETypes = map[string]struct{}{
	MIMEPNG:  {},
	MIMEJPG:  {},
	MIMEJPEG: {},
	MIMEWEBP: {},
	MIMEPDF:  {},
}

// AllowedExtensions holds the file extensions picked up by batch ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"webp": {},
}

var extToMIME = map[string]string{
	"pdf":  MIMEPDF,
	"jpg":  MIMEJPEG,
	"jpeg": MIMEJPEG,
	"png":  MIMEPNG,
	"webp": MIMEWEBP,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// NormalizeMIME lowercases a content type and drops any parameters.
func NormalizeMIME(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}

// IsAllowedMIME reports whether mime is an accepted upload type.
func IsAllowedMIME(mime string) bool {
	_, ok := AllowedMIMETypes[NormalizeMIME(mime)]
	return ok
}

// MIMEFromExt maps a file extension to its upload MIME type, or "" if unknown.
func MIMEFromExt(ext string) string {
	return extToMIME[NormalizeExt(ext)]
}

// IsPDF reports whether mime denotes a PDF document.
func IsPDF(mime string) bool {
	return NormalizeMIME(mime) == MIMEPDF
}

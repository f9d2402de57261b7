package httpx

import (
	"mime"
	"net/http"
	"strings"
)

// MediaType returns the media type of the request.
func MediaType(req *http.Request) string {
	typ := strings.Split(req.Header.Get("Content-Type"), ";")[0]
	if typ == "" {
		typ = "application/octet-stream"
	}
	return typ
}

// Disposition builds an inline Content-Disposition header value carrying the
// given display filename, escaped so CRM file names cannot inject header
// syntax.
func Disposition(filename string) string {
	if filename == "" {
		filename = "document"
	}
	return mime.FormatMediaType("inline", map[string]string{"filename": filename})
}

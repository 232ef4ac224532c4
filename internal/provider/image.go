package provider

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// PrepareImageURL normalizes an image reference into the shape the OpenAI
// API expects. Accepted forms: http(s) URL, data:image URI, readable
// filesystem path, raw base64 image data. Anything else is a hard input
// error, not a provider error.
func PrepareImageURL(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrBadImageRef
	}

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}
	if strings.HasPrefix(ref, "data:image") {
		return ref, nil
	}

	if info, errStat := os.Stat(ref); errStat == nil && !info.IsDir() {
		data, errRead := os.ReadFile(ref)
		if errRead != nil {
			return "", fmt.Errorf("%w: read %s: %v", ErrBadImageRef, ref, errRead)
		}
		return encodeImageData(data)
	}

	if data, errDecode := base64.StdEncoding.DecodeString(ref); errDecode == nil && len(data) > 0 {
		return encodeImageData(data)
	}

	return "", ErrBadImageRef
}

// encodeImageData sniffs the content type and wraps raw bytes into a data URI.
func encodeImageData(data []byte) (string, error) {
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w: content type %s", ErrBadImageRef, mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Package htmldoc isolates a complete HTML document from free-form model output.
package htmldoc

import (
	"errors"
	"strings"
)

const (
	OpenMarker  = "<!DOCTYPE html>"
	CloseMarker = "</html>"
)

// ErrNotFound is returned when the text holds no complete document.
var ErrNotFound = errors.New("no HTML document found in generated output")

// Extract returns the text from the first OpenMarker through the first
// CloseMarker that follows it, inclusive. Surrounding prose or code fences
// are dropped; the document itself is not parsed.
func Extract(raw string) (string, error) {
	begin := strings.Index(raw, OpenMarker)
	if begin < 0 {
		return "", ErrNotFound
	}
	end := strings.Index(raw[begin:], CloseMarker)
	if end < 0 {
		return "", ErrNotFound
	}
	return raw[begin : begin+end+len(CloseMarker)], nil
}

package generation

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// AcceptedContentTypes are the declared types an uploaded file may have.
var AcceptedContentTypes = []string{"image/png", "image/jpeg"}

// File is one uploaded file held in memory.
type File struct {
	Filename    string // name supplied by the client
	ContentType string // declared MIME type
	Key         string // storage key; generated from Filename when empty
	Data        []byte
}

// Accepted reports whether contentType (parameters ignored) is accepted.
func Accepted(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	for _, t := range AcceptedContentTypes {
		if mt == t {
			return true
		}
	}
	return false
}

// FilterAccepted drops files whose declared type is not accepted.
func FilterAccepted(files []File) []File {
	out := make([]File, 0, len(files))
	for _, f := range files {
		if Accepted(f.ContentType) {
			out = append(out, f)
		}
	}
	return out
}

// NewFilename returns a random name that keeps the original extension.
func NewFilename(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	return strings.ReplaceAll(uuid.NewString(), "-", "") + ext
}

// dimensions decodes only the image header; ok is false for undecodable data.
func dimensions(data []byte) (width, height int, ok bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

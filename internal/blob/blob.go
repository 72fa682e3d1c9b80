package blob

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"strings"
	"time"
)

// ErrNotFound means no object exists at the key.
var ErrNotFound = errors.New("blob not found")

// Object is an open stream. Callers must Close Body.
type Object struct {
	Body          io.ReadCloser
	ContentLength int64 // -1 if unknown
	ContentType   string
}

// Store opens licensed files by storage key.
type Store interface {
	Open(ctx context.Context, key string) (*Object, error)
}

// Linker hands out short-lived direct links so large files bypass the API process.
type Linker interface {
	// Link returns a URL serving key as an attachment named filename until ttl passes.
	Link(ctx context.Context, key, filename string, ttl time.Duration) (string, error)
}

var audioTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".aiff": "audio/aiff",
	".zip":  "application/zip",
}

// ContentTypeFor derives the content type from the key's extension.
func ContentTypeFor(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ct, ok := audioTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

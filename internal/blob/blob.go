// Package blob stores profile photos and hands back their public URLs.
package blob

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

var ErrInvalidURL = errors.New("blob: url not owned by this store")

// Store persists an uploaded file and returns the URL clients should use.
// Delete is best-effort cleanup of a URL returned by Put.
type Store interface {
	Put(ctx context.Context, filename string, data []byte) (string, error)
	Delete(ctx context.Context, url string) error
}

// objectName builds a fresh collision-free name that keeps a sane extension
// from the client filename.
func objectName(filename string) string {
	return uuid.NewString() + extension(filename)
}

func extension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return ""
		}
	}
	return ext
}

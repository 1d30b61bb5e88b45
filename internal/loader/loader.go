package loader

import (
	"fmt"
	"path/filepath"
	"strings"

	appErr "github.com/skaldhq/skald/internal/pkg/errors"
)

// ExtractFunc reads a downloaded file and returns its plain text.
type ExtractFunc func(path string) (string, error)

var registry = map[string]ExtractFunc{}

func Register(ext string, fn ExtractFunc) {
	key := strings.ToLower(strings.TrimSpace(ext))
	if key == "" || fn == nil {
		return
	}
	registry[key] = fn
}

// Supported reports whether a file name has a registered extractor.
func Supported(name string) bool {
	_, ok := registry[normalizeExt(name)]
	return ok
}

// Extract dispatches to the extractor registered for the file's extension.
// Unknown extensions return ErrUnsupportedFormat so the sync loop can skip
// the item without aborting the cycle.
func Extract(path string) (string, error) {
	ext := normalizeExt(path)
	fn, ok := registry[ext]
	if !ok {
		return "", fmt.Errorf("%w: %s", appErr.ErrUnsupportedFormat, ext)
	}
	return fn(path)
}

func normalizeExt(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Library is the destination media directory. Files are stored flat under
// `<id>_<original-filename>` keys.
type Library struct {
	basePath string
}

func New(basePath string) (*Library, error) {
	if basePath == "" {
		basePath = "./data/library"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create library dir: %w", err)
	}
	return &Library{basePath: basePath}, nil
}

// CopyIn copies sourcePath into the library under key and returns the
// destination path. A file already present under key is left untouched,
// so crashed or repeated runs never copy twice.
func (l *Library) CopyIn(_ context.Context, sourcePath, key string) (string, error) {
	dest := filepath.Join(l.basePath, key)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("stat destination: %w", err)
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("open source file: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create destination file: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		_ = os.Remove(dest)
		return "", fmt.Errorf("copy media file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close destination file: %w", err)
	}
	return dest, nil
}

package plaintext

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// Extractor reads UTF-8 text files as-is.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read text file: %w", err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("file is not valid utf-8: %s", path)
	}
	return strings.TrimSpace(string(raw)), nil
}

package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dropushan1/Video-Agent/internal/core/domain"
)

var columns = []domain.VocabularyField{
	domain.FieldCategory,
	domain.FieldTags,
	domain.FieldTypes,
	domain.FieldPlatform,
}

// Registry stores the controlled vocabulary as one columnar CSV file:
// four independently-lengthed columns, shorter ones padded with blanks.
// Values are appended in observation order and never removed or renamed.
type Registry struct {
	path string
}

func New(path string) (*Registry, error) {
	if path == "" {
		return nil, fmt.Errorf("registry path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}
	return &Registry{path: path}, nil
}

// Load reads the file fresh on every call. A missing file is an empty
// vocabulary, not an error.
func (r *Registry) Load(_ context.Context) (domain.Vocabulary, error) {
	rows, err := r.readRows()
	if err != nil {
		return domain.Vocabulary{}, err
	}
	if len(rows) == 0 {
		return domain.Vocabulary{}, nil
	}

	index := headerIndex(rows[0])
	vocab := domain.Vocabulary{}
	for _, row := range rows[1:] {
		for _, field := range columns {
			col, ok := index[field]
			if !ok || col >= len(row) {
				continue
			}
			if value := trimCell(row[col]); value != "" {
				appendValue(&vocab, field, value)
			}
		}
	}
	return vocab, nil
}

// Register appends value to the field's column. It re-reads the file
// before appending and compares case-insensitively, so repeated calls and
// interleaved registrations stay idempotent.
func (r *Registry) Register(ctx context.Context, field domain.VocabularyField, value string) error {
	value = trimCell(value)
	if value == "" {
		return domain.WrapError(domain.ErrInvalidInput, "register vocabulary", errors.New("blank value"))
	}
	if !knownField(field) {
		return domain.WrapError(domain.ErrInvalidInput, "register vocabulary", fmt.Errorf("unknown field %q", field))
	}

	vocab, err := r.Load(ctx)
	if err != nil {
		return err
	}
	if vocab.Contains(field, value) {
		return nil
	}

	appendValue(&vocab, field, value)
	return r.write(vocab)
}

func (r *Registry) readRows() ([][]string, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open registry: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse registry csv: %w", err)
	}
	return rows, nil
}

func (r *Registry) write(vocab domain.Vocabulary) error {
	tmp := r.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create registry tmp: %w", err)
	}

	writer := csv.NewWriter(f)
	header := make([]string, len(columns))
	maxLen := 0
	for i, field := range columns {
		header[i] = string(field)
		if n := len(vocab.Values(field)); n > maxLen {
			maxLen = n
		}
	}
	if err := writer.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("write registry header: %w", err)
	}

	for i := 0; i < maxLen; i++ {
		row := make([]string, len(columns))
		for j, field := range columns {
			values := vocab.Values(field)
			if i < len(values) {
				row[j] = values[i]
			}
		}
		if err := writer.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("write registry row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush registry csv: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close registry tmp: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace registry file: %w", err)
	}
	return nil
}

func headerIndex(header []string) map[domain.VocabularyField]int {
	index := make(map[domain.VocabularyField]int, len(header))
	for i, name := range header {
		index[domain.VocabularyField(trimCell(name))] = i
	}
	return index
}

func appendValue(vocab *domain.Vocabulary, field domain.VocabularyField, value string) {
	switch field {
	case domain.FieldCategory:
		vocab.Category = append(vocab.Category, value)
	case domain.FieldTags:
		vocab.Tags = append(vocab.Tags, value)
	case domain.FieldTypes:
		vocab.Types = append(vocab.Types, value)
	case domain.FieldPlatform:
		vocab.Platform = append(vocab.Platform, value)
	}
}

func knownField(field domain.VocabularyField) bool {
	for _, known := range columns {
		if known == field {
			return true
		}
	}
	return false
}

func trimCell(s string) string {
	return strings.TrimSpace(s)
}

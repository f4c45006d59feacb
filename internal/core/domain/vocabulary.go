package domain

import "strings"

// VocabularyField names one of the four controlled-vocabulary columns.
type VocabularyField string

const (
	FieldCategory VocabularyField = "Category"
	FieldTags     VocabularyField = "Tags"
	FieldTypes    VocabularyField = "Types"
	FieldPlatform VocabularyField = "Platform"
)

// Vocabulary is a point-in-time snapshot of the controlled-vocabulary
// registry: four independent append-only, order-preserving value lists.
// Membership is case-insensitive; stored casing is preserved.
type Vocabulary struct {
	Category []string
	Tags     []string
	Types    []string
	Platform []string
}

func (v Vocabulary) Values(field VocabularyField) []string {
	switch field {
	case FieldCategory:
		return v.Category
	case FieldTags:
		return v.Tags
	case FieldTypes:
		return v.Types
	case FieldPlatform:
		return v.Platform
	default:
		return nil
	}
}

func (v Vocabulary) Contains(field VocabularyField, value string) bool {
	for _, existing := range v.Values(field) {
		if strings.EqualFold(existing, value) {
			return true
		}
	}
	return false
}

// ClassificationResult carries the per-item fields returned by the batch
// classifier. NewFields lists the vocabulary columns whose returned value
// the classifier marked as previously unseen; the wire-level marker is
// stripped before the values land here.
type ClassificationResult struct {
	ID          string
	Title       string
	Summary     string
	Category    string
	Tags        string
	Types       string
	RefinedText string
	NewFields   []VocabularyField
}

func (r ClassificationResult) FieldValue(field VocabularyField) string {
	switch field {
	case FieldCategory:
		return r.Category
	case FieldTags:
		return r.Tags
	case FieldTypes:
		return r.Types
	default:
		return ""
	}
}

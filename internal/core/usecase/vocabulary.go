package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropushan1/Video-Agent/internal/core/domain"
)

// syncVocabulary appends values the classifier flagged as previously
// unseen. The registry snapshot is fetched fresh per flagged field, not
// cached, so values registered earlier in a long batch loop are seen.
func (p *IngestPipeline) syncVocabulary(ctx context.Context, result domain.ClassificationResult) error {
	for _, field := range result.NewFields {
		raw := strings.TrimSpace(result.FieldValue(field))
		if raw == "" {
			continue
		}

		values := []string{raw}
		if field == domain.FieldTags {
			values = strings.Split(raw, ",")
		}

		vocab, err := p.registry.Load(ctx)
		if err != nil {
			return fmt.Errorf("load vocabulary: %w", err)
		}
		for _, value := range values {
			value = strings.TrimSpace(value)
			if value == "" || vocab.Contains(field, value) {
				continue
			}
			p.logger.Info("new vocabulary value", "field", field, "value", value)
			if err := p.registry.Register(ctx, field, value); err != nil {
				return fmt.Errorf("register %s value %q: %w", field, value, err)
			}
		}
	}
	return nil
}

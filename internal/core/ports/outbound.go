package ports

import (
	"context"

	"github.com/dropushan1/Video-Agent/internal/core/domain"
)

// ItemRepository persists and reads ingested item state. Upsert is an
// atomic replace-by-primary-key; the same id written twice keeps the last
// write, which is the only cross-crash consistency the pipeline relies on.
type ItemRepository interface {
	Upsert(ctx context.Context, item *domain.Item) error
	GetByID(ctx context.Context, id string) (*domain.Item, error)
	FindIDByFilename(ctx context.Context, originalFilename string) (string, error)
	FindIDByContentHash(ctx context.Context, hash string) (string, error)
}

// VocabularyRegistry owns the append-only controlled-vocabulary lists.
// Load returns a fresh snapshot; Register is idempotent and compares
// case-insensitively.
type VocabularyRegistry interface {
	Load(ctx context.Context) (domain.Vocabulary, error)
	Register(ctx context.Context, field domain.VocabularyField, value string) error
}

// TextExtractor turns a media file into plain text. An empty string with
// a nil error means extraction ran but found nothing; callers cannot
// distinguish that from an upstream no-speech/no-text result.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// BatchClassifier submits one batch to the external analysis service and
// returns per-item results. A result may be missing for any submitted id;
// that is not an error for the batch. Quota depletion is reported as
// domain.ErrQuotaExhausted and is fatal for the run.
type BatchClassifier interface {
	ClassifyBatch(ctx context.Context, items []domain.BatchItem) ([]domain.ClassificationResult, error)
}

// MediaStorage copies source files into the destination media library.
// CopyIn is idempotent: an existing destination file is left untouched.
type MediaStorage interface {
	CopyIn(ctx context.Context, sourcePath, key string) (string, error)
}

// EventPublisher relays pipeline progress events to observers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.PipelineEvent) error
}

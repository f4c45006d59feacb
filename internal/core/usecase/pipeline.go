package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dropushan1/Video-Agent/internal/core/domain"
	"github.com/dropushan1/Video-Agent/internal/core/ports"
)

// IngestPipeline drives one sequential run over a source folder: resolve
// identity, filter duplicates, extract text, eager-save, accumulate into
// character-budgeted batches and classify them in discovery order,
// finalizing records as results come back.
//
// The run is strictly single-writer; the store's replace-by-primary-key
// upsert is the only consistency mechanism needed. Two concurrent runs
// over the same folder are not supported.
type IngestPipeline struct {
	repo       ports.ItemRepository
	registry   ports.VocabularyRegistry
	extractor  ports.TextExtractor
	classifier ports.BatchClassifier
	storage    ports.MediaStorage
	events     ports.EventPublisher
	resolver   *Resolver
	logger     *slog.Logger

	batchBudget int
}

func NewIngestPipeline(
	repo ports.ItemRepository,
	registry ports.VocabularyRegistry,
	extractor ports.TextExtractor,
	classifier ports.BatchClassifier,
	storage ports.MediaStorage,
	events ports.EventPublisher,
	logger *slog.Logger,
	batchBudget int,
) *IngestPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if batchBudget <= 0 {
		batchBudget = DefaultBatchBudget
	}
	return &IngestPipeline{
		repo:        repo,
		registry:    registry,
		extractor:   extractor,
		classifier:  classifier,
		storage:     storage,
		events:      events,
		resolver:    NewResolver(repo),
		logger:      logger,
		batchBudget: batchBudget,
	}
}

// Run ingests every supported file under dir for the given platform. It
// returns a non-nil report even on error. The only mid-run terminations
// are context cancellation, store failure, and classifier quota
// exhaustion; the latter is reported via domain.ErrQuotaExhausted with
// everything persisted so far intact.
func (p *IngestPipeline) Run(ctx context.Context, dir, platform string) (*domain.RunReport, error) {
	report := &domain.RunReport{}

	files, err := discoverFiles(dir)
	if err != nil {
		return report, err
	}
	p.logger.Info("scan started", "dir", dir, "platform", platform, "files", len(files))

	if err := p.registry.Register(ctx, domain.FieldPlatform, platform); err != nil {
		p.logger.Warn("platform registration failed", "platform", platform, "error", err)
	}

	acc := NewBatchAccumulator(p.batchBudget)
	pending := make(map[string]*domain.Item)

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++

		item, err := p.admitFile(ctx, dir, name, platform, report)
		if err != nil {
			return report, err
		}
		if item == nil {
			continue
		}

		pending[item.ID] = item
		flushed := acc.Add(domain.BatchItem{ID: item.ID, RawText: item.RawText, Platform: item.Platform})
		if flushed != nil {
			if err := p.classifyBatch(ctx, flushed, pending, report); err != nil {
				return report, err
			}
		}
	}

	if trailing := acc.Flush(); trailing != nil {
		if err := p.classifyBatch(ctx, trailing, pending, report); err != nil {
			return report, err
		}
	}

	p.logger.Info("scan finished",
		"scanned", report.Scanned,
		"ingested", report.Ingested,
		"resumed", report.Resumed,
		"skipped", report.Skipped,
		"classified", report.Classified,
		"unresolved", report.Unresolved,
	)
	return report, nil
}

// admitFile resolves one discovered file and carries it through
// extraction, dedup and the eager partial save. It returns the item to
// enqueue for classification, or nil when the file was skipped. Errors
// returned here are run-fatal (store access); everything else degrades to
// skip-and-continue.
func (p *IngestPipeline) admitFile(ctx context.Context, dir, name, platform string, report *domain.RunReport) (*domain.Item, error) {
	resolved, err := p.resolver.Resolve(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", name, err)
	}
	sourcePath := filepath.Join(dir, name)

	switch resolved.Resolution {
	case ResolutionSkipDuplicate:
		p.skip(ctx, report, resolved.ID, name, resolved.Reason)
		return nil, nil

	case ResolutionSkipTerminal:
		// Terminal records are immutable; only make sure the media file
		// itself made it into the library.
		if _, err := p.storage.CopyIn(ctx, sourcePath, storageKey(resolved.ID, resolved.OriginalFilename)); err != nil {
			p.logger.Warn("copy-if-missing failed", "id", resolved.ID, "file", name, "error", err)
		}
		p.skip(ctx, report, resolved.ID, name, resolved.Reason)
		return nil, nil

	case ResolutionResume:
		return p.resumeItem(ctx, sourcePath, name, resolved, report)

	default:
		return p.ingestItem(ctx, sourcePath, name, platform, resolved, report)
	}
}

// resumeItem re-enqueues a partially-persisted record without re-running
// extraction. The stored raw text is authoritative.
func (p *IngestPipeline) resumeItem(ctx context.Context, sourcePath, name string, resolved ResolvedFile, report *domain.RunReport) (*domain.Item, error) {
	item := resolved.Item
	if strings.TrimSpace(item.RawText) == "" {
		p.skip(ctx, report, item.ID, name, "stored text is empty")
		return nil, nil
	}

	if dest, err := p.storage.CopyIn(ctx, sourcePath, storageKey(item.ID, resolved.OriginalFilename)); err != nil {
		p.logger.Warn("copy-if-missing failed", "id", item.ID, "file", name, "error", err)
	} else if item.FilePath == "" {
		item.FilePath = dest
	}

	report.Resumed++
	p.logger.Info("resuming item", "id", item.ID, "file", name, "chars", len(item.RawText))
	p.publish(ctx, domain.PipelineEvent{Kind: domain.EventItemResumed, ItemID: item.ID, Filename: name})
	return item, nil
}

// ingestItem handles a brand-new file: extract, dedup by content hash,
// copy into the library and eager-save the partial record so a crash
// before classification never repeats the extraction.
func (p *IngestPipeline) ingestItem(ctx context.Context, sourcePath, name, platform string, resolved ResolvedFile, report *domain.RunReport) (*domain.Item, error) {
	started := time.Now()
	text, err := p.extractor.Extract(ctx, sourcePath)
	if err != nil {
		p.skip(ctx, report, resolved.ID, name, fmt.Sprintf("extraction failed: %v", err))
		return nil, nil
	}

	hash := ""
	if strings.TrimSpace(text) != "" {
		hash = ContentHash(text)
		dupID, err := p.repo.FindIDByContentHash(ctx, hash)
		if err != nil && !domain.IsKind(err, domain.ErrItemNotFound) {
			return nil, fmt.Errorf("content dedup check: %w", err)
		}
		if err == nil {
			p.skip(ctx, report, dupID, name, "duplicate content")
			return nil, nil
		}
	}

	dest, err := p.storage.CopyIn(ctx, sourcePath, storageKey(resolved.ID, resolved.OriginalFilename))
	if err != nil {
		p.skip(ctx, report, resolved.ID, name, fmt.Sprintf("copy failed: %v", err))
		return nil, nil
	}

	now := time.Now().UTC()
	item := &domain.Item{
		ID:               resolved.ID,
		OriginalFilename: resolved.OriginalFilename,
		Platform:         platform,
		FileType:         domain.FileTypeForPath(resolved.OriginalFilename),
		RawText:          text,
		ContentHash:      hash,
		FilePath:         dest,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := p.repo.Upsert(ctx, item); err != nil {
		return nil, fmt.Errorf("eager save %s: %w", item.ID, err)
	}

	if hash == "" {
		// Eager-saved but nothing to classify; a later run picks it up if
		// the extractor ever does better. Counted as a skip, not an
		// ingest, so the file shows up once in the run summary.
		p.skip(ctx, report, item.ID, name, "empty extraction result")
		return nil, nil
	}

	report.Ingested++
	p.logger.Info("item ingested", "id", item.ID, "file", name, "type", item.FileType, "chars", len(text))
	p.publish(ctx, domain.PipelineEvent{
		Kind:      domain.EventItemIngested,
		ItemID:    item.ID,
		Filename:  name,
		ElapsedMS: time.Since(started).Milliseconds(),
	})
	return item, nil
}

// classifyBatch submits one flushed batch and finalizes every item the
// classifier resolved. Items missing from the response stay resumable.
// Only quota exhaustion propagates; any other classifier failure is
// batch-scoped and the run continues.
func (p *IngestPipeline) classifyBatch(ctx context.Context, batch *domain.Batch, pending map[string]*domain.Item, report *domain.RunReport) error {
	started := time.Now()
	p.logger.Info("classifying batch", "items", len(batch.Items), "chars", batch.Chars)

	results, err := p.classifier.ClassifyBatch(ctx, batch.Items)
	if err != nil {
		if domain.IsKind(err, domain.ErrQuotaExhausted) {
			report.QuotaExhausted = true
			p.publish(ctx, domain.PipelineEvent{Kind: domain.EventQuotaExhausted, BatchSize: len(batch.Items)})
			return fmt.Errorf("classify batch: %w", err)
		}
		p.logger.Error("batch classification failed", "items", len(batch.Items), "error", err)
		p.publish(ctx, domain.PipelineEvent{Kind: domain.EventBatchFailed, BatchSize: len(batch.Items), Reason: err.Error()})
		report.Unresolved += len(batch.Items)
		return nil
	}

	byID := make(map[string]domain.ClassificationResult, len(results))
	for _, result := range results {
		byID[result.ID] = result
	}

	for _, batchItem := range batch.Items {
		item, ok := pending[batchItem.ID]
		if !ok {
			continue
		}
		result, ok := byID[batchItem.ID]
		if !ok {
			report.Unresolved++
			p.logger.Warn("no classifier result for item", "id", batchItem.ID)
			p.publish(ctx, domain.PipelineEvent{Kind: domain.EventItemUnresolved, ItemID: batchItem.ID})
			continue
		}

		if err := p.finalizeItem(ctx, item, result); err != nil {
			return err
		}
		delete(pending, batchItem.ID)
		report.Classified++
		p.publish(ctx, domain.PipelineEvent{Kind: domain.EventItemClassified, ItemID: item.ID, Filename: item.OriginalFilename})
	}

	p.publish(ctx, domain.PipelineEvent{
		Kind:       domain.EventBatchClassified,
		BatchSize:  len(batch.Items),
		BatchChars: batch.Chars,
		ElapsedMS:  time.Since(started).Milliseconds(),
	})
	return nil
}

// finalizeItem upserts the full record in one atomic replace and relays
// newly observed vocabulary values to the registry.
func (p *IngestPipeline) finalizeItem(ctx context.Context, item *domain.Item, result domain.ClassificationResult) error {
	item.Title = result.Title
	item.Summary = result.Summary
	item.Category = result.Category
	item.Tags = result.Tags
	item.Types = result.Types
	item.RefinedText = result.RefinedText
	item.UpdatedAt = time.Now().UTC()

	if err := p.repo.Upsert(ctx, item); err != nil {
		return fmt.Errorf("finalize %s: %w", item.ID, err)
	}
	p.logger.Info("item classified", "id", item.ID, "category", item.Category, "title", item.Title)

	if err := p.syncVocabulary(ctx, result); err != nil {
		p.logger.Warn("vocabulary registration failed", "id", item.ID, "error", err)
	}
	return nil
}

func (p *IngestPipeline) skip(ctx context.Context, report *domain.RunReport, id, name, reason string) {
	report.Skipped++
	p.logger.Info("item skipped", "id", id, "file", name, "reason", reason)
	p.publish(ctx, domain.PipelineEvent{Kind: domain.EventItemSkipped, ItemID: id, Filename: name, Reason: reason})
}

func (p *IngestPipeline) publish(ctx context.Context, event domain.PipelineEvent) {
	if p.events == nil {
		return
	}
	event.At = time.Now().UTC()
	if err := p.events.Publish(ctx, event); err != nil {
		p.logger.Warn("event publish failed", "kind", event.Kind, "error", err)
	}
}

// ContentHash is the strong dedup/resume key computed from extracted
// text; the short random id stays a pure display/storage label.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func storageKey(id, originalFilename string) string {
	return fmt.Sprintf("%s_%s", id, sanitizeFilename(originalFilename))
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "media.bin"
	}
	return base
}

// discoverFiles lists supported media files directly under dir in
// lexicographic order, which fixes the discovery order batches follow.
func discoverFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source folder: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if domain.FileTypeForPath(entry.Name()) == domain.FileTypeUnknown {
			continue
		}
		files = append(files, entry.Name())
	}
	return files, nil
}

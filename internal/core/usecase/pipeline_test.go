package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dropushan1/Video-Agent/internal/core/domain"
)

type memoryRepo struct {
	items map[string]*domain.Item
	err   error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[string]*domain.Item)}
}

func (r *memoryRepo) put(item *domain.Item) {
	copyItem := *item
	r.items[item.ID] = &copyItem
}

func (r *memoryRepo) Upsert(_ context.Context, item *domain.Item) error {
	if r.err != nil {
		return r.err
	}
	r.put(item)
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id string) (*domain.Item, error) {
	if r.err != nil {
		return nil, r.err
	}
	item, ok := r.items[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrItemNotFound, "get item", errors.New("no row"))
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *memoryRepo) FindIDByFilename(_ context.Context, originalFilename string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	for id, item := range r.items {
		if item.OriginalFilename == originalFilename {
			return id, nil
		}
	}
	return "", domain.WrapError(domain.ErrItemNotFound, "find by filename", errors.New("no row"))
}

func (r *memoryRepo) FindIDByContentHash(_ context.Context, hash string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	if hash == "" {
		return "", domain.WrapError(domain.ErrItemNotFound, "find by content hash", errors.New("blank hash"))
	}
	for id, item := range r.items {
		if item.ContentHash == hash {
			return id, nil
		}
	}
	return "", domain.WrapError(domain.ErrItemNotFound, "find by content hash", errors.New("no row"))
}

type registryFake struct {
	vocab      domain.Vocabulary
	registered []string
	loadErr    error
}

func (f *registryFake) Load(context.Context) (domain.Vocabulary, error) {
	if f.loadErr != nil {
		return domain.Vocabulary{}, f.loadErr
	}
	return f.vocab, nil
}

func (f *registryFake) Register(_ context.Context, field domain.VocabularyField, value string) error {
	f.registered = append(f.registered, fmt.Sprintf("%s=%s", field, value))
	switch field {
	case domain.FieldCategory:
		f.vocab.Category = append(f.vocab.Category, value)
	case domain.FieldTags:
		f.vocab.Tags = append(f.vocab.Tags, value)
	case domain.FieldTypes:
		f.vocab.Types = append(f.vocab.Types, value)
	case domain.FieldPlatform:
		f.vocab.Platform = append(f.vocab.Platform, value)
	}
	return nil
}

// extractorFake returns canned text keyed by the file's base name.
type extractorFake struct {
	texts map[string]string
	errs  map[string]error
	calls []string
}

func (f *extractorFake) Extract(_ context.Context, path string) (string, error) {
	name := filepath.Base(path)
	f.calls = append(f.calls, name)
	if err := f.errs[name]; err != nil {
		return "", err
	}
	return f.texts[name], nil
}

// classifierFake answers each batch in submission order. Responses are
// indexed by batch number; a batchErr at that index fails the batch.
type classifierFake struct {
	batches   [][]domain.BatchItem
	batchErrs map[int]error
	missing   map[string]bool
	newFields map[string][]domain.VocabularyField
	category  string
}

func (f *classifierFake) ClassifyBatch(_ context.Context, items []domain.BatchItem) ([]domain.ClassificationResult, error) {
	batchIndex := len(f.batches)
	f.batches = append(f.batches, items)
	if err := f.batchErrs[batchIndex]; err != nil {
		return nil, err
	}
	category := f.category
	if category == "" {
		category = "General"
	}
	results := make([]domain.ClassificationResult, 0, len(items))
	for _, item := range items {
		if f.missing[item.ID] {
			continue
		}
		results = append(results, domain.ClassificationResult{
			ID:          item.ID,
			Title:       "Title " + item.ID,
			Summary:     "Summary " + item.ID,
			Category:    category,
			Tags:        "tag-a, tag-b",
			Types:       "Tutorial",
			RefinedText: strings.ToUpper(item.RawText),
			NewFields:   f.newFields[item.ID],
		})
	}
	return results, nil
}

type storageFake struct {
	copied map[string]string
	err    error
}

func newStorageFake() *storageFake {
	return &storageFake{copied: make(map[string]string)}
}

func (f *storageFake) CopyIn(_ context.Context, sourcePath, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	dest := filepath.Join("/library", key)
	f.copied[key] = sourcePath
	return dest, nil
}

type eventsRecorder struct {
	events []domain.PipelineEvent
}

func (f *eventsRecorder) Publish(_ context.Context, event domain.PipelineEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *eventsRecorder) count(kind domain.EventKind) int {
	n := 0
	for _, event := range f.events {
		if event.Kind == kind {
			n++
		}
	}
	return n
}

type pipelineFixture struct {
	repo       *memoryRepo
	registry   *registryFake
	extractor  *extractorFake
	classifier *classifierFake
	storage    *storageFake
	events     *eventsRecorder
	pipeline   *IngestPipeline
}

func newPipelineFixture(budget int) *pipelineFixture {
	f := &pipelineFixture{
		repo:       newMemoryRepo(),
		registry:   &registryFake{},
		extractor:  &extractorFake{texts: map[string]string{}, errs: map[string]error{}},
		classifier: &classifierFake{batchErrs: map[int]error{}, missing: map[string]bool{}, newFields: map[string][]domain.VocabularyField{}},
		storage:    newStorageFake(),
		events:     &eventsRecorder{},
	}
	f.pipeline = NewIngestPipeline(f.repo, f.registry, f.extractor, f.classifier, f.storage, f.events, nil, budget)
	return f
}

func writeSourceFiles(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("payload"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestRunIngestsAndClassifies(t *testing.T) {
	f := newPipelineFixture(10000)
	f.extractor.texts["a.txt"] = "alpha transcript"
	f.extractor.texts["b.mp4"] = "bravo transcript"
	dir := writeSourceFiles(t, "a.txt", "b.mp4")

	report, err := f.pipeline.Run(context.Background(), dir, "youtube")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Scanned != 2 || report.Ingested != 2 || report.Classified != 2 {
		t.Fatalf("report = %+v", report)
	}

	for _, item := range f.repo.items {
		if !item.Classified() {
			t.Errorf("item %s not classified: %+v", item.ID, item)
		}
		if item.Platform != "youtube" {
			t.Errorf("item %s platform = %q", item.ID, item.Platform)
		}
		if item.ContentHash == "" {
			t.Errorf("item %s missing content hash", item.ID)
		}
	}

	// The run registers its platform before processing anything.
	if len(f.registry.registered) == 0 || f.registry.registered[0] != "Platform=youtube" {
		t.Fatalf("registered = %v, want platform first", f.registry.registered)
	}
	if got := f.events.count(domain.EventItemClassified); got != 2 {
		t.Fatalf("classified events = %d, want 2", got)
	}
}

func TestRunSkipsUnsupportedFiles(t *testing.T) {
	f := newPipelineFixture(10000)
	f.extractor.texts["a.txt"] = "text"
	dir := writeSourceFiles(t, "a.txt", "notes.docx", "archive.zip")

	report, err := f.pipeline.Run(context.Background(), dir, "instagram")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Scanned != 1 {
		t.Fatalf("Scanned = %d, want 1 (unsupported extensions excluded)", report.Scanned)
	}
}

func TestRunSecondPassIsIdempotent(t *testing.T) {
	f := newPipelineFixture(10000)
	f.extractor.texts["a.txt"] = "alpha transcript"
	dir := writeSourceFiles(t, "a.txt")

	if _, err := f.pipeline.Run(context.Background(), dir, "youtube"); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	firstCalls := len(f.extractor.calls)

	report, err := f.pipeline.Run(context.Background(), dir, "youtube")
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if report.Skipped != 1 || report.Ingested != 0 || report.Classified != 0 {
		t.Fatalf("second run report = %+v, want pure skip", report)
	}
	if len(f.extractor.calls) != firstCalls {
		t.Fatal("second run re-ran extraction for a terminal item")
	}
	if len(f.repo.items) != 1 {
		t.Fatalf("items = %d, want 1", len(f.repo.items))
	}
}

func TestRunPrefixedTerminalFileRecopiesMissingLibraryCopy(t *testing.T) {
	f := newPipelineFixture(10000)
	f.repo.put(&domain.Item{
		ID:               "bbbb2222",
		OriginalFilename: "clip.txt",
		RawText:          "text",
		Title:            "Done",
		Category:         "Travel",
		RefinedText:      "text",
	})
	dir := writeSourceFiles(t, "bbbb2222_clip.txt")

	report, err := f.pipeline.Run(context.Background(), dir, "youtube")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Skipped != 1 || report.Ingested != 0 || report.Classified != 0 {
		t.Fatalf("report = %+v, want a terminal skip", report)
	}
	if len(f.extractor.calls) != 0 {
		t.Fatal("terminal item must not be re-extracted")
	}
	// The terminal record is immutable, but its media file still lands in
	// the library when the copy is missing.
	if _, ok := f.storage.copied["bbbb2222_clip.txt"]; !ok {
		t.Fatalf("copied = %v, want bbbb2222_clip.txt restored", f.storage.copied)
	}
}

func TestRunDeduplicatesByContent(t *testing.T) {
	f := newPipelineFixture(10000)
	f.extractor.texts["a.txt"] = "identical transcript"
	f.extractor.texts["copy.txt"] = "identical transcript"
	dir := writeSourceFiles(t, "a.txt", "copy.txt")

	report, err := f.pipeline.Run(context.Background(), dir, "youtube")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Ingested != 1 || report.Skipped != 1 {
		t.Fatalf("report = %+v, want one ingest and one content-duplicate skip", report)
	}
	if len(f.repo.items) != 1 {
		t.Fatalf("items = %d, want 1", len(f.repo.items))
	}
}

func TestRunEmptyExtractionStaysResumable(t *testing.T) {
	f := newPipelineFixture(10000)
	f.extractor.texts["silent.mp3"] = "   "
	dir := writeSourceFiles(t, "silent.mp3")

	report, err := f.pipeline.Run(context.Background(), dir, "youtube")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// The file is counted exactly once, as a skip; the eager save is not
	// an ingest outcome.
	if report.Ingested != 0 || report.Skipped != 1 || report.Classified != 0 {
		t.Fatalf("report = %+v, want a single skip", report)
	}
	if got := f.events.count(domain.EventItemIngested); got != 0 {
		t.Fatalf("ingested events = %d, want 0", got)
	}
	if got := f.events.count(domain.EventItemSkipped); got != 1 {
		t.Fatalf("skipped events = %d, want 1", got)
	}
	if len(f.classifier.batches) != 0 {
		t.Fatal("blank text must not reach the classifier")
	}
	if len(f.repo.items) != 1 {
		t.Fatalf("items = %d, want the eager-saved record", len(f.repo.items))
	}

	// The eager-saved record has no content hash, so a second blank file
	// never matches it as a duplicate.
	for _, item := range f.repo.items {
		if item.ContentHash != "" {
			t.Fatalf("blank extraction stored hash %q", item.ContentHash)
		}
	}
}

func TestRunExtractionFailureSkipsAndContinues(t *testing.T) {
	f := newPipelineFixture(10000)
	f.extractor.errs["bad.pdf"] = errors.New("parse error")
	f.extractor.texts["good.txt"] = "fine"
	dir := writeSourceFiles(t, "bad.pdf", "good.txt")

	report, err := f.pipeline.Run(context.Background(), dir, "youtube")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Skipped != 1 || report.Classified != 1 {
		t.Fatalf("report = %+v", report)
	}
}

func TestRunQuotaExhaustionStopsRunKeepsState(t *testing.T) {
	f := newPipelineFixture(20)
	f.extractor.texts["a.txt"] = strings.Repeat("a", 15)
	f.extractor.texts["b.txt"] = strings.Repeat("b", 15)
	f.extractor.texts["c.txt"] = strings.Repeat("c", 15)
	f.classifier.batchErrs[1] = domain.WrapError(domain.ErrQuotaExhausted, "classify", errors.New("429"))
	dir := writeSourceFiles(t, "a.txt", "b.txt", "c.txt")

	report, err := f.pipeline.Run(context.Background(), dir, "youtube")
	if err == nil || !domain.IsKind(err, domain.ErrQuotaExhausted) {
		t.Fatalf("Run() error = %v, want quota exhaustion", err)
	}
	if !report.QuotaExhausted {
		t.Fatal("report.QuotaExhausted not set")
	}
	if report.Classified != 1 {
		t.Fatalf("Classified = %d, want 1 (first batch succeeded)", report.Classified)
	}

	// Everything extracted before the stop is persisted and resumable.
	if len(f.repo.items) != 3 {
		t.Fatalf("items = %d, want all 3 eager-saved", len(f.repo.items))
	}
	resumable := 0
	for _, item := range f.repo.items {
		if !item.Classified() {
			resumable++
		}
	}
	if resumable != 2 {
		t.Fatalf("resumable items = %d, want 2", resumable)
	}
	if f.events.count(domain.EventQuotaExhausted) != 1 {
		t.Fatal("expected one quota exhaustion event")
	}
}

func TestRunResumesAfterQuotaStop(t *testing.T) {
	f := newPipelineFixture(20)
	f.extractor.texts["a.txt"] = strings.Repeat("a", 15)
	f.extractor.texts["b.txt"] = strings.Repeat("b", 15)
	f.classifier.batchErrs[0] = domain.WrapError(domain.ErrQuotaExhausted, "classify", errors.New("429"))
	dir := writeSourceFiles(t, "a.txt", "b.txt")

	if _, err := f.pipeline.Run(context.Background(), dir, "youtube"); err == nil {
		t.Fatal("expected quota error on first run")
	}
	extractions := len(f.extractor.calls)

	report, err := f.pipeline.Run(context.Background(), dir, "youtube")
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if report.Resumed == 0 {
		t.Fatalf("report = %+v, want resumed items", report)
	}
	if report.Classified != 2 {
		t.Fatalf("Classified = %d, want 2", report.Classified)
	}
	if len(f.extractor.calls) != extractions {
		t.Fatal("resume re-ran extraction")
	}
}

func TestRunBatchFailureIsBatchScoped(t *testing.T) {
	f := newPipelineFixture(20)
	f.extractor.texts["a.txt"] = strings.Repeat("a", 15)
	f.extractor.texts["b.txt"] = strings.Repeat("b", 15)
	f.classifier.batchErrs[0] = errors.New("upstream 500")
	dir := writeSourceFiles(t, "a.txt", "b.txt")

	report, err := f.pipeline.Run(context.Background(), dir, "youtube")
	if err != nil {
		t.Fatalf("Run() error = %v, non-quota failures are batch-scoped", err)
	}
	if report.Unresolved != 1 || report.Classified != 1 {
		t.Fatalf("report = %+v, want first batch unresolved, second classified", report)
	}
	if f.events.count(domain.EventBatchFailed) != 1 {
		t.Fatal("expected one batch failure event")
	}
}

func TestRunMissingResultStaysResumable(t *testing.T) {
	f := newPipelineFixture(10000)
	f.extractor.texts["a.txt"] = "alpha"
	f.extractor.texts["b.txt"] = "bravo"
	dir := writeSourceFiles(t, "a.txt", "b.txt")

	// Drop the first submitted id from the response; ids are random so the
	// victim is picked when the batch arrives.
	f.pipeline = NewIngestPipeline(f.repo, f.registry, f.extractor, &hookClassifier{
		inner: f.classifier,
		before: func(items []domain.BatchItem) {
			f.classifier.missing[items[0].ID] = true
		},
	}, f.storage, f.events, nil, 10000)

	report, err := f.pipeline.Run(context.Background(), dir, "youtube")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Unresolved != 1 || report.Classified != 1 {
		t.Fatalf("report = %+v", report)
	}
	resumable := 0
	for _, item := range f.repo.items {
		if !item.Classified() {
			resumable++
		}
	}
	if resumable != 1 {
		t.Fatalf("resumable = %d, want the unresolved item persisted", resumable)
	}
}

func TestRunRegistersNewVocabulary(t *testing.T) {
	f := newPipelineFixture(10000)
	f.registry.vocab = domain.Vocabulary{Category: []string{"General"}, Tags: []string{"tag-a"}}
	f.extractor.texts["a.txt"] = "alpha"
	dir := writeSourceFiles(t, "a.txt")

	f.pipeline = NewIngestPipeline(f.repo, f.registry, f.extractor, &hookClassifier{
		inner: f.classifier,
		before: func(items []domain.BatchItem) {
			for _, item := range items {
				f.classifier.newFields[item.ID] = []domain.VocabularyField{domain.FieldCategory, domain.FieldTags}
			}
		},
	}, f.storage, f.events, nil, 10000)
	f.classifier.category = "Cooking"

	if _, err := f.pipeline.Run(context.Background(), dir, "youtube"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := map[string]bool{
		"Platform=youtube": true,
		"Category=Cooking": true,
		"Tags=tag-b":       true, // tag-a already known, only tag-b is appended
	}
	if len(f.registry.registered) != len(want) {
		t.Fatalf("registered = %v, want %v", f.registry.registered, want)
	}
	for _, entry := range f.registry.registered {
		if !want[entry] {
			t.Errorf("unexpected registration %q", entry)
		}
	}
}

type hookClassifier struct {
	inner  *classifierFake
	before func(items []domain.BatchItem)
}

func (h *hookClassifier) ClassifyBatch(ctx context.Context, items []domain.BatchItem) ([]domain.ClassificationResult, error) {
	if h.before != nil {
		h.before(items)
	}
	return h.inner.ClassifyBatch(ctx, items)
}

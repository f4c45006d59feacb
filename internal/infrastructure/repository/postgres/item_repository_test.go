package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dropushan1/Video-Agent/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*ItemRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ItemRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestUpsertWritesAllColumns(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	item := &domain.Item{
		ID:               "a1b2c3d4",
		OriginalFilename: "clip.mp4",
		Platform:         "youtube",
		FileType:         domain.FileTypeVideo,
		RawText:          "transcript",
		ContentHash:      "deadbeef",
		Title:            "A clip",
		Summary:          "Summary",
		Category:         "Travel",
		Tags:             "beach, sunset",
		Types:            "Vlog",
		RefinedText:      "Transcript.",
		FilePath:         "/library/a1b2c3d4_clip.mp4",
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	mock.ExpectExec("INSERT INTO items").
		WithArgs(
			item.ID, item.OriginalFilename, item.Platform, string(item.FileType), item.RawText, item.ContentHash,
			item.Title, item.Summary, item.Category, item.Tags, item.Types, item.RefinedText, item.FilePath,
			item.CreatedAt, item.UpdatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Upsert(context.Background(), item); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, original_filename, platform").
		WithArgs("missing0").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing0")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDScansFullRecord(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "original_filename", "platform", "file_type", "raw_text", "content_hash",
		"title", "summary", "category", "tags", "types", "refined_text", "file_path", "created_at", "updated_at",
	}).AddRow(
		"a1b2c3d4", "clip.mp4", "youtube", "Video", "transcript", "deadbeef",
		"A clip", "Summary", "Travel", "beach", "Vlog", "Transcript.", "/library/a1b2c3d4_clip.mp4", now, now,
	)
	mock.ExpectQuery("SELECT id, original_filename, platform").
		WithArgs("a1b2c3d4").
		WillReturnRows(rows)

	item, err := repo.GetByID(context.Background(), "a1b2c3d4")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if item.FileType != domain.FileTypeVideo {
		t.Errorf("FileType = %q, want Video", item.FileType)
	}
	if !item.Classified() {
		t.Errorf("expected a classified record, got %+v", item)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindIDByFilenameReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id FROM items WHERE original_filename").
		WithArgs("never-seen.mp4").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindIDByFilename(context.Background(), "never-seen.mp4")
	if !domain.IsKind(err, domain.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindIDByContentHashRejectsBlankHashWithoutQuery(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	// No query expectation registered: a blank hash must short-circuit.
	_, err := repo.FindIDByContentHash(context.Background(), "")
	if !domain.IsKind(err, domain.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindIDByContentHashReturnsMatch(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id FROM items WHERE content_hash").
		WithArgs("deadbeef").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1b2c3d4"))

	id, err := repo.FindIDByContentHash(context.Background(), "deadbeef")
	if err != nil {
		t.Fatalf("FindIDByContentHash() error = %v", err)
	}
	if id != "a1b2c3d4" {
		t.Fatalf("id = %q, want a1b2c3d4", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaRunsInTransaction(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(int64(2026083101)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS items").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

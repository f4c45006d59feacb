package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dropushan1/Video-Agent/internal/core/domain"
)

type ItemRepository struct {
	db *sql.DB
}

func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ItemRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across overlapping startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS items (
	id TEXT PRIMARY KEY,
	original_filename TEXT NOT NULL,
	platform TEXT NOT NULL DEFAULT '',
	file_type TEXT NOT NULL DEFAULT '',
	raw_text TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '',
	types TEXT NOT NULL DEFAULT '',
	refined_text TEXT NOT NULL DEFAULT '',
	file_path TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_original_filename ON items(original_filename);
CREATE INDEX IF NOT EXISTS idx_items_content_hash ON items(content_hash);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Upsert writes the full record in one replace-by-primary-key statement.
// Partial (eager) and final saves both land here; the created_at of the
// first write wins.
func (r *ItemRepository) Upsert(ctx context.Context, item *domain.Item) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO items (
	id, original_filename, platform, file_type, raw_text, content_hash,
	title, summary, category, tags, types, refined_text, file_path, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (id) DO UPDATE SET
	original_filename = EXCLUDED.original_filename,
	platform = EXCLUDED.platform,
	file_type = EXCLUDED.file_type,
	raw_text = EXCLUDED.raw_text,
	content_hash = EXCLUDED.content_hash,
	title = EXCLUDED.title,
	summary = EXCLUDED.summary,
	category = EXCLUDED.category,
	tags = EXCLUDED.tags,
	types = EXCLUDED.types,
	refined_text = EXCLUDED.refined_text,
	file_path = EXCLUDED.file_path,
	updated_at = EXCLUDED.updated_at
`,
		item.ID, item.OriginalFilename, item.Platform, string(item.FileType), item.RawText, item.ContentHash,
		item.Title, item.Summary, item.Category, item.Tags, item.Types, item.RefinedText, item.FilePath,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert item: %w", err)
	}
	return nil
}

func (r *ItemRepository) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, original_filename, platform, file_type, raw_text, content_hash,
	title, summary, category, tags, types, refined_text, file_path, created_at, updated_at
FROM items
WHERE id = $1
`, id)

	var item domain.Item
	var fileType string

	err := row.Scan(
		&item.ID, &item.OriginalFilename, &item.Platform, &fileType, &item.RawText, &item.ContentHash,
		&item.Title, &item.Summary, &item.Category, &item.Tags, &item.Types, &item.RefinedText,
		&item.FilePath, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrItemNotFound, "get item", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan item: %w", err)
	}

	item.FileType = domain.FileType(fileType)
	return &item, nil
}

func (r *ItemRepository) FindIDByFilename(ctx context.Context, originalFilename string) (string, error) {
	return r.findID(ctx, "find by filename", `
SELECT id FROM items WHERE original_filename = $1 LIMIT 1
`, originalFilename)
}

// FindIDByContentHash never matches blank hashes; an empty extraction
// result must not collide with another empty extraction.
func (r *ItemRepository) FindIDByContentHash(ctx context.Context, hash string) (string, error) {
	if hash == "" {
		return "", domain.WrapError(domain.ErrItemNotFound, "find by content hash", errors.New("blank hash"))
	}
	return r.findID(ctx, "find by content hash", `
SELECT id FROM items WHERE content_hash = $1 LIMIT 1
`, hash)
}

func (r *ItemRepository) findID(ctx context.Context, operation, query, key string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, query, key).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.WrapError(domain.ErrItemNotFound, operation, sql.ErrNoRows)
		}
		return "", fmt.Errorf("%s: %w", operation, err)
	}
	return id, nil
}

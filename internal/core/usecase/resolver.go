package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/dropushan1/Video-Agent/internal/core/domain"
	"github.com/dropushan1/Video-Agent/internal/core/ports"
)

// Resolution classifies what the pipeline should do with a discovered file.
type Resolution int

const (
	// ResolutionNew means the file has never been seen: assign the id from
	// the resolved identity, extract, and ingest.
	ResolutionNew Resolution = iota
	// ResolutionResume means a partially-persisted record exists: reuse its
	// id and stored raw text and go straight to batching.
	ResolutionResume
	// ResolutionSkipTerminal means a fully-classified record exists for the
	// id embedded in the filename; only a copy-if-missing is performed.
	ResolutionSkipTerminal
	// ResolutionSkipDuplicate means the original filename already has a
	// fully-classified record; the file is skipped entirely.
	ResolutionSkipDuplicate
)

// ResolvedFile is the resolver's decision for one discovered filename.
// Item is populated on the resume path with the stored record.
type ResolvedFile struct {
	Resolution       Resolution
	ID               string
	OriginalFilename string
	Item             *domain.Item
	Reason           string
}

var idPrefixPattern = regexp.MustCompile(`^([a-zA-Z0-9]{8})_(.+)$`)

// Resolver decides, per discovered file, whether it is brand-new, a
// partially-processed resume candidate, or a completed duplicate.
//
// Filenames carrying an `<8-char-alnum>_` prefix are treated as already
// renamed by a previous run: the prefix is a candidate id and the rest is
// the original filename. The id lookup runs before the filename lookup —
// a prefixed file whose id matches a terminal record resolves as terminal
// (eligible for a library copy-if-missing), not as a plain filename
// duplicate. The store stays authoritative either way: an unknown prefix
// falls through to the filename check.
type Resolver struct {
	repo ports.ItemRepository
}

func NewResolver(repo ports.ItemRepository) *Resolver {
	return &Resolver{repo: repo}
}

func (r *Resolver) Resolve(ctx context.Context, filename string) (ResolvedFile, error) {
	candidateID, original := SplitIdentity(filename)

	if candidateID != "" {
		stored, err := r.getByID(ctx, candidateID)
		if err != nil {
			return ResolvedFile{}, err
		}
		if stored != nil {
			if stored.Classified() {
				return ResolvedFile{
					Resolution:       ResolutionSkipTerminal,
					ID:               stored.ID,
					OriginalFilename: original,
					Reason:           "already fully processed",
				}, nil
			}
			return resumeResolution(stored, original), nil
		}
	}

	byName, err := r.lookup(ctx, original, r.findByFilename)
	if err != nil {
		return ResolvedFile{}, err
	}
	if byName != nil {
		if byName.Classified() {
			return ResolvedFile{
				Resolution:       ResolutionSkipDuplicate,
				ID:               byName.ID,
				OriginalFilename: original,
				Reason:           "filename already ingested",
			}, nil
		}
		return resumeResolution(byName, original), nil
	}

	id, err := r.freshID(ctx)
	if err != nil {
		return ResolvedFile{}, err
	}
	return ResolvedFile{
		Resolution:       ResolutionNew,
		ID:               id,
		OriginalFilename: original,
	}, nil
}

// SplitIdentity separates a candidate embedded id from the original
// filename. When no prefix is present the whole name is the original and
// no id is assumed.
func SplitIdentity(filename string) (candidateID, original string) {
	if m := idPrefixPattern.FindStringSubmatch(filename); m != nil {
		return m[1], m[2]
	}
	return "", filename
}

func resumeResolution(stored *domain.Item, original string) ResolvedFile {
	return ResolvedFile{
		Resolution:       ResolutionResume,
		ID:               stored.ID,
		OriginalFilename: original,
		Item:             stored,
	}
}

func (r *Resolver) findByFilename(ctx context.Context, name string) (string, error) {
	return r.repo.FindIDByFilename(ctx, name)
}

func (r *Resolver) lookup(ctx context.Context, key string, find func(context.Context, string) (string, error)) (*domain.Item, error) {
	id, err := find(ctx, key)
	if err != nil {
		if domain.IsKind(err, domain.ErrItemNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve lookup: %w", err)
	}
	return r.getByID(ctx, id)
}

func (r *Resolver) getByID(ctx context.Context, id string) (*domain.Item, error) {
	item, err := r.repo.GetByID(ctx, id)
	if err != nil {
		if domain.IsKind(err, domain.ErrItemNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve fetch item: %w", err)
	}
	return item, nil
}

// freshID generates a short random id that does not collide with any
// stored record. Collisions across 8 hex characters are unlikely but the
// id is a primary key, so they are checked anyway.
func (r *Resolver) freshID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		_, err := r.repo.GetByID(ctx, id)
		if err == nil {
			continue
		}
		if domain.IsKind(err, domain.ErrItemNotFound) {
			return id, nil
		}
		return "", fmt.Errorf("check id collision: %w", err)
	}
	return "", fmt.Errorf("could not generate a unique item id")
}

package usecase

import "github.com/dropushan1/Video-Agent/internal/core/domain"

// BatchAccumulator greedily packs items into character-budgeted batches
// in discovery order. This is single-pass bin packing, not optimal
// packing: once an item would overflow the current non-empty batch, that
// batch is flushed and the item starts the next one. An item bigger than
// the whole budget still forms a batch of one; it is never dropped.
type BatchAccumulator struct {
	budget int
	items  []domain.BatchItem
	chars  int
}

const DefaultBatchBudget = 10000

func NewBatchAccumulator(budget int) *BatchAccumulator {
	if budget <= 0 {
		budget = DefaultBatchBudget
	}
	return &BatchAccumulator{budget: budget}
}

// Add appends an item and returns the flushed batch when the item did not
// fit into the current one, or nil otherwise. The returned batch never
// contains the item just added.
func (a *BatchAccumulator) Add(item domain.BatchItem) *domain.Batch {
	var flushed *domain.Batch
	if len(a.items) > 0 && a.chars+len(item.RawText) > a.budget {
		flushed = a.Flush()
	}
	a.items = append(a.items, item)
	a.chars += len(item.RawText)
	return flushed
}

// Flush hands back the current batch and resets the accumulator. It
// returns nil when nothing is pending.
func (a *BatchAccumulator) Flush() *domain.Batch {
	if len(a.items) == 0 {
		return nil
	}
	batch := &domain.Batch{Items: a.items, Chars: a.chars}
	a.items = nil
	a.chars = 0
	return batch
}

func (a *BatchAccumulator) Pending() int { return len(a.items) }

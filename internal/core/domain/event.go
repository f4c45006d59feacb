package domain

import "time"

type EventKind string

const (
	EventItemIngested    EventKind = "item_ingested"
	EventItemResumed     EventKind = "item_resumed"
	EventItemSkipped     EventKind = "item_skipped"
	EventItemClassified  EventKind = "item_classified"
	EventItemUnresolved  EventKind = "item_unresolved"
	EventBatchClassified EventKind = "batch_classified"
	EventBatchFailed     EventKind = "batch_failed"
	EventQuotaExhausted  EventKind = "quota_exhausted"
)

// PipelineEvent is the per-item / per-batch progress record emitted as the
// scan proceeds. Events are observational only; losing one never affects
// pipeline state.
type PipelineEvent struct {
	Kind       EventKind `json:"kind"`
	ItemID     string    `json:"item_id,omitempty"`
	Filename   string    `json:"filename,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	BatchSize  int       `json:"batch_size,omitempty"`
	BatchChars int       `json:"batch_chars,omitempty"`
	ElapsedMS  int64     `json:"elapsed_ms,omitempty"`
	At         time.Time `json:"at"`
}

package domain

// BatchItem is the per-item payload submitted to the external classifier.
type BatchItem struct {
	ID       string `json:"id"`
	RawText  string `json:"raw_text"`
	Platform string `json:"platform"`
}

// Batch is a transient, ordered group of items bounded by a character
// budget. Only its effects (persisted items) survive; batches themselves
// are never stored.
type Batch struct {
	Items []BatchItem
	Chars int
}

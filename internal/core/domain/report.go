package domain

// RunReport summarizes one pipeline run.
type RunReport struct {
	Scanned        int
	Ingested       int
	Resumed        int
	Skipped        int
	Classified     int
	Unresolved     int
	QuotaExhausted bool
}

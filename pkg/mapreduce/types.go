package mapreduce

import "time"

// Document is one unit of source material handed to the map phase.
// ID must be unique within a run.
type Document struct {
	ID       string                 `json:"id"`
	Title    string                 `json:"title"`
	Content  string                 `json:"content"`
	Score    float32                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type ExtractionStatus string

const (
	StatusInformative ExtractionStatus = "informative"
	StatusEmpty       ExtractionStatus = "empty"
	StatusFailed      ExtractionStatus = "failed"
)

// ExtractionOutcome is the terminal result of extracting one document.
// Text is set only for informative outcomes, Err only for failed ones.
type ExtractionOutcome struct {
	DocumentID string           `json:"document_id"`
	Index      int              `json:"index"`
	Status     ExtractionStatus `json:"status"`
	Text       string           `json:"text,omitempty"`
	Attempts   int              `json:"attempts"`
	Err        string           `json:"error,omitempty"`
}

// ExtractionBatch is index-aligned with the retrieved document sequence.
type ExtractionBatch []ExtractionOutcome

// Counts tallies outcomes per status. Skipped counts empty outcomes.
type Counts struct {
	Total       int `json:"total"`
	Informative int `json:"informative"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
}

// Report is the result of a completed run.
type Report struct {
	RunID          string          `json:"run_id"`
	Query          string          `json:"query"`
	Text           string          `json:"text"`
	Counts         Counts          `json:"counts"`
	State          State           `json:"state"`
	ShortCircuited bool            `json:"short_circuited"`
	Outcomes       ExtractionBatch `json:"outcomes"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
}

// Duration reports wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

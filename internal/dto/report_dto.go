package dto

import (
	"time"

	"ai-report-be/pkg/mapreduce"

	"github.com/google/uuid"
)

type CreateReportRequest struct {
	Query      string `json:"query" validate:"required,max=2000"`
	Collection string `json:"collection" validate:"omitempty,max=100"`
	// Optional per-request overrides of the pipeline defaults.
	MaxConcurrency        *int  `json:"max_concurrency,omitempty" validate:"omitempty,min=1,max=64"`
	AllowPartialOnTimeout *bool `json:"allow_partial_on_timeout,omitempty"`
	IncludeOutcomes       bool  `json:"include_outcomes"`
}

type ReportCounts struct {
	Total       int `json:"total"`
	Informative int `json:"informative"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
}

type ReportResponse struct {
	Id             uuid.UUID                     `json:"id"`
	Query          string                        `json:"query"`
	Collection     string                        `json:"collection"`
	Status         mapreduce.State               `json:"status"`
	Report         string                        `json:"report"`
	Counts         ReportCounts                  `json:"counts"`
	ShortCircuited bool                          `json:"short_circuited"`
	ErrorKind      mapreduce.ErrorKind           `json:"error_kind,omitempty"`
	Error          string                        `json:"error,omitempty"`
	Outcomes       []mapreduce.ExtractionOutcome `json:"outcomes,omitempty"`
	StartedAt      time.Time                     `json:"started_at"`
	FinishedAt     time.Time                     `json:"finished_at"`
	DurationMs     int64                         `json:"duration_ms"`
}

type QueueReportResponse struct {
	Id     uuid.UUID       `json:"id"`
	Status mapreduce.State `json:"status"`
}

// ReportStatusResponse carries the live run status and, once the run has
// finished, the stored report.
type ReportStatusResponse struct {
	Id        uuid.UUID           `json:"id"`
	State     mapreduce.State     `json:"state"`
	ErrorKind mapreduce.ErrorKind `json:"error_kind,omitempty"`
	Error     string              `json:"error,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
	Report    *ReportResponse     `json:"report,omitempty"`
}

// RunReportMessage is the watermill payload for queued runs.
type RunReportMessage struct {
	RunId                 uuid.UUID `json:"run_id"`
	Query                 string    `json:"query"`
	Collection            string    `json:"collection"`
	MaxConcurrency        *int      `json:"max_concurrency,omitempty"`
	AllowPartialOnTimeout *bool     `json:"allow_partial_on_timeout,omitempty"`
}

package entity

import (
	"time"

	"ai-report-be/pkg/mapreduce"

	"github.com/google/uuid"
)

// Report is a persisted pipeline run, completed or failed.
type Report struct {
	Id             uuid.UUID
	Query          string
	Collection     string
	Status         mapreduce.State
	Text           string
	Counts         mapreduce.Counts
	ShortCircuited bool
	ErrorKind      mapreduce.ErrorKind
	ErrorMessage   string
	FailedState    mapreduce.State
	Outcomes       mapreduce.ExtractionBatch
	StartedAt      time.Time
	FinishedAt     time.Time
	CreatedAt      time.Time
}

package entity

import (
	"time"

	"ai-report-be/pkg/mapreduce"
)

// RunStatus is the live view of a report run while it is in flight.
type RunStatus struct {
	RunID      string              `json:"run_id"`
	Query      string              `json:"query"`
	Collection string              `json:"collection,omitempty"`
	State      mapreduce.State     `json:"state"`
	ErrorKind  mapreduce.ErrorKind `json:"error_kind,omitempty"`
	Error      string              `json:"error,omitempty"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

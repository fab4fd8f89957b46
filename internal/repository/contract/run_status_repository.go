package contract

import (
	"context"

	"ai-report-be/internal/entity"
)

// RunStatusRepository keeps short-lived run status, keyed by run ID.
type RunStatusRepository interface {
	Save(ctx context.Context, status *entity.RunStatus) error
	Get(ctx context.Context, runID string) (*entity.RunStatus, bool, error)
	Delete(ctx context.Context, runID string) error
}

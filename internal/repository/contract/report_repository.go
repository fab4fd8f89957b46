package contract

import (
	"context"

	"ai-report-be/internal/entity"
	"ai-report-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ReportRepository interface {
	Create(ctx context.Context, report *entity.Report) error
	FindById(ctx context.Context, id uuid.UUID) (*entity.Report, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Report, error)
}

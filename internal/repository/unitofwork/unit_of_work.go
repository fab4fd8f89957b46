package unitofwork

import (
	"context"

	"ai-report-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	DocumentRepository() contract.DocumentRepository
	DocumentChunkRepository() contract.DocumentChunkRepository
	ReportRepository() contract.ReportRepository
}

package unitofwork

import (
	"context"

	"gorm.io/gorm"
)

type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
}

type gormRepositoryFactory struct {
	db *gorm.DB
}

// NewRepositoryFactory hands out units of work over db. Each one is meant for
// a single request or job and starts outside a transaction.
func NewRepositoryFactory(db *gorm.DB) RepositoryFactory {
	return &gormRepositoryFactory{db: db}
}

func (f *gormRepositoryFactory) NewUnitOfWork(ctx context.Context) UnitOfWork {
	return NewUnitOfWork(f.db)
}

// InTransaction runs fn against uow inside one transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func InTransaction(ctx context.Context, uow UnitOfWork, fn func(uow UnitOfWork) error) (err error) {
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = uow.Rollback()
		}
	}()

	if err = fn(uow); err != nil {
		return err
	}
	return uow.Commit()
}

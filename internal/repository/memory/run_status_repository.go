package memory

import (
	"context"
	"time"

	"ai-report-be/internal/entity"
	"ai-report-be/internal/repository/contract"

	"github.com/patrickmn/go-cache"
)

type RunStatusRepository struct {
	cache *cache.Cache
}

var _ contract.RunStatusRepository = (*RunStatusRepository)(nil)

func NewRunStatusRepository(ttl time.Duration) *RunStatusRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	// purge expired items every 10 minutes
	c := cache.New(ttl, 10*time.Minute)
	return &RunStatusRepository{
		cache: c,
	}
}

func (r *RunStatusRepository) Save(ctx context.Context, status *entity.RunStatus) error {
	cp := *status
	r.cache.Set(status.RunID, &cp, cache.DefaultExpiration)
	return nil
}

func (r *RunStatusRepository) Get(ctx context.Context, runID string) (*entity.RunStatus, bool, error) {
	if x, found := r.cache.Get(runID); found {
		cp := *x.(*entity.RunStatus)
		return &cp, true, nil
	}
	return nil, false, nil
}

func (r *RunStatusRepository) Delete(ctx context.Context, runID string) error {
	r.cache.Delete(runID)
	return nil
}

// Count returns the number of unexpired entries.
func (r *RunStatusRepository) Count() int {
	return r.cache.ItemCount()
}

package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-report-be/internal/entity"
	"ai-report-be/internal/repository/contract"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "report:run:"

// RunStatusRepository shares run status across API instances through Redis.
type RunStatusRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ contract.RunStatusRepository = (*RunStatusRepository)(nil)

func NewRunStatusRepository(rdb *redis.Client, ttl time.Duration) *RunStatusRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RunStatusRepository{rdb: rdb, ttl: ttl}
}

func (r *RunStatusRepository) Save(ctx context.Context, status *entity.RunStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal run status: %w", err)
	}
	if err := r.rdb.Set(ctx, keyPrefix+status.RunID, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set run status: %w", err)
	}
	return nil
}

func (r *RunStatusRepository) Get(ctx context.Context, runID string) (*entity.RunStatus, bool, error) {
	payload, err := r.rdb.Get(ctx, keyPrefix+runID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get run status: %w", err)
	}

	var status entity.RunStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		return nil, false, fmt.Errorf("unmarshal run status: %w", err)
	}
	return &status, true, nil
}

func (r *RunStatusRepository) Delete(ctx context.Context, runID string) error {
	return r.rdb.Del(ctx, keyPrefix+runID).Err()
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credit-engine/internal/domain/loan"

	"github.com/redis/go-redis/v9"
)

// RedisScheduleCache keeps installment listings in Redis keyed by loan ID.
// Installments are immutable between payments, so entries only need to be
// dropped when a payment lands.
type RedisScheduleCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ loan.ScheduleCache = (*RedisScheduleCache)(nil)

func NewRedisScheduleCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisScheduleCache {
	return &RedisScheduleCache{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "RedisScheduleCache"),
	}
}

func scheduleKey(loanID int64) string {
	return fmt.Sprintf("loan:installments:%d", loanID)
}

func (c *RedisScheduleCache) GetInstallments(ctx context.Context, loanID int64) ([]loan.Installment, bool) {
	payload, err := c.client.Get(ctx, scheduleKey(loanID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "Schedule cache read failed", "loan_id", loanID, "error", err)
		}
		return nil, false
	}

	var installments []loan.Installment
	if err := json.Unmarshal(payload, &installments); err != nil {
		c.logger.WarnContext(ctx, "Schedule cache entry is corrupt, dropping it", "loan_id", loanID, "error", err)
		c.Invalidate(ctx, loanID)
		return nil, false
	}
	return installments, true
}

func (c *RedisScheduleCache) SetInstallments(ctx context.Context, loanID int64, installments []loan.Installment) {
	payload, err := json.Marshal(installments)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to marshal installments for cache", "loan_id", loanID, "error", err)
		return
	}
	if err := c.client.Set(ctx, scheduleKey(loanID), payload, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "Schedule cache write failed", "loan_id", loanID, "error", err)
	}
}

func (c *RedisScheduleCache) Invalidate(ctx context.Context, loanID int64) {
	if err := c.client.Del(ctx, scheduleKey(loanID)).Err(); err != nil {
		c.logger.WarnContext(ctx, "Schedule cache invalidation failed", "loan_id", loanID, "error", err)
	}
}

package database

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports backing store reachability for the /health endpoint.
type HealthChecker struct {
	db  Pinger
	rdb redis.UniversalClient
}

func NewHealthChecker(db Pinger, rdb redis.UniversalClient) *HealthChecker {
	return &HealthChecker{db: db, rdb: rdb}
}

// Check pings every store concurrently. The map holds "ok" or the error text
// per store; healthy is false only when PostgreSQL is down.
func (h *HealthChecker) Check(ctx context.Context) (status map[string]string, healthy bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var dbErr, redisErr error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dbErr = h.db.Ping(gctx)
		return nil
	})
	if h.rdb != nil {
		g.Go(func() error {
			redisErr = h.rdb.Ping(gctx).Err()
			return nil
		})
	}
	_ = g.Wait()

	status = map[string]string{"postgres": "ok", "redis": "ok"}
	if dbErr != nil {
		status["postgres"] = dbErr.Error()
	}
	if h.rdb == nil {
		status["redis"] = "disabled"
	} else if redisErr != nil {
		status["redis"] = redisErr.Error()
	}
	return status, dbErr == nil
}

package app

import (
	"context"
	"fmt"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"coach/internal/config"
)

// NewRedisClient connects the shared Redis client. Redis carries the checkout
// drafts, the saga state and the transition locks; without it no checkout can
// move, so a failed ping is fatal at startup rather than degraded.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, nrApp *newrelic.Application) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if nrApp != nil {
		client.AddHook(&redisTraceHook{app: nrApp})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// redisTraceHook reports every Redis command as a datastore segment on the
// surrounding transaction. Draft saves, lock acquisitions and saga reads all
// sit on the checkout hot path, so per-command timing matters here.
type redisTraceHook struct {
	app *newrelic.Application
}

func (h *redisTraceHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h *redisTraceHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if txn := newrelic.FromContext(ctx); txn != nil {
			segment := newrelic.DatastoreSegment{
				StartTime:  txn.StartSegmentNow(),
				Product:    newrelic.DatastoreRedis,
				Operation:  cmd.Name(),
				Collection: "checkout",
			}
			defer segment.End()
		}
		return next(ctx, cmd)
	}
}

// ProcessPipelineHook covers the saga store's dual-key writes, which go out
// as a single pipeline. The command count distinguishes a session-only write
// from a mirrored one.
func (h *redisTraceHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if txn := newrelic.FromContext(ctx); txn != nil {
			segment := newrelic.DatastoreSegment{
				StartTime:  txn.StartSegmentNow(),
				Product:    newrelic.DatastoreRedis,
				Operation:  fmt.Sprintf("pipeline[%d]", len(cmds)),
				Collection: "checkout",
			}
			defer segment.End()
		}
		return next(ctx, cmds)
	}
}

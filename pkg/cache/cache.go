package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/frankenergie/frankenergie/pkg/log"
	"github.com/frankenergie/frankenergie/pkg/types"
	"github.com/levenlabs/go-lflag"
	"github.com/redis/go-redis/v9"
)

// Snapshots keeps the last known RefreshResult of every entry so stale
// prices can still be served after a restart.
type Snapshots interface {
	// Get returns nil without an error when there is no snapshot.
	Get(ctx context.Context, entryID string) (*types.RefreshResult, error)
	Set(ctx context.Context, entryID string, result *types.RefreshResult) error
	Delete(ctx context.Context, entryID string) error
	Close() error
}

// Configured returns a Redis backed Snapshots when redis-addr is set and a
// Noop otherwise.
func Configured() Snapshots {
	addr := lflag.String("redis-addr", "", "Redis address for last known snapshots (host:port), empty to disable")
	password := lflag.String("redis-password", "", "Redis password")
	db := lflag.Int("redis-db", 0, "Redis database number")
	ttl := lflag.Duration("snapshot-ttl", 48*time.Hour, "How long a last known snapshot is kept")

	var s struct{ Snapshots }
	s.Snapshots = Noop{}

	lflag.Do(func() {
		if *addr == "" {
			return
		}
		client := redis.NewClient(&redis.Options{
			Addr:     *addr,
			Password: *password,
			DB:       *db,
		})
		ctx := context.Background()
		if err := client.Ping(ctx).Err(); err != nil {
			// go-redis reconnects on its own so keep the client
			log.Ctx(ctx).WarnContext(ctx, "failed to ping redis", slog.String("addr", *addr), slog.Any("error", err))
		}
		s.Snapshots = NewRedis(client, *ttl)
	})

	return &s
}

// Noop stores nothing.
type Noop struct{}

var _ Snapshots = Noop{}

func (Noop) Get(context.Context, string) (*types.RefreshResult, error) { return nil, nil }

func (Noop) Set(context.Context, string, *types.RefreshResult) error { return nil }

func (Noop) Delete(context.Context, string) error { return nil }

func (Noop) Close() error { return nil }

// Package kvstore provides the key-value storage abstraction behind the chat
// persistence layer: plain get/set/delete, set membership for the per-user
// chat indexes, and pipelined counter increments for usage stats.
//
// Two backends implement Store: a remote Redis store and an in-process
// fallback map. The backend is selected once at startup based on whether
// connection settings are present; it never switches at runtime.
package kvstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bloomweaver/backend/internal/logging"
)

// Result is the outcome of one pipelined operation, reported per slot in
// submission order.
type Result struct {
	Value int64
	Err   error
}

// Pipeline batches counter increments and executes them as a single unit.
// No atomicity is guaranteed across the batch; the point is fewer round
// trips. A failing operation is isolated to its own slot and does not abort
// the rest of the batch.
type Pipeline interface {
	Incr(key string) Pipeline
	IncrBy(key string, delta int64) Pipeline
	Exec(ctx context.Context) []Result
}

// Store is the uniform storage capability used by the persistence layer.
// Get returns common.ErrorNotFound for absent keys. Delete, SetAdd and
// SetRemove report how many keys/members were actually affected.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) (int64, error)

	SetAdd(ctx context.Context, key string, members ...string) (int64, error)
	SetRemove(ctx context.Context, key string, members ...string) (int64, error)
	SetContains(ctx context.Context, key, member string) (bool, error)
	SetMembers(ctx context.Context, key string) ([]string, error)

	Pipeline() Pipeline
}

// Options holds remote-store connection settings. An empty Addr selects the
// in-process fallback.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Open binds to the Redis backend when an address is configured and the
// server answers a ping, and to the in-process fallback otherwise. The
// fallback never persists across restarts and has no size bound; it exists
// for local development, not production.
func Open(opts Options, log logging.Logger) Store {
	ctx := context.Background()

	if opts.Addr == "" {
		log.Warn(ctx, "no key-value store configured, using in-process fallback")
		return NewMemory()
	}

	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		log.Error(ctx, "key-value store unreachable, using in-process fallback", "addr", opts.Addr, "error", err)
		return NewMemory()
	}

	log.Info(ctx, "connected to key-value store", "addr", opts.Addr)
	return NewRedis(client)
}

package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bloomweaver/backend/internal/common"
)

// Redis is the remote Store backend.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("store error: %w", err)
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("store error: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("store error: %w", err)
	}
	return n, nil
}

func (r *Redis) SetAdd(ctx context.Context, key string, members ...string) (int64, error) {
	n, err := r.client.SAdd(ctx, key, toAny(members)...).Result()
	if err != nil {
		return 0, fmt.Errorf("store error: %w", err)
	}
	return n, nil
}

func (r *Redis) SetRemove(ctx context.Context, key string, members ...string) (int64, error) {
	n, err := r.client.SRem(ctx, key, toAny(members)...).Result()
	if err != nil {
		return 0, fmt.Errorf("store error: %w", err)
	}
	return n, nil
}

func (r *Redis) SetContains(ctx context.Context, key, member string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("store error: %w", err)
	}
	return ok, nil
}

func (r *Redis) SetMembers(ctx context.Context, key string) ([]string, error) {
	members, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("store error: %w", err)
	}
	return members, nil
}

func (r *Redis) Pipeline() Pipeline {
	return &redisPipeline{pipe: r.client.Pipeline()}
}

func (r *Redis) Close() error {
	return r.client.Close()
}

type redisPipeline struct {
	pipe redis.Pipeliner
	cmds []*redis.IntCmd
}

func (p *redisPipeline) Incr(key string) Pipeline {
	p.cmds = append(p.cmds, p.pipe.Incr(context.Background(), key))
	return p
}

func (p *redisPipeline) IncrBy(key string, delta int64) Pipeline {
	p.cmds = append(p.cmds, p.pipe.IncrBy(context.Background(), key, delta))
	return p
}

func (p *redisPipeline) Exec(ctx context.Context) []Result {
	// Exec returns the first command error; per-slot outcomes come from the
	// individual commands.
	_, _ = p.pipe.Exec(ctx)

	results := make([]Result, len(p.cmds))
	for i, cmd := range p.cmds {
		results[i] = Result{Value: cmd.Val(), Err: cmd.Err()}
	}
	return results
}

func toAny(members []string) []any {
	out := make([]any, len(members))
	for i, m := range members {
		out[i] = m
	}
	return out
}

// Package stats maintains the usage counters: monotonically increasing
// chat/message/token tallies in global, daily, monthly and per-user buckets.
// Writes are fire-and-forget pipelined increments; reads aggregate parallel
// point-reads and default every missing key to zero.
package stats

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bloomweaver/backend/internal/common"
	"github.com/bloomweaver/backend/internal/kvstore"
	"github.com/bloomweaver/backend/internal/logging"
)

// Usage is the counter snapshot served to dashboards.
type Usage struct {
	TotalChats    int64 `json:"totalChats"`
	TotalMessages int64 `json:"totalMessages"`
	TotalTokens   int64 `json:"totalTokens"`
	DailyMessages int64 `json:"dailyMessages"`
	DailyTokens   int64 `json:"dailyTokens"`
}

// Recorder writes and reads usage counters.
type Recorder struct {
	store kvstore.Store
	log   logging.Logger
	now   func() time.Time
}

func NewRecorder(store kvstore.Store, log logging.Logger) *Recorder {
	return &Recorder{store: store, log: log, now: time.Now}
}

// Counter keys. Daily and monthly buckets are derived from the calendar
// day/month of the event timestamp and are never reconciled across buckets.
func keyTotal(metric string) string { return "stats:total:" + metric }

func keyDaily(t time.Time, metric string) string {
	return "stats:daily:" + dailyBucket(t) + ":" + metric
}

func keyMonthly(t time.Time, metric string) string {
	return "stats:monthly:" + monthlyBucket(t) + ":" + metric
}

func keyUserTotal(userID, metric string) string {
	return fmt.Sprintf("user:%s:stats:total:%s", userID, metric)
}

func keyUserDaily(userID string, t time.Time, metric string) string {
	return fmt.Sprintf("user:%s:stats:daily:%s:%s", userID, dailyBucket(t), metric)
}

func dailyBucket(t time.Time) string {
	return t.Format("2006-01-02")
}

func monthlyBucket(t time.Time) string {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location()).Format("2006-01-02")
}

// RecordNewChat bumps the chat-creation counters. Failures are logged and
// absorbed; counters never block a chat operation.
func (r *Recorder) RecordNewChat(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	now := r.now()

	results := r.store.Pipeline().
		Incr(keyTotal("chats")).
		Incr(keyDaily(now, "chats")).
		Incr(keyMonthly(now, "chats")).
		Incr(keyUserTotal(userID, "chats")).
		Exec(ctx)

	r.reportFailures(ctx, "record new chat", results)
}

// RecordMessage bumps message and token counters for one turn. In private
// (ephemeral) mode the message counters are suppressed so that private
// activity leaves no message trace, but token counters are still recorded
// for capacity planning.
func (r *Recorder) RecordMessage(ctx context.Context, userID string, tokens int64, privateMode bool) {
	if userID == "" {
		return
	}
	now := r.now()

	p := r.store.Pipeline()

	if !privateMode {
		p.Incr(keyTotal("messages")).
			Incr(keyDaily(now, "messages")).
			Incr(keyMonthly(now, "messages")).
			Incr(keyUserTotal(userID, "messages")).
			Incr(keyUserDaily(userID, now, "messages"))
	}

	p.IncrBy(keyTotal("tokens"), tokens).
		IncrBy(keyDaily(now, "tokens"), tokens).
		IncrBy(keyMonthly(now, "tokens"), tokens).
		IncrBy(keyUserTotal(userID, "tokens"), tokens).
		IncrBy(keyUserDaily(userID, now, "tokens"), tokens)

	r.reportFailures(ctx, "record message", p.Exec(ctx))
}

// Global returns the service-wide counter snapshot.
func (r *Recorder) Global(ctx context.Context) (*Usage, error) {
	now := r.now()
	return r.read(ctx,
		keyTotal("chats"),
		keyTotal("messages"),
		keyTotal("tokens"),
		keyDaily(now, "messages"),
		keyDaily(now, "tokens"))
}

// ForUser returns the caller's counter snapshot.
func (r *Recorder) ForUser(ctx context.Context, userID string) (*Usage, error) {
	now := r.now()
	return r.read(ctx,
		keyUserTotal(userID, "chats"),
		keyUserTotal(userID, "messages"),
		keyUserTotal(userID, "tokens"),
		keyUserDaily(userID, now, "messages"),
		keyUserDaily(userID, now, "tokens"))
}

// read fetches the five counters in parallel. Order: total chats, total
// messages, total tokens, daily messages, daily tokens.
func (r *Recorder) read(ctx context.Context, keys ...string) (*Usage, error) {
	values := make([]int64, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			v, err := r.readCounter(gctx, key)
			if err != nil {
				return err
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Usage{
		TotalChats:    values[0],
		TotalMessages: values[1],
		TotalTokens:   values[2],
		DailyMessages: values[3],
		DailyTokens:   values[4],
	}, nil
}

func (r *Recorder) readCounter(ctx context.Context, key string) (int64, error) {
	v, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("counter %q is not an integer: %w", key, err)
	}
	return n, nil
}

func (r *Recorder) reportFailures(ctx context.Context, op string, results []kvstore.Result) {
	for i, res := range results {
		if res.Err != nil {
			r.log.Error(ctx, "usage counter update failed", "op", op, "slot", i, "error", res.Err)
		}
	}
}

// EstimateTokens approximates the token count of text. GPT-style models
// average about four characters per token; accurate counts would need a
// real tokenizer.
func EstimateTokens(text string) int64 {
	return int64((len(text) + 3) / 4)
}

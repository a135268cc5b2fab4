package tiers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bloomweaver/backend/internal/common"
	"github.com/bloomweaver/backend/internal/kvstore"
	"github.com/bloomweaver/backend/internal/logging"
)

// MessageLimits is the monthly message quota per tier.
var MessageLimits = map[Tier]int64{
	TierFree:    200,
	TierBasic:   1000,
	TierPremium: 10000,
}

// CheckResult reports the outcome of a quota check.
type CheckResult struct {
	OK        bool
	Unlimited bool
	Remaining int64
}

// Policy implements the quota check-and-decrement workflow with lazy user
// initialization and calendar-month refresh.
//
// The shipped configuration runs with Enabled=false: every check succeeds
// with an unbounded quota while the full accounting logic stays live behind
// the flag. That is an intentional bypass, not dead code; tests exercise
// both states.
type Policy struct {
	store   kvstore.Store
	log     logging.Logger
	enabled bool
	now     func() time.Time
}

func NewPolicy(store kvstore.Store, log logging.Logger, enabled bool) *Policy {
	return &Policy{store: store, log: log, enabled: enabled, now: time.Now}
}

func tierKey(userID string) string   { return fmt.Sprintf("user:%s:tier", userID) }
func limitKey(userID string) string  { return fmt.Sprintf("user:%s:limit", userID) }
func periodKey(userID string) string { return fmt.Sprintf("user:%s:period", userID) }

// UserTier returns the stored tier, defaulting to free when absent or
// unreadable.
func (p *Policy) UserTier(ctx context.Context, userID string) Tier {
	v, err := p.store.Get(ctx, tierKey(userID))
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			p.log.Error(ctx, "failed to read user tier", "error", err)
		}
		return TierFree
	}
	return ParseTier(v)
}

// SetUserTier stores a new tier and refreshes the quota for it, as on a
// subscription change.
func (p *Policy) SetUserTier(ctx context.Context, userID string, tier Tier) error {
	if err := p.store.Set(ctx, tierKey(userID), string(tier)); err != nil {
		return fmt.Errorf("storing tier: %w", err)
	}
	return p.refreshLimit(ctx, userID, tier)
}

// CheckAndDecrement verifies the caller has quota for one more message and
// consumes it. A never-before-seen user is lazily initialized on the free
// tier; a stored refresh period from a different calendar month (or year)
// triggers a quota refresh before the check.
func (p *Policy) CheckAndDecrement(ctx context.Context, userID string) (CheckResult, error) {
	if !p.enabled {
		return CheckResult{OK: true, Unlimited: true}, nil
	}

	if err := p.ensureInitialized(ctx, userID); err != nil {
		return CheckResult{}, err
	}

	tier := p.UserTier(ctx, userID)
	if err := p.refreshIfExpired(ctx, userID, tier); err != nil {
		return CheckResult{}, err
	}

	limit, err := p.currentLimit(ctx, userID)
	if err != nil {
		return CheckResult{}, err
	}
	if limit <= 0 {
		return CheckResult{OK: false, Remaining: 0}, nil
	}

	limit--
	if err := p.store.Set(ctx, limitKey(userID), strconv.FormatInt(limit, 10)); err != nil {
		return CheckResult{}, fmt.Errorf("storing limit: %w", err)
	}
	return CheckResult{OK: true, Remaining: limit}, nil
}

// Remaining reports the quota left this period, for dashboards. With the
// policy disabled the quota is unlimited.
func (p *Policy) Remaining(ctx context.Context, userID string) (CheckResult, Tier, error) {
	tier := p.UserTier(ctx, userID)
	if !p.enabled {
		return CheckResult{OK: true, Unlimited: true}, tier, nil
	}

	if err := p.ensureInitialized(ctx, userID); err != nil {
		return CheckResult{}, tier, err
	}
	tier = p.UserTier(ctx, userID)
	if err := p.refreshIfExpired(ctx, userID, tier); err != nil {
		return CheckResult{}, tier, err
	}
	limit, err := p.currentLimit(ctx, userID)
	if err != nil {
		return CheckResult{}, tier, err
	}
	return CheckResult{OK: limit > 0, Remaining: limit}, tier, nil
}

// ensureInitialized seeds tier and quota state on first contact. Presence
// of the tier key marks a user as initialized.
func (p *Policy) ensureInitialized(ctx context.Context, userID string) error {
	_, err := p.store.Get(ctx, tierKey(userID))
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("reading tier: %w", err)
	}

	if err := p.store.Set(ctx, tierKey(userID), string(TierFree)); err != nil {
		return fmt.Errorf("initializing tier: %w", err)
	}
	return p.refreshLimit(ctx, userID, TierFree)
}

// refreshIfExpired resets the quota when the stored period falls in a
// different calendar month than now.
func (p *Policy) refreshIfExpired(ctx context.Context, userID string, tier Tier) error {
	v, err := p.store.Get(ctx, periodKey(userID))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return p.refreshLimit(ctx, userID, tier)
		}
		return fmt.Errorf("reading period: %w", err)
	}

	stored, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return p.refreshLimit(ctx, userID, tier)
	}

	now := p.now()
	if stored.Month() != now.Month() || stored.Year() != now.Year() {
		return p.refreshLimit(ctx, userID, tier)
	}
	return nil
}

func (p *Policy) refreshLimit(ctx context.Context, userID string, tier Tier) error {
	limit := MessageLimits[tier]
	if err := p.store.Set(ctx, limitKey(userID), strconv.FormatInt(limit, 10)); err != nil {
		return fmt.Errorf("storing limit: %w", err)
	}
	if err := p.store.Set(ctx, periodKey(userID), p.now().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("storing period: %w", err)
	}
	return nil
}

func (p *Policy) currentLimit(ctx context.Context, userID string) (int64, error) {
	v, err := p.store.Get(ctx, limitKey(userID))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading limit: %w", err)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("limit is not an integer: %w", err)
	}
	return n, nil
}

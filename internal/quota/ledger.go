package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"swiftapply/internal/domain"
)

// PlanStore persists billing plans for user identities.
type PlanStore interface {
	// PlanFor returns the stored plan record, or domain.ErrNotFound when the
	// user has none.
	PlanFor(ctx context.Context, userID string) (domain.PlanRecord, error)
	// Downgrade persists a pro -> free downgrade.
	Downgrade(ctx context.Context, userID string) error
}

// CounterStore is the durable day-keyed usage counter. Increment must be a
// single atomic create-or-increment so that concurrent consumers serialize
// on the counter itself, never on a prior read.
type CounterStore interface {
	Count(ctx context.Context, identity string, day string) (int, error)
	// Increment adds one to the day's counter and returns the post-increment
	// value. When limit >= 0 and the counter already holds limit or more, no
	// increment happens and ok is false. A negative limit means unlimited.
	Increment(ctx context.Context, identity domain.Identity, day string, limit int) (count int, ok bool, err error)
}

// Ledger applies plan tiers and daily limits to generation attempts.
type Ledger struct {
	plans    PlanStore
	counters CounterStore
	logger   zerolog.Logger
	now      func() time.Time
}

func NewLedger(plans PlanStore, counters CounterStore, logger zerolog.Logger) *Ledger {
	return &Ledger{plans: plans, counters: counters, logger: logger, now: time.Now}
}

// WithClock overrides the ledger clock. Tests use it to cross day
// boundaries and expire plans.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// dayKey is the caller's calendar day in UTC, one counter row per day.
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// resolvePlan determines the caller's effective plan. An expired pro plan
// is downgraded and the downgrade persisted before any quota decision is
// made with it.
func (l *Ledger) resolvePlan(ctx context.Context, id domain.Identity) (domain.Plan, error) {
	if !id.IsUser() {
		return domain.PlanGuest, nil
	}
	rec, err := l.plans.PlanFor(ctx, id.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.PlanFree, nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve plan: %w", err)
	}
	if rec.Expired(l.now()) {
		if err := l.plans.Downgrade(ctx, id.ID); err != nil {
			return "", fmt.Errorf("persist plan downgrade: %w", err)
		}
		l.logger.Info().Str("user_id", id.ID).Msg("expired pro plan downgraded to free")
		return domain.PlanFree, nil
	}
	if !rec.Plan.Valid() {
		return domain.PlanFree, nil
	}
	return rec.Plan, nil
}

// Check reports the caller's standing for today without consuming anything.
func (l *Ledger) Check(ctx context.Context, id domain.Identity) (domain.QuotaInfo, error) {
	plan, err := l.resolvePlan(ctx, id)
	if err != nil {
		return domain.QuotaInfo{}, err
	}
	used, err := l.counters.Count(ctx, id.ID, dayKey(l.now()))
	if err != nil {
		return domain.QuotaInfo{}, fmt.Errorf("read usage counter: %w", err)
	}
	info := domain.QuotaInfo{Plan: plan, Used: used, Limit: plan.DailyLimit()}
	if info.Limit != nil {
		remaining := *info.Limit - used
		if remaining < 0 {
			remaining = 0
		}
		info.Remaining = &remaining
	}
	return info, nil
}

// Consume spends one unit of today's quota. The returned remaining value is
// nil for unlimited plans, which still log usage but never reject. On
// exhaustion the error is a *domain.QuotaExceededError carrying the plan.
func (l *Ledger) Consume(ctx context.Context, id domain.Identity) (*int, error) {
	plan, err := l.resolvePlan(ctx, id)
	if err != nil {
		return nil, err
	}

	limit := -1
	if dl := plan.DailyLimit(); dl != nil {
		limit = *dl
	}

	count, ok, err := l.counters.Increment(ctx, id, dayKey(l.now()), limit)
	if err != nil {
		return nil, fmt.Errorf("increment usage counter: %w", err)
	}
	if !ok {
		return nil, &domain.QuotaExceededError{Plan: plan}
	}

	if limit < 0 {
		l.logger.Debug().Str("identity", id.ID).Int("used", count).Msg("unlimited plan usage logged")
		return nil, nil
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &remaining, nil
}

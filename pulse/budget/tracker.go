package budget

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/promptpulse/errors"
)

// Limits are the configured spend ceilings in USD. Zero means zero: a zero
// budget blocks all paid evaluation.
type Limits struct {
	DailyUSD   float64
	MonthlyUSD float64
}

// Status reports current spend against the configured limits.
type Status struct {
	SpendToday       float64 `json:"spend_today"`
	SpendThisMonth   float64 `json:"spend_this_month"`
	DailyLimitUSD    float64 `json:"daily_limit_usd"`
	MonthlyLimitUSD  float64 `json:"monthly_limit_usd"`
	DailyRemaining   float64 `json:"daily_remaining"`
	MonthlyRemaining float64 `json:"monthly_remaining"`
}

// Tracker persists evaluation spend per day and gates submissions against
// the limits. Safe for concurrent use.
type Tracker struct {
	db      *sql.DB
	limits  Limits
	logger  *zap.SugaredLogger
	mu      sync.Mutex
	timeNow func() time.Time
}

// NewTracker creates a spend tracker over db.
func NewTracker(db *sql.DB, limits Limits, log *zap.SugaredLogger) *Tracker {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Tracker{db: db, limits: limits, logger: log, timeNow: time.Now}
}

// UpdateLimits swaps the spend ceilings. Called on config reload; checks in
// flight finish against the limits they started with.
func (t *Tracker) UpdateLimits(limits Limits) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limits = limits
	t.logger.Infow("Budget limits updated",
		"daily_usd", limits.DailyUSD,
		"monthly_usd", limits.MonthlyUSD,
	)
}

// Check rejects a submission whose estimated cost would push spend past the
// daily or monthly limit.
func (t *Tracker) Check(ctx context.Context, estimatedCost float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	status, err := t.statusLocked(ctx)
	if err != nil {
		return err
	}

	if status.SpendToday+estimatedCost > t.limits.DailyUSD {
		return errors.Newf("daily evaluation budget exceeded: spent $%.4f of $%.2f, estimated cost $%.4f",
			status.SpendToday, t.limits.DailyUSD, estimatedCost)
	}
	if status.SpendThisMonth+estimatedCost > t.limits.MonthlyUSD {
		return errors.Newf("monthly evaluation budget exceeded: spent $%.4f of $%.2f, estimated cost $%.4f",
			status.SpendThisMonth, t.limits.MonthlyUSD, estimatedCost)
	}
	return nil
}

// RecordSpend adds actual cost to today's spend row.
func (t *Tracker) RecordSpend(ctx context.Context, amount float64) error {
	if amount <= 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	day := t.timeNow().UTC().Format("2006-01-02")
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO eval_spend (day, amount) VALUES (?, ?)
		ON CONFLICT (day) DO UPDATE SET amount = amount + excluded.amount`,
		day, amount)
	if err != nil {
		return errors.WrapStorageFailure(err, "record spend")
	}

	t.logger.Debugw("Evaluation spend recorded", "day", day, "amount", amount)
	return nil
}

// Status returns current spend against the limits.
func (t *Tracker) Status(ctx context.Context) (*Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusLocked(ctx)
}

func (t *Tracker) statusLocked(ctx context.Context) (*Status, error) {
	now := t.timeNow().UTC()
	today := now.Format("2006-01-02")
	monthStart := now.AddDate(0, 0, -30).Format("2006-01-02")

	var spendToday float64
	err := t.db.QueryRowContext(ctx,
		`SELECT COALESCE(amount, 0) FROM eval_spend WHERE day = ?`, today,
	).Scan(&spendToday)
	if errors.Is(err, sql.ErrNoRows) {
		spendToday = 0
	} else if err != nil {
		return nil, errors.WrapStorageFailure(err, "query daily spend")
	}

	// Sliding 30-day window rather than calendar month, so spend cannot be
	// gamed at a month boundary.
	var spendMonth float64
	err = t.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM eval_spend WHERE day > ?`, monthStart,
	).Scan(&spendMonth)
	if err != nil {
		return nil, errors.WrapStorageFailure(err, "query monthly spend")
	}

	status := &Status{
		SpendToday:      spendToday,
		SpendThisMonth:  spendMonth,
		DailyLimitUSD:   t.limits.DailyUSD,
		MonthlyLimitUSD: t.limits.MonthlyUSD,
	}
	status.DailyRemaining = t.limits.DailyUSD - spendToday
	if status.DailyRemaining < 0 {
		status.DailyRemaining = 0
	}
	status.MonthlyRemaining = t.limits.MonthlyUSD - spendMonth
	if status.MonthlyRemaining < 0 {
		status.MonthlyRemaining = 0
	}
	return status, nil
}

// Package usage decides whether a user may start another assistant turn.
package usage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
	"github.com/dustin/go-humanize"
	"margin/internal/capabilities"
	"margin/internal/domain"
	"margin/internal/domain/models"
	"margin/internal/domain/repositories"
	"margin/internal/domain/services"
	"margin/internal/metrics"
)

// Gate implements services.UsageGate. Decisions are computed from the ledger
// on every call. No slot is reserved between Check and Record, so concurrent
// turns from one user can each pass a check taken before the others recorded.
type Gate struct {
	profiles repositories.ProfileRepository
	ledger   repositories.UsageRepository
	plans    *capabilities.Registry
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewGate creates a usage gate
func NewGate(
	profiles repositories.ProfileRepository,
	ledger repositories.UsageRepository,
	plans *capabilities.Registry,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Gate {
	return &Gate{
		profiles: profiles,
		ledger:   ledger,
		plans:    plans,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ services.UsageGate = (*Gate)(nil)

// window is the counting window of one plan for one profile
type window struct {
	plan     *capabilities.Plan
	start    time.Time
	resetsAt *time.Time
	info     string
}

// Evaluate returns the current decision. Read-only apart from the lazy
// profile insert.
func (g *Gate) Evaluate(ctx context.Context, userID, email string) (*models.UsageDecision, error) {
	profile, err := g.profiles.GetOrCreate(ctx, userID, email)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	now := g.now()
	w, err := g.resolve(profile, now)
	if err != nil {
		return nil, err
	}

	used, err := g.ledger.CountSince(ctx, userID, w.start)
	if err != nil {
		return nil, fmt.Errorf("count usage: %w", err)
	}

	remaining := w.plan.Limit - used
	if remaining < 0 {
		remaining = 0
	}
	return &models.UsageDecision{
		Plan:           w.plan.ReportAs,
		Used:           used,
		Limit:          w.plan.Limit,
		Remaining:      remaining,
		IsTrial:        w.plan.ID == capabilities.PlanTrial,
		TrialExpiresAt: profile.TrialExpiresAt,
		ResetInfo:      w.info,
		ResetsAt:       w.resetsAt,
		PlanID:         w.plan.ID,
		LimitCode:      w.plan.LimitCode,
		WindowStart:    w.start,
	}, nil
}

// Check evaluates and rejects with *domain.LimitExceededError when used >= limit
func (g *Gate) Check(ctx context.Context, userID, email string) (*models.UsageDecision, error) {
	d, err := g.Evaluate(ctx, userID, email)
	if err != nil {
		return nil, err
	}
	if d.Allowed() {
		return d, nil
	}

	g.metrics.UsageRejected(d.LimitCode)
	g.logger.Info("usage limit reached",
		"user_id", userID,
		"plan", d.PlanID,
		"used", d.Used,
		"limit", d.Limit,
	)
	return d, &domain.LimitExceededError{
		Code:           d.LimitCode,
		Plan:           d.Plan,
		Used:           d.Used,
		Limit:          d.Limit,
		IsTrial:        d.IsTrial,
		TrialExpiresAt: d.TrialExpiresAt,
	}
}

// Plan returns the user's effective plan without counting usage
func (g *Gate) Plan(ctx context.Context, userID, email string) (*capabilities.Plan, error) {
	profile, err := g.profiles.GetOrCreate(ctx, userID, email)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	w, err := g.resolve(profile, g.now())
	if err != nil {
		return nil, err
	}
	return w.plan, nil
}

// Record appends one ledger entry for a completed turn
func (g *Gate) Record(ctx context.Context, entry *models.UsageEntry) error {
	if err := g.ledger.Record(ctx, entry); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// resolve picks the tier (active paid > active trial > free) and its window
func (g *Gate) resolve(p *models.Profile, now time.Time) (*window, error) {
	switch {
	case p.HasActiveSubscription():
		plan, err := g.plans.Plan(capabilities.PlanPro)
		if err != nil {
			return nil, err
		}
		return billingWindow(plan, p, now), nil

	case p.HasActiveTrial(now):
		plan, err := g.plans.Plan(capabilities.PlanTrial)
		if err != nil {
			return nil, err
		}
		end := p.TrialExpiresAt.UTC()
		return &window{
			plan:     plan,
			start:    end.AddDate(0, 0, -plan.WindowDays),
			resetsAt: &end,
			info:     "trial ends " + humanize.RelTime(end, now, "ago", "from now"),
		}, nil

	default:
		plan, err := g.plans.Plan(capabilities.PlanFree)
		if err != nil {
			return nil, err
		}
		return dailyWindow(plan, now)
	}
}

// dailyWindow starts at the last cron tick (UTC midnight for the default plan)
func dailyWindow(plan *capabilities.Plan, now time.Time) (*window, error) {
	start, err := gronx.PrevTickBefore(plan.ResetCron, now, true)
	if err != nil {
		return nil, fmt.Errorf("plan %s reset schedule: %w", plan.ID, err)
	}
	next, err := gronx.NextTickAfter(plan.ResetCron, now, false)
	if err != nil {
		return nil, fmt.Errorf("plan %s reset schedule: %w", plan.ID, err)
	}
	return &window{
		plan:     plan,
		start:    start,
		resetsAt: &next,
		info:     "resets " + humanize.RelTime(next, now, "ago", "from now"),
	}, nil
}

// billingWindow follows the billing cycle anchor's monthly anniversaries,
// falling back to period end minus the window, then to a rolling window.
func billingWindow(plan *capabilities.Plan, p *models.Profile, now time.Time) *window {
	if p.BillingCycleAnchor != nil && !p.BillingCycleAnchor.After(now) {
		anchor := p.BillingCycleAnchor.UTC()
		months := (now.Year()-anchor.Year())*12 + int(now.Month()-anchor.Month())
		start := addMonths(anchor, months)
		if start.After(now) {
			months--
			start = addMonths(anchor, months)
		}
		end := addMonths(anchor, months+1)
		return &window{
			plan:     plan,
			start:    start,
			resetsAt: &end,
			info:     "resets " + humanize.RelTime(end, now, "ago", "from now"),
		}
	}

	if p.CurrentPeriodEnd != nil && p.CurrentPeriodEnd.After(now) {
		end := p.CurrentPeriodEnd.UTC()
		return &window{
			plan:     plan,
			start:    end.AddDate(0, 0, -plan.WindowDays),
			resetsAt: &end,
			info:     "resets " + humanize.RelTime(end, now, "ago", "from now"),
		}
	}

	return &window{
		plan:  plan,
		start: now.AddDate(0, 0, -plan.WindowDays),
		info:  fmt.Sprintf("rolling %d-day window", plan.WindowDays),
	}
}

// addMonths moves t by n calendar months, clamping the day to the target
// month's length (Jan 31 + 1 month = Feb 28/29).
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

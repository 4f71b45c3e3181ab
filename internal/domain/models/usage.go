package models

import "time"

// Subscription statuses written onto the profile by the billing system.
const (
	SubscriptionNone     = "none"
	SubscriptionActive   = "active"
	SubscriptionTrialing = "trialing"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
)

// Profile is the per-user record the usage gate reads. Created lazily with
// free defaults; billing fields are owned by the payment integration.
type Profile struct {
	UserID             string     `json:"userId"`
	Email              string     `json:"email"`
	Plan               string     `json:"plan"`
	SubscriptionStatus string     `json:"subscriptionStatus"`
	TrialExpiresAt     *time.Time `json:"trialExpiresAt,omitempty"`
	BillingCycleAnchor *time.Time `json:"billingCycleAnchor,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"currentPeriodEnd,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// HasActiveSubscription reports a paid subscription in good standing.
func (p *Profile) HasActiveSubscription() bool {
	if p.Plan != "pro" {
		return false
	}
	return p.SubscriptionStatus == SubscriptionActive || p.SubscriptionStatus == SubscriptionPastDue
}

// HasActiveTrial reports an unexpired trial at now.
func (p *Profile) HasActiveTrial(now time.Time) bool {
	return p.TrialExpiresAt != nil && now.Before(*p.TrialExpiresAt)
}

// UsageDecision is the gate's per-request answer. Never cached.
type UsageDecision struct {
	Plan           string     `json:"plan"` // free or pro
	Used           int        `json:"used"`
	Limit          int        `json:"limit"`
	Remaining      int        `json:"remaining"`
	IsTrial        bool       `json:"isTrial"`
	TrialExpiresAt *time.Time `json:"trialExpiresAt"`
	ResetInfo      string     `json:"resetInfo"`
	ResetsAt       *time.Time `json:"resetsAt,omitempty"`

	// Not serialized: internal plan id and window used for the count
	PlanID      string    `json:"-"`
	LimitCode   string    `json:"-"`
	WindowStart time.Time `json:"-"`
}

// Allowed reports whether another turn may start.
func (d *UsageDecision) Allowed() bool {
	return d.Used < d.Limit
}

// UsageEntry is one ledger row, written per successful turn.
type UsageEntry struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	ProjectID    string    `json:"projectId"`
	MessageID    string    `json:"messageId"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"inputTokens"`
	OutputTokens int       `json:"outputTokens"`
	Rounds       int       `json:"rounds"`
	CreatedAt    time.Time `json:"createdAt"`
}

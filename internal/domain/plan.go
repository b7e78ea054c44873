package domain

import "time"

// Plan enumerates billing plans.
type Plan string

const (
	PlanGuest Plan = "guest"
	PlanFree  Plan = "free"
	PlanPro   Plan = "pro"
)

// DailyLimit returns the plan's daily generation allowance. Nil means
// unlimited.
func (p Plan) DailyLimit() *int {
	var limit int
	switch p {
	case PlanGuest:
		limit = 3
	case PlanFree:
		limit = 6
	case PlanPro:
		return nil
	default:
		limit = 0
	}
	return &limit
}

// Valid reports whether p is a known plan tier.
func (p Plan) Valid() bool {
	switch p {
	case PlanGuest, PlanFree, PlanPro:
		return true
	}
	return false
}

// PlanRecord is the stored billing state for a user identity.
type PlanRecord struct {
	Plan      Plan
	ExpiresAt *time.Time
}

// Expired reports whether a pro plan has lapsed at the given instant.
func (r PlanRecord) Expired(now time.Time) bool {
	return r.Plan == PlanPro && r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// QuotaInfo describes the caller's quota standing for the current day.
// Limit and Remaining are nil for unlimited plans.
type QuotaInfo struct {
	Plan      Plan `json:"plan"`
	Used      int  `json:"used"`
	Limit     *int `json:"limit"`
	Remaining *int `json:"remaining"`
}

package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrValidation             = errors.New("invalid request")
	ErrMissingIdentity        = errors.New("no user authentication or device_id provided")
	ErrMissingStageDependency = errors.New("missing stage dependency")
	ErrNoMatchingTemplate     = errors.New("no matching template")
	ErrUpstream               = errors.New("completion service failure")
	ErrUpstreamParse          = errors.New("completion service returned unparseable output")
)

// QuotaExceededError carries the plan tier so callers can present the right
// upgrade path (guest -> sign up, free -> upgrade to pro).
type QuotaExceededError struct {
	Plan Plan
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily quota exceeded for %s plan", e.Plan)
}

// AsQuotaExceeded unwraps err into a QuotaExceededError when possible.
func AsQuotaExceeded(err error) (*QuotaExceededError, bool) {
	var qe *QuotaExceededError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"swiftapply/internal/domain"
	"swiftapply/internal/i18n"
	"swiftapply/internal/middleware"
)

// QuotaCheck reports the caller's standing for today without consuming
// anything. Guests identify through the device_id query parameter.
func (a *App) QuotaCheck(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r, r.URL.Query().Get("device_id"))
	if err != nil {
		a.error(w, http.StatusUnauthorized, "missing_identity", err.Error())
		return
	}

	info, err := a.Ledger.Check(r.Context(), id)
	if err != nil {
		a.Logger.Error().Err(err).Msg("quota check failed")
		a.error(w, http.StatusInternalServerError, "internal_error", "quota check failed")
		return
	}
	a.json(w, http.StatusOK, info)
}

type quotaUseRequest struct {
	DeviceID string `json:"device_id"`
}

type quotaUseResponse struct {
	Success bool `json:"success"`
	// Remaining is null for unlimited plans and on failure.
	Remaining *int    `json:"remaining"`
	Message   string  `json:"message,omitempty"`
	UserType  *string `json:"user_type,omitempty"`
}

// QuotaUse consumes one unit of today's allowance. Exhaustion is a normal
// outcome, reported inside a 200 body so clients branch on success rather
// than on status codes.
func (a *App) QuotaUse(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var body quotaUseRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		a.error(w, http.StatusBadRequest, "validation_error", "invalid request body")
		return
	}

	id, err := identity(r, body.DeviceID)
	if err != nil {
		a.error(w, http.StatusUnauthorized, "missing_identity", err.Error())
		return
	}

	remaining, err := a.Ledger.Consume(r.Context(), id)
	if qe, ok := domain.AsQuotaExceeded(err); ok {
		plan := string(qe.Plan)
		locale := middleware.LocaleFromContext(r.Context())
		a.recordUsageEvent(r, id, "quota_use", false, started)
		a.json(w, http.StatusOK, quotaUseResponse{
			Success:  false,
			Message:  i18n.QuotaExceededMessage(locale, qe.Plan),
			UserType: &plan,
		})
		return
	}
	if err != nil {
		a.Logger.Error().Err(err).Msg("quota consume failed")
		a.error(w, http.StatusInternalServerError, "internal_error", "quota consume failed")
		return
	}

	a.recordUsageEvent(r, id, "quota_use", true, started)
	a.json(w, http.StatusOK, quotaUseResponse{Success: true, Remaining: remaining})
}

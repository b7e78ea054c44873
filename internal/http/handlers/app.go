package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"swiftapply/internal/domain"
	"swiftapply/internal/infra"
	"swiftapply/internal/middleware"
	"swiftapply/internal/pipeline"
	"swiftapply/internal/quota"
	"swiftapply/internal/sqlinline"
)

// App carries the shared dependencies for every HTTP handler. SQL may be
// nil when the deployment runs without the audit trail (usage events are
// then skipped).
type App struct {
	Config   *infra.Config
	Logger   zerolog.Logger
	SQL      infra.SQLExecutor
	Ledger   *quota.Ledger
	Pipeline *pipeline.Orchestrator
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, slug, msg string) {
	a.json(w, code, apiError{Error: slug, Message: msg})
}

// identity resolves the caller principal: an authenticated user id when
// the request carried a valid token, otherwise the self-asserted device
// id. A verified user always wins over a device id sent alongside it.
func identity(r *http.Request, deviceID string) (domain.Identity, error) {
	if userID := middleware.UserIDFromContext(r.Context()); userID != "" {
		return domain.UserIdentity(userID), nil
	}
	if id := strings.TrimSpace(deviceID); id != "" {
		return domain.DeviceIdentity(id), nil
	}
	return domain.Identity{}, domain.ErrMissingIdentity
}

// errorStatus maps domain errors onto HTTP status and a stable error slug.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrMissingIdentity):
		return http.StatusUnauthorized, "missing_identity"
	case errors.Is(err, domain.ErrMissingStageDependency):
		return http.StatusBadRequest, "missing_stage_dependency"
	case errors.Is(err, domain.ErrNoMatchingTemplate):
		return http.StatusBadRequest, "no_matching_template"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	}
	if _, ok := domain.AsQuotaExceeded(err); ok {
		return http.StatusForbidden, "quota_exceeded"
	}
	return http.StatusInternalServerError, "internal_error"
}

// recordUsageEvent appends one row to the audit trail, best effort. The
// request id only lands in the row when it is a UUID we minted ourselves.
func (a *App) recordUsageEvent(r *http.Request, id domain.Identity, eventType string, success bool, started time.Time) {
	if a.SQL == nil {
		return
	}
	var requestID any
	if rid, err := uuid.Parse(middleware.RequestIDFromContext(r.Context())); err == nil {
		requestID = rid
	}
	_, err := a.SQL.Exec(r.Context(), sqlinline.QInsertUsageEvent,
		id.ID, requestID, eventType, success, time.Since(started).Milliseconds())
	if err != nil {
		a.Logger.Warn().Err(err).Str("event", eventType).Msg("usage event not recorded")
	}
}

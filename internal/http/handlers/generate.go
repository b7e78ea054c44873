package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"swiftapply/internal/domain"
	"swiftapply/internal/i18n"
	"swiftapply/internal/middleware"
	"swiftapply/internal/pipeline"
	"swiftapply/internal/stream"
)

type writerSink struct {
	w *stream.Writer
}

func (s writerSink) Send(f stream.Frame) error {
	return s.w.Write(f)
}

// GenerateStream runs one pipeline stage and streams its frames as
// newline-delimited JSON. Only the classifier stage consumes quota; the
// later stages ride on the unit already spent when their chain started.
// Quota is never refunded when a stage fails after it was consumed.
//
// This endpoint and POST /quota/use are alternative gates, not a
// sequence: the classifier call gates itself, so a client that also calls
// /quota/use before starting a run pays twice. /quota/use is for callers
// that meter generation outside this endpoint.
func (a *App) GenerateStream(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req domain.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "validation_error", "invalid request body")
		return
	}

	id, err := identity(r, req.DeviceID)
	if err != nil {
		a.error(w, http.StatusUnauthorized, "missing_identity", err.Error())
		return
	}

	if err := pipeline.Validate(req); err != nil {
		code, slug := errorStatus(err)
		a.error(w, code, slug, err.Error())
		return
	}

	if req.Stage == domain.StageClassifier {
		if _, err := a.Ledger.Consume(r.Context(), id); err != nil {
			if qe, ok := domain.AsQuotaExceeded(err); ok {
				locale := middleware.LocaleFromContext(r.Context())
				a.json(w, http.StatusForbidden, map[string]any{
					"error":     "quota_exceeded",
					"message":   i18n.QuotaExceededMessage(locale, qe.Plan),
					"user_type": string(qe.Plan),
				})
				return
			}
			a.Logger.Error().Err(err).Msg("quota consume failed")
			a.error(w, http.StatusInternalServerError, "internal_error", "quota consume failed")
			return
		}
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	sink := writerSink{w: stream.NewWriter(w)}
	if err := a.Pipeline.RunStage(r.Context(), req, sink); err != nil {
		// no frame has been written yet, a plain error response is still possible
		code, slug := errorStatus(err)
		a.error(w, code, slug, err.Error())
		a.recordUsageEvent(r, id, "generate_"+string(req.Stage), false, started)
		return
	}

	a.recordUsageEvent(r, id, "generate_"+string(req.Stage), true, started)
}

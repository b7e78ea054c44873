package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"swiftapply/internal/ai"
	"swiftapply/internal/domain"
	"swiftapply/internal/infra"
	"swiftapply/internal/pipeline"
	"swiftapply/internal/quota"
	"swiftapply/internal/stream"
)

type fixedCompleter struct {
	content string
	err     error
}

func (f *fixedCompleter) Stream(ctx context.Context, prompt string, opts ai.StreamOptions, onDelta ai.StreamFunc) (*ai.Completion, error) {
	if f.err != nil {
		return nil, f.err
	}
	if onDelta != nil {
		onDelta(f.content)
	}
	return &ai.Completion{Content: f.content, Tokens: ai.TokenUsage{Total: 5}}, nil
}

func newGenerateApp(t *testing.T, completer ai.Completer) *App {
	t.Helper()
	ledger := quota.NewLedger(quota.NewMemoryPlans(), quota.NewMemoryCounters(), zerolog.Nop())
	return &App{
		Config:   &infra.Config{DefaultLocale: "en"},
		Logger:   zerolog.Nop(),
		Ledger:   ledger,
		Pipeline: pipeline.NewOrchestrator(completer, zerolog.Nop(), time.Minute),
	}
}

func classifierRequestBody(t *testing.T, mutate func(*domain.GenerateRequest)) *bytes.Buffer {
	t.Helper()
	req := domain.GenerateRequest{
		JD: domain.JobDescription{
			Title:       "Account Executive",
			Description: "Own the full sales cycle for mid-market accounts.",
		},
		Templates: []domain.Template{
			{TargetRole: "Sales", Title: "Sales Experience", Content: []string{"Acme | AE | 2020-2023"}},
		},
		Stage:    domain.StageClassifier,
		DeviceID: "dev-gen",
	}
	if mutate != nil {
		mutate(&req)
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		t.Fatalf("encode request: %v", err)
	}
	return &buf
}

func decodeFrames(t *testing.T, body []byte) []stream.Frame {
	t.Helper()
	var dec stream.Decoder
	frames, err := dec.Feed(body)
	if err != nil {
		t.Fatalf("decode frames: %v", err)
	}
	if dec.Buffered() != 0 {
		t.Fatalf("stream ends with %d buffered bytes", dec.Buffered())
	}
	return frames
}

func TestGenerateStreamClassifier(t *testing.T) {
	app := newGenerateApp(t, &fixedCompleter{content: `{"roleType":"Sales","keywords":["crm"],"insights":["Lead with revenue"]}`})

	req := httptest.NewRequest(http.MethodPost, "/generate/stream", classifierRequestBody(t, nil))
	rec := httptest.NewRecorder()
	app.GenerateStream(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content-type = %q", ct)
	}

	frames := decodeFrames(t, rec.Body.Bytes())
	want := []stream.FrameType{
		stream.FrameStageStart,
		stream.FrameContentChunk,
		stream.FrameStageComplete,
		stream.FrameDone,
	}
	if len(frames) != len(want) {
		t.Fatalf("decoded %d frames, want %d", len(frames), len(want))
	}
	for i, f := range frames {
		if f.Type != want[i] {
			t.Fatalf("frame %d type = %q, want %q", i, f.Type, want[i])
		}
		if f.Timestamp == 0 {
			t.Fatalf("frame %d has no timestamp", i)
		}
	}

	payload, err := frames[2].RawResult()
	if err != nil {
		t.Fatalf("RawResult() error = %v", err)
	}
	var result domain.ClassifierResult
	if err := json.Unmarshal(payload, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.RoleType != "Sales" {
		t.Fatalf("roleType = %q, want %q", result.RoleType, "Sales")
	}
}

func TestGenerateStreamConsumesQuotaOnlyForClassifier(t *testing.T) {
	app := newGenerateApp(t, &fixedCompleter{content: `{"roleType":"Sales","keywords":[],"insights":[]}`})

	// a guest holds 3 units; classifier runs burn them
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/generate/stream", classifierRequestBody(t, nil))
		rec := httptest.NewRecorder()
		app.GenerateStream(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("run %d status = %d, want %d", i, rec.Code, http.StatusOK)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/generate/stream", classifierRequestBody(t, nil))
	rec := httptest.NewRecorder()
	app.GenerateStream(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("exhausted classifier status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "quota_exceeded" || body["user_type"] != "guest" {
		t.Fatalf("body = %v", body)
	}

	// later stages ride on the unit already spent
	app.Pipeline = pipeline.NewOrchestrator(&fixedCompleter{content: "rewritten experience"}, zerolog.Nop(), time.Minute)
	req = httptest.NewRequest(http.MethodPost, "/generate/stream", classifierRequestBody(t, func(r *domain.GenerateRequest) {
		r.Stage = domain.StageExperience
		r.StageData.Classifier = &domain.ClassifierResult{RoleType: "Sales"}
	}))
	rec = httptest.NewRecorder()
	app.GenerateStream(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("experience status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
}

func TestGenerateStreamValidationFailuresArePlainErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*domain.GenerateRequest)
		wantSlug string
	}{
		{
			name:     "missing jd",
			mutate:   func(r *domain.GenerateRequest) { r.JD.Description = "" },
			wantSlug: "validation_error",
		},
		{
			name: "experience without classifier",
			mutate: func(r *domain.GenerateRequest) {
				r.Stage = domain.StageExperience
			},
			wantSlug: "missing_stage_dependency",
		},
		{
			name: "no template for classified role",
			mutate: func(r *domain.GenerateRequest) {
				r.Stage = domain.StageExperience
				r.StageData.Classifier = &domain.ClassifierResult{RoleType: "Astronaut"}
			},
			wantSlug: "no_matching_template",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := newGenerateApp(t, &fixedCompleter{err: errors.New("must not be called")})

			req := httptest.NewRequest(http.MethodPost, "/generate/stream", classifierRequestBody(t, tc.mutate))
			rec := httptest.NewRecorder()
			app.GenerateStream(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			var body apiError
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v (raw %s)", err, rec.Body.String())
			}
			if body.Error != tc.wantSlug {
				t.Fatalf("error slug = %q, want %q", body.Error, tc.wantSlug)
			}
		})
	}
}

func TestGenerateStreamRequiresIdentity(t *testing.T) {
	app := newGenerateApp(t, &fixedCompleter{content: "{}"})

	req := httptest.NewRequest(http.MethodPost, "/generate/stream", classifierRequestBody(t, func(r *domain.GenerateRequest) {
		r.DeviceID = ""
	}))
	rec := httptest.NewRecorder()
	app.GenerateStream(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestGenerateStreamUpstreamFailureStreamsStageError(t *testing.T) {
	app := newGenerateApp(t, &fixedCompleter{err: errors.New("connection reset")})

	req := httptest.NewRequest(http.MethodPost, "/generate/stream", classifierRequestBody(t, nil))
	rec := httptest.NewRecorder()
	app.GenerateStream(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	frames := decodeFrames(t, rec.Body.Bytes())
	want := []stream.FrameType{stream.FrameStageStart, stream.FrameStageError, stream.FrameDone}
	if len(frames) != len(want) {
		t.Fatalf("decoded %d frames, want %d", len(frames), len(want))
	}
	for i, f := range frames {
		if f.Type != want[i] {
			t.Fatalf("frame %d type = %q, want %q", i, f.Type, want[i])
		}
	}

	// the failed run already spent its unit; quota is not refunded
	check := httptest.NewRequest(http.MethodGet, "/quota/check?device_id=dev-gen", nil)
	checkRec := httptest.NewRecorder()
	app.QuotaCheck(checkRec, check)
	var info domain.QuotaInfo
	if err := json.NewDecoder(checkRec.Body).Decode(&info); err != nil {
		t.Fatalf("decode quota info: %v", err)
	}
	if info.Used != 1 {
		t.Fatalf("used = %d after failed run, want 1", info.Used)
	}
}

func TestGenerateStreamRejectsMalformedBody(t *testing.T) {
	app := newGenerateApp(t, &fixedCompleter{content: "{}"})

	req := httptest.NewRequest(http.MethodPost, "/generate/stream", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	app.GenerateStream(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

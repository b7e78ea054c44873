package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"swiftapply/internal/ai"
	"swiftapply/internal/domain"
	"swiftapply/internal/stream"
)

// Sink receives the frames produced while a stage runs.
type Sink interface {
	Send(f stream.Frame) error
}

// Orchestrator runs one generation stage against the external completion
// service. It holds no state between stages: the caller re-supplies prior
// outputs through StageData on every request.
type Orchestrator struct {
	Completer    ai.Completer
	Logger       zerolog.Logger
	StageTimeout time.Duration
}

func NewOrchestrator(completer ai.Completer, logger zerolog.Logger, stageTimeout time.Duration) *Orchestrator {
	return &Orchestrator{Completer: completer, Logger: logger, StageTimeout: stageTimeout}
}

const maxOutputTokens = 4000

// stageOptions tunes the upstream call: structured stages run cold for
// output consistency, the experience stage runs warmer for varied phrasing.
func stageOptions(stage domain.Stage) ai.StreamOptions {
	if stage == domain.StageExperience {
		return ai.StreamOptions{Temperature: 0.7, MaxTokens: maxOutputTokens}
	}
	return ai.StreamOptions{Temperature: 0.1, MaxTokens: maxOutputTokens}
}

// Validate checks that the request carries everything its stage depends on,
// without touching the upstream service.
func Validate(req domain.GenerateRequest) error {
	if !req.Stage.Valid() {
		return fmt.Errorf("%w: unknown stage %q", domain.ErrValidation, req.Stage)
	}
	if req.JD.Title == "" || req.JD.Description == "" {
		return fmt.Errorf("%w: missing jd information", domain.ErrValidation)
	}
	if len(req.Templates) == 0 {
		return fmt.Errorf("%w: missing experience templates", domain.ErrValidation)
	}

	switch req.Stage {
	case domain.StageExperience:
		if req.StageData.Classifier == nil || !req.StageData.Classifier.Complete() {
			return fmt.Errorf("%w: experience stage requires a completed classifier result", domain.ErrMissingStageDependency)
		}
	case domain.StageReviewer:
		if req.StageData.Classifier == nil || !req.StageData.Classifier.Complete() {
			return fmt.Errorf("%w: reviewer stage requires a completed classifier result", domain.ErrMissingStageDependency)
		}
		if req.StageData.Experience == nil || !req.StageData.Experience.Complete() {
			return fmt.Errorf("%w: reviewer stage requires a completed experience result", domain.ErrMissingStageDependency)
		}
		if req.PersonalInfo == nil {
			return fmt.Errorf("%w: missing personal information", domain.ErrValidation)
		}
	}
	return nil
}

// buildPrompt assembles the stage prompt, failing before any upstream call
// when the request cannot support it.
func buildPrompt(req domain.GenerateRequest) (string, error) {
	switch req.Stage {
	case domain.StageClassifier:
		return buildClassifierPrompt(req), nil
	case domain.StageExperience:
		cls := *req.StageData.Classifier
		tpl, ok := req.TemplateForRole(cls.RoleType)
		if !ok {
			return "", fmt.Errorf("%w: no template found for classified role %q", domain.ErrNoMatchingTemplate, cls.RoleType)
		}
		return buildExperiencePrompt(cls, tpl), nil
	case domain.StageReviewer:
		return buildReviewerPrompt(*req.StageData.Classifier, *req.StageData.Experience, req.PersonalInfo), nil
	}
	return "", fmt.Errorf("%w: unknown stage %q", domain.ErrValidation, req.Stage)
}

// RunStage executes the requested stage, forwarding frames to sink in
// order: stage_start, content_chunk per token, stage_complete or
// stage_error, done. Failures detectable before streaming return an error
// with no frame written; mid-stream failures surface as a stage_error
// frame and a nil return.
func (o *Orchestrator) RunStage(ctx context.Context, req domain.GenerateRequest, sink Sink) error {
	if err := Validate(req); err != nil {
		return err
	}
	prompt, err := buildPrompt(req)
	if err != nil {
		return err
	}

	if o.StageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.StageTimeout)
		defer cancel()
	}

	stage := string(req.Stage)
	if err := sink.Send(stream.Frame{Type: stream.FrameStageStart, Stage: stage}); err != nil {
		return nil
	}

	start := time.Now()
	var full strings.Builder
	completion, err := o.Completer.Stream(ctx, prompt, stageOptions(req.Stage), func(delta string) {
		full.WriteString(delta)
		_ = sink.Send(stream.Frame{
			Type:        stream.FrameContentChunk,
			Stage:       stage,
			Chunk:       delta,
			FullContent: full.String(),
		})
	})
	if err != nil {
		o.Logger.Error().Err(err).Str("stage", stage).Msg("completion stream failed")
		o.fail(sink, stage, fmt.Errorf("%w: %v", domain.ErrUpstream, err))
		return nil
	}

	result, err := parseStageResult(req, completion.Content)
	if err != nil {
		o.Logger.Error().Err(err).Str("stage", stage).Msg("stage output rejected")
		o.fail(sink, stage, err)
		return nil
	}

	_ = sink.Send(stream.Frame{
		Type:     stream.FrameStageComplete,
		Stage:    stage,
		Result:   result,
		Tokens:   &completion.Tokens,
		Duration: time.Since(start).Milliseconds(),
	})
	_ = sink.Send(stream.Frame{Type: stream.FrameDone})
	return nil
}

func (o *Orchestrator) fail(sink Sink, stage string, err error) {
	_ = sink.Send(stream.Frame{Type: stream.FrameStageError, Stage: stage, Error: err.Error()})
	_ = sink.Send(stream.Frame{Type: stream.FrameDone})
}

// parseStageResult interprets the accumulated upstream output as the
// stage's expected shape.
func parseStageResult(req domain.GenerateRequest, content string) (domain.StageResult, error) {
	switch req.Stage {
	case domain.StageClassifier:
		var result domain.ClassifierResult
		if err := ai.ParsePayload(content, &result); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamParse, err)
		}
		if !result.Complete() {
			return nil, fmt.Errorf("%w: classifier returned no role type", domain.ErrUpstreamParse)
		}
		if _, ok := req.TemplateForRole(result.RoleType); !ok {
			return nil, fmt.Errorf("%w: role type %q is not in the allowed set", domain.ErrUpstreamParse, result.RoleType)
		}
		return result, nil

	case domain.StageExperience:
		// the generator is prompted for {"workExperience": ...}; accept the
		// bare text as-is when the wrapper is absent
		var result domain.ExperienceResult
		if err := ai.ParsePayload(content, &result); err == nil && result.Complete() {
			return result, nil
		}
		return domain.ExperienceResult{WorkExperience: content}, nil

	case domain.StageReviewer:
		var result domain.ReviewResult
		if err := ai.ParsePayload(content, &result); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamParse, err)
		}
		if result.PersonalInfo == nil {
			return nil, fmt.Errorf("%w: reviewer returned no personal info", domain.ErrUpstreamParse)
		}
		return result, nil
	}
	return nil, fmt.Errorf("%w: unknown stage %q", domain.ErrValidation, req.Stage)
}

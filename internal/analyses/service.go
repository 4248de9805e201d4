package analyses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bloodwork-backend/internal/documents"
	"bloodwork-backend/internal/extract"
	"bloodwork-backend/internal/llm"
	"bloodwork-backend/internal/shared/metrics"
	"bloodwork-backend/internal/shared/telemetry"
	"bloodwork-backend/internal/shared/tracing"
)

const (
	noTextTestName = "No Readable Text"
	noTextComment  = "No text could be read from the uploaded document."
	noTextSummary  = "The document did not contain any readable text, so no findings could be produced. Please upload a clearer copy of the report."
)

// DocumentStore stages uploads for the duration of a single run.
type DocumentStore interface {
	Stage(ctx context.Context, up documents.Upload, maxSizeBytes int64) (documents.Handle, error)
	Open(ctx context.Context, h documents.Handle) ([]byte, error)
	Release(ctx context.Context, h documents.Handle)
}

// Request is one uploaded report to analyze.
type Request struct {
	Data      []byte
	MediaType string
	FileName  string
	// RunID is generated when empty.
	RunID string
}

// Service runs the stage → extract → prompt → model → interpret pipeline.
type Service struct {
	Docs           DocumentStore
	Extractors     *extract.Registry
	LLM            llm.Client
	MaxUploadBytes int64
}

type run struct {
	id        string
	state     string
	current   string
	startedAt time.Time
	span      trace.Span
}

// Run executes one forward pass over the pipeline. Any failure is returned as
// a *RunError; the staged document is released exactly once on every path.
func (s *Service) Run(ctx context.Context, req Request) (result AnalysisResult, err error) {
	r := &run{id: req.RunID, state: StageReceived, current: StageReceived, startedAt: time.Now()}
	if r.id == "" {
		r.id = uuid.NewString()
	}
	ctx = withRunID(ctx, r.id)
	ctx = llm.WithRunID(ctx, r.id)
	ctx, r.span = tracing.Tracer().Start(ctx, "analysis.run", trace.WithAttributes(
		attribute.String("run.id", r.id),
		attribute.String("document.media_type", req.MediaType),
		attribute.Int("document.size_bytes", len(req.Data)),
	))
	defer r.span.End()

	metrics.IncAnalysisStarted()
	telemetry.Info("analysis.status", map[string]any{
		"run_id":     r.id,
		"status":     StageReceived,
		"media_type": req.MediaType,
		"size_bytes": len(req.Data),
	})

	defer func() {
		if rec := recover(); rec != nil {
			result = AnalysisResult{}
			err = &RunError{Stage: r.current, Kind: KindInternal, Err: fmt.Errorf("panic: %v", rec)}
		}
		s.finish(r, err)
	}()

	if s.Docs == nil || s.Extractors == nil || s.LLM == nil {
		return AnalysisResult{}, &RunError{Stage: StageReceived, Kind: KindInternal, Err: errors.New("analysis service is not fully configured")}
	}

	var handle documents.Handle
	err = r.advance(ctx, StageStaged, func(ctx context.Context) error {
		var stageErr error
		handle, stageErr = s.Docs.Stage(ctx, documents.Upload{
			Data:      req.Data,
			MediaType: req.MediaType,
			FileName:  req.FileName,
		}, s.MaxUploadBytes)
		return stageErr
	})
	if err != nil {
		return AnalysisResult{}, err
	}
	defer s.Docs.Release(ctx, handle)

	var text string
	err = r.advance(ctx, StageExtracted, func(ctx context.Context) error {
		extractor, ok := s.Extractors.For(handle.MediaType)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoExtractor, handle.MediaType)
		}
		data, openErr := s.Docs.Open(ctx, handle)
		if openErr != nil {
			return openErr
		}
		var extractErr error
		text, extractErr = extractor.Extract(ctx, data)
		if extractErr == nil {
			telemetry.Debug("analysis.extracted", map[string]any{
				"run_id":      r.id,
				"media_type":  handle.MediaType,
				"input_bytes": len(data),
				"text_runes":  len([]rune(text)),
			})
		}
		return extractErr
	})
	if err != nil {
		return AnalysisResult{}, err
	}

	if strings.TrimSpace(text) == "" {
		r.transition(StageDone, map[string]any{"reason": "no_readable_text"})
		return noTextResult(), nil
	}

	var prompt string
	_ = r.advance(ctx, StagePrompted, func(ctx context.Context) error {
		prompt = llm.BuildPrompt(text, req.FileName)
		trace.SpanFromContext(ctx).SetAttributes(
			attribute.String("prompt.version", llm.PromptVersion),
			attribute.String("prompt.hash", llm.PromptHash(prompt)),
		)
		telemetry.Info("analysis.prompt", map[string]any{
			"run_id":         r.id,
			"prompt_version": llm.PromptVersion,
			"prompt_hash":    llm.PromptHash(prompt),
			"prompt_runes":   len([]rune(prompt)),
		})
		return nil
	})

	var answer string
	err = r.advance(ctx, StageModelInvoked, func(ctx context.Context) error {
		out, invokeErr := s.LLM.Complete(ctx, prompt)
		if invokeErr != nil {
			return llm.Classify(invokeErr)
		}
		answer = out
		return nil
	})
	if err != nil {
		return AnalysisResult{}, err
	}

	_ = r.advance(ctx, StageInterpreted, func(ctx context.Context) error {
		result = interpretAnswer(ctx, answer)
		return nil
	})
	r.transition(StageDone, nil)
	return result, nil
}

// advance runs one stage in its own span and moves the run into next on success.
func (r *run) advance(ctx context.Context, next string, fn func(ctx context.Context) error) error {
	r.current = next
	ctx, span := tracing.Tracer().Start(ctx, "analysis."+next)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	metrics.ObserveStageDuration(next, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, next+" failed")
		return &RunError{Stage: next, Kind: kindOf(err), Err: err}
	}
	r.transition(next, nil)
	return nil
}

func (r *run) transition(next string, extra map[string]any) {
	fields := map[string]any{
		"run_id":            r.id,
		"status":            next,
		"status_transition": r.state + "->" + next,
	}
	for k, v := range extra {
		fields[k] = v
	}
	telemetry.Info("analysis.status", fields)
	r.state = next
}

func (s *Service) finish(r *run, err error) {
	elapsed := time.Since(r.startedAt)
	durationMs := float64(elapsed.Microseconds()) / 1000.0
	metrics.ObserveAnalysisDurationMs(durationMs)

	if err == nil {
		metrics.IncAnalysisCompleted()
		r.span.SetStatus(codes.Ok, "")
		telemetry.Info("analysis.complete", map[string]any{
			"run_id":      r.id,
			"duration_ms": durationMs,
		})
		return
	}

	var runErr *RunError
	if !errors.As(err, &runErr) {
		runErr = &RunError{Stage: r.state, Kind: KindInternal, Err: err}
	}
	metrics.IncAnalysisFailed(runErr.Stage, runErr.Kind)
	r.span.RecordError(err)
	r.span.SetStatus(codes.Error, runErr.Kind)
	r.span.SetAttributes(
		attribute.String("analysis.failed_stage", runErr.Stage),
		attribute.String("analysis.failure_kind", runErr.Kind),
	)
	telemetry.Error("analysis.status", map[string]any{
		"run_id":            r.id,
		"status":            "failed",
		"status_transition": r.state + "->failed",
		"failed_stage":      runErr.Stage,
		"kind":              runErr.Kind,
		"error":             sanitizeError(err),
		"duration_ms":       durationMs,
	})
}

func noTextResult() AnalysisResult {
	return AnalysisResult{
		Findings: []Finding{{
			Test:    noTextTestName,
			Status:  StatusInconclusive,
			Comment: noTextComment,
		}},
		Summary: noTextSummary,
	}
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}

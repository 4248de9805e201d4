package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"bloodwork-backend/internal/shared/metrics"
	"bloodwork-backend/internal/shared/telemetry"
)

const (
	outcomeStructured = "structured"
	outcomeFallback   = "fallback"

	fallbackTestName = "Analysis Error"
	fallbackComment  = "Structured findings could not be parsed from the model response."
)

const answerSchema = `{
  "type": "object",
  "required": ["findings", "summary"],
  "properties": {
    "findings": {"type": "array"},
    "summary": {"type": "string"}
  }
}`

var (
	fencedJSON = regexp.MustCompile("(?is)```json[ \\t]*\\r?\\n?(.*?)```")
	schema     = jsonschema.MustCompileString("answer.json", answerSchema)
)

type interpretation struct {
	result  AnalysisResult
	outcome string
	reason  string
}

// Interpret turns a raw model answer into an AnalysisResult. It never fails:
// any answer that is not the expected JSON object becomes FallbackResult(raw).
func Interpret(raw string) AnalysisResult {
	return interpretAnswer(context.Background(), raw)
}

func interpretAnswer(ctx context.Context, raw string) AnalysisResult {
	in := interpret(raw)
	fields := map[string]any{
		"outcome":  in.outcome,
		"findings": len(in.result.Findings),
	}
	if id := RunIDFromContext(ctx); id != "" {
		fields["run_id"] = id
	}
	if in.reason != "" {
		fields["reason"] = in.reason
	}
	if in.outcome == outcomeFallback {
		telemetry.Warn("analysis.interpret", fields)
	} else {
		telemetry.Info("analysis.interpret", fields)
	}
	metrics.IncInterpretOutcome(in.outcome, in.reason)
	return in.result
}

func interpret(raw string) (in interpretation) {
	defer func() {
		if rec := recover(); rec != nil {
			in = interpretation{result: FallbackResult(raw), outcome: outcomeFallback, reason: "panic"}
		}
	}()

	candidate := strings.TrimSpace(raw)
	if m := fencedJSON.FindStringSubmatch(raw); m != nil {
		candidate = strings.TrimSpace(m[1])
	}
	if candidate == "" {
		return interpretation{result: FallbackResult(raw), outcome: outcomeFallback, reason: "empty"}
	}

	doc, err := decodeSingleValue(candidate)
	if err != nil {
		return interpretation{result: FallbackResult(raw), outcome: outcomeFallback, reason: "invalid_json"}
	}
	if err := schema.Validate(doc); err != nil {
		return interpretation{result: FallbackResult(raw), outcome: outcomeFallback, reason: "schema_mismatch"}
	}

	obj := doc.(map[string]any)
	items, _ := obj["findings"].([]any)
	summary, _ := obj["summary"].(string)

	findings := make([]Finding, 0, len(items))
	for _, item := range items {
		findings = append(findings, NormalizeFinding(item))
	}
	if strings.TrimSpace(summary) == "" {
		summary = placeholderSummary
	}
	return interpretation{
		result:  AnalysisResult{Findings: findings, Summary: summary},
		outcome: outcomeStructured,
	}
}

// decodeSingleValue decodes exactly one JSON value, keeping numbers verbatim.
func decodeSingleValue(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected trailing data")
	}
	return v, nil
}

// FallbackResult is the degraded result for an answer that could not be parsed.
// The raw answer is kept as the summary so nothing the model said is lost.
func FallbackResult(raw string) AnalysisResult {
	summary := raw
	if strings.TrimSpace(summary) == "" {
		summary = placeholderSummary
	}
	return AnalysisResult{
		Findings: []Finding{{
			Test:    fallbackTestName,
			Status:  StatusUnknown,
			Comment: fallbackComment,
		}},
		Summary: summary,
	}
}

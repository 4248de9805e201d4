package analyses

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpretStructuredAnswer(t *testing.T) {
	raw := `{"findings":[{"test":"Glucose","value":"180","unit":"mg/dL","status":"elevated","referenceRange":"70-99","comment":"Above range"}],"summary":"ok"}`

	got := Interpret(raw)

	require.Len(t, got.Findings, 1)
	assert.Equal(t, Finding{
		Test:           "Glucose",
		Value:          "180",
		Unit:           "mg/dL",
		Status:         "unknown",
		ReferenceRange: "70-99",
		Comment:        "Above range",
	}, got.Findings[0])
	assert.Equal(t, "ok", got.Summary)
}

func TestInterpretProseFallsBack(t *testing.T) {
	raw := "Your results look mostly fine, but glucose is a bit high."

	got := Interpret(raw)

	require.Len(t, got.Findings, 1)
	assert.Equal(t, "Analysis Error", got.Findings[0].Test)
	assert.Equal(t, "unknown", got.Findings[0].Status)
	assert.NotEmpty(t, got.Findings[0].Comment)
	assert.Equal(t, raw, got.Summary)
}

func TestInterpretFencedBlock(t *testing.T) {
	raw := "Here is the analysis you asked for:\n```JSON\n{\"findings\":[{\"test\":\"TSH\",\"value\":2.1,\"status\":\"normal\"}],\"summary\":\"Thyroid fine\"}\n```\nLet me know if you need more."

	got := Interpret(raw)

	require.Len(t, got.Findings, 1)
	assert.Equal(t, "TSH", got.Findings[0].Test)
	assert.Equal(t, "2.1", got.Findings[0].Value)
	assert.Equal(t, "normal", got.Findings[0].Status)
	assert.Equal(t, "Thyroid fine", got.Summary)
}

func TestInterpretFencedBlockInvalidFallsBack(t *testing.T) {
	raw := "```json\n{\"findings\": [\n```"

	got := Interpret(raw)

	require.Len(t, got.Findings, 1)
	assert.Equal(t, "Analysis Error", got.Findings[0].Test)
	assert.Equal(t, raw, got.Summary)
}

func TestInterpretRejectsEnvelopeMismatch(t *testing.T) {
	tests := map[string]string{
		"missing summary":    `{"findings":[]}`,
		"missing findings":   `{"summary":"x"}`,
		"findings not array": `{"findings":{"test":"x"},"summary":"x"}`,
		"summary not string": `{"findings":[],"summary":42}`,
		"top level array":    `[{"test":"x"}]`,
		"trailing data":      `{"findings":[],"summary":"x"} {"more":true}`,
		"trailing garbage":   `{"findings":[],"summary":"x"} trailing`,
		"truncated":          `{"findings":[{"test":"x"}`,
	}
	for name, raw := range tests {
		raw := raw
		t.Run(name, func(t *testing.T) {
			got := Interpret(raw)
			require.Len(t, got.Findings, 1)
			assert.Equal(t, "Analysis Error", got.Findings[0].Test)
			assert.Equal(t, raw, got.Summary)
		})
	}
}

func TestInterpretBlankSummaryGetsPlaceholder(t *testing.T) {
	got := Interpret(`  {"findings":[],"summary":"   "}  `)

	assert.Empty(t, got.Findings)
	assert.NotNil(t, got.Findings)
	assert.Equal(t, "No summary provided", got.Summary)
}

func TestInterpretKeepsFindingOrder(t *testing.T) {
	got := Interpret(`{"findings":[{"test":"A"},{"test":"B"},42,{"test":"C"}],"summary":"s"}`)

	require.Len(t, got.Findings, 4)
	names := make([]string, 0, len(got.Findings))
	for _, f := range got.Findings {
		names = append(names, f.Test)
	}
	assert.Equal(t, []string{"A", "B", "Unknown Test", "C"}, names)
}

func TestInterpretEmptyAnswer(t *testing.T) {
	got := Interpret("   ")

	require.Len(t, got.Findings, 1)
	assert.Equal(t, "Analysis Error", got.Findings[0].Test)
	assert.Equal(t, "No summary provided", got.Summary)
}

func TestInterpretNeverPanicsOnOddInput(t *testing.T) {
	inputs := []string{
		"```json```",
		"```json\n```",
		"null",
		strings.Repeat("[", 10000),
		"\x00\xff\xfe",
		`{"findings":[null,true,"x"],"summary":"s"}`,
	}
	for _, raw := range inputs {
		assert.NotPanics(t, func() {
			got := Interpret(raw)
			assert.NotEmpty(t, got.Summary)
		})
	}
}

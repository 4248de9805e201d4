package llm

import (
	_ "embed"
	"strings"
	"unicode/utf8"

	"bloodwork-backend/internal/shared/util"
)

// PromptVersion identifies the embedded template in logs.
const PromptVersion = "bloodwork_v1"

// MaxPromptTextRunes bounds how much report text is sent to the model.
const MaxPromptTextRunes = 24000

const truncationMarker = "[... report text truncated ...]"

//go:embed prompts/bloodwork_v1.txt
var promptBloodworkV1 string

// BuildPrompt renders the instruction block for one report. It is pure:
// the same inputs always produce the same prompt.
func BuildPrompt(extractedText, fileName string) string {
	replacer := strings.NewReplacer(
		"{{FILE_NAME}}", util.FileNameOr(fileName, "unnamed"),
		"{{REPORT_TEXT}}", boundText(extractedText),
	)
	return replacer.Replace(promptBloodworkV1)
}

// PromptHash returns the sha256 hex digest of a rendered prompt.
func PromptHash(prompt string) string {
	return util.SHA256Hex(prompt)
}

func boundText(text string) string {
	if utf8.RuneCountInString(text) <= MaxPromptTextRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:MaxPromptTextRunes]) + "\n" + truncationMarker
}

package util

import (
	"errors"
	"strings"
	"unicode"
)

const maxFileNameRunes = 128

// SanitizeFileName removes path separators and control characters and
// rejects traversal patterns.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errors.New("invalid file name")
	}
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	if runes := []rune(s); len(runes) > maxFileNameRunes {
		s = string(runes[:maxFileNameRunes])
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("invalid file name")
	}
	return s, nil
}

// FileNameOr returns the sanitized name, or fallback when the name is unusable.
func FileNameOr(name, fallback string) string {
	s, err := SanitizeFileName(name)
	if err != nil {
		return fallback
	}
	return s
}

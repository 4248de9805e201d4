package extract

import (
	"regexp"
	"strings"
)

var (
	reSpaces   = regexp.MustCompile(`[ \t\f\v]+`)
	reBoxNoise = regexp.MustCompile(`[│┃┆┇┊┋╎╏║]+`)
)

// normalizeLines collapses runs of horizontal whitespace, trims each line and
// drops blank lines while keeping reading order.
func normalizeLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = reBoxNoise.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		ln = strings.TrimSpace(reSpaces.ReplaceAllString(ln, " "))
		if ln != "" {
			out = append(out, ln)
		}
	}
	return strings.Join(out, "\n")
}

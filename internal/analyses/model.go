package analyses

// Finding status values. Anything else coming back from the model is unknown.
const (
	StatusNormal       = "normal"
	StatusHigh         = "high"
	StatusLow          = "low"
	StatusBorderline   = "borderline"
	StatusInconclusive = "inconclusive"
	StatusUnknown      = "unknown"
)

const (
	defaultTestName    = "Unknown Test"
	placeholderSummary = "No summary provided"
)

var validStatuses = map[string]struct{}{
	StatusNormal:       {},
	StatusHigh:         {},
	StatusLow:          {},
	StatusBorderline:   {},
	StatusInconclusive: {},
	StatusUnknown:      {},
}

// Finding is one interpreted test line. Every field is always present.
type Finding struct {
	Test           string `json:"test"`
	Value          string `json:"value"`
	Unit           string `json:"unit"`
	Status         string `json:"status"`
	ReferenceRange string `json:"referenceRange"`
	Comment        string `json:"comment"`
}

// AnalysisResult is the canonical output of a run.
type AnalysisResult struct {
	Findings []Finding `json:"findings"`
	Summary  string    `json:"summary"`
}

// IsValidStatus reports whether s is one of the canonical status tokens.
func IsValidStatus(s string) bool {
	_, ok := validStatuses[s]
	return ok
}

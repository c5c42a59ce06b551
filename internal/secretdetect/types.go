package secretdetect

import (
	"regexp"
)

// Severity represents the severity level of a detected secret.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// SecretPattern defines a pattern to search for.
type SecretPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Description string
	Severity    Severity
	// Group selects the submatch holding the secret; 0 means the whole match.
	Group int
	// MinEntropy, when set, drops matches whose secret is less random than this.
	MinEntropy float64
}

// SecretMatch represents a detected secret. Start and End are byte offsets
// of the secret in the scanned content.
type SecretMatch struct {
	PatternName string
	MatchedText string
	Start       int
	End         int
	LineNumber  int
	Column      int
	Severity    Severity
}

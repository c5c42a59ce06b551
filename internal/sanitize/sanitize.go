// Package sanitize turns raw model output into executable source: it
// extracts the first fenced Python block and strips credentials from it.
package sanitize

import (
	"regexp"
	"strings"

	"github.com/codefionn/geocopilot/internal/secretdetect"
)

var (
	fenceRegex = regexp.MustCompile("(?s)```(?:python3?|py)[ \t]*\n?(.*?)```")

	// Non-greedy up to the first closing parenthesis. A string argument
	// containing ")" ends the match early; that is a known limitation.
	credentialCallRegex = regexp.MustCompile(`(?s)\bGIS\s*\(.*?\)`)
)

// AnonymousConstructor is the only permitted form of the connection constructor.
const AnonymousConstructor = "GIS()"

// GeneratedSource is sanitized source ready for the executor.
type GeneratedSource struct {
	Code string `json:"code"`
	// Fenced reports whether the code came from a fenced block.
	Fenced bool `json:"fenced"`
	// Rewrites counts constructor calls that carried arguments.
	Rewrites int `json:"rewrites"`
	// Redactions counts secrets replaced by secretdetect.
	Redactions int `json:"redactions"`
}

// Sanitizer applies extraction and rewriting rules.
type Sanitizer struct {
	detector *secretdetect.Detector
}

// New returns a Sanitizer using the default secret patterns.
func New() *Sanitizer {
	return &Sanitizer{detector: secretdetect.NewDetector()}
}

var defaultSanitizer = New()

// Sanitize runs the default Sanitizer.
func Sanitize(modelText string) GeneratedSource {
	return defaultSanitizer.Sanitize(modelText)
}

// Sanitize never fails and is idempotent on its Code output.
func (s *Sanitizer) Sanitize(modelText string) GeneratedSource {
	code, fenced := Extract(modelText)
	code, rewrites := RewriteCredentials(code)

	redactions := 0
	if s.detector != nil {
		if matches := s.detector.Scan(code); len(matches) > 0 {
			code = secretdetect.Redact(code, matches)
			redactions = len(matches)
		}
	}

	return GeneratedSource{
		Code:       code,
		Fenced:     fenced,
		Rewrites:   rewrites,
		Redactions: redactions,
	}
}

// Extract returns the trimmed interior of the first ```python or ```py
// fenced block, or the trimmed input when there is none.
func Extract(modelText string) (string, bool) {
	if m := fenceRegex.FindStringSubmatch(modelText); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return strings.TrimSpace(modelText), false
}

// RewriteCredentials replaces every GIS(...) call with GIS() and reports
// how many calls carried arguments.
func RewriteCredentials(code string) (string, int) {
	rewrites := 0
	out := credentialCallRegex.ReplaceAllStringFunc(code, func(call string) string {
		if hasArguments(call) {
			rewrites++
		}
		return AnonymousConstructor
	})
	return out, rewrites
}

// HasCredentialedCall reports whether code still contains a GIS call with
// a non-empty argument list.
func HasCredentialedCall(code string) bool {
	for _, call := range credentialCallRegex.FindAllString(code, -1) {
		if hasArguments(call) {
			return true
		}
	}
	return false
}

func hasArguments(call string) bool {
	inner := call[strings.IndexByte(call, '(')+1 : len(call)-1]
	return strings.TrimSpace(inner) != ""
}

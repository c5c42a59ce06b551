package secretdetect

import (
	"sort"
	"strings"
)

// Detector finds secrets in source text.
type Detector struct {
	patterns []SecretPattern
}

// NewDetector creates a new detector with default patterns.
func NewDetector() *Detector {
	return &Detector{
		patterns: GetDefaultPatterns(),
	}
}

// NewEmptyDetector creates a new detector with no patterns.
func NewEmptyDetector() *Detector {
	return &Detector{}
}

// AddPattern adds a new pattern to the detector.
func (d *Detector) AddPattern(pattern SecretPattern) {
	d.patterns = append(d.patterns, pattern)
}

// Scan returns the non-overlapping secrets found in content, ordered by
// position. When two matches overlap the earlier, longer one wins.
func (d *Detector) Scan(content string) []SecretMatch {
	var matches []SecretMatch
	for _, pattern := range d.patterns {
		for _, loc := range pattern.Regex.FindAllStringSubmatchIndex(content, -1) {
			g := pattern.Group
			if 2*g+1 >= len(loc) || loc[2*g] < 0 {
				continue
			}
			start, end := loc[2*g], loc[2*g+1]
			text := content[start:end]
			if pattern.MinEntropy > 0 && CalculateEntropy(text) < pattern.MinEntropy {
				continue
			}
			line, col := position(content, start)
			matches = append(matches, SecretMatch{
				PatternName: pattern.Name,
				MatchedText: text,
				Start:       start,
				End:         end,
				LineNumber:  line,
				Column:      col,
				Severity:    pattern.Severity,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Start != matches[j].Start {
			return matches[i].Start < matches[j].Start
		}
		return matches[i].End > matches[j].End
	})

	kept := matches[:0]
	lastEnd := -1
	for _, m := range matches {
		if m.Start < lastEnd {
			continue
		}
		kept = append(kept, m)
		lastEnd = m.End
	}
	return kept
}

func position(content string, offset int) (line, col int) {
	before := content[:offset]
	line = strings.Count(before, "\n") + 1
	col = offset - strings.LastIndex(before, "\n")
	return line, col
}

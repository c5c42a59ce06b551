package secretdetect

import (
	"math"
)

// DefaultEntropyThreshold is a reasonable default for base64-like secrets.
const DefaultEntropyThreshold = 3.5

// CalculateEntropy calculates the Shannon entropy of a string in bits per rune.
func CalculateEntropy(s string) float64 {
	if s == "" {
		return 0
	}

	counts := make(map[rune]int)
	total := 0
	for _, r := range s {
		counts[r]++
		total++
	}

	var entropy float64
	for _, count := range counts {
		freq := float64(count) / float64(total)
		entropy -= freq * math.Log2(freq)
	}
	return entropy
}

package llm

import (
	"fmt"
	"strings"
)

const (
	utteranceMarker = `USER REQUEST: "`
	utteranceEnd    = "\"\n"
)

// BuildPrompt embeds the user's utterance in the fixed code-generation
// instructions. It is pure and deterministic.
func BuildPrompt(utterance string) string {
	var sb strings.Builder
	sb.WriteString("You are a Python GIS Developer.\n\n")
	fmt.Fprintf(&sb, "%s%s%s\n", utteranceMarker, utterance, utteranceEnd)
	sb.WriteString("RULES:\n")
	sb.WriteString("1. Write a script to accomplish the task using 'arcgis'.\n")
	sb.WriteString("2. Connection: Use 'gis = GIS()' ONLY. Do NOT add username/password.\n")
	sb.WriteString("3. Searching: Use 'gis.content.search(query, max_items=5)'.\n")
	sb.WriteString("4. Printing: Print only the 'title' and 'id' of results.\n")
	sb.WriteString("5. OUTPUT: Respond with exactly one ```python fenced code block and nothing else.\n")
	return sb.String()
}

// ExtractUtterance recovers the utterance from a prompt produced by
// BuildPrompt. Any other text is returned unchanged.
func ExtractUtterance(prompt string) string {
	start := strings.Index(prompt, utteranceMarker)
	if start < 0 {
		return prompt
	}
	rest := prompt[start+len(utteranceMarker):]
	end := strings.LastIndex(rest, utteranceEnd+"\nRULES:")
	if end < 0 {
		return prompt
	}
	return rest[:end]
}

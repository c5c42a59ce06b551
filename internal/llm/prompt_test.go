package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPromptEmbedsRules(t *testing.T) {
	prompt := BuildPrompt("Find wildfire layers")

	assert.Contains(t, prompt, `USER REQUEST: "Find wildfire layers"`)
	assert.Contains(t, prompt, "gis = GIS()")
	assert.Contains(t, prompt, "gis.content.search(query, max_items=5)")
	assert.Contains(t, prompt, "'title' and 'id'")
	assert.Contains(t, prompt, "```python")
}

func TestBuildPromptDeterministic(t *testing.T) {
	assert.Equal(t, BuildPrompt("x"), BuildPrompt("x"))
}

func TestExtractUtterance(t *testing.T) {
	tests := []string{
		"show me wildfire risk zones",
		"",
		`quotes "inside" the request`,
		"multi\nline",
	}
	for _, u := range tests {
		assert.Equal(t, u, ExtractUtterance(BuildPrompt(u)))
	}
}

func TestExtractUtterancePassesThroughBareText(t *testing.T) {
	assert.Equal(t, "hello", ExtractUtterance("hello"))
	partial := `USER REQUEST: "unterminated`
	assert.Equal(t, partial, ExtractUtterance(partial))
	assert.False(t, strings.Contains(ExtractUtterance("plain"), "RULES"))
}

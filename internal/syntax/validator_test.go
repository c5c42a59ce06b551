//go:build cgo

package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_ValidCode(t *testing.T) {
	validator := NewValidator()

	testCases := map[string]string{
		"template": `from arcgis.gis import GIS

gis = GIS()
items = gis.content.search("wildfire risk", max_items=5)
for item in items:
    print(f"{item.title} ({item.id})")`,
		"try except": `try:
    x = 1
except Exception as e:
    print(e)`,
		"empty":      "",
		"whitespace": "   \n\t",
	}

	for name, code := range testCases {
		t.Run(name, func(t *testing.T) {
			result, err := validator.Validate(code)
			require.NoError(t, err)
			assert.True(t, result.Valid, "errors: %v", result.Errors)
			assert.Nil(t, result.FirstError())
			assert.Equal(t, LanguagePython, result.Language)
		})
	}
}

func TestValidator_InvalidCode(t *testing.T) {
	validator := NewValidator()

	testCases := map[string]string{
		"unclosed paren": "print(\"hello\"",
		"bad indent def": "for x in y\n    print(x)",
		"stray operator": "x = = 1",
		"sentence":       "Sorry, I can't help with that request!",
	}

	for name, code := range testCases {
		t.Run(name, func(t *testing.T) {
			result, err := validator.Validate(code)
			require.NoError(t, err)
			assert.False(t, result.Valid)
			require.NotNil(t, result.FirstError())
			assert.GreaterOrEqual(t, result.FirstError().Line, 1)
			assert.NotEmpty(t, result.FirstError().Error())
		})
	}
}

func TestParsePython(t *testing.T) {
	tree, err := ParsePython([]byte("x = 1\n"))
	require.NoError(t, err)
	defer tree.Close()

	root := tree.RootNode()
	assert.Equal(t, "module", root.Kind())
	assert.False(t, root.HasError())
	assert.Equal(t, uint(1), root.NamedChildCount())
}

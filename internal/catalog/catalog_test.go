package catalog

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogParses(t *testing.T) {
	c := Default()
	require.NotNil(t, c)

	want := []Category{Wildfire, Weather, Infrastructure, RealEstate, Demographic, Generic}
	if diff := cmp.Diff(want, c.Categories()); diff != "" {
		t.Fatalf("category order mismatch (-want +got):\n%s", diff)
	}
	for _, cat := range want {
		assert.Len(t, c.Entry(cat).Fallback, 3, "category %s", cat)
	}
	assert.Equal(t, 5, c.MaxItems())
}

func TestClassify(t *testing.T) {
	c := Default()
	tests := []struct {
		utterance string
		want      Category
	}{
		{"show me wildfire risk zones", Wildfire},
		{"SHOW ME WILDFIRE RISK ZONES", Wildfire},
		{"hurricane tracks in the gulf", Weather},
		{"bridges and highway networks", Infrastructure},
		{"zoning parcels in LA", RealEstate},
		{"population density by county", Demographic},
		{"hello", Generic},
		{"", Generic},
		// priority: wildfire beats weather
		{"wildfire smoke and storm outlook", Wildfire},
	}
	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.utterance))
		})
	}
}

func TestKeywords(t *testing.T) {
	c := Default()
	tests := []struct {
		utterance string
		want      []string
	}{
		{"hello", []string{"hello"}},
		{"show me the volcanoes of Iceland and Japan glaciers", []string{"volcanoes", "iceland", "japan"}},
		{"to be or not", []string{"not"}},
		{"a an of", []string{"maps"}},
		{"lakes lakes LAKES rivers", []string{"lakes", "rivers"}},
		{"coffee-shops; berlin!", []string{"coffee", "shops", "berlin"}},
	}
	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, c.Keywords(tt.utterance)); diff != "" {
				t.Errorf("Keywords(%q) mismatch (-want +got):\n%s", tt.utterance, diff)
			}
		})
	}
}

func TestQuery(t *testing.T) {
	c := Default()
	assert.Equal(t, "wildfire risk", c.Query(Wildfire, "anything"))
	assert.Equal(t, "volcanoes iceland", c.Query(Generic, "volcanoes in iceland"))
	assert.Equal(t, "maps", c.Query(Generic, ""))
}

func TestScript(t *testing.T) {
	c := Default()

	script, err := c.Script(Wildfire, "show me wildfire risk zones")
	require.NoError(t, err)
	assert.Contains(t, script, `gis.content.search("wildfire risk", max_items=5)`)
	assert.Contains(t, script, "gis = GIS()")

	script, err = c.Script(Generic, "hello")
	require.NoError(t, err)
	assert.Contains(t, script, `keywords = ["hello"]`)

	script, err = c.Script(Weather, "storm")
	require.NoError(t, err)
	assert.Contains(t, script, `item_type="Feature Layer"`)
}

func TestEveryScriptUsesAnonymousConnection(t *testing.T) {
	c := Default()
	for _, cat := range c.Categories() {
		script, err := c.Script(cat, "test utterance")
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(script, "GIS()"), "category %s", cat)
		assert.NotContains(t, script, "{{", "category %s", cat)
	}
}

func TestUnknownCategoryFallsBackToGeneric(t *testing.T) {
	assert.Equal(t, Generic, Default().Entry("volcano").Name)
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"invalid yaml":   "categories: [",
		"no categories":  "default_keyword: maps",
		"no default":     "categories: [{name: generic, fallback: [{label: x}]}]",
		"no generic":     "default_keyword: maps\ncategories: [{name: weather, fallback: [{label: x}]}]",
		"no fallback":    "default_keyword: maps\ncategories: [{name: generic}]",
		"bad template":   "default_keyword: maps\ncategories: [{name: generic, fallback: [{label: x}], script: '{{.Query'}]",
		"duplicate name": "default_keyword: maps\ncategories: [{name: generic, fallback: [{label: x}]}, {name: generic, fallback: [{label: y}]}]",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

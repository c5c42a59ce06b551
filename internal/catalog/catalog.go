// Package catalog holds the fixed category table behind the rule-based
// model client and the map synthesizer: keyword lists, canned queries,
// base map views, fallback markers and script templates.
package catalog

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"text/template"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embedded []byte

// Category is one of the fixed classification buckets.
type Category string

const (
	Wildfire       Category = "wildfire"
	Weather        Category = "weather"
	Infrastructure Category = "infrastructure"
	RealEstate     Category = "real-estate"
	Demographic    Category = "demographic"
	Generic        Category = "generic"
)

// View is a map center and zoom level.
type View struct {
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
	Zoom int     `yaml:"zoom"`
}

// Fallback is a hardcoded illustrative marker, or a zone when RadiusM > 0.
type Fallback struct {
	Label   string  `yaml:"label"`
	Lat     float64 `yaml:"lat"`
	Lon     float64 `yaml:"lon"`
	RadiusM float64 `yaml:"radius_m"`
}

// Entry describes one category.
type Entry struct {
	Name     Category   `yaml:"name"`
	Keywords []string   `yaml:"keywords"`
	Query    string     `yaml:"query"`
	ItemType string     `yaml:"item_type"`
	Color    string     `yaml:"color"`
	Icon     string     `yaml:"icon"`
	Zones    bool       `yaml:"zones"`
	View     View       `yaml:"view"`
	Fallback []Fallback `yaml:"fallback"`
	Script   string     `yaml:"script"`

	tmpl *template.Template
}

type document struct {
	DefaultKeyword   string   `yaml:"default_keyword"`
	MaxKeywords      int      `yaml:"max_keywords"`
	MinKeywordLength int      `yaml:"min_keyword_length"`
	MaxItems         int      `yaml:"max_items"`
	StopWords        []string `yaml:"stop_words"`
	Categories       []Entry  `yaml:"categories"`
}

// Catalog is an immutable, parsed category table.
type Catalog struct {
	doc       document
	stopWords map[string]struct{}
	index     map[Category]int
}

// ScriptData is the data passed to a category's script template.
type ScriptData struct {
	Query    string
	ItemType string
	Keywords []string
	MaxItems int
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog embedded in the binary.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(embedded)
		if err != nil {
			panic(fmt.Sprintf("catalog: embedded catalog.yaml is invalid: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

var funcs = template.FuncMap{
	"pylist": pyList,
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(doc.Categories) == 0 {
		return nil, fmt.Errorf("catalog has no categories")
	}
	if doc.DefaultKeyword == "" {
		return nil, fmt.Errorf("catalog has no default_keyword")
	}
	if doc.MaxKeywords <= 0 {
		doc.MaxKeywords = 3
	}
	if doc.MaxItems <= 0 {
		doc.MaxItems = 5
	}

	c := &Catalog{
		doc:       doc,
		stopWords: make(map[string]struct{}, len(doc.StopWords)),
		index:     make(map[Category]int, len(doc.Categories)),
	}
	for _, w := range doc.StopWords {
		c.stopWords[strings.ToLower(w)] = struct{}{}
	}

	for i := range c.doc.Categories {
		e := &c.doc.Categories[i]
		if _, dup := c.index[e.Name]; dup {
			return nil, fmt.Errorf("duplicate category %q", e.Name)
		}
		if len(e.Fallback) == 0 {
			return nil, fmt.Errorf("category %q has no fallback markers", e.Name)
		}
		tmpl, err := template.New(string(e.Name)).Funcs(funcs).Option("missingkey=error").Parse(e.Script)
		if err != nil {
			return nil, fmt.Errorf("category %q script: %w", e.Name, err)
		}
		e.tmpl = tmpl
		for j, k := range e.Keywords {
			e.Keywords[j] = strings.ToLower(k)
		}
		c.index[e.Name] = i
	}

	if _, ok := c.index[Generic]; !ok {
		return nil, fmt.Errorf("catalog has no %q category", Generic)
	}
	return c, nil
}

// Categories returns the category names in priority order.
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.doc.Categories))
	for i, e := range c.doc.Categories {
		out[i] = e.Name
	}
	return out
}

// MaxItems is the result cap used by every canned script.
func (c *Catalog) MaxItems() int {
	return c.doc.MaxItems
}

// Entry returns the entry for cat, falling back to the generic entry.
func (c *Catalog) Entry(cat Category) Entry {
	if i, ok := c.index[cat]; ok {
		return c.doc.Categories[i]
	}
	return c.doc.Categories[c.index[Generic]]
}

// Classify returns the first category, in priority order, one of whose
// keywords occurs in the utterance (case-insensitive). Generic otherwise.
func (c *Catalog) Classify(utterance string) Category {
	lower := strings.ToLower(utterance)
	for _, e := range c.doc.Categories {
		for _, k := range e.Keywords {
			if k != "" && strings.Contains(lower, k) {
				return e.Name
			}
		}
	}
	return Generic
}

// Keywords extracts up to max_keywords significant words from the
// utterance: alphanumeric tokens, lower-cased, stop words and short tokens
// removed, first occurrence order. Never empty.
func (c *Catalog) Keywords(utterance string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(utterance), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{})
	var out []string
	for _, tok := range tokens {
		if len([]rune(tok)) < c.doc.MinKeywordLength {
			continue
		}
		if _, stop := c.stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
		if len(out) == c.doc.MaxKeywords {
			break
		}
	}
	if len(out) == 0 {
		return []string{c.doc.DefaultKeyword}
	}
	return out
}

// Query returns the search query for cat: the fixed category query, or
// the extracted keywords joined by spaces for the generic category.
func (c *Catalog) Query(cat Category, utterance string) string {
	e := c.Entry(cat)
	if e.Query != "" {
		return e.Query
	}
	return strings.Join(c.Keywords(utterance), " ")
}

// Script renders the canned script for cat.
func (c *Catalog) Script(cat Category, utterance string) (string, error) {
	e := c.Entry(cat)
	data := ScriptData{
		Query:    c.Query(e.Name, utterance),
		ItemType: e.ItemType,
		Keywords: c.Keywords(utterance),
		MaxItems: c.doc.MaxItems,
	}

	var sb strings.Builder
	if err := e.tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render %s script: %w", e.Name, err)
	}
	return strings.TrimSpace(sb.String()), nil
}

func pyList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = strconv.Quote(s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

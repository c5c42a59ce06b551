// Package geomap builds the per-turn map and structured result list from the
// category table and best-effort portal lookups, and renders maps as a
// standalone Leaflet page or GeoJSON.
package geomap

import (
	"time"

	"github.com/codefionn/geocopilot/internal/arcgis"
	"github.com/codefionn/geocopilot/internal/catalog"
)

// Marker sources.
const (
	SourceFallback = "fallback"
	SourceLive     = "live"
)

// Point is a WGS84 location.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Style is the color and icon of a marker.
type Style struct {
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// Marker is a labelled point, or a circular zone when RadiusM is positive.
type Marker struct {
	Point
	Label   string  `json:"label"`
	Style   Style   `json:"style"`
	RadiusM float64 `json:"radius_m,omitempty"`
	Source  string  `json:"source"`
	ItemID  string  `json:"item_id,omitempty"`
}

// IsZone reports whether the marker should be drawn as a circle.
func (m Marker) IsZone() bool {
	return m.RadiusM > 0
}

// MapArtifact is the map shown next to a turn.
type MapArtifact struct {
	Category catalog.Category `json:"category"`
	Center   Point            `json:"center"`
	Zoom     int              `json:"zoom"`
	Markers  []Marker         `json:"markers"`
}

// Fallbacks returns the markers that came from the category table.
func (m *MapArtifact) Fallbacks() []Marker {
	return m.bySource(SourceFallback)
}

// Live returns the markers added from portal search results.
func (m *MapArtifact) Live() []Marker {
	return m.bySource(SourceLive)
}

func (m *MapArtifact) bySource(source string) []Marker {
	var out []Marker
	for _, mk := range m.Markers {
		if mk.Source == source {
			out = append(out, mk)
		}
	}
	return out
}

// ResultItem is one row of the structured result list.
type ResultItem struct {
	Title    string    `json:"title"`
	Kind     string    `json:"kind"`
	Owner    string    `json:"owner"`
	ID       string    `json:"id"`
	Modified time.Time `json:"modified"`
}

func newResultItem(it arcgis.Item) ResultItem {
	return ResultItem{
		Title:    it.Title,
		Kind:     it.Type,
		Owner:    it.Owner,
		ID:       it.ID,
		Modified: it.ModifiedTime(),
	}
}

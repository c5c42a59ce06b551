package geomap

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"
)

//go:embed map.html.tmpl
var pageSource string

var page = template.Must(template.New("map").Parse(pageSource))

type pageData struct {
	Title   string
	View    map[string]any
	Markers []Marker
}

// RenderHTML writes a standalone Leaflet page showing the map.
func RenderHTML(w io.Writer, m *MapArtifact) error {
	if m == nil {
		return fmt.Errorf("no map to render")
	}
	markers := m.Markers
	if markers == nil {
		markers = []Marker{}
	}
	data := pageData{
		Title:   Title(m),
		View:    map[string]any{"lat": m.Center.Lat, "lon": m.Center.Lon, "zoom": m.Zoom},
		Markers: markers,
	}
	if err := page.Execute(w, data); err != nil {
		return fmt.Errorf("render map: %w", err)
	}
	return nil
}

// Title is the human readable caption of a map.
func Title(m *MapArtifact) string {
	name := strings.ReplaceAll(string(m.Category), "-", " ")
	if name == "" {
		return "Map"
	}
	return strings.ToUpper(name[:1]) + name[1:] + " map"
}

// FeatureCollection is a GeoJSON feature collection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a GeoJSON point feature.
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Geometry is a GeoJSON point; coordinates are longitude, latitude.
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// Features converts the markers of a map into a FeatureCollection.
func Features(m *MapArtifact) FeatureCollection {
	fc := FeatureCollection{Type: "FeatureCollection", Features: []Feature{}}
	if m == nil {
		return fc
	}
	for _, mk := range m.Markers {
		props := map[string]any{
			"label":  mk.Label,
			"color":  mk.Style.Color,
			"icon":   mk.Style.Icon,
			"source": mk.Source,
		}
		if mk.IsZone() {
			props["radius_m"] = mk.RadiusM
		}
		if mk.ItemID != "" {
			props["item_id"] = mk.ItemID
		}
		fc.Features = append(fc.Features, Feature{
			Type:       "Feature",
			Geometry:   Geometry{Type: "Point", Coordinates: [2]float64{mk.Lon, mk.Lat}},
			Properties: props,
		})
	}
	return fc
}

// GeoJSON encodes the map as a GeoJSON FeatureCollection.
func GeoJSON(m *MapArtifact) ([]byte, error) {
	data, err := json.Marshal(Features(m))
	if err != nil {
		return nil, fmt.Errorf("encode geojson: %w", err)
	}
	return data, nil
}

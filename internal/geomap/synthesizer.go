package geomap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codefionn/geocopilot/internal/arcgis"
	"github.com/codefionn/geocopilot/internal/catalog"
	"github.com/codefionn/geocopilot/internal/consts"
	"github.com/codefionn/geocopilot/internal/logger"
	"github.com/codefionn/geocopilot/internal/observability"
)

// Searcher is the portal search the synthesizer enriches maps with.
type Searcher interface {
	Search(ctx context.Context, query string, maxItems int, itemType string) ([]arcgis.Item, error)
}

// ErrNoPortal is returned by the enrichment lookups when no portal is configured.
var ErrNoPortal = errors.New("no portal configured")

// Synthesizer builds MapArtifacts and ResultItems for a category.
type Synthesizer struct {
	catalog      *catalog.Catalog
	portal       Searcher
	maxMarkers   int
	maxItems     int
	searchBudget time.Duration
	log          *logger.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithMaxMarkers lowers the live marker cap. Values above
// consts.MaxEnrichmentMarkers are clamped to it.
func WithMaxMarkers(n int) Option {
	return func(s *Synthesizer) {
		if n >= 0 {
			s.maxMarkers = min(n, consts.MaxEnrichmentMarkers)
		}
	}
}

// WithMaxItems lowers the result list cap. Values above
// consts.MaxResultItems are clamped to it.
func WithMaxItems(n int) Option {
	return func(s *Synthesizer) {
		if n >= 0 {
			s.maxItems = min(n, consts.MaxResultItems)
		}
	}
}

// WithSearchTimeout bounds each enrichment search. Zero disables the bound.
func WithSearchTimeout(d time.Duration) Option {
	return func(s *Synthesizer) {
		s.searchBudget = d
	}
}

// NewSynthesizer creates a synthesizer. A nil portal yields fallback-only maps
// and empty result lists.
func NewSynthesizer(cat *catalog.Catalog, portal Searcher, opts ...Option) *Synthesizer {
	if cat == nil {
		cat = catalog.Default()
	}
	s := &Synthesizer{
		catalog:      cat,
		portal:       portal,
		maxMarkers:   consts.MaxEnrichmentMarkers,
		maxItems:     consts.MaxResultItems,
		searchBudget: consts.Timeout30Seconds,
		log:          logger.Global().WithPrefix("geomap"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize builds the map and result list for a category using the
// category's canned query.
func (s *Synthesizer) Synthesize(ctx context.Context, cat catalog.Category) (*MapArtifact, []ResultItem) {
	return s.SynthesizeQuery(ctx, cat, s.catalog.Query(cat, ""))
}

// SynthesizeQuery is Synthesize with an explicit portal query. Portal
// failures never surface: the map falls back to the fixed markers and the
// result list is empty.
func (s *Synthesizer) SynthesizeQuery(ctx context.Context, cat catalog.Category, query string) (*MapArtifact, []ResultItem) {
	entry := s.catalog.Entry(cat)
	artifact := s.BaseMap(cat)

	live, err := s.LiveMarkers(ctx, entry, query)
	if err != nil {
		s.log.Debug("map enrichment for %s failed, using fallback markers: %v", entry.Name, err)
		observability.EnrichmentFailuresTotal.WithLabelValues("markers").Inc()
		live = nil
	}
	artifact.Markers = append(artifact.Markers, live...)

	items, err := s.ResultItems(ctx, entry, query)
	if err != nil {
		s.log.Debug("result lookup for %s failed: %v", entry.Name, err)
		observability.EnrichmentFailuresTotal.WithLabelValues("items").Inc()
		items = []ResultItem{}
	}

	return artifact, items
}

// BaseMap returns the category's fixed view with its fallback markers.
func (s *Synthesizer) BaseMap(cat catalog.Category) *MapArtifact {
	entry := s.catalog.Entry(cat)
	style := Style{Color: entry.Color, Icon: entry.Icon}

	markers := make([]Marker, 0, len(entry.Fallback)+s.maxMarkers)
	for _, fb := range entry.Fallback {
		m := Marker{
			Point:  Point{Lat: fb.Lat, Lon: fb.Lon},
			Label:  fb.Label,
			Style:  style,
			Source: SourceFallback,
		}
		if entry.Zones {
			m.RadiusM = fb.RadiusM
		}
		markers = append(markers, m)
	}

	return &MapArtifact{
		Category: entry.Name,
		Center:   Point{Lat: entry.View.Lat, Lon: entry.View.Lon},
		Zoom:     entry.View.Zoom,
		Markers:  markers,
	}
}

// LiveMarkers searches the portal and places a marker at the extent center
// of every result that has one.
func (s *Synthesizer) LiveMarkers(ctx context.Context, entry catalog.Entry, query string) ([]Marker, error) {
	if s.maxMarkers == 0 {
		return nil, nil
	}
	found, err := s.search(ctx, query, s.maxMarkers, entry.ItemType)
	if err != nil {
		return nil, err
	}

	style := Style{Color: entry.Color, Icon: entry.Icon}
	var markers []Marker
	for _, it := range found {
		lat, lon, ok := it.Center()
		if !ok {
			continue
		}
		markers = append(markers, Marker{
			Point:  Point{Lat: lat, Lon: lon},
			Label:  it.Title,
			Style:  style,
			Source: SourceLive,
			ItemID: it.ID,
		})
		if len(markers) == s.maxMarkers {
			break
		}
	}
	return markers, nil
}

// ResultItems runs the result-list search.
func (s *Synthesizer) ResultItems(ctx context.Context, entry catalog.Entry, query string) ([]ResultItem, error) {
	if s.maxItems == 0 {
		return []ResultItem{}, nil
	}
	found, err := s.search(ctx, query, s.maxItems, entry.ItemType)
	if err != nil {
		return nil, err
	}

	items := make([]ResultItem, 0, min(len(found), s.maxItems))
	for _, it := range found {
		if len(items) == s.maxItems {
			break
		}
		items = append(items, newResultItem(it))
	}
	return items, nil
}

func (s *Synthesizer) search(ctx context.Context, query string, maxItems int, itemType string) ([]arcgis.Item, error) {
	if s.portal == nil {
		return nil, ErrNoPortal
	}
	if s.searchBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.searchBudget)
		defer cancel()
	}
	found, err := s.portal.Search(ctx, query, maxItems, itemType)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	return found, nil
}

package geomap

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/geocopilot/internal/arcgis"
	"github.com/codefionn/geocopilot/internal/catalog"
	"github.com/codefionn/geocopilot/internal/consts"
	"github.com/codefionn/geocopilot/internal/observability"
)

// MockSearcher records search calls and returns canned items.
type MockSearcher struct {
	mu       sync.Mutex
	Items    []arcgis.Item
	Err      error
	Queries  []string
	MaxItems []int
	Types    []string
}

func (m *MockSearcher) Search(ctx context.Context, query string, maxItems int, itemType string) ([]arcgis.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, query)
	m.MaxItems = append(m.MaxItems, maxItems)
	m.Types = append(m.Types, itemType)
	if m.Err != nil {
		return nil, m.Err
	}
	if maxItems < len(m.Items) {
		return m.Items[:maxItems], nil
	}
	return m.Items, nil
}

func extent(lon, lat float64) [][]float64 {
	return [][]float64{{lon - 1, lat - 1}, {lon + 1, lat + 1}}
}

func liveItems() []arcgis.Item {
	return []arcgis.Item{
		{ID: "a1", Title: "Fire Perimeters", Type: "Feature Service", Owner: "esri", Modified: 1700000000000, Extent: extent(-120, 38)},
		{ID: "a2", Title: "No Extent", Type: "Web Map", Owner: "esri"},
		{ID: "a3", Title: "Burn Scars", Type: "Feature Service", Owner: "usfs", Extent: extent(-118, 34)},
		{ID: "a4", Title: "Smoke", Type: "Image Service", Owner: "noaa", Extent: extent(-121, 40)},
		{ID: "a5", Title: "Fuel Moisture", Type: "Feature Service", Owner: "usfs", Extent: extent(-119, 37)},
		{ID: "a6", Title: "Extra", Type: "Feature Service", Owner: "usfs", Extent: extent(-117, 36)},
	}
}

func TestBaseMapUsesCategoryView(t *testing.T) {
	s := NewSynthesizer(catalog.Default(), nil)

	for _, cat := range catalog.Default().Categories() {
		entry := catalog.Default().Entry(cat)
		m := s.BaseMap(cat)

		assert.Equal(t, cat, m.Category)
		assert.Equal(t, Point{Lat: entry.View.Lat, Lon: entry.View.Lon}, m.Center)
		assert.Equal(t, entry.View.Zoom, m.Zoom)
		require.Len(t, m.Markers, len(entry.Fallback), "category %s", cat)
		for i, mk := range m.Markers {
			assert.Equal(t, entry.Fallback[i].Label, mk.Label)
			assert.Equal(t, SourceFallback, mk.Source)
			assert.Equal(t, Style{Color: entry.Color, Icon: entry.Icon}, mk.Style)
			assert.Equal(t, entry.Zones, mk.IsZone(), "category %s marker %d", cat, i)
		}
	}
}

func TestSynthesizeAddsLiveMarkers(t *testing.T) {
	portal := &MockSearcher{Items: liveItems()}
	s := NewSynthesizer(catalog.Default(), portal)

	m, items := s.Synthesize(context.Background(), catalog.Wildfire)

	require.Len(t, m.Fallbacks(), 3)
	live := m.Live()
	// a2 has no extent, so only two of the first three results become markers.
	require.Len(t, live, 2)
	assert.Equal(t, "Fire Perimeters", live[0].Label)
	assert.Equal(t, "a1", live[0].ItemID)
	assert.InDelta(t, 38.0, live[0].Lat, 1e-9)
	assert.InDelta(t, -120.0, live[0].Lon, 1e-9)
	assert.False(t, live[0].IsZone())

	require.Len(t, items, 5)
	assert.Equal(t, ResultItem{
		Title:    "Fire Perimeters",
		Kind:     "Feature Service",
		Owner:    "esri",
		ID:       "a1",
		Modified: time.UnixMilli(1700000000000).UTC(),
	}, items[0])

	assert.Equal(t, []int{3, 5}, portal.MaxItems)
	query := catalog.Default().Query(catalog.Wildfire, "")
	assert.Equal(t, []string{query, query}, portal.Queries)
}

func TestSynthesizeQueryPassesItemType(t *testing.T) {
	portal := &MockSearcher{}
	s := NewSynthesizer(catalog.Default(), portal)

	_, items := s.SynthesizeQuery(context.Background(), catalog.Weather, "hurricane tracks")

	assert.Empty(t, items)
	assert.NotNil(t, items)
	entry := catalog.Default().Entry(catalog.Weather)
	assert.Equal(t, []string{entry.ItemType, entry.ItemType}, portal.Types)
	assert.Equal(t, []string{"hurricane tracks", "hurricane tracks"}, portal.Queries)
}

func TestSynthesizeFailingPortalFallsBack(t *testing.T) {
	before := observability.CounterValue(observability.EnrichmentFailuresTotal, "markers")
	beforeItems := observability.CounterValue(observability.EnrichmentFailuresTotal, "items")

	portal := &MockSearcher{Err: errors.New("connection refused")}
	s := NewSynthesizer(catalog.Default(), portal)

	m, items := s.Synthesize(context.Background(), catalog.Infrastructure)

	require.NotNil(t, m)
	assert.Len(t, m.Markers, 3)
	assert.Empty(t, m.Live())
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.Equal(t, 1.0, observability.CounterValue(observability.EnrichmentFailuresTotal, "markers")-before)
	assert.Equal(t, 1.0, observability.CounterValue(observability.EnrichmentFailuresTotal, "items")-beforeItems)
}

func TestSynthesizeWithoutPortal(t *testing.T) {
	s := NewSynthesizer(nil, nil)

	m, items := s.Synthesize(context.Background(), catalog.Generic)

	assert.Len(t, m.Markers, 3)
	assert.Empty(t, items)

	_, err := s.LiveMarkers(context.Background(), catalog.Default().Entry(catalog.Generic), "maps")
	assert.ErrorIs(t, err, ErrNoPortal)
}

func TestUnknownCategoryUsesGenericEntry(t *testing.T) {
	s := NewSynthesizer(catalog.Default(), nil)
	m := s.BaseMap(catalog.Category("volcano"))
	generic := s.BaseMap(catalog.Generic)

	assert.Equal(t, catalog.Generic, m.Category)
	if diff := cmp.Diff(generic, m); diff != "" {
		t.Errorf("unexpected map (-want +got):\n%s", diff)
	}
}

func TestSearchTimeoutApplied(t *testing.T) {
	var deadline bool
	portal := searchFunc(func(ctx context.Context, query string, maxItems int, itemType string) ([]arcgis.Item, error) {
		_, deadline = ctx.Deadline()
		return nil, nil
	})
	s := NewSynthesizer(catalog.Default(), portal, WithSearchTimeout(time.Second))
	_, err := s.ResultItems(context.Background(), catalog.Default().Entry(catalog.Wildfire), "x")
	require.NoError(t, err)
	assert.True(t, deadline)
}

func TestLimitOptions(t *testing.T) {
	portal := &MockSearcher{Items: liveItems()}
	s := NewSynthesizer(catalog.Default(), portal, WithMaxMarkers(0), WithMaxItems(2))

	m, items := s.Synthesize(context.Background(), catalog.Wildfire)

	assert.Empty(t, m.Live())
	assert.Len(t, items, 2)
	assert.Equal(t, []int{2}, portal.MaxItems)
}

func TestLimitOptionsAreClamped(t *testing.T) {
	items := append(liveItems(), liveItems()...)
	portal := &MockSearcher{Items: items}
	s := NewSynthesizer(catalog.Default(), portal, WithMaxMarkers(10), WithMaxItems(50))

	m, got := s.Synthesize(context.Background(), catalog.Wildfire)

	assert.Len(t, got, consts.MaxResultItems)
	assert.LessOrEqual(t, len(m.Live()), consts.MaxEnrichmentMarkers)
	assert.Equal(t, []int{consts.MaxEnrichmentMarkers, consts.MaxResultItems}, portal.MaxItems)
}

type searchFunc func(ctx context.Context, query string, maxItems int, itemType string) ([]arcgis.Item, error)

func (f searchFunc) Search(ctx context.Context, query string, maxItems int, itemType string) ([]arcgis.Item, error) {
	return f(ctx, query, maxItems, itemType)
}

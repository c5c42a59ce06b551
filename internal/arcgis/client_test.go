package arcgis

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchBody = `{
  "query": "wildfire", "total": 42, "start": 1, "num": 2, "nextStart": 3,
  "results": [
    {"id": "a1b2c3", "owner": "esri", "title": "Wildfire Risk", "type": "Feature Service",
     "modified": 1700000000000, "extent": [[-120.0, 36.0], [-118.0, 38.0]]},
    {"id": "d4e5f6", "owner": "usfs", "title": "Burn Scars", "type": "Map Service", "extent": []}
  ]
}`

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sharing/rest/search", r.URL.Path)
		assert.Equal(t, "wildfire", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("num"))
		assert.Equal(t, "json", r.URL.Query().Get("f"))
		_, _ = w.Write([]byte(searchBody))
	}))
	defer server.Close()

	c := NewClient(server.URL + "/")
	items, err := c.Search(context.Background(), "wildfire", 5, "")
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Wildfire Risk", items[0].Title)
	assert.Equal(t, "esri", items[0].Owner)
	assert.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), items[0].ModifiedTime())

	lat, lon, ok := items[0].Center()
	require.True(t, ok)
	assert.InDelta(t, 37.0, lat, 1e-9)
	assert.InDelta(t, -119.0, lon, 1e-9)

	_, _, ok = items[1].Center()
	assert.False(t, ok)
	assert.True(t, items[1].ModifiedTime().IsZero())
}

func TestSearchItemTypeAndLimits(t *testing.T) {
	var gotQ, gotNum string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQ = r.URL.Query().Get("q")
		gotNum = r.URL.Query().Get("num")
		_, _ = w.Write([]byte(searchBody))
	}))
	defer server.Close()

	c := NewClient(server.URL)

	items, err := c.Search(context.Background(), "storm", 1, "Feature Layer")
	require.NoError(t, err)
	assert.Equal(t, `storm AND type:"Feature Layer"`, gotQ)
	assert.Equal(t, "1", gotNum)
	assert.Len(t, items, 1, "results are capped client side")

	_, err = c.Search(context.Background(), "storm", 0, "")
	require.NoError(t, err)
	assert.Equal(t, "10", gotNum)

	_, err = c.Search(context.Background(), "storm", 1000, "")
	require.NoError(t, err)
	assert.Equal(t, "100", gotNum)

	_, err = c.Search(context.Background(), "  ", 5, "")
	assert.Error(t, err)
}

func TestSearchPortalError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error": {"code": 400, "message": "Unable to search", "details": ["bad q"]}}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Search(context.Background(), "x", 5, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPortal))

	var pe *PortalError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 400, pe.Code)
	assert.Equal(t, "arcgis portal error 400: Unable to search: bad q", pe.Error())
}

func TestSearchHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Search(context.Background(), "x", 5, "")
	assert.ErrorContains(t, err, "status 503")
}

func TestSearchBadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Search(context.Background(), "x", 5, "")
	assert.ErrorContains(t, err, "decode")
}

func TestGetItem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sharing/rest/content/items/a1b2c3":
			_, _ = w.Write([]byte(`{"id": "a1b2c3", "title": "Wildfire Risk", "type": "Feature Service", "tags": ["fire"]}`))
		default:
			_, _ = w.Write([]byte(`{"error": {"code": 400, "message": "Item does not exist or is inaccessible."}}`))
		}
	}))
	defer server.Close()

	c := NewClient(server.URL)

	item, err := c.GetItem(context.Background(), "a1b2c3")
	require.NoError(t, err)
	want := &Item{ID: "a1b2c3", Title: "Wildfire Risk", Type: "Feature Service", Tags: []string{"fire"}}
	if diff := cmp.Diff(want, item); diff != "" {
		t.Errorf("GetItem mismatch (-want +got):\n%s", diff)
	}

	_, err = c.GetItem(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrPortal)

	_, err = c.GetItem(context.Background(), "../etc")
	assert.ErrorIs(t, err, ErrInvalidItemID)
	_, err = c.GetItem(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidItemID)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("")
	assert.Equal(t, DefaultPortalURL, c.PortalURL())

	hc := &http.Client{}
	c = NewClient("https://portal.example.com/", WithHTTPClient(hc), WithTimeout(time.Second))
	assert.Equal(t, "https://portal.example.com", c.PortalURL())
	assert.Same(t, hc, c.httpClient)
	assert.Equal(t, time.Second, hc.Timeout)
}

func TestContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(searchBody))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(server.URL).Search(ctx, "x", 5, "")
	assert.ErrorIs(t, err, context.Canceled)
}

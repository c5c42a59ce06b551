// Package arcgis is an anonymous client for the ArcGIS portal REST API.
// It covers the item search and item lookup calls that generated scripts
// and the map synthesizer rely on.
package arcgis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/codefionn/geocopilot/internal/consts"
	"github.com/codefionn/geocopilot/internal/logger"
)

// DefaultPortalURL is ArcGIS Online.
const DefaultPortalURL = "https://www.arcgis.com"

const defaultMaxItems = 10

var (
	// ErrPortal is matched by every error the portal reports in its JSON body.
	ErrPortal = errors.New("arcgis portal error")
	// ErrInvalidItemID is returned by GetItem for an empty or malformed id.
	ErrInvalidItemID = errors.New("invalid item id")
)

// PortalError is an error object returned by the portal.
type PortalError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

func (e *PortalError) Error() string {
	msg := e.Message
	if len(e.Details) > 0 {
		msg += ": " + strings.Join(e.Details, "; ")
	}
	return fmt.Sprintf("arcgis portal error %d: %s", e.Code, msg)
}

func (e *PortalError) Is(target error) bool {
	return target == ErrPortal
}

// Item is a portal content item.
type Item struct {
	ID          string      `json:"id"`
	Owner       string      `json:"owner"`
	Title       string      `json:"title"`
	Type        string      `json:"type"`
	Snippet     string      `json:"snippet"`
	Description string      `json:"description"`
	Tags        []string    `json:"tags"`
	URL         string      `json:"url"`
	Created     int64       `json:"created"`
	Modified    int64       `json:"modified"`
	NumViews    int         `json:"numViews"`
	Extent      [][]float64 `json:"extent"`
}

// ModifiedTime converts the epoch-millisecond Modified field.
func (i Item) ModifiedTime() time.Time {
	if i.Modified == 0 {
		return time.Time{}
	}
	return time.UnixMilli(i.Modified).UTC()
}

// Center returns the center of the item's extent as latitude, longitude.
func (i Item) Center() (lat, lon float64, ok bool) {
	if len(i.Extent) != 2 || len(i.Extent[0]) != 2 || len(i.Extent[1]) != 2 {
		return 0, 0, false
	}
	xmin, ymin := i.Extent[0][0], i.Extent[0][1]
	xmax, ymax := i.Extent[1][0], i.Extent[1][1]
	lon = (xmin + xmax) / 2
	lat = (ymin + ymax) / 2
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}

// Client talks to a single portal without credentials.
type Client struct {
	portalURL  string
	httpClient *http.Client
	log        *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient creates an anonymous portal client. An empty URL selects ArcGIS Online.
func NewClient(portalURL string, opts ...Option) *Client {
	u := strings.TrimRight(strings.TrimSpace(portalURL), "/")
	if u == "" {
		u = DefaultPortalURL
	}
	c := &Client{
		portalURL:  u,
		httpClient: &http.Client{Timeout: consts.Timeout30Seconds},
		log:        logger.Global().WithPrefix("arcgis"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PortalURL returns the portal base URL.
func (c *Client) PortalURL() string {
	return c.portalURL
}

type searchResponse struct {
	Total     int          `json:"total"`
	Start     int          `json:"start"`
	Num       int          `json:"num"`
	NextStart int          `json:"nextStart"`
	Results   []Item       `json:"results"`
	Error     *PortalError `json:"error"`
}

// Search runs a portal item search and returns at most maxItems items.
// A non-empty itemType restricts results to that item type.
func (c *Client) Search(ctx context.Context, query string, maxItems int, itemType string) ([]Item, error) {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	if maxItems > consts.MaxSearchItems {
		maxItems = consts.MaxSearchItems
	}

	q := strings.TrimSpace(query)
	if itemType = strings.TrimSpace(itemType); itemType != "" {
		filter := fmt.Sprintf(`type:"%s"`, strings.ReplaceAll(itemType, `"`, ""))
		if q == "" {
			q = filter
		} else {
			q = q + " AND " + filter
		}
	}
	if q == "" {
		return nil, fmt.Errorf("search query must not be empty")
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("num", strconv.Itoa(maxItems))
	params.Set("f", "json")

	var resp searchResponse
	if err := c.getJSON(ctx, "/sharing/rest/search", params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	items := resp.Results
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	c.log.Debug("search %q returned %d of %d items", q, len(items), resp.Total)
	return items, nil
}

// GetItem fetches a single item by id.
func (c *Client) GetItem(ctx context.Context, id string) (*Item, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, "/?#&") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidItemID, id)
	}

	var raw struct {
		Item
		Error *PortalError `json:"error"`
	}
	params := url.Values{"f": {"json"}}
	if err := c.getJSON(ctx, "/sharing/rest/content/items/"+url.PathEscape(id), params, &raw); err != nil {
		return nil, err
	}
	if raw.Error != nil {
		return nil, raw.Error
	}
	item := raw.Item
	return &item, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.portalURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create portal request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("portal request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, consts.BufferSize1MB*8))
	if err != nil {
		return fmt.Errorf("read portal response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("portal request failed: status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode portal response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package pyexec

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/codefionn/geocopilot/internal/arcgis"
	"github.com/codefionn/geocopilot/internal/consts"
)

// Portal is the subset of the ArcGIS client exposed to scripts.
type Portal interface {
	Search(ctx context.Context, query string, maxItems int, itemType string) ([]arcgis.Item, error)
	GetItem(ctx context.Context, id string) (*arcgis.Item, error)
	PortalURL() string
}

// sdkVersion is reported as arcgis.__version__.
const sdkVersion = "2.4.0"

// arcgisModules builds the importable modules for one execution.
func arcgisModules(portal Portal) map[string]*Module {
	gisClass := &gisClass{portal: portal}
	gisMod := &Module{Name: "arcgis.gis", Attrs: map[string]Value{
		"GIS":  gisClass,
		"Item": itemClass{},
	}}
	root := &Module{Name: "arcgis", Attrs: map[string]Value{
		"GIS":         gisClass,
		"gis":         gisMod,
		"__version__": sdkVersion,
	}}
	return map[string]*Module{
		"arcgis":     root,
		"arcgis.gis": gisMod,
	}
}

// gisClass is the GIS constructor. Only the anonymous form is accepted.
type gisClass struct {
	portal Portal
}

func (g *gisClass) Call(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
	if len(args) > 0 || len(kwargs) > 0 {
		return nil, newException("PermissionError", "GIS() only supports anonymous access; credentials are not accepted")
	}
	if g.portal == nil {
		return nil, newException("ConnectionError", "no portal is configured")
	}
	gis := &gisObject{portal: g.portal}
	gis.content = &contentManager{gis: gis}
	return gis, nil
}

func (g *gisClass) IsInstance(v Value) bool {
	_, ok := v.(*gisObject)
	return ok
}

func (g *gisClass) String() string   { return "<class 'arcgis.gis.GIS'>" }
func (g *gisClass) TypeName() string { return "type" }

type gisObject struct {
	portal  Portal
	content *contentManager
}

func (g *gisObject) TypeName() string { return "GIS" }
func (g *gisObject) String() string   { return "GIS @ " + g.portal.PortalURL() }

func (g *gisObject) Attr(name string) (Value, bool) {
	switch name {
	case "content":
		return g.content, true
	case "url":
		return g.portal.PortalURL(), true
	}
	return nil, false
}

type contentManager struct {
	gis *gisObject
}

func (c *contentManager) TypeName() string { return "ContentManager" }
func (c *contentManager) String() string {
	return "<ContentManager for " + c.gis.portal.PortalURL() + ">"
}

var searchParams = []string{
	"query", "item_type", "sort_field", "sort_order", "max_items",
	"outside_org", "categories", "category_filters", "enrich",
}

func (c *contentManager) Attr(name string) (Value, bool) {
	switch name {
	case "search":
		return method("ContentManager", "search", c.search), true
	case "get":
		return method("ContentManager", "get", c.get), true
	}
	return nil, false
}

func (c *contentManager) search(ip *Interp, args []Value, kwargs map[string]Value) (Value, error) {
	a, err := bindArgs("search", args, kwargs, searchParams, 1)
	if err != nil {
		return nil, err
	}
	query, ok := a[0].(string)
	if !ok {
		return nil, typeError("search() query must be str, not %s", typeName(a[0]))
	}
	itemType := ""
	if !isNone(a[1]) {
		if itemType, ok = a[1].(string); !ok {
			return nil, typeError("search() item_type must be str, not %s", typeName(a[1]))
		}
	}
	maxItems := 10
	if !isNone(a[4]) {
		if maxItems, ok = asInt(a[4]); !ok {
			return nil, typeError("search() max_items must be int, not %s", typeName(a[4]))
		}
	}
	if maxItems <= 0 {
		return NewList(), nil
	}
	maxItems = min(maxItems, consts.MaxSearchItems)

	items, err := c.gis.portal.Search(ip.Context(), query, maxItems, itemType)
	if err != nil {
		return nil, sdkFailure(err)
	}
	out := make([]Value, len(items))
	for i := range items {
		out[i] = &itemObject{item: items[i], portalURL: c.gis.portal.PortalURL()}
	}
	return NewList(out...), nil
}

func (c *contentManager) get(ip *Interp, args []Value, kwargs map[string]Value) (Value, error) {
	a, err := bindArgs("get", args, kwargs, []string{"itemid"}, 1)
	if err != nil {
		return nil, err
	}
	id, ok := a[0].(string)
	if !ok {
		return nil, typeError("get() itemid must be str, not %s", typeName(a[0]))
	}
	item, err := c.gis.portal.GetItem(ip.Context(), id)
	if err != nil {
		if errors.Is(err, arcgis.ErrPortal) || errors.Is(err, arcgis.ErrInvalidItemID) {
			return None, nil
		}
		return nil, sdkFailure(err)
	}
	return &itemObject{item: *item, portalURL: c.gis.portal.PortalURL()}, nil
}

func sdkFailure(err error) *Exception {
	kind := "Exception"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = "TimeoutError"
	case errors.Is(err, context.Canceled):
		kind = "KeyboardInterrupt"
	case !errors.Is(err, arcgis.ErrPortal):
		kind = "ConnectionError"
	}
	return &Exception{Kind: kind, Message: err.Error()}
}

// itemClass is arcgis.gis.Item, usable with isinstance only.
type itemClass struct{}

func (itemClass) IsInstance(v Value) bool {
	_, ok := v.(*itemObject)
	return ok
}

func (itemClass) String() string   { return "<class 'arcgis.gis.Item'>" }
func (itemClass) TypeName() string { return "type" }

// itemObject is a portal item as seen by scripts. Like the Python SDK it
// supports both item.title and item["title"].
type itemObject struct {
	item      arcgis.Item
	portalURL string
}

func (it *itemObject) TypeName() string { return "Item" }

func (it *itemObject) String() string {
	return fmt.Sprintf("<Item title:%q type:%s owner:%s>", it.item.Title, it.item.Type, it.item.Owner)
}

func (it *itemObject) Attr(name string) (Value, bool) {
	i := it.item
	switch name {
	case "id", "itemid":
		return i.ID, true
	case "title":
		return i.Title, true
	case "type":
		return i.Type, true
	case "owner":
		return i.Owner, true
	case "snippet":
		return i.Snippet, true
	case "description":
		return i.Description, true
	case "url":
		if i.URL == "" {
			return None, true
		}
		return i.URL, true
	case "created":
		return int(i.Created), true
	case "modified":
		return int(i.Modified), true
	case "numViews":
		return i.NumViews, true
	case "tags":
		tags := make([]Value, len(i.Tags))
		for k, t := range i.Tags {
			tags[k] = t
		}
		return NewList(tags...), true
	case "extent":
		rows := make([]Value, len(i.Extent))
		for k, row := range i.Extent {
			pt := make([]Value, len(row))
			for j, f := range row {
				pt[j] = f
			}
			rows[k] = NewList(pt...)
		}
		return NewList(rows...), true
	case "homepage":
		return strings.TrimRight(it.portalURL, "/") + "/home/item.html?id=" + i.ID, true
	}
	return nil, false
}

func (it *itemObject) GetItem(key Value) (Value, error) {
	name, ok := key.(string)
	if ok {
		if v, found := it.Attr(name); found {
			return v, nil
		}
	}
	return nil, &Exception{Kind: "KeyError", Message: Repr(key)}
}

// Len and Iter let scripts treat an item like the dict it is in the SDK.
func (it *itemObject) Len() int { return len(itemKeys) }

func (it *itemObject) Iter() []Value {
	out := make([]Value, len(itemKeys))
	for i, k := range itemKeys {
		out[i] = k
	}
	return out
}

var itemKeys = []string{"id", "owner", "title", "type", "snippet", "description", "tags", "url", "created", "modified", "numViews", "extent"}

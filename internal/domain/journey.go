package domain

import "encoding/json"

// Product is the transit mode of a leg, or walk.
type Product string

const (
	ProductSubway   Product = "subway"
	ProductSuburban Product = "suburban"
	ProductRegional Product = "regional"
	ProductTram     Product = "tram"
	ProductBus      Product = "bus"
	ProductWalk     Product = "walk"
)

// Line identifies the transit line operating a leg.
type Line struct {
	Name    string  `json:"name"`
	Product Product `json:"product,omitempty"`
}

// Leg is one homogeneous-mode segment of an itinerary. Polyline is kept raw:
// upstreams send it as an encoded string, an object wrapping the string, a
// coordinate list or a GeoJSON FeatureCollection.
type Leg struct {
	Mode        string          `json:"mode,omitempty"`
	Walking     bool            `json:"walking,omitempty"`
	Line        *Line           `json:"line,omitempty"`
	Origin      Place           `json:"origin"`
	Destination Place           `json:"destination"`
	Departure   string          `json:"departure,omitempty"`
	Arrival     string          `json:"arrival,omitempty"`
	Polyline    json.RawMessage `json:"polyline,omitempty"`
}

// Itinerary is one journey returned by the planner.
type Itinerary struct {
	Legs []Leg `json:"legs"`
}

// RenderSegment is a leg prepared for map display.
type RenderSegment struct {
	LegIndex  int     `json:"legIndex"`
	Coords    []Coord `json:"coords"`
	Encoded   string  `json:"encoded"`
	Product   Product `json:"product"`
	Color     string  `json:"color"`
	Label     string  `json:"label"`
	Icon      string  `json:"icon"`
	TimeRange string  `json:"timeRange,omitempty"`
}

// TransferPoint marks a change of product between two consecutive legs.
type TransferPoint struct {
	Coord Coord   `json:"coord"`
	Name  string  `json:"name,omitempty"`
	From  Product `json:"from"`
	To    Product `json:"to"`
}

// LegCard is one entry of the ordered leg list.
type LegCard struct {
	Product     Product `json:"product"`
	Label       string  `json:"label"`
	Icon        string  `json:"icon"`
	Color       string  `json:"color"`
	LineName    string  `json:"lineName,omitempty"`
	TimeRange   string  `json:"timeRange,omitempty"`
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	OnMap       bool    `json:"onMap"`
}

// BoundingBox is the viewport enclosing every drawn segment and marker.
type BoundingBox struct {
	MinLat float64 `json:"minLat"`
	MaxLat float64 `json:"maxLat"`
	MinLon float64 `json:"minLon"`
	MaxLon float64 `json:"maxLon"`
}

package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Coord is a WGS84 position in degrees.
type Coord struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// ResolvedLocation is the canonical result of resolving user input.
// At least one of ID or Coords is set.
type ResolvedLocation struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Coords *Coord `json:"coords,omitempty"`
}

func (l ResolvedLocation) HasID() bool {
	return l.ID != ""
}

// Usable reports whether the location can be sent to the journey planner.
func (l ResolvedLocation) Usable() bool {
	return l.ID != "" || l.Coords != nil
}

// StopCandidate is one record returned by stop search, nearby lookup or
// reverse geocoding. The upstreams disagree on field names, so decoding runs
// the raw object through the shape adapters below.
type StopCandidate struct {
	Type      string
	ID        string
	IBNR      string
	StationID string
	Name      string
	// Direct holds coordinates found on the record itself.
	Direct *Coord
	// Nested holds coordinates found under "location".
	Nested *Coord
}

type rawObject map[string]json.RawMessage

// coordShape extracts a coordinate pair from one known field layout.
type coordShape func(obj rawObject) (Coord, bool)

// coordShapes is evaluated in order; the first match wins.
var coordShapes = []coordShape{
	fieldPair("latitude", "longitude"),
	fieldPair("lat", "lon"),
}

func fieldPair(latKey, lonKey string) coordShape {
	return func(obj rawObject) (Coord, bool) {
		lat, ok := rawFloat(obj[latKey])
		if !ok {
			return Coord{}, false
		}
		lon, ok := rawFloat(obj[lonKey])
		if !ok {
			return Coord{}, false
		}
		return Coord{Lat: lat, Lon: lon}, true
	}
}

func matchCoords(obj rawObject) *Coord {
	for _, shape := range coordShapes {
		if c, ok := shape(obj); ok {
			return &c
		}
	}
	return nil
}

// ParseCoord decodes a coordinate object in any of the known field layouts.
// ok is false when raw is not an object or carries no coordinate pair.
func ParseCoord(raw json.RawMessage) (Coord, bool) {
	obj := rawObjectOf(raw)
	if obj == nil {
		return Coord{}, false
	}
	c := matchCoords(obj)
	if c == nil {
		return Coord{}, false
	}
	return *c, true
}

func (c *StopCandidate) UnmarshalJSON(data []byte) error {
	var obj rawObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	*c = StopCandidate{}
	c.Type, _ = rawString(obj["type"])
	c.ID, _ = rawString(obj["id"])
	c.IBNR, _ = rawString(obj["ibnr"])
	// geocoder answers carry the full address in display_name
	c.Name, _ = rawString(obj["display_name"])
	if c.Name == "" {
		c.Name, _ = rawString(obj["name"])
	}

	if station := rawObjectOf(obj["station"]); station != nil {
		c.StationID, _ = rawString(station["id"])
	}

	c.Direct = matchCoords(obj)
	if loc := rawObjectOf(obj["location"]); loc != nil {
		c.Nested = matchCoords(loc)
	}
	return nil
}

// Place is a leg endpoint (origin or destination).
type Place struct {
	Name     string `json:"name"`
	ID       string `json:"id,omitempty"`
	Location *Coord `json:"location,omitempty"`
}

func (p *Place) UnmarshalJSON(data []byte) error {
	var c StopCandidate
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	p.Name = c.Name
	p.ID = c.ID
	p.Location = c.Direct
	if p.Location == nil {
		p.Location = c.Nested
	}
	return nil
}

func rawObjectOf(raw json.RawMessage) rawObject {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var obj rawObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	return obj
}

// rawString accepts a JSON string or number.
func rawString(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// rawFloat accepts a JSON number or a numeric string (Nominatim sends strings).
func rawFloat(raw json.RawMessage) (float64, bool) {
	if isNull(raw) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// Geocode is the single best answer of the geocoding service.
type Geocode struct {
	Name   string
	Coords Coord
}

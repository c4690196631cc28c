package journey

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"campuspulse/internal/domain"
	"campuspulse/pkg/polyline"
)

// shapeAdapter decodes one wire form of a leg polyline. ok is false when raw
// is not in the adapter's form.
type shapeAdapter func(raw json.RawMessage) (coords []domain.Coord, ok bool, err error)

var shapeAdapters = []shapeAdapter{
	encodedString,
	pointsObject,
	featureCollection,
	coordinateList,
}

// Geometry returns the drawable path of a leg. Without polyline data it falls
// back to the straight line between origin and destination, and to nil when
// either end has no location. A malformed encoded polyline is an error.
func Geometry(leg domain.Leg) ([]domain.Coord, error) {
	coords, err := decodeShape(leg.Polyline)
	if err != nil {
		return nil, err
	}
	if len(coords) > 0 {
		return coords, nil
	}

	from, to := leg.Origin.Location, leg.Destination.Location
	if from == nil || to == nil {
		return nil, nil
	}
	return []domain.Coord{*from, *to}, nil
}

func decodeShape(raw json.RawMessage) ([]domain.Coord, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	for _, adapt := range shapeAdapters {
		coords, ok, err := adapt(raw)
		if err != nil {
			return nil, err
		}
		if ok {
			return coords, nil
		}
	}
	return nil, nil
}

func encodedString(raw json.RawMessage) ([]domain.Coord, bool, error) {
	if raw[0] != '"' {
		return nil, false, nil
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, false, fmt.Errorf("%w: %w", domain.ErrMalformedGeometry, err)
	}
	coords, err := polyline.Decode(encoded)
	if err != nil {
		return nil, false, err
	}
	return coords, true, nil
}

func pointsObject(raw json.RawMessage) ([]domain.Coord, bool, error) {
	if raw[0] != '{' {
		return nil, false, nil
	}
	var wrapped struct {
		Points *string `json:"points"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil || wrapped.Points == nil {
		return nil, false, nil
	}
	coords, err := polyline.Decode(*wrapped.Points)
	if err != nil {
		return nil, false, err
	}
	return coords, true, nil
}

// featureCollection reads the GeoJSON form transport.rest sends with
// polylines=true: point features for every stopover, or line strings.
func featureCollection(raw json.RawMessage) ([]domain.Coord, bool, error) {
	if raw[0] != '{' {
		return nil, false, nil
	}
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.Type != "FeatureCollection" {
		return nil, false, nil
	}

	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", domain.ErrMalformedGeometry, err)
	}

	var coords []domain.Coord
	for _, f := range fc.Features {
		coords = appendGeometry(coords, f.Geometry)
	}
	return coords, true, nil
}

func appendGeometry(coords []domain.Coord, g orb.Geometry) []domain.Coord {
	switch g := g.(type) {
	case orb.Point:
		coords = append(coords, fromPoint(g))
	case orb.MultiPoint:
		for _, p := range g {
			coords = append(coords, fromPoint(p))
		}
	case orb.LineString:
		for _, p := range g {
			coords = append(coords, fromPoint(p))
		}
	case orb.MultiLineString:
		for _, ls := range g {
			coords = appendGeometry(coords, ls)
		}
	}
	return coords
}

// coordinateList accepts [[lat, lon], ...] or a list of coordinate objects
// ({"latitude", "longitude"} or {"lat", "lon"}). An object without a
// coordinate pair is malformed.
func coordinateList(raw json.RawMessage) ([]domain.Coord, bool, error) {
	if raw[0] != '[' {
		return nil, false, nil
	}

	var pairs [][]float64
	if err := json.Unmarshal(raw, &pairs); err == nil {
		coords := make([]domain.Coord, 0, len(pairs))
		for _, p := range pairs {
			if len(p) < 2 {
				return nil, false, fmt.Errorf("%w: coordinate pair with %d values", domain.ErrMalformedGeometry, len(p))
			}
			coords = append(coords, domain.Coord{Lat: p[0], Lon: p[1]})
		}
		return coords, true, nil
	}

	var objects []json.RawMessage
	if err := json.Unmarshal(raw, &objects); err != nil {
		return nil, false, fmt.Errorf("%w: %w", domain.ErrMalformedGeometry, err)
	}
	coords := make([]domain.Coord, 0, len(objects))
	for i, obj := range objects {
		c, ok := domain.ParseCoord(obj)
		if !ok {
			return nil, false, fmt.Errorf("%w: element %d has no coordinates", domain.ErrMalformedGeometry, i)
		}
		coords = append(coords, c)
	}
	return coords, true, nil
}

func toPoint(c domain.Coord) orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

func fromPoint(p orb.Point) domain.Coord {
	return domain.Coord{Lat: p.Lat(), Lon: p.Lon()}
}

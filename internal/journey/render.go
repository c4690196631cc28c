package journey

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	gopolyline "github.com/twpayne/go-polyline"

	"campuspulse/internal/domain"
)

// Overlay is an itinerary prepared for the map surface and the leg list.
type Overlay struct {
	Segments  []domain.RenderSegment     `json:"segments"`
	Transfers []domain.TransferPoint     `json:"transfers"`
	Cards     []domain.LegCard           `json:"cards"`
	Bounds    *domain.BoundingBox        `json:"bounds,omitempty"`
	GeoJSON   *geojson.FeatureCollection `json:"geojson"`
}

// Render classifies and styles every leg. Legs without geometry still get a
// card but no segment.
func Render(legs []domain.Leg) (*Overlay, error) {
	overlay := &Overlay{
		Segments:  []domain.RenderSegment{},
		Transfers: DetectTransfers(legs),
		Cards:     make([]domain.LegCard, 0, len(legs)),
		GeoJSON:   geojson.NewFeatureCollection(),
	}

	var bound orb.Bound
	hasBound := false

	for i, leg := range legs {
		coords, err := Geometry(leg)
		if err != nil {
			return nil, fmt.Errorf("leg %d: %w", i, err)
		}

		product := Classify(leg)
		style := Style(product)
		timeRange := ""
		if product != domain.ProductWalk {
			timeRange = TimeRange(leg.Departure, leg.Arrival)
		}

		card := domain.LegCard{
			Product:     product,
			Label:       style.Label,
			Icon:        style.Icon,
			Color:       style.Color,
			TimeRange:   timeRange,
			Origin:      leg.Origin.Name,
			Destination: leg.Destination.Name,
			OnMap:       len(coords) > 0,
		}
		if leg.Line != nil {
			card.LineName = leg.Line.Name
		}
		overlay.Cards = append(overlay.Cards, card)

		if len(coords) == 0 {
			continue
		}

		ls := toLineString(coords)
		if hasBound {
			bound = bound.Union(ls.Bound())
		} else {
			bound, hasBound = ls.Bound(), true
		}

		overlay.Segments = append(overlay.Segments, domain.RenderSegment{
			LegIndex:  i,
			Coords:    coords,
			Encoded:   encode(coords),
			Product:   product,
			Color:     style.Color,
			Label:     style.Label,
			Icon:      style.Icon,
			TimeRange: timeRange,
		})

		f := geojson.NewFeature(ls)
		f.Properties["kind"] = "leg"
		f.Properties["legIndex"] = i
		f.Properties["product"] = string(product)
		f.Properties["color"] = style.Color
		f.Properties["label"] = style.Label
		overlay.GeoJSON.Append(f)
	}

	for _, tp := range overlay.Transfers {
		p := toPoint(tp.Coord)
		if hasBound {
			bound = bound.Extend(p)
		} else {
			bound, hasBound = p.Bound(), true
		}

		f := geojson.NewFeature(p)
		f.Properties["kind"] = "transfer"
		f.Properties["name"] = tp.Name
		f.Properties["from"] = string(tp.From)
		f.Properties["to"] = string(tp.To)
		overlay.GeoJSON.Append(f)
	}

	if hasBound {
		overlay.Bounds = &domain.BoundingBox{
			MinLat: bound.Min.Lat(),
			MaxLat: bound.Max.Lat(),
			MinLon: bound.Min.Lon(),
			MaxLon: bound.Max.Lon(),
		}
	}

	return overlay, nil
}

// TimeRange formats departure and arrival as "HH:MM–HH:MM" in the stop's
// local offset. Either side may be empty.
func TimeRange(departure, arrival string) string {
	dep, arr := clock(departure), clock(arrival)
	if dep == "" && arr == "" {
		return ""
	}
	return dep + "–" + arr
}

func clock(ts string) string {
	if ts == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t.Format("15:04")
	}
	if len(ts) >= 16 {
		return ts[11:16]
	}
	return ""
}

func toLineString(coords []domain.Coord) orb.LineString {
	ls := make(orb.LineString, len(coords))
	for i, c := range coords {
		ls[i] = toPoint(c)
	}
	return ls
}

func encode(coords []domain.Coord) string {
	pairs := make([][]float64, len(coords))
	for i, c := range coords {
		pairs[i] = []float64{c.Lat, c.Lon}
	}
	return string(gopolyline.EncodeCoords(pairs))
}

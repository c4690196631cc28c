package resolver

import (
	"context"
	"errors"
	"fmt"

	"campuspulse/internal/domain"
	"campuspulse/internal/stopid"
)

// ErrNoMatch tells the resolver to try the next strategy.
var ErrNoMatch = errors.New("no match")

// Strategy is one step of the resolution fallback chain. Run receives the
// stop-search candidates fetched once for the query.
type Strategy struct {
	Name string
	Run  func(ctx context.Context, query string, candidates []domain.StopCandidate) (domain.ResolvedLocation, error)
}

// Geocoder turns free text into one coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (domain.Geocode, error)
}

// DefaultStrategies is the production chain: transit stop, coordinate-only
// candidate, then the geocoder.
func DefaultStrategies(geocoder Geocoder) []Strategy {
	return []Strategy{
		StopIDStrategy(),
		CoordinatesStrategy(),
		GeocodeStrategy(geocoder),
	}
}

// StopIDStrategy picks the first candidate carrying a numeric stop id.
func StopIDStrategy() Strategy {
	return Strategy{
		Name: "stop_id",
		Run: func(_ context.Context, query string, candidates []domain.StopCandidate) (domain.ResolvedLocation, error) {
			for _, c := range candidates {
				id := stopid.NormalizeID(c)
				if id == "" {
					continue
				}
				return domain.ResolvedLocation{
					ID:     id,
					Name:   nameOr(c.Name, query),
					Coords: stopid.ExtractCoords(c),
				}, nil
			}
			return domain.ResolvedLocation{}, ErrNoMatch
		},
	}
}

// CoordinatesStrategy picks the first candidate with coordinates, typically an
// address or point of interest without a transit id.
func CoordinatesStrategy() Strategy {
	return Strategy{
		Name: "coordinates",
		Run: func(_ context.Context, query string, candidates []domain.StopCandidate) (domain.ResolvedLocation, error) {
			for _, c := range candidates {
				coords := stopid.ExtractCoords(c)
				if coords == nil {
					continue
				}
				return domain.ResolvedLocation{
					Name:   nameOr(c.Name, query),
					Coords: coords,
				}, nil
			}
			return domain.ResolvedLocation{}, ErrNoMatch
		},
	}
}

// GeocodeStrategy sends the raw query to the geocoding service.
func GeocodeStrategy(geocoder Geocoder) Strategy {
	return Strategy{
		Name: "geocode",
		Run: func(ctx context.Context, query string, _ []domain.StopCandidate) (domain.ResolvedLocation, error) {
			if geocoder == nil {
				return domain.ResolvedLocation{}, ErrNoMatch
			}
			geocode, err := geocoder.Geocode(ctx, query)
			if err != nil {
				return domain.ResolvedLocation{}, fmt.Errorf("geocoding %q: %w", query, err)
			}
			coords := geocode.Coords
			return domain.ResolvedLocation{
				Name:   nameOr(geocode.Name, query),
				Coords: &coords,
			}, nil
		},
	}
}

func nameOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}

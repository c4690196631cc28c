// Package resolver maps free text or a coordinate pair onto a canonical
// location through an ordered fallback chain across the upstream services.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"campuspulse/internal/domain"
	"campuspulse/internal/stopid"
)

// DefaultResults is the number of candidates requested from lookups.
const DefaultResults = 5

type StopSearcher interface {
	Locations(ctx context.Context, query string, results int) ([]domain.StopCandidate, error)
}

type NearbySearcher interface {
	Nearby(ctx context.Context, lat, lon float64, results int) ([]domain.StopCandidate, error)
}

type Resolver struct {
	stops      StopSearcher
	nearby     NearbySearcher
	strategies []Strategy
	results    int
	logger     *slog.Logger

	// OnResolved, when set, is called with the name of the winning strategy.
	OnResolved func(strategy string)
}

func New(stops StopSearcher, nearby NearbySearcher, strategies []Strategy, logger *slog.Logger) *Resolver {
	return &Resolver{
		stops:      stops,
		nearby:     nearby,
		strategies: strategies,
		results:    DefaultResults,
		logger:     logger.With("component", "resolver"),
	}
}

// Resolve runs the fallback chain for query. Failures of intermediate steps
// are logged and the next strategy is tried; only exhaustion is returned, as
// a *domain.NotFoundError.
func (r *Resolver) Resolve(ctx context.Context, query string) (domain.ResolvedLocation, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.ResolvedLocation{}, &domain.NotFoundError{Query: query}
	}

	candidates, err := r.stops.Locations(ctx, query, r.results)
	if err != nil {
		if ctx.Err() != nil {
			return domain.ResolvedLocation{}, ctx.Err()
		}
		r.logger.Warn("stop search failed, trying fallbacks", "query", query, "error", err)
		candidates = nil
	}

	for _, s := range r.strategies {
		loc, err := s.Run(ctx, query, candidates)
		if err == nil && loc.Usable() {
			r.logger.Debug("location resolved", "query", query, "strategy", s.Name, "id", loc.ID)
			if r.OnResolved != nil {
				r.OnResolved(s.Name)
			}
			return loc, nil
		}
		if ctx.Err() != nil {
			return domain.ResolvedLocation{}, ctx.Err()
		}
		if err != nil && !errors.Is(err, ErrNoMatch) {
			r.logger.Info("resolver step failed", "query", query, "strategy", s.Name, "error", err)
		}
	}

	return domain.ResolvedLocation{}, &domain.NotFoundError{
		Query:         query,
		HadCandidates: len(candidates) > 0,
	}
}

// ResolveByCoordinates returns the first nearby stop or station with a
// numeric id.
func (r *Resolver) ResolveByCoordinates(ctx context.Context, lat, lon float64) (domain.ResolvedLocation, error) {
	candidates, err := r.nearby.Nearby(ctx, lat, lon, r.results)
	if err != nil {
		return domain.ResolvedLocation{}, fmt.Errorf("nearby lookup: %w", err)
	}

	for _, c := range candidates {
		if c.ID == "" || !isStopType(c.Type) {
			continue
		}
		id := stopid.NormalizeID(c)
		if id == "" {
			continue
		}
		return domain.ResolvedLocation{
			ID:     id,
			Name:   c.Name,
			Coords: stopid.ExtractCoords(c),
		}, nil
	}

	return domain.ResolvedLocation{}, fmt.Errorf("%w near %.5f,%.5f", domain.ErrNoNearbyStop, lat, lon)
}

// SnapToNearestStop gives a coordinate-only location the id of the closest
// stop. It is best effort: on failure loc is returned unchanged.
func (r *Resolver) SnapToNearestStop(ctx context.Context, loc domain.ResolvedLocation) domain.ResolvedLocation {
	if loc.HasID() || loc.Coords == nil {
		return loc
	}

	snapped, err := r.ResolveByCoordinates(ctx, loc.Coords.Lat, loc.Coords.Lon)
	if err != nil {
		r.logger.Debug("snap to nearest stop failed", "name", loc.Name, "error", err)
		return loc
	}

	out := loc
	out.ID = snapped.ID
	if snapped.Name != "" {
		out.Name = snapped.Name
	}
	if snapped.Coords != nil {
		out.Coords = snapped.Coords
	}
	return out
}

func isStopType(t string) bool {
	switch t {
	case "", "stop", "station":
		return true
	default:
		return false
	}
}

package resolver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campuspulse/internal/domain"
)

type fakeStops struct {
	candidates []domain.StopCandidate
	err        error
	calls      int
}

func (f *fakeStops) Locations(_ context.Context, _ string, _ int) ([]domain.StopCandidate, error) {
	f.calls++
	return f.candidates, f.err
}

type fakeNearby struct {
	candidates []domain.StopCandidate
	err        error
}

func (f *fakeNearby) Nearby(_ context.Context, _, _ float64, _ int) ([]domain.StopCandidate, error) {
	return f.candidates, f.err
}

type fakeGeocoder struct {
	result domain.Geocode
	err    error
	calls  int
}

func (f *fakeGeocoder) Geocode(_ context.Context, _ string) (domain.Geocode, error) {
	f.calls++
	return f.result, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestResolver(stops *fakeStops, nearby *fakeNearby, geo *fakeGeocoder) *Resolver {
	return New(stops, nearby, DefaultStrategies(geo), testLogger())
}

func TestResolvePrefersStopID(t *testing.T) {
	stops := &fakeStops{candidates: []domain.StopCandidate{
		{Type: "location", Name: "Some Address", Direct: &domain.Coord{Lat: 52.5, Lon: 13.4}},
		{Type: "stop", ID: "de:12063:900230999", Name: "Campus Jungfernsee", Direct: &domain.Coord{Lat: 52.42, Lon: 13.05}},
	}}
	geo := &fakeGeocoder{}

	loc, err := newTestResolver(stops, &fakeNearby{}, geo).Resolve(context.Background(), "Campus Jungfernsee")
	require.NoError(t, err)
	assert.Equal(t, "900230999", loc.ID)
	assert.Equal(t, "Campus Jungfernsee", loc.Name)
	require.NotNil(t, loc.Coords)
	assert.Equal(t, 52.42, loc.Coords.Lat)
	assert.Zero(t, geo.calls)
}

func TestResolveFallsBackToCoordinates(t *testing.T) {
	stops := &fakeStops{candidates: []domain.StopCandidate{
		{Type: "location", Name: "Hauptstrasse 1", Nested: &domain.Coord{Lat: 52.1, Lon: 13.2}},
	}}
	geo := &fakeGeocoder{}

	loc, err := newTestResolver(stops, &fakeNearby{}, geo).Resolve(context.Background(), "Hauptstrasse 1")
	require.NoError(t, err)
	assert.False(t, loc.HasID())
	assert.Equal(t, &domain.Coord{Lat: 52.1, Lon: 13.2}, loc.Coords)
	assert.Zero(t, geo.calls)
}

func TestResolveFallsBackToGeocoder(t *testing.T) {
	stops := &fakeStops{}
	geo := &fakeGeocoder{result: domain.Geocode{Name: "Potsdam, Germany", Coords: domain.Coord{Lat: 52.39, Lon: 13.06}}}

	var winner string
	r := newTestResolver(stops, &fakeNearby{}, geo)
	r.OnResolved = func(s string) { winner = s }

	loc, err := r.Resolve(context.Background(), "Potsdam")
	require.NoError(t, err)
	assert.Equal(t, "Potsdam, Germany", loc.Name)
	assert.Equal(t, 52.39, loc.Coords.Lat)
	assert.Equal(t, "geocode", winner)
	assert.Equal(t, 1, geo.calls)
}

func TestResolveStopSearchFailureStillGeocodes(t *testing.T) {
	stops := &fakeStops{err: &domain.UpstreamError{Service: "bvg", StatusCode: 503}}
	geo := &fakeGeocoder{result: domain.Geocode{Name: "Potsdam", Coords: domain.Coord{Lat: 52.39, Lon: 13.06}}}

	loc, err := newTestResolver(stops, &fakeNearby{}, geo).Resolve(context.Background(), "Potsdam")
	require.NoError(t, err)
	assert.Equal(t, "Potsdam", loc.Name)
}

func TestResolveNotFound(t *testing.T) {
	tests := []struct {
		name       string
		candidates []domain.StopCandidate
		wantMsg    string
	}{
		{
			name:    "no candidates",
			wantMsg: "no stop found for Nowhere",
		},
		{
			name:       "unusable candidates",
			candidates: []domain.StopCandidate{{Type: "poi", Name: "Nowhere"}},
			wantMsg:    "no stop or address found for Nowhere",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			geo := &fakeGeocoder{err: domain.ErrNotFound}
			_, err := newTestResolver(&fakeStops{candidates: tt.candidates}, &fakeNearby{}, geo).
				Resolve(context.Background(), "Nowhere")
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrNotFound)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestResolveEmptyQuerySkipsUpstream(t *testing.T) {
	stops := &fakeStops{}
	geo := &fakeGeocoder{}

	_, err := newTestResolver(stops, &fakeNearby{}, geo).Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, stops.calls)
	assert.Zero(t, geo.calls)
}

func TestResolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stops := &fakeStops{err: context.Canceled}
	_, err := newTestResolver(stops, &fakeNearby{}, &fakeGeocoder{}).Resolve(ctx, "Potsdam")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStrategiesRunInOrder(t *testing.T) {
	var order []string
	record := func(name string, match bool) Strategy {
		return Strategy{Name: name, Run: func(context.Context, string, []domain.StopCandidate) (domain.ResolvedLocation, error) {
			order = append(order, name)
			if !match {
				return domain.ResolvedLocation{}, ErrNoMatch
			}
			return domain.ResolvedLocation{ID: "1"}, nil
		}}
	}

	r := New(&fakeStops{}, &fakeNearby{}, []Strategy{
		record("first", false),
		{Name: "broken", Run: func(context.Context, string, []domain.StopCandidate) (domain.ResolvedLocation, error) {
			order = append(order, "broken")
			return domain.ResolvedLocation{}, errors.New("boom")
		}},
		record("second", true),
		record("never", true),
	}, testLogger())

	_, err := r.Resolve(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "broken", "second"}, order)
}

func TestResolveByCoordinates(t *testing.T) {
	tests := []struct {
		name       string
		candidates []domain.StopCandidate
		wantID     string
		wantErr    error
	}{
		{
			name: "skips non-stop types and empty ids",
			candidates: []domain.StopCandidate{
				{Type: "location", ID: "123"},
				{Type: "stop", ID: ""},
				{Type: "station", ID: "de:11000:900003201", Name: "S+U Berlin Hbf"},
			},
			wantID: "900003201",
		},
		{
			name:       "missing type is accepted",
			candidates: []domain.StopCandidate{{ID: "900000100001", Name: "S+U Alexanderplatz"}},
			wantID:     "900000100001",
		},
		{
			name:       "non-numeric id is skipped",
			candidates: []domain.StopCandidate{{Type: "stop", ID: "abc"}},
			wantErr:    domain.ErrNoNearbyStop,
		},
		{
			name:    "nothing nearby",
			wantErr: domain.ErrNoNearbyStop,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(&fakeStops{}, &fakeNearby{candidates: tt.candidates}, &fakeGeocoder{})
			loc, err := r.ResolveByCoordinates(context.Background(), 52.5, 13.4)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, loc.ID)
		})
	}
}

func TestSnapToNearestStop(t *testing.T) {
	original := domain.ResolvedLocation{Name: "Hauptstrasse 1", Coords: &domain.Coord{Lat: 52.1, Lon: 13.2}}

	t.Run("snaps coordinate-only location", func(t *testing.T) {
		nearby := &fakeNearby{candidates: []domain.StopCandidate{
			{Type: "stop", ID: "900230999", Name: "Campus Jungfernsee", Direct: &domain.Coord{Lat: 52.42, Lon: 13.05}},
		}}
		got := newTestResolver(&fakeStops{}, nearby, &fakeGeocoder{}).SnapToNearestStop(context.Background(), original)
		assert.Equal(t, "900230999", got.ID)
		assert.Equal(t, "Campus Jungfernsee", got.Name)
		assert.Equal(t, 52.42, got.Coords.Lat)
	})

	t.Run("keeps original on failure", func(t *testing.T) {
		nearby := &fakeNearby{err: &domain.UpstreamError{Service: "bvg", StatusCode: 500}}
		got := newTestResolver(&fakeStops{}, nearby, &fakeGeocoder{}).SnapToNearestStop(context.Background(), original)
		assert.Equal(t, original, got)
	})

	t.Run("leaves locations with id alone", func(t *testing.T) {
		withID := domain.ResolvedLocation{ID: "1", Name: "A"}
		got := newTestResolver(&fakeStops{}, &fakeNearby{}, &fakeGeocoder{}).SnapToNearestStop(context.Background(), withID)
		assert.Equal(t, withID, got)
	})
}

package planner

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campuspulse/internal/domain"
	"campuspulse/internal/store"
)

const campus = "Campus Jungfernsee"

type fakeResolver struct {
	mu        sync.Mutex
	locations map[string]domain.ResolvedLocation
	nearby    domain.ResolvedLocation
	snapped   map[string]domain.ResolvedLocation
	// block makes Resolve wait for cancellation on this query.
	block   string
	entered chan struct{}
}

func (f *fakeResolver) Resolve(ctx context.Context, query string) (domain.ResolvedLocation, error) {
	if f.block != "" && query == f.block {
		close(f.entered)
		<-ctx.Done()
		return domain.ResolvedLocation{}, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	loc, ok := f.locations[query]
	if !ok {
		return domain.ResolvedLocation{}, &domain.NotFoundError{Query: query}
	}
	return loc, nil
}

func (f *fakeResolver) ResolveByCoordinates(_ context.Context, _, _ float64) (domain.ResolvedLocation, error) {
	if f.nearby.ID == "" {
		return domain.ResolvedLocation{}, domain.ErrNoNearbyStop
	}
	return f.nearby, nil
}

func (f *fakeResolver) SnapToNearestStop(_ context.Context, loc domain.ResolvedLocation) domain.ResolvedLocation {
	if s, ok := f.snapped[loc.Name]; ok && !loc.HasID() {
		return s
	}
	return loc
}

type fakeJourneys struct {
	mu          sync.Mutex
	params      []url.Values
	itineraries []domain.Itinerary
	err         error
}

func (f *fakeJourneys) Journeys(_ context.Context, params url.Values) ([]domain.Itinerary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params = append(f.params, params)
	return f.itineraries, f.err
}

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]domain.SurfaceCommand
}

func (f *fakePublisher) Publish(_ string, commands []domain.SurfaceCommand) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, commands)
}

func (f *fakePublisher) last() []domain.SurfaceCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		return nil
	}
	return f.batches[len(f.batches)-1]
}

type fixture struct {
	planner   *Planner
	resolver  *fakeResolver
	journeys  *fakeJourneys
	publisher *fakePublisher
	prefs     *store.MemoryPreferences
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	f := &fixture{
		resolver: &fakeResolver{
			locations: map[string]domain.ResolvedLocation{
				campus:                 {ID: "900230999", Name: campus, Coords: &domain.Coord{Lat: 52.42, Lon: 13.05}},
				"Alexanderplatz":       {ID: "900100003", Name: "S+U Alexanderplatz"},
				"S+U Alexanderplatz":   {ID: "900100003", Name: "S+U Alexanderplatz"},
				"Hauptstrasse 1":       {Name: "Hauptstrasse 1", Coords: &domain.Coord{Lat: 52.1, Lon: 13.2}},
				"Potsdam Hauptbahnhof": {ID: "900230000", Name: "S Potsdam Hauptbahnhof"},
			},
			snapped: map[string]domain.ResolvedLocation{},
		},
		journeys:  &fakeJourneys{},
		publisher: &fakePublisher{},
		prefs:     store.NewMemoryPreferences(),
	}
	f.planner = New(Config{
		CampusLocation: campus,
		Location:       berlin,
		ArrivalBuffer:  10 * time.Minute,
		Results:        1,
	}, f.resolver, f.journeys, store.New(time.Hour), f.prefs, f.publisher,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	f.planner.now = func() time.Time {
		return time.Date(2026, 10, 14, 6, 0, 0, 0, time.UTC)
	}
	return f
}

func (f *fixture) setPrefs(t *testing.T, prefs domain.Preferences) {
	t.Helper()
	require.NoError(t, f.prefs.PutPreferences(context.Background(), prefs))
}

func twoLegItinerary() []domain.Itinerary {
	return []domain.Itinerary{{Legs: []domain.Leg{
		{
			Line:        &domain.Line{Name: "U2", Product: domain.ProductSubway},
			Origin:      domain.Place{Name: "S+U Alexanderplatz", Location: &domain.Coord{Lat: 52.52, Lon: 13.41}},
			Destination: domain.Place{Name: "Potsdamer Platz", Location: &domain.Coord{Lat: 52.51, Lon: 13.37}},
			Departure:   "2026-10-14T08:01:00+02:00",
			Arrival:     "2026-10-14T08:10:00+02:00",
		},
		{
			Line:        &domain.Line{Name: "RE1", Product: domain.ProductRegional},
			Origin:      domain.Place{Name: "Potsdamer Platz", Location: &domain.Coord{Lat: 52.51, Lon: 13.37}},
			Destination: domain.Place{Name: campus, Location: &domain.Coord{Lat: 52.42, Lon: 13.05}},
			Departure:   "2026-10-14T08:15:00+02:00",
			Arrival:     "2026-10-14T08:45:00+02:00",
			Polyline:    json.RawMessage(`[[52.51, 13.37], [52.45, 13.2], [52.42, 13.05]]`),
		},
	}}}
}

func strPtr(s string) *string { return &s }

func TestPlanEndToEndByStopIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prefs := domain.DefaultPreferences("u1")
	prefs.TimingPref = domain.TimingNow
	prefs.AllowBus = false
	f.setPrefs(t, prefs)
	f.journeys.itineraries = twoLegItinerary()

	view, err := f.planner.CreateSession(ctx, "u1")
	require.NoError(t, err)

	result, err := f.planner.Plan(ctx, view.ID, strPtr("Alexanderplatz"))
	require.NoError(t, err)
	assert.Equal(t, StatusOK, result.Status)

	require.Len(t, f.journeys.params, 1)
	params := f.journeys.params[0]
	assert.Equal(t, "900100003", params.Get("from"))
	assert.Equal(t, "900230999", params.Get("to"))
	assert.Empty(t, params.Get("from.latitude"))
	assert.Empty(t, params.Get("arrival"))
	assert.Equal(t, "1", params.Get("results"))
	assert.Equal(t, "true", params.Get("polylines"))
	assert.Equal(t, "true", params.Get("products[subway]"))
	assert.Equal(t, "false", params.Get("products[bus]"))

	require.NotNil(t, result.Overlay)
	assert.Len(t, result.Overlay.Segments, 2)
	assert.Len(t, result.Overlay.Cards, 2)
	assert.Equal(t, "08:01–08:10", result.Overlay.Cards[0].TimeRange)
	require.Len(t, result.Overlay.Transfers, 1)
	assert.Equal(t, "Potsdamer Platz", result.Overlay.Transfers[0].Name)

	// origin rewritten to the canonical stop name
	assert.Equal(t, "S+U Alexanderplatz", result.Session.Origin.Value)

	cmds := f.publisher.last()
	require.Len(t, cmds, 4)
	assert.Equal(t, domain.CommandAddPolyline, cmds[0].Type)
	assert.Equal(t, domain.CommandAddPolyline, cmds[1].Type)
	assert.Equal(t, domain.CommandAddMarker, cmds[2].Type)
	assert.Equal(t, domain.CommandFitBounds, cmds[3].Type)

	// a second plan removes the layers of the first
	_, err = f.planner.Plan(ctx, view.ID, nil)
	require.NoError(t, err)
	cmds = f.publisher.last()
	assert.Equal(t, domain.SurfaceCommand{Type: domain.CommandRemoveLayer, LayerID: "leg-0"}, cmds[0])
}

func TestPlanMixedEndpoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setPrefs(t, domain.DefaultPreferences("u1"))
	f.journeys.itineraries = twoLegItinerary()

	view, err := f.planner.CreateSession(ctx, "u1")
	require.NoError(t, err)

	result, err := f.planner.Plan(ctx, view.ID, strPtr("Hauptstrasse 1"))
	require.NoError(t, err)
	assert.Equal(t, StatusOK, result.Status)

	params := f.journeys.params[0]
	assert.Empty(t, params.Get("from"))
	assert.Equal(t, "52.1", params.Get("from.latitude"))
	assert.Equal(t, "13.2", params.Get("from.longitude"))
	assert.Equal(t, "Hauptstrasse 1", params.Get("from.name"))
	assert.Equal(t, "900230999", params.Get("to"))

	// coordinate-only origins keep the typed text
	assert.Equal(t, "Hauptstrasse 1", result.Session.Origin.Value)
}

func TestPlanArrivalHeuristic(t *testing.T) {
	tests := []struct {
		timing domain.TimingPref
		want   string
	}{
		{domain.TimingEarlier, "2026-10-14T08:50:00+02:00"},
		{domain.TimingLater, "2026-10-14T09:10:00+02:00"},
		{domain.TimingNow, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.timing), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			prefs := domain.DefaultPreferences("u1")
			prefs.TimingPref = tt.timing
			prefs.ArrivalTime = "09:00"
			f.setPrefs(t, prefs)
			f.journeys.itineraries = twoLegItinerary()

			view, err := f.planner.CreateSession(ctx, "u1")
			require.NoError(t, err)
			_, err = f.planner.Plan(ctx, view.ID, strPtr("Alexanderplatz"))
			require.NoError(t, err)

			assert.Equal(t, tt.want, f.journeys.params[0].Get("arrival"))
		})
	}
}

func TestPlanValidationMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.planner.CreateSession(ctx, "u1")
	require.NoError(t, err)

	result, err := f.planner.Plan(ctx, view.ID, strPtr("  "))
	require.NoError(t, err)
	assert.Equal(t, StatusInvalid, result.Status)
	assert.Equal(t, msgMissingOrigin, result.Message)

	_, err = f.planner.Toggle(ctx, view.ID)
	require.NoError(t, err)

	result, err = f.planner.Plan(ctx, view.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusInvalid, result.Status)
	assert.Equal(t, msgMissingHome, result.Message)

	assert.Empty(t, f.journeys.params)
	assert.Empty(t, f.publisher.batches)
}

func TestPlanReturnHome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prefs := domain.DefaultPreferences("u1")
	prefs.HomeLocation = "Potsdam Hauptbahnhof"
	f.setPrefs(t, prefs)
	f.journeys.itineraries = twoLegItinerary()

	view, err := f.planner.CreateSession(ctx, "u1")
	require.NoError(t, err)
	_, err = f.planner.Toggle(ctx, view.ID)
	require.NoError(t, err)

	_, err = f.planner.Plan(ctx, view.ID, strPtr("ignored"))
	assert.ErrorIs(t, err, ErrPinnedField)

	result, err := f.planner.Plan(ctx, view.ID, nil)
	require.NoError(t, err)
	params := f.journeys.params[0]
	assert.Equal(t, "900230999", params.Get("from"))
	assert.Equal(t, "900230000", params.Get("to"))
	assert.Equal(t, domain.Field{Value: campus}, result.Session.Origin)
	assert.Equal(t, domain.Field{Value: "Potsdam Hauptbahnhof", Editable: true}, result.Session.Destination)
}

func TestPlanFallbackNamesFollowDirection(t *testing.T) {
	tests := []struct {
		name     string
		toggle   bool
		fromName string
		toName   string
	}{
		{"to campus", false, "Start", campus},
		{"return home", true, campus, "Home"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			// unnamed coordinate-only answers on both sides
			f.resolver.locations[campus] = domain.ResolvedLocation{Coords: &domain.Coord{Lat: 52.42, Lon: 13.05}}
			f.resolver.locations["Unnamed Street"] = domain.ResolvedLocation{Coords: &domain.Coord{Lat: 52.1, Lon: 13.2}}
			prefs := domain.DefaultPreferences("u1")
			prefs.HomeLocation = "Unnamed Street"
			f.setPrefs(t, prefs)
			f.journeys.itineraries = twoLegItinerary()

			view, err := f.planner.CreateSession(ctx, "u1")
			require.NoError(t, err)
			if tt.toggle {
				_, err = f.planner.Toggle(ctx, view.ID)
				require.NoError(t, err)
			} else {
				_, err = f.planner.SetOrigin(ctx, view.ID, "Unnamed Street")
				require.NoError(t, err)
			}

			_, err = f.planner.Plan(ctx, view.ID, nil)
			require.NoError(t, err)
			params := f.journeys.params[0]
			assert.Equal(t, tt.fromName, params.Get("from.name"))
			assert.Equal(t, tt.toName, params.Get("to.name"))
		})
	}
}

func TestPlanNoRoute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.planner.CreateSession(ctx, "u1")
	require.NoError(t, err)

	result, err := f.planner.Plan(ctx, view.ID, strPtr("Alexanderplatz"))
	require.NoError(t, err)
	assert.Equal(t, StatusNoRoute, result.Status)
	assert.Nil(t, result.Overlay)
	assert.Equal(t, clearWithMessage(msgNoRoute), f.publisher.last())
}

func TestPlanErrorsClearMap(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		setup   func(f *fixture)
		wantErr error
	}{
		{
			name:    "origin not found",
			origin:  "Atlantis",
			wantErr: domain.ErrNotFound,
		},
		{
			name:   "upstream failure",
			origin: "Alexanderplatz",
			setup: func(f *fixture) {
				f.journeys.err = &domain.UpstreamError{Service: "bvg", StatusCode: 503}
			},
			wantErr: domain.ErrUpstreamUnavailable,
		},
		{
			name:   "unresolvable endpoint",
			origin: "Nameless",
			setup: func(f *fixture) {
				f.resolver.locations["Nameless"] = domain.ResolvedLocation{Name: "Nameless"}
			},
			wantErr: domain.ErrUnresolvableRoute,
		},
		{
			name:   "malformed geometry",
			origin: "Alexanderplatz",
			setup: func(f *fixture) {
				f.journeys.itineraries = []domain.Itinerary{{Legs: []domain.Leg{{Polyline: json.RawMessage(`"_p~iF~ps|"`)}}}}
			},
			wantErr: domain.ErrMalformedGeometry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			ctx := context.Background()
			view, err := f.planner.CreateSession(ctx, "u1")
			require.NoError(t, err)

			_, err = f.planner.Plan(ctx, view.ID, strPtr(tt.origin))
			assert.ErrorIs(t, err, tt.wantErr)

			cmds := f.publisher.last()
			require.Len(t, cmds, 2)
			assert.Equal(t, domain.CommandClearLayers, cmds[0].Type)
			assert.Equal(t, UserMessage(err), cmds[1].Message)
		})
	}
}

func TestPlanSupersededIsDiscarded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.journeys.itineraries = twoLegItinerary()
	f.resolver.block = "slow"
	f.resolver.entered = make(chan struct{})

	view, err := f.planner.CreateSession(ctx, "u1")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := f.planner.Plan(ctx, view.ID, strPtr("slow"))
		errCh <- err
	}()
	<-f.resolver.entered

	result, err := f.planner.Plan(ctx, view.ID, strPtr("Alexanderplatz"))
	require.NoError(t, err)
	assert.Equal(t, StatusOK, result.Status)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("superseded plan did not return")
	}

	require.Len(t, f.publisher.batches, 1)
	assert.Equal(t, domain.CommandAddPolyline, f.publisher.last()[0].Type)
}

func TestToggleTwiceRestoresState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prefs := domain.DefaultPreferences("u1")
	prefs.HomeLocation = "Potsdam Hauptbahnhof"
	f.setPrefs(t, prefs)

	view, err := f.planner.CreateSession(ctx, "u1")
	require.NoError(t, err)
	before, err := f.planner.SetOrigin(ctx, view.ID, "Hauptstrasse 1")
	require.NoError(t, err)
	assert.True(t, before.Origin.Editable)
	assert.False(t, before.Destination.Editable)

	toggled, err := f.planner.Toggle(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeReturnHome, toggled.Mode)
	assert.False(t, toggled.Origin.Editable)
	assert.Equal(t, campus, toggled.Origin.Value)
	assert.True(t, toggled.Destination.Editable)

	_, err = f.planner.SetOrigin(ctx, view.ID, "elsewhere")
	assert.ErrorIs(t, err, ErrPinnedField)

	after, err := f.planner.Toggle(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLocate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.planner.CreateSession(ctx, "u1")
	require.NoError(t, err)

	_, err = f.planner.Locate(ctx, view.ID, 52.5, 13.4)
	assert.ErrorIs(t, err, domain.ErrNoNearbyStop)

	f.resolver.nearby = domain.ResolvedLocation{ID: "900100003", Name: "S+U Alexanderplatz"}
	got, err := f.planner.Locate(ctx, view.ID, 52.5, 13.4)
	require.NoError(t, err)
	assert.Equal(t, "S+U Alexanderplatz", got.Origin.Value)
}

func TestCloseSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.planner.CreateSession(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, f.planner.Close(ctx, view.ID))
	assert.Equal(t, []domain.SurfaceCommand{{Type: domain.CommandSessionEnded}}, f.publisher.last())

	_, err = f.planner.Session(ctx, view.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestArrivalTime(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	now := time.Date(2026, 10, 14, 23, 30, 0, 0, time.UTC) // already the 15th in Berlin

	prefs := domain.Preferences{TimingPref: domain.TimingEarlier, ArrivalTime: "08:00"}
	got, ok := ArrivalTime(now, berlin, prefs, 10*time.Minute)
	require.True(t, ok)
	assert.Equal(t, "2026-10-15T07:50:00+02:00", got.Format(time.RFC3339))

	_, ok = ArrivalTime(now, berlin, domain.Preferences{TimingPref: domain.TimingLater}, time.Minute)
	assert.False(t, ok)
}

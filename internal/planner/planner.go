// Package planner drives a widget session from user input to a rendered
// itinerary: it resolves both endpoints, queries the journey planner and
// turns the first itinerary into map surface commands.
package planner

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"campuspulse/internal/domain"
)

var (
	// ErrPinnedField is returned when the user edits the endpoint fixed to
	// the campus in the current mode.
	ErrPinnedField = errors.New("this field is pinned to the campus in the current direction")
	// ErrSuperseded is returned by a plan overtaken by a newer one or a
	// direction toggle. Its result is discarded.
	ErrSuperseded = errors.New("plan superseded by a newer request")
)

type Resolver interface {
	Resolve(ctx context.Context, query string) (domain.ResolvedLocation, error)
	ResolveByCoordinates(ctx context.Context, lat, lon float64) (domain.ResolvedLocation, error)
	SnapToNearestStop(ctx context.Context, loc domain.ResolvedLocation) domain.ResolvedLocation
}

type JourneyClient interface {
	Journeys(ctx context.Context, params url.Values) ([]domain.Itinerary, error)
}

type SessionStore interface {
	Save(ctx context.Context, session domain.Session) error
	Get(ctx context.Context, id string) (domain.Session, error)
	Update(ctx context.Context, id string, fn func(*domain.Session) error) (domain.Session, error)
	Delete(ctx context.Context, id string) error
}

type PreferenceReader interface {
	GetPreferences(ctx context.Context, userID string) (domain.Preferences, error)
}

// Publisher delivers surface commands to the widgets watching a session.
type Publisher interface {
	Publish(sessionID string, commands []domain.SurfaceCommand)
}

type Config struct {
	// CampusLocation is the fixed endpoint of every trip.
	CampusLocation string
	Location       *time.Location
	ArrivalBuffer  time.Duration
	Results        int
}

type inflight struct {
	generation uint64
	cancel     context.CancelFunc
}

type Planner struct {
	cfg       Config
	resolver  Resolver
	journeys  JourneyClient
	sessions  SessionStore
	prefs     PreferenceReader
	publisher Publisher
	logger    *slog.Logger

	now func() time.Time

	mu       sync.Mutex
	inflight map[string]inflight
}

func New(cfg Config, resolver Resolver, journeys JourneyClient, sessions SessionStore, prefs PreferenceReader, publisher Publisher, logger *slog.Logger) *Planner {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Results <= 0 {
		cfg.Results = 1
	}
	return &Planner{
		cfg:       cfg,
		resolver:  resolver,
		journeys:  journeys,
		sessions:  sessions,
		prefs:     prefs,
		publisher: publisher,
		logger:    logger.With("component", "planner"),
		now:       time.Now,
		inflight:  make(map[string]inflight),
	}
}

// CreateSession starts a session in the outbound direction.
func (p *Planner) CreateSession(ctx context.Context, userID string) (domain.SessionView, error) {
	session := domain.Session{
		ID:     uuid.NewString(),
		UserID: userID,
		Mode:   domain.ModeToDestination,
	}
	if err := p.sessions.Save(ctx, session); err != nil {
		return domain.SessionView{}, err
	}
	p.logger.Info("session created", "session_id", session.ID, "user_id", userID)
	return p.view(ctx, session)
}

func (p *Planner) Session(ctx context.Context, id string) (domain.SessionView, error) {
	session, err := p.sessions.Get(ctx, id)
	if err != nil {
		return domain.SessionView{}, err
	}
	return p.view(ctx, session)
}

// SetOrigin stores the free-text origin. It is rejected on the return trip,
// where the origin is the campus.
func (p *Planner) SetOrigin(ctx context.Context, id, text string) (domain.SessionView, error) {
	session, err := p.sessions.Update(ctx, id, func(s *domain.Session) error {
		if s.Mode != domain.ModeToDestination {
			return ErrPinnedField
		}
		s.OriginText = strings.TrimSpace(text)
		return nil
	})
	if err != nil {
		return domain.SessionView{}, err
	}
	return p.view(ctx, session)
}

// Toggle flips the direction and cancels any plan still in flight. The
// free-text origin survives, so toggling twice restores it.
func (p *Planner) Toggle(ctx context.Context, id string) (domain.SessionView, error) {
	session, err := p.sessions.Update(ctx, id, func(s *domain.Session) error {
		s.Mode = s.Mode.Toggled()
		s.Generation++
		return nil
	})
	if err != nil {
		return domain.SessionView{}, err
	}
	p.cancelInflight(id)
	p.logger.Debug("direction toggled", "session_id", id, "mode", session.Mode)
	return p.view(ctx, session)
}

// Locate fills the origin with the stop closest to a geolocation fix.
func (p *Planner) Locate(ctx context.Context, id string, lat, lon float64) (domain.SessionView, error) {
	session, err := p.sessions.Get(ctx, id)
	if err != nil {
		return domain.SessionView{}, err
	}
	if session.Mode != domain.ModeToDestination {
		return domain.SessionView{}, ErrPinnedField
	}

	loc, err := p.resolver.ResolveByCoordinates(ctx, lat, lon)
	if err != nil {
		return domain.SessionView{}, err
	}
	return p.SetOrigin(ctx, id, loc.Name)
}

// Close ends a session and tells its widgets.
func (p *Planner) Close(ctx context.Context, id string) error {
	p.cancelInflight(id)
	if err := p.sessions.Delete(ctx, id); err != nil {
		return err
	}
	p.publisher.Publish(id, []domain.SurfaceCommand{{Type: domain.CommandSessionEnded}})
	return nil
}

func (p *Planner) view(ctx context.Context, session domain.Session) (domain.SessionView, error) {
	prefs, err := p.prefs.GetPreferences(ctx, session.UserID)
	if err != nil {
		return domain.SessionView{}, err
	}
	return FieldView(session, prefs, p.cfg.CampusLocation), nil
}

// FieldView shows which endpoint the user types: the origin on the way to
// campus, the home address on the way back.
func FieldView(session domain.Session, prefs domain.Preferences, campus string) domain.SessionView {
	v := domain.SessionView{ID: session.ID, Mode: session.Mode}
	if session.Mode == domain.ModeReturnHome {
		v.Origin = domain.Field{Value: campus}
		v.Destination = domain.Field{Value: prefs.HomeLocation, Editable: true}
		return v
	}
	v.Origin = domain.Field{Value: session.OriginText, Editable: true}
	v.Destination = domain.Field{Value: campus}
	return v
}

// begin registers a plan and cancels the one it replaces. A plan that
// arrives after a newer one is cancelled right away.
func (p *Planner) begin(id string, generation uint64, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.inflight[id]; ok {
		if prev.generation > generation {
			cancel()
			return
		}
		prev.cancel()
	}
	p.inflight[id] = inflight{generation: generation, cancel: cancel}
}

func (p *Planner) end(id string, generation uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.inflight[id]; ok && cur.generation == generation {
		delete(p.inflight, id)
	}
}

func (p *Planner) superseded(id string, generation uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, ok := p.inflight[id]
	return !ok || cur.generation != generation
}

func (p *Planner) cancelInflight(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.inflight[id]; ok {
		cur.cancel()
		delete(p.inflight, id)
	}
}

package planner

import (
	"context"
	"errors"
	"strings"
	"sync"

	"campuspulse/internal/domain"
	"campuspulse/internal/journey"
)

type Status string

const (
	StatusOK      Status = "ok"
	StatusNoRoute Status = "no_route"
	// StatusInvalid means the input is incomplete; nothing was requested.
	StatusInvalid Status = "invalid"
)

// Result is the outcome of a plan as shown to the widget.
type Result struct {
	Session     domain.SessionView       `json:"session"`
	Status      Status                   `json:"status"`
	Message     string                   `json:"message,omitempty"`
	Origin      *domain.ResolvedLocation `json:"origin,omitempty"`
	Destination *domain.ResolvedLocation `json:"destination,omitempty"`
	Overlay     *journey.Overlay         `json:"overlay,omitempty"`
	Commands    []domain.SurfaceCommand  `json:"commands"`
}

const (
	msgMissingOrigin = "Enter a starting point to plan your trip."
	msgMissingHome   = "Set your home address in the preferences to plan the trip home."
	msgNoRoute       = "No route found."
)

// Plan resolves both endpoints of the session and renders the first
// itinerary. origin, when non-nil, replaces the stored free-text origin.
// Incomplete input yields StatusInvalid without an error. Any other failure
// clears the map, shows one message and is returned.
func (p *Planner) Plan(ctx context.Context, id string, origin *string) (*Result, error) {
	session, err := p.sessions.Update(ctx, id, func(s *domain.Session) error {
		if origin != nil {
			if s.Mode != domain.ModeToDestination {
				return ErrPinnedField
			}
			s.OriginText = strings.TrimSpace(*origin)
		}
		s.Generation++
		return nil
	})
	if err != nil {
		return nil, err
	}
	gen := session.Generation

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.begin(id, gen, cancel)
	defer p.end(id, gen)

	prefs, err := p.prefs.GetPreferences(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	view := FieldView(session, prefs, p.cfg.CampusLocation)

	from, to := p.endpoints(session, prefs)
	if msg := validate(session, from, to); msg != "" {
		return &Result{Session: view, Status: StatusInvalid, Message: msg, Commands: []domain.SurfaceCommand{}}, nil
	}

	direct, fromLoc, toLoc, err := p.resolveEndpoints(ctx, from, to)
	if err != nil {
		return p.fail(ctx, id, gen, err)
	}

	params, err := p.query(session.Mode, fromLoc, toLoc, prefs)
	if err != nil {
		return p.fail(ctx, id, gen, err)
	}

	itineraries, err := p.journeys.Journeys(ctx, params)
	if err != nil {
		return p.fail(ctx, id, gen, err)
	}

	result := &Result{Origin: &fromLoc, Destination: &toLoc}
	var layers []string

	if len(itineraries) == 0 {
		result.Status = StatusNoRoute
		result.Message = msgNoRoute
		result.Commands = clearWithMessage(msgNoRoute)
	} else {
		overlay, err := journey.Render(itineraries[0].Legs)
		if err != nil {
			return p.fail(ctx, id, gen, err)
		}
		result.Status = StatusOK
		result.Overlay = overlay
		result.Commands, layers = SurfaceCommands(session.Layers, overlay)
	}

	commitCtx := context.WithoutCancel(ctx)
	session, err = p.commit(commitCtx, id, gen, func(s *domain.Session) {
		s.Layers = layers
		if s.Mode == domain.ModeToDestination && direct.HasID() && direct.Name != "" {
			s.OriginText = direct.Name
		}
	})
	if err != nil {
		return nil, err
	}

	p.publisher.Publish(id, result.Commands)
	result.Session = FieldView(session, prefs, p.cfg.CampusLocation)

	p.logger.Info("plan completed",
		"session_id", id,
		"mode", session.Mode,
		"status", result.Status,
		"origin_id", fromLoc.ID,
		"destination_id", toLoc.ID,
	)
	return result, nil
}

// endpoints returns the raw origin and destination queries for the mode.
func (p *Planner) endpoints(session domain.Session, prefs domain.Preferences) (from, to string) {
	if session.Mode == domain.ModeReturnHome {
		return p.cfg.CampusLocation, strings.TrimSpace(prefs.HomeLocation)
	}
	return session.OriginText, p.cfg.CampusLocation
}

func validate(session domain.Session, from, to string) string {
	if session.Mode == domain.ModeReturnHome {
		if to == "" {
			return msgMissingHome
		}
		return ""
	}
	if from == "" {
		return msgMissingOrigin
	}
	return ""
}

// resolveEndpoints resolves both sides concurrently and snaps each to a stop.
// direct is the origin before snapping.
func (p *Planner) resolveEndpoints(ctx context.Context, from, to string) (direct, fromLoc, toLoc domain.ResolvedLocation, err error) {
	var wg sync.WaitGroup
	var fromErr, toErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		direct, fromErr = p.resolver.Resolve(ctx, from)
		if fromErr == nil {
			fromLoc = p.resolver.SnapToNearestStop(ctx, direct)
		}
	}()
	go func() {
		defer wg.Done()
		var loc domain.ResolvedLocation
		loc, toErr = p.resolver.Resolve(ctx, to)
		if toErr == nil {
			toLoc = p.resolver.SnapToNearestStop(ctx, loc)
		}
	}()
	wg.Wait()

	if fromErr != nil {
		return direct, fromLoc, toLoc, fromErr
	}
	return direct, fromLoc, toLoc, toErr
}

// commit applies fn only if no newer plan or toggle happened meanwhile.
func (p *Planner) commit(ctx context.Context, id string, gen uint64, fn func(*domain.Session)) (domain.Session, error) {
	return p.sessions.Update(ctx, id, func(s *domain.Session) error {
		if s.Generation != gen {
			return ErrSuperseded
		}
		fn(s)
		return nil
	})
}

func (p *Planner) fail(ctx context.Context, id string, gen uint64, cause error) (*Result, error) {
	if ctx.Err() != nil && p.superseded(id, gen) {
		return nil, ErrSuperseded
	}

	p.logger.Warn("plan failed", "session_id", id, "error", cause)

	if _, err := p.commit(context.WithoutCancel(ctx), id, gen, func(s *domain.Session) { s.Layers = nil }); err != nil {
		if errors.Is(err, ErrSuperseded) {
			return nil, ErrSuperseded
		}
		p.logger.Error("failed to clear session layers", "session_id", id, "error", err)
	}
	p.publisher.Publish(id, clearWithMessage(UserMessage(cause)))
	return nil, cause
}

// UserMessage is the single line shown to the user for a failed plan.
func UserMessage(err error) string {
	var notFound *domain.NotFoundError
	switch {
	case errors.As(err, &notFound):
		return notFound.Error()
	case errors.Is(err, domain.ErrNoNearbyStop):
		return "No stop found near your location."
	case errors.Is(err, domain.ErrUnresolvableRoute):
		return "Could not build a route between these locations."
	case errors.Is(err, domain.ErrMalformedGeometry):
		return "The route could not be drawn on the map."
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return "The journey planner is currently unavailable. Please try again later."
	default:
		return "Something went wrong while planning your trip."
	}
}

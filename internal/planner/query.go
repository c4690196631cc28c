package planner

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"campuspulse/internal/domain"
)

const (
	defaultOriginName = "Start"
	defaultHomeName   = "Home"
)

// query builds the /journeys parameters. Each side is sent by id when it has
// one, by coordinates and name otherwise.
func (p *Planner) query(mode domain.RouteMode, from, to domain.ResolvedLocation, prefs domain.Preferences) (url.Values, error) {
	params := url.Values{}

	fromName, toName := p.fallbackNames(mode)
	if err := setEndpoint(params, "from", from, fromName); err != nil {
		return nil, err
	}
	if err := setEndpoint(params, "to", to, toName); err != nil {
		return nil, err
	}

	params.Set("products[subway]", strconv.FormatBool(prefs.AllowSubway))
	params.Set("products[suburban]", strconv.FormatBool(prefs.AllowSuburban))
	params.Set("products[regional]", strconv.FormatBool(prefs.AllowRegional))
	params.Set("products[tram]", strconv.FormatBool(prefs.AllowTram))
	params.Set("products[bus]", strconv.FormatBool(prefs.AllowBus))

	if arrival, ok := ArrivalTime(p.now(), p.cfg.Location, prefs, p.cfg.ArrivalBuffer); ok {
		params.Set("arrival", arrival.Format(time.RFC3339))
	}

	params.Set("results", strconv.Itoa(p.cfg.Results))
	params.Set("polylines", "true")
	return params, nil
}

// fallbackNames label coordinate-only endpoints that came back unnamed. The
// campus side always carries the campus name.
func (p *Planner) fallbackNames(mode domain.RouteMode) (from, to string) {
	if mode == domain.ModeReturnHome {
		return p.cfg.CampusLocation, defaultHomeName
	}
	return defaultOriginName, p.cfg.CampusLocation
}

func setEndpoint(params url.Values, side string, loc domain.ResolvedLocation, fallbackName string) error {
	if loc.HasID() {
		params.Set(side, loc.ID)
		return nil
	}
	if loc.Coords == nil {
		return fmt.Errorf("%s %q has neither stop id nor coordinates: %w", side, loc.Name, domain.ErrUnresolvableRoute)
	}
	name := loc.Name
	if name == "" {
		name = fallbackName
	}
	params.Set(side+".latitude", strconv.FormatFloat(loc.Coords.Lat, 'f', -1, 64))
	params.Set(side+".longitude", strconv.FormatFloat(loc.Coords.Lon, 'f', -1, 64))
	params.Set(side+".name", name)
	return nil
}

// ArrivalTime is the target arrival for today's wall-clock preference in loc:
// buffer earlier for "earlier", buffer later for "later". ok is false when
// the trip should leave now.
func ArrivalTime(now time.Time, loc *time.Location, prefs domain.Preferences, buffer time.Duration) (time.Time, bool) {
	if prefs.TimingPref == domain.TimingNow || prefs.ArrivalTime == "" {
		return time.Time{}, false
	}
	hour, minute, err := domain.ParseClock(prefs.ArrivalTime)
	if err != nil {
		return time.Time{}, false
	}

	today := now.In(loc)
	target := time.Date(today.Year(), today.Month(), today.Day(), hour, minute, 0, 0, loc)
	if prefs.TimingPref == domain.TimingLater {
		return target.Add(buffer), true
	}
	return target.Add(-buffer), true
}

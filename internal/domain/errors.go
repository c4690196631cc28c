package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means a query matched nothing anywhere in the resolver chain.
	ErrNotFound = errors.New("not found")
	// ErrNoNearbyStop means a coordinate lookup found no qualifying stop.
	ErrNoNearbyStop = errors.New("no nearby stop")
	// ErrMalformedGeometry marks structurally invalid encoded geometry from upstream.
	ErrMalformedGeometry = errors.New("malformed geometry")
	// ErrUnresolvableRoute means an endpoint produced neither an id nor coordinates.
	ErrUnresolvableRoute = errors.New("unresolvable route")
	// ErrUpstreamUnavailable wraps any failed or non-success upstream call.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// NotFoundError is returned once every resolver fallback is exhausted.
// HadCandidates separates an empty stop search (a query problem) from a
// non-empty search whose results carried no coordinates (a data problem).
type NotFoundError struct {
	Query         string
	HadCandidates bool
}

func (e *NotFoundError) Error() string {
	if e.HadCandidates {
		return fmt.Sprintf("no stop or address found for %s", e.Query)
	}
	return fmt.Sprintf("no stop found for %s", e.Query)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// UpstreamError describes a failed call to one of the upstream services.
type UpstreamError struct {
	Service    string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status code: %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

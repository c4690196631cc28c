package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"campuspulse/internal/domain"
	"campuspulse/internal/planner"
)

const maxBodyBytes = 64 << 10

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// respondErr maps a domain error onto its HTTP status. Resolution, upstream
// and internal failures get the same one-line message the map shows.
func respondErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status >= http.StatusInternalServerError || status == http.StatusUnprocessableEntity ||
		isNotFoundError(err) || errors.Is(err, domain.ErrNoNearbyStop) {
		message = planner.UserMessage(err)
	}
	respondError(w, status, message)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, planner.ErrPinnedField):
		return http.StatusBadRequest
	case errors.Is(err, planner.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNoNearbyStop):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnresolvableRoute), errors.Is(err, domain.ErrMalformedGeometry):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func isNotFoundError(err error) bool {
	var nf *domain.NotFoundError
	return errors.As(err, &nf)
}

// decodeJSON reads a size-limited JSON body into dest.
func decodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func parseCoord(latStr, lonStr string) (domain.Coord, error) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return domain.Coord{}, fmt.Errorf("invalid latitude %q", latStr)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		return domain.Coord{}, fmt.Errorf("invalid longitude %q", lonStr)
	}
	return domain.Coord{Lat: lat, Lon: lon}, nil
}

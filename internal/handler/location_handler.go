package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"campuspulse/internal/domain"
)

type LocationResolver interface {
	Resolve(ctx context.Context, query string) (domain.ResolvedLocation, error)
	ResolveByCoordinates(ctx context.Context, lat, lon float64) (domain.ResolvedLocation, error)
	SnapToNearestStop(ctx context.Context, loc domain.ResolvedLocation) domain.ResolvedLocation
}

type DeparturesClient interface {
	Departures(ctx context.Context, stopID string, duration int) (json.RawMessage, error)
}

type LocationHandler struct {
	resolver   LocationResolver
	departures DeparturesClient
}

func NewLocationHandler(resolver LocationResolver, departures DeparturesClient) *LocationHandler {
	return &LocationHandler{resolver: resolver, departures: departures}
}

func (h *LocationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		respondError(w, http.StatusBadRequest, "missing query parameter")
		return
	}

	loc, err := h.resolver.Resolve(r.Context(), query)
	if err != nil {
		respondErr(w, err)
		return
	}

	if snap, _ := strconv.ParseBool(r.URL.Query().Get("snap")); snap {
		loc = h.resolver.SnapToNearestStop(r.Context(), loc)
	}
	respondJSON(w, http.StatusOK, loc)
}

func (h *LocationHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	coord, err := parseCoord(r.URL.Query().Get("latitude"), r.URL.Query().Get("longitude"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	loc, err := h.resolver.ResolveByCoordinates(r.Context(), coord.Lat, coord.Lon)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, loc)
}

// Departures proxies the upstream departures board, in minutes ahead.
func (h *LocationHandler) Departures(w http.ResponseWriter, r *http.Request) {
	stopID := r.PathValue("id")
	if stopID == "" {
		respondError(w, http.StatusBadRequest, "missing stop id")
		return
	}

	duration := 0
	if d := r.URL.Query().Get("duration"); d != "" {
		v, err := strconv.Atoi(d)
		if err != nil || v < 0 || v > 720 {
			respondError(w, http.StatusBadRequest, "invalid duration: expected minutes between 0 and 720")
			return
		}
		duration = v
	}

	raw, err := h.departures.Departures(r.Context(), stopID, duration)
	if err != nil {
		respondErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=30")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

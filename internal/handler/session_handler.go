package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"campuspulse/internal/domain"
	"campuspulse/internal/planner"
)

type PlannerService interface {
	CreateSession(ctx context.Context, userID string) (domain.SessionView, error)
	Session(ctx context.Context, id string) (domain.SessionView, error)
	SetOrigin(ctx context.Context, id, text string) (domain.SessionView, error)
	Toggle(ctx context.Context, id string) (domain.SessionView, error)
	Locate(ctx context.Context, id string, lat, lon float64) (domain.SessionView, error)
	Plan(ctx context.Context, id string, origin *string) (*planner.Result, error)
	Close(ctx context.Context, id string) error
}

type SessionHandler struct {
	planner PlannerService
	logger  *slog.Logger
}

func NewSessionHandler(p PlannerService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{planner: p, logger: logger.With("component", "session_handler")}
}

type createSessionRequest struct {
	UserID string `json:"userId"`
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "missing userId")
		return
	}

	view, err := h.planner.CreateSession(r.Context(), req.UserID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, view)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.planner.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.planner.Close(r.Context(), r.PathValue("id")); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type originRequest struct {
	Origin string `json:"origin"`
}

func (h *SessionHandler) SetOrigin(w http.ResponseWriter, r *http.Request) {
	var req originRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.planner.SetOrigin(r.Context(), r.PathValue("id"), req.Origin)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *SessionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	view, err := h.planner.Toggle(r.Context(), r.PathValue("id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

type locateRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (h *SessionHandler) Locate(w http.ResponseWriter, r *http.Request) {
	var req locateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		respondError(w, http.StatusBadRequest, "latitude and longitude are required")
		return
	}

	view, err := h.planner.Locate(r.Context(), r.PathValue("id"), *req.Latitude, *req.Longitude)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

type planRequest struct {
	Origin *string `json:"origin,omitempty"`
}

// Plan accepts an empty body to plan with the stored origin.
func (h *SessionHandler) Plan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.planner.Plan(r.Context(), r.PathValue("id"), req.Origin)
	switch {
	case errors.Is(err, planner.ErrSuperseded):
		ServerStats.IncPlansSuperseded()
		respondErr(w, err)
		return
	case err != nil:
		ServerStats.IncPlansFailed()
		respondErr(w, err)
		return
	}

	ServerStats.IncPlans()
	respondJSON(w, http.StatusOK, result)
}

package handler

import (
	"net/http"
	"time"

	"campuspulse/internal/probe"
)

type ReadinessChecker interface {
	Status() probe.Status
}

type HealthHandler struct {
	probe ReadinessChecker
}

func NewHealthHandler(p ReadinessChecker) *HealthHandler {
	return &HealthHandler{probe: p}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type ReadyResponse struct {
	Ready      bool         `json:"ready"`
	Upstream   probe.Status `json:"upstream"`
	ServerTime time.Time    `json:"serverTime"`
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	status := h.probe.Status()
	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
	}

	respondJSON(w, code, ReadyResponse{
		Ready:      status.Ready,
		Upstream:   status,
		ServerTime: time.Now(),
	})
}

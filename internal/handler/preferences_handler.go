package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"campuspulse/internal/domain"
)

type PreferenceStore interface {
	GetPreferences(ctx context.Context, userID string) (domain.Preferences, error)
	PutPreferences(ctx context.Context, prefs domain.Preferences) error
}

type PreferencesHandler struct {
	store  PreferenceStore
	logger *slog.Logger
}

func NewPreferencesHandler(store PreferenceStore, logger *slog.Logger) *PreferencesHandler {
	return &PreferencesHandler{store: store, logger: logger.With("component", "preferences_handler")}
}

func (h *PreferencesHandler) Get(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.store.GetPreferences(r.Context(), r.PathValue("userId"))
	if err != nil {
		h.logger.Error("failed to load preferences", "error", err)
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, prefs)
}

// Put replaces the preferences of the user. Omitted fields take their
// defaults, except homeLocation: omitted or null keeps the stored address and
// only an explicit "" clears it.
func (h *PreferencesHandler) Put(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	current, err := h.store.GetPreferences(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load preferences", "error", err)
		respondErr(w, err)
		return
	}

	prefs := domain.DefaultPreferences(userID)
	prefs.HomeLocation = current.HomeLocation
	if err := decodeJSON(w, r, &prefs); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	prefs.UserID = userID
	prefs.ArrivalTime = strings.TrimSpace(prefs.ArrivalTime)
	prefs.HomeLocation = strings.TrimSpace(prefs.HomeLocation)

	if err := prefs.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.PutPreferences(r.Context(), prefs); err != nil {
		h.logger.Error("failed to save preferences", "error", err)
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, prefs)
}

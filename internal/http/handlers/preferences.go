package handlers

import (
	"net/http"
	"strings"

	"github.com/brody/brody-back/internal/domain"
	"github.com/brody/brody-back/internal/http/middleware"
)

type preferenceValueRequest struct {
	Value any `json:"value"`
}

func (api *API) GetPreferences(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":     user.ID,
		"preferences": api.preferences.Get(user),
	})
}

func (api *API) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var update map[string]any
	if err := decodeJSON(w, r, &update); err != nil || len(update) == 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "a preferences object is required")
		return
	}

	preferences, err := api.preferences.Update(r.Context(), user, update)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": user.ID, "preferences": preferences})
}

// SetPreference serves PATCH /user/preferences/{key}.
func (api *API) SetPreference(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	key := strings.TrimSpace(r.PathValue("key"))
	var request preferenceValueRequest
	if err := decodeJSON(w, r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "value is required")
		return
	}

	if err := api.preferences.Set(r.Context(), user, key, request.Value); err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": user.ID,
		"key":     key,
		"value":   request.Value,
		"updated": true,
	})
}

func (api *API) ResetPreferences(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	preferences, err := api.preferences.Reset(r.Context(), user)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": user.ID, "preferences": preferences})
}

func currentUser(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "could not validate credentials")
	}
	return user, ok
}

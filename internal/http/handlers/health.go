package handlers

import "net/http"

func (api *API) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Brody API - Proactive Multi-Agent AI Hub",
		"status":  "running",
		"version": api.version,
	})
}

func (api *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"ai_available": api.triage.AIAvailable(),
	})
}

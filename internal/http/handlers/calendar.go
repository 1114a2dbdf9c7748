package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/brody/brody-back/internal/domain"
	"github.com/brody/brody-back/internal/service"
)

type meetingBriefRequest struct {
	EventID        string         `json:"event_id"`
	IncludeRelated bool           `json:"include_related"`
	RelatedEmails  []emailRequest `json:"related_emails,omitempty"`
}

func (api *API) CalendarEvents(w http.ResponseWriter, r *http.Request) {
	events, err := api.calendar.UpcomingEvents(r.Context())
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (api *API) CalendarMeetingBrief(w http.ResponseWriter, r *http.Request) {
	var request meetingBriefRequest
	if err := decodeJSON(w, r, &request); err != nil || strings.TrimSpace(request.EventID) == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "event_id is required")
		return
	}

	related := make([]domain.EmailMessage, 0, len(request.RelatedEmails))
	for _, email := range request.RelatedEmails {
		related = append(related, email.toDomain())
	}

	event, brief, err := api.triage.MeetingBrief(r.Context(), service.MeetingBriefInput{
		EventID:        request.EventID,
		IncludeRelated: request.IncludeRelated,
		RelatedEmails:  related,
	})
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "Event not found")
			return
		}
		api.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"event": event,
		"brief": brief.Text,
		"model": brief.Model,
	})
}

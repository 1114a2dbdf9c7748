package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/brody/brody-back/internal/domain"
	"github.com/brody/brody-back/internal/service"
)

type emailRequest struct {
	ID        string     `json:"id"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	Sender    string     `json:"sender"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Urgency   string     `json:"urgency,omitempty"`
}

func (e emailRequest) toDomain() domain.EmailMessage {
	return domain.EmailMessage{
		ID:        strings.TrimSpace(e.ID),
		Subject:   e.Subject,
		Body:      e.Body,
		Sender:    e.Sender,
		Timestamp: e.Timestamp,
		Urgency:   e.Urgency,
	}
}

func (e emailRequest) validate() error {
	if strings.TrimSpace(e.ID) == "" || strings.TrimSpace(e.Subject) == "" {
		return errInvalidPayload
	}
	return nil
}

type classifyResponse struct {
	EmailID         string                `json:"email_id"`
	Urgency         string                `json:"urgency"`
	SuggestedAction string                `json:"suggested_action"`
	Classification  domain.Classification `json:"classification"`
}

func (api *API) ClassifyEmail(w http.ResponseWriter, r *http.Request) {
	var request emailRequest
	if err := decodeJSON(w, r, &request); err != nil || request.validate() != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "id and subject are required")
		return
	}

	classification := api.triage.Classify(r.Context(), request.toDomain())
	suggestedAction := "archive"
	if classification.Urgency == "high" {
		suggestedAction = "review"
	}
	writeJSON(w, http.StatusOK, classifyResponse{
		EmailID:         request.ID,
		Urgency:         classification.Urgency,
		SuggestedAction: suggestedAction,
		Classification:  classification,
	})
}

func (api *API) SuggestTask(w http.ResponseWriter, r *http.Request) {
	var request emailRequest
	if err := decodeJSON(w, r, &request); err != nil || request.validate() != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "id and subject are required")
		return
	}

	tasks := api.triage.SuggestTasks(r.Context(), request.toDomain())
	writeJSON(w, http.StatusOK, map[string]any{
		"email_id": request.ID,
		"tasks":    tasks,
	})
}

func (api *API) PrepareDay(w http.ResponseWriter, r *http.Request) {
	plan, err := api.triage.PrepareDay(r.Context())
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// MeetingBrief serves POST /api/meeting-brief?meeting_id=.
func (api *API) MeetingBrief(w http.ResponseWriter, r *http.Request) {
	meetingID := strings.TrimSpace(r.URL.Query().Get("meeting_id"))
	if meetingID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "meeting_id is required")
		return
	}

	event, brief, err := api.triage.MeetingBrief(r.Context(), service.MeetingBriefInput{EventID: meetingID})
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"meeting_id": event.ID,
		"title":      event.Title,
		"time":       event.Start,
		"attendees":  event.Attendees,
		"brief":      brief,
	})
}

package handlers

import (
	"net/http"

	"github.com/brody/brody-back/internal/domain"
	"github.com/brody/brody-back/internal/mail"
)

type rawEmailRequest struct {
	Raw string `json:"raw"`
}

type classifiedEmail struct {
	Email          mail.Message          `json:"email"`
	Classification domain.Classification `json:"classification"`
}

func (api *API) IMAPTest(w http.ResponseWriter, r *http.Request) {
	messages, ok := api.fetchMessages(w, r)
	if !ok {
		return
	}
	sample := messages
	if len(sample) > 1 {
		sample = sample[:1]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"count":  len(messages),
		"sample": sample,
	})
}

// ParseEmail accepts raw RFC 822 text, or base64 when the input has no line
// breaks.
func (api *API) ParseEmail(w http.ResponseWriter, r *http.Request) {
	var request rawEmailRequest
	if err := decodeJSON(w, r, &request); err != nil || request.Raw == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "raw is required")
		return
	}

	parsed, err := mail.Parse(mail.DecodeRaw(request.Raw))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_email", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, parsed)
}

func (api *API) FetchAndClassify(w http.ResponseWriter, r *http.Request) {
	messages, ok := api.fetchMessages(w, r)
	if !ok {
		return
	}

	results := make([]classifiedEmail, 0, len(messages))
	for _, message := range messages {
		classification := api.triage.Classify(r.Context(), domain.EmailMessage{
			ID:        message.ID,
			Subject:   message.Subject,
			Body:      message.Body,
			Sender:    message.Sender,
			Timestamp: message.Timestamp,
		})
		results = append(results, classifiedEmail{Email: message, Classification: classification})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"count":   len(results),
		"results": results,
	})
}

func (api *API) fetchMessages(w http.ResponseWriter, r *http.Request) ([]mail.Message, bool) {
	var creds mail.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid imap credentials payload")
		return nil, false
	}
	if err := creds.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return nil, false
	}

	messages, err := api.mail.FetchRecent(r.Context(), creds)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "imap_error", err.Error())
		return nil, false
	}
	return messages, true
}

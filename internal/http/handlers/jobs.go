package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brody/brody-back/internal/domain"
)

type triageJobRequest struct {
	Emails       []emailRequest `json:"emails"`
	SuggestTasks bool           `json:"suggest_tasks"`
}

type jobListItemResponse struct {
	JobID     string           `json:"job_id"`
	Kind      domain.JobKind   `json:"kind"`
	Status    domain.JobStatus `json:"status"`
	Emails    int              `json:"emails"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// CreateTriageJob accepts a batch of emails for asynchronous triage. A
// repeated Idempotency-Key with the same body returns the original job.
func (api *API) CreateTriageJob(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var request triageJobRequest
	if err := decodeJSON(w, r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "emails are required")
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	payloadHash := hashPayload(request)
	storeKey := user.ID + ":" + idempotencyKey
	if idempotencyKey != "" {
		if entry, found := api.idempotency.Get(storeKey); found {
			if entry.PayloadHash != payloadHash {
				writeError(w, r, http.StatusConflict, "idempotency_conflict", "Idempotency-Key reused with a different payload")
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]any{"job_id": entry.JobID, "status": domain.JobStatusPending})
			return
		}
	}

	payload := domain.TriagePayload{
		Emails:       make([]domain.EmailMessage, 0, len(request.Emails)),
		SuggestTasks: request.SuggestTasks,
	}
	for _, email := range request.Emails {
		payload.Emails = append(payload.Emails, email.toDomain())
	}

	job, err := api.jobs.EnqueueTriage(r.Context(), user.ID, payload)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	if idempotencyKey != "" {
		api.idempotency.Put(storeKey, payloadHash, job.ID)
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": job.ID, "status": job.Status})
}

func (api *API) JobStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	jobID := strings.TrimSpace(r.PathValue("id"))
	if jobID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "job_id is required")
		return
	}

	job, err := api.jobs.GetJob(r.Context(), user.ID, jobID)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}

	response := map[string]any{
		"job_id":     job.ID,
		"status":     job.Status,
		"kind":       job.Kind,
		"attempts":   job.Attempts,
		"created_at": job.CreatedAt,
		"updated_at": job.UpdatedAt,
	}
	if len(job.Result) > 0 {
		response["result"] = jsonRawOrFallback(job.Result)
	}
	if strings.TrimSpace(job.ErrorMessage) != "" {
		response["error"] = map[string]any{
			"code":    "processing_error",
			"message": job.ErrorMessage,
		}
	}

	writeJSON(w, http.StatusOK, response)
}

func (api *API) ListJobs(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	filter := domain.JobListFilter{
		OwnerID:  user.ID,
		Status:   domain.JobStatus(strings.TrimSpace(query.Get("status"))),
		Page:     queryInt(query.Get("page"), 1),
		PageSize: min(queryInt(query.Get("page_size"), 20), 100),
	}
	switch filter.Status {
	case "", domain.JobStatusPending, domain.JobStatusProcessing, domain.JobStatusDone, domain.JobStatusFailed:
	default:
		writeError(w, r, http.StatusBadRequest, "invalid_request", "unknown status filter")
		return
	}

	items, total, err := api.jobs.ListJobs(r.Context(), filter)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	response := make([]jobListItemResponse, 0, len(items))
	for _, item := range items {
		response = append(response, jobListItemResponse{
			JobID:     item.JobID,
			Kind:      item.Kind,
			Status:    item.Status,
			Emails:    item.Emails,
			CreatedAt: item.CreatedAt,
			UpdatedAt: item.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":     response,
		"total":     total,
		"page":      filter.Page,
		"page_size": filter.PageSize,
	})
}

func queryInt(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func jsonRawOrFallback(value []byte) any {
	var decoded any
	if err := json.Unmarshal(value, &decoded); err == nil {
		return decoded
	}
	return string(value)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brody/brody-back/internal/domain"
	"github.com/brody/brody-back/internal/queue"
	"github.com/brody/brody-back/internal/repository"
)

const maxTriageBatch = 50

type JobsService struct {
	repo     repository.JobsRepository
	producer queue.Producer
}

func NewJobsService(repo repository.JobsRepository, producer queue.Producer) *JobsService {
	return &JobsService{repo: repo, producer: producer}
}

// EnqueueTriage stores a pending email_triage job and hands it to the queue.
func (s *JobsService) EnqueueTriage(ctx context.Context, ownerID string, payload domain.TriagePayload) (*domain.Job, error) {
	if len(payload.Emails) == 0 {
		return nil, fmt.Errorf("%w: at least one email is required", ErrValidation)
	}
	if len(payload.Emails) > maxTriageBatch {
		return nil, fmt.Errorf("%w: at most %d emails per job", ErrValidation, maxTriageBatch)
	}
	for index, email := range payload.Emails {
		if strings.TrimSpace(email.ID) == "" {
			payload.Emails[index].ID = fmt.Sprintf("email_%d", index+1)
		}
	}
	payload.RequestedByID = ownerID

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return s.enqueue(ctx, domain.JobKindEmailTriage, ownerID, encoded)
}

// GetJob returns the job only when it belongs to ownerID.
func (s *JobsService) GetJob(ctx context.Context, ownerID, jobID string) (*domain.Job, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if job.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return job, nil
}

func (s *JobsService) ListJobs(ctx context.Context, filter domain.JobListFilter) ([]domain.JobListItem, int, error) {
	return s.repo.ListJobs(ctx, filter)
}

func (s *JobsService) enqueue(
	ctx context.Context,
	kind domain.JobKind,
	ownerID string,
	payload json.RawMessage,
) (*domain.Job, error) {
	now := time.Now().UTC()
	job := &domain.Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		OwnerID:   ownerID,
		Payload:   payload,
		Status:    domain.JobStatusPending,
		Attempts:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	message := domain.QueueMessage{
		JobID:       job.ID,
		Kind:        job.Kind,
		OwnerID:     ownerID,
		Payload:     payload,
		Attempt:     0,
		RequestedAt: now,
	}

	if err := s.producer.Enqueue(ctx, message); err != nil {
		job.Status = domain.JobStatusFailed
		job.ErrorMessage = err.Error()
		job.UpdatedAt = time.Now().UTC()
		_ = s.repo.UpdateJob(ctx, job)
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	return job, nil
}

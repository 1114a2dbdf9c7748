package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brody/brody-back/internal/domain"
	"github.com/brody/brody-back/internal/queue"
	"github.com/brody/brody-back/internal/repository"
	"github.com/brody/brody-back/internal/service"
)

type countingObserver struct {
	mu       sync.Mutex
	statuses []string
}

func (o *countingObserver) ObserveJob(status string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, status)
}

func (o *countingObserver) Statuses() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.statuses...)
}

func waitForStatus(t *testing.T, repo repository.JobsRepository, jobID string, want domain.JobStatus) *domain.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := repo.GetJob(context.Background(), jobID)
		require.NoError(t, err)
		if job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", jobID, want)
	return nil
}

func TestProcessorTriagesEmailsWithHeuristicFallback(t *testing.T) {
	repo := repository.NewMemoryJobsRepository()
	local := queue.NewLocalQueue(8, 3, nil)
	jobs := service.NewJobsService(repo, local)
	observer := &countingObserver{}

	processor := NewProcessor(ProcessorDependencies{
		Consumer: local,
		Repo:     repo,
		Triage:   service.NewTriageService(service.TriageDependencies{}),
		Observer: observer,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go processor.Start(ctx)

	job, err := jobs.EnqueueTriage(ctx, "owner-1", domain.TriagePayload{
		Emails: []domain.EmailMessage{
			{ID: "a", Subject: "URGENT: contract", Sender: "legal@co"},
			{ID: "b", Subject: "FYI: menu"},
		},
		SuggestTasks: true,
	})
	require.NoError(t, err)

	done := waitForStatus(t, repo, job.ID, domain.JobStatusDone)
	assert.Equal(t, 1, done.Attempts)

	var result domain.TriageResult
	require.NoError(t, json.Unmarshal(done.Result, &result))
	assert.False(t, result.AIAvailable)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "high", result.Items[0].Classification.Urgency)
	assert.Equal(t, "low", result.Items[1].Classification.Urgency)
	require.Len(t, result.Items[0].Tasks, 1)
	assert.Equal(t, "Follow up: URGENT: contract", result.Items[0].Tasks[0].Title)
	assert.Equal(t, []string{"done"}, observer.Statuses())
}

func TestProcessorMarksUndecodablePayloadFailed(t *testing.T) {
	repo := repository.NewMemoryJobsRepository()
	observer := &countingObserver{}
	processor := NewProcessor(ProcessorDependencies{
		Repo:     repo,
		Triage:   service.NewTriageService(service.TriageDependencies{}),
		Observer: observer,
	})

	now := time.Now().UTC()
	job := &domain.Job{
		ID:        "job-bad",
		Kind:      domain.JobKindEmailTriage,
		OwnerID:   "owner-1",
		Payload:   json.RawMessage(`"not an object"`),
		Status:    domain.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.CreateJob(context.Background(), job))

	err := processor.processMessage(context.Background(), domain.QueueMessage{
		JobID:   job.ID,
		Kind:    job.Kind,
		Payload: job.Payload,
	})
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))

	stored, err := repo.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "decode triage payload")
	assert.Equal(t, []string{"failed"}, observer.Statuses())
}

func TestProcessorRejectsUnknownKind(t *testing.T) {
	processor := NewProcessor(ProcessorDependencies{Triage: service.NewTriageService(service.TriageDependencies{})})
	_, err := processor.buildResult(context.Background(), domain.JobKind("mystery"), domain.QueueMessage{})
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))
}

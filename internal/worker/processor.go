package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/brody/brody-back/internal/domain"
	"github.com/brody/brody-back/internal/logging"
	"github.com/brody/brody-back/internal/queue"
	"github.com/brody/brody-back/internal/repository"
)

// Triager classifies emails and proposes tasks; service.TriageService
// implements it.
type Triager interface {
	AIAvailable() bool
	Classify(ctx context.Context, email domain.EmailMessage) domain.Classification
	SuggestTasks(ctx context.Context, email domain.EmailMessage) []domain.TaskSuggestion
}

// JobObserver counts finished jobs by status.
type JobObserver interface {
	ObserveJob(status string)
}

type ProcessorDependencies struct {
	Consumer queue.Consumer
	Repo     repository.JobsRepository
	Triage   Triager
	Logger   *slog.Logger
	Observer JobObserver
}

// Processor consumes queue jobs and persists status transitions.
type Processor struct {
	consumer queue.Consumer
	repo     repository.JobsRepository
	triage   Triager
	logger   *slog.Logger
	observer JobObserver
	now      func() time.Time
}

func NewProcessor(deps ProcessorDependencies) *Processor {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	return &Processor{
		consumer: deps.Consumer,
		repo:     deps.Repo,
		triage:   deps.Triage,
		logger:   deps.Logger,
		observer: deps.Observer,
		now:      time.Now,
	}
}

func (p *Processor) Start(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := p.consumer.Consume(ctx, p.processMessage)
		if err == nil || ctx.Err() != nil {
			return
		}
		p.logger.Error("worker consume loop error", logging.Err(err))

		timer := time.NewTimer(2 * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (p *Processor) processMessage(ctx context.Context, message domain.QueueMessage) error {
	logger := p.logger.With(logging.JobID(message.JobID), slog.Int("attempt", message.Attempt))

	job, err := p.repo.GetJob(ctx, message.JobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", message.JobID, err)
	}

	job.Status = domain.JobStatusProcessing
	job.Attempts = message.Attempt + 1
	job.UpdatedAt = p.now().UTC()
	if err := p.repo.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	result, processErr := p.buildResult(ctx, job.Kind, message)
	if processErr != nil {
		job.Status = domain.JobStatusFailed
		job.ErrorMessage = processErr.Error()
		job.UpdatedAt = p.now().UTC()
		if err := p.repo.UpdateJob(ctx, job); err != nil {
			logger.Warn("mark failed", logging.Err(err))
		}
		p.observe(domain.JobStatusFailed)
		logger.Warn("job failed", logging.Err(processErr))
		return processErr
	}

	job.Status = domain.JobStatusDone
	job.ErrorMessage = ""
	job.Result = result
	job.UpdatedAt = p.now().UTC()
	if err := p.repo.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("mark done: %w", err)
	}

	p.observe(domain.JobStatusDone)
	logger.Info("job processed", slog.String("kind", string(job.Kind)))
	return nil
}

// buildResult marks malformed jobs as permanent failures so the queue does
// not retry them.
func (p *Processor) buildResult(
	ctx context.Context,
	kind domain.JobKind,
	message domain.QueueMessage,
) (json.RawMessage, error) {
	switch kind {
	case domain.JobKindEmailTriage:
		var payload domain.TriagePayload
		if err := json.Unmarshal(message.Payload, &payload); err != nil {
			return nil, queue.Permanent(fmt.Errorf("decode triage payload: %w", err))
		}

		result := domain.TriageResult{
			Items:       make([]domain.TriageItem, 0, len(payload.Emails)),
			AIAvailable: p.triage.AIAvailable(),
		}
		for _, email := range payload.Emails {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			item := domain.TriageItem{
				EmailID:        email.ID,
				Classification: p.triage.Classify(ctx, email),
			}
			if payload.SuggestTasks {
				item.Tasks = p.triage.SuggestTasks(ctx, email)
			}
			result.Items = append(result.Items, item)
		}
		result.CompletedAt = p.now().UTC()

		encoded, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("encode triage result: %w", err)
		}
		return encoded, nil
	default:
		return nil, queue.Permanent(fmt.Errorf("unsupported job kind: %s", kind))
	}
}

func (p *Processor) observe(status domain.JobStatus) {
	if p.observer != nil {
		p.observer.ObserveJob(string(status))
	}
}

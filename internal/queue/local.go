package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/brody/brody-back/internal/domain"
	"github.com/brody/brody-back/internal/logging"
)

// DeadLetter is a message that exhausted its attempts.
type DeadLetter struct {
	Message domain.QueueMessage
	Reason  string
	MovedAt time.Time
}

// LocalQueue is the in-process queue used when Redis is not configured.
// Retries are scheduled with a linear backoff of retryDelay per attempt.
type LocalQueue struct {
	ch          chan domain.QueueMessage
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger

	mu          sync.Mutex
	deadLetters []DeadLetter
}

func NewLocalQueue(bufferSize, maxAttempts int, logger *slog.Logger) *LocalQueue {
	if bufferSize <= 0 {
		bufferSize = 512
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &LocalQueue{
		ch:          make(chan domain.QueueMessage, bufferSize),
		maxAttempts: maxAttempts,
		retryDelay:  500 * time.Millisecond,
		logger:      logger,
	}
}

func (q *LocalQueue) Enqueue(ctx context.Context, message domain.QueueMessage) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- message:
		return nil
	}
}

func (q *LocalQueue) Consume(ctx context.Context, handler func(context.Context, domain.QueueMessage) error) error {
	for {
		var message domain.QueueMessage
		select {
		case <-ctx.Done():
			return ctx.Err()
		case message = <-q.ch:
		}

		err := handler(ctx, message)
		if err == nil {
			continue
		}

		message.Attempt++
		if exhausted(message, err, q.maxAttempts) {
			q.deadLetter(message, err)
			continue
		}
		q.scheduleRetry(ctx, message)
	}
}

func (q *LocalQueue) scheduleRetry(ctx context.Context, message domain.QueueMessage) {
	timer := time.NewTimer(time.Duration(message.Attempt) * q.retryDelay)
	go func() {
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			select {
			case q.ch <- message:
			case <-ctx.Done():
			}
		}
	}()
}

func (q *LocalQueue) deadLetter(message domain.QueueMessage, err error) {
	q.mu.Lock()
	q.deadLetters = append(q.deadLetters, DeadLetter{
		Message: message,
		Reason:  err.Error(),
		MovedAt: time.Now().UTC(),
	})
	q.mu.Unlock()
	q.logger.Warn(
		"local queue moved message to dead letters",
		logging.JobID(message.JobID),
		slog.Int("attempt", message.Attempt),
		slog.Bool("permanent", IsPermanent(err)),
		logging.Err(err),
	)
}

// DeadLetters returns a copy of the dead-lettered messages, oldest first.
func (q *LocalQueue) DeadLetters() []DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]DeadLetter(nil), q.deadLetters...)
}

func (q *LocalQueue) DLQSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.deadLetters)
}

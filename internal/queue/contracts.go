package queue

import (
	"context"
	"errors"

	"github.com/brody/brody-back/internal/domain"
)

// Producer sends triage jobs to a queue backend.
type Producer interface {
	Enqueue(ctx context.Context, message domain.QueueMessage) error
}

// Consumer receives triage jobs and executes handlers. A handler error
// schedules a retry until the backend's attempt limit, then dead-letters.
// Errors wrapped with Permanent are dead-lettered on the first failure.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, domain.QueueMessage) error) error
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var target *permanentError
	return errors.As(err, &target)
}

// exhausted reports whether message should go to the dead letters after
// failing with err.
func exhausted(message domain.QueueMessage, err error, maxAttempts int) bool {
	return IsPermanent(err) || message.Attempt >= maxAttempts
}

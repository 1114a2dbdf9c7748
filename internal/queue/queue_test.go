package queue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brody/brody-back/internal/domain"
)

func TestLocalQueueDeliversMessages(t *testing.T) {
	q := NewLocalQueue(4, 3, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := q.Enqueue(ctx, domain.QueueMessage{JobID: "job-1", Kind: domain.JobKindEmailTriage}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	received := make(chan string, 1)
	go func() {
		_ = q.Consume(ctx, func(_ context.Context, message domain.QueueMessage) error {
			received <- message.JobID
			return nil
		})
	}()

	select {
	case jobID := <-received:
		if jobID != "job-1" {
			t.Fatalf("expected job-1, got %s", jobID)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for message")
	}
}

func TestLocalQueueRetriesThenDeadLetters(t *testing.T) {
	q := NewLocalQueue(4, 2, nil)
	q.retryDelay = time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var calls int32
	go func() {
		_ = q.Consume(ctx, func(context.Context, domain.QueueMessage) error {
			atomic.AddInt32(&calls, 1)
			return errors.New("boom")
		})
	}()

	if err := q.Enqueue(ctx, domain.QueueMessage{JobID: "job-2"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for q.DLQSize() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if q.DLQSize() != 1 {
		t.Fatalf("expected one dead letter, got %d", q.DLQSize())
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 handler calls, got %d", got)
	}
}

func TestLocalQueueEnqueueRespectsContext(t *testing.T) {
	q := NewLocalQueue(1, 1, nil)
	if err := q.Enqueue(context.Background(), domain.QueueMessage{JobID: "fill"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Enqueue(ctx, domain.QueueMessage{JobID: "blocked"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLocalQueueDeadLettersPermanentErrorsImmediately(t *testing.T) {
	q := NewLocalQueue(4, 5, nil)
	q.retryDelay = time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var calls int32
	go func() {
		_ = q.Consume(ctx, func(context.Context, domain.QueueMessage) error {
			atomic.AddInt32(&calls, 1)
			return Permanent(errors.New("decode triage payload: bad json"))
		})
	}()

	if err := q.Enqueue(ctx, domain.QueueMessage{JobID: "job-p"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for q.DLQSize() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	letters := q.DeadLetters()
	if len(letters) != 1 {
		t.Fatalf("expected one dead letter, got %d", len(letters))
	}
	if letters[0].Message.JobID != "job-p" || letters[0].Message.Attempt != 1 {
		t.Fatalf("unexpected dead letter %+v", letters[0])
	}
	if letters[0].Reason != "decode triage payload: bad json" {
		t.Fatalf("unexpected reason %q", letters[0].Reason)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single handler call, got %d", got)
	}
}

func TestPermanentWrapping(t *testing.T) {
	base := errors.New("boom")
	wrapped := fmt.Errorf("job x: %w", Permanent(base))
	if !IsPermanent(wrapped) {
		t.Fatalf("expected wrapped permanent error to be detected")
	}
	if !errors.Is(wrapped, base) {
		t.Fatalf("expected permanent error to unwrap to its cause")
	}
	if IsPermanent(base) || Permanent(nil) != nil {
		t.Fatalf("unexpected permanent classification")
	}
}

func TestStreamMessageRoundTrip(t *testing.T) {
	requestedAt := time.Date(2026, 3, 4, 5, 6, 7, 8, time.UTC)
	original := domain.QueueMessage{
		JobID:       "job-3",
		Kind:        domain.JobKindEmailTriage,
		OwnerID:     "user-1",
		Payload:     []byte(`{"emails":[]}`),
		Attempt:     1,
		RequestedAt: requestedAt,
	}

	values, err := encodeStreamMessage(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if values[streamJobIDField] != "job-3" || values[streamKindField] != "email_triage" {
		t.Fatalf("expected inspection fields, got %+v", values)
	}

	parsed, err := parseStreamMessage(redis.XMessage{ID: "1-0", Values: values})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.JobID != "job-3" || parsed.OwnerID != "user-1" || parsed.Attempt != 1 {
		t.Fatalf("unexpected parsed message %+v", parsed)
	}
	if !parsed.RequestedAt.Equal(requestedAt) {
		t.Fatalf("expected requested_at %v, got %v", requestedAt, parsed.RequestedAt)
	}
	if string(parsed.Payload) != `{"emails":[]}` {
		t.Fatalf("unexpected payload %s", parsed.Payload)
	}
}

func TestParseStreamMessageRejectsBadEntries(t *testing.T) {
	cases := map[string]map[string]any{
		"missing message": {"job_id": "x"},
		"not json":        {"message": "{oops"},
		"no job id":       {"message": `{"kind":"email_triage"}`},
		"wrong type":      {"message": 42},
	}
	for name, values := range cases {
		if _, err := parseStreamMessage(redis.XMessage{ID: "1-0", Values: values}); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

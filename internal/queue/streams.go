package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brody/brody-back/internal/domain"
	"github.com/brody/brody-back/internal/logging"
)

type StreamsConfig struct {
	Addr        string
	Password    string
	DB          int
	Stream      string
	DLQStream   string
	Group       string
	Consumer    string
	MaxAttempts int
	Logger      *slog.Logger
}

// StreamsQueue implements Producer and Consumer on Redis Streams.
type StreamsQueue struct {
	client      *redis.Client
	stream      string
	dlqStream   string
	group       string
	consumer    string
	maxAttempts int
	logger      *slog.Logger
}

func NewStreamsQueue(ctx context.Context, cfg StreamsConfig) (*StreamsQueue, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.Stream == "" {
		cfg.Stream = "brody_triage_jobs"
	}
	if cfg.DLQStream == "" {
		cfg.DLQStream = cfg.Stream + "_dlq"
	}
	if cfg.Group == "" {
		cfg.Group = "brody_workers"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "api-1"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	queue := &StreamsQueue{
		client:      client,
		stream:      cfg.Stream,
		dlqStream:   cfg.DLQStream,
		group:       cfg.Group,
		consumer:    cfg.Consumer,
		maxAttempts: cfg.MaxAttempts,
		logger:      cfg.Logger,
	}
	if err := queue.ensureGroup(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return queue, nil
}

func (q *StreamsQueue) Close() error {
	return q.client.Close()
}

func (q *StreamsQueue) Enqueue(ctx context.Context, message domain.QueueMessage) error {
	values, err := encodeStreamMessage(message)
	if err != nil {
		return err
	}
	if _, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: values,
	}).Result(); err != nil {
		return fmt.Errorf("enqueue to stream: %w", err)
	}
	return nil
}

func (q *StreamsQueue) Consume(ctx context.Context, handler func(context.Context, domain.QueueMessage) error) error {
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  []string{q.stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("xreadgroup: %w", err)
		}

		for _, stream := range streams {
			for _, item := range stream.Messages {
				q.handleItem(ctx, item, handler)
			}
		}
	}
}

func (q *StreamsQueue) handleItem(
	ctx context.Context,
	item redis.XMessage,
	handler func(context.Context, domain.QueueMessage) error,
) {
	message, parseErr := parseStreamMessage(item)
	if parseErr != nil {
		q.logger.Warn("dropping malformed stream message", slog.String("stream_id", item.ID), logging.Err(parseErr))
		q.deadLetter(ctx, domain.QueueMessage{}, item, parseErr.Error())
		q.ackAndDelete(ctx, item.ID)
		return
	}

	handleErr := handler(ctx, message)
	if handleErr == nil {
		q.ackAndDelete(ctx, item.ID)
		return
	}

	message.Attempt++
	switch {
	case exhausted(message, handleErr, q.maxAttempts):
		q.deadLetter(ctx, message, item, handleErr.Error())
	default:
		// The retry is a fresh entry so the pending list never holds
		// handled messages.
		if requeueErr := q.Enqueue(ctx, message); requeueErr != nil {
			q.deadLetter(ctx, message, item, fmt.Sprintf("requeue failed: %v", requeueErr))
		}
	}
	q.ackAndDelete(ctx, item.ID)
}

func (q *StreamsQueue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "$").Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return fmt.Errorf("ensure stream group: %w", err)
}

func (q *StreamsQueue) ackAndDelete(ctx context.Context, streamID string) {
	if err := q.client.XAck(ctx, q.stream, q.group, streamID).Err(); err != nil {
		q.logger.Warn("xack failed", slog.String("stream_id", streamID), logging.Err(err))
		return
	}
	if err := q.client.XDel(ctx, q.stream, streamID).Err(); err != nil {
		q.logger.Warn("xdel failed", slog.String("stream_id", streamID), logging.Err(err))
	}
}

func (q *StreamsQueue) deadLetter(
	ctx context.Context,
	message domain.QueueMessage,
	item redis.XMessage,
	reason string,
) {
	values := map[string]any{
		"stream_id": item.ID,
		"job_id":    message.JobID,
		"error":     reason,
		"moved_at":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if raw, ok := item.Values[streamMessageField]; ok {
		values[streamMessageField] = raw
	}

	if _, err := q.client.XAdd(ctx, &redis.XAddArgs{Stream: q.dlqStream, Values: values}).Result(); err != nil {
		q.logger.Error("send to dead letter stream failed", logging.JobID(message.JobID), logging.Err(err))
		return
	}
	q.logger.Warn("moved message to dead letter stream", logging.JobID(message.JobID), slog.String("reason", reason))
}

// Stream entries carry the JSON-encoded message plus the job id and kind as
// plain fields for XRANGE inspection.
const (
	streamMessageField = "message"
	streamJobIDField   = "job_id"
	streamKindField    = "kind"
)

func encodeStreamMessage(message domain.QueueMessage) (map[string]any, error) {
	encoded, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("encode queue message: %w", err)
	}
	return map[string]any{
		streamJobIDField:   message.JobID,
		streamKindField:    string(message.Kind),
		streamMessageField: string(encoded),
	}, nil
}

func parseStreamMessage(item redis.XMessage) (domain.QueueMessage, error) {
	raw, ok := item.Values[streamMessageField]
	if !ok {
		return domain.QueueMessage{}, fmt.Errorf("missing field %s", streamMessageField)
	}

	var encoded []byte
	switch casted := raw.(type) {
	case string:
		encoded = []byte(casted)
	case []byte:
		encoded = casted
	default:
		return domain.QueueMessage{}, fmt.Errorf("unexpected %s type %T", streamMessageField, raw)
	}

	var message domain.QueueMessage
	if err := json.Unmarshal(encoded, &message); err != nil {
		return domain.QueueMessage{}, fmt.Errorf("decode queue message: %w", err)
	}
	if message.JobID == "" {
		return domain.QueueMessage{}, fmt.Errorf("queue message without job_id")
	}
	return message, nil
}

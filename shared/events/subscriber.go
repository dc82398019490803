package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DeadLetterSuffix is appended to a stream name to form the stream that
// receives messages the handler could not process.
const DeadLetterSuffix = ".dead"

var errMalformed = errors.New("malformed stream message")

type Handler func(ctx context.Context, event Event) error

// Subscriber consumes a stream through a consumer group. Messages the handler
// rejects stay pending and are retried after ClaimIdle; once a message has
// been delivered MaxDeliveries times it is moved to the dead-letter stream.
type Subscriber struct {
	client        *redis.Client
	group         string
	consumer      string
	stream        string
	handler       Handler
	batchSize     int64
	blockDuration time.Duration
	claimIdle     time.Duration
	maxDeliveries int64
	logger        *zap.Logger
}

type SubscriberConfig struct {
	Group         string
	Consumer      string
	Stream        string
	Handler       Handler
	BatchSize     int64
	BlockDuration time.Duration
	ClaimIdle     time.Duration
	MaxDeliveries int64
}

func NewSubscriber(client *redis.Client, config SubscriberConfig, logger *zap.Logger) *Subscriber {
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}
	if config.BlockDuration == 0 {
		config.BlockDuration = 5 * time.Second
	}
	if config.ClaimIdle == 0 {
		config.ClaimIdle = 30 * time.Second
	}
	if config.MaxDeliveries == 0 {
		config.MaxDeliveries = 5
	}

	return &Subscriber{
		client:        client,
		group:         config.Group,
		consumer:      config.Consumer,
		stream:        config.Stream,
		handler:       config.Handler,
		batchSize:     config.BatchSize,
		blockDuration: config.BlockDuration,
		claimIdle:     config.ClaimIdle,
		maxDeliveries: config.MaxDeliveries,
		logger: logger.With(
			zap.String("stream", config.Stream),
			zap.String("group", config.Group),
			zap.String("consumer", config.Consumer),
		),
	}
}

// Start blocks until ctx is cancelled.
func (s *Subscriber) Start(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	s.logger.Info("subscriber started")

	lastClaim := time.Time{}
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("subscriber stopping")
			return ctx.Err()
		default:
		}

		if time.Since(lastClaim) >= s.claimIdle {
			if err := s.reclaim(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("failed to reclaim pending messages", zap.Error(err))
			}
			lastClaim = time.Now()
		}

		if err := s.readMessages(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			s.logger.Warn("error reading messages", zap.Error(err))
			time.Sleep(time.Second)
		}
	}
}

func (s *Subscriber) readMessages(ctx context.Context) error {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, ">"},
		Count:    s.batchSize,
		Block:    s.blockDuration,
	}).Result()

	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			s.handle(ctx, message)
		}
	}
	return nil
}

// reclaim takes over messages left pending by a failed attempt or a dead
// consumer, dead-lettering those that exhausted their deliveries.
func (s *Subscriber) reclaim(ctx context.Context) error {
	pending, err := s.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: s.stream,
		Group:  s.group,
		Idle:   s.claimIdle,
		Start:  "-",
		End:    "+",
		Count:  s.batchSize,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to list pending messages: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	exhausted := make(map[string]bool)
	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ID)
		if p.RetryCount >= s.maxDeliveries {
			exhausted[p.ID] = true
		}
	}

	messages, err := s.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   s.stream,
		Group:    s.group,
		Consumer: s.consumer,
		MinIdle:  s.claimIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to claim pending messages: %w", err)
	}

	for _, message := range messages {
		if exhausted[message.ID] {
			s.deadLetter(ctx, message, fmt.Errorf("delivered %d times", s.maxDeliveries))
			continue
		}
		s.handle(ctx, message)
	}
	return nil
}

func (s *Subscriber) handle(ctx context.Context, message redis.XMessage) {
	err := s.processMessage(ctx, message)
	switch {
	case err == nil:
		s.ack(ctx, message.ID)
	case errors.Is(err, errMalformed):
		s.deadLetter(ctx, message, err)
	default:
		// Left pending; reclaim retries it.
		s.logger.Error("failed to process message", zap.String("message_id", message.ID), zap.Error(err))
	}
}

func (s *Subscriber) processMessage(ctx context.Context, message redis.XMessage) error {
	eventData, ok := message.Values["event"].(string)
	if !ok {
		return fmt.Errorf("%w: missing event field", errMalformed)
	}

	var event Event
	if err := json.Unmarshal([]byte(eventData), &event); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}

	return s.handler(ctx, event)
}

func (s *Subscriber) deadLetter(ctx context.Context, message redis.XMessage, cause error) {
	values := make(map[string]any, len(message.Values)+2)
	for k, v := range message.Values {
		values[k] = v
	}
	values["source_id"] = message.ID
	values["error"] = cause.Error()

	if err := s.client.XAdd(ctx, &redis.XAddArgs{Stream: s.stream + DeadLetterSuffix, Values: values}).Err(); err != nil {
		s.logger.Error("failed to dead-letter message", zap.String("message_id", message.ID), zap.Error(err))
		return
	}
	s.logger.Warn("message dead-lettered", zap.String("message_id", message.ID), zap.Error(cause))
	s.ack(ctx, message.ID)
}

func (s *Subscriber) ack(ctx context.Context, id string) {
	if err := s.client.XAck(ctx, s.stream, s.group, id).Err(); err != nil {
		s.logger.Warn("failed to ack message", zap.String("message_id", id), zap.Error(err))
	}
}

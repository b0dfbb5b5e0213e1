package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamClient is the part of go-redis the consumer uses.
type StreamClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// Handler receives one recorded product. Returning an error leaves the
// message unacknowledged so it is redelivered to the group.
type Handler func(ctx context.Context, payload ProductRecordedPayload) error

type ConsumerConfig struct {
	Stream  string
	Group   string
	Name    string
	Block   time.Duration
	Count   int64
	Backoff time.Duration
}

// Consumer reads PRODUCT_RECORDED events from a Redis stream through a
// consumer group.
type Consumer struct {
	redis   StreamClient
	handler Handler
	cfg     ConsumerConfig
	logger  *slog.Logger
}

// NewConsumer creates a consumer group reader for cfg.Stream.
func NewConsumer(client StreamClient, handler Handler, cfg ConsumerConfig, logger *slog.Logger) *Consumer {
	if cfg.Group == "" {
		cfg.Group = "mercadona-tail"
	}
	if cfg.Name == "" {
		cfg.Name = "consumer-1"
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.Count <= 0 {
		cfg.Count = 10
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	return &Consumer{
		redis:   client,
		handler: handler,
		cfg:     cfg,
		logger:  logger.With("component", "stream_consumer", "stream", cfg.Stream, "group", cfg.Group),
	}
}

// Run consumes until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	err := c.redis.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("starting consumer")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := c.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("failed to read from stream", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.Backoff):
			}
		}
	}
}

// Poll reads one batch and returns how many messages were handled and
// acknowledged.
func (c *Consumer) Poll(ctx context.Context) (int, error) {
	streams, err := c.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Name,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.Count,
		Block:    c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}

	handled := 0
	for _, stream := range streams {
		for _, message := range stream.Messages {
			if err := c.processMessage(ctx, message); err != nil {
				c.logger.Error("failed to process message", "id", message.ID, "error", err)
				continue
			}
			if err := c.redis.XAck(ctx, c.cfg.Stream, c.cfg.Group, message.ID).Err(); err != nil {
				c.logger.Error("failed to acknowledge message", "id", message.ID, "error", err)
				continue
			}
			handled++
		}
	}
	return handled, nil
}

func (c *Consumer) processMessage(ctx context.Context, msg redis.XMessage) error {
	// Unrelated event types are acknowledged and dropped.
	if eventType, _ := msg.Values["type"].(string); eventType != string(EventTypeProductRecorded) {
		return nil
	}

	data, ok := msg.Values["data"].(string)
	if !ok {
		return errors.New("missing data in event")
	}

	var envelope struct {
		Payload ProductRecordedPayload `json:"payload"`
	}
	if err := json.Unmarshal([]byte(data), &envelope); err != nil {
		return fmt.Errorf("failed to parse event: %w", err)
	}
	if envelope.Payload.ProductName == "" {
		return errors.New("missing product name in payload")
	}

	return c.handler(ctx, envelope.Payload)
}

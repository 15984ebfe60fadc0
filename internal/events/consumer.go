package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/crossmesh/datashare/internal/logger"
	"github.com/crossmesh/datashare/internal/metrics"
)

const (
	blockDuration    = 5 * time.Second
	claimIdleTimeout = 30 * time.Second
	batchSize        = 10
)

// ConsumerGroup is the consumer group for workflow runners.
const ConsumerGroup = "datashare-workers"

// Handler processes one envelope. Returning an error leaves the message
// unacked so another consumer can claim and retry it.
type Handler interface {
	HandleEvent(ctx context.Context, env Envelope) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, env Envelope) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, env Envelope) error {
	return f(ctx, env)
}

// Consumer reads a domain's inbound channel stream.
type Consumer struct {
	client     *redis.Client
	stream     string
	consumerID string
	handler    Handler
	log        logger.Logger
	metrics    *metrics.Metrics
	shutdownCh chan struct{}
}

// NewConsumer creates a consumer for a domain's channel stream.
// Returns nil if client is nil.
func NewConsumer(client *redis.Client, stream, consumerID string, handler Handler, log logger.Logger, m *metrics.Metrics) *Consumer {
	if client == nil {
		return nil
	}
	if consumerID == "" {
		consumerID = generateConsumerID()
	}
	return &Consumer{
		client:     client,
		stream:     stream,
		consumerID: consumerID,
		handler:    handler,
		log:        log,
		metrics:    m,
		shutdownCh: make(chan struct{}),
	}
}

// generateConsumerID creates a unique consumer identifier.
func generateConsumerID() string {
	const uuidPrefixLength = 8
	return fmt.Sprintf("datashare-%s", uuid.New().String()[:uuidPrefixLength])
}

// Start begins consuming events from the stream.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	c.log.Info("Starting event consumer",
		logger.String("stream", c.stream),
		logger.String("consumer_id", c.consumerID),
		logger.String("group", ConsumerGroup),
	)

	go c.consumeLoop(ctx)
	go c.claimAbandonedLoop(ctx)

	return nil
}

// Stop gracefully shuts down the consumer.
func (c *Consumer) Stop() {
	close(c.shutdownCh)
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdownCh:
			return
		default:
			c.readAndProcess(ctx)
		}
	}
}

func (c *Consumer) readAndProcess(ctx context.Context) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: c.consumerID,
		Streams:  []string{c.stream, ">"},
		Count:    batchSize,
		Block:    blockDuration,
	}).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return
		}
		c.log.Error("Failed to read from stream", logger.Error(err))
		time.Sleep(time.Second)
		return
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			c.processMessage(ctx, msg)
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg redis.XMessage) {
	eventData, ok := msg.Values["event"].(string)
	if !ok {
		c.log.Error("Invalid message format", logger.String("stream_id", msg.ID))
		c.ackMessage(ctx, msg.ID)
		return
	}

	var env Envelope
	if err := json.Unmarshal([]byte(eventData), &env); err != nil {
		c.log.Error("Failed to unmarshal envelope",
			logger.String("stream_id", msg.ID),
			logger.Error(err),
		)
		c.ackMessage(ctx, msg.ID)
		return
	}

	if err := c.handler.HandleEvent(ctx, env); err != nil {
		c.log.Error("Failed to handle event",
			logger.String("detail_type", env.DetailType),
			logger.String("source", env.Source),
			logger.Error(err),
		)
		return // Don't ACK - will be retried
	}

	c.ackMessage(ctx, msg.ID)
	c.metrics.EventConsumed(env.DetailType)

	c.log.Info("Processed event",
		logger.String("detail_type", env.DetailType),
		logger.String("source", env.Source),
		logger.String("stream_id", msg.ID),
	)
}

func (c *Consumer) ackMessage(ctx context.Context, streamID string) {
	if err := c.client.XAck(ctx, c.stream, ConsumerGroup, streamID).Err(); err != nil {
		c.log.Error("Failed to ACK message",
			logger.String("stream_id", streamID),
			logger.Error(err),
		)
	}
}

func (c *Consumer) claimAbandonedLoop(ctx context.Context) {
	ticker := time.NewTicker(claimIdleTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdownCh:
			return
		case <-ticker.C:
			c.claimAbandonedMessages(ctx)
		}
	}
}

func (c *Consumer) claimAbandonedMessages(ctx context.Context) {
	messages, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    ConsumerGroup,
		Consumer: c.consumerID,
		MinIdle:  claimIdleTimeout,
		Count:    batchSize,
	}).Result()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.log.Error("Failed to auto-claim messages", logger.Error(err))
		return
	}

	for _, msg := range messages {
		c.log.Info("Claimed abandoned message", logger.String("stream_id", msg.ID))
		c.processMessage(ctx, msg)
	}
}

func (c *Consumer) ensureConsumerGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, ConsumerGroup, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return err
	}
	return nil
}

func isGroupExistsError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}

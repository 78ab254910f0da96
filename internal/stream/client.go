package stream

import (
	"context"
	"time"

	"dexarb/internal/metrics"
	"dexarb/internal/models"
)

const dlqSuffix = ":dlq"

// DlqStreamName returns the DLQ stream name MoveToDlq appends to for a
// given source stream, so callers (e.g. internal/dlqstore's archiver) can
// consume it without hardcoding the suffix convention.
func DlqStreamName(sourceStream string) string {
	return sourceStream + dlqSuffix
}

// Client is the Stream Client (C8): a thin, metrics-instrumented
// wrapper over a Backend. It never retries a failed append (spec.md
// §4.8 "fire-and-forget at this layer"); callers decide retry policy.
type Client struct {
	backend Backend
}

// NewClient constructs a Client over backend.
func NewClient(backend Backend) *Client {
	return &Client{backend: backend}
}

func (c *Client) Append(ctx context.Context, stream string, fields map[string]string) (string, error) {
	id, err := c.backend.Append(ctx, stream, fields)
	if err != nil {
		metrics.PublishFailedTotal.WithLabelValues(stream).Inc()
	}
	return id, err
}

func (c *Client) AppendWithLimit(ctx context.Context, stream string, fields map[string]string, maxLen int64) (string, error) {
	id, err := c.backend.AppendWithLimit(ctx, stream, fields, maxLen)
	if err != nil {
		metrics.PublishFailedTotal.WithLabelValues(stream).Inc()
	}
	return id, err
}

// CreateGroup is idempotent: the Backend is required to treat
// "group already exists" as success (spec.md §4.7).
func (c *Client) CreateGroup(ctx context.Context, stream, group, startID string) error {
	return c.backend.CreateGroup(ctx, stream, group, startID)
}

// BlockingReadGroup reads up to batchSize messages, blocking up to
// blockMs when the stream has nothing new (spec.md §4.7).
func (c *Client) BlockingReadGroup(ctx context.Context, stream, group, consumer string, batchSize int64, blockMs time.Duration) ([]models.StreamMessage, error) {
	msgs, err := c.backend.ReadGroup(ctx, stream, group, consumer, batchSize, blockMs)
	if err != nil {
		return nil, err
	}
	if len(msgs) > 0 {
		metrics.MessagesReadTotal.WithLabelValues(stream, group).Add(float64(len(msgs)))
		for _, m := range msgs {
			if m.DeliveryCount > 1 {
				metrics.MessagesRedeliveredTotal.WithLabelValues(stream, group).Inc()
			}
		}
	}
	return msgs, nil
}

func (c *Client) Ack(ctx context.Context, stream, group, messageID string) error {
	err := c.backend.Ack(ctx, stream, group, messageID)
	if err == nil {
		metrics.MessagesAckedTotal.WithLabelValues(stream, group).Inc()
	}
	return err
}

func (c *Client) StreamInfo(ctx context.Context, stream string) (models.StreamInfo, error) {
	return c.backend.Info(ctx, stream)
}

func (c *Client) Pending(ctx context.Context, stream, group string) ([]models.PendingEntry, error) {
	return c.backend.Pending(ctx, stream, group)
}

// MoveToDlq atomically (from the caller's perspective) appends a DLQ
// record carrying the original fields plus reason, then acks the
// original message, so a message is never both pending and DLQ'd
// (spec.md §4.7 "moveToDlq ... atomic: appends a DLQ record then acks
// the original").
func (c *Client) MoveToDlq(ctx context.Context, stream, group, messageID, reason string, originalFields map[string]string) error {
	dlqFields := make(map[string]string, len(originalFields)+2)
	for k, v := range originalFields {
		dlqFields[k] = v
	}
	dlqFields["dlqReason"] = reason
	dlqFields["originalMessageId"] = messageID

	dlqStream := DlqStreamName(stream)
	if _, err := c.backend.Append(ctx, dlqStream, dlqFields); err != nil {
		metrics.PublishFailedTotal.WithLabelValues(dlqStream).Inc()
		return err
	}
	metrics.DlqMovesTotal.WithLabelValues(stream, reason).Inc()
	return c.backend.Ack(ctx, stream, group, messageID)
}

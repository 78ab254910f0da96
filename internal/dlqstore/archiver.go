package dlqstore

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dexarb/internal/metrics"
	"dexarb/internal/models"
	"dexarb/internal/stream"
)

// NewArchiver wires a stream.Consumer over sourceStream's DLQ stream
// (stream.DlqStreamName) that writes every entry to store before acking.
// A failed archive write leaves the message unacked, so a transient
// Postgres outage only delays archival rather than losing entries.
func NewArchiver(client *stream.Client, sourceStream, group, consumerName string, batchSize int64, blockMs time.Duration, store *Store, logger *zap.SugaredLogger) *stream.Consumer {
	dlqStream := stream.DlqStreamName(sourceStream)
	handler := func(ctx context.Context, msg models.StreamMessage) error {
		if err := store.Archive(ctx, sourceStream, msg); err != nil {
			metrics.DlqArchiveFailedTotal.WithLabelValues(sourceStream).Inc()
			return err
		}
		return client.Ack(ctx, dlqStream, group, msg.ID)
	}
	return stream.NewConsumer(client, dlqStream, group, consumerName, batchSize, blockMs, handler, logger)
}

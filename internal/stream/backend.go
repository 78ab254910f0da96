// Package stream implements the Stream Client (C8) and Stream Consumer
// (C9): a consumer-group abstraction over a distributed log, with
// blocking reads, deferred per-message acknowledgement, pause/resume
// backpressure, and a dead-letter queue (spec.md §4.7).
//
// The wire backend is an abstract contract (spec.md §1 "treat the
// concrete choice of distributed KV/stream implementation as
// replaceable") so tests substitute an in-process fake for Redis
// Streams. Grounded on the pack's ethereum-go-ethereum/ethdb/redisdb
// and common/redis for the client-wrapping-a-driver shape, and on the
// teacher's internal/websocket/hub.go run-loop/channel idiom for C9.
package stream

import (
	"context"
	"time"

	"dexarb/internal/models"
)

// Backend is the minimal distributed stream contract required by C8
// (spec.md §6 "Distributed KV / stream"). StartID is "0" (from
// beginning) or "$" (only new), per spec.md §3.
type Backend interface {
	Append(ctx context.Context, stream string, fields map[string]string) (string, error)
	AppendWithLimit(ctx context.Context, stream string, fields map[string]string, maxLen int64) (string, error)
	CreateGroup(ctx context.Context, stream, group, startID string) error
	ReadGroup(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]models.StreamMessage, error)
	Ack(ctx context.Context, stream, group, id string) error
	Info(ctx context.Context, stream string) (models.StreamInfo, error)
	Pending(ctx context.Context, stream, group string) ([]models.PendingEntry, error)
}

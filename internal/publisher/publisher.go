// Package publisher implements the Opportunity Publisher (C10): the
// last hop of the hot detection path, turning a models.Opportunity into
// a stream append (spec.md §4.8). Grounded on the teacher's
// fire-and-forget counter idiom in internal/bot/metrics.go — failures
// are counted, never retried; retry/reliability is the downstream
// consumer group's job.
package publisher

import (
	"context"
	"strconv"
	"time"

	"dexarb/internal/models"
	"dexarb/internal/stream"
)

// Publisher publishes opportunities onto a single stream.
type Publisher struct {
	client *stream.Client
	name   string // stream name, e.g. "opportunities"
	source string // producer id, e.g. "detector:eth:1" (spec.md §3 Source)
	maxLen int64
}

// New constructs a Publisher. source identifies this producer instance
// for downstream attribution (spec.md §3 "Source: producer id").
func New(client *stream.Client, streamName, source string, maxLen int64) *Publisher {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &Publisher{client: client, name: streamName, source: source, maxLen: maxLen}
}

// Publish enriches opp with source and publishedMillis, serializes it
// to a flat field map, and appends it with an approximate cap of 10,000
// entries (spec.md §4.8). Returns true on success; failures are counted
// via stream.Client's publishFailedTotal and never retried here.
func (p *Publisher) Publish(ctx context.Context, opp models.Opportunity) bool {
	opp.Source = p.source
	opp.PipelineTimestamps.PublishedMillis = time.Now().UnixMilli()

	fields := encode(opp)
	_, err := p.client.AppendWithLimit(ctx, p.name, fields, p.maxLen)
	return err == nil
}

func encode(opp models.Opportunity) map[string]string {
	fields := map[string]string{
		"id":                      opp.ID,
		"kind":                    string(opp.Kind),
		"chainId":                 opp.ChainID,
		"blockNumber":             strconv.FormatUint(opp.BlockNumber, 10),
		"legCount":                strconv.Itoa(len(opp.Legs)),
		"grossBps":                strconv.FormatInt(opp.GrossBps, 10),
		"netBps":                  strconv.FormatInt(opp.NetBps, 10),
		"confidence":              strconv.FormatFloat(opp.Confidence, 'f', -1, 64),
		"expiryMillis":            strconv.FormatInt(opp.ExpiryMillis, 10),
		"source":                  opp.Source,
		"wsReceivedMillis":        strconv.FormatInt(opp.PipelineTimestamps.WSReceivedMillis, 10),
		"publishedMillis":         strconv.FormatInt(opp.PipelineTimestamps.PublishedMillis, 10),
	}
	for i, leg := range opp.Legs {
		prefix := "leg" + strconv.Itoa(i) + "."
		fields[prefix+"dexId"] = leg.DexID
		fields[prefix+"token0"] = leg.Token0
		fields[prefix+"token1"] = leg.Token1
	}
	return fields
}

// Decode reconstructs a models.Opportunity from a stream field map,
// the inverse of encode, used by the coordinator router (C11) on
// read-back.
func Decode(fields map[string]string) models.Opportunity {
	opp := models.Opportunity{
		ID:      fields["id"],
		Kind:    models.OpportunityKind(fields["kind"]),
		ChainID: fields["chainId"],
		Source:  fields["source"],
	}
	opp.BlockNumber, _ = strconv.ParseUint(fields["blockNumber"], 10, 64)
	opp.GrossBps, _ = strconv.ParseInt(fields["grossBps"], 10, 64)
	opp.NetBps, _ = strconv.ParseInt(fields["netBps"], 10, 64)
	opp.Confidence, _ = strconv.ParseFloat(fields["confidence"], 64)
	opp.ExpiryMillis, _ = strconv.ParseInt(fields["expiryMillis"], 10, 64)
	opp.PipelineTimestamps.WSReceivedMillis, _ = strconv.ParseInt(fields["wsReceivedMillis"], 10, 64)
	opp.PipelineTimestamps.PublishedMillis, _ = strconv.ParseInt(fields["publishedMillis"], 10, 64)

	legCount, _ := strconv.Atoi(fields["legCount"])
	opp.Legs = make([]models.Leg, 0, legCount)
	for i := 0; i < legCount; i++ {
		prefix := "leg" + strconv.Itoa(i) + "."
		opp.Legs = append(opp.Legs, models.Leg{
			DexID:  fields[prefix+"dexId"],
			Token0: fields[prefix+"token0"],
			Token1: fields[prefix+"token1"],
		})
	}
	return opp
}

package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-powboard/internal/decode"
)

// Pipeline decodes raw transactions and feeds their events to a Queue, one
// stream per application id.
type Pipeline struct {
	Decoder *decode.Decoder
	Queue   *Queue
}

// NewPipeline joins d and q.
func NewPipeline(d *decode.Decoder, q *Queue) *Pipeline {
	return &Pipeline{Decoder: d, Queue: q}
}

// HandleTransaction decodes raw and enqueues every event it yields. Per
// output rejections are logged and counted; only a record that cannot be
// decoded at all, or a closed queue, returns an error.
func (p *Pipeline) HandleTransaction(_ context.Context, raw decode.RawTransaction) error {
	res, err := p.Decoder.Decode(raw)
	if err != nil {
		itemsTotal.WithLabelValues(p.Decoder.Source, "rejected").Inc()
		log.Warn().Err(err).Msg("ingest.decode_failed")
		return err
	}
	for _, r := range res.Rejections {
		itemsTotal.WithLabelValues(p.Decoder.Source, "rejected").Inc()
		log.Warn().
			Err(r.Err).
			Str("ref", r.Ref.String()).
			Msg("ingest.output_rejected")
	}
	for _, ev := range res.Events {
		if err := p.Queue.Push(ev.AppID, ev); err != nil {
			return err
		}
	}
	return nil
}

// HandleJSON decodes one JSON-encoded transaction record and handles it.
func (p *Pipeline) HandleJSON(ctx context.Context, b []byte) error {
	var raw decode.RawTransaction
	if err := json.Unmarshal(b, &raw); err != nil {
		itemsTotal.WithLabelValues(p.Decoder.Source, "rejected").Inc()
		return fmt.Errorf("ingest: malformed record: %w", err)
	}
	return p.HandleTransaction(ctx, raw)
}

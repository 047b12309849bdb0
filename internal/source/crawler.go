package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Crawler polls a bitbus-compatible endpoint for transactions published
// under AppIDs, resuming after the last checkpointed block.
type Crawler struct {
	URL         string
	Token       string
	AppIDs      []string
	StartHeight int64
	Interval    time.Duration
	Stream      string

	HTTP        *http.Client
	Checkpoints CheckpointStore
	Handler     Handler
	// Settle, when set, runs after a batch is handled and before the
	// checkpoint advances, e.g. to wait for queued writes.
	Settle func()
}

// query is the request body understood by bitbus.
type query struct {
	V int `json:"v"`
	Q struct {
		Find    map[string]any `json:"find"`
		Sort    map[string]int `json:"sort"`
		Project map[string]int `json:"project,omitempty"`
	} `json:"q"`
}

func (c *Crawler) buildQuery(after int64) query {
	var q query
	q.V = 3
	q.Q.Find = map[string]any{
		"out.s2": "onchain",
		"out.s3": map[string]any{"$in": c.AppIDs},
		"blk.i":  map[string]any{"$gt": after},
	}
	q.Q.Sort = map[string]int{"blk.i": 1}
	q.Q.Project = map[string]int{"blk": 1, "tx.h": 1, "out.i": 1, "out.s2": 1, "out.s3": 1,
		"out.s4": 1, "out.s5": 1, "out.s6": 1, "out.s7": 1, "out.s8": 1, "timestamp": 1}
	return q
}

// Run polls until ctx is done. Poll errors are logged and retried on the
// next tick.
func (c *Crawler) Run(ctx context.Context) error {
	interval := c.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if st, err := c.Poll(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).
				Str("stream", c.Stream).
				Str("session", st.Session).
				Msg("crawler.poll_failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// Poll fetches every record above the current checkpoint, hands each to the
// Handler, and advances the checkpoint to the highest block seen. Each poll
// carries a fresh session id, sent as X-Request-ID and logged.
func (c *Crawler) Poll(ctx context.Context) (Stats, error) {
	session := uuid.NewString()
	failed := Stats{Session: session}
	after := c.StartHeight
	if c.Checkpoints != nil {
		h, ok, err := c.Checkpoints.Load(ctx, c.Stream)
		if err != nil {
			return failed, err
		}
		if ok && h > after {
			after = h
		}
	}

	body, err := json.Marshal(c.buildQuery(after))
	if err != nil {
		return failed, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return failed, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", session)
	if c.Token != "" {
		req.Header.Set("token", c.Token)
	}

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return failed, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return failed, fmt.Errorf("crawler: unexpected status %d", resp.StatusCode)
	}

	st, err := ReadNDJSON(ctx, resp.Body, c.Handler)
	st.Session = session
	if err != nil {
		return st, err
	}
	if c.Settle != nil {
		c.Settle()
	}
	if st.MaxHeight > after && c.Checkpoints != nil {
		if err := c.Checkpoints.Save(ctx, c.Stream, st.MaxHeight); err != nil {
			return st, err
		}
	}
	log.Info().
		Str("stream", c.Stream).
		Str("session", session).
		Int64("after", after).
		Int64("height", st.MaxHeight).
		Int("records", st.Records).
		Int("failed", st.Failed).
		Msg("crawler.poll")
	return st, nil
}

// Package ingest moves decoded events from stream sources into storage.
//
// Queue serializes writes per stream: each stream key owns one goroutine and
// an unbounded FIFO buffer, so events of a stream are written one at a time
// and in arrival order while Push never blocks the source. A failing or
// panicking write is logged and dropped; the stream keeps going.
package ingest

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-powboard/internal/domain"
	"github.com/tbourn/go-powboard/internal/services"
)

// ErrClosed is returned by Push after Close.
var ErrClosed = errors.New("ingest: queue closed")

// Writer persists one event. services.IngestService implements it.
type Writer interface {
	Write(ctx context.Context, ev domain.DecodedEvent) (services.Outcome, error)
}

type stream struct {
	name   string
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []domain.DecodedEvent
	closed bool
}

// Queue is a set of per-stream FIFO workers in front of a Writer.
type Queue struct {
	ctx    context.Context
	writer Writer

	mu      sync.Mutex
	idle    *sync.Cond
	streams map[string]*stream
	pending int
	closed  bool
	wg      sync.WaitGroup
}

// NewQueue returns a Queue whose writes run under ctx. Cancelling ctx does not
// stop the workers; use Close.
func NewQueue(ctx context.Context, w Writer) *Queue {
	q := &Queue{
		ctx:     ctx,
		writer:  w,
		streams: make(map[string]*stream),
	}
	q.idle = sync.NewCond(&q.mu)
	return q
}

// Push appends ev to the named stream, starting its worker on first use.
func (q *Queue) Push(name string, ev domain.DecodedEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	s, ok := q.streams[name]
	if !ok {
		s = &stream{name: name}
		s.cond = sync.NewCond(&s.mu)
		q.streams[name] = s
		q.wg.Add(1)
		go q.run(s)
	}
	q.pending++
	queueDepth.WithLabelValues(name).Inc()

	s.mu.Lock()
	s.buf = append(s.buf, ev)
	s.mu.Unlock()
	s.cond.Signal()
	return nil
}

// Pending reports items accepted but not yet written, across all streams.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Wait blocks until every accepted item has been processed.
func (q *Queue) Wait() {
	q.mu.Lock()
	for q.pending > 0 {
		q.idle.Wait()
	}
	q.mu.Unlock()
}

// Close stops accepting items, lets every stream drain its buffer, and waits
// for the workers to exit. It is safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		for _, s := range q.streams {
			s.mu.Lock()
			s.closed = true
			s.mu.Unlock()
			s.cond.Broadcast()
		}
	}
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) run(s *stream) {
	defer q.wg.Done()
	for {
		s.mu.Lock()
		for len(s.buf) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.buf) == 0 {
			s.mu.Unlock()
			return
		}
		ev := s.buf[0]
		s.buf[0] = domain.DecodedEvent{}
		s.buf = s.buf[1:]
		s.mu.Unlock()

		queueDepth.WithLabelValues(s.name).Dec()
		q.process(s.name, ev)

		q.mu.Lock()
		q.pending--
		if q.pending == 0 {
			q.idle.Broadcast()
		}
		q.mu.Unlock()
	}
}

func (q *Queue) process(name string, ev domain.DecodedEvent) {
	start := time.Now()
	outcome := "error"
	defer func() {
		if rec := recover(); rec != nil {
			outcome = "panic"
			log.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("stream", name).
				Str("ref", ev.Ref.String()).
				Msg("ingest.panic")
		}
		itemsTotal.WithLabelValues(name, outcome).Inc()
		itemDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	res, err := q.writer.Write(q.ctx, ev)
	if err != nil {
		log.Error().
			Err(err).
			Str("stream", name).
			Str("ref", ev.Ref.String()).
			Str("kind", ev.Kind.String()).
			Msg("ingest.write_failed")
		return
	}
	outcome = res.String()
}

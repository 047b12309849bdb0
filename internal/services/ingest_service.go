// Package services – IngestService
//
// IngestService is the idempotent writer behind the ingestion queue. Every
// decoded event is recorded once in the events table and projected into
// posts or proofs inside the same database transaction. Identity is the
// transaction output (tx_id, tx_index); storage enforces it with unique
// indexes and INSERT ... ON CONFLICT DO NOTHING, so redelivered or
// concurrently delivered events resolve to a Duplicate outcome instead of an
// error.
//
// Observability: Write is OpenTelemetry-instrumented; outcomes are logged at
// debug level.
package services

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-powboard/internal/cache"
	"github.com/tbourn/go-powboard/internal/domain"
	"github.com/tbourn/go-powboard/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Outcome is the result of a successful Write.
type Outcome int

const (
	OutcomeInserted Outcome = iota + 1
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeDuplicate:
		return "duplicate"
	}
	return "unknown"
}

// IngestService persists decoded events exactly once.
type IngestService struct {
	DB     *gorm.DB
	Linker *ThreadLinker
	Cache  cache.PostCache

	// Now stamps proofs whose time cannot be resolved any other way.
	Now func() time.Time
}

// NewIngestService wires an IngestService. A nil resolver leaves every
// confirmation time unresolved; a nil cache disables invalidation.
func NewIngestService(db *gorm.DB, resolver TimeResolver, c cache.PostCache) *IngestService {
	if c == nil {
		c = cache.Nop{}
	}
	return &IngestService{
		DB:     db,
		Linker: &ThreadLinker{Resolver: resolver},
		Cache:  c,
		Now:    time.Now,
	}
}

// Write records ev and its projection. It returns OutcomeDuplicate, with no
// error, when the identity was already stored.
func (s *IngestService) Write(ctx context.Context, ev domain.DecodedEvent) (Outcome, error) {
	tr := otel.Tracer("services/IngestService")
	ctx, span := tr.Start(ctx, "Write",
		trace.WithAttributes(
			attribute.String("tx.id", ev.Ref.TxID),
			attribute.Int("tx.index", ev.Ref.TxIndex),
			attribute.String("event.kind", ev.Kind.String()),
		),
	)
	defer span.End()

	if ev.Ref.TxID == "" {
		return 0, ErrInvalidEvent
	}
	if err := checkPayload(ev); err != nil {
		return 0, err
	}

	// Known identities skip the insert path. A post still missing its
	// confirmation time gets one more lookup. The insert stays conflict-safe
	// on its own.
	if _, err := repo.GetEvent(ctx, s.DB, ev.Ref.TxID, ev.Ref.TxIndex); err == nil {
		switch ev.Kind {
		case domain.KindPost, domain.KindReply:
			filled, err := s.Linker.Backfill(ctx, s.DB, ev.Ref.TxID)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return 0, err
			}
			if filled && s.Cache != nil {
				s.Cache.Invalidate(ctx, ev.Ref.TxID)
			}
		case domain.KindProof, domain.KindUnknown:
		}
		s.logDuplicate(ev)
		span.SetAttributes(attribute.String("outcome", OutcomeDuplicate.String()))
		return OutcomeDuplicate, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	var resolved *time.Time
	switch ev.Kind {
	case domain.KindPost, domain.KindReply, domain.KindProof:
		resolved = s.Linker.Resolve(ctx, ev.Ref.TxID)
	case domain.KindUnknown:
	}

	outcome := OutcomeDuplicate
	var touched []string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := repo.InsertEventIfAbsent(ctx, tx, toEvent(ev))
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		outcome = OutcomeInserted

		switch ev.Kind {
		case domain.KindPost, domain.KindReply:
			res, err := s.Linker.Link(ctx, tx, toPost(ev), resolved)
			if err != nil {
				return err
			}
			touched = res.Touched
		case domain.KindProof:
			pr := toProof(ev, resolved, s.now())
			if _, err := repo.InsertProofIfAbsent(ctx, tx, pr); err != nil {
				return err
			}
			touched = append(touched, pr.Content)
		case domain.KindUnknown:
			// Recorded for audit only.
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	span.SetAttributes(attribute.String("outcome", outcome.String()))
	if outcome == OutcomeDuplicate {
		s.logDuplicate(ev)
		return outcome, nil
	}
	if len(touched) > 0 && s.Cache != nil {
		s.Cache.Invalidate(ctx, touched...)
	}
	log.Debug().
		Str("tx_id", ev.Ref.TxID).
		Int("tx_index", ev.Ref.TxIndex).
		Str("kind", ev.Kind.String()).
		Bool("resolved", resolved != nil).
		Msg("event.inserted")
	return outcome, nil
}

func (s *IngestService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *IngestService) logDuplicate(ev domain.DecodedEvent) {
	log.Debug().
		Str("tx_id", ev.Ref.TxID).
		Int("tx_index", ev.Ref.TxIndex).
		Str("kind", ev.Kind.String()).
		Msg("event.duplicate")
}

func checkPayload(ev domain.DecodedEvent) error {
	switch ev.Kind {
	case domain.KindPost, domain.KindReply:
		if ev.Post == nil {
			return ErrMissingPayload
		}
	case domain.KindProof:
		if ev.Proof == nil {
			return ErrMissingPayload
		}
	case domain.KindUnknown:
	}
	return nil
}

func toEvent(ev domain.DecodedEvent) *domain.Event {
	return &domain.Event{
		TxID:      ev.Ref.TxID,
		TxIndex:   ev.Ref.TxIndex,
		AppID:     ev.AppID,
		Kind:      ev.Kind.String(),
		Key:       ev.Key,
		Value:     string(ev.Value),
		Nonce:     optional(ev.Nonce),
		Author:    optional(ev.Author),
		Signature: optional(ev.Signature),
		Source:    ev.Source,
	}
}

func toPost(ev domain.DecodedEvent) *domain.Post {
	return &domain.Post{
		TxID:      ev.Ref.TxID,
		TxIndex:   ev.Ref.TxIndex,
		Content:   ev.Post.Content,
		ReplyTxID: optional(ev.Post.ReplyTxID),
		Author:    optional(ev.Author),
	}
}

// toProof builds the stored proof. Its timestamp comes from the ledger
// confirmation time, else the timestamp carried in the payload, else the
// block time, else now.
func toProof(ev domain.DecodedEvent, resolved *time.Time, now time.Time) *domain.Proof {
	p := ev.Proof
	ts := resolved
	if ts == nil && p.Timestamp != nil && *p.Timestamp > 0 {
		ts = fromUnix(*p.Timestamp)
	}
	if ts == nil && ev.BlockTime != nil {
		bt := ev.BlockTime.UTC()
		ts = &bt
	}
	if ts == nil {
		ts = &now
	}
	return &domain.Proof{
		TxID:       ev.Ref.TxID,
		TxIndex:    ev.Ref.TxIndex,
		Content:    p.Content,
		Difficulty: p.Difficulty,
		Timestamp:  ts,
		JobTxID:    optional(p.JobTxID),
		JobTxIndex: p.JobTxIndex,
		Tag:        optional(p.Tag),
		Value:      p.Value,
	}
}

// fromUnix converts fractional unix seconds to a UTC time. Values too large
// to be seconds are taken as milliseconds.
func fromUnix(v float64) *time.Time {
	var t time.Time
	if v > 1e11 {
		t = time.UnixMilli(int64(math.Round(v))).UTC()
	} else {
		sec, frac := math.Modf(v)
		t = time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
	}
	return &t
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

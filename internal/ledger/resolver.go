package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// TransactionGetter is the lookup Resolver depends on.
type TransactionGetter interface {
	GetTransaction(ctx context.Context, txID string) (*Transaction, error)
}

// Resolver turns ledger lookups into best-effort confirmation times.
type Resolver struct {
	Getter TransactionGetter
}

// NewResolver wraps g.
func NewResolver(g TransactionGetter) *Resolver { return &Resolver{Getter: g} }

// ConfirmationTime returns when txID was confirmed, or nil when the ledger
// cannot say. Failures are logged, never returned.
func (r *Resolver) ConfirmationTime(ctx context.Context, txID string) *time.Time {
	if r == nil || r.Getter == nil {
		return nil
	}
	tx, err := r.Getter.GetTransaction(ctx, txID)
	if err != nil {
		ev := log.Warn()
		if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) {
			ev = log.Debug()
		}
		ev.Err(err).Str("tx_id", txID).Msg("ledger.resolve")
		return nil
	}
	return tx.ConfirmationTime()
}

// Package ledger looks up transactions on a WhatsOnChain-compatible HTTP API.
//
// Every lookup is bounded: each attempt carries its own timeout, attempts are
// retried with exponential backoff up to a fixed count, and a client-side
// token bucket keeps the process under the upstream's request budget. A 404
// is final and never retried.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-powboard/internal/config"
)

var (
	// ErrNotFound is returned when the ledger does not know the transaction.
	ErrNotFound = errors.New("ledger: transaction not found")
	// ErrInvalidTxID is returned for ids that are not 64 hex characters.
	ErrInvalidTxID = errors.New("ledger: invalid transaction id")
)

var txIDRE = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// maxBody caps how much of a response is read.
const maxBody = 4 << 20

var ledgerReqs = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "powboard_ledger_requests_total",
		Help: "Ledger lookup attempts by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(ledgerReqs)
}

// Transaction is the subset of the ledger's transaction document we use.
type Transaction struct {
	TxID          string `json:"txid"`
	Hash          string `json:"hash"`
	BlockHash     string `json:"blockhash"`
	BlockHeight   int64  `json:"blockheight"`
	BlockTime     int64  `json:"blocktime"`
	Time          int64  `json:"time"`
	Confirmations int64  `json:"confirmations"`
	Size          int    `json:"size"`
}

// ConfirmationTime returns the confirmation time in UTC, or nil for an
// unconfirmed transaction.
func (t *Transaction) ConfirmationTime() *time.Time {
	sec := t.Time
	if sec <= 0 {
		sec = t.BlockTime
	}
	if sec <= 0 {
		return nil
	}
	at := time.Unix(sec, 0).UTC()
	return &at
}

// statusError is a non-2xx response.
type statusError struct {
	Code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ledger: unexpected status %d", e.Code)
}

// Client talks to the ledger API. The zero value is not usable; construct
// with New.
type Client struct {
	baseURL    string
	http       *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithInitialBackoff sets the first retry delay.
func WithInitialBackoff(d time.Duration) Option { return func(c *Client) { c.backoff = d } }

// New builds a Client from cfg.
func New(cfg config.LedgerConfig, opts ...Option) *Client {
	burst := int(cfg.RPS)
	if burst < 1 {
		burst = 1
	}
	c := &Client{
		baseURL:    cfg.BaseURL,
		http:       &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RPS), burst),
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		backoff:    250 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetTransaction fetches txID, retrying transient failures.
func (c *Client) GetTransaction(ctx context.Context, txID string) (*Transaction, error) {
	if !txIDRE.MatchString(txID) {
		return nil, ErrInvalidTxID
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.backoff
	b.MaxInterval = 4 * c.backoff

	op := func() (*Transaction, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		return c.fetch(ctx, txID)
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.maxRetries)+1),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Debug().Err(err).Str("tx_id", txID).Dur("retry_in", next).Msg("ledger.retry")
		}),
	)
}

func (c *Client) fetch(ctx context.Context, txID string) (*Transaction, error) {
	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodGet, c.baseURL+"/tx/hash/"+txID, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		ledgerReqs.WithLabelValues("transport_error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		ledgerReqs.WithLabelValues("not_found").Inc()
		return nil, backoff.Permanent(ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		ledgerReqs.WithLabelValues("throttled").Inc()
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			return nil, backoff.RetryAfter(secs)
		}
		return nil, &statusError{Code: resp.StatusCode}
	case resp.StatusCode >= 500:
		ledgerReqs.WithLabelValues("server_error").Inc()
		return nil, &statusError{Code: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		ledgerReqs.WithLabelValues("client_error").Inc()
		return nil, backoff.Permanent(&statusError{Code: resp.StatusCode})
	}

	var tx Transaction
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&tx); err != nil {
		ledgerReqs.WithLabelValues("decode_error").Inc()
		return nil, backoff.Permanent(fmt.Errorf("ledger: decode %s: %w", txID, err))
	}
	ledgerReqs.WithLabelValues("ok").Inc()
	return &tx, nil
}

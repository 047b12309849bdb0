// Package source delivers raw transaction records from outside the process:
// a polling crawler against a bitbus-compatible endpoint, and newline
// delimited JSON replay from files. Delivery is at-least-once; downstream
// writes are idempotent.
package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-powboard/internal/decode"
)

// maxLine bounds a single NDJSON record.
const maxLine = 16 << 20

// Handler consumes one raw transaction record.
type Handler func(ctx context.Context, raw decode.RawTransaction) error

// Stats summarizes one read.
type Stats struct {
	Records   int   // records handed to the handler without error
	Failed    int   // malformed lines and handler errors
	MaxHeight int64 // highest block height seen, 0 if none
	// Session identifies the crawler poll that produced these stats.
	Session string
}

// ReadNDJSON feeds every record of r to h. Malformed lines and handler
// errors are logged and skipped; reading stops at EOF, on a read error, or
// when ctx is done.
func ReadNDJSON(ctx context.Context, r io.Reader, h Handler) (Stats, error) {
	var st Stats
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)
	line := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var raw decode.RawTransaction
		if err := json.Unmarshal(b, &raw); err != nil {
			st.Failed++
			log.Warn().Err(err).Int("line", line).Msg("source.malformed_record")
			continue
		}
		if raw.Blk != nil && raw.Blk.I > st.MaxHeight {
			st.MaxHeight = raw.Blk.I
		}
		if err := h(ctx, raw); err != nil {
			st.Failed++
			log.Warn().Err(err).Int("line", line).Str("tx_id", raw.Tx.H).Msg("source.handle_failed")
			continue
		}
		st.Records++
	}
	return st, sc.Err()
}

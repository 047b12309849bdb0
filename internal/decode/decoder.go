// Package decode turns raw ledger transaction records into typed board
// events. Decoding is pure: no I/O, no logging. Callers receive the decoded
// events together with per-output rejections and decide how to report them.
//
// Output layout of the on-chain application protocol:
//
//	s2  protocol marker ("onchain")
//	s3  application id
//	s4  key (event discriminator)
//	s5  value (JSON, possibly JSON-encoded text)
//	s6  nonce       (optional)
//	s7  author      (optional)
//	s8  signature   (optional)
package decode

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"

	"github.com/tbourn/go-powboard/internal/domain"
)

// ProtocolMarker identifies outputs published with the on-chain app protocol.
const ProtocolMarker = "onchain"

// ErrMissingTxID rejects a whole record that carries no transaction hash.
var ErrMissingTxID = errors.New("transaction record has no tx.h")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Rejection describes one output that matched the application but could not
// be decoded. Sibling outputs are unaffected.
type Rejection struct {
	Ref domain.TxRef
	Err error
}

// Result is the outcome of decoding one transaction.
type Result struct {
	Events     []domain.DecodedEvent
	Rejections []Rejection
}

// Decoder extracts events for one board application and its boost proofs.
type Decoder struct {
	AppID      string
	BoostAppID string
	// Source labels where records come from ("bitbus", "file", ...).
	Source string
}

// Decode extracts zero or more events from raw. Outputs of other
// applications are dropped silently.
func (d *Decoder) Decode(raw RawTransaction) (Result, error) {
	var res Result
	txid := strings.TrimSpace(raw.Tx.H)
	if txid == "" {
		return res, ErrMissingTxID
	}

	var blockHeight int64
	var blockTime *time.Time
	if raw.Blk != nil {
		blockHeight = raw.Blk.I
		if raw.Blk.T > 0 {
			t := time.Unix(raw.Blk.T, 0).UTC()
			blockTime = &t
		}
	}

	for _, out := range raw.Out {
		if out.Str(2) != ProtocolMarker {
			continue
		}
		app := out.Str(3)
		if app == "" || (app != d.AppID && app != d.BoostAppID) {
			continue
		}
		ref := domain.TxRef{TxID: txid, TxIndex: out.Index}

		ev, err := d.decodeOutput(ref, app, out)
		if err != nil {
			res.Rejections = append(res.Rejections, Rejection{Ref: ref, Err: err})
			continue
		}
		ev.BlockHeight = blockHeight
		ev.BlockTime = blockTime
		res.Events = append(res.Events, ev)
	}
	return res, nil
}

func (d *Decoder) decodeOutput(ref domain.TxRef, app string, out Output) (domain.DecodedEvent, error) {
	ev := domain.DecodedEvent{
		Ref:       ref,
		AppID:     app,
		Key:       strings.TrimSpace(out.Str(4)),
		Nonce:     out.Str(6),
		Author:    out.Str(7),
		Signature: out.Str(8),
		Source:    d.Source,
	}

	raw, ok := out.Raw(5)
	if !ok {
		return ev, errors.New("missing value")
	}
	value, err := parseValue(raw)
	if err != nil {
		return ev, err
	}
	ev.Value = value
	ev.Kind = d.kindOf(app, ev.Key)

	switch ev.Kind {
	case domain.KindPost, domain.KindReply:
		p, err := decodePost(ev.Kind, value)
		if err != nil {
			return ev, err
		}
		if p.ReplyTxID != "" {
			ev.Kind = domain.KindReply
		}
		ev.Post = p
	case domain.KindProof:
		p, err := decodeProof(value)
		if err != nil {
			return ev, err
		}
		ev.Proof = p
	case domain.KindUnknown:
	}
	return ev, nil
}

// kindOf maps the (application, key) pair onto the closed kind set.
func (d *Decoder) kindOf(app, key string) domain.EventKind {
	switch {
	case app == d.BoostAppID && key == "proof":
		return domain.KindProof
	case app == d.AppID && key == "post":
		return domain.KindPost
	case app == d.AppID && (key == "reply" || key == "answer"):
		return domain.KindReply
	default:
		return domain.KindUnknown
	}
}

// parseValue accepts either embedded JSON or JSON carried as text.
func parseValue(raw json.RawMessage) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("value: %w", err)
		}
		s = strings.TrimSpace(s)
		if !json.Valid([]byte(s)) {
			return nil, fmt.Errorf("value is not valid JSON text: %.40q", s)
		}
		return json.RawMessage(s), nil
	}
	if !json.Valid(raw) {
		return nil, errors.New("value is not valid JSON")
	}
	return raw, nil
}

type postValue struct {
	Content   string `json:"content"`
	ReplyTx   string `json:"replyTx"`
	ReplyTxID string `json:"reply_tx_id"`
	TxID      string `json:"txid"`
}

func decodePost(kind domain.EventKind, value json.RawMessage) (*domain.PostPayload, error) {
	var v postValue
	if err := json.Unmarshal(value, &v); err != nil {
		return nil, fmt.Errorf("post value: %w", err)
	}
	content := norm.NFC.String(strings.TrimSpace(v.Content))
	if content == "" {
		return nil, errors.New("post content is empty")
	}
	target := firstNonEmpty(v.ReplyTx, v.ReplyTxID)
	if kind == domain.KindReply {
		target = firstNonEmpty(target, v.TxID)
		if target == "" {
			return nil, errors.New("reply has no target transaction")
		}
	}
	return &domain.PostPayload{Content: content, ReplyTxID: strings.TrimSpace(target)}, nil
}

func decodeProof(value json.RawMessage) (*domain.ProofPayload, error) {
	var p domain.ProofPayload
	if err := json.Unmarshal(value, &p); err != nil {
		return nil, fmt.Errorf("proof value: %w", err)
	}
	p.Content = strings.TrimSpace(p.Content)
	if err := validate.Struct(&p); err != nil {
		return nil, fmt.Errorf("proof value: %w", err)
	}
	return &p, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind discriminates how an event payload is interpreted. The set is
// closed: every switch over EventKind handles all four values.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindPost
	KindReply
	KindProof
)

// String returns the stored name of the kind.
func (k EventKind) String() string {
	switch k {
	case KindPost:
		return "post"
	case KindReply:
		return "reply"
	case KindProof:
		return "proof"
	case KindUnknown:
		return "unknown"
	}
	return "unknown"
}

// TxRef is the natural identity of an event: a transaction output.
type TxRef struct {
	TxID    string
	TxIndex int
}

func (r TxRef) String() string { return fmt.Sprintf("%s:%d", r.TxID, r.TxIndex) }

// PostPayload is the decoded value of a post or reply output.
type PostPayload struct {
	Content   string `json:"content"`
	ReplyTxID string `json:"replyTx,omitempty"`
}

// ProofPayload is the decoded value of a proof output. The proof-of-work
// itself was verified upstream; only its attributes are carried here.
type ProofPayload struct {
	Content    string   `json:"content"    validate:"required,max=64"`
	Difficulty float64  `json:"difficulty" validate:"gte=0"`
	JobTxID    string   `json:"job_tx_id,omitempty"`
	JobTxIndex *int     `json:"job_tx_index,omitempty"`
	Tag        string   `json:"tag,omitempty"`
	Value      *int64   `json:"value,omitempty"`
	Timestamp  *float64 `json:"timestamp,omitempty"`
}

// DecodedEvent is the typed result of decoding one transaction output.
// Exactly one of Post or Proof is set for the Post/Reply/Proof kinds; both
// are nil for KindUnknown.
type DecodedEvent struct {
	Ref         TxRef
	Kind        EventKind
	AppID       string
	Key         string
	Value       json.RawMessage
	Nonce       string
	Author      string
	Signature   string
	Source      string
	BlockHeight int64
	BlockTime   *time.Time

	Post  *PostPayload
	Proof *ProofPayload
}

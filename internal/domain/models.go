// Package domain defines the persistence models for ledger events, posts,
// and proof-of-work attestations. These types are mapped with GORM and form
// the core data layer of the message board.
package domain

import (
	"time"
)

// Event is one application output extracted from a ledger transaction and
// persisted verbatim. It is the audit trail of everything the ingester saw.
//
// Fields:
//   - ID: autoincrement surrogate key (insertion order).
//   - TxID / TxIndex: natural identity, unique together.
//   - AppID: application namespace the output was published under.
//   - Kind: decoded event kind ("post", "reply", "proof", "unknown").
//   - Key: raw discriminator as published on chain.
//   - Value: structured payload as JSON text.
//   - Nonce / Author / Signature: optional signing envelope.
//   - Source: where the record came from ("bitbus", "file", ...).
//   - ObservedAt: when this process first stored the event.
type Event struct {
	ID         uint      `json:"id"          gorm:"primaryKey;autoIncrement"`
	TxID       string    `json:"tx_id"       gorm:"type:varchar(64);not null;uniqueIndex:ux_events_tx,priority:1"`
	TxIndex    int       `json:"tx_index"    gorm:"not null;uniqueIndex:ux_events_tx,priority:2"`
	AppID      string    `json:"app_id"      gorm:"type:varchar(64);not null;index"`
	Kind       string    `json:"kind"        gorm:"type:varchar(16);not null;index"`
	Key        string    `json:"key"         gorm:"type:varchar(64);not null"`
	Value      string    `json:"value"       gorm:"type:text"`
	Nonce      *string   `json:"nonce,omitempty"`
	Author     *string   `json:"author,omitempty"`
	Signature  *string   `json:"signature,omitempty"`
	Source     string    `json:"source"      gorm:"type:varchar(32)"`
	ObservedAt time.Time `json:"observed_at" gorm:"autoCreateTime"`
}

// TableName returns the database table name for Event.
func (Event) TableName() string { return "events" }

// Post is a content item and the unit of ranking. A reply is a Post whose
// ReplyTxID references another Post's TxID; the reference is not enforced
// because the parent may not have been ingested yet.
//
// TxID alone is unique as well: a transaction carries at most one post.
// CreatedAt is the confirmation time of the carrying transaction and stays
// nil until the ledger lookup resolves it. Difficulty is never stored: it is
// filled by aggregation queries for a given window.
type Post struct {
	ID         uint       `json:"id"                    gorm:"primaryKey;autoIncrement"`
	TxID       string     `json:"tx_id"                 gorm:"type:varchar(64);not null;uniqueIndex:ux_posts_tx,priority:1;uniqueIndex:ux_posts_tx_id"`
	TxIndex    int        `json:"tx_index"              gorm:"not null;uniqueIndex:ux_posts_tx,priority:2"`
	CreatedAt  *time.Time `json:"created_at"            gorm:"column:created_at;autoCreateTime:false"`
	Content    string     `json:"content"               gorm:"type:text;not null"`
	ReplyTxID  *string    `json:"reply_tx_id,omitempty" gorm:"type:varchar(64);index"`
	ReplyCount int        `json:"reply_count"           gorm:"not null;default:0"`
	Author     *string    `json:"author,omitempty"      gorm:"type:varchar(255)"`
	Difficulty float64    `json:"difficulty"            gorm:"->;-:migration"`
}

// TableName returns the database table name for Post.
func (Post) TableName() string { return "posts" }

// Proof is a proof-of-work attestation boosting the post identified by
// Content. Proofs are immutable once stored; many proofs may reference the
// same post.
type Proof struct {
	ID         uint       `json:"id"                     gorm:"primaryKey;autoIncrement"`
	TxID       string     `json:"tx_id"                  gorm:"type:varchar(64);not null;uniqueIndex:ux_proofs_tx,priority:1"`
	TxIndex    int        `json:"tx_index"               gorm:"not null;uniqueIndex:ux_proofs_tx,priority:2"`
	Content    string     `json:"content"                gorm:"type:varchar(64);not null;index:idx_proofs_content_ts,priority:1"`
	Difficulty float64    `json:"difficulty"             gorm:"not null;check:difficulty >= 0"`
	Timestamp  *time.Time `json:"timestamp"              gorm:"index:idx_proofs_content_ts,priority:2"`
	JobTxID    *string    `json:"job_tx_id,omitempty"    gorm:"type:varchar(64)"`
	JobTxIndex *int       `json:"job_tx_index,omitempty"`
	Tag        *string    `json:"tag,omitempty"          gorm:"type:varchar(255)"`
	Value      *int64     `json:"value,omitempty"`
}

// TableName returns the database table name for Proof.
func (Proof) TableName() string { return "proofs" }

// Checkpoint records the highest block height a stream source has delivered,
// so a restarted crawler resumes instead of replaying from the start height.
type Checkpoint struct {
	Stream      string    `gorm:"type:varchar(128);primaryKey"`
	BlockHeight int64     `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the database table name for Checkpoint.
func (Checkpoint) TableName() string { return "checkpoints" }

package decode

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// RawTransaction is one transaction record as delivered by the stream
// source. Only the fields the board reads are mapped.
type RawTransaction struct {
	Tx struct {
		H string `json:"h"`
	} `json:"tx"`
	Blk *struct {
		I int64 `json:"i"`
		T int64 `json:"t"`
	} `json:"blk,omitempty"`
	Timestamp int64    `json:"timestamp,omitempty"`
	Out       []Output `json:"out"`
}

// Output is one addressable field-set of a transaction. Push-data fields
// (s0, s1, ...) are kept undecoded so a value may be either a JSON string
// or an embedded structure.
type Output struct {
	Index  int
	Fields map[string]json.RawMessage
}

// UnmarshalJSON splits the output index from its positional fields.
func (o *Output) UnmarshalJSON(b []byte) error {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	if raw, ok := fields["i"]; ok {
		if err := json.Unmarshal(raw, &o.Index); err != nil {
			return err
		}
		delete(fields, "i")
	}
	o.Fields = fields
	return nil
}

// MarshalJSON is the inverse of UnmarshalJSON.
func (o Output) MarshalJSON() ([]byte, error) {
	m := make(map[string]json.RawMessage, len(o.Fields)+1)
	for k, v := range o.Fields {
		m[k] = v
	}
	m["i"] = json.RawMessage(strconv.Itoa(o.Index))
	return json.Marshal(m)
}

// Str returns the field at position n ("s<n>") as text. Non-string JSON
// values are returned in their raw form; missing fields yield "".
func (o Output) Str(n int) string {
	raw, ok := o.Fields["s"+strconv.Itoa(n)]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// Raw returns the undecoded field at position n and whether it exists.
func (o Output) Raw(n int) (json.RawMessage, bool) {
	raw, ok := o.Fields["s"+strconv.Itoa(n)]
	if !ok || len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil, false
	}
	return raw, true
}

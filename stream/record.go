package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Record is the persisted form of one subscription.
type Record struct {
	Type     string       `json:"type"`
	Name     string       `json:"name"`
	ID       FlexID       `json:"id,omitempty"`
	Channels []FlexID     `json:"channels"`
	Messages []MessageRec `json:"messages"`
}

// MessageRec is a persisted reference to a posted alert.
type MessageRec struct {
	Channel FlexID `json:"channel"`
	Message FlexID `json:"message"`
}

// FlexID is an identifier stored either as a JSON string or a JSON number.
// Older blobs wrote snowflakes as numbers; new ones always write strings.
type FlexID string

func (f FlexID) String() string { return string(f) }

func (f FlexID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(f))
}

func (f *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	if _, err := strconv.ParseUint(n.String(), 10, 64); err != nil {
		return fmt.Errorf("id %s is not an unsigned integer", n)
	}
	*f = FlexID(n.String())
	return nil
}

// Encode serializes records as the stored JSON array.
func Encode(recs []Record) ([]byte, error) {
	if recs == nil {
		recs = []Record{}
	}
	return json.Marshal(recs)
}

// Parse reads a stored JSON array. An empty blob is an empty list.
func Parse(b []byte) ([]Record, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}
	var recs []Record
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, fmt.Errorf("parse stream records: %w", err)
	}
	return recs, nil
}

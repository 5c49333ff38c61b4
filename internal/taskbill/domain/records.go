// Package domain models the compute-service event stream as a tagged
// sum, so terminal handling is total instead of stringly dispatched.
package domain

import (
	"encoding/json"
	"fmt"
)

// Record is one event on the compute-service stream.
type Record interface {
	recordType() string
	// Terminal reports whether no further records may follow.
	Terminal() bool
}

// Progress is informational; the coordinator suppresses it.
type Progress struct {
	Message string `json:"message"`
}

// BotOutput is a payload forwarded verbatim to the chat layer.
type BotOutput struct {
	OutputType string `json:"output_type"`
	Content    string `json:"content"`
	Filename   string `json:"filename,omitempty"`
	Caption    string `json:"caption,omitempty"`
	Format     string `json:"format,omitempty"`
}

// TrackCost is the trailer announcing the authoritative task cost.
type TrackCost struct {
	TotalCost   float64 `json:"total_cost"`
	Currency    string  `json:"currency"`
	APICalls    int     `json:"api_calls"`
	TotalTokens int     `json:"total_tokens"`
}

// Complete is terminal success ("complete" or "done" on the wire).
type Complete struct {
	TaskID string `json:"task_id"`
}

// Failed is terminal failure; Message is user-facing.
type Failed struct {
	Message string `json:"message"`
}

// Cancelled is terminal on caller request.
type Cancelled struct {
	TaskID string `json:"task_id,omitempty"`
}

func (Progress) recordType() string  { return "progress" }
func (BotOutput) recordType() string { return "bot_output" }
func (TrackCost) recordType() string { return "track_cost" }
func (Complete) recordType() string  { return "complete" }
func (Failed) recordType() string    { return "error" }
func (Cancelled) recordType() string { return "cancelled" }

func (Progress) Terminal() bool  { return false }
func (BotOutput) Terminal() bool { return false }
func (TrackCost) Terminal() bool { return false }
func (Complete) Terminal() bool  { return true }
func (Failed) Terminal() bool    { return true }
func (Cancelled) Terminal() bool { return true }

// Type returns the wire name of a record.
func Type(r Record) string { return r.recordType() }

type envelope struct {
	Type string `json:"type"`
}

// ParseRecord decodes one line-delimited JSON record.
func ParseRecord(data []byte) (Record, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode stream record: %w", err)
	}
	switch env.Type {
	case "progress":
		var r Progress
		err := json.Unmarshal(data, &r)
		return r, err
	case "bot_output":
		var r BotOutput
		err := json.Unmarshal(data, &r)
		return r, err
	case "track_cost":
		var r TrackCost
		err := json.Unmarshal(data, &r)
		return r, err
	case "complete", "done":
		var r Complete
		err := json.Unmarshal(data, &r)
		return r, err
	case "error":
		var r Failed
		err := json.Unmarshal(data, &r)
		return r, err
	case "cancelled":
		var r Cancelled
		err := json.Unmarshal(data, &r)
		return r, err
	default:
		return nil, fmt.Errorf("unknown stream record type %q", env.Type)
	}
}

// EncodeRecord renders a record as an SSE data line. Concrete records
// do not carry their own type field, so it is re-tagged here.
func EncodeRecord(r Record) ([]byte, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, err
	}
	m["type"] = r.recordType()
	out, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append([]byte("data: "), out...), nil
}

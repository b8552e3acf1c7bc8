package models

import (
	"time"

	"github.com/navid-fn/tradesniper/internal/jsonvalue"
)

// AttemptState is the purchase attempt state machine.
type AttemptState int

const (
	StateIdle AttemptState = iota
	StateAwaitingGrant
	StateFetching
	StateExtracting
	StateWhispering
	StateSucceeded
	StateFailed
)

func (s AttemptState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingGrant:
		return "awaiting_grant"
	case StateFetching:
		return "fetching"
	case StateExtracting:
		return "extracting"
	case StateWhispering:
		return "whispering"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText lets states appear by name in JSON.
func (s AttemptState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// AutobuyState is the click automation session state.
type AutobuyState int

const (
	AutobuyIdle AutobuyState = iota
	AutobuyActive
	AutobuyPaused
)

func (s AutobuyState) String() string {
	switch s {
	case AutobuyIdle:
		return "idle"
	case AutobuyActive:
		return "active"
	case AutobuyPaused:
		return "paused"
	default:
		return "unknown"
	}
}

func (s AutobuyState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Event is one inbound live-search message.
type Event struct {
	// Source identifies where the event came from, usually the search URL.
	Source string

	Payload    jsonvalue.Value
	ReceivedAt time.Time
}

// AttemptRecord summarises one finished purchase attempt.
type AttemptRecord struct {
	ID         string       `json:"id"`
	TradeID    string       `json:"trade_id"`
	Key        string       `json:"key"`
	Source     string       `json:"source"`
	State      AttemptState `json:"state"`
	Reason     string       `json:"reason,omitempty"`
	Status     int          `json:"status,omitempty"`
	Error      string       `json:"error,omitempty"`
	Item       string       `json:"item,omitempty"`
	Account    string       `json:"account,omitempty"`
	Stash      *Stash       `json:"stash,omitempty"`
	Price      *Price       `json:"price,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// Succeeded reports whether the attempt ended with a sent whisper.
func (r AttemptRecord) Succeeded() bool {
	return r.State == StateSucceeded
}

// Duration is the wall time the attempt took.
func (r AttemptRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

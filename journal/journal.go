// Package journal persists what happened on the bridge: one record per
// command round trip and one per accepted order, to CSV or SQLite.
package journal

import "time"

// RequestRecord is the lifecycle of one bridge command: how many attempts it
// took, how long it waited, and how it ended. Failure and latency events for
// the upstream observability layer come from here.
type RequestRecord struct {
	RequestID string // ID of the final attempt
	Command   string
	Outcome   string // resolved | timed_out | rejected | failed
	Attempts  int
	Latency   time.Duration
	Error     string
	Time      time.Time
}

// OrderRecord is written when the terminal accepts an order.
type OrderRecord struct {
	Ticket     string
	Symbol     string
	Side       string
	Volume     float64
	FillPrice  float64
	StopLoss   float64
	TakeProfit float64
	Time       time.Time
}

// Request outcomes.
const (
	OutcomeResolved = "resolved"
	OutcomeTimedOut = "timed_out"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

type Journal interface {
	RecordRequest(RequestRecord) error
	RecordOrder(OrderRecord) error
	Close() error
}

// Nop discards all records. Used when journaling is disabled.
type Nop struct{}

func (Nop) RecordRequest(RequestRecord) error { return nil }
func (Nop) RecordOrder(OrderRecord) error     { return nil }
func (Nop) Close() error                      { return nil }

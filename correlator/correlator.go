// Package correlator owns the in-flight request table: it pairs request IDs
// with terminal responses, enforces per-request deadlines, and applies the
// retry policy. Submitting callers block here until the watcher delivers a
// matching response or the deadline expires.
package correlator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rustyeddy/mt5bridge/id"
	"github.com/rustyeddy/mt5bridge/journal"
	"github.com/rustyeddy/mt5bridge/transport"
	"github.com/rustyeddy/mt5bridge/wire"
)

// ErrTimedOut marks a single attempt that saw no response before its
// deadline. It stays internal to the retry loop; callers see
// *UnavailableError once all attempts are spent.
var ErrTimedOut = errors.New("request timed out")

// UnavailableError means every attempt timed out: the terminal peer is not
// reading requests or not producing responses. The caller decides whether to
// alert or halt trading.
type UnavailableError struct {
	Kind     wire.Kind
	Attempts int
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("bridge unavailable: %s got no response after %d attempts", e.Kind, e.Attempts)
}

// Options set the retry policy. Timeout is the per-attempt deadline;
// MaxRetries attempts follow the first, each under a fresh ID, separated by
// the fixed Backoff interval.
type Options struct {
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

// Result carries a resolved response payload back to the command layer.
type Result struct {
	Payload  []byte
	Request  wire.Request // the attempt that resolved
	Attempts int
	Latency  time.Duration
}

type outcome struct {
	payload []byte
	err     error
}

type pending struct {
	req      wire.Request
	deadline time.Time
	done     chan outcome // buffered; exactly one of Resolve/Expire sends
}

// Correlator maps request IDs to pending outcomes. The table is mutated from
// submitting goroutines and from the watcher, so every access holds mu.
type Correlator struct {
	mu      sync.Mutex
	table   map[string]*pending
	dir     *transport.Dir
	jr      journal.Journal
	log     *slog.Logger
	timeout time.Duration
	retries int
	backoff time.Duration
}

func New(dir *transport.Dir, jr journal.Journal, log *slog.Logger, opts Options) *Correlator {
	if jr == nil {
		jr = journal.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Correlator{
		table:   make(map[string]*pending),
		dir:     dir,
		jr:      jr,
		log:     log,
		timeout: opts.Timeout,
		retries: opts.MaxRetries,
		backoff: opts.Backoff,
	}
}

// Submit writes the command to the transport and blocks until a response
// arrives, the retry budget is spent, or ctx is cancelled. Each attempt gets
// a fresh ID: a timed-out ID is never reissued, so a late response for it
// can only ever match its own dead entry, not the retry's.
func (c *Correlator) Submit(ctx context.Context, kind wire.Kind, params []string) (Result, error) {
	start := time.Now()
	attempts := c.retries + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		req := wire.Request{ID: id.New(), Kind: kind, Params: params, Created: time.Now()}
		payload, err := wire.EncodeRequest(req)
		if err != nil {
			return Result{}, err
		}
		if err := c.dir.WriteRequest(req.ID, payload); err != nil {
			c.journal(req, journal.OutcomeFailed, attempt, start, err)
			return Result{}, err
		}

		out, err := c.await(ctx, req)
		switch {
		case err == nil && out.err == nil:
			res := Result{
				Payload:  out.payload,
				Request:  req,
				Attempts: attempt,
				Latency:  time.Since(start),
			}
			c.journal(req, journal.OutcomeResolved, attempt, start, nil)
			return res, nil

		case err != nil: // ctx cancelled
			c.abandon(req.ID)
			c.journal(req, journal.OutcomeFailed, attempt, start, err)
			return Result{}, err

		default: // attempt timed out
			// The peer may or may not have consumed the file; remove it if
			// it is still sitting there so it cannot be acted on twice.
			_ = c.dir.DeleteRequest(req.ID)
			if attempt < attempts {
				c.log.Warn("request timed out, retrying",
					"id", req.ID, "command", kind.String(),
					"attempt", attempt, "of", attempts)
				if err := sleep(ctx, c.backoff); err != nil {
					c.journal(req, journal.OutcomeFailed, attempt, start, err)
					return Result{}, err
				}
				continue
			}
			c.journal(req, journal.OutcomeTimedOut, attempt, start, ErrTimedOut)
			c.log.Error("request exhausted retries",
				"id", req.ID, "command", kind.String(), "attempts", attempts)
			return Result{}, &UnavailableError{Kind: kind, Attempts: attempts}
		}
	}
	// attempts >= 1 always, loop returns from inside
	return Result{}, &UnavailableError{Kind: kind, Attempts: attempts}
}

// await registers the pending entry and waits for its outcome. The timer is
// a backstop so callers are released even if the watcher stalls; the watcher
// normally expires entries first via ExpireOverdue.
func (c *Correlator) await(ctx context.Context, req wire.Request) (outcome, error) {
	p := &pending{
		req:      req,
		deadline: time.Now().Add(c.timeout),
		done:     make(chan outcome, 1),
	}
	c.mu.Lock()
	c.table[req.ID] = p
	c.mu.Unlock()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case out := <-p.done:
		return out, nil
	case <-timer.C:
		c.Expire(req.ID)
		return <-p.done, nil
	case <-ctx.Done():
		return outcome{}, ctx.Err()
	}
}

// Resolve delivers a response payload to its pending entry. It returns false
// for orphans: responses whose entry already expired or never existed (a
// leftover from a crashed run, or a late reply after the caller gave up).
func (c *Correlator) Resolve(rid string, payload []byte) bool {
	c.mu.Lock()
	p, ok := c.table[rid]
	if ok {
		delete(c.table, rid)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	p.done <- outcome{payload: payload}
	return true
}

// Expire times out one pending entry. Safe to call after Resolve; whichever
// runs first wins and the other is a no-op.
func (c *Correlator) Expire(rid string) {
	c.mu.Lock()
	p, ok := c.table[rid]
	if ok {
		delete(c.table, rid)
	}
	c.mu.Unlock()
	if ok {
		p.done <- outcome{err: ErrTimedOut}
	}
}

// ExpireOverdue expires every entry whose deadline has passed and returns
// their IDs. Called by the watcher on each polling pass.
func (c *Correlator) ExpireOverdue(now time.Time) []string {
	c.mu.Lock()
	var due []string
	for rid, p := range c.table {
		if now.After(p.deadline) {
			due = append(due, rid)
		}
	}
	c.mu.Unlock()

	for _, rid := range due {
		c.Expire(rid)
	}
	return due
}

// InFlight reports the number of pending entries.
func (c *Correlator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.table)
}

// abandon drops an entry without delivering an outcome; the caller has
// already stopped waiting. The request file goes too, best effort.
func (c *Correlator) abandon(rid string) {
	c.mu.Lock()
	delete(c.table, rid)
	c.mu.Unlock()
	_ = c.dir.DeleteRequest(rid)
}

func (c *Correlator) journal(req wire.Request, outcome string, attempts int, start time.Time, cause error) {
	rec := journal.RequestRecord{
		RequestID: req.ID,
		Command:   req.Kind.String(),
		Outcome:   outcome,
		Attempts:  attempts,
		Latency:   time.Since(start),
		Time:      time.Now(),
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	if err := c.jr.RecordRequest(rec); err != nil {
		c.log.Warn("journal write failed", "id", req.ID, "err", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

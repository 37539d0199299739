// Package simpeer is a stand-in terminal: it consumes request files from a
// bridge directory and produces response files, backed by an in-memory
// account. It exists for end-to-end tests and for running the CLI without a
// live terminal, and doubles as a reference for what a terminal-side peer
// must implement.
package simpeer

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rustyeddy/mt5bridge/market"
)

// Account seeds the simulated terminal account.
type Account struct {
	Balance  float64
	Currency string
}

// Quote is a settable bid/ask pair.
type Quote struct {
	Bid  float64
	Ask  float64
	Time time.Time
}

type trade struct {
	ticket     string
	symbol     string
	direction  string // BUY or SELL
	volume     float64
	openPrice  float64
	stopLoss   float64
	takeProfit float64
	openTime   time.Time
}

type closedTrade struct {
	trade
	closePrice float64
	profit     float64
	closeTime  time.Time
}

// marginPerLot is the simulated margin requirement, flat per lot. Enough to
// make "insufficient margin" rejections reachable in tests.
const marginPerLot = 1000.0

// pnl values a price move in account currency.
func pnl(meta market.InstrumentMeta, direction string, volume, entry, exit float64) float64 {
	move := (exit - entry) / meta.PipSize
	if direction == "SELL" {
		move = -move
	}
	return move * meta.PipValue * volume
}

// SetQuote publishes a quote the peer will answer GET_PRICE with.
func (p *Peer) SetQuote(symbol string, bid, ask float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes[market.Normalize(symbol)] = Quote{Bid: bid, Ask: ask, Time: time.Now()}
}

// OpenVolume reports the open volume on a ticket, 0 if closed or unknown.
func (p *Peer) OpenVolume(ticket string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.trades[ticket]; ok {
		return t.volume
	}
	return 0
}

// equityLocked is balance plus unrealized P&L over all open trades, valued
// at the close-side price (longs on bid, shorts on ask).
func (p *Peer) equityLocked() float64 {
	equity := p.balance
	for _, t := range p.trades {
		q, ok := p.quotes[t.symbol]
		if !ok {
			continue
		}
		meta, err := p.instruments.Lookup(t.symbol)
		if err != nil {
			continue
		}
		exit := q.Bid
		if t.direction == "SELL" {
			exit = q.Ask
		}
		equity += pnl(meta, t.direction, t.volume, t.openPrice, exit)
	}
	return equity
}

func (p *Peer) marginLocked() float64 {
	var used float64
	for _, t := range p.trades {
		used += t.volume * marginPerLot
	}
	return used
}

// closeLocked closes volume lots of a trade at the market and returns the
// realized profit. Caller holds the lock and has validated the ticket.
func (p *Peer) closeLocked(t *trade, volume float64, now time.Time) (float64, error) {
	q, ok := p.quotes[t.symbol]
	if !ok {
		return 0, fmt.Errorf("no quote for %s", t.symbol)
	}
	meta, err := p.instruments.Lookup(t.symbol)
	if err != nil {
		return 0, err
	}
	exit := q.Bid
	if t.direction == "SELL" {
		exit = q.Ask
	}
	if volume <= 0 || volume > t.volume {
		volume = t.volume
	}

	profit := pnl(meta, t.direction, volume, t.openPrice, exit)
	p.balance += profit

	closed := closedTrade{trade: *t, closePrice: exit, profit: profit, closeTime: now}
	closed.volume = volume
	p.history = append(p.history, closed)

	if volume >= t.volume {
		delete(p.trades, t.ticket)
	} else {
		t.volume -= volume
	}
	return profit, nil
}

func (p *Peer) nextTicketLocked() string {
	p.ticketSeq++
	return strconv.Itoa(p.ticketSeq)
}

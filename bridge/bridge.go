// Package bridge is the typed command surface over the file protocol. One
// method per command: it encodes arguments, hands the request to the
// correlator, and decodes the terminal's reply into a typed result. Calls
// block until resolved, rejected, or the retry budget is spent.
//
// Command parameter order on the wire:
//
//	STATUS
//	GET_PRICE      <symbol>
//	GET_ACCOUNT
//	GET_POSITIONS  [symbol]
//	PLACE_ORDER    <symbol> <BUY|SELL> <volume> <sl|0> <tp|0>
//	MODIFY_ORDER   <ticket> <sl|-> <tp|->
//	CLOSE_POSITION <ticket> [volume]
//	CALC_SIZE      <symbol> <stop_distance_pips> <risk_percent>
//	GET_CANDLES    <symbol> <timeframe> <count>
//	CLOSE_ALL
//	GET_HISTORY    <days> [symbol]
//	GET_PERFORMANCE <days> [symbol]
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/rustyeddy/mt5bridge/config"
	"github.com/rustyeddy/mt5bridge/correlator"
	"github.com/rustyeddy/mt5bridge/journal"
	"github.com/rustyeddy/mt5bridge/market"
	"github.com/rustyeddy/mt5bridge/transport"
	"github.com/rustyeddy/mt5bridge/watcher"
	"github.com/rustyeddy/mt5bridge/wire"
)

// Bridge owns one connection to a terminal's bridge directory. Callers hold
// and pass this handle explicitly; there is no package-level instance.
type Bridge struct {
	dir         *transport.Dir
	co          *correlator.Correlator
	w           *watcher.Watcher
	jr          journal.Journal
	log         *slog.Logger
	instruments market.Table
}

// New wires transport, correlator and watcher from config. Call Start before
// issuing commands and Close when done.
func New(cfg *config.Config, log *slog.Logger) (*Bridge, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	poll, timeout, backoff, maxAge, sweep, err := cfg.Durations()
	if err != nil {
		return nil, err
	}

	dir, err := transport.NewDir(cfg.Bridge.Dir, log)
	if err != nil {
		return nil, err
	}

	var jr journal.Journal
	switch cfg.Journal.Type {
	case "csv":
		jr, err = journal.NewCSV(cfg.Journal.RequestsFile, cfg.Journal.OrdersFile)
	case "sqlite":
		jr, err = journal.NewSQLite(cfg.Journal.DBPath)
	default:
		jr = journal.Nop{}
	}
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	co := correlator.New(dir, jr, log, correlator.Options{
		Timeout:    timeout,
		MaxRetries: cfg.Bridge.MaxRetries,
		Backoff:    backoff,
	})
	w := watcher.New(dir, co, log, watcher.Options{
		Interval:      poll,
		SweepInterval: sweep,
		MaxAge:        maxAge,
		Archive:       cfg.Retention.Archive,
		Notify:        cfg.Bridge.Notify,
	})

	instruments := market.DefaultTable()
	for sym, lim := range cfg.Overrides {
		canon := market.Normalize(sym)
		meta := instruments[canon]
		meta.Symbol = canon
		if lim.PipSize > 0 {
			meta.PipSize = lim.PipSize
		}
		if lim.PipValue > 0 {
			meta.PipValue = lim.PipValue
		}
		if lim.LotStep > 0 {
			meta.LotStep = lim.LotStep
		}
		if lim.MinVolume > 0 {
			meta.MinVolume = lim.MinVolume
		}
		if lim.MaxVolume > 0 {
			meta.MaxVolume = lim.MaxVolume
		}
		instruments[canon] = meta
	}

	return &Bridge{
		dir:         dir,
		co:          co,
		w:           w,
		jr:          jr,
		log:         log,
		instruments: instruments,
	}, nil
}

// Start launches the watcher loop (including the startup sweep).
func (b *Bridge) Start() error {
	return b.w.Start()
}

// Close stops the watcher and releases the journal.
func (b *Bridge) Close() error {
	b.w.Stop()
	return b.jr.Close()
}

// Instruments returns the broker constants in effect.
func (b *Bridge) Instruments() market.Table {
	return b.instruments
}

// call runs one command round trip and returns the decoded response, with
// terminal rejections mapped onto the typed error taxonomy.
func (b *Bridge) call(ctx context.Context, kind wire.Kind, ticketHint, symbolHint string, params ...string) (wire.Response, error) {
	res, err := b.co.Submit(ctx, kind, params)
	if err != nil {
		return wire.Response{}, err
	}
	resp, err := wire.DecodeResponse(res.Payload)
	if err != nil {
		return wire.Response{}, err
	}
	if resp.ID != res.Request.ID {
		return wire.Response{}, &wire.FormatError{
			Reason: fmt.Sprintf("response file %s carries ID %s", res.Request.ID, resp.ID),
		}
	}
	if resp.Status == wire.StatusError {
		derr := domainError(ticketHint, symbolHint, resp.Code, resp.Message)
		rec := journal.RequestRecord{
			RequestID: res.Request.ID,
			Command:   kind.String(),
			Outcome:   journal.OutcomeRejected,
			Attempts:  res.Attempts,
			Latency:   res.Latency,
			Error:     derr.Error(),
			Time:      time.Now(),
		}
		if jerr := b.jr.RecordRequest(rec); jerr != nil {
			b.log.Warn("journal write failed", "id", res.Request.ID, "err", jerr)
		}
		return wire.Response{}, derr
	}
	return resp, nil
}

// Status checks connectivity: true when the terminal answers within the
// timeout, an error when it does not.
func (b *Bridge) Status(ctx context.Context) (bool, error) {
	resp, err := b.call(ctx, wire.KindStatus, "", "")
	if err != nil {
		return false, err
	}
	v, err := resp.Str("CONNECTED")
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

// GetPrice returns the current bid/ask for a symbol.
func (b *Bridge) GetPrice(ctx context.Context, symbol string) (Quote, error) {
	canon := market.Normalize(symbol)
	resp, err := b.call(ctx, wire.KindGetPrice, "", canon, canon)
	if err != nil {
		return Quote{}, err
	}
	bid, err := resp.Float("BID")
	if err != nil {
		return Quote{}, err
	}
	ask, err := resp.Float("ASK")
	if err != nil {
		return Quote{}, err
	}
	q := Quote{Symbol: canon, Bid: bid, Ask: ask, Time: time.Now()}
	if ts, err := resp.Int("TIME"); err == nil {
		q.Time = time.Unix(ts, 0)
	}
	return q, nil
}

// GetAccountInfo returns the account read model.
func (b *Bridge) GetAccountInfo(ctx context.Context) (AccountSnapshot, error) {
	resp, err := b.call(ctx, wire.KindGetAccount, "", "")
	if err != nil {
		return AccountSnapshot{}, err
	}
	var snap AccountSnapshot
	if snap.Balance, err = resp.Float("BALANCE"); err != nil {
		return AccountSnapshot{}, err
	}
	if snap.Equity, err = resp.Float("EQUITY"); err != nil {
		return AccountSnapshot{}, err
	}
	if snap.Margin, err = resp.Float("MARGIN"); err != nil {
		return AccountSnapshot{}, err
	}
	if snap.FreeMargin, err = resp.Float("FREE_MARGIN"); err != nil {
		return AccountSnapshot{}, err
	}
	if snap.Currency, err = resp.Str("CURRENCY"); err != nil {
		return AccountSnapshot{}, err
	}
	return snap, nil
}

// GetPositions lists open positions, optionally filtered by symbol.
func (b *Bridge) GetPositions(ctx context.Context, symbol string) ([]Position, error) {
	canon := ""
	var params []string
	if symbol != "" {
		canon = market.Normalize(symbol)
		params = append(params, canon)
	}
	resp, err := b.call(ctx, wire.KindGetPositions, "", canon, params...)
	if err != nil {
		return nil, err
	}
	if resp.ListKey != "POSITIONS" {
		return nil, &wire.FormatError{Reason: "response " + resp.ID + ": missing POSITIONS payload"}
	}
	var positions []Position
	if err := json.Unmarshal(resp.List, &positions); err != nil {
		return nil, &wire.FormatError{Reason: "response " + resp.ID + ": bad POSITIONS payload: " + err.Error()}
	}
	return positions, nil
}

// PlaceOrder submits a market order and returns the broker ticket.
func (b *Bridge) PlaceOrder(ctx context.Context, req OrderRequest) (OrderTicket, error) {
	if req.Side != Buy && req.Side != Sell {
		return OrderTicket{}, fmt.Errorf("invalid side %q", req.Side)
	}
	if req.Volume <= 0 {
		return OrderTicket{}, fmt.Errorf("volume must be positive, got %v", req.Volume)
	}
	canon := market.Normalize(req.Symbol)

	resp, err := b.call(ctx, wire.KindPlaceOrder, "", canon,
		canon, string(req.Side), fnum(req.Volume), fnum(req.StopLoss), fnum(req.TakeProfit))
	if err != nil {
		return OrderTicket{}, err
	}
	ticket, err := resp.Str("TICKET")
	if err != nil {
		return OrderTicket{}, err
	}
	price, err := resp.Float("PRICE")
	if err != nil {
		return OrderTicket{}, err
	}

	rec := journal.OrderRecord{
		Ticket:     ticket,
		Symbol:     canon,
		Side:       string(req.Side),
		Volume:     req.Volume,
		FillPrice:  price,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		Time:       time.Now(),
	}
	if err := b.jr.RecordOrder(rec); err != nil {
		b.log.Warn("journal write failed", "ticket", ticket, "err", err)
	}
	return OrderTicket{Ticket: ticket, FillPrice: price}, nil
}

// ModifyPosition updates the stop-loss and/or take-profit of an open
// position. Nil leaves the corresponding level unchanged.
func (b *Bridge) ModifyPosition(ctx context.Context, ticket string, stopLoss, takeProfit *float64) error {
	sl, tp := "-", "-"
	if stopLoss != nil {
		sl = fnum(*stopLoss)
	}
	if takeProfit != nil {
		tp = fnum(*takeProfit)
	}
	_, err := b.call(ctx, wire.KindModifyOrder, ticket, "", ticket, sl, tp)
	return err
}

// ClosePosition closes a position, fully or — when volume is non-nil and
// below the open volume — partially. Returns the realized P&L.
func (b *Bridge) ClosePosition(ctx context.Context, ticket string, volume *float64) (CloseResult, error) {
	params := []string{ticket}
	if volume != nil {
		params = append(params, fnum(*volume))
	}
	resp, err := b.call(ctx, wire.KindClosePosition, ticket, "", params...)
	if err != nil {
		return CloseResult{}, err
	}
	var res CloseResult
	if res.Ticket, err = resp.Str("TICKET"); err != nil {
		return CloseResult{}, err
	}
	if res.ClosedVolume, err = resp.Float("CLOSED_VOLUME"); err != nil {
		return CloseResult{}, err
	}
	if res.Profit, err = resp.Float("PROFIT"); err != nil {
		return CloseResult{}, err
	}
	return res, nil
}

// CalculatePositionSize asks the terminal to size a position risking
// riskPercent of equity over a stop of stopDistance pips. The result is
// floored to the broker's lot step; a budget below the broker minimum
// surfaces as InsufficientEquityError.
func (b *Bridge) CalculatePositionSize(ctx context.Context, symbol string, stopDistance, riskPercent float64) (float64, error) {
	if stopDistance <= 0 {
		return 0, fmt.Errorf("stop distance must be positive, got %v", stopDistance)
	}
	if riskPercent <= 0 {
		return 0, fmt.Errorf("risk percent must be positive, got %v", riskPercent)
	}
	canon := market.Normalize(symbol)
	resp, err := b.call(ctx, wire.KindCalcSize, "", canon, canon, fnum(stopDistance), fnum(riskPercent))
	if err != nil {
		return 0, err
	}
	return resp.Float("VOLUME")
}

// GetCandles fetches recent OHLC bars (timeframe like "M1", "H1", "D1").
func (b *Bridge) GetCandles(ctx context.Context, symbol, timeframe string, count int) ([]Candle, error) {
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", count)
	}
	canon := market.Normalize(symbol)
	resp, err := b.call(ctx, wire.KindGetCandles, "", canon, canon, timeframe, strconv.Itoa(count))
	if err != nil {
		return nil, err
	}
	if resp.ListKey != "CANDLES" {
		return nil, &wire.FormatError{Reason: "response " + resp.ID + ": missing CANDLES payload"}
	}
	var candles []Candle
	if err := json.Unmarshal(resp.List, &candles); err != nil {
		return nil, &wire.FormatError{Reason: "response " + resp.ID + ": bad CANDLES payload: " + err.Error()}
	}
	return candles, nil
}

// CloseAllPositions closes every open position and returns how many closed.
func (b *Bridge) CloseAllPositions(ctx context.Context) (int, error) {
	resp, err := b.call(ctx, wire.KindCloseAll, "", "")
	if err != nil {
		return 0, err
	}
	n, err := resp.Int("CLOSED")
	return int(n), err
}

// GetHistoryOrders lists trades closed within the last days, optionally
// filtered by symbol.
func (b *Bridge) GetHistoryOrders(ctx context.Context, days int, symbol string) ([]HistoryOrder, error) {
	if days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}
	canon := ""
	params := []string{strconv.Itoa(days)}
	if symbol != "" {
		canon = market.Normalize(symbol)
		params = append(params, canon)
	}
	resp, err := b.call(ctx, wire.KindGetHistory, "", canon, params...)
	if err != nil {
		return nil, err
	}
	if resp.ListKey != "ORDERS" {
		return nil, &wire.FormatError{Reason: "response " + resp.ID + ": missing ORDERS payload"}
	}
	var orders []HistoryOrder
	if err := json.Unmarshal(resp.List, &orders); err != nil {
		return nil, &wire.FormatError{Reason: "response " + resp.ID + ": bad ORDERS payload: " + err.Error()}
	}
	return orders, nil
}

// GetPerformanceMetrics aggregates realized results over the last days,
// optionally restricted to one symbol. Zero trades yields zero-valued
// metrics, not an error.
func (b *Bridge) GetPerformanceMetrics(ctx context.Context, days int, symbol string) (PerformanceMetrics, error) {
	if days <= 0 {
		return PerformanceMetrics{}, fmt.Errorf("days must be positive, got %d", days)
	}
	canon := ""
	params := []string{strconv.Itoa(days)}
	if symbol != "" {
		canon = market.Normalize(symbol)
		params = append(params, canon)
	}
	resp, err := b.call(ctx, wire.KindGetPerformance, "", canon, params...)
	if err != nil {
		return PerformanceMetrics{}, err
	}
	if resp.ListKey != "METRICS" {
		return PerformanceMetrics{}, &wire.FormatError{Reason: "response " + resp.ID + ": missing METRICS payload"}
	}
	var m PerformanceMetrics
	if err := json.Unmarshal(resp.List, &m); err != nil {
		return PerformanceMetrics{}, &wire.FormatError{Reason: "response " + resp.ID + ": bad METRICS payload: " + err.Error()}
	}
	return m, nil
}

// fnum renders a float as a compact wire token.
func fnum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

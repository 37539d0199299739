package simpeer

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rustyeddy/mt5bridge/market"
	"github.com/rustyeddy/mt5bridge/risk"
	"github.com/rustyeddy/mt5bridge/transport"
	"github.com/rustyeddy/mt5bridge/wire"
)

// Peer consumes request files and writes response files, one per request,
// exactly as the real terminal-side script does.
type Peer struct {
	mu          sync.Mutex
	dir         *transport.Dir
	log         *slog.Logger
	instruments market.Table

	balance   float64
	currency  string
	quotes    map[string]Quote
	trades    map[string]*trade
	history   []closedTrade
	ticketSeq int

	latency time.Duration // delay before responding
	silent  bool          // consume requests but never respond

	interval time.Duration
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func New(dir *transport.Dir, acct Account, log *slog.Logger) *Peer {
	if log == nil {
		log = slog.Default()
	}
	if acct.Currency == "" {
		acct.Currency = "USD"
	}
	return &Peer{
		dir:         dir,
		log:         log,
		instruments: market.DefaultTable(),
		balance:     acct.Balance,
		currency:    acct.Currency,
		quotes:      make(map[string]Quote),
		trades:      make(map[string]*trade),
		ticketSeq:   100000,
		interval:    5 * time.Millisecond,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// SetLatency delays every response, for exercising timeouts.
func (p *Peer) SetLatency(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latency = d
}

// SetSilent makes the peer consume requests without answering.
func (p *Peer) SetSilent(silent bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.silent = silent
}

// SetInterval adjusts how often the peer polls for requests.
func (p *Peer) SetInterval(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d > 0 {
		p.interval = d
	}
}

func (p *Peer) Start() {
	go p.loop()
}

func (p *Peer) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}

func (p *Peer) loop() {
	defer close(p.done)

	p.mu.Lock()
	interval := p.interval
	p.mu.Unlock()

	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-tick.C:
			msgs, err := p.dir.PollRequests()
			if err != nil {
				p.log.Warn("peer: request scan failed", "err", err)
				continue
			}
			for _, m := range msgs {
				_ = p.dir.DeleteRequest(m.ID)
				p.serve(m)
			}
		}
	}
}

func (p *Peer) serve(m transport.Message) {
	p.mu.Lock()
	silent, latency := p.silent, p.latency
	p.mu.Unlock()
	if silent {
		return
	}

	payload := p.respond(m)
	if payload == nil {
		return
	}
	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-p.stop:
			return
		}
	}
	if err := p.dir.WriteResponse(m.ID, payload); err != nil {
		p.log.Warn("peer: response write failed", "id", m.ID, "err", err)
	}
}

// respond builds the response payload for one request file.
func (p *Peer) respond(m transport.Message) []byte {
	req, err := wire.DecodeRequest(m.Payload)
	if err != nil {
		p.log.Warn("peer: malformed request", "id", m.ID, "err", err)
		payload, _ := wire.EncodeError(m.ID, "BAD_REQUEST", err.Error())
		return payload
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var fields [][2]string
	var code, msg string

	switch req.Kind {
	case wire.KindStatus:
		fields = ok("CONNECTED", "1")
	case wire.KindGetPrice:
		fields, code, msg = p.handlePrice(req.Params)
	case wire.KindGetAccount:
		fields = p.handleAccount()
	case wire.KindGetPositions:
		fields, code, msg = p.handlePositions(req.Params)
	case wire.KindPlaceOrder:
		fields, code, msg = p.handlePlaceOrder(req.Params)
	case wire.KindModifyOrder:
		fields, code, msg = p.handleModify(req.Params)
	case wire.KindClosePosition:
		fields, code, msg = p.handleClose(req.Params)
	case wire.KindCalcSize:
		fields, code, msg = p.handleCalcSize(req.Params)
	case wire.KindGetCandles:
		fields, code, msg = p.handleCandles(req.Params)
	case wire.KindCloseAll:
		fields, code, msg = p.handleCloseAll()
	case wire.KindGetHistory:
		fields, code, msg = p.handleHistory(req.Params)
	case wire.KindGetPerformance:
		fields, code, msg = p.handlePerformance(req.Params)
	default:
		code, msg = "UNKNOWN_COMMAND", req.Kind.String()
	}

	var payload []byte
	if code != "" {
		payload, err = wire.EncodeError(req.ID, code, msg)
	} else {
		payload, err = wire.EncodeOK(req.ID, fields...)
	}
	if err != nil {
		p.log.Warn("peer: response encode failed", "id", req.ID, "err", err)
		return nil
	}
	return payload
}

func ok(pairs ...string) [][2]string {
	fields := make([][2]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		fields = append(fields, [2]string{pairs[i], pairs[i+1]})
	}
	return fields
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (p *Peer) handlePrice(params []string) ([][2]string, string, string) {
	if len(params) != 1 {
		return nil, "BAD_REQUEST", "GET_PRICE wants 1 param"
	}
	symbol := market.Normalize(params[0])
	q, okQuote := p.quotes[symbol]
	if !okQuote {
		return nil, "NO_QUOTE", "no quote for " + symbol
	}
	return ok(
		"SYMBOL", symbol,
		"BID", num(q.Bid),
		"ASK", num(q.Ask),
		"TIME", strconv.FormatInt(q.Time.Unix(), 10),
	), "", ""
}

func (p *Peer) handleAccount() [][2]string {
	equity := p.equityLocked()
	margin := p.marginLocked()
	return ok(
		"BALANCE", num(p.balance),
		"EQUITY", num(equity),
		"MARGIN", num(margin),
		"FREE_MARGIN", num(equity-margin),
		"CURRENCY", p.currency,
	)
}

type positionJSON struct {
	Ticket     string  `json:"ticket"`
	Symbol     string  `json:"symbol"`
	Volume     float64 `json:"volume"`
	Direction  string  `json:"direction"`
	OpenPrice  float64 `json:"open_price"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Profit     float64 `json:"profit"`
	OpenTime   int64   `json:"open_time"`
}

func (p *Peer) handlePositions(params []string) ([][2]string, string, string) {
	var filter string
	if len(params) == 1 {
		filter = market.Normalize(params[0])
	}

	list := []positionJSON{}
	for _, t := range p.trades {
		if filter != "" && t.symbol != filter {
			continue
		}
		pos := positionJSON{
			Ticket:     t.ticket,
			Symbol:     t.symbol,
			Volume:     t.volume,
			Direction:  t.direction,
			OpenPrice:  t.openPrice,
			StopLoss:   t.stopLoss,
			TakeProfit: t.takeProfit,
			OpenTime:   t.openTime.Unix(),
		}
		if q, okQuote := p.quotes[t.symbol]; okQuote {
			if meta, err := p.instruments.Lookup(t.symbol); err == nil {
				exit := q.Bid
				if t.direction == "SELL" {
					exit = q.Ask
				}
				pos.Profit = pnl(meta, t.direction, t.volume, t.openPrice, exit)
			}
		}
		list = append(list, pos)
	}

	raw, err := json.Marshal(list)
	if err != nil {
		return nil, "BAD_REQUEST", err.Error()
	}
	return ok("POSITIONS", string(raw)), "", ""
}

func (p *Peer) handlePlaceOrder(params []string) ([][2]string, string, string) {
	if len(params) != 5 {
		return nil, "BAD_REQUEST", "PLACE_ORDER wants 5 params"
	}
	symbol := market.Normalize(params[0])
	side := strings.ToUpper(params[1])
	volume, err1 := strconv.ParseFloat(params[2], 64)
	sl, err2 := strconv.ParseFloat(params[3], 64)
	tp, err3 := strconv.ParseFloat(params[4], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return nil, "BAD_REQUEST", "PLACE_ORDER has non-numeric params"
	}
	if side != "BUY" && side != "SELL" {
		return nil, "REJECTED", "invalid side " + side
	}
	meta, err := p.instruments.Lookup(symbol)
	if err != nil {
		return nil, "REJECTED", "unknown symbol " + symbol
	}
	if volume < meta.MinVolume || volume > meta.MaxVolume {
		return nil, "REJECTED", "volume out of range"
	}
	q, okQuote := p.quotes[symbol]
	if !okQuote {
		return nil, "REJECTED", "market closed"
	}
	if volume*marginPerLot > p.equityLocked()-p.marginLocked() {
		return nil, "REJECTED", "insufficient margin"
	}

	fill := q.Ask
	if side == "SELL" {
		fill = q.Bid
	}
	if side == "BUY" && ((sl != 0 && sl >= fill) || (tp != 0 && tp <= fill)) {
		return nil, "REJECTED", "invalid stops"
	}
	if side == "SELL" && ((sl != 0 && sl <= fill) || (tp != 0 && tp >= fill)) {
		return nil, "REJECTED", "invalid stops"
	}

	t := &trade{
		ticket:     p.nextTicketLocked(),
		symbol:     symbol,
		direction:  side,
		volume:     volume,
		openPrice:  fill,
		stopLoss:   sl,
		takeProfit: tp,
		openTime:   time.Now(),
	}
	p.trades[t.ticket] = t

	return ok("TICKET", t.ticket, "PRICE", num(fill)), "", ""
}

func (p *Peer) handleModify(params []string) ([][2]string, string, string) {
	if len(params) != 3 {
		return nil, "BAD_REQUEST", "MODIFY_ORDER wants 3 params"
	}
	t, okTrade := p.trades[params[0]]
	if !okTrade {
		return nil, "NOT_FOUND", "position " + params[0] + " not found"
	}
	if params[1] != "-" {
		sl, err := strconv.ParseFloat(params[1], 64)
		if err != nil {
			return nil, "BAD_REQUEST", "bad stop loss"
		}
		t.stopLoss = sl
	}
	if params[2] != "-" {
		tp, err := strconv.ParseFloat(params[2], 64)
		if err != nil {
			return nil, "BAD_REQUEST", "bad take profit"
		}
		t.takeProfit = tp
	}
	return ok("TICKET", t.ticket), "", ""
}

func (p *Peer) handleClose(params []string) ([][2]string, string, string) {
	if len(params) < 1 || len(params) > 2 {
		return nil, "BAD_REQUEST", "CLOSE_POSITION wants 1 or 2 params"
	}
	t, okTrade := p.trades[params[0]]
	if !okTrade {
		return nil, "NOT_FOUND", "position " + params[0] + " not found"
	}
	var volume float64
	if len(params) == 2 {
		v, err := strconv.ParseFloat(params[1], 64)
		if err != nil || v <= 0 {
			return nil, "BAD_REQUEST", "bad close volume"
		}
		volume = v
	}
	if volume > t.volume {
		volume = t.volume
	}
	closed := volume
	if closed == 0 {
		closed = t.volume
	}

	profit, err := p.closeLocked(t, volume, time.Now())
	if err != nil {
		return nil, "REJECTED", err.Error()
	}
	return ok(
		"TICKET", params[0],
		"CLOSED_VOLUME", num(closed),
		"PROFIT", num(profit),
	), "", ""
}

func (p *Peer) handleCalcSize(params []string) ([][2]string, string, string) {
	if len(params) != 3 {
		return nil, "BAD_REQUEST", "CALC_SIZE wants 3 params"
	}
	symbol := market.Normalize(params[0])
	stop, err1 := strconv.ParseFloat(params[1], 64)
	riskPct, err2 := strconv.ParseFloat(params[2], 64)
	if err1 != nil || err2 != nil {
		return nil, "BAD_REQUEST", "CALC_SIZE has non-numeric params"
	}
	meta, err := p.instruments.Lookup(symbol)
	if err != nil {
		return nil, "BAD_REQUEST", "unknown symbol " + symbol
	}

	res, err := risk.Calculate(risk.Inputs{
		Equity:       p.equityLocked(),
		RiskPercent:  riskPct,
		StopDistance: stop,
		Meta:         meta,
	})
	if err != nil {
		if errors.Is(err, risk.ErrBelowMinimum) {
			return nil, "INSUFFICIENT_EQUITY", err.Error()
		}
		return nil, "BAD_REQUEST", err.Error()
	}
	return ok("VOLUME", num(res.Volume)), "", ""
}

type candleJSON struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

var timeframes = map[string]time.Duration{
	"M1":  time.Minute,
	"M5":  5 * time.Minute,
	"M15": 15 * time.Minute,
	"H1":  time.Hour,
	"H4":  4 * time.Hour,
	"D1":  24 * time.Hour,
}

// handleCandles synthesizes a flat series around the current mid; good
// enough for exercising the transport and decode paths.
func (p *Peer) handleCandles(params []string) ([][2]string, string, string) {
	if len(params) != 3 {
		return nil, "BAD_REQUEST", "GET_CANDLES wants 3 params"
	}
	symbol := market.Normalize(params[0])
	step, okTF := timeframes[strings.ToUpper(params[1])]
	if !okTF {
		return nil, "BAD_REQUEST", "unknown timeframe " + params[1]
	}
	count, err := strconv.Atoi(params[2])
	if err != nil || count <= 0 || count > 5000 {
		return nil, "BAD_REQUEST", "bad candle count"
	}
	q, okQuote := p.quotes[symbol]
	if !okQuote {
		return nil, "NO_QUOTE", "no quote for " + symbol
	}

	mid := (q.Bid + q.Ask) / 2
	now := time.Now().Truncate(step)
	candles := make([]candleJSON, count)
	for i := range candles {
		barTime := now.Add(-time.Duration(count-1-i) * step)
		candles[i] = candleJSON{
			Time:   barTime.Unix(),
			Open:   mid,
			High:   mid + q.Ask - q.Bid,
			Low:    mid - (q.Ask - q.Bid),
			Close:  mid,
			Volume: 100,
		}
	}
	raw, err := json.Marshal(candles)
	if err != nil {
		return nil, "BAD_REQUEST", err.Error()
	}
	return ok("CANDLES", string(raw)), "", ""
}

func (p *Peer) handleCloseAll() ([][2]string, string, string) {
	var closed int
	for _, t := range p.trades {
		if _, err := p.closeLocked(t, 0, time.Now()); err != nil {
			return nil, "REJECTED", err.Error()
		}
		closed++
	}
	return ok("CLOSED", strconv.Itoa(closed)), "", ""
}

type historyJSON struct {
	Ticket     string  `json:"ticket"`
	Symbol     string  `json:"symbol"`
	Direction  string  `json:"direction"`
	Volume     float64 `json:"volume"`
	OpenPrice  float64 `json:"open_price"`
	ClosePrice float64 `json:"close_price"`
	Profit     float64 `json:"profit"`
	CloseTime  int64   `json:"close_time"`
}

func (p *Peer) handleHistory(params []string) ([][2]string, string, string) {
	if len(params) < 1 || len(params) > 2 {
		return nil, "BAD_REQUEST", "GET_HISTORY wants 1 or 2 params"
	}
	days, err := strconv.Atoi(params[0])
	if err != nil || days <= 0 {
		return nil, "BAD_REQUEST", "bad day count"
	}
	var filter string
	if len(params) == 2 {
		filter = market.Normalize(params[1])
	}

	since := time.Now().AddDate(0, 0, -days)
	list := []historyJSON{}
	for _, c := range p.history {
		if c.closeTime.Before(since) {
			continue
		}
		if filter != "" && c.symbol != filter {
			continue
		}
		list = append(list, historyJSON{
			Ticket:     c.ticket,
			Symbol:     c.symbol,
			Direction:  c.direction,
			Volume:     c.volume,
			OpenPrice:  c.openPrice,
			ClosePrice: c.closePrice,
			Profit:     c.profit,
			CloseTime:  c.closeTime.Unix(),
		})
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return nil, "BAD_REQUEST", err.Error()
	}
	return ok("ORDERS", string(raw)), "", ""
}

type metricsJSON struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	ProfitFactor  float64 `json:"profit_factor"`
	TotalProfit   float64 `json:"total_profit"`
	AverageTrade  float64 `json:"average_trade"`
}

func (p *Peer) handlePerformance(params []string) ([][2]string, string, string) {
	if len(params) < 1 || len(params) > 2 {
		return nil, "BAD_REQUEST", "GET_PERFORMANCE wants 1 or 2 params"
	}
	days, err := strconv.Atoi(params[0])
	if err != nil || days <= 0 {
		return nil, "BAD_REQUEST", "bad day count"
	}
	var filter string
	if len(params) == 2 {
		filter = market.Normalize(params[1])
	}

	since := time.Now().AddDate(0, 0, -days)
	var m metricsJSON
	var grossProfit, grossLoss float64
	for _, c := range p.history {
		if c.closeTime.Before(since) {
			continue
		}
		if filter != "" && c.symbol != filter {
			continue
		}
		m.TotalTrades++
		m.TotalProfit += c.profit
		switch {
		case c.profit > 0:
			m.WinningTrades++
			grossProfit += c.profit
		case c.profit < 0:
			m.LosingTrades++
			grossLoss += -c.profit
		}
	}
	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
		m.AverageTrade = m.TotalProfit / float64(m.TotalTrades)
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossProfit / grossLoss
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return nil, "BAD_REQUEST", err.Error()
	}
	return ok("METRICS", string(raw)), "", ""
}

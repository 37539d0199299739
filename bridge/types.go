package bridge

import "time"

// Side of an order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Quote is the current bid/ask for one symbol.
type Quote struct {
	Symbol string
	Bid    float64
	Ask    float64
	Time   time.Time
}

func (q Quote) Spread() float64 {
	return q.Ask - q.Bid
}

// AccountSnapshot is the terminal account state at one instant.
type AccountSnapshot struct {
	Balance    float64
	Equity     float64
	Margin     float64
	FreeMargin float64
	Currency   string
}

// Position is one open position as the terminal reports it. The JSON tags
// are part of the wire format for GET_POSITIONS.
type Position struct {
	Ticket     string  `json:"ticket"`
	Symbol     string  `json:"symbol"`
	Volume     float64 `json:"volume"`
	Direction  string  `json:"direction"`
	OpenPrice  float64 `json:"open_price"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Profit     float64 `json:"profit"`
	OpenTime   int64   `json:"open_time"` // unix seconds
}

// Candle is one OHLC bar from GET_CANDLES.
type Candle struct {
	Time   int64   `json:"time"` // unix seconds, bar open
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// HistoryOrder is one closed trade from GET_HISTORY.
type HistoryOrder struct {
	Ticket     string  `json:"ticket"`
	Symbol     string  `json:"symbol"`
	Direction  string  `json:"direction"`
	Volume     float64 `json:"volume"`
	OpenPrice  float64 `json:"open_price"`
	ClosePrice float64 `json:"close_price"`
	Profit     float64 `json:"profit"`
	CloseTime  int64   `json:"close_time"` // unix seconds
}

// PerformanceMetrics summarizes closed trades from GET_PERFORMANCE. WinRate
// is a percentage; ProfitFactor is gross profit over gross loss, zero when
// nothing was lost.
type PerformanceMetrics struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	ProfitFactor  float64 `json:"profit_factor"`
	TotalProfit   float64 `json:"total_profit"`
	AverageTrade  float64 `json:"average_trade"`
}

// OrderRequest describes a market order. StopLoss/TakeProfit of zero mean
// "no stop" / "no target".
type OrderRequest struct {
	Symbol     string
	Side       Side
	Volume     float64
	StopLoss   float64
	TakeProfit float64
}

// OrderTicket acknowledges an accepted order.
type OrderTicket struct {
	Ticket    string
	FillPrice float64
}

// CloseResult reports a (possibly partial) close.
type CloseResult struct {
	Ticket       string
	ClosedVolume float64
	Profit       float64
}

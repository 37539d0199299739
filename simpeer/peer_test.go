package simpeer

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/mt5bridge/transport"
	"github.com/rustyeddy/mt5bridge/wire"
)

func newPeer(t *testing.T, balance float64) *Peer {
	t.Helper()
	return New(nil, Account{Balance: balance}, slog.Default())
}

func fieldMap(fields [][2]string) map[string]string {
	m := make(map[string]string, len(fields))
	for _, f := range fields {
		m[f[0]] = f[1]
	}
	return m
}

func TestPlaceOrderFillsAtAsk(t *testing.T) {
	p := newPeer(t, 10000)
	p.SetQuote("EURUSD", 1.1000, 1.1002)

	fields, code, _ := p.handlePlaceOrder([]string{"EURUSD", "BUY", "1", "0", "0"})
	require.Empty(t, code)

	m := fieldMap(fields)
	assert.Equal(t, "1.1002", m["PRICE"])
	assert.NotEmpty(t, m["TICKET"])
	assert.Equal(t, 1.0, p.OpenVolume(m["TICKET"]))
}

func TestPlaceOrderRejections(t *testing.T) {
	p := newPeer(t, 2000)
	p.SetQuote("EURUSD", 1.1000, 1.1002)

	cases := []struct {
		name   string
		params []string
		code   string
		msg    string
	}{
		{"unknown symbol", []string{"BOGUS", "BUY", "1", "0", "0"}, "REJECTED", "unknown symbol BOGUS"},
		{"no quote", []string{"GBPUSD", "BUY", "1", "0", "0"}, "REJECTED", "market closed"},
		{"volume too small", []string{"EURUSD", "BUY", "0.001", "0", "0"}, "REJECTED", "volume out of range"},
		{"insufficient margin", []string{"EURUSD", "BUY", "5", "0", "0"}, "REJECTED", "insufficient margin"},
		{"stop above buy fill", []string{"EURUSD", "BUY", "1", "1.2", "0"}, "REJECTED", "invalid stops"},
		{"target above sell fill", []string{"EURUSD", "SELL", "1", "0", "1.2"}, "REJECTED", "invalid stops"},
		{"bad side", []string{"EURUSD", "HOLD", "1", "0", "0"}, "REJECTED", "invalid side HOLD"},
		{"param count", []string{"EURUSD", "BUY", "1"}, "BAD_REQUEST", "PLACE_ORDER wants 5 params"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, code, msg := p.handlePlaceOrder(tc.params)
			assert.Equal(t, tc.code, code)
			assert.Equal(t, tc.msg, msg)
		})
	}
}

func TestCloseRealizesProfit(t *testing.T) {
	p := newPeer(t, 10000)
	p.SetQuote("EURUSD", 1.1000, 1.1002)

	fields, code, _ := p.handlePlaceOrder([]string{"EURUSD", "BUY", "1", "0", "0"})
	require.Empty(t, code)
	ticket := fieldMap(fields)["TICKET"]

	// 50 pips in our favor: (1.1052-1.1002)/0.0001 * 10 * 1.0 = 500.
	p.SetQuote("EURUSD", 1.1052, 1.1054)

	fields, code, _ = p.handleClose([]string{ticket})
	require.Empty(t, code)

	m := fieldMap(fields)
	assert.Equal(t, "1", m["CLOSED_VOLUME"])
	profit, err := strconv.ParseFloat(m["PROFIT"], 64)
	require.NoError(t, err)
	assert.InDelta(t, 500, profit, 1e-6)
	assert.Equal(t, 0.0, p.OpenVolume(ticket))
	assert.InDelta(t, 10500, p.balance, 1e-6)
}

func TestPartialCloseLeavesRemainder(t *testing.T) {
	p := newPeer(t, 10000)
	p.SetQuote("EURUSD", 1.1000, 1.1002)

	fields, code, _ := p.handlePlaceOrder([]string{"EURUSD", "SELL", "1", "0", "0"})
	require.Empty(t, code)
	ticket := fieldMap(fields)["TICKET"]

	// Short from 1.1000, ask now 1.0950: 50 pips on 0.4 lots = 200.
	p.SetQuote("EURUSD", 1.0948, 1.0950)

	fields, code, _ = p.handleClose([]string{ticket, "0.4"})
	require.Empty(t, code)

	m := fieldMap(fields)
	assert.Equal(t, "0.4", m["CLOSED_VOLUME"])
	profit, err := strconv.ParseFloat(m["PROFIT"], 64)
	require.NoError(t, err)
	assert.InDelta(t, 200, profit, 1e-6)
	assert.InDelta(t, 0.6, p.OpenVolume(ticket), 1e-9)
	require.Len(t, p.history, 1)
	assert.Equal(t, 0.4, p.history[0].volume)
}

func TestCloseUnknownTicket(t *testing.T) {
	p := newPeer(t, 10000)
	_, code, msg := p.handleClose([]string{"999"})
	assert.Equal(t, "NOT_FOUND", code)
	assert.Equal(t, "position 999 not found", msg)
}

func TestModifyDashLeavesFieldUnchanged(t *testing.T) {
	p := newPeer(t, 10000)
	p.SetQuote("EURUSD", 1.1000, 1.1002)

	fields, code, _ := p.handlePlaceOrder([]string{"EURUSD", "BUY", "1", "1.09", "1.12"})
	require.Empty(t, code)
	ticket := fieldMap(fields)["TICKET"]

	_, code, _ = p.handleModify([]string{ticket, "-", "1.13"})
	require.Empty(t, code)

	tr := p.trades[ticket]
	assert.Equal(t, 1.09, tr.stopLoss)
	assert.Equal(t, 1.13, tr.takeProfit)
}

func TestCalcSizeUsesEquity(t *testing.T) {
	p := newPeer(t, 10000)

	// 1% of 10000 = 100 at risk; 50 pips at 10/pip-lot buys 0.2 lots.
	fields, code, _ := p.handleCalcSize([]string{"EURUSD", "50", "1"})
	require.Empty(t, code)
	assert.Equal(t, "0.2", fieldMap(fields)["VOLUME"])
}

func TestCalcSizeBelowMinimum(t *testing.T) {
	p := newPeer(t, 10)
	_, code, _ := p.handleCalcSize([]string{"EURUSD", "500", "0.1"})
	assert.Equal(t, "INSUFFICIENT_EQUITY", code)
}

func TestCloseAllFlattensBook(t *testing.T) {
	p := newPeer(t, 50000)
	p.SetQuote("EURUSD", 1.1000, 1.1002)
	p.SetQuote("GBPUSD", 1.2500, 1.2503)

	for _, params := range [][]string{
		{"EURUSD", "BUY", "1", "0", "0"},
		{"GBPUSD", "SELL", "2", "0", "0"},
	} {
		_, code, msg := p.handlePlaceOrder(params)
		require.Empty(t, code, msg)
	}

	fields, code, _ := p.handleCloseAll()
	require.Empty(t, code)
	assert.Equal(t, "2", fieldMap(fields)["CLOSED"])
	assert.Empty(t, p.trades)
}

func TestHistoryFilters(t *testing.T) {
	p := newPeer(t, 10000)
	now := time.Now()
	p.history = []closedTrade{
		{trade: trade{ticket: "1", symbol: "EURUSD", direction: "BUY", volume: 1}, profit: 50, closeTime: now},
		{trade: trade{ticket: "2", symbol: "GBPUSD", direction: "SELL", volume: 1}, profit: -20, closeTime: now},
		{trade: trade{ticket: "3", symbol: "EURUSD", direction: "BUY", volume: 1}, profit: 10, closeTime: now.AddDate(0, 0, -30)},
	}

	fields, code, _ := p.handleHistory([]string{"7", "EURUSD"})
	require.Empty(t, code)

	var got []historyJSON
	require.NoError(t, json.Unmarshal([]byte(fieldMap(fields)["ORDERS"]), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].Ticket)
	assert.Equal(t, 50.0, got[0].Profit)
}

func TestPerformanceMetrics(t *testing.T) {
	p := newPeer(t, 10000)
	now := time.Now()
	p.history = []closedTrade{
		{trade: trade{ticket: "1", symbol: "EURUSD", direction: "BUY", volume: 1}, profit: 60, closeTime: now},
		{trade: trade{ticket: "2", symbol: "EURUSD", direction: "SELL", volume: 1}, profit: -20, closeTime: now},
		{trade: trade{ticket: "3", symbol: "GBPUSD", direction: "BUY", volume: 1}, profit: 90, closeTime: now},
		{trade: trade{ticket: "4", symbol: "EURUSD", direction: "BUY", volume: 1}, profit: 40, closeTime: now.AddDate(0, 0, -30)},
	}

	fields, code, _ := p.handlePerformance([]string{"7"})
	require.Empty(t, code)

	var got metricsJSON
	require.NoError(t, json.Unmarshal([]byte(fieldMap(fields)["METRICS"]), &got))
	assert.Equal(t, 3, got.TotalTrades)
	assert.Equal(t, 2, got.WinningTrades)
	assert.Equal(t, 1, got.LosingTrades)
	assert.InDelta(t, 66.666, got.WinRate, 0.01)
	assert.InDelta(t, 7.5, got.ProfitFactor, 1e-9) // 150 won over 20 lost
	assert.InDelta(t, 130, got.TotalProfit, 1e-9)
	assert.InDelta(t, 130.0/3, got.AverageTrade, 1e-9)

	// Symbol filter narrows to the losing EURUSD trade plus the winner.
	fields, code, _ = p.handlePerformance([]string{"7", "EURUSD"})
	require.Empty(t, code)
	require.NoError(t, json.Unmarshal([]byte(fieldMap(fields)["METRICS"]), &got))
	assert.Equal(t, 2, got.TotalTrades)
	assert.InDelta(t, 40, got.TotalProfit, 1e-9)

	// No trades in range is an empty summary, not an error.
	p.history = nil
	fields, code, _ = p.handlePerformance([]string{"7"})
	require.Empty(t, code)
	require.NoError(t, json.Unmarshal([]byte(fieldMap(fields)["METRICS"]), &got))
	assert.Zero(t, got.TotalTrades)
	assert.Zero(t, got.WinRate)
	assert.Zero(t, got.ProfitFactor)
}

func TestRespondRoundTrip(t *testing.T) {
	p := newPeer(t, 10000)

	payload, err := wire.EncodeRequest(wire.Request{ID: "abc", Kind: wire.KindStatus})
	require.NoError(t, err)
	out := p.respond(transport.Message{ID: "abc", Payload: payload})

	resp, err := wire.DecodeResponse(out)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, resp.Status)
	assert.Equal(t, "1", resp.Fields["CONNECTED"])

	out = p.respond(transport.Message{ID: "xyz", Payload: []byte("MT5BRIDGE 1\nID:xyz|EXPLODE\n")})
	resp, err = wire.DecodeResponse(out)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusError, resp.Status)
	assert.Equal(t, "BAD_REQUEST", resp.Code)
}

func TestPositionsProfitMarkedToMarket(t *testing.T) {
	p := newPeer(t, 10000)
	p.SetQuote("EURUSD", 1.1000, 1.1002)

	_, code, _ := p.handlePlaceOrder([]string{"EURUSD", "BUY", "1", "0", "0"})
	require.Empty(t, code)

	p.SetQuote("EURUSD", 1.1012, 1.1014)

	fields, code, _ := p.handlePositions(nil)
	require.Empty(t, code)

	var got []positionJSON
	require.NoError(t, json.Unmarshal([]byte(fieldMap(fields)["POSITIONS"]), &got))
	require.Len(t, got, 1)
	// Long from 1.1002 marked at bid 1.1012: 10 pips = 100.
	assert.InDelta(t, 100, got[0].Profit, 1e-9)
}

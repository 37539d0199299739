// Package market carries the static instrument metadata the bridge and the
// sizing math both need: pip geometry, lot constraints, and the alias table
// that maps shorthand symbols to terminal names.
package market

import (
	"fmt"
	"math"
	"strings"
)

type InstrumentMeta struct {
	Symbol        string
	QuoteCurrency string
	PipSize       float64 // price distance of one pip
	PipValue      float64 // account-currency value of one pip per 1.0 lot
	LotStep       float64 // smallest tradable volume increment
	MinVolume     float64
	MaxVolume     float64
}

// RoundToStep floors a volume to the instrument's lot step. Brokers reject
// volumes that are not exact multiples of the step, so always round down.
func (m InstrumentMeta) RoundToStep(volume float64) float64 {
	if m.LotStep <= 0 {
		return volume
	}
	steps := math.Floor(volume/m.LotStep + 1e-9)
	return steps * m.LotStep
}

// Aliases maps the shorthand symbols the upstream layer uses to the names
// the terminal actually quotes.
var Aliases = map[string]string{
	"us30":   "US30.cash",
	"US30":   "US30.cash",
	"nas100": "NAS100.cash",
	"NAS100": "NAS100.cash",
	"gold":   "XAUUSD",
}

// Table holds instrument metadata keyed by terminal symbol. Callers own
// their table; nothing in this package mutates shared state.
type Table map[string]InstrumentMeta

// DefaultTable returns a fresh copy of the built-in instrument set.
func DefaultTable() Table {
	t := make(Table, len(defaults))
	for k, v := range defaults {
		t[k] = v
	}
	return t
}

// Normalize resolves aliases to the terminal symbol.
func Normalize(symbol string) string {
	s := strings.TrimSpace(symbol)
	if canon, ok := Aliases[s]; ok {
		return canon
	}
	if canon, ok := Aliases[strings.ToLower(s)]; ok {
		return canon
	}
	return s
}

// Lookup resolves aliases and returns the instrument metadata.
func (t Table) Lookup(symbol string) (InstrumentMeta, error) {
	canon := Normalize(symbol)
	m, ok := t[canon]
	if !ok {
		return InstrumentMeta{}, fmt.Errorf("unknown instrument %q", symbol)
	}
	return m, nil
}

var defaults = map[string]InstrumentMeta{
	"EURUSD": {
		Symbol:        "EURUSD",
		QuoteCurrency: "USD",
		PipSize:       0.0001,
		PipValue:      10,
		LotStep:       0.01,
		MinVolume:     0.01,
		MaxVolume:     100,
	},
	"GBPUSD": {
		Symbol:        "GBPUSD",
		QuoteCurrency: "USD",
		PipSize:       0.0001,
		PipValue:      10,
		LotStep:       0.01,
		MinVolume:     0.01,
		MaxVolume:     100,
	},
	"USDJPY": {
		Symbol:        "USDJPY",
		QuoteCurrency: "JPY",
		PipSize:       0.01,
		PipValue:      10,
		LotStep:       0.01,
		MinVolume:     0.01,
		MaxVolume:     100,
	},
	"XAUUSD": {
		Symbol:        "XAUUSD",
		QuoteCurrency: "USD",
		PipSize:       0.01,
		PipValue:      1,
		LotStep:       0.01,
		MinVolume:     0.01,
		MaxVolume:     50,
	},
	"US30.cash": {
		Symbol:        "US30.cash",
		QuoteCurrency: "USD",
		PipSize:       1,
		PipValue:      1,
		LotStep:       0.1,
		MinVolume:     0.1,
		MaxVolume:     50,
	},
	"NAS100.cash": {
		Symbol:        "NAS100.cash",
		QuoteCurrency: "USD",
		PipSize:       1,
		PipValue:      1,
		LotStep:       0.1,
		MinVolume:     0.1,
		MaxVolume:     50,
	},
}

package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/mt5bridge/market"
)

func meta(pipValue, step, min float64) market.InstrumentMeta {
	return market.InstrumentMeta{
		Symbol:    "TEST",
		PipValue:  pipValue,
		LotStep:   step,
		MinVolume: min,
		MaxVolume: 100,
	}
}

func TestCalculate_OnePercentFiftyPips(t *testing.T) {
	t.Parallel()

	// 10000 * 1% / (50 pips * 1/pip) = 2.0 lots
	got, err := Calculate(Inputs{
		Equity:       10000,
		RiskPercent:  1,
		StopDistance: 50,
		Meta:         meta(1, 0.01, 0.01),
	})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got.Volume, 1e-9)
	assert.InDelta(t, 100.0, got.RiskAmount, 1e-9)
}

func TestCalculate_FloorsToLotStep(t *testing.T) {
	t.Parallel()

	// raw volume = 5000 * 2% / (30 * 10) = 0.3333... -> 0.33
	got, err := Calculate(Inputs{
		Equity:       5000,
		RiskPercent:  2,
		StopDistance: 30,
		Meta:         meta(10, 0.01, 0.01),
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.33, got.Volume, 1e-9)
}

func TestCalculate_BelowMinimum(t *testing.T) {
	t.Parallel()

	// raw volume = 100 * 0.5% / (100 * 10) = 0.0005 -> floors to 0
	_, err := Calculate(Inputs{
		Equity:       100,
		RiskPercent:  0.5,
		StopDistance: 100,
		Meta:         meta(10, 0.01, 0.01),
	})
	assert.ErrorIs(t, err, ErrBelowMinimum)
}

func TestCalculate_ClampsToMaximum(t *testing.T) {
	t.Parallel()

	m := meta(1, 0.01, 0.01)
	m.MaxVolume = 5

	got, err := Calculate(Inputs{
		Equity:       1000000,
		RiskPercent:  10,
		StopDistance: 10,
		Meta:         m,
	})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, got.Volume, 1e-9)
}

func TestCalculate_RejectsBadInputs(t *testing.T) {
	t.Parallel()

	base := Inputs{Equity: 1000, RiskPercent: 1, StopDistance: 10, Meta: meta(10, 0.01, 0.01)}

	tests := []struct {
		name   string
		mutate func(*Inputs)
	}{
		{"zero equity", func(in *Inputs) { in.Equity = 0 }},
		{"negative risk", func(in *Inputs) { in.RiskPercent = -1 }},
		{"risk over 100", func(in *Inputs) { in.RiskPercent = 101 }},
		{"zero stop", func(in *Inputs) { in.StopDistance = 0 }},
		{"no pip value", func(in *Inputs) { in.Meta.PipValue = 0 }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := base
			tt.mutate(&in)
			_, err := Calculate(in)
			assert.Error(t, err)
		})
	}
}

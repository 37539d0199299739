package risk

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/mt5bridge/market"
)

// ErrBelowMinimum is returned when the risk budget does not buy even the
// instrument's minimum volume.
var ErrBelowMinimum = errors.New("computed volume below instrument minimum")

type Inputs struct {
	Equity       float64
	RiskPercent  float64 // 1 = risk 1% of equity
	StopDistance float64 // stop-loss distance in pips
	Meta         market.InstrumentMeta
}

type Result struct {
	Volume     float64 // lots, floored to the instrument's lot step
	RiskAmount float64 // account currency at risk
}

// Calculate sizes a position so that a stop-out loses RiskPercent of equity:
//
//	volume = equity * riskPct/100 / (stopDistance * pipValue)
//
// The raw volume is floored to the broker's lot step and clamped to the
// instrument maximum. ErrBelowMinimum is returned when the floored volume
// falls under the instrument minimum.
func Calculate(in Inputs) (Result, error) {
	if in.Equity <= 0 {
		return Result{}, fmt.Errorf("equity must be positive, got %v", in.Equity)
	}
	if in.RiskPercent <= 0 || in.RiskPercent > 100 {
		return Result{}, fmt.Errorf("risk percent must be in (0, 100], got %v", in.RiskPercent)
	}
	if in.StopDistance <= 0 {
		return Result{}, fmt.Errorf("stop distance must be positive, got %v", in.StopDistance)
	}
	if in.Meta.PipValue <= 0 {
		return Result{}, fmt.Errorf("instrument %s has no pip value", in.Meta.Symbol)
	}

	riskAmt := in.Equity * in.RiskPercent / 100
	volume := riskAmt / (in.StopDistance * in.Meta.PipValue)
	volume = in.Meta.RoundToStep(volume)

	if in.Meta.MaxVolume > 0 && volume > in.Meta.MaxVolume {
		volume = in.Meta.MaxVolume
	}
	if volume < in.Meta.MinVolume || volume <= 0 {
		return Result{}, fmt.Errorf("%w: %s volume %.4f < min %.4f",
			ErrBelowMinimum, in.Meta.Symbol, volume, in.Meta.MinVolume)
	}

	return Result{Volume: volume, RiskAmount: riskAmt}, nil
}

// Package controller implements the charging decision state machine. Decide
// is a pure function over its input: every rule short-circuits in strict
// priority order and the result is total, there is no error path.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cheapcharge/cheapcharge/pkg/types"
)

// Input is everything one decision needs. The caller owns reading vehicle and
// charger state and resolving the manual override; the controller only ranks
// the signals.
type Input struct {
	// CheapestBlocks are the blocks currently selected for charging.
	CheapestBlocks []types.PriceBlock
	// Now is the decision instant.
	Now time.Time

	// EnableLowPrice gates the price-based rules entirely.
	EnableLowPrice bool

	// BatteryLevel is the vehicle battery percent, nil when the vehicle did
	// not report one.
	BatteryLevel *float64
	// LowBatteryThreshold is the percent below which charging is forced. 0
	// means unconfigured and disables the low-battery rule.
	LowBatteryThreshold float64

	// ManualOverrideActive suppresses all automation while true.
	ManualOverrideActive bool
	// WasOnDueToPrice is true when the load is on because of a cheap block.
	WasOnDueToPrice bool
	// WasOnDueToLowBattery is true when the load is on because the battery
	// was low.
	WasOnDueToLowBattery bool
}

// Decision is the result of one evaluation.
type Decision struct {
	Verdict     types.Verdict
	Reason      types.DecisionReason
	Description string
	// BlockPrice is set when the verdict was driven by a specific block.
	BlockPrice *float64
}

// Controller handles the decision-making logic for the charger.
type Controller struct {
}

// NewController creates a new Controller.
func NewController() *Controller {
	return &Controller{}
}

// Decide evaluates the rules in strict priority order: manual override, low
// battery, low-price automation disabled, inside a cheapest block, left the
// cheapest blocks. The first matching rule wins.
//
// Recovery from a low battery (turning off once the battery climbed back
// above the threshold) is deliberately not decided here: the caller owns the
// reason flags and handles it before calling Decide.
func (c *Controller) Decide(ctx context.Context, in Input) Decision {
	slog.DebugContext(ctx, "controller decide started",
		slog.Int("cheapestBlocks", len(in.CheapestBlocks)),
		slog.Bool("enableLowPrice", in.EnableLowPrice),
		slog.Bool("manualOverrideActive", in.ManualOverrideActive),
		slog.Bool("wasOnDueToPrice", in.WasOnDueToPrice),
		slog.Bool("wasOnDueToLowBattery", in.WasOnDueToLowBattery),
	)

	// Rule 1: a manual override freezes automation entirely.
	if in.ManualOverrideActive {
		return Decision{
			Verdict:     types.VerdictNoChange,
			Reason:      types.ReasonManualOverride,
			Description: "Manual override active. Automation suspended.",
		}
	}

	// Rule 2: a low battery forces charging regardless of price.
	if in.LowBatteryThreshold > 0 && in.BatteryLevel != nil && *in.BatteryLevel < in.LowBatteryThreshold {
		desc := fmt.Sprintf("Battery Low (%.1f%% < %.1f%%). Charging.", *in.BatteryLevel, in.LowBatteryThreshold)
		if in.WasOnDueToLowBattery {
			slog.DebugContext(ctx, "battery still low, already charging",
				slog.Float64("batteryLevel", *in.BatteryLevel),
				slog.Float64("threshold", in.LowBatteryThreshold),
			)
			return Decision{
				Verdict:     types.VerdictNoChange,
				Reason:      types.ReasonLowBattery,
				Description: desc,
			}
		}
		slog.DebugContext(ctx, "battery below threshold, turning on",
			slog.Float64("batteryLevel", *in.BatteryLevel),
			slog.Float64("threshold", in.LowBatteryThreshold),
		)
		return Decision{
			Verdict:     types.VerdictTurnOn,
			Reason:      types.ReasonLowBattery,
			Description: desc,
		}
	}

	// Rule 3: with price automation disabled, the only remaining job is to
	// undo a previous price-based turn-on.
	if !in.EnableLowPrice {
		if in.WasOnDueToPrice {
			return Decision{
				Verdict:     types.VerdictTurnOff,
				Reason:      types.ReasonLowPriceDisabled,
				Description: "Low-price charging disabled. Turning off.",
			}
		}
		return Decision{
			Verdict:     types.VerdictNoChange,
			Reason:      types.ReasonLowPriceDisabled,
			Description: "Low-price charging disabled.",
		}
	}

	// Rule 4: inside a cheapest block, charge. Blocks are half-open, a block
	// stops matching the instant now reaches its end.
	nowMS := in.Now.UnixMilli()
	for _, b := range in.CheapestBlocks {
		if !b.Contains(nowMS) {
			continue
		}
		price := b.Price
		desc := fmt.Sprintf("Price Block Active (%.4f EUR/kWh until %s). Charging.",
			b.Price, time.UnixMilli(b.End).UTC().Format(time.Kitchen))
		if in.WasOnDueToPrice {
			return Decision{
				Verdict:     types.VerdictNoChange,
				Reason:      types.ReasonInCheapBlock,
				Description: desc,
				BlockPrice:  &price,
			}
		}
		slog.DebugContext(ctx, "inside cheapest block, turning on",
			slog.Float64("price", b.Price),
			slog.Int64("blockStart", b.Start),
		)
		return Decision{
			Verdict:     types.VerdictTurnOn,
			Reason:      types.ReasonInCheapBlock,
			Description: desc,
			BlockPrice:  &price,
		}
	}

	// Rule 5: no block matches; turn off only what the price rules turned on.
	if in.WasOnDueToPrice {
		slog.DebugContext(ctx, "left cheapest block, turning off")
		return Decision{
			Verdict:     types.VerdictTurnOff,
			Reason:      types.ReasonLeftCheapBlock,
			Description: "Outside cheapest price blocks. Turning off.",
		}
	}

	return Decision{
		Verdict:     types.VerdictNoChange,
		Reason:      types.ReasonIdle,
		Description: "No rule matched.",
	}
}

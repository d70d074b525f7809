package types

import "time"

// BlockDuration is the length of a single price block. Providers deliver one
// price per 15-minute market interval.
const BlockDuration = 15 * time.Minute

// PriceEntry is a single normalized entry from a price provider.
type PriceEntry struct {
	// Date is the ISO-8601 start of the interval.
	Date string `json:"date"`
	// Price is the energy price in EUR/kWh.
	Price float64 `json:"price"`
}

// PriceBlock represents the cost of electricity in one 15-minute interval.
// The interval is half-open [Start, End) and End is always Start plus
// BlockDuration. Timestamps are milliseconds since the Unix epoch.
type PriceBlock struct {
	Start int64   `json:"start"`
	End   int64   `json:"end"`
	Price float64 `json:"price"`
}

// Contains reports whether the given timestamp (ms) falls inside the block.
func (b PriceBlock) Contains(ms int64) bool {
	return ms >= b.Start && ms < b.End
}

// StartTime returns the block start as a time.Time.
func (b PriceBlock) StartTime() time.Time {
	return time.UnixMilli(b.Start)
}

// Verdict is the tri-state output of one decision cycle.
type Verdict int

const (
	VerdictNoChange Verdict = 0
	VerdictTurnOn   Verdict = 1
	VerdictTurnOff  Verdict = -1
)

func (v Verdict) String() string {
	switch v {
	case VerdictTurnOn:
		return "turnOn"
	case VerdictTurnOff:
		return "turnOff"
	default:
		return "noChange"
	}
}

// DecisionReason records why a verdict was reached.
type DecisionReason string

const (
	ReasonManualOverride      DecisionReason = "manualOverride"
	ReasonLowBattery          DecisionReason = "lowBattery"
	ReasonLowBatteryRecovered DecisionReason = "lowBatteryRecovered"
	ReasonLowPriceDisabled    DecisionReason = "lowPriceDisabled"
	ReasonInCheapBlock        DecisionReason = "inCheapBlock"
	ReasonLeftCheapBlock      DecisionReason = "leftCheapBlock"
	ReasonIdle                DecisionReason = "idle"
)

// ChargingControlState records why the load is currently on, plus the manual
// override bookkeeping. It is the single authoritative value object for this
// state: the engine mutates it and persists it after every mutation.
type ChargingControlState struct {
	// LowBatteryEnabled is true while the load is on because the vehicle
	// battery was below the configured threshold.
	LowBatteryEnabled bool `json:"lowBatteryEnabled"`
	// LowPriceEnabled is true while the load is on because now is inside a
	// cheapest price block.
	LowPriceEnabled bool `json:"lowPriceEnabled"`

	// ManualOverrideTimestamp is the ms timestamp of the last manual user
	// action. 0 means no override has been recorded. The override suppresses
	// automation for override.Duration after this instant.
	ManualOverrideTimestamp int64 `json:"manualOverrideTimestamp,omitempty"`

	// Log-dedup timestamps. These only throttle repeated log lines and carry
	// no decision semantics.
	LastOverrideLogTime   int64 `json:"lastOverrideLogTime,omitempty"`
	LastExpirationLogTime int64 `json:"lastExpirationLogTime,omitempty"`
}

// VehicleStatus is a snapshot of vehicle telemetry. All fields are optional
// because providers report different subsets.
type VehicleStatus struct {
	Timestamp    time.Time `json:"timestamp"`
	BatteryLevel *float64  `json:"batteryLevel,omitempty"` // percent, 0-100
	Charging     *bool     `json:"charging,omitempty"`
	RangeKM      *float64  `json:"rangeKM,omitempty"`
}

// ChargerInfo is static device metadata refreshed once a day.
type ChargerInfo struct {
	Model    string `json:"model"`
	Firmware string `json:"firmware"`
	MAC      string `json:"mac,omitempty"`
}

// Decision is a persisted record of one evaluation cycle.
type Decision struct {
	Timestamp      time.Time      `json:"timestamp"`
	Verdict        Verdict        `json:"verdict"`
	Reason         DecisionReason `json:"reason"`
	Description    string         `json:"description,omitempty"`
	BatteryLevel   *float64       `json:"batteryLevel,omitempty"`
	BlockPrice     *float64       `json:"blockPrice,omitempty"`
	ManualOverride bool           `json:"manualOverride,omitempty"`
	Failed         bool           `json:"failed,omitempty"`
	Error          string         `json:"error,omitempty"`
}

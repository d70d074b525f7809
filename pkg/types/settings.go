package types

import (
	"fmt"
)

// CurrentSettingsVersion is the current version of the settings struct.
// Increment this value when adding new fields that require default values.
const CurrentSettingsVersion = 2

// Settings represents the user-facing configuration stored in the database.
// These are dynamic settings that can be changed without restarting the
// engine; they are re-read at the start of every cycle.
type Settings struct {
	// LowBatteryThreshold is the battery percentage under which the charger
	// is forced on regardless of price. 0 means not configured.
	LowBatteryThreshold float64 `json:"lowBatteryThreshold"`

	// EnableLowPriceCharging enables the cheapest-window automation.
	EnableLowPriceCharging bool `json:"enableLowPriceCharging"`

	// LowPriceBlocksCount is how many 15-minute blocks per day the charger
	// should be on during the cheapest windows.
	LowPriceBlocksCount int `json:"lowPriceBlocksCount"`

	// Timezone is used for display only, never in decision logic.
	Timezone string `json:"timezone"`
}

// DefaultSettings returns the settings written on first start, before the
// user has configured anything. Low-price automation is off until the user
// opts in.
func DefaultSettings() Settings {
	return Settings{
		LowBatteryThreshold: 20,
		LowPriceBlocksCount: 8,
		Timezone:            "UTC",
	}
}

// MigrateSettings migrates the settings to the current version.
// It returns the migrated settings, a boolean indicating if changes were
// made, and an error if migration failed.
func MigrateSettings(s Settings, currentVersion int) (Settings, bool, error) {
	if currentVersion >= CurrentSettingsVersion {
		return s, false, nil
	}

	migrated := false
	// Loop through versions to apply migrations sequentially
	for version := currentVersion + 1; version <= CurrentSettingsVersion; version++ {
		switch version {
		case 1:
			// version 1: initial
			if s.LowPriceBlocksCount == 0 {
				s.LowPriceBlocksCount = 8
				migrated = true
			}
			// we don't want to assume low-price charging is wanted, so
			// EnableLowPriceCharging stays false until the user opts in
		case 2:
			// version 2: add display timezone
			if s.Timezone == "" {
				s.Timezone = "UTC"
				migrated = true
			}
		default:
			return s, false, fmt.Errorf("unknown settings version: %d", version)
		}
	}

	return s, migrated, nil
}

// Package app runs the decision engine for one device: it owns the price
// cache, polls the vehicle and the charger, and applies the controller's
// verdicts.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cheapcharge/cheapcharge/pkg/charger"
	"github.com/cheapcharge/cheapcharge/pkg/controller"
	"github.com/cheapcharge/cheapcharge/pkg/log"
	"github.com/cheapcharge/cheapcharge/pkg/metrics"
	"github.com/cheapcharge/cheapcharge/pkg/override"
	"github.com/cheapcharge/cheapcharge/pkg/pricecache"
	"github.com/cheapcharge/cheapcharge/pkg/pricesource"
	"github.com/cheapcharge/cheapcharge/pkg/schedule"
	"github.com/cheapcharge/cheapcharge/pkg/storage"
	"github.com/cheapcharge/cheapcharge/pkg/timeutil"
	"github.com/cheapcharge/cheapcharge/pkg/types"
	"github.com/cheapcharge/cheapcharge/pkg/vehicle"
	"github.com/levenlabs/go-lflag"
)

// App is the engine for a single device. All mutable state behind mu is
// written by the periodic cycles, which never overlap themselves because
// each loop runs its cycle synchronously before re-arming its timer.
type App struct {
	storage    storage.Database
	prices     pricesource.Provider
	vehicle    vehicle.Provider
	charger    charger.Controller
	controller *controller.Controller

	statusInterval time.Duration
	now            func() time.Time

	// charger state after the last completed status cycle; only that cycle
	// touches it. nil until the first cycle observed the device.
	lastChargerOn *bool

	mu          sync.Mutex
	cache       pricecache.Cache
	settings    types.Settings
	chargerInfo types.ChargerInfo
}

// Configured sets up the engine with its collaborators. A vehicle provider
// without a configured endpoint disables the battery rules.
func Configured(db storage.Database, prices *pricesource.Fallback, veh *vehicle.HTTP, chg *charger.Shelly) *App {
	a := &App{
		storage:    db,
		prices:     prices,
		charger:    chg,
		controller: controller.NewController(),
		now:        time.Now,
	}
	statusInterval := lflag.Duration("status-interval", time.Minute, "How often to poll device status and evaluate the charging decision")

	lflag.Do(func() {
		a.statusInterval = *statusInterval
		if a.statusInterval <= 0 {
			panic(fmt.Errorf("status-interval must be positive: %s", a.statusInterval))
		}
		if err := prices.Validate(); err != nil {
			panic(fmt.Errorf("failed to validate price provider: %w", err))
		}
		if veh.Enabled() {
			a.vehicle = veh
		}
	})

	return a
}

// Run loads persisted state and runs the periodic cycles until the context
// is canceled.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	a.cache = pricecache.Load(ctx, a.storage)
	a.mu.Unlock()
	metrics.CacheSize.Set(float64(len(a.cache)))

	if err := a.loadSettings(ctx); err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	var wg sync.WaitGroup
	run := func(name string, delay func(now time.Time) time.Duration, cycle func(ctx context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			timer := time.NewTimer(0)
			defer timer.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-timer.C:
				}
				start := a.now()
				cycle(ctx)
				metrics.CycleDuration.WithLabelValues(name).Observe(a.now().Sub(start).Seconds())
				timer.Reset(delay(a.now()))
			}
		}()
	}

	run("price", timeutil.Next15MinuteBoundary, a.runPriceCycle)
	run("status", func(time.Time) time.Duration { return a.statusInterval }, a.runStatusCycle)
	run("daily", func(time.Time) time.Duration { return 24 * time.Hour }, a.runDailyCycle)

	wg.Wait()
	return nil
}

// loadSettings reads the persisted settings, applies defaults when none
// exist, and migrates older versions. Migrated settings are written back.
func (a *App) loadSettings(ctx context.Context) error {
	settings, version, err := a.storage.GetSettings(ctx)
	if err != nil {
		return err
	}

	if version == 0 {
		settings = types.DefaultSettings()
		version = types.CurrentSettingsVersion
		if err := a.storage.SetSettings(ctx, settings, version); err != nil {
			return err
		}
		log.Ctx(ctx).InfoContext(ctx, "initialized default settings")
	} else if version < types.CurrentSettingsVersion {
		migrated, changed, err := types.MigrateSettings(settings, version)
		if err != nil {
			return err
		}
		if changed {
			if err := a.storage.SetSettings(ctx, migrated, types.CurrentSettingsVersion); err != nil {
				return err
			}
			log.Ctx(ctx).InfoContext(ctx, "migrated settings",
				slog.Int("fromVersion", version),
				slog.Int("toVersion", types.CurrentSettingsVersion))
		}
		settings = migrated
	}

	a.mu.Lock()
	a.settings = settings
	a.mu.Unlock()
	return nil
}

// runPriceCycle fetches prices and merges them into the cache. A failed
// fetch leaves the cache untouched; the engine keeps deciding on the blocks
// it already has until the next boundary.
func (a *App) runPriceCycle(ctx context.Context) {
	entries, err := a.prices.Fetch(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "price fetch failed, keeping cached blocks",
			slog.String("provider", a.prices.Name()),
			slog.Any("error", err))
		return
	}

	a.mu.Lock()
	stats := a.cache.Merge(ctx, entries)
	cache := a.cache
	a.mu.Unlock()

	metrics.CacheBlocksNew.Add(float64(stats.New))
	metrics.CacheBlocksPriceChanged.Add(float64(stats.PriceChanged))
	metrics.CacheSize.Set(float64(len(cache)))

	log.Ctx(ctx).InfoContext(ctx, "merged price entries",
		slog.String("provider", a.prices.Name()),
		slog.Int("new", stats.New),
		slog.Int("updated", stats.Updated),
		slog.Int("priceChanged", stats.PriceChanged),
		slog.Int("skipped", stats.Skipped),
		slog.Int("cacheSize", len(cache)))

	pricecache.Save(ctx, a.storage, cache)
}

// runStatusCycle is one full evaluation: read device state, detect manual
// changes, resolve the override, decide, apply, persist.
func (a *App) runStatusCycle(ctx context.Context) {
	now := a.now()
	nowMS := now.UnixMilli()

	state, err := a.storage.GetControlState(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to read control state, skipping cycle", slog.Any("error", err))
		return
	}

	actualOn, err := a.charger.State(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to read charger state, skipping cycle", slog.Any("error", err))
		return
	}

	// The user flipping the device manually shows up as a flip we did not
	// command. Only an observed transition starts the override window; a
	// standing mismatch (a manually switched-on charger stays mismatched
	// until automation adopts it) must never stamp a fresh window, or the
	// 15-minute override would renew itself forever. On the first cycle
	// there is no previous observation, so a mismatch with the persisted
	// flags counts as a flip. A manual off also clears the reason flags so
	// automation does not fight the user once the override expires.
	expectedOn := state.LowBatteryEnabled || state.LowPriceEnabled
	flipped := a.lastChargerOn == nil || actualOn != *a.lastChargerOn
	if actualOn != expectedOn && flipped && !override.IsActive(state.ManualOverrideTimestamp, nowMS) {
		log.Ctx(ctx).InfoContext(ctx, "manual charger change detected, starting override",
			slog.Bool("chargerOn", actualOn),
			slog.Int("overrideMinutes", int(override.Duration.Minutes())))
		state.ManualOverrideTimestamp = nowMS
		if !actualOn {
			state.LowBatteryEnabled = false
			state.LowPriceEnabled = false
		}
	}

	overrideActive := override.IsActive(state.ManualOverrideTimestamp, nowMS)
	if overrideActive {
		if override.ShouldLogRemaining(state.LastOverrideLogTime, nowMS) {
			log.Ctx(ctx).InfoContext(ctx, "manual override active",
				slog.Int("remainingMinutes", override.RemainingMinutes(state.ManualOverrideTimestamp, nowMS)))
			state.LastOverrideLogTime = nowMS
		}
	} else if state.ManualOverrideTimestamp != 0 {
		expiration := override.ExpirationTime(state.ManualOverrideTimestamp)
		if override.ShouldLogExpiration(state.LastExpirationLogTime, expiration) {
			log.Ctx(ctx).InfoContext(ctx, "manual override expired, automation resumed")
			state.LastExpirationLogTime = nowMS
		}
	}

	var batteryLevel *float64
	if a.vehicle != nil {
		status, err := a.vehicle.Status(ctx)
		if err != nil {
			// decide without the battery rules rather than skipping the cycle
			log.Ctx(ctx).WarnContext(ctx, "failed to read vehicle status", slog.Any("error", err))
		} else {
			batteryLevel = status.BatteryLevel
		}
	}

	a.mu.Lock()
	settings := a.settings
	cheapest := schedule.CheapestUpcoming(a.cache, settings.LowPriceBlocksCount, now)
	a.mu.Unlock()

	// Recovery from a low battery happens before the controller runs: once
	// the level is back at or above the threshold the forced charge ends,
	// unless an override is holding the state.
	if state.LowBatteryEnabled && !overrideActive &&
		batteryLevel != nil && settings.LowBatteryThreshold > 0 &&
		*batteryLevel >= settings.LowBatteryThreshold {
		decision := types.Decision{
			Timestamp:    now,
			Verdict:      types.VerdictTurnOff,
			Reason:       types.ReasonLowBatteryRecovered,
			Description:  fmt.Sprintf("Battery recovered (%.1f%% >= %.1f%%). Turning off.", *batteryLevel, settings.LowBatteryThreshold),
			BatteryLevel: batteryLevel,
		}
		deviceOn := actualOn
		if err := a.charger.SetOn(ctx, false); err != nil {
			decision.Failed = true
			decision.Error = err.Error()
			log.Ctx(ctx).ErrorContext(ctx, "failed to turn charger off after battery recovery", slog.Any("error", err))
		} else {
			state.LowBatteryEnabled = false
			deviceOn = false
		}
		a.finishCycle(ctx, state, deviceOn, decision)
		return
	}

	result := a.controller.Decide(ctx, controller.Input{
		CheapestBlocks:       cheapest,
		Now:                  now,
		EnableLowPrice:       settings.EnableLowPriceCharging,
		BatteryLevel:         batteryLevel,
		LowBatteryThreshold:  settings.LowBatteryThreshold,
		ManualOverrideActive: overrideActive,
		WasOnDueToPrice:      state.LowPriceEnabled,
		WasOnDueToLowBattery: state.LowBatteryEnabled,
	})

	decision := types.Decision{
		Timestamp:      now,
		Verdict:        result.Verdict,
		Reason:         result.Reason,
		Description:    result.Description,
		BatteryLevel:   batteryLevel,
		BlockPrice:     result.BlockPrice,
		ManualOverride: overrideActive,
	}

	deviceOn := actualOn
	switch result.Verdict {
	case types.VerdictTurnOn:
		if err := a.charger.SetOn(ctx, true); err != nil {
			decision.Failed = true
			decision.Error = err.Error()
			log.Ctx(ctx).ErrorContext(ctx, "failed to turn charger on", slog.Any("error", err))
			break
		}
		deviceOn = true
		// the reason flags only flip once the device confirmed the switch
		switch result.Reason {
		case types.ReasonLowBattery:
			state.LowBatteryEnabled = true
		case types.ReasonInCheapBlock:
			state.LowPriceEnabled = true
		}
		log.Ctx(ctx).InfoContext(ctx, "charger turned on",
			slog.String("reason", string(result.Reason)),
			slog.String("description", result.Description))
	case types.VerdictTurnOff:
		if err := a.charger.SetOn(ctx, false); err != nil {
			decision.Failed = true
			decision.Error = err.Error()
			log.Ctx(ctx).ErrorContext(ctx, "failed to turn charger off", slog.Any("error", err))
			break
		}
		deviceOn = false
		switch result.Reason {
		case types.ReasonLowPriceDisabled, types.ReasonLeftCheapBlock:
			state.LowPriceEnabled = false
		}
		log.Ctx(ctx).InfoContext(ctx, "charger turned off",
			slog.String("reason", string(result.Reason)),
			slog.String("description", result.Description))
	}

	a.finishCycle(ctx, state, deviceOn, decision)
}

// finishCycle remembers the device state for the next cycle's manual-flip
// detection, persists the control state and records the decision. Only
// state changes and failures are recorded; a noChange verdict every minute
// would drown the history.
func (a *App) finishCycle(ctx context.Context, state types.ChargingControlState, deviceOn bool, decision types.Decision) {
	a.lastChargerOn = &deviceOn

	if err := a.storage.SetControlState(ctx, state); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to persist control state", slog.Any("error", err))
	}

	metrics.DecisionsTotal.WithLabelValues(decision.Verdict.String()).Inc()

	if decision.Verdict == types.VerdictNoChange && !decision.Failed {
		return
	}
	if err := a.storage.InsertDecision(ctx, decision); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to record decision", slog.Any("error", err))
	}
}

// runDailyCycle refreshes the charger metadata and re-reads the settings so
// edits made directly in storage are picked up without a restart.
func (a *App) runDailyCycle(ctx context.Context) {
	info, err := a.charger.Info(ctx)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to refresh charger info", slog.Any("error", err))
	} else {
		a.mu.Lock()
		a.chargerInfo = info
		a.mu.Unlock()
		log.Ctx(ctx).InfoContext(ctx, "refreshed charger info",
			slog.String("model", info.Model),
			slog.String("firmware", info.Firmware))
	}

	if err := a.loadSettings(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to refresh settings", slog.Any("error", err))
	}
}

// Snapshot returns the current cache, settings and charger info for the
// status API.
func (a *App) Snapshot() (pricecache.Cache, types.Settings, types.ChargerInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cache := make(pricecache.Cache, len(a.cache))
	for k, v := range a.cache {
		cache[k] = v
	}
	return cache, a.settings, a.chargerInfo
}

// Package vehicle reads vehicle telemetry. The engine only needs the battery
// level; everything else is carried along for the status API.
package vehicle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cheapcharge/cheapcharge/pkg/common"
	"github.com/cheapcharge/cheapcharge/pkg/log"
	"github.com/cheapcharge/cheapcharge/pkg/types"
	"github.com/levenlabs/go-lflag"
)

// Provider defines the interface for reading vehicle telemetry.
type Provider interface {
	// Status returns the current vehicle snapshot. Fields the backend does
	// not report are left nil.
	Status(ctx context.Context) (types.VehicleStatus, error)
}

// HTTP reads telemetry from a JSON status endpoint, typically a local
// gateway bridging the vehicle's cloud API.
type HTTP struct {
	statusURL string
	authToken string
	client    *http.Client
}

// Configured sets up flags for the vehicle provider and returns the instance.
// An empty -vehicle-status-url disables the provider; the engine then skips
// every battery-level rule.
func Configured() *HTTP {
	h := &HTTP{
		client: common.HTTPClient(10 * time.Second),
	}
	statusURL := lflag.String("vehicle-status-url", "", "URL of the vehicle status JSON endpoint (empty disables battery rules)")
	token := lflag.String("vehicle-auth-token", "", "Optional bearer token for the vehicle status endpoint")

	lflag.Do(func() {
		h.statusURL = *statusURL
		h.authToken = *token

		if err := h.Validate(); err != nil {
			panic(fmt.Errorf("failed to validate vehicle provider: %w", err))
		}
	})

	return h
}

// Validate ensures the configuration is valid.
func (h *HTTP) Validate() error {
	if h.statusURL == "" {
		return nil
	}
	if _, err := url.Parse(h.statusURL); err != nil {
		return fmt.Errorf("failed to parse vehicle-status-url (%s): %w", h.statusURL, err)
	}
	return nil
}

// Enabled reports whether a status endpoint is configured.
func (h *HTTP) Enabled() bool {
	return h.statusURL != ""
}

type statusResponse struct {
	BatteryLevel *float64 `json:"batteryLevel"`
	Charging     *bool    `json:"charging"`
	RangeKM      *float64 `json:"rangeKM"`
}

// Status implements Provider.
func (h *HTTP) Status(ctx context.Context) (types.VehicleStatus, error) {
	if !h.Enabled() {
		return types.VehicleStatus{}, fmt.Errorf("vehicle provider is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", h.statusURL, nil)
	if err != nil {
		return types.VehicleStatus{}, fmt.Errorf("failed to create request: %w", err)
	}
	if h.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+h.authToken)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return types.VehicleStatus{}, fmt.Errorf("failed to fetch vehicle status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.VehicleStatus{}, fmt.Errorf("vehicle api returned status: %d", resp.StatusCode)
	}

	var data statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return types.VehicleStatus{}, fmt.Errorf("failed to decode vehicle status: %w", err)
	}

	status := types.VehicleStatus{
		Timestamp:    time.Now(),
		BatteryLevel: data.BatteryLevel,
		Charging:     data.Charging,
		RangeKM:      data.RangeKM,
	}
	if status.BatteryLevel != nil {
		log.Ctx(ctx).DebugContext(ctx, "got vehicle status", slog.Float64("batteryLevel", *status.BatteryLevel))
	} else {
		log.Ctx(ctx).DebugContext(ctx, "got vehicle status without battery level")
	}
	return status, nil
}

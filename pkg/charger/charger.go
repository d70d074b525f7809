// Package charger drives the controllable load, typically a smart plug or
// wallbox relay sitting between the grid and the vehicle charger.
package charger

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

// Controller defines the interface for driving the load.
type Controller interface {
	// SetOn switches the load on or off.
	SetOn(ctx context.Context, on bool) error

	// State returns whether the load is currently on. This is read from the
	// device, not from the engine's bookkeeping, so a manual flip on the
	// device itself is visible here.
	State(ctx context.Context) (bool, error)

	// Info returns static device metadata.
	Info(ctx context.Context) (types.ChargerInfo, error)
}

// Shelly implements Controller for Shelly-style smart plugs exposing the
// gen-1 HTTP relay API on the local network.
type Shelly struct {
	baseURL string
	client  *http.Client
}

// Configured sets up flags for the charger and returns the instance.
func Configured() *Shelly {
	s := &Shelly{
		client: common.HTTPClient(10 * time.Second),
	}
	baseURL := lflag.String("charger-url", "", "Base URL of the charger smart plug, e.g. http://192.168.1.40")

	lflag.Do(func() {
		s.baseURL = *baseURL

		if err := s.Validate(); err != nil {
			panic(fmt.Errorf("failed to validate charger: %w", err))
		}
	})

	return s
}

// Validate ensures the configuration is valid.
func (s *Shelly) Validate() error {
	if s.baseURL == "" {
		return fmt.Errorf("charger-url is required")
	}
	if _, err := url.Parse(s.baseURL); err != nil {
		return fmt.Errorf("failed to parse charger-url (%s): %w", s.baseURL, err)
	}
	return nil
}

type relayResponse struct {
	IsOn bool `json:"ison"`
}

// SetOn implements Controller.
func (s *Shelly) SetOn(ctx context.Context, on bool) error {
	turn := "off"
	if on {
		turn = "on"
	}
	log.Ctx(ctx).DebugContext(ctx, "switching charger", slog.String("turn", turn))

	var relay relayResponse
	if err := s.get(ctx, "/relay/0?turn="+turn, &relay); err != nil {
		return err
	}
	if relay.IsOn != on {
		return fmt.Errorf("charger did not switch: wanted on=%t, got on=%t", on, relay.IsOn)
	}
	return nil
}

// State implements Controller.
func (s *Shelly) State(ctx context.Context) (bool, error) {
	var relay relayResponse
	if err := s.get(ctx, "/relay/0", &relay); err != nil {
		return false, err
	}
	return relay.IsOn, nil
}

type shellyInfo struct {
	Type string `json:"type"`
	FW   string `json:"fw"`
	MAC  string `json:"mac"`
}

// Info implements Controller.
func (s *Shelly) Info(ctx context.Context) (types.ChargerInfo, error) {
	var info shellyInfo
	if err := s.get(ctx, "/shelly", &info); err != nil {
		return types.ChargerInfo{}, err
	}
	return types.ChargerInfo{
		Model:    info.Type,
		Firmware: info.FW,
		MAC:      info.MAC,
	}, nil
}

func (s *Shelly) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach charger: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("charger returned status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode charger response: %w", err)
	}
	return nil
}

package pricesource

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
	"github.com/sony/gobreaker/v2"
)

// Awattar implements the Provider interface for the aWATTar market data API.
// The API serves day-ahead spot prices in EUR/MWh per 15-minute interval for
// today and, once published, tomorrow.
type Awattar struct {
	apiURL  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]types.PriceEntry]
}

// configuredAwattar sets up flags for aWATTar and returns the instance.
func configuredAwattar() *Awattar {
	a := &Awattar{
		client:  common.HTTPClient(10 * time.Second),
		breaker: newBreaker("awattar"),
	}
	apiURL := lflag.String("awattar-api-url", "https://api.awattar.de/v1/marketdata", "URL for the aWATTar market data API")

	lflag.Do(func() {
		a.apiURL = *apiURL
	})

	return a
}

// Validate ensures the configuration is valid.
func (a *Awattar) Validate() error {
	if a.apiURL == "" {
		return fmt.Errorf("awattar-api-url is required")
	}
	if _, err := url.Parse(a.apiURL); err != nil {
		return fmt.Errorf("failed to parse awattar url (%s): %w", a.apiURL, err)
	}
	return nil
}

// Name implements Provider.
func (a *Awattar) Name() string { return "awattar" }

type awattarEntry struct {
	StartTimestamp int64   `json:"start_timestamp"` // ms since epoch
	EndTimestamp   int64   `json:"end_timestamp"`
	MarketPrice    float64 `json:"marketprice"` // EUR/MWh
	Unit           string  `json:"unit"`
}

type awattarResponse struct {
	Data []awattarEntry `json:"data"`
}

// Fetch implements Provider. Without range parameters the API returns today
// from midnight plus tomorrow once the day-ahead auction has published.
func (a *Awattar) Fetch(ctx context.Context) ([]types.PriceEntry, error) {
	return a.breaker.Execute(func() ([]types.PriceEntry, error) {
		return a.fetch(ctx)
	})
}

func (a *Awattar) fetch(ctx context.Context) ([]types.PriceEntry, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", a.apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	log.Ctx(ctx).DebugContext(ctx, "fetching prices from awattar", slog.String("url", a.apiURL))

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("awattar api returned status: %d", resp.StatusCode)
	}

	var data awattarResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	entries := make([]types.PriceEntry, 0, len(data.Data))
	for _, item := range data.Data {
		if item.StartTimestamp <= 0 {
			log.Ctx(ctx).WarnContext(ctx, "skipping awattar entry with invalid timestamp",
				slog.Int64("startTimestamp", item.StartTimestamp))
			continue
		}
		entries = append(entries, types.PriceEntry{
			Date: time.UnixMilli(item.StartTimestamp).UTC().Format(time.RFC3339),
			// EUR/MWh to EUR/kWh
			Price: item.MarketPrice / 1000.0,
		})
	}

	log.Ctx(ctx).DebugContext(ctx, "fetched awattar prices", slog.Int("count", len(entries)))
	return entries, nil
}

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

// SpotHinta implements the Provider interface for the spot-hinta.fi API,
// which serves Nord Pool area prices in EUR/kWh per 15-minute interval.
type SpotHinta struct {
	apiURL       string
	priceWithTax bool
	client       *http.Client
	breaker      *gobreaker.CircuitBreaker[[]types.PriceEntry]
}

// configuredSpotHinta sets up flags for spot-hinta.fi and returns the instance.
func configuredSpotHinta() *SpotHinta {
	s := &SpotHinta{
		client:  common.HTTPClient(10 * time.Second),
		breaker: newBreaker("spothinta"),
	}
	apiURL := lflag.String("spothinta-api-url", "https://api.spot-hinta.fi/TodayAndDayForward", "URL for the spot-hinta.fi API")
	withTax := lflag.Bool("spothinta-price-with-tax", false, "Use the VAT-inclusive price from spot-hinta.fi")

	lflag.Do(func() {
		s.apiURL = *apiURL
		s.priceWithTax = *withTax
	})

	return s
}

// Validate ensures the configuration is valid.
func (s *SpotHinta) Validate() error {
	if s.apiURL == "" {
		return fmt.Errorf("spothinta-api-url is required")
	}
	if _, err := url.Parse(s.apiURL); err != nil {
		return fmt.Errorf("failed to parse spothinta url (%s): %w", s.apiURL, err)
	}
	return nil
}

// Name implements Provider.
func (s *SpotHinta) Name() string { return "spothinta" }

type spotHintaEntry struct {
	DateTime     string  `json:"DateTime"`
	PriceNoTax   float64 `json:"PriceNoTax"`
	PriceWithTax float64 `json:"PriceWithTax"`
}

// Fetch implements Provider.
func (s *SpotHinta) Fetch(ctx context.Context) ([]types.PriceEntry, error) {
	return s.breaker.Execute(func() ([]types.PriceEntry, error) {
		return s.fetch(ctx)
	})
}

func (s *SpotHinta) fetch(ctx context.Context) ([]types.PriceEntry, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	log.Ctx(ctx).DebugContext(ctx, "fetching prices from spothinta", slog.String("url", s.apiURL))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spothinta api returned status: %d", resp.StatusCode)
	}

	var data []spotHintaEntry
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	entries := make([]types.PriceEntry, 0, len(data))
	for _, item := range data {
		// entries carry a zone offset; normalize to UTC
		t, err := time.Parse(time.RFC3339, item.DateTime)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "skipping spothinta entry with unparseable time",
				slog.String("dateTime", item.DateTime), slog.Any("error", err))
			continue
		}
		price := item.PriceNoTax
		if s.priceWithTax {
			price = item.PriceWithTax
		}
		entries = append(entries, types.PriceEntry{
			Date:  t.UTC().Format(time.RFC3339),
			Price: price,
		})
	}

	log.Ctx(ctx).DebugContext(ctx, "fetched spothinta prices", slog.Int("count", len(entries)))
	return entries, nil
}

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cheapcharge/cheapcharge/pkg/types"
	"github.com/levenlabs/go-lflag"
)

// Database defines the interface for persisting the engine's state: user
// settings, the price block cache, the charging control state, and the
// decision history.
type Database interface {
	// Settings
	GetSettings(ctx context.Context) (types.Settings, int, error)
	SetSettings(ctx context.Context, settings types.Settings, version int) error

	// Price block cache, persisted as a whole after every successful fetch.
	GetPriceBlocks(ctx context.Context) (map[int64]types.PriceBlock, error)
	SetPriceBlocks(ctx context.Context, blocks map[int64]types.PriceBlock) error

	// Charging control state (reason flags + override bookkeeping).
	GetControlState(ctx context.Context) (types.ChargingControlState, error)
	SetControlState(ctx context.Context, state types.ChargingControlState) error

	// Decision history for observability.
	InsertDecision(ctx context.Context, decision types.Decision) error
	GetDecisionHistory(ctx context.Context, start, end time.Time) ([]types.Decision, error)

	// Lifecycle
	Close() error
}

// Configured sets up the storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "file", "Storage provider to use (available: file, firestore)")

	var p struct{ Database }

	f := configuredFile()
	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "file":
			if err := f.Validate(); err != nil {
				panic(fmt.Sprintf("file storage validation failed: %v", err))
			}
			p.Database = f
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}

package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cheapcharge/cheapcharge/pkg/types"
	"github.com/levenlabs/go-lflag"
)

const (
	settingsFile  = "settings.json"
	blocksFile    = "blocks.json"
	controlFile   = "control.json"
	decisionsFile = "decisions.jsonl"
)

// FileProvider implements Database on top of plain JSON files in a state
// directory. It is the default backend for a single-device install: no
// external services, survives restarts, and a partially written file can
// never be observed because every write goes through a rename.
type FileProvider struct {
	dir string

	mu sync.Mutex
}

// configuredFile sets up the file provider and registers its flags.
func configuredFile() *FileProvider {
	f := &FileProvider{}
	dir := lflag.String("state-dir", "/var/lib/cheapcharge", "Directory for persisted engine state")

	lflag.Do(func() {
		f.dir = *dir
	})

	return f
}

// NewFileProvider returns a provider rooted at dir. Used directly in tests;
// production wiring goes through Configured.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

// Validate checks if the provider is properly configured.
func (f *FileProvider) Validate() error {
	if f.dir == "" {
		return fmt.Errorf("state-dir is required")
	}
	return nil
}

// Close implements Database. There is nothing to release.
func (f *FileProvider) Close() error {
	return nil
}

// settingsDoc is the on-disk envelope for settings. The version travels with
// the payload so migrations can run on load.
type settingsDoc struct {
	Version  int            `json:"version"`
	Settings types.Settings `json:"settings"`
}

func (f *FileProvider) GetSettings(ctx context.Context) (types.Settings, int, error) {
	var doc settingsDoc
	if err := f.readJSON(settingsFile, &doc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return types.Settings{}, 0, nil
		}
		return types.Settings{}, 0, fmt.Errorf("failed to read settings: %w", err)
	}
	return doc.Settings, doc.Version, nil
}

func (f *FileProvider) SetSettings(ctx context.Context, settings types.Settings, version int) error {
	if err := f.writeJSON(settingsFile, settingsDoc{Version: version, Settings: settings}); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// GetPriceBlocks loads the persisted price cache. A missing file yields an
// empty map. Unknown fields inside blocks are ignored on load so newer
// writers stay compatible with older readers.
func (f *FileProvider) GetPriceBlocks(ctx context.Context) (map[int64]types.PriceBlock, error) {
	blocks := make(map[int64]types.PriceBlock)
	if err := f.readJSON(blocksFile, &blocks); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return blocks, nil
		}
		return nil, fmt.Errorf("failed to read price blocks: %w", err)
	}
	return blocks, nil
}

func (f *FileProvider) SetPriceBlocks(ctx context.Context, blocks map[int64]types.PriceBlock) error {
	if err := f.writeJSON(blocksFile, blocks); err != nil {
		return fmt.Errorf("failed to save price blocks: %w", err)
	}
	return nil
}

func (f *FileProvider) GetControlState(ctx context.Context) (types.ChargingControlState, error) {
	var state types.ChargingControlState
	if err := f.readJSON(controlFile, &state); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return types.ChargingControlState{}, nil
		}
		return types.ChargingControlState{}, fmt.Errorf("failed to read control state: %w", err)
	}
	return state, nil
}

func (f *FileProvider) SetControlState(ctx context.Context, state types.ChargingControlState) error {
	if err := f.writeJSON(controlFile, state); err != nil {
		return fmt.Errorf("failed to save control state: %w", err)
	}
	return nil
}

// InsertDecision appends one JSON line to the decision log.
func (f *FileProvider) InsertDecision(ctx context.Context, decision types.Decision) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(f.dir, decisionsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open decision log: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	if err := enc.Encode(decision); err != nil {
		return fmt.Errorf("failed to append decision: %w", err)
	}
	return nil
}

// GetDecisionHistory scans the decision log for records within [start, end).
// Lines that fail to parse are skipped so one corrupt record cannot hide the
// rest of the history.
func (f *FileProvider) GetDecisionHistory(ctx context.Context, start, end time.Time) ([]types.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(filepath.Join(f.dir, decisionsFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open decision log: %w", err)
	}
	defer file.Close()

	var decisions []types.Decision
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var d types.Decision
		if err := json.Unmarshal(scanner.Bytes(), &d); err != nil {
			continue
		}
		if d.Timestamp.Before(start) || !d.Timestamp.Before(end) {
			continue
		}
		decisions = append(decisions, d)
	}
	if err := scanner.Err(); err != nil {
		return decisions, fmt.Errorf("failed to scan decision log: %w", err)
	}
	return decisions, nil
}

func (f *FileProvider) readJSON(name string, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(f.dir, name))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// writeJSON writes to a temp file in the same directory and renames it into
// place, so readers never observe a torn write.
func (f *FileProvider) writeJSON(name string, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, name+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(f.dir, name))
}

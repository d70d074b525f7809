package storagemock

import (
	"context"
	"time"

	"github.com/cheapcharge/cheapcharge/pkg/storage"
	"github.com/cheapcharge/cheapcharge/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) GetSettings(ctx context.Context) (types.Settings, int, error) {
	args := m.Called(ctx)
	if len(args) > 0 {
		return args.Get(0).(types.Settings), args.Int(1), args.Error(2)
	}
	return types.Settings{}, 0, nil
}

func (m *MockDatabase) SetSettings(ctx context.Context, settings types.Settings, version int) error {
	args := m.Called(ctx, settings, version)
	return args.Error(0)
}

func (m *MockDatabase) GetPriceBlocks(ctx context.Context) (map[int64]types.PriceBlock, error) {
	args := m.Called(ctx)
	if len(args) > 0 {
		blocks, _ := args.Get(0).(map[int64]types.PriceBlock)
		return blocks, args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) SetPriceBlocks(ctx context.Context, blocks map[int64]types.PriceBlock) error {
	args := m.Called(ctx, blocks)
	return args.Error(0)
}

func (m *MockDatabase) GetControlState(ctx context.Context) (types.ChargingControlState, error) {
	args := m.Called(ctx)
	if len(args) > 0 {
		return args.Get(0).(types.ChargingControlState), args.Error(1)
	}
	return types.ChargingControlState{}, nil
}

func (m *MockDatabase) SetControlState(ctx context.Context, state types.ChargingControlState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockDatabase) InsertDecision(ctx context.Context, decision types.Decision) error {
	args := m.Called(ctx, decision)
	return args.Error(0)
}

func (m *MockDatabase) GetDecisionHistory(ctx context.Context, start, end time.Time) ([]types.Decision, error) {
	args := m.Called(ctx, start, end)
	if len(args) > 0 {
		decisions, _ := args.Get(0).([]types.Decision)
		return decisions, args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}

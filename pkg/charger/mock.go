package charger

import (
	"context"

	"github.com/cheapcharge/cheapcharge/pkg/types"
	"github.com/stretchr/testify/mock"
)

// MockController is a testify mock of Controller.
type MockController struct {
	mock.Mock
}

var _ Controller = (*MockController)(nil)

// SetOn implements Controller.
func (m *MockController) SetOn(ctx context.Context, on bool) error {
	args := m.Called(ctx, on)
	return args.Error(0)
}

// State implements Controller.
func (m *MockController) State(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

// Info implements Controller.
func (m *MockController) Info(ctx context.Context) (types.ChargerInfo, error) {
	args := m.Called(ctx)
	info, _ := args.Get(0).(types.ChargerInfo)
	return info, args.Error(1)
}

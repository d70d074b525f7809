package vehicle

import (
	"context"

	"github.com/cheapcharge/cheapcharge/pkg/types"
	"github.com/stretchr/testify/mock"
)

// MockProvider is a testify mock of Provider.
type MockProvider struct {
	mock.Mock
}

var _ Provider = (*MockProvider)(nil)

// Status implements Provider.
func (m *MockProvider) Status(ctx context.Context) (types.VehicleStatus, error) {
	args := m.Called(ctx)
	status, _ := args.Get(0).(types.VehicleStatus)
	return status, args.Error(1)
}

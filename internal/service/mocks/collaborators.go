package mocks

import (
	"context"
	"time"

	"taskbot/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) IsMember(ctx context.Context, userID int64, channelID string) (bool, error) {
	args := m.Called(ctx, userID, channelID)
	return args.Bool(0), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, event model.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockSettingsCache struct {
	mock.Mock
}

func (m *MockSettingsCache) LoadSettings(ctx context.Context, dst any) (bool, error) {
	args := m.Called(ctx, dst)
	return args.Bool(0), args.Error(1)
}

func (m *MockSettingsCache) StoreSettings(ctx context.Context, snapshot any, ttl time.Duration) error {
	args := m.Called(ctx, snapshot, ttl)
	return args.Error(0)
}

func (m *MockSettingsCache) InvalidateSettings(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, name, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockLocker) Unlock(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

package mocks

import (
	"context"
	"time"

	"taskbot/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockRepository implements every repository interface of the service
// package. Transaction runs the callback directly.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Transaction(ctx context.Context, t func(ctx context.Context) error) error {
	return t(ctx)
}

func (m *MockRepository) CreateUser(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockRepository) LockUser(ctx context.Context, telegramID int64) (*model.User, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockRepository) IncrementTaskCounters(ctx context.Context, telegramID int64, earned decimal.Decimal) (int, error) {
	args := m.Called(ctx, telegramID, earned)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) AppendBalanceChange(
	ctx context.Context,
	telegramID int64,
	delta decimal.Decimal,
	reason model.BalanceReason,
	comment string,
) (*model.BalanceLog, error) {
	args := m.Called(ctx, telegramID, delta, reason, comment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BalanceLog), args.Error(1)
}

func (m *MockRepository) ListBalanceLogs(ctx context.Context, telegramID int64, limit int) ([]*model.BalanceLog, error) {
	args := m.Called(ctx, telegramID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.BalanceLog), args.Error(1)
}

func (m *MockRepository) CreateTask(ctx context.Context, t *model.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockRepository) UpdateTask(ctx context.Context, t *model.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockRepository) LockTask(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

func (m *MockRepository) CountOpenAttempts(ctx context.Context, taskID uuid.UUID) (int, error) {
	args := m.Called(ctx, taskID)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) GetTask(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

func (m *MockRepository) ListTasks(ctx context.Context, activeOnly bool) ([]*model.Task, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Task), args.Error(1)
}

func (m *MockRepository) ListUserTasks(ctx context.Context, telegramID int64) ([]*model.UserTask, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.UserTask), args.Error(1)
}

func (m *MockRepository) CreateAttempt(ctx context.Context, a *model.Attempt) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockRepository) GetAttempt(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Attempt), args.Error(1)
}

func (m *MockRepository) LockAttempt(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Attempt), args.Error(1)
}

func (m *MockRepository) GetActiveAttempt(ctx context.Context, telegramID int64, taskID uuid.UUID) (*model.Attempt, error) {
	args := m.Called(ctx, telegramID, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Attempt), args.Error(1)
}

func (m *MockRepository) CompletedStats(ctx context.Context, telegramID int64, taskID uuid.UUID) (int, *time.Time, error) {
	args := m.Called(ctx, telegramID, taskID)
	var last *time.Time
	if args.Get(1) != nil {
		last = args.Get(1).(*time.Time)
	}
	return args.Int(0), last, args.Error(2)
}

func (m *MockRepository) TransitionAttempt(ctx context.Context, a *model.Attempt, from model.AttemptStatus) error {
	args := m.Called(ctx, a, from)
	return args.Error(0)
}

func (m *MockRepository) DeleteInProgressAttempt(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) ListPendingAttempts(ctx context.Context, search string, limit, offset int) ([]*model.PendingAttempt, error) {
	args := m.Called(ctx, search, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.PendingAttempt), args.Error(1)
}

func (m *MockRepository) GetUserRank(ctx context.Context, telegramID int64) (*model.UserRank, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserRank), args.Error(1)
}

func (m *MockRepository) EnsureUserRank(ctx context.Context, telegramID int64, stoneBonus decimal.Decimal) (*model.UserRank, error) {
	args := m.Called(ctx, telegramID, stoneBonus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserRank), args.Error(1)
}

func (m *MockRepository) SaveUserRank(ctx context.Context, rank *model.UserRank) error {
	args := m.Called(ctx, rank)
	return args.Error(0)
}

func (m *MockRepository) ListExpiredPlatinum(ctx context.Context, now time.Time) ([]int64, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockRepository) GetRankSettings(ctx context.Context) (*model.RankSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RankSettings), args.Error(1)
}

func (m *MockRepository) UpdateRankSettings(ctx context.Context, s model.RankSettings) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockRepository) GetSettings(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockRepository) SetSetting(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockRepository) CreatePremiumRequest(ctx context.Context, req *model.PremiumRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockRepository) GetPremiumRequest(ctx context.Context, id uuid.UUID) (*model.PremiumRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PremiumRequest), args.Error(1)
}

func (m *MockRepository) UpdatePremiumRequest(ctx context.Context, req *model.PremiumRequest, from model.PremiumStatus) error {
	args := m.Called(ctx, req, from)
	return args.Error(0)
}

func (m *MockRepository) ListPremiumRequests(ctx context.Context, filter model.PremiumFilter) ([]*model.PremiumRequest, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.PremiumRequest), args.Error(1)
}

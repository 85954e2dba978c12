package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskbot/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrTaskNotFound      = fmt.Errorf("task %w", ErrNotFound)
	ErrUserNotFound      = fmt.Errorf("user %w", ErrNotFound)
	ErrAttemptNotFound   = fmt.Errorf("attempt %w", ErrNotFound)
	ErrRequestNotFound   = fmt.Errorf("premium request %w", ErrNotFound)
	ErrInvalidState      = errors.New("operation is not allowed in the current state")
	ErrLimitReached      = errors.New("task completion limit reached")
	ErrAlreadyActive     = errors.New("task is already in progress")
	ErrCooldown          = errors.New("task is on cooldown")
	ErrForbidden         = errors.New("rank does not allow this operation")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrValidation        = errors.New("validation failed")
)

// InsufficientFundsError carries the amounts of a failed balance payment.
type InsufficientFundsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
	Shortfall decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required %s, available %s, short by %s",
		e.Required.StringFixed(2), e.Available.StringFixed(2), e.Shortfall.StringFixed(2))
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

type Transactor interface {
	Transaction(ctx context.Context, t func(ctx context.Context) error) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	LockUser(ctx context.Context, telegramID int64) (*model.User, error)
	IncrementTaskCounters(ctx context.Context, telegramID int64, earned decimal.Decimal) (int, error)
}

type LedgerRepository interface {
	AppendBalanceChange(ctx context.Context, telegramID int64, delta decimal.Decimal, reason model.BalanceReason, comment string) (*model.BalanceLog, error)
	ListBalanceLogs(ctx context.Context, telegramID int64, limit int) ([]*model.BalanceLog, error)
}

type TaskRepository interface {
	CreateTask(ctx context.Context, t *model.Task) error
	UpdateTask(ctx context.Context, t *model.Task) error
	GetTask(ctx context.Context, id uuid.UUID) (*model.Task, error)
	LockTask(ctx context.Context, id uuid.UUID) (*model.Task, error)
	CountOpenAttempts(ctx context.Context, taskID uuid.UUID) (int, error)
	ListTasks(ctx context.Context, activeOnly bool) ([]*model.Task, error)
	ListUserTasks(ctx context.Context, telegramID int64) ([]*model.UserTask, error)
}

type AttemptRepository interface {
	CreateAttempt(ctx context.Context, a *model.Attempt) error
	GetAttempt(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	LockAttempt(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	GetActiveAttempt(ctx context.Context, telegramID int64, taskID uuid.UUID) (*model.Attempt, error)
	CompletedStats(ctx context.Context, telegramID int64, taskID uuid.UUID) (int, *time.Time, error)
	TransitionAttempt(ctx context.Context, a *model.Attempt, from model.AttemptStatus) error
	DeleteInProgressAttempt(ctx context.Context, id uuid.UUID) error
	ListPendingAttempts(ctx context.Context, search string, limit, offset int) ([]*model.PendingAttempt, error)
}

type RankRepository interface {
	GetUserRank(ctx context.Context, telegramID int64) (*model.UserRank, error)
	EnsureUserRank(ctx context.Context, telegramID int64, stoneBonus decimal.Decimal) (*model.UserRank, error)
	SaveUserRank(ctx context.Context, rank *model.UserRank) error
	ListExpiredPlatinum(ctx context.Context, now time.Time) ([]int64, error)
}

type SettingsRepository interface {
	GetRankSettings(ctx context.Context) (*model.RankSettings, error)
	UpdateRankSettings(ctx context.Context, s model.RankSettings) error
	GetSettings(ctx context.Context) (map[string]string, error)
	SetSetting(ctx context.Context, key, value string) error
}

type PremiumRepository interface {
	CreatePremiumRequest(ctx context.Context, req *model.PremiumRequest) error
	GetPremiumRequest(ctx context.Context, id uuid.UUID) (*model.PremiumRequest, error)
	UpdatePremiumRequest(ctx context.Context, req *model.PremiumRequest, from model.PremiumStatus) error
	ListPremiumRequests(ctx context.Context, filter model.PremiumFilter) ([]*model.PremiumRequest, error)
}

// RankStore is what the rank engine and the reward engine need from storage.
type RankStore interface {
	Transactor
	UserRepository
	LedgerRepository
	RankRepository
}

type TaskStore interface {
	Transactor
	TaskRepository
}

type AttemptStore interface {
	RankStore
	TaskRepository
	AttemptRepository
}

type PremiumStore interface {
	RankStore
	PremiumRepository
}

// Oracle answers whether a user currently belongs to a channel.
type Oracle interface {
	IsMember(ctx context.Context, userID int64, channelID string) (bool, error)
}

type Notifier interface {
	Notify(ctx context.Context, event model.Event) error
}

// ConfigSource returns the current engine configuration snapshot.
type ConfigSource interface {
	Config(ctx context.Context) (*EngineConfig, error)
}

type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, name string) error
}

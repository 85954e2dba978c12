package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"taskbot/internal/model"
	"taskbot/internal/service"
	"taskbot/pkg/auth"
	"taskbot/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type UserServiceI interface {
	RegisterUser(ctx context.Context, user *model.User) (*model.User, bool, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	BalanceHistory(ctx context.Context, telegramID int64, limit int) ([]*model.BalanceLog, error)
}

type AttemptServiceI interface {
	Start(ctx context.Context, userID int64, taskID uuid.UUID) (*model.Attempt, error)
	Submit(ctx context.Context, userID int64, taskID uuid.UUID) (*service.SubmitResult, error)
	Cancel(ctx context.Context, userID int64, taskID uuid.UUID) error
	ListUserTasks(ctx context.Context, userID int64) ([]*model.UserTask, error)
	Approve(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, *service.Grant, error)
	Reject(ctx context.Context, attemptID uuid.UUID, reason string) (*model.Attempt, error)
	ListPending(ctx context.Context, search string, limit, offset int) ([]*model.PendingAttempt, error)
}

type RankServiceI interface {
	GetRank(ctx context.Context, userID int64) (*model.UserRank, error)
	Progress(ctx context.Context, userID int64) (*model.RankProgress, error)
	VerifyChannels(ctx context.Context, userID int64) (bool, *model.UserRank, model.Promotion, error)
}

type PremiumServiceI interface {
	CreateRequest(ctx context.Context, userID int64, method model.PaymentMethod) (*model.PremiumRequest, error)
	ListMine(ctx context.Context, userID int64) ([]*model.PremiumRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*model.PremiumRequest, error)
	List(ctx context.Context, filter model.PremiumFilter) ([]*model.PremiumRequest, error)
	TakeInProgress(ctx context.Context, id uuid.UUID) (*model.PremiumRequest, error)
	MarkRequisitesSent(ctx context.Context, id uuid.UUID, notes string) (*model.PremiumRequest, error)
	ConfirmPayment(ctx context.Context, id uuid.UUID) (*model.PremiumRequest, error)
	Activate(ctx context.Context, id uuid.UUID) (*model.PremiumRequest, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.PremiumRequest, error)
}

type TaskServiceI interface {
	Create(ctx context.Context, in service.TaskInput) (*model.Task, error)
	Update(ctx context.Context, id uuid.UUID, in service.TaskInput) (*model.Task, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*model.Task, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Task, error)
	List(ctx context.Context, activeOnly bool) ([]*model.Task, error)
}

type SettingsServiceI interface {
	RankSettings(ctx context.Context) (*model.RankSettings, error)
	UpdateRankSettings(ctx context.Context, s model.RankSettings) error
	Settings(ctx context.Context) (map[string]string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Services bundles the engines exposed over HTTP.
type Services struct {
	Users    UserServiceI
	Attempts AttemptServiceI
	Ranks    RankServiceI
	Premium  PremiumServiceI
	Tasks    TaskServiceI
	Settings SettingsServiceI
}

// writeError maps engine failures onto HTTP statuses. Unexpected errors are
// logged and answered with a generic message.
func writeError(c *gin.Context, err error, action string) {
	var funds *service.InsufficientFundsError

	switch {
	case errors.As(err, &funds):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":     "insufficient funds",
			"required":  funds.Required,
			"available": funds.Available,
			"shortfall": funds.Shortfall,
		})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "rank does not allow this operation"})
	case errors.Is(err, service.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": "operation is not allowed in the current state"})
	case errors.Is(err, service.ErrAlreadyActive):
		c.JSON(http.StatusConflict, gin.H{"error": "task already has an active attempt"})
	case errors.Is(err, service.ErrLimitReached):
		c.JSON(http.StatusConflict, gin.H{"error": "task completion limit reached"})
	case errors.Is(err, service.ErrCooldown):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "task is on cooldown"})
	default:
		logger.Logger().Error("failed to "+action, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to " + action})
	}
}

func currentUser(c *gin.Context) (*auth.TelegramUserData, bool) {
	user, err := auth.UserFromContext(c)
	if err != nil {
		logger.Logger().Error("telegram user data not found in context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return nil, false
	}

	return user, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}

	return id, true
}

func intQuery(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}

	return v, true
}

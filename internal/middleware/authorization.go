package middleware

import (
	"context"
	"net/http"

	"taskbot/internal/model"
	"taskbot/pkg/auth"
	"taskbot/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserGetter interface {
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
}

type Authorization struct {
	users UserGetter
}

func NewAuthorization(users UserGetter) *Authorization {
	return &Authorization{
		users: users,
	}
}

// AdminOnly must run after the Telegram auth middleware.
func (a *Authorization) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.Logger()

		telegramUser, err := auth.UserFromContext(c)
		if err != nil {
			log.Error("telegram user data not found in context")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		user, err := a.users.GetUserByTelegramID(c.Request.Context(), telegramUser.ID)
		if err != nil {
			log.Info("failed to get user data", zap.Int64("telegram_id", telegramUser.ID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}

		if !user.IsAdmin {
			log.Info("unauthorized access attempt to admin endpoint",
				zap.Int64("telegram_id", telegramUser.ID))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}

		c.Set("is_admin", true)
		c.Next()
	}
}

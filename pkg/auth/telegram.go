package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"taskbot/pkg/logger"

	"github.com/gin-gonic/gin"
	initdata "github.com/telegram-mini-apps/init-data-golang"
	"go.uber.org/zap"
)

const (
	expTime = 24 * time.Hour

	authScheme     = "Telegram "
	contextUserKey = "telegram_user"
)

var ErrNoTelegramUser = errors.New("telegram user data not found in context")

type TelegramAuth struct {
	botToken  string
	debugMode bool
}

func NewTelegramAuth(botToken string, debugMode bool) *TelegramAuth {
	return &TelegramAuth{
		botToken:  botToken,
		debugMode: debugMode,
	}
}

// TelegramAuthMiddleware validates mini-app init data sent as
// "Authorization: Telegram <init data>" and stores the user in the gin context.
// Signature checks are skipped in debug mode.
func (t *TelegramAuth) TelegramAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.Logger()

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Info("missing authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header is required"})
			return
		}

		if !strings.HasPrefix(authHeader, authScheme) {
			log.Info("invalid authorization header format")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		raw := strings.TrimPrefix(authHeader, authScheme)
		if !t.debugMode {
			if err := initdata.Validate(raw, t.botToken, expTime); err != nil {
				log.Info("invalid telegram init data", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid telegram auth data"})
				return
			}
		}

		userData, err := ExtractTelegramData(raw)
		if err != nil {
			log.Info("failed to extract telegram data", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid telegram data"})
			return
		}

		c.Set(contextUserKey, userData)
		c.Next()
	}
}

type TelegramUserData struct {
	ID       int64
	Username string
	AuthDate time.Time
}

func ExtractTelegramData(raw string) (*TelegramUserData, error) {
	data, err := initdata.Parse(raw)
	if err != nil {
		return nil, err
	}
	if data.User.ID == 0 {
		return nil, errors.New("init data has no user")
	}

	return &TelegramUserData{
		ID:       data.User.ID,
		Username: data.User.Username,
		AuthDate: data.AuthDate(),
	}, nil
}

// UserFromContext returns the user stored by TelegramAuthMiddleware.
func UserFromContext(c *gin.Context) (*TelegramUserData, error) {
	value, exists := c.Get(contextUserKey)
	if !exists {
		return nil, ErrNoTelegramUser
	}

	user, ok := value.(*TelegramUserData)
	if !ok {
		return nil, ErrNoTelegramUser
	}

	return user, nil
}

// SetUser stores user in the context the same way the middleware does.
func SetUser(c *gin.Context, user *TelegramUserData) {
	c.Set(contextUserKey, user)
}

package api

import (
	"net/http"

	"taskbot/internal/model"
	"taskbot/pkg/auth"
	"taskbot/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type userRoutes struct {
	us UserServiceI
}

func NewUserRoutes(handler *gin.RouterGroup, us UserServiceI, a *auth.TelegramAuth) {
	r := &userRoutes{us: us}

	h := handler.Group("/users")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.POST("/", r.RegisterUser)
		h.GET("/me", r.GetMe)
		h.GET("/me/balance-history", r.GetBalanceHistory)
	}
}

type RegisterUserRequest struct {
	Handle   string `json:"handle"`
	Referrer *int64 `json:"referrer"`
}

func (r *userRoutes) RegisterUser(c *gin.Context) {
	log := logger.Logger()

	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Info("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	tgUser, ok := currentUser(c)
	if !ok {
		return
	}

	u := &model.User{
		TelegramID:       tgUser.ID,
		Handle:           req.Handle,
		Username:         tgUser.Username,
		ReferrerID:       req.Referrer,
		RegistrationDate: tgUser.AuthDate,
	}

	user, created, err := r.us.RegisterUser(c.Request.Context(), u)
	if err != nil {
		writeError(c, err, "register user")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, newUserResponse(user))
}

func (r *userRoutes) GetMe(c *gin.Context) {
	tgUser, ok := currentUser(c)
	if !ok {
		return
	}

	user, err := r.us.GetUserByTelegramID(c.Request.Context(), tgUser.ID)
	if err != nil {
		writeError(c, err, "get user")
		return
	}

	c.JSON(http.StatusOK, newUserResponse(user))
}

func (r *userRoutes) GetBalanceHistory(c *gin.Context) {
	tgUser, ok := currentUser(c)
	if !ok {
		return
	}

	limit, ok := intQuery(c, "limit", 0)
	if !ok {
		return
	}

	logs, err := r.us.BalanceHistory(c.Request.Context(), tgUser.ID, limit)
	if err != nil {
		writeError(c, err, "get balance history")
		return
	}

	out := make([]balanceLogResponse, len(logs))
	for i, l := range logs {
		out[i] = balanceLogResponse{
			ID:            l.ID,
			Delta:         l.Delta,
			BalanceBefore: l.BalanceBefore,
			BalanceAfter:  l.BalanceAfter,
			Reason:        string(l.Reason),
			Comment:       l.Comment,
			CreatedAt:     l.CreatedAt,
		}
	}

	c.JSON(http.StatusOK, out)
}

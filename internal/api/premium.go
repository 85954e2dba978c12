package api

import (
	"net/http"

	"taskbot/internal/model"
	"taskbot/pkg/auth"
	"taskbot/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type premiumRoutes struct {
	ps PremiumServiceI
}

func NewPremiumRoutes(handler *gin.RouterGroup, ps PremiumServiceI, a *auth.TelegramAuth) {
	r := &premiumRoutes{ps: ps}

	h := handler.Group("/premium")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.POST("/", r.CreateRequest)
		h.GET("/", r.ListMine)
	}
}

type CreatePremiumRequest struct {
	PaymentMethod model.PaymentMethod `json:"payment_method" binding:"required"`
}

func (r *premiumRoutes) CreateRequest(c *gin.Context) {
	var req CreatePremiumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Logger().Info("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	tgUser, ok := currentUser(c)
	if !ok {
		return
	}

	created, err := r.ps.CreateRequest(c.Request.Context(), tgUser.ID, req.PaymentMethod)
	if err != nil {
		writeError(c, err, "create premium request")
		return
	}

	c.JSON(http.StatusCreated, newPremiumResponse(created))
}

func (r *premiumRoutes) ListMine(c *gin.Context) {
	tgUser, ok := currentUser(c)
	if !ok {
		return
	}

	reqs, err := r.ps.ListMine(c.Request.Context(), tgUser.ID)
	if err != nil {
		writeError(c, err, "list premium requests")
		return
	}

	c.JSON(http.StatusOK, newPremiumResponses(reqs))
}

package api

import (
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

type adminRoutes struct {
	as       AttemptServiceI
	ps       PremiumServiceI
	ts       TaskServiceI
	settings SettingsServiceI
}

// NewAdminRoutes registers moderation, premium, task catalogue and settings
// management. adminOnly rejects non-admin callers.
func NewAdminRoutes(handler *gin.RouterGroup, s Services, a *auth.TelegramAuth, adminOnly gin.HandlerFunc) {
	r := &adminRoutes{as: s.Attempts, ps: s.Premium, ts: s.Tasks, settings: s.Settings}

	h := handler.Group("/admin")
	h.Use(a.TelegramAuthMiddleware(), adminOnly)
	{
		moderation := h.Group("/moderation")
		moderation.GET("/", r.ListPending)
		moderation.POST("/:attempt_id/approve", r.Approve)
		moderation.POST("/:attempt_id/reject", r.Reject)

		premium := h.Group("/premium")
		premium.GET("/", r.ListPremium)
		premium.GET("/:request_id", r.GetPremium)
		premium.POST("/:request_id/take", r.TakePremium)
		premium.POST("/:request_id/requisites", r.SendRequisites)
		premium.POST("/:request_id/confirm", r.ConfirmPremium)
		premium.POST("/:request_id/activate", r.ActivatePremium)
		premium.POST("/:request_id/cancel", r.CancelPremium)

		tasks := h.Group("/tasks")
		tasks.GET("/", r.ListTasks)
		tasks.POST("/", r.CreateTask)
		tasks.GET("/:task_id", r.GetTask)
		tasks.PUT("/:task_id", r.UpdateTask)
		tasks.PATCH("/:task_id/active", r.SetTaskActive)

		h.GET("/settings", r.GetSettings)
		h.PUT("/settings/:key", r.SetSetting)
		h.GET("/rank-settings", r.GetRankSettings)
		h.PUT("/rank-settings", r.UpdateRankSettings)
	}
}

func (r *adminRoutes) ListPending(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 0)
	if !ok {
		return
	}
	offset, ok := intQuery(c, "offset", 0)
	if !ok {
		return
	}

	pending, err := r.as.ListPending(c.Request.Context(), c.Query("search"), limit, offset)
	if err != nil {
		writeError(c, err, "list pending attempts")
		return
	}

	out := make([]pendingAttemptResponse, len(pending))
	for i, p := range pending {
		out[i] = pendingAttemptResponse{
			attemptResponse: newAttemptResponse(&p.Attempt),
			Username:        p.Username,
			TaskTitle:       p.TaskTitle,
			RewardMin:       p.RewardMin,
			RewardMax:       p.RewardMax,
		}
	}

	c.JSON(http.StatusOK, out)
}

func (r *adminRoutes) Approve(c *gin.Context) {
	id, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}

	attempt, grant, err := r.as.Approve(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "approve attempt")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attempt": newAttemptResponse(attempt),
		"grant":   newGrantResponse(grant),
	})
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (r *adminRoutes) Reject(c *gin.Context) {
	id, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}

	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	attempt, err := r.as.Reject(c.Request.Context(), id, req.Reason)
	if err != nil {
		writeError(c, err, "reject attempt")
		return
	}

	c.JSON(http.StatusOK, newAttemptResponse(attempt))
}

func (r *adminRoutes) ListPremium(c *gin.Context) {
	var filter model.PremiumFilter

	if raw := c.Query("status"); raw != "" {
		status := model.PremiumStatus(raw)
		filter.Status = &status
	}
	if raw := c.Query("user_id"); raw != "" {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		filter.UserID = &userID
	}

	var ok bool
	if filter.Limit, ok = intQuery(c, "limit", 0); !ok {
		return
	}
	if filter.Offset, ok = intQuery(c, "offset", 0); !ok {
		return
	}

	reqs, err := r.ps.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err, "list premium requests")
		return
	}

	c.JSON(http.StatusOK, newPremiumResponses(reqs))
}

func (r *adminRoutes) GetPremium(c *gin.Context) {
	id, ok := uuidParam(c, "request_id")
	if !ok {
		return
	}

	req, err := r.ps.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "get premium request")
		return
	}

	c.JSON(http.StatusOK, newPremiumResponse(req))
}

func (r *adminRoutes) premiumTransition(c *gin.Context, action string, fn func(id uuid.UUID) (*model.PremiumRequest, error)) {
	id, ok := uuidParam(c, "request_id")
	if !ok {
		return
	}

	req, err := fn(id)
	if err != nil {
		writeError(c, err, action)
		return
	}

	c.JSON(http.StatusOK, newPremiumResponse(req))
}

func (r *adminRoutes) TakePremium(c *gin.Context) {
	r.premiumTransition(c, "take premium request", func(id uuid.UUID) (*model.PremiumRequest, error) {
		return r.ps.TakeInProgress(c.Request.Context(), id)
	})
}

type requisitesRequest struct {
	Notes string `json:"notes" binding:"required"`
}

func (r *adminRoutes) SendRequisites(c *gin.Context) {
	var req requisitesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "notes are required"})
		return
	}

	r.premiumTransition(c, "mark requisites sent", func(id uuid.UUID) (*model.PremiumRequest, error) {
		return r.ps.MarkRequisitesSent(c.Request.Context(), id, req.Notes)
	})
}

func (r *adminRoutes) ConfirmPremium(c *gin.Context) {
	r.premiumTransition(c, "confirm payment", func(id uuid.UUID) (*model.PremiumRequest, error) {
		return r.ps.ConfirmPayment(c.Request.Context(), id)
	})
}

func (r *adminRoutes) ActivatePremium(c *gin.Context) {
	r.premiumTransition(c, "activate premium", func(id uuid.UUID) (*model.PremiumRequest, error) {
		return r.ps.Activate(c.Request.Context(), id)
	})
}

func (r *adminRoutes) CancelPremium(c *gin.Context) {
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	r.premiumTransition(c, "cancel premium request", func(id uuid.UUID) (*model.PremiumRequest, error) {
		return r.ps.Cancel(c.Request.Context(), id, req.Reason)
	})
}

func (r *adminRoutes) ListTasks(c *gin.Context) {
	activeOnly := c.Query("active_only") == "true"

	tasks, err := r.ts.List(c.Request.Context(), activeOnly)
	if err != nil {
		writeError(c, err, "list tasks")
		return
	}

	out := make([]taskResponse, len(tasks))
	for i, t := range tasks {
		out[i] = newTaskResponse(t)
	}

	c.JSON(http.StatusOK, out)
}

func (r *adminRoutes) bindTask(c *gin.Context) (service.TaskInput, bool) {
	var in service.TaskInput
	if err := c.ShouldBindJSON(&in); err != nil {
		logger.Logger().Info("failed to bind task", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return in, false
	}

	return in, true
}

func (r *adminRoutes) CreateTask(c *gin.Context) {
	in, ok := r.bindTask(c)
	if !ok {
		return
	}

	task, err := r.ts.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, err, "create task")
		return
	}

	c.JSON(http.StatusCreated, newTaskResponse(task))
}

func (r *adminRoutes) GetTask(c *gin.Context) {
	id, ok := uuidParam(c, "task_id")
	if !ok {
		return
	}

	task, err := r.ts.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "get task")
		return
	}

	c.JSON(http.StatusOK, newTaskResponse(task))
}

func (r *adminRoutes) UpdateTask(c *gin.Context) {
	id, ok := uuidParam(c, "task_id")
	if !ok {
		return
	}
	in, ok := r.bindTask(c)
	if !ok {
		return
	}

	task, err := r.ts.Update(c.Request.Context(), id, in)
	if err != nil {
		writeError(c, err, "update task")
		return
	}

	c.JSON(http.StatusOK, newTaskResponse(task))
}

type activeRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (r *adminRoutes) SetTaskActive(c *gin.Context) {
	id, ok := uuidParam(c, "task_id")
	if !ok {
		return
	}

	var req activeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "active is required"})
		return
	}

	task, err := r.ts.SetActive(c.Request.Context(), id, *req.Active)
	if err != nil {
		writeError(c, err, "update task")
		return
	}

	c.JSON(http.StatusOK, newTaskResponse(task))
}

func (r *adminRoutes) GetSettings(c *gin.Context) {
	values, err := r.settings.Settings(c.Request.Context())
	if err != nil {
		writeError(c, err, "get settings")
		return
	}

	c.JSON(http.StatusOK, values)
}

type settingRequest struct {
	Value string `json:"value"`
}

func (r *adminRoutes) SetSetting(c *gin.Context) {
	var req settingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	key := c.Param("key")
	if err := r.settings.SetSetting(c.Request.Context(), key, req.Value); err != nil {
		writeError(c, err, "update setting")
		return
	}

	c.JSON(http.StatusOK, gin.H{key: req.Value})
}

func (r *adminRoutes) GetRankSettings(c *gin.Context) {
	s, err := r.settings.RankSettings(c.Request.Context())
	if err != nil {
		writeError(c, err, "get rank settings")
		return
	}

	c.JSON(http.StatusOK, newRankSettingsPayload(s))
}

func (r *adminRoutes) UpdateRankSettings(c *gin.Context) {
	var req rankSettingsPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	s := req.toModel()
	if err := r.settings.UpdateRankSettings(c.Request.Context(), s); err != nil {
		writeError(c, err, "update rank settings")
		return
	}

	c.JSON(http.StatusOK, newRankSettingsPayload(&s))
}

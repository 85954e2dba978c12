package api

import (
	"net/http"

	"taskbot/pkg/auth"

	"github.com/gin-gonic/gin"
)

type taskRoutes struct {
	as AttemptServiceI
}

func NewTaskRoutes(handler *gin.RouterGroup, as AttemptServiceI, a *auth.TelegramAuth) {
	r := &taskRoutes{as: as}

	h := handler.Group("/tasks")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.GET("/", r.ListTasks)
		h.POST("/:task_id/start", r.StartTask)
		h.POST("/:task_id/submit", r.SubmitTask)
		h.DELETE("/:task_id/attempt", r.CancelTask)
	}
}

func (r *taskRoutes) ListTasks(c *gin.Context) {
	tgUser, ok := currentUser(c)
	if !ok {
		return
	}

	tasks, err := r.as.ListUserTasks(c.Request.Context(), tgUser.ID)
	if err != nil {
		writeError(c, err, "list tasks")
		return
	}

	out := make([]userTaskResponse, len(tasks))
	for i, t := range tasks {
		out[i] = userTaskResponse{
			taskResponse:   newTaskResponse(&t.Task),
			CompletedCount: t.CompletedCount,
			ActiveStatus:   t.ActiveStatus,
			LimitReached:   t.LimitReached,
			AvailableAt:    t.AvailableAt,
		}
	}

	c.JSON(http.StatusOK, out)
}

func (r *taskRoutes) StartTask(c *gin.Context) {
	tgUser, ok := currentUser(c)
	if !ok {
		return
	}
	taskID, ok := uuidParam(c, "task_id")
	if !ok {
		return
	}

	attempt, err := r.as.Start(c.Request.Context(), tgUser.ID, taskID)
	if err != nil {
		writeError(c, err, "start task")
		return
	}

	c.JSON(http.StatusCreated, newAttemptResponse(attempt))
}

func (r *taskRoutes) SubmitTask(c *gin.Context) {
	tgUser, ok := currentUser(c)
	if !ok {
		return
	}
	taskID, ok := uuidParam(c, "task_id")
	if !ok {
		return
	}

	result, err := r.as.Submit(c.Request.Context(), tgUser.ID, taskID)
	if err != nil {
		writeError(c, err, "submit task")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"outcome": result.Outcome,
		"attempt": newAttemptResponse(result.Attempt),
		"grant":   newGrantResponse(result.Grant),
	})
}

func (r *taskRoutes) CancelTask(c *gin.Context) {
	tgUser, ok := currentUser(c)
	if !ok {
		return
	}
	taskID, ok := uuidParam(c, "task_id")
	if !ok {
		return
	}

	if err := r.as.Cancel(c.Request.Context(), tgUser.ID, taskID); err != nil {
		writeError(c, err, "cancel task")
		return
	}

	c.Status(http.StatusNoContent)
}

package api

import (
	"net/http"

	"taskbot/pkg/auth"

	"github.com/gin-gonic/gin"
)

type rankRoutes struct {
	rs RankServiceI
}

func NewRankRoutes(handler *gin.RouterGroup, rs RankServiceI, a *auth.TelegramAuth) {
	r := &rankRoutes{rs: rs}

	h := handler.Group("/rank")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.GET("/", r.GetRank)
		h.GET("/progress", r.GetProgress)
		h.POST("/verify-channels", r.VerifyChannels)
	}
}

func (r *rankRoutes) GetRank(c *gin.Context) {
	tgUser, ok := currentUser(c)
	if !ok {
		return
	}

	rank, err := r.rs.GetRank(c.Request.Context(), tgUser.ID)
	if err != nil {
		writeError(c, err, "get rank")
		return
	}

	c.JSON(http.StatusOK, newRankResponse(rank))
}

func (r *rankRoutes) GetProgress(c *gin.Context) {
	tgUser, ok := currentUser(c)
	if !ok {
		return
	}

	p, err := r.rs.Progress(c.Request.Context(), tgUser.ID)
	if err != nil {
		writeError(c, err, "get rank progress")
		return
	}

	c.JSON(http.StatusOK, progressResponse{
		Rank:               p.Rank,
		NextRank:           p.NextRank,
		Percent:            p.Percent,
		TasksCompleted:     p.TasksCompleted,
		TasksRequired:      p.TasksRequired,
		ReferralsCount:     p.ReferralsCount,
		ReferralsRequired:  p.ReferralsRequired,
		ChannelsSubscribed: p.ChannelsSubscribed,
		RequiresPurchase:   p.RequiresPurchase,
		PlatinumExpiresAt:  p.PlatinumExpiresAt,
		BonusPercentage:    p.BonusPercentage,
	})
}

func (r *rankRoutes) VerifyChannels(c *gin.Context) {
	tgUser, ok := currentUser(c)
	if !ok {
		return
	}

	subscribed, rank, promotion, err := r.rs.VerifyChannels(c.Request.Context(), tgUser.ID)
	if err != nil {
		writeError(c, err, "verify channels")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subscribed": subscribed,
		"promoted":   promotion.Promoted,
		"rank":       newRankResponse(rank),
	})
}

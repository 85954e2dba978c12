package api

import (
	"time"

	"taskbot/internal/model"
	"taskbot/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type userResponse struct {
	TelegramID       int64           `json:"telegram_id"`
	Handle           string          `json:"handle"`
	Username         string          `json:"username"`
	ReferrerID       *int64          `json:"referrer_id"`
	Referrals        int             `json:"referrals"`
	Balance          decimal.Decimal `json:"balance"`
	TotalEarned      decimal.Decimal `json:"total_earned"`
	TasksCompleted   int             `json:"tasks_completed"`
	RegistrationDate time.Time       `json:"registration_date"`
}

func newUserResponse(u *model.User) userResponse {
	return userResponse{
		TelegramID:       u.TelegramID,
		Handle:           u.Handle,
		Username:         u.Username,
		ReferrerID:       u.ReferrerID,
		Referrals:        u.Referrals,
		Balance:          u.Balance,
		TotalEarned:      u.TotalEarned,
		TasksCompleted:   u.TasksCompleted,
		RegistrationDate: u.RegistrationDate,
	}
}

type balanceLogResponse struct {
	ID            int64           `json:"id"`
	Delta         decimal.Decimal `json:"delta"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Reason        string          `json:"reason"`
	Comment       string          `json:"comment"`
	CreatedAt     time.Time       `json:"created_at"`
}

type taskResponse struct {
	ID            uuid.UUID       `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Link          string          `json:"link"`
	RewardMin     decimal.Decimal `json:"reward_min"`
	RewardMax     decimal.Decimal `json:"reward_max"`
	MaxPerUser    int             `json:"max_per_user"`
	TaskType      model.TaskType  `json:"task_type"`
	ChannelID     string          `json:"channel_id,omitempty"`
	CooldownHours int             `json:"cooldown_hours"`
	Active        bool            `json:"active"`
	CreatedAt     time.Time       `json:"created_at"`
}

func newTaskResponse(t *model.Task) taskResponse {
	return taskResponse{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		Link:          t.Link,
		RewardMin:     t.RewardMin,
		RewardMax:     t.RewardMax,
		MaxPerUser:    t.MaxPerUser,
		TaskType:      t.TaskType,
		ChannelID:     t.ChannelID,
		CooldownHours: t.CooldownHours,
		Active:        t.Active,
		CreatedAt:     t.CreatedAt,
	}
}

type userTaskResponse struct {
	taskResponse
	CompletedCount int                  `json:"completed_count"`
	ActiveStatus   *model.AttemptStatus `json:"active_status"`
	LimitReached   bool                 `json:"limit_reached"`
	AvailableAt    *time.Time           `json:"available_at"`
}

type attemptResponse struct {
	ID           uuid.UUID           `json:"id"`
	UserID       int64               `json:"user_id"`
	TaskID       uuid.UUID           `json:"task_id"`
	Status       model.AttemptStatus `json:"status"`
	Reward       decimal.NullDecimal `json:"reward"`
	RejectReason *string             `json:"reject_reason,omitempty"`
	StartedAt    time.Time           `json:"started_at"`
	SubmittedAt  *time.Time          `json:"submitted_at,omitempty"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
}

func newAttemptResponse(a *model.Attempt) attemptResponse {
	return attemptResponse{
		ID:           a.ID,
		UserID:       a.UserID,
		TaskID:       a.TaskID,
		Status:       a.Status,
		Reward:       a.Reward,
		RejectReason: a.RejectReason,
		StartedAt:    a.StartedAt,
		SubmittedAt:  a.SubmittedAt,
		CompletedAt:  a.CompletedAt,
	}
}

type pendingAttemptResponse struct {
	attemptResponse
	Username  string          `json:"username"`
	TaskTitle string          `json:"task_title"`
	RewardMin decimal.Decimal `json:"reward_min"`
	RewardMax decimal.Decimal `json:"reward_max"`
}

type grantResponse struct {
	Reward          decimal.Decimal `json:"reward"`
	EffectiveReward decimal.Decimal `json:"effective_reward"`
	BalanceAfter    decimal.Decimal `json:"balance_after"`
	Rank            model.Rank      `json:"rank"`
	Promoted        bool            `json:"promoted"`
}

func newGrantResponse(g *service.Grant) *grantResponse {
	if g == nil {
		return nil
	}

	out := &grantResponse{
		Reward:          g.Reward,
		EffectiveReward: g.EffectiveReward,
		Promoted:        g.Promotion.Promoted,
	}
	if g.Log != nil {
		out.BalanceAfter = g.Log.BalanceAfter
	}
	if g.Rank != nil {
		out.Rank = g.Rank.CurrentRank
	}

	return out
}

type rankResponse struct {
	Rank               model.Rank      `json:"rank"`
	TasksCompleted     int             `json:"tasks_completed"`
	ReferralsCount     int             `json:"referrals_count"`
	ChannelsSubscribed bool            `json:"channels_subscribed"`
	BonusPercentage    decimal.Decimal `json:"bonus_percentage"`
	PlatinumActive     bool            `json:"platinum_active"`
	PlatinumExpiresAt  *time.Time      `json:"platinum_expires_at"`
}

func newRankResponse(r *model.UserRank) rankResponse {
	return rankResponse{
		Rank:               r.CurrentRank,
		TasksCompleted:     r.TasksCompleted,
		ReferralsCount:     r.ReferralsCount,
		ChannelsSubscribed: r.ChannelsSubscribed,
		BonusPercentage:    r.BonusPercentage,
		PlatinumActive:     r.PlatinumActive,
		PlatinumExpiresAt:  r.PlatinumExpiresAt,
	}
}

type progressResponse struct {
	Rank               model.Rank      `json:"rank"`
	NextRank           *model.Rank     `json:"next_rank"`
	Percent            int             `json:"percent"`
	TasksCompleted     int             `json:"tasks_completed"`
	TasksRequired      int             `json:"tasks_required"`
	ReferralsCount     int             `json:"referrals_count"`
	ReferralsRequired  int             `json:"referrals_required"`
	ChannelsSubscribed bool            `json:"channels_subscribed"`
	RequiresPurchase   bool            `json:"requires_purchase"`
	PlatinumExpiresAt  *time.Time      `json:"platinum_expires_at"`
	BonusPercentage    decimal.Decimal `json:"bonus_percentage"`
}

type premiumResponse struct {
	ID                 uuid.UUID           `json:"id"`
	RequestNumber      string              `json:"request_number"`
	UserID             int64               `json:"user_id"`
	PaymentMethod      model.PaymentMethod `json:"payment_method"`
	Amount             decimal.Decimal     `json:"amount"`
	Currency           model.Currency      `json:"currency"`
	Status             model.PremiumStatus `json:"status"`
	AdminNotes         *string             `json:"admin_notes,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	InProgressAt       *time.Time          `json:"in_progress_at,omitempty"`
	RequisitesSentAt   *time.Time          `json:"requisites_sent_at,omitempty"`
	PaymentConfirmedAt *time.Time          `json:"payment_confirmed_at,omitempty"`
	CompletedAt        *time.Time          `json:"completed_at,omitempty"`
	CancelledAt        *time.Time          `json:"cancelled_at,omitempty"`
}

func newPremiumResponse(r *model.PremiumRequest) premiumResponse {
	return premiumResponse{
		ID:                 r.ID,
		RequestNumber:      r.RequestNumber,
		UserID:             r.UserID,
		PaymentMethod:      r.PaymentMethod,
		Amount:             r.Amount,
		Currency:           r.Currency,
		Status:             r.Status,
		AdminNotes:         r.AdminNotes,
		CreatedAt:          r.CreatedAt,
		InProgressAt:       r.InProgressAt,
		RequisitesSentAt:   r.RequisitesSentAt,
		PaymentConfirmedAt: r.PaymentConfirmedAt,
		CompletedAt:        r.CompletedAt,
		CancelledAt:        r.CancelledAt,
	}
}

func newPremiumResponses(reqs []*model.PremiumRequest) []premiumResponse {
	out := make([]premiumResponse, len(reqs))
	for i, r := range reqs {
		out[i] = newPremiumResponse(r)
	}
	return out
}

type rankSettingsPayload struct {
	SilverRequiredTasks     int             `json:"silver_required_tasks"`
	SilverRequiredReferrals int             `json:"silver_required_referrals"`
	GoldRequiredTasks       int             `json:"gold_required_tasks"`
	GoldRequiredReferrals   int             `json:"gold_required_referrals"`
	StoneBonus              decimal.Decimal `json:"stone_bonus"`
	BronzeBonus             decimal.Decimal `json:"bronze_bonus"`
	SilverBonus             decimal.Decimal `json:"silver_bonus"`
	GoldBonus               decimal.Decimal `json:"gold_bonus"`
	PlatinumBonus           decimal.Decimal `json:"platinum_bonus"`
	PlatinumPriceUSD        decimal.Decimal `json:"platinum_price_usd"`
	PlatinumPriceRUB        decimal.Decimal `json:"platinum_price_rub"`
	PlatinumPriceUAH        decimal.Decimal `json:"platinum_price_uah"`
	PlatinumDurationDays    int             `json:"platinum_duration_days"`
}

func newRankSettingsPayload(s *model.RankSettings) rankSettingsPayload {
	return rankSettingsPayload{
		SilverRequiredTasks:     s.SilverRequiredTasks,
		SilverRequiredReferrals: s.SilverRequiredReferrals,
		GoldRequiredTasks:       s.GoldRequiredTasks,
		GoldRequiredReferrals:   s.GoldRequiredReferrals,
		StoneBonus:              s.StoneBonus,
		BronzeBonus:             s.BronzeBonus,
		SilverBonus:             s.SilverBonus,
		GoldBonus:               s.GoldBonus,
		PlatinumBonus:           s.PlatinumBonus,
		PlatinumPriceUSD:        s.PlatinumPriceUSD,
		PlatinumPriceRUB:        s.PlatinumPriceRUB,
		PlatinumPriceUAH:        s.PlatinumPriceUAH,
		PlatinumDurationDays:    s.PlatinumDurationDays,
	}
}

func (p rankSettingsPayload) toModel() model.RankSettings {
	return model.RankSettings{
		SilverRequiredTasks:     p.SilverRequiredTasks,
		SilverRequiredReferrals: p.SilverRequiredReferrals,
		GoldRequiredTasks:       p.GoldRequiredTasks,
		GoldRequiredReferrals:   p.GoldRequiredReferrals,
		StoneBonus:              p.StoneBonus,
		BronzeBonus:             p.BronzeBonus,
		SilverBonus:             p.SilverBonus,
		GoldBonus:               p.GoldBonus,
		PlatinumBonus:           p.PlatinumBonus,
		PlatinumPriceUSD:        p.PlatinumPriceUSD,
		PlatinumPriceRUB:        p.PlatinumPriceRUB,
		PlatinumPriceUAH:        p.PlatinumPriceUAH,
		PlatinumDurationDays:    p.PlatinumDurationDays,
	}
}

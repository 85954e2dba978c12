package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"taskbot/internal/model"
	"taskbot/internal/repository"
	"taskbot/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// Grant is the outcome of crediting one reward.
type Grant struct {
	Log             *model.BalanceLog
	Reward          decimal.Decimal
	EffectiveReward decimal.Decimal
	Rank            *model.UserRank
	Promotion       model.Promotion
}

type RewardEngine struct {
	store  RankStore
	int64n func(n int64) int64
	now    func() time.Time
}

func NewRewardEngine(store RankStore) *RewardEngine {
	return &RewardEngine{
		store:  store,
		int64n: rand.Int64N,
		now:    time.Now,
	}
}

// Roll returns a uniformly random whole reward within the task's bounds.
// Equal bounds give a fixed reward.
func (e *RewardEngine) Roll(task *model.Task) decimal.Decimal {
	if task.RewardMin.Equal(task.RewardMax) {
		return task.RewardMin
	}

	lo := task.RewardMin.Ceil()
	hi := task.RewardMax.Floor()
	if hi.LessThan(lo) {
		return task.RewardMin
	}

	span := hi.Sub(lo).IntPart()
	return lo.Add(decimal.NewFromInt(e.int64n(span + 1)))
}

// EffectiveReward scales reward by the rank bonus percentage, rounded to cents.
func EffectiveReward(reward, bonusPercentage decimal.Decimal) decimal.Decimal {
	return reward.Mul(decimal.NewFromInt(1).Add(bonusPercentage.Div(hundred))).Round(2)
}

// Grant credits reward to user, bumps the completed-task counter and
// re-evaluates the rank. The caller must hold user's row lock inside a
// transaction; any error must abort it.
func (e *RewardEngine) Grant(
	ctx context.Context,
	user *model.User,
	attemptID uuid.UUID,
	reward decimal.Decimal,
	comment string,
	settings model.RankSettings,
) (*Grant, error) {
	now := e.now().UTC()
	grant := &Grant{Reward: reward}

	fail := func(err error) (*Grant, error) {
		logger.Logger().Error("reward grant failed",
			zap.Int64("user_id", user.TelegramID),
			zap.String("attempt_id", attemptID.String()),
			zap.String("reward", reward.String()),
			zap.String("effective_reward", grant.EffectiveReward.String()),
			zap.String("balance_before", user.Balance.String()),
			zap.Error(err),
		)
		return nil, err
	}

	rank, err := e.store.EnsureUserRank(ctx, user.TelegramID, settings.StoneBonus)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(ErrUserNotFound)
		}
		return fail(fmt.Errorf("failed to load rank: %w", err))
	}

	// Expiry is applied first so an expired platinum bonus is never paid out.
	before, _ := evaluateRank(rank, user, settings, now)

	grant.EffectiveReward = EffectiveReward(reward, rank.BonusPercentage)

	grant.Log, err = e.store.AppendBalanceChange(ctx, user.TelegramID, grant.EffectiveReward, model.ReasonTaskReward, comment)
	if err != nil {
		return fail(fmt.Errorf("failed to append balance change: %w", err))
	}

	completed, err := e.store.IncrementTaskCounters(ctx, user.TelegramID, grant.EffectiveReward)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(ErrUserNotFound)
		}
		return fail(fmt.Errorf("failed to increment task counters: %w", err))
	}
	user.TasksCompleted = completed
	user.Balance = grant.Log.BalanceAfter

	after, _ := evaluateRank(rank, user, settings, now)
	rank.UpdatedAt = now
	if err := e.store.SaveUserRank(ctx, rank); err != nil {
		return fail(fmt.Errorf("failed to save rank: %w", err))
	}

	grant.Rank = rank
	grant.Promotion = mergePromotions(before, after)

	return grant, nil
}

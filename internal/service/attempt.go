package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskbot/internal/metrics"
	"taskbot/internal/model"
	"taskbot/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultPendingLimit = 50

// SubmitOutcome tells the caller where a submitted attempt ended up.
type SubmitOutcome string

const (
	// OutcomeNotSubscribed leaves the attempt in progress; the user may retry.
	OutcomeNotSubscribed SubmitOutcome = "not_subscribed"
	OutcomeModeration    SubmitOutcome = "moderation"
	OutcomeCompleted     SubmitOutcome = "completed"
)

type SubmitResult struct {
	Outcome SubmitOutcome
	Attempt *model.Attempt
	Grant   *Grant
}

// AttemptService drives a user's attempt at a task from start to reward and
// serves the moderation queue.
type AttemptService struct {
	store    AttemptStore
	config   ConfigSource
	rewards  *RewardEngine
	ranks    *RankService
	notifier Notifier
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewAttemptService(
	store AttemptStore,
	config ConfigSource,
	rewards *RewardEngine,
	ranks *RankService,
	notifier Notifier,
	m *metrics.Metrics,
) *AttemptService {
	return &AttemptService{
		store:    store,
		config:   config,
		rewards:  rewards,
		ranks:    ranks,
		notifier: notifier,
		metrics:  m,
		now:      time.Now,
	}
}

func (s *AttemptService) activeTask(ctx context.Context, taskID uuid.UUID) (*model.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	if !task.Active {
		return nil, ErrTaskNotFound
	}

	return task, nil
}

func (s *AttemptService) Start(ctx context.Context, userID int64, taskID uuid.UUID) (*model.Attempt, error) {
	task, err := s.activeTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	completed, lastCompletedAt, err := s.store.CompletedStats(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if completed >= task.MaxPerUser {
		return nil, ErrLimitReached
	}

	now := s.now().UTC()
	if availableAt := cooldownEnd(task, lastCompletedAt); availableAt != nil && now.Before(*availableAt) {
		return nil, ErrCooldown
	}

	_, err = s.store.GetActiveAttempt(ctx, userID, taskID)
	if err == nil {
		return nil, ErrAlreadyActive
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	attempt := &model.Attempt{
		ID:        uuid.New(),
		UserID:    userID,
		TaskID:    taskID,
		Status:    model.AttemptInProgress,
		StartedAt: now,
	}
	if err := s.store.CreateAttempt(ctx, attempt); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, ErrAlreadyActive
		}
		return nil, err
	}

	s.metrics.AttemptTransition(string(model.AttemptInProgress))

	return attempt, nil
}

func cooldownEnd(task *model.Task, lastCompletedAt *time.Time) *time.Time {
	if task.CooldownHours <= 0 || lastCompletedAt == nil {
		return nil
	}

	end := lastCompletedAt.Add(time.Duration(task.CooldownHours) * time.Hour)
	return &end
}

// inProgressAttempt returns the user's in-progress attempt at the task. A
// submitted attempt does not count.
func (s *AttemptService) inProgressAttempt(ctx context.Context, userID int64, taskID uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.store.GetActiveAttempt(ctx, userID, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	if attempt.Status != model.AttemptInProgress {
		return nil, ErrAttemptNotFound
	}

	return attempt, nil
}

// Submit finishes the user's in-progress attempt. Subscription tasks are
// checked with the oracle on every call; a negative or failed check keeps the
// attempt in progress and is not an error.
func (s *AttemptService) Submit(ctx context.Context, userID int64, taskID uuid.UUID) (*SubmitResult, error) {
	task, err := s.activeTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	attempt, err := s.inProgressAttempt(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	if task.TaskType == model.TaskTypeSubscription && !s.ranks.checkMember(ctx, userID, task.ChannelID) {
		return &SubmitResult{Outcome: OutcomeNotSubscribed, Attempt: attempt}, nil
	}

	cfg, err := s.config.Config(ctx)
	if err != nil {
		return nil, err
	}

	moderated := cfg.NeedsModeration(task)
	reward := s.rewards.Roll(task)
	now := s.now().UTC()

	if moderated {
		return s.submitForModeration(ctx, attempt, task, reward, now)
	}

	var grant *Grant
	err = s.store.Transaction(ctx, func(ctx context.Context) error {
		attempt.SubmittedAt = &now
		var err error
		grant, err = s.complete(ctx, attempt, model.AttemptInProgress, task, reward, cfg, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.announceGrant(ctx, attempt, task, grant)

	return &SubmitResult{Outcome: OutcomeCompleted, Attempt: attempt, Grant: grant}, nil
}

func (s *AttemptService) submitForModeration(
	ctx context.Context,
	attempt *model.Attempt,
	task *model.Task,
	reward decimal.Decimal,
	now time.Time,
) (*SubmitResult, error) {
	attempt.Status = model.AttemptSubmitted
	attempt.Reward = decimal.NewNullDecimal(reward)
	attempt.SubmittedAt = &now

	if err := s.store.TransitionAttempt(ctx, attempt, model.AttemptInProgress); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrInvalidState
		}
		return nil, err
	}

	s.metrics.AttemptTransition(string(model.AttemptSubmitted))
	dispatch(ctx, s.notifier, model.Event{
		Type:   model.EventAttemptSubmitted,
		UserID: attempt.UserID,
		Payload: map[string]any{
			"attempt_id": attempt.ID.String(),
			"task_title": task.Title,
		},
	})

	return &SubmitResult{Outcome: OutcomeModeration, Attempt: attempt}, nil
}

// complete moves the attempt to completed and grants reward. It must run in a
// transaction; the user lock serializes the completion-limit check.
func (s *AttemptService) complete(
	ctx context.Context,
	attempt *model.Attempt,
	from model.AttemptStatus,
	task *model.Task,
	reward decimal.Decimal,
	cfg *EngineConfig,
	now time.Time,
) (*Grant, error) {
	user, err := s.store.LockUser(ctx, attempt.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	completed, _, err := s.store.CompletedStats(ctx, attempt.UserID, attempt.TaskID)
	if err != nil {
		return nil, err
	}
	if completed >= task.MaxPerUser {
		return nil, ErrLimitReached
	}

	attempt.Status = model.AttemptCompleted
	attempt.Reward = decimal.NewNullDecimal(reward)
	attempt.CompletedAt = &now

	if err := s.store.TransitionAttempt(ctx, attempt, from); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrInvalidState
		}
		return nil, err
	}

	return s.rewards.Grant(ctx, user, attempt.ID, reward, fmt.Sprintf("Task: %s", task.Title), cfg.Rank)
}

func (s *AttemptService) announceGrant(ctx context.Context, attempt *model.Attempt, task *model.Task, grant *Grant) {
	s.metrics.AttemptTransition(string(model.AttemptCompleted))
	s.metrics.RewardGranted(grant.EffectiveReward)

	dispatch(ctx, s.notifier, model.Event{
		Type:   model.EventRewardGranted,
		UserID: attempt.UserID,
		Payload: map[string]any{
			"attempt_id":    attempt.ID.String(),
			"task_title":    task.Title,
			"reward":        grant.EffectiveReward.StringFixed(2),
			"balance_after": grant.Log.BalanceAfter.StringFixed(2),
		},
	})

	s.ranks.announce(ctx, attempt.UserID, grant.Promotion)
}

// Approve grants the reward stored on a submitted attempt. Only submitted
// attempts can be approved, so the reward is granted at most once.
func (s *AttemptService) Approve(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, *Grant, error) {
	attempt, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrAttemptNotFound
		}
		return nil, nil, err
	}
	if attempt.Status != model.AttemptSubmitted {
		return nil, nil, ErrInvalidState
	}

	task, err := s.store.GetTask(ctx, attempt.TaskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrTaskNotFound
		}
		return nil, nil, err
	}

	cfg, err := s.config.Config(ctx)
	if err != nil {
		return nil, nil, err
	}

	var grant *Grant
	err = s.store.Transaction(ctx, func(ctx context.Context) error {
		locked, err := s.store.LockAttempt(ctx, attemptID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrAttemptNotFound
			}
			return err
		}
		if locked.Status != model.AttemptSubmitted || !locked.Reward.Valid {
			return ErrInvalidState
		}

		attempt = locked
		grant, err = s.complete(ctx, attempt, model.AttemptSubmitted, task, locked.Reward.Decimal, cfg, s.now().UTC())
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.announceGrant(ctx, attempt, task, grant)

	return attempt, grant, nil
}

// Reject closes a submitted attempt without any balance effect.
func (s *AttemptService) Reject(ctx context.Context, attemptID uuid.UUID, reason string) (*model.Attempt, error) {
	attempt, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	if !attempt.Status.CanTransitionTo(model.AttemptRejected) {
		return nil, ErrInvalidState
	}

	now := s.now().UTC()
	attempt.Status = model.AttemptRejected
	attempt.CompletedAt = &now
	if reason != "" {
		attempt.RejectReason = &reason
	}

	if err := s.store.TransitionAttempt(ctx, attempt, model.AttemptSubmitted); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrInvalidState
		}
		return nil, err
	}

	s.metrics.AttemptTransition(string(model.AttemptRejected))

	payload := map[string]any{"attempt_id": attempt.ID.String(), "reason": reason}
	if task, err := s.store.GetTask(ctx, attempt.TaskID); err == nil {
		payload["task_title"] = task.Title
	}
	dispatch(ctx, s.notifier, model.Event{
		Type:    model.EventAttemptRejected,
		UserID:  attempt.UserID,
		Payload: payload,
	})

	return attempt, nil
}

// Cancel deletes the user's in-progress attempt so the task can be started again.
func (s *AttemptService) Cancel(ctx context.Context, userID int64, taskID uuid.UUID) error {
	attempt, err := s.inProgressAttempt(ctx, userID, taskID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteInProgressAttempt(ctx, attempt.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAttemptNotFound
		}
		return err
	}

	s.metrics.AttemptTransition("cancelled")

	return nil
}

// ListUserTasks returns the active tasks with the user's availability for each.
func (s *AttemptService) ListUserTasks(ctx context.Context, userID int64) ([]*model.UserTask, error) {
	tasks, err := s.store.ListUserTasks(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	for _, t := range tasks {
		t.LimitReached = t.CompletedCount >= t.MaxPerUser
		if end := cooldownEnd(&t.Task, t.LastCompletedAt); end != nil && now.Before(*end) {
			t.AvailableAt = end
		}
	}

	return tasks, nil
}

// ListPending returns the moderation queue, oldest submission first.
func (s *AttemptService) ListPending(ctx context.Context, search string, limit, offset int) ([]*model.PendingAttempt, error) {
	if limit <= 0 {
		limit = defaultPendingLimit
	}
	if offset < 0 {
		offset = 0
	}

	return s.store.ListPendingAttempts(ctx, search, limit, offset)
}

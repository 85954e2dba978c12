package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskbot/internal/model"
	"taskbot/internal/repository"
	"taskbot/internal/service/mocks"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestAttemptService(repo *mocks.MockRepository, oracle Oracle, notifier Notifier) *AttemptService {
	cfg := testConfig()
	ranks := newTestRankService(repo, cfg, oracle, notifier)

	rewards := NewRewardEngine(repo)
	rewards.now = fixedNow
	// Always roll the lowest value so amounts are predictable.
	rewards.int64n = func(int64) int64 { return 0 }

	s := NewAttemptService(repo, staticConfig{cfg: cfg}, rewards, ranks, notifier, nil)
	s.now = fixedNow
	return s
}

func testTask(lo, hi string, taskType model.TaskType) *model.Task {
	task := &model.Task{
		ID:         uuid.New(),
		Title:      "Follow",
		RewardMin:  dec(lo),
		RewardMax:  dec(hi),
		MaxPerUser: 1,
		TaskType:   taskType,
		Active:     true,
	}
	if taskType == model.TaskTypeSubscription {
		task.ChannelID = "@news"
	}
	return task
}

func TestAttemptService_Start(t *testing.T) {
	const userID = int64(1)
	task := testTask("5", "10", model.TaskTypeOther)

	tests := []struct {
		name          string
		setupMocks    func(repo *mocks.MockRepository)
		expectedError error
	}{
		{
			name: "Task not found",
			setupMocks: func(repo *mocks.MockRepository) {
				repo.On("GetTask", mock.Anything, task.ID).Return(nil, repository.ErrNotFound)
			},
			expectedError: ErrTaskNotFound,
		},
		{
			name: "Task inactive",
			setupMocks: func(repo *mocks.MockRepository) {
				inactive := *task
				inactive.Active = false
				repo.On("GetTask", mock.Anything, task.ID).Return(&inactive, nil)
			},
			expectedError: ErrTaskNotFound,
		},
		{
			name: "Limit reached",
			setupMocks: func(repo *mocks.MockRepository) {
				repo.On("GetTask", mock.Anything, task.ID).Return(task, nil)
				repo.On("CompletedStats", mock.Anything, userID, task.ID).Return(1, timePtr(testNow.Add(-48*time.Hour)), nil)
			},
			expectedError: ErrLimitReached,
		},
		{
			name: "Cooldown not elapsed",
			setupMocks: func(repo *mocks.MockRepository) {
				repeatable := *task
				repeatable.MaxPerUser = 3
				repeatable.CooldownHours = 24
				repo.On("GetTask", mock.Anything, task.ID).Return(&repeatable, nil)
				repo.On("CompletedStats", mock.Anything, userID, task.ID).Return(1, timePtr(testNow.Add(-time.Hour)), nil)
			},
			expectedError: ErrCooldown,
		},
		{
			name: "Already active",
			setupMocks: func(repo *mocks.MockRepository) {
				repo.On("GetTask", mock.Anything, task.ID).Return(task, nil)
				repo.On("CompletedStats", mock.Anything, userID, task.ID).Return(0, nil, nil)
				repo.On("GetActiveAttempt", mock.Anything, userID, task.ID).
					Return(&model.Attempt{ID: uuid.New(), Status: model.AttemptSubmitted}, nil)
			},
			expectedError: ErrAlreadyActive,
		},
		{
			name: "Concurrent start loses on the unique index",
			setupMocks: func(repo *mocks.MockRepository) {
				repo.On("GetTask", mock.Anything, task.ID).Return(task, nil)
				repo.On("CompletedStats", mock.Anything, userID, task.ID).Return(0, nil, nil)
				repo.On("GetActiveAttempt", mock.Anything, userID, task.ID).Return(nil, repository.ErrNotFound)
				repo.On("CreateAttempt", mock.Anything, mock.Anything).Return(repository.ErrAlreadyExists)
			},
			expectedError: ErrAlreadyActive,
		},
		{
			name: "Successful start after cooldown",
			setupMocks: func(repo *mocks.MockRepository) {
				repeatable := *task
				repeatable.MaxPerUser = 3
				repeatable.CooldownHours = 24
				repo.On("GetTask", mock.Anything, task.ID).Return(&repeatable, nil)
				repo.On("CompletedStats", mock.Anything, userID, task.ID).Return(1, timePtr(testNow.Add(-25*time.Hour)), nil)
				repo.On("GetActiveAttempt", mock.Anything, userID, task.ID).Return(nil, repository.ErrNotFound)
				repo.On("CreateAttempt", mock.Anything, mock.MatchedBy(func(a *model.Attempt) bool {
					return a.UserID == userID &&
						a.TaskID == task.ID &&
						a.Status == model.AttemptInProgress &&
						a.StartedAt.Equal(testNow)
				})).Return(nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mocks.MockRepository{}
			tt.setupMocks(repo)
			s := newTestAttemptService(repo, nil, nil)

			attempt, err := s.Start(context.Background(), userID, task.ID)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, attempt)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, model.AttemptInProgress, attempt.Status)
			repo.AssertExpectations(t)
		})
	}
}

func inProgress(userID int64, taskID uuid.UUID) *model.Attempt {
	return &model.Attempt{
		ID:        uuid.New(),
		UserID:    userID,
		TaskID:    taskID,
		Status:    model.AttemptInProgress,
		StartedAt: testNow.Add(-time.Minute),
	}
}

func TestAttemptService_SubmitCompletesLowRewardTask(t *testing.T) {
	repo := &mocks.MockRepository{}
	notifier := &mocks.MockNotifier{}
	s := newTestAttemptService(repo, nil, notifier)

	task := testTask("5", "10", model.TaskTypeOther)
	attempt := inProgress(1, task.ID)
	user := &model.User{TelegramID: 1, Balance: dec("3")}

	repo.On("GetTask", mock.Anything, task.ID).Return(task, nil)
	repo.On("GetActiveAttempt", mock.Anything, int64(1), task.ID).Return(attempt, nil)
	repo.On("LockUser", mock.Anything, int64(1)).Return(user, nil)
	repo.On("CompletedStats", mock.Anything, int64(1), task.ID).Return(0, nil, nil)
	repo.On("TransitionAttempt", mock.Anything, mock.MatchedBy(func(a *model.Attempt) bool {
		return a.Status == model.AttemptCompleted && a.Reward.Valid && a.Reward.Decimal.Equal(dec("5"))
	}), model.AttemptInProgress).Return(nil)
	repo.On("EnsureUserRank", mock.Anything, int64(1), mock.Anything).
		Return(&model.UserRank{UserID: 1, CurrentRank: model.RankStone, BonusPercentage: decimal.Zero}, nil)
	repo.On("AppendBalanceChange", mock.Anything, int64(1), decEq("5"), model.ReasonTaskReward, "Task: Follow").
		Return(&model.BalanceLog{UserID: 1, Delta: dec("5"), BalanceBefore: dec("3"), BalanceAfter: dec("8")}, nil)
	repo.On("IncrementTaskCounters", mock.Anything, int64(1), decEq("5")).Return(1, nil)
	repo.On("SaveUserRank", mock.Anything, mock.Anything).Return(nil)
	notifier.On("Notify", mock.Anything, eventOfType(model.EventRewardGranted)).Return(nil).Once()

	result, err := s.Submit(context.Background(), 1, task.ID)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, model.AttemptCompleted, result.Attempt.Status)
	require.NotNil(t, result.Attempt.CompletedAt)
	require.NotNil(t, result.Grant)
	assert.True(t, result.Grant.Reward.GreaterThanOrEqual(task.RewardMin))
	assert.True(t, result.Grant.Reward.LessThanOrEqual(task.RewardMax))
	assert.True(t, result.Grant.Log.BalanceAfter.Equal(result.Grant.Log.BalanceBefore.Add(result.Grant.EffectiveReward)))

	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestAttemptService_SubmitRoutesHighRewardToModeration(t *testing.T) {
	repo := &mocks.MockRepository{}
	notifier := &mocks.MockNotifier{}
	s := newTestAttemptService(repo, nil, notifier)

	task := testTask("60", "80", model.TaskTypeOther)
	attempt := inProgress(1, task.ID)

	repo.On("GetTask", mock.Anything, task.ID).Return(task, nil)
	repo.On("GetActiveAttempt", mock.Anything, int64(1), task.ID).Return(attempt, nil)
	repo.On("TransitionAttempt", mock.Anything, mock.MatchedBy(func(a *model.Attempt) bool {
		return a.Status == model.AttemptSubmitted && a.Reward.Valid && a.SubmittedAt != nil && a.CompletedAt == nil
	}), model.AttemptInProgress).Return(nil)
	notifier.On("Notify", mock.Anything, eventOfType(model.EventAttemptSubmitted)).Return(nil).Once()

	result, err := s.Submit(context.Background(), 1, task.ID)
	require.NoError(t, err)

	assert.Equal(t, OutcomeModeration, result.Outcome)
	assert.Equal(t, model.AttemptSubmitted, result.Attempt.Status)
	assert.True(t, result.Attempt.Reward.Decimal.Equal(dec("60")))
	assert.Nil(t, result.Grant)

	repo.AssertNotCalled(t, "AppendBalanceChange", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "LockUser", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestAttemptService_SubmitSubscriptionTask(t *testing.T) {
	tests := []struct {
		name        string
		member      bool
		oracleErr   error
		wantOutcome SubmitOutcome
	}{
		{name: "not a member yet", wantOutcome: OutcomeNotSubscribed},
		{name: "oracle unavailable", oracleErr: errors.New("429 Too Many Requests"), wantOutcome: OutcomeNotSubscribed},
		{name: "member", member: true, wantOutcome: OutcomeCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mocks.MockRepository{}
			oracle := &mocks.MockOracle{}
			s := newTestAttemptService(repo, oracle, nil)

			task := testTask("1", "1", model.TaskTypeSubscription)
			attempt := inProgress(1, task.ID)

			repo.On("GetTask", mock.Anything, task.ID).Return(task, nil)
			repo.On("GetActiveAttempt", mock.Anything, int64(1), task.ID).Return(attempt, nil)
			oracle.On("IsMember", mock.Anything, int64(1), "@news").Return(tt.member, tt.oracleErr).Once()

			if tt.member {
				repo.On("LockUser", mock.Anything, int64(1)).Return(&model.User{TelegramID: 1}, nil)
				repo.On("CompletedStats", mock.Anything, int64(1), task.ID).Return(0, nil, nil)
				repo.On("TransitionAttempt", mock.Anything, mock.Anything, model.AttemptInProgress).Return(nil)
				repo.On("EnsureUserRank", mock.Anything, int64(1), mock.Anything).
					Return(&model.UserRank{UserID: 1, CurrentRank: model.RankStone}, nil)
				repo.On("AppendBalanceChange", mock.Anything, int64(1), decEq("1"), model.ReasonTaskReward, mock.Anything).
					Return(&model.BalanceLog{BalanceBefore: dec("0"), BalanceAfter: dec("1"), Delta: dec("1")}, nil)
				repo.On("IncrementTaskCounters", mock.Anything, int64(1), decEq("1")).Return(1, nil)
				repo.On("SaveUserRank", mock.Anything, mock.Anything).Return(nil)
			}

			result, err := s.Submit(context.Background(), 1, task.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, result.Outcome)

			if !tt.member {
				assert.Equal(t, model.AttemptInProgress, result.Attempt.Status)
				repo.AssertNotCalled(t, "TransitionAttempt", mock.Anything, mock.Anything, mock.Anything)
			}
			oracle.AssertExpectations(t)
		})
	}
}

func TestAttemptService_SubmitWithHangingOracle(t *testing.T) {
	repo := &mocks.MockRepository{}
	oracle := &mocks.MockOracle{}
	s := newTestAttemptService(repo, oracle, nil)
	s.ranks.oracleTimeout = 50 * time.Millisecond

	task := testTask("1", "1", model.TaskTypeSubscription)
	attempt := inProgress(1, task.ID)

	repo.On("GetTask", mock.Anything, task.ID).Return(task, nil)
	repo.On("GetActiveAttempt", mock.Anything, int64(1), task.ID).Return(attempt, nil)
	oracle.On("IsMember", mock.Anything, int64(1), "@news").
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			_, hasDeadline := ctx.Deadline()
			require.True(t, hasDeadline)
			<-ctx.Done()
		}).
		Return(false, context.DeadlineExceeded).Once()

	start := time.Now()
	result, err := s.Submit(context.Background(), 1, task.ID)
	require.NoError(t, err)

	assert.Equal(t, OutcomeNotSubscribed, result.Outcome)
	assert.Equal(t, model.AttemptInProgress, result.Attempt.Status)
	assert.Less(t, time.Since(start), time.Second)
	repo.AssertNotCalled(t, "TransitionAttempt", mock.Anything, mock.Anything, mock.Anything)
}

func TestAttemptService_SubmitErrors(t *testing.T) {
	task := testTask("5", "10", model.TaskTypeOther)

	tests := []struct {
		name          string
		setupMocks    func(repo *mocks.MockRepository)
		expectedError error
	}{
		{
			name: "No attempt",
			setupMocks: func(repo *mocks.MockRepository) {
				repo.On("GetTask", mock.Anything, task.ID).Return(task, nil)
				repo.On("GetActiveAttempt", mock.Anything, int64(1), task.ID).Return(nil, repository.ErrNotFound)
			},
			expectedError: ErrAttemptNotFound,
		},
		{
			name: "Attempt already submitted",
			setupMocks: func(repo *mocks.MockRepository) {
				submitted := inProgress(1, task.ID)
				submitted.Status = model.AttemptSubmitted
				repo.On("GetTask", mock.Anything, task.ID).Return(task, nil)
				repo.On("GetActiveAttempt", mock.Anything, int64(1), task.ID).Return(submitted, nil)
			},
			expectedError: ErrAttemptNotFound,
		},
		{
			name: "Limit reached by a concurrent completion",
			setupMocks: func(repo *mocks.MockRepository) {
				repo.On("GetTask", mock.Anything, task.ID).Return(task, nil)
				repo.On("GetActiveAttempt", mock.Anything, int64(1), task.ID).Return(inProgress(1, task.ID), nil)
				repo.On("LockUser", mock.Anything, int64(1)).Return(&model.User{TelegramID: 1}, nil)
				repo.On("CompletedStats", mock.Anything, int64(1), task.ID).Return(1, timePtr(testNow), nil)
			},
			expectedError: ErrLimitReached,
		},
		{
			name: "User vanished",
			setupMocks: func(repo *mocks.MockRepository) {
				repo.On("GetTask", mock.Anything, task.ID).Return(task, nil)
				repo.On("GetActiveAttempt", mock.Anything, int64(1), task.ID).Return(inProgress(1, task.ID), nil)
				repo.On("LockUser", mock.Anything, int64(1)).Return(nil, repository.ErrNotFound)
			},
			expectedError: ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mocks.MockRepository{}
			tt.setupMocks(repo)
			s := newTestAttemptService(repo, nil, nil)

			result, err := s.Submit(context.Background(), 1, task.ID)
			assert.ErrorIs(t, err, tt.expectedError)
			assert.Nil(t, result)
			repo.AssertNotCalled(t, "TransitionAttempt", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestAttemptService_ApproveGrantsOnce(t *testing.T) {
	repo := &mocks.MockRepository{}
	notifier := &mocks.MockNotifier{}
	s := newTestAttemptService(repo, nil, notifier)

	task := testTask("60", "80", model.TaskTypeOther)
	attempt := inProgress(1, task.ID)
	attempt.Status = model.AttemptSubmitted
	attempt.Reward = decimal.NewNullDecimal(dec("70"))
	attempt.SubmittedAt = timePtr(testNow.Add(-time.Hour))

	repo.On("GetAttempt", mock.Anything, attempt.ID).Return(attempt, nil)
	repo.On("GetTask", mock.Anything, task.ID).Return(task, nil)
	repo.On("LockAttempt", mock.Anything, attempt.ID).Return(attempt, nil)
	repo.On("LockUser", mock.Anything, int64(1)).Return(&model.User{TelegramID: 1, Balance: dec("10")}, nil)
	repo.On("CompletedStats", mock.Anything, int64(1), task.ID).Return(0, nil, nil)
	repo.On("TransitionAttempt", mock.Anything, mock.MatchedBy(func(a *model.Attempt) bool {
		return a.Status == model.AttemptCompleted && a.Reward.Decimal.Equal(dec("70"))
	}), model.AttemptSubmitted).Return(nil).Once()
	repo.On("EnsureUserRank", mock.Anything, int64(1), mock.Anything).
		Return(&model.UserRank{UserID: 1, CurrentRank: model.RankBronze, ChannelsSubscribed: true, BonusPercentage: dec("5")}, nil)
	repo.On("AppendBalanceChange", mock.Anything, int64(1), decEq("73.5"), model.ReasonTaskReward, "Task: Follow").
		Return(&model.BalanceLog{UserID: 1, Delta: dec("73.5"), BalanceBefore: dec("10"), BalanceAfter: dec("83.5")}, nil).Once()
	repo.On("IncrementTaskCounters", mock.Anything, int64(1), decEq("73.5")).Return(1, nil)
	repo.On("SaveUserRank", mock.Anything, mock.Anything).Return(nil)
	notifier.On("Notify", mock.Anything, eventOfType(model.EventRewardGranted)).Return(nil).Once()

	approved, grant, err := s.Approve(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptCompleted, approved.Status)
	assert.True(t, grant.EffectiveReward.Equal(dec("73.5")))

	_, _, err = s.Approve(context.Background(), attempt.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	repo.AssertNumberOfCalls(t, "AppendBalanceChange", 1)
	notifier.AssertExpectations(t)
}

func TestAttemptService_ApproveErrors(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name          string
		setupMocks    func(repo *mocks.MockRepository)
		expectedError error
	}{
		{
			name: "Not found",
			setupMocks: func(repo *mocks.MockRepository) {
				repo.On("GetAttempt", mock.Anything, id).Return(nil, repository.ErrNotFound)
			},
			expectedError: ErrAttemptNotFound,
		},
		{
			name: "Still in progress",
			setupMocks: func(repo *mocks.MockRepository) {
				repo.On("GetAttempt", mock.Anything, id).Return(&model.Attempt{ID: id, Status: model.AttemptInProgress}, nil)
			},
			expectedError: ErrInvalidState,
		},
		{
			name: "Rejected",
			setupMocks: func(repo *mocks.MockRepository) {
				repo.On("GetAttempt", mock.Anything, id).Return(&model.Attempt{ID: id, Status: model.AttemptRejected}, nil)
			},
			expectedError: ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mocks.MockRepository{}
			tt.setupMocks(repo)
			s := newTestAttemptService(repo, nil, nil)

			_, _, err := s.Approve(context.Background(), id)
			assert.ErrorIs(t, err, tt.expectedError)
		})
	}
}

func TestAttemptService_RejectIsNotRepeatable(t *testing.T) {
	repo := &mocks.MockRepository{}
	notifier := &mocks.MockNotifier{}
	s := newTestAttemptService(repo, nil, notifier)

	task := testTask("60", "80", model.TaskTypeOther)
	attempt := inProgress(1, task.ID)
	attempt.Status = model.AttemptSubmitted
	attempt.Reward = decimal.NewNullDecimal(dec("65"))

	repo.On("GetAttempt", mock.Anything, attempt.ID).Return(attempt, nil)
	repo.On("TransitionAttempt", mock.Anything, mock.MatchedBy(func(a *model.Attempt) bool {
		return a.Status == model.AttemptRejected && a.RejectReason != nil && *a.RejectReason == "no screenshot"
	}), model.AttemptSubmitted).Return(nil).Once()
	repo.On("GetTask", mock.Anything, task.ID).Return(task, nil)
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(e model.Event) bool {
		return e.Type == model.EventAttemptRejected && e.Payload["reason"] == "no screenshot"
	})).Return(errors.New("bot blocked")).Once()

	rejected, err := s.Reject(context.Background(), attempt.ID, "no screenshot")
	require.NoError(t, err)
	assert.Equal(t, model.AttemptRejected, rejected.Status)

	_, err = s.Reject(context.Background(), attempt.ID, "again")
	assert.ErrorIs(t, err, ErrInvalidState)

	assert.Equal(t, model.AttemptRejected, attempt.Status)
	assert.True(t, attempt.Reward.Decimal.Equal(dec("65")))
	assert.Equal(t, "no screenshot", *attempt.RejectReason)
	repo.AssertNumberOfCalls(t, "TransitionAttempt", 1)
	repo.AssertNotCalled(t, "AppendBalanceChange", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAttemptService_RejectLostRace(t *testing.T) {
	repo := &mocks.MockRepository{}
	s := newTestAttemptService(repo, nil, nil)

	attempt := &model.Attempt{ID: uuid.New(), UserID: 1, Status: model.AttemptSubmitted}
	repo.On("GetAttempt", mock.Anything, attempt.ID).Return(attempt, nil)
	repo.On("TransitionAttempt", mock.Anything, mock.Anything, model.AttemptSubmitted).Return(repository.ErrConflict)

	_, err := s.Reject(context.Background(), attempt.ID, "")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestAttemptService_Cancel(t *testing.T) {
	taskID := uuid.New()

	tests := []struct {
		name          string
		setupMocks    func(repo *mocks.MockRepository)
		expectedError error
	}{
		{
			name: "Deletes in-progress attempt",
			setupMocks: func(repo *mocks.MockRepository) {
				attempt := inProgress(1, taskID)
				repo.On("GetActiveAttempt", mock.Anything, int64(1), taskID).Return(attempt, nil)
				repo.On("DeleteInProgressAttempt", mock.Anything, attempt.ID).Return(nil)
			},
		},
		{
			name: "Submitted attempts cannot be cancelled",
			setupMocks: func(repo *mocks.MockRepository) {
				attempt := inProgress(1, taskID)
				attempt.Status = model.AttemptSubmitted
				repo.On("GetActiveAttempt", mock.Anything, int64(1), taskID).Return(attempt, nil)
			},
			expectedError: ErrAttemptNotFound,
		},
		{
			name: "Submitted concurrently",
			setupMocks: func(repo *mocks.MockRepository) {
				attempt := inProgress(1, taskID)
				repo.On("GetActiveAttempt", mock.Anything, int64(1), taskID).Return(attempt, nil)
				repo.On("DeleteInProgressAttempt", mock.Anything, attempt.ID).Return(repository.ErrNotFound)
			},
			expectedError: ErrAttemptNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mocks.MockRepository{}
			tt.setupMocks(repo)
			s := newTestAttemptService(repo, nil, nil)

			err := s.Cancel(context.Background(), 1, taskID)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				return
			}
			assert.NoError(t, err)
			repo.AssertExpectations(t)
		})
	}
}

func TestAttemptService_ListUserTasks(t *testing.T) {
	repo := &mocks.MockRepository{}
	s := newTestAttemptService(repo, nil, nil)

	done := &model.UserTask{Task: *testTask("1", "2", model.TaskTypeOther), CompletedCount: 1}
	cooling := &model.UserTask{
		Task:            *testTask("1", "2", model.TaskTypeOther),
		CompletedCount:  1,
		LastCompletedAt: timePtr(testNow.Add(-2 * time.Hour)),
	}
	cooling.MaxPerUser = 5
	cooling.CooldownHours = 6
	fresh := &model.UserTask{Task: *testTask("1", "2", model.TaskTypeOther)}

	repo.On("ListUserTasks", mock.Anything, int64(1)).Return([]*model.UserTask{done, cooling, fresh}, nil)

	tasks, err := s.ListUserTasks(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	assert.True(t, tasks[0].LimitReached)
	assert.False(t, tasks[1].LimitReached)
	require.NotNil(t, tasks[1].AvailableAt)
	assert.Equal(t, testNow.Add(4*time.Hour), *tasks[1].AvailableAt)
	assert.False(t, tasks[2].LimitReached)
	assert.Nil(t, tasks[2].AvailableAt)
}

func TestAttemptService_ListPendingDefaults(t *testing.T) {
	repo := &mocks.MockRepository{}
	s := newTestAttemptService(repo, nil, nil)

	repo.On("ListPendingAttempts", mock.Anything, "alice", defaultPendingLimit, 0).Return([]*model.PendingAttempt{}, nil)

	pending, err := s.ListPending(context.Background(), "alice", 0, -5)
	require.NoError(t, err)
	assert.Empty(t, pending)
	repo.AssertExpectations(t)
}

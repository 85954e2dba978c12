package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TaskType string

const (
	TaskTypeSubscription TaskType = "subscription"
	TaskTypeOther        TaskType = "other"
)

func (t TaskType) Valid() bool {
	return t == TaskTypeSubscription || t == TaskTypeOther
}

type Task struct {
	ID            uuid.UUID
	Title         string
	Description   string
	Link          string
	RewardMin     decimal.Decimal
	RewardMax     decimal.Decimal
	MaxPerUser    int
	TaskType      TaskType
	ChannelID     string
	CooldownHours int
	Active        bool
	CreatedAt     time.Time
}

// AttemptStatus is the lifecycle state of a user's attempt at a task.
// Cancelled in_progress attempts are deleted and have no status of their own.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptRejected   AttemptStatus = "rejected"
)

var attemptTransitions = map[AttemptStatus][]AttemptStatus{
	AttemptInProgress: {AttemptSubmitted, AttemptCompleted},
	AttemptSubmitted:  {AttemptCompleted, AttemptRejected},
}

func (s AttemptStatus) Valid() bool {
	switch s {
	case AttemptInProgress, AttemptSubmitted, AttemptCompleted, AttemptRejected:
		return true
	}
	return false
}

// Active reports whether the attempt still blocks a fresh start of the same task.
func (s AttemptStatus) Active() bool {
	return s == AttemptInProgress || s == AttemptSubmitted
}

func (s AttemptStatus) CanTransitionTo(next AttemptStatus) bool {
	for _, allowed := range attemptTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Attempt struct {
	ID           uuid.UUID
	UserID       int64
	TaskID       uuid.UUID
	Status       AttemptStatus
	Reward       decimal.NullDecimal
	RejectReason *string
	StartedAt    time.Time
	SubmittedAt  *time.Time
	CompletedAt  *time.Time
}

// PendingAttempt is a row of the moderation queue.
type PendingAttempt struct {
	Attempt
	Username  string
	TaskTitle string
	RewardMin decimal.Decimal
	RewardMax decimal.Decimal
}

// UserTask is a task as seen by one user in the task list.
type UserTask struct {
	Task
	CompletedCount  int
	ActiveStatus    *AttemptStatus
	LastCompletedAt *time.Time
	LimitReached    bool
	AvailableAt     *time.Time
}

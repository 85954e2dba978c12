package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskbot/internal/model"
	"taskbot/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaskInput is an admin's task definition.
type TaskInput struct {
	Title         string          `json:"title" validate:"required,max=255"`
	Description   string          `json:"description" validate:"max=4096"`
	Link          string          `json:"link" validate:"omitempty,url"`
	RewardMin     decimal.Decimal `json:"reward_min"`
	RewardMax     decimal.Decimal `json:"reward_max"`
	MaxPerUser    int             `json:"max_per_user" validate:"gte=1"`
	TaskType      model.TaskType  `json:"task_type" validate:"required,oneof=subscription other"`
	ChannelID     string          `json:"channel_id" validate:"required_if=TaskType subscription,max=255"`
	CooldownHours int             `json:"cooldown_hours" validate:"gte=0"`
	Active        *bool           `json:"active"`
}

func taskInputValidation(sl validator.StructLevel) {
	in := sl.Current().Interface().(TaskInput)

	if in.RewardMin.IsNegative() {
		sl.ReportError(in.RewardMin, "RewardMin", "reward_min", "gte0", "")
	}
	if in.RewardMax.LessThan(in.RewardMin) {
		sl.ReportError(in.RewardMax, "RewardMax", "reward_max", "gtefield", "RewardMin")
	}
	if in.TaskType != model.TaskTypeSubscription && strings.TrimSpace(in.ChannelID) != "" {
		sl.ReportError(in.ChannelID, "ChannelID", "channel_id", "excluded_unless", "TaskType subscription")
	}
}

type TaskService struct {
	repo     TaskStore
	validate *validator.Validate
	now      func() time.Time
}

func NewTaskService(repo TaskStore) *TaskService {
	v := validator.New()
	v.RegisterStructValidation(taskInputValidation, TaskInput{})

	return &TaskService{
		repo:     repo,
		validate: v,
		now:      time.Now,
	}
}

func (s *TaskService) check(in *TaskInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.ChannelID = strings.TrimSpace(in.ChannelID)
	if in.MaxPerUser == 0 {
		in.MaxPerUser = 1
	}

	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrValidation, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	return nil
}

func (s *TaskService) Create(ctx context.Context, in TaskInput) (*model.Task, error) {
	if err := s.check(&in); err != nil {
		return nil, err
	}

	task := &model.Task{
		ID:        uuid.New(),
		Active:    true,
		CreatedAt: s.now().UTC(),
	}
	applyTaskInput(task, in)

	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	return task, nil
}

// Update replaces the task definition. Reward bounds, type, channel and the
// per-user limit are frozen while any attempt is in progress or awaiting
// moderation; the rest can always be edited.
func (s *TaskService) Update(ctx context.Context, id uuid.UUID, in TaskInput) (*model.Task, error) {
	if err := s.check(&in); err != nil {
		return nil, err
	}

	var task *model.Task
	err := s.repo.Transaction(ctx, func(ctx context.Context) error {
		var err error
		task, err = s.repo.LockTask(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrTaskNotFound
			}
			return err
		}

		if changesTerms(task, in) {
			open, err := s.repo.CountOpenAttempts(ctx, id)
			if err != nil {
				return err
			}
			if open > 0 {
				return fmt.Errorf("%w: task has %d attempts in flight", ErrInvalidState, open)
			}
		}

		applyTaskInput(task, in)

		if err := s.repo.UpdateTask(ctx, task); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrTaskNotFound
			}
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return task, nil
}

// changesTerms reports whether in alters what an attempt is judged and paid by.
func changesTerms(task *model.Task, in TaskInput) bool {
	return !task.RewardMin.Equal(in.RewardMin) ||
		!task.RewardMax.Equal(in.RewardMax) ||
		task.MaxPerUser != in.MaxPerUser ||
		task.TaskType != in.TaskType ||
		task.ChannelID != in.ChannelID
}

func applyTaskInput(task *model.Task, in TaskInput) {
	task.Title = in.Title
	task.Description = in.Description
	task.Link = in.Link
	task.RewardMin = in.RewardMin
	task.RewardMax = in.RewardMax
	task.MaxPerUser = in.MaxPerUser
	task.TaskType = in.TaskType
	task.ChannelID = in.ChannelID
	task.CooldownHours = in.CooldownHours
	if in.Active != nil {
		task.Active = *in.Active
	}
}

func (s *TaskService) SetActive(ctx context.Context, id uuid.UUID, active bool) (*model.Task, error) {
	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	task.Active = active

	if err := s.repo.UpdateTask(ctx, task); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	return task, nil
}

func (s *TaskService) Get(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	return task, nil
}

func (s *TaskService) List(ctx context.Context, activeOnly bool) ([]*model.Task, error) {
	return s.repo.ListTasks(ctx, activeOnly)
}

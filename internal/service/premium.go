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
)

const defaultPremiumListLimit = 50

// PremiumService runs the platinum purchase workflow: an immediate balance
// debit or an admin-driven manual payment.
type PremiumService struct {
	store    PremiumStore
	config   ConfigSource
	ranks    *RankService
	notifier Notifier
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewPremiumService(store PremiumStore, config ConfigSource, ranks *RankService, notifier Notifier, m *metrics.Metrics) *PremiumService {
	return &PremiumService{
		store:    store,
		config:   config,
		ranks:    ranks,
		notifier: notifier,
		metrics:  m,
		now:      time.Now,
	}
}

func requestNumber(currency model.Currency, now time.Time) string {
	return fmt.Sprintf("%s-%05d", currency, now.UnixMilli()%100000)
}

// CreateRequest opens a purchase for a gold or platinum user. The balance
// method debits, completes and activates in one transaction; on a shortfall
// nothing is persisted.
func (s *PremiumService) CreateRequest(ctx context.Context, userID int64, method model.PaymentMethod) (*model.PremiumRequest, error) {
	currency, ok := method.Currency()
	if !ok {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrValidation, method)
	}

	rank, err := s.ranks.GetRank(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rank.CurrentRank != model.RankGold && rank.CurrentRank != model.RankPlatinum {
		return nil, ErrForbidden
	}

	cfg, err := s.config.Config(ctx)
	if err != nil {
		return nil, err
	}

	price, _ := cfg.Rank.PriceFor(currency)
	now := s.now().UTC()

	req := &model.PremiumRequest{
		ID:            uuid.New(),
		RequestNumber: requestNumber(currency, now),
		UserID:        userID,
		PaymentMethod: method,
		Amount:        price,
		Currency:      currency,
		Status:        model.PremiumNew,
		CreatedAt:     now,
	}

	if !method.IsBalance() {
		if err := s.store.CreatePremiumRequest(ctx, req); err != nil {
			return nil, err
		}
		s.metrics.PremiumRequest(string(method), string(req.Status))
		return req, nil
	}

	var activated *model.UserRank
	err = s.store.Transaction(ctx, func(ctx context.Context) error {
		user, err := s.store.LockUser(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		if user.Balance.LessThan(price) {
			return &InsufficientFundsError{
				Required:  price,
				Available: user.Balance,
				Shortfall: price.Sub(user.Balance),
			}
		}

		comment := fmt.Sprintf("Platinum subscription %s", req.RequestNumber)
		if _, err := s.store.AppendBalanceChange(ctx, userID, price.Neg(), model.ReasonPremiumPurchase, comment); err != nil {
			return fmt.Errorf("failed to debit balance: %w", err)
		}

		req.Status = model.PremiumCompleted
		req.CompletedAt = &now
		if err := s.store.CreatePremiumRequest(ctx, req); err != nil {
			return err
		}

		activated, err = activatePlatinum(ctx, s.store, userID, cfg.Rank, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PremiumRequest(string(method), string(req.Status))
	s.ranks.announcePlatinum(ctx, activated)

	return req, nil
}

func (s *PremiumService) Get(ctx context.Context, id uuid.UUID) (*model.PremiumRequest, error) {
	req, err := s.store.GetPremiumRequest(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	return req, nil
}

func (s *PremiumService) List(ctx context.Context, filter model.PremiumFilter) ([]*model.PremiumRequest, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultPremiumListLimit
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *filter.Status)
	}

	return s.store.ListPremiumRequests(ctx, filter)
}

func (s *PremiumService) ListMine(ctx context.Context, userID int64) ([]*model.PremiumRequest, error) {
	return s.List(ctx, model.PremiumFilter{UserID: &userID})
}

func (s *PremiumService) TakeInProgress(ctx context.Context, id uuid.UUID) (*model.PremiumRequest, error) {
	return s.transition(ctx, id, model.PremiumInProgress, nil, nil)
}

func (s *PremiumService) MarkRequisitesSent(ctx context.Context, id uuid.UUID, notes string) (*model.PremiumRequest, error) {
	return s.transition(ctx, id, model.PremiumRequisitesSent, &notes, nil)
}

func (s *PremiumService) ConfirmPayment(ctx context.Context, id uuid.UUID) (*model.PremiumRequest, error) {
	return s.transition(ctx, id, model.PremiumPaymentConfirmed, nil, nil)
}

func (s *PremiumService) Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.PremiumRequest, error) {
	return s.transition(ctx, id, model.PremiumCancelled, &reason, nil)
}

// Activate completes a manual request and grants platinum. The payment must
// be confirmed first; a completed request cannot be activated again.
func (s *PremiumService) Activate(ctx context.Context, id uuid.UUID) (*model.PremiumRequest, error) {
	cfg, err := s.config.Config(ctx)
	if err != nil {
		return nil, err
	}

	var activated *model.UserRank
	req, err := s.transition(ctx, id, model.PremiumCompleted, nil, func(ctx context.Context, req *model.PremiumRequest, now time.Time) error {
		var err error
		activated, err = activatePlatinum(ctx, s.store, req.UserID, cfg.Rank, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.ranks.announcePlatinum(ctx, activated)

	return req, nil
}

// transition moves the request to next under its row lock. then, when set,
// runs in the same transaction after the status update.
func (s *PremiumService) transition(
	ctx context.Context,
	id uuid.UUID,
	next model.PremiumStatus,
	notes *string,
	then func(ctx context.Context, req *model.PremiumRequest, now time.Time) error,
) (*model.PremiumRequest, error) {
	var req *model.PremiumRequest

	err := s.store.Transaction(ctx, func(ctx context.Context) error {
		var err error
		req, err = s.store.GetPremiumRequest(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrRequestNotFound
			}
			return err
		}

		from := req.Status
		if !from.CanTransitionTo(next) {
			return ErrInvalidState
		}

		now := s.now().UTC()
		req.Status = next
		if notes != nil && *notes != "" {
			req.AdminNotes = notes
		}
		stampPremium(req, next, now)

		if err := s.store.UpdatePremiumRequest(ctx, req, from); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrInvalidState
			}
			return err
		}

		if then != nil {
			return then(ctx, req, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PremiumRequest(string(req.PaymentMethod), string(req.Status))

	return req, nil
}

func stampPremium(req *model.PremiumRequest, status model.PremiumStatus, now time.Time) {
	switch status {
	case model.PremiumInProgress:
		req.InProgressAt = &now
	case model.PremiumRequisitesSent:
		req.RequisitesSentAt = &now
	case model.PremiumPaymentConfirmed:
		req.PaymentConfirmedAt = &now
	case model.PremiumCompleted:
		req.CompletedAt = &now
	case model.PremiumCancelled:
		req.CancelledAt = &now
	}
}

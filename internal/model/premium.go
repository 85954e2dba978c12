package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyRUB Currency = "RUB"
	CurrencyUAH Currency = "UAH"
)

type PaymentMethod string

const (
	PaymentUSDBalance    PaymentMethod = "usd_balance"
	PaymentRUBRequisites PaymentMethod = "rub_requisites"
	PaymentUAHRequisites PaymentMethod = "uah_requisites"
)

func (m PaymentMethod) Currency() (Currency, bool) {
	switch m {
	case PaymentUSDBalance:
		return CurrencyUSD, true
	case PaymentRUBRequisites:
		return CurrencyRUB, true
	case PaymentUAHRequisites:
		return CurrencyUAH, true
	}
	return "", false
}

func (m PaymentMethod) IsBalance() bool {
	return m == PaymentUSDBalance
}

type PremiumStatus string

const (
	PremiumNew              PremiumStatus = "new"
	PremiumInProgress       PremiumStatus = "in_progress"
	PremiumRequisitesSent   PremiumStatus = "requisites_sent"
	PremiumPaymentConfirmed PremiumStatus = "payment_confirmed"
	PremiumCompleted        PremiumStatus = "completed"
	PremiumCancelled        PremiumStatus = "cancelled"
)

// completed and cancelled are terminal. A requisites request reaches completed
// only through payment_confirmed; balance purchases are created completed.
var premiumTransitions = map[PremiumStatus][]PremiumStatus{
	PremiumNew:              {PremiumInProgress, PremiumRequisitesSent, PremiumCancelled},
	PremiumInProgress:       {PremiumRequisitesSent, PremiumPaymentConfirmed, PremiumCancelled},
	PremiumRequisitesSent:   {PremiumPaymentConfirmed, PremiumCancelled},
	PremiumPaymentConfirmed: {PremiumCompleted, PremiumCancelled},
}

func (s PremiumStatus) Valid() bool {
	switch s {
	case PremiumNew, PremiumInProgress, PremiumRequisitesSent, PremiumPaymentConfirmed, PremiumCompleted, PremiumCancelled:
		return true
	}
	return false
}

func (s PremiumStatus) Terminal() bool {
	return s == PremiumCompleted || s == PremiumCancelled
}

func (s PremiumStatus) CanTransitionTo(next PremiumStatus) bool {
	for _, allowed := range premiumTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PremiumRequest struct {
	ID                 uuid.UUID
	RequestNumber      string
	UserID             int64
	PaymentMethod      PaymentMethod
	Amount             decimal.Decimal
	Currency           Currency
	Status             PremiumStatus
	AdminNotes         *string
	CreatedAt          time.Time
	InProgressAt       *time.Time
	RequisitesSentAt   *time.Time
	PaymentConfirmedAt *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
}

type PremiumFilter struct {
	UserID *int64
	Status *PremiumStatus
	Limit  int
	Offset int
}

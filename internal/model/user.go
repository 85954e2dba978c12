package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	TelegramID       int64
	Handle           string
	Username         string
	ReferrerID       *int64
	Referrals        int
	Balance          decimal.Decimal
	TotalEarned      decimal.Decimal
	TasksCompleted   int
	IsAdmin          bool
	RegistrationDate time.Time
}

package domain

import (
	"fmt"
	"math"
	"time"
)

// TransactionType distinguishes ledger movements.
type TransactionType string

const (
	TransactionPayment TransactionType = "payment"
	TransactionRefund  TransactionType = "refund"
)

// Transaction is an append-only ledger entry mirrored from the server.
type Transaction struct {
	ID        string          `json:"id"`
	BookingID string          `json:"bookingId"`
	Amount    float64         `json:"amount"`
	Type      TransactionType `json:"type"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}

// AddBalanceInput is a top-up request.
type AddBalanceInput struct {
	Amount float64 `json:"amount" validate:"finite,gt=0,lte=100000"`
}

// BalanceUpdate is the server's answer to a top-up.
type BalanceUpdate struct {
	Balance     float64      `json:"balance"`
	Transaction *Transaction `json:"transaction,omitempty"`
}

// Cents converts a currency amount to integer cents, rounding half away from zero.
func Cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FormatAmount renders an amount with two decimals.
func FormatAmount(amount float64) string {
	c := Cents(amount)
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

// Shortfall returns how much is missing for balance to cover price, or 0.
func Shortfall(balance, price float64) float64 {
	diff := Cents(price) - Cents(balance)
	if diff <= 0 {
		return 0
	}
	return float64(diff) / 100
}

package domain

import "time"

// PaymentMethod represents how a booking is paid.
type PaymentMethod string

const (
	PaymentMethodCash    PaymentMethod = "CASH"
	PaymentMethodBanking PaymentMethod = "BANKING"
	PaymentMethodCard    PaymentMethod = "CARD"
)

// PaymentStatus represents the current status of a payment.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// Terminal reports whether the payment can no longer change state.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

// Payment is a payment attempt against an existing booking. CASH and BANKING
// payments are confirmed synchronously or via an external channel; CARD
// payments start PENDING and are settled only by the redirect reconciler.
type Payment struct {
	ID              string
	BookingID       string
	Method          PaymentMethod
	Amount          int64
	Status          PaymentStatus
	TransactionCode string
	IdempotencyKey  string
	CreatedAt       time.Time
}

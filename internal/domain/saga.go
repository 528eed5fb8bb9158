package domain

import "time"

// SagaStep is the typed checkout step. Transitions are guarded by the
// orchestrator; calling an advance from the wrong step fails fast with a
// PRECONDITION error instead of silently no-opping.
type SagaStep string

const (
	// StepDrafting has no booking yet.
	StepDrafting SagaStep = "DRAFTING"
	// StepBooked has a booking but no settled payment.
	StepBooked SagaStep = "BOOKED"
	// StepSettled has a settled payment and awaits only finalize.
	StepSettled SagaStep = "SETTLED"
)

// SagaState is the persisted checkout saga. It is stored process-externally
// keyed by session ID and, once a booking exists, also by booking ID: after a
// gateway redirect the booking ID carried in the return URL is the only
// continuity token.
type SagaState struct {
	SessionID string    `json:"session_id"`
	Step      SagaStep  `json:"step"`
	BookingID string    `json:"booking_id,omitempty"`
	PaymentID string    `json:"payment_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

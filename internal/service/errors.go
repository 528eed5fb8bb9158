package service

import "coach/internal/domain"

var (
	// ErrDraftMissing is returned when the session has no draft to book from.
	ErrDraftMissing = domain.E(domain.KindValidation, "no draft for this session")

	// ErrNoSeatsSelected is returned when the draft selects no seats.
	ErrNoSeatsSelected = domain.E(domain.KindValidation, "at least one seat must be selected")

	// ErrPassengerIncomplete is returned when the passenger name or phone is missing.
	ErrPassengerIncomplete = domain.E(domain.KindValidation, "passenger full name and phone are required")

	// ErrTripNotFound is returned when the draft references an unknown trip.
	ErrTripNotFound = domain.E(domain.KindValidation, "trip not found")

	// ErrNoPaymentMethod is returned when no payment method was selected.
	ErrNoPaymentMethod = domain.E(domain.KindValidation, "no payment method selected")

	// ErrUnknownPaymentMethod is returned for a method outside CASH/BANKING/CARD.
	ErrUnknownPaymentMethod = domain.E(domain.KindValidation, "unknown payment method")

	// ErrSeatConflict is returned when a seat was concurrently reserved by
	// another booking for the same trip.
	ErrSeatConflict = domain.E(domain.KindConflict, "seat already reserved for this trip")

	// ErrNotDrafting is returned when an advance-to-booking is attempted
	// outside the DRAFTING step.
	ErrNotDrafting = domain.E(domain.KindPrecondition, "checkout is not at the draft step")

	// ErrNotBooked is returned when a payment or retreat is attempted
	// without a booked checkout.
	ErrNotBooked = domain.E(domain.KindPrecondition, "checkout is not at the payment step")

	// ErrNotSettled is returned when finalize is attempted before a payment settled.
	ErrNotSettled = domain.E(domain.KindPrecondition, "checkout has no settled payment")

	// ErrCheckoutBusy is returned when another transition holds the session lock.
	ErrCheckoutBusy = domain.E(domain.KindPrecondition, "another checkout transition is in flight")

	// ErrReconcileBusy is returned when a callback races a reconciliation in flight.
	ErrReconcileBusy = domain.E(domain.KindRetryable, "reconciliation already in progress")

	// ErrBookingNotFound is returned when the booking is already gone.
	ErrBookingNotFound = domain.E(domain.KindNotFound, "booking not found")

	// ErrPaymentNotFound is returned when no payment exists to reconcile.
	ErrPaymentNotFound = domain.E(domain.KindNotFound, "payment not found")

	// ErrInvoiceNotFound is returned when no invoice exists for the booking.
	ErrInvoiceNotFound = domain.E(domain.KindNotFound, "invoice not found")

	// ErrGatewayUnavailable is returned when the payment gateway cannot be
	// reached. Safe to retry with the same idempotency key.
	ErrGatewayUnavailable = domain.E(domain.KindRetryable, "payment gateway unreachable")
)

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"coach/internal/domain"
	"coach/internal/gateway"
	"coach/internal/repository"
)

// OutcomeKind tags what the caller must do with a payment outcome.
type OutcomeKind string

const (
	// OutcomeSettled means the payment completed synchronously.
	OutcomeSettled OutcomeKind = "SETTLED"
	// OutcomePending means the payment awaits an external confirmation
	// channel (bank transfer against the QR payload).
	OutcomePending OutcomeKind = "PENDING"
	// OutcomeRedirect means the browser must navigate to RedirectURL; the
	// true outcome arrives later on the return callback.
	OutcomeRedirect OutcomeKind = "REDIRECT"
)

// PaymentOutcome is the normalized result of dispatching a payment.
type PaymentOutcome struct {
	Kind        OutcomeKind
	Payment     *domain.Payment
	QRPayload   string
	RedirectURL string
}

// PayParams carries method-specific parameters.
type PayParams struct {
	BankCode string // CARD: preselected bank on the gateway page
}

// Dispatcher defines the payment operations the orchestrator depends on.
type Dispatcher interface {
	Pay(ctx context.Context, booking *domain.Booking, method domain.PaymentMethod, params PayParams) (*PaymentOutcome, error)
	CancelOpenPayment(ctx context.Context, bookingID string) error
}

// Ensure PaymentDispatcher implements Dispatcher.
var _ Dispatcher = (*PaymentDispatcher)(nil)

// PaymentDispatcher invokes the correct payment path for a chosen method and
// normalizes the result. It never settles a CARD payment itself; that is the
// redirect reconciler's job.
type PaymentDispatcher struct {
	paymentRepo repository.PaymentRepository
	card        gateway.CardGateway
	qr          gateway.QRBuilder
}

// NewPaymentDispatcher creates a new PaymentDispatcher.
func NewPaymentDispatcher(paymentRepo repository.PaymentRepository, card gateway.CardGateway, qr gateway.QRBuilder) *PaymentDispatcher {
	return &PaymentDispatcher{
		paymentRepo: paymentRepo,
		card:        card,
		qr:          qr,
	}
}

// Pay dispatches a payment for a booking. Method validation happens before
// any repository or gateway call. A booking holds at most one non-terminal
// payment: an open payment with the same method is reused (its artifacts are
// rebuilt), an open payment with a different method is marked FAILED before
// the new attempt is created.
func (d *PaymentDispatcher) Pay(ctx context.Context, booking *domain.Booking, method domain.PaymentMethod, params PayParams) (*PaymentOutcome, error) {
	if method == "" {
		return nil, ErrNoPaymentMethod
	}
	switch method {
	case domain.PaymentMethodCash, domain.PaymentMethodBanking, domain.PaymentMethodCard:
	default:
		return nil, ErrUnknownPaymentMethod
	}

	payment, err := d.openPayment(ctx, booking, method)
	if err != nil {
		return nil, err
	}

	switch method {
	case domain.PaymentMethodCash:
		// No external call: cash settles at the counter.
		if err := d.paymentRepo.UpdateStatus(ctx, payment.ID, domain.PaymentStatusSuccess, ""); err != nil {
			return nil, domain.Wrap(domain.KindRetryable, "payment update failed", err)
		}
		payment.Status = domain.PaymentStatusSuccess
		return &PaymentOutcome{Kind: OutcomeSettled, Payment: payment}, nil

	case domain.PaymentMethodBanking:
		payload, err := d.qr.Build(ctx, booking.ID, booking.TotalAmount)
		if err != nil {
			return nil, domain.Wrap(domain.KindRetryable, ErrGatewayUnavailable.Message, err)
		}
		return &PaymentOutcome{Kind: OutcomePending, Payment: payment, QRPayload: payload}, nil

	default: // CARD
		url, err := d.card.BuildPaymentURL(ctx, gateway.PaymentURLRequest{
			BookingID: booking.ID,
			Amount:    booking.TotalAmount,
			BankCode:  params.BankCode,
		})
		if err != nil {
			return nil, domain.Wrap(domain.KindRetryable, ErrGatewayUnavailable.Message, err)
		}
		return &PaymentOutcome{Kind: OutcomeRedirect, Payment: payment, RedirectURL: url}, nil
	}
}

// CancelOpenPayment marks the booking's open payment FAILED, if any. Used
// when the user retreats from the payment step.
func (d *PaymentDispatcher) CancelOpenPayment(ctx context.Context, bookingID string) error {
	open, err := d.paymentRepo.GetOpenByBookingID(ctx, bookingID)
	if err != nil {
		return domain.Wrap(domain.KindRetryable, "payment lookup failed", err)
	}
	if open == nil {
		return nil
	}
	return d.paymentRepo.UpdateStatus(ctx, open.ID, domain.PaymentStatusFailed, "cancelled")
}

// openPayment returns the payment to use for this attempt, creating a new
// PENDING one if the booking has none open.
func (d *PaymentDispatcher) openPayment(ctx context.Context, booking *domain.Booking, method domain.PaymentMethod) (*domain.Payment, error) {
	open, err := d.paymentRepo.GetOpenByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, domain.Wrap(domain.KindRetryable, "payment lookup failed", err)
	}

	if open != nil {
		if open.Method == method {
			return open, nil
		}
		// The user switched methods; the abandoned attempt terminates so the
		// single-open-payment invariant holds.
		if err := d.paymentRepo.UpdateStatus(ctx, open.ID, domain.PaymentStatusFailed, "superseded"); err != nil {
			return nil, domain.Wrap(domain.KindRetryable, "payment update failed", err)
		}
	}

	attempts, err := d.paymentRepo.CountByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, domain.Wrap(domain.KindRetryable, "payment lookup failed", err)
	}

	key := idempotencyKey(booking.ID, method, attempts+1)

	// Guard against a re-invocation racing its own earlier create.
	if existing, err := d.paymentRepo.GetByIdempotencyKey(ctx, key); err != nil {
		return nil, domain.Wrap(domain.KindRetryable, "payment lookup failed", err)
	} else if existing != nil {
		return existing, nil
	}

	payment := &domain.Payment{
		ID:             uuid.New().String(),
		BookingID:      booking.ID,
		Method:         method,
		Amount:         booking.TotalAmount,
		Status:         domain.PaymentStatusPending,
		IdempotencyKey: key,
		CreatedAt:      time.Now(),
	}

	if err := d.paymentRepo.Create(ctx, payment); err != nil {
		// The unique key means a concurrent create won; adopt it.
		if existing, lookupErr := d.paymentRepo.GetByIdempotencyKey(ctx, key); lookupErr == nil && existing != nil {
			return existing, nil
		}
		return nil, domain.Wrap(domain.KindRetryable, "payment creation failed", err)
	}

	return payment, nil
}

// idempotencyKey derives a stable key for one payment attempt.
func idempotencyKey(bookingID string, method domain.PaymentMethod, attempt int) string {
	return fmt.Sprintf("payment:%s:%s:%d", bookingID, strings.ToLower(string(method)), attempt)
}

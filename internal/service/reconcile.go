package service

import (
	"context"
	"log"
	"time"

	"coach/internal/domain"
	"coach/internal/events"
	"coach/internal/gateway"
	"coach/internal/redis"
	"coach/internal/repository"
)

// reconcileLockTTL bounds a crashed reconciliation's hold on a booking.
const reconcileLockTTL = 15 * time.Second

// ReconcileResult is the outcome of consuming a gateway return callback.
type ReconcileResult struct {
	Booking  *domain.Booking
	Payment  *domain.Payment
	Settled  bool
	Replayed bool
}

// RedirectReconciler consumes the card gateway's return callback and resumes
// the saga at the payment-confirmation step. The process that issued the
// redirect may be long gone; the booking ID carried in the callback is the
// only continuity token, so everything is looked up fresh by booking ID.
type RedirectReconciler struct {
	sagaStore   redis.SagaStoreInterface
	lockStore   redis.LockStoreInterface
	bookings    BookingGateway
	paymentRepo repository.PaymentRepository
	finalizer   Finalizer
	publisher   events.Publisher
}

// NewRedirectReconciler creates a new RedirectReconciler.
func NewRedirectReconciler(
	sagaStore redis.SagaStoreInterface,
	lockStore redis.LockStoreInterface,
	bookings BookingGateway,
	paymentRepo repository.PaymentRepository,
	finalizer Finalizer,
	publisher events.Publisher,
) *RedirectReconciler {
	return &RedirectReconciler{
		sagaStore:   sagaStore,
		lockStore:   lockStore,
		bookings:    bookings,
		paymentRepo: paymentRepo,
		finalizer:   finalizer,
		publisher:   publisher,
	}
}

// HandleReturn reconciles a gateway callback. Success settles the matching
// saga and finalizes it; anything else marks the open payment FAILED and
// leaves the booking BOOKED, since the reservation may still be wanted with
// another method. Replaying the same callback is idempotent: no second
// payment record and no second finalize.
func (r *RedirectReconciler) HandleReturn(ctx context.Context, result gateway.ReturnResult) (*ReconcileResult, error) {
	if result.BookingID == "" {
		return nil, domain.E(domain.KindValidation, "missing booking id in callback")
	}

	acquired, err := r.lockStore.AcquireBookingLock(ctx, result.BookingID, reconcileLockTTL)
	if err != nil {
		return nil, domain.Wrap(domain.KindRetryable, "booking lock failed", err)
	}
	if !acquired {
		return nil, ErrReconcileBusy
	}
	defer func() {
		if err := r.lockStore.ReleaseBookingLock(ctx, result.BookingID); err != nil {
			log.Printf("booking lock release failed for %s: %v", result.BookingID, err)
		}
	}()

	booking, err := r.bookings.GetBooking(ctx, result.BookingID)
	if err != nil {
		return nil, err
	}

	// A confirmed booking means this callback already settled: replay.
	if booking.Status == domain.BookingStatusConfirmed {
		latest, err := r.paymentRepo.GetLatestByBookingID(ctx, booking.ID)
		if err != nil {
			return nil, domain.Wrap(domain.KindRetryable, "payment lookup failed", err)
		}
		return &ReconcileResult{Booking: booking, Payment: latest, Settled: true, Replayed: true}, nil
	}

	saga, err := r.sagaStore.GetByBooking(ctx, booking.ID)
	if err != nil {
		return nil, domain.Wrap(domain.KindRetryable, "saga lookup failed", err)
	}
	if saga == nil {
		// The issuing process (and its saga entry) is gone; rebuild from the
		// booking row, the durable source of truth.
		saga = &domain.SagaState{Step: domain.StepBooked, BookingID: booking.ID}
	}

	open, err := r.paymentRepo.GetOpenByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, domain.Wrap(domain.KindRetryable, "payment lookup failed", err)
	}
	if open != nil && open.Method != domain.PaymentMethodCard {
		// The callback reports on a card attempt. An open payment of
		// another method belongs to a later dispatch (the card attempt was
		// superseded on the method switch) and must not be settled or
		// failed by a stale card result.
		open = nil
	}

	if !result.Success {
		return r.handleFailure(ctx, booking, saga, open, result)
	}

	if open == nil {
		// Success with nothing to settle: the dispatch never recorded a
		// payment, or a failure callback already closed it. Never invent a
		// payment record here.
		return nil, ErrPaymentNotFound
	}

	txn := result.TransactionCode
	if txn == "" {
		txn = result.Code
	}
	if err := r.paymentRepo.UpdateStatus(ctx, open.ID, domain.PaymentStatusSuccess, txn); err != nil {
		return nil, domain.Wrap(domain.KindRetryable, "payment update failed", err)
	}
	open.Status = domain.PaymentStatusSuccess
	open.TransactionCode = txn

	saga.Step = domain.StepSettled
	saga.PaymentID = open.ID

	confirmed, err := r.finalizer.Finalize(ctx, saga.SessionID, booking.ID)
	if err != nil {
		// The payment settled but finalize did not complete; persist the
		// SETTLED saga so a later finalize can finish the job.
		if saveErr := r.sagaStore.Save(ctx, saga); saveErr != nil {
			log.Printf("saga save failed for booking %s: %v", booking.ID, saveErr)
		}
		return nil, err
	}

	if err := r.sagaStore.Delete(ctx, saga); err != nil {
		log.Printf("saga delete failed for booking %s: %v", booking.ID, err)
	}

	if pubErr := r.publisher.PaymentSettled(ctx, confirmed, open); pubErr != nil {
		log.Printf("payment settled event publish failed: %v", pubErr)
	}

	return &ReconcileResult{Booking: confirmed, Payment: open, Settled: true}, nil
}

func (r *RedirectReconciler) handleFailure(ctx context.Context, booking *domain.Booking, saga *domain.SagaState, open *domain.Payment, result gateway.ReturnResult) (*ReconcileResult, error) {
	if open == nil {
		// Failure already recorded; replaying it changes nothing.
		latest, err := r.paymentRepo.GetLatestByBookingID(ctx, booking.ID)
		if err != nil {
			return nil, domain.Wrap(domain.KindRetryable, "payment lookup failed", err)
		}
		return &ReconcileResult{Booking: booking, Payment: latest, Replayed: true}, nil
	}

	if err := r.paymentRepo.UpdateStatus(ctx, open.ID, domain.PaymentStatusFailed, result.Code); err != nil {
		return nil, domain.Wrap(domain.KindRetryable, "payment update failed", err)
	}
	open.Status = domain.PaymentStatusFailed
	open.TransactionCode = result.Code

	// The booking is not deleted: cancellation is a user-initiated
	// compensating action, since the reservation may still be wanted with a
	// different method. The saga stays BOOKED.
	if err := r.sagaStore.Save(ctx, saga); err != nil {
		log.Printf("saga save failed for booking %s: %v", booking.ID, err)
	}

	if pubErr := r.publisher.PaymentFailed(ctx, booking, open); pubErr != nil {
		log.Printf("payment failed event publish failed: %v", pubErr)
	}

	return &ReconcileResult{Booking: booking, Payment: open}, nil
}

package service

import (
	"context"
	"log"
	"time"

	"coach/internal/domain"
	"coach/internal/events"
	"coach/internal/redis"
)

// transitionLockTTL bounds how long a crashed transition can keep a session
// locked. Transitions are short; the TTL only matters after a crash.
const transitionLockTTL = 15 * time.Second

// Finalizer defines the receipt finalization the orchestrator and the
// reconciler hand off to on success.
type Finalizer interface {
	Finalize(ctx context.Context, sessionID, bookingID string) (*domain.Booking, error)
}

// CheckoutOrchestrator drives the checkout saga DRAFTING → BOOKED → SETTLED.
// Transitions are serialized per session with a distributed lock so a
// duplicate submit cannot create two bookings or two payments. State lives
// in the saga store, never in memory: for redirect-based payments the
// process boundary is crossed and only the booking ID survives.
type CheckoutOrchestrator struct {
	draftStore redis.DraftStoreInterface
	sagaStore  redis.SagaStoreInterface
	lockStore  redis.LockStoreInterface
	bookings   BookingGateway
	dispatcher Dispatcher
	finalizer  Finalizer
	publisher  events.Publisher
}

// NewCheckoutOrchestrator creates a new CheckoutOrchestrator.
func NewCheckoutOrchestrator(
	draftStore redis.DraftStoreInterface,
	sagaStore redis.SagaStoreInterface,
	lockStore redis.LockStoreInterface,
	bookings BookingGateway,
	dispatcher Dispatcher,
	finalizer Finalizer,
	publisher events.Publisher,
) *CheckoutOrchestrator {
	return &CheckoutOrchestrator{
		draftStore: draftStore,
		sagaStore:  sagaStore,
		lockStore:  lockStore,
		bookings:   bookings,
		dispatcher: dispatcher,
		finalizer:  finalizer,
		publisher:  publisher,
	}
}

// SaveDraft stores the draft for a session. Valid only while DRAFTING; once
// a booking exists the draft is frozen until retreat or finalize.
func (o *CheckoutOrchestrator) SaveDraft(ctx context.Context, sessionID string, draft *domain.Draft) error {
	return o.withSessionLock(ctx, sessionID, func(saga *domain.SagaState) error {
		if saga != nil && saga.Step != domain.StepDrafting {
			return ErrNotDrafting
		}
		return o.draftStore.Save(ctx, sessionID, draft)
	})
}

// GetDraft retrieves the draft for a session.
func (o *CheckoutOrchestrator) GetDraft(ctx context.Context, sessionID string) (*domain.Draft, error) {
	draft, err := o.draftStore.Get(ctx, sessionID)
	if err != nil {
		return nil, domain.Wrap(domain.KindRetryable, "draft lookup failed", err)
	}
	if draft == nil {
		return nil, ErrDraftMissing
	}
	return draft, nil
}

// Abandon discards the draft and saga for a session. Valid only while
// DRAFTING: a booked checkout must retreat first so the compensating delete
// runs and no live reservation is orphaned.
func (o *CheckoutOrchestrator) Abandon(ctx context.Context, sessionID string) error {
	return o.withSessionLock(ctx, sessionID, func(saga *domain.SagaState) error {
		if saga != nil && saga.Step != domain.StepDrafting {
			return ErrNotDrafting
		}
		if err := o.draftStore.Clear(ctx, sessionID); err != nil {
			return domain.Wrap(domain.KindRetryable, "draft clear failed", err)
		}
		if saga != nil {
			return o.sagaStore.Delete(ctx, saga)
		}
		return nil
	})
}

// AdvanceToBooking turns the session's draft into a tentative booking and
// moves the saga to BOOKED. Valid only while DRAFTING; a session that
// already booked gets its existing booking back rather than a twin. On
// VALIDATION or CONFLICT the saga stays DRAFTING and no partial state is
// retained.
func (o *CheckoutOrchestrator) AdvanceToBooking(ctx context.Context, sessionID string) (*domain.Booking, error) {
	var booking *domain.Booking

	err := o.withSessionLock(ctx, sessionID, func(saga *domain.SagaState) error {
		if saga == nil {
			saga = &domain.SagaState{SessionID: sessionID, Step: domain.StepDrafting}
		}

		switch saga.Step {
		case domain.StepDrafting:
		case domain.StepBooked:
			// A duplicate submit collapses to the already-created booking.
			existing, err := o.bookings.GetBooking(ctx, saga.BookingID)
			if err != nil {
				return err
			}
			booking = existing
			return nil
		default:
			return ErrNotDrafting
		}

		draft, err := o.draftStore.Get(ctx, sessionID)
		if err != nil {
			return domain.Wrap(domain.KindRetryable, "draft lookup failed", err)
		}
		if draft == nil {
			return ErrDraftMissing
		}

		created, err := o.bookings.CreateBooking(ctx, draft)
		if err != nil {
			if domain.KindOf(err) == domain.KindRetryable {
				// A timeout is ambiguous: the booking may exist. Resolve by
				// re-querying the draft fingerprint, never by blind retry.
				if existing, lookupErr := o.bookings.FindActiveByFingerprint(ctx, draft.Fingerprint()); lookupErr == nil && existing != nil {
					created = existing
					err = nil
				}
			}
			if err != nil {
				return err
			}
		}

		saga.Step = domain.StepBooked
		saga.BookingID = created.ID
		saga.PaymentID = ""
		if err := o.sagaStore.Save(ctx, saga); err != nil {
			return domain.Wrap(domain.KindRetryable, "saga save failed", err)
		}

		booking = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	return booking, nil
}

// AdvanceToPayment dispatches a payment for the booked checkout. Valid only
// in BOOKED; calling it while DRAFTING fails fast with PRECONDITION and
// performs no network call. CASH settles the saga; BANKING leaves it BOOKED
// with a pending payment; CARD emits a redirect instruction and deliberately
// does not change state — the true outcome is unknown until the gateway
// calls back.
func (o *CheckoutOrchestrator) AdvanceToPayment(ctx context.Context, sessionID string, method domain.PaymentMethod, params PayParams) (*PaymentOutcome, error) {
	var outcome *PaymentOutcome

	err := o.withSessionLock(ctx, sessionID, func(saga *domain.SagaState) error {
		if saga == nil || saga.Step != domain.StepBooked {
			return ErrNotBooked
		}

		release, err := o.lockBooking(ctx, saga.BookingID)
		if err != nil {
			return err
		}
		defer release()

		booking, err := o.bookings.GetBooking(ctx, saga.BookingID)
		if err != nil {
			return err
		}

		result, err := o.dispatcher.Pay(ctx, booking, method, params)
		if err != nil {
			// The booking stays intact at BOOKED so the user can pick
			// another method.
			return err
		}

		saga.PaymentID = result.Payment.ID
		if result.Kind == OutcomeSettled {
			saga.Step = domain.StepSettled
			if pubErr := o.publisher.PaymentSettled(ctx, booking, result.Payment); pubErr != nil {
				log.Printf("payment settled event publish failed: %v", pubErr)
			}
		}
		if err := o.sagaStore.Save(ctx, saga); err != nil {
			return domain.Wrap(domain.KindRetryable, "saga save failed", err)
		}

		outcome = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	return outcome, nil
}

// RetreatToDraft compensates the booking step: the tentative booking is
// deleted, releasing its seats, before the saga returns to DRAFTING. If the
// delete fails the retreat is refused and the saga stays BOOKED — a live
// reservation is never silently orphaned.
func (o *CheckoutOrchestrator) RetreatToDraft(ctx context.Context, sessionID string) error {
	return o.withSessionLock(ctx, sessionID, func(saga *domain.SagaState) error {
		if saga == nil || saga.Step != domain.StepBooked {
			return ErrNotBooked
		}

		release, err := o.lockBooking(ctx, saga.BookingID)
		if err != nil {
			return err
		}
		defer release()

		if err := o.dispatcher.CancelOpenPayment(ctx, saga.BookingID); err != nil {
			log.Printf("open payment cancel failed for booking %s: %v", saga.BookingID, err)
		}

		if err := o.bookings.DeleteBooking(ctx, saga.BookingID); err != nil {
			return err
		}

		if err := o.sagaStore.DropBookingIndex(ctx, saga.BookingID); err != nil {
			log.Printf("saga booking index drop failed for booking %s: %v", saga.BookingID, err)
		}

		saga.Step = domain.StepDrafting
		saga.BookingID = ""
		saga.PaymentID = ""
		if err := o.sagaStore.Save(ctx, saga); err != nil {
			return domain.Wrap(domain.KindRetryable, "saga save failed", err)
		}
		return nil
	})
}

// Finalize completes a settled checkout: the draft is cleared, the booking
// confirmed and the saga torn down. Terminal.
func (o *CheckoutOrchestrator) Finalize(ctx context.Context, sessionID string) (*domain.Booking, error) {
	var booking *domain.Booking

	err := o.withSessionLock(ctx, sessionID, func(saga *domain.SagaState) error {
		if saga == nil || saga.Step != domain.StepSettled {
			return ErrNotSettled
		}

		release, err := o.lockBooking(ctx, saga.BookingID)
		if err != nil {
			return err
		}
		defer release()

		confirmed, err := o.finalizer.Finalize(ctx, sessionID, saga.BookingID)
		if err != nil {
			return err
		}

		if err := o.sagaStore.Delete(ctx, saga); err != nil {
			return domain.Wrap(domain.KindRetryable, "saga delete failed", err)
		}

		booking = confirmed
		return nil
	})
	if err != nil {
		return nil, err
	}

	return booking, nil
}

// lockBooking layers the booking lock under the session lock, so a booked
// checkout's transitions and the redirect reconciler cannot interleave on the
// same booking. Lock order is always session first, then booking; the
// reconciler takes only the booking lock, so the order cannot deadlock.
func (o *CheckoutOrchestrator) lockBooking(ctx context.Context, bookingID string) (func(), error) {
	acquired, err := o.lockStore.AcquireBookingLock(ctx, bookingID, transitionLockTTL)
	if err != nil {
		return nil, domain.Wrap(domain.KindRetryable, "booking lock failed", err)
	}
	if !acquired {
		return nil, ErrCheckoutBusy
	}
	return func() {
		if err := o.lockStore.ReleaseBookingLock(ctx, bookingID); err != nil {
			log.Printf("booking lock release failed for %s: %v", bookingID, err)
		}
	}, nil
}

// withSessionLock serializes transitions for one checkout session and hands
// the current saga (nil when none exists) to fn.
func (o *CheckoutOrchestrator) withSessionLock(ctx context.Context, sessionID string, fn func(saga *domain.SagaState) error) error {
	if sessionID == "" {
		return domain.E(domain.KindValidation, "missing checkout session")
	}

	acquired, err := o.lockStore.AcquireSessionLock(ctx, sessionID, transitionLockTTL)
	if err != nil {
		return domain.Wrap(domain.KindRetryable, "session lock failed", err)
	}
	if !acquired {
		return ErrCheckoutBusy
	}
	defer func() {
		if err := o.lockStore.ReleaseSessionLock(ctx, sessionID); err != nil {
			log.Printf("session lock release failed for %s: %v", sessionID, err)
		}
	}()

	saga, err := o.sagaStore.GetBySession(ctx, sessionID)
	if err != nil {
		return domain.Wrap(domain.KindRetryable, "saga lookup failed", err)
	}

	return fn(saga)
}

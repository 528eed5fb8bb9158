package tests

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"coach/internal/domain"
	"coach/internal/service"
)

// ──────────────────────────────────────────────
// CHECKOUT SAGA TRANSITIONS
// ──────────────────────────────────────────────

type checkoutEnv struct {
	tripRepo    *MockTripRepository
	bookingRepo *MockBookingRepository
	paymentRepo *MockPaymentRepository
	draftStore  *MockDraftStore
	sagaStore   *MockSagaStore
	lockStore   *MockLockStore
	card        *MockCardGateway
	qr          *MockQRBuilder
	publisher   *MockPublisher

	orchestrator *service.CheckoutOrchestrator
	reconciler   *service.RedirectReconciler
	receipts     *service.ReceiptService
}

func newCheckoutEnv() *checkoutEnv {
	env := &checkoutEnv{
		tripRepo:    NewMockTripRepository(),
		bookingRepo: NewMockBookingRepository(),
		paymentRepo: NewMockPaymentRepository(),
		draftStore:  NewMockDraftStore(),
		sagaStore:   NewMockSagaStore(),
		lockStore:   NewMockLockStore(),
		card:        &MockCardGateway{},
		qr:          &MockQRBuilder{},
		publisher:   &MockPublisher{},
	}

	env.tripRepo.AddTrip(&domain.Trip{
		Ref:       "trip-hn-hp-0630",
		RouteFrom: "Ha Noi",
		RouteTo:   "Hai Phong",
		DepartAt:  time.Now().Add(24 * time.Hour),
		UnitPrice: 200_000,
		SeatCount: 45,
	})

	bookings := service.NewBookingService(env.tripRepo, env.bookingRepo, nil)
	dispatcher := service.NewPaymentDispatcher(env.paymentRepo, env.card, env.qr)
	receipts := service.NewReceiptService(env.draftStore, env.bookingRepo, env.paymentRepo, env.tripRepo)
	env.receipts = receipts

	env.orchestrator = service.NewCheckoutOrchestrator(
		env.draftStore, env.sagaStore, env.lockStore,
		bookings, dispatcher, receipts, env.publisher,
	)
	env.reconciler = service.NewRedirectReconciler(
		env.sagaStore, env.lockStore, bookings, env.paymentRepo, receipts, env.publisher,
	)

	return env
}

func validDraft() *domain.Draft {
	return &domain.Draft{
		TripRef:  "trip-hn-hp-0630",
		SeatRefs: []string{"A3", "A4"},
		Passenger: domain.Passenger{
			FullName: "Nguyen Van A",
			Phone:    "0912345678",
			Email:    "a@example.com",
		},
		PickupNote:  "Office gate 2",
		DropoffNote: "Central station",
	}
}

func TestCheckout_CashHappyPath(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv()
	ctx := context.Background()
	session := "sess-cash-1"

	if err := env.orchestrator.SaveDraft(ctx, session, validDraft()); err != nil {
		t.Fatalf("save draft: %v", err)
	}

	booking, err := env.orchestrator.AdvanceToBooking(ctx, session)
	if err != nil {
		t.Fatalf("advance to booking: %v", err)
	}
	if booking.Status != domain.BookingStatusPending {
		t.Errorf("expected PENDING booking, got %s", booking.Status)
	}
	if booking.TotalAmount != 400_000 {
		t.Errorf("expected total 400000 for 2 seats at 200000, got %d", booking.TotalAmount)
	}
	if !env.bookingRepo.SeatHeld("trip-hn-hp-0630", "A3") {
		t.Error("expected seat A3 to be reserved")
	}

	outcome, err := env.orchestrator.AdvanceToPayment(ctx, session, domain.PaymentMethodCash, service.PayParams{})
	if err != nil {
		t.Fatalf("advance to payment: %v", err)
	}
	if outcome.Kind != service.OutcomeSettled {
		t.Fatalf("expected SETTLED outcome for cash, got %s", outcome.Kind)
	}
	if outcome.Payment.Status != domain.PaymentStatusSuccess {
		t.Errorf("expected SUCCESS payment, got %s", outcome.Payment.Status)
	}

	confirmed, err := env.orchestrator.Finalize(ctx, session)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if confirmed.Status != domain.BookingStatusConfirmed {
		t.Errorf("expected CONFIRMED booking, got %s", confirmed.Status)
	}

	// Draft and saga are gone after finalize.
	if draft, _ := env.draftStore.Get(ctx, session); draft != nil {
		t.Error("expected draft to be cleared after finalize")
	}
	if saga, _ := env.sagaStore.GetBySession(ctx, session); saga != nil {
		t.Error("expected saga to be deleted after finalize")
	}
	if got := atomic.LoadInt32(&env.publisher.SettledCallCount); got != 1 {
		t.Errorf("expected 1 settled event, got %d", got)
	}
}

func TestCheckout_DuplicateBookingSubmit_ReturnsSameBooking(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv()
	ctx := context.Background()
	session := "sess-dup-1"

	if err := env.orchestrator.SaveDraft(ctx, session, validDraft()); err != nil {
		t.Fatalf("save draft: %v", err)
	}

	first, err := env.orchestrator.AdvanceToBooking(ctx, session)
	if err != nil {
		t.Fatalf("first advance: %v", err)
	}
	second, err := env.orchestrator.AdvanceToBooking(ctx, session)
	if err != nil {
		t.Fatalf("second advance: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("expected same booking on duplicate submit, got %s and %s", first.ID, second.ID)
	}
	if got := atomic.LoadInt32(&env.bookingRepo.CreateCallCount); got != 1 {
		t.Errorf("expected 1 booking insert, got %d", got)
	}
}

func TestCheckout_SeatConflict_StaysDrafting(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv()
	ctx := context.Background()

	// First passenger takes the seats.
	if err := env.orchestrator.SaveDraft(ctx, "sess-a", validDraft()); err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if _, err := env.orchestrator.AdvanceToBooking(ctx, "sess-a"); err != nil {
		t.Fatalf("advance: %v", err)
	}

	// Second passenger wants an overlapping seat.
	other := validDraft()
	other.Passenger.Phone = "0987654321"
	other.SeatRefs = []string{"A4", "A5"}
	if err := env.orchestrator.SaveDraft(ctx, "sess-b", other); err != nil {
		t.Fatalf("save draft: %v", err)
	}

	_, err := env.orchestrator.AdvanceToBooking(ctx, "sess-b")
	if !errors.Is(err, service.ErrSeatConflict) {
		t.Fatalf("expected seat conflict, got %v", err)
	}

	// The loser's saga is still DRAFTING: the draft can be edited and
	// resubmitted with other seats.
	saga, _ := env.sagaStore.GetBySession(ctx, "sess-b")
	if saga != nil && saga.Step != domain.StepDrafting {
		t.Errorf("expected saga to stay DRAFTING, got %s", saga.Step)
	}

	other.SeatRefs = []string{"B1", "B2"}
	if err := env.orchestrator.SaveDraft(ctx, "sess-b", other); err != nil {
		t.Fatalf("resave draft after conflict: %v", err)
	}
	if _, err := env.orchestrator.AdvanceToBooking(ctx, "sess-b"); err != nil {
		t.Fatalf("advance with free seats: %v", err)
	}
}

func TestCheckout_PaymentBeforeBooking_FailsFastWithoutDispatch(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv()
	ctx := context.Background()
	session := "sess-early-pay"

	if err := env.orchestrator.SaveDraft(ctx, session, validDraft()); err != nil {
		t.Fatalf("save draft: %v", err)
	}

	_, err := env.orchestrator.AdvanceToPayment(ctx, session, domain.PaymentMethodCard, service.PayParams{})
	if !errors.Is(err, service.ErrNotBooked) {
		t.Fatalf("expected precondition failure, got %v", err)
	}
	if domain.KindOf(err) != domain.KindPrecondition {
		t.Errorf("expected PRECONDITION kind, got %s", domain.KindOf(err))
	}

	// No payment record and no gateway call was made.
	if got := atomic.LoadInt32(&env.paymentRepo.CreateCallCount); got != 0 {
		t.Errorf("expected no payment insert, got %d", got)
	}
	if got := atomic.LoadInt32(&env.card.BuildCallCount); got != 0 {
		t.Errorf("expected no gateway call, got %d", got)
	}
}

func TestCheckout_Retreat_ReleasesSeatsAndReturnsToDrafting(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv()
	ctx := context.Background()
	session := "sess-retreat"

	if err := env.orchestrator.SaveDraft(ctx, session, validDraft()); err != nil {
		t.Fatalf("save draft: %v", err)
	}
	booking, err := env.orchestrator.AdvanceToBooking(ctx, session)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}

	if err := env.orchestrator.RetreatToDraft(ctx, session); err != nil {
		t.Fatalf("retreat: %v", err)
	}

	if env.bookingRepo.SeatHeld(booking.TripRef, "A3") {
		t.Error("expected seat A3 released after retreat")
	}
	saga, _ := env.sagaStore.GetBySession(ctx, session)
	if saga == nil || saga.Step != domain.StepDrafting {
		t.Fatalf("expected saga back at DRAFTING, got %+v", saga)
	}
	if saga.BookingID != "" {
		t.Errorf("expected booking reference cleared, got %s", saga.BookingID)
	}

	// The draft survives the retreat and can be booked again.
	if _, err := env.orchestrator.AdvanceToBooking(ctx, session); err != nil {
		t.Fatalf("re-advance after retreat: %v", err)
	}
}

func TestCheckout_RetreatWhileDrafting_Precondition(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv()
	ctx := context.Background()
	session := "sess-retreat-early"

	if err := env.orchestrator.SaveDraft(ctx, session, validDraft()); err != nil {
		t.Fatalf("save draft: %v", err)
	}

	err := env.orchestrator.RetreatToDraft(ctx, session)
	if !errors.Is(err, service.ErrNotBooked) {
		t.Fatalf("expected precondition failure, got %v", err)
	}
}

func TestCheckout_RetreatDeleteFailure_StaysBooked(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv()
	ctx := context.Background()
	session := "sess-retreat-fail"

	if err := env.orchestrator.SaveDraft(ctx, session, validDraft()); err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if _, err := env.orchestrator.AdvanceToBooking(ctx, session); err != nil {
		t.Fatalf("advance: %v", err)
	}

	env.bookingRepo.DeleteError = errors.New("db down")

	if err := env.orchestrator.RetreatToDraft(ctx, session); err == nil {
		t.Fatal("expected retreat to fail when the delete fails")
	}

	// The saga must not pretend the reservation is gone.
	saga, _ := env.sagaStore.GetBySession(ctx, session)
	if saga == nil || saga.Step != domain.StepBooked {
		t.Fatalf("expected saga to stay BOOKED, got %+v", saga)
	}
}

func TestCheckout_AbandonAfterBooking_Precondition(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv()
	ctx := context.Background()
	session := "sess-abandon"

	if err := env.orchestrator.SaveDraft(ctx, session, validDraft()); err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if _, err := env.orchestrator.AdvanceToBooking(ctx, session); err != nil {
		t.Fatalf("advance: %v", err)
	}

	err := env.orchestrator.Abandon(ctx, session)
	if !errors.Is(err, service.ErrNotDrafting) {
		t.Fatalf("expected precondition failure, got %v", err)
	}
}

func TestCheckout_FinalizeBeforeSettle_Precondition(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv()
	ctx := context.Background()
	session := "sess-finalize-early"

	if err := env.orchestrator.SaveDraft(ctx, session, validDraft()); err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if _, err := env.orchestrator.AdvanceToBooking(ctx, session); err != nil {
		t.Fatalf("advance: %v", err)
	}

	_, err := env.orchestrator.Finalize(ctx, session)
	if !errors.Is(err, service.ErrNotSettled) {
		t.Fatalf("expected precondition failure, got %v", err)
	}
}

func TestCheckout_MissingSession_Validation(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv()

	_, err := env.orchestrator.AdvanceToBooking(context.Background(), "")
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected VALIDATION, got %v", err)
	}
}

func TestCheckout_ConcurrentAdvance_SingleWinner(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv()
	ctx := context.Background()
	session := "sess-race"

	if err := env.orchestrator.SaveDraft(ctx, session, validDraft()); err != nil {
		t.Fatalf("save draft: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	var successes, busies int32

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.orchestrator.AdvanceToBooking(ctx, session)
			switch {
			case err == nil:
				atomic.AddInt32(&successes, 1)
			case errors.Is(err, service.ErrCheckoutBusy):
				atomic.AddInt32(&busies, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes == 0 {
		t.Fatal("expected at least one advance to succeed")
	}
	if got := atomic.LoadInt32(&env.bookingRepo.CreateCallCount); got != 1 {
		t.Errorf("expected exactly 1 booking insert across %d workers, got %d", workers, got)
	}
	if successes+busies != workers {
		t.Errorf("expected every worker to succeed or report busy, got %d + %d", successes, busies)
	}
}

func TestCheckout_AdvanceWhileBookingLocked_Busy(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv()
	ctx := context.Background()
	booking := bookedSession(t, env, "sess-bk-lock")

	// A gateway callback for the same booking is mid-reconciliation and
	// holds the booking lock.
	held, err := env.lockStore.AcquireBookingLock(ctx, booking.ID, time.Minute)
	if err != nil || !held {
		t.Fatalf("acquire booking lock: held=%v err=%v", held, err)
	}

	_, err = env.orchestrator.AdvanceToPayment(ctx, "sess-bk-lock", domain.PaymentMethodCash, service.PayParams{})
	if !errors.Is(err, service.ErrCheckoutBusy) {
		t.Fatalf("expected busy while the booking is locked, got %v", err)
	}
	if got := atomic.LoadInt32(&env.paymentRepo.CreateCallCount); got != 0 {
		t.Errorf("expected no payment insert while locked, got %d", got)
	}
	if err := env.orchestrator.RetreatToDraft(ctx, "sess-bk-lock"); !errors.Is(err, service.ErrCheckoutBusy) {
		t.Fatalf("expected retreat to report busy while the booking is locked, got %v", err)
	}

	// Once the reconciler is done the transition goes through.
	if err := env.lockStore.ReleaseBookingLock(ctx, booking.ID); err != nil {
		t.Fatalf("release booking lock: %v", err)
	}
	outcome, err := env.orchestrator.AdvanceToPayment(ctx, "sess-bk-lock", domain.PaymentMethodCash, service.PayParams{})
	if err != nil {
		t.Fatalf("advance after release: %v", err)
	}
	if outcome.Kind != service.OutcomeSettled {
		t.Errorf("expected cash to settle, got %s", outcome.Kind)
	}
}

func TestCheckout_BookingTimeout_ResolvedByFingerprint(t *testing.T) {
	t.Parallel()

	env := newCheckoutEnv()
	ctx := context.Background()
	session := "sess-timeout"

	draft := validDraft()
	if err := env.orchestrator.SaveDraft(ctx, session, draft); err != nil {
		t.Fatalf("save draft: %v", err)
	}

	// The insert lands but its ack is lost in a timeout.
	env.bookingRepo.InsertThenError = context.DeadlineExceeded

	booking, err := env.orchestrator.AdvanceToBooking(ctx, session)
	if err != nil {
		t.Fatalf("expected timeout resolved via fingerprint, got %v", err)
	}
	if booking == nil || booking.Fingerprint != draft.Fingerprint() {
		t.Fatal("expected the landed booking to be adopted by fingerprint")
	}
	if got := atomic.LoadInt32(&env.bookingRepo.CreateCallCount); got != 1 {
		t.Errorf("expected no blind retry of the insert, got %d calls", got)
	}
}

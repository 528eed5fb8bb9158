package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"coach/internal/domain"
)

func newTestClient(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestDraftStore_SaveGetClear(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewDraftStore(client, 0)
	ctx := context.Background()

	draft := &domain.Draft{
		TripRef:  "trip-1",
		SeatRefs: []string{"A1", "A2"},
		Passenger: domain.Passenger{
			FullName: "Tran Thi B",
			Phone:    "0901112222",
		},
	}

	if err := store.Save(ctx, "sess-1", draft); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.TripRef != "trip-1" || len(got.SeatRefs) != 2 {
		t.Fatalf("expected stored draft back, got %+v", got)
	}

	if err := store.Clear(ctx, "sess-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, err = store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get after clear: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil after clear, got %+v", got)
	}
}

func TestDraftStore_ExpiresWithDefaultTTL(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewDraftStore(client, 0)
	ctx := context.Background()

	if err := store.Save(ctx, "sess-ttl", &domain.Draft{TripRef: "trip-1"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	mr.FastForward(DefaultDraftTTL + time.Minute)

	got, err := store.Get(ctx, "sess-ttl")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected draft expired, got %+v", got)
	}
}

func TestDraftStore_HonorsConfiguredTTL(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewDraftStore(client, time.Hour)
	ctx := context.Background()

	if err := store.Save(ctx, "sess-cfg", &domain.Draft{TripRef: "trip-1"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	mr.FastForward(30 * time.Minute)
	if got, _ := store.Get(ctx, "sess-cfg"); got == nil {
		t.Fatal("expected draft alive inside the configured TTL")
	}

	mr.FastForward(31 * time.Minute)
	if got, _ := store.Get(ctx, "sess-cfg"); got != nil {
		t.Errorf("expected draft expired after the configured TTL, got %+v", got)
	}
}

func TestSagaStore_DualKeys(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewSagaStore(client)
	ctx := context.Background()

	saga := &domain.SagaState{
		SessionID: "sess-1",
		Step:      domain.StepBooked,
		BookingID: "bk-1",
	}
	if err := store.Save(ctx, saga); err != nil {
		t.Fatalf("save: %v", err)
	}

	bySession, err := store.GetBySession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get by session: %v", err)
	}
	byBooking, err := store.GetByBooking(ctx, "bk-1")
	if err != nil {
		t.Fatalf("get by booking: %v", err)
	}

	if bySession == nil || byBooking == nil {
		t.Fatal("expected the saga under both keys")
	}
	if bySession.Step != domain.StepBooked || byBooking.SessionID != "sess-1" {
		t.Errorf("expected identical state under both keys, got %+v / %+v", bySession, byBooking)
	}
	if bySession.UpdatedAt.IsZero() {
		t.Error("expected Save to stamp UpdatedAt")
	}
}

func TestSagaStore_NoBookingKeyWhileDrafting(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewSagaStore(client)
	ctx := context.Background()

	if err := store.Save(ctx, &domain.SagaState{SessionID: "sess-1", Step: domain.StepDrafting}); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.GetByBooking(ctx, "")
	if err != nil {
		t.Fatalf("get by booking: %v", err)
	}
	if got != nil {
		t.Errorf("expected no booking-keyed entry while DRAFTING, got %+v", got)
	}
}

func TestSagaStore_RebuiltSagaWritesBookingKeyOnly(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewSagaStore(client)
	ctx := context.Background()

	// A saga reconstructed from the booking row after the issuing process
	// died has no session ID.
	rebuilt := &domain.SagaState{Step: domain.StepBooked, BookingID: "bk-1"}
	if err := store.Save(ctx, rebuilt); err != nil {
		t.Fatalf("save: %v", err)
	}

	byBooking, err := store.GetByBooking(ctx, "bk-1")
	if err != nil {
		t.Fatalf("get by booking: %v", err)
	}
	if byBooking == nil || byBooking.Step != domain.StepBooked {
		t.Fatalf("expected the rebuilt saga under the booking key, got %+v", byBooking)
	}

	// No shared empty-session key was written, so another session's rebuilt
	// saga cannot collide with this one.
	if got, _ := store.GetBySession(ctx, ""); got != nil {
		t.Errorf("expected no empty-session key, got %+v", got)
	}

	if err := store.Delete(ctx, rebuilt); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := store.GetByBooking(ctx, "bk-1"); got != nil {
		t.Error("expected booking key deleted")
	}
}

func TestSagaStore_DropBookingIndex(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewSagaStore(client)
	ctx := context.Background()

	saga := &domain.SagaState{SessionID: "sess-1", Step: domain.StepBooked, BookingID: "bk-1"}
	if err := store.Save(ctx, saga); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.DropBookingIndex(ctx, "bk-1"); err != nil {
		t.Fatalf("drop booking index: %v", err)
	}

	byBooking, err := store.GetByBooking(ctx, "bk-1")
	if err != nil {
		t.Fatalf("get by booking: %v", err)
	}
	if byBooking != nil {
		t.Error("expected booking key dropped")
	}
	bySession, err := store.GetBySession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get by session: %v", err)
	}
	if bySession == nil {
		t.Error("expected session key to survive the index drop")
	}
}

func TestSagaStore_DeleteRemovesBothKeys(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewSagaStore(client)
	ctx := context.Background()

	saga := &domain.SagaState{SessionID: "sess-1", Step: domain.StepSettled, BookingID: "bk-1"}
	if err := store.Save(ctx, saga); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, saga); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if got, _ := store.GetBySession(ctx, "sess-1"); got != nil {
		t.Error("expected session key deleted")
	}
	if got, _ := store.GetByBooking(ctx, "bk-1"); got != nil {
		t.Error("expected booking key deleted")
	}
}

func TestCacheStore_TripRoundTripAndExpiry(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewCacheStore(client)
	ctx := context.Background()

	trip := &CachedTrip{
		Ref:       "trip-1",
		RouteFrom: "Ha Noi",
		RouteTo:   "Hai Phong",
		UnitPrice: 200_000,
		SeatCount: 45,
	}
	if err := store.SetTrip(ctx, trip); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := store.GetTrip(ctx, "trip-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.UnitPrice != 200_000 {
		t.Fatalf("expected cached trip back, got %+v", got)
	}

	if got, _ := store.GetTrip(ctx, "trip-miss"); got != nil {
		t.Errorf("expected nil on miss, got %+v", got)
	}

	mr.FastForward(TripCacheTTL + time.Second)
	if got, _ := store.GetTrip(ctx, "trip-1"); got != nil {
		t.Errorf("expected trip expired, got %+v", got)
	}
}

func TestLockStore_MutualExclusion(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewLockStore(client)
	ctx := context.Background()

	first, err := store.AcquireSessionLock(ctx, "sess-1", 10*time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !first {
		t.Fatal("expected first acquire to win")
	}

	second, err := store.AcquireSessionLock(ctx, "sess-1", 10*time.Second)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if second {
		t.Fatal("expected second acquire to lose while held")
	}

	// A different session is unaffected.
	other, err := store.AcquireSessionLock(ctx, "sess-2", 10*time.Second)
	if err != nil || !other {
		t.Fatalf("expected other session to acquire, got %v %v", other, err)
	}

	if err := store.ReleaseSessionLock(ctx, "sess-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	again, err := store.AcquireSessionLock(ctx, "sess-1", 10*time.Second)
	if err != nil || !again {
		t.Fatalf("expected acquire after release, got %v %v", again, err)
	}

	// A crashed holder's lock expires on its own.
	mr.FastForward(11 * time.Second)
	expired, err := store.AcquireBookingLock(ctx, "bk-1", 10*time.Second)
	if err != nil || !expired {
		t.Fatalf("expected booking lock acquire, got %v %v", expired, err)
	}
}

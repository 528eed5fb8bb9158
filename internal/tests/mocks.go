package tests

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"coach/internal/domain"
	"coach/internal/gateway"
	"coach/internal/redis"
	"coach/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK TRIP REPOSITORY
// ──────────────────────────────────────────────

// MockTripRepository is a mock implementation of TripRepository.
type MockTripRepository struct {
	mu    sync.RWMutex
	trips map[string]*domain.Trip

	GetByRefError error
}

// NewMockTripRepository creates a new mock trip repository.
func NewMockTripRepository() *MockTripRepository {
	return &MockTripRepository{
		trips: make(map[string]*domain.Trip),
	}
}

// AddTrip adds a trip to the mock repository.
func (m *MockTripRepository) AddTrip(trip *domain.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[trip.Ref] = trip
}

func (m *MockTripRepository) GetByRef(ctx context.Context, ref string) (*domain.Trip, error) {
	if m.GetByRefError != nil {
		return nil, m.GetByRefError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	trip, ok := m.trips[ref]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *trip
	return &copy, nil
}

// ──────────────────────────────────────────────
// MOCK BOOKING REPOSITORY
// ──────────────────────────────────────────────

// MockBookingRepository is a mock implementation of BookingRepository. Seat
// uniqueness per trip is enforced the way the database's unique index would.
type MockBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*domain.Booking
	seats    map[string]string // "tripRef/seatRef" -> bookingID

	// Counters for verification
	CreateCallCount       int32
	DeleteCallCount       int32
	UpdateStatusCallCount int32

	// Error injection
	CreateError       error
	DeleteError       error
	UpdateStatusError error

	// InsertThenError makes Create persist the row and still return the
	// error, simulating a write that landed but whose ack was lost.
	InsertThenError error
}

// NewMockBookingRepository creates a new mock booking repository.
func NewMockBookingRepository() *MockBookingRepository {
	return &MockBookingRepository{
		bookings: make(map[string]*domain.Booking),
		seats:    make(map[string]string),
	}
}

func seatKey(tripRef, seatRef string) string {
	return tripRef + "/" + seatRef
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, seat := range booking.Seats {
		if _, taken := m.seats[seatKey(booking.TripRef, seat)]; taken {
			return fmt.Errorf("seat %s: %w", seat, repository.ErrSeatConflict)
		}
	}
	for _, seat := range booking.Seats {
		m.seats[seatKey(booking.TripRef, seat)] = booking.ID
	}
	copy := *booking
	m.bookings[booking.ID] = &copy
	return m.InsertThenError
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	booking, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *booking
	return &copy, nil
}

func (m *MockBookingRepository) GetActiveByFingerprint(ctx context.Context, fingerprint string) (*domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.bookings {
		if b.Fingerprint == fingerprint && b.Status.Active() {
			copy := *b
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *MockBookingRepository) UpdateStatus(ctx context.Context, id string, status domain.BookingStatus) error {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	if m.UpdateStatusError != nil {
		return m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	booking.Status = status
	return nil
}

func (m *MockBookingRepository) Delete(ctx context.Context, id string) error {
	atomic.AddInt32(&m.DeleteCallCount, 1)
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[id]
	if !ok || !booking.Status.Active() {
		return repository.ErrNotFound
	}
	booking.Status = domain.BookingStatusCancelled
	for _, seat := range booking.Seats {
		delete(m.seats, seatKey(booking.TripRef, seat))
	}
	return nil
}

// SeatHeld reports whether a seat is currently reserved.
func (m *MockBookingRepository) SeatHeld(tripRef, seatRef string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, held := m.seats[seatKey(tripRef, seatRef)]
	return held
}

// ──────────────────────────────────────────────
// MOCK PAYMENT REPOSITORY
// ──────────────────────────────────────────────

// MockPaymentRepository is a mock implementation of PaymentRepository.
type MockPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*domain.Payment

	// Counters for verification
	CreateCallCount       int32
	UpdateStatusCallCount int32

	// Error injection
	CreateError       error
	UpdateStatusError error
}

// NewMockPaymentRepository creates a new mock payment repository.
func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		payments: make(map[string]*domain.Payment),
	}
}

// AddPayment adds a payment to the mock repository.
func (m *MockPaymentRepository) AddPayment(payment *domain.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *payment
	m.payments[payment.ID] = &copy
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.IdempotencyKey == payment.IdempotencyKey {
			return fmt.Errorf("idempotency key taken: %s", payment.IdempotencyKey)
		}
	}
	copy := *payment
	m.payments[payment.ID] = &copy
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payment, ok := m.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *payment
	return &copy, nil
}

func (m *MockPaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.IdempotencyKey == key {
			copy := *p
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *MockPaymentRepository) GetOpenByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var open *domain.Payment
	for _, p := range m.payments {
		if p.BookingID == bookingID && p.Status == domain.PaymentStatusPending {
			if open == nil || p.CreatedAt.After(open.CreatedAt) {
				open = p
			}
		}
	}
	if open == nil {
		return nil, nil
	}
	copy := *open
	return &copy, nil
}

func (m *MockPaymentRepository) GetLatestByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []*domain.Payment
	for _, p := range m.payments {
		if p.BookingID == bookingID {
			all = append(all, p)
		}
	}
	if len(all) == 0 {
		return nil, nil
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	copy := *all[0]
	return &copy, nil
}

func (m *MockPaymentRepository) CountByBookingID(ctx context.Context, bookingID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, p := range m.payments {
		if p.BookingID == bookingID {
			count++
		}
	}
	return count, nil
}

func (m *MockPaymentRepository) UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus, transactionCode string) error {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	if m.UpdateStatusError != nil {
		return m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	payment.Status = status
	if transactionCode != "" {
		payment.TransactionCode = transactionCode
	}
	return nil
}

// ──────────────────────────────────────────────
// MOCK REDIS STORES
// ──────────────────────────────────────────────

// MockDraftStore is an in-memory DraftStoreInterface.
type MockDraftStore struct {
	mu     sync.RWMutex
	drafts map[string]*domain.Draft

	SaveError  error
	GetError   error
	ClearError error
}

// NewMockDraftStore creates a new mock draft store.
func NewMockDraftStore() *MockDraftStore {
	return &MockDraftStore{
		drafts: make(map[string]*domain.Draft),
	}
}

func (m *MockDraftStore) Save(ctx context.Context, sessionID string, draft *domain.Draft) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *draft
	m.drafts[sessionID] = &copy
	return nil
}

func (m *MockDraftStore) Get(ctx context.Context, sessionID string) (*domain.Draft, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	draft, ok := m.drafts[sessionID]
	if !ok {
		return nil, nil
	}
	copy := *draft
	return &copy, nil
}

func (m *MockDraftStore) Clear(ctx context.Context, sessionID string) error {
	if m.ClearError != nil {
		return m.ClearError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, sessionID)
	return nil
}

// MockSagaStore is an in-memory SagaStoreInterface with the same dual
// session/booking indexing as the Redis store.
type MockSagaStore struct {
	mu        sync.RWMutex
	bySession map[string]*domain.SagaState
	byBooking map[string]*domain.SagaState

	SaveError error
	GetError  error
}

// NewMockSagaStore creates a new mock saga store.
func NewMockSagaStore() *MockSagaStore {
	return &MockSagaStore{
		bySession: make(map[string]*domain.SagaState),
		byBooking: make(map[string]*domain.SagaState),
	}
}

func (m *MockSagaStore) Save(ctx context.Context, saga *domain.SagaState) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	saga.UpdatedAt = time.Now()
	copy := *saga
	if saga.SessionID != "" {
		m.bySession[saga.SessionID] = &copy
	}
	if saga.BookingID != "" {
		m.byBooking[saga.BookingID] = &copy
	}
	return nil
}

func (m *MockSagaStore) GetBySession(ctx context.Context, sessionID string) (*domain.SagaState, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	saga, ok := m.bySession[sessionID]
	if !ok {
		return nil, nil
	}
	copy := *saga
	return &copy, nil
}

func (m *MockSagaStore) GetByBooking(ctx context.Context, bookingID string) (*domain.SagaState, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	saga, ok := m.byBooking[bookingID]
	if !ok {
		return nil, nil
	}
	copy := *saga
	return &copy, nil
}

func (m *MockSagaStore) DropBookingIndex(ctx context.Context, bookingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byBooking, bookingID)
	return nil
}

func (m *MockSagaStore) Delete(ctx context.Context, saga *domain.SagaState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bySession, saga.SessionID)
	if saga.BookingID != "" {
		delete(m.byBooking, saga.BookingID)
	}
	return nil
}

// MockLockStore is an in-memory LockStoreInterface with real mutual
// exclusion, so concurrency tests exercise the single-winner property.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]bool

	AcquireError error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]bool),
	}
}

func (m *MockLockStore) acquire(key string) (bool, error) {
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[key] {
		return false, nil
	}
	m.locks[key] = true
	return true, nil
}

func (m *MockLockStore) release(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, key)
	return nil
}

func (m *MockLockStore) AcquireSessionLock(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	return m.acquire("session:" + sessionID)
}

func (m *MockLockStore) ReleaseSessionLock(ctx context.Context, sessionID string) error {
	return m.release("session:" + sessionID)
}

func (m *MockLockStore) AcquireBookingLock(ctx context.Context, bookingID string, ttl time.Duration) (bool, error) {
	return m.acquire("booking:" + bookingID)
}

func (m *MockLockStore) ReleaseBookingLock(ctx context.Context, bookingID string) error {
	return m.release("booking:" + bookingID)
}

// ──────────────────────────────────────────────
// MOCK PAYMENT RAILS
// ──────────────────────────────────────────────

// MockCardGateway is a mock CardGateway.
type MockCardGateway struct {
	BuildCallCount int32
	BuildError     error
}

func (m *MockCardGateway) BuildPaymentURL(ctx context.Context, req gateway.PaymentURLRequest) (string, error) {
	atomic.AddInt32(&m.BuildCallCount, 1)
	if m.BuildError != nil {
		return "", m.BuildError
	}
	return fmt.Sprintf("https://pay.example.com/pay?ref=%s&amount=%d", req.BookingID, req.Amount), nil
}

// MockQRBuilder is a mock QRBuilder.
type MockQRBuilder struct {
	BuildCallCount int32
	BuildError     error
}

func (m *MockQRBuilder) Build(ctx context.Context, bookingID string, amount int64) (string, error) {
	atomic.AddInt32(&m.BuildCallCount, 1)
	if m.BuildError != nil {
		return "", m.BuildError
	}
	return fmt.Sprintf("qr:%s:%d", bookingID, amount), nil
}

// MockPublisher records published events.
type MockPublisher struct {
	SettledCallCount int32
	FailedCallCount  int32
}

func (m *MockPublisher) PaymentSettled(ctx context.Context, booking *domain.Booking, payment *domain.Payment) error {
	atomic.AddInt32(&m.SettledCallCount, 1)
	return nil
}

func (m *MockPublisher) PaymentFailed(ctx context.Context, booking *domain.Booking, payment *domain.Payment) error {
	atomic.AddInt32(&m.FailedCallCount, 1)
	return nil
}

// Compile-time interface checks.
var (
	_ repository.TripRepository    = (*MockTripRepository)(nil)
	_ repository.BookingRepository = (*MockBookingRepository)(nil)
	_ repository.PaymentRepository = (*MockPaymentRepository)(nil)
	_ redis.DraftStoreInterface    = (*MockDraftStore)(nil)
	_ redis.SagaStoreInterface     = (*MockSagaStore)(nil)
	_ redis.LockStoreInterface     = (*MockLockStore)(nil)
	_ gateway.CardGateway          = (*MockCardGateway)(nil)
	_ gateway.QRBuilder            = (*MockQRBuilder)(nil)
)

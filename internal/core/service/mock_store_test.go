package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/rl1809/railway-booking/internal/core/domain"
	"github.com/rl1809/railway-booking/internal/port"
)

var testLogger = log.NewStdLogger(io.Discard)

// mockStore emulates row-level locking: a unit holding a train's lock
// blocks every other unit locking the same train until it commits or
// aborts. Writes are staged and only applied on commit.
type mockStore struct {
	mu       sync.Mutex
	rowLocks map[int64]*sync.Mutex
	counters map[int64]int
	bookings []domain.Booking
	nextID   atomic.Int64

	beginErr     error
	lockErr      error
	decrementErr error
	commitErr    error
	abortErr     error

	begins  atomic.Int32
	commits atomic.Int32
	aborts  atomic.Int32
}

func newMockStore(seats map[int64]int) *mockStore {
	counters := make(map[int64]int, len(seats))
	for id, n := range seats {
		counters[id] = n
	}
	return &mockStore{
		rowLocks: make(map[int64]*sync.Mutex),
		counters: counters,
	}
}

func (s *mockStore) rowLock(trainID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rowLocks[trainID]
	if !ok {
		l = &sync.Mutex{}
		s.rowLocks[trainID] = l
	}
	return l
}

func (s *mockStore) available(trainID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[trainID]
}

func (s *mockStore) bookingsFor(trainID int64) []domain.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Booking
	for _, b := range s.bookings {
		if b.TrainID == trainID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeatNo < out[j].SeatNo })
	return out
}

func (s *mockStore) BeginUnit(ctx context.Context) (port.InventoryUnit, error) {
	s.begins.Add(1)
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return &mockUnit{store: s}, nil
}

type mockUnit struct {
	store   *mockStore
	held    *sync.Mutex
	pending []domain.Booking
	done    bool
}

func (u *mockUnit) LockSeatCounter(ctx context.Context, trainID int64) (*domain.SeatCounter, error) {
	if u.store.lockErr != nil {
		return nil, u.store.lockErr
	}
	l := u.store.rowLock(trainID)
	l.Lock()
	u.held = l

	u.store.mu.Lock()
	n, ok := u.store.counters[trainID]
	u.store.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return &domain.SeatCounter{TrainID: trainID, AvailableSeats: n}, nil
}

func (u *mockUnit) DecrementAndRecord(ctx context.Context, booking domain.Booking) (int64, error) {
	if u.store.decrementErr != nil {
		return 0, u.store.decrementErr
	}
	booking.ID = u.store.nextID.Add(1)
	u.pending = append(u.pending, booking)
	return booking.ID, nil
}

func (u *mockUnit) Commit() error {
	if u.done {
		return errors.New("unit already finished")
	}
	if u.store.commitErr != nil {
		return u.store.commitErr
	}
	u.store.mu.Lock()
	for _, b := range u.pending {
		u.store.counters[b.TrainID]--
		u.store.bookings = append(u.store.bookings, b)
	}
	u.store.mu.Unlock()
	u.store.commits.Add(1)
	u.finish()
	return nil
}

func (u *mockUnit) Abort() error {
	if u.done {
		return nil
	}
	u.store.aborts.Add(1)
	u.pending = nil
	u.finish()
	return u.store.abortErr
}

func (u *mockUnit) finish() {
	u.done = true
	if u.held != nil {
		u.held.Unlock()
		u.held = nil
	}
}

type mockCacheRepo struct {
	mu      sync.Mutex
	soldOut map[int64]bool
	err     error
	marks   atomic.Int32
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{soldOut: make(map[int64]bool)}
}

func (m *mockCacheRepo) IsSoldOut(ctx context.Context, trainID int64) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.soldOut[trainID], nil
}

func (m *mockCacheRepo) MarkSoldOut(ctx context.Context, trainID int64) error {
	m.marks.Add(1)
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.soldOut[trainID] = true
	return nil
}

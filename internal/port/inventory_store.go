package port

import (
	"context"

	"github.com/rl1809/railway-booking/internal/core/domain"
)

type InventoryStore interface {
	// BeginUnit opens an atomic unit of work. The unit stays bound to ctx
	// until it is committed or aborted.
	BeginUnit(ctx context.Context) (InventoryUnit, error)
}

type InventoryUnit interface {
	// LockSeatCounter reads the train's seat counter with an exclusive row
	// lock held until Commit or Abort. Returns nil, nil if the train does
	// not exist.
	LockSeatCounter(ctx context.Context, trainID int64) (*domain.SeatCounter, error)

	// DecrementAndRecord takes one seat off the locked counter and inserts
	// the booking, returning the new booking id.
	DecrementAndRecord(ctx context.Context, booking domain.Booking) (int64, error)

	Commit() error

	// Abort discards every write made in the unit and releases its locks.
	// It is safe to call after Commit or more than once.
	Abort() error
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/rl1809/railway-booking/internal/core/domain"
	"github.com/rl1809/railway-booking/internal/port"
)

const DefaultUnitTimeout = 10 * time.Second

type ReservationService struct {
	store       port.InventoryStore
	cache       port.CacheRepository
	unitTimeout time.Duration
	log         *log.Helper
}

// NewReservationService builds the engine. cache may be nil, in which case
// every request goes to the store.
func NewReservationService(store port.InventoryStore, cache port.CacheRepository, unitTimeout time.Duration, logger log.Logger) *ReservationService {
	if unitTimeout <= 0 {
		unitTimeout = DefaultUnitTimeout
	}
	return &ReservationService{
		store:       store,
		cache:       cache,
		unitTimeout: unitTimeout,
		log:         log.NewHelper(log.With(logger, "module", "service/reservation")),
	}
}

// ReserveSeat books one seat on trainID for userID.
//
// The seat counter row is locked for the whole unit of work, so concurrent
// calls on the same train are serialized and a train is never oversold.
// Once the unit has begun it is not interrupted by ctx cancellation; it is
// bounded by the unit timeout instead. Every non-confirmed path aborts the
// unit, so a failed call leaves no trace in the store.
func (s *ReservationService) ReserveSeat(ctx context.Context, userID, trainID int64) domain.Outcome {
	if s.knownSoldOut(ctx, trainID) {
		return domain.SoldOut()
	}

	unitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.unitTimeout)
	defer cancel()

	unit, err := s.store.BeginUnit(unitCtx)
	if err != nil {
		return s.fail(trainID, fmt.Errorf("begin unit: %w", err))
	}

	counter, err := unit.LockSeatCounter(unitCtx, trainID)
	if err != nil {
		return s.abort(unit, trainID, s.fail(trainID, fmt.Errorf("lock seat counter: %w", err)))
	}
	if counter == nil {
		return s.abort(unit, trainID, domain.TrainNotFound())
	}
	if counter.AvailableSeats <= 0 {
		outcome := s.abort(unit, trainID, domain.SoldOut())
		if outcome.Status == domain.OutcomeSoldOut {
			s.markSoldOut(ctx, trainID)
		}
		return outcome
	}

	seatNo := counter.AvailableSeats
	bookingID, err := unit.DecrementAndRecord(unitCtx, domain.Booking{
		UserID:  userID,
		TrainID: trainID,
		SeatNo:  seatNo,
		Status:  domain.BookingStatusConfirmed,
	})
	if err != nil {
		return s.abort(unit, trainID, s.fail(trainID, fmt.Errorf("decrement and record: %w", err)))
	}

	if err := unit.Commit(); err != nil {
		return s.abort(unit, trainID, s.fail(trainID, fmt.Errorf("commit: %w", err)))
	}

	s.log.Infow("msg", "seat reserved", "train_id", trainID, "user_id", userID, "seat_no", seatNo, "booking_id", bookingID)
	if seatNo == 1 {
		s.markSoldOut(ctx, trainID)
	}
	return domain.Confirmed(bookingID, seatNo)
}

// abort rolls the unit back and returns outcome. A failed rollback turns
// the outcome into a SystemError carrying both causes.
func (s *ReservationService) abort(unit port.InventoryUnit, trainID int64, outcome domain.Outcome) domain.Outcome {
	err := unit.Abort()
	if err == nil {
		return outcome
	}
	s.log.Errorw("msg", "abort failed", "train_id", trainID, "outcome", outcome.Status, "err", err)
	return domain.SystemError(errors.Join(outcome.Err, fmt.Errorf("abort: %w", err)))
}

func (s *ReservationService) fail(trainID int64, err error) domain.Outcome {
	s.log.Warnw("msg", "reservation failed", "train_id", trainID, "err", err)
	return domain.SystemError(err)
}

func (s *ReservationService) knownSoldOut(ctx context.Context, trainID int64) bool {
	if s.cache == nil {
		return false
	}
	soldOut, err := s.cache.IsSoldOut(ctx, trainID)
	if err != nil {
		s.log.Warnw("msg", "sold-out lookup failed, falling back to store", "train_id", trainID, "err", err)
		return false
	}
	return soldOut
}

func (s *ReservationService) markSoldOut(ctx context.Context, trainID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.MarkSoldOut(context.WithoutCancel(ctx), trainID); err != nil {
		s.log.Warnw("msg", "mark sold out failed", "train_id", trainID, "err", err)
	}
}

package service

import (
	"context"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/rl1809/railway-booking/internal/core/domain"
	"github.com/rl1809/railway-booking/internal/port"
)

type BookingQueryService struct {
	repo port.BookingRepository
	log  *log.Helper
}

func NewBookingQueryService(repo port.BookingRepository, logger log.Logger) *BookingQueryService {
	return &BookingQueryService{
		repo: repo,
		log:  log.NewHelper(log.With(logger, "module", "service/booking")),
	}
}

// ListBookings returns the user's bookings oldest first. A user without
// bookings gets an empty slice and no error.
func (s *BookingQueryService) ListBookings(ctx context.Context, userID int64) ([]domain.Booking, error) {
	if userID <= 0 {
		return nil, domain.ValidationError{Field: "user_id", Msg: "must be positive"}
	}

	bookings, err := s.repo.ListBookingsByUser(ctx, userID)
	if err != nil {
		s.log.Errorw("msg", "list bookings failed", "user_id", userID, "err", err)
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	if bookings == nil {
		bookings = []domain.Booking{}
	}
	return bookings, nil
}

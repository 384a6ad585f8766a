package handler

import (
	"context"
	"io"
	"sync"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/rl1809/railway-booking/internal/core/domain"
)

var testLogger = log.NewStdLogger(io.Discard)

type stubReserver struct {
	mu      sync.Mutex
	outcome domain.Outcome
	calls   []int64 // user ids
	trains  []int64
}

func (s *stubReserver) ReserveSeat(ctx context.Context, userID, trainID int64) domain.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, userID)
	s.trains = append(s.trains, trainID)
	return s.outcome
}

type stubBookings struct {
	bookings []domain.Booking
	err      error
}

func (s *stubBookings) ListBookings(ctx context.Context, userID int64) ([]domain.Booking, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.Booking
	for _, b := range s.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

type stubCatalog struct {
	added  []domain.NewTrain
	trains []domain.TrainAvailability
	err    error
}

func (s *stubCatalog) AddTrain(ctx context.Context, in domain.NewTrain) (domain.Train, error) {
	if s.err != nil {
		return domain.Train{}, s.err
	}
	s.added = append(s.added, in)
	return domain.Train{ID: int64(len(s.added)), Name: in.Name, Source: in.Source, Destination: in.Destination, TotalSeats: in.TotalSeats}, nil
}

func (s *stubCatalog) SearchTrains(ctx context.Context, source, destination string) ([]domain.TrainAvailability, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.trains, nil
}

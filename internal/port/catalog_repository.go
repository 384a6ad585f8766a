package port

import (
	"context"

	"github.com/rl1809/railway-booking/internal/core/domain"
)

type TrainRepository interface {
	// CreateTrain stores the train and its full seat counter together
	CreateTrain(ctx context.Context, train domain.NewTrain) (int64, error)

	SearchTrains(ctx context.Context, source, destination string) ([]domain.TrainAvailability, error)
}

type BookingRepository interface {
	ListBookingsByUser(ctx context.Context, userID int64) ([]domain.Booking, error)
}

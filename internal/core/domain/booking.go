package domain

import "time"

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
)

type Booking struct {
	ID        int64
	UserID    int64
	TrainID   int64
	SeatNo    int
	Status    BookingStatus
	CreatedAt time.Time
}

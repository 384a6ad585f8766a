package domain

type Train struct {
	ID          int64
	Name        string
	Source      string
	Destination string
	TotalSeats  int
}

// NewTrain is the admin input for registering a train.
type NewTrain struct {
	Name        string
	Source      string
	Destination string
	TotalSeats  int
}

// SeatCounter is the per-train availability row. AvailableSeats only ever
// moves down, one seat per confirmed booking.
type SeatCounter struct {
	TrainID        int64
	AvailableSeats int
}

type TrainAvailability struct {
	Train
	AvailableSeats int
}

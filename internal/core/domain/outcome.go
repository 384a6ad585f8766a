package domain

type OutcomeStatus string

const (
	OutcomeConfirmed     OutcomeStatus = "Confirmed"
	OutcomeTrainNotFound OutcomeStatus = "TrainNotFound"
	OutcomeSoldOut       OutcomeStatus = "SoldOut"
	OutcomeSystemError   OutcomeStatus = "SystemError"
)

// Outcome is the terminal result of a single reservation attempt.
// BookingID and SeatNo are set only for OutcomeConfirmed, Err only for
// OutcomeSystemError.
type Outcome struct {
	Status    OutcomeStatus
	BookingID int64
	SeatNo    int
	Err       error
}

func Confirmed(bookingID int64, seatNo int) Outcome {
	return Outcome{Status: OutcomeConfirmed, BookingID: bookingID, SeatNo: seatNo}
}

func TrainNotFound() Outcome {
	return Outcome{Status: OutcomeTrainNotFound}
}

func SoldOut() Outcome {
	return Outcome{Status: OutcomeSoldOut}
}

func SystemError(err error) Outcome {
	return Outcome{Status: OutcomeSystemError, Err: err}
}

// Retriable reports whether resubmitting the same request may succeed.
// Nothing from a failed attempt persists, so a SystemError is always safe
// to retry.
func (o Outcome) Retriable() bool {
	return o.Status == OutcomeSystemError
}

func (o Outcome) Detail() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

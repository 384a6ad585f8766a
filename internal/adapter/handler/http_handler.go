package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/rl1809/railway-booking/internal/core/domain"
)

type Reserver interface {
	ReserveSeat(ctx context.Context, userID, trainID int64) domain.Outcome
}

type BookingLister interface {
	ListBookings(ctx context.Context, userID int64) ([]domain.Booking, error)
}

type TrainCatalog interface {
	AddTrain(ctx context.Context, in domain.NewTrain) (domain.Train, error)
	SearchTrains(ctx context.Context, source, destination string) ([]domain.TrainAvailability, error)
}

type HTTPHandler struct {
	reservations Reserver
	bookings     BookingLister
	trains       TrainCatalog
	log          *log.Helper
}

type BookSeatHTTPRequest struct {
	TrainID int64 `json:"train_id"`
}

type BookSeatHTTPResponse struct {
	Status    domain.OutcomeStatus `json:"status"`
	SeatNo    int                  `json:"seat_no,omitempty"`
	BookingID int64                `json:"booking_id,omitempty"`
	Detail    string               `json:"detail,omitempty"`
}

type AddTrainHTTPRequest struct {
	Name        string `json:"name"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	TotalSeats  int    `json:"total_seats"`
}

type TrainHTTPResponse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Source         string `json:"source"`
	Destination    string `json:"destination"`
	TotalSeats     int    `json:"total_seats"`
	AvailableSeats int    `json:"available_seats"`
}

type BookingHTTPResponse struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	TrainID   int64     `json:"train_id"`
	SeatNo    int       `json:"seat_no"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type MessageHTTPResponse struct {
	Message string `json:"message"`
}

func NewHTTPHandler(reservations Reserver, bookings BookingLister, trains TrainCatalog, logger log.Logger) *HTTPHandler {
	return &HTTPHandler{
		reservations: reservations,
		bookings:     bookings,
		trains:       trains,
		log:          log.NewHelper(log.With(logger, "module", "handler/http")),
	}
}

// Routes registers every endpoint on a new mux.
func (h *HTTPHandler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("POST /admin/train", h.AddTrain)
	mux.HandleFunc("GET /api/trains", h.SearchTrains)
	mux.HandleFunc("POST /api/book-seat", h.BookSeat)
	mux.HandleFunc("GET /api/bookings", h.ListBookings)
	return mux
}

func (h *HTTPHandler) BookSeat(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, MessageHTTPResponse{Message: "unauthorized"})
		return
	}

	var req BookSeatHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, MessageHTTPResponse{Message: "invalid request body"})
		return
	}
	if req.TrainID <= 0 {
		writeJSON(w, http.StatusBadRequest, MessageHTTPResponse{Message: "missing required fields"})
		return
	}

	outcome := h.reservations.ReserveSeat(r.Context(), userID, req.TrainID)

	status := http.StatusInternalServerError
	switch outcome.Status {
	case domain.OutcomeConfirmed:
		status = http.StatusOK
	case domain.OutcomeTrainNotFound:
		status = http.StatusNotFound
	case domain.OutcomeSoldOut:
		status = http.StatusGone
	case domain.OutcomeSystemError:
		status = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", "1")
	}

	writeJSON(w, status, BookSeatHTTPResponse{
		Status:    outcome.Status,
		SeatNo:    outcome.SeatNo,
		BookingID: outcome.BookingID,
		Detail:    outcome.Detail(),
	})
}

func (h *HTTPHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, MessageHTTPResponse{Message: "unauthorized"})
		return
	}

	bookings, err := h.bookings.ListBookings(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if len(bookings) == 0 {
		writeJSON(w, http.StatusNotFound, MessageHTTPResponse{Message: "no bookings found for this user"})
		return
	}

	out := make([]BookingHTTPResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, BookingHTTPResponse{
			ID:        b.ID,
			UserID:    b.UserID,
			TrainID:   b.TrainID,
			SeatNo:    b.SeatNo,
			Status:    string(b.Status),
			CreatedAt: b.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) AddTrain(w http.ResponseWriter, r *http.Request) {
	var req AddTrainHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, MessageHTTPResponse{Message: "invalid request body"})
		return
	}

	train, err := h.trains.AddTrain(r.Context(), domain.NewTrain{
		Name:        req.Name,
		Source:      req.Source,
		Destination: req.Destination,
		TotalSeats:  req.TotalSeats,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":  "train added successfully",
		"train_id": train.ID,
	})
}

func (h *HTTPHandler) SearchTrains(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	trains, err := h.trains.SearchTrains(r.Context(), q.Get("source"), q.Get("destination"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]TrainHTTPResponse, 0, len(trains))
	for _, t := range trains {
		out = append(out, TrainHTTPResponse{
			ID:             t.ID,
			Name:           t.Name,
			Source:         t.Source,
			Destination:    t.Destination,
			TotalSeats:     t.TotalSeats,
			AvailableSeats: t.AvailableSeats,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, MessageHTTPResponse{Message: err.Error()})
	case domain.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, MessageHTTPResponse{Message: err.Error()})
	default:
		h.log.Errorw("msg", "request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, MessageHTTPResponse{Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

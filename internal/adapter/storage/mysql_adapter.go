package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/railway-booking/internal/core/domain"
	"github.com/rl1809/railway-booking/internal/port"
)

var (
	ErrCounterDrift    = errors.New("seat counter changed under lock")
	ErrLockWaitTimeout = errors.New("lock wait timeout")
	ErrDeadlock        = errors.New("deadlock")
	ErrDuplicateSeat   = errors.New("seat already booked")
)

// MySQL server error numbers
const (
	erDupEntry        = 1062
	erLockWaitTimeout = 1205
	erLockDeadlock    = 1213
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) BeginUnit(ctx context.Context) (port.InventoryUnit, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", classify(err))
	}
	return &mysqlUnit{tx: tx}, nil
}

type mysqlUnit struct {
	tx *sql.Tx
}

func (u *mysqlUnit) LockSeatCounter(ctx context.Context, trainID int64) (*domain.SeatCounter, error) {
	counter := domain.SeatCounter{TrainID: trainID}
	err := u.tx.QueryRowContext(ctx, `
		SELECT available_seats FROM seats WHERE train_id = ? FOR UPDATE`, trainID,
	).Scan(&counter.AvailableSeats)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select seats for update: %w", classify(err))
	}
	return &counter, nil
}

// DecrementAndRecord expects the counter to still hold booking.SeatNo; any
// other value means the row lock was not held and the unit must abort.
func (u *mysqlUnit) DecrementAndRecord(ctx context.Context, booking domain.Booking) (int64, error) {
	result, err := u.tx.ExecContext(ctx, `
		UPDATE seats
		SET available_seats = available_seats - 1
		WHERE train_id = ? AND available_seats = ? AND available_seats > 0`,
		booking.TrainID, booking.SeatNo,
	)
	if err != nil {
		return 0, fmt.Errorf("update seats: %w", classify(err))
	}

	rows, _ := result.RowsAffected()
	if rows != 1 {
		return 0, ErrCounterDrift
	}

	result, err = u.tx.ExecContext(ctx, `
		INSERT INTO bookings (user_id, train_id, seat_no, status)
		VALUES (?, ?, ?, ?)`,
		booking.UserID, booking.TrainID, booking.SeatNo, string(booking.Status),
	)
	if err != nil {
		return 0, fmt.Errorf("insert booking: %w", classify(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("booking id: %w", err)
	}
	return id, nil
}

func (u *mysqlUnit) Commit() error {
	if err := u.tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

func (u *mysqlUnit) Abort() error {
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func (m *MySQLAdapter) CreateTrain(ctx context.Context, train domain.NewTrain) (int64, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO trains (name, source, destination, total_seats)
		VALUES (?, ?, ?, ?)`,
		train.Name, train.Source, train.Destination, train.TotalSeats,
	)
	if err != nil {
		return 0, fmt.Errorf("insert train: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("train id: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO seats (train_id, available_seats) VALUES (?, ?)`,
		id, train.TotalSeats,
	)
	if err != nil {
		return 0, fmt.Errorf("insert seats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

func (m *MySQLAdapter) SearchTrains(ctx context.Context, source, destination string) ([]domain.TrainAvailability, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.source, t.destination, t.total_seats, s.available_seats
		FROM trains t JOIN seats s ON t.id = s.train_id
		WHERE t.source = ? AND t.destination = ?
		ORDER BY t.id`, source, destination,
	)
	if err != nil {
		return nil, fmt.Errorf("query trains: %w", err)
	}
	defer rows.Close()

	var out []domain.TrainAvailability
	for rows.Next() {
		var t domain.TrainAvailability
		if err := rows.Scan(&t.ID, &t.Name, &t.Source, &t.Destination, &t.TotalSeats, &t.AvailableSeats); err != nil {
			return nil, fmt.Errorf("scan train: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) ListBookingsByUser(ctx context.Context, userID int64) ([]domain.Booking, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, user_id, train_id, seat_no, status, created_at
		FROM bookings WHERE user_id = ?
		ORDER BY id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		var b domain.Booking
		var status string
		if err := rows.Scan(&b.ID, &b.UserID, &b.TrainID, &b.SeatNo, &status, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		b.Status = domain.BookingStatus(status)
		out = append(out, b)
	}
	return out, rows.Err()
}

// classify tags the MySQL errors the reservation path cares about while
// keeping the driver error in the chain.
func classify(err error) error {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return err
	}
	switch myErr.Number {
	case erLockWaitTimeout:
		return fmt.Errorf("%w: %w", ErrLockWaitTimeout, err)
	case erLockDeadlock:
		return fmt.Errorf("%w: %w", ErrDeadlock, err)
	case erDupEntry:
		return fmt.Errorf("%w: %w", ErrDuplicateSeat, err)
	default:
		return err
	}
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"
)

type bookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) BookingRepository {
	return &bookingRepository{db: db}
}

const bookingColumns = `
	id, user_id, from_language_id, immediate, customer_phone_type, customer_physical_type,
	job_type, certified, gender, due, duration, status, created_at, will_expire_at, end_at,
	withdraw_at, session_time, admin_comments, reference, user_email, address, instructions,
	town, emailsent, emailsenttovirpal, ignore_expiring, ignore_expired, flagged,
	manually_handled, by_admin, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*entity.Booking, error) {
	var b entity.Booking
	err := row.Scan(
		&b.ID,
		&b.CustomerID,
		&b.FromLanguageID,
		&b.Immediate,
		&b.PhoneType,
		&b.PhysicalType,
		&b.JobType,
		&b.Certified,
		&b.Gender,
		&b.Due,
		&b.Duration,
		&b.Status,
		&b.CreatedAt,
		&b.WillExpireAt,
		&b.EndAt,
		&b.WithdrawAt,
		&b.SessionTime,
		&b.AdminComments,
		&b.Reference,
		&b.UserEmail,
		&b.Address,
		&b.Instructions,
		&b.Town,
		&b.EmailSent,
		&b.EmailSentToVirpal,
		&b.IgnoreExpiring,
		&b.IgnoreExpired,
		&b.Flagged,
		&b.ManuallyHandled,
		&b.ByAdmin,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Create inserts a new booking and fills its id
func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	query := `
		INSERT INTO bookings (
			user_id, from_language_id, immediate, customer_phone_type, customer_physical_type,
			job_type, certified, gender, due, duration, status, created_at, will_expire_at,
			admin_comments, reference, user_email, address, instructions, town, by_admin, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING id
	`

	now := time.Now()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	err := r.db.QueryRowContext(ctx, query,
		booking.CustomerID,
		booking.FromLanguageID,
		booking.Immediate,
		booking.PhoneType,
		booking.PhysicalType,
		booking.JobType,
		booking.Certified,
		booking.Gender,
		booking.Due,
		booking.Duration,
		booking.Status,
		booking.CreatedAt,
		booking.WillExpireAt,
		booking.AdminComments,
		booking.Reference,
		booking.UserEmail,
		booking.Address,
		booking.Instructions,
		booking.Town,
		booking.ByAdmin,
		booking.UpdatedAt,
	).Scan(&booking.ID)
	if err != nil {
		return fmt.Errorf("failed to create booking: %v", err)
	}

	return nil
}

// GetByID retrieves a booking by its ID
func (r *bookingRepository) GetByID(ctx context.Context, id int64) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %v", err)
	}

	return booking, nil
}

// Update writes every mutable field and reports how many rows changed
func (r *bookingRepository) Update(ctx context.Context, booking *entity.Booking) (int64, error) {
	result, err := updateBooking(ctx, r.db, booking)
	if err != nil {
		return 0, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %v", err)
	}
	return rowsAffected, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func updateBooking(ctx context.Context, db execer, booking *entity.Booking) (sql.Result, error) {
	query := `
		UPDATE bookings SET
			from_language_id = $1, immediate = $2, customer_phone_type = $3,
			customer_physical_type = $4, job_type = $5, certified = $6, gender = $7,
			due = $8, duration = $9, status = $10, created_at = $11, will_expire_at = $12,
			end_at = $13, withdraw_at = $14, session_time = $15, admin_comments = $16,
			reference = $17, user_email = $18, address = $19, instructions = $20, town = $21,
			emailsent = $22, emailsenttovirpal = $23, ignore_expiring = $24, ignore_expired = $25,
			flagged = $26, manually_handled = $27, by_admin = $28, updated_at = $29
		WHERE id = $30
	`

	booking.UpdatedAt = time.Now()
	result, err := db.ExecContext(ctx, query,
		booking.FromLanguageID,
		booking.Immediate,
		booking.PhoneType,
		booking.PhysicalType,
		booking.JobType,
		booking.Certified,
		booking.Gender,
		booking.Due,
		booking.Duration,
		booking.Status,
		booking.CreatedAt,
		booking.WillExpireAt,
		booking.EndAt,
		booking.WithdrawAt,
		booking.SessionTime,
		booking.AdminComments,
		booking.Reference,
		booking.UserEmail,
		booking.Address,
		booking.Instructions,
		booking.Town,
		booking.EmailSent,
		booking.EmailSentToVirpal,
		booking.IgnoreExpiring,
		booking.IgnoreExpired,
		booking.Flagged,
		booking.ManuallyHandled,
		booking.ByAdmin,
		booking.UpdatedAt,
		booking.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update booking: %v", err)
	}
	return result, nil
}

// GetByStatus retrieves all bookings with a specific status
func (r *bookingRepository) GetByStatus(ctx context.Context, status entity.BookingStatus) ([]*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = $1 ORDER BY due ASC, id ASC`
	return r.queryBookings(ctx, query, status)
}

// GetByCustomer retrieves the bookings owned by a customer
func (r *bookingRepository) GetByCustomer(ctx context.Context, customerID int64) ([]*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY due DESC`
	return r.queryBookings(ctx, query, customerID)
}

func (r *bookingRepository) queryBookings(ctx context.Context, query string, args ...interface{}) ([]*entity.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %v", err)
	}
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %v", err)
		}
		bookings = append(bookings, booking)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookings: %v", err)
	}

	return bookings, nil
}

// Apply writes a booking together with its assignment changes in one transaction
func (r *bookingRepository) Apply(ctx context.Context, m *entity.BookingMutation) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	for _, a := range []*entity.Assignment{m.Cancel, m.Complete} {
		if a == nil {
			continue
		}
		if err := updateAssignment(ctx, tx, a); err != nil {
			return err
		}
	}

	if m.Create != nil {
		if err := insertAssignment(ctx, tx, m.Create); err != nil {
			return err
		}
	}

	if m.Booking != nil {
		result, err := updateBooking(ctx, tx, m.Booking)
		if err != nil {
			return err
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %v", err)
		}
		if rowsAffected == 0 {
			return entity.ErrBookingNotFound
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

// AssignIfPending moves a pending booking to assigned and records the assignment.
// It returns false when the booking was no longer pending or already has an active assignment.
func (r *bookingRepository) AssignIfPending(ctx context.Context, bookingID, interpreterID int64, now time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE bookings SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
		AND NOT EXISTS (
			SELECT 1 FROM translator_job_rel
			WHERE job_id = $3 AND cancel_at IS NULL AND completed_at IS NULL
		)`
	result, err := tx.ExecContext(ctx, query,
		entity.BookingStatusAssigned, now, bookingID, entity.BookingStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to assign booking: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %v", err)
	}
	if rowsAffected == 0 {
		return false, nil
	}

	assignment := &entity.Assignment{BookingID: bookingID, InterpreterID: interpreterID, CreatedAt: now}
	if err := insertAssignment(ctx, tx, assignment); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %v", err)
	}

	return true, nil
}

// GetExpired returns pending bookings whose acceptance window closed before the given time
func (r *bookingRepository) GetExpired(ctx context.Context, before time.Time) ([]*entity.ExpiredBooking, error) {
	query := `
		SELECT id, user_id, will_expire_at
		FROM bookings
		WHERE status = $1 AND ignore_expired = FALSE AND will_expire_at IS NOT NULL AND will_expire_at < $2
		ORDER BY will_expire_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, entity.BookingStatusPending, before)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired bookings: %v", err)
	}
	defer rows.Close()

	var expired []*entity.ExpiredBooking
	for rows.Next() {
		var e entity.ExpiredBooking
		if err := rows.Scan(&e.BookingID, &e.CustomerID, &e.WillExpireAt); err != nil {
			return nil, fmt.Errorf("failed to scan expired booking: %v", err)
		}
		expired = append(expired, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired bookings: %v", err)
	}

	return expired, nil
}

// ExpireIfPending times out a booking that is still pending
func (r *bookingRepository) ExpireIfPending(ctx context.Context, bookingID int64, now time.Time) (bool, error) {
	query := `UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	result, err := r.db.ExecContext(ctx, query,
		entity.BookingStatusTimedOut, now, bookingID, entity.BookingStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to expire booking: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %v", err)
	}
	return rowsAffected == 1, nil
}

// SaveDistance upserts the travel information of a booking
func (r *bookingRepository) SaveDistance(ctx context.Context, d *entity.Distance) error {
	query := `
		INSERT INTO distances (job_id, distance, time) VALUES ($1, $2, $3)
		ON CONFLICT (job_id) DO UPDATE SET distance = EXCLUDED.distance, time = EXCLUDED.time
	`
	if _, err := r.db.ExecContext(ctx, query, d.BookingID, d.Distance, d.Time); err != nil {
		return fmt.Errorf("failed to save distance: %v", err)
	}
	return nil
}

func (r *bookingRepository) GetDistance(ctx context.Context, bookingID int64) (*entity.Distance, error) {
	query := `SELECT job_id, distance, time FROM distances WHERE job_id = $1`

	var d entity.Distance
	err := r.db.QueryRowContext(ctx, query, bookingID).Scan(&d.BookingID, &d.Distance, &d.Time)
	if err == sql.ErrNoRows {
		return &entity.Distance{BookingID: bookingID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get distance: %v", err)
	}
	return &d, nil
}

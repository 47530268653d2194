package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"
)

type assignmentRepository struct {
	db *sql.DB
}

func NewAssignmentRepository(db *sql.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

// GetByBooking returns the assignment history of a booking, oldest first
func (r *assignmentRepository) GetByBooking(ctx context.Context, bookingID int64) ([]*entity.Assignment, error) {
	query := `
		SELECT id, job_id, user_id, created_at, cancel_at, completed_at, completed_by
		FROM translator_job_rel
		WHERE job_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %v", err)
	}
	defer rows.Close()

	var assignments []*entity.Assignment
	for rows.Next() {
		var a entity.Assignment
		err := rows.Scan(
			&a.ID,
			&a.BookingID,
			&a.InterpreterID,
			&a.CreatedAt,
			&a.CancelAt,
			&a.CompletedAt,
			&a.CompletedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %v", err)
		}
		assignments = append(assignments, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %v", err)
	}

	return assignments, nil
}

// ActiveWindows returns the sessions an interpreter currently holds
func (r *assignmentRepository) ActiveWindows(ctx context.Context, interpreterID int64) ([]entity.AssignmentWindow, error) {
	query := `
		SELECT t.id, b.id, b.due, b.duration
		FROM translator_job_rel t
		JOIN bookings b ON b.id = t.job_id
		WHERE t.user_id = $1 AND t.cancel_at IS NULL AND t.completed_at IS NULL
		ORDER BY b.due ASC
	`

	rows, err := r.db.QueryContext(ctx, query, interpreterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active assignments: %v", err)
	}
	defer rows.Close()

	var windows []entity.AssignmentWindow
	for rows.Next() {
		var w entity.AssignmentWindow
		if err := rows.Scan(&w.AssignmentID, &w.BookingID, &w.Due, &w.Duration); err != nil {
			return nil, fmt.Errorf("failed to scan active assignment: %v", err)
		}
		windows = append(windows, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active assignments: %v", err)
	}

	return windows, nil
}

func insertAssignment(ctx context.Context, tx *sql.Tx, a *entity.Assignment) error {
	query := `
		INSERT INTO translator_job_rel (job_id, user_id, created_at, cancel_at, completed_at, completed_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := tx.QueryRowContext(ctx, query,
		a.BookingID,
		a.InterpreterID,
		a.CreatedAt,
		a.CancelAt,
		a.CompletedAt,
		a.CompletedBy,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to create assignment: %v", err)
	}
	return nil
}

func updateAssignment(ctx context.Context, tx *sql.Tx, a *entity.Assignment) error {
	query := `UPDATE translator_job_rel SET cancel_at = $1, completed_at = $2, completed_by = $3 WHERE id = $4`
	result, err := tx.ExecContext(ctx, query, a.CancelAt, a.CompletedAt, a.CompletedBy, a.ID)
	if err != nil {
		return fmt.Errorf("failed to update assignment: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %v", err)
	}
	if rowsAffected == 0 {
		return entity.ErrAssignmentNotFound
	}
	return nil
}

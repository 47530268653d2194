package repository

import (
	"context"
	"time"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"
)

type BookingRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, booking *entity.Booking) error
	GetByID(ctx context.Context, id int64) (*entity.Booking, error)
	Update(ctx context.Context, booking *entity.Booking) (int64, error)

	// Query operations
	GetByStatus(ctx context.Context, status entity.BookingStatus) ([]*entity.Booking, error)
	GetByCustomer(ctx context.Context, customerID int64) ([]*entity.Booking, error)

	// Lifecycle operations, each one transaction
	Apply(ctx context.Context, m *entity.BookingMutation) error
	AssignIfPending(ctx context.Context, bookingID, interpreterID int64, now time.Time) (bool, error)

	// Expiration operations
	GetExpired(ctx context.Context, before time.Time) ([]*entity.ExpiredBooking, error)
	ExpireIfPending(ctx context.Context, bookingID int64, now time.Time) (bool, error)

	// Distance feed
	SaveDistance(ctx context.Context, d *entity.Distance) error
	GetDistance(ctx context.Context, bookingID int64) (*entity.Distance, error)
}

type AssignmentRepository interface {
	GetByBooking(ctx context.Context, bookingID int64) ([]*entity.Assignment, error)
	ActiveWindows(ctx context.Context, interpreterID int64) ([]entity.AssignmentWindow, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)

	// Profiles
	GetCustomer(ctx context.Context, userID int64) (*entity.CustomerProfile, error)
	GetInterpreter(ctx context.Context, userID int64) (*entity.InterpreterProfile, error)
	ActiveInterpreters(ctx context.Context) ([]*entity.InterpreterProfile, error)

	// Customer rules
	Blacklist(ctx context.Context, customerID int64) ([]int64, error)
	TownOverrides(ctx context.Context, customerID int64) ([]int64, error)
}

type LanguageRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Language, error)
}

package service

import (
	"context"
	"time"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"
)

// BookingService определяет интерфейс для операций с бронированиями
type BookingService interface {
	// Основные операции
	CreateBooking(ctx context.Context, actor *entity.User, req *CreateBookingRequest) (*entity.CreateResult, error)
	SubmitContact(ctx context.Context, bookingID int64, req *ContactRequest) (*entity.Outcome, error)
	GetBooking(ctx context.Context, id int64) (*entity.Booking, error)
	GetCustomerBookings(ctx context.Context, customerID int64) ([]*entity.Booking, error)
	UpdateBooking(ctx context.Context, bookingID int64, actor *entity.User, req *UpdateBookingRequest) (*entity.UpdateOutcome, error)

	// Жизненный цикл
	AcceptBooking(ctx context.Context, bookingID int64, interpreterID int64) (*entity.AcceptOutcome, error)
	CancelBooking(ctx context.Context, bookingID int64, actor *entity.User) (*entity.CancelOutcome, error)
	EndSession(ctx context.Context, bookingID int64, actorID int64) (*entity.SessionOutcome, error)
	CustomerNoShow(ctx context.Context, bookingID int64) (*entity.SessionOutcome, error)
	ReopenBooking(ctx context.Context, bookingID int64, actor *entity.User) (*entity.Outcome, error)

	// Подбор переводчиков
	PotentialInterpreters(ctx context.Context, bookingID int64) ([]*entity.InterpreterProfile, error)
	PotentialBookings(ctx context.Context, interpreterID int64) ([]*entity.Booking, error)

	// Административные операции
	UpdateDistanceFeed(ctx context.Context, bookingID int64, actor *entity.User, req *DistanceFeedRequest) (*entity.Outcome, error)
	IgnoreExpiring(ctx context.Context, bookingID int64) (*entity.Outcome, error)
	IgnoreExpired(ctx context.Context, bookingID int64) (*entity.Outcome, error)
	ResendPush(ctx context.Context, bookingID int64) (*entity.Outcome, error)
	ResendSMS(ctx context.Context, bookingID int64) (*entity.Outcome, error)

	// Операции истечения срока
	GetExpiredBookings(ctx context.Context, before time.Time) ([]*entity.ExpiredBooking, error)
	ExpireBooking(ctx context.Context, bookingID int64) (*entity.Outcome, error)
}

// Locker serializes lifecycle mutations of one booking.
type Locker interface {
	Lock(ctx context.Context, bookingID int64) (unlock func(), err error)
}

// AuditSink stores one entry per applied mutation.
type AuditSink interface {
	Record(ctx context.Context, actorID int64, actorLabel string, bookingID int64, deltas []entity.Delta) error
}

// EventPublisher announces lifecycle events to other services.
type EventPublisher interface {
	Publish(ctx context.Context, event *entity.BookingEvent) error
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	repository "github.com/ds124wfegd/interpreter-booking/internal/database/postgres"
	"github.com/ds124wfegd/interpreter-booking/internal/eligibility"
	"github.com/ds124wfegd/interpreter-booking/internal/entity"
	"github.com/ds124wfegd/interpreter-booking/internal/ledger"
	"github.com/ds124wfegd/interpreter-booking/internal/notification"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Dependencies are the collaborators a booking service is built from.
type Dependencies struct {
	Bookings    repository.BookingRepository
	Assignments repository.AssignmentRepository
	Users       repository.UserRepository
	Languages   repository.LanguageRepository
	Eligibility *eligibility.Engine
	Dispatcher  *notification.Dispatcher
	Locker      Locker
	Audit       AuditSink
	Events      EventPublisher
	Logger      logrus.FieldLogger
}

type Options struct {
	Location      *time.Location
	ImmediateLead time.Duration
	CancelWindow  time.Duration
	ReminderLead  time.Duration
	Now           func() time.Time
}

func DefaultOptions() Options {
	return Options{
		Location:      time.UTC,
		ImmediateLead: 5 * time.Minute,
		CancelWindow:  24 * time.Hour,
		ReminderLead:  time.Hour,
		Now:           time.Now,
	}
}

type bookingService struct {
	bookingRepo repository.BookingRepository
	userRepo    repository.UserRepository
	langRepo    repository.LanguageRepository
	ledger      *ledger.Ledger
	matcher     *eligibility.Engine
	dispatcher  *notification.Dispatcher
	locker      Locker
	audit       AuditSink
	events      EventPublisher
	logger      logrus.FieldLogger
	opts        Options
}

// NewBookingService создает новый экземпляр BookingService
func NewBookingService(deps Dependencies, opts Options) BookingService {
	defaults := DefaultOptions()
	if opts.Location == nil {
		opts.Location = defaults.Location
	}
	if opts.ImmediateLead <= 0 {
		opts.ImmediateLead = defaults.ImmediateLead
	}
	if opts.CancelWindow <= 0 {
		opts.CancelWindow = defaults.CancelWindow
	}
	if opts.ReminderLead <= 0 {
		opts.ReminderLead = defaults.ReminderLead
	}
	if opts.Now == nil {
		opts.Now = defaults.Now
	}
	if deps.Locker == nil {
		deps.Locker = NewKeyedLocker()
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}

	return &bookingService{
		bookingRepo: deps.Bookings,
		userRepo:    deps.Users,
		langRepo:    deps.Languages,
		ledger:      ledger.New(deps.Assignments),
		matcher:     deps.Eligibility,
		dispatcher:  deps.Dispatcher,
		locker:      deps.Locker,
		audit:       deps.Audit,
		events:      deps.Events,
		logger:      deps.Logger.WithField("component", "booking_service"),
		opts:        opts,
	}
}

func (s *bookingService) now() time.Time {
	return s.opts.Now()
}

func (s *bookingService) GetBooking(ctx context.Context, id int64) (*entity.Booking, error) {
	return s.bookingRepo.GetByID(ctx, id)
}

func (s *bookingService) GetCustomerBookings(ctx context.Context, customerID int64) ([]*entity.Booking, error) {
	return s.bookingRepo.GetByCustomer(ctx, customerID)
}

func (s *bookingService) PotentialInterpreters(ctx context.Context, bookingID int64) ([]*entity.InterpreterProfile, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return s.matcher.EligibleInterpreters(ctx, booking)
}

func (s *bookingService) PotentialBookings(ctx context.Context, interpreterID int64) ([]*entity.Booking, error) {
	return s.matcher.EligibleBookings(ctx, interpreterID)
}

// withLock runs fn while holding the booking lock.
func (s *bookingService) withLock(ctx context.Context, bookingID int64, fn func() error) error {
	unlock, err := s.locker.Lock(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("failed to lock booking %d: %w", bookingID, err)
	}
	defer unlock()
	return fn()
}

func (s *bookingService) record(ctx context.Context, actorID int64, actorLabel string, bookingID int64, deltas []entity.Delta) {
	if s.audit == nil || len(deltas) == 0 {
		return
	}
	if err := s.audit.Record(ctx, actorID, actorLabel, bookingID, deltas); err != nil {
		s.logger.WithField("booking_id", bookingID).Errorf("Failed to write audit entry: %v", err)
	}
}

func (s *bookingService) publish(ctx context.Context, typ entity.BookingEventType, b *entity.Booking, actorID, receiverID int64) {
	if s.events == nil {
		return
	}
	event := &entity.BookingEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		BookingID:  b.ID,
		ActorID:    actorID,
		ReceiverID: receiverID,
		Status:     b.Status,
		OccurredAt: s.now(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.WithFields(logrus.Fields{
			"booking_id": b.ID,
			"event":      typ,
		}).Errorf("Failed to publish booking event: %v", err)
	}
}

func (s *bookingService) languageName(ctx context.Context, id int64) string {
	lang, err := s.langRepo.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, entity.ErrLanguageNotFound) {
			s.logger.Warnf("Failed to load language %d: %v", id, err)
		}
		return fmt.Sprintf("#%d", id)
	}
	return lang.Name
}

// customer returns the owning user of a booking and the push preferences from their profile.
func (s *bookingService) customer(ctx context.Context, b *entity.Booking) (*entity.User, entity.PushPreferences, error) {
	user, err := s.userRepo.GetByID(ctx, b.CustomerID)
	if err != nil {
		return nil, entity.PushPreferences{}, err
	}
	var prefs entity.PushPreferences
	profile, err := s.userRepo.GetCustomer(ctx, b.CustomerID)
	if err == nil {
		prefs = profile.Push
	} else if !errors.Is(err, entity.ErrCustomerNotFound) {
		return nil, prefs, err
	}
	return user, prefs, nil
}

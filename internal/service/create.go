package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"

	"github.com/sirupsen/logrus"
)

const (
	dueDateLayout = "01/02/2006"
	dueTimeLayout = "15:04"

	msgRequired = "This field is required"

	typeImmediate = "immediate"
	typeRegular   = "regular"
)

// CreateBookingRequest is the booking form submitted by a customer.
type CreateBookingRequest struct {
	FromLanguageID int64    `json:"from_language_id"`
	Immediate      bool     `json:"immediate"`
	DueDate        string   `json:"due_date"`
	DueTime        string   `json:"due_time"`
	PhoneType      bool     `json:"customer_phone_type"`
	PhysicalType   bool     `json:"customer_physical_type"`
	Duration       int      `json:"duration"`
	JobFor         []string `json:"job_for"`
}

func (r *CreateBookingRequest) validate() error {
	if r.FromLanguageID == 0 {
		return entity.NewValidationError("from_language_id", msgRequired)
	}
	if !r.Immediate {
		if strings.TrimSpace(r.DueDate) == "" {
			return entity.NewValidationError("due_date", msgRequired)
		}
		if strings.TrimSpace(r.DueTime) == "" {
			return entity.NewValidationError("due_time", msgRequired)
		}
		if !r.PhoneType && !r.PhysicalType {
			return entity.NewValidationError("customer_phone_type", "Choose phone or physical booking")
		}
	}
	if r.Duration <= 0 {
		return entity.NewValidationError("duration", msgRequired)
	}
	return nil
}

func (s *bookingService) CreateBooking(ctx context.Context, actor *entity.User, req *CreateBookingRequest) (*entity.CreateResult, error) {
	if actor == nil {
		return nil, entity.ErrForbidden
	}
	if actor.Role == entity.RoleTranslator {
		return nil, entity.NewValidationError("user_type", "Translator can not create booking")
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	booking := &entity.Booking{
		CustomerID:     actor.ID,
		FromLanguageID: req.FromLanguageID,
		Immediate:      req.Immediate,
		PhoneType:      req.PhoneType,
		PhysicalType:   req.PhysicalType,
		Duration:       req.Duration,
		Status:         entity.BookingStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	kind := typeRegular
	if req.Immediate {
		kind = typeImmediate
		booking.Due = now.Add(s.opts.ImmediateLead)
		booking.PhoneType = true
	} else {
		due, err := time.ParseInLocation(dueDateLayout+" "+dueTimeLayout,
			strings.TrimSpace(req.DueDate)+" "+strings.TrimSpace(req.DueTime), s.opts.Location)
		if err != nil {
			return nil, entity.NewValidationError("due_date", "Invalid date or time")
		}
		if due.Before(now) {
			return nil, entity.NewValidationError("due_date", "Can't create booking in past")
		}
		booking.Due = due
	}

	booking.Gender, booking.Certified = jobFor(req.JobFor)

	profile, err := s.userRepo.GetCustomer(ctx, actor.ID)
	switch {
	case err == nil:
		booking.JobType = profile.ConsumerType.JobType()
	case errors.Is(err, entity.ErrCustomerNotFound):
		booking.JobType = entity.JobTypePaid
	default:
		return nil, err
	}

	expires := willExpireAt(booking.CreatedAt, booking.Due)
	booking.WillExpireAt = &expires

	if err := s.bookingRepo.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":  booking.ID,
		"customer_id": actor.ID,
		"type":        kind,
		"due":         booking.Due,
	}).Info("Booking created")

	return &entity.CreateResult{
		ID:           booking.ID,
		Type:         kind,
		Status:       booking.Status,
		Due:          booking.Due,
		WillExpireAt: expires,
	}, nil
}

// jobFor derives the requested gender and certification from the job_for options.
func jobFor(options []string) (entity.Gender, entity.Certification) {
	has := make(map[string]bool, len(options))
	for _, o := range options {
		has[o] = true
	}

	gender := entity.GenderAny
	if has["male"] {
		gender = entity.GenderMale
	} else if has["female"] {
		gender = entity.GenderFemale
	}

	cert := entity.CertificationAny
	switch {
	case has["normal"] && has["certified"]:
		cert = entity.CertificationBoth
	case has["normal"] && has["certified_in_law"]:
		cert = entity.CertificationNLaw
	case has["normal"] && has["certified_in_helth"]:
		cert = entity.CertificationNHealth
	case has["normal"]:
		cert = entity.CertificationNormal
	case has["certified"]:
		cert = entity.CertificationYes
	case has["certified_in_law"]:
		cert = entity.CertificationLaw
	case has["certified_in_helth"]:
		cert = entity.CertificationHealth
	}
	return gender, cert
}

// willExpireAt is the instant a pending booking stops being offered to interpreters.
func willExpireAt(created, due time.Time) time.Time {
	lead := due.Sub(created)
	switch {
	case lead <= 90*time.Minute:
		return due
	case lead <= 24*time.Hour:
		return created.Add(90 * time.Minute)
	case lead <= 72*time.Hour:
		return created.Add(16 * time.Hour)
	default:
		return due.Add(-48 * time.Hour)
	}
}

// ContactRequest completes a booking with the details correspondence needs.
type ContactRequest struct {
	UserEmail    string `json:"user_email"`
	Reference    string `json:"reference"`
	Address      string `json:"address"`
	Instructions string `json:"instructions"`
	Town         string `json:"town"`
}

// SubmitContact stores the contact details, confirms the booking to the customer and
// offers it to eligible interpreters.
func (s *bookingService) SubmitContact(ctx context.Context, bookingID int64, req *ContactRequest) (*entity.Outcome, error) {
	out := &entity.Outcome{Status: entity.OutcomeApplied, BookingID: bookingID}
	var booking *entity.Booking

	err := s.withLock(ctx, bookingID, func() error {
		b, err := s.bookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}

		profile, err := s.userRepo.GetCustomer(ctx, b.CustomerID)
		if err != nil && !errors.Is(err, entity.ErrCustomerNotFound) {
			return err
		}
		if profile == nil {
			profile = &entity.CustomerProfile{}
		}

		b.UserEmail = strings.TrimSpace(req.UserEmail)
		b.Reference = req.Reference
		b.Address = firstNonEmpty(req.Address, profile.Address)
		b.Instructions = firstNonEmpty(req.Instructions, profile.Instructions)
		b.Town = firstNonEmpty(req.Town, profile.City)
		b.UpdatedAt = s.now()

		rows, err := s.bookingRepo.Update(ctx, b)
		if err != nil {
			return err
		}
		if rows == 0 {
			return entity.ErrBookingNotFound
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	n := s.newNotice(ctx, booking, out)
	customer := s.partyOrFailure(ctx, n, "customer", func() (*party, error) { return s.customerParty(ctx, booking) })
	s.letter(ctx, n, customer, fmt.Sprintf("Your booking #%d has been received", bookingID), tplJobCreated, nil)
	s.broadcast(ctx, n, 0)

	s.publish(ctx, entity.EventBookingCreated, booking, booking.CustomerID, 0)
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

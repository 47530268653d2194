package service

import (
	"context"
	"fmt"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"
	"github.com/ds124wfegd/interpreter-booking/internal/notification"
)

// Шаблоны писем
const (
	tplJobCreated             = "emails.job-created"
	tplJobAccepted            = "emails.job-accepted"
	tplJobAssignedInterpreter = "emails.job-assigned-translator"
	tplJobWithdrawn           = "emails.job-withdrawn"
	tplJobCancelInterpreter   = "emails.job-cancel-translator"
	tplJobReopened            = "emails.job-reopened"
	tplSessionEnded           = "emails.session-ended"
	tplChangedDate            = "emails.job-changed-date"
	tplChangedLanguage        = "emails.job-changed-lang"
	tplChangedTranslatorCust  = "emails.job-changed-translator-customer"
	tplChangedTranslatorOld   = "emails.job-changed-translator-old-translator"
	tplChangedTranslatorNew   = "emails.job-changed-translator-new-translator"
)

const (
	channelEmail = "email"
	channelPush  = "push"
	channelSMS   = "sms"
)

// party is one side of a booking as far as correspondence is concerned.
type party struct {
	ID    int64
	Email string
	Name  string
	Phone string
	Prefs entity.PushPreferences
}

func (p *party) recipient() notification.Recipient {
	return notification.Recipient{UserID: p.ID, Email: p.Email, Prefs: p.Prefs}
}

func (s *bookingService) customerParty(ctx context.Context, b *entity.Booking) (*party, error) {
	user, prefs, err := s.customer(ctx, b)
	if err != nil {
		return nil, err
	}
	return &party{
		ID:    user.ID,
		Email: b.ContactEmail(user),
		Name:  user.Name,
		Phone: user.Phone,
		Prefs: prefs,
	}, nil
}

func (s *bookingService) interpreterParty(ctx context.Context, interpreterID int64) (*party, error) {
	p, err := s.userRepo.GetInterpreter(ctx, interpreterID)
	if err != nil {
		return nil, err
	}
	return &party{
		ID:    p.UserID,
		Email: p.Email,
		Name:  p.Name,
		Phone: p.Phone,
		Prefs: p.Preferences(),
	}, nil
}

// notice carries what every letter and push of one booking has in common.
type notice struct {
	booking  *entity.Booking
	language string
	out      *entity.Outcome
}

func (s *bookingService) newNotice(ctx context.Context, b *entity.Booking, out *entity.Outcome) *notice {
	return &notice{booking: b, language: s.languageName(ctx, b.FromLanguageID), out: out}
}

func (n *notice) payload(name string, extra map[string]interface{}) map[string]interface{} {
	data := map[string]interface{}{
		"user":     name,
		"job_id":   n.booking.ID,
		"language": n.language,
		"due":      n.booking.Due.Format("2006-01-02 15:04"),
		"duration": n.booking.Duration,
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

// letter mails one party. Failures land on the outcome, the state change stays.
func (s *bookingService) letter(ctx context.Context, n *notice, to *party, subject, template string, extra map[string]interface{}) {
	if to == nil {
		return
	}
	err := s.dispatcher.SendLetter(ctx, &notification.Letter{
		ToAddress: to.Email,
		ToName:    to.Name,
		Subject:   subject,
		Template:  template,
		Payload:   n.payload(to.Name, extra),
	})
	n.out.AddFailure(channelEmail, template, to.Email, err)
}

func (s *bookingService) push(ctx context.Context, n *notice, kind notification.Kind, to []notification.Recipient, text string, class notification.DeliveryClass) {
	if len(to) == 0 {
		return
	}
	payload := notification.NewPayload(kind, n.booking, n.language)
	report := s.dispatcher.Dispatch(ctx, to, payload, notification.Text(text), class)
	for _, batch := range report.Batches {
		if batch.Err == nil {
			continue
		}
		for _, email := range batch.Recipients {
			n.out.AddFailure(channelPush, string(kind), email, batch.Err)
		}
	}
}

func (s *bookingService) pushParty(ctx context.Context, n *notice, kind notification.Kind, to *party, text string, class notification.DeliveryClass) {
	if to == nil {
		return
	}
	s.push(ctx, n, kind, []notification.Recipient{to.recipient()}, text, class)
}

// broadcast offers the booking to every eligible interpreter except the excluded one.
func (s *bookingService) broadcast(ctx context.Context, n *notice, exclude int64) {
	interpreters, err := s.matcher.EligibleInterpreters(ctx, n.booking)
	if err != nil {
		s.logger.WithField("booking_id", n.booking.ID).Errorf("Failed to compute eligible interpreters: %v", err)
		n.out.AddFailure(channelPush, string(notification.KindSuitableJob), "", err)
		return
	}

	recipients := make([]notification.Recipient, 0, len(interpreters))
	for _, p := range interpreters {
		if p.UserID == exclude {
			continue
		}
		recipients = append(recipients, notification.InterpreterRecipient(p))
	}

	class := notification.Standard
	if n.booking.Immediate {
		class = notification.Urgent()
	}
	s.push(ctx, n, notification.KindSuitableJob, recipients, jobOfferText(n), class)
}

// remind schedules session start reminders ahead of the due time.
func (s *bookingService) remind(ctx context.Context, n *notice, parties ...*party) {
	class := notification.Standard
	if at := n.booking.Due.Add(-s.opts.ReminderLead); at.After(s.now()) {
		class = notification.ScheduledAt(at)
	}
	var to []notification.Recipient
	for _, p := range parties {
		if p != nil {
			to = append(to, p.recipient())
		}
	}
	text := fmt.Sprintf("Reminder: your %s session for booking #%d starts at %s",
		n.language, n.booking.ID, n.booking.Due.Format("15:04"))
	s.push(ctx, n, notification.KindSessionStartRemind, to, text, class)
}

func jobOfferText(n *notice) string {
	mode := "phone"
	if n.booking.PhysicalType && !n.booking.PhoneType {
		mode = "on site"
	}
	if n.booking.Immediate {
		return fmt.Sprintf("New emergency booking for %s (%d min), %s", n.language, n.booking.Duration, mode)
	}
	return fmt.Sprintf("New booking for %s (%d min) on %s, %s",
		n.language, n.booking.Duration, n.booking.Due.Format("2006-01-02 15:04"), mode)
}

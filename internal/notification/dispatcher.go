package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// PushRequest is one outbound call to the push gateway.
type PushRequest struct {
	Tags      TagExpression
	Data      Payload
	Titles    Message
	Contents  Message
	Sound     Sound
	SendAfter *time.Time
}

type DeliveryAck struct {
	ID         string
	Recipients int
}

type PushSender interface {
	Send(ctx context.Context, req *PushRequest) (*DeliveryAck, error)
}

// Letter is a single written message to one addressee.
type Letter struct {
	ToAddress string
	ToName    string
	Subject   string
	Template  string
	Payload   map[string]interface{}
}

type Correspondence interface {
	Send(ctx context.Context, letter *Letter) error
}

type TextMessage struct {
	To   string
	Body string
}

type SMSSender interface {
	Send(ctx context.Context, msg *TextMessage) error
}

type BatchName string

const (
	BatchImmediate BatchName = "immediate"
	BatchDelayed   BatchName = "delayed"
)

// BatchResult is what happened to one merged push call.
type BatchResult struct {
	Name       BatchName
	Recipients []string
	SendAfter  *time.Time
	Ack        *DeliveryAck
	Err        error
}

// Report summarises a fan-out.
type Report struct {
	Suppressed []string
	Batches    []BatchResult
}

// Err joins the transport errors of all batches.
func (r *Report) Err() error {
	var errs []error
	for _, b := range r.Batches {
		if b.Err != nil {
			errs = append(errs, fmt.Errorf("%s batch: %w", b.Name, b.Err))
		}
	}
	return errors.Join(errs...)
}

// Attempted counts recipients handed to the push gateway.
func (r *Report) Attempted() int {
	n := 0
	for _, b := range r.Batches {
		n += len(b.Recipients)
	}
	return n
}

type routing int

const (
	routeSuppress routing = iota
	routeImmediate
	routeDelayed
)

const pushTitle = "DigitalTolk"

type Dispatcher struct {
	push   PushSender
	mail   Correspondence
	sms    SMSSender
	policy NightPolicy
	logger logrus.FieldLogger
	now    func() time.Time
}

type Option func(*Dispatcher)

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func WithSMS(sms SMSSender) Option {
	return func(d *Dispatcher) { d.sms = sms }
}

func NewDispatcher(push PushSender, mail Correspondence, policy NightPolicy, logger logrus.FieldLogger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		push:   push,
		mail:   mail,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch routes a push to every recipient that has not opted out, merging
// recipients with the same delivery policy into one gateway call.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients []Recipient, payload Payload, msg Message, class DeliveryClass) *Report {
	at := d.now()
	if class.NotBefore.After(at) {
		at = class.NotBefore
	}
	night := d.policy.IsNight(at)

	routes := make([]routing, len(recipients))
	var g errgroup.Group
	g.SetLimit(8)
	for i := range recipients {
		g.Go(func() error {
			routes[i] = route(recipients[i], payload, night)
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{}
	seen := make(map[string]struct{}, len(recipients))
	var immediate, delayed []string
	for i, r := range recipients {
		key := r.key()
		if routes[i] == routeSuppress {
			report.Suppressed = append(report.Suppressed, key)
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if routes[i] == routeDelayed {
			delayed = append(delayed, key)
		} else {
			immediate = append(immediate, key)
		}
	}

	var immediateAfter *time.Time
	if class.NotBefore.After(d.now()) {
		t := class.NotBefore
		immediateAfter = &t
	}
	var delayedAfter *time.Time
	if len(delayed) > 0 {
		t := d.policy.NextBusinessTime(at)
		delayedAfter = &t
	}

	d.logger.WithFields(logrus.Fields{
		"booking_id":           payload.BookingID,
		"kind":                 payload.Kind,
		"immediate_recipients": immediate,
		"delayed_recipients":   delayed,
		"suppressed":           report.Suppressed,
		"payload":              payload.Map(),
		"message":              msg,
	}).Info("Dispatching push notification")

	sound := SelectSound(payload.Kind, payload.Immediate, class)
	if len(immediate) > 0 {
		report.Batches = append(report.Batches, d.send(ctx, BatchImmediate, immediate, payload, msg, sound, immediateAfter))
	}
	if len(delayed) > 0 {
		report.Batches = append(report.Batches, d.send(ctx, BatchDelayed, delayed, payload, msg, sound, delayedAfter))
	}
	return report
}

func route(r Recipient, payload Payload, night bool) routing {
	if r.key() == "" || r.Prefs.NoPush {
		return routeSuppress
	}
	if payload.Immediate && r.Prefs.NoEmergencyPush {
		return routeSuppress
	}
	if night && r.Prefs.NoNightPush {
		return routeDelayed
	}
	return routeImmediate
}

func (d *Dispatcher) send(ctx context.Context, name BatchName, emails []string, payload Payload, msg Message, sound Sound, after *time.Time) BatchResult {
	result := BatchResult{Name: name, Recipients: emails, SendAfter: after}
	if d.push == nil {
		result.Err = errors.New("push sender not configured")
		return result
	}

	ack, err := d.push.Send(ctx, &PushRequest{
		Tags:      EmailTags(emails),
		Data:      payload,
		Titles:    Text(pushTitle),
		Contents:  msg,
		Sound:     sound,
		SendAfter: after,
	})
	result.Ack = ack
	result.Err = err

	entry := d.logger.WithFields(logrus.Fields{
		"booking_id": payload.BookingID,
		"kind":       payload.Kind,
		"batch":      name,
		"recipients": len(emails),
	})
	if err != nil {
		entry.Errorf("Push delivery failed: %v", err)
	} else {
		entry.Info("Push delivered to gateway")
	}
	return result
}

// SendLetter sends one piece of written correspondence.
func (d *Dispatcher) SendLetter(ctx context.Context, letter *Letter) error {
	if letter.ToAddress == "" {
		return fmt.Errorf("letter %q has no recipient address", letter.Template)
	}
	if d.mail == nil {
		return errors.New("correspondence sender not configured")
	}

	entry := d.logger.WithFields(logrus.Fields{
		"to":       letter.ToAddress,
		"subject":  letter.Subject,
		"template": letter.Template,
	})
	if err := d.mail.Send(ctx, letter); err != nil {
		entry.Errorf("Failed to send email: %v", err)
		return err
	}
	entry.Info("Email sent")
	return nil
}

// SendText sends one SMS.
func (d *Dispatcher) SendText(ctx context.Context, msg *TextMessage) error {
	if d.sms == nil {
		return errors.New("sms sender not configured")
	}
	if msg.To == "" {
		return errors.New("sms has no recipient number")
	}
	if err := d.sms.Send(ctx, msg); err != nil {
		d.logger.WithField("to", msg.To).Errorf("Failed to send SMS: %v", err)
		return err
	}
	d.logger.WithField("to", msg.To).Info("SMS sent")
	return nil
}

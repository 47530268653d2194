package notification

import (
	"context"

	"github.com/ds124wfegd/interpreter-booking/pkg/mailer"
	"github.com/ds124wfegd/interpreter-booking/pkg/queue"
)

// Outbox hands letters and texts to the delivery queue, where retries happen.
type Outbox struct {
	queue queue.Queue
}

func NewOutbox(q queue.Queue) *Outbox {
	return &Outbox{queue: q}
}

func (o *Outbox) Send(ctx context.Context, letter *Letter) error {
	return o.queue.Publish(ctx, queue.NewEmailTask(mailMessage(letter)))
}

// Texts returns the SMS side of the outbox.
func (o *Outbox) Texts() SMSSender {
	return outboxTexts{queue: o.queue}
}

type outboxTexts struct {
	queue queue.Queue
}

func (o outboxTexts) Send(ctx context.Context, msg *TextMessage) error {
	return o.queue.Publish(ctx, queue.NewSMSTask(msg.To, msg.Body))
}

// DirectMail sends letters synchronously over SMTP.
type DirectMail struct {
	client *mailer.Client
}

func NewDirectMail(client *mailer.Client) *DirectMail {
	return &DirectMail{client: client}
}

func (m *DirectMail) Send(ctx context.Context, letter *Letter) error {
	return m.client.Send(ctx, mailMessage(letter))
}

// TextGateway is the transport side of an SMS gateway client.
type TextGateway interface {
	Send(ctx context.Context, to, body string) error
}

// DirectSMS sends texts synchronously through the gateway.
type DirectSMS struct {
	gateway TextGateway
}

func NewDirectSMS(gateway TextGateway) *DirectSMS {
	return &DirectSMS{gateway: gateway}
}

func (d *DirectSMS) Send(ctx context.Context, msg *TextMessage) error {
	return d.gateway.Send(ctx, msg.To, msg.Body)
}

func mailMessage(letter *Letter) *mailer.Message {
	return &mailer.Message{
		To:       letter.ToAddress,
		ToName:   letter.ToName,
		Subject:  letter.Subject,
		Template: letter.Template,
		Data:     letter.Payload,
	}
}

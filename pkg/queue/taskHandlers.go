package queue

import (
	"context"
	"fmt"

	"github.com/ds124wfegd/interpreter-booking/pkg/mailer"
	"github.com/ds124wfegd/interpreter-booking/pkg/sms"

	"github.com/sirupsen/logrus"
)

type MailSender interface {
	Send(ctx context.Context, msg *mailer.Message) error
}

type TextSender interface {
	Send(ctx context.Context, to, body string) error
}

// NewEmailTask builds a send_email task
func NewEmailTask(msg *mailer.Message) *Task {
	return &Task{
		Type: TaskTypeSendEmail,
		Data: map[string]interface{}{
			"to":       msg.To,
			"to_name":  msg.ToName,
			"subject":  msg.Subject,
			"template": msg.Template,
			"payload":  msg.Data,
		},
	}
}

// NewSMSTask builds a send_sms task
func NewSMSTask(to, body string) *Task {
	return &Task{
		Type: TaskTypeSendSMS,
		Data: map[string]interface{}{
			"to":   to,
			"body": body,
		},
	}
}

// TaskHandler delivers outbox tasks through the real transports
type TaskHandler struct {
	mail   MailSender
	sms    TextSender
	logger logrus.FieldLogger
}

// NewTaskHandler создает новый обработчик задач
func NewTaskHandler(mail MailSender, texts TextSender, logger logrus.FieldLogger) *TaskHandler {
	return &TaskHandler{mail: mail, sms: texts, logger: logger.WithField("component", "outbox")}
}

// HandleTask обрабатывает задачу
func (h *TaskHandler) HandleTask(ctx context.Context, task *Task) error {
	h.logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"type":    task.Type,
		"attempt": task.Attempts,
		"max":     task.MaxRetries,
	}).Debug("Processing task")

	switch task.Type {
	case TaskTypeSendEmail:
		return h.handleSendEmail(ctx, task)
	case TaskTypeSendSMS:
		return h.handleSendSMS(ctx, task)
	default:
		return Permanent(fmt.Errorf("unknown task type: %s", task.Type))
	}
}

func (h *TaskHandler) handleSendEmail(ctx context.Context, task *Task) error {
	if h.mail == nil {
		return Permanent(fmt.Errorf("email transport not configured"))
	}
	msg := &mailer.Message{
		To:       task.GetString("to"),
		ToName:   task.GetString("to_name"),
		Subject:  task.GetString("subject"),
		Template: task.GetString("template"),
		Data:     task.GetMap("payload"),
	}
	if msg.To == "" {
		return Permanent(fmt.Errorf("email task %s has no recipient", task.ID))
	}

	if err := h.mail.Send(ctx, msg); err != nil {
		if mailer.IsPermanent(err) {
			return Permanent(err)
		}
		return err
	}
	h.logger.WithFields(logrus.Fields{"to": msg.To, "template": msg.Template}).Info("Email delivered")
	return nil
}

func (h *TaskHandler) handleSendSMS(ctx context.Context, task *Task) error {
	if h.sms == nil {
		return Permanent(fmt.Errorf("sms transport not configured"))
	}
	to := task.GetString("to")
	if to == "" {
		return Permanent(fmt.Errorf("sms task %s has no recipient", task.ID))
	}

	if err := h.sms.Send(ctx, to, task.GetString("body")); err != nil {
		if sms.IsPermanent(err) {
			return Permanent(err)
		}
		return err
	}
	h.logger.WithField("to", to).Info("SMS delivered")
	return nil
}

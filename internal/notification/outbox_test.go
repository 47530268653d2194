package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/ds124wfegd/interpreter-booking/pkg/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingQueue struct {
	tasks []*queue.Task
	err   error
}

func (q *recordingQueue) Publish(ctx context.Context, task *queue.Task) error {
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) Subscribe(ctx context.Context, handler queue.Handler) error { return nil }
func (q *recordingQueue) Close() error                                               { return nil }

func TestOutbox(t *testing.T) {
	t.Run("letter becomes an email task", func(t *testing.T) {
		q := &recordingQueue{}
		outbox := NewOutbox(q)

		err := outbox.Send(context.Background(), &Letter{
			ToAddress: "customer@example.com",
			ToName:    "Anna",
			Subject:   "Booking #5",
			Template:  "job-created",
			Payload:   map[string]interface{}{"job_id": int64(5)},
		})

		require.NoError(t, err)
		require.Len(t, q.tasks, 1)
		task := q.tasks[0]
		assert.Equal(t, queue.TaskTypeSendEmail, task.Type)
		assert.Equal(t, "customer@example.com", task.GetString("to"))
		assert.Equal(t, "job-created", task.GetString("template"))
		assert.Equal(t, int64(5), task.GetMap("payload")["job_id"])
	})

	t.Run("text becomes an sms task", func(t *testing.T) {
		q := &recordingQueue{}
		err := NewOutbox(q).Texts().Send(context.Background(), &TextMessage{To: "+46700000000", Body: "New job"})

		require.NoError(t, err)
		require.Len(t, q.tasks, 1)
		assert.Equal(t, queue.TaskTypeSendSMS, q.tasks[0].Type)
		assert.Equal(t, "New job", q.tasks[0].GetString("body"))
	})

	t.Run("queue failure surfaces", func(t *testing.T) {
		q := &recordingQueue{err: errors.New("redis down")}
		assert.Error(t, NewOutbox(q).Send(context.Background(), &Letter{ToAddress: "x@example.com"}))
	})
}

type gatewayFunc func(ctx context.Context, to, body string) error

func (f gatewayFunc) Send(ctx context.Context, to, body string) error { return f(ctx, to, body) }

func TestDirectSMS(t *testing.T) {
	var gotTo, gotBody string
	sms := NewDirectSMS(gatewayFunc(func(ctx context.Context, to, body string) error {
		gotTo, gotBody = to, body
		return nil
	}))

	require.NoError(t, sms.Send(context.Background(), &TextMessage{To: "+4611", Body: "hello"}))
	assert.Equal(t, "+4611", gotTo)
	assert.Equal(t, "hello", gotBody)
}

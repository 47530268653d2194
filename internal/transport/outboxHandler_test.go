package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ds124wfegd/interpreter-booking/pkg/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDLQ struct {
	mu        sync.Mutex
	failed    []*queue.FailedTask
	requeued  []string
	lastLimit int
}

func (d *fakeDLQ) HandleFailedTask(task *queue.Task, err error) {}

func (d *fakeDLQ) GetFailedTasks(ctx context.Context, limit int) ([]*queue.FailedTask, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastLimit = limit
	if limit > len(d.failed) {
		limit = len(d.failed)
	}
	return d.failed[:limit], nil
}

func (d *fakeDLQ) RequeueFailedTask(ctx context.Context, taskID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, ft := range d.failed {
		if ft.Task.ID == taskID {
			d.failed = append(d.failed[:i], d.failed[i+1:]...)
			d.requeued = append(d.requeued, taskID)
			return nil
		}
	}
	return fmt.Errorf("task %s: %w", taskID, queue.ErrTaskNotFound)
}

func (d *fakeDLQ) GetDLQStats(ctx context.Context) (*queue.DLQStats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return &queue.DLQStats{QueueSize: int64(len(d.failed))}, nil
}

type fakeOutbox struct {
	stats *queue.QueueStats
	err   error
	dlq   *fakeDLQ
}

func (o *fakeOutbox) GetQueueStats(ctx context.Context) (*queue.QueueStats, error) {
	return o.stats, o.err
}

func (o *fakeOutbox) DLQ() queue.DLQHandler {
	if o.dlq == nil {
		return nil
	}
	return o.dlq
}

func newFakeOutbox() *fakeOutbox {
	failedAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	return &fakeOutbox{
		stats: &queue.QueueStats{MainQueue: 3, DelayedQueue: 1},
		dlq: &fakeDLQ{failed: []*queue.FailedTask{
			{Task: &queue.Task{ID: "t-2", Type: queue.TaskTypeSendSMS}, Error: "gateway 400", FailedAt: failedAt, Attempts: 1},
			{Task: &queue.Task{ID: "t-1", Type: queue.TaskTypeSendEmail}, Error: "550 mailbox unavailable", FailedAt: failedAt.Add(-time.Hour), Attempts: 4},
		}},
	}
}

// TestOutboxStats тестирует статистику очереди писем
func TestOutboxStats(t *testing.T) {
	t.Run("admin sees queue and dead letters", func(t *testing.T) {
		api := newTestAPI(t, RouterConfig{Outbox: newFakeOutbox()})

		w, body := api.do(t, http.MethodGet, "/api/v1/outbox/stats", 1, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		data := body["data"].(map[string]interface{})
		assert.Equal(t, float64(3), data["queue"].(map[string]interface{})["main_queue"])
		assert.Equal(t, float64(2), data["dlq"].(map[string]interface{})["queue_size"])
	})

	t.Run("customers are turned away", func(t *testing.T) {
		api := newTestAPI(t, RouterConfig{Outbox: newFakeOutbox()})
		w, _ := api.do(t, http.MethodGet, "/api/v1/outbox/stats", 10, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("queue unreachable", func(t *testing.T) {
		outbox := newFakeOutbox()
		outbox.err = errors.New("connection refused")
		api := newTestAPI(t, RouterConfig{Outbox: outbox})

		w, _ := api.do(t, http.MethodGet, "/api/v1/outbox/stats", 1, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("routes are absent without an outbox", func(t *testing.T) {
		api := newTestAPI(t, RouterConfig{})
		req := httptest.NewRequest(http.MethodGet, "/api/v1/outbox/stats", nil)
		req.Header.Set("X-User-ID", "1")
		w := httptest.NewRecorder()
		api.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestOutboxFailedTasks(t *testing.T) {
	outbox := newFakeOutbox()
	api := newTestAPI(t, RouterConfig{Outbox: outbox})

	w, body := api.do(t, http.MethodGet, "/api/v1/outbox/failed?limit=1", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, outbox.dlq.lastLimit)
	assert.Equal(t, float64(1), body["meta"].(map[string]interface{})["total"])
	first := body["data"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "gateway 400", first["error"])

	w, _ = api.do(t, http.MethodGet, "/api/v1/outbox/failed?limit=zero", 1, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = api.do(t, http.MethodGet, "/api/v1/outbox/failed", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 50, outbox.dlq.lastLimit)

	noDLQ := newTestAPI(t, RouterConfig{Outbox: &fakeOutbox{stats: &queue.QueueStats{}}})
	w, _ = noDLQ.do(t, http.MethodGet, "/api/v1/outbox/failed", 1, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = noDLQ.do(t, http.MethodGet, "/api/v1/outbox/stats", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, body["data"].(map[string]interface{}), "dlq")
}

// TestOutboxRequeue тестирует возврат письма из DLQ в очередь
func TestOutboxRequeue(t *testing.T) {
	outbox := newFakeOutbox()
	api := newTestAPI(t, RouterConfig{Outbox: outbox})

	w, _ := api.do(t, http.MethodPost, "/api/v1/outbox/failed/t-1/requeue", 1, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"t-1"}, outbox.dlq.requeued)
	assert.Len(t, outbox.dlq.failed, 1)

	w, _ = api.do(t, http.MethodPost, "/api/v1/outbox/failed/t-1/requeue", 1, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = api.do(t, http.MethodPost, "/api/v1/outbox/failed/t-2/requeue", 101, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

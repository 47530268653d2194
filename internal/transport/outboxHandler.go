package transport

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/ds124wfegd/interpreter-booking/pkg/queue"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Outbox is the correspondence queue as seen by operators.
type Outbox interface {
	GetQueueStats(ctx context.Context) (*queue.QueueStats, error)
	DLQ() queue.DLQHandler
}

type OutboxHandler struct {
	outbox Outbox
	logger logrus.FieldLogger
}

func NewOutboxHandler(outbox Outbox, logger logrus.FieldLogger) *OutboxHandler {
	return &OutboxHandler{outbox: outbox, logger: logger.WithField("component", "outbox_handler")}
}

// Stats returns queue sizes and, when the DLQ is on, dead letter stats
func (h *OutboxHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := h.outbox.GetQueueStats(ctx)
	if err != nil {
		h.logger.Errorf("Failed to get outbox stats: %v", err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "outbox unavailable"})
		return
	}

	data := gin.H{"queue": stats}
	if dlq := h.outbox.DLQ(); dlq != nil {
		dlqStats, err := dlq.GetDLQStats(ctx)
		if err != nil {
			h.logger.Errorf("Failed to get DLQ stats: %v", err)
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "outbox unavailable"})
			return
		}
		data["dlq"] = dlqStats
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Outbox stats retrieved successfully", Data: data})
}

// FailedTasks lists deliveries that ran out of retries, newest first
func (h *OutboxHandler) FailedTasks(c *gin.Context) {
	dlq := h.outbox.DLQ()
	if dlq == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "dead letter queue is disabled"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	failed, err := dlq.GetFailedTasks(c.Request.Context(), limit)
	if err != nil {
		h.logger.Errorf("Failed to list DLQ: %v", err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "outbox unavailable"})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Failed tasks retrieved successfully",
		Data:    failed,
		Meta:    gin.H{"total": len(failed)},
	})
}

// Requeue puts one dead letter back on the main queue
func (h *OutboxHandler) Requeue(c *gin.Context) {
	dlq := h.outbox.DLQ()
	if dlq == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "dead letter queue is disabled"})
		return
	}

	taskID := c.Param("task_id")
	if err := dlq.RequeueFailedTask(c.Request.Context(), taskID); err != nil {
		if errors.Is(err, queue.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
			return
		}
		h.logger.WithField("task_id", taskID).Errorf("Failed to requeue task: %v", err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "outbox unavailable"})
		return
	}

	h.logger.WithField("task_id", taskID).Info("Task requeued by admin")
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Task requeued"})
}

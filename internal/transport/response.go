package transport

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SuccessResponse представляет успешный ответ
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Field   string `json:"field_name,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, logger logrus.FieldLogger, err error) {
	var (
		validation *entity.ValidationError
		conflict   *entity.ConflictError
	)

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: validation.Message, Field: validation.Field})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: conflict.Message, Reason: string(conflict.Reason)})
	case entity.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, entity.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error()})
	case errors.Is(err, entity.ErrLockBusy), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "booking is busy, try again"})
	default:
		logger.WithField("path", c.FullPath()).Errorf("Request failed: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

// writeOutcome answers 200 for applied and noop outcomes, 409 for rejected ones.
func writeOutcome(c *gin.Context, out *entity.Outcome, data interface{}) {
	if out.Status == entity.OutcomeRejected {
		c.JSON(http.StatusConflict, SuccessResponse{Success: false, Message: out.Message, Data: data})
		return
	}

	message := string(out.Status)
	if out.Message != "" {
		message = out.Message
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: message, Data: data})
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + name})
		return 0, false
	}
	return id, true
}

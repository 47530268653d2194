package transport

import (
	"context"
	"net/http"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"
	"github.com/ds124wfegd/interpreter-booking/internal/service"
	"github.com/ds124wfegd/interpreter-booking/internal/transport/middleware"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type BookingHandler struct {
	bookingService service.BookingService
	logger         logrus.FieldLogger
}

func NewBookingHandler(bookingService service.BookingService, logger logrus.FieldLogger) *BookingHandler {
	return &BookingHandler{bookingService: bookingService, logger: logger.WithField("component", "booking_handler")}
}

func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	result, err := h.bookingService.CreateBooking(c.Request.Context(), middleware.CurrentActor(c), &req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{Success: true, Message: "Booking created", Data: result})
}

func (h *BookingHandler) SubmitContact(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req service.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	out, err := h.bookingService.SubmitContact(c.Request.Context(), id, &req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	writeOutcome(c, out, out)
}

func (h *BookingHandler) GetBooking(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookingService.GetBooking(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	// Клиент видит только свои бронирования
	actor := middleware.CurrentActor(c)
	if actor.Role == entity.RoleCustomer && booking.CustomerID != actor.ID {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Booking retrieved successfully", Data: booking})
}

// GetUserBookings returns the bookings of one customer
func (h *BookingHandler) GetUserBookings(c *gin.Context) {
	userID, ok := parseID(c, "id")
	if !ok {
		return
	}
	actor := middleware.CurrentActor(c)
	if !actor.IsAdmin() && actor.ID != userID {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
		return
	}

	bookings, err := h.bookingService.GetCustomerBookings(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Bookings retrieved successfully",
		Data:    bookings,
		Meta:    gin.H{"total": len(bookings)},
	})
}

func (h *BookingHandler) UpdateBooking(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	out, err := h.bookingService.UpdateBooking(c.Request.Context(), id, middleware.CurrentActor(c), &req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	writeOutcome(c, &out.Outcome, out)
}

func (h *BookingHandler) AcceptBooking(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	out, err := h.bookingService.AcceptBooking(c.Request.Context(), id, middleware.CurrentActor(c).ID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	writeOutcome(c, &out.Outcome, out)
}

func (h *BookingHandler) CancelBooking(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	out, err := h.bookingService.CancelBooking(c.Request.Context(), id, middleware.CurrentActor(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	writeOutcome(c, &out.Outcome, out)
}

func (h *BookingHandler) EndSession(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	out, err := h.bookingService.EndSession(c.Request.Context(), id, middleware.CurrentActor(c).ID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	writeOutcome(c, &out.Outcome, out)
}

func (h *BookingHandler) CustomerNoShow(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	out, err := h.bookingService.CustomerNoShow(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	writeOutcome(c, &out.Outcome, out)
}

func (h *BookingHandler) ReopenBooking(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	out, err := h.bookingService.ReopenBooking(c.Request.Context(), id, middleware.CurrentActor(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	writeOutcome(c, out, out)
}

func (h *BookingHandler) UpdateDistanceFeed(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req service.DistanceFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	out, err := h.bookingService.UpdateDistanceFeed(c.Request.Context(), id, middleware.CurrentActor(c), &req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	writeOutcome(c, out, out)
}

func (h *BookingHandler) IgnoreExpiring(c *gin.Context) {
	h.flagOp(c, h.bookingService.IgnoreExpiring)
}

func (h *BookingHandler) IgnoreExpired(c *gin.Context) {
	h.flagOp(c, h.bookingService.IgnoreExpired)
}

func (h *BookingHandler) ResendPush(c *gin.Context) {
	h.flagOp(c, h.bookingService.ResendPush)
}

func (h *BookingHandler) ResendSMS(c *gin.Context) {
	h.flagOp(c, h.bookingService.ResendSMS)
}

// PotentialInterpreters lists interpreters allowed to take a booking
func (h *BookingHandler) PotentialInterpreters(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	interpreters, err := h.bookingService.PotentialInterpreters(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Potential interpreters retrieved successfully",
		Data:    interpreters,
		Meta:    gin.H{"total": len(interpreters)},
	})
}

// PotentialBookings lists pending bookings an interpreter may accept
func (h *BookingHandler) PotentialBookings(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	actor := middleware.CurrentActor(c)
	if !actor.IsAdmin() && actor.ID != id {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
		return
	}

	bookings, err := h.bookingService.PotentialBookings(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Potential bookings retrieved successfully",
		Data:    bookings,
		Meta:    gin.H{"total": len(bookings)},
	})
}

type outcomeOp func(ctx context.Context, bookingID int64) (*entity.Outcome, error)

func (h *BookingHandler) flagOp(c *gin.Context, op outcomeOp) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	out, err := op(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	writeOutcome(c, out, out)
}

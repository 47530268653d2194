package worker

import (
	"context"
	"time"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"

	"github.com/sirupsen/logrus"
)

// Expirer is the slice of the booking service the sweep needs.
type Expirer interface {
	GetExpiredBookings(ctx context.Context, before time.Time) ([]*entity.ExpiredBooking, error)
	ExpireBooking(ctx context.Context, bookingID int64) (*entity.Outcome, error)
}

// BookingExpiryWorker periodically times out pending bookings nobody accepted.
type BookingExpiryWorker struct {
	bookings  Expirer
	interval  time.Duration
	batchSize int
	now       func() time.Time
	logger    logrus.FieldLogger
}

func NewBookingExpiryWorker(bookings Expirer, interval time.Duration, batchSize int, logger logrus.FieldLogger) *BookingExpiryWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &BookingExpiryWorker{
		bookings:  bookings,
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
		logger:    logger.WithField("component", "expiry_worker"),
	}
}

func (w *BookingExpiryWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.WithField("interval", w.interval.String()).Info("Booking expiry worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Booking expiry worker stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// SweepStats summarizes one pass.
type SweepStats struct {
	Found   int
	Expired int
	Skipped int
	Failed  int
}

// Sweep выполняет один проход по просроченным бронированиям
func (w *BookingExpiryWorker) Sweep(ctx context.Context) SweepStats {
	var stats SweepStats

	expired, err := w.bookings.GetExpiredBookings(ctx, w.now())
	if err != nil {
		w.logger.Errorf("Failed to get expired bookings: %v", err)
		return stats
	}
	if w.batchSize > 0 && len(expired) > w.batchSize {
		expired = expired[:w.batchSize]
	}
	stats.Found = len(expired)
	if stats.Found == 0 {
		w.logger.Debug("No expired bookings found")
		return stats
	}

	for _, e := range expired {
		// Проверяем, не был ли контекст отменен во время обработки
		if ctx.Err() != nil {
			w.logger.Info("Expiry sweep interrupted by context cancellation")
			return stats
		}

		out, err := w.bookings.ExpireBooking(ctx, e.BookingID)
		if err != nil {
			w.logger.WithField("booking_id", e.BookingID).Errorf("Failed to expire booking: %v", err)
			stats.Failed++
			continue
		}
		if !out.Applied() {
			// Уже принят или отменен
			stats.Skipped++
			continue
		}
		if len(out.Failures) > 0 {
			w.logger.WithFields(logrus.Fields{
				"booking_id": e.BookingID,
				"failures":   out.Failures,
			}).Warn("Booking expired but the customer was not notified")
		}
		stats.Expired++
	}

	w.logger.WithFields(logrus.Fields{
		"found":   stats.Found,
		"expired": stats.Expired,
		"skipped": stats.Skipped,
		"failed":  stats.Failed,
	}).Info("Expiry sweep completed")
	return stats
}

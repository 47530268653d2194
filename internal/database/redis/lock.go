package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultLockTTL   = 30 * time.Second
	defaultLockRetry = 50 * time.Millisecond
)

// Удаляем ключ только если он все еще наш
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// BookingLocker is a per booking mutex shared by every instance of the service.
type BookingLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
	logger logrus.FieldLogger
}

func NewBookingLocker(client *redis.Client, ttl, retry time.Duration, logger logrus.FieldLogger) *BookingLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if retry <= 0 {
		retry = defaultLockRetry
	}
	return &BookingLocker{
		client: client,
		prefix: "interpreter_booking:lock:booking:",
		ttl:    ttl,
		retry:  retry,
		logger: logger.WithField("component", "booking_lock"),
	}
}

// Lock blocks until the booking key is acquired or ctx ends.
// The key expires after ttl so a crashed holder cannot wedge a booking.
func (l *BookingLocker) Lock(ctx context.Context, bookingID int64) (func(), error) {
	key := fmt.Sprintf("%s%d", l.prefix, bookingID)
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
		if ok {
			return l.unlocker(key, token), nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, entity.ErrLockBusy
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *BookingLocker) unlocker(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, token) })
	}
}

func (l *BookingLocker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		l.logger.WithField("key", key).Errorf("Failed to release lock: %v", err)
	}
}

package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"
	"github.com/ds124wfegd/interpreter-booking/internal/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReopenBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("terminal booking is copied", func(t *testing.T) {
		h := newHarness(t)
		b := h.booking(entity.BookingStatusCompleted, 48*time.Hour)

		out, err := h.svc.ReopenBooking(ctx, b.ID, h.admin)
		require.NoError(t, err)
		require.NotEqual(t, b.ID, out.BookingID)

		fresh := h.reload(t, out.BookingID)
		assert.Equal(t, entity.BookingStatusPending, fresh.Status)
		assert.Equal(t, b.Due, fresh.Due)
		assert.Equal(t, "This booking is a reopening of booking #1", fresh.AdminComments)
		require.NotNil(t, fresh.WillExpireAt)
		assert.Equal(t, h.now.Add(16*time.Hour), *fresh.WillExpireAt)

		assert.Equal(t, entity.BookingStatusCompleted, h.reload(t, b.ID).Status)
		assert.Len(t, h.push.byKind(notification.KindSuitableJob), 1)
		assert.Equal(t, []entity.BookingEventType{entity.EventBookingReopened}, h.events.types())
	})

	t.Run("live booking is reopened in place", func(t *testing.T) {
		h := newHarness(t)
		b := h.booking(entity.BookingStatusAssigned, 48*time.Hour)
		h.assign(b.ID, annaID)

		out, err := h.svc.ReopenBooking(ctx, b.ID, h.admin)
		require.NoError(t, err)
		assert.Equal(t, b.ID, out.BookingID)
		assert.Equal(t, []entity.Delta{
			{Kind: entity.DeltaTranslator, Old: "101"},
			{Kind: entity.DeltaStatus, Old: "assigned", New: "pending"},
		}, out.Deltas)

		stored := h.reload(t, b.ID)
		assert.Equal(t, entity.BookingStatusPending, stored.Status)
		assert.Equal(t, h.now, stored.CreatedAt)
		assert.Equal(t, 0, h.store.ActiveAssignments(b.ID))
	})

	t.Run("admins only", func(t *testing.T) {
		h := newHarness(t)
		b := h.booking(entity.BookingStatusTimedOut, 48*time.Hour)

		_, err := h.svc.ReopenBooking(ctx, b.ID, h.owner)
		assert.ErrorIs(t, err, entity.ErrForbidden)
	})
}

func TestUpdateDistanceFeed(t *testing.T) {
	ctx := context.Background()

	t.Run("flag needs a comment", func(t *testing.T) {
		h := newHarness(t)
		b := h.booking(entity.BookingStatusCompleted, -48*time.Hour)

		_, err := h.svc.UpdateDistanceFeed(ctx, b.ID, h.admin, &DistanceFeedRequest{Flagged: true})
		var verr *entity.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "admincomment", verr.Field)
	})

	t.Run("stores distance and flags", func(t *testing.T) {
		h := newHarness(t)
		b := h.booking(entity.BookingStatusCompleted, -48*time.Hour)

		out, err := h.svc.UpdateDistanceFeed(ctx, b.ID, h.admin, &DistanceFeedRequest{
			Distance:        "12 km",
			Time:            "20 min",
			AdminComment:    "parking paid",
			Flagged:         true,
			ManuallyHandled: true,
		})
		require.NoError(t, err)
		assert.Equal(t, []entity.Delta{{Kind: entity.DeltaComment, New: "parking paid"}}, out.Deltas)

		distance, err := h.store.Bookings().GetDistance(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, "12 km", distance.Distance)
		assert.Equal(t, "20 min", distance.Time)

		stored := h.reload(t, b.ID)
		assert.True(t, stored.Flagged)
		assert.True(t, stored.ManuallyHandled)
		assert.False(t, stored.ByAdmin)
		assert.Len(t, h.audit.all(), 1)
	})

	t.Run("admins only", func(t *testing.T) {
		h := newHarness(t)
		b := h.booking(entity.BookingStatusCompleted, -48*time.Hour)

		_, err := h.svc.UpdateDistanceFeed(ctx, b.ID, h.owner, &DistanceFeedRequest{})
		assert.ErrorIs(t, err, entity.ErrForbidden)
	})
}

func TestIgnoreFlags(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	b := h.booking(entity.BookingStatusPending, time.Hour)

	_, err := h.svc.IgnoreExpiring(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, h.reload(t, b.ID).IgnoreExpiring)

	_, err = h.svc.IgnoreExpired(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, h.reload(t, b.ID).IgnoreExpired)

	_, err = h.svc.IgnoreExpired(ctx, 404)
	assert.ErrorIs(t, err, entity.ErrBookingNotFound)
}

func TestResend(t *testing.T) {
	ctx := context.Background()

	t.Run("push goes to every eligible interpreter", func(t *testing.T) {
		h := newHarness(t)
		b := h.booking(entity.BookingStatusPending, 48*time.Hour)

		out, err := h.svc.ResendPush(ctx, b.ID)
		require.NoError(t, err)
		assert.Empty(t, out.Failures)

		offers := h.push.byKind(notification.KindSuitableJob)
		require.Len(t, offers, 1)
		assert.ElementsMatch(t, []string{"anna@example.com", "bertil@example.com"}, tagValues(offers[0].Tags))
	})

	t.Run("sms skips interpreters without a phone", func(t *testing.T) {
		h := newHarness(t)
		b := h.booking(entity.BookingStatusPending, 48*time.Hour)

		out, err := h.svc.ResendSMS(ctx, b.ID)
		require.NoError(t, err)
		assert.Empty(t, out.Failures)

		require.Len(t, h.sms.msgs, 1)
		msg := h.sms.msgs[0]
		assert.Equal(t, "+46700000001", msg.To)
		assert.True(t, strings.Contains(msg.Body, "Swedish"))
		assert.True(t, strings.Contains(msg.Body, "by phone"))
		assert.True(t, strings.HasSuffix(msg.Body, "Booking #1"))
	})
}

func TestSMSText(t *testing.T) {
	b := &entity.Booking{
		ID:           9,
		Due:          time.Date(2026, 3, 12, 8, 15, 0, 0, time.UTC),
		Duration:     90,
		PhysicalType: true,
		Town:         "Lund",
	}
	loc := time.FixedZone("CET", 3600)
	assert.Equal(t,
		"New booking: Arabic interpretation on 2026-03-12 at 09:15, 90 min, on site in Lund. Booking #9",
		smsText(b, "Arabic", loc))
}

// TestExpireBooking тестирует истечение срока ожидания бронирования
func TestExpireBooking(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	expiring := h.booking(entity.BookingStatusPending, 30*time.Minute)
	expiresAt := h.now.Add(-time.Minute)
	expiring.WillExpireAt = &expiresAt
	h.store.PutBooking(expiring)

	ignored := h.booking(entity.BookingStatusPending, 30*time.Minute)
	ignored.WillExpireAt = &expiresAt
	ignored.IgnoreExpired = true
	h.store.PutBooking(ignored)

	found, err := h.svc.GetExpiredBookings(ctx, h.now)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, expiring.ID, found[0].BookingID)

	out, err := h.svc.ExpireBooking(ctx, expiring.ID)
	require.NoError(t, err)
	assert.True(t, out.Applied())
	assert.Equal(t, entity.BookingStatusTimedOut, h.reload(t, expiring.ID).Status)

	entries := h.audit.all()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(0), entries[0].actorID)
	assert.Equal(t, systemActor, entries[0].label)

	expired := h.push.byKind(notification.KindJobExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, []string{"customer@example.com"}, tagValues(expired[0].Tags))

	again, err := h.svc.ExpireBooking(ctx, expiring.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeNoop, again.Status)
	assert.Len(t, h.push.byKind(notification.KindJobExpired), 1)
}

package eligibility

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ds124wfegd/interpreter-booking/internal/database/memory"
	"github.com/ds124wfegd/interpreter-booking/internal/entity"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.AddCustomer(&entity.User{ID: 10, Email: "customer@example.com", Active: true},
		&entity.CustomerProfile{ConsumerType: entity.ConsumerPaid, City: "Stockholm"})
	store.AddCustomer(&entity.User{ID: 11, Email: "other@example.com", Active: true},
		&entity.CustomerProfile{ConsumerType: entity.ConsumerPaid, City: "Malmo"})

	for _, p := range []*entity.InterpreterProfile{
		{UserID: 103, Email: "c@example.com", Tier: entity.TierProfessional, Languages: []int64{7}, Town: "Malmo"},
		{UserID: 101, Email: "a@example.com", Tier: entity.TierProfessional, Languages: []int64{7}, Town: "Stockholm"},
		{UserID: 102, Email: "b@example.com", Tier: entity.TierProfessional, Languages: []int64{8}, Town: "Stockholm"},
		{UserID: 104, Email: "d@example.com", Tier: entity.TierVolunteer, Languages: []int64{7}, Town: "Stockholm"},
	} {
		store.AddInterpreter(p)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewEngine(store.Users(), store.Bookings(), logger), store
}

func TestEngine_EligibleInterpreters(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	booking := &entity.Booking{ID: 1, CustomerID: 10, FromLanguageID: 7, JobType: entity.JobTypePaid, PhoneType: true}

	t.Run("ordered by user id", func(t *testing.T) {
		got, err := engine.EligibleInterpreters(ctx, booking)
		require.NoError(t, err)
		assert.Equal(t, []int64{101, 103}, userIDs(got))
	})

	t.Run("physical booking uses the customer city", func(t *testing.T) {
		physical := *booking
		physical.PhoneType = false
		physical.PhysicalType = true

		got, err := engine.EligibleInterpreters(ctx, &physical)
		require.NoError(t, err)
		assert.Equal(t, []int64{101}, userIDs(got))
	})

	t.Run("booking town wins over the customer city", func(t *testing.T) {
		physical := *booking
		physical.PhoneType = false
		physical.PhysicalType = true
		physical.Town = "Malmo"

		got, err := engine.EligibleInterpreters(ctx, &physical)
		require.NoError(t, err)
		assert.Equal(t, []int64{103}, userIDs(got))
	})

	t.Run("blacklist is honoured", func(t *testing.T) {
		store.AddBlacklist(10, 101)
		got, err := engine.EligibleInterpreters(ctx, booking)
		require.NoError(t, err)
		assert.Equal(t, []int64{103}, userIDs(got))
	})
}

func TestEngine_EligibleBookings(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	store.PutBooking(&entity.Booking{ID: 1, CustomerID: 10, FromLanguageID: 7, JobType: entity.JobTypePaid, PhoneType: true,
		Status: entity.BookingStatusPending, Due: now.Add(48 * time.Hour)})
	store.PutBooking(&entity.Booking{ID: 2, CustomerID: 11, FromLanguageID: 7, JobType: entity.JobTypePaid, PhoneType: true,
		Status: entity.BookingStatusPending, Due: now.Add(24 * time.Hour)})
	store.PutBooking(&entity.Booking{ID: 3, CustomerID: 10, FromLanguageID: 7, JobType: entity.JobTypePaid, PhoneType: true,
		Status: entity.BookingStatusAssigned, Due: now.Add(time.Hour)})
	store.PutBooking(&entity.Booking{ID: 4, CustomerID: 11, FromLanguageID: 7, JobType: entity.JobTypePaid, PhysicalType: true,
		Status: entity.BookingStatusPending, Due: now.Add(2 * time.Hour)})
	store.AddBlacklist(11, 103)

	t.Run("pending matches ordered by due", func(t *testing.T) {
		got, err := engine.EligibleBookings(ctx, 101)
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 1}, bookingIDs(got))
	})

	t.Run("each customer rules apply", func(t *testing.T) {
		got, err := engine.EligibleBookings(ctx, 103)
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, bookingIDs(got))
	})

	t.Run("unknown interpreter", func(t *testing.T) {
		_, err := engine.EligibleBookings(ctx, 999)
		assert.True(t, errors.Is(err, entity.ErrInterpreterNotFound))
	})
}

// TestEngine_Symmetry проверяет, что оба направления подбора согласованы
func TestEngine_Symmetry(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	due := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)

	bookings := []*entity.Booking{
		{ID: 1, CustomerID: 10, FromLanguageID: 7, JobType: entity.JobTypePaid, PhoneType: true, Status: entity.BookingStatusPending, Due: due},
		{ID: 2, CustomerID: 10, FromLanguageID: 8, JobType: entity.JobTypePaid, PhysicalType: true, Status: entity.BookingStatusPending, Due: due},
		{ID: 3, CustomerID: 11, FromLanguageID: 7, JobType: entity.JobTypeUnpaid, PhoneType: true, Status: entity.BookingStatusPending, Due: due},
	}
	for _, b := range bookings {
		store.PutBooking(b)
	}

	for _, b := range bookings {
		interpreters, err := engine.EligibleInterpreters(ctx, b)
		require.NoError(t, err)
		for _, p := range interpreters {
			visible, err := engine.EligibleBookings(ctx, p.UserID)
			require.NoError(t, err)
			assert.Contains(t, bookingIDs(visible), b.ID, "interpreter %d should see booking %d", p.UserID, b.ID)
		}
	}
}

func userIDs(ps []*entity.InterpreterProfile) []int64 {
	ids := make([]int64, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.UserID)
	}
	return ids
}

func bookingIDs(bs []*entity.Booking) []int64 {
	ids := make([]int64, 0, len(bs))
	for _, b := range bs {
		ids = append(ids, b.ID)
	}
	return ids
}

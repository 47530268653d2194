package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"
	"github.com/ds124wfegd/interpreter-booking/internal/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUpdateBooking_DueChange тестирует перенос времени без смены статуса
func TestUpdateBooking_DueChange(t *testing.T) {
	h := newHarness(t)
	b := h.booking(entity.BookingStatusAssigned, 48*time.Hour)
	h.assign(b.ID, annaID)

	out, err := h.svc.UpdateBooking(context.Background(), b.ID, h.admin, &UpdateBookingRequest{
		Due: &entity.DueTime{Time: h.now.Add(72 * time.Hour)},
	})
	require.NoError(t, err)

	assert.True(t, out.Applied())
	assert.Nil(t, out.Transition)
	assert.False(t, out.TranslatorChanged)
	assert.Equal(t, []entity.Delta{{Kind: entity.DeltaDue, Old: "2026-03-12 10:00", New: "2026-03-13 10:00"}}, out.Deltas)
	assert.Empty(t, out.Failures)

	assert.Equal(t, []string{
		tplChangedDate + " -> customer@example.com",
		tplChangedDate + " -> anna@example.com",
	}, h.mail.addressed())
	assert.Empty(t, h.push.kinds())

	stored := h.reload(t, b.ID)
	assert.Equal(t, h.now.Add(72*time.Hour), stored.Due)
	assert.Equal(t, entity.BookingStatusAssigned, stored.Status)

	entries := h.audit.all()
	require.Len(t, entries, 1)
	assert.Equal(t, adminID, entries[0].actorID)
	assert.Equal(t, "Admin", entries[0].label)
	assert.Len(t, entries[0].deltas, 1)
}

func TestUpdateBooking_Transitions(t *testing.T) {
	ctx := context.Background()

	t.Run("rejected status alone is reported as rejected", func(t *testing.T) {
		h := newHarness(t)
		b := h.booking(entity.BookingStatusPending, 48*time.Hour)

		out, err := h.svc.UpdateBooking(ctx, b.ID, h.admin, &UpdateBookingRequest{Status: string(entity.BookingStatusCompleted)})
		require.NoError(t, err)

		assert.Equal(t, entity.OutcomeRejected, out.Status)
		assert.Equal(t, reasonNotAllowed, out.Message)
		require.NotNil(t, out.Transition)
		assert.False(t, out.Transition.Accepted)
		assert.Equal(t, entity.BookingStatusPending, h.reload(t, b.ID).Status)
		assert.Empty(t, h.audit.all())
		assert.Empty(t, h.mail.sent())
	})

	t.Run("other fields are kept when the status is rejected", func(t *testing.T) {
		h := newHarness(t)
		b := h.booking(entity.BookingStatusPending, 48*time.Hour)

		out, err := h.svc.UpdateBooking(ctx, b.ID, h.admin, &UpdateBookingRequest{
			Status:    string(entity.BookingStatusTimedOut),
			Reference: strptr("REF-42"),
		})
		require.NoError(t, err)

		assert.True(t, out.Applied())
		require.NotNil(t, out.Transition)
		assert.False(t, out.Transition.Accepted)
		assert.Equal(t, reasonNeedsComment, out.Transition.Reason)

		stored := h.reload(t, b.ID)
		assert.Equal(t, entity.BookingStatusPending, stored.Status)
		assert.Equal(t, "REF-42", stored.Reference)
	})

	t.Run("assigning a translator by email", func(t *testing.T) {
		h := newHarness(t)
		b := h.booking(entity.BookingStatusPending, 48*time.Hour)

		out, err := h.svc.UpdateBooking(ctx, b.ID, h.admin, &UpdateBookingRequest{
			Status:          string(entity.BookingStatusAssigned),
			TranslatorEmail: "bertil@example.com",
			AdminComments:   strptr("booked by phone"),
		})
		require.NoError(t, err)

		assert.True(t, out.Applied())
		assert.True(t, out.TranslatorChanged)
		require.NotNil(t, out.Transition)
		assert.True(t, out.Transition.Accepted)

		active, err := h.svc.ledger.Active(ctx, b.ID)
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, bertilID, active.InterpreterID)
		assert.Equal(t, 1, h.store.ActiveAssignments(b.ID))
		assert.Equal(t, entity.BookingStatusAssigned, h.reload(t, b.ID).Status)

		assert.Equal(t, []string{
			tplChangedTranslatorCust + " -> customer@example.com",
			tplChangedTranslatorNew + " -> bertil@example.com",
			tplJobAccepted + " -> customer@example.com",
			tplJobAssignedInterpreter + " -> bertil@example.com",
		}, h.mail.addressed())

		reminders := h.push.byKind(notification.KindSessionStartRemind)
		require.Len(t, reminders, 1)
		assert.ElementsMatch(t, []string{"customer@example.com", "bertil@example.com"}, tagValues(reminders[0].Tags))
		require.NotNil(t, reminders[0].SendAfter)
		assert.Equal(t, b.Due.Add(-time.Hour), *reminders[0].SendAfter)
	})

	t.Run("withdrawing an assigned booking releases the interpreter", func(t *testing.T) {
		h := newHarness(t)
		b := h.booking(entity.BookingStatusAssigned, 48*time.Hour)
		h.assign(b.ID, annaID)

		out, err := h.svc.UpdateBooking(ctx, b.ID, h.admin, &UpdateBookingRequest{
			Status:        string(entity.BookingStatusWithdrawnAfter24),
			AdminComments: strptr("customer phoned"),
		})
		require.NoError(t, err)
		assert.True(t, out.Applied())

		stored := h.reload(t, b.ID)
		assert.Equal(t, entity.BookingStatusWithdrawnAfter24, stored.Status)
		require.NotNil(t, stored.WithdrawAt)
		assert.Equal(t, 0, h.store.ActiveAssignments(b.ID))

		assert.Equal(t, []string{
			tplJobWithdrawn + " -> customer@example.com",
			tplJobCancelInterpreter + " -> anna@example.com",
		}, h.mail.addressed())
	})

	t.Run("completing a started session closes the assignment", func(t *testing.T) {
		h := newHarness(t)
		b := h.booking(entity.BookingStatusStarted, -30*time.Minute)
		h.assign(b.ID, annaID)

		out, err := h.svc.UpdateBooking(ctx, b.ID, h.admin, &UpdateBookingRequest{
			Status:        string(entity.BookingStatusCompleted),
			AdminComments: strptr("interpreter forgot to end"),
			SessionTime:   "01:05:00",
		})
		require.NoError(t, err)
		assert.True(t, out.Applied())

		stored := h.reload(t, b.ID)
		assert.Equal(t, entity.BookingStatusCompleted, stored.Status)
		assert.Equal(t, "01:05:00", stored.SessionTime)

		history := h.history(t, b.ID)
		require.Len(t, history, 1)
		require.NotNil(t, history[0].CompletedAt)
		assert.Equal(t, adminID, *history[0].CompletedBy)

		assert.Equal(t, []string{
			tplSessionEnded + " -> customer@example.com",
			tplSessionEnded + " -> anna@example.com",
		}, h.mail.addressed())
	})
}

func TestUpdateBooking_Translator(t *testing.T) {
	ctx := context.Background()

	t.Run("reassignment supersedes the previous interpreter", func(t *testing.T) {
		h := newHarness(t)
		b := h.booking(entity.BookingStatusAssigned, 48*time.Hour)
		h.assign(b.ID, annaID)

		out, err := h.svc.UpdateBooking(ctx, b.ID, h.admin, &UpdateBookingRequest{TranslatorID: idptr(bertilID)})
		require.NoError(t, err)

		assert.True(t, out.TranslatorChanged)
		assert.Equal(t, []entity.Delta{{Kind: entity.DeltaTranslator, Old: "101", New: "102"}}, out.Deltas)

		history := h.history(t, b.ID)
		require.Len(t, history, 2)
		assert.Equal(t, annaID, history[0].InterpreterID)
		assert.NotNil(t, history[0].CancelAt)
		assert.Equal(t, bertilID, history[1].InterpreterID)
		assert.True(t, history[1].Active())

		assert.Equal(t, []string{
			tplChangedTranslatorCust + " -> customer@example.com",
			tplChangedTranslatorOld + " -> anna@example.com",
			tplChangedTranslatorNew + " -> bertil@example.com",
		}, h.mail.addressed())
	})

	t.Run("same interpreter is not a change", func(t *testing.T) {
		h := newHarness(t)
		b := h.booking(entity.BookingStatusAssigned, 48*time.Hour)
		h.assign(b.ID, annaID)

		out, err := h.svc.UpdateBooking(ctx, b.ID, h.admin, &UpdateBookingRequest{TranslatorID: idptr(annaID)})
		require.NoError(t, err)
		assert.Equal(t, entity.OutcomeNoop, out.Status)
		assert.Len(t, h.history(t, b.ID), 1)
	})

	t.Run("unknown email", func(t *testing.T) {
		h := newHarness(t)
		b := h.booking(entity.BookingStatusPending, 48*time.Hour)

		_, err := h.svc.UpdateBooking(ctx, b.ID, h.admin, &UpdateBookingRequest{TranslatorEmail: "nobody@example.com"})
		var verr *entity.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "translator_email", verr.Field)
	})

	t.Run("email of a customer", func(t *testing.T) {
		h := newHarness(t)
		b := h.booking(entity.BookingStatusPending, 48*time.Hour)

		_, err := h.svc.UpdateBooking(ctx, b.ID, h.admin, &UpdateBookingRequest{TranslatorEmail: "customer@example.com"})
		assert.ErrorIs(t, err, entity.ErrValidation)
	})

	t.Run("unknown id", func(t *testing.T) {
		h := newHarness(t)
		b := h.booking(entity.BookingStatusPending, 48*time.Hour)

		_, err := h.svc.UpdateBooking(ctx, b.ID, h.admin, &UpdateBookingRequest{TranslatorID: idptr(999)})
		var verr *entity.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "translator", verr.Field)
	})
}

func TestUpdateBooking_Misc(t *testing.T) {
	ctx := context.Background()

	t.Run("empty request is a noop", func(t *testing.T) {
		h := newHarness(t)
		b := h.booking(entity.BookingStatusPending, 48*time.Hour)

		out, err := h.svc.UpdateBooking(ctx, b.ID, h.admin, &UpdateBookingRequest{})
		require.NoError(t, err)
		assert.Equal(t, entity.OutcomeNoop, out.Status)
		assert.Empty(t, h.audit.all())
	})

	t.Run("changes to a past booking send no letters", func(t *testing.T) {
		h := newHarness(t)
		b := h.booking(entity.BookingStatusAssigned, -2*time.Hour)
		h.assign(b.ID, annaID)

		out, err := h.svc.UpdateBooking(ctx, b.ID, h.admin, &UpdateBookingRequest{FromLanguageID: idptr(8)})
		require.NoError(t, err)
		assert.True(t, out.Applied())
		assert.Equal(t, "#8", out.Deltas[0].New)
		assert.Empty(t, h.mail.sent())
	})

	t.Run("language change mails both parties", func(t *testing.T) {
		h := newHarness(t)
		b := h.booking(entity.BookingStatusAssigned, 48*time.Hour)
		h.assign(b.ID, annaID)

		_, err := h.svc.UpdateBooking(ctx, b.ID, h.admin, &UpdateBookingRequest{FromLanguageID: idptr(8)})
		require.NoError(t, err)

		letters := h.mail.sent()
		require.Len(t, letters, 2)
		assert.Equal(t, "Swedish", letters[0].Payload["old_language"])
		assert.Equal(t, tplChangedLanguage, letters[1].Template)
	})

	t.Run("mail failure does not undo the change", func(t *testing.T) {
		h := newHarness(t)
		h.mail.err = errors.New("smtp down")
		b := h.booking(entity.BookingStatusAssigned, 48*time.Hour)
		h.assign(b.ID, annaID)

		out, err := h.svc.UpdateBooking(ctx, b.ID, h.admin, &UpdateBookingRequest{
			Due: &entity.DueTime{Time: h.now.Add(50 * time.Hour)},
		})
		require.NoError(t, err)
		assert.True(t, out.SideEffectsFailed())
		assert.Len(t, out.Failures, 2)
		assert.Equal(t, h.now.Add(50*time.Hour), h.reload(t, b.ID).Due)
	})

	t.Run("missing booking", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.UpdateBooking(ctx, 404, h.admin, &UpdateBookingRequest{})
		assert.ErrorIs(t, err, entity.ErrBookingNotFound)
	})

	t.Run("nil actor", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.UpdateBooking(ctx, 1, nil, &UpdateBookingRequest{})
		assert.ErrorIs(t, err, entity.ErrForbidden)
	})
}

package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"
	"github.com/ds124wfegd/interpreter-booking/pkg/onesignal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOneSignalSender_Send(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notifications", r.URL.Path)
		assert.Equal(t, "Basic secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"n-1","recipients":2}`))
	}))
	defer server.Close()

	sender := NewOneSignalSender(onesignal.NewClient("app", "secret", server.URL, time.Second))
	after := time.Date(2026, 3, 11, 7, 0, 0, 0, testZone)
	booking := &entity.Booking{ID: 9, Due: at(12, 10, 0)}

	ack, err := sender.Send(context.Background(), &PushRequest{
		Tags:      EmailTags([]string{"a@example.com", "b@example.com"}),
		Data:      NewPayload(KindSuitableJob, booking, "Finnish"),
		Titles:    Text(pushTitle),
		Contents:  Text("New job"),
		Sound:     SelectSound(KindSuitableJob, false, Standard),
		SendAfter: &after,
	})

	require.NoError(t, err)
	assert.Equal(t, &DeliveryAck{ID: "n-1", Recipients: 2}, ack)
	assert.Equal(t, "app", got["app_id"])
	assert.Equal(t, "normal_booking", got["android_sound"])
	assert.Equal(t, "normal_booking.mp3", got["ios_sound"])
	assert.Equal(t, "2026-03-11 07:00:00 GMT+0100", got["send_after"])
	assert.Len(t, got["tags"], 3)
	data, ok := got["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "suitable_job", data["notification_type"])
	assert.Equal(t, float64(9), data["job_id"])
}

func TestOneSignalSender_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":["All included players are not subscribed"]}`))
	}))
	defer server.Close()

	sender := NewOneSignalSender(onesignal.NewClient("app", "secret", server.URL, time.Second))
	ack, err := sender.Send(context.Background(), &PushRequest{Tags: EmailTags([]string{"a@example.com"})})

	assert.Nil(t, ack)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not subscribed")
}

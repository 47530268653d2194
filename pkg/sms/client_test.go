package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClient_Send тестирует отправку SMS через шлюз
func TestClient_Send(t *testing.T) {
	var (
		path, auth, contentType string
		form                    map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		form = map[string]string{
			"from":    r.PostForm.Get("from"),
			"to":      r.PostForm.Get("to"),
			"message": r.PostForm.Get("message"),
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "key-1", "Bookings", time.Second)
	require.NoError(t, c.Send(context.Background(), "+46700000001", "New booking #7"))

	assert.Equal(t, "/messages", path)
	assert.Equal(t, "Bearer key-1", auth)
	assert.Equal(t, "application/x-www-form-urlencoded", contentType)
	assert.Equal(t, map[string]string{"from": "Bookings", "to": "+46700000001", "message": "New booking #7"}, form)
}

func TestClient_SendStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		permanent bool
	}{
		{name: "bad number", status: http.StatusBadRequest, permanent: true},
		{name: "rate limited", status: http.StatusTooManyRequests, permanent: false},
		{name: "gateway down", status: http.StatusBadGateway, permanent: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewClient(srv.URL, "", "Bookings", time.Second).Send(context.Background(), "+4670", "x")
			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.Code)
			assert.Equal(t, tt.permanent, IsPermanent(err))
		})
	}
}

func TestIsPermanent_OtherErrors(t *testing.T) {
	assert.False(t, IsPermanent(context.DeadlineExceeded))
	assert.False(t, IsPermanent(nil))
}

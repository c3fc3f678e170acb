package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormgate/auth-api/config"
	"github.com/stormgate/auth-api/internal/ports"
)

func TestSendPostsPayload(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c, err := NewClient(config.EmailConfig{IntegratorURL: srv.URL, AppName: "Storm Gate"})
	require.NoError(t, err)

	err = c.Send(context.Background(), ports.Email{
		To:       "a@b.com",
		Subject:  "Account approved",
		Template: "approval-result",
		Vars:     map[string]string{"name": "Ada"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Storm Gate", got.App)
	assert.Equal(t, "a@b.com", got.To)
	assert.Equal(t, "approval-result", got.Template)
	assert.Equal(t, "Ada", got.Vars["name"])
}

func TestSendRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(config.EmailConfig{IntegratorURL: srv.URL, RetryLimit: 2})
	require.NoError(t, err)

	require.NoError(t, c.Send(context.Background(), ports.Email{To: "a@b.com"}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendGivesUpAfterRetryLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewClient(config.EmailConfig{IntegratorURL: srv.URL, RetryLimit: 1})
	require.NoError(t, err)

	err = c.Send(context.Background(), ports.Email{To: "a@b.com"})
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSendHonorsContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewClient(config.EmailConfig{IntegratorURL: srv.URL, RetryLimit: 5})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = c.Send(ctx, ports.Email{To: "a@b.com"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient(config.EmailConfig{})
	assert.Error(t, err)
}

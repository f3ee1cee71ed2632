package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDeliveryClient_NotifyPaid(t *testing.T) {
	t.Run("posts release to the mail server", func(t *testing.T) {
		var gotPath, gotRequestID string
		var gotBody map[string]string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			gotPath = r.URL.EscapedPath()
			gotRequestID = r.Header.Get("X-Request-ID")
			json.NewDecoder(r.Body).Decode(&gotBody)
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		client := NewDeliveryClient(server.URL+"/", time.Second, zap.NewNop())

		err := client.NotifyPaid(context.Background(), "bob@example.com", "abc/123", "bob@example.com")
		require.NoError(t, err)
		assert.Equal(t, "/mailboxes/bob@example.com/mail/abc%2F123/paid", gotPath)
		assert.Len(t, gotRequestID, 36)
		assert.Equal(t, "bob@example.com", gotBody["recipient"])
		assert.Equal(t, "abc/123", gotBody["mailId"])
	})

	t.Run("non-2xx is a rejection", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := NewDeliveryClient(server.URL, time.Second, zap.NewNop())

		err := client.NotifyPaid(context.Background(), "bob@example.com", "m1", "bob@example.com")
		assert.True(t, errors.Is(err, ErrDeliveryRejected))
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("timeout is a failed notification", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		defer server.Close()
		defer close(release)

		client := NewDeliveryClient(server.URL, 20*time.Millisecond, zap.NewNop())

		err := client.NotifyPaid(context.Background(), "bob@example.com", "m1", "bob@example.com")
		assert.Error(t, err)
		assert.False(t, errors.Is(err, ErrDeliveryRejected))
	})
}

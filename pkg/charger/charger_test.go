package charger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cheapcharge/cheapcharge/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShelly(t *testing.T) {
	ctx := context.Background()

	t.Run("set on and off", func(t *testing.T) {
		var lastTurn string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/relay/0", r.URL.Path)
			lastTurn = r.URL.Query().Get("turn")
			if lastTurn == "on" {
				w.Write([]byte(`{"ison": true}`))
			} else {
				w.Write([]byte(`{"ison": false}`))
			}
		}))
		defer srv.Close()

		s := &Shelly{baseURL: srv.URL, client: common.HTTPClient(time.Second)}
		require.NoError(t, s.Validate())

		require.NoError(t, s.SetOn(ctx, true))
		assert.Equal(t, "on", lastTurn)

		require.NoError(t, s.SetOn(ctx, false))
		assert.Equal(t, "off", lastTurn)
	})

	t.Run("relay not switching is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// device reports off no matter what
			w.Write([]byte(`{"ison": false}`))
		}))
		defer srv.Close()

		s := &Shelly{baseURL: srv.URL, client: common.HTTPClient(time.Second)}
		err := s.SetOn(ctx, true)
		assert.Error(t, err)
	})

	t.Run("state", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/relay/0", r.URL.Path)
			assert.Empty(t, r.URL.Query().Get("turn"))
			w.Write([]byte(`{"ison": true}`))
		}))
		defer srv.Close()

		s := &Shelly{baseURL: srv.URL, client: common.HTTPClient(time.Second)}
		on, err := s.State(ctx)
		require.NoError(t, err)
		assert.True(t, on)
	})

	t.Run("info", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/shelly", r.URL.Path)
			w.Write([]byte(`{"type": "SHPLG-S", "fw": "20230913-112003", "mac": "A4CF12F40001"}`))
		}))
		defer srv.Close()

		s := &Shelly{baseURL: srv.URL, client: common.HTTPClient(time.Second)}
		info, err := s.Info(ctx)
		require.NoError(t, err)
		assert.Equal(t, "SHPLG-S", info.Model)
		assert.Equal(t, "20230913-112003", info.Firmware)
		assert.Equal(t, "A4CF12F40001", info.MAC)
	})

	t.Run("unreachable device", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		s := &Shelly{baseURL: srv.URL, client: common.HTTPClient(time.Second)}
		_, err := s.State(ctx)
		assert.Error(t, err)
	})

	t.Run("validate requires a url", func(t *testing.T) {
		s := &Shelly{}
		assert.Error(t, s.Validate())
	})
}

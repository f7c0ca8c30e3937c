package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dhcpdash/internal/config"
	"dhcpdash/internal/feed"
	"dhcpdash/internal/metrics"
)

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type views struct {
	devices *feed.DeviceSynchronizer
	pool    *feed.PoolSynchronizer
}

func (v views) DeviceView() feed.State[feed.DeviceTableView] { return v.devices.View() }
func (v views) PoolView() feed.State[feed.PoolView]          { return v.pool.View() }

func newViews() views {
	return views{
		devices: feed.NewDeviceSynchronizer(feed.WithClock(clock), feed.WithLocation(time.UTC)),
		pool:    feed.NewPoolSynchronizer(feed.WithClock(clock)),
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestDevicesAPIEmpty(t *testing.T) {
	srv := NewServer(config.DefaultConfig(), newViews(), nil)

	rr := get(t, srv.Handler(), "/api/devices")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

	var body struct {
		Empty bool `json:"empty"`
		Stale bool `json:"stale"`
		Data  struct {
			Rows []feed.DeviceRow `json:"rows"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Empty)
	assert.False(t, body.Stale)
	assert.NotNil(t, body.Data.Rows)
}

func TestDevicesAPISnapshot(t *testing.T) {
	v := newViews()
	require.NoError(t, v.devices.HandleMessage([]byte(`{"Data":[
		{"Hostname":"nas","Interface":{"HardwareAddr":"aa:00:00:00:00:01"},"Lease":null,"State":3}]}`)))

	rr := get(t, NewServer(config.DefaultConfig(), v, nil).Handler(), "/api/devices")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Empty      bool      `json:"empty"`
		ReceivedAt time.Time `json:"receivedAt"`
		Data       struct {
			Rows []struct {
				Hostname string `json:"hostname"`
				Address  string `json:"address"`
				Category struct {
					Color string `json:"color"`
				} `json:"category"`
			} `json:"rows"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.False(t, body.Empty)
	assert.True(t, fixedNow.Equal(body.ReceivedAt))
	require.Len(t, body.Data.Rows, 1)
	assert.Equal(t, "nas", body.Data.Rows[0].Hostname)
	assert.Equal(t, feed.NotApplicable, body.Data.Rows[0].Address)
	assert.Equal(t, "#e6e6e6", body.Data.Rows[0].Category.Color)
}

func TestPoolAPI(t *testing.T) {
	v := newViews()
	require.NoError(t, v.pool.HandleMessage([]byte(`{"bound":3,"available":7}`)))

	rr := get(t, NewServer(config.DefaultConfig(), v, nil).Handler(), "/api/pool")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data struct {
			Chart struct {
				RatioLabel string    `json:"ratioLabel"`
				Colors     [2]string `json:"colors"`
			} `json:"chart"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "7/10", body.Data.Chart.RatioLabel)
	assert.Equal(t, "#dddddd", body.Data.Chart.Colors[0])
}

func TestHealthReportsStaleFeeds(t *testing.T) {
	v := newViews()
	h := NewServer(config.DefaultConfig(), v, nil).Handler()

	rr := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)

	v.pool.HandleDisconnect(errors.New("connection refused"))

	rr = get(t, h, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "stale", body.Status)
	assert.True(t, body.Pool.Stale)
	assert.Equal(t, "connection refused", body.Pool.LastError)
	assert.False(t, body.Devices.Stale)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := metrics.New()
	v := views{
		devices: feed.NewDeviceSynchronizer(feed.WithRecorder(rec)),
		pool:    feed.NewPoolSynchronizer(feed.WithRecorder(rec)),
	}
	require.NoError(t, v.pool.HandleMessage([]byte(`{"bound":1,"available":1}`)))

	rr := get(t, NewServer(config.DefaultConfig(), v, rec.Registry()).Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "feed_messages_total"))
}

func TestMetricsDisabledWithoutGatherer(t *testing.T) {
	rr := get(t, NewServer(config.DefaultConfig(), newViews(), nil).Handler(), "/metrics")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestReadOnly(t *testing.T) {
	h := NewServer(config.DefaultConfig(), newViews(), nil).Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/devices", strings.NewReader("{}")))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

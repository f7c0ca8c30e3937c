package reservation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dhcpdash/pkg/models"
)

type capturedRequest struct {
	method      string
	contentType string
	body        []byte
}

func reservationServer(t *testing.T, status int, reply string, seen *capturedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if seen != nil {
			*seen = capturedRequest{method: r.Method, contentType: r.Header.Get("Content-Type"), body: body}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
}

type resultRecorder struct {
	results []string
}

func (r *resultRecorder) Reservation(result string) {
	r.results = append(r.results, result)
}

func newTestClient(url string, rec Recorder) *Client {
	opts := []Option{WithLogger(zerolog.Nop())}
	if rec != nil {
		opts = append(opts, WithRecorder(rec))
	}
	return NewClient(url, opts...)
}

func TestSubmitSendsBatch(t *testing.T) {
	var seen capturedRequest
	srv := reservationServer(t, http.StatusOK, `{"status":"success"}`, &seen)
	defer srv.Close()

	rec := &resultRecorder{}
	err := newTestClient(srv.URL, rec).Submit(context.Background(), Parse("a\nb\n\nc"))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, seen.method)
	assert.Equal(t, "application/json", seen.contentType)

	var body map[string][]string
	require.NoError(t, json.Unmarshal(seen.body, &body))
	assert.Equal(t, map[string][]string{"macs": {"a", "b", "", "c"}}, body)
	assert.Equal(t, []string{"success"}, rec.results)
}

func TestSubmitNilBatchSendsEmptyList(t *testing.T) {
	var seen capturedRequest
	srv := reservationServer(t, http.StatusOK, `{"status":"success"}`, &seen)
	defer srv.Close()

	require.NoError(t, newTestClient(srv.URL, nil).Submit(context.Background(), models.ReservationBatch{}))
	assert.JSONEq(t, `{"macs":[]}`, string(seen.body))
}

func TestSubmitRejected(t *testing.T) {
	srv := reservationServer(t, http.StatusOK, `{"status":"error","info":"duplicate"}`, nil)
	defer srv.Close()

	rec := &resultRecorder{}
	err := newTestClient(srv.URL, rec).Submit(context.Background(), Parse("aa"))
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrRejected)
	assert.NotErrorIs(t, err, ErrTransport)
	assert.Equal(t, "duplicate", MessageOf(err))
	assert.Equal(t, []string{"rejected"}, rec.results)
}

func TestSubmitRejectedWithoutInfo(t *testing.T) {
	srv := reservationServer(t, http.StatusOK, `{"status":"failed"}`, nil)
	defer srv.Close()

	err := newTestClient(srv.URL, nil).Submit(context.Background(), Parse("aa"))
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, "failed", MessageOf(err))
}

func TestSubmitHTTPFailureCarriesStatusText(t *testing.T) {
	srv := reservationServer(t, http.StatusInternalServerError, `{"status":"success"}`, nil)
	defer srv.Close()

	rec := &resultRecorder{}
	err := newTestClient(srv.URL, rec).Submit(context.Background(), Parse("aa"))
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, "Internal Server Error", MessageOf(err))
	assert.Equal(t, []string{"transport_error"}, rec.results)
}

func TestSubmitUndecodableBody(t *testing.T) {
	srv := reservationServer(t, http.StatusOK, `<html>`, nil)
	defer srv.Close()

	err := newTestClient(srv.URL, nil).Submit(context.Background(), Parse("aa"))
	assert.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, MessageOf(err), "invalid response")
}

func TestSubmitUnreachable(t *testing.T) {
	srv := reservationServer(t, http.StatusOK, `{"status":"success"}`, nil)
	url := srv.URL
	srv.Close()

	err := newTestClient(url, nil).Submit(context.Background(), Parse("aa"))
	assert.ErrorIs(t, err, ErrTransport)
}

func TestSubmitTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, WithTimeout(20*time.Millisecond), WithLogger(zerolog.Nop()))
	err := c.Submit(context.Background(), Parse("aa"))
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "Bad Request", statusText(&http.Response{Status: "400 Bad Request", StatusCode: 400}))
	assert.Equal(t, "Teapot", statusText(&http.Response{Status: "418 Teapot", StatusCode: 418}))
	assert.Equal(t, "Not Found", statusText(&http.Response{StatusCode: 404}))
	assert.Equal(t, "HTTP 599", statusText(&http.Response{StatusCode: 599}))
}

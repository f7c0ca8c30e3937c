package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu          sync.Mutex
	messages    []string
	disconnects []error
	notify      chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{notify: make(chan struct{}, 1)}
}

func (h *recordingHandler) HandleMessage(payload []byte) error {
	h.mu.Lock()
	h.messages = append(h.messages, string(payload))
	h.mu.Unlock()
	h.poke()
	return nil
}

func (h *recordingHandler) HandleDisconnect(err error) {
	h.mu.Lock()
	h.disconnects = append(h.disconnects, err)
	h.mu.Unlock()
	h.poke()
}

func (h *recordingHandler) poke() {
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

func (h *recordingHandler) snapshot() ([]string, []error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.messages...), append([]error(nil), h.disconnects...)
}

func (h *recordingHandler) waitFor(t *testing.T, cond func(msgs []string, discs []error) bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if cond(h.snapshot()) {
			return
		}
		select {
		case <-h.notify:
		case <-deadline:
			msgs, discs := h.snapshot()
			t.Fatalf("condition not met: messages=%v disconnects=%v", msgs, discs)
		}
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func feedServer(t *testing.T, batches ...[]string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	var mu sync.Mutex
	conn := 0

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		mu.Lock()
		idx := conn
		conn++
		mu.Unlock()

		if idx >= len(batches) {
			// hold the connection open until the client leaves
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}
		for _, msg := range batches[idx] {
			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		_ = c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	}))
}

func TestStreamDeliversInOrderAndReconnects(t *testing.T) {
	srv := feedServer(t, []string{"one", "two"}, []string{"three"})
	defer srv.Close()

	h := newRecordingHandler()
	sub := Subscribe(context.Background(), "test", wsURL(srv), h,
		WithReconnect(5*time.Millisecond, 20*time.Millisecond),
		WithLogger(zerolog.Nop()))
	defer sub.Close()

	h.waitFor(t, func(msgs []string, discs []error) bool {
		return len(msgs) == 3 && len(discs) >= 2
	})

	msgs, discs := h.snapshot()
	assert.Equal(t, []string{"one", "two", "three"}, msgs)
	assert.ErrorIs(t, discs[0], ErrClosedByServer)
}

func TestStreamReportsFailedDial(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	h := newRecordingHandler()
	sub := Subscribe(context.Background(), "test", wsURL(srv), h,
		WithReconnect(5*time.Millisecond, 10*time.Millisecond),
		WithLogger(zerolog.Nop()))
	defer sub.Close()

	h.waitFor(t, func(_ []string, discs []error) bool { return len(discs) >= 2 })

	_, discs := h.snapshot()
	require.Error(t, discs[0])
	assert.ErrorIs(t, discs[0], websocket.ErrBadHandshake)
}

func TestStreamStopsOnCancel(t *testing.T) {
	srv := feedServer(t)
	defer srv.Close()

	h := newRecordingHandler()
	s := New("test", wsURL(srv), h, WithLogger(zerolog.Nop()))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	_, discs := h.snapshot()
	assert.Empty(t, discs)
}

func TestWithReconnectKeepsBoundsOrdered(t *testing.T) {
	s := New("test", "ws://example.invalid", newRecordingHandler(),
		WithReconnect(2*time.Second, time.Second))

	assert.Equal(t, 2*time.Second, s.reconnectMin)
	assert.Equal(t, defaultReconnectMax, s.reconnectMax)
	assert.Equal(t, "test", s.Name())
}

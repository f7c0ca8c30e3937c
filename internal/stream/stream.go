// Package stream keeps a websocket feed connected and hands every message,
// in arrival order, to a synchronizer.
package stream

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"dhcpdash/internal/logger"
)

const (
	defaultReconnectMin     = time.Second
	defaultReconnectMax     = 30 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
)

// ErrClosedByServer marks a connection the server closed cleanly
var ErrClosedByServer = errors.New("feed closed by server")

// Handler consumes the messages and connection losses of one feed.
// Calls are made from a single goroutine.
type Handler interface {
	HandleMessage(payload []byte) error
	HandleDisconnect(err error)
}

// Stream is a reconnecting subscription to one websocket feed
type Stream struct {
	name    string
	url     string
	handler Handler

	dialer       *websocket.Dialer
	header       http.Header
	reconnectMin time.Duration
	reconnectMax time.Duration
	logger       zerolog.Logger
}

// Option configures a Stream
type Option func(*Stream)

// WithDialer replaces the websocket dialer
func WithDialer(d *websocket.Dialer) Option {
	return func(s *Stream) { s.dialer = d }
}

// WithHeader adds request headers to every handshake
func WithHeader(h http.Header) Option {
	return func(s *Stream) { s.header = h.Clone() }
}

// WithReconnect bounds the delay between connection attempts
func WithReconnect(lo, hi time.Duration) Option {
	return func(s *Stream) {
		if lo > 0 {
			s.reconnectMin = lo
		}
		if hi >= s.reconnectMin {
			s.reconnectMax = hi
		}
	}
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Stream) { s.logger = l }
}

// New creates a stream for the feed at url. Nothing is dialed until Run.
func New(name, url string, handler Handler, opts ...Option) *Stream {
	s := &Stream{
		name:         name,
		url:          url,
		handler:      handler,
		dialer:       &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: defaultHandshakeTimeout},
		reconnectMin: defaultReconnectMin,
		reconnectMax: defaultReconnectMax,
		logger:       logger.WithComponent("stream").With().Str("feed", name).Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the feed name
func (s *Stream) Name() string {
	return s.name
}

// URL returns the feed address
func (s *Stream) URL() string {
	return s.url
}

// Run connects, reads until the connection drops and reconnects with
// exponential backoff. Every lost or failed connection is reported to the
// handler. Run returns ctx.Err() once ctx is cancelled.
func (s *Stream) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.reconnectMin
	bo.MaxInterval = s.reconnectMax
	bo.Reset()

	for {
		connected, err := s.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			bo.Reset()
		}
		s.handler.HandleDisconnect(err)

		wait := bo.NextBackOff()
		s.logger.Info().Err(err).Dur("retry_in", wait).Msg("Feed disconnected")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// session runs one connection. It reports whether the handshake succeeded
// and the error that ended the connection.
func (s *Stream) session(ctx context.Context) (bool, error) {
	conn, resp, err := s.dialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		if resp != nil {
			s.logger.Debug().Str("http_status", resp.Status).Msg("Handshake rejected")
		}
		return false, err
	}
	s.logger.Info().Str("url", s.url).Msg("Feed connected")

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()
	defer func() {
		close(done)
		wg.Wait()
		_ = conn.Close()
	}()

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = errors.Join(ErrClosedByServer, err)
			}
			return true, err
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		if err := s.handler.HandleMessage(payload); err != nil {
			s.logger.Debug().Err(err).Msg("Message not applied")
		}
	}
}

// Subscription is a stream running in its own goroutine
type Subscription struct {
	stream *Stream
	cancel context.CancelFunc
	done   chan struct{}
}

// Subscribe starts a stream for the feed at url and returns a handle that
// stops it. The subscription ends when ctx is cancelled or Close is called.
func Subscribe(ctx context.Context, name, url string, handler Handler, opts ...Option) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		stream: New(name, url, handler, opts...),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(sub.done)
		_ = sub.stream.Run(ctx)
	}()
	return sub
}

// Done is closed after the stream has stopped
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close stops the stream and waits for it to finish
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

// Package feed reconciles server-pushed snapshots into immutable view state.
// Each message carrying a snapshot replaces the view wholesale; nothing is
// merged with a previous snapshot.
package feed

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dhcpdash/internal/logger"
)

var (
	// ErrEmptyPayload marks a keep-alive or no-op message
	ErrEmptyPayload = errors.New("empty feed payload")

	// ErrMalformedPayload marks a message that could not be decoded
	ErrMalformedPayload = errors.New("malformed feed payload")

	// ErrServerReported marks a message in which the server reported a failure
	ErrServerReported = errors.New("server reported feed error")
)

// State is the view of one feed. It is Empty until the first snapshot is
// applied; afterwards it holds the most recent snapshot and when it arrived.
type State[T any] struct {
	Data       T         `json:"data"`
	ReceivedAt time.Time `json:"receivedAt"`
	Stale      bool      `json:"stale"`
	LastError  string    `json:"lastError,omitempty"`
}

// Empty reports whether no snapshot has been applied yet
func (s State[T]) Empty() bool {
	return s.ReceivedAt.IsZero()
}

// Recorder receives feed activity counts
type Recorder interface {
	Applied(feed string, unixSeconds float64)
	Ignored(feed, reason string)
	Disconnected(feed string)
}

type nopRecorder struct{}

func (nopRecorder) Applied(string, float64) {}
func (nopRecorder) Ignored(string, string) {}
func (nopRecorder) Disconnected(string) {}

type options struct {
	now      func() time.Time
	loc      *time.Location
	logger   zerolog.Logger
	recorder Recorder
}

// Option configures a synchronizer
type Option func(*options)

// WithClock sets the time source used for receipt times and expiry display
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLocation sets the zone used to render lease expiry clocks
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.loc = loc }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRecorder sets the activity recorder
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

func newOptions(component string, opts []Option) options {
	o := options{
		now:      time.Now,
		loc:      time.Local,
		logger:   logger.WithComponent(component),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// store holds the current state of one feed and fans it out to subscribers.
// A single stream writes; any number of renderers read.
type store[T any] struct {
	mu     sync.RWMutex
	state  State[T]
	subs   map[int]chan State[T]
	nextID int
}

func (s *store[T]) load() State[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *store[T]) replace(data T, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State[T]{Data: data, ReceivedAt: at}
	s.publish()
}

// markStale keeps the last good snapshot and flags it
func (s *store[T]) markStale(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Stale = true
	if err != nil {
		s.state.LastError = err.Error()
	}
	s.publish()
}

// subscribe returns a channel that always yields the latest state. A slow
// reader skips intermediate states rather than blocking the writer.
func (s *store[T]) subscribe() (<-chan State[T], func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs == nil {
		s.subs = make(map[int]chan State[T])
	}
	id := s.nextID
	s.nextID++
	ch := make(chan State[T], 1)
	s.subs[id] = ch
	if !s.state.Empty() || s.state.Stale {
		ch <- s.state
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// publish must be called with mu held
func (s *store[T]) publish() {
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s.state
	}
}

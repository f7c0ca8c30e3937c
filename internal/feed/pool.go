package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"dhcpdash/internal/pool"
	"dhcpdash/pkg/models"
)

// PoolFeed names the pool feed in logs and metrics
const PoolFeed = "pool"

// PoolView is the pool chart as of the most recent snapshot
type PoolView struct {
	Chart     pool.ChartView `json:"chart"`
	Available []string       `json:"available,omitempty"`
}

// PoolSynchronizer applies pool feed messages to the pool chart view
type PoolSynchronizer struct {
	opts  options
	store store[PoolView]
}

// NewPoolSynchronizer creates a synchronizer whose empty view holds the
// neutral ring of a 0/0 pool
func NewPoolSynchronizer(opts ...Option) *PoolSynchronizer {
	s := &PoolSynchronizer{opts: newOptions("pool-feed", opts)}
	s.store.state.Data.Chart = pool.Derive(models.PoolSnapshot{})
	return s
}

// HandleMessage derives a new chart from one feed message and replaces the
// view with it
func (s *PoolSynchronizer) HandleMessage(payload []byte) error {
	log := s.opts.logger

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		s.opts.recorder.Ignored(PoolFeed, "empty")
		return ErrEmptyPayload
	}

	var update models.PoolUpdate
	if err := json.Unmarshal(trimmed, &update); err != nil {
		log.Debug().Err(err).Msg("Ignoring undecodable pool message")
		s.opts.recorder.Ignored(PoolFeed, "malformed")
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	if update.Status != "" && update.Status != models.StatusSuccess {
		log.Warn().Str("status", update.Status).Str("info", update.Info).
			Msg("Server reported pool feed error")
		s.opts.recorder.Ignored(PoolFeed, "server_error")
		return fmt.Errorf("%w: %s", ErrServerReported, update.Info)
	}

	if update.Bound < 0 || update.Available < 0 {
		s.opts.recorder.Ignored(PoolFeed, "malformed")
		return fmt.Errorf("%w: negative counts bound=%d available=%d",
			ErrMalformedPayload, update.Bound, update.Available)
	}

	now := s.opts.now()
	s.store.replace(PoolView{
		Chart:     pool.Derive(update.Snapshot()),
		Available: update.MACs,
	}, now)
	s.opts.recorder.Applied(PoolFeed, float64(now.UnixNano())/float64(time.Second))
	log.Debug().Int("bound", update.Bound).Int("available", update.Available).Msg("Applied pool snapshot")
	return nil
}

// HandleDisconnect marks the view stale and keeps the last good snapshot
func (s *PoolSynchronizer) HandleDisconnect(err error) {
	s.opts.logger.Warn().Err(err).Msg("Pool feed lost, view is stale")
	s.opts.recorder.Disconnected(PoolFeed)
	s.store.markStale(err)
}

// View returns the current pool chart state
func (s *PoolSynchronizer) View() State[PoolView] {
	return s.store.load()
}

// Subscribe returns a channel of view states and a function releasing it
func (s *PoolSynchronizer) Subscribe() (<-chan State[PoolView], func()) {
	return s.store.subscribe()
}

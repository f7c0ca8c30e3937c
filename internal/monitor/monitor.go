package monitor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"dhcpdash/internal/config"
	"dhcpdash/internal/feed"
	"dhcpdash/internal/logger"
	"dhcpdash/internal/metrics"
	"dhcpdash/internal/reservation"
	"dhcpdash/internal/stream"
)

// ErrAlreadyStarted is returned by Start on a running monitor
var ErrAlreadyStarted = errors.New("monitor already started")

// Monitor owns the feed subscriptions and synchronizers of one mounted view
type Monitor struct {
	cfg      *config.Config
	recorder *metrics.Recorder
	logger   zerolog.Logger

	devices      *feed.DeviceSynchronizer
	pool         *feed.PoolSynchronizer
	reservations *reservation.Client

	mu      sync.Mutex
	subs    []*stream.Subscription
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a monitor for cfg. rec may be nil.
func New(cfg *config.Config, rec *metrics.Recorder) (*Monitor, error) {
	reserveURL, err := cfg.ReserveURL()
	if err != nil {
		return nil, fmt.Errorf("reservation endpoint: %w", err)
	}

	var feedOpts []feed.Option
	clientOpts := []reservation.Option{reservation.WithTimeout(cfg.RequestTimeout)}
	if rec != nil {
		feedOpts = append(feedOpts, feed.WithRecorder(rec))
		clientOpts = append(clientOpts, reservation.WithRecorder(rec))
	}

	return &Monitor{
		cfg:          cfg,
		recorder:     rec,
		logger:       logger.WithComponent("monitor"),
		devices:      feed.NewDeviceSynchronizer(feedOpts...),
		pool:         feed.NewPoolSynchronizer(feedOpts...),
		reservations: reservation.NewClient(reserveURL, clientOpts...),
	}, nil
}

// Start subscribes to both feeds and, when the configuration came from a
// file, watches that file for log level changes
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopCh != nil {
		return ErrAlreadyStarted
	}

	deviceURL, err := m.cfg.DeviceFeedURL()
	if err != nil {
		return fmt.Errorf("device feed: %w", err)
	}
	poolURL, err := m.cfg.PoolFeedURL()
	if err != nil {
		return fmt.Errorf("pool feed: %w", err)
	}

	opts := []stream.Option{stream.WithReconnect(m.cfg.ReconnectMin, m.cfg.ReconnectMax)}
	m.subs = []*stream.Subscription{
		stream.Subscribe(ctx, feed.DeviceFeed, deviceURL, m.devices, opts...),
		stream.Subscribe(ctx, feed.PoolFeed, poolURL, m.pool, opts...),
	}
	m.stopCh = make(chan struct{})

	if m.cfg.Path != "" {
		if err := m.watchConfig(); err != nil {
			m.logger.Warn().Err(err).Str("path", m.cfg.Path).Msg("Config file changes will not be applied")
		}
	}

	m.logger.Info().Str("devices", deviceURL).Str("pool", poolURL).Msg("Monitor started")
	return nil
}

// watchConfig watches the directory holding the config file so that
// editors replacing the file are noticed too
func (m *Monitor) watchConfig() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	path, err := filepath.Abs(m.cfg.Path)
	if err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	m.watcher = watcher
	m.wg.Add(1)
	go m.watchFiles(path)
	return nil
}

func (m *Monitor) watchFiles(path string) {
	defer m.wg.Done()

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			absEventPath, _ := filepath.Abs(event.Name)
			if absEventPath != path {
				continue
			}
			m.logger.Debug().Str("file", event.Name).Msg("Config file modified")
			m.reloadConfig(path)

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn().Err(err).Msg("File watcher error")

		case <-m.stopCh:
			return
		}
	}
}

// reloadConfig applies the log level of the file at path. Other settings
// take effect on restart.
func (m *Monitor) reloadConfig(path string) {
	next, err := config.New(path)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Ignoring changed config file")
		return
	}

	if err := logger.SetLevel(next.LogLevel); err != nil {
		m.logger.Warn().Err(err).Msg("Ignoring changed log level")
		return
	}
	m.logger.Info().Str("level", next.LogLevel).Msg("Log level updated")

	if next.Server != m.cfg.Server || next.DeviceFeed != m.cfg.DeviceFeed || next.PoolFeed != m.cfg.PoolFeed {
		m.logger.Warn().Msg("Feed settings changed; restart to apply")
	}
}

// Stop releases both feed subscriptions and the config watcher. The views
// keep their last state.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopCh == nil {
		return
	}
	close(m.stopCh)
	if m.watcher != nil {
		m.watcher.Close()
	}
	for _, sub := range m.subs {
		sub.Close()
	}
	m.wg.Wait()

	m.subs = nil
	m.watcher = nil
	m.stopCh = nil
	m.logger.Info().Msg("Monitor stopped")
}

// Devices returns the device table synchronizer
func (m *Monitor) Devices() *feed.DeviceSynchronizer {
	return m.devices
}

// Pool returns the pool chart synchronizer
func (m *Monitor) Pool() *feed.PoolSynchronizer {
	return m.pool
}

// Reservations returns the client used to submit reservation batches
func (m *Monitor) Reservations() *reservation.Client {
	return m.reservations
}

// Metrics returns the metrics recorder, or nil
func (m *Monitor) Metrics() *metrics.Recorder {
	return m.recorder
}

// DeviceView returns the current device table state
func (m *Monitor) DeviceView() feed.State[feed.DeviceTableView] {
	return m.devices.View()
}

// PoolView returns the current pool chart state
func (m *Monitor) PoolView() feed.State[feed.PoolView] {
	return m.pool.View()
}

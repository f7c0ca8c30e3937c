package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dhcpdash/internal/status"
	"dhcpdash/internal/timeago"
	"dhcpdash/pkg/models"
)

// DeviceFeed names the device feed in logs and metrics
const DeviceFeed = "devices"

// NotApplicable is rendered for lease fields of records without a lease
const NotApplicable = "n/a"

// DeviceRow is the display projection of one record
type DeviceRow struct {
	ID           uuid.UUID          `json:"id"`
	Hostname     string             `json:"hostname"`
	Address      string             `json:"address"`
	HardwareAddr string             `json:"hardwareAddr"`
	Expires      string             `json:"expires"`
	State        models.DeviceState `json:"state"`
	Category     status.Category    `json:"category"`
}

// DeviceTableView is the device table as of the most recent snapshot
type DeviceTableView struct {
	Records []models.DeviceRecord `json:"records"`
	Rows    []DeviceRow           `json:"rows"`
}

// ProjectDevices builds display rows for records. It fails on the first
// record whose state is not a defined code.
func ProjectDevices(records []models.DeviceRecord, now time.Time, loc *time.Location) ([]DeviceRow, error) {
	rows := make([]DeviceRow, 0, len(records))
	for i, rec := range records {
		category, err := status.Classify(rec.State)
		if err != nil {
			return nil, fmt.Errorf("record %d (%s): %w", i, rec.HardwareAddress(), err)
		}

		row := DeviceRow{
			ID:           rec.ID,
			Hostname:     rec.Hostname,
			Address:      NotApplicable,
			HardwareAddr: rec.HardwareAddress(),
			Expires:      NotApplicable,
			State:        rec.State,
			Category:     category,
		}
		if rec.Lease != nil {
			row.Address = rec.Lease.FixedAddress
			if !rec.Lease.Expire.IsZero() {
				row.Expires = timeago.FormatIn(rec.Lease.Expire, now, loc)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// DeviceSynchronizer applies device feed messages to the device table view
type DeviceSynchronizer struct {
	opts  options
	store store[DeviceTableView]
}

// NewDeviceSynchronizer creates a synchronizer with an empty view
func NewDeviceSynchronizer(opts ...Option) *DeviceSynchronizer {
	return &DeviceSynchronizer{opts: newOptions("device-feed", opts)}
}

// HandleMessage applies one feed message. Empty payloads, undecodable
// payloads and messages without a table leave the view untouched. A record
// with an unknown state code rejects the whole message.
func (s *DeviceSynchronizer) HandleMessage(payload []byte) error {
	log := s.opts.logger

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		s.opts.recorder.Ignored(DeviceFeed, "empty")
		return ErrEmptyPayload
	}

	var update models.DeviceUpdate
	if err := json.Unmarshal(trimmed, &update); err != nil {
		log.Debug().Err(err).Msg("Ignoring undecodable device message")
		s.opts.recorder.Ignored(DeviceFeed, "malformed")
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	if update.Data == nil {
		if update.Status != "" && update.Status != models.StatusSuccess {
			log.Warn().Str("status", update.Status).Str("info", update.Info).
				Msg("Server reported device feed error")
			s.opts.recorder.Ignored(DeviceFeed, "server_error")
			return fmt.Errorf("%w: %s", ErrServerReported, update.Info)
		}
		s.opts.recorder.Ignored(DeviceFeed, "empty")
		return ErrEmptyPayload
	}

	now := s.opts.now()
	rows, err := ProjectDevices(update.Data, now, s.opts.loc)
	if err != nil {
		log.Error().Err(err).Msg("Rejecting device snapshot")
		s.opts.recorder.Ignored(DeviceFeed, "rejected")
		return err
	}

	s.store.replace(DeviceTableView{Records: update.Data, Rows: rows}, now)
	s.opts.recorder.Applied(DeviceFeed, float64(now.UnixNano())/float64(time.Second))
	log.Debug().Int("records", len(rows)).Msg("Applied device snapshot")
	return nil
}

// HandleDisconnect marks the view stale and keeps the last good snapshot
func (s *DeviceSynchronizer) HandleDisconnect(err error) {
	s.opts.logger.Warn().Err(err).Msg("Device feed lost, view is stale")
	s.opts.recorder.Disconnected(DeviceFeed)
	s.store.markStale(err)
}

// View returns the current device table state
func (s *DeviceSynchronizer) View() State[DeviceTableView] {
	return s.store.load()
}

// Subscribe returns a channel of view states and a function releasing it
func (s *DeviceSynchronizer) Subscribe() (<-chan State[DeviceTableView], func()) {
	return s.store.subscribe()
}

// Location returns the zone used to render expiry clocks
func (s *DeviceSynchronizer) Location() *time.Location {
	return s.opts.loc
}

// IsIgnorable reports whether err describes a message that was skipped
// without affecting the view for benign reasons
func IsIgnorable(err error) bool {
	return errors.Is(err, ErrEmptyPayload) || errors.Is(err, ErrMalformedPayload) ||
		errors.Is(err, ErrServerReported)
}

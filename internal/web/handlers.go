package web

import (
	"encoding/json"
	"net/http"

	"dhcpdash/internal/feed"
)

// ViewResponse is the JSON form of one feed's state
type ViewResponse[T any] struct {
	Empty bool `json:"empty"`
	feed.State[T]
}

// FeedHealth summarizes one feed for /healthz
type FeedHealth struct {
	Empty     bool   `json:"empty"`
	Stale     bool   `json:"stale"`
	LastError string `json:"lastError,omitempty"`
}

// HealthResponse is the body of /healthz
type HealthResponse struct {
	Status  string     `json:"status"`
	Devices FeedHealth `json:"devices"`
	Pool    FeedHealth `json:"pool"`
}

func health[T any](st feed.State[T]) FeedHealth {
	return FeedHealth{Empty: st.Empty(), Stale: st.Stale, LastError: st.LastError}
}

// handleDevicesAPI serves the device table view
func (s *Server) handleDevicesAPI(w http.ResponseWriter, r *http.Request) {
	st := s.views.DeviceView()
	if st.Data.Rows == nil {
		st.Data.Rows = []feed.DeviceRow{}
	}
	s.writeJSON(w, http.StatusOK, ViewResponse[feed.DeviceTableView]{Empty: st.Empty(), State: st})
}

// handlePoolAPI serves the pool chart view
func (s *Server) handlePoolAPI(w http.ResponseWriter, r *http.Request) {
	st := s.views.PoolView()
	s.writeJSON(w, http.StatusOK, ViewResponse[feed.PoolView]{Empty: st.Empty(), State: st})
}

// handleHealth reports 503 while either feed is stale
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Devices: health(s.views.DeviceView()),
		Pool:    health(s.views.PoolView()),
	}

	code := http.StatusOK
	if resp.Devices.Stale || resp.Pool.Stale {
		resp.Status = "stale"
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

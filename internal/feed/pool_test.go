package feed

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dhcpdash/internal/pool"
	"dhcpdash/pkg/models"
)

func newTestPoolSync() *PoolSynchronizer {
	return NewPoolSynchronizer(
		WithClock(func() time.Time { return testNow }),
		WithLogger(zerolog.Nop()),
	)
}

func TestPoolSyncStartsWithNeutralRing(t *testing.T) {
	s := newTestPoolSync()

	view := s.View()
	assert.True(t, view.Empty())
	assert.Equal(t, pool.Derive(models.PoolSnapshot{}), view.Data.Chart)
	assert.Equal(t, "0/0", view.Data.Chart.RatioLabel)
	assert.Equal(t, pool.NeutralColor, view.Data.Chart.LabelColor)

	s.HandleDisconnect(errors.New("dial refused"))
	assert.True(t, s.View().Data.Chart.Empty)
}

func TestPoolSyncDerivesChart(t *testing.T) {
	s := newTestPoolSync()
	require.NoError(t, s.HandleMessage([]byte(`{"status":"success","bound":3,"available":7,"macs":["aa","bb"]}`)))

	view := s.View()
	assert.Equal(t, "7/10", view.Data.Chart.RatioLabel)
	assert.Equal(t, pool.NeutralColor, view.Data.Chart.Colors[0])
	assert.Equal(t, []string{"aa", "bb"}, view.Data.Available)
	assert.Equal(t, testNow, view.ReceivedAt)
}

func TestPoolSyncEachUpdateIsIndependent(t *testing.T) {
	s := newTestPoolSync()
	require.NoError(t, s.HandleMessage([]byte(`{"bound":3,"available":7,"macs":["aa"]}`)))
	require.NoError(t, s.HandleMessage([]byte(`{"bound":1,"available":1}`)))

	view := s.View()
	assert.Equal(t, pool.Derive(view.Data.Chart.Snapshot), view.Data.Chart)
	assert.Equal(t, "1/2", view.Data.Chart.RatioLabel)
	assert.Nil(t, view.Data.Available)
}

func TestPoolSyncZeroPool(t *testing.T) {
	s := newTestPoolSync()
	require.NoError(t, s.HandleMessage([]byte(`{"bound":0,"available":0}`)))

	assert.True(t, s.View().Data.Chart.Empty)
	assert.Equal(t, "0/0", s.View().Data.Chart.RatioLabel)
}

func TestPoolSyncIgnoresInvalidMessages(t *testing.T) {
	s := newTestPoolSync()
	require.NoError(t, s.HandleMessage([]byte(`{"bound":2,"available":8}`)))
	before := s.View()

	assert.ErrorIs(t, s.HandleMessage([]byte("")), ErrEmptyPayload)
	assert.ErrorIs(t, s.HandleMessage([]byte("not json")), ErrMalformedPayload)
	assert.ErrorIs(t, s.HandleMessage([]byte(`{"bound":-1,"available":3}`)), ErrMalformedPayload)
	assert.ErrorIs(t, s.HandleMessage([]byte(`{"status":"error","info":"etcd down","bound":0,"available":0}`)), ErrServerReported)

	assert.Equal(t, before, s.View())
}

func TestPoolSyncDisconnect(t *testing.T) {
	s := newTestPoolSync()
	require.NoError(t, s.HandleMessage([]byte(`{"bound":2,"available":8}`)))

	s.HandleDisconnect(errors.New("EOF"))

	view := s.View()
	assert.True(t, view.Stale)
	assert.Equal(t, "8/10", view.Data.Chart.RatioLabel)
}

func TestPoolSyncSubscribeReplaysCurrentState(t *testing.T) {
	s := newTestPoolSync()
	require.NoError(t, s.HandleMessage([]byte(`{"bound":2,"available":8}`)))

	ch, cancel := s.Subscribe()
	defer cancel()

	select {
	case st := <-ch:
		assert.Equal(t, "8/10", st.Data.Chart.RatioLabel)
	case <-time.After(time.Second):
		t.Fatal("current state not replayed")
	}
}

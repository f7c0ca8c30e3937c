package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dhcpdash/pkg/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		state models.DeviceState
		name  string
		color string
	}{
		{models.Unbound, "amber", "#ffdb4d"},
		{models.Bound, "green", "#009900"},
		{models.Stale, "red", "#990000"},
		{models.Stopped, "neutral-gray", "#e6e6e6"},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			c, err := Classify(tt.state)
			require.NoError(t, err)
			assert.Equal(t, tt.name, c.Name)
			assert.Equal(t, tt.color, c.Color)
		})
	}
}

func TestClassifyUnknownState(t *testing.T) {
	for _, code := range []models.DeviceState{-1, 4, 99} {
		_, err := Classify(code)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownState)
	}
}

func TestMustClassifyPanics(t *testing.T) {
	assert.Panics(t, func() { MustClassify(models.DeviceState(7)) })
	assert.NotPanics(t, func() { MustClassify(models.Bound) })
}

func TestSeverityOrdering(t *testing.T) {
	assert.Less(t, int(Neutral.Severity), int(Green.Severity))
	assert.Less(t, int(Green.Severity), int(Amber.Severity))
	assert.Less(t, int(Amber.Severity), int(Red.Severity))
}

package timeframes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeframe_GetDuration(t *testing.T) {
	tests := []struct {
		tf       Timeframe
		expected time.Duration
		label    string
	}{
		{Timeframe1m, time.Minute, "M1"},
		{Timeframe15m, 15 * time.Minute, "M15"},
		{Timeframe4h, 4 * time.Hour, "H4"},
		{Timeframe1d, 24 * time.Hour, "D1"},
		{Timeframe1w, 7 * 24 * time.Hour, "W1"},
	}

	for _, tt := range tests {
		t.Run(tt.tf.String(), func(t *testing.T) {
			d, err := tt.tf.GetDuration()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
			assert.Equal(t, tt.label, tt.tf.Label())
			assert.Equal(t, string(tt.tf), tt.tf.GetBinanceInterval())
			assert.True(t, tt.tf.IsValid())
		})
	}

	_, err := Timeframe("7m").GetDuration()
	assert.Error(t, err)
	assert.False(t, Timeframe("7m").IsValid())
	assert.Equal(t, "7m", Timeframe("7m").Label())
}

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe("1h")
	require.NoError(t, err)
	assert.Equal(t, Timeframe1h, tf)

	// 接受日志标签格式
	tf, err = ParseTimeframe("M1")
	require.NoError(t, err)
	assert.Equal(t, Timeframe1m, tf)

	tf, err = ParseTimeframe("MN1")
	require.NoError(t, err)
	assert.Equal(t, Timeframe1M, tf)

	_, err = ParseTimeframe("2y")
	assert.Error(t, err)
}

func TestTimeframe_CalculateDataPoints(t *testing.T) {
	points, err := Timeframe1m.CalculateDataPoints(5000 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 5000, points)

	points, err = Timeframe4h.CalculateDataPoints(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 6, points)

	_, err = Timeframe("bad").CalculateDataPoints(time.Hour)
	assert.Error(t, err)
}

func TestTimeframe_GetMaxHistoryDays(t *testing.T) {
	assert.Equal(t, 3, Timeframe1m.GetMaxHistoryDays())
	assert.Equal(t, 365, Timeframe1d.GetMaxHistoryDays())
	assert.Equal(t, 30, Timeframe("bad").GetMaxHistoryDays())
}

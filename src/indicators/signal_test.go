package indicators

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnderOver(t *testing.T) {
	level := decimal.NewFromInt(30)
	tests := []struct {
		value    float64
		expected bool
	}{
		{0, true},
		{29.99, true},
		{30, false}, // 严格小于
		{30.01, false},
		{100, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, UnderOver(decimal.NewFromFloat(tt.value), level), "value %v", tt.value)
	}
}

func TestNewRSISignal_InvalidLevel(t *testing.T) {
	for _, level := range []float64{0, -5, 100, 150} {
		_, err := NewRSISignal(14, level)
		assert.ErrorIs(t, err, ErrInvalidLevel, "level %v", level)
	}

	_, err := NewRSISignal(0, 30)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestRSISignal_UndefinedNeverBelow(t *testing.T) {
	sig, err := NewRSISignal(5, 30)
	require.NoError(t, err)

	// 持续下跌，但在就绪前不应触发
	prices := decimals(10, 9, 8, 7, 6)
	for _, p := range prices {
		s := sig.Update(p)
		assert.False(t, s.Ready)
		assert.False(t, s.Below)
		assert.Equal(t, "undefined", s.String())
	}

	s := sig.Update(decimal.NewFromInt(5))
	assert.True(t, s.Ready)
	assert.True(t, s.Below)
	assert.Equal(t, "0.00", s.String())
	assert.Equal(t, s, sig.State())
}

func TestRSISignal_LevelTriggered(t *testing.T) {
	sig, err := NewRSISignal(3, 30)
	require.NoError(t, err)
	assert.Equal(t, 3, sig.Period())
	assert.True(t, sig.Level().Equal(decimal.NewFromInt(30)))

	// 连续低于阈值的每根K线都重复给出信号
	var belowCount int
	for _, p := range decimals(20, 19, 18, 17, 16, 15, 14) {
		if sig.Update(p).Below {
			belowCount++
		}
	}
	assert.Equal(t, 4, belowCount)

	// 强势上涨后信号消失
	var last IndicatorState
	for _, p := range decimals(20, 25, 30, 35) {
		last = sig.Update(p)
	}
	assert.False(t, last.Below)
}

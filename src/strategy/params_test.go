package strategy

import (
	"testing"

	"rsibot/src/position"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultRSITrailingParams(t *testing.T) {
	p := GetDefaultRSITrailingParams()
	require.NoError(t, p.Validate())
	assert.Equal(t, 14, p.Period)
	assert.Equal(t, 30.0, p.Level)
	assert.Equal(t, 0.3, p.EntryFraction)
	assert.Equal(t, 0.02, p.TrailPercent)
	assert.Equal(t, position.ResetAtomic, p.ResetMode)

	m := p.ToMap()
	assert.Equal(t, 14, m["period"])
	assert.Equal(t, "atomic", m["reset_mode"])
}

func TestRSITrailingParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *RSITrailingParams)
		errMsg string
	}{
		{"zero period", func(p *RSITrailingParams) { p.Period = 0 }, "period"},
		{"level too high", func(p *RSITrailingParams) { p.Level = 100 }, "level"},
		{"negative level", func(p *RSITrailingParams) { p.Level = -1 }, "level"},
		{"entry fraction above 1", func(p *RSITrailingParams) { p.EntryFraction = 1.5 }, "entry_fraction"},
		{"zero entry fraction", func(p *RSITrailingParams) { p.EntryFraction = 0 }, "entry_fraction"},
		{"trail of 1", func(p *RSITrailingParams) { p.TrailPercent = 1 }, "trail"},
		{"unknown reset mode", func(p *RSITrailingParams) { p.ResetMode = "someday" }, "reset mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := GetDefaultRSITrailingParams()
			tt.modify(p)
			err := p.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	// 全部用满也合法
	p := GetDefaultRSITrailingParams()
	p.EntryFraction = 1
	assert.NoError(t, p.Validate())
}

func TestParseParamOverrides(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected map[string]float64
		wantErr  bool
	}{
		{"empty", "", map[string]float64{}, false},
		{"single", "period=10", map[string]float64{"period": 10}, false},
		{"multiple with spaces", " level = 25 , trail=0.05 ,", map[string]float64{"level": 25, "trail": 0.05}, false},
		{"missing value", "period", nil, true},
		{"not a number", "level=low", nil, true},
		{"too many equals", "a=1=2", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseParamOverrides(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRSITrailingParams_ApplyOverrides(t *testing.T) {
	p := GetDefaultRSITrailingParams()
	err := p.ApplyOverrides(map[string]float64{
		"period":         7,
		"level":          25,
		"entry_fraction": 0.5,
		"trail":          0.03,
		"delayed_reset":  1,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, p.Period)
	assert.Equal(t, 25.0, p.Level)
	assert.Equal(t, 0.5, p.EntryFraction)
	assert.Equal(t, 0.03, p.TrailPercent)
	assert.Equal(t, position.ResetDelayed, p.ResetMode)

	require.NoError(t, p.ApplyOverrides(map[string]float64{"delayed_reset": 0}))
	assert.Equal(t, position.ResetAtomic, p.ResetMode)

	assert.Error(t, GetDefaultRSITrailingParams().ApplyOverrides(map[string]float64{"period": 7.5}))
	assert.Error(t, GetDefaultRSITrailingParams().ApplyOverrides(map[string]float64{"unknown": 1}))
	assert.Error(t, GetDefaultRSITrailingParams().ApplyOverrides(map[string]float64{"level": 0}))
}

package config

import (
	"testing"
	"time"

	"rsibot/src/cex"
	"rsibot/src/position"
	"rsibot/src/timeframes"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestConfig 返回默认配置的副本，避免修改全局实例
func newTestConfig() *Config {
	c := *AppConfig
	c.Symbols = append([]SymbolInfo(nil), AppConfig.Symbols...)
	c.Backtest.StartDate = "2024-01-01"
	c.Backtest.EndDate = "2024-02-01"
	return &c
}

func TestConfig_Defaults(t *testing.T) {
	c := newTestConfig()
	require.NoError(t, c.Validate())

	params, err := c.GetStrategyParams()
	require.NoError(t, err)
	assert.Equal(t, 14, params.Period)
	assert.Equal(t, 30.0, params.Level)
	assert.Equal(t, 0.3, params.EntryFraction)
	assert.Equal(t, 0.02, params.TrailPercent)
	assert.Equal(t, position.ResetAtomic, params.ResetMode)

	assert.True(t, c.GetInitialCapital().Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 0.0015, c.GetCommission())
	assert.True(t, c.IsBacktestMode())

	tf, err := c.GetTimeframe()
	require.NoError(t, err)
	assert.Equal(t, timeframes.Timeframe1m, tf)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{"invalid timeframe", func(c *Config) { c.Trading.Timeframe = "7m" }, "invalid timeframe"},
		{"zero capital", func(c *Config) { c.Trading.InitialCapital = 0 }, "initial capital"},
		{"invalid mode", func(c *Config) { c.Trading.Mode = "paper" }, "invalid trading mode"},
		{"unknown strategy", func(c *Config) { c.Strategy.Name = "bollinger_bands" }, "unsupported strategy"},
		{"zero period", func(c *Config) { c.Strategy.Parameters.Period = 0 }, "period"},
		{"level too high", func(c *Config) { c.Strategy.Parameters.Level = 100 }, "level"},
		{"level zero", func(c *Config) { c.Strategy.Parameters.Level = 0 }, "level"},
		{"entry fraction above one", func(c *Config) { c.Strategy.Parameters.EntryFraction = 1.5 }, "entry_fraction"},
		{"negative trail", func(c *Config) { c.Strategy.Parameters.Trail = -0.01 }, "trail"},
		{"unknown reset mode", func(c *Config) { c.Strategy.Parameters.ResetMode = "later" }, "reset mode"},
		{"negative commission", func(c *Config) { c.Backtest.Commission = -0.1 }, "commission"},
		{"bad start date", func(c *Config) { c.Backtest.StartDate = "2024/01/01" }, "invalid start date"},
		{"end before start", func(c *Config) { c.Backtest.EndDate = "2023-12-01" }, "must be after"},
		{"negative step size", func(c *Config) { c.Symbols[0].StepSize = -0.1 }, "step_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestConfig()
			tt.modify(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("entry fraction of one is allowed", func(t *testing.T) {
		c := newTestConfig()
		c.Strategy.Parameters.EntryFraction = 1
		assert.NoError(t, c.Validate())
	})

	t.Run("dates are not checked outside backtest", func(t *testing.T) {
		c := newTestConfig()
		c.Trading.Mode = ModeDry
		c.Backtest.StartDate = "bad"
		assert.NoError(t, c.Validate())
	})
}

func TestConfig_GetBacktestRange(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("explicit dates", func(t *testing.T) {
		c := newTestConfig()
		start, end, err := c.GetBacktestRange(now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), end)
	})

	t.Run("lookback from now", func(t *testing.T) {
		c := newTestConfig()
		c.Backtest.StartDate = ""
		c.Backtest.EndDate = ""
		c.Backtest.LookbackBars = 60
		start, end, err := c.GetBacktestRange(now)
		require.NoError(t, err)
		assert.Equal(t, now, end)
		assert.Equal(t, now.Add(-time.Hour), start)
	})

	t.Run("lookback must be positive", func(t *testing.T) {
		c := newTestConfig()
		c.Backtest.StartDate = ""
		c.Backtest.LookbackBars = 0
		_, _, err := c.GetBacktestRange(now)
		assert.Error(t, err)
	})
}

func TestConfig_SetStrategyParams(t *testing.T) {
	c := newTestConfig()
	params, err := c.GetStrategyParams()
	require.NoError(t, err)

	require.NoError(t, params.ApplyOverrides(map[string]float64{"period": 10, "delayed_reset": 1}))
	c.SetStrategyParams(params)

	assert.Equal(t, 10, c.Strategy.Parameters.Period)
	assert.Equal(t, "delayed", c.Strategy.Parameters.ResetMode)

	again, err := c.GetStrategyParams()
	require.NoError(t, err)
	assert.Equal(t, position.ResetDelayed, again.ResetMode)
}

func TestConfig_Symbols(t *testing.T) {
	c := newTestConfig()
	c.Symbols = []SymbolInfo{
		{BaseAsset: "ctt", QuoteAsset: "usdt", MinNotional: 5, Enabled: true},
		{BaseAsset: "BTC", QuoteAsset: "USDT", MinNotional: 10, StepSize: 0.00001, MinQty: 0.0001, Enabled: false},
	}

	pairs := c.GetPairs()
	require.Len(t, pairs, 1)
	assert.Equal(t, cex.TradingPair{Base: "CTT", Quote: "USDT"}, pairs[0])

	btc := cex.TradingPair{Base: "BTC", Quote: "USDT"}
	info, ok := c.FindSymbol(btc)
	require.True(t, ok)
	assert.False(t, info.Enabled)

	filters := c.GetSymbolFilters(btc)
	assert.True(t, filters.MinNotional.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "0.00001", filters.StepSize.String())
	assert.Equal(t, "0.0001", filters.MinQty.String())

	size, err := filters.AdjustQuantity(decimal.RequireFromString("0.0123456"))
	require.NoError(t, err)
	assert.Equal(t, "0.01234", size.String())

	assert.Equal(t, cex.SymbolFilters{}, c.GetSymbolFilters(cex.TradingPair{Base: "DOGE", Quote: "USDT"}))
}

func TestConfig_LiveSettings(t *testing.T) {
	c := newTestConfig()

	c.Live.WarmupBars = 5
	assert.Equal(t, 15, c.GetWarmupBars())
	c.Live.WarmupBars = 200
	assert.Equal(t, 200, c.GetWarmupBars())

	c.Live.KlinePollSeconds = 0
	assert.Equal(t, 5*time.Second, c.GetKlinePollInterval())
	c.Live.KlinePollSeconds = 2
	assert.Equal(t, 2*time.Second, c.GetKlinePollInterval())

	c.Live.OrderPollMillis = 0
	assert.Equal(t, 500*time.Millisecond, c.GetOrderPollInterval())
}

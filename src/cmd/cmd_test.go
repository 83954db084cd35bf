package cmd

import (
	"testing"
	"time"

	"rsibot/src/cex"
	"rsibot/src/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig() *config.Config {
	c := *config.AppConfig
	c.Symbols = []config.SymbolInfo{
		{BaseAsset: "CTT", QuoteAsset: "USDT", Enabled: true},
	}
	c.Backtest.StartDate = ""
	c.Backtest.EndDate = ""
	return &c
}

func TestRSIOptions_Apply(t *testing.T) {
	t.Run("backtest with single pair and overrides", func(t *testing.T) {
		cfg := newTestConfig()
		opts := rsiOptions{
			base:       "btc",
			quote:      "usdt",
			timeframe:  "1h",
			startDate:  "2024-01-01",
			endDate:    "2024-02-01",
			capital:    500,
			period:     10,
			level:      25,
			trail:      0.05,
			commission: 0.001,
			reset:      "delayed",
		}

		pairs, err := opts.apply(cfg)
		require.NoError(t, err)
		assert.Equal(t, []cex.TradingPair{{Base: "BTC", Quote: "USDT"}}, pairs)

		assert.Equal(t, config.ModeBacktest, cfg.Trading.Mode)
		assert.Equal(t, "1h", cfg.Trading.Timeframe)
		assert.Equal(t, 500.0, cfg.Trading.InitialCapital)
		assert.Equal(t, 0.001, cfg.Backtest.Commission)
		assert.Equal(t, "2024-01-01", cfg.Backtest.StartDate)
		assert.Equal(t, 10, cfg.Strategy.Parameters.Period)
		assert.Equal(t, 25.0, cfg.Strategy.Parameters.Level)
		assert.Equal(t, 0.3, cfg.Strategy.Parameters.EntryFraction)
		assert.Equal(t, 0.05, cfg.Strategy.Parameters.Trail)
		assert.Equal(t, "delayed", cfg.Strategy.Parameters.ResetMode)
	})

	t.Run("params string wins over flags", func(t *testing.T) {
		cfg := newTestConfig()
		opts := rsiOptions{startDate: "2024-01-01", period: 10, params: "period=21,entry_fraction=0.5"}

		_, err := opts.apply(cfg)
		require.NoError(t, err)
		assert.Equal(t, 21, cfg.Strategy.Parameters.Period)
		assert.Equal(t, 0.5, cfg.Strategy.Parameters.EntryFraction)
	})

	t.Run("pairs list and config symbols", func(t *testing.T) {
		cfg := newTestConfig()
		opts := rsiOptions{pairs: "BTC/USDT, eth/usdt", dry: true}
		pairs, err := opts.apply(cfg)
		require.NoError(t, err)
		assert.Len(t, pairs, 2)
		assert.Equal(t, config.ModeDry, cfg.Trading.Mode)

		cfg = newTestConfig()
		opts = rsiOptions{live: true}
		pairs, err = opts.apply(cfg)
		require.NoError(t, err)
		assert.Equal(t, []cex.TradingPair{{Base: "CTT", Quote: "USDT"}}, pairs)
		assert.Equal(t, config.ModeLive, cfg.Trading.Mode)
	})

	t.Run("lookback replaces start date", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.Backtest.StartDate = "2024-01-01"
		opts := rsiOptions{lookback: 300}
		_, err := opts.apply(cfg)
		require.NoError(t, err)
		assert.Empty(t, cfg.Backtest.StartDate)
		assert.Equal(t, 300, cfg.Backtest.LookbackBars)
	})

	errorCases := []struct {
		name string
		opts rsiOptions
	}{
		{"backtest without start", rsiOptions{}},
		{"live and dry", rsiOptions{live: true, dry: true}},
		{"base without quote", rsiOptions{base: "BTC", startDate: "2024-01-01"}},
		{"bad pair list", rsiOptions{pairs: "BTCUSDT", startDate: "2024-01-01"}},
		{"bad reset mode", rsiOptions{reset: "never", startDate: "2024-01-01"}},
		{"bad params", rsiOptions{params: "period", startDate: "2024-01-01"}},
		{"unknown param", rsiOptions{params: "stop=0.1", startDate: "2024-01-01"}},
		{"level out of range", rsiOptions{level: 120, startDate: "2024-01-01"}},
		{"bad timeframe", rsiOptions{timeframe: "7m", startDate: "2024-01-01"}},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			_, err := opts.apply(newTestConfig())
			assert.Error(t, err)
		})
	}
}

func TestParseTradingPairs(t *testing.T) {
	pairs, err := ParseTradingPairs("btc/usdt,ETH/USDT,BTC/USDT,")
	require.NoError(t, err)
	assert.Equal(t, []cex.TradingPair{
		{Base: "BTC", Quote: "USDT"},
		{Base: "ETH", Quote: "USDT"},
	}, pairs)

	_, err = ParseTradingPairs(" , ")
	assert.ErrorIs(t, err, cex.ErrInvalidTradingPair)

	_, err = ParseTradingPairs("BTC-USDT")
	assert.ErrorIs(t, err, cex.ErrInvalidTradingPair)
}

func TestCreateTradingPair(t *testing.T) {
	assert.Equal(t, cex.TradingPair{Base: "CTT", Quote: "USDT"}, CreateTradingPair("ctt", "usdt"))
}

func TestClosedOnly(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 3, 30, 0, time.UTC)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var klines []*cex.KlineData
	for i := 0; i < 4; i++ {
		open := start.Add(time.Duration(i) * time.Minute)
		klines = append(klines, &cex.KlineData{OpenTime: open, CloseTime: open.Add(time.Minute - time.Millisecond)})
	}

	closed := closedOnly(klines, now)
	assert.Len(t, closed, 3)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "12.35", formatPrice(decimal.RequireFromString("12.345")))
	assert.Equal(t, "0.012346", formatPrice(decimal.RequireFromString("0.0123456")))
	assert.Equal(t, "1.5K", formatVolume(decimal.NewFromInt(1500)))
	assert.Equal(t, "999.00", formatVolume(decimal.NewFromInt(999)))
	assert.Equal(t, "01-02 03:04", formatTime(time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC)))

	assert.Equal(t, "优秀", latencyQuality(50*time.Millisecond))
	assert.Equal(t, "良好", latencyQuality(200*time.Millisecond))
	assert.Equal(t, "一般", latencyQuality(500*time.Millisecond))
	assert.Equal(t, "较差", latencyQuality(2*time.Second))
}

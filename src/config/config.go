package config

import (
	"fmt"
	"strings"
	"time"

	"rsibot/src/cex"
	"rsibot/src/position"
	"rsibot/src/strategy"
	"rsibot/src/timeframes"

	"github.com/shopspring/decimal"
	"github.com/xpwu/go-config/configs"
)

const dateLayout = "2006-01-02"

// 运行模式
const (
	ModeBacktest = "backtest"
	ModeDry      = "dry"
	ModeLive     = "live"
)

// Config 主配置结构
type Config struct {
	Trading  TradingConfig  `conf:"trading,交易基础配置"`
	Strategy StrategyConfig `conf:"strategy,策略配置"`
	Backtest BacktestConfig `conf:"backtest,回测配置"`
	Live     LiveConfig     `conf:"live,实盘与模拟盘配置"`
	Symbols  []SymbolInfo   `conf:"symbols,交易对列表 - 命令行未指定交易对时使用其中启用的项"`
}

// SymbolInfo 交易对信息
type SymbolInfo struct {
	BaseAsset   string  `conf:"base_asset,基础资产"`
	QuoteAsset  string  `conf:"quote_asset,计价资产"`
	MinNotional float64 `conf:"min_notional,最小下单金额 - 低于此金额的买单直接拒绝，0=不限制"`
	StepSize    float64 `conf:"step_size,数量步长 - 交易所LOT_SIZE规则，下单数量向下取整，0=不取整"`
	MinQty      float64 `conf:"min_qty,最小下单数量 - 取整后低于此数量的订单直接拒绝，0=不限制"`
	Enabled     bool    `conf:"enabled,是否启用"`
}

// Pair 转换为交易对
func (s SymbolInfo) Pair() cex.TradingPair {
	return cex.TradingPair{
		Base:  strings.ToUpper(s.BaseAsset),
		Quote: strings.ToUpper(s.QuoteAsset),
	}
}

// TradingConfig 交易配置
type TradingConfig struct {
	CEX            string  `conf:"cex,交易所 - 目前支持binance"`
	Timeframe      string  `conf:"timeframe,K线周期 - 支持1m,3m,5m,15m,30m,1h,2h,4h,6h,8h,12h,1d,3d,1w,1M，也可写M1、H1等"`
	InitialCapital float64 `conf:"initial_capital,初始资金 - 回测或模拟盘的起始金额(计价资产)"`
	Mode           string  `conf:"mode,运行模式 - backtest=回测,dry=实时数据模拟成交,live=实盘"`
}

// StrategyConfig 策略配置
type StrategyConfig struct {
	Name       string                `conf:"name,策略名称 - 目前支持rsi_trailing"`
	Parameters RSITrailingParameters `conf:"parameters,RSI移动止损策略参数"`
}

// RSITrailingParameters RSI移动止损策略参数
type RSITrailingParameters struct {
	Period        int     `conf:"period,RSI周期 - 默认14"`
	Level         float64 `conf:"level,入场阈值 - RSI低于该值买入，默认30"`
	EntryFraction float64 `conf:"entry_fraction,入场资金比例 - 可用资金的比例，默认0.3"`
	Trail         float64 `conf:"trail,移动止损回撤比例 - 默认0.02"`
	ResetMode     string  `conf:"reset_mode,卖出后持仓清理时机 - atomic=下单即清理,delayed=下一根K线清理"`
}

// BacktestConfig 回测配置
type BacktestConfig struct {
	StartDate    string  `conf:"start_date,回测开始日期 - 为空时从结束时间回溯lookback_bars根K线"`
	EndDate      string  `conf:"end_date,回测结束日期 - 为空时取当前时间"`
	Commission   float64 `conf:"commission,交易手续费率 - 默认0.0015"`
	LookbackBars int     `conf:"lookback_bars,未指定开始日期时回溯的K线数量"`
}

// LiveConfig 实盘与模拟盘配置
type LiveConfig struct {
	KlinePollSeconds int `conf:"kline_poll_seconds,K线轮询间隔(秒)"`
	OrderPollMillis  int `conf:"order_poll_millis,订单状态轮询间隔(毫秒)"`
	WarmupBars       int `conf:"warmup_bars,启动时加载的历史K线数量 - 至少为RSI周期+1"`
}

// AppConfig 全局配置实例
var AppConfig = &Config{
	Trading: TradingConfig{
		CEX:            "binance",
		Timeframe:      "1m",
		InitialCapital: 100.0,
		Mode:           ModeBacktest,
	},
	Strategy: StrategyConfig{
		Name: "rsi_trailing",
		Parameters: RSITrailingParameters{
			Period:        14,
			Level:         30,
			EntryFraction: 0.3,
			Trail:         0.02,
			ResetMode:     string(position.ResetAtomic),
		},
	},
	Backtest: BacktestConfig{
		StartDate:    "",
		EndDate:      "",
		Commission:   0.0015, // 0.15%
		LookbackBars: 5000,
	},
	Live: LiveConfig{
		KlinePollSeconds: 5,
		OrderPollMillis:  500,
		WarmupBars:       100,
	},
	Symbols: []SymbolInfo{
		{BaseAsset: "CTT", QuoteAsset: "USDT", MinNotional: 5, StepSize: 0.1, MinQty: 0.1, Enabled: true},
		{BaseAsset: "BTC", QuoteAsset: "USDT", MinNotional: 5, StepSize: 0.00001, MinQty: 0.00001, Enabled: false},
		{BaseAsset: "ETH", QuoteAsset: "USDT", MinNotional: 5, StepSize: 0.0001, MinQty: 0.0001, Enabled: false},
	},
}

func init() {
	configs.Unmarshal(AppConfig)
}

// Validate 验证配置
func (c *Config) Validate() error {
	if _, err := timeframes.ParseTimeframe(c.Trading.Timeframe); err != nil {
		return fmt.Errorf("invalid timeframe: %w", err)
	}

	if c.Trading.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive")
	}

	switch c.Trading.Mode {
	case ModeBacktest, ModeDry, ModeLive:
	default:
		return fmt.Errorf("invalid trading mode: %s", c.Trading.Mode)
	}

	if c.Strategy.Name != "rsi_trailing" {
		return fmt.Errorf("unsupported strategy: %s", c.Strategy.Name)
	}

	if _, err := c.GetStrategyParams(); err != nil {
		return fmt.Errorf("invalid strategy parameters: %w", err)
	}

	if c.Backtest.Commission < 0 || c.Backtest.Commission >= 1 {
		return fmt.Errorf("commission must be in [0, 1), got %f", c.Backtest.Commission)
	}

	for _, sym := range c.Symbols {
		if sym.MinNotional < 0 || sym.StepSize < 0 || sym.MinQty < 0 {
			return fmt.Errorf("symbol %s: min_notional, step_size and min_qty must not be negative", sym.Pair())
		}
	}

	if c.Trading.Mode == ModeBacktest {
		start, end, err := c.GetBacktestRange(time.Now())
		if err != nil {
			return err
		}
		if !end.After(start) {
			return fmt.Errorf("backtest end %s must be after start %s", end.Format(dateLayout), start.Format(dateLayout))
		}
	}

	return nil
}

// GetTimeframe 获取时间周期
func (c *Config) GetTimeframe() (timeframes.Timeframe, error) {
	return timeframes.ParseTimeframe(c.Trading.Timeframe)
}

// GetStrategyParams 转换为策略参数并校验
func (c *Config) GetStrategyParams() (*strategy.RSITrailingParams, error) {
	mode, err := position.ParseResetMode(c.Strategy.Parameters.ResetMode)
	if err != nil {
		return nil, err
	}

	params := &strategy.RSITrailingParams{
		Period:        c.Strategy.Parameters.Period,
		Level:         c.Strategy.Parameters.Level,
		EntryFraction: c.Strategy.Parameters.EntryFraction,
		TrailPercent:  c.Strategy.Parameters.Trail,
		ResetMode:     mode,
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

// SetStrategyParams 回写策略参数（命令行覆盖后使用）
func (c *Config) SetStrategyParams(params *strategy.RSITrailingParams) {
	c.Strategy.Parameters = RSITrailingParameters{
		Period:        params.Period,
		Level:         params.Level,
		EntryFraction: params.EntryFraction,
		Trail:         params.TrailPercent,
		ResetMode:     string(params.ResetMode),
	}
}

// GetBacktestRange 计算回测时间范围
func (c *Config) GetBacktestRange(now time.Time) (time.Time, time.Time, error) {
	end := now.UTC()
	if c.Backtest.EndDate != "" {
		t, err := time.Parse(dateLayout, c.Backtest.EndDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date format: %s", c.Backtest.EndDate)
		}
		end = t
	}

	if c.Backtest.StartDate != "" {
		start, err := time.Parse(dateLayout, c.Backtest.StartDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date format: %s", c.Backtest.StartDate)
		}
		return start, end, nil
	}

	tf, err := c.GetTimeframe()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	step, err := tf.GetDuration()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if c.Backtest.LookbackBars <= 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("lookback bars must be positive when start date is empty")
	}
	return end.Add(-time.Duration(c.Backtest.LookbackBars) * step), end, nil
}

// GetInitialCapital 获取初始资金
func (c *Config) GetInitialCapital() decimal.Decimal {
	return decimal.NewFromFloat(c.Trading.InitialCapital)
}

// GetCommission 获取手续费率
func (c *Config) GetCommission() float64 {
	return c.Backtest.Commission
}

// GetPairs 获取启用的交易对
func (c *Config) GetPairs() []cex.TradingPair {
	pairs := make([]cex.TradingPair, 0, len(c.Symbols))
	for _, s := range c.Symbols {
		if s.Enabled {
			pairs = append(pairs, s.Pair())
		}
	}
	return pairs
}

// FindSymbol 查找交易对配置
func (c *Config) FindSymbol(pair cex.TradingPair) (SymbolInfo, bool) {
	for _, s := range c.Symbols {
		if s.Pair() == pair {
			return s, true
		}
	}
	return SymbolInfo{}, false
}

// GetSymbolFilters 交易对的下单规则，未配置的交易对不做限制
func (c *Config) GetSymbolFilters(pair cex.TradingPair) cex.SymbolFilters {
	s, ok := c.FindSymbol(pair)
	if !ok {
		return cex.SymbolFilters{}
	}
	return cex.SymbolFilters{
		MinNotional: decimal.NewFromFloat(s.MinNotional),
		StepSize:    decimal.NewFromFloat(s.StepSize),
		MinQty:      decimal.NewFromFloat(s.MinQty),
	}
}

// GetWarmupBars 实盘预热K线数量，不少于 period+1
func (c *Config) GetWarmupBars() int {
	need := c.Strategy.Parameters.Period + 1
	if c.Live.WarmupBars < need {
		return need
	}
	return c.Live.WarmupBars
}

// GetKlinePollInterval K线轮询间隔
func (c *Config) GetKlinePollInterval() time.Duration {
	if c.Live.KlinePollSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Live.KlinePollSeconds) * time.Second
}

// GetOrderPollInterval 订单状态轮询间隔
func (c *Config) GetOrderPollInterval() time.Duration {
	if c.Live.OrderPollMillis <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.Live.OrderPollMillis) * time.Millisecond
}

// IsLiveMode 是否为实盘模式
func (c *Config) IsLiveMode() bool {
	return c.Trading.Mode == ModeLive
}

// IsDryMode 是否为模拟盘模式
func (c *Config) IsDryMode() bool {
	return c.Trading.Mode == ModeDry
}

// IsBacktestMode 是否为回测模式
func (c *Config) IsBacktestMode() bool {
	return c.Trading.Mode == ModeBacktest
}

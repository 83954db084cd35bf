package strategies

import (
	"context"
	"fmt"

	"rsibot/src/cex"
	"rsibot/src/executor"
	"rsibot/src/indicators"
	"rsibot/src/position"
	"rsibot/src/strategy"

	"github.com/shopspring/decimal"
	"github.com/xpwu/go-log/log"
)

// RSITrailingStrategy RSI 低于阈值买入，移动止损卖出
type RSITrailingStrategy struct {
	pair      cex.TradingPair
	timeframe string
	params    strategy.RSITrailingParams

	indicator indicators.Indicator
	machine   *position.Machine
	newRef    func() string

	entryFraction decimal.Decimal
	lastState     indicators.IndicatorState
	bars          int
}

// Option 构造选项
type Option func(*RSITrailingStrategy)

// WithTimeframe 设置日志中展示的周期标签，如 M1
func WithTimeframe(label string) Option {
	return func(s *RSITrailingStrategy) {
		s.timeframe = label
	}
}

// WithIndicator 替换入场指标
func WithIndicator(indicator indicators.Indicator) Option {
	return func(s *RSITrailingStrategy) {
		s.indicator = indicator
	}
}

// WithOrderRefGenerator 替换订单引用生成器
func WithOrderRefGenerator(gen func() string) Option {
	return func(s *RSITrailingStrategy) {
		s.newRef = gen
	}
}

// NewRSITrailingStrategy 创建策略，每个交易对一个实例
func NewRSITrailingStrategy(pair cex.TradingPair, params *strategy.RSITrailingParams, opts ...Option) (*RSITrailingStrategy, error) {
	if params == nil {
		params = strategy.GetDefaultRSITrailingParams()
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid strategy params: %w", err)
	}

	machine, err := position.NewMachine(decimal.NewFromFloat(params.TrailPercent), params.ResetMode)
	if err != nil {
		return nil, err
	}

	s := &RSITrailingStrategy{
		pair:          pair,
		params:        *params,
		machine:       machine,
		newRef:        executor.NewOrderRef,
		entryFraction: decimal.NewFromFloat(params.EntryFraction),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.indicator == nil {
		sig, err := indicators.NewRSISignal(params.Period, params.Level)
		if err != nil {
			return nil, err
		}
		s.indicator = sig
	}
	return s, nil
}

// GetName 获取策略名称
func (s *RSITrailingStrategy) GetName() string {
	return "RSI Trailing Stop Strategy"
}

// GetParams 获取策略参数
func (s *RSITrailingStrategy) GetParams() map[string]interface{} {
	return s.params.ToMap()
}

// Position 当前持仓状态
func (s *RSITrailingStrategy) Position() position.Snapshot {
	return s.machine.Snapshot()
}

// Indicator 最近一次的指标状态
func (s *RSITrailingStrategy) Indicator() indicators.IndicatorState {
	return s.lastState
}

// OnBar 每根K线都推进指标与状态机，实时性标记只影响日志
func (s *RSITrailingStrategy) OnBar(ctx context.Context, kline *cex.KlineData, cash decimal.Decimal) (*executor.Intent, error) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("RSIStrategy")

	s.bars++
	state := s.indicator.Update(kline.Close)
	s.lastState = state

	s.logBar(ctx, kline, state, cash)

	if s.machine.BeginBar() {
		logger.Debug("延迟清理持仓记录", "pair", s.pair.String())
	}

	if s.machine.Snapshot().Status == position.Flat {
		return s.evaluateEntry(ctx, kline, state, cash)
	}
	return s.evaluateExit(ctx, kline)
}

func (s *RSITrailingStrategy) evaluateEntry(ctx context.Context, kline *cex.KlineData, state indicators.IndicatorState, cash decimal.Decimal) (*executor.Intent, error) {
	if !state.Below || !s.machine.CanEnter() {
		return nil, nil
	}

	ctx, logger := log.WithCtx(ctx)

	size := cash.Div(kline.Close).Mul(s.entryFraction)
	if !size.IsPositive() {
		logger.Info("可用资金不足，跳过入场", "pair", s.pair.String(), "cash", cash.String())
		return nil, nil
	}

	ref := s.newRef()
	if err := s.machine.Open(ref, kline.Close, size); err != nil {
		return nil, fmt.Errorf("open position: %w", err)
	}

	intent := &executor.Intent{
		OrderRef:    ref,
		TradingPair: s.pair,
		Side:        cex.OrderSideBuy,
		Size:        size,
		PriceRef:    kline.Close,
		Reason:      fmt.Sprintf("RSI %s < %v", state, s.params.Level),
		Timestamp:   kline.OpenTime,
	}
	logger.Info(fmt.Sprintf("📈 买入 %s size=%s @ %s", s.pair, size.StringFixed(6), kline.Close), "ref", ref, "rsi", state.String())
	return intent, nil
}

func (s *RSITrailingStrategy) evaluateExit(ctx context.Context, kline *cex.KlineData) (*executor.Intent, error) {
	stop, exit := s.machine.Track(kline.Close)
	if !exit {
		return nil, nil
	}

	ctx, logger := log.WithCtx(ctx)

	snap := s.machine.Snapshot()
	ref := s.newRef()
	if err := s.machine.RequestExit(ref); err != nil {
		return nil, fmt.Errorf("request exit: %w", err)
	}

	intent := &executor.Intent{
		OrderRef:    ref,
		TradingPair: s.pair,
		Side:        cex.OrderSideSell,
		Size:        snap.Quantity,
		PriceRef:    kline.Close,
		Reason:      fmt.Sprintf("close %s < trailing stop %s (highest %s)", kline.Close, stop.StringFixed(8), snap.HighestPrice),
		Timestamp:   kline.OpenTime,
	}
	logger.Info(fmt.Sprintf("📉 市价卖出 %s size=%s", s.pair, snap.Quantity.StringFixed(6)),
		"ref", ref,
		"close", kline.Close.String(),
		"stop", stop.String(),
		"highest", snap.HighestPrice.String(),
		"pending_buy", snap.PendingOrderRef)
	return intent, nil
}

// OnOrderEvent 订单对账，重复或未知的订单引用直接忽略
func (s *RSITrailingStrategy) OnOrderEvent(ctx context.Context, event executor.OrderEvent) bool {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("RSIStrategy")

	logger.Info(fmt.Sprintf("订单 %s %s %s %s %s @ %s",
		event.OrderRef, event.Status, sideLabel(event.Side), event.TradingPair, event.Size.StringFixed(6), event.ExecutedPrice))

	var matched bool
	switch event.Status {
	case executor.OrderStatusSubmitted:
		return false
	case executor.OrderStatusCompleted:
		logger.Info(fmt.Sprintf("%s %s 价格: %s, 金额: %s, 手续费: %s",
			sideLabel(event.Side), event.TradingPair,
			event.ExecutedPrice.StringFixed(2), event.ExecutedValue.StringFixed(2), event.Commission.StringFixed(2)))
		if event.Side == cex.OrderSideBuy {
			matched = s.machine.BuyFilled(event.OrderRef, event.ExecutedSize)
		} else {
			matched = s.machine.SellFilled(event.OrderRef)
		}
	case executor.OrderStatusRejected, executor.OrderStatusCancelled:
		logger.Error("订单未成交", "ref", event.OrderRef, "status", event.Status, "reason", event.Reason)
		if event.Side == cex.OrderSideBuy {
			matched = s.machine.BuyFailed(event.OrderRef)
		} else {
			matched = s.machine.SellFailed(event.OrderRef)
		}
	}

	if !matched {
		logger.Debug("忽略重复或未知的订单事件", "ref", event.OrderRef, "status", event.Status)
		return false
	}

	snap := s.machine.Snapshot()
	logger.Debug("持仓状态", "status", snap.Status.String(), "highest", snap.HighestPrice.String(),
		"pending", snap.PendingOrderRef, "exit", snap.ExitOrderRef)
	return true
}

// OnTradeClosed 平仓盈亏通知
func (s *RSITrailingStrategy) OnTradeClosed(ctx context.Context, trade executor.TradeSummary) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("RSIStrategy")

	logger.Info(fmt.Sprintf("平仓盈亏 %s 毛利=%s, 扣除手续费=%s",
		trade.TradingPair, trade.PnL.StringFixed(2), trade.PnLComm.StringFixed(2)),
		"entry", trade.EntryPrice.String(),
		"exit", trade.ExitPrice.String(),
		"size", trade.Size.String())
}

// logBar 打印K线、RSI和可用余额；数据缺口只记录一行
func (s *RSITrailingStrategy) logBar(ctx context.Context, kline *cex.KlineData, state indicators.IndicatorState, cash decimal.Decimal) {
	ctx, logger := log.WithCtx(ctx)

	if kline.State == cex.DataStateNone {
		logger.Info("数据缺口", "pair", s.pair.String(), "time", kline.OpenTime)
		return
	}

	logger.Debug(fmt.Sprintf("%s / %s [%s] - Open: %s, High: %s, Low: %s, Close: %s, Volume: %s - Live: %t",
		kline.OpenTime.Format("2006-01-02 15:04:05"),
		s.pair, s.timeframe,
		kline.Open, kline.High, kline.Low, kline.Close, kline.Volume,
		kline.State == cex.DataStateLive),
		"rsi", state.String(),
		"free_balance", cash.String()+" "+s.pair.Quote)
}

func sideLabel(side cex.OrderSide) string {
	if side == cex.OrderSideBuy {
		return "买入"
	}
	return "卖出"
}

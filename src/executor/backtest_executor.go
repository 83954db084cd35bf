package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rsibot/src/cex"

	"github.com/shopspring/decimal"
	"github.com/xpwu/go-log/log"
)

// DefaultCommission 默认手续费率 0.15%
var DefaultCommission = decimal.NewFromFloat(0.0015)

type openTrade struct {
	size       decimal.Decimal
	entryValue decimal.Decimal
	commission decimal.Decimal
	openedAt   time.Time
}

// BacktestExecutor 模拟撮合：市价单在下一根K线开盘价成交
// 回测和 dry-run 共用
type BacktestExecutor struct {
	mu sync.Mutex

	pair           cex.TradingPair
	initialCapital decimal.Decimal
	commission     decimal.Decimal

	cash      decimal.Decimal
	position  decimal.Decimal
	lastPrice decimal.Decimal

	pending []*Intent
	seen    map[string]struct{}
	trade   *openTrade
	sink    EventSink
	closed  bool

	stats Statistics
	peak  decimal.Decimal
}

// NewBacktestExecutor 创建回测执行器
func NewBacktestExecutor(pair cex.TradingPair, initialCapital decimal.Decimal) *BacktestExecutor {
	return &BacktestExecutor{
		pair:           pair,
		initialCapital: initialCapital,
		commission:     DefaultCommission,
		cash:           initialCapital,
		seen:           make(map[string]struct{}),
		peak:           initialCapital,
	}
}

// SetCommission 设置手续费率
func (e *BacktestExecutor) SetCommission(commission float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commission = decimal.NewFromFloat(commission)
}

// SetEventSink 设置事件接收方
func (e *BacktestExecutor) SetEventSink(sink EventSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = sink
}

// Submit 挂起订单，等待下一根K线撮合
func (e *BacktestExecutor) Submit(ctx context.Context, intent *Intent) (string, error) {
	if err := validateIntent(intent); err != nil {
		return "", err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", ErrExecutorClosed
	}
	if intent.TradingPair != e.pair {
		e.mu.Unlock()
		return "", fmt.Errorf("%w: %s != %s", ErrPairMismatch, intent.TradingPair, e.pair)
	}
	if _, dup := e.seen[intent.OrderRef]; dup {
		e.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrDuplicateOrderRef, intent.OrderRef)
	}
	e.seen[intent.OrderRef] = struct{}{}
	copied := *intent
	e.pending = append(e.pending, &copied)
	sink := e.sink
	e.mu.Unlock()

	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("BacktestExecutor")
	logger.Debug("订单已挂起", "ref", intent.OrderRef, "side", intent.Side, "size", intent.Size.String())

	if sink != nil {
		sink.OnOrderEvent(ctx, OrderEvent{
			OrderRef:    intent.OrderRef,
			TradingPair: intent.TradingPair,
			Status:      OrderStatusSubmitted,
			Side:        intent.Side,
			Size:        intent.Size,
			Timestamp:   intent.Timestamp,
		})
	}
	return intent.OrderRef, nil
}

// ProcessBar 用新K线的开盘价撮合所有挂单，再按收盘价估值
func (e *BacktestExecutor) ProcessBar(ctx context.Context, bar *cex.KlineData) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("BacktestExecutor")

	e.mu.Lock()
	var events []OrderEvent
	var trades []TradeSummary
	for _, intent := range e.pending {
		event, trade := e.fill(intent, bar)
		events = append(events, event)
		if trade != nil {
			trades = append(trades, *trade)
		}
	}
	e.pending = nil

	e.lastPrice = bar.Close
	e.markToMarket()
	sink := e.sink
	e.mu.Unlock()

	for _, event := range events {
		if event.Status == OrderStatusRejected {
			logger.Error("订单被拒绝", "ref", event.OrderRef, "side", event.Side, "reason", event.Reason)
		}
		if sink != nil {
			sink.OnOrderEvent(ctx, event)
		}
	}
	for _, trade := range trades {
		if sink != nil {
			sink.OnTradeClosed(ctx, trade)
		}
	}
}

// fill 撮合单个订单，调用方持有锁
func (e *BacktestExecutor) fill(intent *Intent, bar *cex.KlineData) (OrderEvent, *TradeSummary) {
	price := bar.Open
	value := intent.Size.Mul(price)
	commission := value.Mul(e.commission)

	event := OrderEvent{
		OrderRef:    intent.OrderRef,
		TradingPair: intent.TradingPair,
		Side:        intent.Side,
		Size:        intent.Size,
		Timestamp:   bar.OpenTime,
	}

	if intent.Side == cex.OrderSideBuy {
		cost := value.Add(commission)
		if e.cash.LessThan(cost) {
			e.stats.RejectedOrders++
			event.Status = OrderStatusRejected
			event.Reason = fmt.Sprintf("%s: required %s, available %s", ErrInsufficientCash, cost.StringFixed(4), e.cash.StringFixed(4))
			return event, nil
		}
		e.cash = e.cash.Sub(cost)
		e.position = e.position.Add(intent.Size)
		if e.trade == nil {
			e.trade = &openTrade{openedAt: bar.OpenTime}
		}
		e.trade.size = e.trade.size.Add(intent.Size)
		e.trade.entryValue = e.trade.entryValue.Add(value)
		e.trade.commission = e.trade.commission.Add(commission)
	} else {
		if e.position.LessThan(intent.Size) {
			e.stats.RejectedOrders++
			event.Status = OrderStatusRejected
			event.Reason = fmt.Sprintf("%s: required %s, available %s", ErrInsufficientPosition, intent.Size.String(), e.position.String())
			return event, nil
		}
		e.cash = e.cash.Add(value.Sub(commission))
		e.position = e.position.Sub(intent.Size)
	}

	e.stats.FilledOrders++
	e.stats.TotalCommission = e.stats.TotalCommission.Add(commission)

	event.Status = OrderStatusCompleted
	event.ExecutedPrice = price
	event.ExecutedSize = intent.Size
	event.ExecutedValue = value
	event.Commission = commission

	if intent.Side == cex.OrderSideSell && e.trade != nil {
		return event, e.closeTrade(intent.Size, value, commission, bar)
	}
	return event, nil
}

// closeTrade 按卖出比例结转成本，持仓归零时生成 TradeSummary
func (e *BacktestExecutor) closeTrade(size, exitValue, commission decimal.Decimal, bar *cex.KlineData) *TradeSummary {
	t := e.trade
	if t.size.IsZero() {
		e.trade = nil
		return nil
	}
	portion := size.Div(t.size)
	entryValue := t.entryValue.Mul(portion)
	entryCommission := t.commission.Mul(portion)

	t.size = t.size.Sub(size)
	t.entryValue = t.entryValue.Sub(entryValue)
	t.commission = t.commission.Sub(entryCommission)

	pnl := exitValue.Sub(entryValue)
	totalCommission := entryCommission.Add(commission)
	summary := &TradeSummary{
		TradingPair: e.pair,
		Size:        size,
		EntryPrice:  entryValue.Div(size),
		ExitPrice:   exitValue.Div(size),
		PnL:         pnl,
		PnLComm:     pnl.Sub(totalCommission),
		Commission:  totalCommission,
		OpenedAt:    t.openedAt,
		ClosedAt:    bar.OpenTime,
	}

	e.stats.TotalTrades++
	if summary.PnLComm.IsPositive() {
		e.stats.WinningTrades++
	} else {
		e.stats.LosingTrades++
	}

	if !t.size.IsPositive() {
		e.trade = nil
		return summary
	}
	return nil
}

// markToMarket 更新峰值与最大回撤，调用方持有锁
func (e *BacktestExecutor) markToMarket() {
	value := e.valueLocked()
	if value.GreaterThan(e.peak) {
		e.peak = value
	}
	if e.peak.IsPositive() {
		dd := e.peak.Sub(value).Div(e.peak)
		if dd.GreaterThan(e.stats.MaxDrawdown) {
			e.stats.MaxDrawdown = dd
		}
	}
}

func (e *BacktestExecutor) valueLocked() decimal.Decimal {
	return e.cash.Add(e.position.Mul(e.lastPrice))
}

// CancelPending 撤销所有未撮合的订单（数据结束时调用）
func (e *BacktestExecutor) CancelPending(ctx context.Context, reason string) {
	e.mu.Lock()
	pending := e.pending
	e.pending = nil
	sink := e.sink
	e.mu.Unlock()

	if sink == nil {
		return
	}
	for _, intent := range pending {
		sink.OnOrderEvent(ctx, OrderEvent{
			OrderRef:    intent.OrderRef,
			TradingPair: intent.TradingPair,
			Status:      OrderStatusCancelled,
			Side:        intent.Side,
			Size:        intent.Size,
			Reason:      reason,
			Timestamp:   intent.Timestamp,
		})
	}
}

// PendingCount 未撮合订单数
func (e *BacktestExecutor) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// AvailableCash 可用现金
func (e *BacktestExecutor) AvailableCash(ctx context.Context) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cash, nil
}

// Position 当前持仓
func (e *BacktestExecutor) Position(ctx context.Context) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position, nil
}

// Value 组合清算价值 = 现金 + 持仓 * 最新收盘价
func (e *BacktestExecutor) Value() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.valueLocked()
}

// GetName 获取执行器名称
func (e *BacktestExecutor) GetName() string {
	return "BacktestExecutor"
}

// Close 关闭执行器，之后的 Submit 返回 ErrExecutorClosed
func (e *BacktestExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Statistics 获取交易统计
func (e *BacktestExecutor) Statistics() Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := e.stats
	stats.InitialCapital = e.initialCapital
	stats.FinalValue = e.valueLocked()
	stats.Cash = e.cash
	stats.Position = e.position
	if e.initialCapital.IsPositive() {
		stats.TotalReturn = stats.FinalValue.Sub(e.initialCapital).Div(e.initialCapital)
	}
	return stats
}

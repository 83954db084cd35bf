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

// DefaultPollInterval 订单状态轮询间隔
const DefaultPollInterval = 2 * time.Second

type liveTrade struct {
	size       decimal.Decimal
	entryValue decimal.Decimal
	commission decimal.Decimal
	openedAt   time.Time
}

// LiveExecutor 实盘执行器：市价单提交到交易所，轮询订单直到终态
type LiveExecutor struct {
	cexClient    cex.CEXClient
	tradingPair  cex.TradingPair
	pollInterval time.Duration

	mu     sync.Mutex
	sink   EventSink
	trade  *liveTrade
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLiveExecutor 创建实盘交易执行器
func NewLiveExecutor(cexClient cex.CEXClient, pair cex.TradingPair) *LiveExecutor {
	ctx, cancel := context.WithCancel(context.Background())
	return &LiveExecutor{
		cexClient:    cexClient,
		tradingPair:  pair,
		pollInterval: DefaultPollInterval,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// SetPollInterval 设置轮询间隔
func (e *LiveExecutor) SetPollInterval(d time.Duration) {
	if d > 0 {
		e.pollInterval = d
	}
}

// SetEventSink 设置事件接收方
func (e *LiveExecutor) SetEventSink(sink EventSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = sink
}

// Submit 以订单引用作为 client order id 提交市价单
func (e *LiveExecutor) Submit(ctx context.Context, intent *Intent) (string, error) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("LiveExecutor")

	if err := validateIntent(intent); err != nil {
		return "", err
	}
	if intent.TradingPair != e.tradingPair {
		return "", fmt.Errorf("%w: %s != %s", ErrPairMismatch, intent.TradingPair, e.tradingPair)
	}

	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return "", ErrExecutorClosed
	}

	var result *cex.OrderResult
	var err error
	if intent.Side == cex.OrderSideBuy {
		result, err = e.cexClient.Buy(ctx, cex.BuyOrderRequest{
			TradingPair:   intent.TradingPair,
			Type:          cex.OrderTypeMarket,
			Quantity:      intent.Size,
			ClientOrderID: intent.OrderRef,
		})
	} else {
		result, err = e.cexClient.Sell(ctx, cex.SellOrderRequest{
			TradingPair:   intent.TradingPair,
			Type:          cex.OrderTypeMarket,
			Quantity:      intent.Size,
			ClientOrderID: intent.OrderRef,
		})
	}
	if err != nil {
		logger.Error("下单失败", "ref", intent.OrderRef, "side", intent.Side, "error", err)
		return "", fmt.Errorf("submit %s order: %w", intent.Side, err)
	}

	logger.Info("TRADE_RECORD",
		"mode", "LIVE",
		"action", intent.Side,
		"ref", intent.OrderRef,
		"cex_order_id", result.OrderID,
		"symbol", intent.TradingPair.String(),
		"quantity", intent.Size.String(),
		"status", result.Status,
		"reason", intent.Reason)

	e.emitOrder(ctx, OrderEvent{
		OrderRef:        intent.OrderRef,
		ExchangeOrderID: result.OrderID,
		TradingPair:     intent.TradingPair,
		Status:          OrderStatusSubmitted,
		Side:            intent.Side,
		Size:            intent.Size,
		Timestamp:       result.TransactTime,
	})

	if result.IsTerminal() {
		e.handleResult(ctx, intent, result)
		return intent.OrderRef, nil
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return intent.OrderRef, nil
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go e.poll(*intent)
	return intent.OrderRef, nil
}

// poll 轮询订单直到终态或执行器关闭
func (e *LiveExecutor) poll(intent Intent) {
	defer e.wg.Done()

	ctx, logger := log.WithCtx(e.ctx)
	logger.PushPrefix("LiveExecutor")

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("停止轮询订单", "ref", intent.OrderRef)
			return
		case <-ticker.C:
			result, err := e.cexClient.GetOrder(ctx, intent.TradingPair, intent.OrderRef)
			if err != nil {
				logger.Error("查询订单失败", "ref", intent.OrderRef, "error", err)
				continue
			}
			if result.IsTerminal() {
				e.handleResult(ctx, &intent, result)
				return
			}
		}
	}
}

// handleResult 终态订单转换为 OrderEvent，并维护成交汇总
func (e *LiveExecutor) handleResult(ctx context.Context, intent *Intent, result *cex.OrderResult) {
	event := OrderEvent{
		OrderRef:        intent.OrderRef,
		ExchangeOrderID: result.OrderID,
		TradingPair:     intent.TradingPair,
		Status:          MapExchangeStatus(result.Status, result.Quantity),
		Side:            intent.Side,
		Size:            intent.Size,
		ExecutedPrice:   result.Price,
		ExecutedSize:    result.Quantity,
		ExecutedValue:   result.QuoteQuantity,
		Commission:      result.Commission,
		Timestamp:       result.TransactTime,
	}
	if event.ExecutedValue.IsZero() {
		event.ExecutedValue = result.Price.Mul(result.Quantity)
	}
	if intent.Side == cex.OrderSideBuy && result.CommissionAsset == intent.TradingPair.Base && result.Commission.IsPositive() {
		// 手续费从买到的基础货币中扣除，实际到账的是净数量
		event.ExecutedSize = result.Quantity.Sub(result.Commission)
		event.Commission = result.Commission.Mul(result.Price)
	} else if event.Commission.IsZero() {
		event.Commission = calculateCommission(event.ExecutedValue, e.cexClient.GetTradingFee())
	}
	if event.Status != OrderStatusCompleted {
		event.Reason = result.Status
	}

	e.emitOrder(ctx, event)

	if event.Status != OrderStatusCompleted {
		return
	}
	if trade := e.recordFill(event); trade != nil {
		e.mu.Lock()
		sink := e.sink
		e.mu.Unlock()
		if sink != nil {
			sink.OnTradeClosed(ctx, *trade)
		}
	}
}

// recordFill 买入累计成本，卖出结转并在仓位归零时生成汇总
func (e *LiveExecutor) recordFill(event OrderEvent) *TradeSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	if event.Side == cex.OrderSideBuy {
		if e.trade == nil {
			e.trade = &liveTrade{openedAt: event.Timestamp}
		}
		// 成本只计入到账数量，基础货币手续费单独计入 commission
		entryValue := event.ExecutedValue
		if event.ExecutedPrice.IsPositive() {
			entryValue = event.ExecutedSize.Mul(event.ExecutedPrice)
		}
		e.trade.size = e.trade.size.Add(event.ExecutedSize)
		e.trade.entryValue = e.trade.entryValue.Add(entryValue)
		e.trade.commission = e.trade.commission.Add(event.Commission)
		return nil
	}

	if e.trade == nil || !e.trade.size.IsPositive() || !event.ExecutedSize.IsPositive() {
		return nil
	}

	size := decimal.Min(event.ExecutedSize, e.trade.size)
	portion := size.Div(e.trade.size)
	entryValue := e.trade.entryValue.Mul(portion)
	entryCommission := e.trade.commission.Mul(portion)
	pnl := event.ExecutedValue.Sub(entryValue)
	commission := entryCommission.Add(event.Commission)

	summary := &TradeSummary{
		TradingPair: event.TradingPair,
		Size:        size,
		EntryPrice:  entryValue.Div(size),
		ExitPrice:   event.ExecutedPrice,
		PnL:         pnl,
		PnLComm:     pnl.Sub(commission),
		Commission:  commission,
		OpenedAt:    e.trade.openedAt,
		ClosedAt:    event.Timestamp,
	}

	e.trade.size = e.trade.size.Sub(size)
	e.trade.entryValue = e.trade.entryValue.Sub(entryValue)
	e.trade.commission = e.trade.commission.Sub(entryCommission)
	if !e.trade.size.IsPositive() {
		e.trade = nil
	}
	return summary
}

func (e *LiveExecutor) emitOrder(ctx context.Context, event OrderEvent) {
	e.mu.Lock()
	sink := e.sink
	e.mu.Unlock()
	if sink != nil {
		sink.OnOrderEvent(ctx, event)
	}
}

// MapExchangeStatus 交易所状态映射；撤销但有部分成交视为完成
func MapExchangeStatus(status string, executed decimal.Decimal) OrderStatus {
	switch status {
	case cex.OrderStatusFilled:
		return OrderStatusCompleted
	case cex.OrderStatusCanceled, cex.OrderStatusExpired:
		if executed.IsPositive() {
			return OrderStatusCompleted
		}
		return OrderStatusCancelled
	case cex.OrderStatusRejected:
		return OrderStatusRejected
	}
	return OrderStatusSubmitted
}

// AvailableCash 计价货币可用余额
func (e *LiveExecutor) AvailableCash(ctx context.Context) (decimal.Decimal, error) {
	balances, err := e.cexClient.GetAccount(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get account: %w", err)
	}
	return cex.FreeBalance(balances, e.tradingPair.Quote), nil
}

// Position 基础货币可用余额
func (e *LiveExecutor) Position(ctx context.Context) (decimal.Decimal, error) {
	balances, err := e.cexClient.GetAccount(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get account: %w", err)
	}
	return cex.FreeBalance(balances, e.tradingPair.Base), nil
}

// GetName 获取执行器名称
func (e *LiveExecutor) GetName() string {
	return "LiveExecutor"
}

// Close 停止所有轮询并等待退出
func (e *LiveExecutor) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
	return nil
}

// calculateCommission 交易所未返回手续费时按费率估算
func calculateCommission(notional decimal.Decimal, feeRate float64) decimal.Decimal {
	return notional.Mul(decimal.NewFromFloat(feeRate))
}

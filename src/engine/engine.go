package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"rsibot/src/cex"
	"rsibot/src/executor"
	"rsibot/src/position"
	"rsibot/src/strategy"

	"github.com/shopspring/decimal"
	"github.com/xpwu/go-log/log"
	"golang.org/x/sync/errgroup"
)

// barProcessor 模拟撮合的执行器在每根K线开始时撮合挂单
type barProcessor interface {
	ProcessBar(ctx context.Context, bar *cex.KlineData)
}

// pendingCanceller 数据结束时撤销挂单
type pendingCanceller interface {
	CancelPending(ctx context.Context, reason string)
}

// terminalWindow 保留的终态订单数量
//
// 单交易对同时最多一笔未完成订单，重复回报只会来自最近的几笔订单。
const terminalWindow = 256

// Engine 单交易对的交易引擎（支持回测和实盘）
//
// K线、订单事件和平仓事件在同一把锁下按到达顺序处理。
// 提交订单不持有锁，执行器可以在 Submit 中同步回调 OnOrderEvent。
type Engine struct {
	mu sync.Mutex

	tradingPair cex.TradingPair
	strategy    strategy.Strategy
	executor    executor.Executor
	handlers    *IntentHandlerRegistry

	// 最近已对账的终态订单，超过 terminalWindow 时淘汰最早的
	terminal      map[string]struct{}
	terminalOrder []string
	barCount      int

	// 实盘运行期间非空
	queue atomic.Pointer[eventQueue]

	stopOnce sync.Once
	stopChan chan struct{}
}

// NewEngine 创建交易引擎，并把自己注册为执行器的事件接收方
func NewEngine(pair cex.TradingPair, strat strategy.Strategy, exec executor.Executor) *Engine {
	e := &Engine{
		tradingPair: pair,
		strategy:    strat,
		executor:    exec,
		handlers:    NewIntentHandlerRegistry(),
		terminal:    make(map[string]struct{}),
		stopChan:    make(chan struct{}),
	}

	e.SetSymbolFilters(cex.SymbolFilters{})

	exec.SetEventSink(e)
	return e
}

// SetSymbolFilters 设置交易对下单规则（步长、最小数量、最小金额）
func (e *Engine) SetSymbolFilters(filters cex.SymbolFilters) {
	e.handlers.RegisterHandler(cex.OrderSideBuy, NewBuyIntentHandler(e.executor, filters))
	e.handlers.RegisterHandler(cex.OrderSideSell, NewSellIntentHandler(e.executor, filters))
}

// Handlers 交易意图处理器注册表
func (e *Engine) Handlers() *IntentHandlerRegistry {
	return e.handlers
}

// TradingPair 交易对
func (e *Engine) TradingPair() cex.TradingPair {
	return e.tradingPair
}

// Strategy 策略
func (e *Engine) Strategy() strategy.Strategy {
	return e.strategy
}

// Executor 执行器
func (e *Engine) Executor() executor.Executor {
	return e.executor
}

// Position 当前持仓状态
func (e *Engine) Position() position.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.strategy.Position()
}

// BarCount 已处理的K线数量
func (e *Engine) BarCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.barCount
}

// HandleBar 处理一根K线：读取余额、调用策略、分发交易意图
//
// 同步提交失败会转为同一 ref 的 Rejected 事件。
func (e *Engine) HandleBar(ctx context.Context, bar *cex.KlineData) error {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Engine")

	cash, err := e.executor.AvailableCash(ctx)
	if err != nil {
		logger.Error("获取可用余额失败", "error", err)
		cash = decimal.Zero
	}

	e.mu.Lock()
	intent, err := e.strategy.OnBar(ctx, bar, cash)
	e.barCount++
	e.mu.Unlock()

	if err != nil {
		return fmt.Errorf("strategy %s: %w", e.strategy.GetName(), err)
	}
	if intent == nil {
		return nil
	}

	if err := e.handlers.HandleIntent(ctx, intent); err != nil {
		logger.Error("处理交易意图失败", "ref", intent.OrderRef, "side", intent.Side, "error", err)
		e.applyOrderEvent(ctx, executor.RejectedEvent(intent, err))
	}
	return nil
}

// OnOrderEvent 实现 executor.EventSink
func (e *Engine) OnOrderEvent(ctx context.Context, event executor.OrderEvent) {
	if q := e.queue.Load(); q != nil && q.push(func(ctx context.Context) { e.applyOrderEvent(ctx, event) }) {
		return
	}
	e.applyOrderEvent(ctx, event)
}

// OnTradeClosed 实现 executor.EventSink
func (e *Engine) OnTradeClosed(ctx context.Context, trade executor.TradeSummary) {
	if q := e.queue.Load(); q != nil && q.push(func(ctx context.Context) { e.applyTradeClosed(ctx, trade) }) {
		return
	}
	e.applyTradeClosed(ctx, trade)
}

func (e *Engine) applyOrderEvent(ctx context.Context, event executor.OrderEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, done := e.terminal[event.OrderRef]; done {
		_, logger := log.WithCtx(ctx)
		logger.PushPrefix("Engine")
		logger.Debug("订单已对账，忽略重复事件", "ref", event.OrderRef, "status", event.Status)
		return
	}
	if event.Status.IsTerminal() {
		e.markTerminal(event.OrderRef)
	}

	e.strategy.OnOrderEvent(ctx, event)
}

// markTerminal 记录终态订单，调用方持有锁
func (e *Engine) markTerminal(ref string) {
	e.terminal[ref] = struct{}{}
	e.terminalOrder = append(e.terminalOrder, ref)
	if len(e.terminalOrder) > terminalWindow {
		delete(e.terminal, e.terminalOrder[0])
		e.terminalOrder = e.terminalOrder[1:]
	}
}

func (e *Engine) applyTradeClosed(ctx context.Context, trade executor.TradeSummary) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategy.OnTradeClosed(ctx, trade)
}

// RunBacktest 串行驱动回测数据，每根K线先撮合上一根的挂单
func (e *Engine) RunBacktest(ctx context.Context, feed DataFeed) error {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Engine")

	logger.Info(fmt.Sprintf("开始回测: symbol=%s, strategy=%s, executor=%s",
		e.tradingPair.String(), e.strategy.GetName(), e.executor.GetName()))

	if err := feed.Start(ctx); err != nil {
		return fmt.Errorf("failed to start data feed: %w", err)
	}
	defer feed.Stop()

	processor, _ := e.executor.(barProcessor)

	count := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.stopChan:
			logger.Info("手动停止回测")
			e.cancelPending(ctx, "回测停止")
			return nil
		default:
		}

		bar, err := feed.GetNext(ctx)
		if err != nil {
			return fmt.Errorf("failed to read data feed: %w", err)
		}
		if bar == nil {
			break
		}

		if processor != nil {
			processor.ProcessBar(ctx, bar)
		}
		if err := e.HandleBar(ctx, bar); err != nil {
			logger.Error("策略执行失败", "error", err)
		}

		count++
		if count%100 == 0 {
			logger.Info(fmt.Sprintf("回测进度: kline=%d, time=%s", count, bar.OpenTime.Format("2006-01-02 15:04")))
		}
	}

	e.cancelPending(ctx, "数据结束")
	logger.Info(fmt.Sprintf("回测完成: klines=%d", count))
	return nil
}

// RunLive 实盘运行
//
// 数据喂入和执行器回调都进入同一个队列，由一个 goroutine 消费。
func (e *Engine) RunLive(ctx context.Context, feed DataFeed) error {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Engine")

	logger.Info("开始实盘交易", "symbol", e.tradingPair.String(), "executor", e.executor.GetName())

	if err := feed.Start(ctx); err != nil {
		return fmt.Errorf("failed to start data feed: %w", err)
	}

	q := newEventQueue()
	e.queue.Store(q)
	defer e.queue.Store(nil)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	processor, _ := e.executor.(barProcessor)
	g, gctx := errgroup.WithContext(runCtx)

	// 停止信号
	g.Go(func() error {
		select {
		case <-e.stopChan:
			logger.Info("手动停止实盘交易")
			cancel()
		case <-gctx.Done():
		}
		return feed.Stop()
	})

	// 生产者：数据喂入
	g.Go(func() error {
		defer q.close()
		for {
			bar, err := feed.GetNext(gctx)
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				logger.Error("获取实时数据失败", "error", err)
				continue
			}
			if bar == nil {
				logger.Info("数据流结束")
				return nil
			}

			// 上一根K线处理完之后才喂入下一根，撮合事件先于本根K线的决策
			done := make(chan struct{})
			q.pushBar(func(ctx context.Context) {
				if processor != nil {
					processor.ProcessBar(ctx, bar)
				}
				handle := func(ctx context.Context) {
					defer close(done)
					if err := e.HandleBar(ctx, bar); err != nil {
						logger.Error("处理实时数据失败", "error", err)
					}
				}
				if !q.pushBar(handle) {
					handle(ctx)
				}
			})

			select {
			case <-done:
			case <-gctx.Done():
				return nil
			}
		}
	})

	// 消费者
	g.Go(func() error {
		defer cancel()
		for {
			fn, ok := q.pop(gctx)
			if !ok {
				return nil
			}
			fn(gctx)
		}
	})

	err := g.Wait()

	// 退出前处理剩余事件，保证状态已对账
	rest := context.WithoutCancel(ctx)
	for _, fn := range q.drain() {
		fn(rest)
	}
	e.cancelPending(rest, "实盘停止")

	logger.Info("实盘交易结束")
	return err
}

func (e *Engine) cancelPending(ctx context.Context, reason string) {
	if c, ok := e.executor.(pendingCanceller); ok {
		c.CancelPending(ctx, reason)
	}
}

// Stop 停止运行
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopChan)
	})
}

// Close 关闭引擎
func (e *Engine) Close() error {
	e.Stop()
	return e.executor.Close()
}

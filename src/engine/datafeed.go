package engine

import (
	"context"
	"time"

	"rsibot/src/cex"

	"github.com/xpwu/go-log/log"
)

// DataFeed 统一的数据喂入接口
type DataFeed interface {
	// Start 开始数据流
	Start(ctx context.Context) error

	// GetNext 获取下一个K线数据
	// 返回nil表示数据流结束
	GetNext(ctx context.Context) (*cex.KlineData, error)

	// Stop 停止数据流
	Stop() error

	// GetCurrentTime 获取当前数据时间
	GetCurrentTime() time.Time
}

// BacktestDataFeed 回测数据喂入器，输出的K线标记为 History
type BacktestDataFeed struct {
	klines      []*cex.KlineData
	currentIdx  int
	currentTime time.Time
	last        *cex.KlineData
	dropped     int
	finished    bool
}

// NewBacktestDataFeed 创建回测数据喂入器
func NewBacktestDataFeed(klines []*cex.KlineData) *BacktestDataFeed {
	f := &BacktestDataFeed{klines: klines}
	f.reset()
	return f
}

func (f *BacktestDataFeed) reset() {
	f.currentIdx = 0
	f.finished = false
	f.last = nil
	f.dropped = 0
	if len(f.klines) > 0 {
		f.currentTime = f.klines[0].OpenTime
	} else {
		f.currentTime = time.Now()
	}
}

func (f *BacktestDataFeed) Start(ctx context.Context) error {
	f.reset()
	return nil
}

// GetNext 跳过校验失败的K线
func (f *BacktestDataFeed) GetNext(ctx context.Context) (*cex.KlineData, error) {
	for !f.finished && f.currentIdx < len(f.klines) {
		kline := f.klines[f.currentIdx]
		f.currentIdx++

		if err := cex.ValidateKline(f.last, kline); err != nil {
			f.dropped++
			_, logger := log.WithCtx(ctx)
			logger.PushPrefix("DataFeed")
			logger.Error("丢弃无效K线", "error", err)
			continue
		}

		kline.State = cex.DataStateHistory
		f.last = kline
		f.currentTime = kline.OpenTime
		return kline, nil
	}

	f.finished = true
	return nil, nil
}

func (f *BacktestDataFeed) Stop() error {
	f.finished = true
	return nil
}

func (f *BacktestDataFeed) GetCurrentTime() time.Time {
	return f.currentTime
}

// Dropped 被丢弃的K线数量
func (f *BacktestDataFeed) Dropped() int {
	return f.dropped
}

// maxFetchLimit 单次请求K线数量上限（币安限制）
const maxFetchLimit = 1000

// LiveDataFeed 实盘数据喂入器
//
// 每次轮询只取已收盘的K线，同一根K线只输出一次；轮询间隔内漏掉的K线会被补齐。
type LiveDataFeed struct {
	cexClient   cex.CEXClient
	tradingPair cex.TradingPair
	interval    string
	ticker      *time.Ticker
	stopChan    chan struct{}
	currentTime time.Time

	warmup     int
	fetchLimit int
	queue      []*cex.KlineData
	last       *cex.KlineData
}

// NewLiveDataFeed 创建实盘数据喂入器
func NewLiveDataFeed(cexClient cex.CEXClient, tradingPair cex.TradingPair, interval string, tickerInterval time.Duration) *LiveDataFeed {
	return &LiveDataFeed{
		cexClient:   cexClient,
		tradingPair: tradingPair,
		interval:    interval,
		ticker:      time.NewTicker(tickerInterval),
		stopChan:    make(chan struct{}),
		currentTime: time.Now(),
		fetchLimit:  5,
	}
}

// SetWarmup 启动时先输出 n 根历史K线用于指标预热
func (f *LiveDataFeed) SetWarmup(n int) {
	f.warmup = n
}

func (f *LiveDataFeed) Start(ctx context.Context) error {
	f.currentTime = time.Now()
	if f.warmup <= 0 {
		return nil
	}

	// 多取一根：最后一根尚未收盘
	klines, err := f.cexClient.GetKlines(ctx, f.tradingPair, f.interval, f.warmup+1)
	if err != nil {
		return err
	}
	f.enqueue(ctx, closedKlines(klines), cex.DataStateHistory)
	return nil
}

func (f *LiveDataFeed) GetNext(ctx context.Context) (*cex.KlineData, error) {
	for {
		if len(f.queue) > 0 {
			kline := f.queue[0]
			f.queue = f.queue[1:]
			f.currentTime = kline.OpenTime
			return kline, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-f.stopChan:
			return nil, nil // 数据流结束
		case <-f.ticker.C:
			limit := f.fetchLimit
			if f.last != nil {
				if gap := f.missedBars(time.Now()); gap+1 > limit {
					limit = min(gap+1, maxFetchLimit)
				}
			}

			klines, err := f.cexClient.GetKlines(ctx, f.tradingPair, f.interval, limit)
			if err != nil {
				return nil, err
			}
			f.enqueue(ctx, closedKlines(klines), cex.DataStateLive)
		}
	}
}

// missedBars 距上一根已输出K线的周期数
func (f *LiveDataFeed) missedBars(now time.Time) int {
	if f.last == nil {
		return 0
	}
	step := f.last.CloseTime.Sub(f.last.OpenTime)
	if step <= 0 {
		return 0
	}
	return int(now.Sub(f.last.OpenTime) / step)
}

func (f *LiveDataFeed) enqueue(ctx context.Context, klines []*cex.KlineData, state cex.DataState) {
	for _, kline := range klines {
		if f.last != nil && !kline.OpenTime.After(f.last.OpenTime) {
			continue
		}
		if err := cex.ValidateKline(f.last, kline); err != nil {
			_, logger := log.WithCtx(ctx)
			logger.PushPrefix("DataFeed")
			logger.Error("丢弃无效K线", "error", err)
			continue
		}
		kline.State = state
		f.last = kline
		f.queue = append(f.queue, kline)
	}
}

// closedKlines 去掉最后一根未收盘的K线
func closedKlines(klines []*cex.KlineData) []*cex.KlineData {
	if len(klines) < 2 {
		return nil
	}
	return klines[:len(klines)-1]
}

func (f *LiveDataFeed) Stop() error {
	// 安全地关闭channel，防止重复关闭
	select {
	case <-f.stopChan:
	default:
		close(f.stopChan)
	}

	if f.ticker != nil {
		f.ticker.Stop()
	}
	return nil
}

func (f *LiveDataFeed) GetCurrentTime() time.Time {
	return f.currentTime
}

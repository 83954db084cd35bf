package executor

import (
	"context"
	"sync"
	"time"

	"rsibot/src/cex"

	"github.com/shopspring/decimal"
)

var testPair = cex.TradingPair{Base: "CTT", Quote: "USDT"}

// recordingSink 记录收到的所有事件
type recordingSink struct {
	mu     sync.Mutex
	orders []OrderEvent
	trades []TradeSummary
}

func (s *recordingSink) OnOrderEvent(ctx context.Context, event OrderEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, event)
}

func (s *recordingSink) OnTradeClosed(ctx context.Context, trade TradeSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, trade)
}

func (s *recordingSink) Orders() []OrderEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]OrderEvent(nil), s.orders...)
}

func (s *recordingSink) Trades() []TradeSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TradeSummary(nil), s.trades...)
}

func (s *recordingSink) statuses() []OrderStatus {
	var result []OrderStatus
	for _, e := range s.Orders() {
		result = append(result, e.Status)
	}
	return result
}

func testBar(minute int, open, close float64) *cex.KlineData {
	t := time.Date(2024, 1, 1, 0, minute, 0, 0, time.UTC)
	return &cex.KlineData{
		TradingPair: testPair,
		OpenTime:    t,
		CloseTime:   t.Add(time.Minute - time.Millisecond),
		Open:        decimal.NewFromFloat(open),
		High:        decimal.NewFromFloat(max(open, close)),
		Low:         decimal.NewFromFloat(min(open, close)),
		Close:       decimal.NewFromFloat(close),
		Volume:      decimal.NewFromInt(100),
		State:       cex.DataStateHistory,
	}
}

func testIntent(ref string, side cex.OrderSide, size float64) *Intent {
	return &Intent{
		OrderRef:    ref,
		TradingPair: testPair,
		Side:        side,
		Size:        decimal.NewFromFloat(size),
		PriceRef:    decimal.NewFromInt(10),
		Timestamp:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

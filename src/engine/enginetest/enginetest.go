// Package enginetest 提供引擎和交易系统测试共用的模拟交易所与K线构造
package enginetest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"rsibot/src/cex"

	"github.com/shopspring/decimal"
)

// TestError 模拟交易所返回的错误
var TestError = errors.New("test error")

// MockCEXClient 用于测试的CEX客户端mock
//
// 市价单按最后一根K线的收盘价立即成交。
type MockCEXClient struct {
	mu sync.Mutex

	ShouldError bool
	CallCount   int

	Klines   []*cex.KlineData
	Balances []*cex.AccountBalance
	Orders   []cex.OrderResult
}

func (m *MockCEXClient) GetName() string {
	return "mock_cex"
}

func (m *MockCEXClient) GetTradingFee() float64 {
	return 0.001
}

func (m *MockCEXClient) GetKlines(ctx context.Context, pair cex.TradingPair, interval string, limit int) ([]*cex.KlineData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount++
	if m.ShouldError {
		return nil, TestError
	}
	klines := m.Klines
	if limit > 0 && len(klines) > limit {
		klines = klines[len(klines)-limit:]
	}
	return copyKlines(klines), nil
}

func (m *MockCEXClient) GetKlinesWithTimeRange(ctx context.Context, pair cex.TradingPair, interval string, startTime, endTime time.Time, limit int) ([]*cex.KlineData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount++
	if m.ShouldError {
		return nil, TestError
	}
	var result []*cex.KlineData
	for _, k := range m.Klines {
		if k.OpenTime.Before(startTime) || k.OpenTime.After(endTime) {
			continue
		}
		result = append(result, k)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return copyKlines(result), nil
}

// AppendKline 追加一根K线，模拟行情推进
func (m *MockCEXClient) AppendKline(k *cex.KlineData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Klines = append(m.Klines, k)
}

func (m *MockCEXClient) lastPrice() decimal.Decimal {
	if len(m.Klines) == 0 {
		return decimal.NewFromInt(1)
	}
	return m.Klines[len(m.Klines)-1].Close
}

func (m *MockCEXClient) fill(pair cex.TradingPair, side cex.OrderSide, ref string, qty decimal.Decimal) *cex.OrderResult {
	price := m.lastPrice()
	result := cex.OrderResult{
		TradingPair:   pair,
		OrderID:       strings.ToUpper(ref),
		ClientOrderID: ref,
		Price:         price,
		Quantity:      qty,
		QuoteQuantity: qty.Mul(price),
		Side:          side,
		Status:        cex.OrderStatusFilled,
		Type:          cex.OrderTypeMarket,
		TransactTime:  time.Now(),
	}
	m.Orders = append(m.Orders, result)
	return &result
}

func (m *MockCEXClient) Buy(ctx context.Context, req cex.BuyOrderRequest) (*cex.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount++
	if m.ShouldError {
		return nil, TestError
	}
	return m.fill(req.TradingPair, cex.OrderSideBuy, req.ClientOrderID, req.Quantity), nil
}

func (m *MockCEXClient) Sell(ctx context.Context, req cex.SellOrderRequest) (*cex.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount++
	if m.ShouldError {
		return nil, TestError
	}
	return m.fill(req.TradingPair, cex.OrderSideSell, req.ClientOrderID, req.Quantity), nil
}

func (m *MockCEXClient) GetOrder(ctx context.Context, pair cex.TradingPair, clientOrderID string) (*cex.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount++
	if m.ShouldError {
		return nil, TestError
	}
	for i := range m.Orders {
		if m.Orders[i].ClientOrderID == clientOrderID {
			result := m.Orders[i]
			return &result, nil
		}
	}
	return nil, errors.New("order not found")
}

func (m *MockCEXClient) GetAccount(ctx context.Context) ([]*cex.AccountBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount++
	if m.ShouldError {
		return nil, TestError
	}
	return m.Balances, nil
}

func (m *MockCEXClient) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount++
	if m.ShouldError {
		return TestError
	}
	return nil
}

// Calls 调用次数
func (m *MockCEXClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

func copyKlines(klines []*cex.KlineData) []*cex.KlineData {
	result := make([]*cex.KlineData, len(klines))
	for i, k := range klines {
		c := *k
		result[i] = &c
	}
	return result
}

// CreateTestKlines 按收盘价序列创建测试K线，开盘价等于上一根的收盘价
func CreateTestKlines(pair cex.TradingPair, closes []float64, startTime time.Time, interval time.Duration) []*cex.KlineData {
	klines := make([]*cex.KlineData, len(closes))
	prev := decimal.NewFromFloat(closes[0])

	for i, c := range closes {
		closePrice := decimal.NewFromFloat(c)
		openTime := startTime.Add(time.Duration(i) * interval)
		klines[i] = &cex.KlineData{
			TradingPair: pair,
			OpenTime:    openTime,
			CloseTime:   openTime.Add(interval - time.Millisecond),
			Open:        prev,
			High:        decimal.Max(prev, closePrice),
			Low:         decimal.Min(prev, closePrice),
			Close:       closePrice,
			Volume:      decimal.NewFromInt(1000),
		}
		prev = closePrice
	}

	return klines
}

package cex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCEXClient 实现 CEXClient 接口用于测试
type mockCEXClient struct {
	name string
}

func (m *mockCEXClient) GetName() string        { return m.name }
func (m *mockCEXClient) GetTradingFee() float64 { return 0.001 }

func (m *mockCEXClient) GetKlines(ctx context.Context, pair TradingPair, interval string, limit int) ([]*KlineData, error) {
	return []*KlineData{}, nil
}

func (m *mockCEXClient) GetKlinesWithTimeRange(ctx context.Context, pair TradingPair, interval string, startTime, endTime time.Time, limit int) ([]*KlineData, error) {
	return []*KlineData{}, nil
}

func (m *mockCEXClient) Buy(ctx context.Context, order BuyOrderRequest) (*OrderResult, error) {
	return &OrderResult{ClientOrderID: order.ClientOrderID, Side: OrderSideBuy, Status: OrderStatusFilled}, nil
}

func (m *mockCEXClient) Sell(ctx context.Context, order SellOrderRequest) (*OrderResult, error) {
	return &OrderResult{ClientOrderID: order.ClientOrderID, Side: OrderSideSell, Status: OrderStatusFilled}, nil
}

func (m *mockCEXClient) GetOrder(ctx context.Context, pair TradingPair, clientOrderID string) (*OrderResult, error) {
	return &OrderResult{ClientOrderID: clientOrderID, Status: OrderStatusFilled}, nil
}

func (m *mockCEXClient) GetAccount(ctx context.Context) ([]*AccountBalance, error) {
	return []*AccountBalance{}, nil
}

func (m *mockCEXClient) Ping(ctx context.Context) error { return nil }

type mockFactory struct {
	name string
}

func (f *mockFactory) CreateClient() CEXClient {
	return &mockCEXClient{name: f.name}
}

func TestRegisterAndCreateCEXClient(t *testing.T) {
	RegisterCEXFactory("mock_a", &mockFactory{name: "mock_a"})
	RegisterCEXFactory("mock_b", &mockFactory{name: "mock_b"})

	client, err := CreateCEXClient("mock_a")
	require.NoError(t, err)
	assert.Equal(t, "mock_a", client.GetName())

	// 同名覆盖
	RegisterCEXFactory("mock_a", &mockFactory{name: "mock_a2"})
	client, err = CreateCEXClient("mock_a")
	require.NoError(t, err)
	assert.Equal(t, "mock_a2", client.GetName())

	supported := GetSupportedCEXes()
	assert.Contains(t, supported, "mock_a")
	assert.Contains(t, supported, "mock_b")
	assert.IsIncreasing(t, supported)
}

func TestCreateCEXClient_Unsupported(t *testing.T) {
	client, err := CreateCEXClient("no_such_exchange")
	assert.Nil(t, client)
	assert.ErrorIs(t, err, ErrUnsupportedCEX)
	assert.Contains(t, err.Error(), "no_such_exchange")
}

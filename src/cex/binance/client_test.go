package binance

import (
	"context"
	"testing"
	"time"

	"rsibot/src/cex"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertKline(t *testing.T) {
	pair := cex.TradingPair{Base: "CTT", Quote: "USDT"}
	k := &binance.Kline{
		OpenTime:         1704067200000,
		Open:             "10.5",
		High:             "11",
		Low:              "10",
		Close:            "10.8",
		Volume:           "1234.5",
		CloseTime:        1704067259999,
		QuoteAssetVolume: "13000",
	}

	result := convertKline(k, pair)
	assert.Equal(t, pair, result.TradingPair)
	assert.Equal(t, time.UnixMilli(1704067200000), result.OpenTime)
	assert.Equal(t, time.UnixMilli(1704067259999), result.CloseTime)
	assert.True(t, result.Close.Equal(decimal.NewFromFloat(10.8)))
	assert.True(t, result.Volume.Equal(decimal.NewFromFloat(1234.5)))
	assert.Equal(t, cex.DataStateHistory, result.State)
}

func TestAveragePrice(t *testing.T) {
	tests := []struct {
		name     string
		price    string
		quote    string
		executed string
		expected string
	}{
		{"limit order keeps price", "10", "30", "2", "10"},
		{"market order uses quote/executed", "0", "30", "2", "15"},
		{"nothing executed", "0", "0", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := averagePrice(parseDecimal(tt.price), parseDecimal(tt.quote), parseDecimal(tt.executed))
			assert.True(t, got.Equal(parseDecimal(tt.expected)), got.String())
		})
	}
}

func TestParseDecimal_Invalid(t *testing.T) {
	assert.True(t, parseDecimal("not-a-number").IsZero())
	assert.True(t, parseDecimal("").IsZero())
}

func TestClient_TradingDisabled(t *testing.T) {
	client := NewClientWithConfig(&Config{BaseURL: "http://127.0.0.1:0", EnableTrading: false})
	pair := cex.TradingPair{Base: "CTT", Quote: "USDT"}

	_, err := client.Buy(context.Background(), cex.BuyOrderRequest{TradingPair: pair, Type: cex.OrderTypeMarket, Quantity: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrTradingDisabled)

	_, err = client.Sell(context.Background(), cex.SellOrderRequest{TradingPair: pair, Type: cex.OrderTypeMarket, Quantity: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrTradingDisabled)
}

func TestFactory_CreateClient(t *testing.T) {
	client, err := cex.CreateCEXClient(Name)
	require.NoError(t, err)
	assert.Equal(t, "binance", client.GetName())
	assert.Equal(t, ConfigValue.Fee, client.GetTradingFee())
}

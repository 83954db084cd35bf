package cex

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradingPair_String(t *testing.T) {
	tests := []struct {
		name     string
		pair     TradingPair
		expected string
		symbol   string
	}{
		{"CTT/USDT pair", TradingPair{Base: "CTT", Quote: "USDT"}, "CTT/USDT", "CTTUSDT"},
		{"ETH/BTC pair", TradingPair{Base: "ETH", Quote: "BTC"}, "ETH/BTC", "ETHBTC"},
		{"empty pair", TradingPair{}, "/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.pair.String())
			assert.Equal(t, tt.symbol, tt.pair.Symbol())
		})
	}
}

func TestParseTradingPair(t *testing.T) {
	pair, err := ParseTradingPair(" ctt/usdt ")
	require.NoError(t, err)
	assert.Equal(t, TradingPair{Base: "CTT", Quote: "USDT"}, pair)

	for _, bad := range []string{"", "BTC", "BTC/", "/USDT", "A/B/C"} {
		_, err := ParseTradingPair(bad)
		assert.ErrorIs(t, err, ErrInvalidTradingPair, bad)
	}
}

func TestDataState_String(t *testing.T) {
	assert.Equal(t, "Live", DataStateLive.String())
	assert.Equal(t, "History", DataStateHistory.String())
	assert.Equal(t, "None", DataStateNone.String())
}

func TestOrderResult_IsTerminal(t *testing.T) {
	terminal := map[string]bool{
		OrderStatusNew:             false,
		OrderStatusPartiallyFilled: false,
		OrderStatusFilled:          true,
		OrderStatusCanceled:        true,
		OrderStatusRejected:        true,
		OrderStatusExpired:         true,
	}
	for status, want := range terminal {
		r := &OrderResult{Status: status}
		assert.Equal(t, want, r.IsTerminal(), status)
	}
}

func TestFreeBalance(t *testing.T) {
	balances := []*AccountBalance{
		{Asset: "BTC", Free: decimal.NewFromFloat(0.5)},
		nil,
		{Asset: "USDT", Free: decimal.NewFromInt(100), Locked: decimal.NewFromInt(5)},
	}
	assert.True(t, FreeBalance(balances, "USDT").Equal(decimal.NewFromInt(100)))
	assert.True(t, FreeBalance(balances, "ETH").IsZero())
}

func TestValidateKline(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(offset int, close float64) *KlineData {
		return &KlineData{
			OpenTime: base.Add(time.Duration(offset) * time.Minute),
			Open:     decimal.NewFromFloat(close),
			High:     decimal.NewFromFloat(close + 1),
			Low:      decimal.NewFromFloat(close - 0.5),
			Close:    decimal.NewFromFloat(close),
		}
	}

	t.Run("first kline", func(t *testing.T) {
		assert.NoError(t, ValidateKline(nil, mk(0, 10)))
	})

	t.Run("increasing timestamps", func(t *testing.T) {
		assert.NoError(t, ValidateKline(mk(0, 10), mk(1, 11)))
	})

	t.Run("repeated timestamp", func(t *testing.T) {
		assert.ErrorIs(t, ValidateKline(mk(1, 10), mk(1, 11)), ErrNonMonotonicKline)
	})

	t.Run("earlier timestamp", func(t *testing.T) {
		assert.ErrorIs(t, ValidateKline(mk(2, 10), mk(1, 11)), ErrNonMonotonicKline)
	})

	t.Run("zero close", func(t *testing.T) {
		k := mk(0, 10)
		k.Close = decimal.Zero
		assert.ErrorIs(t, ValidateKline(nil, k), ErrInvalidKline)
	})

	t.Run("high below low", func(t *testing.T) {
		k := mk(0, 10)
		k.High = decimal.NewFromInt(1)
		assert.ErrorIs(t, ValidateKline(nil, k), ErrInvalidKline)
	})

	t.Run("nil", func(t *testing.T) {
		assert.ErrorIs(t, ValidateKline(nil, nil), ErrInvalidKline)
	})
}

func TestSymbolFilters_AdjustQuantity(t *testing.T) {
	filters := SymbolFilters{
		StepSize: decimal.RequireFromString("0.01"),
		MinQty:   decimal.RequireFromString("0.1"),
	}

	tests := []struct {
		name     string
		quantity string
		expected string
		err      error
	}{
		{"向下取整", "3.33333333333333333", "3.33", nil},
		{"恰好为步长整数倍", "0.5", "0.5", nil},
		{"低于最小数量", "0.099", "", ErrBelowMinQty},
		{"取整后为零", "0.009", "", ErrBelowMinQty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := filters.AdjustQuantity(decimal.RequireFromString(tt.quantity))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.expected)), got.String())
		})
	}

	// 未配置规则时保持原精度
	got, err := SymbolFilters{}.AdjustQuantity(decimal.RequireFromString("3.33333333333333333"))
	require.NoError(t, err)
	assert.Equal(t, "3.33333333333333333", got.String())
}

func TestSymbolFilters_CheckNotional(t *testing.T) {
	filters := SymbolFilters{MinNotional: decimal.NewFromInt(5)}

	assert.ErrorIs(t, filters.CheckNotional(decimal.RequireFromString("0.4"), decimal.NewFromInt(10)), ErrBelowMinNotional)
	assert.NoError(t, filters.CheckNotional(decimal.RequireFromString("0.5"), decimal.NewFromInt(10)))
	assert.NoError(t, SymbolFilters{}.CheckNotional(decimal.Zero, decimal.NewFromInt(10)))
}

package cex

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TradingPair 标准化的交易对
type TradingPair struct {
	Base  string // 基础货币，如 BTC, CTT
	Quote string // 计价货币，如 USDT
}

// String 返回 "BASE/QUOTE"
func (tp TradingPair) String() string {
	return tp.Base + "/" + tp.Quote
}

// Symbol 返回交易所符号格式，如 CTTUSDT
func (tp TradingPair) Symbol() string {
	return tp.Base + tp.Quote
}

// DataState K线数据的实时性标记
type DataState int

const (
	DataStateLive    DataState = iota // 实时数据
	DataStateHistory                  // 历史回放数据
	DataStateNone                     // 无数据（缺口）
)

// String 日志展示
func (s DataState) String() string {
	switch s {
	case DataStateLive:
		return "Live"
	case DataStateHistory:
		return "History"
	default:
		return "None"
	}
}

// KlineData 标准化的K线数据
type KlineData struct {
	TradingPair TradingPair     `json:"trading_pair"`
	OpenTime    time.Time       `json:"open_time"`    // 开盘时间
	Open        decimal.Decimal `json:"open"`         // 开盘价
	High        decimal.Decimal `json:"high"`         // 最高价
	Low         decimal.Decimal `json:"low"`          // 最低价
	Close       decimal.Decimal `json:"close"`        // 收盘价
	Volume      decimal.Decimal `json:"volume"`       // 成交量
	CloseTime   time.Time       `json:"close_time"`   // 收盘时间
	QuoteVolume decimal.Decimal `json:"quote_volume"` // 成交额
	State       DataState       `json:"state"`        // 实时性标记
}

// OrderSide 订单方向
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType 订单类型
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// 交易所订单状态
const (
	OrderStatusNew             = "NEW"
	OrderStatusPartiallyFilled = "PARTIALLY_FILLED"
	OrderStatusFilled          = "FILLED"
	OrderStatusCanceled        = "CANCELED"
	OrderStatusRejected        = "REJECTED"
	OrderStatusExpired         = "EXPIRED"
)

// BuyOrderRequest 买入订单请求
type BuyOrderRequest struct {
	TradingPair   TradingPair     `json:"trading_pair"`
	Type          OrderType       `json:"type"`
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price,omitempty"` // 限价单时需要
	ClientOrderID string          `json:"client_order_id"` // 客户端订单号，用于对账
}

// SellOrderRequest 卖出订单请求
type SellOrderRequest struct {
	TradingPair   TradingPair     `json:"trading_pair"`
	Type          OrderType       `json:"type"`
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price,omitempty"`
	ClientOrderID string          `json:"client_order_id"`
}

// OrderResult 订单结果
type OrderResult struct {
	TradingPair     TradingPair     `json:"trading_pair"`
	OrderID         string          `json:"order_id"`
	ClientOrderID   string          `json:"client_order_id"`
	Price           decimal.Decimal `json:"price"`          // 成交均价
	Quantity        decimal.Decimal `json:"quantity"`       // 已成交数量
	QuoteQuantity   decimal.Decimal `json:"quote_quantity"` // 已成交金额
	Commission      decimal.Decimal `json:"commission"`
	CommissionAsset string          `json:"commission_asset,omitempty"` // 手续费币种，为空表示未知
	Side            OrderSide       `json:"side"`
	Status          string          `json:"status"`
	Type            OrderType       `json:"type"`
	TransactTime    time.Time       `json:"transact_time"`
}

// IsTerminal 订单是否已到终态
func (r *OrderResult) IsTerminal() bool {
	switch r.Status {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	}
	return false
}

// AccountBalance 账户余额
type AccountBalance struct {
	Asset  string          `json:"asset"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
}

// CEXClient 中心化交易所客户端接口
type CEXClient interface {
	// GetName 获取交易所名称
	GetName() string

	// GetTradingFee 获取交易手续费率
	GetTradingFee() float64

	// GetKlines 获取最近的K线数据
	GetKlines(ctx context.Context, pair TradingPair, interval string, limit int) ([]*KlineData, error)

	// GetKlinesWithTimeRange 获取指定时间范围的K线数据
	GetKlinesWithTimeRange(ctx context.Context, pair TradingPair, interval string, startTime, endTime time.Time, limit int) ([]*KlineData, error)

	// Buy 买入
	Buy(ctx context.Context, order BuyOrderRequest) (*OrderResult, error)

	// Sell 卖出
	Sell(ctx context.Context, order SellOrderRequest) (*OrderResult, error)

	// GetOrder 按客户端订单号查询订单状态
	GetOrder(ctx context.Context, pair TradingPair, clientOrderID string) (*OrderResult, error)

	// GetAccount 获取账户信息
	GetAccount(ctx context.Context) ([]*AccountBalance, error)

	// Ping 测试连接
	Ping(ctx context.Context) error
}

// FreeBalance 从余额列表中取出某资产的可用余额
func FreeBalance(balances []*AccountBalance, asset string) decimal.Decimal {
	for _, b := range balances {
		if b != nil && b.Asset == asset {
			return b.Free
		}
	}
	return decimal.Zero
}

package executor

import (
	"context"
	"fmt"
	"time"

	"rsibot/src/cex"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusSubmitted OrderStatus = "Submitted"
	OrderStatusCompleted OrderStatus = "Completed"
	OrderStatusCancelled OrderStatus = "Cancelled"
	OrderStatusRejected  OrderStatus = "Rejected"
)

// IsTerminal 是否为终态
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled || s == OrderStatusRejected
}

// Intent 策略产生的交易意图，提交后即丢弃
type Intent struct {
	OrderRef    string          `json:"order_ref"`
	TradingPair cex.TradingPair `json:"trading_pair"`
	Side        cex.OrderSide   `json:"side"`
	Size        decimal.Decimal `json:"size"`
	PriceRef    decimal.Decimal `json:"price_ref"` // 决策时的收盘价，市价单仅作参考
	Reason      string          `json:"reason"`
	Timestamp   time.Time       `json:"timestamp"`
}

// String 日志展示
func (i *Intent) String() string {
	return fmt.Sprintf("%s %s size=%s @ %s ref=%s", i.Side, i.TradingPair, i.Size.StringFixed(6), i.PriceRef, i.OrderRef)
}

// NewOrderRef 生成订单引用，同时作为交易所的 client order id
func NewOrderRef() string {
	return uuid.NewString()
}

// OrderEvent 执行边界回报的订单状态变化
type OrderEvent struct {
	OrderRef        string          `json:"order_ref"`
	ExchangeOrderID string          `json:"exchange_order_id,omitempty"`
	TradingPair     cex.TradingPair `json:"trading_pair"`
	Status          OrderStatus     `json:"status"`
	Side            cex.OrderSide   `json:"side"`
	Size            decimal.Decimal `json:"size"`           // 委托数量
	ExecutedPrice   decimal.Decimal `json:"executed_price"` // 成交均价
	ExecutedSize    decimal.Decimal `json:"executed_size"`
	ExecutedValue   decimal.Decimal `json:"executed_value"` // 成交金额
	Commission      decimal.Decimal `json:"commission"`
	Reason          string          `json:"reason,omitempty"` // 拒绝/撤销原因
	Timestamp       time.Time       `json:"timestamp"`
}

// RejectedEvent 同步提交失败时构造的拒绝事件
func RejectedEvent(intent *Intent, err error) OrderEvent {
	return OrderEvent{
		OrderRef:    intent.OrderRef,
		TradingPair: intent.TradingPair,
		Status:      OrderStatusRejected,
		Side:        intent.Side,
		Size:        intent.Size,
		Reason:      err.Error(),
		Timestamp:   intent.Timestamp,
	}
}

// TradeSummary 一笔完整交易（开仓到平仓）
type TradeSummary struct {
	TradingPair cex.TradingPair `json:"trading_pair"`
	Size        decimal.Decimal `json:"size"`
	EntryPrice  decimal.Decimal `json:"entry_price"`
	ExitPrice   decimal.Decimal `json:"exit_price"`
	PnL         decimal.Decimal `json:"pnl"`      // 毛利
	PnLComm     decimal.Decimal `json:"pnl_comm"` // 扣除手续费后
	Commission  decimal.Decimal `json:"commission"`
	OpenedAt    time.Time       `json:"opened_at"`
	ClosedAt    time.Time       `json:"closed_at"`
}

// EventSink 订单/成交事件的接收方
type EventSink interface {
	OnOrderEvent(ctx context.Context, event OrderEvent)
	OnTradeClosed(ctx context.Context, trade TradeSummary)
}

// Executor 执行边界 + 账户余额查询
type Executor interface {
	// Submit 提交意图，同步返回订单引用；状态变化通过 EventSink 异步回报
	Submit(ctx context.Context, intent *Intent) (string, error)

	// AvailableCash 计价货币的可用余额
	AvailableCash(ctx context.Context) (decimal.Decimal, error)

	// Position 基础货币持仓
	Position(ctx context.Context) (decimal.Decimal, error)

	// SetEventSink 设置事件接收方，需在 Submit 之前调用
	SetEventSink(sink EventSink)

	// GetName 获取执行器名称
	GetName() string

	// Close 关闭执行器，清理资源
	Close() error
}

// Statistics 执行器统计
type Statistics struct {
	InitialCapital  decimal.Decimal `json:"initial_capital"`
	FinalValue      decimal.Decimal `json:"final_value"`
	Cash            decimal.Decimal `json:"cash"`
	Position        decimal.Decimal `json:"position"`
	TotalReturn     decimal.Decimal `json:"total_return"`
	TotalTrades     int             `json:"total_trades"`
	WinningTrades   int             `json:"winning_trades"`
	LosingTrades    int             `json:"losing_trades"`
	FilledOrders    int             `json:"filled_orders"`
	RejectedOrders  int             `json:"rejected_orders"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	MaxDrawdown     decimal.Decimal `json:"max_drawdown"`
}

// WinRate 胜率
func (s *Statistics) WinRate() decimal.Decimal {
	if s.TotalTrades == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(s.WinningTrades)).Div(decimal.NewFromInt(int64(s.TotalTrades)))
}

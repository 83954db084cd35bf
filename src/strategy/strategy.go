package strategy

import (
	"context"

	"rsibot/src/cex"
	"rsibot/src/executor"
	"rsibot/src/position"

	"github.com/shopspring/decimal"
)

// Strategy 交易策略接口
//
// 同一交易对的所有调用必须串行，实现不需要加锁。
type Strategy interface {
	// OnBar 处理新的K线，cash 为决策时读取的可用余额；没有交易意图时返回 nil
	OnBar(ctx context.Context, kline *cex.KlineData, cash decimal.Decimal) (*executor.Intent, error)

	// OnOrderEvent 订单状态对账，返回事件是否改变了持仓状态
	OnOrderEvent(ctx context.Context, event executor.OrderEvent) bool

	// OnTradeClosed 平仓通知
	OnTradeClosed(ctx context.Context, trade executor.TradeSummary)

	// Position 当前持仓状态
	Position() position.Snapshot

	// GetName 获取策略名称
	GetName() string

	// GetParams 获取策略参数
	GetParams() map[string]interface{}
}

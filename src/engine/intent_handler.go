package engine

import (
	"context"
	"fmt"

	"github.com/xpwu/go-log/log"

	"rsibot/src/cex"
	"rsibot/src/executor"
)

// IntentHandler 交易意图处理器接口
type IntentHandler interface {
	// HandleIntent 处理交易意图，返回的错误会被转换为 Rejected 事件
	HandleIntent(ctx context.Context, intent *executor.Intent) error
}

// IntentHandlerRegistry 按买卖方向分发交易意图
type IntentHandlerRegistry struct {
	handlers map[cex.OrderSide]IntentHandler
}

// NewIntentHandlerRegistry 创建交易意图处理器注册表
func NewIntentHandlerRegistry() *IntentHandlerRegistry {
	return &IntentHandlerRegistry{
		handlers: make(map[cex.OrderSide]IntentHandler),
	}
}

// RegisterHandler 注册处理器
func (r *IntentHandlerRegistry) RegisterHandler(side cex.OrderSide, handler IntentHandler) {
	r.handlers[side] = handler
}

// HandleIntent 分发交易意图
func (r *IntentHandlerRegistry) HandleIntent(ctx context.Context, intent *executor.Intent) error {
	handler, exists := r.handlers[intent.Side]
	if !exists {
		return fmt.Errorf("未知订单方向: %s", intent.Side)
	}

	return handler.HandleIntent(ctx, intent)
}

// SubmitHandler 按交易对规则调整数量后提交给执行器
type SubmitHandler struct {
	executor executor.Executor
	filters  cex.SymbolFilters
}

// NewSubmitHandler 创建提交处理器
func NewSubmitHandler(exec executor.Executor, filters cex.SymbolFilters) *SubmitHandler {
	return &SubmitHandler{executor: exec, filters: filters}
}

// HandleIntent 提交订单
func (h *SubmitHandler) HandleIntent(ctx context.Context, intent *executor.Intent) error {
	ctx, logger := log.WithCtx(ctx)

	if err := h.adjustQuantity(intent); err != nil {
		return err
	}

	logger.Info("提交订单",
		"ref", intent.OrderRef,
		"side", intent.Side,
		"size", intent.Size.String(),
		"reason", intent.Reason)

	if _, err := h.executor.Submit(ctx, intent); err != nil {
		return fmt.Errorf("failed to submit %s order: %w", intent.Side, err)
	}
	return nil
}

// adjustQuantity 数量按步长向下取整
func (h *SubmitHandler) adjustQuantity(intent *executor.Intent) error {
	size, err := h.filters.AdjustQuantity(intent.Size)
	if err != nil {
		return err
	}
	intent.Size = size
	return nil
}

// BuyIntentHandler 买入处理器，数量或金额过小的买单直接拒绝
type BuyIntentHandler struct {
	*SubmitHandler
}

// NewBuyIntentHandler 创建买入处理器
func NewBuyIntentHandler(exec executor.Executor, filters cex.SymbolFilters) *BuyIntentHandler {
	return &BuyIntentHandler{SubmitHandler: NewSubmitHandler(exec, filters)}
}

// HandleIntent 处理买入意图
func (h *BuyIntentHandler) HandleIntent(ctx context.Context, intent *executor.Intent) error {
	if err := h.adjustQuantity(intent); err != nil {
		return err
	}
	if err := h.filters.CheckNotional(intent.Size, intent.PriceRef); err != nil {
		return err
	}

	return h.SubmitHandler.HandleIntent(ctx, intent)
}

// SellIntentHandler 卖出处理器，卖出数量不超过账户可用的基础货币
//
// 买入手续费以基础货币扣除时，可用余额会小于买入成交数量。
type SellIntentHandler struct {
	*SubmitHandler
}

// NewSellIntentHandler 创建卖出处理器
func NewSellIntentHandler(exec executor.Executor, filters cex.SymbolFilters) *SellIntentHandler {
	return &SellIntentHandler{SubmitHandler: NewSubmitHandler(exec, filters)}
}

// HandleIntent 处理卖出意图
func (h *SellIntentHandler) HandleIntent(ctx context.Context, intent *executor.Intent) error {
	ctx, logger := log.WithCtx(ctx)

	free, err := h.executor.Position(ctx)
	if err != nil {
		logger.Error("获取持仓失败，按原数量卖出", "ref", intent.OrderRef, "error", err)
	} else if free.IsPositive() && free.LessThan(intent.Size) {
		logger.Info("卖出数量超过可用余额，按余额卖出",
			"ref", intent.OrderRef,
			"size", intent.Size.String(),
			"free", free.String())
		intent.Size = free
	}

	return h.SubmitHandler.HandleIntent(ctx, intent)
}

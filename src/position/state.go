package position

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Status 持仓状态
type Status int

const (
	Flat Status = iota
	Long
)

// String 日志展示
func (s Status) String() string {
	if s == Long {
		return "Long"
	}
	return "Flat"
}

// ResetMode 卖出决策后持仓记录的清理时机
type ResetMode string

const (
	// ResetAtomic 决定卖出时立即清理
	ResetAtomic ResetMode = "atomic"
	// ResetDelayed 延迟到下一根K线开始时清理
	ResetDelayed ResetMode = "delayed"
)

// ParseResetMode 解析清理模式，空字符串取默认值 atomic
func ParseResetMode(s string) (ResetMode, error) {
	switch ResetMode(s) {
	case "", ResetAtomic:
		return ResetAtomic, nil
	case ResetDelayed:
		return ResetDelayed, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidResetMode, s)
}

// Snapshot 持仓状态的只读副本
type Snapshot struct {
	Status          Status
	EntryPrice      decimal.Decimal
	HighestPrice    decimal.Decimal
	Quantity        decimal.Decimal
	PendingOrderRef string // 未完成的买单
	ExitOrderRef    string // 未完成的卖单
	NeedDrop        bool
}

// HasPendingOrder 是否存在任何未完成订单
func (s Snapshot) HasPendingOrder() bool {
	return s.PendingOrderRef != "" || s.ExitOrderRef != ""
}

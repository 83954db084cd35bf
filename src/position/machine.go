package position

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Machine 单个交易对的持仓状态机（Flat / Long）
//
// 不是并发安全的，调用方需保证同一交易对的K线与订单事件串行处理。
type Machine struct {
	mode          ResetMode
	trailFraction decimal.Decimal
	state         Snapshot

	// atomic 模式下卖单被拒时用于恢复 Long
	beforeExit *Snapshot
}

// NewMachine 创建状态机，初始为 Flat
func NewMachine(trailFraction decimal.Decimal, mode ResetMode) (*Machine, error) {
	if !trailFraction.IsPositive() || trailFraction.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("trail fraction must be within (0, 1), got %s", trailFraction)
	}
	mode, err := ParseResetMode(string(mode))
	if err != nil {
		return nil, err
	}
	return &Machine{mode: mode, trailFraction: trailFraction}, nil
}

// Mode 清理模式
func (m *Machine) Mode() ResetMode {
	return m.mode
}

// Snapshot 当前状态副本
func (m *Machine) Snapshot() Snapshot {
	return m.state
}

// BeginBar 每根K线开始时调用，delayed 模式下在这里完成上一根K线的清理
func (m *Machine) BeginBar() (dropped bool) {
	if !m.state.NeedDrop {
		return false
	}
	m.resetFlat()
	return true
}

// CanEnter Flat 且没有任何未完成订单
func (m *Machine) CanEnter() bool {
	return m.state.Status == Flat && !m.state.HasPendingOrder() && !m.state.NeedDrop
}

// Open Flat -> Long，记录入场价并挂起买单
func (m *Machine) Open(ref string, price, size decimal.Decimal) error {
	if ref == "" {
		return ErrEmptyOrderRef
	}
	if m.state.Status != Flat {
		return ErrNotFlat
	}
	if m.state.HasPendingOrder() || m.state.NeedDrop {
		return ErrOrderPending
	}

	m.state = Snapshot{
		Status:          Long,
		EntryPrice:      price,
		HighestPrice:    price,
		Quantity:        size,
		PendingOrderRef: ref,
	}
	m.beforeExit = nil
	return nil
}

// Track 更新最高价并判断是否跌破移动止损
// 返回当前止损价和是否需要卖出；非 Long 时恒为 false
func (m *Machine) Track(close decimal.Decimal) (stop decimal.Decimal, exit bool) {
	if m.state.Status != Long || m.state.NeedDrop {
		return decimal.Zero, false
	}
	if close.GreaterThan(m.state.HighestPrice) {
		m.state.HighestPrice = close
	}
	stop = m.TrailingStop()
	return stop, close.LessThan(stop)
}

// TrailingStop highest * (1 - trail)
func (m *Machine) TrailingStop() decimal.Decimal {
	return m.state.HighestPrice.Mul(decimal.NewFromInt(1).Sub(m.trailFraction))
}

// RequestExit 记录卖单；atomic 模式立即回到 Flat，delayed 模式标记下一根K线清理
// 不检查未完成的买单，止损总是可以触发
func (m *Machine) RequestExit(ref string) error {
	if ref == "" {
		return ErrEmptyOrderRef
	}
	if m.state.Status != Long || m.state.NeedDrop {
		return ErrNotLong
	}

	if m.mode == ResetDelayed {
		m.state.ExitOrderRef = ref
		m.state.NeedDrop = true
		return nil
	}

	before := m.state
	m.beforeExit = &before
	m.state = Snapshot{
		Status:          Flat,
		PendingOrderRef: before.PendingOrderRef,
		ExitOrderRef:    ref,
	}
	return nil
}

// BuyFilled 买单成交：保持 Long，清除挂单，数量以成交为准
func (m *Machine) BuyFilled(ref string, quantity decimal.Decimal) bool {
	if ref == "" || m.state.PendingOrderRef != ref {
		return false
	}
	m.state.PendingOrderRef = ""
	if quantity.IsPositive() {
		if m.state.Status == Long {
			m.state.Quantity = quantity
		}
		if m.beforeExit != nil {
			m.beforeExit.Quantity = quantity
		}
	}
	if m.beforeExit != nil {
		m.beforeExit.PendingOrderRef = ""
	}
	return true
}

// BuyFailed 买单被拒或撤销：回到 Flat
func (m *Machine) BuyFailed(ref string) bool {
	if ref == "" || m.state.PendingOrderRef != ref {
		return false
	}
	if m.state.ExitOrderRef != "" && m.state.Status == Flat {
		// 已经在退出中，买单未成交则没有可恢复的仓位
		m.state.PendingOrderRef = ""
		m.beforeExit = nil
		return true
	}
	m.resetFlat()
	return true
}

// SellFilled 卖单成交：回到 Flat 并清空所有记录
func (m *Machine) SellFilled(ref string) bool {
	if ref == "" || m.state.ExitOrderRef != ref {
		return false
	}
	m.resetFlat()
	return true
}

// SellFailed 卖单被拒或撤销：保持 Long，下一根K线重新判断止损
func (m *Machine) SellFailed(ref string) bool {
	if ref == "" || m.state.ExitOrderRef != ref {
		return false
	}

	if m.mode == ResetDelayed {
		m.state.ExitOrderRef = ""
		m.state.NeedDrop = false
		return true
	}

	if m.beforeExit == nil {
		m.state.ExitOrderRef = ""
		return true
	}
	restored := *m.beforeExit
	restored.PendingOrderRef = m.state.PendingOrderRef
	restored.ExitOrderRef = ""
	m.state = restored
	m.beforeExit = nil
	return true
}

func (m *Machine) resetFlat() {
	m.state = Snapshot{Status: Flat}
	m.beforeExit = nil
}

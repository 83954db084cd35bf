package indicators

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// IndicatorState 每根K线后的指标快照
type IndicatorState struct {
	Value decimal.Decimal // RSI 值 [0, 100]
	Ready bool            // 数据不足时为 false，此时 Below 恒为 false
	Below bool            // Value < Level
}

// String 日志展示
func (s IndicatorState) String() string {
	if !s.Ready {
		return "undefined"
	}
	return s.Value.StringFixed(2)
}

// Indicator 入场信号指标，每根K线调用一次 Update
type Indicator interface {
	Update(close decimal.Decimal) IndicatorState
	Period() int
}

// UnderOver 阈值检测：value < level 时为真，无记忆、无滞回
func UnderOver(value, level decimal.Decimal) bool {
	return value.LessThan(level)
}

// RSISignal RSI + UnderOver 组合
type RSISignal struct {
	rsi   *RSI
	level decimal.Decimal
	state IndicatorState
}

// NewRSISignal 创建 RSI(period) < level 信号
func NewRSISignal(period int, level float64) (*RSISignal, error) {
	if level <= 0 || level >= 100 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLevel, level)
	}
	rsi, err := NewRSI(period)
	if err != nil {
		return nil, err
	}
	return &RSISignal{rsi: rsi, level: decimal.NewFromFloat(level)}, nil
}

// Update 更新指标并重新计算阈值信号
func (s *RSISignal) Update(close decimal.Decimal) IndicatorState {
	v, ready := s.rsi.Update(close)
	s.state = IndicatorState{
		Value: v,
		Ready: ready,
		Below: ready && UnderOver(v, s.level),
	}
	return s.state
}

// Period 计算周期
func (s *RSISignal) Period() int {
	return s.rsi.Period()
}

// Level 阈值
func (s *RSISignal) Level() decimal.Decimal {
	return s.level
}

// State 最近一次 Update 的结果
func (s *RSISignal) State() IndicatorState {
	return s.state
}

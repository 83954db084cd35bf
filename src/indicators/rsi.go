package indicators

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RSI 增量计算的相对强弱指标（Wilder 平滑）
//
// 前 period 个价格变化用简单平均作为种子，之后按
// avg = (avg*(period-1) + x) / period 平滑。
// 需要 period+1 个收盘价（即 period 个变化）后才有定义。
type RSI struct {
	period int

	prevClose decimal.Decimal
	hasPrev   bool
	changes   int

	avgGain decimal.Decimal
	avgLoss decimal.Decimal

	value decimal.Decimal
	ready bool
}

// NewRSI 创建RSI指标
func NewRSI(period int) (*RSI, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPeriod, period)
	}
	return &RSI{period: period}, nil
}

// Period 计算周期
func (r *RSI) Period() int {
	return r.period
}

// Update 折叠一个新的收盘价，返回最新的RSI值与是否已就绪
func (r *RSI) Update(close decimal.Decimal) (decimal.Decimal, bool) {
	if !r.hasPrev {
		r.prevClose = close
		r.hasPrev = true
		return decimal.Zero, false
	}

	change := close.Sub(r.prevClose)
	r.prevClose = close

	gain, loss := decimal.Zero, decimal.Zero
	if change.IsPositive() {
		gain = change
	} else if change.IsNegative() {
		loss = change.Neg()
	}

	r.changes++
	p := decimal.NewFromInt(int64(r.period))

	switch {
	case r.changes < r.period:
		// 种子阶段先累加
		r.avgGain = r.avgGain.Add(gain)
		r.avgLoss = r.avgLoss.Add(loss)
		return decimal.Zero, false
	case r.changes == r.period:
		r.avgGain = r.avgGain.Add(gain).Div(p)
		r.avgLoss = r.avgLoss.Add(loss).Div(p)
	default:
		pm1 := decimal.NewFromInt(int64(r.period - 1))
		r.avgGain = r.avgGain.Mul(pm1).Add(gain).Div(p)
		r.avgLoss = r.avgLoss.Mul(pm1).Add(loss).Div(p)
	}

	r.value = rsiFromAverages(r.avgGain, r.avgLoss)
	r.ready = true
	return r.value, true
}

// Value 最新RSI值，未就绪时为0
func (r *RSI) Value() decimal.Decimal {
	return r.value
}

// Ready 是否已积累足够数据
func (r *RSI) Ready() bool {
	return r.ready
}

// Reset 清空内部状态
func (r *RSI) Reset() {
	*r = RSI{period: r.period}
}

// rsiFromAverages RSI = 100 - 100/(1+RS)，avgLoss 为 0 时 RS 视为无穷大
func rsiFromAverages(avgGain, avgLoss decimal.Decimal) decimal.Decimal {
	if avgLoss.IsZero() {
		return hundred
	}
	rs := avgGain.Div(avgLoss)
	v := hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))

	// 舍入误差不应越界
	if v.IsNegative() {
		return decimal.Zero
	}
	if v.GreaterThan(hundred) {
		return hundred
	}
	return v
}

// CalculateRSI 对整段价格序列计算RSI，未就绪的位置 Ready 为 false
func CalculateRSI(prices []decimal.Decimal, period int) ([]IndicatorState, error) {
	if len(prices) == 0 {
		return nil, ErrInsufficientData
	}
	rsi, err := NewRSI(period)
	if err != nil {
		return nil, err
	}

	result := make([]IndicatorState, len(prices))
	for i, p := range prices {
		v, ready := rsi.Update(p)
		result[i] = IndicatorState{Value: v, Ready: ready}
	}
	return result, nil
}

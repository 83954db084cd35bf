package cex

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SymbolFilters 交易对下单规则，零值表示不限制
type SymbolFilters struct {
	MinNotional decimal.Decimal `json:"min_notional"` // 最小下单金额
	StepSize    decimal.Decimal `json:"step_size"`    // 数量步长
	MinQty      decimal.Decimal `json:"min_qty"`      // 最小下单数量
}

// AdjustQuantity 数量按步长向下取整，结果低于最小数量时返回 ErrBelowMinQty
func (f SymbolFilters) AdjustQuantity(quantity decimal.Decimal) (decimal.Decimal, error) {
	if f.StepSize.IsPositive() {
		quantity = quantity.Div(f.StepSize).Floor().Mul(f.StepSize)
	}
	if !quantity.IsPositive() || (f.MinQty.IsPositive() && quantity.LessThan(f.MinQty)) {
		return decimal.Zero, fmt.Errorf("%w: %s < %s", ErrBelowMinQty, quantity.String(), f.MinQty.String())
	}
	return quantity, nil
}

// CheckNotional 检查下单金额
func (f SymbolFilters) CheckNotional(quantity, price decimal.Decimal) error {
	notional := quantity.Mul(price)
	if f.MinNotional.IsPositive() && notional.LessThan(f.MinNotional) {
		return fmt.Errorf("%w: %s < %s", ErrBelowMinNotional, notional.StringFixed(4), f.MinNotional.String())
	}
	return nil
}

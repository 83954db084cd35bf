package cex

import (
	"fmt"
	"strings"
)

// ParseTradingPair 解析 "BTC/USDT" 格式的交易对
func ParseTradingPair(s string) (TradingPair, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return TradingPair{}, fmt.Errorf("%w: %q", ErrInvalidTradingPair, s)
	}
	return TradingPair{
		Base:  strings.ToUpper(strings.TrimSpace(parts[0])),
		Quote: strings.ToUpper(strings.TrimSpace(parts[1])),
	}, nil
}

// ValidateKline 数据源边界校验：价格必须为正，时间必须严格递增
// prev 可以为 nil（第一根K线）
func ValidateKline(prev, cur *KlineData) error {
	if cur == nil {
		return fmt.Errorf("%w: nil kline", ErrInvalidKline)
	}
	if !cur.Close.IsPositive() || !cur.Open.IsPositive() {
		return fmt.Errorf("%w: non-positive price at %s", ErrInvalidKline, cur.OpenTime)
	}
	if cur.High.LessThan(cur.Low) {
		return fmt.Errorf("%w: high < low at %s", ErrInvalidKline, cur.OpenTime)
	}
	if prev != nil && !cur.OpenTime.After(prev.OpenTime) {
		return fmt.Errorf("%w: %s after %s", ErrNonMonotonicKline, cur.OpenTime, prev.OpenTime)
	}
	return nil
}

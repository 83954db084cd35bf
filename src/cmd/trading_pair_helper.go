package cmd

import (
	"fmt"
	"strings"

	"rsibot/src/cex"
)

// CreateTradingPair 创建交易对
func CreateTradingPair(base, quote string) cex.TradingPair {
	return cex.TradingPair{
		Base:  strings.ToUpper(base),
		Quote: strings.ToUpper(quote),
	}
}

// ParseTradingPairs 解析 "BTC/USDT,ETH/USDT"，重复的交易对只保留一次
func ParseTradingPairs(s string) ([]cex.TradingPair, error) {
	seen := make(map[cex.TradingPair]bool)
	var pairs []cex.TradingPair
	for _, item := range strings.Split(s, ",") {
		if strings.TrimSpace(item) == "" {
			continue
		}
		pair, err := cex.ParseTradingPair(item)
		if err != nil {
			return nil, err
		}
		if seen[pair] {
			continue
		}
		seen[pair] = true
		pairs = append(pairs, pair)
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: %q", cex.ErrInvalidTradingPair, s)
	}
	return pairs, nil
}

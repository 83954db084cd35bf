package cex

import "errors"

var (
	ErrUnsupportedCEX     = errors.New("unsupported CEX")
	ErrInvalidTradingPair = errors.New("invalid trading pair")
	ErrInvalidKline       = errors.New("invalid kline")
	ErrNonMonotonicKline  = errors.New("kline timestamp not increasing")
	ErrBelowMinQty        = errors.New("order quantity below minimum")
	ErrBelowMinNotional   = errors.New("order notional below minimum")
)

package executor

import (
	"errors"
	"fmt"

	"rsibot/src/cex"
)

var (
	ErrInvalidIntent        = errors.New("invalid intent")
	ErrInsufficientCash     = errors.New("insufficient cash")
	ErrInsufficientPosition = errors.New("insufficient position")
	ErrExecutorClosed       = errors.New("executor closed")
	ErrPairMismatch         = errors.New("trading pair mismatch")
	ErrDuplicateOrderRef    = errors.New("duplicate order ref")
)

// validateIntent 提交前的基础校验
func validateIntent(intent *Intent) error {
	if intent == nil {
		return fmt.Errorf("%w: nil", ErrInvalidIntent)
	}
	if intent.OrderRef == "" {
		return fmt.Errorf("%w: empty order ref", ErrInvalidIntent)
	}
	if intent.Side != cex.OrderSideBuy && intent.Side != cex.OrderSideSell {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidIntent, intent.Side)
	}
	if !intent.Size.IsPositive() {
		return fmt.Errorf("%w: size must be positive, got %s", ErrInvalidIntent, intent.Size)
	}
	return nil
}

package position

import "errors"

var (
	ErrNotFlat          = errors.New("position is not flat")
	ErrNotLong          = errors.New("position is not long")
	ErrOrderPending     = errors.New("an order is already pending")
	ErrEmptyOrderRef    = errors.New("empty order ref")
	ErrInvalidResetMode = errors.New("invalid reset mode")
)

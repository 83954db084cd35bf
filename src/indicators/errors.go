package indicators

import "errors"

var (
	// ErrInsufficientData 数据不足错误
	ErrInsufficientData = errors.New("insufficient data for calculation")

	// ErrInvalidPeriod 无效周期错误
	ErrInvalidPeriod = errors.New("invalid period, must be greater than 0")

	// ErrInvalidLevel 阈值必须在 (0, 100) 之间
	ErrInvalidLevel = errors.New("invalid level, must be within (0, 100)")

	// ErrNonPositivePrice 价格必须为正
	ErrNonPositivePrice = errors.New("price must be positive")
)

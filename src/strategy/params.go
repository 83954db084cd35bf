package strategy

import (
	"fmt"
	"strconv"
	"strings"

	"rsibot/src/position"
)

// RSITrailingParams RSI 入场 + 移动止损出场策略参数
type RSITrailingParams struct {
	Period        int                // RSI 周期，默认14
	Level         float64            // RSI 低于该值入场，默认30
	EntryFraction float64            // 入场使用可用资金的比例，默认0.3
	TrailPercent  float64            // 移动止损回撤比例，默认0.02
	ResetMode     position.ResetMode // 卖出后持仓记录的清理时机，默认 atomic
}

// GetDefaultRSITrailingParams 获取默认参数
func GetDefaultRSITrailingParams() *RSITrailingParams {
	return &RSITrailingParams{
		Period:        14,
		Level:         30,
		EntryFraction: 0.3,
		TrailPercent:  0.02,
		ResetMode:     position.ResetAtomic,
	}
}

// Validate 验证参数有效性
func (p *RSITrailingParams) Validate() error {
	if p.Period <= 0 {
		return fmt.Errorf("period must be positive, got %d", p.Period)
	}
	if p.Level <= 0 || p.Level >= 100 {
		return fmt.Errorf("level must be between 0 and 100, got %f", p.Level)
	}
	if p.EntryFraction <= 0 || p.EntryFraction > 1 {
		return fmt.Errorf("entry_fraction must be between 0 and 1, got %f", p.EntryFraction)
	}
	if p.TrailPercent <= 0 || p.TrailPercent >= 1 {
		return fmt.Errorf("trail must be between 0 and 1, got %f", p.TrailPercent)
	}
	if _, err := position.ParseResetMode(string(p.ResetMode)); err != nil {
		return err
	}
	return nil
}

// ToMap 日志与展示用
func (p *RSITrailingParams) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"period":         p.Period,
		"level":          p.Level,
		"entry_fraction": p.EntryFraction,
		"trail":          p.TrailPercent,
		"reset_mode":     string(p.ResetMode),
	}
}

// ParseParamOverrides 解析参数字符串，格式 "key1=value1,key2=value2"
func ParseParamOverrides(paramsStr string) (map[string]float64, error) {
	params := make(map[string]float64)

	if paramsStr == "" {
		return params, nil
	}

	pairs := strings.Split(paramsStr, ",")
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		parts := strings.Split(pair, "=")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid parameter format: %s (expected key=value)", pair)
		}

		key := strings.TrimSpace(parts[0])
		valueStr := strings.TrimSpace(parts[1])

		value, err := strconv.ParseFloat(valueStr, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid parameter value for %s: %s", key, valueStr)
		}

		params[key] = value
	}

	return params, nil
}

// ApplyOverrides 用解析后的参数覆盖当前值，未知键返回错误
// delayed_reset 非0时使用 delayed 清理模式
func (p *RSITrailingParams) ApplyOverrides(overrides map[string]float64) error {
	for key, value := range overrides {
		switch key {
		case "period":
			if value != float64(int(value)) {
				return fmt.Errorf("period must be an integer, got %v", value)
			}
			p.Period = int(value)
		case "level":
			p.Level = value
		case "entry_fraction":
			p.EntryFraction = value
		case "trail":
			p.TrailPercent = value
		case "delayed_reset":
			if value != 0 {
				p.ResetMode = position.ResetDelayed
			} else {
				p.ResetMode = position.ResetAtomic
			}
		default:
			return fmt.Errorf("unknown parameter: %s", key)
		}
	}
	return p.Validate()
}

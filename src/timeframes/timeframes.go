package timeframes

import (
	"fmt"
	"time"
)

// Timeframe K线周期，取值与币安 interval 相同
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe3m  Timeframe = "3m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe2h  Timeframe = "2h"
	Timeframe4h  Timeframe = "4h"
	Timeframe6h  Timeframe = "6h"
	Timeframe8h  Timeframe = "8h"
	Timeframe12h Timeframe = "12h"
	Timeframe1d  Timeframe = "1d"
	Timeframe3d  Timeframe = "3d"
	Timeframe1w  Timeframe = "1w"
	Timeframe1M  Timeframe = "1M"
)

type timeframeInfo struct {
	duration    time.Duration
	label       string // 日志中的周期标签，如 M1、H4、D1
	historyDays int    // 默认回测窗口
}

var timeframeTable = map[Timeframe]timeframeInfo{
	Timeframe1m:  {time.Minute, "M1", 3},
	Timeframe3m:  {3 * time.Minute, "M3", 7},
	Timeframe5m:  {5 * time.Minute, "M5", 7},
	Timeframe15m: {15 * time.Minute, "M15", 30},
	Timeframe30m: {30 * time.Minute, "M30", 30},
	Timeframe1h:  {time.Hour, "H1", 90},
	Timeframe2h:  {2 * time.Hour, "H2", 90},
	Timeframe4h:  {4 * time.Hour, "H4", 180},
	Timeframe6h:  {6 * time.Hour, "H6", 180},
	Timeframe8h:  {8 * time.Hour, "H8", 180},
	Timeframe12h: {12 * time.Hour, "H12", 180},
	Timeframe1d:  {24 * time.Hour, "D1", 365},
	Timeframe3d:  {3 * 24 * time.Hour, "D3", 730},
	Timeframe1w:  {7 * 24 * time.Hour, "W1", 730},
	Timeframe1M:  {30 * 24 * time.Hour, "MN1", 1095}, // 近似1个月
}

// GetDuration 获取周期时长
func (tf Timeframe) GetDuration() (time.Duration, error) {
	s, ok := timeframeTable[tf]
	if !ok {
		return 0, fmt.Errorf("unsupported timeframe: %s", tf)
	}
	return s.duration, nil
}

// String 返回字符串表示
func (tf Timeframe) String() string {
	return string(tf)
}

// Label 日志标签，未知周期返回原值
func (tf Timeframe) Label() string {
	if s, ok := timeframeTable[tf]; ok {
		return s.label
	}
	return string(tf)
}

// IsValid 检查周期是否受支持
func (tf Timeframe) IsValid() bool {
	_, ok := timeframeTable[tf]
	return ok
}

// GetBinanceInterval 币安API的 interval 参数
func (tf Timeframe) GetBinanceInterval() string {
	return string(tf)
}

// GetMaxHistoryDays 未指定开始时间时的默认回测天数
func (tf Timeframe) GetMaxHistoryDays() int {
	if s, ok := timeframeTable[tf]; ok {
		return s.historyDays
	}
	return 30
}

// CalculateDataPoints 指定时长内的K线数量
func (tf Timeframe) CalculateDataPoints(span time.Duration) (int, error) {
	d, err := tf.GetDuration()
	if err != nil {
		return 0, err
	}
	return int(span / d), nil
}

// ParseTimeframe 解析周期字符串，同时接受 M1/H4/D1 这类标签
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if tf.IsValid() {
		return tf, nil
	}
	for k, v := range timeframeTable {
		if v.label == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("invalid timeframe: %s", s)
}

package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"rsibot/src/cex"
	"rsibot/src/timeframes"

	"github.com/xpwu/go-log/log"
)

// KlineStore K线持久化
type KlineStore interface {
	SaveKlinesBatch(ctx context.Context, pair cex.TradingPair, timeframe string, klines []*cex.KlineData) error
	GetKlines(ctx context.Context, pair cex.TradingPair, timeframe string, startTime, endTime time.Time, limit int) ([]*cex.KlineData, error)
}

// KlineManager K线数据管理器：优先读数据库，缺失部分从交易所补齐并写回
type KlineManager struct {
	store     KlineStore // 为 nil 时只走网络
	client    cex.CEXClient
	batchSize int
	now       func() time.Time
}

// NewKlineManager 创建K线数据管理器，store 可以为 nil
func NewKlineManager(store KlineStore, client cex.CEXClient) *KlineManager {
	return &KlineManager{
		store:     store,
		client:    client,
		batchSize: 1000,
		now:       time.Now,
	}
}

// TimeRange 时间范围（闭区间，按开盘时间）
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// GetKlinesInRange 获取指定时间范围内已收盘的K线，按开盘时间升序
func (km *KlineManager) GetKlinesInRange(ctx context.Context, pair cex.TradingPair, tf timeframes.Timeframe, startTime, endTime time.Time) ([]*cex.KlineData, error) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("KlineManager")

	step, err := tf.GetDuration()
	if err != nil {
		return nil, err
	}
	if !endTime.After(startTime) {
		return nil, fmt.Errorf("invalid time range: %s - %s", startTime, endTime)
	}

	logger.Debug("获取时间范围K线数据",
		"symbol", pair.Symbol(),
		"timeframe", tf.String(),
		"start", startTime.Format("2006-01-02 15:04"),
		"end", endTime.Format("2006-01-02 15:04"))

	if km.store == nil {
		return km.fetchRange(ctx, pair, tf, startTime, endTime)
	}

	// 1. 从数据库获取范围内的数据
	dbKlines, err := km.store.GetKlines(ctx, pair, tf.String(), startTime, endTime, 0)
	if err != nil {
		logger.Error("从数据库获取范围K线数据失败，改为从网络获取", "error", err)
		return km.fetchRange(ctx, pair, tf, startTime, endTime)
	}

	// 2. 检查数据完整性；尚未收盘的部分不算缺失
	missing := findMissingRanges(dbKlines, startTime, km.lastClosedOpenTime(endTime, step), step)
	if len(missing) == 0 {
		logger.Info("数据库数据完整", "count", len(dbKlines))
		return dbKlines, nil
	}

	// 3. 补充缺失的数据
	logger.Info("发现缺失数据段", "missing_ranges", len(missing))

	var fetched []*cex.KlineData
	for _, r := range missing {
		logger.Debug("补充缺失数据段",
			"start", r.Start.Format("2006-01-02 15:04"),
			"end", r.End.Format("2006-01-02 15:04"))

		klines, err := km.fetchRange(ctx, pair, tf, r.Start, r.End)
		if err != nil {
			logger.Error("获取缺失数据失败", "error", err)
			continue
		}
		fetched = append(fetched, klines...)
	}

	if len(fetched) > 0 {
		if err := km.store.SaveKlinesBatch(ctx, pair, tf.String(), fetched); err != nil {
			logger.Error("批量保存缺失数据失败", "error", err)
		} else {
			logger.Info("批量保存缺失数据", "count", len(fetched))
		}
	}

	result := mergeKlines(dbKlines, fetched)
	logger.Info("获取完整K线数据", "total_count", len(result))
	return result, nil
}

// fetchRange 分页从交易所获取，丢弃未收盘的K线
func (km *KlineManager) fetchRange(ctx context.Context, pair cex.TradingPair, tf timeframes.Timeframe, startTime, endTime time.Time) ([]*cex.KlineData, error) {
	step, err := tf.GetDuration()
	if err != nil {
		return nil, err
	}

	now := km.now()
	var result []*cex.KlineData
	cursor := startTime
	for !cursor.After(endTime) {
		batch, err := km.client.GetKlinesWithTimeRange(ctx, pair, tf.GetBinanceInterval(), cursor, endTime, km.batchSize)
		if err != nil {
			return result, fmt.Errorf("failed to fetch klines from %s: %w", km.client.GetName(), err)
		}
		if len(batch) == 0 {
			break
		}

		for _, k := range batch {
			if k.CloseTime.After(now) {
				continue
			}
			k.TradingPair = pair
			k.State = cex.DataStateHistory
			result = append(result, k)
		}

		if len(batch) < km.batchSize {
			break
		}
		cursor = batch[len(batch)-1].OpenTime.Add(step)
	}

	return result, nil
}

// lastClosedOpenTime 截止到 endTime 且已收盘的最后一根K线的开盘时间上界
func (km *KlineManager) lastClosedOpenTime(endTime time.Time, step time.Duration) time.Time {
	latest := km.now().Add(-step)
	if latest.Before(endTime) {
		return latest
	}
	return endTime
}

// findMissingRanges 查找缺失的时间范围
func findMissingRanges(klines []*cex.KlineData, startTime, endTime time.Time, step time.Duration) []TimeRange {
	if endTime.Before(startTime) {
		return nil
	}
	if len(klines) == 0 {
		return []TimeRange{{Start: startTime, End: endTime}}
	}

	var missing []TimeRange

	// 开始时间之前
	if first := klines[0].OpenTime; first.Sub(startTime) >= step {
		missing = append(missing, TimeRange{Start: startTime, End: first.Add(-step)})
	}

	// 中间缺口
	for i := 0; i < len(klines)-1; i++ {
		expected := klines[i].OpenTime.Add(step)
		if klines[i+1].OpenTime.After(expected) {
			missing = append(missing, TimeRange{Start: expected, End: klines[i+1].OpenTime.Add(-step)})
		}
	}

	// 结束时间之后
	if next := klines[len(klines)-1].OpenTime.Add(step); !next.After(endTime) {
		missing = append(missing, TimeRange{Start: next, End: endTime})
	}

	return missing
}

// mergeKlines 按开盘时间去重合并，后者覆盖前者
func mergeKlines(base, extra []*cex.KlineData) []*cex.KlineData {
	byTime := make(map[int64]*cex.KlineData, len(base)+len(extra))
	for _, k := range base {
		byTime[k.OpenTime.UnixMilli()] = k
	}
	for _, k := range extra {
		byTime[k.OpenTime.UnixMilli()] = k
	}

	result := make([]*cex.KlineData, 0, len(byTime))
	for _, k := range byTime {
		result = append(result, k)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenTime.Before(result[j].OpenTime)
	})
	return result
}

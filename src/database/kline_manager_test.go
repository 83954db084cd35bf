package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"rsibot/src/cex"
	"rsibot/src/timeframes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStore = errors.New("store unavailable")

// memoryStore 内存K线存储
type memoryStore struct {
	klines  []*cex.KlineData
	saved   []*cex.KlineData
	readErr error
}

func (s *memoryStore) SaveKlinesBatch(ctx context.Context, pair cex.TradingPair, timeframe string, klines []*cex.KlineData) error {
	s.saved = append(s.saved, klines...)
	return nil
}

func (s *memoryStore) GetKlines(ctx context.Context, pair cex.TradingPair, timeframe string, startTime, endTime time.Time, limit int) ([]*cex.KlineData, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	var result []*cex.KlineData
	for _, k := range s.klines {
		if !k.OpenTime.Before(startTime) && !k.OpenTime.After(endTime) {
			result = append(result, k)
		}
	}
	return result, nil
}

// rangeClient 只实现按时间范围获取K线
type rangeClient struct {
	cex.CEXClient
	klines []*cex.KlineData
	calls  int
}

func (c *rangeClient) GetName() string { return "range" }

func (c *rangeClient) GetKlinesWithTimeRange(ctx context.Context, pair cex.TradingPair, interval string, startTime, endTime time.Time, limit int) ([]*cex.KlineData, error) {
	c.calls++
	var result []*cex.KlineData
	for _, k := range c.klines {
		if k.OpenTime.Before(startTime) || k.OpenTime.After(endTime) {
			continue
		}
		copied := *k
		result = append(result, &copied)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

var rangeStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func hourlyKlines(from, count int) []*cex.KlineData {
	klines := make([]*cex.KlineData, count)
	for i := range klines {
		klines[i] = testKline(rangeStart.Add(time.Duration(from+i)*time.Hour), float64(100+from+i))
	}
	return klines
}

func newTestManager(store KlineStore, client cex.CEXClient) *KlineManager {
	km := NewKlineManager(store, client)
	km.now = func() time.Time { return rangeStart.Add(48 * time.Hour) }
	return km
}

func TestKlineManager_NetworkOnly(t *testing.T) {
	client := &rangeClient{klines: hourlyKlines(0, 10)}
	km := newTestManager(nil, client)

	klines, err := km.GetKlinesInRange(context.Background(), testPair, timeframes.Timeframe1h,
		rangeStart, rangeStart.Add(9*time.Hour))
	require.NoError(t, err)
	assert.Len(t, klines, 10)
	assert.Equal(t, cex.DataStateHistory, klines[0].State)
	assert.Equal(t, testPair, klines[0].TradingPair)
}

func TestKlineManager_Pagination(t *testing.T) {
	client := &rangeClient{klines: hourlyKlines(0, 25)}
	km := newTestManager(nil, client)
	km.batchSize = 10

	klines, err := km.GetKlinesInRange(context.Background(), testPair, timeframes.Timeframe1h,
		rangeStart, rangeStart.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, klines, 25)
	assert.Equal(t, 3, client.calls)
	for i := 1; i < len(klines); i++ {
		assert.True(t, klines[i].OpenTime.After(klines[i-1].OpenTime))
	}
}

func TestKlineManager_DropsUnclosedKlines(t *testing.T) {
	client := &rangeClient{klines: hourlyKlines(0, 50)}
	km := newTestManager(nil, client)

	// now = 第48小时，只有前48根已收盘
	klines, err := km.GetKlinesInRange(context.Background(), testPair, timeframes.Timeframe1h,
		rangeStart, rangeStart.Add(49*time.Hour))
	require.NoError(t, err)
	assert.Len(t, klines, 48)
}

func TestKlineManager_DatabaseComplete(t *testing.T) {
	store := &memoryStore{klines: hourlyKlines(0, 10)}
	client := &rangeClient{}
	km := newTestManager(store, client)

	klines, err := km.GetKlinesInRange(context.Background(), testPair, timeframes.Timeframe1h,
		rangeStart, rangeStart.Add(9*time.Hour))
	require.NoError(t, err)
	assert.Len(t, klines, 10)
	assert.Equal(t, 0, client.calls)
	assert.Empty(t, store.saved)
}

func TestKlineManager_BackfillsTailAndGaps(t *testing.T) {
	// 数据库缺第3、4根和最后两根
	stored := append(hourlyKlines(0, 3), hourlyKlines(5, 3)...)
	store := &memoryStore{klines: stored}
	client := &rangeClient{klines: hourlyKlines(0, 10)}
	km := newTestManager(store, client)

	klines, err := km.GetKlinesInRange(context.Background(), testPair, timeframes.Timeframe1h,
		rangeStart, rangeStart.Add(9*time.Hour))
	require.NoError(t, err)
	require.Len(t, klines, 10)
	for i, k := range klines {
		assert.Equal(t, rangeStart.Add(time.Duration(i)*time.Hour), k.OpenTime)
	}

	// 补齐的数据写回数据库
	assert.Len(t, store.saved, 4)
	assert.Equal(t, 2, client.calls)
}

func TestKlineManager_StoreErrorFallsBackToNetwork(t *testing.T) {
	store := &memoryStore{readErr: errStore}
	client := &rangeClient{klines: hourlyKlines(0, 5)}
	km := newTestManager(store, client)

	klines, err := km.GetKlinesInRange(context.Background(), testPair, timeframes.Timeframe1h,
		rangeStart, rangeStart.Add(4*time.Hour))
	require.NoError(t, err)
	assert.Len(t, klines, 5)
	assert.Empty(t, store.saved)
}

func TestKlineManager_InvalidInput(t *testing.T) {
	km := newTestManager(nil, &rangeClient{})

	_, err := km.GetKlinesInRange(context.Background(), testPair, timeframes.Timeframe("7m"), rangeStart, rangeStart.Add(time.Hour))
	assert.Error(t, err)

	_, err = km.GetKlinesInRange(context.Background(), testPair, timeframes.Timeframe1h, rangeStart, rangeStart)
	assert.Error(t, err)
}

func TestFindMissingRanges(t *testing.T) {
	step := time.Hour
	end := rangeStart.Add(9 * time.Hour)

	assert.Equal(t, []TimeRange{{Start: rangeStart, End: end}}, findMissingRanges(nil, rangeStart, end, step))
	assert.Empty(t, findMissingRanges(hourlyKlines(0, 10), rangeStart, end, step))

	missing := findMissingRanges(hourlyKlines(2, 3), rangeStart, end, step)
	require.Len(t, missing, 2)
	assert.Equal(t, TimeRange{Start: rangeStart, End: rangeStart.Add(time.Hour)}, missing[0])
	assert.Equal(t, TimeRange{Start: rangeStart.Add(5 * time.Hour), End: end}, missing[1])
}

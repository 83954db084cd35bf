package trading

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rsibot/src/cex"
	"rsibot/src/config"
	"rsibot/src/database"
	"rsibot/src/engine"
	"rsibot/src/executor"
	"rsibot/src/strategies"
	"rsibot/src/strategy"
	"rsibot/src/timeframes"

	"github.com/google/uuid"
	"github.com/xpwu/go-log/log"
	"golang.org/x/sync/errgroup"
)

// TradingSystem 交易系统：每个交易对一个引擎，交易对之间不共享状态
type TradingSystem struct {
	config       *config.Config
	client       cex.CEXClient
	database     *database.PostgresDB
	klineManager *database.KlineManager

	mu      sync.Mutex
	engines []*engine.Engine
}

// NewTradingSystem 创建交易系统
func NewTradingSystem(cfg *config.Config) *TradingSystem {
	if cfg == nil {
		cfg = config.AppConfig
	}
	return &TradingSystem{config: cfg}
}

// SetClient 指定交易所客户端，未指定时 Initialize 通过工厂创建
func (ts *TradingSystem) SetClient(client cex.CEXClient) {
	ts.client = client
}

// SetDatabase 指定数据库，未指定时按数据库配置连接
func (ts *TradingSystem) SetDatabase(db *database.PostgresDB) {
	ts.database = db
}

// GetConfig 获取配置
func (ts *TradingSystem) GetConfig() *config.Config {
	return ts.config
}

// Initialize 校验配置、创建交易所客户端、连接数据库
func (ts *TradingSystem) Initialize(ctx context.Context) error {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("TradingSystem")

	if err := ts.config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if ts.client == nil {
		client, err := cex.CreateCEXClient(ts.config.Trading.CEX)
		if err != nil {
			return fmt.Errorf("failed to create CEX client: %w", err)
		}
		ts.client = client
	}

	if ts.database == nil && database.GlobalDatabaseConfig.Enabled {
		db, err := database.NewPostgresDB(database.GlobalDatabaseConfig)
		if err == nil {
			err = db.EnsureSchema(ctx)
			if err != nil {
				_ = db.Close()
			}
		}
		if err != nil {
			logger.Error("数据库不可用，只使用网络数据", "error", err)
		} else {
			ts.database = db
			logger.Info("数据库已连接", "dbname", database.GlobalDatabaseConfig.DBName)
		}
	}

	if ts.database != nil {
		ts.klineManager = database.NewKlineManager(ts.database, ts.client)
	} else {
		ts.klineManager = database.NewKlineManager(nil, ts.client)
	}

	if !ts.config.IsBacktestMode() {
		if err := ts.client.Ping(ctx); err != nil {
			return fmt.Errorf("failed to connect to %s: %w", ts.client.GetName(), err)
		}
		logger.Info("交易所连接正常", "cex", ts.client.GetName())
	}

	return nil
}

// newEngine 为交易对创建策略和引擎
func (ts *TradingSystem) newEngine(pair cex.TradingPair, tf timeframes.Timeframe, exec executor.Executor, wrap func(strategy.Strategy) strategy.Strategy) (*engine.Engine, error) {
	params, err := ts.config.GetStrategyParams()
	if err != nil {
		return nil, err
	}

	strat, err := strategies.NewRSITrailingStrategy(pair, params, strategies.WithTimeframe(tf.Label()))
	if err != nil {
		return nil, fmt.Errorf("failed to create strategy for %s: %w", pair, err)
	}

	var s strategy.Strategy = strat
	if wrap != nil {
		s = wrap(s)
	}

	eng := engine.NewEngine(pair, s, exec)
	eng.SetSymbolFilters(ts.config.GetSymbolFilters(pair))

	ts.mu.Lock()
	ts.engines = append(ts.engines, eng)
	ts.mu.Unlock()
	return eng, nil
}

// BacktestResult 单个交易对的回测结果
type BacktestResult struct {
	RunID        string
	TradingPair  cex.TradingPair
	Timeframe    timeframes.Timeframe
	StrategyName string
	Params       map[string]interface{}
	StartTime    time.Time
	EndTime      time.Time
	Bars         int
	DroppedBars  int
	Statistics   executor.Statistics
	Trades       []executor.TradeSummary
}

// tradeRecorder 记录平仓事件后转交给策略
type tradeRecorder struct {
	strategy.Strategy
	trades []executor.TradeSummary
}

func (r *tradeRecorder) OnTradeClosed(ctx context.Context, trade executor.TradeSummary) {
	r.trades = append(r.trades, trade)
	r.Strategy.OnTradeClosed(ctx, trade)
}

// RunBacktest 并行回测多个交易对，结果顺序与 pairs 一致
func (ts *TradingSystem) RunBacktest(ctx context.Context, pairs []cex.TradingPair) ([]*BacktestResult, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no trading pairs to backtest")
	}
	if ts.klineManager == nil {
		return nil, fmt.Errorf("trading system not initialized")
	}

	tf, err := ts.config.GetTimeframe()
	if err != nil {
		return nil, err
	}
	start, end, err := ts.config.GetBacktestRange(time.Now())
	if err != nil {
		return nil, err
	}

	results := make([]*BacktestResult, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	for i, pair := range pairs {
		i, pair := i, pair
		g.Go(func() error {
			result, err := ts.backtestPair(gctx, pair, tf, start, end)
			if err != nil {
				return fmt.Errorf("backtest %s: %w", pair, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (ts *TradingSystem) backtestPair(ctx context.Context, pair cex.TradingPair, tf timeframes.Timeframe, start, end time.Time) (*BacktestResult, error) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("TradingSystem")

	if expected, err := tf.CalculateDataPoints(end.Sub(start)); err == nil {
		logger.Info("加载回测数据", "symbol", pair.String(), "timeframe", tf.Label(), "expected_bars", expected)
	}

	klines, err := ts.klineManager.GetKlinesInRange(ctx, pair, tf, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load klines: %w", err)
	}
	if len(klines) == 0 {
		return nil, fmt.Errorf("no klines for %s between %s and %s", pair, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	exec := executor.NewBacktestExecutor(pair, ts.config.GetInitialCapital())
	exec.SetCommission(ts.config.GetCommission())

	recorder := &tradeRecorder{}
	eng, err := ts.newEngine(pair, tf, exec, func(s strategy.Strategy) strategy.Strategy {
		recorder.Strategy = s
		return recorder
	})
	if err != nil {
		return nil, err
	}

	feed := engine.NewBacktestDataFeed(klines)
	if err := eng.RunBacktest(ctx, feed); err != nil {
		return nil, err
	}

	result := &BacktestResult{
		RunID:        uuid.NewString(),
		TradingPair:  pair,
		Timeframe:    tf,
		StrategyName: eng.Strategy().GetName(),
		Params:       eng.Strategy().GetParams(),
		StartTime:    start,
		EndTime:      end,
		Bars:         eng.BarCount(),
		DroppedBars:  feed.Dropped(),
		Statistics:   exec.Statistics(),
		Trades:       recorder.trades,
	}

	if ts.database != nil {
		if err := ts.database.SaveBacktestRun(ctx, toBacktestRun(result), toTradeRecords(result)); err != nil {
			logger.Error("保存回测结果失败", "error", err)
		}
	}

	return result, nil
}

func toBacktestRun(r *BacktestResult) *database.BacktestRun {
	return &database.BacktestRun{
		ID:              r.RunID,
		Symbol:          r.TradingPair.Symbol(),
		Timeframe:       r.Timeframe.String(),
		StrategyName:    r.StrategyName,
		StrategyParams:  r.Params,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		InitialCapital:  r.Statistics.InitialCapital,
		FinalValue:      r.Statistics.FinalValue,
		FreeCash:        r.Statistics.Cash,
		TotalReturn:     r.Statistics.TotalReturn,
		MaxDrawdown:     r.Statistics.MaxDrawdown,
		TotalTrades:     r.Statistics.TotalTrades,
		WinningTrades:   r.Statistics.WinningTrades,
		LosingTrades:    r.Statistics.LosingTrades,
		TotalCommission: r.Statistics.TotalCommission,
	}
}

func toTradeRecords(r *BacktestResult) []database.TradeRecord {
	records := make([]database.TradeRecord, 0, len(r.Trades))
	for _, t := range r.Trades {
		records = append(records, database.TradeRecord{
			Symbol:     t.TradingPair.Symbol(),
			Size:       t.Size,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			PnL:        t.PnL,
			PnLComm:    t.PnLComm,
			Commission: t.Commission,
			OpenedAt:   t.OpenedAt,
			ClosedAt:   t.ClosedAt,
		})
	}
	return records
}

// RunLive 实时运行所有交易对，dry 模式使用模拟撮合
func (ts *TradingSystem) RunLive(ctx context.Context, pairs []cex.TradingPair) error {
	if ts.config.IsBacktestMode() {
		return fmt.Errorf("cannot run live trading in backtest mode")
	}
	if len(pairs) == 0 {
		return fmt.Errorf("no trading pairs to trade")
	}
	if ts.client == nil {
		return fmt.Errorf("trading system not initialized")
	}

	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("TradingSystem")

	tf, err := ts.config.GetTimeframe()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, pair := range pairs {
		exec := ts.newLiveExecutor(pair)
		eng, err := ts.newEngine(pair, tf, exec, nil)
		if err != nil {
			return err
		}

		feed := engine.NewLiveDataFeed(ts.client, pair, tf.GetBinanceInterval(), ts.config.GetKlinePollInterval())
		feed.SetWarmup(ts.config.GetWarmupBars())

		logger.Info("启动交易对", "symbol", pair.String(), "mode", ts.config.Trading.Mode, "executor", exec.GetName())
		g.Go(func() error {
			defer eng.Close()
			return eng.RunLive(gctx, feed)
		})
	}

	return g.Wait()
}

func (ts *TradingSystem) newLiveExecutor(pair cex.TradingPair) executor.Executor {
	if ts.config.IsLiveMode() {
		exec := executor.NewLiveExecutor(ts.client, pair)
		exec.SetPollInterval(ts.config.GetOrderPollInterval())
		return exec
	}

	exec := executor.NewBacktestExecutor(pair, ts.config.GetInitialCapital())
	exec.SetCommission(ts.config.GetCommission())
	return exec
}

// Engines 已创建的引擎
func (ts *TradingSystem) Engines() []*engine.Engine {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]*engine.Engine(nil), ts.engines...)
}

// Stop 停止所有引擎
func (ts *TradingSystem) Stop() {
	for _, eng := range ts.Engines() {
		eng.Stop()
	}
}

// Close 停止并释放资源
func (ts *TradingSystem) Close() error {
	ts.Stop()
	if ts.database != nil {
		return ts.database.Close()
	}
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"rsibot/src/cex"
	"rsibot/src/config"
	"rsibot/src/position"
	"rsibot/src/strategy"
	"rsibot/src/trading"

	"github.com/xpwu/go-cmd/arg"
	"github.com/xpwu/go-cmd/cmd"
)

// rsiOptions 命令行参数，零值表示使用配置文件中的值
type rsiOptions struct {
	base      string
	quote     string
	pairs     string
	timeframe string
	live      bool
	dry       bool

	startDate string
	endDate   string
	lookback  int
	capital   float64

	period        int
	level         float64
	entryFraction float64
	trail         float64
	commission    float64
	reset         string
	params        string
}

// RegisterRSICmd 注册 RSI 移动止损交易命令
func RegisterRSICmd() {
	var opts rsiOptions

	cmd.RegisterCmd("rsi", "run RSI trailing-stop trading (default: backtest)", func(args *arg.Arg) {
		args.String(&opts.base, "base", "base currency (e.g., CTT, BTC, ETH)")
		args.String(&opts.quote, "quote", "quote currency (e.g., USDT)")
		args.String(&opts.pairs, "pairs", "comma separated trading pairs (e.g., BTC/USDT,ETH/USDT), default: enabled symbols in config")
		args.String(&opts.timeframe, "t", "timeframe (e.g., 1m, 1h, 4h)")
		args.Bool(&opts.live, "live", "run in live trading mode with real orders")
		args.Bool(&opts.dry, "dry", "run in dry run mode (live data, simulated fills)")

		// 回测参数
		args.String(&opts.startDate, "start", "backtest start date (YYYY-MM-DD)")
		args.String(&opts.endDate, "end", "backtest end date (YYYY-MM-DD), default: now")
		args.Int(&opts.lookback, "lookback", "bars to look back when -start is omitted")
		args.Float64(&opts.capital, "capital", "initial capital (default: 100)")

		// 策略参数
		args.Int(&opts.period, "period", "RSI period (default: 14)")
		args.Float64(&opts.level, "level", "enter when RSI is below this level (default: 30)")
		args.Float64(&opts.entryFraction, "entry-fraction", "fraction of free cash used per entry (default: 0.3)")
		args.Float64(&opts.trail, "trail", "trailing stop fraction (default: 0.02)")
		args.Float64(&opts.commission, "commission", "commission rate for simulated fills (default: 0.0015)")
		args.String(&opts.reset, "reset", "position reset after a sell decision: atomic|delayed (default: atomic)")
		args.String(&opts.params, "params", "strategy parameter overrides (e.g., 'period=14,level=25')")
		args.Parse()

		pairs, err := opts.apply(config.AppConfig)
		if err != nil {
			fmt.Printf("❌ Error: %v\n", err)
			printRSIUsage()
			os.Exit(1)
		}

		if err := runRSI(config.AppConfig, pairs); err != nil {
			fmt.Printf("❌ Trading system error: %v\n", err)
			os.Exit(1)
		}
	})
}

// apply 把命令行参数写入配置，返回要运行的交易对
func (o *rsiOptions) apply(cfg *config.Config) ([]cex.TradingPair, error) {
	if o.live && o.dry {
		return nil, fmt.Errorf("--live and --dry cannot be used together")
	}
	switch {
	case o.live:
		cfg.Trading.Mode = config.ModeLive
	case o.dry:
		cfg.Trading.Mode = config.ModeDry
	default:
		cfg.Trading.Mode = config.ModeBacktest
	}

	pairs, err := o.resolvePairs(cfg)
	if err != nil {
		return nil, err
	}

	if o.timeframe != "" {
		cfg.Trading.Timeframe = o.timeframe
	}
	if o.capital != 0 {
		cfg.Trading.InitialCapital = o.capital
	}
	if o.commission != 0 {
		cfg.Backtest.Commission = o.commission
	}

	if cfg.Trading.Mode == config.ModeBacktest {
		if o.startDate == "" && o.lookback <= 0 && cfg.Backtest.StartDate == "" {
			return nil, fmt.Errorf("start date (-start) or -lookback is required for backtest mode")
		}
		if o.startDate != "" {
			cfg.Backtest.StartDate = o.startDate
		}
		if o.lookback > 0 {
			cfg.Backtest.StartDate = ""
			cfg.Backtest.LookbackBars = o.lookback
		}
		if o.endDate != "" {
			cfg.Backtest.EndDate = o.endDate
		}
	}

	params, err := o.strategyParams(cfg)
	if err != nil {
		return nil, err
	}
	cfg.SetStrategyParams(params)

	return pairs, cfg.Validate()
}

func (o *rsiOptions) resolvePairs(cfg *config.Config) ([]cex.TradingPair, error) {
	if o.pairs != "" {
		return ParseTradingPairs(o.pairs)
	}
	if o.base != "" || o.quote != "" {
		if o.base == "" || o.quote == "" {
			return nil, fmt.Errorf("both -base and -quote are required")
		}
		return []cex.TradingPair{CreateTradingPair(o.base, o.quote)}, nil
	}

	pairs := cfg.GetPairs()
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no trading pair given and no symbol enabled in config")
	}
	return pairs, nil
}

func (o *rsiOptions) strategyParams(cfg *config.Config) (*strategy.RSITrailingParams, error) {
	params, err := cfg.GetStrategyParams()
	if err != nil {
		return nil, err
	}

	if o.period != 0 {
		params.Period = o.period
	}
	if o.level != 0 {
		params.Level = o.level
	}
	if o.entryFraction != 0 {
		params.EntryFraction = o.entryFraction
	}
	if o.trail != 0 {
		params.TrailPercent = o.trail
	}
	if o.reset != "" {
		mode, err := position.ParseResetMode(o.reset)
		if err != nil {
			return nil, err
		}
		params.ResetMode = mode
	}

	overrides, err := strategy.ParseParamOverrides(o.params)
	if err != nil {
		return nil, err
	}
	if err := params.ApplyOverrides(overrides); err != nil {
		return nil, err
	}
	return params, nil
}

// runRSI 运行交易系统直到结束或收到退出信号
func runRSI(cfg *config.Config, pairs []cex.TradingPair) error {
	names := make([]string, len(pairs))
	for i, p := range pairs {
		names[i] = p.String()
	}

	fmt.Println("🤖 RSI Trailing Stop Trading System")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("📊 Trading Pairs: %s\n", strings.Join(names, ", "))
	fmt.Printf("⏰ Timeframe: %s\n", cfg.Trading.Timeframe)
	fmt.Printf("🏢 Exchange: %s\n", cfg.Trading.CEX)
	fmt.Printf("⚙️  Params: %+v\n", cfg.Strategy.Parameters)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tradingSystem := trading.NewTradingSystem(cfg)
	defer tradingSystem.Close()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalChan)
	go func() {
		select {
		case <-signalChan:
			fmt.Println("\n🔄 Shutting down...")
			tradingSystem.Stop()
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Printf("🔧 Initializing trading system...\n")
	if err := tradingSystem.Initialize(ctx); err != nil {
		return err
	}

	switch cfg.Trading.Mode {
	case config.ModeBacktest:
		fmt.Printf("💰 Initial Capital: %.2f\n", cfg.Trading.InitialCapital)
		results, err := tradingSystem.RunBacktest(ctx, pairs)
		if err != nil {
			return fmt.Errorf("backtest failed: %w", err)
		}
		trading.PrintBacktestResults(os.Stdout, results)
		return nil

	case config.ModeDry:
		fmt.Println("🧪 Dry Run mode")
		fmt.Println("💡 Using real-time data with simulated orders")

	default:
		fmt.Println("🔴 Live trading mode")
		fmt.Println("⚠️  WARNING: This will use real money!")
	}
	fmt.Println("Press Ctrl+C to stop...")

	if err := tradingSystem.RunLive(ctx, pairs); err != nil {
		return fmt.Errorf("live trading failed: %w", err)
	}
	return nil
}

func printRSIUsage() {
	fmt.Printf("💡 Usage: ./bin/rsibot rsi -base BASE -quote QUOTE -start YYYY-MM-DD [-end YYYY-MM-DD]\n")
	fmt.Printf("   Example: ./bin/rsibot rsi -base CTT -quote USDT -start 2024-01-01\n")
	fmt.Printf("   Multiple pairs: ./bin/rsibot rsi -pairs BTC/USDT,ETH/USDT -t 1h -lookback 2000\n")
	fmt.Printf("📝 For dry run: ./bin/rsibot rsi -base CTT -quote USDT --dry\n")
	fmt.Printf("🔴 For live trading: ./bin/rsibot rsi -base CTT -quote USDT --live\n")
}

// RegisterAllTradingCommands 注册所有命令
func RegisterAllTradingCommands() {
	RegisterRSICmd()
	RegisterKlineCmd()
	RegisterPingCmd()
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"rsibot/src/cex"
	"rsibot/src/config"
	"rsibot/src/database"
	"rsibot/src/timeframes"

	"github.com/shopspring/decimal"
	"github.com/xpwu/go-cmd/arg"
	"github.com/xpwu/go-cmd/cmd"
)

// klineOptions K线命令参数
type klineOptions struct {
	base     string
	quote    string
	interval string
	limit    int
	days     int
	save     bool
	verbose  bool
}

// RegisterKlineCmd 注册K线数据命令
func RegisterKlineCmd() {
	var opts klineOptions

	cmd.RegisterCmd("kline", "fetch klines from the exchange, optionally persist them to PostgreSQL", func(args *arg.Arg) {
		args.String(&opts.base, "base", "base currency (default: BTC)")
		args.String(&opts.quote, "quote", "quote currency (default: USDT)")
		args.String(&opts.interval, "i", "kline interval (default: 1m)")
		args.Int(&opts.limit, "l", "number of latest klines (default: 10, max: 1000)")
		args.Int(&opts.days, "days", "fetch closed klines of the last N days instead of -l (capped per timeframe)")
		args.Bool(&opts.save, "save", "save klines to the configured database")
		args.Bool(&opts.verbose, "v", "verbose output with detailed information")
		args.Parse()

		opts.setDefaults()
		if err := runKline(opts); err != nil {
			fmt.Printf("❌ K线数据获取失败: %v\n", err)
			return
		}
	})
}

func (o *klineOptions) setDefaults() {
	if o.base == "" {
		o.base = "BTC"
	}
	if o.quote == "" {
		o.quote = "USDT"
	}
	if o.interval == "" {
		o.interval = "1m"
	}
	if o.limit <= 0 {
		o.limit = 10
	}
	if o.limit > 1000 {
		o.limit = 1000
	}
}

// runKline 获取并展示K线
func runKline(opts klineOptions) error {
	pair := CreateTradingPair(opts.base, opts.quote)
	tf, err := timeframes.ParseTimeframe(opts.interval)
	if err != nil {
		return err
	}

	client, err := cex.CreateCEXClient(config.AppConfig.Trading.CEX)
	if err != nil {
		return err
	}

	fmt.Printf("📊 K线数据获取\n")
	fmt.Printf("================================\n")
	fmt.Printf("🔸 交易对: %s\n", pair.String())
	fmt.Printf("🔸 时间周期: %s (%s)\n", tf.String(), tf.Label())
	fmt.Printf("🔸 数据源: %s\n", client.GetName())
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var db *database.PostgresDB
	if opts.save {
		db, err = database.NewPostgresDB(database.GlobalDatabaseConfig)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	fmt.Print("🔄 正在获取K线数据...")
	startTime := time.Now()

	var klines []*cex.KlineData
	if opts.days > 0 {
		days := min(opts.days, tf.GetMaxHistoryDays())
		end := time.Now().UTC()

		var store database.KlineStore
		if db != nil {
			store = db
		}
		// 通过数据库时，缺失部分会自动补齐并保存
		klines, err = database.NewKlineManager(store, client).GetKlinesInRange(ctx, pair, tf, end.AddDate(0, 0, -days), end)
	} else {
		klines, err = client.GetKlines(ctx, pair, tf.GetBinanceInterval(), opts.limit)
		if err == nil && db != nil {
			err = db.SaveKlines(ctx, pair, tf.String(), closedOnly(klines, time.Now()))
		}
	}
	if err != nil {
		fmt.Printf("\n❌ 获取失败: %v\n", err)
		return err
	}

	fmt.Printf(" 完成! (耗时: %v)\n", time.Since(startTime))

	if len(klines) == 0 {
		fmt.Println("⚠️ 未获取到数据")
		return nil
	}

	fmt.Printf("✅ 成功获取 %d 条K线数据\n\n", len(klines))
	printKlineSummary(pair, klines, opts.verbose)

	if db != nil {
		latest, err := db.GetLatestKlineTime(ctx, pair, tf.String())
		if err == nil && !latest.IsZero() {
			fmt.Printf("🗄️ 数据库最新K线: %s\n", formatTime(latest))
		}
	}
	return nil
}

// closedOnly 去掉尚未收盘的K线
func closedOnly(klines []*cex.KlineData, now time.Time) []*cex.KlineData {
	result := make([]*cex.KlineData, 0, len(klines))
	for _, k := range klines {
		if !k.CloseTime.After(now) {
			result = append(result, k)
		}
	}
	return result
}

func printKlineSummary(pair cex.TradingPair, klines []*cex.KlineData, verbose bool) {
	latest := klines[len(klines)-1]

	fmt.Println("📈 数据概览:")
	fmt.Printf("├─ 最新时间: %s\n", formatTime(latest.OpenTime))
	fmt.Printf("├─ 最早时间: %s\n", formatTime(klines[0].OpenTime))
	fmt.Printf("├─ 最新价格: %s %s\n", latest.Close.String(), pair.Quote)
	fmt.Printf("└─ 最新成交量: %s %s\n", latest.Volume.String(), pair.Base)
	fmt.Println()

	if !verbose {
		return
	}

	fmt.Println("📋 详细K线数据 (最近5条):")
	fmt.Println("时间         | 开盘价    | 最高价    | 最低价    | 收盘价    | 成交量")
	fmt.Println("-------------|----------|----------|----------|----------|----------")

	from := len(klines) - 5
	if from < 0 {
		from = 0
	}
	for _, kline := range klines[from:] {
		fmt.Printf("%s | %8s | %8s | %8s | %8s | %8s\n",
			formatTime(kline.OpenTime),
			formatPrice(kline.Open),
			formatPrice(kline.High),
			formatPrice(kline.Low),
			formatPrice(kline.Close),
			formatVolume(kline.Volume),
		)
	}
	fmt.Println()

	if len(klines) >= 2 {
		previous := klines[len(klines)-2]
		priceChange := latest.Close.Sub(previous.Close)
		priceChangePercent := priceChange.Div(previous.Close).Mul(decimal.NewFromInt(100))

		fmt.Println("📊 价格变化:")
		fmt.Printf("├─ 价格变化: %s %s\n", priceChange.String(), pair.Quote)
		fmt.Printf("├─ 变化幅度: %s%%\n", priceChangePercent.StringFixed(2))

		if priceChange.IsPositive() {
			fmt.Printf("└─ 趋势: 📈 上涨\n")
		} else if priceChange.IsNegative() {
			fmt.Printf("└─ 趋势: 📉 下跌\n")
		} else {
			fmt.Printf("└─ 趋势: ➡️ 平盘\n")
		}
	}
}

// formatTime 格式化时间
func formatTime(t time.Time) string {
	return t.UTC().Format("01-02 15:04")
}

// formatPrice 格式化价格，小数位随价格量级调整
func formatPrice(price decimal.Decimal) string {
	if price.LessThan(decimal.NewFromInt(1)) {
		return price.StringFixed(6)
	}
	return price.StringFixed(2)
}

// formatVolume 格式化成交量
func formatVolume(volume decimal.Decimal) string {
	if volume.GreaterThan(decimal.NewFromInt(1000)) {
		return volume.Div(decimal.NewFromInt(1000)).StringFixed(1) + "K"
	}
	return volume.StringFixed(2)
}

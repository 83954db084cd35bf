package cmd

import (
	"context"
	"fmt"
	"time"

	"rsibot/src/cex"
	"rsibot/src/config"
	"rsibot/src/database"

	"github.com/xpwu/go-cmd/arg"
	"github.com/xpwu/go-cmd/cmd"
)

// RegisterPingCmd 注册ping测试命令
func RegisterPingCmd() {
	var verbose bool
	var timeout int
	var checkDB bool

	cmd.RegisterCmd("ping", "test connectivity to the exchange API (and optionally the database)", func(args *arg.Arg) {
		args.Bool(&verbose, "v", "verbose output with detailed information")
		args.Int(&timeout, "t", "timeout in seconds (default: 10)")
		args.Bool(&checkDB, "db", "also check the PostgreSQL kline store")
		args.Parse()

		if timeout <= 0 {
			timeout = 10
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
		defer cancel()

		if err := runPingTest(ctx, verbose); err != nil {
			fmt.Printf("❌ Ping test failed: %v\n", err)
			return
		}
		fmt.Println("✅ Ping test successful!")

		if checkDB {
			if err := runDatabaseCheck(ctx); err != nil {
				fmt.Printf("❌ Database check failed: %v\n", err)
				return
			}
			fmt.Println("✅ Database check successful!")
		}
	})
}

// runPingTest 执行ping测试
func runPingTest(ctx context.Context, verbose bool) error {
	client, err := cex.CreateCEXClient(config.AppConfig.Trading.CEX)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Println("🌐 交易所API连通性测试")
		fmt.Println("================================")
		fmt.Printf("📡 交易所: %s\n", client.GetName())
		fmt.Println()
		fmt.Print("🔄 正在测试连接...")
	}

	startTime := time.Now()
	err = client.Ping(ctx)
	latency := time.Since(startTime)

	if err != nil {
		if verbose {
			fmt.Printf("\n❌ 连接失败: %v\n", err)
			fmt.Printf("⏱️ 测试耗时: %v\n", latency)
		}
		return err
	}

	if verbose {
		fmt.Printf(" 完成!\n")
		fmt.Printf("✅ 服务器响应正常\n")
		fmt.Printf("⏱️ 响应延迟: %v\n", latency)
		fmt.Printf("🌍 网络质量: %s\n", latencyQuality(latency))
	}
	return nil
}

// runDatabaseCheck 检查数据库并显示每个启用交易对的最新K线时间
func runDatabaseCheck(ctx context.Context) error {
	db, err := database.NewPostgresDB(database.GlobalDatabaseConfig)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	tf := config.AppConfig.Trading.Timeframe
	for _, pair := range config.AppConfig.GetPairs() {
		latest, err := db.GetLatestKlineTime(ctx, pair, tf)
		if err != nil {
			return err
		}
		if latest.IsZero() {
			fmt.Printf("🗄️ %s %s: 无数据\n", pair.String(), tf)
			continue
		}
		fmt.Printf("🗄️ %s %s: 最新K线 %s\n", pair.String(), tf, formatTime(latest))
	}
	return nil
}

func latencyQuality(latency time.Duration) string {
	switch {
	case latency < 100*time.Millisecond:
		return "优秀"
	case latency < 300*time.Millisecond:
		return "良好"
	case latency < time.Second:
		return "一般"
	default:
		return "较差"
	}
}

package main

import (
	"context"
	"os"
	"path/filepath"

	_ "rsibot/src/cex/binance"
	tradingcmd "rsibot/src/cmd"

	"github.com/xpwu/go-cmd/cmd"
	"github.com/xpwu/go-config/configs"
	"github.com/xpwu/go-log/log"
)

func main() {
	// 设置 JSON 配置格式
	configs.SetConfigurator(&configs.JsonConfig{})

	setupConfigPath()

	err := configs.ReadWithErr()
	if err != nil {
		// 读取失败时生成默认配置文件
		printErr := configs.Print()
		if printErr != nil {
			panic("生成默认配置文件失败: " + printErr.Error())
		}
		panic("请修改 config.json 配置文件后重新运行")
	}

	_, logger := log.WithCtx(context.Background())
	logger.PushPrefix("RSIBot")
	logger.Info("交易机器人启动")

	tradingcmd.RegisterAllTradingCommands()

	cmd.Run()
}

// setupConfigPath 优先使用可执行文件目录下的 config.json，其次是当前目录
func setupConfigPath() {
	execPath, err := os.Executable()
	if err != nil {
		return
	}

	execDir := filepath.Dir(execPath)
	if _, err := os.Stat(filepath.Join(execDir, "config.json")); err == nil {
		_ = os.Chdir(execDir)
	}
}

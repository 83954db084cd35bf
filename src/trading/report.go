package trading

import (
	"fmt"
	"io"
	"time"

	"rsibot/src/executor"

	"github.com/shopspring/decimal"
)

// TradeAnalysis 平仓交易分析
type TradeAnalysis struct {
	Trades       int
	Wins         int
	Losses       int
	GrossPnL     decimal.Decimal
	NetPnL       decimal.Decimal
	AverageWin   decimal.Decimal
	AverageLoss  decimal.Decimal
	ProfitFactor decimal.Decimal // 总盈利/总亏损，没有亏损时为0
	AverageHold  time.Duration
}

// AnalyzeTrades 按扣除手续费后的盈亏统计
func AnalyzeTrades(trades []executor.TradeSummary) TradeAnalysis {
	a := TradeAnalysis{Trades: len(trades)}
	if len(trades) == 0 {
		return a
	}

	totalWin := decimal.Zero
	totalLoss := decimal.Zero
	var hold time.Duration
	for _, t := range trades {
		a.GrossPnL = a.GrossPnL.Add(t.PnL)
		a.NetPnL = a.NetPnL.Add(t.PnLComm)
		if t.PnLComm.IsPositive() {
			a.Wins++
			totalWin = totalWin.Add(t.PnLComm)
		} else {
			a.Losses++
			totalLoss = totalLoss.Add(t.PnLComm.Abs())
		}
		hold += t.ClosedAt.Sub(t.OpenedAt)
	}

	if a.Wins > 0 {
		a.AverageWin = totalWin.Div(decimal.NewFromInt(int64(a.Wins)))
	}
	if a.Losses > 0 {
		a.AverageLoss = totalLoss.Div(decimal.NewFromInt(int64(a.Losses)))
	}
	if totalLoss.IsPositive() {
		a.ProfitFactor = totalWin.Div(totalLoss)
	}
	a.AverageHold = hold / time.Duration(len(trades))
	return a
}

// formatDuration 格式化持仓时长
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0m"
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh", days, hours)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// PrintBacktestResults 打印回测结果
func PrintBacktestResults(w io.Writer, results []*BacktestResult) {
	for _, r := range results {
		printResult(w, r)
	}
}

func printResult(w io.Writer, r *BacktestResult) {
	stats := r.Statistics
	analysis := AnalyzeTrades(r.Trades)

	fmt.Fprintln(w, "\n============================================================")
	fmt.Fprintln(w, "📊 BACKTEST RESULTS")
	fmt.Fprintln(w, "============================================================")
	fmt.Fprintf(w, "Run ID: %s\n", r.RunID)
	fmt.Fprintf(w, "Strategy: %s %v\n", r.StrategyName, r.Params)
	fmt.Fprintf(w, "Symbol: %s\n", r.TradingPair.String())
	fmt.Fprintf(w, "Timeframe: %s\n", r.Timeframe.Label())
	fmt.Fprintf(w, "Period: %s ~ %s (%d bars, %d dropped)\n",
		r.StartTime.Format("2006-01-02 15:04"), r.EndTime.Format("2006-01-02 15:04"), r.Bars, r.DroppedBars)

	fmt.Fprintln(w, "\n💰 PORTFOLIO")
	fmt.Fprintln(w, "------------------------------")
	fmt.Fprintf(w, "Starting Portfolio Value: %.2f\n", stats.InitialCapital.InexactFloat64())
	fmt.Fprintf(w, "Final Portfolio Value: %.2f\n", stats.FinalValue.InexactFloat64())
	fmt.Fprintf(w, "Free Cash: %.2f\n", stats.Cash.InexactFloat64())
	fmt.Fprintf(w, "Position: %s\n", stats.Position.String())
	fmt.Fprintf(w, "Total Return: %.2f%%\n", stats.TotalReturn.Mul(decimal.NewFromInt(100)).InexactFloat64())
	fmt.Fprintf(w, "Max Drawdown: %.2f%%\n", stats.MaxDrawdown.Mul(decimal.NewFromInt(100)).InexactFloat64())

	fmt.Fprintln(w, "\n📊 TRADING STATISTICS")
	fmt.Fprintln(w, "------------------------------")
	fmt.Fprintf(w, "Total Trades: %d\n", stats.TotalTrades)
	fmt.Fprintf(w, "Winning Trades: %d\n", stats.WinningTrades)
	fmt.Fprintf(w, "Losing Trades: %d\n", stats.LosingTrades)
	fmt.Fprintf(w, "Win Rate: %.2f%%\n", stats.WinRate().Mul(decimal.NewFromInt(100)).InexactFloat64())
	fmt.Fprintf(w, "Filled Orders: %d, Rejected Orders: %d\n", stats.FilledOrders, stats.RejectedOrders)
	fmt.Fprintf(w, "Gross P&L: %.4f, Net P&L: %.4f\n", analysis.GrossPnL.InexactFloat64(), analysis.NetPnL.InexactFloat64())
	fmt.Fprintf(w, "Average Win: %.4f, Average Loss: %.4f, Profit Factor: %.2f\n",
		analysis.AverageWin.InexactFloat64(), analysis.AverageLoss.InexactFloat64(), analysis.ProfitFactor.InexactFloat64())
	fmt.Fprintf(w, "Average Hold: %s\n", formatDuration(analysis.AverageHold))
	fmt.Fprintf(w, "Total Commission: %.4f\n", stats.TotalCommission.InexactFloat64())

	if len(r.Trades) > 0 {
		fmt.Fprintln(w, "\n📋 RECENT TRADES (Last 10)")
		fmt.Fprintln(w, "--------------------------------------------------------------------------------")
		fmt.Fprintln(w, "Opened      Closed      Size         Entry        Exit         Net P&L")
		fmt.Fprintln(w, "--------------------------------------------------------------------------------")

		from := len(r.Trades) - 10
		if from < 0 {
			from = 0
		}
		for _, t := range r.Trades[from:] {
			fmt.Fprintf(w, "%s %s %12.6f %12.6f %12.6f %12.4f\n",
				t.OpenedAt.Format("01-02 15:04"),
				t.ClosedAt.Format("01-02 15:04"),
				t.Size.InexactFloat64(),
				t.EntryPrice.InexactFloat64(),
				t.ExitPrice.InexactFloat64(),
				t.PnLComm.InexactFloat64(),
			)
		}
	}

	fmt.Fprintln(w, "\n============================================================")
}

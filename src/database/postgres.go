package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"rsibot/src/cex"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// PostgresDB PostgreSQL数据库连接
type PostgresDB struct {
	db *sql.DB
}

// BacktestRun 回测运行记录
type BacktestRun struct {
	ID              string                 `json:"id"`
	Symbol          string                 `json:"symbol"`
	Timeframe       string                 `json:"timeframe"`
	StrategyName    string                 `json:"strategy_name"`
	StrategyParams  map[string]interface{} `json:"strategy_params"`
	StartTime       time.Time              `json:"start_time"`
	EndTime         time.Time              `json:"end_time"`
	InitialCapital  decimal.Decimal        `json:"initial_capital"`
	FinalValue      decimal.Decimal        `json:"final_value"`
	FreeCash        decimal.Decimal        `json:"free_cash"`
	TotalReturn     decimal.Decimal        `json:"total_return"`
	MaxDrawdown     decimal.Decimal        `json:"max_drawdown"`
	TotalTrades     int                    `json:"total_trades"`
	WinningTrades   int                    `json:"winning_trades"`
	LosingTrades    int                    `json:"losing_trades"`
	TotalCommission decimal.Decimal        `json:"total_commission"`
}

// TradeRecord 已平仓交易记录
type TradeRecord struct {
	Symbol     string          `json:"symbol"`
	Size       decimal.Decimal `json:"size"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	ExitPrice  decimal.Decimal `json:"exit_price"`
	PnL        decimal.Decimal `json:"pnl"`
	PnLComm    decimal.Decimal `json:"pnl_comm"`
	Commission decimal.Decimal `json:"commission"`
	OpenedAt   time.Time       `json:"opened_at"`
	ClosedAt   time.Time       `json:"closed_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS klines (
	symbol       VARCHAR(32)     NOT NULL,
	timeframe    VARCHAR(8)      NOT NULL,
	open_time    BIGINT          NOT NULL,
	close_time   BIGINT          NOT NULL,
	open_price   NUMERIC(36, 18) NOT NULL,
	high_price   NUMERIC(36, 18) NOT NULL,
	low_price    NUMERIC(36, 18) NOT NULL,
	close_price  NUMERIC(36, 18) NOT NULL,
	volume       NUMERIC(36, 18) NOT NULL,
	quote_volume NUMERIC(36, 18) NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ     NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at   TIMESTAMPTZ     NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (symbol, timeframe, open_time)
);

CREATE TABLE IF NOT EXISTS backtest_runs (
	id               UUID PRIMARY KEY,
	symbol           VARCHAR(32)     NOT NULL,
	timeframe        VARCHAR(8)      NOT NULL,
	strategy_name    VARCHAR(64)     NOT NULL,
	strategy_params  JSONB,
	start_time       TIMESTAMPTZ     NOT NULL,
	end_time         TIMESTAMPTZ     NOT NULL,
	initial_capital  NUMERIC(36, 18) NOT NULL,
	final_value      NUMERIC(36, 18) NOT NULL,
	free_cash        NUMERIC(36, 18) NOT NULL,
	total_return     NUMERIC(36, 18) NOT NULL,
	max_drawdown     NUMERIC(36, 18) NOT NULL,
	total_trades     INT             NOT NULL,
	winning_trades   INT             NOT NULL,
	losing_trades    INT             NOT NULL,
	total_commission NUMERIC(36, 18) NOT NULL,
	created_at       TIMESTAMPTZ     NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS trades (
	id          BIGSERIAL PRIMARY KEY,
	run_id      UUID            NOT NULL,
	symbol      VARCHAR(32)     NOT NULL,
	size        NUMERIC(36, 18) NOT NULL,
	entry_price NUMERIC(36, 18) NOT NULL,
	exit_price  NUMERIC(36, 18) NOT NULL,
	pnl         NUMERIC(36, 18) NOT NULL,
	pnl_comm    NUMERIC(36, 18) NOT NULL,
	commission  NUMERIC(36, 18) NOT NULL,
	opened_at   TIMESTAMPTZ     NOT NULL,
	closed_at   TIMESTAMPTZ     NOT NULL
);
`

// NewPostgresDB 创建PostgreSQL数据库连接
func NewPostgresDB(cfg DatabaseConfig) (*PostgresDB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 测试连接
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 设置连接池参数
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresDB{db: db}, nil
}

// NewPostgresDBWithConn 使用已有连接
func NewPostgresDBWithConn(db *sql.DB) *PostgresDB {
	return &PostgresDB{db: db}
}

// Close 关闭数据库连接
func (p *PostgresDB) Close() error {
	return p.db.Close()
}

// EnsureSchema 建表（已存在时跳过）
func (p *PostgresDB) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", describe(err))
	}
	return nil
}

// describe 附带 PostgreSQL 错误码
func describe(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%w (code=%s, %s)", err, pqErr.Code, pqErr.Code.Name())
	}
	return err
}

const upsertKlineColumns = `
	INSERT INTO klines (
		symbol, timeframe, open_time, close_time,
		open_price, high_price, low_price, close_price,
		volume, quote_volume
	) VALUES `

const upsertKlineConflict = `
	ON CONFLICT (symbol, timeframe, open_time)
	DO UPDATE SET
		close_time = EXCLUDED.close_time,
		open_price = EXCLUDED.open_price,
		high_price = EXCLUDED.high_price,
		low_price = EXCLUDED.low_price,
		close_price = EXCLUDED.close_price,
		volume = EXCLUDED.volume,
		quote_volume = EXCLUDED.quote_volume,
		updated_at = CURRENT_TIMESTAMP
	WHERE (
		klines.close_price != EXCLUDED.close_price OR
		klines.high_price != EXCLUDED.high_price OR
		klines.low_price != EXCLUDED.low_price OR
		klines.volume != EXCLUDED.volume
	)
`

const klineColumnCount = 10

func klineArgs(symbol, timeframe string, k *cex.KlineData) []interface{} {
	return []interface{}{
		symbol, timeframe, k.OpenTime.UnixMilli(), k.CloseTime.UnixMilli(),
		k.Open, k.High, k.Low, k.Close,
		k.Volume, k.QuoteVolume,
	}
}

// SaveKlines 逐条写入K线数据（单个事务）
func (p *PostgresDB) SaveKlines(ctx context.Context, pair cex.TradingPair, timeframe string, klines []*cex.KlineData) error {
	if len(klines) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertKlineColumns+
		"($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)"+upsertKlineConflict)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	symbol := pair.Symbol()
	for _, kline := range klines {
		if _, err := stmt.ExecContext(ctx, klineArgs(symbol, timeframe, kline)...); err != nil {
			return fmt.Errorf("failed to insert kline: %w", describe(err))
		}
	}

	return tx.Commit()
}

// SaveKlinesBatch 批量写入K线数据，每批一条多值 INSERT
func (p *PostgresDB) SaveKlinesBatch(ctx context.Context, pair cex.TradingPair, timeframe string, klines []*cex.KlineData) error {
	// 分批处理，避免SQL语句过长
	const batchSize = 100
	for i := 0; i < len(klines); i += batchSize {
		end := min(i+batchSize, len(klines))
		if err := p.saveBatch(ctx, pair.Symbol(), timeframe, klines[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgresDB) saveBatch(ctx context.Context, symbol, timeframe string, klines []*cex.KlineData) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	valueStrings := make([]string, 0, len(klines))
	valueArgs := make([]interface{}, 0, len(klines)*klineColumnCount)

	for i, kline := range klines {
		placeholders := make([]string, klineColumnCount)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", i*klineColumnCount+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ", ")+")")
		valueArgs = append(valueArgs, klineArgs(symbol, timeframe, kline)...)
	}

	query := upsertKlineColumns + strings.Join(valueStrings, ",") + upsertKlineConflict
	if _, err := tx.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("failed to batch insert klines: %w", describe(err))
	}

	return tx.Commit()
}

// GetKlines 按开盘时间升序查询，零值时间表示不限
func (p *PostgresDB) GetKlines(ctx context.Context, pair cex.TradingPair, timeframe string, startTime, endTime time.Time, limit int) ([]*cex.KlineData, error) {
	query := `
		SELECT open_time, close_time, open_price, high_price, low_price, close_price,
		       volume, quote_volume
		FROM klines
		WHERE symbol = $1 AND timeframe = $2
	`
	args := []interface{}{pair.Symbol(), timeframe}
	argIndex := 3

	if !startTime.IsZero() {
		query += fmt.Sprintf(" AND open_time >= $%d", argIndex)
		args = append(args, startTime.UnixMilli())
		argIndex++
	}

	if !endTime.IsZero() {
		query += fmt.Sprintf(" AND open_time <= $%d", argIndex)
		args = append(args, endTime.UnixMilli())
		argIndex++
	}

	query += " ORDER BY open_time ASC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, limit)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query klines: %w", describe(err))
	}
	defer rows.Close()

	var klines []*cex.KlineData
	for rows.Next() {
		var openTime, closeTime int64
		kline := &cex.KlineData{TradingPair: pair, State: cex.DataStateHistory}
		err := rows.Scan(
			&openTime, &closeTime,
			&kline.Open, &kline.High, &kline.Low, &kline.Close,
			&kline.Volume, &kline.QuoteVolume,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan kline: %w", err)
		}
		kline.OpenTime = time.UnixMilli(openTime).UTC()
		kline.CloseTime = time.UnixMilli(closeTime).UTC()
		klines = append(klines, kline)
	}

	return klines, rows.Err()
}

// GetLatestKlineTime 最新K线的开盘时间，没有数据时返回零值
func (p *PostgresDB) GetLatestKlineTime(ctx context.Context, pair cex.TradingPair, timeframe string) (time.Time, error) {
	var openTime sql.NullInt64
	err := p.db.QueryRowContext(ctx,
		"SELECT MAX(open_time) FROM klines WHERE symbol = $1 AND timeframe = $2",
		pair.Symbol(), timeframe,
	).Scan(&openTime)

	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get latest kline time: %w", err)
	}

	if !openTime.Valid {
		return time.Time{}, nil
	}

	return time.UnixMilli(openTime.Int64).UTC(), nil
}

// SaveBacktestRun 保存回测结果及其平仓记录
func (p *PostgresDB) SaveBacktestRun(ctx context.Context, run *BacktestRun, trades []TradeRecord) error {
	params, err := json.Marshal(run.StrategyParams)
	if err != nil {
		return fmt.Errorf("failed to marshal strategy params: %w", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO backtest_runs (
			id, symbol, timeframe, strategy_name, strategy_params,
			start_time, end_time, initial_capital, final_value, free_cash,
			total_return, max_drawdown, total_trades, winning_trades, losing_trades,
			total_commission
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		run.ID, run.Symbol, run.Timeframe, run.StrategyName, params,
		run.StartTime, run.EndTime, run.InitialCapital, run.FinalValue, run.FreeCash,
		run.TotalReturn, run.MaxDrawdown, run.TotalTrades, run.WinningTrades, run.LosingTrades,
		run.TotalCommission,
	)
	if err != nil {
		return fmt.Errorf("failed to insert backtest run: %w", describe(err))
	}

	if len(trades) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO trades (
				run_id, symbol, size, entry_price, exit_price,
				pnl, pnl_comm, commission, opened_at, closed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, t := range trades {
			_, err := stmt.ExecContext(ctx,
				run.ID, t.Symbol, t.Size, t.EntryPrice, t.ExitPrice,
				t.PnL, t.PnLComm, t.Commission, t.OpenedAt, t.ClosedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert trade: %w", describe(err))
			}
		}
	}

	return tx.Commit()
}

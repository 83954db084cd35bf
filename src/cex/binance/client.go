package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"rsibot/src/cex"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

// ErrTradingDisabled 配置未开启交易权限
var ErrTradingDisabled = errors.New("binance trading disabled by config")

// Client Binance客户端实现
type Client struct {
	client *binance.Client
	config Config
}

// NewClient 创建Binance客户端，其他参数取全局配置
func NewClient(apiKey, secretKey string) *Client {
	config := ConfigValue
	config.APIKey = apiKey
	config.SecretKey = secretKey
	return NewClientWithConfig(&config)
}

// NewClientWithConfig 按指定配置创建客户端
func NewClientWithConfig(config *Config) *Client {
	binanceClient := binance.NewClient(config.APIKey, config.SecretKey)
	if config.BaseURL != "" {
		binanceClient.BaseURL = config.BaseURL
	}
	if config.Timeout > 0 {
		binanceClient.HTTPClient = &http.Client{Timeout: time.Duration(config.Timeout) * time.Second}
	}

	return &Client{
		client: binanceClient,
		config: *config,
	}
}

// GetName 获取交易所名称
func (c *Client) GetName() string {
	return Name
}

// GetTradingFee 获取交易手续费率
func (c *Client) GetTradingFee() float64 {
	return c.config.Fee
}

func (c *Client) batchSize(limit int) int {
	if limit > 0 {
		return limit
	}
	if c.config.KlineBatchSize > 0 {
		return c.config.KlineBatchSize
	}
	return 1000
}

// GetKlines 获取最近的K线数据
func (c *Client) GetKlines(ctx context.Context, pair cex.TradingPair, interval string, limit int) ([]*cex.KlineData, error) {
	klines, err := c.client.NewKlinesService().
		Symbol(pair.Symbol()).
		Interval(interval).
		Limit(c.batchSize(limit)).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get klines from Binance: %w", err)
	}

	result := make([]*cex.KlineData, len(klines))
	for i, kline := range klines {
		result[i] = convertKline(kline, pair)
	}

	return result, nil
}

// GetKlinesWithTimeRange 获取指定时间范围的K线数据，分批请求直到覆盖整个区间
func (c *Client) GetKlinesWithTimeRange(ctx context.Context, pair cex.TradingPair, interval string, startTime, endTime time.Time, limit int) ([]*cex.KlineData, error) {
	batch := c.batchSize(limit)

	var allKlines []*cex.KlineData
	currentStart := startTime

	for currentStart.Before(endTime) {
		klines, err := c.client.NewKlinesService().
			Symbol(pair.Symbol()).
			Interval(interval).
			StartTime(currentStart.UnixMilli()).
			EndTime(endTime.UnixMilli()).
			Limit(batch).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get klines from Binance: %w", err)
		}

		if len(klines) == 0 {
			break
		}

		for _, kline := range klines {
			allKlines = append(allKlines, convertKline(kline, pair))
		}

		lastKline := klines[len(klines)-1]
		currentStart = time.UnixMilli(lastKline.CloseTime).Add(time.Millisecond)

		if len(klines) < batch {
			break
		}
	}

	return allKlines, nil
}

// Buy 市价买入
func (c *Client) Buy(ctx context.Context, order cex.BuyOrderRequest) (*cex.OrderResult, error) {
	return c.createOrder(ctx, order.TradingPair, binance.SideTypeBuy, order.Type, order.Quantity, order.Price, order.ClientOrderID)
}

// Sell 市价卖出
func (c *Client) Sell(ctx context.Context, order cex.SellOrderRequest) (*cex.OrderResult, error) {
	return c.createOrder(ctx, order.TradingPair, binance.SideTypeSell, order.Type, order.Quantity, order.Price, order.ClientOrderID)
}

func (c *Client) createOrder(ctx context.Context, pair cex.TradingPair, side binance.SideType,
	orderType cex.OrderType, quantity, price decimal.Decimal, clientOrderID string) (*cex.OrderResult, error) {
	if !c.config.EnableTrading {
		return nil, ErrTradingDisabled
	}

	service := c.client.NewCreateOrderService().
		Symbol(pair.Symbol()).
		Side(side).
		Type(binance.OrderType(orderType)).
		Quantity(quantity.String())

	if clientOrderID != "" {
		service = service.NewClientOrderID(clientOrderID)
	}
	if orderType == cex.OrderTypeLimit {
		service = service.Price(price.String()).TimeInForce(binance.TimeInForceTypeGTC)
	}

	resp, err := service.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to place %s order on Binance: %w", side, err)
	}

	executed := parseDecimal(resp.ExecutedQuantity)
	quote := parseDecimal(resp.CummulativeQuoteQuantity)

	commission, commissionAsset := sumCommission(resp.Fills)

	return &cex.OrderResult{
		TradingPair:     pair,
		OrderID:         strconv.FormatInt(resp.OrderID, 10),
		ClientOrderID:   resp.ClientOrderID,
		Price:           averagePrice(parseDecimal(resp.Price), quote, executed),
		Quantity:        executed,
		QuoteQuantity:   quote,
		Commission:      commission,
		CommissionAsset: commissionAsset,
		Side:            cex.OrderSide(resp.Side),
		Status:          string(resp.Status),
		Type:            cex.OrderType(resp.Type),
		TransactTime:    time.UnixMilli(resp.TransactTime),
	}, nil
}

// GetOrder 按客户端订单号查询订单
func (c *Client) GetOrder(ctx context.Context, pair cex.TradingPair, clientOrderID string) (*cex.OrderResult, error) {
	order, err := c.client.NewGetOrderService().
		Symbol(pair.Symbol()).
		OrigClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s from Binance: %w", clientOrderID, err)
	}

	executed := parseDecimal(order.ExecutedQuantity)
	quote := parseDecimal(order.CummulativeQuoteQuantity)

	return &cex.OrderResult{
		TradingPair:   pair,
		OrderID:       strconv.FormatInt(order.OrderID, 10),
		ClientOrderID: order.ClientOrderID,
		Price:         averagePrice(parseDecimal(order.Price), quote, executed),
		Quantity:      executed,
		QuoteQuantity: quote,
		Side:          cex.OrderSide(order.Side),
		Status:        string(order.Status),
		Type:          cex.OrderType(order.Type),
		TransactTime:  time.UnixMilli(order.UpdateTime),
	}, nil
}

// GetAccount 获取账户信息
func (c *Client) GetAccount(ctx context.Context) ([]*cex.AccountBalance, error) {
	account, err := c.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get account from Binance: %w", err)
	}

	balances := make([]*cex.AccountBalance, len(account.Balances))
	for i, balance := range account.Balances {
		balances[i] = &cex.AccountBalance{
			Asset:  balance.Asset,
			Free:   parseDecimal(balance.Free),
			Locked: parseDecimal(balance.Locked),
		}
	}

	return balances, nil
}

// Ping 测试连接
func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.NewPingService().Do(ctx); err != nil {
		return fmt.Errorf("Binance ping failed: %w", err)
	}
	return nil
}

// convertKline 转换Binance K线数据为标准格式
func convertKline(kline *binance.Kline, pair cex.TradingPair) *cex.KlineData {
	return &cex.KlineData{
		TradingPair: pair,
		OpenTime:    time.UnixMilli(kline.OpenTime),
		Open:        parseDecimal(kline.Open),
		High:        parseDecimal(kline.High),
		Low:         parseDecimal(kline.Low),
		Close:       parseDecimal(kline.Close),
		Volume:      parseDecimal(kline.Volume),
		CloseTime:   time.UnixMilli(kline.CloseTime),
		QuoteVolume: parseDecimal(kline.QuoteAssetVolume),
		State:       cex.DataStateHistory,
	}
}

// sumCommission 汇总成交明细的手续费；多个币种混合时只返回第一个币种的合计
func sumCommission(fills []*binance.Fill) (decimal.Decimal, string) {
	total := decimal.Zero
	asset := ""
	for _, fill := range fills {
		if fill == nil {
			continue
		}
		if asset == "" {
			asset = fill.CommissionAsset
		}
		if fill.CommissionAsset == asset {
			total = total.Add(parseDecimal(fill.Commission))
		}
	}
	return total, asset
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// averagePrice 市价单返回的 price 为 0，用成交额/成交量计算均价
func averagePrice(price, quote, executed decimal.Decimal) decimal.Decimal {
	if price.IsPositive() {
		return price
	}
	if executed.IsPositive() {
		return quote.Div(executed)
	}
	return decimal.Zero
}

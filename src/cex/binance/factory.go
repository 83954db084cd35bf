package binance

import (
	"rsibot/src/cex"
)

// Name 注册到 CEX 工厂的名称
const Name = "binance"

// Factory Binance工厂实现
type Factory struct{}

// CreateClient 使用全局配置创建Binance客户端
func (f *Factory) CreateClient() cex.CEXClient {
	return NewClientWithConfig(&ConfigValue)
}

func init() {
	cex.RegisterCEXFactory(Name, &Factory{})
}

package cex

import (
	"fmt"
	"sort"
	"sync"
)

// CEXFactory CEX工厂接口
type CEXFactory interface {
	CreateClient() CEXClient
}

var (
	registryMu         sync.RWMutex
	cexFactoryRegistry = make(map[string]CEXFactory)
)

// RegisterCEXFactory 注册CEX工厂
func RegisterCEXFactory(name string, factory CEXFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	cexFactoryRegistry[name] = factory
}

// CreateCEXClient 创建CEX客户端
func CreateCEXClient(cexName string) (CEXClient, error) {
	registryMu.RLock()
	factory, exists := cexFactoryRegistry[cexName]
	registryMu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCEX, cexName)
	}

	return factory.CreateClient(), nil
}

// GetSupportedCEXes 获取支持的CEX列表（按名称排序）
func GetSupportedCEXes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	cexes := make([]string, 0, len(cexFactoryRegistry))
	for name := range cexFactoryRegistry {
		cexes = append(cexes, name)
	}
	sort.Strings(cexes)
	return cexes
}

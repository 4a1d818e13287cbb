package config

import (
	"errors"
	"net"
	"time"
)

// ConnectivityConfig 连通性探测配置
type ConnectivityConfig struct {
	// BootstrapEndpoints TCP 可达性探测目标（host:port）
	BootstrapEndpoints []string `json:"bootstrap_endpoints,omitempty"`

	// STUNServers STUN 服务器（host:port），用于获取公网映射地址
	STUNServers []string `json:"stun_servers,omitempty"`

	// Timeout 单个目标的探测超时
	Timeout Duration `json:"timeout"`

	// MaxConcurrent 并发探测数
	MaxConcurrent int `json:"max_concurrent"`
}

// DefaultConnectivityConfig 默认探测配置
func DefaultConnectivityConfig() ConnectivityConfig {
	return ConnectivityConfig{
		STUNServers: []string{
			"stun.l.google.com:19302",
			"stun.cloudflare.com:3478",
		},
		Timeout:       Duration(3 * time.Second),
		MaxConcurrent: 4,
	}
}

// Validate 校验
func (c ConnectivityConfig) Validate() error {
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.MaxConcurrent < 1 {
		return errors.New("max_concurrent must be positive")
	}
	for _, list := range [][]string{c.BootstrapEndpoints, c.STUNServers} {
		for _, ep := range list {
			if _, _, err := net.SplitHostPort(ep); err != nil {
				return err
			}
		}
	}
	return nil
}

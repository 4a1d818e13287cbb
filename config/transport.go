package config

import (
	"fmt"
)

// 传输协议名
const (
	ProtocolTCP  = "tcp"
	ProtocolQUIC = "quic"
)

// TransportConfig 传输层配置
type TransportConfig struct {
	// Protocol tcp（yamux 多路复用）或 quic
	Protocol string `json:"protocol"`

	// Host 监听主机
	Host string `json:"host"`

	// Port 监听端口；0 表示由系统分配
	Port int `json:"port"`

	// ALPN QUIC 应用层协议标识
	ALPN string `json:"alpn,omitempty"`
}

// DefaultTransportConfig 默认传输配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Protocol: ProtocolTCP,
		Host:     "0.0.0.0",
		ALPN:     "topicswarm/1",
	}
}

// Validate 校验
func (c TransportConfig) Validate() error {
	switch c.Protocol {
	case ProtocolTCP, ProtocolQUIC:
	default:
		return fmt.Errorf("unsupported protocol %q", c.Protocol)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Protocol == ProtocolQUIC && c.ALPN == "" {
		return fmt.Errorf("alpn required for quic")
	}
	return nil
}

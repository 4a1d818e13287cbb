package config

import (
	"errors"
	"time"
)

// SwarmConfig Swarm 生命周期与连接策略
type SwarmConfig struct {
	// MaxPeers 连接总数上限（含待建立），超出时拒绝入站、跳过发现到的节点
	MaxPeers int `json:"max_peers"`

	// MaxConcurrentDials 同时进行的出站拨号上限
	MaxConcurrentDials int `json:"max_concurrent_dials"`

	// DialRate 每秒允许发起的拨号数；0 表示不限速
	DialRate float64 `json:"dial_rate"`

	// DialBurst 拨号令牌桶容量
	DialBurst int `json:"dial_burst"`

	// DialTimeout 单次拨号超时
	DialTimeout Duration `json:"dial_timeout"`

	// DestroyTimeout 销毁时等待资源释放的上限，超时后强制结算
	DestroyTimeout Duration `json:"destroy_timeout"`

	// LeaveClosesConnections 离开主题时关闭由该主题发现而建立的连接
	LeaveClosesConnections bool `json:"leave_closes_connections"`
}

// DefaultSwarmConfig 默认 Swarm 配置
func DefaultSwarmConfig() SwarmConfig {
	return SwarmConfig{
		MaxPeers:           64,
		MaxConcurrentDials: 8,
		DialRate:           10,
		DialBurst:          16,
		DialTimeout:        Duration(10 * time.Second),
		DestroyTimeout:     Duration(5 * time.Second),
	}
}

// Validate 校验
func (c SwarmConfig) Validate() error {
	if c.MaxPeers < 1 {
		return errors.New("max_peers must be positive")
	}
	if c.MaxConcurrentDials < 1 {
		return errors.New("max_concurrent_dials must be positive")
	}
	if c.DialRate < 0 {
		return errors.New("dial_rate must not be negative")
	}
	if c.DialRate > 0 && c.DialBurst < 1 {
		return errors.New("dial_burst must be positive when dial_rate is set")
	}
	if c.DialTimeout <= 0 {
		return errors.New("dial_timeout must be positive")
	}
	if c.DestroyTimeout <= 0 {
		return errors.New("destroy_timeout must be positive")
	}
	return nil
}

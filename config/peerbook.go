package config

import (
	"errors"
	"time"
)

// PeerBookConfig 已见节点簿配置
type PeerBookConfig struct {
	// Enable 是否记录发现的节点并在加入主题时回放
	Enable bool `json:"enable"`

	// Dir badger 数据目录；为空时使用内存模式
	Dir string `json:"dir,omitempty"`

	// TTL 记录有效期
	TTL Duration `json:"ttl"`

	// MaxReplay 加入主题时最多回放的节点数
	MaxReplay int `json:"max_replay"`
}

// DefaultPeerBookConfig 默认节点簿配置
func DefaultPeerBookConfig() PeerBookConfig {
	return PeerBookConfig{
		Enable:    true,
		TTL:       Duration(24 * time.Hour),
		MaxReplay: 16,
	}
}

// Validate 校验
func (c PeerBookConfig) Validate() error {
	if !c.Enable {
		return nil
	}
	if c.TTL <= 0 {
		return errors.New("ttl must be positive")
	}
	if c.MaxReplay < 0 {
		return errors.New("max_replay must not be negative")
	}
	return nil
}

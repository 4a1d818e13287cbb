package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/dep2p/go-topicswarm/pkg/types"
)

// DiscoveryConfig 节点发现配置
//
// 三种后端可同时启用，结果合并去重：
//   - memory: 进程内会合点，同一进程内的 Swarm 互相发现
//   - mdns: 局域网多播
//   - static: 按主题配置的固定节点
type DiscoveryConfig struct {
	EnableMemory bool `json:"enable_memory"`
	EnableMDNS   bool `json:"enable_mdns"`
	EnableStatic bool `json:"enable_static"`

	// StaticPeers 主题密钥（hex）-> "host:port" 列表
	StaticPeers map[string][]string `json:"static_peers,omitempty"`

	// LookupInterval 查找的初始间隔，之后按倍数退避
	LookupInterval Duration `json:"lookup_interval"`

	// MaxLookupInterval 查找间隔上限
	MaxLookupInterval Duration `json:"max_lookup_interval"`

	// MDNSService mDNS 服务名前缀
	MDNSService string `json:"mdns_service,omitempty"`
}

// DefaultDiscoveryConfig 默认发现配置
func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		EnableMemory:      true,
		EnableStatic:      true,
		LookupInterval:    Duration(time.Second),
		MaxLookupInterval: Duration(30 * time.Second),
		MDNSService:       "_topicswarm",
	}
}

// Validate 校验
func (c DiscoveryConfig) Validate() error {
	if !c.EnableMemory && !c.EnableMDNS && !c.EnableStatic {
		return errors.New("at least one discovery backend must be enabled")
	}
	if c.LookupInterval <= 0 {
		return errors.New("lookup_interval must be positive")
	}
	if c.MaxLookupInterval < c.LookupInterval {
		return errors.New("max_lookup_interval must not be below lookup_interval")
	}
	if c.EnableMDNS && c.MDNSService == "" {
		return errors.New("mdns_service required when mdns is enabled")
	}
	for topic, addrs := range c.StaticPeers {
		if _, err := types.ParseTopicKey(topic); err != nil {
			return fmt.Errorf("static_peers: %w", err)
		}
		for _, a := range addrs {
			host, port, err := net.SplitHostPort(a)
			if err != nil {
				return fmt.Errorf("static_peers[%s]: %w", topic, err)
			}
			p, err := strconv.Atoi(port)
			if err != nil {
				return fmt.Errorf("static_peers[%s]: bad port %q", topic, port)
			}
			if err := (types.PeerInfo{Host: host, Port: p}).Validate(); err != nil {
				return fmt.Errorf("static_peers[%s]: %w", topic, err)
			}
		}
	}
	return nil
}

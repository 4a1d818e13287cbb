// Package config 提供 topicswarm 的统一配置
//
// 主 Config 由各组件的子配置组成，每个子配置在独立文件中定义，
// 都有 DefaultXxxConfig() 与 Validate()：
//
//	cfg := config.NewConfig()
//	cfg.Transport.Port = 4001
//	cfg.Discovery.EnableMDNS = true
//
//	// 预设
//	_ = config.ApplyPreset(cfg, "lan")
//
//	// JSON
//	cfg, err := config.LoadFile("swarm.json")
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// Config topicswarm 完整配置
type Config struct {
	// Swarm 生命周期与连接策略
	Swarm SwarmConfig `json:"swarm"`

	// Transport 传输层
	Transport TransportConfig `json:"transport"`

	// Discovery 节点发现
	Discovery DiscoveryConfig `json:"discovery"`

	// Connectivity 连通性探测
	Connectivity ConnectivityConfig `json:"connectivity"`

	// PeerBook 已见节点簿
	PeerBook PeerBookConfig `json:"peer_book"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Swarm:        DefaultSwarmConfig(),
		Transport:    DefaultTransportConfig(),
		Discovery:    DefaultDiscoveryConfig(),
		Connectivity: DefaultConnectivityConfig(),
		PeerBook:     DefaultPeerBookConfig(),
	}
}

// Validate 逐个校验子配置，返回第一个错误
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if err := c.Swarm.Validate(); err != nil {
		return fmt.Errorf("swarm: %w", err)
	}
	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	if err := c.Discovery.Validate(); err != nil {
		return fmt.Errorf("discovery: %w", err)
	}
	if err := c.Connectivity.Validate(); err != nil {
		return fmt.Errorf("connectivity: %w", err)
	}
	if err := c.PeerBook.Validate(); err != nil {
		return fmt.Errorf("peer_book: %w", err)
	}
	return nil
}

// Clone 深拷贝
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Discovery.StaticPeers = make(map[string][]string, len(c.Discovery.StaticPeers))
	for k, v := range c.Discovery.StaticPeers {
		out.Discovery.StaticPeers[k] = append([]string(nil), v...)
	}
	out.Connectivity.BootstrapEndpoints = append([]string(nil), c.Connectivity.BootstrapEndpoints...)
	out.Connectivity.STUNServers = append([]string(nil), c.Connectivity.STUNServers...)
	return &out
}

// FromJSON 在默认配置之上解析 JSON，缺省字段保持默认值
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadFile 读取并校验 JSON 配置文件
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := FromJSON(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToJSON 以缩进格式序列化
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// ApplyPreset 应用预设
//
//   - "local": 仅进程内发现，适合测试与单机演示
//   - "lan": 启用 mDNS 局域网发现
//   - "server": 更大的连接上限与并发拨号数
func ApplyPreset(cfg *Config, name string) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	switch name {
	case "":
	case "local":
		cfg.Discovery.EnableMemory = true
		cfg.Discovery.EnableMDNS = false
		cfg.Transport.Host = "127.0.0.1"
	case "lan":
		cfg.Discovery.EnableMDNS = true
		cfg.Transport.Host = "0.0.0.0"
	case "server":
		cfg.Swarm.MaxPeers = 256
		cfg.Swarm.MaxConcurrentDials = 32
		cfg.Swarm.DialRate = 50
		cfg.Swarm.DialBurst = 64
	default:
		return fmt.Errorf("unknown preset: %s", name)
	}
	return nil
}

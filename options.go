package topicswarm

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-topicswarm/config"
	"github.com/dep2p/go-topicswarm/internal/core/discovery/memory"
	"github.com/dep2p/go-topicswarm/pkg/interfaces"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

// Option Swarm 构造选项
//
// 选项按顺序应用；WithConfig 替换整份配置，应放在最前面。
type Option func(*options) error

// options 内部选项结构
type options struct {
	config *config.Config

	// 外部注入的组件，存在时不按配置创建
	transport interfaces.Transport
	discovery interfaces.Discovery
	network   *memory.Network
	clock     clock.Clock
	metrics   prometheus.Registerer
}

// newOptions 创建默认选项
func newOptions() *options {
	return &options{config: config.NewConfig()}
}

// WithConfig 使用完整配置（复制后使用）
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("config is nil")
		}
		o.config = cfg.Clone()
		return nil
	}
}

// WithPreset 应用预设：local / lan / server
func WithPreset(name string) Option {
	return func(o *options) error {
		return config.ApplyPreset(o.config, name)
	}
}

// WithHost 监听主机
func WithHost(host string) Option {
	return func(o *options) error {
		o.config.Transport.Host = host
		return nil
	}
}

// WithPort 监听端口；0 表示由系统分配
func WithPort(port int) Option {
	return func(o *options) error {
		if port < 0 || port > 65535 {
			return &types.InvalidInputError{Field: "port", Reason: fmt.Sprintf("port %d out of range", port)}
		}
		o.config.Transport.Port = port
		return nil
	}
}

// WithProtocol 传输协议：tcp / quic
func WithProtocol(protocol string) Option {
	return func(o *options) error {
		o.config.Transport.Protocol = protocol
		return nil
	}
}

// WithTransport 注入传输实现
//
// 注入的传输归调用方所有：Swarm 销毁时不关闭它，可在多个 Swarm 间共享。
func WithTransport(t interfaces.Transport) Option {
	return func(o *options) error {
		o.transport = t
		return nil
	}
}

// WithDiscovery 注入发现服务
func WithDiscovery(d interfaces.Discovery) Option {
	return func(o *options) error {
		o.discovery = d
		return nil
	}
}

// WithMemoryNetwork 使用指定的进程内会合点，并启用 memory 发现后端
func WithMemoryNetwork(n *memory.Network) Option {
	return func(o *options) error {
		o.network = n
		o.config.Discovery.EnableMemory = true
		return nil
	}
}

// WithClock 注入时钟
func WithClock(c clock.Clock) Option {
	return func(o *options) error {
		o.clock = c
		return nil
	}
}

// WithMetrics 在注册表上导出 Swarm 指标，销毁时注销
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) error {
		o.metrics = reg
		return nil
	}
}

// WithMaxPeers 连接总数上限
func WithMaxPeers(n int) Option {
	return func(o *options) error {
		o.config.Swarm.MaxPeers = n
		return nil
	}
}

// WithDialTimeout 单次拨号超时
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) error {
		o.config.Swarm.DialTimeout = config.Duration(d)
		return nil
	}
}

// WithDestroyTimeout 销毁时等待资源释放的上限
func WithDestroyTimeout(d time.Duration) Option {
	return func(o *options) error {
		o.config.Swarm.DestroyTimeout = config.Duration(d)
		return nil
	}
}

// WithLeaveClosesConnections 离开主题时是否关闭由该主题建立的连接
func WithLeaveClosesConnections(enable bool) Option {
	return func(o *options) error {
		o.config.Swarm.LeaveClosesConnections = enable
		return nil
	}
}

// WithMDNS 启用或关闭局域网 mDNS 发现
func WithMDNS(enable bool) Option {
	return func(o *options) error {
		o.config.Discovery.EnableMDNS = enable
		return nil
	}
}

// WithStaticPeers 为主题配置固定节点
func WithStaticPeers(key types.TopicKey, addrs ...string) Option {
	return func(o *options) error {
		for _, a := range addrs {
			if _, err := types.ParseAddress(a); err != nil {
				return err
			}
		}
		if o.config.Discovery.StaticPeers == nil {
			o.config.Discovery.StaticPeers = make(map[string][]string)
		}
		hex := key.String()
		o.config.Discovery.StaticPeers[hex] = append(o.config.Discovery.StaticPeers[hex], addrs...)
		o.config.Discovery.EnableStatic = true
		return nil
	}
}

// WithBootstrapEndpoints 连通性探测的 TCP 目标
func WithBootstrapEndpoints(endpoints ...string) Option {
	return func(o *options) error {
		o.config.Connectivity.BootstrapEndpoints = endpoints
		return nil
	}
}

// WithSTUNServers 连通性探测的 STUN 服务器
func WithSTUNServers(servers ...string) Option {
	return func(o *options) error {
		o.config.Connectivity.STUNServers = servers
		return nil
	}
}

// WithPeerBook 节点簿：enable 为 false 时关闭；dir 为空时使用内存模式
func WithPeerBook(enable bool, dir string) Option {
	return func(o *options) error {
		o.config.PeerBook.Enable = enable
		o.config.PeerBook.Dir = dir
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              主题加入选项
// ════════════════════════════════════════════════════════════════════════════

// JoinOption 主题加入选项
type JoinOption func(*types.JoinOptions)

// Announce 是否向发现网络通告本节点（默认是）
func Announce(enable bool) JoinOption {
	return func(o *types.JoinOptions) { o.Announce = enable }
}

// Lookup 是否主动查找其他节点（默认是）
func Lookup(enable bool) JoinOption {
	return func(o *types.JoinOptions) { o.Lookup = enable }
}

// WithJoinOptions 直接指定全部加入选项
func WithJoinOptions(opts types.JoinOptions) JoinOption {
	return func(o *types.JoinOptions) { *o = opts }
}

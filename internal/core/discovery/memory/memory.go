// Package memory 提供进程内会合点发现
//
// 同一 Network 上的 Swarm 通过它互相通告与查找，不产生任何网络流量，
// 用于测试与单进程演示。
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-topicswarm/internal/core/discovery/backend"
	"github.com/dep2p/go-topicswarm/pkg/interfaces"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

// Source 发现来源标识
const Source = "memory"

// Record 会合点上的一条通告
type Record struct {
	Owner string
	Addr  types.Address
}

// Network 进程内会合点
type Network struct {
	mu      sync.Mutex
	topics  map[types.TopicKey]map[string]types.Address
	changed chan struct{}
}

// NewNetwork 创建会合点
func NewNetwork() *Network {
	return &Network{
		topics:  make(map[types.TopicKey]map[string]types.Address),
		changed: make(chan struct{}),
	}
}

var (
	defaultNetwork     *Network
	defaultNetworkOnce sync.Once
)

// Default 进程级共享会合点
func Default() *Network {
	defaultNetworkOnce.Do(func() { defaultNetwork = NewNetwork() })
	return defaultNetwork
}

// notifyLocked 唤醒所有等待者
func (n *Network) notifyLocked() {
	close(n.changed)
	n.changed = make(chan struct{})
}

// Changed 下一次变化时关闭的通道
func (n *Network) Changed() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.changed
}

// Announce 登记 owner 在主题上的地址；地址未变化时不通知
func (n *Network) Announce(key types.TopicKey, owner string, addr types.Address) {
	n.mu.Lock()
	defer n.mu.Unlock()
	owners, ok := n.topics[key]
	if !ok {
		owners = make(map[string]types.Address)
		n.topics[key] = owners
	}
	if prev, ok := owners[owner]; ok && prev == addr {
		return
	}
	owners[owner] = addr
	n.notifyLocked()
}

// Withdraw 撤销 owner 在主题上的通告
func (n *Network) Withdraw(key types.TopicKey, owner string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	owners, ok := n.topics[key]
	if !ok {
		return
	}
	if _, ok := owners[owner]; !ok {
		return
	}
	delete(owners, owner)
	if len(owners) == 0 {
		delete(n.topics, key)
	}
	n.notifyLocked()
}

// Lookup 主题上的全部通告
func (n *Network) Lookup(key types.TopicKey) []Record {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Record, 0, len(n.topics[key]))
	for owner, addr := range n.topics[key] {
		out = append(out, Record{Owner: owner, Addr: addr})
	}
	return out
}

// Backend 基于 Network 的发现后端
type Backend struct {
	net   *Network
	clock clock.Clock
	base  time.Duration
	max   time.Duration
}

var _ backend.Backend = (*Backend)(nil)

// NewBackend 创建后端；base/max 为重新检查本地地址与查找的间隔
func NewBackend(n *Network, clk clock.Clock, base, max time.Duration) *Backend {
	if clk == nil {
		clk = clock.New()
	}
	return &Backend{net: n, clock: clk, base: base, max: max}
}

// Name 后端名
func (b *Backend) Name() string { return Source }

// Run 通告与查找，直到 ctx 取消；退出时撤销通告
func (b *Backend) Run(ctx context.Context, req interfaces.StartRequest, found backend.FoundFunc) error {
	if req.Options.Announce {
		defer b.net.Withdraw(req.Key, req.SelfID)
	}
	iv := backend.NewInterval(b.base, b.max)
	announced := false

	for {
		changed := b.net.Changed()

		if req.Options.Announce {
			if addr, ok := req.Local(); ok {
				b.net.Announce(req.Key, req.SelfID, addr)
				if !announced {
					announced = true
					iv.Reset()
				}
			}
		}

		if req.Options.Lookup {
			for _, r := range b.net.Lookup(req.Key) {
				if r.Owner == req.SelfID {
					continue
				}
				found(types.PeerInfo{Host: r.Addr.Host, Port: r.Addr.Port, Source: Source})
			}
		}

		timer := b.clock.Timer(iv.Next())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-changed:
			timer.Stop()
			iv.Reset()
		case <-timer.C:
		}
	}
}

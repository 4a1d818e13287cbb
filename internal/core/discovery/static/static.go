// Package static 提供按主题配置的固定节点
package static

import (
	"context"
	"fmt"

	"github.com/dep2p/go-topicswarm/internal/core/discovery/backend"
	"github.com/dep2p/go-topicswarm/pkg/interfaces"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

// Source 发现来源标识
const Source = "static"

// Backend 固定节点后端：查找时报告一次配置的节点，通告为空操作
type Backend struct {
	peers map[types.TopicKey][]types.Address
}

var _ backend.Backend = (*Backend)(nil)

// New 创建后端
func New(peers map[types.TopicKey][]types.Address) *Backend {
	if peers == nil {
		peers = make(map[types.TopicKey][]types.Address)
	}
	return &Backend{peers: peers}
}

// FromConfig 从 "主题 hex -> host:port 列表" 构造
func FromConfig(raw map[string][]string) (*Backend, error) {
	peers := make(map[types.TopicKey][]types.Address, len(raw))
	for topic, addrs := range raw {
		key, err := types.ParseTopicKey(topic)
		if err != nil {
			return nil, err
		}
		for _, a := range addrs {
			addr, err := types.ParseAddress(a)
			if err != nil {
				return nil, fmt.Errorf("static peer %q: %w", a, err)
			}
			peers[key] = append(peers[key], addr)
		}
	}
	return New(peers), nil
}

// Name 后端名
func (b *Backend) Name() string { return Source }

// Len 配置了固定节点的主题数
func (b *Backend) Len() int { return len(b.peers) }

// Run 报告配置的节点后等待 ctx 取消
func (b *Backend) Run(ctx context.Context, req interfaces.StartRequest, found backend.FoundFunc) error {
	if req.Options.Lookup {
		for _, addr := range b.peers[req.Key] {
			found(types.PeerInfo{Host: addr.Host, Port: addr.Port, Source: Source})
		}
	}
	<-ctx.Done()
	return nil
}

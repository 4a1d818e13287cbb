// Package backend 定义发现后端接口与查找间隔
package backend

import (
	"context"

	"github.com/dep2p/go-topicswarm/pkg/interfaces"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

// FoundFunc 后端报告发现的节点；可并发调用
type FoundFunc func(peer types.PeerInfo)

// Backend 发现后端
//
// Run 阻塞到 ctx 取消或后端自然结束；因 ctx 取消返回时应返回 nil。
type Backend interface {
	Name() string
	Run(ctx context.Context, req interfaces.StartRequest, found FoundFunc) error
}

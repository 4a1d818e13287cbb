package interfaces

import (
	"context"

	"github.com/dep2p/go-topicswarm/pkg/types"
)

// LocalAddrFunc 返回当前监听地址；未监听时 ok 为 false
//
// 通告需要本地地址，而 Join 可以先于 Listen 调用，所以以函数形式传入，
// 由发现后端在每轮通告时读取。
type LocalAddrFunc func() (addr types.Address, ok bool)

// StartRequest 启动主题发现的参数
type StartRequest struct {
	// Key 主题密钥
	Key types.TopicKey

	// Options 通告/查找选项
	Options types.JoinOptions

	// Local 本地监听地址
	Local LocalAddrFunc

	// SelfID 本 swarm 标识，用于过滤自身通告
	SelfID string
}

// Discovery 发现网络
type Discovery interface {
	// Start 为主题启动后台发现任务，不阻塞
	//
	// ctx 取消等同于 task.Cancel()。
	Start(ctx context.Context, req StartRequest) (DiscoveryTask, error)
}

// DiscoveryTask 后台发现任务
type DiscoveryTask interface {
	// Peers 发现的节点；任务结束时关闭
	Peers() <-chan types.PeerInfo

	// Cancel 请求取消，幂等
	Cancel()

	// Done 任务完全结束（所有后端返回、Peers 已关闭）时关闭
	Done() <-chan struct{}

	// Err 任务结束原因；被取消时为 nil 或取消错误
	Err() error
}

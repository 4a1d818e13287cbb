package topicswarm

import (
	"github.com/dep2p/go-topicswarm/internal/core/registry"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              版本信息
// ════════════════════════════════════════════════════════════════════════════

// Version 当前版本
const Version = "v0.1.0"

// BuildInfo 构建信息（通过 ldflags 注入）
var (
	// GitCommit Git 提交哈希
	GitCommit string

	// BuildDate 构建日期
	BuildDate string
)

// VersionInfo 返回完整版本信息字符串
func VersionInfo() string {
	info := "topicswarm " + Version
	if GitCommit != "" {
		info += " (" + GitCommit[:min(8, len(GitCommit))] + ")"
	}
	if BuildDate != "" {
		info += " built " + BuildDate
	}
	return info
}

// ════════════════════════════════════════════════════════════════════════════
//                              类型别名
// ════════════════════════════════════════════════════════════════════════════

// Connection 被 Swarm 追踪的对等连接
type Connection = registry.Connection

// ConnectCallback 出站连接结果回调，恰好调用一次
type ConnectCallback = registry.ConnectCallback

// ConnectivityCallback 连通性探测结果回调，恰好调用一次
type ConnectivityCallback func(result types.ConnectivityResult, err error)

// 常用类型
type (
	// TopicKey 32 字节主题密钥
	TopicKey = types.TopicKey

	// Address 主机与端口
	Address = types.Address

	// PeerInfo 可拨号的节点描述
	PeerInfo = types.PeerInfo

	// JoinOptions 主题加入选项
	JoinOptions = types.JoinOptions

	// SwarmState Swarm 生命周期状态
	SwarmState = types.SwarmState

	// ConnectivityResult 连通性探测结果
	ConnectivityResult = types.ConnectivityResult
)

// 生命周期状态
const (
	StateActive     = types.StateActive
	StateDestroying = types.StateDestroying
	StateDestroyed  = types.StateDestroyed
)

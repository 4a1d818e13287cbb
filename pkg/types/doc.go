// Package types 定义 topicswarm 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - ids.go     - TopicKey 主题密钥
//   - address.go - Address 监听/拨号地址, PeerInfo 节点描述
//   - enums.go   - SwarmState, ConnPhase, Direction
//   - options.go - JoinOptions 主题加入选项
//   - result.go  - ConnectivityResult 连通性探测结果
//   - errors.go  - 错误分类（Destroyed / InvalidInput / Transport / Cancelled）
//   - events.go  - 事件总线事件类型
package types

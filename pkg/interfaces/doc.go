// Package interfaces 定义 topicswarm 的协作者接口
//
// Swarm 只通过这些窄接口使用外部协作者：
//   - Transport / Listener / Conn / Stream：绑定、拨号、关闭（握手与加密由实现负责）
//   - Discovery / DiscoveryTask：按主题通告与查找节点
//   - EventBus / Subscription / Emitter：类型化事件分发
//
// 实现位于 internal/core/transport、internal/core/discovery 与 internal/core/eventbus。
package interfaces

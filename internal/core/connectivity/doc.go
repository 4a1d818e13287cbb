// Package connectivity 提供对发现网络的尽力而为可达性探测
//
// Prober 并发探测配置的端点（TCP 引导节点、STUN 服务器），
// 首个成功应答即结束本轮探测；全部失败时结果为不可达而不是错误。
// 只有调用方上下文结束时才返回错误（*types.CancelledError）。
package connectivity

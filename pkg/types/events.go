package types

import "time"

// ============================================================================
//                              Swarm 事件
// ============================================================================
//
// 事件通过 eventbus 按类型分发，订阅时传入指针类型，例如：
//
//	sub, _ := bus.Subscribe(new(types.EvtSwarmClosed))

// EvtListening 监听器绑定成功
type EvtListening struct {
	SwarmID string
	Addr    Address
}

// EvtTopicJoined 加入（或更新）主题
type EvtTopicJoined struct {
	SwarmID   string
	Topic     TopicKey
	Options   JoinOptions
	Restarted bool
}

// EvtTopicLeft 离开主题
type EvtTopicLeft struct {
	SwarmID string
	Topic   TopicKey
}

// EvtPeerDiscovered 发现节点
type EvtPeerDiscovered struct {
	SwarmID string
	Topic   TopicKey
	Peer    PeerInfo
}

// EvtConnectionOpened 连接建立
type EvtConnectionOpened struct {
	SwarmID   string
	ConnID    uint64
	Direction Direction
	Peer      PeerInfo
}

// EvtConnectionClosed 连接关闭（包括拨号失败与取消）
type EvtConnectionClosed struct {
	SwarmID   string
	ConnID    uint64
	Direction Direction
	Peer      PeerInfo
	Err       error
}

// EvtSwarmClosed Swarm 已到达 Destroyed
//
// 以有状态方式发射：晚订阅者也会收到。
type EvtSwarmClosed struct {
	SwarmID  string
	Err      error
	ClosedAt time.Time
}

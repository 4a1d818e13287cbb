package types

import "fmt"

// ============================================================================
//                              SwarmState - Swarm 状态
// ============================================================================

// SwarmState Swarm 生命周期状态
//
// 只能单调推进：Active → Destroying → Destroyed。
type SwarmState int32

const (
	// StateActive 活跃，接受所有操作
	StateActive SwarmState = iota
	// StateDestroying 正在销毁，拒绝新操作
	StateDestroying
	// StateDestroyed 已销毁（终态）
	StateDestroyed
)

// String 返回状态的字符串表示
func (s SwarmState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateDestroying:
		return "destroying"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// ============================================================================
//                              ConnPhase - 连接阶段
// ============================================================================

// ConnPhase 连接阶段
type ConnPhase int32

const (
	// PhasePending 拨号进行中
	PhasePending ConnPhase = iota
	// PhaseEstablished 已建立
	PhaseEstablished
	// PhaseClosed 已关闭
	PhaseClosed
)

// String 返回阶段的字符串表示
func (p ConnPhase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseEstablished:
		return "established"
	case PhaseClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int32(p))
	}
}

// ============================================================================
//                              Direction - 连接方向
// ============================================================================

// Direction 连接方向
type Direction int

const (
	// DirUnknown 未知方向
	DirUnknown Direction = iota
	// DirInbound 入站连接
	DirInbound
	// DirOutbound 出站连接
	DirOutbound
)

// String 返回方向的字符串表示
func (d Direction) String() string {
	switch d {
	case DirInbound:
		return "inbound"
	case DirOutbound:
		return "outbound"
	default:
		return "unknown"
	}
}

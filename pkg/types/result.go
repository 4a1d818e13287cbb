package types

import "time"

// ConnectivityResult 连通性探测结果
//
// 仅用于信息展示：不可达不是错误。
type ConnectivityResult struct {
	// Reachable 是否至少有一个发现网络端点可达
	Reachable bool `json:"reachable"`

	// Endpoint 首个应答的端点
	Endpoint string `json:"endpoint,omitempty"`

	// Method 探测方式（tcp/stun）
	Method string `json:"method,omitempty"`

	// RTT 首个应答端点的往返时间
	RTT time.Duration `json:"rtt,omitempty"`

	// PublicAddr STUN 报告的外部地址（如有）
	PublicAddr string `json:"public_addr,omitempty"`

	// Attempts 已尝试的端点数
	Attempts int `json:"attempts"`

	// Detail 诊断信息
	Detail string `json:"detail,omitempty"`

	// CheckedAt 探测完成时间
	CheckedAt time.Time `json:"checked_at"`
}

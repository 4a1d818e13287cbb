package types

// JoinOptions 主题加入选项
type JoinOptions struct {
	// Announce 是否向发现网络通告本节点
	Announce bool `json:"announce"`

	// Lookup 是否主动查找其他节点
	Lookup bool `json:"lookup"`
}

// DefaultJoinOptions 默认同时通告和查找
func DefaultJoinOptions() JoinOptions {
	return JoinOptions{Announce: true, Lookup: true}
}

// IsZero 两者都未启用
func (o JoinOptions) IsZero() bool {
	return !o.Announce && !o.Lookup
}

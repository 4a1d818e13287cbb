package types

import (
	"fmt"
	"net"
	"strconv"
)

// ============================================================================
//                              Address - 网络地址
// ============================================================================

// Address 监听或拨号使用的主机/端口对
type Address struct {
	// Host 主机（IP 或域名）
	Host string `json:"host"`

	// Port 端口
	Port int `json:"port"`
}

// String 返回 host:port 形式
func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// IsZero 检查是否为零值
func (a Address) IsZero() bool {
	return a.Host == "" && a.Port == 0
}

// AddressFromNetAddr 从 net.Addr 转换
func AddressFromNetAddr(addr net.Addr) (Address, error) {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return Address{Host: a.IP.String(), Port: a.Port}, nil
	case *net.UDPAddr:
		return Address{Host: a.IP.String(), Port: a.Port}, nil
	case nil:
		return Address{}, fmt.Errorf("nil address")
	default:
		host, portStr, err := net.SplitHostPort(addr.String())
		if err != nil {
			return Address{}, fmt.Errorf("parse address %q: %w", addr.String(), err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Address{}, fmt.Errorf("parse port %q: %w", portStr, err)
		}
		return Address{Host: host, Port: port}, nil
	}
}

// ParseAddress 解析 host:port 字符串
func ParseAddress(s string) (Address, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Address{}, &InvalidInputError{Field: "address", Reason: err.Error()}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Address{}, &InvalidInputError{Field: "port", Reason: "port is not a number: " + portStr}
	}
	return Address{Host: host, Port: port}, nil
}

// ============================================================================
//                              PeerInfo - 节点描述
// ============================================================================

// PeerInfo 可通过 Transport 连接的远端节点描述
type PeerInfo struct {
	// Host 远端主机
	Host string `json:"host"`

	// Port 远端端口
	Port int `json:"port"`

	// Topic 发现来源主题（显式 Connect 时为 nil）
	Topic *TopicKey `json:"topic,omitempty"`

	// Source 发现来源（memory/mdns/static/peerbook），显式 Connect 时为空
	Source string `json:"source,omitempty"`
}

// Address 返回节点地址
func (p PeerInfo) Address() Address {
	return Address{Host: p.Host, Port: p.Port}
}

// String 返回 host:port 形式
func (p PeerInfo) String() string {
	return p.Address().String()
}

// Validate 校验节点描述是否可达
//
// 要求主机非空且端口位于 1..65535。
func (p PeerInfo) Validate() error {
	if p.Host == "" {
		return &InvalidInputError{Field: "peer.host", Reason: "host is required"}
	}
	if p.Port <= 0 || p.Port > 65535 {
		return &InvalidInputError{Field: "peer.port", Reason: fmt.Sprintf("port %d out of range", p.Port)}
	}
	return nil
}

// WithTopic 返回带发现来源的副本
func (p PeerInfo) WithTopic(key TopicKey, source string) PeerInfo {
	k := key
	p.Topic = &k
	p.Source = source
	return p
}

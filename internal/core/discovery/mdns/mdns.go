// Package mdns 提供基于 mDNS 的局域网主题发现
//
// 每个主题映射为一个独立的 mDNS 服务名：<前缀>-<主题密钥前 6 字节 hex>._tcp，
// 通告方以本地监听端口注册服务实例，TXT 记录携带 "id=<swarm 标识>" 以过滤自身。
package mdns

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/mdns"

	"github.com/dep2p/go-topicswarm/internal/core/discovery/backend"
	"github.com/dep2p/go-topicswarm/internal/util/logger"
	"github.com/dep2p/go-topicswarm/pkg/interfaces"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

var log = logger.Logger("discovery/mdns")

// Source 发现来源标识
const Source = "mdns"

const (
	domain       = "local."
	queryTimeout = time.Second
	txtIDPrefix  = "id="
)

// Config mDNS 后端配置
type Config struct {
	// ServicePrefix 服务名前缀，如 "_topicswarm"
	ServicePrefix string

	// Interface 指定网络接口；为空表示默认
	Interface string

	// BaseInterval / MaxInterval 查询间隔
	BaseInterval time.Duration
	MaxInterval  time.Duration
}

// Backend mDNS 后端
type Backend struct {
	cfg   Config
	clock clock.Clock
}

var _ backend.Backend = (*Backend)(nil)

// New 创建 mDNS 后端
func New(cfg Config, clk clock.Clock) *Backend {
	if cfg.ServicePrefix == "" {
		cfg.ServicePrefix = "_topicswarm"
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Backend{cfg: cfg, clock: clk}
}

// Name 后端名
func (b *Backend) Name() string { return Source }

// ServiceName 主题对应的 mDNS 服务名
func (b *Backend) ServiceName(key types.TopicKey) string {
	return fmt.Sprintf("%s-%s._tcp", b.cfg.ServicePrefix, hex.EncodeToString(key[:6]))
}

// Run 通告与周期查询，直到 ctx 取消
func (b *Backend) Run(ctx context.Context, req interfaces.StartRequest, found backend.FoundFunc) error {
	service := b.ServiceName(req.Key)
	iv := backend.NewInterval(b.cfg.BaseInterval, b.cfg.MaxInterval)

	var server *mdns.Server
	defer func() {
		if server != nil {
			_ = server.Shutdown()
		}
	}()

	for {
		if req.Options.Announce && server == nil {
			if addr, ok := req.Local(); ok {
				s, err := b.announce(service, req.SelfID, addr)
				if err != nil {
					log.Warn("mDNS 通告失败，稍后重试", "service", service, "err", err)
				} else {
					server = s
					log.Debug("mDNS 通告已启动", "service", service, "port", addr.Port)
				}
			}
		}

		if req.Options.Lookup {
			if n := b.query(ctx, service, req.SelfID, found); n > 0 {
				iv.Reset()
			}
		}

		timer := b.clock.Timer(iv.Next())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (b *Backend) announce(service, selfID string, addr types.Address) (*mdns.Server, error) {
	ips := advertiseIPs(addr.Host)
	instance := "ts-" + shortID(selfID)
	zone, err := mdns.NewMDNSService(instance, service, domain, "", addr.Port, ips, []string{txtIDPrefix + selfID})
	if err != nil {
		return nil, fmt.Errorf("mdns service: %w", err)
	}
	cfg := &mdns.Config{Zone: zone}
	if b.cfg.Interface != "" {
		if iface, err := net.InterfaceByName(b.cfg.Interface); err == nil {
			cfg.Iface = iface
		}
	}
	return mdns.NewServer(cfg)
}

// query 执行一次查询，返回报告的节点数
func (b *Backend) query(ctx context.Context, service, selfID string, found backend.FoundFunc) int {
	entries := make(chan *mdns.ServiceEntry, 16)
	params := &mdns.QueryParam{
		Service:     service,
		Domain:      "local",
		Timeout:     queryTimeout,
		Entries:     entries,
		DisableIPv6: true,
	}
	if b.cfg.Interface != "" {
		if iface, err := net.InterfaceByName(b.cfg.Interface); err == nil {
			params.Interface = iface
		}
	}

	reported := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			if peer, ok := peerFromEntry(entry, selfID); ok {
				found(peer)
				reported++
			}
		}
	}()

	if err := mdns.QueryContext(ctx, params); err != nil && ctx.Err() == nil {
		log.Debug("mDNS 查询失败", "service", service, "err", err)
	}
	close(entries)
	<-done
	return reported
}

// peerFromEntry 解析服务条目；自身条目或无可用地址时 ok 为 false
func peerFromEntry(entry *mdns.ServiceEntry, selfID string) (types.PeerInfo, bool) {
	if entry == nil || entry.Port <= 0 {
		return types.PeerInfo{}, false
	}
	for _, f := range entry.InfoFields {
		if strings.TrimPrefix(f, txtIDPrefix) == selfID && strings.HasPrefix(f, txtIDPrefix) {
			return types.PeerInfo{}, false
		}
	}
	var host string
	switch {
	case entry.AddrV4 != nil:
		host = entry.AddrV4.String()
	case entry.AddrV6 != nil:
		host = entry.AddrV6.String()
	default:
		return types.PeerInfo{}, false
	}
	return types.PeerInfo{Host: host, Port: entry.Port, Source: Source}, true
}

// advertiseIPs 监听在具体地址时只通告该地址，否则通告所有活动的非回环 IPv4
func advertiseIPs(host string) []net.IP {
	if ip := net.ParseIP(host); ip != nil && !ip.IsUnspecified() {
		return []net.IP{ip}
	}
	var out []net.IP
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipNet, ok := a.(*net.IPNet); ok {
				if v4 := ipNet.IP.To4(); v4 != nil && !v4.IsLinkLocalUnicast() {
					out = append(out, v4)
				}
			}
		}
	}
	return out
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-topicswarm"
	"github.com/dep2p/go-topicswarm/config"
)

// ============================================================================
//                              选项构建（CLI 专用）
// ============================================================================

// buildOptions 按优先级构建 Swarm 选项
//
//  1. 配置文件（或默认配置）
//  2. 预设
//  3. 显式设置的命令行参数
func buildOptions(g *globalFlags) ([]topicswarm.Option, error) {
	cfg := config.NewConfig()
	if g.configFile != "" {
		loaded, err := config.LoadFile(g.configFile)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败: %w", err)
		}
		cfg = loaded
	}

	opts := []topicswarm.Option{topicswarm.WithConfig(cfg)}
	if g.preset != "" {
		opts = append(opts, topicswarm.WithPreset(g.preset))
	}
	if g.host != "" {
		opts = append(opts, topicswarm.WithHost(g.host))
	}
	if g.port != 0 {
		opts = append(opts, topicswarm.WithPort(g.port))
	}
	if g.protocol != "" {
		opts = append(opts, topicswarm.WithProtocol(g.protocol))
	}
	if g.mdns {
		opts = append(opts, topicswarm.WithMDNS(true))
	}
	if g.peerBook != "" {
		opts = append(opts, topicswarm.WithPeerBook(true, g.peerBook))
	}
	return opts, nil
}

// newSwarm 以全局参数与额外选项创建 Swarm
//
// 设置了 --metrics-addr 时同时启动指标 HTTP 服务，Swarm 关闭时随之停止。
func newSwarm(g *globalFlags, extra ...topicswarm.Option) (*topicswarm.Swarm, error) {
	opts, err := buildOptions(g)
	if err != nil {
		return nil, err
	}

	var reg *prometheus.Registry
	if g.metricsAddr != "" {
		reg = prometheus.NewRegistry()
		opts = append(opts, topicswarm.WithMetrics(reg))
	}

	s, err := topicswarm.New(append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("创建 Swarm 失败: %w", err)
	}
	if reg != nil {
		serveMetrics(s, g.metricsAddr, reg)
	}
	return s, nil
}

// serveMetrics 在 addr 上提供 /metrics
func serveMetrics(s *topicswarm.Swarm, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("指标服务退出", "addr", addr, "err", err)
		}
	}()
	s.OnClose(func(error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	log.Info("指标服务已启动", "addr", addr)
}

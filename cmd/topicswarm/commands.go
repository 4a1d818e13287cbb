package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dep2p/go-topicswarm"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

// ============================================================================
//                              listen
// ============================================================================

func listenCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "监听并接受入站连接，直到收到退出信号",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := newSwarm(g)
			if err != nil {
				return err
			}
			defer closeSwarm(cmd.ErrOrStderr(), s)

			addr, err := s.Listen(ctx)
			if err != nil {
				return err
			}
			printBanner(cmd.OutOrStdout(), s, addr)
			watchConnections(cmd.OutOrStdout(), s)

			<-ctx.Done()
			fmt.Fprintln(cmd.OutOrStdout(), "\n正在关闭...")
			return nil
		},
	}
}

// ============================================================================
//                              join
// ============================================================================

func joinCmd(g *globalFlags) *cobra.Command {
	var (
		announce bool
		lookup   bool
		raw      bool
		static   []string
	)
	cmd := &cobra.Command{
		Use:   "join <topic>",
		Short: "加入主题并连接发现的节点",
		Long: "加入主题并连接发现的节点。\n\n" +
			"topic 默认取名称的 SHA-256；--raw 时按 64 位十六进制主题密钥解析。",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseTopic(args[0], raw)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := []topicswarm.Option{}
			if len(static) > 0 {
				opts = append(opts, topicswarm.WithStaticPeers(key, static...))
			}
			s, err := newSwarm(g, opts...)
			if err != nil {
				return err
			}
			defer closeSwarm(cmd.ErrOrStderr(), s)

			addr, err := s.Listen(ctx)
			if err != nil {
				return err
			}
			printBanner(cmd.OutOrStdout(), s, addr)
			watchConnections(cmd.OutOrStdout(), s)
			watchDiscovery(cmd.OutOrStdout(), s)

			if err := s.Join(key[:], topicswarm.Announce(announce), topicswarm.Lookup(lookup)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已加入主题 %s\n", key.ShortString())

			<-ctx.Done()
			fmt.Fprintln(cmd.OutOrStdout(), "\n正在关闭...")
			return nil
		},
	}
	cmd.Flags().BoolVar(&announce, "announce", true, "向发现网络通告本节点")
	cmd.Flags().BoolVar(&lookup, "lookup", true, "查找同一主题的节点")
	cmd.Flags().BoolVar(&raw, "raw", false, "topic 为十六进制主题密钥")
	cmd.Flags().StringSliceVar(&static, "peer", nil, "该主题的固定节点 host:port（可重复）")
	return cmd
}

// parseTopic 解析主题参数
func parseTopic(arg string, raw bool) (types.TopicKey, error) {
	if raw {
		return types.ParseTopicKey(arg)
	}
	return types.TopicKey(sha256.Sum256([]byte(arg))), nil
}

// ============================================================================
//                              probe
// ============================================================================

func probeCmd(g *globalFlags) *cobra.Command {
	var (
		timeout   time.Duration
		bootstrap []string
		stun      []string
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "执行一轮连通性探测",
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []topicswarm.Option
			if cmd.Flags().Changed("bootstrap") {
				opts = append(opts, topicswarm.WithBootstrapEndpoints(bootstrap...))
			}
			if cmd.Flags().Changed("stun") {
				opts = append(opts, topicswarm.WithSTUNServers(stun...))
			}
			s, err := newSwarm(g, opts...)
			if err != nil {
				return err
			}
			defer closeSwarm(cmd.ErrOrStderr(), s)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			res, err := s.CheckConnectivity(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !res.Reachable {
				fmt.Fprintf(out, "❌ 不可达（尝试 %d 次）\n", res.Attempts)
				if res.Detail != "" {
					fmt.Fprintf(out, "   %s\n", res.Detail)
				}
				return nil
			}
			fmt.Fprintf(out, "✅ 可达：%s %s，RTT %s\n", res.Method, res.Endpoint, res.RTT)
			if res.PublicAddr != "" {
				fmt.Fprintf(out, "   公网地址: %s\n", res.PublicAddr)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "整体超时")
	cmd.Flags().StringSliceVar(&bootstrap, "bootstrap", nil, "TCP 探测目标 host:port")
	cmd.Flags().StringSliceVar(&stun, "stun", nil, "STUN 服务器 host:port")
	return cmd
}

// ============================================================================
//                              输出
// ============================================================================

func printBanner(w io.Writer, s *topicswarm.Swarm, addr types.Address) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔════════════════════════════════════════════════════════════╗")
	fmt.Fprintf(w, "║  %-58s║\n", topicswarm.VersionInfo())
	fmt.Fprintln(w, "╠════════════════════════════════════════════════════════════╣")
	fmt.Fprintf(w, "║  Swarm:  %-50s║\n", s.ID())
	fmt.Fprintf(w, "║  监听:   %-50s║\n", addr.String())
	fmt.Fprintln(w, "╚════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)
}

// watchConnections 打印连接建立与关闭
func watchConnections(w io.Writer, s *topicswarm.Swarm) {
	opened, err := s.Subscribe(new(types.EvtConnectionOpened))
	if err != nil {
		log.Warn("订阅连接事件失败", "err", err)
		return
	}
	closed, err := s.Subscribe(new(types.EvtConnectionClosed))
	if err != nil {
		_ = opened.Close()
		log.Warn("订阅连接事件失败", "err", err)
		return
	}
	go func() {
		for evt := range opened.Out() {
			e := evt.(types.EvtConnectionOpened)
			fmt.Fprintf(w, "➕ [%d] %s %s\n", e.ConnID, e.Direction, e.Peer)
		}
	}()
	go func() {
		for evt := range closed.Out() {
			e := evt.(types.EvtConnectionClosed)
			if e.Err != nil {
				fmt.Fprintf(w, "➖ [%d] %s: %v\n", e.ConnID, e.Peer, e.Err)
				continue
			}
			fmt.Fprintf(w, "➖ [%d] %s\n", e.ConnID, e.Peer)
		}
	}()
}

// watchDiscovery 打印发现的节点
func watchDiscovery(w io.Writer, s *topicswarm.Swarm) {
	sub, err := s.Subscribe(new(types.EvtPeerDiscovered))
	if err != nil {
		log.Warn("订阅发现事件失败", "err", err)
		return
	}
	go func() {
		for evt := range sub.Out() {
			e := evt.(types.EvtPeerDiscovered)
			fmt.Fprintf(w, "🔍 %s 发现 %s (%s)\n", e.Topic.ShortString(), e.Peer.Address(), e.Peer.Source)
		}
	}()
}

func closeSwarm(w io.Writer, s *topicswarm.Swarm) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.DestroyAndWait(ctx); err != nil {
		fmt.Fprintf(w, "关闭时出错: %v\n", err)
		return
	}
	st := s.Stats()
	log.Info("Swarm 已关闭", "dialed", st.Dialed, "accepted", st.Accepted, "discovered", st.Discovered)
}

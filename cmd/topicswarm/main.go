// Package main 提供 topicswarm 命令行入口
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dep2p/go-topicswarm"
	"github.com/dep2p/go-topicswarm/internal/util/logger"
)

var log = logger.Logger("cmd")

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数：运行时覆盖 / 快速测试
//   JSON 配置文件：持久化配置（--config）
//
// 优先级：命令行参数 > 配置文件 > 预设 > 默认值

// globalFlags 各子命令共享的参数
type globalFlags struct {
	configFile  string
	preset      string
	host        string
	port        int
	protocol    string
	mdns        bool
	peerBook    string
	debug       bool
	logFile     string
	metricsAddr string
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "topicswarm",
		Short:         "按主题发现并连接对等节点",
		Version:       topicswarm.VersionInfo(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(g)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.configFile, "config", "", "配置文件路径（JSON）")
	pf.StringVar(&g.preset, "preset", "", "预设配置 (local/lan/server)")
	pf.StringVar(&g.host, "host", "", "监听主机")
	pf.IntVar(&g.port, "port", 0, "监听端口（0 = 随机端口）")
	pf.StringVar(&g.protocol, "protocol", "", "传输协议 (tcp/quic)")
	pf.BoolVar(&g.mdns, "mdns", false, "启用局域网 mDNS 发现")
	pf.StringVar(&g.peerBook, "peerbook-dir", "", "节点簿目录（空 = 内存模式）")
	pf.BoolVar(&g.debug, "debug", false, "输出调试日志")
	pf.StringVar(&g.logFile, "log", "", "日志文件路径（默认输出到 stderr）")
	pf.StringVar(&g.metricsAddr, "metrics-addr", "", "Prometheus 指标监听地址，如 127.0.0.1:9100")

	cmd.AddCommand(
		listenCmd(g),
		joinCmd(g),
		probeCmd(g),
		versionCmd(),
	)
	return cmd
}

// setupLogging 设置日志级别与输出
func setupLogging(g *globalFlags) error {
	if g.debug {
		logger.SetGlobalLevel(slog.LevelDebug)
	}
	if g.logFile == "" {
		return nil
	}
	file, err := os.OpenFile(g.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) //nolint:gosec // G304: 用户指定的日志路径
	if err != nil {
		return fmt.Errorf("打开日志文件失败: %w", err)
	}
	logger.SetOutput(file)
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), topicswarm.VersionInfo())
		},
	}
}

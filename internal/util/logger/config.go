package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

// 环境变量名
const (
	EnvLevel     = "TOPICSWARM_LOG_LEVEL"
	EnvFormat    = "TOPICSWARM_LOG_FORMAT"
	EnvAddSource = "TOPICSWARM_LOG_ADD_SOURCE"
)

// LogFormat 日志输出格式
type LogFormat int

const (
	// FormatText 文本格式（默认）
	FormatText LogFormat = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// Config 日志配置
type Config struct {
	// DefaultLevel 默认日志级别
	DefaultLevel slog.Level

	// SubsystemLevels 按子系统覆盖的级别
	SubsystemLevels map[string]slog.Level

	// Format 输出格式
	Format LogFormat

	// AddSource 是否记录源码位置
	AddSource bool
}

// LevelFor 返回子系统的有效级别
func (c *Config) LevelFor(subsystem string) slog.Level {
	if level, ok := c.SubsystemLevels[subsystem]; ok {
		return level
	}
	return c.DefaultLevel
}

var (
	envConfig     *Config
	envConfigOnce sync.Once
)

// ConfigFromEnv 读取环境变量配置，进程内只解析一次
//
//	TOPICSWARM_LOG_LEVEL=swarm=debug,transport=warn,info
//	TOPICSWARM_LOG_FORMAT=json
//	TOPICSWARM_LOG_ADD_SOURCE=true
func ConfigFromEnv() *Config {
	envConfigOnce.Do(func() {
		envConfig = ParseConfig(os.Getenv(EnvLevel), os.Getenv(EnvFormat), os.Getenv(EnvAddSource))
	})
	return envConfig
}

// ParseConfig 从原始字符串构造配置
//
// 级别串格式为 "子系统=级别,...,默认级别"，无法识别的片段被忽略。
// 未设置时默认 info 级别、文本格式、不记录源码位置。
func ParseConfig(levels, format, addSource string) *Config {
	cfg := &Config{
		DefaultLevel:    slog.LevelInfo,
		SubsystemLevels: make(map[string]slog.Level),
		Format:          FormatText,
	}

	for _, part := range strings.Split(levels, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, lvl, scoped := strings.Cut(part, "=")
		if !scoped {
			if level, ok := ParseLevel(part); ok {
				cfg.DefaultLevel = level
			}
			continue
		}
		if level, ok := ParseLevel(strings.TrimSpace(lvl)); ok {
			cfg.SubsystemLevels[strings.TrimSpace(name)] = level
		}
	}

	if strings.EqualFold(strings.TrimSpace(format), "json") {
		cfg.Format = FormatJSON
	}

	switch strings.ToLower(strings.TrimSpace(addSource)) {
	case "1", "true", "yes":
		cfg.AddSource = true
	}

	return cfg
}

// ParseLevel 解析级别名称
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// resetForTest 清空环境配置与已缓存的 Logger
func resetForTest() {
	envConfigOnce = sync.Once{}
	envConfig = nil
	registry = sync.Map{}
	rootOnce = sync.Once{}
	root = nil
}

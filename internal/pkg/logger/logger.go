package logger

import (
	"log/slog"
	"os"
	"strings"
)

// NewDefault 根据日志级别字符串创建默认的 slog.Logger。
//
// 输出到 stderr（MCP 协议要求 stdout 只能写 JSON-RPC 消息）。
//
// 参数:
//
//	level: 日志级别字符串 (debug / info / warn / error)
//
// 返回值:
//
//	*slog.Logger: 初始化完成的日志记录器
func NewDefault(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}

// ParseLevel 将字符串解析为 slog.Level，无法识别时返回 Info。
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

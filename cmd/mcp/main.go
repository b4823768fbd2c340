package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"pricescout/internal/config"
	"pricescout/internal/mcp"
	"pricescout/internal/pipeline"
	"pricescout/internal/pkg/logger"
	"pricescout/internal/provider"
	"pricescout/internal/store"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// 单条 JSON-RPC 消息的大小上限。
const maxMessageSize = 4 * 1024 * 1024

// main 是 MCP 服务的入口函数。
//
// 协议约定：stdout 只写 JSON-RPC 消息，日志与错误一律走 stderr。
// 它负责：
// 1. 加载并校验配置
// 2. 初始化日志、数据库、抓取管线
// 3. 逐条读取 stdin 上的 JSON-RPC 请求并回写响应
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	appLogger := logger.NewDefault(cfg.App.LogLevel)

	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		appLogger.Error("open database failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	st, err := store.New(db)
	if err != nil {
		appLogger.Error("init store failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	client := provider.NewClient(&cfg.Provider, appLogger)

	// 只探测不创建：Zone 生命周期由 scheduler 进程负责
	probeCtx, cancelProbe := context.WithTimeout(context.Background(), 30*time.Second)
	if err := client.CheckZone(probeCtx); err != nil {
		appLogger.Warn("unlocker zone check failed", slog.String("error", err.Error()))
	}
	cancelProbe()

	poller := provider.NewPoller(client, appLogger, cfg.Provider.PollInterval, cfg.Provider.PollAttempts)
	pipe := pipeline.New(client, poller, appLogger, cfg.App.MaxSearchResult)

	// MCP 本身占用 stdio，metrics 走独立 HTTP 端口
	metricsServer := &http.Server{
		Addr:    cfg.App.MetricsAddr,
		Handler: promhttp.Handler(),
	}
	go func() {
		appLogger.Info("metrics server started", slog.String("addr", cfg.App.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("metrics server stopped with error", slog.String("error", err.Error()))
		}
	}()

	server := mcp.NewServer(pipe, st, appLogger)
	appLogger.Info("mcp server started", slog.String("env", cfg.App.Env))

	runStdio(server, os.Stdin, os.Stdout, appLogger)

	_ = metricsServer.Close()
	appLogger.Info("mcp server stopped")
}

// runStdio 在 stdin/stdout 上运行 JSON-RPC 循环，直到 EOF。
//
// 按行读取：一行一条消息。坏行只丢弃该行并回写 ParseError，
// 不会卡住后续输入。
func runStdio(server *mcp.Server, in io.Reader, out io.Writer, appLogger *slog.Logger) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
	// MCP 客户端期望紧凑 JSON，不要 SetIndent
	encoder := json.NewEncoder(out)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var request mcp.Request
		if err := json.Unmarshal(line, &request); err != nil {
			appLogger.Warn("request parse failed", slog.String("error", err.Error()))
			writeParseError(encoder, appLogger)
			continue
		}

		response := server.HandleRequest(&request)
		// 通知（无 ID）不回写响应
		if response == nil || request.ID == nil {
			continue
		}
		if err := encoder.Encode(response); err != nil {
			appLogger.Error("encode response failed", slog.String("error", err.Error()))
		}
	}
	if err := scanner.Err(); err != nil {
		appLogger.Error("read stdin failed", slog.String("error", err.Error()))
	}
}

func writeParseError(encoder *json.Encoder, appLogger *slog.Logger) {
	resp := mcp.Response{
		JSONRPC: "2.0",
		ID:      0,
		Error: &mcp.ErrorObject{
			Code:    mcp.ParseError,
			Message: "Failed to parse request",
		},
	}
	if err := encoder.Encode(&resp); err != nil {
		appLogger.Error("encode error response failed", slog.String("error", err.Error()))
	}
}

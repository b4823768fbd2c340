package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"pricescout/internal/model"
	"pricescout/internal/pipeline"
	"pricescout/internal/pkg/metrics"
	"pricescout/internal/platform"
)

// 单次工具调用的超时。数据集路径最长轮询约一分钟，批量操作逐个
// 处理，给足余量。
const toolCallTimeout = 5 * time.Minute

// ProductPipeline 抓取管线接口（由 pipeline.Pipeline 实现）。
type ProductPipeline interface {
	FetchProductDetail(ctx context.Context, targetURL string) (*pipeline.Envelope, error)
	Search(ctx context.Context, query string, platforms []platform.Platform, maxResults int) []pipeline.PlatformResult
	ComparePrices(ctx context.Context, urls []string) []pipeline.CompareResult
}

// ProductStore 持久化接口（由 store.Store 实现）。
type ProductStore interface {
	FindOrCreateUser(ctx context.Context, email string) (*model.User, error)
	TrackProduct(ctx context.Context, p *model.Product, source string) (*model.Product, error)
	UntrackProductByID(ctx context.Context, userID, productID uint) error
	ListTrackedProducts(ctx context.Context, userID uint, withHistory bool) ([]model.Product, error)
	FindProductByURL(ctx context.Context, url string) (*model.Product, error)
	UpdateProductPrice(ctx context.Context, productID uint, amount *float64, source string) error
}

// Server 处理 MCP 协议请求，把工具调用路由到抓取管线与存储层。
type Server struct {
	pipeline ProductPipeline
	store    ProductStore
	logger   *slog.Logger
}

// NewServer 创建 MCP 服务器。
func NewServer(pipe ProductPipeline, store ProductStore, logger *slog.Logger) *Server {
	return &Server{
		pipeline: pipe,
		store:    store,
		logger:   logger,
	}
}

// HandleRequest 处理一条 MCP 请求。
//
// 通知（无 ID 的请求）返回 nil，调用方不回写响应。
func (s *Server) HandleRequest(req *Request) *Response {
	requestID := req.ID

	switch req.Method {
	case "initialize":
		return s.handleInitialize(requestID)
	case "tools/list":
		return s.handleToolsList(requestID)
	case "tools/call":
		return s.handleToolsCall(req, requestID)
	case "ping":
		return &Response{
			JSONRPC: "2.0",
			ID:      requestID,
			Result:  json.RawMessage(`"pong"`),
		}
	}

	// 未知方法：通知不需要响应
	if requestID == nil {
		return nil
	}
	return s.errorResponse(requestID, MethodNotFound, "Method not found")
}

func (s *Server) handleInitialize(id any) *Response {
	result := map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    "pricescout-mcp",
			"version": "1.0.0",
		},
	}
	return s.successRaw(id, result)
}

func (s *Server) handleToolsList(id any) *Response {
	return s.successRaw(id, map[string]any{"tools": getAllTools()})
}

func (s *Server) handleToolsCall(req *Request, id any) *Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(id, InvalidParams, "Invalid parameters")
	}

	ctx, cancel := context.WithTimeout(context.Background(), toolCallTimeout)
	defer cancel()

	start := time.Now()
	s.logger.Info("tool call", slog.String("tool", params.Name))

	var resp *Response
	switch params.Name {
	case "search_products":
		resp = s.handleSearchProducts(ctx, id, params.Arguments)
	case "get_product_details":
		resp = s.handleGetProductDetails(ctx, id, params.Arguments)
	case "compare_prices":
		resp = s.handleComparePrices(ctx, id, params.Arguments)
	case "track_product":
		resp = s.handleTrackProduct(ctx, id, params.Arguments)
	case "untrack_product":
		resp = s.handleUntrackProduct(ctx, id, params.Arguments)
	case "get_user_tracked_products":
		resp = s.handleGetUserTrackedProducts(ctx, id, params.Arguments)
	case "update_product_prices":
		resp = s.handleUpdateProductPrices(ctx, id, params.Arguments)
	default:
		return s.errorResponse(id, InvalidParams, "Unknown tool: "+params.Name)
	}

	status := "success"
	if resp != nil && resp.Error != nil {
		status = "error"
	}
	metrics.ToolCallsTotal.WithLabelValues(params.Name, status).Inc()
	metrics.ToolCallDuration.WithLabelValues(params.Name).Observe(time.Since(start).Seconds())

	s.logger.Info("tool call completed",
		slog.String("tool", params.Name),
		slog.String("status", status),
		slog.Duration("duration", time.Since(start)))
	return resp
}

// successResponse 按 MCP 约定把结果包进 content 文本块。
func (s *Server) successResponse(id any, payload any) *Response {
	text, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return s.errorResponse(id, InternalError, fmt.Sprintf("Failed to marshal result: %v", err))
	}
	return s.successRaw(id, map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": string(text)},
		},
		"isError": false,
	})
}

func (s *Server) successRaw(id any, result any) *Response {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return s.errorResponse(id, InternalError, fmt.Sprintf("Failed to marshal result: %v", err))
	}
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Result:  json.RawMessage(resultJSON),
	}
}

func (s *Server) errorResponse(id any, code int, message string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &ErrorObject{
			Code:    code,
			Message: message,
		},
	}
}

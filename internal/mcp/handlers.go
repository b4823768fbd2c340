package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"pricescout/internal/model"
	"pricescout/internal/platform"
	"pricescout/internal/store"
)

// parseArguments 解析工具参数到目标结构体。
func parseArguments(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return errors.New("missing arguments")
	}
	return json.Unmarshal(raw, dst)
}

// parsePlatforms 把平台名列表转换为平台枚举，未知名称直接报错。
func parsePlatforms(names []string) ([]platform.Platform, error) {
	platforms := make([]platform.Platform, 0, len(names))
	for _, name := range names {
		p, ok := platform.Parse(name)
		if !ok {
			return nil, fmt.Errorf("unknown platform %q", name)
		}
		platforms = append(platforms, p)
	}
	return platforms, nil
}

// ============================================================================
// 搜索与比价
// ============================================================================

func (s *Server) handleSearchProducts(ctx context.Context, id any, raw json.RawMessage) *Response {
	var args struct {
		Query      string   `json:"query"`
		Platforms  []string `json:"platforms"`
		MaxResults int      `json:"max_results"`
	}
	if err := parseArguments(raw, &args); err != nil {
		return s.errorResponse(id, InvalidParams, "Invalid arguments: "+err.Error())
	}
	if strings.TrimSpace(args.Query) == "" {
		return s.errorResponse(id, InvalidParams, "query is required")
	}
	platforms, err := parsePlatforms(args.Platforms)
	if err != nil {
		return s.errorResponse(id, InvalidParams, err.Error())
	}

	results := s.pipeline.Search(ctx, args.Query, platforms, args.MaxResults)
	return s.successResponse(id, map[string]any{
		"query":   args.Query,
		"results": results,
	})
}

func (s *Server) handleGetProductDetails(ctx context.Context, id any, raw json.RawMessage) *Response {
	var args struct {
		URL string `json:"url"`
	}
	if err := parseArguments(raw, &args); err != nil {
		return s.errorResponse(id, InvalidParams, "Invalid arguments: "+err.Error())
	}
	if args.URL == "" {
		return s.errorResponse(id, InvalidParams, "url is required")
	}

	envelope, err := s.pipeline.FetchProductDetail(ctx, args.URL)
	if err != nil {
		return s.errorResponse(id, InternalError, "Failed to fetch product details: "+err.Error())
	}
	return s.successResponse(id, envelope)
}

func (s *Server) handleComparePrices(ctx context.Context, id any, raw json.RawMessage) *Response {
	var args struct {
		Query     string   `json:"query"`
		Platforms []string `json:"platforms"`
		URLs      []string `json:"urls"`
	}
	if err := parseArguments(raw, &args); err != nil {
		return s.errorResponse(id, InvalidParams, "Invalid arguments: "+err.Error())
	}

	// 两种模式：给 URL 列表则逐个抓详情，否则按关键词跨平台搜索
	if len(args.URLs) > 0 {
		results := s.pipeline.ComparePrices(ctx, args.URLs)
		return s.successResponse(id, map[string]any{"comparisons": results})
	}

	if strings.TrimSpace(args.Query) == "" {
		return s.errorResponse(id, InvalidParams, "either query or urls is required")
	}
	platforms, err := parsePlatforms(args.Platforms)
	if err != nil {
		return s.errorResponse(id, InvalidParams, err.Error())
	}
	results := s.pipeline.Search(ctx, args.Query, platforms, 0)
	return s.successResponse(id, map[string]any{
		"query":       args.Query,
		"comparisons": results,
	})
}

// ============================================================================
// 追踪管理
// ============================================================================

func (s *Server) handleTrackProduct(ctx context.Context, id any, raw json.RawMessage) *Response {
	var args struct {
		UserEmail string   `json:"user_email"`
		URL       string   `json:"url"`
		Name      string   `json:"name"`
		Price     *float64 `json:"price"`
		Currency  string   `json:"currency"`
	}
	if err := parseArguments(raw, &args); err != nil {
		return s.errorResponse(id, InvalidParams, "Invalid arguments: "+err.Error())
	}
	if args.UserEmail == "" || args.URL == "" {
		return s.errorResponse(id, InvalidParams, "user_email and url are required")
	}

	product := &model.Product{
		URL:          args.URL,
		Name:         args.Name,
		Currency:     args.Currency,
		CurrentPrice: args.Price,
	}
	store.InferPlatform(product)

	// 调用方没给商品信息时先抓一次详情补全
	source := "manual"
	if args.Name == "" || args.Price == nil {
		envelope, err := s.pipeline.FetchProductDetail(ctx, args.URL)
		if err != nil {
			return s.errorResponse(id, InternalError, "Failed to fetch product details: "+err.Error())
		}
		source = envelope.Method
		if product.Name == "" {
			product.Name = envelope.Data.Name
		}
		if product.CurrentPrice == nil {
			product.CurrentPrice = envelope.Data.Price
		}
		if product.Currency == "" {
			product.Currency = envelope.Data.Currency
		}
		if product.ImageURL == "" {
			product.ImageURL = envelope.Data.ImageURL
		}
	}

	user, err := s.store.FindOrCreateUser(ctx, args.UserEmail)
	if err != nil {
		return s.errorResponse(id, InternalError, "Failed to resolve user: "+err.Error())
	}
	product.UserID = user.ID

	saved, err := s.store.TrackProduct(ctx, product, source)
	if err != nil {
		return s.errorResponse(id, InternalError, "Failed to track product: "+err.Error())
	}

	s.logger.Info("product tracked",
		slog.Uint64("product_id", uint64(saved.ID)),
		slog.String("platform", string(saved.Platform)),
		slog.String("url", saved.URL))
	return s.successResponse(id, saved)
}

func (s *Server) handleUntrackProduct(ctx context.Context, id any, raw json.RawMessage) *Response {
	var args struct {
		UserEmail string `json:"user_email"`
		ProductID uint   `json:"product_id"`
	}
	if err := parseArguments(raw, &args); err != nil {
		return s.errorResponse(id, InvalidParams, "Invalid arguments: "+err.Error())
	}
	if args.UserEmail == "" || args.ProductID == 0 {
		return s.errorResponse(id, InvalidParams, "user_email and product_id are required")
	}

	user, err := s.store.FindOrCreateUser(ctx, args.UserEmail)
	if err != nil {
		return s.errorResponse(id, InternalError, "Failed to resolve user: "+err.Error())
	}

	if err := s.store.UntrackProductByID(ctx, user.ID, args.ProductID); err != nil {
		if errors.Is(err, store.ErrNotTracked) {
			return s.errorResponse(id, InvalidParams, "Product is not tracked")
		}
		return s.errorResponse(id, InternalError, "Failed to untrack product: "+err.Error())
	}

	return s.successResponse(id, map[string]any{
		"untracked":  true,
		"product_id": args.ProductID,
	})
}

func (s *Server) handleGetUserTrackedProducts(ctx context.Context, id any, raw json.RawMessage) *Response {
	var args struct {
		UserEmail           string `json:"user_email"`
		IncludePriceHistory bool   `json:"include_price_history"`
	}
	if err := parseArguments(raw, &args); err != nil {
		return s.errorResponse(id, InvalidParams, "Invalid arguments: "+err.Error())
	}
	if args.UserEmail == "" {
		return s.errorResponse(id, InvalidParams, "user_email is required")
	}

	user, err := s.store.FindOrCreateUser(ctx, args.UserEmail)
	if err != nil {
		return s.errorResponse(id, InternalError, "Failed to resolve user: "+err.Error())
	}

	products, err := s.store.ListTrackedProducts(ctx, user.ID, args.IncludePriceHistory)
	if err != nil {
		return s.errorResponse(id, InternalError, "Failed to list tracked products: "+err.Error())
	}
	return s.successResponse(id, map[string]any{
		"user_email": args.UserEmail,
		"count":      len(products),
		"products":   products,
	})
}

// ============================================================================
// 批量刷价
// ============================================================================

// updateOutcome 单条 URL 的刷价结果。
type updateOutcome struct {
	URL       string   `json:"url"`
	ProductID uint     `json:"product_id,omitempty"`
	Price     *float64 `json:"price,omitempty"`
	Method    string   `json:"method,omitempty"`
	Error     string   `json:"error,omitempty"`
}

func (s *Server) handleUpdateProductPrices(ctx context.Context, id any, raw json.RawMessage) *Response {
	var args struct {
		URLs []string `json:"urls"`
	}
	if err := parseArguments(raw, &args); err != nil {
		return s.errorResponse(id, InvalidParams, "Invalid arguments: "+err.Error())
	}
	if len(args.URLs) == 0 {
		return s.errorResponse(id, InvalidParams, "urls is required")
	}

	// 逐条处理，单条失败只记录错误，不影响其余 URL
	outcomes := make([]updateOutcome, 0, len(args.URLs))
	for _, targetURL := range args.URLs {
		outcome := updateOutcome{URL: targetURL}

		product, err := s.store.FindProductByURL(ctx, targetURL)
		if err != nil {
			outcome.Error = "not tracked: " + err.Error()
			outcomes = append(outcomes, outcome)
			continue
		}
		outcome.ProductID = product.ID

		envelope, err := s.pipeline.FetchProductDetail(ctx, targetURL)
		if err != nil {
			outcome.Error = "fetch failed: " + err.Error()
			outcomes = append(outcomes, outcome)
			continue
		}
		outcome.Method = envelope.Method
		outcome.Price = envelope.Data.Price

		if err := s.store.UpdateProductPrice(ctx, product.ID, envelope.Data.Price, envelope.Method); err != nil {
			outcome.Error = "store failed: " + err.Error()
			outcomes = append(outcomes, outcome)
			continue
		}
		outcomes = append(outcomes, outcome)
	}

	return s.successResponse(id, map[string]any{
		"count":   len(outcomes),
		"results": outcomes,
	})
}

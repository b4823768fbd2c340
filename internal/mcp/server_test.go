package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"pricescout/internal/extract"
	"pricescout/internal/model"
	"pricescout/internal/pipeline"
	"pricescout/internal/platform"
	"pricescout/internal/store"
)

// ============================================================================
// 测试替身
// ============================================================================

type stubPipeline struct {
	detailEnvelope *pipeline.Envelope
	detailErr      error
	searchResults  []pipeline.PlatformResult
	compareResults []pipeline.CompareResult

	detailCalls  []string
	searchCalls  int
	compareCalls int
}

func (f *stubPipeline) FetchProductDetail(_ context.Context, targetURL string) (*pipeline.Envelope, error) {
	f.detailCalls = append(f.detailCalls, targetURL)
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	return f.detailEnvelope, nil
}

func (f *stubPipeline) Search(_ context.Context, _ string, _ []platform.Platform, _ int) []pipeline.PlatformResult {
	f.searchCalls++
	return f.searchResults
}

func (f *stubPipeline) ComparePrices(_ context.Context, _ []string) []pipeline.CompareResult {
	f.compareCalls++
	return f.compareResults
}

type stubStore struct {
	user        *model.User
	products    map[string]*model.Product
	untrackErr  error
	trackedArgs []*model.Product
	lastSource  string
	updates     []uint
}

func newStubStore() *stubStore {
	return &stubStore{
		user:     &model.User{ID: 7, Email: "dev@example.com"},
		products: map[string]*model.Product{},
	}
}

func (f *stubStore) FindOrCreateUser(_ context.Context, email string) (*model.User, error) {
	f.user.Email = email
	return f.user, nil
}

func (f *stubStore) TrackProduct(_ context.Context, p *model.Product, source string) (*model.Product, error) {
	p.ID = uint(len(f.trackedArgs) + 1)
	f.trackedArgs = append(f.trackedArgs, p)
	f.lastSource = source
	return p, nil
}

func (f *stubStore) UntrackProductByID(_ context.Context, _, _ uint) error {
	return f.untrackErr
}

func (f *stubStore) ListTrackedProducts(_ context.Context, _ uint, _ bool) ([]model.Product, error) {
	out := make([]model.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, *p)
	}
	return out, nil
}

func (f *stubStore) FindProductByURL(_ context.Context, url string) (*model.Product, error) {
	p, ok := f.products[url]
	if !ok {
		return nil, store.ErrNotTracked
	}
	return p, nil
}

func (f *stubStore) UpdateProductPrice(_ context.Context, productID uint, _ *float64, _ string) error {
	f.updates = append(f.updates, productID)
	return nil
}

func newTestServer(pipe *stubPipeline, st *stubStore) *Server {
	return NewServer(pipe, st, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func callTool(t *testing.T, s *Server, tool string, args map[string]any) *Response {
	t.Helper()
	argsJSON, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	params, err := json.Marshal(ToolCallParams{Name: tool, Arguments: argsJSON})
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	return s.HandleRequest(&Request{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  params,
	})
}

// contentText 取出 MCP content 包裹里的文本负载。
func contentText(t *testing.T, resp *Response) string {
	t.Helper()
	if resp == nil {
		t.Fatal("expected response, got nil")
	}
	if resp.Error != nil {
		t.Fatalf("expected success, got error: %s", resp.Error.Message)
	}
	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(result.Content) != 1 || result.Content[0].Type != "text" {
		t.Fatalf("expected single text content block, got %+v", result.Content)
	}
	return result.Content[0].Text
}

// ============================================================================
// 协议层
// ============================================================================

func TestHandleRequest_Initialize(t *testing.T) {
	s := newTestServer(&stubPipeline{}, newStubStore())

	resp := s.HandleRequest(&Request{JSONRPC: "2.0", ID: 1, Method: "initialize"})
	if resp == nil || resp.Error != nil {
		t.Fatalf("expected success, got %+v", resp)
	}

	var result struct {
		ProtocolVersion string `json:"protocolVersion"`
		ServerInfo      struct {
			Name string `json:"name"`
		} `json:"serverInfo"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.ProtocolVersion != "2024-11-05" {
		t.Errorf("expected protocol 2024-11-05, got %q", result.ProtocolVersion)
	}
	if result.ServerInfo.Name != "pricescout-mcp" {
		t.Errorf("unexpected server name %q", result.ServerInfo.Name)
	}
}

func TestHandleRequest_ToolsList(t *testing.T) {
	s := newTestServer(&stubPipeline{}, newStubStore())

	resp := s.HandleRequest(&Request{JSONRPC: "2.0", ID: 2, Method: "tools/list"})
	if resp == nil || resp.Error != nil {
		t.Fatalf("expected success, got %+v", resp)
	}

	var result struct {
		Tools []Tool `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(result.Tools) != 7 {
		t.Fatalf("expected 7 tools, got %d", len(result.Tools))
	}
	names := map[string]bool{}
	for _, tool := range result.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"search_products", "get_product_details", "compare_prices",
		"track_product", "untrack_product", "get_user_tracked_products",
		"update_product_prices",
	} {
		if !names[want] {
			t.Errorf("missing tool %q", want)
		}
	}
}

func TestHandleRequest_Ping(t *testing.T) {
	s := newTestServer(&stubPipeline{}, newStubStore())

	resp := s.HandleRequest(&Request{JSONRPC: "2.0", ID: 3, Method: "ping"})
	if resp == nil || string(resp.Result) != `"pong"` {
		t.Fatalf("expected pong, got %+v", resp)
	}
}

func TestHandleRequest_UnknownMethod(t *testing.T) {
	s := newTestServer(&stubPipeline{}, newStubStore())

	resp := s.HandleRequest(&Request{JSONRPC: "2.0", ID: 4, Method: "resources/list"})
	if resp == nil || resp.Error == nil || resp.Error.Code != MethodNotFound {
		t.Fatalf("expected method not found, got %+v", resp)
	}

	// 通知（无 ID）不产生响应
	if resp := s.HandleRequest(&Request{JSONRPC: "2.0", Method: "notifications/initialized"}); resp != nil {
		t.Errorf("expected nil response for notification, got %+v", resp)
	}
}

// ============================================================================
// 工具调用
// ============================================================================

func TestSearchProducts_RequiresQuery(t *testing.T) {
	s := newTestServer(&stubPipeline{}, newStubStore())

	resp := callTool(t, s, "search_products", map[string]any{"query": "   "})
	if resp.Error == nil || resp.Error.Code != InvalidParams {
		t.Fatalf("expected invalid params, got %+v", resp)
	}
}

func TestSearchProducts_RejectsUnknownPlatform(t *testing.T) {
	s := newTestServer(&stubPipeline{}, newStubStore())

	resp := callTool(t, s, "search_products", map[string]any{
		"query":     "headphones",
		"platforms": []string{"amazon", "aliexpress"},
	})
	if resp.Error == nil || resp.Error.Code != InvalidParams {
		t.Fatalf("expected invalid params, got %+v", resp)
	}
	if !strings.Contains(resp.Error.Message, "aliexpress") {
		t.Errorf("expected offending name in message, got %q", resp.Error.Message)
	}
}

func TestSearchProducts_ReturnsPipelineResults(t *testing.T) {
	pipe := &stubPipeline{
		searchResults: []pipeline.PlatformResult{
			{Platform: platform.Amazon, Results: []extract.SearchResult{{Name: "Headphones", Price: 49.99, URL: "https://www.amazon.com/dp/X"}}},
			{Platform: platform.EBay, Error: "fetch failed: 403"},
		},
	}
	s := newTestServer(pipe, newStubStore())

	resp := callTool(t, s, "search_products", map[string]any{"query": "headphones"})
	text := contentText(t, resp)
	if !strings.Contains(text, "Headphones") {
		t.Errorf("expected result name in payload, got %s", text)
	}
	// 单平台失败保留为条目错误，整体调用仍成功
	if !strings.Contains(text, "fetch failed: 403") {
		t.Errorf("expected per-platform error in payload, got %s", text)
	}
	if pipe.searchCalls != 1 {
		t.Errorf("expected 1 search call, got %d", pipe.searchCalls)
	}
}

func TestGetProductDetails_FetchError(t *testing.T) {
	pipe := &stubPipeline{detailErr: errors.New("blocked by upstream")}
	s := newTestServer(pipe, newStubStore())

	resp := callTool(t, s, "get_product_details", map[string]any{"url": "https://www.amazon.com/dp/X"})
	if resp.Error == nil || resp.Error.Code != InternalError {
		t.Fatalf("expected internal error, got %+v", resp)
	}
	if !strings.Contains(resp.Error.Message, "blocked by upstream") {
		t.Errorf("expected cause in message, got %q", resp.Error.Message)
	}
}

func TestTrackProduct_FetchesMissingDetails(t *testing.T) {
	price := 19.99
	pipe := &stubPipeline{
		detailEnvelope: &pipeline.Envelope{
			Data: &extract.ProductRecord{
				Name:     "USB Cable",
				Price:    &price,
				Currency: "USD",
				ImageURL: "https://img.example.com/1.jpg",
			},
			Method:   pipeline.MethodDataset,
			Platform: platform.Amazon,
			URL:      "https://www.amazon.com/dp/B0TEST",
		},
	}
	st := newStubStore()
	s := newTestServer(pipe, st)

	resp := callTool(t, s, "track_product", map[string]any{
		"user_email": "dev@example.com",
		"url":        "https://www.amazon.com/dp/B0TEST",
	})
	contentText(t, resp)

	if len(pipe.detailCalls) != 1 {
		t.Fatalf("expected 1 detail fetch, got %d", len(pipe.detailCalls))
	}
	if len(st.trackedArgs) != 1 {
		t.Fatalf("expected 1 tracked product, got %d", len(st.trackedArgs))
	}
	saved := st.trackedArgs[0]
	if saved.Name != "USB Cable" || saved.CurrentPrice == nil || *saved.CurrentPrice != 19.99 {
		t.Errorf("expected fetched details applied, got %+v", saved)
	}
	if saved.UserID != st.user.ID {
		t.Errorf("expected product bound to user %d, got %d", st.user.ID, saved.UserID)
	}
	if st.lastSource != pipeline.MethodDataset {
		t.Errorf("expected price source %q, got %q", pipeline.MethodDataset, st.lastSource)
	}
}

func TestTrackProduct_SkipsFetchWhenDetailsGiven(t *testing.T) {
	pipe := &stubPipeline{}
	st := newStubStore()
	s := newTestServer(pipe, st)

	resp := callTool(t, s, "track_product", map[string]any{
		"user_email": "dev@example.com",
		"url":        "https://www.ebay.com/itm/42",
		"name":       "Camera",
		"price":      120.0,
	})
	contentText(t, resp)

	if len(pipe.detailCalls) != 0 {
		t.Errorf("expected no detail fetch, got %d", len(pipe.detailCalls))
	}
	if st.lastSource != "manual" {
		t.Errorf("expected manual source, got %q", st.lastSource)
	}
}

func TestUntrackProduct_NotTracked(t *testing.T) {
	st := newStubStore()
	st.untrackErr = store.ErrNotTracked
	s := newTestServer(&stubPipeline{}, st)

	resp := callTool(t, s, "untrack_product", map[string]any{
		"user_email": "dev@example.com",
		"product_id": 99,
	})
	if resp.Error == nil || resp.Error.Code != InvalidParams {
		t.Fatalf("expected invalid params for untracked product, got %+v", resp)
	}
}

func TestUpdateProductPrices_PartialFailure(t *testing.T) {
	price := 89.99
	pipe := &stubPipeline{
		detailEnvelope: &pipeline.Envelope{
			Data:   &extract.ProductRecord{Name: "Camera", Price: &price},
			Method: pipeline.MethodScraping,
		},
	}
	st := newStubStore()
	st.products["https://www.ebay.com/itm/42"] = &model.Product{ID: 3, URL: "https://www.ebay.com/itm/42"}
	s := newTestServer(pipe, st)

	resp := callTool(t, s, "update_product_prices", map[string]any{
		"urls": []string{"https://www.ebay.com/itm/42", "https://www.ebay.com/itm/missing"},
	})
	text := contentText(t, resp)

	var result struct {
		Count   int `json:"count"`
		Results []struct {
			URL   string `json:"url"`
			Error string `json:"error"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if result.Count != 2 {
		t.Fatalf("expected 2 outcomes, got %d", result.Count)
	}
	if result.Results[0].Error != "" {
		t.Errorf("expected first url to succeed, got error %q", result.Results[0].Error)
	}
	if result.Results[1].Error == "" {
		t.Error("expected second url to carry an error")
	}
	if len(st.updates) != 1 || st.updates[0] != 3 {
		t.Errorf("expected one price update for product 3, got %v", st.updates)
	}
}

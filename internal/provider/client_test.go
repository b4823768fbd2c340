package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"pricescout/internal/config"

	"github.com/jarcoal/httpmock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient() *Client {
	return NewClient(&config.ProviderConfig{
		APIToken:       "test-token",
		BaseURL:        "https://api.example.com",
		Zone:           "test_zone",
		RequestTimeout: 5 * time.Second,
	}, testLogger())
}

func TestRequest_SendsZoneAndRawFormat(t *testing.T) {
	c := newTestClient()
	httpmock.ActivateNonDefault(c.httpClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://api.example.com/request",
		func(req *http.Request) (*http.Response, error) {
			if got := req.Header.Get("Authorization"); got != "Bearer test-token" {
				t.Errorf("unexpected authorization header: %q", got)
			}
			if got := req.Header.Get("User-Agent"); got != defaultUserAgent {
				t.Errorf("unexpected user agent: %q", got)
			}

			var payload requestPayload
			if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			if payload.Zone != "test_zone" || payload.Format != "raw" {
				t.Errorf("unexpected payload: %+v", payload)
			}
			return httpmock.NewStringResponse(200, "<html>ok</html>"), nil
		})

	html, err := c.Request(context.Background(), "https://www.example.com/p/1")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if html != "<html>ok</html>" {
		t.Errorf("unexpected body: %q", html)
	}
}

func TestRequest_Non2xxIsError(t *testing.T) {
	c := newTestClient()
	httpmock.ActivateNonDefault(c.httpClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://api.example.com/request",
		httpmock.NewStringResponder(403, "blocked"))

	if _, err := c.Request(context.Background(), "https://www.example.com/p/1"); err == nil {
		t.Fatal("expected error on 403 response")
	}
}

func TestTriggerDataset(t *testing.T) {
	c := newTestClient()
	httpmock.ActivateNonDefault(c.httpClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", `=~^https://api\.example\.com/datasets/v3/trigger`,
		func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			if q.Get("dataset_id") != "gd_test" {
				t.Errorf("unexpected dataset_id: %q", q.Get("dataset_id"))
			}
			if q.Get("include_errors") != "true" {
				t.Errorf("expected include_errors=true")
			}

			var body []map[string]string
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if len(body) != 1 || body[0]["url"] != "https://www.amazon.com/dp/B0X" {
				t.Errorf("unexpected body: %+v", body)
			}
			return httpmock.NewJsonResponse(200, map[string]string{"snapshot_id": "s_123"})
		})

	id, err := c.TriggerDataset(context.Background(), "gd_test", "https://www.amazon.com/dp/B0X")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if id != "s_123" {
		t.Errorf("unexpected snapshot id: %q", id)
	}
}

func TestTriggerDataset_MissingSnapshotID(t *testing.T) {
	c := newTestClient()
	httpmock.ActivateNonDefault(c.httpClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", `=~^https://api\.example\.com/datasets/v3/trigger`,
		httpmock.NewStringResponder(200, `{}`))

	_, err := c.TriggerDataset(context.Background(), "gd_test", "https://www.amazon.com/dp/B0X")
	if err != ErrTriggerFailed {
		t.Fatalf("expected ErrTriggerFailed, got %v", err)
	}
}

func TestCheckZone(t *testing.T) {
	c := newTestClient()
	httpmock.ActivateNonDefault(c.httpClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://api.example.com/zone/get_active_zones",
		httpmock.NewStringResponder(200, `[{"name":"other_zone","type":"unblocker"}]`))

	// Zone 缺失：报 ErrZoneNotFound 且不触发创建
	err := c.CheckZone(context.Background())
	if !errors.Is(err, ErrZoneNotFound) {
		t.Fatalf("expected ErrZoneNotFound, got %v", err)
	}
	if httpmock.GetCallCountInfo()["POST https://api.example.com/zone"] != 0 {
		t.Error("expected no zone creation request")
	}

	httpmock.RegisterResponder("GET", "https://api.example.com/zone/get_active_zones",
		httpmock.NewStringResponder(200, `[{"name":"test_zone","type":"unblocker"}]`))

	if err := c.CheckZone(context.Background()); err != nil {
		t.Fatalf("check zone: %v", err)
	}
}

func TestEnsureZone_CreatesWhenMissing(t *testing.T) {
	c := newTestClient()
	httpmock.ActivateNonDefault(c.httpClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://api.example.com/zone/get_active_zones",
		httpmock.NewStringResponder(200, `[{"name":"other_zone","type":"unblocker"}]`))

	created := false
	httpmock.RegisterResponder("POST", "https://api.example.com/zone",
		func(req *http.Request) (*http.Response, error) {
			created = true
			return httpmock.NewStringResponse(200, `{}`), nil
		})

	if err := c.EnsureZone(context.Background()); err != nil {
		t.Fatalf("ensure zone: %v", err)
	}
	if !created {
		t.Error("expected zone creation request")
	}
}

func TestEnsureZone_SkipsWhenPresent(t *testing.T) {
	c := newTestClient()
	httpmock.ActivateNonDefault(c.httpClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://api.example.com/zone/get_active_zones",
		httpmock.NewStringResponder(200, `[{"name":"test_zone","type":"unblocker"}]`))

	if err := c.EnsureZone(context.Background()); err != nil {
		t.Fatalf("ensure zone: %v", err)
	}
	if httpmock.GetCallCountInfo()["POST https://api.example.com/zone"] != 0 {
		t.Error("expected no zone creation request")
	}
}

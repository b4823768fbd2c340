package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"pricescout/internal/mcp"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeResponses(t *testing.T, out *bytes.Buffer) []mcp.Response {
	t.Helper()
	responses := []mcp.Response{}
	decoder := json.NewDecoder(out)
	for decoder.More() {
		var resp mcp.Response
		if err := decoder.Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		responses = append(responses, resp)
	}
	return responses
}

func TestRunStdio_RecoversFromBadLine(t *testing.T) {
	server := mcp.NewServer(nil, nil, discardLogger())

	// 坏行之后的请求必须照常处理
	input := strings.Join([]string{
		`{not json`,
		`{"jsonrpc":"2.0","id":1,"method":"ping"}`,
	}, "\n") + "\n"
	out := &bytes.Buffer{}

	runStdio(server, strings.NewReader(input), out, discardLogger())

	responses := decodeResponses(t, out)
	if len(responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(responses))
	}
	if responses[0].Error == nil || responses[0].Error.Code != mcp.ParseError {
		t.Errorf("expected ParseError for bad line, got %+v", responses[0].Error)
	}
	if string(responses[1].Result) != `"pong"` {
		t.Errorf("expected pong after bad line, got %s", responses[1].Result)
	}
}

func TestRunStdio_SkipsNotificationsAndBlankLines(t *testing.T) {
	server := mcp.NewServer(nil, nil, discardLogger())

	input := strings.Join([]string{
		"",
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
	}, "\n") + "\n"
	out := &bytes.Buffer{}

	runStdio(server, strings.NewReader(input), out, discardLogger())

	responses := decodeResponses(t, out)
	if len(responses) != 1 {
		t.Fatalf("expected only the ping response, got %d responses", len(responses))
	}
	if string(responses[0].Result) != `"pong"` {
		t.Errorf("expected pong, got %s", responses[0].Result)
	}
}

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
)

// stubTool records calls and returns a fixed answer
type stubTool struct {
	name   string
	result string
	err    error
	panics bool
	calls  atomic.Int32
	last   []string
}

func (s *stubTool) Spec() mcp.Tool {
	return mcp.NewTool(s.name,
		mcp.WithDescription("stub"),
		mcp.WithString("input", mcp.Required()),
	)
}

func (s *stubTool) Execute(ctx context.Context, params []string) (string, error) {
	s.calls.Add(1)
	s.last = params
	if s.panics {
		panic("boom")
	}
	return s.result, s.err
}

func TestRegistry_HasTool(t *testing.T) {
	r := NewRegistry(zerolog.Nop(), 0, &stubTool{name: "get_weather"}, &stubTool{name: "get_bitcoin_price"})

	tests := []struct {
		name string
		want bool
	}{
		{"get_weather", true},
		{"get_bitcoin_price", true},
		{"Get_Weather", false},
		{"", false},
		{"scrape_webpage", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.HasTool(tt.name); got != tt.want {
				t.Errorf("HasTool(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestRegistry_Execute(t *testing.T) {
	ok := &stubTool{name: "ok", result: "$65000"}
	failing := &stubTool{name: "failing", err: errors.New("upstream down")}
	panicking := &stubTool{name: "panicking", panics: true}
	r := NewRegistry(zerolog.Nop(), time.Second, ok, failing, panicking)

	tests := []struct {
		name   string
		tool   string
		params []string
		want   string
	}{
		{"success", "ok", []string{"a", "b"}, "$65000"},
		{"unknown tool", "missing", nil, NotFoundResult},
		{"error becomes text", "failing", nil, "Error executing tool failing: upstream down"},
		{"panic becomes text", "panicking", nil, "Error executing tool panicking: panic: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Execute(context.Background(), tt.tool, tt.params); got != tt.want {
				t.Errorf("Execute() = %q, want %q", got, tt.want)
			}
		})
	}

	if strings.Join(ok.last, ",") != "a,b" {
		t.Errorf("Expected params to be passed through, got %v", ok.last)
	}
}

func TestRegistry_ExecuteAppliesTimeout(t *testing.T) {
	var deadlineSet bool
	tool := &funcTool{name: "slow", fn: func(ctx context.Context, _ []string) (string, error) {
		_, deadlineSet = ctx.Deadline()
		return "done", nil
	}}
	r := NewRegistry(zerolog.Nop(), 50*time.Millisecond, tool)

	r.Execute(context.Background(), "slow", nil)
	if !deadlineSet {
		t.Error("Expected tool context to carry a deadline")
	}
}

func TestRegistry_RegisterAndNames(t *testing.T) {
	r := NewRegistry(zerolog.Nop(), 0, &stubTool{name: "zeta"})
	r.Register(&stubTool{name: "alpha"})
	r.Register(&stubTool{name: "zeta", result: "replaced"})

	if got := strings.Join(r.Names(), ","); got != "alpha,zeta" {
		t.Errorf("Expected sorted names alpha,zeta, got %s", got)
	}
	if got := r.Execute(context.Background(), "zeta", nil); got != "replaced" {
		t.Errorf("Expected replaced tool to run, got %q", got)
	}
	specs := r.Specs()
	if len(specs) != 2 || specs[0].Name != "alpha" {
		t.Errorf("Unexpected specs %+v", specs)
	}
}

func TestToolExecutionError_Is(t *testing.T) {
	cause := errors.New("cause")
	err := error(&ToolExecutionError{Tool: "x", Err: cause})
	if !errors.Is(err, ErrToolExecution) || !errors.Is(err, cause) {
		t.Errorf("Expected error to match sentinel and cause")
	}
}

func TestOrderedParams(t *testing.T) {
	spec := mcp.NewTool("t",
		mcp.WithString("location", mcp.Required()),
		mcp.WithString("units"),
		mcp.WithString("lang"),
	)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"nil", nil, ""},
		{"required first", map[string]any{"units": "metric", "location": "Paris"}, "Paris|metric"},
		{"rest sorted", map[string]any{"units": "metric", "lang": "fr", "location": "Paris"}, "Paris|fr|metric"},
		{"non-string values", map[string]any{"location": 42}, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := strings.Join(orderedParams(spec, tt.args), "|"); got != tt.want {
				t.Errorf("orderedParams() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewMCPServer_CallTool(t *testing.T) {
	echo := &stubTool{name: "echo", result: "pong"}
	s := NewMCPServer(NewRegistry(zerolog.Nop(), 0, echo), "test")

	msg := json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"echo","arguments":{"input":"ping"}}}`)
	resp := s.HandleMessage(context.Background(), msg)

	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Failed to marshal response: %v", err)
	}
	if !strings.Contains(string(raw), "pong") {
		t.Errorf("Expected tool output in response, got %s", raw)
	}
	if echo.calls.Load() != 1 || len(echo.last) != 1 || echo.last[0] != "ping" {
		t.Errorf("Expected one call with [ping], got %d calls with %v", echo.calls.Load(), echo.last)
	}
}

type funcTool struct {
	name string
	fn   func(ctx context.Context, params []string) (string, error)
}

func (f *funcTool) Spec() mcp.Tool { return mcp.NewTool(f.name) }

func (f *funcTool) Execute(ctx context.Context, params []string) (string, error) {
	return f.fn(ctx, params)
}

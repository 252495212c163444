package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/lexiqai/llm-gateway/internal/observability"
)

// NotFoundResult is returned by Execute for names that are not registered
const NotFoundResult = "Tool not found"

// ErrToolExecution is the sentinel behind every ToolExecutionError
var ErrToolExecution = errors.New("tool execution failed")

// ToolExecutionError wraps a failure raised inside a tool
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() []error {
	return []error{ErrToolExecution, e.Err}
}

// Tool is one capability the model can invoke by name.
// Spec describes the tool; parameters arrive in the order the model wrote them.
type Tool interface {
	Spec() mcp.Tool
	Execute(ctx context.Context, params []string) (string, error)
}

// Registry maps tool names to tools
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	timeout time.Duration
	logger  zerolog.Logger
}

// NewRegistry creates a registry holding the given tools
func NewRegistry(logger zerolog.Logger, timeout time.Duration, tools ...Tool) *Registry {
	r := &Registry{
		tools:   make(map[string]Tool, len(tools)),
		timeout: timeout,
		logger:  logger,
	}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a tool under its spec name
func (r *Registry) Register(t Tool) {
	name := t.Spec().Name
	r.mu.Lock()
	r.tools[name] = t
	r.mu.Unlock()
}

// HasTool reports whether name is registered
func (r *Registry) HasTool(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Names returns the registered names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Specs returns the tool descriptors sorted by name
func (r *Registry) Specs() []mcp.Tool {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]mcp.Tool, 0, len(names))
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			specs = append(specs, t.Spec())
		}
	}
	return specs
}

// Execute runs the named tool and always returns text. Failures and panics
// inside the tool become an error message the model can read.
func (r *Registry) Execute(ctx context.Context, name string, params []string) string {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		r.logger.Warn().Str("tool", name).Msg("Tool not found")
		return NotFoundResult
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	result, execErr := r.run(ctx, name, t, params)
	observability.RecordToolExecution(name, execErr == nil, time.Since(start))

	if execErr != nil {
		r.logger.Error().Err(execErr).Str("tool", name).Strs("params", params).Msg("Tool execution failed")
		return fmt.Sprintf("Error executing tool %s: %v", name, execErr.Err)
	}

	r.logger.Debug().
		Str("tool", name).
		Strs("params", params).
		Dur("latency", time.Since(start)).
		Msg("Tool executed")
	return result
}

func (r *Registry) run(ctx context.Context, name string, t Tool, params []string) (result string, execErr *ToolExecutionError) {
	defer func() {
		if p := recover(); p != nil {
			result = ""
			execErr = &ToolExecutionError{Tool: name, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	result, err := t.Execute(ctx, params)
	if err != nil {
		return "", &ToolExecutionError{Tool: name, Err: err}
	}
	return result, nil
}

package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lexiqai/llm-gateway/internal/endpoint"
)

// ToolResultOpen and ToolResultClose wrap tool output fed back to the model
const (
	ToolResultOpen  = "<tool_msg>"
	ToolResultClose = "</tool_msg>"
)

// RepeatedToolMessage replaces a third consecutive call to the same tool
const RepeatedToolMessage = "You have used the same tool multiple times. Please provide a final answer based on the information you have."

// NoResponseMessage is delivered when no round produced any text
const NoResponseMessage = "Error: No valid response received from the LLM."

// WrapToolResult delimits tool output so the model can tell it from user input
func WrapToolResult(result string) string {
	return ToolResultOpen + result + ToolResultClose
}

// BuildSystemPrompt assembles the single system message of a request: the
// tool preamble, then the caller's prompt, then for custom services the
// service name and description.
func BuildSystemPrompt(base string, ep endpoint.Endpoint, specs []mcp.Tool) string {
	var b strings.Builder
	if len(specs) > 0 {
		b.WriteString(toolPreamble(specs))
	}

	if base = strings.TrimSpace(base); base != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(base)
	}

	if ep.IsCustomService() {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "You are acting as the service %q.", ep.DisplayName)
		if ep.Description != "" {
			fmt.Fprintf(&b, " Service description: %s", ep.Description)
		}
	}
	return b.String()
}

func toolPreamble(specs []mcp.Tool) string {
	var b strings.Builder
	b.WriteString("You are an AI assistant.\nIF NEEDED, use external tools:\n")
	for _, spec := range specs {
		fmt.Fprintf(&b, "- %s: %s\n", signature(spec), spec.Description)
	}

	b.WriteString("\nTo use a tool, respond with the tool name followed by parameters in parentheses, if any. For example:\n")
	for _, spec := range specs {
		fmt.Fprintf(&b, "- %s\n", signature(spec))
	}

	b.WriteString(`
After using the necessary tools, you MUST provide a final answer to the user's query.
Your final answer should not be a tool invocation.

Respond ONLY with either:
1. A tool invocation
2. Your final answer to the user's query

The tool's response will be provided in the next message, wrapped in ` + ToolResultOpen + ToolResultClose + ` tags. Do not repeat those tags in your answer.`)
	return b.String()
}

// signature renders name or name(p1, p2) with required parameters first
func signature(spec mcp.Tool) string {
	names := make([]string, 0, len(spec.InputSchema.Properties))
	seen := make(map[string]bool)
	for _, name := range spec.InputSchema.Required {
		if _, ok := spec.InputSchema.Properties[name]; ok && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}

	var rest []string
	for name := range spec.InputSchema.Properties {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	names = append(names, rest...)

	if len(names) == 0 {
		return spec.Name
	}
	return spec.Name + "(" + strings.Join(names, ", ") + ")"
}

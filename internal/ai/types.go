// Package ai implements the multi-provider LLM subsystem: a static provider
// registry with fallback-chain resolution, per-provider invocation backends,
// and an orchestrator that retries a generation request across the chain.
package ai

import (
	"context"
	"encoding/json"
)

// Conversation roles recognized by the request handler and the backends.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of a conversation in provider-agnostic form.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// ToolCalls carries tool invocations requested by an assistant turn.
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
	// ToolCallID pairs a tool-role result message with its request.
	ToolCallID string `json:"toolCallId,omitempty"`
}

// ValidRole reports whether role is one of the recognized conversation roles.
func ValidRole(role string) bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolParam describes one parameter of a tool's schema. Backends translate
// the flat list into their native schema representation.
type ToolParam struct {
	Name        string
	Type        string // "string", "number", "boolean"
	Description string
	Required    bool
}

// Tool is an opaque callable contract the model may invoke mid-generation.
// The orchestrator passes the full tool set through to whichever backend is
// invoked, unchanged.
type Tool struct {
	Name        string
	Description string
	Params      []ToolParam
	Execute     func(ctx context.Context, args json.RawMessage) (string, error)
}

// Usage is the token accounting reported by a backend.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Metadata is the terminal record of one generation attempt.
type Metadata struct {
	FinishReason string
	Usage        Usage
	ToolCalls    []ToolCall
}

// Finish reasons normalized across backends.
const (
	FinishStop      = "stop"
	FinishLength    = "length"
	FinishToolCalls = "tool-calls"
)

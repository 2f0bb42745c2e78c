// Package aistream implements the line-framed AI data stream protocol used
// between the chat endpoint and its clients. Each frame is one line of the
// form "TYPE:JSON\n"; the type prefix selects the payload shape.
package aistream

import "encoding/json"

// Frame type prefixes.
const (
	TypeText          = "0" // JSON string: text delta
	TypeError         = "3" // JSON string: terminal error message
	TypeToolCall      = "9" // ToolCallPayload: complete tool invocation
	TypeToolResult    = "a" // ToolResultPayload
	TypeToolCallStart = "b" // ToolCallStartPayload: streamed tool call opened
	TypeToolCallDelta = "c" // ToolCallDeltaPayload: streamed argument text
	TypeFinish        = "d" // FinishPayload: terminal completion record
)

// ContentType is sent on streaming responses.
const ContentType = "text/plain; charset=utf-8"

// ProtocolHeader marks a response as carrying this framing.
const (
	ProtocolHeaderName  = "X-Vercel-AI-Data-Stream"
	ProtocolHeaderValue = "v1"
)

type ToolCallPayload struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       json.RawMessage `json:"args"`
}

type ToolResultPayload struct {
	ToolCallID string `json:"toolCallId"`
	Result     string `json:"result"`
}

type ToolCallStartPayload struct {
	ToolCallID string `json:"toolCallId"`
	ToolName   string `json:"toolName"`
}

type ToolCallDeltaPayload struct {
	ToolCallID    string `json:"toolCallId"`
	ArgsTextDelta string `json:"argsTextDelta"`
}

// UsagePayload mirrors the token accounting in the finish record.
type UsagePayload struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

type FinishPayload struct {
	FinishReason string       `json:"finishReason"`
	Usage        UsagePayload `json:"usage"`
}

package aistream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Writer emits protocol frames to an underlying stream, flushing after each
// frame so clients see deltas as they are produced.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter wraps w. If w implements http.Flusher (an http.ResponseWriter
// typically does), every frame is flushed immediately.
func NewWriter(w io.Writer) *Writer {
	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher}
}

// PrepareResponse sets the headers a streaming chat response requires. Must
// be called before the first frame.
func PrepareResponse(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", ContentType)
	h.Set(ProtocolHeaderName, ProtocolHeaderValue)
	h.Set("Cache-Control", "no-cache")
}

func (sw *Writer) frame(frameType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("aistream: marshal %s frame: %w", frameType, err)
	}
	if _, err := fmt.Fprintf(sw.w, "%s:%s\n", frameType, data); err != nil {
		return err
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}

// WriteText emits a text delta frame.
func (sw *Writer) WriteText(delta string) error {
	if delta == "" {
		return nil
	}
	return sw.frame(TypeText, delta)
}

// WriteToolCall emits a complete tool invocation.
func (sw *Writer) WriteToolCall(id, name string, args json.RawMessage) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	return sw.frame(TypeToolCall, ToolCallPayload{ToolCallID: id, ToolName: name, Args: args})
}

// WriteToolResult emits the outcome of an executed tool call.
func (sw *Writer) WriteToolResult(id, result string) error {
	return sw.frame(TypeToolResult, ToolResultPayload{ToolCallID: id, Result: result})
}

// WriteError emits a terminal error frame.
func (sw *Writer) WriteError(message string) error {
	return sw.frame(TypeError, message)
}

// WriteFinish emits the terminal completion record.
func (sw *Writer) WriteFinish(reason string, promptTokens, completionTokens int) error {
	return sw.frame(TypeFinish, FinishPayload{
		FinishReason: reason,
		Usage: UsagePayload{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
		},
	})
}

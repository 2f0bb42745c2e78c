// Package chat implements the portfolio assistant's chat endpoint: request
// validation, provider selection, tool execution and response streaming.
package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/michaeltmk/portfolio/internal/ai"
	"github.com/michaeltmk/portfolio/internal/portfolio"
	"github.com/michaeltmk/portfolio/pkg/aistream"
	"github.com/michaeltmk/portfolio/pkg/logging"
)

const (
	// maxToolSteps bounds the generate/execute loop: one tool round plus the
	// final text completion.
	maxToolSteps = 2
	// maxFallbackIndex caps how deep clients may escalate through the
	// fallback order.
	maxFallbackIndex = 3
)

// ChatRequest is the chat endpoint's request body.
type ChatRequest struct {
	Messages []IncomingMessage `json:"messages"`
	// FallbackIndex selects which provider in the fallback order to start
	// from. Zero or absent means the primary provider; index n means the
	// n-th fallback.
	FallbackIndex *int `json:"fallbackIndex,omitempty"`
}

// IncomingMessage is one conversation turn as sent by clients. Clients never
// send system turns; the system prompt is applied server-side.
type IncomingMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ErrorResponse is the JSON body for failures that occur before streaming
// starts. FallbackAvailable tells the client whether retrying with the next
// fallback index can help.
type ErrorResponse struct {
	Error             string `json:"error"`
	Status            int    `json:"status"`
	FallbackAvailable bool   `json:"fallbackAvailable"`
}

// Generator runs generation requests across the provider fallback chain.
type Generator interface {
	Generate(ctx context.Context, messages []ai.Message, tools []ai.Tool, opts ai.GenerateOptions) (*ai.Result, error)
	Registry() *ai.Registry
	RecordUsage(provider ai.ProviderID, usage ai.Usage)
}

// Handler serves the chat endpoint.
type Handler struct {
	orchestrator Generator
	config       *portfolio.Config
	tools        []ai.Tool
	logger       *logging.Logger
}

func NewHandler(orchestrator Generator, cfg *portfolio.Config, tools []ai.Tool, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{orchestrator: orchestrator, config: cfg, tools: tools, logger: logger}
}

// rawChatRequest decodes the body with message entries left opaque, so one
// malformed entry does not fail the whole request.
type rawChatRequest struct {
	Messages      []json.RawMessage `json:"messages"`
	FallbackIndex *int              `json:"fallbackIndex"`
}

// HandleChat is POST /api/chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req rawChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, ai.KindInvalidInput, "invalid request body", 0)
		return
	}

	messages := h.sanitizeMessages(req.Messages)
	if len(messages) == 0 {
		h.writeError(w, ai.KindInvalidInput, "no valid messages in request", 0)
		return
	}

	fallbackIndex := 0
	if req.FallbackIndex != nil {
		fallbackIndex = *req.FallbackIndex
	}
	opts, err := h.resolveOptions(fallbackIndex)
	if err != nil {
		kind := ai.KindOf(err)
		h.writeError(w, kind, kind.PublicMessage(), fallbackIndex)
		return
	}

	conversation := make([]ai.Message, 0, len(messages)+1)
	conversation = append(conversation, ai.Message{Role: ai.RoleSystem, Content: h.config.SystemPrompt()})
	conversation = append(conversation, messages...)

	result, err := h.orchestrator.Generate(r.Context(), conversation, h.tools, opts)
	if err != nil {
		// Full error text stays in the log; the response only carries the
		// fixed message for the failure kind.
		h.logger.Error("chat generation failed", "error", err, "fallback_index", fallbackIndex)
		kind := ai.KindOf(err)
		h.writeError(w, kind, kind.PublicMessage(), fallbackIndex)
		return
	}

	aistream.PrepareResponse(w)
	h.streamResponse(r.Context(), aistream.NewWriter(w), result, conversation, opts)
}

// sanitizeMessages drops entries that are not message objects and turns with
// unknown roles or empty content rather than failing the whole request; a
// chat UI occasionally sends empty placeholder turns.
func (h *Handler) sanitizeMessages(incoming []json.RawMessage) []ai.Message {
	messages := make([]ai.Message, 0, len(incoming))
	for _, raw := range incoming {
		var m IncomingMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			h.logger.Warn("skipping non-object message entry")
			continue
		}
		if !ai.ValidRole(m.Role) || m.Role == ai.RoleSystem {
			h.logger.Warn("skipping message with invalid role", "role", m.Role)
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			h.logger.Warn("skipping empty message", "role", m.Role)
			continue
		}
		messages = append(messages, ai.Message{Role: m.Role, Content: m.Content})
	}
	return messages
}

// resolveOptions maps a client fallback index onto the provider chain: zero
// is the primary, index n is the n-th entry of the fallback order.
func (h *Handler) resolveOptions(index int) (ai.GenerateOptions, error) {
	if index == 0 {
		return ai.GenerateOptions{}, nil
	}
	order := h.orchestrator.Registry().FallbackOrder()
	if index < 0 || index > maxFallbackIndex || index > len(order) {
		return ai.GenerateOptions{}, &ai.Error{
			Kind:    ai.KindInvalidFallbackIndex,
			Message: "fallback index out of range",
		}
	}
	return ai.GenerateOptions{Provider: order[index-1]}, nil
}

// streamResponse drains generation streams into protocol frames, executing
// requested tools between steps. Once streaming has begun, failures are
// reported in-band as error frames.
func (h *Handler) streamResponse(ctx context.Context, w *aistream.Writer, result *ai.Result, conversation []ai.Message, opts ai.GenerateOptions) {
	var totalUsage ai.Usage
	for step := 1; ; step++ {
		text, meta, err := h.drainStream(w, result.Stream)
		if err != nil {
			h.logger.Error("stream interrupted", "provider", result.Provider, "error", err)
			_ = w.WriteError(ai.KindOf(err).PublicMessage())
			return
		}
		totalUsage.PromptTokens += meta.Usage.PromptTokens
		totalUsage.CompletionTokens += meta.Usage.CompletionTokens
		totalUsage.TotalTokens += meta.Usage.TotalTokens
		h.orchestrator.RecordUsage(result.Provider, meta.Usage)

		if len(meta.ToolCalls) == 0 || step >= maxToolSteps {
			_ = w.WriteFinish(meta.FinishReason, totalUsage.PromptTokens, totalUsage.CompletionTokens)
			return
		}

		conversation = append(conversation, ai.Message{
			Role:      ai.RoleAssistant,
			Content:   text,
			ToolCalls: meta.ToolCalls,
		})
		conversation = append(conversation, h.executeToolCalls(ctx, w, meta.ToolCalls)...)

		// Continue on the provider that answered; a mid-conversation
		// provider switch would confuse tool-call bookkeeping.
		next, err := h.orchestrator.Generate(ctx, conversation, h.tools, ai.GenerateOptions{
			Provider: result.Provider,
			Model:    result.Model,
		})
		if err != nil {
			h.logger.Error("tool follow-up generation failed", "provider", result.Provider, "error", err)
			_ = w.WriteError(ai.KindOf(err).PublicMessage())
			return
		}
		result = next
	}
}

func (h *Handler) drainStream(w *aistream.Writer, stream ai.Stream) (string, ai.Metadata, error) {
	defer stream.Close()
	var text strings.Builder
	for {
		fragment, err := stream.Recv()
		if err == io.EOF {
			return text.String(), stream.Meta(), nil
		}
		if err != nil {
			return text.String(), ai.Metadata{}, err
		}
		text.WriteString(fragment)
		if err := w.WriteText(fragment); err != nil {
			return text.String(), ai.Metadata{}, err
		}
	}
}

// executeToolCalls runs each requested tool and returns the tool-role turns
// to feed back into the conversation. A failing tool reports its error as
// the result; it never aborts the response.
func (h *Handler) executeToolCalls(ctx context.Context, w *aistream.Writer, calls []ai.ToolCall) []ai.Message {
	results := make([]ai.Message, 0, len(calls))
	for _, call := range calls {
		_ = w.WriteToolCall(call.ID, call.Name, call.Arguments)

		output, err := h.runTool(ctx, call)
		if err != nil {
			h.logger.Warn("tool execution failed", "tool", call.Name, "error", err)
			output = "Error: " + err.Error()
		}
		_ = w.WriteToolResult(call.ID, output)
		results = append(results, ai.Message{
			Role:       ai.RoleTool,
			Content:    output,
			ToolCallID: call.ID,
		})
	}
	return results
}

func (h *Handler) runTool(ctx context.Context, call ai.ToolCall) (string, error) {
	for i := range h.tools {
		if h.tools[i].Name == call.Name {
			return h.tools[i].Execute(ctx, call.Arguments)
		}
	}
	return "", &ai.Error{Kind: ai.KindInvalidInput, Message: "unknown tool " + call.Name}
}

func (h *Handler) writeError(w http.ResponseWriter, kind ai.Kind, message string, fallbackIndex int) {
	status := kind.HTTPStatus()
	resp := ErrorResponse{
		Error:             message,
		Status:            status,
		FallbackAvailable: h.fallbackAvailable(kind, fallbackIndex),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to write error response", "error", err)
	}
}

// fallbackAvailable reports whether the client retrying with the next
// fallback index could succeed. Non-retryable failures and an exhausted
// fallback order both mean no.
func (h *Handler) fallbackAvailable(kind ai.Kind, currentIndex int) bool {
	if !kind.Retryable() {
		return false
	}
	next := currentIndex + 1
	return next <= maxFallbackIndex && next <= len(h.orchestrator.Registry().FallbackOrder())
}

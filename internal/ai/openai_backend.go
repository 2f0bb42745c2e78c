package ai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// openAIBackend drives any OpenAI-compatible chat-completions API: OpenAI
// itself, Mistral, OpenRouter, and operator-supplied compatible endpoints.
type openAIBackend struct {
	provider ProviderID
	client   *openai.Client
	model    string
}

// mistralBaseURL is Mistral's OpenAI-compatible endpoint.
const mistralBaseURL = "https://api.mistral.ai/v1"

func newOpenAIBackend(id ProviderID, cfg ProviderConfig, model, siteURL string) (*openAIBackend, error) {
	clientCfg := openai.DefaultConfig(cfg.APIKey)

	baseURL := cfg.BaseURL
	if id == ProviderMistral {
		baseURL = mistralBaseURL
	}
	if baseURL != "" {
		// OpenAI-compatible APIs expect the /v1 suffix.
		if !strings.HasSuffix(baseURL, "/v1") && !strings.HasSuffix(baseURL, "/v1/") {
			baseURL = strings.TrimSuffix(baseURL, "/") + "/v1"
		}
		clientCfg.BaseURL = baseURL
	}

	if id == ProviderOpenRouter {
		clientCfg.HTTPClient = &http.Client{
			Transport: &openRouterTransport{base: http.DefaultTransport, siteURL: siteURL},
		}
	}

	return &openAIBackend{
		provider: id,
		client:   openai.NewClientWithConfig(clientCfg),
		model:    model,
	}, nil
}

// openRouterTransport attaches the attribution headers OpenRouter asks for.
type openRouterTransport struct {
	base    http.RoundTripper
	siteURL string
}

func (t *openRouterTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if t.siteURL != "" {
		clone.Header.Set("HTTP-Referer", t.siteURL)
	}
	clone.Header.Set("X-Title", "Portfolio Assistant")
	return t.base.RoundTrip(clone)
}

func (b *openAIBackend) generate(ctx context.Context, req request) (Stream, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       b.model,
		Messages:    toOpenAIMessages(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}
	if tools := toOpenAITools(req.Tools); len(tools) > 0 {
		chatReq.Tools = tools
	}

	stream, err := b.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, classifyOpenAIError(b.provider, err)
	}
	return &openAIStream{provider: b.provider, stream: stream}, nil
}

// openAIStream adapts the SDK's chunk stream to the Stream contract,
// accumulating tool-call deltas and the trailing usage record as it goes.
type openAIStream struct {
	provider ProviderID
	stream   *openai.ChatCompletionStream
	meta     Metadata
	toolAcc  map[int]*ToolCall
	argAcc   map[int]*strings.Builder
	done     bool
}

func (s *openAIStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for {
		chunk, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			s.finalizeToolCalls()
			return "", io.EOF
		}
		if err != nil {
			s.done = true
			return "", classifyOpenAIError(s.provider, err)
		}

		if chunk.Usage != nil {
			s.meta.Usage = Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.FinishReason != "" {
			s.meta.FinishReason = normalizeFinishReason(string(choice.FinishReason))
		}
		for _, tc := range choice.Delta.ToolCalls {
			s.accumulateToolCall(tc)
		}
		if choice.Delta.Content != "" {
			return choice.Delta.Content, nil
		}
	}
}

func (s *openAIStream) accumulateToolCall(tc openai.ToolCall) {
	if s.toolAcc == nil {
		s.toolAcc = map[int]*ToolCall{}
		s.argAcc = map[int]*strings.Builder{}
	}
	idx := 0
	if tc.Index != nil {
		idx = *tc.Index
	}
	acc, ok := s.toolAcc[idx]
	if !ok {
		acc = &ToolCall{}
		s.toolAcc[idx] = acc
		s.argAcc[idx] = &strings.Builder{}
	}
	if tc.ID != "" {
		acc.ID = tc.ID
	}
	if tc.Function.Name != "" {
		acc.Name = tc.Function.Name
	}
	s.argAcc[idx].WriteString(tc.Function.Arguments)
}

func (s *openAIStream) finalizeToolCalls() {
	if len(s.toolAcc) == 0 {
		return
	}
	indexes := make([]int, 0, len(s.toolAcc))
	for idx := range s.toolAcc {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	for _, idx := range indexes {
		call := *s.toolAcc[idx]
		args := s.argAcc[idx].String()
		if args == "" {
			args = "{}"
		}
		call.Arguments = []byte(args)
		s.meta.ToolCalls = append(s.meta.ToolCalls, call)
	}
	if s.meta.FinishReason == "" {
		s.meta.FinishReason = FinishToolCalls
	}
}

func (s *openAIStream) Meta() Metadata { return s.meta }

func (s *openAIStream) Close() error {
	s.done = true
	return s.stream.Close()
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		m := openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
		for _, tc := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		if msg.Role == RoleTool {
			m.ToolCallID = msg.ToolCallID
		}
		out = append(out, m)
	}
	return out
}

func toOpenAITools(tools []Tool) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  paramsToJSONSchema(t.Params),
			},
		})
	}
	return out
}

// paramsToJSONSchema renders a tool's flat parameter list as a JSON-schema
// object, the shape expected by every OpenAI-compatible API.
func paramsToJSONSchema(params []ToolParam) map[string]any {
	properties := map[string]any{}
	var required []string
	for _, p := range params {
		properties[p.Name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func normalizeFinishReason(reason string) string {
	switch reason {
	case "stop", "end_turn":
		return FinishStop
	case "length", "max_tokens":
		return FinishLength
	case "tool_calls", "tool_use", "function_call":
		return FinishToolCalls
	default:
		return reason
	}
}

// classifyOpenAIError attaches a taxonomy kind based on the HTTP status the
// SDK reports, never on error message text.
func classifyOpenAIError(provider ProviderID, err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(provider, apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(provider, reqErr.HTTPStatusCode, err)
	}
	return wrapError(KindProviderUnavailable, provider, err)
}

// classifyStatus is the shared status-code-to-kind mapping for HTTP backends.
func classifyStatus(provider ProviderID, status int, err error) *Error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return wrapError(KindAuthentication, provider, err)
	case status == http.StatusTooManyRequests:
		return wrapError(KindRateLimited, provider, err)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return wrapError(KindConversationFormat, provider, err)
	default:
		return wrapError(KindProviderUnavailable, provider, err)
	}
}

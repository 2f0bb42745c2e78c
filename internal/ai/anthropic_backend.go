package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

// anthropicBackend drives the Anthropic Messages API in streaming mode.
type anthropicBackend struct {
	client *anthropic.Client
	model  string
}

func newAnthropicBackend(cfg ProviderConfig, model string) *anthropicBackend {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)
	return &anthropicBackend{client: &client, model: model}
}

func (b *anthropicBackend) generate(ctx context.Context, req request) (Stream, error) {
	system, rest := splitSystemMessages(req.Messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  toAnthropicMessages(rest),
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if tools := toAnthropicTools(req.Tools); len(tools) > 0 {
		params.Tools = tools
	}

	s := &anthropicStream{stream: b.client.Messages.NewStreaming(ctx, params)}

	// Prime the first event so connection and request errors surface here,
	// where the orchestrator can still advance to the next provider.
	fragment, err := s.recvNext()
	switch {
	case err == nil:
		s.pending = &fragment
	case errors.Is(err, io.EOF):
		s.exhausted = true
		s.finalize()
		if len(s.message.Content) == 0 {
			return nil, newError(KindProviderUnavailable, ProviderAnthropic, "empty response")
		}
	default:
		return nil, err
	}
	return s, nil
}

// anthropicStream adapts the SDK event stream, accumulating the full message
// for terminal metadata.
type anthropicStream struct {
	stream    *ssestream.Stream[anthropic.MessageStreamEventUnion]
	message   anthropic.Message
	meta      Metadata
	pending   *string
	exhausted bool
	finalized bool
}

func (s *anthropicStream) Recv() (string, error) {
	if s.pending != nil {
		fragment := *s.pending
		s.pending = nil
		return fragment, nil
	}
	if s.exhausted {
		s.finalize()
		return "", io.EOF
	}
	fragment, err := s.recvNext()
	if errors.Is(err, io.EOF) {
		s.exhausted = true
		s.finalize()
	}
	return fragment, err
}

// recvNext advances the SDK stream to the next text delta.
func (s *anthropicStream) recvNext() (string, error) {
	for s.stream.Next() {
		event := s.stream.Current()
		if err := s.message.Accumulate(event); err != nil {
			return "", wrapError(KindProviderUnavailable, ProviderAnthropic, err)
		}
		if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && text.Text != "" {
				return text.Text, nil
			}
		}
	}
	if err := s.stream.Err(); err != nil {
		return "", classifyAnthropicError(err)
	}
	return "", io.EOF
}

func (s *anthropicStream) finalize() {
	if s.finalized {
		return
	}
	s.finalized = true
	s.meta.FinishReason = normalizeFinishReason(string(s.message.StopReason))
	s.meta.Usage = Usage{
		PromptTokens:     int(s.message.Usage.InputTokens),
		CompletionTokens: int(s.message.Usage.OutputTokens),
		TotalTokens:      int(s.message.Usage.InputTokens + s.message.Usage.OutputTokens),
	}
	for _, block := range s.message.Content {
		if use, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
			args, _ := json.Marshal(use.Input)
			s.meta.ToolCalls = append(s.meta.ToolCalls, ToolCall{
				ID:        use.ID,
				Name:      use.Name,
				Arguments: args,
			})
		}
	}
	if len(s.meta.ToolCalls) > 0 && s.meta.FinishReason == "" {
		s.meta.FinishReason = FinishToolCalls
	}
}

func (s *anthropicStream) Meta() Metadata {
	s.finalize()
	return s.meta
}

func (s *anthropicStream) Close() error {
	s.exhausted = true
	return s.stream.Close()
}

// splitSystemMessages concatenates system turns (Anthropic takes the system
// prompt as a request parameter) and returns the remaining conversation.
func splitSystemMessages(messages []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		rest = append(rest, msg)
	}
	return system, rest
}

func toAnthropicMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleAssistant:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var input any
				_ = json.Unmarshal(tc.Arguments, &input)
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    tc.ID,
						Name:  tc.Name,
						Input: input,
					},
				})
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		case RoleTool:
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return out
}

func toAnthropicTools(tools []Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := paramsToJSONSchema(t.Params)
		var required []string
		for _, p := range t.Params {
			if p.Required {
				required = append(required, p.Name)
			}
		}
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: schema["properties"],
					Required:   required,
				},
			},
		})
	}
	return out
}

func classifyAnthropicError(err error) *Error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(ProviderAnthropic, apiErr.StatusCode, err)
	}
	return wrapError(KindProviderUnavailable, ProviderAnthropic, err)
}

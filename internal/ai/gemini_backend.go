package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// geminiBackend drives Google's Gemini API. It is invoked in single-shot
// mode: one blocking request whose complete response is wrapped as a
// one-fragment stream (see modeFor).
type geminiBackend struct {
	apiKey string
	model  string
}

func newGeminiBackend(cfg ProviderConfig, model string) *geminiBackend {
	return &geminiBackend{apiKey: cfg.APIKey, model: model}
}

func (b *geminiBackend) generate(ctx context.Context, req request) (Stream, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(b.apiKey))
	if err != nil {
		return nil, wrapError(KindProviderUnavailable, ProviderGoogle, err)
	}
	defer client.Close()

	model := client.GenerativeModel(b.model)
	if req.Temperature >= 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	system, rest := splitSystemMessages(req.Messages)
	if strings.TrimSpace(system) != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}
	if tools := toGeminiTools(req.Tools); len(tools) > 0 {
		model.Tools = tools
	}

	cs := model.StartChat()
	if len(rest) == 0 {
		return nil, newError(KindConversationFormat, ProviderGoogle, "at least one message required")
	}

	// All turns but the last become chat history.
	for _, msg := range rest[:len(rest)-1] {
		content := geminiContent(msg)
		if content != nil {
			cs.History = append(cs.History, content)
		}
	}

	last := rest[len(rest)-1]
	resp, err := cs.SendMessage(ctx, geminiParts(last)...)
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	if len(resp.Candidates) == 0 {
		return nil, newError(KindProviderUnavailable, ProviderGoogle, "no candidates returned")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, newError(KindProviderUnavailable, ProviderGoogle, "empty content returned")
	}

	var text strings.Builder
	var toolCalls []ToolCall
	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text.WriteString(string(p))
		case genai.FunctionCall:
			args, _ := json.Marshal(p.Args)
			toolCalls = append(toolCalls, ToolCall{
				ID:        fmt.Sprintf("call_%s_%d", p.Name, len(toolCalls)),
				Name:      p.Name,
				Arguments: args,
			})
		}
	}
	if text.Len() == 0 && len(toolCalls) == 0 {
		return nil, newError(KindProviderUnavailable, ProviderGoogle, "response carried no text or tool calls")
	}

	meta := Metadata{
		FinishReason: geminiFinishReason(candidate.FinishReason, toolCalls),
		ToolCalls:    toolCalls,
	}
	if resp.UsageMetadata != nil {
		meta.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return newBufferedStream(text.String(), meta), nil
}

func geminiFinishReason(reason genai.FinishReason, toolCalls []ToolCall) string {
	if len(toolCalls) > 0 {
		return FinishToolCalls
	}
	switch reason {
	case genai.FinishReasonStop:
		return FinishStop
	case genai.FinishReasonMaxTokens:
		return FinishLength
	default:
		return strings.ToLower(reason.String())
	}
}

// geminiContent converts one conversation turn into Gemini chat history.
// Returns nil for turns Gemini has no representation for.
func geminiContent(msg Message) *genai.Content {
	parts := geminiParts(msg)
	if len(parts) == 0 {
		return nil
	}
	role := "user"
	if msg.Role == RoleAssistant {
		role = "model"
	}
	return &genai.Content{Role: role, Parts: parts}
}

func geminiParts(msg Message) []genai.Part {
	var parts []genai.Part
	if msg.Role == RoleTool {
		var response map[string]any
		if err := json.Unmarshal([]byte(msg.Content), &response); err != nil {
			response = map[string]any{"result": msg.Content}
		}
		return []genai.Part{genai.FunctionResponse{Name: msg.ToolCallID, Response: response}}
	}
	if strings.TrimSpace(msg.Content) != "" {
		parts = append(parts, genai.Text(msg.Content))
	}
	for _, tc := range msg.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal(tc.Arguments, &args)
		parts = append(parts, genai.FunctionCall{Name: tc.Name, Args: args})
	}
	return parts
}

func toGeminiTools(tools []Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decl := &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
		}
		if len(t.Params) > 0 {
			properties := map[string]*genai.Schema{}
			var required []string
			for _, p := range t.Params {
				properties[p.Name] = &genai.Schema{
					Type:        geminiSchemaType(p.Type),
					Description: p.Description,
				}
				if p.Required {
					required = append(required, p.Name)
				}
			}
			decl.Parameters = &genai.Schema{
				Type:       genai.TypeObject,
				Properties: properties,
				Required:   required,
			}
		}
		decls = append(decls, decl)
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func geminiSchemaType(t string) genai.Type {
	switch t {
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

func classifyGeminiError(err error) *Error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(ProviderGoogle, apiErr.Code, err)
	}
	return wrapError(KindProviderUnavailable, ProviderGoogle, err)
}

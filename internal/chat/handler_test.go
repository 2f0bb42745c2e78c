package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaeltmk/portfolio/internal/ai"
	"github.com/michaeltmk/portfolio/internal/portfolio"
	"github.com/michaeltmk/portfolio/pkg/aistream"
	"github.com/michaeltmk/portfolio/pkg/logging"
)

type scriptedResult struct {
	text string
	meta ai.Metadata
	err  error
}

// fakeGenerator returns scripted results in order and records the requests
// it received.
type fakeGenerator struct {
	registry *ai.Registry
	results  []scriptedResult
	calls    []ai.GenerateOptions
	messages [][]ai.Message
}

func (f *fakeGenerator) Generate(ctx context.Context, messages []ai.Message, tools []ai.Tool, opts ai.GenerateOptions) (*ai.Result, error) {
	f.calls = append(f.calls, opts)
	f.messages = append(f.messages, messages)
	if len(f.results) == 0 {
		return nil, &ai.Error{Kind: ai.KindAllProvidersExhausted, Message: "no script"}
	}
	next := f.results[0]
	f.results = f.results[1:]
	if next.err != nil {
		return nil, next.err
	}
	return &ai.Result{
		Provider:     ai.ProviderMistral,
		ProviderName: "Mistral AI",
		Model:        "mistral-large-latest",
		Stream:       newScriptedStream(next.text, next.meta),
	}, nil
}

func (f *fakeGenerator) Registry() *ai.Registry { return f.registry }

func (f *fakeGenerator) RecordUsage(ai.ProviderID, ai.Usage) {}

type scriptedStream struct {
	text     string
	meta     ai.Metadata
	consumed bool
}

func newScriptedStream(text string, meta ai.Metadata) *scriptedStream {
	return &scriptedStream{text: text, meta: meta}
}

func (s *scriptedStream) Recv() (string, error) {
	if s.consumed {
		return "", io.EOF
	}
	s.consumed = true
	return s.text, nil
}

func (s *scriptedStream) Meta() ai.Metadata { return s.meta }
func (s *scriptedStream) Close() error      { return nil }

func testPortfolio() *portfolio.Config {
	return &portfolio.Config{
		Personal: portfolio.PersonalInfo{
			Name:     "Michael Mak",
			Nickname: "Mike",
			Age:      "28 years old",
			Location: "Hong Kong",
			Title:    "full-stack developer",
		},
		Contact: portfolio.ContactInfo{
			Email: "michael@example.com",
			Social: map[string]portfolio.SocialLink{
				"github": {Username: "michaeltmk", URL: "https://github.com/michaeltmk"},
			},
		},
	}
}

func testRegistry() *ai.Registry {
	return ai.NewRegistry(ai.CatalogConfig{
		MistralAPIKey:   "mk",
		OpenAIAPIKey:    "ok",
		AnthropicAPIKey: "ak",
		Primary:         "mistral",
		FallbackOrder:   []string{"openai", "anthropic"},
	})
}

func newTestHandler(gen *fakeGenerator) *Handler {
	return NewHandler(gen, testPortfolio(), Tools(testPortfolio(), nil), logging.New("error"))
}

func postChat(t *testing.T, h *Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h.HandleChat(rec, req)
	return rec
}

func collectEvents(t *testing.T, rec *httptest.ResponseRecorder) []aistream.Event {
	t.Helper()
	s := aistream.NewScanner(rec.Body)
	var events []aistream.Event
	for {
		ev, err := s.Next()
		if err == io.EOF {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func TestHandleChat_StreamsText(t *testing.T) {
	gen := &fakeGenerator{
		registry: testRegistry(),
		results: []scriptedResult{{
			text: "Hi, I'm Michael!",
			meta: ai.Metadata{FinishReason: ai.FinishStop, Usage: ai.Usage{PromptTokens: 10, CompletionTokens: 4}},
		}},
	}
	h := newTestHandler(gen)

	rec := postChat(t, h, ChatRequest{Messages: []IncomingMessage{{Role: "user", Content: "who are you?"}}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v1", rec.Header().Get("X-Vercel-AI-Data-Stream"))

	events := collectEvents(t, rec)
	require.Len(t, events, 2)
	assert.Equal(t, "Hi, I'm Michael!", events[0].Text)
	require.NotNil(t, events[1].Finish)
	assert.Equal(t, "stop", events[1].Finish.FinishReason)
	assert.Equal(t, 10, events[1].Finish.Usage.PromptTokens)
}

func TestHandleChat_PrependsSystemPrompt(t *testing.T) {
	gen := &fakeGenerator{
		registry: testRegistry(),
		results:  []scriptedResult{{text: "ok", meta: ai.Metadata{FinishReason: ai.FinishStop}}},
	}
	h := newTestHandler(gen)

	postChat(t, h, ChatRequest{Messages: []IncomingMessage{{Role: "user", Content: "hi"}}})

	require.Len(t, gen.messages, 1)
	sent := gen.messages[0]
	require.GreaterOrEqual(t, len(sent), 2)
	assert.Equal(t, ai.RoleSystem, sent[0].Role)
	assert.Contains(t, sent[0].Content, "Michael Mak")
	assert.Equal(t, "hi", sent[1].Content)
}

func TestHandleChat_FiltersInvalidMessages(t *testing.T) {
	gen := &fakeGenerator{
		registry: testRegistry(),
		results:  []scriptedResult{{text: "ok", meta: ai.Metadata{FinishReason: ai.FinishStop}}},
	}
	h := newTestHandler(gen)

	rec := postChat(t, h, ChatRequest{Messages: []IncomingMessage{
		{Role: "robot", Content: "bad role"},
		{Role: "user", Content: "   "},
		{Role: "system", Content: "client-sent system prompts are dropped"},
		{Role: "user", Content: "kept"},
	}})

	assert.Equal(t, http.StatusOK, rec.Code)
	sent := gen.messages[0]
	require.Len(t, sent, 2) // system prompt + the one kept turn
	assert.Equal(t, "kept", sent[1].Content)
}

func TestHandleChat_EmptyAfterFiltering(t *testing.T) {
	h := newTestHandler(&fakeGenerator{registry: testRegistry()})

	rec := postChat(t, h, ChatRequest{Messages: []IncomingMessage{{Role: "robot", Content: "x"}}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "no valid messages")
	assert.False(t, resp.FallbackAvailable)
}

func TestHandleChat_MalformedBody(t *testing.T) {
	h := newTestHandler(&fakeGenerator{registry: testRegistry()})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.HandleChat(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChat_FallbackIndexSelectsProvider(t *testing.T) {
	gen := &fakeGenerator{
		registry: testRegistry(),
		results:  []scriptedResult{{text: "ok", meta: ai.Metadata{FinishReason: ai.FinishStop}}},
	}
	h := newTestHandler(gen)
	index := 2

	rec := postChat(t, h, ChatRequest{
		Messages:      []IncomingMessage{{Role: "user", Content: "hi"}},
		FallbackIndex: &index,
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, gen.calls, 1)
	assert.Equal(t, ai.ProviderAnthropic, gen.calls[0].Provider)
}

func TestHandleChat_FallbackIndexOutOfRange(t *testing.T) {
	h := newTestHandler(&fakeGenerator{registry: testRegistry()})
	index := 5

	rec := postChat(t, h, ChatRequest{
		Messages:      []IncomingMessage{{Role: "user", Content: "hi"}},
		FallbackIndex: &index,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.FallbackAvailable)
}

func TestHandleChat_GenerationErrorWithFallbackAvailable(t *testing.T) {
	gen := &fakeGenerator{
		registry: testRegistry(),
		results: []scriptedResult{{
			err: &ai.Error{Kind: ai.KindProviderUnavailable, Provider: ai.ProviderMistral, Message: "down"},
		}},
	}
	h := newTestHandler(gen)

	rec := postChat(t, h, ChatRequest{Messages: []IncomingMessage{{Role: "user", Content: "hi"}}})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.FallbackAvailable)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
}

func TestHandleChat_AuthErrorNotRetryable(t *testing.T) {
	gen := &fakeGenerator{
		registry: testRegistry(),
		results: []scriptedResult{{
			err: &ai.Error{Kind: ai.KindAuthentication, Provider: ai.ProviderMistral, Message: "bad key"},
		}},
	}
	h := newTestHandler(gen)

	rec := postChat(t, h, ChatRequest{Messages: []IncomingMessage{{Role: "user", Content: "hi"}}})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.FallbackAvailable)
}

func TestHandleChat_ErrorBodyHidesProviderDetail(t *testing.T) {
	gen := &fakeGenerator{
		registry: testRegistry(),
		results: []scriptedResult{{
			err: &ai.Error{
				Kind:     ai.KindAuthentication,
				Provider: ai.ProviderAnthropic,
				Err:      errors.New("401 invalid x-api-key sk-ant-SECRET-suffix"),
			},
		}},
	}
	h := newTestHandler(gen)

	rec := postChat(t, h, ChatRequest{Messages: []IncomingMessage{{Role: "user", Content: "hi"}}})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ai.KindAuthentication.PublicMessage(), resp.Error)
	assert.NotContains(t, rec.Body.String(), "sk-ant")
	assert.NotContains(t, rec.Body.String(), "x-api-key")
}

func TestHandleChat_SkipsNonObjectMessageEntries(t *testing.T) {
	gen := &fakeGenerator{
		registry: testRegistry(),
		results:  []scriptedResult{{text: "ok", meta: ai.Metadata{FinishReason: ai.FinishStop}}},
	}
	h := newTestHandler(gen)

	body := json.RawMessage(`{"messages":[{"role":"user","content":"hi"},42,"nope",{"role":"user","content":"again"}]}`)
	rec := postChat(t, h, body)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, gen.messages, 1)
	sent := gen.messages[0]
	// System prompt plus the two surviving user turns.
	require.Len(t, sent, 3)
	assert.Equal(t, "hi", sent[1].Content)
	assert.Equal(t, "again", sent[2].Content)
}

func TestHandleChat_ToolLoop(t *testing.T) {
	toolCall := ai.ToolCall{ID: "call_1", Name: "getContact", Arguments: json.RawMessage("{}")}
	gen := &fakeGenerator{
		registry: testRegistry(),
		results: []scriptedResult{
			{text: "", meta: ai.Metadata{FinishReason: ai.FinishToolCalls, ToolCalls: []ai.ToolCall{toolCall}}},
			{text: "You can email me!", meta: ai.Metadata{FinishReason: ai.FinishStop}},
		},
	}
	h := newTestHandler(gen)

	rec := postChat(t, h, ChatRequest{Messages: []IncomingMessage{{Role: "user", Content: "contact?"}}})

	events := collectEvents(t, rec)
	var types []string
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{aistream.TypeToolCall, aistream.TypeToolResult, aistream.TypeText, aistream.TypeFinish}, types)

	// The follow-up generation pins the provider that answered first and
	// carries the tool result turn.
	require.Len(t, gen.calls, 2)
	assert.Equal(t, ai.ProviderMistral, gen.calls[1].Provider)
	followUp := gen.messages[1]
	last := followUp[len(followUp)-1]
	assert.Equal(t, ai.RoleTool, last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Contains(t, last.Content, "michael@example.com")
}

func TestHandleChat_UnknownToolReportsError(t *testing.T) {
	toolCall := ai.ToolCall{ID: "call_1", Name: "launchRockets", Arguments: json.RawMessage("{}")}
	gen := &fakeGenerator{
		registry: testRegistry(),
		results: []scriptedResult{
			{meta: ai.Metadata{FinishReason: ai.FinishToolCalls, ToolCalls: []ai.ToolCall{toolCall}}},
			{text: "sorry", meta: ai.Metadata{FinishReason: ai.FinishStop}},
		},
	}
	h := newTestHandler(gen)

	rec := postChat(t, h, ChatRequest{Messages: []IncomingMessage{{Role: "user", Content: "hi"}}})

	events := collectEvents(t, rec)
	var result *aistream.ToolResultPayload
	for _, ev := range events {
		if ev.ToolResult != nil {
			result = ev.ToolResult
		}
	}
	require.NotNil(t, result)
	assert.Contains(t, result.Result, "unknown tool")
}

func TestHandleHealth(t *testing.T) {
	h := newTestHandler(&fakeGenerator{registry: testRegistry()})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.HandleHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestHandleHealth_Degraded(t *testing.T) {
	gen := &fakeGenerator{registry: ai.NewRegistry(ai.CatalogConfig{Primary: "mistral"})}
	h := newTestHandler(gen)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.HandleHealth(rec, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp["status"])
}

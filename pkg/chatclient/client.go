// Package chatclient is the Go client for the portfolio chat endpoint. It
// owns the retry state the server cannot: which fallback index is active,
// detection of hung or empty responses, and resubmission with a cleaned
// conversation history.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/michaeltmk/portfolio/pkg/aistream"
	"github.com/michaeltmk/portfolio/pkg/logging"
)

// State is the coordinator's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateStreaming
	StateCompleted
	StateFailed
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

const (
	// maxFallbackIndex bounds how far the coordinator escalates through the
	// server's fallback order.
	maxFallbackIndex = 3
	// hangTimeout is how long to wait for the first response activity
	// before synthesizing a timeout failure.
	hangTimeout = 30 * time.Second
	// pendingExpiry evicts dedupe entries whose completion signal was lost.
	pendingExpiry = 30 * time.Second
)

var (
	// ErrDuplicateQuery is returned when an identical query is already in
	// flight.
	ErrDuplicateQuery = errors.New("chatclient: identical query already pending")
	// ErrExhausted is returned when every fallback attempt failed.
	ErrExhausted = errors.New("chatclient: all fallback attempts exhausted")
	// ErrRateLimited is returned on a 429; waiting, not escalating, is the
	// remedy.
	ErrRateLimited = errors.New("chatclient: rate limited, try again later")
	// ErrTerminal is returned for failures no retry can fix (bad
	// credentials, no provider configured).
	ErrTerminal = errors.New("chatclient: provider configuration problem")
)

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reply is a completed assistant turn.
type Reply struct {
	Content       string
	FinishReason  string
	FallbackIndex int // index that produced the reply
}

// Client coordinates chat submissions against one endpoint. It is safe for
// concurrent use; retry state is serialized internally.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *logging.Logger
	now      func() time.Time
	// fallbackLimit is the length of the server's fallback order, when known.
	// Escalating past it would only earn a 400, so the budget caps there.
	// Negative means unknown.
	fallbackLimit int

	// OnDelta, when set, receives each text fragment as it streams in.
	OnDelta func(fragment string)

	mu            sync.Mutex
	state         State
	fallbackIndex int
	retrying      bool
	pending       map[string]time.Time
	history       []Message
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithFallbackLimit tells the client how many fallback providers the server
// has configured, typically taken from the health endpoint's provider report.
// Retries then exhaust at that depth instead of issuing requests the server
// would reject as out of range.
func WithFallbackLimit(n int) Option {
	return func(c *Client) { c.fallbackLimit = n }
}

func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:      endpoint,
		http:          &http.Client{},
		logger:        logging.Default(),
		now:           time.Now,
		fallbackLimit: -1,
		pending:       map[string]time.Time{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the coordinator's current state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// FallbackIndex returns the currently active fallback index.
func (c *Client) FallbackIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fallbackIndex
}

// History returns a copy of the conversation so far.
func (c *Client) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}

// Reset clears the conversation and retry state.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
	c.fallbackIndex = 0
	c.history = nil
}

// Send submits a user query and returns the assistant's reply, escalating
// through the fallback order on failures. An identical query already in
// flight is rejected rather than resubmitted.
func (c *Client) Send(ctx context.Context, query string) (*Reply, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, errors.New("chatclient: empty query")
	}
	if err := c.markPending(trimmed); err != nil {
		return nil, err
	}
	defer c.clearPending(trimmed)

	c.mu.Lock()
	c.history = append(c.history, Message{Role: "user", Content: trimmed})
	c.mu.Unlock()

	formatRecovered := false
	for {
		c.setState(StateSubmitting)
		reply, failure := c.attempt(ctx)
		if failure == nil {
			c.mu.Lock()
			c.history = append(c.history, Message{Role: "assistant", Content: reply.Content})
			c.state = StateCompleted
			// A successful non-empty completion resets the escalation.
			c.fallbackIndex = 0
			c.retrying = false
			c.mu.Unlock()
			return reply, nil
		}

		switch failure.class {
		case failureFormat:
			// Malformed history confuses every provider the same way; fix
			// the history instead of consuming the fallback budget.
			if formatRecovered {
				c.setState(StateFailed)
				return nil, fmt.Errorf("chatclient: conversation rejected after history reset: %s", failure.message)
			}
			formatRecovered = true
			c.truncateToLastUserTurn()
			c.logger.Warn("conversation format rejected, retrying with truncated history")
			continue
		case failureRateLimited:
			c.setState(StateFailed)
			return nil, ErrRateLimited
		case failureTerminal:
			c.setState(StateFailed)
			return nil, fmt.Errorf("%w: %s", ErrTerminal, failure.message)
		case failureCanceled:
			c.setState(StateFailed)
			return nil, ctx.Err()
		}

		// Retryable failure: escalate to the next fallback provider.
		if !c.beginRetry() {
			c.mu.Lock()
			c.state = StateExhausted
			c.retrying = false
			c.mu.Unlock()
			return nil, ErrExhausted
		}
		c.logger.Warn("attempt failed, escalating",
			"reason", failure.message,
			"next_index", c.FallbackIndex(),
		)
	}
}

type failureClass int

const (
	failureRetryable failureClass = iota
	failureFormat
	failureRateLimited
	failureTerminal
	failureCanceled
)

type failure struct {
	class   failureClass
	message string
}

// attempt issues one request at the current fallback index and consumes its
// stream. A nil failure means a non-empty completion was received.
func (c *Client) attempt(ctx context.Context) (*Reply, *failure) {
	c.mu.Lock()
	index := c.fallbackIndex
	body := chatRequestBody{Messages: c.cleanHistoryLocked()}
	c.mu.Unlock()
	if index > 0 {
		body.FallbackIndex = &index
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, &failure{class: failureTerminal, message: err.Error()}
	}

	// Hang detection: cancel the request if no activity arrives in time.
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	activity := make(chan struct{})
	timedOut := make(chan struct{})
	go func() {
		select {
		case <-activity:
		case <-reqCtx.Done():
		case <-time.After(hangTimeout):
			close(timedOut)
			cancel()
		}
	}()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, &failure{class: failureTerminal, message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		select {
		case <-timedOut:
			return nil, &failure{class: failureRetryable, message: "no response within timeout"}
		default:
		}
		if ctx.Err() != nil {
			// Caller cancellation is not a provider failure.
			return nil, &failure{class: failureCanceled, message: ctx.Err().Error()}
		}
		return nil, &failure{class: failureRetryable, message: err.Error()}
	}
	defer resp.Body.Close()
	close(activity)

	if resp.StatusCode != http.StatusOK {
		return nil, c.classifyErrorResponse(resp)
	}

	// Disguised-success detection: a 200 that does not carry the streaming
	// protocol marker is a failure in disguise.
	if resp.Header.Get(aistream.ProtocolHeaderName) != aistream.ProtocolHeaderValue {
		return nil, &failure{class: failureRetryable, message: "response missing streaming protocol marker"}
	}

	c.setState(StateStreaming)
	return c.consumeStream(resp.Body, index)
}

func (c *Client) consumeStream(body io.Reader, index int) (*Reply, *failure) {
	scanner := aistream.NewScanner(body)
	var text strings.Builder
	finishReason := ""
	for {
		event, err := scanner.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &failure{class: failureRetryable, message: err.Error()}
		}
		switch event.Type {
		case aistream.TypeText:
			text.WriteString(event.Text)
			if c.OnDelta != nil {
				c.OnDelta(event.Text)
			}
		case aistream.TypeError:
			return nil, &failure{class: failureRetryable, message: event.Error}
		case aistream.TypeFinish:
			finishReason = event.Finish.FinishReason
		}
	}

	if strings.TrimSpace(text.String()) == "" {
		// Empty-completion detection: a turn that finished with nothing to
		// say is a failure the server reported as success.
		return nil, &failure{class: failureRetryable, message: "completion carried no content"}
	}
	return &Reply{Content: text.String(), FinishReason: finishReason, FallbackIndex: index}, nil
}

func (c *Client) classifyErrorResponse(resp *http.Response) *failure {
	var body struct {
		Error             string `json:"error"`
		Status            int    `json:"status"`
		FallbackAvailable bool   `json:"fallbackAvailable"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	_ = json.Unmarshal(raw, &body)
	message := body.Error
	if message == "" {
		message = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return &failure{class: failureFormat, message: message}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &failure{class: failureRateLimited, message: message}
	case !body.FallbackAvailable:
		return &failure{class: failureTerminal, message: message}
	default:
		return &failure{class: failureRetryable, message: message}
	}
}

// beginRetry advances the fallback index under the retry-in-progress guard.
// It returns false when the budget is exhausted, either the fixed cap or the
// server's fallback-order length when known. The index only ever grows until
// a successful completion resets it.
func (c *Client) beginRetry() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	budget := maxFallbackIndex
	if c.fallbackLimit >= 0 && c.fallbackLimit < budget {
		budget = c.fallbackLimit
	}
	if c.fallbackIndex >= budget {
		return false
	}
	c.retrying = true
	c.fallbackIndex++
	return true
}

// cleanHistoryLocked returns the conversation with empty assistant turns
// stripped, so a retry does not replay a corrupted turn. Callers hold c.mu.
func (c *Client) cleanHistoryLocked() []Message {
	out := make([]Message, 0, len(c.history))
	for _, m := range c.history {
		if m.Role == "assistant" && strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}

// truncateToLastUserTurn discards assistant/tool history, keeping only the
// most recent user message.
func (c *Client) truncateToLastUserTurn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.history) - 1; i >= 0; i-- {
		if c.history[i].Role == "user" {
			c.history = []Message{c.history[i]}
			return
		}
	}
	c.history = nil
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) markPending(trimmed string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for query, at := range c.pending {
		if now.Sub(at) > pendingExpiry {
			delete(c.pending, query)
		}
	}
	if _, inFlight := c.pending[trimmed]; inFlight {
		return ErrDuplicateQuery
	}
	c.pending[trimmed] = now
	return nil
}

func (c *Client) clearPending(trimmed string) {
	c.mu.Lock()
	delete(c.pending, trimmed)
	c.mu.Unlock()
}

type chatRequestBody struct {
	Messages      []Message `json:"messages"`
	FallbackIndex *int      `json:"fallbackIndex,omitempty"`
}

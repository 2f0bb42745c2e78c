package aistream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Event is one decoded frame. Exactly one payload field is populated,
// selected by Type.
type Event struct {
	Type       string
	Text       string
	Error      string
	ToolCall   *ToolCallPayload
	ToolResult *ToolResultPayload
	Finish     *FinishPayload
}

// Scanner decodes protocol frames from a response body. Unknown frame types
// are skipped so protocol additions do not break older clients.
type Scanner struct {
	scanner *bufio.Scanner
	err     error
}

func NewScanner(r io.Reader) *Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Scanner{scanner: s}
}

// Next returns the next decoded event, or io.EOF when the stream ends.
func (s *Scanner) Next() (Event, error) {
	if s.err != nil {
		return Event{}, s.err
	}
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		event, ok, err := decodeLine(line)
		if err != nil {
			s.err = err
			return Event{}, err
		}
		if ok {
			return event, nil
		}
	}
	if err := s.scanner.Err(); err != nil {
		s.err = err
		return Event{}, err
	}
	s.err = io.EOF
	return Event{}, io.EOF
}

func decodeLine(line string) (Event, bool, error) {
	frameType, payload, found := strings.Cut(line, ":")
	if !found {
		return Event{}, false, fmt.Errorf("aistream: malformed frame %q", line)
	}

	switch frameType {
	case TypeText:
		var text string
		if err := json.Unmarshal([]byte(payload), &text); err != nil {
			return Event{}, false, fmt.Errorf("aistream: decode text frame: %w", err)
		}
		return Event{Type: TypeText, Text: text}, true, nil
	case TypeError:
		var msg string
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			return Event{}, false, fmt.Errorf("aistream: decode error frame: %w", err)
		}
		return Event{Type: TypeError, Error: msg}, true, nil
	case TypeToolCall:
		var tc ToolCallPayload
		if err := json.Unmarshal([]byte(payload), &tc); err != nil {
			return Event{}, false, fmt.Errorf("aistream: decode tool call frame: %w", err)
		}
		return Event{Type: TypeToolCall, ToolCall: &tc}, true, nil
	case TypeToolResult:
		var tr ToolResultPayload
		if err := json.Unmarshal([]byte(payload), &tr); err != nil {
			return Event{}, false, fmt.Errorf("aistream: decode tool result frame: %w", err)
		}
		return Event{Type: TypeToolResult, ToolResult: &tr}, true, nil
	case TypeFinish:
		var fin FinishPayload
		if err := json.Unmarshal([]byte(payload), &fin); err != nil {
			return Event{}, false, fmt.Errorf("aistream: decode finish frame: %w", err)
		}
		return Event{Type: TypeFinish, Finish: &fin}, true, nil
	default:
		// Skip frame types this client does not understand.
		return Event{}, false, nil
	}
}

package ai

import "io"

// Stream is a lazy, finite sequence of text fragments produced by one
// provider attempt. It is not restartable: once consumed (or failed), a new
// attempt must go back through the orchestrator. Recv returns io.EOF when the
// sequence is complete; Meta is only meaningful after that.
type Stream interface {
	Recv() (string, error)
	Meta() Metadata
	Close() error
}

// Result is the normalized output of a successful provider attempt.
type Result struct {
	Provider     ProviderID
	ProviderName string
	Model        string
	Stream       Stream
}

// bufferedStream wraps an already-complete response in the Stream contract:
// exactly one fragment (the full text) followed by io.EOF. Used for backends
// invoked in single-shot mode.
type bufferedStream struct {
	text     string
	meta     Metadata
	consumed bool
}

func newBufferedStream(text string, meta Metadata) *bufferedStream {
	return &bufferedStream{text: text, meta: meta}
}

func (s *bufferedStream) Recv() (string, error) {
	if s.consumed {
		return "", io.EOF
	}
	s.consumed = true
	return s.text, nil
}

func (s *bufferedStream) Meta() Metadata { return s.meta }

func (s *bufferedStream) Close() error { return nil }

package middleware

import (
	"net/http"
)

// StreamLimiter bounds how many chat completions stream at once. A streamed
// completion holds its connection and a provider slot for the whole
// generation, so the cap is on live streams rather than request rate.
type StreamLimiter struct {
	slots chan struct{}
}

func NewStreamLimiter(max int) *StreamLimiter {
	return &StreamLimiter{slots: make(chan struct{}, max)}
}

// Acquire reserves a stream slot, reporting false when all are busy.
func (l *StreamLimiter) Acquire() bool {
	select {
	case l.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire.
func (l *StreamLimiter) Release() {
	<-l.slots
}

// InFlight returns the number of streams currently running.
func (l *StreamLimiter) InFlight() int {
	return len(l.slots)
}

// LimitStreams sheds load once max streams are in flight: excess requests get
// 429 with a Retry-After hint instead of queueing behind slow generations.
func LimitStreams(max int) func(http.Handler) http.Handler {
	limiter := NewStreamLimiter(max)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Acquire() {
				w.Header().Set("Retry-After", "5")
				http.Error(w, "too many concurrent chats, try again shortly", http.StatusTooManyRequests)
				return
			}
			defer limiter.Release()
			next.ServeHTTP(w, r)
		})
	}
}

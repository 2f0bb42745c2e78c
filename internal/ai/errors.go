package ai

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a generation failure. The classification is attached at the
// point of detection so downstream handlers map errors without inspecting
// message text.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindInvalidFallbackIndex
	KindConversationFormat
	KindAuthentication
	KindRateLimited
	KindProviderUnavailable
	KindAllProvidersExhausted
	KindNoProviderConfigured
	KindMisconfiguredProvider
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindInvalidFallbackIndex:
		return "invalid_fallback_index"
	case KindConversationFormat:
		return "conversation_format"
	case KindAuthentication:
		return "authentication"
	case KindRateLimited:
		return "rate_limited"
	case KindProviderUnavailable:
		return "provider_unavailable"
	case KindAllProvidersExhausted:
		return "all_providers_exhausted"
	case KindNoProviderConfigured:
		return "no_provider_configured"
	case KindMisconfiguredProvider:
		return "misconfigured_provider"
	default:
		return "unknown"
	}
}

// HTTPStatus maps a failure kind to the externally visible status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidInput, KindInvalidFallbackIndex:
		return http.StatusBadRequest
	case KindConversationFormat:
		return http.StatusUnprocessableEntity
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindAuthentication, KindProviderUnavailable,
		KindAllProvidersExhausted, KindNoProviderConfigured:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the client-facing description of a failure kind. Provider
// SDK error text stays in logs; responses only ever carry these fixed strings.
func (k Kind) PublicMessage() string {
	switch k {
	case KindInvalidInput:
		return "invalid request"
	case KindInvalidFallbackIndex:
		return "fallback index out of range"
	case KindConversationFormat:
		return "conversation format not supported"
	case KindAuthentication:
		return "AI provider rejected the configured credentials"
	case KindRateLimited:
		return "AI provider rate limit exceeded"
	case KindProviderUnavailable:
		return "AI provider temporarily unavailable"
	case KindAllProvidersExhausted:
		return "all AI providers are currently unavailable"
	case KindNoProviderConfigured:
		return "no AI provider configured"
	case KindMisconfiguredProvider:
		return "AI provider misconfigured"
	default:
		return "AI request failed"
	}
}

// Retryable reports whether a failure of this kind warrants trying the next
// provider in the chain. Bad credentials and malformed conversations fail the
// same way on every backend, so they never trigger fallback.
func (k Kind) Retryable() bool {
	switch k {
	case KindAuthentication, KindConversationFormat, KindInvalidInput, KindInvalidFallbackIndex:
		return false
	default:
		return true
	}
}

// Error is a classified generation failure, optionally tied to a provider.
type Error struct {
	Kind     Kind
	Provider ProviderID
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Provider != "" {
		return fmt.Sprintf("ai: %s: %s: %s", e.Provider, e.Kind, msg)
	}
	return fmt.Sprintf("ai: %s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// newError builds a classified error with a formatted message.
func newError(kind Kind, provider ProviderID, format string, args ...any) *Error {
	return &Error{Kind: kind, Provider: provider, Message: fmt.Sprintf(format, args...)}
}

// wrapError classifies an underlying error without losing it.
func wrapError(kind Kind, provider ProviderID, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Err: err}
}

// KindOf extracts the classification from err, or KindUnknown.
func KindOf(err error) Kind {
	var aiErr *Error
	if errors.As(err, &aiErr) {
		return aiErr.Kind
	}
	return KindUnknown
}

// ProviderOf extracts the provider a failure originated from, if any.
func ProviderOf(err error) ProviderID {
	var aiErr *Error
	if errors.As(err, &aiErr) {
		return aiErr.Provider
	}
	return ""
}

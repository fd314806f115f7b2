package openrouter

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrorKind classifies a failed completion request so callers can pick a
// user-facing reply without inspecting error text themselves.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindAuth means the provider rejected the caller's API key.
	KindAuth
	// KindTransient covers rate limits, provider 5xx and network failures.
	KindTransient
)

// ErrRateLimited is returned when the bot's own ratelimiter denies a request
// before it reaches the provider.
var ErrRateLimited = errors.New("local rate limit exceeded")

// RequestError wraps a provider failure with its classification.
type RequestError struct {
	Kind ErrorKind
	Err  error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("completion request failed: %s", e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err is a completion failure caused by an
// invalid or rejected API key.
func IsAuthError(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Kind == KindAuth
}

// classify maps a raw go-openai error to a RequestError. A 401 response is
// authoritative; the "Incorrect API key" message match is a fallback for
// providers that wrap auth failures in other statuses. The wording is not a
// stable contract, so unmatched errors degrade to KindUnknown rather than
// being misreported as auth failures.
func classify(err error) *RequestError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusUnauthorized,
			strings.Contains(apiErr.Message, "Incorrect API key"):
			return &RequestError{Kind: KindAuth, Err: err}
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests,
			apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return &RequestError{Kind: KindTransient, Err: err}
		default:
			return &RequestError{Kind: KindUnknown, Err: err}
		}
	}

	// No structured API error: timeouts, DNS failures and the like.
	return &RequestError{Kind: KindTransient, Err: err}
}

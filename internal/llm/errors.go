package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// Kind classifies a gateway failure
type Kind string

const (
	KindUnreachable   Kind = "unreachable"
	KindModelNotFound Kind = "model_not_found"
	KindTimeout       Kind = "timeout"
	KindAuth          Kind = "auth"
	KindRateLimited   Kind = "rate_limited"
	KindBadResponse   Kind = "bad_response"
	KindUnknown       Kind = "unknown"
)

// Error is a classified backend failure with a remediation hint
type Error struct {
	Kind     Kind
	Provider string
	Model    string
	Message  string
	Hint     string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s (%s): %s: %s", e.Provider, e.Model, e.Kind, e.Message)
	if e.Hint != "" {
		msg += " - " + e.Hint
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a gateway error of the given kind
func IsKind(err error, kind Kind) bool {
	var lerr *Error
	return errors.As(err, &lerr) && lerr.Kind == kind
}

// asError returns err as *Error, classifying it when it is not one already
func asError(provider, model string, err error) *Error {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr
	}
	kind := classify(err)
	return &Error{
		Kind:     kind,
		Provider: provider,
		Model:    model,
		Message:  err.Error(),
		Hint:     hintFor(kind, provider, model, ""),
		Err:      err,
	}
}

// httpError builds a classified error from an HTTP status and body
func httpError(provider, model, baseURL string, status int, body string) *Error {
	kind := classifyStatus(status, body)
	return &Error{
		Kind:     kind,
		Provider: provider,
		Model:    model,
		Message:  fmt.Sprintf("HTTP %d: %s", status, truncate(body, 300)),
		Hint:     hintFor(kind, provider, model, baseURL),
	}
}

func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return KindUnreachable
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindUnreachable
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindUnreachable
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return KindUnreachable
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "timeout"):
		return KindTimeout
	case strings.Contains(msg, "not found") && strings.Contains(msg, "model"):
		return KindModelNotFound
	case strings.Contains(msg, "api key"), strings.Contains(msg, "unauthorized"), strings.Contains(msg, "permission"):
		return KindAuth
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "quota"), strings.Contains(msg, "resource_exhausted"):
		return KindRateLimited
	}
	return KindUnknown
}

func classifyStatus(status int, body string) Kind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 404:
		return KindModelNotFound
	case status == 408 || status == 504:
		return KindTimeout
	case status == 429:
		return KindRateLimited
	case status == 502 || status == 503:
		return KindUnreachable
	case status == 400 && strings.Contains(strings.ToLower(body), "model"):
		return KindModelNotFound
	}
	return KindUnknown
}

func hintFor(kind Kind, provider, model, baseURL string) string {
	switch kind {
	case KindUnreachable:
		if baseURL != "" {
			return fmt.Sprintf("check that the %s server is running and reachable at %s (LLM_BASE_URL)", provider, baseURL)
		}
		return fmt.Sprintf("check network access to the %s API", provider)
	case KindModelNotFound:
		if provider == "ollama" {
			return fmt.Sprintf("pull the model first: ollama pull %s, or set LLM_MODEL", model)
		}
		return fmt.Sprintf("model %q is not available for this account; set LLM_MODEL", model)
	case KindTimeout:
		return "the model took too long; raise LLM_TIMEOUT_MS or use a smaller model"
	case KindAuth:
		return "check LLM_API_KEY"
	case KindRateLimited:
		return "the provider is throttling requests; wait and retry or reduce the panel size"
	case KindBadResponse:
		return "the backend answered but returned no usable text; retry or switch model"
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

package agent

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Kind classifies an execution failure.
type Kind string

const (
	KindNotInstalled   Kind = "not_installed"
	KindTimeout        Kind = "timeout"
	KindCancelled      Kind = "cancelled"
	KindAuth           Kind = "auth"
	KindRateLimit      Kind = "rate_limit"
	KindModelNotFound  Kind = "model_not_found"
	KindContextTooLong Kind = "context_too_long"
	KindNetwork        Kind = "network"
	KindUnknown        Kind = "unknown"
)

// Error is a classified process failure. Recoverable failures can be retried
// by starting another review; Hint suggests the remedial action.
type Error struct {
	Kind        Kind
	Message     string
	Recoverable bool
	Hint        string
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// IsCancelled reports whether err is a cancellation outcome. Cancellation is
// a distinguished result and must not be reported as a failure.
func IsCancelled(err error) bool {
	ae, ok := err.(*Error)
	return ok && ae.Kind == KindCancelled
}

// outputTailLimit bounds how much combined output an unknown failure carries.
const outputTailLimit = 400

// classify inspects combined tool output for recognizable failure signatures
// before falling back to an unknown failure carrying the output tail.
func classify(combined string, exitCode int) *Error {
	lower := strings.ToLower(combined)

	switch {
	case containsAny(lower, "api key", "unauthorized", "authentication", "not logged in", "please log in"):
		return &Error{
			Kind:        KindAuth,
			Message:     "analysis tool rejected credentials",
			Recoverable: false,
			Hint:        "check the tool's API key or login state",
		}
	case containsAny(lower, "rate limit", "too many requests", "429", "overloaded"):
		return &Error{
			Kind:        KindRateLimit,
			Message:     "analysis tool is rate limited",
			Recoverable: true,
			Hint:        "wait a moment and retry the review",
		}
	case containsAny(lower, "model not found", "unknown model", "no such model", "invalid model"):
		return &Error{
			Kind:        KindModelNotFound,
			Message:     "configured model is not available",
			Recoverable: false,
			Hint:        "check the model id in the agent configuration",
		}
	case containsAny(lower, "context length", "context too long", "prompt is too long", "maximum context", "token limit"):
		return &Error{
			Kind:        KindContextTooLong,
			Message:     "diff exceeds the tool's context window",
			Recoverable: false,
			Hint:        "review the change in smaller pieces",
		}
	case containsAny(lower, "network", "connection refused", "connection reset", "no such host", "dial tcp", "tls handshake"):
		return &Error{
			Kind:        KindNetwork,
			Message:     "analysis tool could not reach its backend",
			Recoverable: true,
			Hint:        "check network connectivity and retry",
		}
	}

	tail := combined
	if len(tail) > outputTailLimit {
		start := len(tail) - outputTailLimit
		// Advance to a rune boundary so the cut never splits a multi-byte
		// character.
		for start < len(tail) && !utf8.RuneStart(tail[start]) {
			start++
		}
		tail = tail[start:]
	}
	return &Error{
		Kind:        KindUnknown,
		Message:     "tool exited with code " + strconv.Itoa(exitCode) + ": " + strings.TrimSpace(tail),
		Recoverable: true,
		Hint:        "inspect the tool output and retry",
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

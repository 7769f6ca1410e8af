package property

import (
	"errors"
	"strings"
)

// ErrExtractionFailed is matched by every adapter failure. Its text is what the user sees.
var ErrExtractionFailed = errors.New("Failed to extract property details. Please ensure the link is valid and public.")

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// Kind discriminates extraction failures so callers do not have to re-read message text.
type Kind int

const (
	KindGeneric Kind = iota
	KindRateLimited
)

func (k Kind) String() string {
	if k == KindRateLimited {
		return "rate_limited"
	}
	return "generic"
}

// ExtractionError is the only error type adapters return.
// Error() never exposes the cause; Unwrap keeps it for logs.
type ExtractionError struct {
	Kind  Kind
	Cause error
}

// NewExtractionError tags cause. A nil cause still produces a usable error.
func NewExtractionError(kind Kind, cause error) *ExtractionError {
	return &ExtractionError{Kind: kind, Cause: cause}
}

func (e *ExtractionError) Error() string { return ErrExtractionFailed.Error() }

func (e *ExtractionError) Unwrap() error { return e.Cause }

// Is lets errors.Is match the sentinels without comparing text.
func (e *ExtractionError) Is(target error) bool {
	switch target {
	case ErrExtractionFailed:
		return true
	case ErrQuotaExceeded:
		return e.Kind == KindRateLimited
	}
	return false
}

// Detail returns the cause message for logging, or "" when there is none.
func (e *ExtractionError) Detail() string {
	if e.Cause == nil {
		return ""
	}
	return e.Cause.Error()
}

var quotaMarkers = []string{"429", "quota", "resource_exhausted"}

// LooksLikeQuota reports whether msg mentions a quota or rate-limit condition.
// Matching is case-insensitive.
func LooksLikeQuota(msg string) bool {
	lower := strings.ToLower(msg)
	for _, m := range quotaMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

package analysis

import (
	"errors"

	"github.com/bryanwahyu/palmview/internal/domain/property"
)

// User-facing notices.
const (
	QuotaNotice   = "The Gemini API quota for this key has been reached. Please try again later or check your Google Cloud billing settings."
	GenericNotice = "An unexpected error occurred while analyzing the property."
)

// DisplayMessage turns an adapter error into the text shown on the page.
// Typed extraction errors are switched on their kind; anything else falls
// back to matching quota markers in the message text.
func DisplayMessage(err error) string {
	if err == nil {
		return ""
	}
	var xe *property.ExtractionError
	if errors.As(err, &xe) {
		if xe.Kind == property.KindRateLimited {
			return QuotaNotice
		}
		return xe.Error()
	}
	if errors.Is(err, property.ErrQuotaExceeded) {
		return QuotaNotice
	}
	msg := err.Error()
	if property.LooksLikeQuota(msg) {
		return QuotaNotice
	}
	if msg == "" {
		return GenericNotice
	}
	return msg
}

// Outcome labels a settlement for metrics and history.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeQuota   Outcome = "quota_exceeded"
	OutcomeStale   Outcome = "discarded"
)

func outcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case DisplayMessage(err) == QuotaNotice:
		return OutcomeQuota
	default:
		return OutcomeFailed
	}
}

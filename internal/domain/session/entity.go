package session

import (
	"time"

	"github.com/bryanwahyu/palmview/internal/domain/property"
)

// Phase is derived from the ViewState fields; it is never stored.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseFailure Phase = "failure"
)

// ViewState is what the page renders for one browser session.
// After a request settles at most one of Error and Data is non-nil.
type ViewState struct {
	IsLoading bool              `json:"isLoading"`
	Error     *string           `json:"error"`
	Data      *property.Details `json:"data"`

	URL       string    `json:"url,omitempty"`
	Seq       uint64    `json:"seq"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Phase reports which of the UI states s is in.
func (s ViewState) Phase() Phase {
	switch {
	case s.IsLoading:
		return PhaseLoading
	case s.Error != nil:
		return PhaseFailure
	case s.Data != nil:
		return PhaseSuccess
	default:
		return PhaseIdle
	}
}

// ErrorMessage returns the error text or "".
func (s ViewState) ErrorMessage() string {
	if s.Error == nil {
		return ""
	}
	return *s.Error
}

// Begin enters Loading for a new submission and returns its sequence number.
// Previous data stays visible until the new request settles.
func (s *ViewState) Begin(url string, now time.Time) uint64 {
	s.Seq++
	s.IsLoading = true
	s.Error = nil
	s.URL = url
	s.UpdatedAt = now
	return s.Seq
}

// Succeed settles the current request with d.
func (s *ViewState) Succeed(d property.Details, now time.Time) {
	cp := d.Clone()
	s.IsLoading = false
	s.Error = nil
	s.Data = &cp
	s.UpdatedAt = now
}

// Fail settles the current request with a display message.
func (s *ViewState) Fail(msg string, now time.Time) {
	s.IsLoading = false
	s.Data = nil
	s.Error = &msg
	s.UpdatedAt = now
}

// Reset returns to Idle and invalidates any request still in flight.
func (s *ViewState) Reset(now time.Time) {
	s.Seq++
	s.IsLoading = false
	s.Error = nil
	s.Data = nil
	s.URL = ""
	s.UpdatedAt = now
}

// Clone deep-copies s.
func (s ViewState) Clone() ViewState {
	out := s
	if s.Error != nil {
		msg := *s.Error
		out.Error = &msg
	}
	if s.Data != nil {
		d := s.Data.Clone()
		out.Data = &d
	}
	return out
}

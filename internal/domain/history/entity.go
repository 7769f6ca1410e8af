package history

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/bryanwahyu/palmview/internal/domain/property"
)

// RecordID identifier type
type RecordID string

// Status enum
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Record is one settled analysis kept for auditing and retrieval.
type Record struct {
	ID         RecordID          `json:"id"`
	SessionID  string            `json:"session_id,omitempty"`
	URL        string            `json:"url"`
	Status     Status            `json:"status"`
	Details    *property.Details `json:"details,omitempty"`
	Error      string            `json:"error,omitempty"`
	ArchiveURL string            `json:"archive_url,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ResultJSON encodes Details for a result_json column; "{}" when there is none.
func (r *Record) ResultJSON() (string, error) {
	if r.Details == nil {
		return "{}", nil
	}
	b, err := json.Marshal(r.Details)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SetResultJSON is the inverse of ResultJSON.
func (r *Record) SetResultJSON(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "{}" || raw == "null" {
		r.Details = nil
		return nil
	}
	var d property.Details
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return err
	}
	r.Details = &d
	return nil
}

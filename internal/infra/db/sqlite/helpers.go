package sqlite

import (
	"strings"
	"time"

	domain "github.com/bryanwahyu/palmview/internal/domain/history"
)

// stringOrDash returns "-" when the input is empty/whitespace
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// dashToEmpty undoes stringOrDash on read.
func dashToEmpty(s string) string {
	if s == "-" {
		return ""
	}
	return s
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*domain.Record, error) {
	var (
		r       domain.Record
		result  string
		created time.Time
	)
	if err := s.Scan(&r.ID, &r.SessionID, &r.URL, &r.Status, &result, &r.Error, &r.ArchiveURL, &created); err != nil {
		return nil, err
	}
	if err := r.SetResultJSON(result); err != nil {
		return nil, err
	}
	r.SessionID = dashToEmpty(r.SessionID)
	r.CreatedAt = created.UTC()
	return &r, nil
}

package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/palmview/internal/application"
	"github.com/bryanwahyu/palmview/internal/domain/history"
	"github.com/bryanwahyu/palmview/internal/domain/property"
	"github.com/bryanwahyu/palmview/internal/domain/session"
)

// Recorder receives analysis lifecycle events (metrics).
type Recorder interface {
	Started()
	Settled(o Outcome)
}

// Controller drives the per-session view state around the extractor.
// It is safe for concurrent use.
type Controller struct {
	Extractor property.Extractor
	States    session.Store
	Clock     application.Clock

	// optional side channels; nil disables them
	History  history.Repository
	Archive  property.Archive
	Recorder Recorder

	wg sync.WaitGroup
}

func (c *Controller) clock() application.Clock {
	if c.Clock == nil {
		return application.SystemClock{}
	}
	return c.Clock
}

// State returns the current view state of a session.
func (c *Controller) State(ctx context.Context, sessionID string) (session.ViewState, error) {
	return c.States.Get(ctx, sessionID)
}

// Submit starts an analysis of rawURL for the session and returns the state
// right after the transition. Blank input and submissions while a request is
// already loading leave the state unchanged.
func (c *Controller) Submit(ctx context.Context, sessionID, rawURL string) (session.ViewState, error) {
	url := strings.TrimSpace(rawURL)
	if url == "" {
		return c.States.Get(ctx, sessionID)
	}

	var seq uint64
	st, err := c.States.Update(ctx, sessionID, func(s *session.ViewState) error {
		if s.IsLoading {
			return session.ErrNoChange
		}
		seq = s.Begin(url, c.clock().Now())
		return nil
	})
	if err != nil {
		return session.ViewState{}, fmt.Errorf("submit: %w", err)
	}
	if seq == 0 {
		return st, nil
	}

	c.start()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		// provider call runs to completion even if the HTTP request goes away
		c.settle(context.Background(), sessionID, seq, url)
	}()
	return st, nil
}

// Reset clears the session back to Idle. A result still in flight is dropped
// when it arrives.
func (c *Controller) Reset(ctx context.Context, sessionID string) (session.ViewState, error) {
	return c.States.Update(ctx, sessionID, func(s *session.ViewState) error {
		s.Reset(c.clock().Now())
		return nil
	})
}

// Analyze runs one synchronous analysis outside any session.
func (c *Controller) Analyze(ctx context.Context, rawURL string) (property.Details, error) {
	url := strings.TrimSpace(rawURL)
	c.start()
	d, err := c.Extractor.Analyze(ctx, url)
	c.finish(ctx, "", url, d, err)
	return d, err
}

// Wait blocks until every background settlement has finished.
func (c *Controller) Wait() { c.wg.Wait() }

// settleWriteTimeout bounds the retry and fallback writes after a failed
// settlement update.
const settleWriteTimeout = 5 * time.Second

func (c *Controller) settle(ctx context.Context, sessionID string, seq uint64, url string) {
	d, err := c.Extractor.Analyze(ctx, url)

	apply := func(s *session.ViewState) {
		if err != nil {
			s.Fail(DisplayMessage(err), c.clock().Now())
		} else {
			s.Succeed(d, c.clock().Now())
		}
	}

	applied, uerr := c.writeIfCurrent(ctx, sessionID, seq, apply)
	if uerr != nil {
		log.Printf("analysis state update failed session=%s seq=%d err=%v; retrying", sessionID, seq, uerr)
		applied, uerr = c.retryWrite(sessionID, seq, apply)
	}
	if uerr != nil {
		// never leave the session in Loading; the page must offer a way out
		log.Printf("analysis state update failed session=%s seq=%d err=%v; writing failure", sessionID, seq, uerr)
		applied, uerr = c.retryWrite(sessionID, seq, func(s *session.ViewState) {
			s.Fail(GenericNotice, c.clock().Now())
		})
		if uerr != nil {
			log.Printf("analysis state fallback failed session=%s seq=%d err=%v", sessionID, seq, uerr)
		}
	}
	if !applied && uerr == nil {
		log.Printf("analysis result discarded session=%s seq=%d url=%s", sessionID, seq, url)
		if c.Recorder != nil {
			c.Recorder.Settled(OutcomeStale)
		}
		return
	}
	c.finish(ctx, sessionID, url, d, err)
}

// writeIfCurrent applies fn only while the session still carries seq.
// It reports false with a nil error when a newer submission or a reset won.
func (c *Controller) writeIfCurrent(ctx context.Context, sessionID string, seq uint64, fn func(*session.ViewState)) (bool, error) {
	applied := false
	_, err := c.States.Update(ctx, sessionID, func(s *session.ViewState) error {
		applied = false
		if s.Seq != seq {
			return session.ErrNoChange
		}
		fn(s)
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (c *Controller) retryWrite(sessionID string, seq uint64, fn func(*session.ViewState)) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), settleWriteTimeout)
	defer cancel()
	return c.writeIfCurrent(ctx, sessionID, seq, fn)
}

func (c *Controller) start() {
	if c.Recorder != nil {
		c.Recorder.Started()
	}
}

// finish logs, archives and records one settled analysis.
// Side-channel failures are logged only.
func (c *Controller) finish(ctx context.Context, sessionID, url string, d property.Details, err error) {
	outcome := outcomeOf(err)
	if c.Recorder != nil {
		c.Recorder.Settled(outcome)
	}

	rec := &history.Record{
		ID:        history.RecordID(uuid.New().String()),
		SessionID: sessionID,
		URL:       url,
		CreatedAt: c.clock().Now(),
	}
	if err != nil {
		var xe *property.ExtractionError
		detail := err.Error()
		if errors.As(err, &xe) && xe.Detail() != "" {
			detail = xe.Detail()
		}
		log.Printf("analysis failed session=%s url=%s outcome=%s detail=%q", sessionID, url, outcome, detail)
		rec.Status = history.StatusFailed
		rec.Error = DisplayMessage(err)
	} else {
		log.Printf("analysis done session=%s url=%s sources=%d score=%g", sessionID, url, len(d.Sources), d.InvestmentAnalysis.Score)
		rec.Status = history.StatusSuccess
		cp := d.Clone()
		rec.Details = &cp
		rec.ArchiveURL = c.archive(ctx, rec)
	}

	if c.History != nil {
		if herr := c.History.Save(ctx, rec); herr != nil {
			log.Printf("history save failed id=%s err=%v", rec.ID, herr)
		}
	}
}

func (c *Controller) archive(ctx context.Context, rec *history.Record) string {
	if c.Archive == nil || rec.Details == nil {
		return ""
	}
	payload, err := json.Marshal(rec.Details)
	if err != nil {
		log.Printf("archive marshal failed id=%s err=%v", rec.ID, err)
		return ""
	}
	key := fmt.Sprintf("analyses/%s/%s.json", rec.CreatedAt.Format("2006/01/02"), rec.ID)
	url, err := c.Archive.Put(ctx, key, payload)
	if err != nil {
		log.Printf("archive upload failed id=%s err=%v", rec.ID, err)
		return ""
	}
	return url
}

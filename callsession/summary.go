// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package callsession

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/casewire/casewire/lib/codec"
	"github.com/casewire/casewire/lib/schema/call"
)

// generateAndAttachSummary produces the one post-call summary for a
// finalized session and hands it to the case timeline. Every step is
// resumable: an existing summary is not regenerated, and an
// unattached one is re-attached. Called from finalize and from the
// retry sweep.
func (e *Engine) generateAndAttachSummary(ctx context.Context, session *call.Session) error {
	var existing *call.CallSummary
	err := e.store.withConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		existing, err = getSummary(conn, session.ID)
		return err
	})
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Attached {
			return nil
		}
		return e.attachSummary(ctx, session.CaseRef, existing)
	}

	var turns []call.Turn
	err = e.store.withConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		turns, err = listTurns(conn, session.ID, true)
		return err
	})
	if err != nil {
		return err
	}

	prompt := buildSummaryPrompt(session, turns)
	var generated string
	err = e.withRetry(ctx, "summarize", func(ctx context.Context) error {
		var err error
		generated, err = e.generator.Generate(ctx, prompt)
		return err
	})
	if err != nil {
		return err
	}

	summary := parseSummary(session.ID, generated)
	summary.CreatedAt = e.clock.Now()
	err = e.store.withTx(ctx, func(conn *sqlite.Conn) error {
		return insertSummary(conn, summary)
	})
	if err != nil {
		// A concurrent finalize already wrote the summary; the
		// attach below is the only remaining work and the sweep
		// covers it.
		if errors.Is(err, ErrSummaryExists) {
			return nil
		}
		return err
	}
	e.logger.Info("summary generated", "session", session.ID)
	return e.attachSummary(ctx, session.CaseRef, summary)
}

// attachSummary delivers the summary to the case timeline and records
// the acknowledgment. An unacknowledged summary stays unattached for
// the sweep to retry; it is never lost.
func (e *Engine) attachSummary(ctx context.Context, caseRef string, summary *call.CallSummary) error {
	err := e.withRetry(ctx, "attach summary", func(ctx context.Context) error {
		return e.timeline.AttachSummary(ctx, caseRef, summary)
	})
	if err != nil {
		return err
	}
	err = e.store.withTx(ctx, func(conn *sqlite.Conn) error {
		return markSummaryAttached(conn, summary.SessionID)
	})
	if err != nil {
		return err
	}
	summary.Attached = true
	e.logger.Info("summary attached", "session", summary.SessionID, "case", caseRef)
	return nil
}

// Summary returns the session's post-call summary, or
// ErrSessionNotFound if none was generated yet.
func (e *Engine) Summary(ctx context.Context, sessionID string) (*call.CallSummary, error) {
	if _, err := e.liveSession(ctx, sessionID); err != nil {
		return nil, err
	}
	var summary *call.CallSummary
	err := e.store.withConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		summary, err = getSummary(conn, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, fmt.Errorf("callsession: no summary for session %s: %w", sessionID, ErrSessionNotFound)
	}
	return summary, nil
}

// buildSummaryPrompt asks the generator for a structured post-call
// summary. The section headings are a contract with parseSummary.
func buildSummaryPrompt(session *call.Session, turns []call.Turn) string {
	var b strings.Builder
	b.WriteString("Summarize the following call about case ")
	b.WriteString(session.CaseRef)
	b.WriteString(" for the case timeline.\n")
	b.WriteString("Write a short narrative, then list items under these headings, one per line prefixed with '- ':\n")
	b.WriteString("Questions:\nAction items:\nMissing documents:\nNext steps:\n")
	b.WriteString("\nTranscript:\n")
	for _, turn := range turns {
		b.WriteString(string(turn.Kind))
		b.WriteString(": ")
		b.WriteString(turn.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// parseSummary splits generated summary text into the narrative and
// the structured sections. Unrecognized lines outside a section stay
// in the narrative; the full generated text is always preserved in
// Text.
func parseSummary(sessionID, generated string) *call.CallSummary {
	summary := &call.CallSummary{SessionID: sessionID, Text: generated}
	var current *[]string
	for _, line := range strings.Split(generated, "\n") {
		trimmed := strings.TrimSpace(line)
		switch strings.ToLower(trimmed) {
		case "questions:":
			current = &summary.Questions
			continue
		case "action items:":
			current = &summary.ActionItems
			continue
		case "missing documents:":
			current = &summary.MissingDocuments
			continue
		case "next steps:":
			current = &summary.NextSteps
			continue
		}
		if current == nil {
			continue
		}
		if item, ok := strings.CutPrefix(trimmed, "- "); ok {
			if item = strings.TrimSpace(item); item != "" {
				*current = append(*current, item)
			}
		}
	}
	return summary
}

// insertSummary writes the one summary row for a session. A duplicate
// insert means a concurrent finalize won; reported as
// ErrSummaryExists.
func insertSummary(conn *sqlite.Conn, summary *call.CallSummary) error {
	encoded := make([]any, 4)
	for i, items := range [][]string{
		summary.Questions, summary.ActionItems,
		summary.MissingDocuments, summary.NextSteps,
	} {
		if len(items) == 0 {
			continue
		}
		blob, err := codec.Marshal(items)
		if err != nil {
			return fmt.Errorf("callsession store: encoding summary for %s: %w", summary.SessionID, err)
		}
		encoded[i] = blob
	}

	err := sqlitex.Execute(conn, `
		INSERT INTO summaries (
			session_id, text, questions, action_items,
			missing_documents, next_steps, attached, created_at
		) VALUES (?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT (session_id) DO NOTHING`,
		&sqlitex.ExecOptions{
			Args: []any{
				summary.SessionID,
				summary.Text,
				encoded[0],
				encoded[1],
				encoded[2],
				encoded[3],
				nanos(summary.CreatedAt),
			},
		})
	if err != nil {
		return fmt.Errorf("callsession store: inserting summary for %s: %w", summary.SessionID, err)
	}
	if conn.Changes() == 0 {
		return ErrSummaryExists
	}
	return nil
}

// getSummary returns the session's summary, nil if none exists.
func getSummary(conn *sqlite.Conn, sessionID string) (*call.CallSummary, error) {
	var summary *call.CallSummary
	var decodeErr error
	err := sqlitex.Execute(conn, `
		SELECT text, questions, action_items, missing_documents,
			next_steps, attached, created_at
		FROM summaries WHERE session_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{sessionID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				summary = &call.CallSummary{
					SessionID: sessionID,
					Text:      stmt.ColumnText(0),
					Attached:  stmt.ColumnInt64(5) != 0,
					CreatedAt: timeValue(stmt.ColumnInt64(6)),
				}
				for col, target := range map[int]*[]string{
					1: &summary.Questions,
					2: &summary.ActionItems,
					3: &summary.MissingDocuments,
					4: &summary.NextSteps,
				} {
					if stmt.ColumnType(col) == sqlite.TypeNull {
						continue
					}
					blob := make([]byte, stmt.ColumnLen(col))
					stmt.ColumnBytes(col, blob)
					if err := codec.Unmarshal(blob, target); err != nil {
						decodeErr = fmt.Errorf("callsession store: decoding summary for %s: %w", sessionID, err)
						return decodeErr
					}
				}
				return nil
			},
		})
	if err != nil {
		if decodeErr != nil {
			return nil, decodeErr
		}
		return nil, fmt.Errorf("callsession store: reading summary for %s: %w", sessionID, err)
	}
	return summary, nil
}

// markSummaryAttached records the timeline acknowledgment.
func markSummaryAttached(conn *sqlite.Conn, sessionID string) error {
	err := sqlitex.Execute(conn, `
		UPDATE summaries SET attached = 1 WHERE session_id = ?`,
		&sqlitex.ExecOptions{Args: []any{sessionID}})
	if err != nil {
		return fmt.Errorf("callsession store: marking summary attached for %s: %w", sessionID, err)
	}
	return nil
}

// listSessionsNeedingSummary returns finalized sessions that went
// live but whose summary is missing or unattached. Input to the retry
// sweep.
func listSessionsNeedingSummary(conn *sqlite.Conn) ([]*call.Session, error) {
	var sessions []*call.Session
	err := sqlitex.Execute(conn, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE state IN ('completed', 'terminated')
			AND started_at IS NOT NULL
			AND deleted_at IS NULL
			AND id NOT IN (SELECT session_id FROM summaries WHERE attached = 1)
		ORDER BY created_at`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				sessions = append(sessions, readSessionRow(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("callsession store: listing sessions needing summary: %w", err)
	}
	return sessions, nil
}

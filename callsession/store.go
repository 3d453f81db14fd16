// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package callsession

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/casewire/casewire/lib/clock"
	"github.com/casewire/casewire/lib/schema/call"
	"github.com/casewire/casewire/lib/sqlitepool"
)

// schema is applied on every open; all statements are idempotent.
// Timestamps are unix nanoseconds. Sessions are soft-deleted
// (deleted_at) so the audit trail survives; child rows cascade only
// on a true row delete, which the engine never issues.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY,
	case_ref       TEXT NOT NULL,
	requester      TEXT NOT NULL,
	state          TEXT NOT NULL,
	revision       INTEGER NOT NULL,
	bundle_version INTEGER NOT NULL DEFAULT 0,
	bundle_hash    TEXT NOT NULL DEFAULT '',
	warnings_count INTEGER NOT NULL DEFAULT 0,
	refusals_count INTEGER NOT NULL DEFAULT 0,
	escalated      INTEGER NOT NULL DEFAULT 0,
	outcome_reason TEXT NOT NULL DEFAULT '',
	outcome_actor  TEXT NOT NULL DEFAULT '',
	created_at     INTEGER NOT NULL,
	ready_at       INTEGER,
	started_at     INTEGER,
	deadline       INTEGER,
	ended_at       INTEGER,
	deleted_at     INTEGER
);

CREATE INDEX IF NOT EXISTS sessions_by_state
	ON sessions (state, created_at);

CREATE TABLE IF NOT EXISTS bundles (
	session_id TEXT NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
	version    INTEGER NOT NULL,
	hash       TEXT NOT NULL,
	content    BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (session_id, version)
);

CREATE TABLE IF NOT EXISTS turns (
	session_id  TEXT NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
	turn_number INTEGER NOT NULL,
	kind        TEXT NOT NULL,
	text        TEXT NOT NULL DEFAULT '',
	cold_text   BLOB,
	confidence  REAL,
	guardrail   TEXT NOT NULL DEFAULT '',
	prompt_hash TEXT NOT NULL DEFAULT '',
	prompt_text TEXT,
	tier        TEXT NOT NULL DEFAULT 'hot',
	created_at  INTEGER NOT NULL,
	PRIMARY KEY (session_id, turn_number)
);

CREATE INDEX IF NOT EXISTS turns_by_tier
	ON turns (tier, created_at);

CREATE TABLE IF NOT EXISTS audit_events (
	session_id  TEXT NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	kind        TEXT NOT NULL,
	description TEXT NOT NULL,
	user_text   TEXT NOT NULL DEFAULT '',
	agent_text  TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	PRIMARY KEY (session_id, seq)
);

CREATE TABLE IF NOT EXISTS summaries (
	session_id        TEXT PRIMARY KEY REFERENCES sessions (id) ON DELETE CASCADE,
	text              TEXT NOT NULL,
	questions         BLOB,
	action_items      BLOB,
	missing_documents BLOB,
	next_steps        BLOB,
	attached          INTEGER NOT NULL DEFAULT 0,
	created_at        INTEGER NOT NULL
);
`

// Store manages SQLite persistence for the session engine. All
// multi-row invariants (contiguous turn numbers, audit sequence,
// revision checks combined with child-row writes) are enforced inside
// IMMEDIATE transactions on a single pooled connection.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// StoreConfig holds the parameters for opening a session store.
type StoreConfig struct {
	// Path is the filesystem path to the SQLite database file. The
	// parent directory must exist.
	Path string

	// PoolSize is the number of connections in the pool. Defaults to
	// 4 if zero or negative.
	PoolSize int

	// Clock provides timestamps for rows the store writes itself.
	Clock clock.Clock

	// Logger receives operational messages.
	Logger *slog.Logger
}

// OpenStore opens (creating if needed) the session database and
// applies the schema.
func OpenStore(cfg StoreConfig) (*Store, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("callsession store: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("callsession store: Logger is required")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: poolSize,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("callsession store: %w", err)
	}

	store := &Store{pool: pool, clock: cfg.Clock, logger: cfg.Logger}
	if err := store.withConn(context.Background(), func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteScript(conn, schema, nil)
	}); err != nil {
		pool.Close()
		return nil, fmt.Errorf("callsession store: applying schema: %w", err)
	}
	return store, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// withConn runs fn with a pooled connection.
func (s *Store) withConn(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)
	return fn(conn)
}

// withTx runs fn with a pooled connection inside an IMMEDIATE
// transaction. The transaction rolls back if fn returns an error.
func (s *Store) withTx(ctx context.Context, fn func(conn *sqlite.Conn) error) (err error) {
	conn, takeErr := s.pool.Take(ctx)
	if takeErr != nil {
		return takeErr
	}
	defer s.pool.Put(conn)

	endFn, beginErr := sqlitex.ImmediateTransaction(conn)
	if beginErr != nil {
		return fmt.Errorf("callsession store: begin transaction: %w", beginErr)
	}
	defer endFn(&err)

	err = fn(conn)
	return err
}

// nanos converts a time to the unix-nanosecond representation stored
// in INTEGER columns.
func nanos(t time.Time) int64 {
	return t.UnixNano()
}

// optionalNanos converts an optional timestamp for a nullable column.
func optionalNanos(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

// timeValue converts a stored unix-nanosecond value back to a time.
func timeValue(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// timeColumn reads a nullable unix-nanosecond column.
func timeColumn(stmt *sqlite.Stmt, col int) *time.Time {
	if stmt.ColumnType(col) == sqlite.TypeNull {
		return nil
	}
	t := time.Unix(0, stmt.ColumnInt64(col)).UTC()
	return &t
}

// insertSession writes a freshly created session row.
func insertSession(conn *sqlite.Conn, session *call.Session) error {
	err := sqlitex.Execute(conn, `
		INSERT INTO sessions (
			id, case_ref, requester, state, revision, created_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				session.ID,
				session.CaseRef,
				session.Requester,
				string(session.State),
				session.Revision,
				nanos(session.CreatedAt),
			},
		})
	if err != nil {
		return fmt.Errorf("callsession store: inserting session %s: %w", session.ID, err)
	}
	return nil
}

// sessionExists reports whether a live (non-deleted) row exists for
// the identifier. Used to distinguish not-found from a revision
// conflict after a conditional update touched zero rows.
func sessionExists(conn *sqlite.Conn, id string) (bool, error) {
	exists := false
	err := sqlitex.Execute(conn, `SELECT 1 FROM sessions WHERE id = ? AND deleted_at IS NULL`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(*sqlite.Stmt) error {
				exists = true
				return nil
			},
		})
	return exists, err
}

const sessionColumns = `id, case_ref, requester, state, revision,
	bundle_version, bundle_hash, warnings_count, refusals_count,
	escalated, outcome_reason, outcome_actor, created_at, ready_at,
	started_at, deadline, ended_at, deleted_at`

// readSessionRow populates a Session from a row selected with
// sessionColumns.
func readSessionRow(stmt *sqlite.Stmt) *call.Session {
	return &call.Session{
		ID:            stmt.ColumnText(0),
		CaseRef:       stmt.ColumnText(1),
		Requester:     stmt.ColumnText(2),
		State:         call.State(stmt.ColumnText(3)),
		Revision:      stmt.ColumnInt64(4),
		BundleVersion: stmt.ColumnInt64(5),
		BundleHash:    stmt.ColumnText(6),
		WarningsCount: stmt.ColumnInt64(7),
		RefusalsCount: stmt.ColumnInt64(8),
		Escalated:     stmt.ColumnInt64(9) != 0,
		OutcomeReason: stmt.ColumnText(10),
		OutcomeActor:  stmt.ColumnText(11),
		CreatedAt:     time.Unix(0, stmt.ColumnInt64(12)).UTC(),
		ReadyAt:       timeColumn(stmt, 13),
		StartedAt:     timeColumn(stmt, 14),
		Deadline:      timeColumn(stmt, 15),
		EndedAt:       timeColumn(stmt, 16),
		DeletedAt:     timeColumn(stmt, 17),
	}
}

// getSession returns the session row, including soft-deleted rows;
// callers that must not see deleted sessions check DeletedAt.
func getSession(conn *sqlite.Conn, id string) (*call.Session, error) {
	var session *call.Session
	err := sqlitex.Execute(conn,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				session = readSessionRow(stmt)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("callsession store: reading session %s: %w", id, err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// updateSessionCAS writes every mutable session column, conditional
// on the row still carrying the revision the caller read. On success
// the session's Revision field is bumped to match the row. Zero rows
// touched means either a concurrent writer won (ErrRevisionConflict)
// or the session is gone or soft-deleted (ErrSessionNotFound).
func updateSessionCAS(conn *sqlite.Conn, session *call.Session) error {
	err := sqlitex.Execute(conn, `
		UPDATE sessions SET
			state = ?, revision = revision + 1,
			bundle_version = ?, bundle_hash = ?,
			warnings_count = ?, refusals_count = ?, escalated = ?,
			outcome_reason = ?, outcome_actor = ?,
			ready_at = ?, started_at = ?, deadline = ?, ended_at = ?
		WHERE id = ? AND revision = ? AND deleted_at IS NULL`,
		&sqlitex.ExecOptions{
			Args: []any{
				string(session.State),
				session.BundleVersion,
				session.BundleHash,
				session.WarningsCount,
				session.RefusalsCount,
				boolInt(session.Escalated),
				session.OutcomeReason,
				session.OutcomeActor,
				optionalNanos(session.ReadyAt),
				optionalNanos(session.StartedAt),
				optionalNanos(session.Deadline),
				optionalNanos(session.EndedAt),
				session.ID,
				session.Revision,
			},
		})
	if err != nil {
		return fmt.Errorf("callsession store: updating session %s: %w", session.ID, err)
	}
	if conn.Changes() == 0 {
		exists, existsErr := sessionExists(conn, session.ID)
		if existsErr != nil {
			return fmt.Errorf("callsession store: checking session %s: %w", session.ID, existsErr)
		}
		if !exists {
			return ErrSessionNotFound
		}
		return ErrRevisionConflict
	}
	session.Revision++
	return nil
}

// softDeleteSession marks the session deleted. The row and all child
// rows stay in place for the audit trail.
func softDeleteSession(conn *sqlite.Conn, id string, now time.Time) error {
	err := sqlitex.Execute(conn, `
		UPDATE sessions SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		&sqlitex.ExecOptions{Args: []any{nanos(now), id}})
	if err != nil {
		return fmt.Errorf("callsession store: deleting session %s: %w", id, err)
	}
	if conn.Changes() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// insertBundle stores one immutable sealed bundle version.
func insertBundle(conn *sqlite.Conn, sessionID string, version int64, hash string, content []byte, now time.Time) error {
	err := sqlitex.Execute(conn, `
		INSERT INTO bundles (session_id, version, hash, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{sessionID, version, hash, content, nanos(now)},
		})
	if err != nil {
		return fmt.Errorf("callsession store: inserting bundle %s/%d: %w", sessionID, version, err)
	}
	return nil
}

// getBundle returns the canonical encoding and hash of one bundle
// version.
func getBundle(conn *sqlite.Conn, sessionID string, version int64) (content []byte, hash string, err error) {
	err = sqlitex.Execute(conn, `
		SELECT content, hash FROM bundles
		WHERE session_id = ? AND version = ?`,
		&sqlitex.ExecOptions{
			Args: []any{sessionID, version},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				content = make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, content)
				hash = stmt.ColumnText(1)
				return nil
			},
		})
	if err != nil {
		return nil, "", fmt.Errorf("callsession store: reading bundle %s/%d: %w", sessionID, version, err)
	}
	if content == nil {
		return nil, "", fmt.Errorf("callsession store: bundle %s/%d: %w", sessionID, version, ErrBundleNotFound)
	}
	return content, hash, nil
}

// appendAudit assigns the next per-session sequence number and writes
// one audit event. Must run inside a transaction so that concurrent
// appends cannot claim the same sequence.
func appendAudit(conn *sqlite.Conn, event *call.AuditEvent) error {
	err := sqlitex.Execute(conn, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM audit_events WHERE session_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{event.SessionID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				event.Seq = stmt.ColumnInt64(0)
				return nil
			},
		})
	if err != nil {
		return fmt.Errorf("callsession store: audit sequence for %s: %w", event.SessionID, err)
	}
	err = sqlitex.Execute(conn, `
		INSERT INTO audit_events (
			session_id, seq, kind, description, user_text, agent_text, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				event.SessionID,
				event.Seq,
				string(event.Kind),
				event.Description,
				event.UserText,
				event.AgentText,
				nanos(event.CreatedAt),
			},
		})
	if err != nil {
		return fmt.Errorf("callsession store: inserting audit event for %s: %w", event.SessionID, err)
	}
	return nil
}

// listAudit returns a session's audit events in sequence order.
func listAudit(conn *sqlite.Conn, sessionID string) ([]call.AuditEvent, error) {
	var events []call.AuditEvent
	err := sqlitex.Execute(conn, `
		SELECT seq, kind, description, user_text, agent_text, created_at
		FROM audit_events WHERE session_id = ? ORDER BY seq`,
		&sqlitex.ExecOptions{
			Args: []any{sessionID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				events = append(events, call.AuditEvent{
					SessionID:   sessionID,
					Seq:         stmt.ColumnInt64(0),
					Kind:        call.AuditKind(stmt.ColumnText(1)),
					Description: stmt.ColumnText(2),
					UserText:    stmt.ColumnText(3),
					AgentText:   stmt.ColumnText(4),
					CreatedAt:   time.Unix(0, stmt.ColumnInt64(5)).UTC(),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("callsession store: listing audit events for %s: %w", sessionID, err)
	}
	return events, nil
}

// listByStateOlderThan returns non-deleted sessions in any of the
// given states created before the cutoff. Used by the stale sweep.
func listByStateOlderThan(conn *sqlite.Conn, states []call.State, cutoff time.Time) ([]*call.Session, error) {
	var sessions []*call.Session
	for _, state := range states {
		err := sqlitex.Execute(conn, `
			SELECT `+sessionColumns+` FROM sessions
			WHERE state = ? AND created_at < ? AND deleted_at IS NULL
			ORDER BY created_at`,
			&sqlitex.ExecOptions{
				Args: []any{string(state), nanos(cutoff)},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					sessions = append(sessions, readSessionRow(stmt))
					return nil
				},
			})
		if err != nil {
			return nil, fmt.Errorf("callsession store: listing %s sessions: %w", state, err)
		}
	}
	return sessions, nil
}

// listByState returns non-deleted sessions in the given state. Used
// on startup to re-arm timers for calls that were live when the
// service last stopped.
func listByState(conn *sqlite.Conn, state call.State) ([]*call.Session, error) {
	var sessions []*call.Session
	err := sqlitex.Execute(conn, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE state = ? AND deleted_at IS NULL ORDER BY created_at`,
		&sqlitex.ExecOptions{
			Args: []any{string(state)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				sessions = append(sessions, readSessionRow(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("callsession store: listing %s sessions: %w", state, err)
	}
	return sessions, nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package callsession

import (
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/casewire/casewire/lib/schema/call"
)

// Transcript text compresses well with zstd; the cold tier trades
// read latency for storage on turns nobody reads operationally.
var (
	coldEncoder *zstd.Encoder
	coldDecoder *zstd.Decoder
)

func init() {
	var err error
	coldEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic(fmt.Sprintf("callsession: creating zstd encoder: %v", err))
	}
	coldDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("callsession: creating zstd decoder: %v", err))
	}
}

// appendTurn assigns the next turn number and writes one ledger row.
// Must run inside a transaction: the MAX+1 read and the insert have
// to be atomic for turn numbers to stay contiguous under concurrent
// submitters. promptText is stored only when non-empty (guardrail
// violation snapshot or configured retention).
func appendTurn(conn *sqlite.Conn, turn *call.Turn, promptText string) error {
	err := sqlitex.Execute(conn, `
		SELECT COALESCE(MAX(turn_number), 0) + 1 FROM turns WHERE session_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{turn.SessionID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				turn.Number = stmt.ColumnInt64(0)
				return nil
			},
		})
	if err != nil {
		return fmt.Errorf("callsession store: turn number for %s: %w", turn.SessionID, err)
	}

	var promptArg any
	if promptText != "" {
		promptArg = promptText
	}
	var confidenceArg any
	if turn.Confidence != nil {
		confidenceArg = *turn.Confidence
	}

	err = sqlitex.Execute(conn, `
		INSERT INTO turns (
			session_id, turn_number, kind, text, confidence,
			guardrail, prompt_hash, prompt_text, tier, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				turn.SessionID,
				turn.Number,
				string(turn.Kind),
				turn.Text,
				confidenceArg,
				string(turn.Guardrail),
				turn.PromptHash,
				promptArg,
				string(call.TierHot),
				nanos(turn.CreatedAt),
			},
		})
	if err != nil {
		return fmt.Errorf("callsession store: inserting turn %s/%d: %w", turn.SessionID, turn.Number, err)
	}
	turn.Tier = call.TierHot
	return nil
}

// listTurns returns a session's transcript in turn order. Cold-tier
// turns are skipped unless includeCold is set, in which case their
// text is decompressed inline.
func listTurns(conn *sqlite.Conn, sessionID string, includeCold bool) ([]call.Turn, error) {
	query := `
		SELECT turn_number, kind, text, cold_text, confidence,
			guardrail, prompt_hash, tier, created_at
		FROM turns WHERE session_id = ?`
	if !includeCold {
		query += ` AND tier = 'hot'`
	}
	query += ` ORDER BY turn_number`

	var turns []call.Turn
	var decodeErr error
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{sessionID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			turn := call.Turn{
				SessionID:  sessionID,
				Number:     stmt.ColumnInt64(0),
				Kind:       call.TurnKind(stmt.ColumnText(1)),
				Text:       stmt.ColumnText(2),
				Guardrail:  call.GuardrailOutcome(stmt.ColumnText(5)),
				PromptHash: stmt.ColumnText(6),
				Tier:       call.Tier(stmt.ColumnText(7)),
				CreatedAt:  time.Unix(0, stmt.ColumnInt64(8)).UTC(),
			}
			if stmt.ColumnType(4) != sqlite.TypeNull {
				confidence := stmt.ColumnFloat(4)
				turn.Confidence = &confidence
			}
			if turn.Tier == call.TierCold && includeCold {
				compressed := make([]byte, stmt.ColumnLen(3))
				stmt.ColumnBytes(3, compressed)
				text, err := coldDecoder.DecodeAll(compressed, nil)
				if err != nil {
					decodeErr = fmt.Errorf("callsession store: decompressing turn %s/%d: %w", sessionID, turn.Number, err)
					return decodeErr
				}
				turn.Text = string(text)
			}
			turns = append(turns, turn)
			return nil
		},
	})
	if err != nil {
		if decodeErr != nil {
			return nil, decodeErr
		}
		return nil, fmt.Errorf("callsession store: listing turns for %s: %w", sessionID, err)
	}
	return turns, nil
}

// sweepColdTurns moves hot turns created before the cutoff to the
// cold tier: text is compressed into cold_text and cleared. Returns
// the number of turns demoted. Each turn moves in the enclosing
// transaction of the caller's withTx.
func (s *Store) sweepColdTurns(conn *sqlite.Conn, cutoff time.Time) (int, error) {
	type hotTurn struct {
		sessionID string
		number    int64
		text      string
	}
	var due []hotTurn
	err := sqlitex.Execute(conn, `
		SELECT session_id, turn_number, text FROM turns
		WHERE tier = 'hot' AND created_at < ?`,
		&sqlitex.ExecOptions{
			Args: []any{nanos(cutoff)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				due = append(due, hotTurn{
					sessionID: stmt.ColumnText(0),
					number:    stmt.ColumnInt64(1),
					text:      stmt.ColumnText(2),
				})
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("callsession store: selecting cold candidates: %w", err)
	}

	for _, turn := range due {
		compressed := coldEncoder.EncodeAll([]byte(turn.text), nil)
		err := sqlitex.Execute(conn, `
			UPDATE turns SET tier = 'cold', cold_text = ?, text = ''
			WHERE session_id = ? AND turn_number = ?`,
			&sqlitex.ExecOptions{
				Args: []any{compressed, turn.sessionID, turn.number},
			})
		if err != nil {
			return 0, fmt.Errorf("callsession store: demoting turn %s/%d: %w", turn.sessionID, turn.number, err)
		}
	}
	return len(due), nil
}

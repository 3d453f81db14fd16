// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package callsession

import (
	"context"
	"errors"
	"fmt"

	"zombiezen.com/go/sqlite"

	"github.com/casewire/casewire/lib/schema/call"
)

// Run drives the background sweeps on one shared ticker until the
// context is cancelled: cold tiering of aged transcript turns, expiry
// of sessions that never started, and summary generation/attachment
// retries. Each sweep is independent; a failure in one is logged and
// the others still run.
func (e *Engine) Run(ctx context.Context) {
	ticker := e.clock.NewTicker(e.options.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.runSweeps(ctx)
		}
	}
}

// runSweeps executes one round of every sweep.
func (e *Engine) runSweeps(ctx context.Context) {
	if err := e.sweepColdTier(ctx); err != nil {
		e.logger.Error("cold tier sweep failed", "error", err)
	}
	if err := e.ExpireStale(ctx); err != nil {
		e.logger.Error("stale sweep failed", "error", err)
	}
	if err := e.RetrySummaries(ctx); err != nil {
		e.logger.Error("summary retry sweep failed", "error", err)
	}
}

// sweepColdTier demotes hot transcript turns older than the
// configured age to the compressed cold tier.
func (e *Engine) sweepColdTier(ctx context.Context) error {
	cutoff := e.clock.Now().Add(-e.options.ColdAfter)
	var demoted int
	err := e.store.withTx(ctx, func(conn *sqlite.Conn) error {
		var err error
		demoted, err = e.store.sweepColdTurns(conn, cutoff)
		return err
	})
	if err != nil {
		return err
	}
	if demoted > 0 {
		e.logger.Info("turns demoted to cold tier", "count", demoted, "cutoff", cutoff)
	}
	return nil
}

// ExpireStale moves sessions that sat in created or ready past the
// stale TTL to expired. A session that reached in_progress is never
// expired; the timebox owns live calls.
func (e *Engine) ExpireStale(ctx context.Context) error {
	cutoff := e.clock.Now().Add(-e.options.StaleTTL)
	var stale []*call.Session
	err := e.store.withConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		stale, err = listByStateOlderThan(conn, []call.State{call.StateCreated, call.StateReady}, cutoff)
		return err
	})
	if err != nil {
		return err
	}

	var firstErr error
	for _, session := range stale {
		err := e.finalize(ctx, session, call.StateExpired, call.ReasonStale, "",
			call.AuditExpired, fmt.Sprintf("expired after %s in %s", e.options.StaleTTL, session.State), "")
		if err != nil {
			// A conflict means the session moved on between the
			// list and the write; it is no longer stale.
			if errors.Is(err, ErrRevisionConflict) {
				continue
			}
			if firstErr == nil {
				firstErr = err
			}
			e.logger.Error("stale expiry failed", "session", session.ID, "error", err)
			continue
		}
		e.logger.Info("session expired", "session", session.ID)
	}
	return firstErr
}

// RetrySummaries re-runs summary generation and timeline attachment
// for finalized sessions whose summary is missing or unacknowledged.
func (e *Engine) RetrySummaries(ctx context.Context) error {
	var pending []*call.Session
	err := e.store.withConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		pending, err = listSessionsNeedingSummary(conn)
		return err
	})
	if err != nil {
		return err
	}

	var firstErr error
	for _, session := range pending {
		if err := e.generateAndAttachSummary(ctx, session); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			e.logger.Warn("summary retry failed", "session", session.ID, "error", err)
		}
	}
	return firstErr
}

// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package callsession

import (
	"context"
	"errors"
	"sync"
	"time"

	"zombiezen.com/go/sqlite"

	"github.com/casewire/casewire/lib/clock"
	"github.com/casewire/casewire/lib/schema/call"
)

// Warning offsets before the hard stop. Fixed, not configured: the
// product promise is that callers always get the same countdown.
const (
	warnEarlyOffset = 5 * time.Minute
	warnFinalOffset = time.Minute
)

// Spoken system lines for engine-generated turns.
const (
	warnEarlyText    = "Five minutes remain in this call."
	warnFinalText    = "One minute remains in this call."
	hardStopText     = "This call has reached its time limit. A summary will be added to your case timeline."
	silenceCheckText = "Are you still there? This call will end shortly if there is no response."
)

// sessionTimers holds the live timers for one in_progress session.
// The silence timer is self-re-arming: its handler inspects
// lastActivity rather than being reset on every turn, so turn
// processing never races timer bookkeeping.
type sessionTimers struct {
	mu           sync.Mutex
	warnEarly    *clock.Timer
	warnFinal    *clock.Timer
	hard         *clock.Timer
	silence      *clock.Timer
	lastActivity time.Time
	checkinSent  bool
}

// timerRegistry maps session IDs to their timers.
type timerRegistry struct {
	mu       sync.Mutex
	sessions map[string]*sessionTimers
}

func newTimerRegistry() *timerRegistry {
	return &timerRegistry{sessions: make(map[string]*sessionTimers)}
}

func (r *timerRegistry) create(sessionID string, now time.Time) *sessionTimers {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := &sessionTimers{lastActivity: now}
	r.sessions[sessionID] = st
	return st
}

func (r *timerRegistry) lookup(sessionID string) *sessionTimers {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[sessionID]
}

// touch records turn activity for the silence monitor. A turn after a
// check-in clears the pending auto-terminate.
func (r *timerRegistry) touch(sessionID string, now time.Time) {
	st := r.lookup(sessionID)
	if st == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.lastActivity = now
	st.checkinSent = false
}

// cancel stops every timer for the session and forgets it. Idempotent.
func (r *timerRegistry) cancel(sessionID string) {
	r.mu.Lock()
	st := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()
	if st == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, timer := range []*clock.Timer{st.warnEarly, st.warnFinal, st.hard, st.silence} {
		if timer != nil {
			timer.Stop()
		}
	}
}

// armTimebox schedules the warning turns, the hard stop, and the
// silence monitor for a freshly started (or resumed) session. The
// scheduler is independent of conversation traffic: the deadline
// holds even if no turn ever arrives.
func (e *Engine) armTimebox(sessionID string, deadline time.Time) {
	now := e.clock.Now()
	st := e.timers.create(sessionID, now)

	st.mu.Lock()
	defer st.mu.Unlock()
	if until := deadline.Add(-warnEarlyOffset).Sub(now); until > 0 {
		st.warnEarly = e.clock.AfterFunc(until, func() {
			e.timeboxWarning(sessionID, warnEarlyText)
		})
	}
	if until := deadline.Add(-warnFinalOffset).Sub(now); until > 0 {
		st.warnFinal = e.clock.AfterFunc(until, func() {
			e.timeboxWarning(sessionID, warnFinalText)
		})
	}
	st.hard = e.clock.AfterFunc(deadline.Sub(now), func() {
		e.hardStop(sessionID)
	})
	st.silence = e.clock.AfterFunc(e.options.SilenceWindow, func() {
		e.silenceElapsed(sessionID)
	})
}

// ResumeTimers re-arms the timebox for every in_progress session,
// called once at service startup. Sessions whose deadline passed
// while the service was down are hard-stopped immediately.
func (e *Engine) ResumeTimers(ctx context.Context) error {
	var live []*call.Session
	err := e.store.withConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		live, err = listByState(conn, call.StateInProgress)
		return err
	})
	if err != nil {
		return err
	}
	now := e.clock.Now()
	for _, session := range live {
		if session.Deadline == nil {
			continue
		}
		if !now.Before(*session.Deadline) {
			e.hardStop(session.ID)
			continue
		}
		e.armTimebox(session.ID, *session.Deadline)
		e.logger.Info("timebox resumed",
			"session", session.ID, "deadline", *session.Deadline)
	}
	return nil
}

// timeboxWarning appends a warning system turn if the session is
// still live. Losing a race with a concurrent end is fine; the
// warning is simply dropped.
func (e *Engine) timeboxWarning(sessionID, text string) {
	ctx := context.Background()
	session, err := e.liveSession(ctx, sessionID)
	if err != nil || session.State != call.StateInProgress {
		return
	}
	if err := e.appendSystemTurn(ctx, sessionID, text); err != nil {
		e.logger.Error("timebox warning turn failed",
			"session", sessionID, "error", err)
		return
	}
	e.logger.Info("timebox warning issued", "session", sessionID, "text", text)
}

// hardStop completes the session at its deadline with reason timebox.
// Runs from the deadline timer and from SubmitTurn when a turn
// arrives past the deadline. Losing the finalize race to a concurrent
// End or Terminate is a no-op.
func (e *Engine) hardStop(sessionID string) {
	ctx := context.Background()
	session, err := e.liveSession(ctx, sessionID)
	if err != nil {
		e.logger.Error("hard stop read failed", "session", sessionID, "error", err)
		return
	}
	if session.State.Terminal() {
		e.timers.cancel(sessionID)
		return
	}

	// The closing turn rides in the finalize transaction: if a
	// concurrent End wins the race, no stray time-limit line lands in
	// the transcript.
	err = e.finalize(ctx, session, call.StateCompleted, call.ReasonTimebox, "",
		call.AuditTimebox, "hard stop at deadline", hardStopText)
	if err != nil {
		var invalid *call.InvalidTransitionError
		if errors.Is(err, ErrRevisionConflict) || errors.As(err, &invalid) {
			// A concurrent finalize won the race.
			return
		}
		e.logger.Error("hard stop failed", "session", sessionID, "error", err)
	}
}

// silenceElapsed is the silence monitor handler. It re-arms itself
// relative to the last recorded activity; when a full window passes
// with no turn it checks in, and when a second window passes after
// the check-in it terminates the call.
func (e *Engine) silenceElapsed(sessionID string) {
	st := e.timers.lookup(sessionID)
	if st == nil {
		return
	}
	ctx := context.Background()
	now := e.clock.Now()

	st.mu.Lock()
	idle := now.Sub(st.lastActivity)
	checkinSent := st.checkinSent
	window := e.options.SilenceWindow

	if idle < window {
		st.silence = e.clock.AfterFunc(window-idle, func() {
			e.silenceElapsed(sessionID)
		})
		st.mu.Unlock()
		return
	}

	if !checkinSent {
		st.checkinSent = true
		st.lastActivity = now
		st.silence = e.clock.AfterFunc(window, func() {
			e.silenceElapsed(sessionID)
		})
		st.mu.Unlock()

		session, err := e.liveSession(ctx, sessionID)
		if err != nil || session.State != call.StateInProgress {
			return
		}
		if err := e.appendSystemTurn(ctx, sessionID, silenceCheckText); err != nil {
			e.logger.Error("silence check-in turn failed",
				"session", sessionID, "error", err)
			return
		}
		e.auditEvent(ctx, &call.AuditEvent{
			SessionID:   sessionID,
			Kind:        call.AuditSilenceCheckin,
			Description: "no turns for a full silence window",
			CreatedAt:   now,
		})
		e.logger.Info("silence check-in sent", "session", sessionID)
		return
	}
	st.mu.Unlock()

	session, err := e.liveSession(ctx, sessionID)
	if err != nil {
		e.logger.Error("silence terminate read failed",
			"session", sessionID, "error", err)
		return
	}
	if session.State.Terminal() {
		e.timers.cancel(sessionID)
		return
	}
	err = e.finalize(ctx, session, call.StateTerminated, call.ReasonSilence, "",
		call.AuditTerminated, "auto-terminated after unanswered check-in", "")
	if err != nil && !errors.Is(err, ErrRevisionConflict) {
		e.logger.Error("silence terminate failed", "session", sessionID, "error", err)
	}
}

// appendSystemTurn writes one engine-generated turn to the ledger.
func (e *Engine) appendSystemTurn(ctx context.Context, sessionID, text string) error {
	return e.store.withTx(ctx, func(conn *sqlite.Conn) error {
		return appendTurn(conn, &call.Turn{
			SessionID: sessionID,
			Kind:      call.TurnSystem,
			Text:      text,
			CreatedAt: e.clock.Now(),
		}, "")
	})
}

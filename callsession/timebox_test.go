// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package callsession

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/casewire/casewire/lib/schema/call"
)

func TestTimeboxWarningsAndHardStop(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	session := f.startedSession()

	// Five minutes before the deadline.
	f.clock.Advance(15 * time.Minute)
	turns := f.transcript(session.ID)
	if len(turns) != 1 || turns[0].Kind != call.TurnSystem || turns[0].Text != warnEarlyText {
		t.Fatalf("transcript at T-5m = %+v, want the five-minute warning", turns)
	}

	// A turn in the warning window reports the level to the caller.
	result, err := f.engine.SubmitTurn(ctx, session.ID, TurnInput{Text: "what is my application status"})
	if err != nil {
		t.Fatalf("SubmitTurn: %v", err)
	}
	if result.Warning != WarningFiveMinute {
		t.Errorf("warning = %s, want five_minute", result.Warning)
	}

	// One minute before the deadline.
	f.clock.Advance(4 * time.Minute)
	turns = f.transcript(session.ID)
	last := turns[len(turns)-1]
	if last.Kind != call.TurnSystem || last.Text != warnFinalText {
		t.Fatalf("last turn at T-1m = %s %q, want the one-minute warning", last.Kind, last.Text)
	}

	// The deadline.
	f.clock.Advance(time.Minute)
	session = f.mustSession(session.ID)
	if session.State != call.StateCompleted {
		t.Fatalf("state at deadline = %s, want completed", session.State)
	}
	if session.OutcomeReason != call.ReasonTimebox {
		t.Errorf("outcome reason = %q, want timebox", session.OutcomeReason)
	}
	if !hasAuditKind(f.auditKinds(session.ID), call.AuditTimebox) {
		t.Error("hard stop not audited as timebox_expired")
	}

	summary, err := f.engine.Summary(ctx, session.ID)
	if err != nil {
		t.Fatalf("Summary after hard stop: %v", err)
	}
	if !summary.Attached {
		t.Error("summary not attached after hard stop")
	}

	// The session is closed to further turns.
	if _, err := f.engine.SubmitTurn(ctx, session.ID, TurnInput{Text: "one more thing"}); !errors.Is(err, ErrSessionNotLive) {
		t.Errorf("SubmitTurn after hard stop error = %v, want ErrSessionNotLive", err)
	}
}

func TestTimeboxFiresWithNoTraffic(t *testing.T) {
	f := newFixture(t, Options{})
	session := f.startedSession()

	// Not a single turn arrives. The schedule runs anyway.
	f.clock.Advance(20 * time.Minute)

	got := f.mustSession(session.ID)
	if got.State != call.StateCompleted {
		t.Fatalf("state = %s, want completed with zero traffic", got.State)
	}
	if got.OutcomeReason != call.ReasonTimebox {
		t.Errorf("outcome reason = %q, want timebox", got.OutcomeReason)
	}

	turns := f.transcript(session.ID)
	wantTexts := []string{warnEarlyText, warnFinalText, hardStopText}
	if len(turns) != len(wantTexts) {
		t.Fatalf("transcript length = %d, want %d system turns", len(turns), len(wantTexts))
	}
	for i, want := range wantTexts {
		if turns[i].Kind != call.TurnSystem || turns[i].Text != want {
			t.Errorf("turn %d = %s %q, want system %q", i+1, turns[i].Kind, turns[i].Text, want)
		}
	}
}

func TestLateTurnCompletesSession(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	session := f.startedSession()

	// Simulate lost timers (a crashed scheduler) so the deadline
	// passes silently; the per-turn deadline check is the backstop.
	f.engine.timers.cancel(session.ID)
	f.clock.Advance(21 * time.Minute)

	_, err := f.engine.SubmitTurn(ctx, session.ID, TurnInput{Text: "am I still on time"})
	if !errors.Is(err, ErrTimeboxExceeded) {
		t.Fatalf("SubmitTurn past deadline error = %v, want ErrTimeboxExceeded", err)
	}

	got := f.mustSession(session.ID)
	if got.State != call.StateCompleted || got.OutcomeReason != call.ReasonTimebox {
		t.Errorf("session = %s/%q, want completed/timebox", got.State, got.OutcomeReason)
	}
}

func TestHardStopLosesRaceCleanly(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	session := f.startedSession()

	// A stale snapshot of the live session, as the deadline handler
	// would hold while a caller's End wins the terminal write.
	stale := f.mustSession(session.ID)
	if _, _, err := f.engine.End(ctx, session.ID, "caller hung up"); err != nil {
		t.Fatalf("End: %v", err)
	}

	err := f.engine.finalize(ctx, stale, call.StateCompleted, call.ReasonTimebox, "",
		call.AuditTimebox, "hard stop at deadline", hardStopText)
	if !errors.Is(err, ErrRevisionConflict) {
		t.Fatalf("losing finalize error = %v, want ErrRevisionConflict", err)
	}

	// The loser's transaction rolled back whole: no time-limit turn,
	// no timebox audit, the caller's outcome intact.
	for _, turn := range f.transcript(session.ID) {
		if turn.Text == hardStopText {
			t.Error("losing hard stop left its closing turn in the transcript")
		}
	}
	if hasAuditKind(f.auditKinds(session.ID), call.AuditTimebox) {
		t.Error("losing hard stop left a timebox_expired audit event")
	}
	if got := f.mustSession(session.ID).OutcomeReason; got != "caller hung up" {
		t.Errorf("outcome reason = %q, want the caller's", got)
	}
}

func TestSilenceCheckinThenTerminate(t *testing.T) {
	f := newFixture(t, Options{SilenceWindow: 2 * time.Minute})
	session := f.startedSession()

	// One full window with no turns: check-in, not termination.
	f.clock.Advance(2 * time.Minute)
	turns := f.transcript(session.ID)
	if len(turns) != 1 || turns[0].Text != silenceCheckText {
		t.Fatalf("transcript after first window = %+v, want the check-in", turns)
	}
	if got := f.mustSession(session.ID).State; got != call.StateInProgress {
		t.Fatalf("state after check-in = %s, want in_progress", got)
	}
	if !hasAuditKind(f.auditKinds(session.ID), call.AuditSilenceCheckin) {
		t.Error("check-in not audited")
	}

	// A second silent window: auto-terminate.
	f.clock.Advance(2 * time.Minute)
	got := f.mustSession(session.ID)
	if got.State != call.StateTerminated {
		t.Fatalf("state after unanswered check-in = %s, want terminated", got.State)
	}
	if got.OutcomeReason != call.ReasonSilence {
		t.Errorf("outcome reason = %q, want silence", got.OutcomeReason)
	}

	// The call went live, so the summary still gets written.
	if _, err := f.engine.Summary(context.Background(), session.ID); err != nil {
		t.Errorf("Summary after silence termination: %v", err)
	}
}

func TestTurnResetsSilenceMonitor(t *testing.T) {
	f := newFixture(t, Options{SilenceWindow: 2 * time.Minute})
	ctx := context.Background()
	session := f.startedSession()

	f.clock.Advance(time.Minute)
	if _, err := f.engine.SubmitTurn(ctx, session.ID, TurnInput{Text: "what is my application status"}); err != nil {
		t.Fatalf("SubmitTurn: %v", err)
	}

	// The original window elapses, but activity was only a minute
	// ago: no check-in yet.
	f.clock.Advance(time.Minute)
	for _, turn := range f.transcript(session.ID) {
		if turn.Text == silenceCheckText {
			t.Fatal("check-in sent despite recent activity")
		}
	}

	// A full quiet window after the turn: now the check-in comes.
	f.clock.Advance(time.Minute)
	found := false
	for _, turn := range f.transcript(session.ID) {
		if turn.Text == silenceCheckText {
			found = true
		}
	}
	if !found {
		t.Fatal("no check-in after a full quiet window")
	}

	// Answering the check-in clears the pending termination.
	if _, err := f.engine.SubmitTurn(ctx, session.ID, TurnInput{Text: "yes, still here, checking my application status"}); err != nil {
		t.Fatalf("SubmitTurn (answer): %v", err)
	}
	f.clock.Advance(2 * time.Minute)
	if got := f.mustSession(session.ID).State; got != call.StateInProgress {
		t.Errorf("state = %s, want in_progress after the check-in was answered", got)
	}
}

func TestResumeTimersAfterRestart(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	session := f.startedSession()

	// Drop the timers as a process restart would.
	f.engine.timers.cancel(session.ID)
	if err := f.engine.ResumeTimers(ctx); err != nil {
		t.Fatalf("ResumeTimers: %v", err)
	}

	f.clock.Advance(20 * time.Minute)
	if got := f.mustSession(session.ID).State; got != call.StateCompleted {
		t.Errorf("state after resumed deadline = %s, want completed", got)
	}
}

func TestResumeTimersHardStopsOverdueSessions(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	session := f.startedSession()

	// The deadline passed while the service was down.
	f.engine.timers.cancel(session.ID)
	f.clock.Advance(30 * time.Minute)

	if err := f.engine.ResumeTimers(ctx); err != nil {
		t.Fatalf("ResumeTimers: %v", err)
	}
	got := f.mustSession(session.ID)
	if got.State != call.StateCompleted || got.OutcomeReason != call.ReasonTimebox {
		t.Errorf("overdue session = %s/%q, want completed/timebox", got.State, got.OutcomeReason)
	}
}

// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package callsession

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"

	"github.com/casewire/casewire/guardrails"
	"github.com/casewire/casewire/lib/clock"
	"github.com/casewire/casewire/lib/codec"
	"github.com/casewire/casewire/lib/schema/call"
	"github.com/casewire/casewire/sealer"
)

// Options tunes engine behavior. The zero value is not usable; call
// fillDefaults or start from the service configuration.
type Options struct {
	// CallDuration is the timebox: started_at + CallDuration is the
	// hard deadline.
	CallDuration time.Duration

	// SilenceWindow is how long the silence monitor waits without a
	// turn before checking in. A second silent window after the
	// check-in terminates the call.
	SilenceWindow time.Duration

	// StaleTTL is how long a session may sit in created or ready
	// before the sweep expires it.
	StaleTTL time.Duration

	// ColdAfter is the age at which hot transcript turns are demoted
	// to the compressed cold tier.
	ColdAfter time.Duration

	// SweepInterval is the cadence of the background sweeps (cold
	// tiering, stale expiry, summary retry).
	SweepInterval time.Duration

	// RetainPrompts stores full prompt text on every agent turn, not
	// just turns where a guardrail fired.
	RetainPrompts bool

	// UpstreamAttempts and UpstreamBackoff bound retries against
	// external collaborators. Backoff doubles per attempt.
	UpstreamAttempts int
	UpstreamBackoff  time.Duration
}

func (o *Options) fillDefaults() {
	if o.CallDuration <= 0 {
		o.CallDuration = 20 * time.Minute
	}
	if o.SilenceWindow <= 0 {
		o.SilenceWindow = 2 * time.Minute
	}
	if o.StaleTTL <= 0 {
		o.StaleTTL = 30 * time.Minute
	}
	if o.ColdAfter <= 0 {
		o.ColdAfter = 30 * 24 * time.Hour
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = time.Hour
	}
	if o.UpstreamAttempts <= 0 {
		o.UpstreamAttempts = 3
	}
	if o.UpstreamBackoff <= 0 {
		o.UpstreamBackoff = 500 * time.Millisecond
	}
}

// EngineConfig wires an Engine's collaborators.
type EngineConfig struct {
	Store       *Store
	Clock       clock.Clock
	Logger      *slog.Logger
	Sealer      *sealer.Sealer
	Transcriber Transcriber
	Synthesizer Synthesizer
	Generator   Generator
	Timeline    Timeline
	Options     Options
}

// Engine orchestrates call sessions end to end: lifecycle, turns,
// guardrails, the timebox, and post-call summaries.
type Engine struct {
	store       *Store
	clock       clock.Clock
	logger      *slog.Logger
	sealer      *sealer.Sealer
	transcriber Transcriber
	synthesizer Synthesizer
	generator   Generator
	timeline    Timeline
	options     Options
	timers      *timerRegistry
}

// New validates the configuration and returns an Engine. Call Run to
// start the background sweeps and ResumeTimers to re-arm timers for
// sessions that were live across a restart.
func New(cfg EngineConfig) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("callsession: Store is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("callsession: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("callsession: Logger is required")
	}
	if cfg.Sealer == nil {
		return nil, fmt.Errorf("callsession: Sealer is required")
	}
	if cfg.Transcriber == nil || cfg.Synthesizer == nil || cfg.Generator == nil || cfg.Timeline == nil {
		return nil, fmt.Errorf("callsession: all collaborators are required")
	}
	options := cfg.Options
	options.fillDefaults()
	return &Engine{
		store:       cfg.Store,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		sealer:      cfg.Sealer,
		transcriber: cfg.Transcriber,
		synthesizer: cfg.Synthesizer,
		generator:   cfg.Generator,
		timeline:    cfg.Timeline,
		options:     options,
		timers:      newTimerRegistry(),
	}, nil
}

// newSessionID derives a session identifier from the creation inputs.
// The nanosecond timestamp makes collisions for the same case and
// requester implausible; the hash keeps identifiers opaque.
func newSessionID(caseRef, requester string, createdAt time.Time) string {
	sum := sha256.Sum256([]byte(
		caseRef + "\x00" + requester + "\x00" + strconv.FormatInt(createdAt.UnixNano(), 10)))
	return "call-" + hex.EncodeToString(sum[:8])
}

// CreateSession registers a new session in created for the given case
// and requester. No context is sealed yet.
func (e *Engine) CreateSession(ctx context.Context, caseRef, requester string) (*call.Session, error) {
	if caseRef == "" {
		return nil, fmt.Errorf("callsession: case reference is required")
	}
	if requester == "" {
		return nil, fmt.Errorf("callsession: requester is required")
	}

	now := e.clock.Now()
	session := &call.Session{
		ID:        newSessionID(caseRef, requester, now),
		CaseRef:   caseRef,
		Requester: requester,
		State:     call.StateCreated,
		Revision:  1,
		CreatedAt: now,
	}
	err := e.store.withTx(ctx, func(conn *sqlite.Conn) error {
		return insertSession(conn, session)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("session created",
		"session", session.ID, "case", caseRef, "requester", requester)
	return session, nil
}

// Prepare seals a context bundle for the session's case and moves the
// session from created to ready. A sealing failure leaves the session
// in created; the caller retries. The bundle is immutable once
// attached: every seal writes a new version row.
func (e *Engine) Prepare(ctx context.Context, sessionID string) (*call.Session, error) {
	session, err := e.liveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := call.ValidateTransition(session.State, call.StateReady); err != nil {
		e.auditInvalidTransition(ctx, session.ID, session.State, call.StateReady)
		return nil, err
	}

	_, encoded, hash, sealErr := e.sealer.Build(ctx, session.CaseRef)
	if sealErr != nil {
		e.auditEvent(ctx, &call.AuditEvent{
			SessionID:   session.ID,
			Kind:        call.AuditSealFailure,
			Description: sealErr.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrSealFailure, sealErr)
	}

	now := e.clock.Now()
	session.State = call.StateReady
	session.BundleVersion++
	session.BundleHash = hash
	session.ReadyAt = &now
	err = e.store.withTx(ctx, func(conn *sqlite.Conn) error {
		if err := insertBundle(conn, session.ID, session.BundleVersion, hash, encoded, now); err != nil {
			return err
		}
		return updateSessionCAS(conn, session)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("context sealed",
		"session", session.ID, "bundle_version", session.BundleVersion, "bundle_hash", hash)
	return session, nil
}

// Reseal rebuilds the context bundle for a session that is already
// ready, picking up upstream case changes before the call starts. The
// session stays in ready with an incremented bundle version; earlier
// versions remain retrievable.
func (e *Engine) Reseal(ctx context.Context, sessionID string) (*call.Session, error) {
	session, err := e.liveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.State != call.StateReady {
		e.auditInvalidTransition(ctx, session.ID, session.State, call.StateReady)
		return nil, &call.InvalidTransitionError{From: session.State, To: call.StateReady}
	}

	_, encoded, hash, sealErr := e.sealer.Build(ctx, session.CaseRef)
	if sealErr != nil {
		e.auditEvent(ctx, &call.AuditEvent{
			SessionID:   session.ID,
			Kind:        call.AuditSealFailure,
			Description: sealErr.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrSealFailure, sealErr)
	}

	now := e.clock.Now()
	session.BundleVersion++
	session.BundleHash = hash
	session.ReadyAt = &now
	err = e.store.withTx(ctx, func(conn *sqlite.Conn) error {
		if err := insertBundle(conn, session.ID, session.BundleVersion, hash, encoded, now); err != nil {
			return err
		}
		return updateSessionCAS(conn, session)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("context resealed",
		"session", session.ID, "bundle_version", session.BundleVersion, "bundle_hash", hash)
	return session, nil
}

// Start moves a ready session to in_progress, stamps the deadline,
// and arms the timebox and silence timers. From this point the call
// ends at the deadline whether or not any turn arrives.
func (e *Engine) Start(ctx context.Context, sessionID string) (*call.Session, error) {
	session, err := e.liveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := call.ValidateTransition(session.State, call.StateInProgress); err != nil {
		e.auditInvalidTransition(ctx, session.ID, session.State, call.StateInProgress)
		return nil, err
	}

	now := e.clock.Now()
	deadline := now.Add(e.options.CallDuration)
	session.State = call.StateInProgress
	session.StartedAt = &now
	session.Deadline = &deadline
	err = e.store.withTx(ctx, func(conn *sqlite.Conn) error {
		return updateSessionCAS(conn, session)
	})
	if err != nil {
		return nil, err
	}

	e.armTimebox(session.ID, deadline)
	e.logger.Info("call started",
		"session", session.ID, "deadline", deadline)
	return session, nil
}

// TurnInput carries one user utterance: either raw audio for the
// transcriber or already-recognized text, not both.
type TurnInput struct {
	Text  string
	Audio []byte
}

// WarningLevel tells the caller how close the call is to its hard
// stop.
type WarningLevel string

const (
	WarningNone       WarningLevel = "none"
	WarningFiveMinute WarningLevel = "five_minute"
	WarningOneMinute  WarningLevel = "one_minute"
)

// TurnResult is the outcome of one submitted turn.
type TurnResult struct {
	// UserText is the recognized user utterance; Confidence is set
	// when it came from audio.
	UserText   string
	Confidence *float64

	// Outcome is the preflight decision for the user turn.
	Outcome call.GuardrailOutcome

	// AgentText is what the user hears: the generated response, the
	// refusal boundary message, or the sanitized replacement.
	AgentText string

	// Sanitized is set when postflight replaced the generated text.
	Sanitized bool

	// AudioRef references the synthesized speech, empty if synthesis
	// failed (the text still stands).
	AudioRef string

	// Remaining is the time left before the hard stop, with the
	// warning level derived from it.
	Remaining time.Duration
	Warning   WarningLevel
}

// SubmitTurn processes one user utterance end to end: transcription,
// preflight guardrails, generation, postflight guardrails, synthesis,
// and the ledger writes. Only valid while the session is in_progress
// and before the deadline; a turn arriving at or past the deadline
// completes the session and returns ErrTimeboxExceeded.
func (e *Engine) SubmitTurn(ctx context.Context, sessionID string, input TurnInput) (*TurnResult, error) {
	session, err := e.liveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.State != call.StateInProgress {
		e.auditEvent(ctx, &call.AuditEvent{
			SessionID:   session.ID,
			Kind:        call.AuditInvalidTransition,
			Description: fmt.Sprintf("turn submitted while %s", session.State),
		})
		return nil, fmt.Errorf("%w: session %s is %s", ErrSessionNotLive, session.ID, session.State)
	}

	now := e.clock.Now()
	if session.Deadline != nil && !now.Before(*session.Deadline) {
		e.hardStop(session.ID)
		return nil, fmt.Errorf("%w: session %s deadline %s", ErrTimeboxExceeded, session.ID, session.Deadline)
	}
	remaining := session.Deadline.Sub(now)

	bundle, err := e.sessionBundle(ctx, session)
	if err != nil {
		return nil, err
	}

	text := input.Text
	var confidence *float64
	if len(input.Audio) > 0 {
		var recognized string
		var conf float64
		err := e.withRetry(ctx, "transcribe", func(ctx context.Context) error {
			var err error
			recognized, conf, err = e.transcriber.Transcribe(ctx, input.Audio)
			return err
		})
		if err != nil {
			return nil, err
		}
		text = recognized
		confidence = &conf
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("callsession: empty turn for session %s", session.ID)
	}

	// Any turn, whatever its guardrail outcome, counts as activity
	// for the silence monitor.
	e.timers.touch(session.ID, now)

	result := &TurnResult{
		UserText:   text,
		Confidence: confidence,
		Remaining:  remaining,
		Warning:    warningFor(remaining),
	}

	pre := guardrails.Preflight(text, bundle)
	result.Outcome = pre.Outcome
	if pre.Outcome == call.OutcomeRefuse {
		return e.refuseTurn(ctx, session, result, pre)
	}

	recent, err := e.Transcript(ctx, session.ID, false)
	if err != nil {
		return nil, err
	}
	prompt := buildPrompt(bundle, recent, text)
	promptHash := sealer.FormatHash(sealer.HashPrompt([]byte(prompt)))

	var agentText string
	err = e.withRetry(ctx, "generate", func(ctx context.Context) error {
		var err error
		agentText, err = e.generator.Generate(ctx, prompt)
		return err
	})
	if err != nil {
		// Turn-level failure: nothing is written, the caller may
		// retry the same utterance and the session stays live.
		return nil, err
	}

	post := guardrails.Postflight(agentText, bundle)
	finalText := agentText
	if post.Sanitized {
		finalText = post.Text
		result.Sanitized = true
	}
	result.AgentText = finalText

	// Synthesis failure degrades to text-only rather than losing the
	// turn.
	var audioRef string
	if synthErr := e.withRetry(ctx, "synthesize", func(ctx context.Context) error {
		var err error
		audioRef, err = e.synthesizer.Synthesize(ctx, finalText)
		return err
	}); synthErr != nil {
		e.logger.Warn("speech synthesis failed, returning text only",
			"session", session.ID, "error", synthErr)
		audioRef = ""
	}
	result.AudioRef = audioRef

	promptText := ""
	if post.Sanitized || e.options.RetainPrompts {
		promptText = prompt
	}

	// Only counter-changing outcomes touch the session row. Plain
	// allow turns skip the revision write entirely so concurrent
	// submitters interleave in the ledger without conflicting.
	sessionChanged := false
	switch pre.Outcome {
	case call.OutcomeWarn:
		session.WarningsCount++
		sessionChanged = true
	case call.OutcomeEscalate:
		session.Escalated = true
		sessionChanged = true
	}

	err = e.store.withTx(ctx, func(conn *sqlite.Conn) error {
		userTurn := &call.Turn{
			SessionID:  session.ID,
			Kind:       call.TurnUser,
			Text:       text,
			Confidence: confidence,
			Guardrail:  guardrailMark(pre.Outcome),
			CreatedAt:  now,
		}
		if err := appendTurn(conn, userTurn, ""); err != nil {
			return err
		}
		agentTurn := &call.Turn{
			SessionID:  session.ID,
			Kind:       call.TurnAgent,
			Text:       finalText,
			Guardrail:  guardrailMark(agentOutcome(post.Sanitized)),
			PromptHash: promptHash,
			CreatedAt:  e.clock.Now(),
		}
		if err := appendTurn(conn, agentTurn, promptText); err != nil {
			return err
		}
		if sessionChanged {
			if err := updateSessionCAS(conn, session); err != nil {
				return err
			}
		}
		return e.appendTurnAudits(conn, session.ID, pre, post, text, agentText)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// refuseTurn records a preflight refusal: the user turn, the canned
// boundary system turn, the refusal count, and the audit snapshot.
// No language model call is made.
func (e *Engine) refuseTurn(ctx context.Context, session *call.Session, result *TurnResult, pre guardrails.Decision) (*TurnResult, error) {
	result.AgentText = pre.Message
	session.RefusalsCount++
	now := e.clock.Now()

	err := e.store.withTx(ctx, func(conn *sqlite.Conn) error {
		userTurn := &call.Turn{
			SessionID:  session.ID,
			Kind:       call.TurnUser,
			Text:       result.UserText,
			Confidence: result.Confidence,
			Guardrail:  call.OutcomeRefuse,
			CreatedAt:  now,
		}
		if err := appendTurn(conn, userTurn, ""); err != nil {
			return err
		}
		boundaryTurn := &call.Turn{
			SessionID: session.ID,
			Kind:      call.TurnSystem,
			Text:      pre.Message,
			Guardrail: call.OutcomeRefuse,
			CreatedAt: now,
		}
		if err := appendTurn(conn, boundaryTurn, ""); err != nil {
			return err
		}
		if err := updateSessionCAS(conn, session); err != nil {
			return err
		}
		return appendAudit(conn, &call.AuditEvent{
			SessionID:   session.ID,
			Kind:        call.AuditRefusal,
			Description: fmt.Sprintf("preflight %s (%s)", pre.Rule, pre.Matched),
			UserText:    result.UserText,
			CreatedAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("turn refused",
		"session", session.ID, "rule", pre.Rule, "refusals", session.RefusalsCount)
	return result, nil
}

// appendTurnAudits writes the audit events a non-refused turn earned:
// preflight warn or escalate, and postflight sanitization with the
// original agent text snapshot.
func (e *Engine) appendTurnAudits(conn *sqlite.Conn, sessionID string, pre guardrails.Decision, post guardrails.PostDecision, userText, agentText string) error {
	now := e.clock.Now()
	switch pre.Outcome {
	case call.OutcomeWarn:
		if err := appendAudit(conn, &call.AuditEvent{
			SessionID:   sessionID,
			Kind:        call.AuditWarning,
			Description: "preflight off_allow_list",
			UserText:    userText,
			CreatedAt:   now,
		}); err != nil {
			return err
		}
	case call.OutcomeEscalate:
		if err := appendAudit(conn, &call.AuditEvent{
			SessionID:   sessionID,
			Kind:        call.AuditEscalation,
			Description: fmt.Sprintf("preflight %s (%s)", pre.Rule, pre.Matched),
			UserText:    userText,
			CreatedAt:   now,
		}); err != nil {
			return err
		}
	}
	if post.Sanitized {
		rules := make([]string, 0, len(post.Violations))
		for _, violation := range post.Violations {
			rules = append(rules, violation.Rule)
		}
		if err := appendAudit(conn, &call.AuditEvent{
			SessionID:   sessionID,
			Kind:        call.AuditSanitized,
			Description: "postflight " + strings.Join(rules, ", "),
			AgentText:   agentText,
			CreatedAt:   now,
		}); err != nil {
			return err
		}
	}
	return nil
}

// End completes an in_progress session at the caller's request and
// generates the post-call summary. The summary is returned with the
// session; it is nil only when generation failed and was deferred to
// the retry sweep.
func (e *Engine) End(ctx context.Context, sessionID, reason string) (*call.Session, *call.CallSummary, error) {
	session, err := e.liveSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if reason == "" {
		reason = "caller_ended"
	}
	if err := e.finalize(ctx, session, call.StateCompleted, reason, "", call.AuditCompleted,
		fmt.Sprintf("session completed (%s)", reason), ""); err != nil {
		return nil, nil, err
	}

	var summary *call.CallSummary
	err = e.store.withConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		summary, err = getSummary(conn, sessionID)
		return err
	})
	if err != nil {
		e.logger.Warn("summary read after end failed",
			"session", sessionID, "error", err)
		return session, nil, nil
	}
	return session, summary, nil
}

// Terminate force-ends a session from any non-terminal state. Actor
// names the operator for manual terminations; engine-initiated
// terminations (silence) leave it empty.
func (e *Engine) Terminate(ctx context.Context, sessionID, reason, actor string) (*call.Session, error) {
	session, err := e.liveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "terminated"
	}
	if err := e.finalize(ctx, session, call.StateTerminated, reason, actor, call.AuditTerminated,
		fmt.Sprintf("session terminated (%s)", reason), ""); err != nil {
		return nil, err
	}
	return session, nil
}

// finalize performs the single terminal write: state, outcome,
// ended_at, the audit event, and the optional closing system turn, all
// in one transaction conditional on the revision the caller read.
// First writer wins; a concurrent finalize loses with
// ErrRevisionConflict, the transaction rolls back, and the loser's
// closing turn is never written. After the write the timers are
// cancelled and, for sessions that actually went live, the summary is
// generated. Summary failures are logged, not returned: the sweep
// retries them and the session is terminal either way.
func (e *Engine) finalize(ctx context.Context, session *call.Session, to call.State, reason, actor string, auditKind call.AuditKind, description, closingTurn string) error {
	if err := call.ValidateTransition(session.State, to); err != nil {
		e.auditInvalidTransition(ctx, session.ID, session.State, to)
		return err
	}

	now := e.clock.Now()
	wasLive := session.State == call.StateInProgress
	session.State = to
	session.OutcomeReason = reason
	session.OutcomeActor = actor
	session.EndedAt = &now

	err := e.store.withTx(ctx, func(conn *sqlite.Conn) error {
		if err := updateSessionCAS(conn, session); err != nil {
			return err
		}
		if closingTurn != "" {
			if err := appendTurn(conn, &call.Turn{
				SessionID: session.ID,
				Kind:      call.TurnSystem,
				Text:      closingTurn,
				CreatedAt: now,
			}, ""); err != nil {
				return err
			}
		}
		return appendAudit(conn, &call.AuditEvent{
			SessionID:   session.ID,
			Kind:        auditKind,
			Description: description,
			CreatedAt:   now,
		})
	})
	if err != nil {
		return err
	}

	e.timers.cancel(session.ID)
	e.logger.Info("session finalized",
		"session", session.ID, "state", to, "reason", reason)

	if wasLive {
		if err := e.generateAndAttachSummary(ctx, session); err != nil {
			e.logger.Warn("summary generation deferred to sweep",
				"session", session.ID, "error", err)
		}
	}
	return nil
}

// Session returns a session by identifier. Soft-deleted sessions are
// not found.
func (e *Engine) Session(ctx context.Context, sessionID string) (*call.Session, error) {
	return e.liveSession(ctx, sessionID)
}

// liveSession reads a session, treating soft-deleted rows as not
// found.
func (e *Engine) liveSession(ctx context.Context, sessionID string) (*call.Session, error) {
	var session *call.Session
	err := e.store.withConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		session, err = getSession(conn, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if session.DeletedAt != nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Transcript returns the session's ledger in turn order. Cold-tier
// turns are omitted unless includeCold is set.
func (e *Engine) Transcript(ctx context.Context, sessionID string, includeCold bool) ([]call.Turn, error) {
	if _, err := e.liveSession(ctx, sessionID); err != nil {
		return nil, err
	}
	var turns []call.Turn
	err := e.store.withConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		turns, err = listTurns(conn, sessionID, includeCold)
		return err
	})
	return turns, err
}

// AuditLog returns the session's audit events in sequence order.
func (e *Engine) AuditLog(ctx context.Context, sessionID string) ([]call.AuditEvent, error) {
	if _, err := e.liveSession(ctx, sessionID); err != nil {
		return nil, err
	}
	var events []call.AuditEvent
	err := e.store.withConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		events, err = listAudit(conn, sessionID)
		return err
	})
	return events, err
}

// Bundle returns a decoded sealed bundle and its hash by version.
// Version 0 means the version currently in force.
func (e *Engine) Bundle(ctx context.Context, sessionID string, version int64) (*call.ContextBundle, string, error) {
	session, err := e.liveSession(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	if version == 0 {
		version = session.BundleVersion
	}
	if version == 0 {
		return nil, "", fmt.Errorf("callsession: session %s has no sealed context", sessionID)
	}

	var content []byte
	var hash string
	err = e.store.withConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		content, hash, err = getBundle(conn, sessionID, version)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	bundle := new(call.ContextBundle)
	if err := codec.Unmarshal(content, bundle); err != nil {
		return nil, "", fmt.Errorf("callsession: decoding bundle %s/%d: %w", sessionID, version, err)
	}
	return bundle, hash, nil
}

// sessionBundle loads and decodes the bundle version in force for a
// session.
func (e *Engine) sessionBundle(ctx context.Context, session *call.Session) (*call.ContextBundle, error) {
	if session.BundleVersion == 0 {
		return nil, fmt.Errorf("callsession: session %s has no sealed context", session.ID)
	}
	var content []byte
	err := e.store.withConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		content, _, err = getBundle(conn, session.ID, session.BundleVersion)
		return err
	})
	if err != nil {
		return nil, err
	}
	bundle := new(call.ContextBundle)
	if err := codec.Unmarshal(content, bundle); err != nil {
		return nil, fmt.Errorf("callsession: decoding bundle %s/%d: %w", session.ID, session.BundleVersion, err)
	}
	return bundle, nil
}

// Delete soft-deletes a terminal session. The row, ledger, audit log,
// and summary all remain; the session just stops resolving.
func (e *Engine) Delete(ctx context.Context, sessionID string) error {
	session, err := e.liveSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !session.State.Terminal() {
		return fmt.Errorf("callsession: session %s is %s; only terminal sessions can be deleted", sessionID, session.State)
	}
	return e.store.withTx(ctx, func(conn *sqlite.Conn) error {
		return softDeleteSession(conn, sessionID, e.clock.Now())
	})
}

// auditInvalidTransition records an out-of-table transition attempt.
// Best-effort: a failure to audit is logged, the original error still
// reaches the caller.
func (e *Engine) auditInvalidTransition(ctx context.Context, sessionID string, from, to call.State) {
	e.auditEvent(ctx, &call.AuditEvent{
		SessionID:   sessionID,
		Kind:        call.AuditInvalidTransition,
		Description: fmt.Sprintf("attempted %s -> %s", from, to),
	})
}

// auditEvent appends one audit event in its own transaction,
// stamping CreatedAt if unset. Best-effort.
func (e *Engine) auditEvent(ctx context.Context, event *call.AuditEvent) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = e.clock.Now()
	}
	err := e.store.withTx(ctx, func(conn *sqlite.Conn) error {
		return appendAudit(conn, event)
	})
	if err != nil {
		e.logger.Error("audit append failed",
			"session", event.SessionID, "kind", event.Kind, "error", err)
	}
}

// warningFor maps remaining call time to the warning level reported
// on turn results.
func warningFor(remaining time.Duration) WarningLevel {
	switch {
	case remaining <= time.Minute:
		return WarningOneMinute
	case remaining <= 5*time.Minute:
		return WarningFiveMinute
	}
	return WarningNone
}

// guardrailMark records the outcome on the turn row only when a rule
// actually fired; allow stays blank to keep clean turns visibly
// clean.
func guardrailMark(outcome call.GuardrailOutcome) call.GuardrailOutcome {
	if outcome == call.OutcomeAllow {
		return ""
	}
	return outcome
}

func agentOutcome(sanitized bool) call.GuardrailOutcome {
	if sanitized {
		return call.OutcomeSanitized
	}
	return call.OutcomeAllow
}

// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package call

import "time"

// AuditKind classifies a compliance event.
type AuditKind string

const (
	// AuditInvalidTransition records an attempted transition not in
	// the adjacency table. Worth alerting on: it indicates a client
	// bug or an attack.
	AuditInvalidTransition AuditKind = "invalid_transition"

	// AuditRefusal records a preflight refuse outcome.
	AuditRefusal AuditKind = "refusal"

	// AuditWarning records a preflight warn outcome.
	AuditWarning AuditKind = "warning"

	// AuditEscalation records a preflight escalate outcome.
	AuditEscalation AuditKind = "escalation"

	// AuditSanitized records a postflight violation whose response
	// was replaced with the safe template.
	AuditSanitized AuditKind = "sanitized_response"

	// AuditTerminated records a manual or silence termination, with
	// the actor when an operator initiated it.
	AuditTerminated AuditKind = "session_terminated"

	// AuditTimebox records the hard-stop timer ending the call.
	AuditTimebox AuditKind = "timebox_expired"

	// AuditSilenceCheckin records the check-in prompt sent after a
	// silence window with no turns.
	AuditSilenceCheckin AuditKind = "silence_checkin"

	// AuditExpired records the stale sweep expiring an unstarted
	// session.
	AuditExpired AuditKind = "session_expired"

	// AuditSealFailure records a failed context sealing attempt.
	// The session stays created and the failure is retryable, but
	// the attempt itself is part of the compliance record.
	AuditSealFailure AuditKind = "seal_failure"

	// AuditCompleted records a session reaching completed.
	AuditCompleted AuditKind = "session_completed"
)

// AuditEvent is one immutable compliance event. UserText and
// AgentText are optional snapshots kept for compliance replay of
// guardrail decisions.
type AuditEvent struct {
	SessionID   string    `cbor:"session_id"`
	Seq         int64     `cbor:"seq"`
	Kind        AuditKind `cbor:"kind"`
	Description string    `cbor:"description"`
	UserText    string    `cbor:"user_text,omitempty"`
	AgentText   string    `cbor:"agent_text,omitempty"`
	CreatedAt   time.Time `cbor:"created_at"`
}

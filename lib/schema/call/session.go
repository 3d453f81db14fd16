// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package call

import "time"

// State is a session lifecycle state. The zero value is not a valid
// state; sessions are born in StateCreated.
type State string

const (
	// StateCreated is the initial state: the session exists but has
	// no sealed context yet.
	StateCreated State = "created"

	// StateReady means the context bundle is sealed and attached;
	// the call can start.
	StateReady State = "ready"

	// StateInProgress means the call is live: the timebox is armed
	// and turns are accepted.
	StateInProgress State = "in_progress"

	// StateCompleted is terminal: the call ended normally, by the
	// caller or by the timebox hard stop.
	StateCompleted State = "completed"

	// StateTerminated is terminal: an operator or the silence
	// monitor cut the call short.
	StateTerminated State = "terminated"

	// StateExpired is terminal: the session never started and aged
	// out of created or ready.
	StateExpired State = "expired"
)

// Terminal reports whether the state accepts no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateTerminated, StateExpired:
		return true
	}
	return false
}

// Reasons recorded on terminal sessions. End and Terminate also accept
// free-text reasons from callers; these constants cover the reasons
// the engine generates itself.
const (
	// ReasonTimebox marks a completion forced by the hard-stop timer.
	ReasonTimebox = "timebox"

	// ReasonSilence marks a termination after an unanswered check-in.
	ReasonSilence = "silence"

	// ReasonStale marks an expiry of a session that never started.
	ReasonStale = "stale"
)

// Session is one bounded-duration conversation scoped to a single
// case. The revision counter implements optimistic concurrency: every
// state-changing write is conditional on the revision the writer read,
// and a mismatch fails the write instead of overwriting concurrent
// state.
type Session struct {
	// ID is the engine-assigned session identifier ("call-" followed
	// by a hash prefix).
	ID string `cbor:"id"`

	// CaseRef identifies the case this session is scoped to.
	CaseRef string `cbor:"case_ref"`

	// Requester is the identity that created the session.
	Requester string `cbor:"requester"`

	// State is the current lifecycle state.
	State State `cbor:"state"`

	// Revision increments on every write to the session row.
	Revision int64 `cbor:"revision"`

	// BundleVersion and BundleHash identify the sealed context in
	// force. Zero/empty until the session reaches ready.
	BundleVersion int64  `cbor:"bundle_version,omitempty"`
	BundleHash    string `cbor:"bundle_hash,omitempty"`

	// WarningsCount counts guardrail warn outcomes.
	WarningsCount int64 `cbor:"warnings_count"`

	// RefusalsCount counts guardrail refuse outcomes.
	RefusalsCount int64 `cbor:"refusals_count"`

	// Escalated is set when a guardrail escalate outcome flags the
	// session for human follow-up.
	Escalated bool `cbor:"escalated,omitempty"`

	// OutcomeReason and OutcomeActor describe how a terminal session
	// ended. Actor is empty unless an operator terminated the call.
	OutcomeReason string `cbor:"outcome_reason,omitempty"`
	OutcomeActor  string `cbor:"outcome_actor,omitempty"`

	// Lifecycle timestamps. StartedAt is set iff the session reached
	// in_progress; EndedAt is set iff the state is terminal.
	CreatedAt time.Time  `cbor:"created_at"`
	ReadyAt   *time.Time `cbor:"ready_at,omitempty"`
	StartedAt *time.Time `cbor:"started_at,omitempty"`
	Deadline  *time.Time `cbor:"deadline,omitempty"`
	EndedAt   *time.Time `cbor:"ended_at,omitempty"`

	// DeletedAt marks a soft-deleted session. The row and its turns,
	// audit events, and summary remain for the audit trail.
	DeletedAt *time.Time `cbor:"deleted_at,omitempty"`
}

// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package call

import "time"

// TurnKind discriminates who produced a transcript turn.
type TurnKind string

const (
	// TurnUser is an utterance from the end user.
	TurnUser TurnKind = "user"

	// TurnAgent is a response from the AI agent (possibly
	// sanitized by the postflight guardrail).
	TurnAgent TurnKind = "agent"

	// TurnSystem is engine-generated: timebox warnings, silence
	// check-ins, refusal boundary messages.
	TurnSystem TurnKind = "system"
)

// Tier is the storage tier of a turn.
type Tier string

const (
	// TierHot is the default tier; text is stored uncompressed and
	// served by operational reads.
	TierHot Tier = "hot"

	// TierCold holds aged turns with zstd-compressed text. Cold
	// data exists for audit, not operational access: reads skip it
	// unless explicitly asked.
	TierCold Tier = "cold"
)

// GuardrailOutcome is the result of a guardrail pass, recorded on the
// turn it applied to.
type GuardrailOutcome string

const (
	// OutcomeAllow lets the turn through untouched.
	OutcomeAllow GuardrailOutcome = "allow"

	// OutcomeRefuse returns the canned boundary message without any
	// language model call. A normal, counted outcome — not an error.
	OutcomeRefuse GuardrailOutcome = "refuse"

	// OutcomeWarn proceeds but logs and counts the warning.
	OutcomeWarn GuardrailOutcome = "warn"

	// OutcomeEscalate proceeds but flags the session for human
	// follow-up.
	OutcomeEscalate GuardrailOutcome = "escalate"

	// OutcomeSanitized marks an agent turn whose original text was
	// replaced by the postflight guardrail.
	OutcomeSanitized GuardrailOutcome = "sanitized"
)

// Turn is one utterance in a session's transcript. Turn numbers are
// strictly increasing from 1 with no gaps or duplicates; the ledger
// assigns them under the store's write transaction.
type Turn struct {
	SessionID string   `cbor:"session_id"`
	Number    int64    `cbor:"number"`
	Kind      TurnKind `cbor:"kind"`

	// Text is the utterance. Empty for cold-tier turns read without
	// the include-cold flag.
	Text string `cbor:"text"`

	// Confidence is the speech-to-text confidence for user turns
	// transcribed from audio. Nil for text input and non-user turns.
	Confidence *float64 `cbor:"confidence,omitempty"`

	// Guardrail records the outcome of the pass that applied to this
	// turn, when one fired.
	Guardrail GuardrailOutcome `cbor:"guardrail,omitempty"`

	// PromptHash is the content hash of the prompt sent to the
	// language model for agent turns. The full prompt text is only
	// retained when a guardrail fired or retention was configured.
	PromptHash string `cbor:"prompt_hash,omitempty"`

	Tier      Tier      `cbor:"tier"`
	CreatedAt time.Time `cbor:"created_at"`
}

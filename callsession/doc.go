// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package callsession implements the case-scoped call session engine:
// a time-boxed, single-topic voice conversation between an end user
// and an AI agent, grounded in a sealed context bundle.
//
// The engine owns four cooperating pieces:
//
//   - a SQLite store holding sessions, sealed bundles, the transcript
//     ledger, the audit log, and post-call summaries. Session writes
//     use optimistic concurrency: every state-changing update is
//     conditional on the revision the writer read.
//
//   - a state machine with a closed adjacency table (see the call
//     schema package). Every operation validates its transition before
//     writing, and every invalid attempt lands in the audit log.
//
//   - a timebox scheduler, independent of conversation traffic: two
//     warning turns (five minutes and one minute before the deadline)
//     and a hard stop that completes the call even if no turn ever
//     arrives. A silence monitor rides the same timer registry,
//     checking in after a quiet window and terminating if the check-in
//     goes unanswered.
//
//   - guardrail integration: user text runs through preflight before
//     any model call, agent text through postflight before it reaches
//     the user. Refusals are counted outcomes, not errors.
//
// External dependencies (speech-to-text, text-to-speech, the language
// model, the case timeline) enter through the collaborator interfaces
// in collaborators.go; tests substitute fakes.
package callsession

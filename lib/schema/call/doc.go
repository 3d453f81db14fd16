// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package call defines the domain types for case-scoped AI call
// sessions: the session record and its lifecycle states, the sealed
// context bundle, transcript turns, audit events, and the post-call
// summary.
//
// The state machine is closed: every legal transition appears in the
// adjacency table in transitions.go, and ValidateTransition is the
// only way to decide whether a transition is allowed. A bare state
// assignment anywhere else is a bug.
package call

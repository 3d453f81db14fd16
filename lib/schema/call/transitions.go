// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package call

import "fmt"

// transitions is the closed adjacency table for the session state
// machine. A pair absent from this table is an invalid transition, no
// exceptions.
//
//   - created -> ready (context sealed), terminated, expired
//   - ready -> in_progress (call started), terminated, expired
//   - in_progress -> completed (normal end or timebox), terminated
//   - completed, terminated, expired -> nothing
//
// Expiry is only reachable before the call starts; a live call ends
// through the timebox, not the stale sweep.
var transitions = map[State][]State{
	StateCreated:    {StateReady, StateTerminated, StateExpired},
	StateReady:      {StateInProgress, StateTerminated, StateExpired},
	StateInProgress: {StateCompleted, StateTerminated},
}

// InvalidTransitionError reports an attempted transition not present
// in the adjacency table. Callers treat it as security-relevant: the
// engine writes an audit event for every occurrence, because an
// out-of-table transition indicates a client bug or an attack, never
// normal operation.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("call: invalid transition %s -> %s", e.From, e.To)
}

// ValidateTransition returns nil when from -> to appears in the
// adjacency table, and an *InvalidTransitionError otherwise.
func ValidateTransition(from, to State) error {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return &InvalidTransitionError{From: from, To: to}
}

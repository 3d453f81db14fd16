// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package call

import (
	"errors"
	"testing"
)

var allStates = []State{
	StateCreated, StateReady, StateInProgress,
	StateCompleted, StateTerminated, StateExpired,
}

// allowed is the full adjacency table. Everything else must be
// rejected; the engine's audit trail depends on no pair slipping
// through.
var allowed = map[State][]State{
	StateCreated:    {StateReady, StateTerminated, StateExpired},
	StateReady:      {StateInProgress, StateTerminated, StateExpired},
	StateInProgress: {StateCompleted, StateTerminated},
}

func isAllowed(from, to State) bool {
	for _, state := range allowed[from] {
		if state == to {
			return true
		}
	}
	return false
}

func TestValidateTransitionFullMatrix(t *testing.T) {
	for _, from := range allStates {
		for _, to := range allStates {
			err := ValidateTransition(from, to)
			if isAllowed(from, to) {
				if err != nil {
					t.Errorf("ValidateTransition(%s, %s) = %v, want nil", from, to, err)
				}
				continue
			}
			if err == nil {
				t.Errorf("ValidateTransition(%s, %s) = nil, want error", from, to)
				continue
			}
			var invalid *InvalidTransitionError
			if !errors.As(err, &invalid) {
				t.Errorf("ValidateTransition(%s, %s) error type = %T", from, to, err)
				continue
			}
			if invalid.From != from || invalid.To != to {
				t.Errorf("error pair = %s -> %s, want %s -> %s",
					invalid.From, invalid.To, from, to)
			}
		}
	}
}

func TestTerminalStatesAcceptNothing(t *testing.T) {
	for _, from := range []State{StateCompleted, StateTerminated, StateExpired} {
		if !from.Terminal() {
			t.Errorf("%s.Terminal() = false, want true", from)
		}
		for _, to := range allStates {
			if ValidateTransition(from, to) == nil {
				t.Errorf("terminal state %s allows transition to %s", from, to)
			}
		}
	}
}

func TestNonTerminalStates(t *testing.T) {
	for _, state := range []State{StateCreated, StateReady, StateInProgress} {
		if state.Terminal() {
			t.Errorf("%s.Terminal() = true, want false", state)
		}
	}
}

func TestSelfTransitionsRejected(t *testing.T) {
	for _, state := range allStates {
		if ValidateTransition(state, state) == nil {
			t.Errorf("self transition %s -> %s allowed", state, state)
		}
	}
}

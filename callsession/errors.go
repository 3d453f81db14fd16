// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package callsession

import "errors"

// Sentinel errors returned by engine operations. Invalid state
// transitions are reported as *call.InvalidTransitionError rather
// than a sentinel, because callers need the from/to pair.
var (
	// ErrSessionNotFound means no session row exists for the given
	// identifier, or the session was soft-deleted.
	ErrSessionNotFound = errors.New("callsession: session not found")

	// ErrRevisionConflict means a conditional session write lost a
	// race: the row's revision no longer matched the one the writer
	// read. The caller re-reads and re-applies or gives up.
	ErrRevisionConflict = errors.New("callsession: revision conflict")

	// ErrSealFailure means context sealing failed. The session stays
	// in created and the operation may be retried; no partial bundle
	// is ever attached.
	ErrSealFailure = errors.New("callsession: context seal failure")

	// ErrUpstream means an external collaborator (speech, language
	// model, timeline) failed after the configured retries.
	ErrUpstream = errors.New("callsession: upstream service failure")

	// ErrTimeboxExceeded means a turn arrived at or past the
	// session's deadline. The session is completed by the time the
	// caller sees this error.
	ErrTimeboxExceeded = errors.New("callsession: timebox exceeded")

	// ErrSessionNotLive means a turn was submitted to a session that
	// is not in_progress.
	ErrSessionNotLive = errors.New("callsession: session is not in progress")

	// ErrSummaryExists guards the one-to-one session/summary
	// relationship.
	ErrSummaryExists = errors.New("callsession: summary already exists")

	// ErrBundleNotFound means no sealed bundle row exists for the
	// requested session and version. The session itself may well
	// exist; callers probing historical versions get this, not
	// ErrSessionNotFound.
	ErrBundleNotFound = errors.New("callsession: bundle version not found")
)

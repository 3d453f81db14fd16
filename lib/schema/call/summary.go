// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package call

import "time"

// CallSummary is the post-call synthesis of a session's ledger.
// Created at most once per session; the store enforces the
// one-to-one relationship with a primary key on the session ID.
type CallSummary struct {
	SessionID string `cbor:"session_id"`

	// Text is the synthesized narrative summary.
	Text string `cbor:"text"`

	// Extracted fields, one item per entry.
	Questions        []string `cbor:"questions,omitempty"`
	ActionItems      []string `cbor:"action_items,omitempty"`
	MissingDocuments []string `cbor:"missing_documents,omitempty"`
	NextSteps        []string `cbor:"next_steps,omitempty"`

	// Attached is set only after the case-timeline collaborator
	// acknowledges receipt. An unattached summary is retried, never
	// lost.
	Attached bool `cbor:"attached"`

	CreatedAt time.Time `cbor:"created_at"`
}

// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package call

// ContextBundle is the sealed, read-only snapshot of case data the
// agent is allowed to see for one session. Immutable once sealed:
// re-sealing produces a new version and a new hash, never an in-place
// edit, so audit replay can reproduce exactly which bundle was in
// force for any turn.
//
// Field order is irrelevant to the content hash — the sealer encodes
// the bundle with deterministic CBOR, and every slice below is sorted
// before sealing.
type ContextBundle struct {
	// CaseRef is the case this bundle was built from.
	CaseRef string `cbor:"case_ref"`

	// Facts are the case facts, one statement per entry.
	Facts []string `cbor:"facts"`

	// DocumentSummary describes the status of each requested
	// document ("passport: received", "bank statement: missing").
	DocumentSummary []string `cbor:"document_summary"`

	// ReviewNotes are the latest human-review notes.
	ReviewNotes []string `cbor:"review_notes"`

	// Findings are prior AI eligibility findings.
	Findings []string `cbor:"findings"`

	// RuleSummaries are the applicable rule requirements for the
	// case's visa type and jurisdiction.
	RuleSummaries []string `cbor:"rule_summaries"`

	// AllowedTopics is the explicit allow list: what this session's
	// conversation may cover.
	AllowedTopics []string `cbor:"allowed_topics"`

	// DeniedTopics is the explicit deny list: topics that trigger a
	// preflight refusal.
	DeniedTopics []string `cbor:"denied_topics"`
}

// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package sealer

import (
	"context"
	"fmt"
	"sort"

	"github.com/casewire/casewire/lib/codec"
	"github.com/casewire/casewire/lib/schema/call"
)

// CaseFacts is the fact sheet a CaseDirectory returns for one case.
type CaseFacts struct {
	// VisaType and Jurisdiction select the applicable rules.
	VisaType     string
	Jurisdiction string

	// Facts are the case facts, one statement per entry.
	Facts []string

	// AllowedTopics and DeniedTopics are the case-specific topic
	// lists. The sealer appends its configured base deny list to
	// DeniedTopics.
	AllowedTopics []string
	DeniedTopics  []string
}

// CaseDirectory is the read-only interface to case storage. The
// engine never writes case data.
type CaseDirectory interface {
	// CaseFacts returns the fact sheet for a case.
	CaseFacts(ctx context.Context, caseRef string) (CaseFacts, error)

	// DocumentStatus returns one status line per requested document.
	DocumentStatus(ctx context.Context, caseRef string) ([]string, error)

	// ReviewNotes returns the latest human-review notes.
	ReviewNotes(ctx context.Context, caseRef string) ([]string, error)

	// Findings returns the latest AI eligibility findings.
	Findings(ctx context.Context, caseRef string) ([]string, error)
}

// RuleBook returns applicable rule summaries by visa type and
// jurisdiction.
type RuleBook interface {
	RuleSummaries(ctx context.Context, visaType, jurisdiction string) ([]string, error)
}

// Sealer builds sealed context bundles.
type Sealer struct {
	directory CaseDirectory
	rules     RuleBook

	// baseDenied is appended to every bundle's deny list.
	baseDenied []string
}

// New returns a Sealer reading from the given collaborators.
// baseDenied topics (from service configuration) are denied in every
// session regardless of the case.
func New(directory CaseDirectory, rules RuleBook, baseDenied []string) *Sealer {
	return &Sealer{directory: directory, rules: rules, baseDenied: baseDenied}
}

// Build assembles and seals a bundle for caseRef. Returns the bundle,
// its canonical encoding, and the hex content hash. Any upstream
// failure or inconsistency fails the whole build — a partial bundle
// would let the agent talk past the case boundary, so there is no
// degraded mode. The caller leaves the session in created and
// retries.
func (s *Sealer) Build(ctx context.Context, caseRef string) (*call.ContextBundle, []byte, string, error) {
	facts, err := s.directory.CaseFacts(ctx, caseRef)
	if err != nil {
		return nil, nil, "", fmt.Errorf("sealer: case facts for %s: %w", caseRef, err)
	}
	if len(facts.Facts) == 0 {
		return nil, nil, "", fmt.Errorf("sealer: case %s has no facts", caseRef)
	}
	if len(facts.AllowedTopics) == 0 {
		return nil, nil, "", fmt.Errorf("sealer: case %s has no allowed topics", caseRef)
	}

	documents, err := s.directory.DocumentStatus(ctx, caseRef)
	if err != nil {
		return nil, nil, "", fmt.Errorf("sealer: document status for %s: %w", caseRef, err)
	}

	notes, err := s.directory.ReviewNotes(ctx, caseRef)
	if err != nil {
		return nil, nil, "", fmt.Errorf("sealer: review notes for %s: %w", caseRef, err)
	}

	findings, err := s.directory.Findings(ctx, caseRef)
	if err != nil {
		return nil, nil, "", fmt.Errorf("sealer: findings for %s: %w", caseRef, err)
	}

	rules, err := s.rules.RuleSummaries(ctx, facts.VisaType, facts.Jurisdiction)
	if err != nil {
		return nil, nil, "", fmt.Errorf("sealer: rule summaries for %s/%s: %w", facts.VisaType, facts.Jurisdiction, err)
	}

	bundle := &call.ContextBundle{
		CaseRef:         caseRef,
		Facts:           canonical(facts.Facts),
		DocumentSummary: canonical(documents),
		ReviewNotes:     canonical(notes),
		Findings:        canonical(findings),
		RuleSummaries:   canonical(rules),
		AllowedTopics:   canonical(facts.AllowedTopics),
		DeniedTopics:    canonical(append(facts.DeniedTopics, s.baseDenied...)),
	}

	encoded, err := codec.Marshal(bundle)
	if err != nil {
		return nil, nil, "", fmt.Errorf("sealer: encoding bundle for %s: %w", caseRef, err)
	}

	return bundle, encoded, FormatHash(HashBundle(encoded)), nil
}

// canonical sorts a copy of items and drops duplicates and empty
// entries. Upstream ordering must not leak into the content hash.
func canonical(items []string) []string {
	sorted := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item == "" {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		sorted = append(sorted, item)
	}
	sort.Strings(sorted)
	return sorted
}

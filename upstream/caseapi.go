// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package upstream

import (
	"context"
	"net/url"

	"github.com/casewire/casewire/lib/schema/call"
	"github.com/casewire/casewire/sealer"
)

// CaseAPI is the client for the case management system. It implements
// the sealer's CaseDirectory and RuleBook interfaces and the engine's
// Timeline interface: one system, three read/write surfaces.
type CaseAPI struct {
	client client
}

// NewCaseAPI creates a case management client for the given base URL.
func NewCaseAPI(baseURL, authToken string) *CaseAPI {
	return &CaseAPI{client: newClient(baseURL, authToken)}
}

// CaseFacts returns the fact sheet for a case.
func (c *CaseAPI) CaseFacts(ctx context.Context, caseRef string) (sealer.CaseFacts, error) {
	var response struct {
		VisaType      string   `json:"visa_type"`
		Jurisdiction  string   `json:"jurisdiction"`
		Facts         []string `json:"facts"`
		AllowedTopics []string `json:"allowed_topics"`
		DeniedTopics  []string `json:"denied_topics"`
	}
	if err := c.client.getJSON(ctx, casePath(caseRef)+"/facts", nil, &response); err != nil {
		return sealer.CaseFacts{}, err
	}
	return sealer.CaseFacts{
		VisaType:      response.VisaType,
		Jurisdiction:  response.Jurisdiction,
		Facts:         response.Facts,
		AllowedTopics: response.AllowedTopics,
		DeniedTopics:  response.DeniedTopics,
	}, nil
}

// DocumentStatus returns one status line per requested document.
func (c *CaseAPI) DocumentStatus(ctx context.Context, caseRef string) ([]string, error) {
	return c.stringList(ctx, casePath(caseRef)+"/documents")
}

// ReviewNotes returns the latest human-review notes.
func (c *CaseAPI) ReviewNotes(ctx context.Context, caseRef string) ([]string, error) {
	return c.stringList(ctx, casePath(caseRef)+"/review-notes")
}

// Findings returns the latest eligibility findings.
func (c *CaseAPI) Findings(ctx context.Context, caseRef string) ([]string, error) {
	return c.stringList(ctx, casePath(caseRef)+"/findings")
}

// RuleSummaries returns the rule summaries applicable to a visa type
// and jurisdiction.
func (c *CaseAPI) RuleSummaries(ctx context.Context, visaType, jurisdiction string) ([]string, error) {
	query := url.Values{
		"visa_type":    {visaType},
		"jurisdiction": {jurisdiction},
	}
	var response struct {
		Items []string `json:"items"`
	}
	if err := c.client.getJSON(ctx, "/v1/rules", query, &response); err != nil {
		return nil, err
	}
	return response.Items, nil
}

// AttachSummary posts a post-call summary to the case timeline. A nil
// return is the acknowledgment the engine records.
func (c *CaseAPI) AttachSummary(ctx context.Context, caseRef string, summary *call.CallSummary) error {
	request := struct {
		SessionID        string   `json:"session_id"`
		Text             string   `json:"text"`
		Questions        []string `json:"questions,omitempty"`
		ActionItems      []string `json:"action_items,omitempty"`
		MissingDocuments []string `json:"missing_documents,omitempty"`
		NextSteps        []string `json:"next_steps,omitempty"`
	}{
		SessionID:        summary.SessionID,
		Text:             summary.Text,
		Questions:        summary.Questions,
		ActionItems:      summary.ActionItems,
		MissingDocuments: summary.MissingDocuments,
		NextSteps:        summary.NextSteps,
	}
	return c.client.postJSON(ctx, casePath(caseRef)+"/timeline", request, nil)
}

// stringList fetches an endpoint returning {"items": [...]}.
func (c *CaseAPI) stringList(ctx context.Context, path string) ([]string, error) {
	var response struct {
		Items []string `json:"items"`
	}
	if err := c.client.getJSON(ctx, path, nil, &response); err != nil {
		return nil, err
	}
	return response.Items, nil
}

// casePath escapes the case reference into the URL path.
func casePath(caseRef string) string {
	return "/v1/cases/" + url.PathEscape(caseRef)
}

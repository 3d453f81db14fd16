// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package callsession

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestParseSummarySections(t *testing.T) {
	generated := `The caller asked about salary evidence and timing.
Some extra narrative detail.
Questions:
- When will a decision be made
- Can the deadline move
Action Items:
- Upload updated salary evidence
Missing documents:
Next steps:
- Await caseworker review
`
	summary := parseSummary("call-abc", generated)

	if summary.Text != generated {
		t.Error("full generated text not preserved")
	}
	if got := summary.Questions; len(got) != 2 || got[0] != "When will a decision be made" {
		t.Errorf("Questions = %v", got)
	}
	// Headings match case-insensitively.
	if got := summary.ActionItems; len(got) != 1 || got[0] != "Upload updated salary evidence" {
		t.Errorf("ActionItems = %v", got)
	}
	if len(summary.MissingDocuments) != 0 {
		t.Errorf("MissingDocuments = %v, want empty section", summary.MissingDocuments)
	}
	if got := summary.NextSteps; len(got) != 1 || got[0] != "Await caseworker review" {
		t.Errorf("NextSteps = %v", got)
	}
}

func TestParseSummaryWithoutSections(t *testing.T) {
	summary := parseSummary("call-abc", "A plain narrative with no structure.")
	if summary.Text == "" || len(summary.Questions)+len(summary.ActionItems)+len(summary.MissingDocuments)+len(summary.NextSteps) != 0 {
		t.Errorf("unstructured text produced sections: %+v", summary)
	}
}

func TestSummaryAttachRetriedBySweep(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	session := f.startedSession()

	// The timeline is down when the call ends. End still succeeds and
	// returns the generated summary; it lands in the store unattached.
	f.timeline.setFail(fmt.Errorf("timeline unavailable"))
	_, endSummary, err := f.engine.End(ctx, session.ID, "")
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if endSummary == nil || endSummary.Attached {
		t.Fatalf("End summary = %+v, want the unattached summary", endSummary)
	}
	summary, err := f.engine.Summary(ctx, session.ID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.Attached {
		t.Fatal("summary marked attached while the timeline was failing")
	}
	if f.timeline.attachedCount() != 0 {
		t.Fatalf("attachments = %d, want 0", f.timeline.attachedCount())
	}

	// Timeline recovers; the sweep delivers without regenerating.
	generateCalls := f.generator.callCount()
	f.timeline.setFail(nil)
	if err := f.engine.RetrySummaries(ctx); err != nil {
		t.Fatalf("RetrySummaries: %v", err)
	}
	summary, err = f.engine.Summary(ctx, session.ID)
	if err != nil {
		t.Fatalf("Summary after retry: %v", err)
	}
	if !summary.Attached {
		t.Error("summary still unattached after retry")
	}
	if f.timeline.attachedCount() != 1 {
		t.Errorf("attachments = %d, want 1", f.timeline.attachedCount())
	}
	if f.generator.callCount() != generateCalls {
		t.Errorf("generator calls went %d -> %d, attach retry must not regenerate", generateCalls, f.generator.callCount())
	}

	// A second sweep round finds nothing to do.
	if err := f.engine.RetrySummaries(ctx); err != nil {
		t.Fatalf("RetrySummaries (idle): %v", err)
	}
	if f.timeline.attachedCount() != 1 {
		t.Errorf("attachments after idle sweep = %d, want 1", f.timeline.attachedCount())
	}
}

func TestSummaryGenerationRetriedBySweep(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	session := f.startedSession()

	// Turn generation works, summary generation does not.
	f.generator.mu.Lock()
	f.generator.reply = func(prompt string) (string, error) {
		if strings.HasPrefix(prompt, "Summarize") {
			return "", fmt.Errorf("model overloaded")
		}
		return defaultAnswer, nil
	}
	f.generator.mu.Unlock()

	if _, err := f.engine.SubmitTurn(ctx, session.ID, TurnInput{Text: "what is my application status"}); err != nil {
		t.Fatalf("SubmitTurn: %v", err)
	}
	_, endSummary, err := f.engine.End(ctx, session.ID, "")
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if endSummary != nil {
		t.Errorf("End summary = %+v, want nil while generation is deferred", endSummary)
	}
	if _, err := f.engine.Summary(ctx, session.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Summary while generation fails = %v, want ErrSessionNotFound", err)
	}

	// The model recovers; the next sweep round fills the gap.
	f.generator.mu.Lock()
	f.generator.reply = nil
	f.generator.mu.Unlock()
	if err := f.engine.RetrySummaries(ctx); err != nil {
		t.Fatalf("RetrySummaries: %v", err)
	}

	summary, err := f.engine.Summary(ctx, session.ID)
	if err != nil {
		t.Fatalf("Summary after retry: %v", err)
	}
	if !summary.Attached {
		t.Error("summary not attached after generation retry")
	}
	if len(summary.Questions) == 0 || len(summary.NextSteps) == 0 {
		t.Errorf("summary sections not populated: %+v", summary)
	}
	if f.timeline.attachedCount() != 1 {
		t.Errorf("attachments = %d, want 1", f.timeline.attachedCount())
	}
}

func TestSummaryRoundTripsThroughStore(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	session := f.startedSession()

	if _, _, err := f.engine.End(ctx, session.ID, ""); err != nil {
		t.Fatalf("End: %v", err)
	}
	summary, err := f.engine.Summary(ctx, session.ID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.Text != defaultSummary {
		t.Errorf("Text = %q, want the generated text verbatim", summary.Text)
	}
	want := map[string][]string{
		"Questions":        {"When will a decision be made"},
		"ActionItems":      {"Upload updated salary evidence"},
		"MissingDocuments": {"Sponsorship certificate"},
		"NextSteps":        {"Await caseworker review"},
	}
	got := map[string][]string{
		"Questions":        summary.Questions,
		"ActionItems":      summary.ActionItems,
		"MissingDocuments": summary.MissingDocuments,
		"NextSteps":        summary.NextSteps,
	}
	for section, items := range want {
		if len(got[section]) != len(items) || got[section][0] != items[0] {
			t.Errorf("%s = %v, want %v", section, got[section], items)
		}
	}
	if summary.CreatedAt.IsZero() {
		t.Error("CreatedAt not recorded")
	}
}

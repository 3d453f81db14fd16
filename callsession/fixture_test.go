// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package callsession

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/casewire/casewire/lib/clock"
	"github.com/casewire/casewire/lib/schema/call"
	"github.com/casewire/casewire/sealer"
)

// fakeDirectory backs the sealer with canned case data.
type fakeDirectory struct {
	mu    sync.Mutex
	facts sealer.CaseFacts
	notes []string
	fail  error
}

func (f *fakeDirectory) CaseFacts(ctx context.Context, caseRef string) (sealer.CaseFacts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return sealer.CaseFacts{}, f.fail
	}
	return f.facts, nil
}

func (f *fakeDirectory) DocumentStatus(ctx context.Context, caseRef string) ([]string, error) {
	return []string{"passport: received"}, nil
}

func (f *fakeDirectory) ReviewNotes(ctx context.Context, caseRef string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notes, nil
}

func (f *fakeDirectory) Findings(ctx context.Context, caseRef string) ([]string, error) {
	return []string{"meets residency requirement"}, nil
}

func (f *fakeDirectory) setNotes(notes ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = notes
}

func (f *fakeDirectory) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

type fakeRules struct{}

func (fakeRules) RuleSummaries(ctx context.Context, visaType, jurisdiction string) ([]string, error) {
	return []string{"skilled worker salary threshold applies"}, nil
}

// fakeTranscriber returns a fixed transcription.
type fakeTranscriber struct {
	mu         sync.Mutex
	text       string
	confidence float64
	fail       error
	calls      int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte) (string, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return "", 0, f.fail
	}
	return f.text, f.confidence, nil
}

// fakeSynthesizer hands out sequential audio references.
type fakeSynthesizer struct {
	mu    sync.Mutex
	fail  error
	calls int
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return "", f.fail
	}
	return fmt.Sprintf("audio-%d", f.calls), nil
}

// defaultAnswer passes postflight: no questions, no guarantees, no
// suggestions.
const defaultAnswer = "Your application is under review. The salary evidence is still outstanding."

// defaultSummary exercises every section the parser knows.
const defaultSummary = `The caller asked about their application status.
Questions:
- When will a decision be made
Action items:
- Upload updated salary evidence
Missing documents:
- Sponsorship certificate
Next steps:
- Await caseworker review
`

// fakeGenerator answers turn prompts and summary prompts. reply, when
// set, overrides the canned responses. failuresLeft makes the next n
// calls fail.
type fakeGenerator struct {
	mu           sync.Mutex
	reply        func(prompt string) (string, error)
	failuresLeft int
	calls        int
	prompts      []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return "", fmt.Errorf("model overloaded")
	}
	if f.reply != nil {
		return f.reply(prompt)
	}
	if strings.HasPrefix(prompt, "Summarize") {
		return defaultSummary, nil
	}
	return defaultAnswer, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeGenerator) setFailures(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failuresLeft = n
}

// fakeTimeline records attached summaries and can be told to fail.
type fakeTimeline struct {
	mu       sync.Mutex
	fail     error
	attached []*call.CallSummary
}

func (f *fakeTimeline) AttachSummary(ctx context.Context, caseRef string, summary *call.CallSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.attached = append(f.attached, summary)
	return nil
}

func (f *fakeTimeline) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func (f *fakeTimeline) attachedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attached)
}

// fixture is a fully wired engine over a temp database and a fake
// clock.
type fixture struct {
	t           *testing.T
	clock       *clock.FakeClock
	engine      *Engine
	store       *Store
	directory   *fakeDirectory
	transcriber *fakeTranscriber
	synthesizer *fakeSynthesizer
	generator   *fakeGenerator
	timeline    *fakeTimeline
}

// testStart is an arbitrary fixed instant.
var testStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, options Options) *fixture {
	t.Helper()

	if options.CallDuration == 0 {
		options.CallDuration = 20 * time.Minute
	}
	if options.SilenceWindow == 0 {
		// Out of the way unless a test exercises the silence
		// monitor explicitly.
		options.SilenceWindow = time.Hour
	}
	if options.UpstreamAttempts == 0 {
		// Single attempt by default: retry backoffs sleep on the
		// fake clock, which only moves when a test advances it.
		options.UpstreamAttempts = 1
	}

	fake := clock.Fake(testStart)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := OpenStore(StoreConfig{
		Path:   filepath.Join(t.TempDir(), "calls.db"),
		Clock:  fake,
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	directory := &fakeDirectory{
		facts: sealer.CaseFacts{
			VisaType:      "skilled-worker",
			Jurisdiction:  "UK",
			Facts:         []string{"applicant filed 2026-01-10"},
			AllowedTopics: []string{"application status", "document requirements", "salary evidence"},
			DeniedTopics:  []string{"appeal strategy"},
		},
		notes: []string{"salary evidence needs update"},
	}
	transcriber := &fakeTranscriber{text: "what is my application status", confidence: 0.94}
	synthesizer := &fakeSynthesizer{}
	generator := &fakeGenerator{}
	timeline := &fakeTimeline{}

	engine, err := New(EngineConfig{
		Store:       store,
		Clock:       fake,
		Logger:      logger,
		Sealer:      sealer.New(directory, fakeRules{}, []string{"other applicants"}),
		Transcriber: transcriber,
		Synthesizer: synthesizer,
		Generator:   generator,
		Timeline:    timeline,
		Options:     options,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return &fixture{
		t:           t,
		clock:       fake,
		engine:      engine,
		store:       store,
		directory:   directory,
		transcriber: transcriber,
		synthesizer: synthesizer,
		generator:   generator,
		timeline:    timeline,
	}
}

// startedSession creates, prepares, and starts a session.
func (f *fixture) startedSession() *call.Session {
	f.t.Helper()
	ctx := context.Background()
	session, err := f.engine.CreateSession(ctx, "case-42", "@caseworker:example.org")
	if err != nil {
		f.t.Fatalf("CreateSession: %v", err)
	}
	if _, err := f.engine.Prepare(ctx, session.ID); err != nil {
		f.t.Fatalf("Prepare: %v", err)
	}
	started, err := f.engine.Start(ctx, session.ID)
	if err != nil {
		f.t.Fatalf("Start: %v", err)
	}
	return started
}

// mustSession re-reads a session.
func (f *fixture) mustSession(id string) *call.Session {
	f.t.Helper()
	session, err := f.engine.Session(context.Background(), id)
	if err != nil {
		f.t.Fatalf("Session(%s): %v", id, err)
	}
	return session
}

// transcript reads the hot-tier ledger.
func (f *fixture) transcript(id string) []call.Turn {
	f.t.Helper()
	turns, err := f.engine.Transcript(context.Background(), id, false)
	if err != nil {
		f.t.Fatalf("Transcript(%s): %v", id, err)
	}
	return turns
}

// auditKinds returns the audit event kinds in order.
func (f *fixture) auditKinds(id string) []call.AuditKind {
	f.t.Helper()
	events, err := f.engine.AuditLog(context.Background(), id)
	if err != nil {
		f.t.Fatalf("AuditLog(%s): %v", id, err)
	}
	kinds := make([]call.AuditKind, len(events))
	for i, event := range events {
		kinds[i] = event.Kind
	}
	return kinds
}

func hasAuditKind(kinds []call.AuditKind, want call.AuditKind) bool {
	for _, kind := range kinds {
		if kind == want {
			return true
		}
	}
	return false
}

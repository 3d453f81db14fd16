// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/casewire/casewire/lib/schema/call"
)

func TestModelGenerate(t *testing.T) {
	var gotAuth, gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/generate" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		var request struct {
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		gotPrompt = request.Prompt
		json.NewEncoder(w).Encode(map[string]string{"text": "generated answer"})
	}))
	defer server.Close()

	model := NewModel(server.URL, "secret-token")
	text, err := model.Generate(context.Background(), "a prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "generated answer" {
		t.Errorf("text = %q", text)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotPrompt != "a prompt" {
		t.Errorf("prompt = %q", gotPrompt)
	}
}

func TestModelGenerateErrorCarriesBodySnippet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	model := NewModel(server.URL, "")
	_, err := model.Generate(context.Background(), "a prompt")
	if err == nil {
		t.Fatal("Generate succeeded against a 503")
	}
	if !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("error = %v, want status and body snippet", err)
	}
}

func TestSpeechTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transcribe" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var request struct {
			Audio []byte `json:"audio"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if string(request.Audio) != "raw-pcm" {
			t.Errorf("audio = %q", request.Audio)
		}
		json.NewEncoder(w).Encode(map[string]any{"text": "hello there", "confidence": 0.91})
	}))
	defer server.Close()

	speech := NewSpeech(server.URL, "")
	text, confidence, err := speech.Transcribe(context.Background(), []byte("raw-pcm"))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello there" || confidence != 0.91 {
		t.Errorf("result = %q/%v", text, confidence)
	}
}

func TestSpeechSynthesize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/synthesize" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"audio_ref": "audio://abc123"})
	}))
	defer server.Close()

	speech := NewSpeech(server.URL, "")
	ref, err := speech.Synthesize(context.Background(), "Your application is under review.")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if ref != "audio://abc123" {
		t.Errorf("ref = %q", ref)
	}
}

func TestCaseAPIReads(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// EscapedPath keeps the %2F so the test can verify the case
		// reference was path-escaped.
		switch r.URL.EscapedPath() {
		case "/v1/cases/case%2F42/facts":
			json.NewEncoder(w).Encode(map[string]any{
				"visa_type":      "skilled-worker",
				"jurisdiction":   "UK",
				"facts":          []string{"filed 2026-01-10"},
				"allowed_topics": []string{"application status"},
				"denied_topics":  []string{"appeal strategy"},
			})
		case "/v1/cases/case%2F42/documents":
			json.NewEncoder(w).Encode(map[string]any{"items": []string{"passport: received"}})
		case "/v1/rules":
			if r.URL.Query().Get("visa_type") != "skilled-worker" || r.URL.Query().Get("jurisdiction") != "UK" {
				t.Errorf("rules query = %s", r.URL.RawQuery)
			}
			json.NewEncoder(w).Encode(map[string]any{"items": []string{"salary threshold applies"}})
		default:
			t.Errorf("unexpected path %s", r.URL.EscapedPath())
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	api := NewCaseAPI(server.URL, "")
	ctx := context.Background()

	// The case reference contains a slash; it must be path-escaped.
	facts, err := api.CaseFacts(ctx, "case/42")
	if err != nil {
		t.Fatalf("CaseFacts: %v", err)
	}
	if facts.VisaType != "skilled-worker" || len(facts.AllowedTopics) != 1 {
		t.Errorf("facts = %+v", facts)
	}

	documents, err := api.DocumentStatus(ctx, "case/42")
	if err != nil {
		t.Fatalf("DocumentStatus: %v", err)
	}
	if len(documents) != 1 || documents[0] != "passport: received" {
		t.Errorf("documents = %v", documents)
	}

	rules, err := api.RuleSummaries(ctx, "skilled-worker", "UK")
	if err != nil {
		t.Fatalf("RuleSummaries: %v", err)
	}
	if len(rules) != 1 {
		t.Errorf("rules = %v", rules)
	}
}

func TestCaseAPIAttachSummary(t *testing.T) {
	var got struct {
		SessionID string   `json:"session_id"`
		Text      string   `json:"text"`
		Questions []string `json:"questions"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/cases/case-42/timeline" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	api := NewCaseAPI(server.URL, "")
	err := api.AttachSummary(context.Background(), "case-42", &call.CallSummary{
		SessionID: "call-abc",
		Text:      "The caller asked about status.",
		Questions: []string{"When will a decision be made"},
	})
	if err != nil {
		t.Fatalf("AttachSummary: %v", err)
	}
	if got.SessionID != "call-abc" || len(got.Questions) != 1 {
		t.Errorf("posted summary = %+v", got)
	}
}

func TestCaseAPIAttachSummaryFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "timeline locked", http.StatusConflict)
	}))
	defer server.Close()

	api := NewCaseAPI(server.URL, "")
	err := api.AttachSummary(context.Background(), "case-42", &call.CallSummary{SessionID: "call-abc"})
	if err == nil {
		t.Fatal("AttachSummary succeeded against a 409")
	}
}

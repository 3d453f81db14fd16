// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package callsession

import (
	"strings"

	"github.com/casewire/casewire/lib/schema/call"
)

// recentTurnWindow bounds how much transcript history rides along on
// each generation prompt.
const recentTurnWindow = 12

// buildPrompt assembles the generation prompt for one user turn: the
// behavioral contract, the sealed bundle contents, a window of recent
// transcript, and the utterance. The agent's knowledge of the case is
// exactly the bundle; nothing else is ever included.
func buildPrompt(bundle *call.ContextBundle, recent []call.Turn, userText string) string {
	var b strings.Builder
	b.WriteString("You are a case status agent on a voice call about case ")
	b.WriteString(bundle.CaseRef)
	b.WriteString(".\n")
	b.WriteString("Answer only from the case context below. Do not promise or predict outcomes.\n")
	b.WriteString("Do not give advice beyond this case. Answer the question asked; do not ask questions or raise new topics.\n")

	writeSection(&b, "Case facts", bundle.Facts)
	writeSection(&b, "Document status", bundle.DocumentSummary)
	writeSection(&b, "Review notes", bundle.ReviewNotes)
	writeSection(&b, "Findings", bundle.Findings)
	writeSection(&b, "Applicable rules", bundle.RuleSummaries)

	if len(recent) > 0 {
		start := 0
		if len(recent) > recentTurnWindow {
			start = len(recent) - recentTurnWindow
		}
		b.WriteString("\nConversation so far:\n")
		for _, turn := range recent[start:] {
			b.WriteString(string(turn.Kind))
			b.WriteString(": ")
			b.WriteString(turn.Text)
			b.WriteByte('\n')
		}
	}

	b.WriteString("\nUser: ")
	b.WriteString(userText)
	b.WriteString("\nAgent:")
	return b.String()
}

func writeSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteByte('\n')
	b.WriteString(title)
	b.WriteString(":\n")
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteByte('\n')
	}
}

// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package guardrails

import (
	"strings"

	"github.com/casewire/casewire/lib/schema/call"
)

// Violation is one postflight rule hit.
type Violation struct {
	// Rule names the violated rule ("guarantee_phrasing",
	// "advice_phrasing", "denied_topic_drift", "unsolicited_question",
	// "topic_suggestion").
	Rule string

	// Matched is the offending fragment.
	Matched string
}

// PostDecision is the result of a postflight pass. When Sanitized is
// set, Text carries the safe replacement and the original agent text
// must not reach the user.
type PostDecision struct {
	Sanitized  bool
	Text       string
	Violations []Violation
}

// Postflight validates generated agent text before it is returned to
// the user. Any violation sanitizes the whole response: partial
// redaction of model output is not worth the risk of leaving a
// promise or an off-case remark behind.
func Postflight(agentText string, bundle *call.ContextBundle) PostDecision {
	lower := strings.ToLower(agentText)
	var violations []Violation

	if phrase, hit := matchAny(lower, guaranteePhrases); hit {
		violations = append(violations, Violation{Rule: "guarantee_phrasing", Matched: phrase})
	}

	if phrase, hit := matchAny(lower, advicePhrases); hit {
		violations = append(violations, Violation{Rule: "advice_phrasing", Matched: phrase})
	}

	if topic, hit := matchAny(lower, bundle.DeniedTopics); hit {
		violations = append(violations, Violation{Rule: "denied_topic_drift", Matched: topic})
	}

	if phrase, hit := matchAny(lower, suggestionPhrases); hit {
		violations = append(violations, Violation{Rule: "topic_suggestion", Matched: phrase})
	}

	// Reactive-only: the agent answers, it does not ask. Any
	// question mark in agent output is an unsolicited question —
	// clarification requests are the caller's job to re-prompt, not
	// the agent's to solicit.
	if index := strings.IndexByte(agentText, '?'); index >= 0 {
		violations = append(violations, Violation{
			Rule:    "unsolicited_question",
			Matched: questionFragment(agentText, index),
		})
	}

	if len(violations) > 0 {
		return PostDecision{Sanitized: true, Text: SanitizedMessage, Violations: violations}
	}
	return PostDecision{Text: agentText}
}

// questionFragment returns the sentence fragment ending at the
// question mark, for audit context. Bounded to keep audit rows small.
func questionFragment(text string, questionIndex int) string {
	start := questionIndex
	for start > 0 && text[start-1] != '.' && text[start-1] != '!' && text[start-1] != '\n' {
		start--
		if questionIndex-start > 120 {
			break
		}
	}
	return strings.TrimSpace(text[start : questionIndex+1])
}

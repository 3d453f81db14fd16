// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package guardrails

import (
	"strings"

	"github.com/casewire/casewire/lib/schema/call"
)

// Decision is the result of a preflight pass.
type Decision struct {
	// Outcome is allow, refuse, warn, or escalate.
	Outcome call.GuardrailOutcome

	// Rule names the rule that fired ("denied_topic",
	// "guarantee_request", "unrelated_advice", "escalation_signal",
	// "off_allow_list"). Empty for allow.
	Rule string

	// Matched is the phrase or topic that triggered the rule.
	Matched string

	// Message is the canned boundary message for refuse outcomes.
	Message string
}

// Preflight classifies raw user text against the bundle before any
// language model call. Check order matters: deny-list and prohibited
// categories refuse outright; escalation signals proceed flagged;
// text matching nothing on the allow list proceeds with a warning.
func Preflight(text string, bundle *call.ContextBundle) Decision {
	lower := strings.ToLower(text)

	if topic, hit := matchAny(lower, bundle.DeniedTopics); hit {
		return Decision{
			Outcome: call.OutcomeRefuse,
			Rule:    "denied_topic",
			Matched: topic,
			Message: RefusalMessage,
		}
	}

	if phrase, hit := matchAny(lower, guaranteeRequests); hit {
		return Decision{
			Outcome: call.OutcomeRefuse,
			Rule:    "guarantee_request",
			Matched: phrase,
			Message: RefusalMessage,
		}
	}

	if phrase, hit := matchAny(lower, unrelatedAdviceRequests); hit {
		return Decision{
			Outcome: call.OutcomeRefuse,
			Rule:    "unrelated_advice",
			Matched: phrase,
			Message: RefusalMessage,
		}
	}

	if phrase, hit := matchAny(lower, escalationSignals); hit {
		return Decision{
			Outcome: call.OutcomeEscalate,
			Rule:    "escalation_signal",
			Matched: phrase,
		}
	}

	if _, hit := matchAny(lower, bundle.AllowedTopics); !hit {
		return Decision{
			Outcome: call.OutcomeWarn,
			Rule:    "off_allow_list",
		}
	}

	return Decision{Outcome: call.OutcomeAllow}
}

// matchAny returns the first needle contained in the lowercased
// haystack. Needles are matched case-insensitively as substrings.
func matchAny(lowerHaystack string, needles []string) (string, bool) {
	for _, needle := range needles {
		if needle == "" {
			continue
		}
		if strings.Contains(lowerHaystack, strings.ToLower(needle)) {
			return needle, true
		}
	}
	return "", false
}

// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package guardrails

// Fixed prohibited categories. These apply to every session on top of
// the bundle's deny list; configuration may extend the deny list but
// never shrinks these.

// guaranteeRequests are user phrasings that ask for an outcome
// guarantee. The agent reports case status; it never predicts
// decisions.
var guaranteeRequests = []string{
	"guarantee",
	"promise me",
	"will i definitely",
	"will it definitely",
	"100% sure",
	"assure me",
	"certain to be approved",
}

// unrelatedAdviceRequests are user phrasings that ask for advice
// outside the session's case. One session, one case.
var unrelatedAdviceRequests = []string{
	"different visa",
	"another visa",
	"other visa",
	"switch to",
	"a different case",
	"someone else's case",
	"my friend's",
	"my wife's case",
	"my husband's case",
}

// escalationSignals are user phrasings that proceed but flag the
// session for human follow-up.
var escalationSignals = []string{
	"speak to a human",
	"talk to a person",
	"speak to my lawyer",
	"file a complaint",
	"legal action",
	"this is urgent",
	"emergency",
}

// guaranteePhrases are agent phrasings that promise an outcome.
var guaranteePhrases = []string{
	"i guarantee",
	"guaranteed",
	"i promise",
	"will definitely be approved",
	"certain to succeed",
	"100% certain",
	"cannot be refused",
}

// advicePhrases are agent phrasings that cross from reporting case
// status into giving advice.
var advicePhrases = []string{
	"i advise you to",
	"my advice",
	"you should switch",
	"you should apply for a different",
	"i recommend applying",
	"you would be better off",
}

// suggestionPhrases are agent phrasings that introduce topics the
// user never asked about, violating the reactive-only contract.
var suggestionPhrases = []string{
	"would you like to discuss",
	"have you considered",
	"you might also want",
	"shall we talk about",
	"another thing worth",
	"while we're at it",
}

// baseDeniedTopics are denied in every session regardless of the
// case's own deny list. Service configuration may extend this list.
var baseDeniedTopics = []string{
	"other applicants",
	"staff contact details",
	"internal review process",
}

// BaseDeniedTopics returns a copy of the always-denied topic list for
// the sealer to fold into every bundle.
func BaseDeniedTopics() []string {
	topics := make([]string, len(baseDeniedTopics))
	copy(topics, baseDeniedTopics)
	return topics
}

// RefusalMessage is the canned boundary message returned for a
// preflight refusal. No model call is made.
const RefusalMessage = "I can only discuss this specific case with you. " +
	"For anything outside it, please contact your case worker."

// SanitizedMessage replaces an agent response that violated a
// postflight rule.
const SanitizedMessage = "Let me keep to your case. I can tell you " +
	"about your current application's status, the documents involved, " +
	"and the requirements that apply to it."

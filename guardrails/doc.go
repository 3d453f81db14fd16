// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package guardrails validates conversation content against a
// session's sealed context bundle.
//
// There are two independent pipelines, not one function with a flag:
//
//   - Preflight runs on raw user text before any language model call.
//     Its outcomes are allow, refuse (canned boundary message, no
//     model call), warn (proceed but log), and escalate (proceed but
//     flag the session). Refusing up front avoids spending an
//     external call on a request that was always going to be refused.
//
//   - Postflight runs on generated agent text before it reaches the
//     user. It catches what preflight cannot: agent drift. Violations
//     are sanitized — the response is replaced with a safe template,
//     never forwarded verbatim.
package guardrails

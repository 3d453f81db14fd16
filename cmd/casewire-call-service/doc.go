// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

// Command casewire-call-service runs the case-scoped call session
// engine behind a Unix socket CBOR API.
//
// Actions:
//
//	create      register a session for a case (state created)
//	prepare     seal the context bundle (created -> ready)
//	reseal      rebuild the bundle while still ready
//	start       begin the call and arm the timebox (ready -> in_progress)
//	turn        submit one user utterance
//	end         complete the call (in_progress -> completed), returns the summary
//	terminate   force-end from any non-terminal state
//	session     fetch session state
//	transcript  fetch the ledger (include_cold for archived turns)
//	audit       fetch the audit log
//	summary     fetch the post-call summary
//	bundle      fetch a sealed bundle by version
//	delete      soft-delete a terminal session
//	status      service liveness and counters
package main

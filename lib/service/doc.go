// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package service implements the caller-facing transport for the call
// service: a CBOR request/response protocol over a Unix socket.
//
// Each connection carries exactly one request and one response. The
// request is a single CBOR map with an "action" field for routing
// plus action-specific fields; the response is an envelope of
// {ok, error, data}. CBOR is self-delimiting, so no framing protocol
// is needed.
package service

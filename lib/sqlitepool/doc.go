// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool wraps zombiezen.com/go/sqlite's connection pool
// with Casewire-standard pragmas (WAL, NORMAL synchronous, busy
// timeout) and an OnConnect hook for schema setup.
//
// The session store keeps every session's turns, audit events, and
// summary in one SQLite database. WAL mode gives concurrent readers
// with a single writer, which matches the engine's write discipline:
// per-session revision CAS for session rows, append-only everywhere
// else.
package sqlitepool

// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package upstream implements the HTTP clients for the engine's
// external collaborators: the speech service (transcription and
// synthesis), the language model service, and the case management
// system (case directory, rule book, and timeline).
//
// All three speak JSON over HTTP with bearer authentication. The
// engine never retries here; its own retry loop wraps every call, so
// these clients make exactly one attempt and report failures
// verbatim.
package upstream

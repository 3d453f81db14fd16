// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealer assembles the sealed context bundle for a call
// session.
//
// A bundle is a read-only snapshot of one case: facts, document
// status, review notes, prior findings, applicable rule summaries,
// and the topic allow/deny lists. The sealer pulls everything from
// external collaborators, sorts every list into canonical order,
// encodes the result with deterministic CBOR, and hashes it with a
// domain-separated BLAKE3 keyed hash. Sealing the same upstream data
// twice produces byte-identical encodings and therefore the same
// hash; any upstream change produces a new hash. Bundles are never
// patched — re-sealing yields a new version.
package sealer

// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Casewire's standard CBOR encoding.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2): the same
// logical value always produces identical bytes. The context sealer
// depends on this — a bundle's content hash is computed over its
// encoded form, and audit replay must be able to re-derive the exact
// hash that was in force for any turn. The socket protocol and the
// snapshot columns in the session store use the same configuration.
package codec

// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package sealer

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 digest.
type Hash [32]byte

// domainKey is a 32-byte key for BLAKE3 keyed hashing. Domain
// separation guarantees that a bundle and a prompt with identical
// bytes still hash differently. The byte values are the ASCII domain
// name zero-padded to 32 bytes, so the keys stay readable in hex
// dumps; BLAKE3 keyed mode treats them as opaque.
type domainKey [32]byte

var (
	bundleDomainKey = domainKey{
		'c', 'a', 's', 'e', 'w', 'i', 'r', 'e', '.', 'b', 'u', 'n', 'd', 'l', 'e', 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	promptDomainKey = domainKey{
		'c', 'a', 's', 'e', 'w', 'i', 'r', 'e', '.', 'p', 'r', 'o', 'm', 'p', 't', 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// HashBundle computes the bundle-domain hash of a canonical bundle
// encoding. This is the hash recorded on the session and replayed
// during audits.
func HashBundle(encoded []byte) Hash {
	return keyedHash(bundleDomainKey, encoded)
}

// HashPrompt computes the prompt-domain hash of a language model
// prompt. Turns store this hash instead of the prompt text unless
// retention was requested or a guardrail fired.
func HashPrompt(prompt []byte) Hash {
	return keyedHash(promptDomainKey, prompt)
}

// FormatHash returns the hex encoding of a hash, the canonical form
// used in session records, logs, and the socket API.
func FormatHash(hash Hash) string {
	return hex.EncodeToString(hash[:])
}

// keyedHash computes a BLAKE3 keyed hash with the given domain key.
func keyedHash(key domainKey, data []byte) Hash {
	// NewKeyed only fails on a wrong key length, which the fixed-size
	// type rules out.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("sealer: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}

// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the call service configuration.
//
// Configuration comes from a single YAML file passed via --config.
// There are no fallbacks and no automatic discovery: a compliance
// subsystem needs deterministic, auditable configuration with no
// hidden overrides. Every duration that shapes a call (the timebox,
// the warning offsets, the silence window) is validated on load so a
// misconfigured service refuses to start rather than running calls
// with a zero deadline.
package config

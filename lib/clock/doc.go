// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for the call session engine.
//
// The timebox scheduler, silence monitor, retention sweeps, and retry
// backoff all run off an injected Clock instead of the time package.
// Production code uses Real(); tests use Fake() and advance time
// deterministically, so a "session completes at exactly T+duration"
// assertion never depends on wall-clock sleeps.
package clock

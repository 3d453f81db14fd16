// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package callsession

import (
	"context"
	"fmt"

	"github.com/casewire/casewire/lib/schema/call"
)

// Transcriber converts user audio to text. Implementations wrap the
// external speech-to-text service.
type Transcriber interface {
	// Transcribe returns the recognized text and a confidence in
	// [0, 1].
	Transcribe(ctx context.Context, audio []byte) (text string, confidence float64, err error)
}

// Synthesizer converts agent text to audio. The engine stores only
// the opaque reference the service returns, never audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (audioRef string, err error)
}

// Generator produces agent text from a prompt. Implementations wrap
// the external language model service.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Timeline is the case-timeline collaborator that receives post-call
// summaries. A nil return acknowledges receipt; anything else leaves
// the summary unattached for the retry sweep.
type Timeline interface {
	AttachSummary(ctx context.Context, caseRef string, summary *call.CallSummary) error
}

// withRetry invokes fn up to the configured number of attempts,
// sleeping on the engine clock between attempts with a doubling
// backoff. The returned error wraps ErrUpstream once all attempts are
// spent; a cancelled context aborts the backoff wait immediately.
func (e *Engine) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	backoff := e.options.UpstreamBackoff
	var lastErr error
	for attempt := 1; attempt <= e.options.UpstreamAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == e.options.UpstreamAttempts {
			break
		}
		e.logger.Warn("upstream call failed, retrying",
			"op", op,
			"attempt", attempt,
			"backoff", backoff,
			"error", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.clock.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("%w: %s after %d attempts: %v",
		ErrUpstream, op, e.options.UpstreamAttempts, lastErr)
}

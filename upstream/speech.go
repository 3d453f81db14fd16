// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package upstream

import "context"

// Speech is the client for the speech service. It implements the
// engine's Transcriber and Synthesizer interfaces.
type Speech struct {
	client client
}

// NewSpeech creates a speech client for the given base URL.
func NewSpeech(baseURL, authToken string) *Speech {
	return &Speech{client: newClient(baseURL, authToken)}
}

// Transcribe converts caller audio to text. The audio payload is
// base64 in the JSON body; the service returns the recognized text
// and its confidence.
func (s *Speech) Transcribe(ctx context.Context, audio []byte) (string, float64, error) {
	request := struct {
		Audio []byte `json:"audio"`
	}{Audio: audio}
	var response struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
	if err := s.client.postJSON(ctx, "/v1/transcribe", request, &response); err != nil {
		return "", 0, err
	}
	return response.Text, response.Confidence, nil
}

// Synthesize converts agent text to speech. The service stores the
// audio and returns an opaque reference; audio bytes never pass
// through the engine.
func (s *Speech) Synthesize(ctx context.Context, text string) (string, error) {
	request := struct {
		Text string `json:"text"`
	}{Text: text}
	var response struct {
		AudioRef string `json:"audio_ref"`
	}
	if err := s.client.postJSON(ctx, "/v1/synthesize", request, &response); err != nil {
		return "", err
	}
	return response.AudioRef, nil
}

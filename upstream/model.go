// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package upstream

import "context"

// Model is the client for the language model service. It implements
// the engine's Generator interface.
type Model struct {
	client client
}

// NewModel creates a language model client for the given base URL.
func NewModel(baseURL, authToken string) *Model {
	return &Model{client: newClient(baseURL, authToken)}
}

// Generate sends one prompt and returns the generated text.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	request := struct {
		Prompt string `json:"prompt"`
	}{Prompt: prompt}
	var response struct {
		Text string `json:"text"`
	}
	if err := m.client.postJSON(ctx, "/v1/generate", request, &response); err != nil {
		return "", err
	}
	return response.Text, nil
}

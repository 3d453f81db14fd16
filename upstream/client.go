// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// client is the shared HTTP plumbing for one upstream base URL.
type client struct {
	httpClient *http.Client
	baseURL    string
	authToken  string
}

func newClient(baseURL, authToken string) client {
	return client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		authToken:  authToken,
	}
}

// postJSON sends a JSON request body and decodes a JSON response into
// result. result may be nil when only the status matters.
func (c client) postJSON(ctx context.Context, path string, request, result any) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("upstream: encoding request for %s: %w", path, err)
	}
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("upstream: building request for %s: %w", path, err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	return c.do(httpRequest, result)
}

// getJSON fetches path with optional query parameters and decodes the
// JSON response into result.
func (c client) getJSON(ctx context.Context, path string, query url.Values, result any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("upstream: building request for %s: %w", path, err)
	}
	return c.do(httpRequest, result)
}

// do executes the request and decodes the response. Non-2xx responses
// become errors carrying a bounded body snippet for diagnostics.
func (c client) do(httpRequest *http.Request, result any) error {
	if c.authToken != "" {
		httpRequest.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	httpRequest.Header.Set("Accept", "application/json")

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return fmt.Errorf("upstream: %s %s: %w", httpRequest.Method, httpRequest.URL.Path, err)
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(httpResponse.Body, 512))
		return fmt.Errorf("upstream: %s %s: status %d: %s",
			httpRequest.Method, httpRequest.URL.Path, httpResponse.StatusCode,
			strings.TrimSpace(string(snippet)))
	}
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(httpResponse.Body).Decode(result); err != nil {
		return fmt.Errorf("upstream: decoding response from %s: %w", httpRequest.URL.Path, err)
	}
	return nil
}

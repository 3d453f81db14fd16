// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"net"

	"github.com/casewire/casewire/lib/codec"
)

// Client calls socket actions. One connection per call, matching the
// server's one-request-per-connection protocol.
type Client struct {
	socketPath string
}

// NewClient returns a client for the server at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Call sends an action request and decodes the response's data field
// into result. The params map must not contain an "action" key; the
// client adds it. Pass a nil result to discard the data field.
//
// A server-side failure response is returned as an error prefixed
// with the action name.
func (c *Client) Call(ctx context.Context, action string, params map[string]any, result any) error {
	request := make(map[string]any, len(params)+1)
	for key, value := range params {
		request[key] = value
	}
	request["action"] = action

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return fmt.Errorf("sending %s request: %w", action, err)
	}

	var response Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		return fmt.Errorf("reading %s response: %w", action, err)
	}

	if !response.OK {
		return fmt.Errorf("%s: %s", action, response.Error)
	}

	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding %s response data: %w", action, err)
		}
	}
	return nil
}

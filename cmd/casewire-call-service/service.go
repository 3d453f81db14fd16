// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/casewire/casewire/callsession"
	"github.com/casewire/casewire/lib/clock"
	"github.com/casewire/casewire/lib/codec"
	"github.com/casewire/casewire/lib/schema/call"
	"github.com/casewire/casewire/lib/service"
)

// CallService binds the session engine to the socket API.
type CallService struct {
	engine *callsession.Engine
	clock  clock.Clock
	logger *slog.Logger

	// Turn counters for the status action, updated lock-free by
	// concurrent turn handlers.
	turnsProcessed atomic.Uint64
	turnsRefused   atomic.Uint64
}

// registerActions wires every socket action to the engine.
func (s *CallService) registerActions(server *service.SocketServer) {
	server.Handle("create", s.handleCreate)
	server.Handle("prepare", s.handlePrepare)
	server.Handle("reseal", s.handleReseal)
	server.Handle("start", s.handleStart)
	server.Handle("turn", s.handleTurn)
	server.Handle("end", s.handleEnd)
	server.Handle("terminate", s.handleTerminate)
	server.Handle("session", s.handleSession)
	server.Handle("transcript", s.handleTranscript)
	server.Handle("audit", s.handleAudit)
	server.Handle("summary", s.handleSummary)
	server.Handle("bundle", s.handleBundle)
	server.Handle("delete", s.handleDelete)
	server.Handle("status", s.handleStatus)
}

// sessionIDParams covers every action addressed by bare session ID.
type sessionIDParams struct {
	SessionID string `cbor:"session_id"`
}

func decodeParams[T any](raw []byte) (T, error) {
	var params T
	if err := codec.Unmarshal(raw, &params); err != nil {
		return params, fmt.Errorf("invalid parameters: %w", err)
	}
	return params, nil
}

func (s *CallService) handleCreate(ctx context.Context, raw []byte) (any, error) {
	params, err := decodeParams[struct {
		CaseRef   string `cbor:"case_ref"`
		Requester string `cbor:"requester"`
	}](raw)
	if err != nil {
		return nil, err
	}
	return s.engine.CreateSession(ctx, params.CaseRef, params.Requester)
}

func (s *CallService) handlePrepare(ctx context.Context, raw []byte) (any, error) {
	params, err := decodeParams[sessionIDParams](raw)
	if err != nil {
		return nil, err
	}
	return s.engine.Prepare(ctx, params.SessionID)
}

func (s *CallService) handleReseal(ctx context.Context, raw []byte) (any, error) {
	params, err := decodeParams[sessionIDParams](raw)
	if err != nil {
		return nil, err
	}
	return s.engine.Reseal(ctx, params.SessionID)
}

func (s *CallService) handleStart(ctx context.Context, raw []byte) (any, error) {
	params, err := decodeParams[sessionIDParams](raw)
	if err != nil {
		return nil, err
	}
	return s.engine.Start(ctx, params.SessionID)
}

// turnResponse is the wire shape of one processed turn.
type turnResponse struct {
	UserText   string   `cbor:"user_text"`
	Confidence *float64 `cbor:"confidence,omitempty"`
	Outcome    string   `cbor:"outcome"`
	AgentText  string   `cbor:"agent_text"`
	Sanitized  bool     `cbor:"sanitized,omitempty"`
	AudioRef   string   `cbor:"audio_ref,omitempty"`
	RemainingS int64    `cbor:"remaining_seconds"`
	Warning    string   `cbor:"warning"`
}

func (s *CallService) handleTurn(ctx context.Context, raw []byte) (any, error) {
	params, err := decodeParams[struct {
		SessionID string `cbor:"session_id"`
		Text      string `cbor:"text"`
		Audio     []byte `cbor:"audio"`
	}](raw)
	if err != nil {
		return nil, err
	}
	result, err := s.engine.SubmitTurn(ctx, params.SessionID, callsession.TurnInput{
		Text:  params.Text,
		Audio: params.Audio,
	})
	if err != nil {
		return nil, err
	}
	s.turnsProcessed.Add(1)
	if result.Outcome == call.OutcomeRefuse {
		s.turnsRefused.Add(1)
	}
	return turnResponse{
		UserText:   result.UserText,
		Confidence: result.Confidence,
		Outcome:    string(result.Outcome),
		AgentText:  result.AgentText,
		Sanitized:  result.Sanitized,
		AudioRef:   result.AudioRef,
		RemainingS: int64(result.Remaining / time.Second),
		Warning:    string(result.Warning),
	}, nil
}

// endResponse pairs the completed session with its post-call summary.
// Summary is null when generation was deferred to the retry sweep.
type endResponse struct {
	Session *call.Session     `cbor:"session"`
	Summary *call.CallSummary `cbor:"summary,omitempty"`
}

func (s *CallService) handleEnd(ctx context.Context, raw []byte) (any, error) {
	params, err := decodeParams[struct {
		SessionID string `cbor:"session_id"`
		Reason    string `cbor:"reason"`
	}](raw)
	if err != nil {
		return nil, err
	}
	session, summary, err := s.engine.End(ctx, params.SessionID, params.Reason)
	if err != nil {
		return nil, err
	}
	return endResponse{Session: session, Summary: summary}, nil
}

func (s *CallService) handleTerminate(ctx context.Context, raw []byte) (any, error) {
	params, err := decodeParams[struct {
		SessionID string `cbor:"session_id"`
		Reason    string `cbor:"reason"`
		Actor     string `cbor:"actor"`
	}](raw)
	if err != nil {
		return nil, err
	}
	return s.engine.Terminate(ctx, params.SessionID, params.Reason, params.Actor)
}

func (s *CallService) handleSession(ctx context.Context, raw []byte) (any, error) {
	params, err := decodeParams[sessionIDParams](raw)
	if err != nil {
		return nil, err
	}
	return s.engine.Session(ctx, params.SessionID)
}

func (s *CallService) handleTranscript(ctx context.Context, raw []byte) (any, error) {
	params, err := decodeParams[struct {
		SessionID   string `cbor:"session_id"`
		IncludeCold bool   `cbor:"include_cold"`
	}](raw)
	if err != nil {
		return nil, err
	}
	turns, err := s.engine.Transcript(ctx, params.SessionID, params.IncludeCold)
	if err != nil {
		return nil, err
	}
	return struct {
		Turns []call.Turn `cbor:"turns"`
	}{Turns: turns}, nil
}

func (s *CallService) handleAudit(ctx context.Context, raw []byte) (any, error) {
	params, err := decodeParams[sessionIDParams](raw)
	if err != nil {
		return nil, err
	}
	events, err := s.engine.AuditLog(ctx, params.SessionID)
	if err != nil {
		return nil, err
	}
	return struct {
		Events []call.AuditEvent `cbor:"events"`
	}{Events: events}, nil
}

func (s *CallService) handleSummary(ctx context.Context, raw []byte) (any, error) {
	params, err := decodeParams[sessionIDParams](raw)
	if err != nil {
		return nil, err
	}
	return s.engine.Summary(ctx, params.SessionID)
}

func (s *CallService) handleBundle(ctx context.Context, raw []byte) (any, error) {
	params, err := decodeParams[struct {
		SessionID string `cbor:"session_id"`
		Version   int64  `cbor:"version"`
	}](raw)
	if err != nil {
		return nil, err
	}
	bundle, hash, err := s.engine.Bundle(ctx, params.SessionID, params.Version)
	if err != nil {
		return nil, err
	}
	return struct {
		Bundle *call.ContextBundle `cbor:"bundle"`
		Hash   string              `cbor:"hash"`
	}{Bundle: bundle, Hash: hash}, nil
}

func (s *CallService) handleDelete(ctx context.Context, raw []byte) (any, error) {
	params, err := decodeParams[sessionIDParams](raw)
	if err != nil {
		return nil, err
	}
	return nil, s.engine.Delete(ctx, params.SessionID)
}

// statusResponse carries aggregate counters only; no session or case
// identifiers.
type statusResponse struct {
	Time           time.Time `cbor:"time"`
	TurnsProcessed uint64    `cbor:"turns_processed"`
	TurnsRefused   uint64    `cbor:"turns_refused"`
}

func (s *CallService) handleStatus(ctx context.Context, raw []byte) (any, error) {
	return statusResponse{
		Time:           s.clock.Now(),
		TurnsProcessed: s.turnsProcessed.Load(),
		TurnsRefused:   s.turnsRefused.Load(),
	}, nil
}

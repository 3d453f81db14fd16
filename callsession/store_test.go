// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package callsession

import (
	"context"
	"errors"
	"testing"

	"zombiezen.com/go/sqlite"

	"github.com/casewire/casewire/lib/schema/call"
)

func TestUpdateSessionCASStaleRevisionConflicts(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	session := f.startedSession()

	// Two readers hold the same snapshot.
	first := f.mustSession(session.ID)
	second := f.mustSession(session.ID)

	first.WarningsCount = 1
	err := f.store.withTx(ctx, func(conn *sqlite.Conn) error {
		return updateSessionCAS(conn, first)
	})
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	if first.Revision != second.Revision+1 {
		t.Errorf("first.Revision = %d, want %d", first.Revision, second.Revision+1)
	}

	// The second writer's snapshot is now stale.
	second.RefusalsCount = 1
	err = f.store.withTx(ctx, func(conn *sqlite.Conn) error {
		return updateSessionCAS(conn, second)
	})
	if !errors.Is(err, ErrRevisionConflict) {
		t.Fatalf("stale update error = %v, want ErrRevisionConflict", err)
	}

	// The first writer's change survived untouched.
	got := f.mustSession(session.ID)
	if got.WarningsCount != 1 || got.RefusalsCount != 0 {
		t.Errorf("session = warnings %d refusals %d, want the first write only",
			got.WarningsCount, got.RefusalsCount)
	}
}

func TestUpdateSessionCASMissingSession(t *testing.T) {
	f := newFixture(t, Options{})

	ghost := &call.Session{ID: "call-ghost", State: call.StateCreated, Revision: 1}
	err := f.store.withTx(context.Background(), func(conn *sqlite.Conn) error {
		return updateSessionCAS(conn, ghost)
	})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("update of missing session = %v, want ErrSessionNotFound", err)
	}
}

func TestUpdateSessionCASSoftDeletedSession(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	session := f.startedSession()

	if _, _, err := f.engine.End(ctx, session.ID, ""); err != nil {
		t.Fatalf("End: %v", err)
	}
	ended := f.mustSession(session.ID)
	if err := f.engine.Delete(ctx, session.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	err := f.store.withTx(ctx, func(conn *sqlite.Conn) error {
		return updateSessionCAS(conn, ended)
	})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("update of soft-deleted session = %v, want ErrSessionNotFound", err)
	}
}

func TestAuditSequenceIsContiguous(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	session := f.startedSession()

	for n := 0; n < 3; n++ {
		err := f.store.withTx(ctx, func(conn *sqlite.Conn) error {
			return appendAudit(conn, &call.AuditEvent{
				SessionID:   session.ID,
				Kind:        call.AuditWarning,
				Description: "off-topic question",
				CreatedAt:   f.clock.Now(),
			})
		})
		if err != nil {
			t.Fatalf("appendAudit: %v", err)
		}
	}

	var events []call.AuditEvent
	err := f.store.withConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		events, err = listAudit(conn, session.ID)
		return err
	})
	if err != nil {
		t.Fatalf("listAudit: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	for i, event := range events {
		if event.Seq != int64(i)+1 {
			t.Errorf("event %d seq = %d, want %d", i, event.Seq, i+1)
		}
	}
}

func TestGetBundleMissingVersion(t *testing.T) {
	f := newFixture(t, Options{})
	session := f.startedSession()

	err := f.store.withConn(context.Background(), func(conn *sqlite.Conn) error {
		_, _, err := getBundle(conn, session.ID, 99)
		return err
	})
	if !errors.Is(err, ErrBundleNotFound) {
		t.Errorf("missing bundle version = %v, want ErrBundleNotFound", err)
	}
}

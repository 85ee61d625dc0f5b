package indexdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"clawoffice.ai/internal/sim/events"
	"clawoffice.ai/internal/sim/geom"
	"clawoffice.ai/internal/sim/routes"
	"clawoffice.ai/internal/sim/tuning"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqMovement}

	s.Movement(events.Movement{RequestID: "r2"})
	s.Presence(events.Presence{Agent: "pm-agent"})

	st := s.Stats()
	if st.DropMovementTotal != 1 || st.DropPresenceTotal != 1 {
		t.Fatalf("drops=%+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_MovementsAndPresence(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.Movement(events.Movement{At: at, RequestID: "r1", From: "CEO", To: "Head of Tech (CTO)", Type: "delegation", Priority: "medium", Status: events.MovementQueued})
	s.Movement(events.Movement{At: at.Add(time.Second), RequestID: "r1", From: "CEO", To: "Head of Tech (CTO)", Type: "delegation", Priority: "medium", Status: events.MovementCompleted, RouteID: "ceo_to_cto", Kind: "conversation"})
	s.Movement(events.Movement{At: at.Add(2 * time.Second), RequestID: "r2", From: "pm-agent", To: "Exit Door", Type: "exit", Priority: "high", Status: events.MovementQueued})
	s.Presence(events.Presence{At: at, Agent: "pm-agent", Change: events.PresenceLeft, LastSeen: at.Add(-6 * time.Minute)})

	ctx := context.Background()
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	all, err := s.RecentMovements(ctx, "", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(all) != 3 || all[0].RequestID != "r2" {
		t.Fatalf("recent=%+v", all)
	}
	ceo, err := s.RecentMovements(ctx, "CEO", 1)
	if err != nil {
		t.Fatalf("recent CEO: %v", err)
	}
	if len(ceo) != 1 || ceo[0].Status != events.MovementCompleted || ceo[0].RouteID != "ceo_to_cto" || !ceo[0].At.Equal(at.Add(time.Second)) {
		t.Fatalf("ceo=%+v", ceo)
	}

	hist, err := s.PresenceHistory(ctx, "pm-agent")
	if err != nil {
		t.Fatalf("presence: %v", err)
	}
	if len(hist) != 1 || hist[0].Change != events.PresenceLeft || !hist[0].LastSeen.Equal(at.Add(-6*time.Minute)) {
		t.Fatalf("hist=%+v", hist)
	}
}

func TestSQLiteIndex_UpsertCatalogs(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	cat, errs := routes.NewCatalog([]routes.Route{{
		ID: "a_to_b", Name: "A → B", StartName: "A", EndName: "B",
		Points: []geom.Vec2{{X: 0, Z: 0}, {X: 1, Z: 0}},
	}}, nil)
	if len(errs) != 0 {
		t.Fatalf("catalog: %v", errs)
	}
	if err := s.UpsertCatalogs(cat, tuning.Defaults()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	d, err := s.CatalogDigest(context.Background(), "routes")
	if err != nil || d != cat.Digest() {
		t.Fatalf("digest=%q err=%v want %q", d, err, cat.Digest())
	}
	if d, _ := s.CatalogDigest(context.Background(), "missing"); d != "" {
		t.Fatalf("missing digest=%q", d)
	}
}

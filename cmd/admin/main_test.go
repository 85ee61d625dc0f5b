package main

import (
	"testing"

	"clawoffice.ai/internal/sim/events"
)

func TestFilterMovements(t *testing.T) {
	ms := []events.Movement{
		{From: "orchestrator", To: "CTO", Status: events.MovementQueued},
		{From: "orchestrator", To: "CTO", Status: events.MovementCompleted},
		{From: "CEO", To: "CFO", Status: events.MovementDropped},
	}

	if got := filterMovements(ms, "", ""); len(got) != 3 {
		t.Fatalf("no filter: %d", len(got))
	}
	if got := filterMovements(ms, " cto ", ""); len(got) != 2 {
		t.Fatalf("agent filter: %+v", got)
	}
	got := filterMovements(ms, "", "Completed")
	if len(got) != 1 || got[0].To != "CTO" {
		t.Fatalf("status filter: %+v", got)
	}
	if got := filterMovements(ms, "cfo", "completed"); len(got) != 0 {
		t.Fatalf("combined filter: %+v", got)
	}
	if ms[0].Status != events.MovementQueued {
		t.Fatalf("input mutated")
	}
}

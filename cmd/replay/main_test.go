package main

import (
	"bytes"
	"log"
	"strings"
	"testing"
	"time"

	"clawoffice.ai/internal/sim/dispatch"
	"clawoffice.ai/internal/sim/events"
	"clawoffice.ai/internal/sim/layout"
	"clawoffice.ai/internal/sim/office"
	"clawoffice.ai/internal/sim/tuning"
)

// record runs a stepped office over evs (injected at the given frame) and
// returns everything it emitted.
func record(t *testing.T, evs map[int]dispatch.Interaction) []events.Movement {
	t.Helper()
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := &events.Recorder{}
	tune := tuning.Defaults()
	o, err := office.New(office.Config{
		Layout: layout.Defaults(),
		Tuning: tune,
		Sink:   rec,
		Logger: log.New(&bytes.Buffer{}, "", 0),
		Clock:  func() time.Time { return clock },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	frame := tune.FrameInterval()
	for i := 0; i < 20000; i++ {
		if ev, ok := evs[i]; ok {
			ev.Timestamp = clock
			if _, err := o.InteractOnce(ev); err != nil {
				t.Fatalf("InteractOnce: %v", err)
			}
		}
		if i > 200 && !o.Busy() {
			break
		}
		clock = clock.Add(frame)
		o.StepOnce(frame)
	}
	return rec.Movements
}

func TestReplayMatchesRecordedRun(t *testing.T) {
	logged := record(t, map[int]dispatch.Interaction{
		0:  {From: "orchestrator", To: "CTO", Type: "delegation"},
		3:  {From: "CTO", To: "CEO", Type: "response"},
		10: {From: "CEO", To: "CTO", Type: "delegation"},
	})
	if len(outcomes(logged)) != 3 {
		t.Fatalf("recorded outcomes: %+v", outcomes(logged))
	}

	res, err := replay(layout.Defaults(), tuning.Defaults(), nil, logged, 100000)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Requests != 3 || res.Outcomes != 3 {
		t.Fatalf("result: %+v", res)
	}
}

func TestReplayDetectsDivergence(t *testing.T) {
	logged := record(t, map[int]dispatch.Interaction{
		0: {From: "orchestrator", To: "CTO", Type: "delegation"},
	})
	for i := range logged {
		if logged[i].Status == events.MovementCompleted {
			logged[i].Status = events.MovementSkipped
		}
	}
	_, err := replay(layout.Defaults(), tuning.Defaults(), nil, logged, 100000)
	if err == nil || !strings.Contains(err.Error(), "diverged") {
		t.Fatalf("expected divergence, got %v", err)
	}
}

func TestReplayNeedsQueuedRecords(t *testing.T) {
	_, err := replay(layout.Defaults(), tuning.Defaults(), nil, []events.Movement{{Status: events.MovementCompleted}}, 10)
	if err == nil {
		t.Fatalf("expected error")
	}
}

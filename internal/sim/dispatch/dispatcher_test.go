package dispatch

import (
	"bytes"
	"log"
	"strings"
	"testing"
	"time"

	"clawoffice.ai/internal/sim/events"
	"clawoffice.ai/internal/sim/geom"
	"clawoffice.ai/internal/sim/layout"
	"clawoffice.ai/internal/sim/roster"
	"clawoffice.ai/internal/sim/routes"
)

type stubMover struct {
	busy  bool
	calls []routes.Kind
	ids   []string
	order *[]string // shared across movers, in Execute order
}

func (m *stubMover) Execute(r routes.Route, kind routes.Kind) bool {
	if m.busy {
		return false
	}
	m.busy = true
	m.calls = append(m.calls, kind)
	m.ids = append(m.ids, r.ID)
	if m.order != nil {
		*m.order = append(*m.order, r.ID)
	}
	return true
}

func (m *stubMover) Animating() bool { return m.busy }

type stubEnv struct {
	cat     *routes.Catalog
	movers  map[string]*stubMover
	present map[string]bool
	spawned []string
	exited  []string
	order   []string
}

func (e *stubEnv) Catalog() *routes.Catalog { return e.cat }

func (e *stubEnv) Mover(name string) (Mover, bool) {
	m, ok := e.movers[name]
	if !ok {
		return nil, false
	}
	return m, true
}

func (e *stubEnv) IsPresent(name string) bool { return e.present[name] }

func (e *stubEnv) Spawn(name string) {
	e.present[name] = true
	e.spawned = append(e.spawned, name)
}

func (e *stubEnv) Exited(name string) {
	e.present[name] = false
	e.exited = append(e.exited, name)
}

func route(id, from, to string) routes.Route {
	return routes.Route{ID: id, StartName: from, EndName: to, Points: []geom.Vec2{{X: 0, Z: 0}, {X: 1, Z: 0}}}
}

const (
	cto   = "Head of Tech (CTO)"
	coo   = "Head of Biz (COO)"
	ceo   = "CEO"
	door  = "Exit Door"
	pm    = "pm-agent"
	coder = "codeur-agent"
)

func newTestDispatcher(t *testing.T, cfg Config) (*Dispatcher, *stubEnv, *events.Recorder, *bytes.Buffer) {
	t.Helper()
	names := roster.New(layout.Defaults())
	seat := route("ceo_to_warroom_chair1", ceo, roster.ChairName(0))
	seat.IsWarRoom = true
	idx := 0
	seat.ChairIndex = &idx
	cat, errs := routes.NewCatalog([]routes.Route{
		route("ceo_to_cto", ceo, cto),
		route("cto_to_ceo", cto, ceo),
		route("ceo_to_coo", ceo, coo),
		route("cto_to_codeur", cto, coder),
		route("pm_to_door", pm, door),
		route("door_to_pm", door, pm),
		seat,
	}, names)
	if len(errs) != 0 {
		t.Fatalf("catalog: %v", errs)
	}
	env := &stubEnv{
		cat:     cat,
		movers:  map[string]*stubMover{},
		present: map[string]bool{},
	}
	for _, n := range []string{ceo, cto, coo, pm, coder} {
		env.movers[n] = &stubMover{order: &env.order}
		env.present[n] = true
	}
	rec := &events.Recorder{}
	var buf bytes.Buffer
	d := New(cfg, env, names, rec, log.New(&buf, "", 0))
	return d, env, rec, &buf
}

func TestQueueOrdering(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t, Config{InterDeparture: time.Second})
	base := time.Unix(1000, 0)
	mk := func(from string, p Priority, at time.Time) {
		if _, err := d.Enqueue(Request{From: from, To: ceo, Priority: p, Timestamp: at}); err != nil {
			t.Fatal(err)
		}
	}
	mk("low-1", PriorityLow, base.Add(1*time.Second))
	mk("high-3", PriorityHigh, base.Add(3*time.Second))
	mk("medium-2", PriorityMedium, base.Add(2*time.Second))
	mk("high-2", PriorityHigh, base.Add(2*time.Second))
	mk("high-2b", PriorityHigh, base.Add(2*time.Second))

	got := d.Status().PendingInteractions
	want := []string{"high-2", "high-2b", "high-3", "medium-2", "low-1"}
	if len(got) != len(want) {
		t.Fatalf("pending=%d", len(got))
	}
	for i := range want {
		if got[i].From != want[i] {
			t.Fatalf("order[%d]=%s want %s", i, got[i].From, want[i])
		}
	}
}

func TestQueueDrainsByPriorityThenTimestamp(t *testing.T) {
	d, env, _, _ := newTestDispatcher(t, Config{InterDeparture: time.Second})
	base := time.Unix(1000, 0)
	_, _ = d.Enqueue(Request{From: ceo, To: cto, Priority: PriorityLow, Timestamp: base.Add(5 * time.Second)})
	_, _ = d.Enqueue(Request{From: cto, To: ceo, Priority: PriorityHigh, Timestamp: base.Add(10 * time.Second)})
	_, _ = d.Enqueue(Request{From: ceo, To: coo, Priority: PriorityHigh, Timestamp: base.Add(2 * time.Second)})

	for i := 0; i < 100 && !d.Idle(); i++ {
		for _, m := range env.movers {
			m.busy = false
		}
		d.Advance(500 * time.Millisecond)
	}
	if !d.Idle() {
		t.Fatalf("queue never drained: %+v", d.Status())
	}
	want := []string{"ceo_to_coo", "cto_to_ceo", "ceo_to_cto"}
	if len(env.order) != len(want) {
		t.Fatalf("executed=%v want %v", env.order, want)
	}
	for i := range want {
		if env.order[i] != want[i] {
			t.Fatalf("executed=%v want %v", env.order, want)
		}
	}
}

func TestSerialExclusivity(t *testing.T) {
	d, env, rec, _ := newTestDispatcher(t, Config{InterDeparture: time.Second})
	_, _ = d.ForceDelegation("CEO", "CTO", TypeDelegation, "ship it")
	_, _ = d.ForceDelegation("tech", "codeur", TypeDelegation, "fix bug")

	d.Advance(100 * time.Millisecond)
	if len(env.movers[ceo].calls) != 1 || len(env.movers[cto].calls) != 0 {
		t.Fatalf("first movement not exclusive: ceo=%v cto=%v", env.movers[ceo].calls, env.movers[cto].calls)
	}
	st := d.Status()
	if !st.IsProcessing || st.QueueLength != 1 || st.CurrentInteraction == nil || st.CurrentInteraction.From != ceo {
		t.Fatalf("status=%+v", st)
	}

	// Still walking: nothing else starts.
	d.Advance(5 * time.Second)
	if len(env.movers[cto].calls) != 0 {
		t.Fatalf("second movement started while first in flight")
	}

	env.movers[ceo].busy = false
	d.Advance(100 * time.Millisecond) // completes, cooldown begins
	if len(env.movers[cto].calls) != 0 {
		t.Fatalf("second movement started before inter-departure delay")
	}
	d.Advance(500 * time.Millisecond)
	if len(env.movers[cto].calls) != 0 {
		t.Fatalf("second movement started before inter-departure delay elapsed")
	}
	d.Advance(500 * time.Millisecond)
	if len(env.movers[cto].calls) != 1 {
		t.Fatalf("second movement did not start after delay")
	}
	if env.movers[cto].ids[0] != "cto_to_codeur" {
		t.Fatalf("second movement route=%v", env.movers[cto].ids)
	}

	statuses := rec.MovementStatuses()
	if statuses[0] != events.MovementQueued || statuses[2] != events.MovementDispatched || statuses[3] != events.MovementCompleted {
		t.Fatalf("statuses=%v", statuses)
	}
}

func TestUnknownRouteDroppedWithoutDelay(t *testing.T) {
	d, env, rec, logs := newTestDispatcher(t, Config{InterDeparture: time.Second})
	_, _ = d.Enqueue(Request{From: coo, To: pm, Priority: PriorityHigh})
	_, _ = d.Enqueue(Request{From: ceo, To: cto, Priority: PriorityLow})

	d.Advance(10 * time.Millisecond)
	if !strings.Contains(logs.String(), "no route") {
		t.Fatalf("expected a warning, logs=%q", logs.String())
	}
	if len(env.movers[ceo].calls) != 1 {
		t.Fatalf("next entry should start at once")
	}
	dropped := 0
	for _, m := range rec.Movements {
		if m.Status == events.MovementDropped {
			dropped++
		}
	}
	if dropped != 1 {
		t.Fatalf("dropped=%d", dropped)
	}
}

func TestSpawnsAbsentEndpointsAndSettles(t *testing.T) {
	d, env, _, _ := newTestDispatcher(t, Config{InterDeparture: time.Second, SpawnSettle: 500 * time.Millisecond})
	env.present[cto] = false
	_, _ = d.ForceDelegation(ceo, cto, TypeDelegation, "")

	d.Advance(0)
	if len(env.spawned) != 1 || env.spawned[0] != cto {
		t.Fatalf("spawned=%v", env.spawned)
	}
	if len(env.movers[ceo].calls) != 0 {
		t.Fatalf("movement started before settle")
	}
	d.Advance(300 * time.Millisecond)
	if len(env.movers[ceo].calls) != 0 {
		t.Fatalf("movement started before settle elapsed")
	}
	d.Advance(200 * time.Millisecond)
	if len(env.movers[ceo].calls) != 1 {
		t.Fatalf("movement did not start after settle")
	}
}

func TestDoorRoutesSkipSpawnAndPickMover(t *testing.T) {
	d, env, _, _ := newTestDispatcher(t, Config{})
	env.present[pm] = false
	_, _ = d.Enqueue(Request{From: "door", To: "pm", Type: TypeEnter, Priority: PriorityLow})
	d.Advance(0)
	if len(env.spawned) != 0 {
		t.Fatalf("door movement must not spawn: %v", env.spawned)
	}
	calls := env.movers[pm].calls
	if len(calls) != 1 || calls[0] != routes.KindEnter {
		t.Fatalf("enter should drive the arriving agent: %v", calls)
	}

	env.movers[pm].busy = false
	_, _ = d.Enqueue(Request{From: pm, To: door, Type: TypeExit, Priority: PriorityHigh})
	d.Advance(0)
	d.Advance(0)
	if calls := env.movers[pm].calls; len(calls) != 2 || calls[1] != routes.KindExit {
		t.Fatalf("exit calls=%v", calls)
	}
}

func TestCompletedExitIsReported(t *testing.T) {
	d, env, _, _ := newTestDispatcher(t, Config{})
	_, _ = d.Enqueue(Request{From: ceo, To: cto})
	_, _ = d.Enqueue(Request{From: pm, To: door, Type: TypeExit})

	d.Advance(0)
	env.movers[ceo].busy = false
	d.Advance(0)
	if len(env.exited) != 0 {
		t.Fatalf("conversation reported as exit: %v", env.exited)
	}
	env.movers[pm].busy = false
	d.Advance(0)
	if len(env.exited) != 1 || env.exited[0] != pm || env.present[pm] {
		t.Fatalf("exited=%v present=%v", env.exited, env.present[pm])
	}
}

func TestMeetingReturnKind(t *testing.T) {
	d, env, _, _ := newTestDispatcher(t, Config{})
	_, _ = d.Enqueue(Request{From: ceo, To: "chair1", Type: TypeMeeting})
	d.Advance(0)
	env.movers[ceo].busy = false
	_, _ = d.Enqueue(Request{From: ceo, To: roster.ChairName(0), Type: TypeReturn})
	d.Advance(0)
	d.Advance(0)
	calls := env.movers[ceo].calls
	if len(calls) != 2 || calls[0] != routes.KindMeeting || calls[1] != routes.KindMeetingReturn {
		t.Fatalf("calls=%v", calls)
	}
}

func TestMissingAnimatorAndBusyAreSkipped(t *testing.T) {
	d, env, rec, logs := newTestDispatcher(t, Config{})
	delete(env.movers, ceo)
	env.movers[cto].busy = true
	_, _ = d.Enqueue(Request{From: ceo, To: coo})
	_, _ = d.Enqueue(Request{From: cto, To: ceo})
	_, _ = d.Enqueue(Request{From: pm, To: door, Type: TypeExit})
	d.Advance(0)

	var reasons []string
	for _, m := range rec.Movements {
		if m.Status == events.MovementSkipped {
			reasons = append(reasons, m.Reason)
		}
	}
	if len(reasons) != 2 || reasons[0] != "no animator" || reasons[1] != "busy" {
		t.Fatalf("skip reasons=%v", reasons)
	}
	if len(env.movers[pm].calls) != 1 {
		t.Fatalf("queue stalled after skips")
	}
	if !strings.Contains(logs.String(), "no animator for CEO") {
		t.Fatalf("logs=%q", logs.String())
	}
}

func TestClearAndHandleInteraction(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t, Config{MaxQueue: 2})
	if _, err := d.HandleInteraction(Interaction{From: "orchestrator", To: "tech", Type: "delegation", Priority: "HIGH"}); err != nil {
		t.Fatalf("HandleInteraction: %v", err)
	}
	if _, err := d.HandleInteraction(Interaction{From: "a", To: "b", Type: "teleport"}); err == nil {
		t.Fatalf("expected bad type error")
	}
	pending := d.Status().PendingInteractions
	if len(pending) != 1 || pending[0].From != ceo || pending[0].To != cto || pending[0].Priority != PriorityHigh || pending[0].ID == "" {
		t.Fatalf("pending=%+v", pending)
	}
	_, _ = d.Enqueue(Request{From: ceo, To: coo})
	if _, err := d.Enqueue(Request{From: ceo, To: coo}); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if n := d.Clear(); n != 2 || d.Status().QueueLength != 0 {
		t.Fatalf("clear=%d status=%+v", n, d.Status())
	}
}

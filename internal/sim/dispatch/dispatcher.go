package dispatch

import (
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"clawoffice.ai/internal/sim/events"
	"clawoffice.ai/internal/sim/roster"
	"clawoffice.ai/internal/sim/routes"
)

var ErrQueueFull = errors.New("movement queue full")

// Mover is the part of an agent animator the dispatcher drives.
type Mover interface {
	Execute(r routes.Route, kind routes.Kind) bool
	Animating() bool
}

// Env is what the dispatcher needs from the office around it.
type Env interface {
	Catalog() *routes.Catalog
	Mover(name string) (Mover, bool)
	IsPresent(name string) bool
	Spawn(name string)
	// Exited is called once an exit movement has taken the agent out.
	Exited(name string)
}

type Config struct {
	InterDeparture time.Duration
	SpawnSettle    time.Duration
	MaxQueue       int
}

type state int

const (
	stateIdle state = iota
	stateSettling
	stateMoving
	stateCooldown
)

// Status is the externally visible queue state.
type Status struct {
	IsProcessing        bool      `json:"isProcessing"`
	QueueLength         int       `json:"queueLength"`
	CurrentInteraction  *Request  `json:"currentInteraction"`
	PendingInteractions []Request `json:"pendingInteractions"`
}

// Dispatcher turns interaction events into one-at-a-time movements. It is
// driven by Advance from a single goroutine and is not safe for concurrent use.
type Dispatcher struct {
	cfg   Config
	env   Env
	names *roster.Roster
	sink  events.Sink
	log   *log.Logger
	now   func() time.Time

	q       queue
	seq     uint64
	state   state
	timer   time.Duration
	current *Request
	mover   Mover
	routeID string
	kind    routes.Kind
}

func New(cfg Config, env Env, names *roster.Roster, sink events.Sink, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	if sink == nil {
		sink = events.Nop{}
	}
	return &Dispatcher{cfg: cfg, env: env, names: names, sink: sink, log: logger, now: time.Now}
}

// SetClock replaces the wall clock used for ids and AddedAt stamps.
func (d *Dispatcher) SetClock(now func() time.Time) { d.now = now }

func (d *Dispatcher) canon(name string) string {
	if d.names == nil {
		return name
	}
	return d.names.Canonical(name)
}

// Enqueue adds a request. Missing ids, timestamps and priorities are filled in.
func (d *Dispatcher) Enqueue(r Request) (Request, error) {
	if d.cfg.MaxQueue > 0 && d.q.Len() >= d.cfg.MaxQueue {
		return r, ErrQueueFull
	}
	now := d.now()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = now
	}
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
	if r.Type == "" {
		r.Type = TypeDelegation
	}
	r.From = d.canon(r.From)
	r.To = d.canon(r.To)
	r.AddedAt = now
	d.seq++
	r.seq = d.seq
	req := r
	d.q.push(&req)
	d.emit(req, events.MovementQueued, "", "", "")
	return req, nil
}

// HandleInteraction queues an upstream interaction event.
func (d *Dispatcher) HandleInteraction(ev Interaction) (Request, error) {
	typ, err := ParseType(ev.Type)
	if err != nil {
		return Request{}, err
	}
	prio, err := ParsePriority(ev.Priority)
	if err != nil {
		return Request{}, err
	}
	return d.Enqueue(Request{
		From:      ev.From,
		To:        ev.To,
		Type:      typ,
		Content:   ev.Content,
		Timestamp: ev.Timestamp,
		Priority:  prio,
	})
}

// ForceDelegation queues a manual movement at high priority.
func (d *Dispatcher) ForceDelegation(from, to string, typ Type, content string) (Request, error) {
	now := d.now()
	return d.Enqueue(Request{
		ID:        "manual-" + uuid.NewString(),
		From:      from,
		To:        to,
		Type:      typ,
		Content:   content,
		Timestamp: now,
		Priority:  PriorityHigh,
	})
}

// Clear drops every pending request. The movement in flight finishes.
func (d *Dispatcher) Clear() int {
	n := d.q.Len()
	d.q = nil
	return n
}

func (d *Dispatcher) Status() Status {
	st := Status{
		IsProcessing:        d.state != stateIdle,
		QueueLength:         d.q.Len(),
		PendingInteractions: d.q.sorted(),
	}
	if d.current != nil {
		cur := *d.current
		st.CurrentInteraction = &cur
	}
	return st
}

func (d *Dispatcher) Idle() bool { return d.state == stateIdle && d.q.Len() == 0 }

// Advance moves the drain loop forward by dt. Transitions that take no time
// are chained within one call, so a dropped request never costs a frame.
func (d *Dispatcher) Advance(dt time.Duration) {
	for {
		switch d.state {
		case stateIdle:
			if d.q.Len() == 0 {
				return
			}
			d.begin(d.q.pop())
			if d.state == stateSettling {
				return
			}
		case stateSettling:
			d.timer -= dt
			if d.timer > 0 {
				return
			}
			dt = 0
			d.start()
		case stateMoving:
			if d.mover != nil && d.mover.Animating() {
				return
			}
			d.finish()
		case stateCooldown:
			d.timer -= dt
			if d.timer > 0 {
				return
			}
			dt = 0
			d.state = stateIdle
			d.current = nil
		}
	}
}

func (d *Dispatcher) begin(r *Request) {
	d.current = r
	d.emit(*r, events.MovementDispatched, "", "", "")

	if d.names != nil && (d.names.IsDoor(r.From) || d.names.IsDoor(r.To)) {
		d.start()
		return
	}
	spawned := false
	for _, name := range []string{r.From, r.To} {
		if d.names != nil && d.names.KindOf(name) == roster.KindChair {
			continue
		}
		if !d.env.IsPresent(name) {
			d.log.Printf("spawning %s at desk before %s", name, r.ID)
			d.env.Spawn(name)
			spawned = true
		}
	}
	if spawned && d.cfg.SpawnSettle > 0 {
		d.state = stateSettling
		d.timer = d.cfg.SpawnSettle
		return
	}
	d.start()
}

// start resolves the route and hands it to the moving agent.
func (d *Dispatcher) start() {
	r := d.current
	cat := d.env.Catalog()
	var (
		route routes.Route
		ok    bool
	)
	if cat != nil {
		route, ok = cat.Lookup(r.From, r.To)
	}
	if !ok {
		d.log.Printf("no route %s → %s; dropping %s", r.From, r.To, r.ID)
		d.emit(*r, events.MovementDropped, "", "", "no route")
		d.state = stateIdle
		d.current = nil
		return
	}

	kind := cat.Kind(route)
	if r.Type == TypeReturn && kind == routes.KindMeeting {
		kind = routes.KindMeetingReturn
	}
	who := r.From
	if kind == routes.KindEnter {
		who = r.To
	}

	m, found := d.env.Mover(who)
	switch {
	case !found:
		d.log.Printf("no animator for %s; skipping %s", who, r.ID)
		d.emit(*r, events.MovementSkipped, route.ID, kind.String(), "no animator")
		d.cooldown()
	case !m.Execute(route, kind):
		d.log.Printf("%s is busy; ignoring %s", who, r.ID)
		d.emit(*r, events.MovementSkipped, route.ID, kind.String(), "busy")
		d.cooldown()
	default:
		d.mover = m
		d.state = stateMoving
		d.routeID = route.ID
		d.kind = kind
	}
}

func (d *Dispatcher) finish() {
	if d.current != nil {
		d.emit(*d.current, events.MovementCompleted, d.routeID, d.kind.String(), "")
		if d.kind == routes.KindExit {
			d.env.Exited(d.current.From)
		}
	}
	d.mover = nil
	d.cooldown()
}

func (d *Dispatcher) cooldown() {
	d.mover = nil
	d.routeID, d.kind = "", 0
	if d.cfg.InterDeparture <= 0 {
		d.state = stateIdle
		d.current = nil
		return
	}
	d.state = stateCooldown
	d.timer = d.cfg.InterDeparture
}

func (d *Dispatcher) emit(r Request, st events.MovementStatus, routeID, kind, reason string) {
	d.sink.Movement(events.Movement{
		At:        d.now(),
		RequestID: r.ID,
		From:      r.From,
		To:        r.To,
		Type:      string(r.Type),
		Priority:  string(r.Priority),
		Status:    st,
		RouteID:   routeID,
		Kind:      kind,
		Reason:    reason,
	})
}

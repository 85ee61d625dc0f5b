// Package office owns the running office: one goroutine advances presence,
// the movement queue, every animator and the door, and publishes a frame per
// tick. Everything else talks to it through channels.
package office

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"clawoffice.ai/internal/sim/animator"
	"clawoffice.ai/internal/sim/dispatch"
	"clawoffice.ai/internal/sim/events"
	"clawoffice.ai/internal/sim/layout"
	"clawoffice.ai/internal/sim/presence"
	"clawoffice.ai/internal/sim/roster"
	"clawoffice.ai/internal/sim/routes"
	"clawoffice.ai/internal/sim/tuning"
)

var (
	ErrInvalid = errors.New("invalid request")
	ErrStopped = errors.New("office loop stopped")
)

type Config struct {
	Layout *layout.Layout
	Tuning tuning.Tuning
	// Routes seeds the catalog. Nil generates it from the layout.
	Routes []routes.Route
	Sink   events.Sink
	Logger *log.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// HeartbeatBatch is a {agent: last activity} map from a presence source.
type HeartbeatBatch struct {
	Beats map[string]time.Time
}

type Office struct {
	layout  *layout.Layout
	tuning  tuning.Tuning
	names   *roster.Roster
	gen     *routes.Generator
	sink    events.Sink
	log     *log.Logger
	animLog *log.Logger
	now     func() time.Time

	catalog atomic.Pointer[routes.Catalog]
	tick    atomic.Uint64

	disp  *dispatch.Dispatcher
	pres  *presence.Monitor
	door  *animator.Door
	anims map[string]*animator.Animator
	order []string

	observers map[string]*observerClient

	interactions chan dispatch.Interaction
	heartbeats   chan HeartbeatBatch
	cmds         chan command
	obsJoin      chan ObserverJoinRequest
	obsLeave     chan string
	stop         chan struct{}
	stopped      chan struct{}
}

func New(cfg Config) (*Office, error) {
	if cfg.Layout == nil {
		return nil, fmt.Errorf("office: %w: layout is required", ErrInvalid)
	}
	if err := cfg.Layout.Validate(); err != nil {
		return nil, fmt.Errorf("office: layout: %w", err)
	}
	if cfg.Tuning.FrameRateHz <= 0 {
		return nil, fmt.Errorf("office: %w: frame rate must be positive", ErrInvalid)
	}
	base := cfg.Logger
	if base == nil {
		base = log.New(os.Stdout, "[office] ", log.LstdFlags|log.Lmicroseconds)
	}
	sub := func(prefix string) *log.Logger { return log.New(base.Writer(), prefix, base.Flags()) }
	sink := cfg.Sink
	if sink == nil {
		sink = events.Nop{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	names := roster.New(cfg.Layout)
	o := &Office{
		layout:       cfg.Layout,
		tuning:       cfg.Tuning,
		names:        names,
		gen:          routes.NewGenerator(cfg.Layout, names, sub("[routes] ")),
		sink:         sink,
		log:          base,
		animLog:      sub("[anim] "),
		now:          clock,
		door:         animator.NewDoor(cfg.Tuning.Walk.DoorOpenAngle),
		anims:        map[string]*animator.Animator{},
		observers:    map[string]*observerClient{},
		interactions: make(chan dispatch.Interaction, 1024),
		heartbeats:   make(chan HeartbeatBatch, 64),
		cmds:         make(chan command, 64),
		obsJoin:      make(chan ObserverJoinRequest, 64),
		obsLeave:     make(chan string, 64),
		stop:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}

	rs := cfg.Routes
	if rs == nil {
		rs = o.gen.Generate()
	}
	if errs := o.SetRoutes(rs); len(errs) > 0 {
		for _, err := range errs {
			o.log.Printf("route skipped: %v", err)
		}
	}

	t := cfg.Tuning
	o.disp = dispatch.New(dispatch.Config{
		InterDeparture: tuning.Ms(t.Dispatch.InterDepartureMs),
		SpawnSettle:    tuning.Ms(t.Dispatch.SpawnSettleMs),
		MaxQueue:       t.Dispatch.MaxQueue,
	}, dispatchEnv{o}, names, sink, sub("[dispatch] "))
	o.disp.SetClock(clock)
	o.pres = presence.New(presence.Config{
		Threshold:     time.Duration(t.Presence.ThresholdSec) * time.Second,
		SweepInterval: time.Duration(t.Presence.SweepIntervalSec) * time.Second,
	}, presenceEnv{o}, names, sink, sub("[presence] "))

	animCfg := animator.ConfigFromTuning(t)
	home := cfg.Layout.Seat.Local()
	for _, m := range cfg.Layout.Members() {
		desk, _ := cfg.Layout.Desk(m.Name)
		o.anims[m.Name] = animator.New(m.Name, desk.Frame(), home, animCfg, o.door, o, o.animLog)
		o.order = append(o.order, m.Name)
	}
	return o, nil
}

func (o *Office) Interactions() chan<- dispatch.Interaction { return o.interactions }
func (o *Office) Heartbeats() chan<- HeartbeatBatch         { return o.heartbeats }
func (o *Office) ObserverJoin() chan<- ObserverJoinRequest  { return o.obsJoin }
func (o *Office) ObserverLeave() chan<- string              { return o.obsLeave }
func (o *Office) Names() *roster.Roster                     { return o.names }
func (o *Office) People() []string                          { return o.names.People() }
func (o *Office) Layout() *layout.Layout                    { return o.layout }
func (o *Office) Catalog() *routes.Catalog                  { return o.catalog.Load() }
func (o *Office) CurrentTick() uint64                       { return o.tick.Load() }
func (o *Office) FrameInterval() time.Duration              { return o.tuning.FrameInterval() }

func (o *Office) Animator(name string) (*animator.Animator, bool) {
	a, ok := o.anims[o.names.Canonical(name)]
	return a, ok
}

func (o *Office) Run(ctx context.Context) error {
	interval := o.tuning.FrameInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(o.stopped)

	for {
		select {
		case <-ctx.Done():
			o.closeObservers()
			return ctx.Err()
		case <-o.stop:
			o.closeObservers()
			return nil
		case ev := <-o.interactions:
			if _, err := o.interact(ev); err != nil {
				o.log.Printf("interaction %s → %s rejected: %v", ev.From, ev.To, err)
			}
		case hb := <-o.heartbeats:
			o.pres.UpdateHeartbeats(o.now(), hb.Beats)
		case c := <-o.cmds:
			v, err := c.fn()
			c.resp <- commandResp{v: v, err: err}
		case req := <-o.obsJoin:
			o.handleObserverJoin(req)
		case id := <-o.obsLeave:
			o.handleObserverLeave(id)
		case <-ticker.C:
			o.step(interval)
		}
	}
}

func (o *Office) Stop() { close(o.stop) }

// StepOnce advances the office by dt with the same ordering as Run. It must
// not be called while Run is active.
func (o *Office) StepOnce(dt time.Duration) uint64 {
	o.step(dt)
	return o.tick.Load()
}

// InteractOnce hands ev straight to the dispatcher. Like StepOnce it is for
// stepped replays and must not be called while Run is active.
func (o *Office) InteractOnce(ev dispatch.Interaction) (dispatch.Request, error) {
	return o.interact(ev)
}

// Busy reports whether a movement is queued or any agent is still animating.
// Not safe while Run is active.
func (o *Office) Busy() bool {
	if !o.disp.Idle() {
		return true
	}
	for _, a := range o.anims {
		if a.Animating() {
			return true
		}
	}
	return false
}

// step: presence, queue, door, animators, then the frame.
func (o *Office) step(dt time.Duration) {
	o.pres.Advance(dt, o.now())
	o.disp.Advance(dt)
	o.door.Advance(dt)
	for _, name := range o.order {
		o.anims[name].Advance(dt)
	}
	tick := o.tick.Add(1)
	o.broadcast(tick)
}

// PhaseChanged implements animator.Observer.
func (o *Office) PhaseChanged(agent string, from, to animator.Phase) {
	o.animLog.Printf("%s: %s → %s", agent, from, to)
}

// SetRoutes swaps in a new catalog built from rs.
func (o *Office) SetRoutes(rs []routes.Route) []error {
	cat, errs := routes.NewCatalog(rs, o.names)
	o.catalog.Store(cat)
	return errs
}

// ReplaceRoute swaps one route into the live catalog. Movements already under
// way keep the copy they started with.
func (o *Office) ReplaceRoute(r routes.Route) error {
	for {
		old := o.catalog.Load()
		next, err := old.Replace(r)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		if o.catalog.CompareAndSwap(old, next) {
			return nil
		}
	}
}

// Regenerate rebuilds the catalog from the layout and installs it.
func (o *Office) Regenerate() (*routes.Catalog, []error) {
	errs := o.SetRoutes(o.gen.Generate())
	return o.catalog.Load(), errs
}

func (o *Office) interact(ev dispatch.Interaction) (dispatch.Request, error) {
	if ev.From == "" || ev.To == "" {
		return dispatch.Request{}, fmt.Errorf("%w: from and to are required", ErrInvalid)
	}
	r, err := o.disp.HandleInteraction(ev)
	if err != nil && !errors.Is(err, dispatch.ErrQueueFull) {
		return r, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return r, err
}

func errInvalid(msg string) error { return fmt.Errorf("%w: %s", ErrInvalid, msg) }

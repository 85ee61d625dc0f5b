package animator

import (
	"log"
	"math"
	"time"

	"clawoffice.ai/internal/sim/geom"
	"clawoffice.ai/internal/sim/routes"
	"clawoffice.ai/internal/sim/tuning"
)

type Config struct {
	Speed     float64 // metres per second
	Turn      time.Duration
	DoorSwing time.Duration
	DoorPass  time.Duration
	// Clips lists the one-shot clips the model ships with and their length.
	// The walk loop is present when HasWalk is set.
	Clips   map[string]time.Duration
	HasWalk bool
}

func ConfigFromTuning(t tuning.Tuning) Config {
	clips := map[string]time.Duration{}
	add := func(name string, ms int) {
		if ms > 0 {
			clips[name] = tuning.Ms(ms)
		}
	}
	add(ClipStandUp, t.Clips.StandUpMs)
	add(ClipSitDown, t.Clips.SitDownMs)
	add(ClipTalk, t.Clips.TalkMs)
	return Config{
		Speed:     t.Walk.SpeedMPS,
		Turn:      tuning.Ms(t.Walk.TurnMs),
		DoorSwing: tuning.Ms(t.Walk.DoorSwingMs),
		DoorPass:  tuning.Ms(t.Walk.DoorPassMs),
		Clips:     clips,
		HasWalk:   t.Clips.HasWalk,
	}
}

// Observer is told about every phase change.
type Observer interface {
	PhaseChanged(agent string, from, to Phase)
}

type Pose struct {
	Name     string         `json:"name"`
	World    geom.Transform `json:"world"`
	Phase    Phase          `json:"-"`
	Clip     string         `json:"clip"`
	Visible  bool           `json:"visible"`
	Attached bool           `json:"attached"`
}

// Animator runs one agent's choreography. The agent is either attached to
// its desk frame (seated, pose kept as a local offset) or detached and posed
// in world space while it moves. All methods run on the office loop.
type Animator struct {
	name string
	cfg  Config
	log  *log.Logger
	obs  Observer
	door *Door

	desk geom.Transform
	home geom.Transform

	attached bool
	local    geom.Transform
	world    geom.Transform
	visible  bool
	phase    Phase
	clip     string

	animating bool
	kind      routes.Kind
	routeID   string
	plan      []step
	cur       int
	st        stepState
	origin    geom.Transform // world pose captured when the agent left its seat

	warned map[string]bool
}

// New creates an animator seated at its desk. home is the seated pose
// relative to the desk frame.
func New(name string, desk, home geom.Transform, cfg Config, door *Door, obs Observer, logger *log.Logger) *Animator {
	if logger == nil {
		logger = log.Default()
	}
	a := &Animator{
		name:   name,
		cfg:    cfg,
		log:    logger,
		obs:    obs,
		door:   door,
		desk:   desk,
		home:   home,
		warned: map[string]bool{},
	}
	a.seat()
	a.visible = true
	return a
}

func (a *Animator) Name() string          { return a.name }
func (a *Animator) Phase() Phase          { return a.phase }
func (a *Animator) Animating() bool       { return a.animating }
func (a *Animator) Visible() bool         { return a.visible }
func (a *Animator) Attached() bool        { return a.attached }
func (a *Animator) Local() geom.Transform { return a.local }
func (a *Animator) Home() geom.Transform  { return a.home }
func (a *Animator) Kind() routes.Kind     { return a.kind }

// World returns the current world pose, composed through the desk frame
// while attached.
func (a *Animator) World() geom.Transform {
	if a.attached {
		return geom.Compose(a.desk, a.local)
	}
	return a.world
}

func (a *Animator) Pose() Pose {
	return Pose{
		Name:     a.name,
		World:    a.World(),
		Phase:    a.phase,
		Clip:     a.clip,
		Visible:  a.visible,
		Attached: a.attached,
	}
}

// Execute starts a choreography along r. It refuses (returns false) while
// another one is running or when the route is too short to walk.
func (a *Animator) Execute(r routes.Route, kind routes.Kind) bool {
	if a.animating {
		a.log.Printf("%s: already animating %s; ignoring %s", a.name, a.routeID, r.ID)
		return false
	}
	if len(r.Points) < 2 {
		a.log.Printf("%s: route %s has %d points; ignoring", a.name, r.ID, len(r.Points))
		return false
	}
	var plan []step
	switch kind {
	case routes.KindConversation:
		plan = a.conversationPlan(r)
	case routes.KindExit:
		plan = a.exitPlan(r)
	case routes.KindEnter:
		plan = a.enterPlan(r)
	case routes.KindMeeting:
		plan = a.meetingPlan(r)
	case routes.KindMeetingReturn:
		plan = a.meetingReturnPlan(r)
	default:
		a.log.Printf("%s: unknown route kind %d for %s", a.name, kind, r.ID)
		return false
	}
	a.animating = true
	a.kind = kind
	a.routeID = r.ID
	a.plan = plan
	a.cur = 0
	a.st = stepState{}
	a.Advance(0)
	return true
}

// Advance plays the current plan forward by dt. Steps that finish early hand
// their leftover time to the next step.
func (a *Animator) Advance(dt time.Duration) {
	for a.animating {
		if a.cur >= len(a.plan) {
			a.finish()
			return
		}
		left, done := a.run(&a.plan[a.cur], dt)
		if !done {
			return
		}
		a.cur++
		a.st = stepState{}
		dt = left
	}
}

// Stop aborts any running plan and seats the agent at its desk.
func (a *Animator) Stop() {
	a.plan = nil
	a.cur = 0
	a.animating = false
	a.kind = 0
	a.routeID = ""
	a.seat()
	a.setPhase(PhaseSeatedIdle)
}

// Respawn puts the agent back at its desk, visible and idle.
func (a *Animator) Respawn() {
	a.Stop()
	a.visible = true
}

// Vanish hides the agent on the spot, as if it had already left.
func (a *Animator) Vanish() {
	a.Stop()
	a.visible = false
	a.setPhase(PhaseAbsent)
}

func (a *Animator) finish() {
	a.animating = false
	a.plan = nil
	a.cur = 0
	a.routeID = ""
}

func (a *Animator) seat() {
	a.attached = true
	a.local = a.home
	a.world = geom.Compose(a.desk, a.home)
	a.clip = ClipSeated
}

func (a *Animator) setPhase(p Phase) {
	if p == a.phase {
		return
	}
	from := a.phase
	a.phase = p
	if a.obs != nil {
		a.obs.PhaseChanged(a.name, from, p)
	}
}

func (a *Animator) detach() {
	if a.attached {
		a.world = geom.Compose(a.desk, a.local)
		a.attached = false
	}
	a.origin = a.world
}

func (a *Animator) clipDuration(name string) (time.Duration, bool) {
	d, ok := a.cfg.Clips[name]
	if !ok {
		a.warnOnce(name)
	}
	return d, ok
}

func (a *Animator) warnOnce(clip string) {
	if a.warned[clip] {
		return
	}
	a.warned[clip] = true
	a.log.Printf("%s: clip %s missing; skipping it", a.name, clip)
}

func (a *Animator) walkClip() string {
	if !a.cfg.HasWalk {
		a.warnOnce(ClipWalk)
		return ""
	}
	return ClipWalk
}

// walk moves along pts at the configured speed, starting with a straight
// leg from wherever the agent stands to pts[0]. Each segment sets the yaw to
// its heading when it starts. Returns leftover time once the last point is
// reached.
func (a *Animator) walk(st *stepState, pts []geom.Vec2, dt time.Duration) (time.Duration, bool) {
	budget := a.cfg.Speed * dt.Seconds()
	for st.idx < len(pts) {
		target := pts[st.idx]
		d := a.world.Pos.Dist(target)
		if d < 1e-9 {
			a.world.Pos = target
			st.idx++
			continue
		}
		a.world.Yaw = geom.Heading(a.world.Pos, target)
		if budget >= d {
			a.world.Pos = target
			budget -= d
			st.idx++
			continue
		}
		a.world.Pos = a.world.Pos.Add(target.Sub(a.world.Pos).Scale(budget / d))
		return 0, false
	}
	if a.cfg.Speed <= 0 {
		return 0, true
	}
	return time.Duration(budget / a.cfg.Speed * float64(time.Second)), true
}

// hold waits for dur, handing back the leftover time.
func hold(st *stepState, dur, dt time.Duration) (time.Duration, bool) {
	st.elapsed += dt
	if st.elapsed < dur {
		return 0, false
	}
	return st.elapsed - dur, true
}

func (a *Animator) turn(st *stepState, dt time.Duration) (time.Duration, bool) {
	if !st.started {
		st.started = true
		st.fromYaw = a.world.Yaw
		st.delta = geom.AngleDiff(a.world.Yaw, a.world.Yaw+math.Pi)
	}
	st.elapsed += dt
	if a.cfg.Turn <= 0 || st.elapsed >= a.cfg.Turn {
		a.world.Yaw = geom.NormalizeAngle(st.fromYaw + st.delta)
		if a.cfg.Turn <= 0 {
			return dt, true
		}
		return st.elapsed - a.cfg.Turn, true
	}
	t := float64(st.elapsed) / float64(a.cfg.Turn)
	a.world.Yaw = geom.NormalizeAngle(st.fromYaw + st.delta*geom.EaseOut(t))
	return 0, false
}

// passDoor keeps walking straight ahead for DoorPass.
func (a *Animator) passDoor(st *stepState, dt time.Duration) (time.Duration, bool) {
	step := dt
	if rem := a.cfg.DoorPass - st.elapsed; step > rem {
		step = rem
	}
	if step > 0 {
		a.world.Pos = a.world.Pos.Add(geom.Forward(a.world.Yaw).Scale(a.cfg.Speed * step.Seconds()))
	}
	return hold(st, a.cfg.DoorPass, dt)
}

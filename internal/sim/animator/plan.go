package animator

import (
	"time"

	"clawoffice.ai/internal/sim/geom"
	"clawoffice.ai/internal/sim/routes"
)

type stepKind int

const (
	stepPhase stepKind = iota
	stepClip           // one-shot clip, holds for its length
	stepLoop           // looping clip, instant
	stepWalk
	stepFace
	stepTurn
	stepDetach
	stepAttach
	stepShow
	stepHide
	stepPlace
	stepDoor
	stepPass
)

type step struct {
	kind  stepKind
	phase Phase
	clip  string
	pts   []geom.Vec2
	yaw   float64
	pos   geom.Vec2
	open  bool
	wait  bool
}

type stepState struct {
	started bool
	elapsed time.Duration
	idx     int
	fromYaw float64
	delta   float64
}

func phase(p Phase) step          { return step{kind: stepPhase, phase: p} }
func clip(name string) step       { return step{kind: stepClip, clip: name} }
func loop(name string) step       { return step{kind: stepLoop, clip: name} }
func walkTo(pts []geom.Vec2) step { return step{kind: stepWalk, pts: pts} }
func face(yaw float64) step       { return step{kind: stepFace, yaw: yaw} }

func (a *Animator) run(s *step, dt time.Duration) (time.Duration, bool) {
	st := &a.st
	switch s.kind {
	case stepPhase:
		a.setPhase(s.phase)
	case stepClip:
		a.clip = s.clip
		d, ok := a.clipDuration(s.clip)
		if !ok {
			return dt, true
		}
		return hold(st, d, dt)
	case stepLoop:
		a.clip = s.clip
		if s.clip == ClipWalk {
			a.clip = a.walkClip()
		}
	case stepWalk:
		return a.walk(st, s.pts, dt)
	case stepFace:
		a.world.Yaw = geom.NormalizeAngle(s.yaw)
	case stepTurn:
		return a.turn(st, dt)
	case stepDetach:
		a.detach()
	case stepAttach:
		a.attached = true
		a.local = a.home
		a.world = geom.Compose(a.desk, a.home)
	case stepShow:
		a.visible = true
	case stepHide:
		a.visible = false
	case stepPlace:
		a.attached = false
		a.world = geom.Transform{Pos: s.pos, Yaw: s.yaw}
	case stepDoor:
		if a.door != nil {
			a.door.Swing(s.open, a.cfg.DoorSwing)
		}
		if s.wait {
			return hold(st, a.cfg.DoorSwing, dt)
		}
	case stepPass:
		return a.passDoor(st, dt)
	}
	return dt, true
}

// seatedTail sits the agent back at its desk.
func seatedTail() []step {
	return []step{
		{kind: stepAttach},
		phase(PhaseSittingDown),
		clip(ClipSitDown),
		phase(PhaseSeatedIdle),
		loop(ClipSeated),
	}
}

func (a *Animator) homePos() geom.Vec2 { return geom.Compose(a.desk, a.home).Pos }

// remoteTail sits the agent back down on the meeting seat it left from.
func remoteTail(yaw float64) []step {
	return []step{
		face(yaw),
		phase(PhaseSittingRemote),
		clip(ClipSitDown),
		phase(PhaseAtMeeting),
		loop(ClipSeated),
	}
}

// conversationPlan walks r, talks, and walks back to wherever the agent
// started: its desk, or its war room seat.
func (a *Animator) conversationPlan(r routes.Route) []step {
	start := a.World()
	fromMeeting := !a.attached && a.phase == PhaseAtMeeting
	back := r.Reversed().Points
	back = append(back, start.Pos)
	plan := []step{
		{kind: stepDetach},
		phase(PhaseStanding),
		clip(ClipStandUp),
		phase(PhaseWalking),
		loop(ClipWalk),
		walkTo(r.Points),
		face(r.FinalOrientation),
		phase(PhaseTalking),
		clip(ClipTalk),
		phase(PhaseWalkingBack),
		loop(ClipWalk),
		{kind: stepTurn},
		walkTo(back),
	}
	if fromMeeting {
		return append(plan, remoteTail(start.Yaw)...)
	}
	return append(plan, seatedTail()...)
}

func (a *Animator) exitPlan(r routes.Route) []step {
	return []step{
		{kind: stepDetach},
		phase(PhaseStanding),
		clip(ClipStandUp),
		phase(PhaseWalking),
		loop(ClipWalk),
		walkTo(r.Points),
		phase(PhaseAtDoor),
		loop(ClipIdle),
		{kind: stepDoor, open: true, wait: true},
		loop(ClipWalk),
		{kind: stepPass},
		{kind: stepHide},
		{kind: stepDoor, open: false},
		phase(PhaseAbsent),
		loop(ClipIdle),
	}
}

func (a *Animator) enterPlan(r routes.Route) []step {
	in := append([]geom.Vec2(nil), r.Points[1:]...)
	in = append(in, a.homePos())
	plan := []step{
		phase(PhaseAtDoor),
		{kind: stepPlace, pos: r.Points[0], yaw: geom.Heading(r.Points[0], r.Points[1])},
		loop(ClipIdle),
		{kind: stepShow},
		{kind: stepDoor, open: true, wait: true},
		phase(PhaseWalking),
		loop(ClipWalk),
		{kind: stepDoor, open: false},
		walkTo(in),
	}
	return append(plan, seatedTail()...)
}

func (a *Animator) meetingPlan(r routes.Route) []step {
	return []step{
		{kind: stepDetach},
		phase(PhaseStanding),
		clip(ClipStandUp),
		phase(PhaseWalking),
		loop(ClipWalk),
		walkTo(r.Points),
		face(r.FinalOrientation),
		phase(PhaseSittingRemote),
		clip(ClipSitDown),
		phase(PhaseAtMeeting),
		loop(ClipSeated),
	}
}

// meetingReturnPlan walks a meeting route backwards. r is the route that took
// the agent to its seat.
func (a *Animator) meetingReturnPlan(r routes.Route) []step {
	back := r.Reversed().Points
	back = append(back, a.homePos())
	plan := []step{
		{kind: stepDetach},
		phase(PhaseStanding),
		clip(ClipStandUp),
		phase(PhaseWalkingBack),
		loop(ClipWalk),
		walkTo(back),
	}
	return append(plan, seatedTail()...)
}

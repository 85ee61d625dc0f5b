package animator

import (
	"bytes"
	"log"
	"math"
	"strings"
	"testing"
	"time"

	"clawoffice.ai/internal/sim/geom"
	"clawoffice.ai/internal/sim/routes"
	"clawoffice.ai/internal/sim/tuning"
)

type phaseRecorder struct {
	phases []Phase
}

func (r *phaseRecorder) PhaseChanged(_ string, _, to Phase) { r.phases = append(r.phases, to) }

func testConfig() Config {
	return Config{
		Speed:     1,
		Turn:      500 * time.Millisecond,
		DoorSwing: 500 * time.Millisecond,
		DoorPass:  500 * time.Millisecond,
		Clips: map[string]time.Duration{
			ClipStandUp: time.Second,
			ClipSitDown: time.Second,
			ClipTalk:    3 * time.Second,
		},
		HasWalk: true,
	}
}

var (
	testDesk = geom.Transform{Pos: geom.Vec2{X: 3, Z: -1}, Yaw: math.Pi / 2}
	testHome = geom.Transform{Pos: geom.Vec2{X: 0, Z: 0.6}, Yaw: math.Pi}
)

func newTestAnimator(t *testing.T, cfg Config, door *Door) (*Animator, *phaseRecorder, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	rec := &phaseRecorder{}
	a := New("CTO", testDesk, testHome, cfg, door, rec, log.New(&buf, "", 0))
	return a, rec, &buf
}

// runUntilIdle advances in 100ms frames and fails if the plan never ends.
func runUntilIdle(t *testing.T, a *Animator, door *Door) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		if !a.Animating() {
			return
		}
		a.Advance(100 * time.Millisecond)
		if door != nil {
			door.Advance(100 * time.Millisecond)
		}
	}
	t.Fatalf("still animating after 100s, phase=%s", a.Phase())
}

func convRoute() routes.Route {
	return routes.Route{
		ID:               "cto_to_ceo",
		StartName:        "CTO",
		EndName:          "CEO",
		Points:           []geom.Vec2{{X: 3.6, Z: -1.7}, {X: 3.6, Z: 1}, {X: 1, Z: 1}},
		FinalOrientation: -math.Pi / 2,
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestConversationPhaseSequence(t *testing.T) {
	a, rec, _ := newTestAnimator(t, testConfig(), nil)
	if a.Phase() != PhaseSeatedIdle || !a.Attached() {
		t.Fatalf("initial phase=%s attached=%v", a.Phase(), a.Attached())
	}
	if !a.Execute(convRoute(), routes.KindConversation) {
		t.Fatalf("Execute refused")
	}
	runUntilIdle(t, a, nil)

	want := []Phase{PhaseStanding, PhaseWalking, PhaseTalking, PhaseWalkingBack, PhaseSittingDown, PhaseSeatedIdle}
	if len(rec.phases) != len(want) {
		t.Fatalf("phases=%v want %v", rec.phases, want)
	}
	for i := range want {
		if rec.phases[i] != want[i] {
			t.Fatalf("phase[%d]=%s want %s (all=%v)", i, rec.phases[i], want[i], rec.phases)
		}
	}
}

func TestConversationRestoresExactSeat(t *testing.T) {
	a, _, _ := newTestAnimator(t, testConfig(), nil)
	before := a.World()
	a.Execute(convRoute(), routes.KindConversation)
	runUntilIdle(t, a, nil)

	if !a.Attached() {
		t.Fatalf("expected attached after conversation")
	}
	if a.Local() != testHome {
		t.Fatalf("local=%+v want %+v", a.Local(), testHome)
	}
	after := a.World()
	if !near(after.Pos.X, before.Pos.X) || !near(after.Pos.Z, before.Pos.Z) || !near(after.Yaw, before.Yaw) {
		t.Fatalf("world drifted: before=%+v after=%+v", before, after)
	}
	if a.Pose().Clip != ClipSeated {
		t.Fatalf("clip=%q want %q", a.Pose().Clip, ClipSeated)
	}
}

func TestFacesFinalOrientationWhileTalking(t *testing.T) {
	a, _, _ := newTestAnimator(t, testConfig(), nil)
	a.Execute(convRoute(), routes.KindConversation)
	for i := 0; i < 1000 && a.Phase() != PhaseTalking; i++ {
		a.Advance(100 * time.Millisecond)
	}
	if a.Phase() != PhaseTalking {
		t.Fatalf("never reached TALKING")
	}
	w := a.World()
	if !near(w.Pos.X, 1) || !near(w.Pos.Z, 1) {
		t.Fatalf("talking at %+v, want route end", w.Pos)
	}
	if !near(w.Yaw, -math.Pi/2) {
		t.Fatalf("yaw=%v want %v", w.Yaw, -math.Pi/2)
	}
	if a.Pose().Clip != ClipTalk {
		t.Fatalf("clip=%q", a.Pose().Clip)
	}
}

func TestExecuteRefusedWhileAnimating(t *testing.T) {
	a, _, buf := newTestAnimator(t, testConfig(), nil)
	if !a.Execute(convRoute(), routes.KindConversation) {
		t.Fatalf("first Execute refused")
	}
	if a.Execute(convRoute(), routes.KindConversation) {
		t.Fatalf("second Execute accepted while animating")
	}
	if !strings.Contains(buf.String(), "already animating") {
		t.Fatalf("log=%q", buf.String())
	}
}

func TestShortRouteIgnored(t *testing.T) {
	a, rec, _ := newTestAnimator(t, testConfig(), nil)
	r := convRoute()
	r.Points = r.Points[:1]
	if a.Execute(r, routes.KindConversation) {
		t.Fatalf("accepted single point route")
	}
	if a.Animating() || len(rec.phases) != 0 {
		t.Fatalf("animating=%v phases=%v", a.Animating(), rec.phases)
	}
}

func TestMissingClipResolvesImmediately(t *testing.T) {
	cfg := testConfig()
	delete(cfg.Clips, ClipStandUp)
	a, rec, buf := newTestAnimator(t, cfg, nil)
	a.Execute(convRoute(), routes.KindConversation)
	if a.Phase() != PhaseWalking {
		t.Fatalf("phase=%s want WALKING right away", a.Phase())
	}
	if len(rec.phases) != 2 || rec.phases[0] != PhaseStanding {
		t.Fatalf("phases=%v", rec.phases)
	}
	if !strings.Contains(buf.String(), "clip stand_up missing") {
		t.Fatalf("log=%q", buf.String())
	}
}

func TestWalkSpeed(t *testing.T) {
	cfg := testConfig()
	cfg.Clips = map[string]time.Duration{}
	a := New("PM", geom.Transform{}, geom.Transform{}, cfg, nil, nil, log.New(&bytes.Buffer{}, "", 0))
	r := routes.Route{ID: "pm_to_x", Points: []geom.Vec2{{X: 0, Z: 0}, {X: 0, Z: 2}}}
	a.Execute(r, routes.KindMeeting)
	a.Advance(350 * time.Millisecond)
	w := a.World()
	if !near(w.Pos.X, 0) || math.Abs(w.Pos.Z-0.35) > 1e-6 {
		t.Fatalf("pos=%+v want (0,0.35)", w.Pos)
	}
	if !near(w.Yaw, 0) {
		t.Fatalf("yaw=%v", w.Yaw)
	}
}

func TestExitAndEnter(t *testing.T) {
	door := NewDoor(math.Pi / 2)
	a, rec, _ := newTestAnimator(t, testConfig(), door)
	exit := routes.Route{
		ID:        "cto_to_door",
		StartName: "CTO",
		EndName:   "Exit Door",
		Points:    []geom.Vec2{{X: 3.6, Z: -1.7}, {X: 0, Z: -1.7}, {X: 0, Z: 5.2}, {X: 0, Z: 5.9}},
	}
	a.Execute(exit, routes.KindExit)
	opened := false
	for i := 0; i < 1000 && a.Animating(); i++ {
		a.Advance(100 * time.Millisecond)
		door.Advance(100 * time.Millisecond)
		if door.Open() {
			opened = true
		}
	}
	if !opened {
		t.Fatalf("door never opened")
	}
	if a.Phase() != PhaseAbsent || a.Visible() || a.Attached() {
		t.Fatalf("after exit phase=%s visible=%v attached=%v", a.Phase(), a.Visible(), a.Attached())
	}
	for i := 0; i < 10; i++ {
		door.Advance(100 * time.Millisecond)
	}
	if door.Angle() != 0 {
		t.Fatalf("door left at %v", door.Angle())
	}
	wantExit := []Phase{PhaseStanding, PhaseWalking, PhaseAtDoor, PhaseAbsent}
	if len(rec.phases) != len(wantExit) {
		t.Fatalf("exit phases=%v", rec.phases)
	}

	rec.phases = nil
	a.Execute(exit.Reversed(), routes.KindEnter)
	if a.Phase() != PhaseAtDoor || !a.Visible() {
		t.Fatalf("enter start phase=%s visible=%v", a.Phase(), a.Visible())
	}
	runUntilIdle(t, a, door)
	wantEnter := []Phase{PhaseAtDoor, PhaseWalking, PhaseSittingDown, PhaseSeatedIdle}
	if len(rec.phases) != len(wantEnter) {
		t.Fatalf("enter phases=%v", rec.phases)
	}
	for i := range wantEnter {
		if rec.phases[i] != wantEnter[i] {
			t.Fatalf("enter phases=%v", rec.phases)
		}
	}
	if !a.Attached() || a.Local() != testHome {
		t.Fatalf("not reseated: attached=%v local=%+v", a.Attached(), a.Local())
	}
}

func TestMeetingAndReturn(t *testing.T) {
	a, rec, _ := newTestAnimator(t, testConfig(), nil)
	seat := 0
	r := routes.Route{
		ID:               "cto_to_warroom_chair2",
		StartName:        "CTO",
		EndName:          "War Room Chair 2",
		Points:           []geom.Vec2{{X: 3.6, Z: -1.7}, {X: -6.4, Z: -1.7}, {X: -6.4, Z: 3}},
		FinalOrientation: -math.Pi / 2,
		IsWarRoom:        true,
		ChairIndex:       &seat,
	}
	a.Execute(r, routes.KindMeeting)
	runUntilIdle(t, a, nil)
	if a.Phase() != PhaseAtMeeting || a.Attached() {
		t.Fatalf("phase=%s attached=%v", a.Phase(), a.Attached())
	}
	w := a.World()
	if !near(w.Pos.X, -6.4) || !near(w.Pos.Z, 3) || !near(w.Yaw, -math.Pi/2) {
		t.Fatalf("seated at %+v", w)
	}

	rec.phases = nil
	a.Execute(r, routes.KindMeetingReturn)
	runUntilIdle(t, a, nil)
	want := []Phase{PhaseStanding, PhaseWalkingBack, PhaseSittingDown, PhaseSeatedIdle}
	if len(rec.phases) != len(want) {
		t.Fatalf("return phases=%v", rec.phases)
	}
	if a.Local() != testHome || !a.Attached() {
		t.Fatalf("not reseated")
	}
}

func TestConversationFromMeetingSeatReturnsToSeat(t *testing.T) {
	a, rec, _ := newTestAnimator(t, testConfig(), nil)
	seat := 1
	meeting := routes.Route{
		ID:               "cto_to_warroom_chair2",
		StartName:        "CTO",
		EndName:          "War Room Chair 2",
		Points:           []geom.Vec2{{X: 3.6, Z: -1.7}, {X: -6.4, Z: -1.7}, {X: -6.4, Z: 3}},
		FinalOrientation: -math.Pi / 2,
		IsWarRoom:        true,
		ChairIndex:       &seat,
	}
	a.Execute(meeting, routes.KindMeeting)
	runUntilIdle(t, a, nil)
	atSeat := a.World()

	rec.phases = nil
	if !a.Execute(convRoute(), routes.KindConversation) {
		t.Fatalf("Execute refused")
	}
	maxStep := 0.0
	prev := a.World().Pos
	for i := 0; i < 1000 && a.Animating(); i++ {
		a.Advance(100 * time.Millisecond)
		if d := a.World().Pos.Dist(prev); d > maxStep {
			maxStep = d
		}
		prev = a.World().Pos
	}
	if a.Animating() {
		t.Fatalf("still animating, phase=%s", a.Phase())
	}
	if maxStep > 0.1+1e-9 {
		t.Fatalf("moved %.3fm in one 100ms frame at 1m/s", maxStep)
	}
	if a.Phase() != PhaseAtMeeting || a.Attached() {
		t.Fatalf("phase=%s attached=%v", a.Phase(), a.Attached())
	}
	w := a.World()
	if w.Pos.Dist(atSeat.Pos) > 1e-9 || !near(w.Yaw, atSeat.Yaw) {
		t.Fatalf("ended at %+v, left from %+v", w, atSeat)
	}
	want := []Phase{PhaseStanding, PhaseWalking, PhaseTalking, PhaseWalkingBack, PhaseSittingRemote, PhaseAtMeeting}
	if len(rec.phases) != len(want) {
		t.Fatalf("phases=%v want %v", rec.phases, want)
	}
	for i := range want {
		if rec.phases[i] != want[i] {
			t.Fatalf("phase[%d]=%s want %s", i, rec.phases[i], want[i])
		}
	}

	a.Execute(meeting, routes.KindMeetingReturn)
	runUntilIdle(t, a, nil)
	if a.Phase() != PhaseSeatedIdle || !a.Attached() || a.Local() != testHome {
		t.Fatalf("not reseated after meeting return: phase=%s", a.Phase())
	}
}

func TestStopReseats(t *testing.T) {
	a, _, _ := newTestAnimator(t, testConfig(), nil)
	a.Execute(convRoute(), routes.KindConversation)
	a.Advance(2 * time.Second)
	a.Stop()
	if a.Animating() || a.Phase() != PhaseSeatedIdle || a.Local() != testHome {
		t.Fatalf("after Stop animating=%v phase=%s local=%+v", a.Animating(), a.Phase(), a.Local())
	}
}

func TestConfigFromTuningDropsZeroClips(t *testing.T) {
	tu := tuning.Defaults()
	tu.Clips.StandUpMs = 0
	cfg := ConfigFromTuning(tu)
	if _, ok := cfg.Clips[ClipStandUp]; ok {
		t.Fatalf("stand_up should be missing")
	}
	if cfg.Clips[ClipTalk] != 3*time.Second || cfg.Speed != 1.5 || !cfg.HasWalk {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestVanishAndRespawn(t *testing.T) {
	a, _, _ := newTestAnimator(t, testConfig(), nil)
	a.Vanish()
	if a.Visible() || a.Phase() != PhaseAbsent {
		t.Fatalf("visible=%v phase=%s", a.Visible(), a.Phase())
	}
	a.Respawn()
	if !a.Visible() || a.Phase() != PhaseSeatedIdle || !a.Attached() {
		t.Fatalf("visible=%v phase=%s attached=%v", a.Visible(), a.Phase(), a.Attached())
	}
}

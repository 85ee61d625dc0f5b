package geom

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestHeadingMatchesForward(t *testing.T) {
	for _, yaw := range []float64{0, 0.3, math.Pi / 2, -2.1, math.Pi} {
		f := Forward(yaw)
		got := Heading(Vec2{}, f)
		if !near(math.Cos(got), math.Cos(yaw)) || !near(math.Sin(got), math.Sin(yaw)) {
			t.Fatalf("Heading(Forward(%v))=%v", yaw, got)
		}
	}
	if h := Heading(Vec2{}, Vec2{X: 1}); !near(h, math.Pi/2) {
		t.Fatalf("heading +X=%v", h)
	}
}

func TestRotateForward(t *testing.T) {
	yaw := 0.7
	r := Rotate(Vec2{Z: 1}, yaw)
	f := Forward(yaw)
	if !near(r.X, f.X) || !near(r.Z, f.Z) {
		t.Fatalf("Rotate=%+v Forward=%+v", r, f)
	}
}

func TestComposeRelativeRoundTrip(t *testing.T) {
	parent := Transform{Pos: Vec2{X: -4, Z: 1}, Yaw: 1.1}
	local := Transform{Pos: Vec2{X: 0.5, Z: -0.7}, Yaw: -0.4}
	world := Compose(parent, local)
	back := Relative(parent, world)
	if !near(back.Pos.X, local.Pos.X) || !near(back.Pos.Z, local.Pos.Z) || !near(back.Yaw, local.Yaw) {
		t.Fatalf("round trip mismatch: %+v vs %+v", back, local)
	}
}

func TestNormalizeAngle(t *testing.T) {
	if a := NormalizeAngle(3 * math.Pi); !near(a, math.Pi) {
		t.Fatalf("3π -> %v", a)
	}
	if a := NormalizeAngle(-math.Pi); !near(a, math.Pi) {
		t.Fatalf("-π -> %v", a)
	}
	if d := AngleDiff(math.Pi-0.1, -math.Pi+0.1); !near(d, 0.2) {
		t.Fatalf("shortest diff=%v", d)
	}
}

func TestEaseOut(t *testing.T) {
	if EaseOut(-1) != 0 || EaseOut(2) != 1 || !near(EaseOut(0.5), 0.75) {
		t.Fatalf("ease out curve mismatch")
	}
}

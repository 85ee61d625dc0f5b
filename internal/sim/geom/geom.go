package geom

import "math"

// Vec2 is a point on the floor plane. X grows to the right, Z grows toward the door.
type Vec2 struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

func (v Vec2) Add(o Vec2) Vec2      { return Vec2{X: v.X + o.X, Z: v.Z + o.Z} }
func (v Vec2) Sub(o Vec2) Vec2      { return Vec2{X: v.X - o.X, Z: v.Z - o.Z} }
func (v Vec2) Scale(k float64) Vec2 { return Vec2{X: v.X * k, Z: v.Z * k} }
func (v Vec2) Len() float64         { return math.Hypot(v.X, v.Z) }
func (v Vec2) Dist(o Vec2) float64  { return v.Sub(o).Len() }
func (v Vec2) Lerp(o Vec2, t float64) Vec2 {
	return Vec2{X: v.X + (o.X-v.X)*t, Z: v.Z + (o.Z-v.Z)*t}
}

// Forward is the unit vector an entity with the given yaw faces.
// Yaw 0 faces +Z; yaw π/2 faces +X.
func Forward(yaw float64) Vec2 { return Vec2{X: math.Sin(yaw), Z: math.Cos(yaw)} }

// Right is the unit vector to the right of an entity with the given yaw.
func Right(yaw float64) Vec2 { return Forward(yaw + math.Pi/2) }

// Heading returns the yaw that faces from a toward b.
func Heading(from, to Vec2) float64 {
	d := to.Sub(from)
	return math.Atan2(d.X, d.Z)
}

// NormalizeAngle wraps a into (-π, π].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// AngleDiff returns the shortest signed rotation from a to b.
func AngleDiff(a, b float64) float64 { return NormalizeAngle(b - a) }

// Rotate rotates v by yaw around the origin, matching the Forward convention:
// Rotate(Vec2{Z: 1}, yaw) == Forward(yaw).
func Rotate(v Vec2, yaw float64) Vec2 {
	s, c := math.Sin(yaw), math.Cos(yaw)
	return Vec2{X: v.X*c + v.Z*s, Z: -v.X*s + v.Z*c}
}

// Transform is a 2D rigid pose: position plus yaw.
type Transform struct {
	Pos Vec2    `json:"pos"`
	Yaw float64 `json:"yaw"`
}

// Compose returns parent∘local: the world pose of a child whose pose relative
// to parent is local.
func Compose(parent, local Transform) Transform {
	return Transform{
		Pos: parent.Pos.Add(Rotate(local.Pos, parent.Yaw)),
		Yaw: NormalizeAngle(parent.Yaw + local.Yaw),
	}
}

// Relative is the inverse of Compose: Compose(parent, Relative(parent, world)) == world.
func Relative(parent, world Transform) Transform {
	return Transform{
		Pos: Rotate(world.Pos.Sub(parent.Pos), -parent.Yaw),
		Yaw: NormalizeAngle(world.Yaw - parent.Yaw),
	}
}

// EaseOut is the quadratic ease-out curve t(2-t) clamped to [0,1].
func EaseOut(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * (2 - t)
}

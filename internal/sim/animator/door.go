package animator

import (
	"time"

	"clawoffice.ai/internal/sim/geom"
)

// Door is the swinging exit door shared by every animator.
type Door struct {
	openAngle float64

	angle    float64
	from, to float64
	dur      time.Duration
	elapsed  time.Duration
}

func NewDoor(openAngle float64) *Door { return &Door{openAngle: openAngle} }

// Swing starts animating toward open or closed. A non-positive duration snaps.
func (d *Door) Swing(open bool, dur time.Duration) {
	target := 0.0
	if open {
		target = d.openAngle
	}
	d.from, d.to = d.angle, target
	d.dur, d.elapsed = dur, 0
	if dur <= 0 {
		d.angle = target
		d.dur = 0
	}
}

func (d *Door) Advance(dt time.Duration) {
	if d.dur <= 0 {
		return
	}
	d.elapsed += dt
	t := float64(d.elapsed) / float64(d.dur)
	d.angle = d.from + (d.to-d.from)*geom.EaseOut(t)
	if d.elapsed >= d.dur {
		d.angle = d.to
		d.dur = 0
	}
}

func (d *Door) Angle() float64 { return d.angle }
func (d *Door) Moving() bool   { return d.dur > 0 }
func (d *Door) Open() bool     { return d.angle > 0 }

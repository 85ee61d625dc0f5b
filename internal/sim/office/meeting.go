package office

import (
	"fmt"
	"sort"

	"clawoffice.ai/internal/sim/animator"
	"clawoffice.ai/internal/sim/dispatch"
	"clawoffice.ai/internal/sim/roster"
)

type seatAssignment struct {
	name string
	seat int
}

func (o *Office) assignments() []seatAssignment {
	out := make([]seatAssignment, 0, len(o.layout.Meeting.Assignments))
	for name, seat := range o.layout.Meeting.Assignments {
		out = append(out, seatAssignment{name: o.names.Canonical(name), seat: seat})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seat < out[j].seat })
	return out
}

// ConveneMeeting queues one walk to the war room per assigned participant
// who is present and not already seated there. Runs on the office loop.
func (o *Office) ConveneMeeting() ([]dispatch.Request, error) {
	var out []dispatch.Request
	for _, a := range o.assignments() {
		anim, ok := o.anims[a.name]
		if !ok || !o.pres.IsPresent(a.name) || anim.Phase() == animator.PhaseAtMeeting {
			continue
		}
		r, err := o.disp.Enqueue(dispatch.Request{
			From:     a.name,
			To:       roster.ChairName(a.seat),
			Type:     dispatch.TypeMeeting,
			Content:  "meeting",
			Priority: dispatch.PriorityMedium,
		})
		if err != nil {
			return out, fmt.Errorf("convene %s: %w", a.name, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// DismissMeeting sends everyone seated in the war room back to their desks
// along the route that brought them.
func (o *Office) DismissMeeting() ([]dispatch.Request, error) {
	var out []dispatch.Request
	for _, a := range o.assignments() {
		anim, ok := o.anims[a.name]
		if !ok || anim.Phase() != animator.PhaseAtMeeting {
			continue
		}
		r, err := o.disp.Enqueue(dispatch.Request{
			From:     a.name,
			To:       roster.ChairName(a.seat),
			Type:     dispatch.TypeReturn,
			Content:  "meeting over",
			Priority: dispatch.PriorityMedium,
		})
		if err != nil {
			return out, fmt.Errorf("dismiss %s: %w", a.name, err)
		}
		out = append(out, r)
	}
	return out, nil
}

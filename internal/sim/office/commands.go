package office

import (
	"context"
	"time"

	"clawoffice.ai/internal/sim/animator"
	"clawoffice.ai/internal/sim/dispatch"
	"clawoffice.ai/internal/sim/presence"
)

type command struct {
	fn   func() (any, error)
	resp chan commandResp
}

type commandResp struct {
	v   any
	err error
}

// call runs fn on the office loop and waits for its result.
func call[T any](ctx context.Context, o *Office, fn func() (T, error)) (T, error) {
	var zero T
	c := command{
		fn:   func() (any, error) { return fn() },
		resp: make(chan commandResp, 1),
	}
	select {
	case <-o.stopped:
		return zero, ErrStopped
	default:
	}
	select {
	case o.cmds <- c:
	case <-o.stopped:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case r := <-c.resp:
		if r.err != nil {
			return zero, r.err
		}
		return r.v.(T), nil
	case <-o.stopped:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Interact queues an interaction event and returns the queued request.
func (o *Office) Interact(ctx context.Context, ev dispatch.Interaction) (dispatch.Request, error) {
	return call(ctx, o, func() (dispatch.Request, error) { return o.interact(ev) })
}

// Delegate queues a manual movement at high priority.
func (o *Office) Delegate(ctx context.Context, from, to string, typ dispatch.Type, content string) (dispatch.Request, error) {
	return call(ctx, o, func() (dispatch.Request, error) {
		if from == "" || to == "" {
			return dispatch.Request{}, errInvalid("from and to are required")
		}
		return o.disp.ForceDelegation(from, to, typ, content)
	})
}

func (o *Office) Heartbeat(ctx context.Context, beats map[string]time.Time) error {
	_, err := call(ctx, o, func() (struct{}, error) {
		o.pres.UpdateHeartbeats(o.now(), beats)
		return struct{}{}, nil
	})
	return err
}

func (o *Office) QueueStatus(ctx context.Context) (dispatch.Status, error) {
	return call(ctx, o, func() (dispatch.Status, error) { return o.disp.Status(), nil })
}

// ClearQueue drops pending movements and reports how many were dropped.
func (o *Office) ClearQueue(ctx context.Context) (int, error) {
	return call(ctx, o, func() (int, error) { return o.disp.Clear(), nil })
}

type PresenceView struct {
	Status presence.Status       `json:"status"`
	Agents []presence.AgentState `json:"agents"`
	Absent []string              `json:"absent"`
}

func (o *Office) Presence(ctx context.Context) (PresenceView, error) {
	return call(ctx, o, func() (PresenceView, error) {
		return PresenceView{
			Status: o.pres.Status(),
			Agents: o.pres.Snapshot(),
			Absent: o.pres.Absent(),
		}, nil
	})
}

func (o *Office) Leave(ctx context.Context, agent string) error {
	_, err := call(ctx, o, func() (struct{}, error) {
		return struct{}{}, o.pres.ForceLeave(agent, o.now())
	})
	return err
}

func (o *Office) Return(ctx context.Context, agent string) error {
	_, err := call(ctx, o, func() (struct{}, error) {
		return struct{}{}, o.pres.ForceReturn(agent, o.now())
	})
	return err
}

func (o *Office) Convene(ctx context.Context) ([]dispatch.Request, error) {
	return call(ctx, o, func() ([]dispatch.Request, error) { return o.ConveneMeeting() })
}

func (o *Office) Dismiss(ctx context.Context) ([]dispatch.Request, error) {
	return call(ctx, o, func() ([]dispatch.Request, error) { return o.DismissMeeting() })
}

func (o *Office) Poses(ctx context.Context) ([]animator.Pose, error) {
	return call(ctx, o, func() ([]animator.Pose, error) { return o.poses(), nil })
}

func (o *Office) poses() []animator.Pose {
	out := make([]animator.Pose, 0, len(o.order))
	for _, name := range o.order {
		out = append(out, o.anims[name].Pose())
	}
	return out
}

package office

import (
	"encoding/json"

	"clawoffice.ai/internal/protocol"
)

// ObserverJoinRequest registers a read-only frame stream. Out receives the
// latest frame only; slow readers skip frames.
type ObserverJoinRequest struct {
	SessionID string
	Out       chan []byte
	// Agents filters the frame. Empty means all agents.
	Agents []string
}

type observerClient struct {
	id     string
	out    chan []byte
	filter map[string]bool
}

func (o *Office) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.Out == nil {
		return
	}
	// Same session and channel: only the filter changes.
	if old := o.observers[req.SessionID]; old != nil && old.out != req.Out {
		close(old.out)
	}
	c := &observerClient{id: req.SessionID, out: req.Out}
	if len(req.Agents) > 0 {
		c.filter = map[string]bool{}
		for _, n := range req.Agents {
			c.filter[o.names.Canonical(n)] = true
		}
	}
	o.observers[req.SessionID] = c
}

func (o *Office) handleObserverLeave(id string) {
	c := o.observers[id]
	if c == nil {
		return
	}
	delete(o.observers, id)
	close(c.out)
}

func (o *Office) closeObservers() {
	for id, c := range o.observers {
		delete(o.observers, id)
		close(c.out)
	}
}

// Frame builds the current frame. Runs on the office loop.
func (o *Office) Frame(tick uint64) protocol.FrameMsg {
	st := o.disp.Status()
	f := protocol.FrameMsg{
		Type:            protocol.TypeFrame,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Agents:          make([]protocol.AgentPose, 0, len(o.order)),
		Door:            protocol.DoorState{Angle: o.door.Angle()},
		Queue:           protocol.QueueSummary{IsProcessing: st.IsProcessing, QueueLength: st.QueueLength},
	}
	if st.CurrentInteraction != nil {
		id := st.CurrentInteraction.ID
		f.Queue.Current = &id
	}
	for _, name := range o.order {
		p := o.anims[name].Pose()
		f.Agents = append(f.Agents, protocol.AgentPose{
			Name:     p.Name,
			X:        p.World.Pos.X,
			Z:        p.World.Pos.Z,
			Yaw:      p.World.Yaw,
			Phase:    p.Phase.String(),
			Clip:     p.Clip,
			Visible:  p.Visible,
			Attached: p.Attached,
		})
	}
	return f
}

func (o *Office) broadcast(tick uint64) {
	if len(o.observers) == 0 {
		return
	}
	f := o.Frame(tick)
	var all []byte
	for _, c := range o.observers {
		if c.filter == nil {
			if all == nil {
				b, err := json.Marshal(f)
				if err != nil {
					o.log.Printf("frame %d: %v", tick, err)
					return
				}
				all = b
			}
			sendLatest(c.out, all)
			continue
		}
		sub := f
		sub.Agents = nil
		for _, a := range f.Agents {
			if c.filter[a.Name] {
				sub.Agents = append(sub.Agents, a)
			}
		}
		if sub.Agents == nil {
			sub.Agents = []protocol.AgentPose{}
		}
		b, err := json.Marshal(sub)
		if err != nil {
			continue
		}
		sendLatest(c.out, b)
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

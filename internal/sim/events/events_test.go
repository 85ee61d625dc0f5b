package events

import "testing"

func TestFanout(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	f := Fanout{a, nil, b, Nop{}}
	f.Movement(Movement{RequestID: "r1", Status: MovementQueued})
	f.Presence(Presence{Agent: "pm-agent", Change: PresenceLeft})
	if len(a.Movements) != 1 || len(b.Movements) != 1 || len(a.Presences) != 1 || len(b.Presences) != 1 {
		t.Fatalf("fanout mismatch: a=%+v b=%+v", a, b)
	}
	if got := a.MovementStatuses(); len(got) != 1 || got[0] != MovementQueued {
		t.Fatalf("statuses=%v", got)
	}
}

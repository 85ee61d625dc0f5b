// Package events holds the typed records the office loop emits about movement
// and presence. Sinks receive them synchronously on the loop goroutine and
// must not block.
package events

import "time"

type MovementStatus string

const (
	MovementQueued     MovementStatus = "queued"
	MovementDispatched MovementStatus = "dispatched"
	MovementDropped    MovementStatus = "dropped"
	MovementSkipped    MovementStatus = "skipped"
	MovementCompleted  MovementStatus = "completed"
)

type Movement struct {
	At        time.Time      `json:"at"`
	RequestID string         `json:"request_id"`
	From      string         `json:"from"`
	To        string         `json:"to"`
	Type      string         `json:"type"`
	Priority  string         `json:"priority"`
	Status    MovementStatus `json:"status"`
	RouteID   string         `json:"route_id,omitempty"`
	Kind      string         `json:"kind,omitempty"`
	Reason    string         `json:"reason,omitempty"`
}

type PresenceChange string

const (
	PresenceJoined   PresenceChange = "joined"
	PresenceLeft     PresenceChange = "left"
	PresenceReturned PresenceChange = "returned"
	PresenceSpawned  PresenceChange = "spawned"
)

type Presence struct {
	At       time.Time      `json:"at"`
	Agent    string         `json:"agent"`
	Change   PresenceChange `json:"change"`
	LastSeen time.Time      `json:"last_seen"`
}

type Sink interface {
	Movement(Movement)
	Presence(Presence)
}

// Fanout forwards every record to each non-nil sink in order.
type Fanout []Sink

func (f Fanout) Movement(m Movement) {
	for _, s := range f {
		if s != nil {
			s.Movement(m)
		}
	}
}

func (f Fanout) Presence(p Presence) {
	for _, s := range f {
		if s != nil {
			s.Presence(p)
		}
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) Movement(Movement) {}
func (Nop) Presence(Presence) {}

// Recorder keeps every record in memory. It is meant for tests and the
// admin tooling, not for long-running servers.
type Recorder struct {
	Movements []Movement
	Presences []Presence
}

func (r *Recorder) Movement(m Movement) { r.Movements = append(r.Movements, m) }
func (r *Recorder) Presence(p Presence) { r.Presences = append(r.Presences, p) }

func (r *Recorder) MovementStatuses() []MovementStatus {
	out := make([]MovementStatus, len(r.Movements))
	for i, m := range r.Movements {
		out[i] = m.Status
	}
	return out
}

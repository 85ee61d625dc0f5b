// Package presence tracks agent activity and turns inactivity into exit and
// enter movements.
package presence

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"clawoffice.ai/internal/sim/dispatch"
	"clawoffice.ai/internal/sim/events"
	"clawoffice.ai/internal/sim/roster"
)

var (
	ErrUnknownAgent   = errors.New("unknown agent")
	ErrAlreadyAbsent  = errors.New("agent already absent")
	ErrAlreadyPresent = errors.New("agent already present")
)

type State string

const (
	Present State = "PRESENT"
	Absent  State = "ABSENT"
)

type AgentState struct {
	Name     string    `json:"name"`
	State    State     `json:"state"`
	LastSeen time.Time `json:"last_seen"`
}

// Env is what the monitor needs from the office.
type Env interface {
	Enqueue(r dispatch.Request) (dispatch.Request, error)
	HasRoute(from, to string) bool
	// Spawn seats the agent at its desk without walking.
	Spawn(name string)
	// Despawn hides the agent without walking.
	Despawn(name string)
}

type Config struct {
	Threshold     time.Duration
	SweepInterval time.Duration
}

type Status struct {
	Tracked int `json:"tracked"`
	Present int `json:"present"`
	Absent  int `json:"absent"`
}

type Monitor struct {
	cfg   Config
	env   Env
	names *roster.Roster
	sink  events.Sink
	log   *log.Logger

	agents     map[string]*AgentState
	sinceSweep time.Duration
}

func New(cfg Config, env Env, names *roster.Roster, sink events.Sink, logger *log.Logger) *Monitor {
	if logger == nil {
		logger = log.Default()
	}
	if sink == nil {
		sink = events.Nop{}
	}
	return &Monitor{cfg: cfg, env: env, names: names, sink: sink, log: logger, agents: map[string]*AgentState{}}
}

func (m *Monitor) person(name string) (string, bool) {
	c := m.names.Canonical(name)
	switch m.names.KindOf(c) {
	case roster.KindOrchestrator, roster.KindHead, roster.KindAgent:
		return c, true
	}
	return c, false
}

func (m *Monitor) active(now, seen time.Time) bool { return now.Sub(seen) < m.cfg.Threshold }

// UpdateHeartbeats ingests a {agent: last activity} map. Unknown agents are
// created present iff active. An absent agent with an active heartbeat comes
// back right away instead of waiting for the next sweep.
func (m *Monitor) UpdateHeartbeats(now time.Time, beats map[string]time.Time) {
	names := make([]string, 0, len(beats))
	for n := range beats {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, raw := range names {
		seen := beats[raw]
		name, ok := m.person(raw)
		if !ok {
			m.log.Printf("heartbeat for unknown agent %q ignored", raw)
			continue
		}
		st, ok := m.agents[name]
		if !ok {
			st = &AgentState{Name: name, State: Absent, LastSeen: seen}
			m.agents[name] = st
			if m.active(now, seen) {
				st.State = Present
				m.env.Spawn(name)
			} else {
				m.env.Despawn(name)
			}
			m.emit(now, st, events.PresenceJoined)
			continue
		}
		if seen.After(st.LastSeen) {
			st.LastSeen = seen
		}
		if st.State == Absent && m.active(now, st.LastSeen) {
			m.comeBack(now, st, "heartbeat")
		}
	}
}

// Advance runs a sweep once per SweepInterval of accumulated time.
func (m *Monitor) Advance(dt time.Duration, now time.Time) {
	m.sinceSweep += dt
	if m.cfg.SweepInterval > 0 && m.sinceSweep < m.cfg.SweepInterval {
		return
	}
	m.sinceSweep = 0
	m.Sweep(now)
}

// Sweep flips every present agent whose last activity is at least Threshold
// old. The orchestrator never leaves.
func (m *Monitor) Sweep(now time.Time) int {
	n := 0
	for _, name := range m.sortedNames() {
		st := m.agents[name]
		if st.State != Present || name == m.names.Orchestrator() {
			continue
		}
		if now.Sub(st.LastSeen) < m.cfg.Threshold {
			continue
		}
		m.leave(now, st, fmt.Sprintf("inactive for %s", now.Sub(st.LastSeen).Truncate(time.Second)))
		n++
	}
	return n
}

func (m *Monitor) leave(now time.Time, st *AgentState, why string) {
	st.State = Absent
	m.emit(now, st, events.PresenceLeft)
	door := m.names.Door()
	if !m.env.HasRoute(st.Name, door) {
		m.log.Printf("%s left (%s); no route to %s, hiding", st.Name, why, door)
		m.env.Despawn(st.Name)
		return
	}
	m.log.Printf("%s left (%s)", st.Name, why)
	if _, err := m.env.Enqueue(dispatch.Request{
		From:     st.Name,
		To:       door,
		Type:     dispatch.TypeExit,
		Content:  why,
		Priority: dispatch.PriorityHigh,
	}); err != nil {
		m.log.Printf("enqueue exit for %s: %v", st.Name, err)
	}
}

func (m *Monitor) comeBack(now time.Time, st *AgentState, why string) {
	st.State = Present
	m.emit(now, st, events.PresenceReturned)
	door := m.names.Door()
	if !m.env.HasRoute(door, st.Name) {
		m.log.Printf("%s returned (%s); no route from %s, spawning", st.Name, why, door)
		m.env.Spawn(st.Name)
		return
	}
	m.log.Printf("%s returned (%s)", st.Name, why)
	if _, err := m.env.Enqueue(dispatch.Request{
		From:     door,
		To:       st.Name,
		Type:     dispatch.TypeEnter,
		Content:  why,
		Priority: dispatch.PriorityLow,
	}); err != nil {
		m.log.Printf("enqueue enter for %s: %v", st.Name, err)
	}
}

// ForceLeave sends a present agent out through the door.
func (m *Monitor) ForceLeave(name string, now time.Time) error {
	st, err := m.lookup(name, now)
	if err != nil {
		return err
	}
	if st.State == Absent {
		return fmt.Errorf("%s: %w", st.Name, ErrAlreadyAbsent)
	}
	m.leave(now, st, "manual")
	return nil
}

// ForceReturn brings an absent agent back in and refreshes its activity.
func (m *Monitor) ForceReturn(name string, now time.Time) error {
	st, err := m.lookup(name, now)
	if err != nil {
		return err
	}
	if st.State == Present {
		return fmt.Errorf("%s: %w", st.Name, ErrAlreadyPresent)
	}
	st.LastSeen = now
	m.comeBack(now, st, "manual")
	return nil
}

// MarkSpawned records that the office put the agent back at its desk, for
// instance because a movement needed it present.
func (m *Monitor) MarkSpawned(name string, now time.Time) {
	c, ok := m.person(name)
	if !ok {
		return
	}
	st, ok := m.agents[c]
	if !ok {
		st = &AgentState{Name: c}
		m.agents[c] = st
	}
	if st.State == Present {
		return
	}
	st.State = Present
	st.LastSeen = now
	m.emit(now, st, events.PresenceSpawned)
}

// MarkExited records that the agent walked out through the door, whoever
// sent it there.
func (m *Monitor) MarkExited(name string, now time.Time) {
	c, ok := m.person(name)
	if !ok {
		return
	}
	st, ok := m.agents[c]
	if !ok {
		st = &AgentState{Name: c, LastSeen: now}
		m.agents[c] = st
	}
	if st.State == Absent {
		return
	}
	st.State = Absent
	m.emit(now, st, events.PresenceLeft)
}

// IsPresent reports whether the agent is present. Agents that never sent a
// heartbeat are at their desks and count as present.
func (m *Monitor) IsPresent(name string) bool {
	st, ok := m.agents[m.names.Canonical(name)]
	return !ok || st.State == Present
}

func (m *Monitor) State(name string) (AgentState, bool) {
	st, ok := m.agents[m.names.Canonical(name)]
	if !ok {
		return AgentState{}, false
	}
	return *st, true
}

func (m *Monitor) Present() []string { return m.filter(Present) }
func (m *Monitor) Absent() []string  { return m.filter(Absent) }

func (m *Monitor) Status() Status {
	s := Status{Tracked: len(m.agents)}
	for _, st := range m.agents {
		if st.State == Present {
			s.Present++
		} else {
			s.Absent++
		}
	}
	return s
}

// Snapshot returns every tracked agent sorted by name.
func (m *Monitor) Snapshot() []AgentState {
	out := make([]AgentState, 0, len(m.agents))
	for _, n := range m.sortedNames() {
		out = append(out, *m.agents[n])
	}
	return out
}

func (m *Monitor) lookup(name string, now time.Time) (*AgentState, error) {
	c, ok := m.person(name)
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownAgent)
	}
	st, ok := m.agents[c]
	if !ok {
		st = &AgentState{Name: c, State: Present, LastSeen: now}
		m.agents[c] = st
	}
	return st, nil
}

func (m *Monitor) filter(s State) []string {
	var out []string
	for _, n := range m.sortedNames() {
		if m.agents[n].State == s {
			out = append(out, n)
		}
	}
	return out
}

func (m *Monitor) sortedNames() []string {
	out := make([]string, 0, len(m.agents))
	for n := range m.agents {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (m *Monitor) emit(now time.Time, st *AgentState, c events.PresenceChange) {
	m.sink.Presence(events.Presence{At: now, Agent: st.Name, Change: c, LastSeen: st.LastSeen})
}

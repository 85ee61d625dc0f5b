// Package roster resolves the many spellings an agent goes by (display name,
// role, internal key, legacy label) to one canonical name.
package roster

import (
	"fmt"
	"sort"
	"strings"

	"clawoffice.ai/internal/sim/layout"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindOrchestrator
	KindHead
	KindAgent
	KindDoor
	KindChair
)

type Entry struct {
	Name       string
	Kind       Kind
	Department string
	Aliases    []string
}

type Roster struct {
	entries map[string]*Entry
	alias   map[string]string // folded alias -> canonical name
	order   []string
	door    string
	orch    string
}

// ChairName is the canonical endpoint name for a meeting seat (0-based index).
func ChairName(i int) string { return fmt.Sprintf("War Room Chair %d", i+1) }

func New(l *layout.Layout) *Roster {
	r := &Roster{
		entries: map[string]*Entry{},
		alias:   map[string]string{},
		door:    l.Door.Name,
		orch:    l.Orchestrator.Name,
	}
	o := l.Orchestrator
	r.add(o.Name, KindOrchestrator, "", append([]string{o.Role, o.Key}, o.Aliases...))
	for _, d := range l.Departments {
		h := d.Head
		r.add(h.Name, KindHead, d.Name, append([]string{h.Role, h.Key, "Head of " + d.Name}, h.Aliases...))
		for _, a := range d.Agents {
			key := a.Key
			if key == "" {
				key = strings.TrimSuffix(a.Name, "-agent")
			}
			r.add(a.Name, KindAgent, d.Name, append([]string{key, key + "-agent"}, a.Aliases...))
		}
	}
	r.add(l.Door.Name, KindDoor, "", l.Door.Aliases)
	for i := 0; i < l.Meeting.Seats; i++ {
		r.add(ChairName(i), KindChair, "", []string{fmt.Sprintf("chair%d", i+1), fmt.Sprintf("warroom_chair%d", i+1)})
	}
	return r
}

func fold(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (r *Roster) add(name string, kind Kind, dept string, aliases []string) {
	e := &Entry{Name: name, Kind: kind, Department: dept}
	r.entries[name] = e
	r.order = append(r.order, name)
	r.alias[fold(name)] = name
	for _, a := range aliases {
		if strings.TrimSpace(a) == "" {
			continue
		}
		k := fold(a)
		// First registration wins so a role never shadows a display name.
		if _, taken := r.alias[k]; taken {
			continue
		}
		r.alias[k] = name
		e.Aliases = append(e.Aliases, a)
	}
}

// Canonical maps any known spelling to the canonical name. Unknown names are
// returned trimmed but otherwise unchanged.
func (r *Roster) Canonical(name string) string {
	n := strings.TrimSpace(name)
	if _, ok := r.entries[n]; ok {
		return n
	}
	if c, ok := r.alias[fold(n)]; ok {
		return c
	}
	return n
}

func (r *Roster) Known(name string) bool {
	_, ok := r.entries[r.Canonical(name)]
	return ok
}

// Variations lists the canonical name followed by every registered alias.
// Unknown names yield just themselves.
func (r *Roster) Variations(name string) []string {
	c := r.Canonical(name)
	e, ok := r.entries[c]
	if !ok {
		return []string{c}
	}
	out := make([]string, 0, 1+len(e.Aliases))
	out = append(out, c)
	out = append(out, e.Aliases...)
	if n := strings.TrimSpace(name); n != c && !contains(out, n) {
		out = append(out, n)
	}
	return out
}

func (r *Roster) Entry(name string) (Entry, bool) {
	e, ok := r.entries[r.Canonical(name)]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

func (r *Roster) KindOf(name string) Kind {
	e, ok := r.entries[r.Canonical(name)]
	if !ok {
		return KindUnknown
	}
	return e.Kind
}

func (r *Roster) Door() string         { return r.door }
func (r *Roster) Orchestrator() string { return r.orch }
func (r *Roster) IsDoor(name string) bool {
	return r.Canonical(name) == r.door
}

// People returns every orchestrator, head and agent name in layout order.
func (r *Roster) People() []string {
	var out []string
	for _, n := range r.order {
		switch r.entries[n].Kind {
		case KindOrchestrator, KindHead, KindAgent:
			out = append(out, n)
		}
	}
	return out
}

// Aliases returns a sorted copy of the folded alias table, for diagnostics.
func (r *Roster) Aliases() []string {
	out := make([]string, 0, len(r.alias))
	for k := range r.alias {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

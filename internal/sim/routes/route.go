package routes

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"clawoffice.ai/internal/sim/geom"
	"clawoffice.ai/internal/sim/roster"
)

var ErrNotFound = errors.New("route not found")

type Route struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	StartName        string      `json:"startName"`
	EndName          string      `json:"endName"`
	Points           []geom.Vec2 `json:"points"`
	FinalOrientation float64     `json:"finalOrientation"`
	IsWarRoom        bool        `json:"isWarRoom,omitempty"`
	ChairIndex       *int        `json:"chairIndex,omitempty"`
}

func (r Route) Clone() Route {
	out := r
	out.Points = append([]geom.Vec2(nil), r.Points...)
	if r.ChairIndex != nil {
		idx := *r.ChairIndex
		out.ChairIndex = &idx
	}
	return out
}

// Reversed returns the same walk played backwards.
func (r Route) Reversed() Route {
	out := r.Clone()
	for i, j := 0, len(out.Points)-1; i < j; i, j = i+1, j-1 {
		out.Points[i], out.Points[j] = out.Points[j], out.Points[i]
	}
	out.StartName, out.EndName = r.EndName, r.StartName
	return out
}

func (r Route) Valid() error {
	if r.ID == "" {
		return fmt.Errorf("route without id")
	}
	if r.StartName == "" || r.EndName == "" {
		return fmt.Errorf("route %s: missing endpoint name", r.ID)
	}
	if len(r.Points) < 2 {
		return fmt.Errorf("route %s: needs at least 2 points, has %d", r.ID, len(r.Points))
	}
	if r.ChairIndex != nil && *r.ChairIndex < 0 {
		return fmt.Errorf("route %s: negative chair index", r.ID)
	}
	return nil
}

type Kind int

const (
	KindConversation Kind = iota + 1
	KindExit
	KindEnter
	KindMeeting
	KindMeetingReturn
)

func (k Kind) String() string {
	switch k {
	case KindConversation:
		return "conversation"
	case KindExit:
		return "exit"
	case KindEnter:
		return "enter"
	case KindMeeting:
		return "meeting"
	case KindMeetingReturn:
		return "meeting_return"
	}
	return "unknown"
}

type pairKey struct{ from, to string }

type chairKey struct {
	from  string
	chair int
}

// Catalog is an immutable set of routes indexed by endpoint pair and by
// meeting seat. Replace returns a new catalog.
type Catalog struct {
	routes  []Route
	byID    map[string]int
	byPair  map[pairKey]int
	byChair map[chairKey]int
	names   *roster.Roster
}

// NewCatalog indexes routes. Invalid routes are skipped and reported; on
// duplicate ids or endpoint pairs the first route wins.
func NewCatalog(rs []Route, names *roster.Roster) (*Catalog, []error) {
	c := &Catalog{
		byID:    map[string]int{},
		byPair:  map[pairKey]int{},
		byChair: map[chairKey]int{},
		names:   names,
	}
	var errs []error
	for _, r := range rs {
		if err := r.Valid(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := c.byID[r.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate route id %s", r.ID))
			continue
		}
		c.routes = append(c.routes, r.Clone())
	}
	sort.SliceStable(c.routes, func(i, j int) bool { return c.routes[i].ID < c.routes[j].ID })
	c.reindex()
	return c, errs
}

func (c *Catalog) reindex() {
	c.byID = make(map[string]int, len(c.routes))
	c.byPair = make(map[pairKey]int, len(c.routes))
	c.byChair = map[chairKey]int{}
	for i, r := range c.routes {
		c.byID[r.ID] = i
		keys := []pairKey{{r.StartName, r.EndName}, {c.canon(r.StartName), c.canon(r.EndName)}}
		for _, k := range keys {
			if _, taken := c.byPair[k]; !taken {
				c.byPair[k] = i
			}
		}
		if r.ChairIndex != nil {
			k := chairKey{c.canon(r.StartName), *r.ChairIndex}
			if _, taken := c.byChair[k]; !taken {
				c.byChair[k] = i
			}
		}
	}
}

func (c *Catalog) canon(name string) string {
	if c.names == nil {
		return name
	}
	return c.names.Canonical(name)
}

func (c *Catalog) Len() int { return len(c.routes) }

func (c *Catalog) Routes() []Route {
	out := make([]Route, len(c.routes))
	for i, r := range c.routes {
		out[i] = r.Clone()
	}
	return out
}

func (c *Catalog) Get(id string) (Route, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Route{}, false
	}
	return c.routes[i].Clone(), true
}

// Lookup finds the route between two endpoints, trying the canonical names
// first and then every known spelling of each side.
func (c *Catalog) Lookup(from, to string) (Route, bool) {
	if i, ok := c.byPair[pairKey{c.canon(from), c.canon(to)}]; ok {
		return c.routes[i].Clone(), true
	}
	if c.names == nil {
		if i, ok := c.byPair[pairKey{from, to}]; ok {
			return c.routes[i].Clone(), true
		}
		return Route{}, false
	}
	for _, f := range c.names.Variations(from) {
		for _, t := range c.names.Variations(to) {
			if i, ok := c.byPair[pairKey{f, t}]; ok {
				return c.routes[i].Clone(), true
			}
		}
	}
	return Route{}, false
}

func (c *Catalog) Has(from, to string) bool {
	_, ok := c.Lookup(from, to)
	return ok
}

func (c *Catalog) LookupChair(from string, chair int) (Route, bool) {
	i, ok := c.byChair[chairKey{c.canon(from), chair}]
	if !ok {
		return Route{}, false
	}
	return c.routes[i].Clone(), true
}

// Kind classifies a route by its endpoints.
func (c *Catalog) Kind(r Route) Kind {
	switch {
	case r.IsWarRoom:
		return KindMeeting
	case c.names != nil && c.names.IsDoor(r.EndName):
		return KindExit
	case c.names != nil && c.names.IsDoor(r.StartName):
		return KindEnter
	}
	return KindConversation
}

// Replace swaps in a route with the same id, or appends it if the id is new.
func (c *Catalog) Replace(r Route) (*Catalog, error) {
	if err := r.Valid(); err != nil {
		return nil, err
	}
	next := &Catalog{names: c.names, routes: make([]Route, 0, len(c.routes)+1)}
	replaced := false
	for _, old := range c.routes {
		if old.ID == r.ID {
			next.routes = append(next.routes, r.Clone())
			replaced = true
			continue
		}
		next.routes = append(next.routes, old)
	}
	if !replaced {
		next.routes = append(next.routes, r.Clone())
		sort.SliceStable(next.routes, func(i, j int) bool { return next.routes[i].ID < next.routes[j].ID })
	}
	next.reindex()
	return next, nil
}

// Digest is a content hash of the catalog in id order.
func (c *Catalog) Digest() string {
	b, _ := json.Marshal(c.routes)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

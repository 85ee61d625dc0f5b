package routes

import (
	"fmt"
	"log"
	"math"
	"strings"

	"clawoffice.ai/internal/sim/geom"
	"clawoffice.ai/internal/sim/layout"
	"clawoffice.ai/internal/sim/pathfind"
	"clawoffice.ai/internal/sim/roster"
)

// wallMargin places wall obstacles just outside the walkable rectangle.
const wallMargin = 0.2

type Generator struct {
	layout *layout.Layout
	names  *roster.Roster
	log    *log.Logger
}

func NewGenerator(l *layout.Layout, names *roster.Roster, logger *log.Logger) *Generator {
	if logger == nil {
		logger = log.Default()
	}
	if names == nil {
		names = roster.New(l)
	}
	return &Generator{layout: l, names: names, log: logger}
}

// Obstacles rebuilds the static obstacle list from the current layout.
func (g *Generator) Obstacles() []pathfind.Obstacle {
	l := g.layout
	var obs []pathfind.Obstacle
	for _, m := range l.Members() {
		d, ok := l.Desk(m.Name)
		if !ok {
			continue
		}
		obs = append(obs, pathfind.Box(d.Pos(), l.Obstacles.DeskHalfExtent))
	}
	if l.Meeting.TableRadius > 0 {
		obs = append(obs, pathfind.Circle(l.Meeting.Center(), l.Meeting.TableRadius))
	}
	if l.Obstacles.WallRadius > 0 && l.Obstacles.WallSpacing > 0 {
		obs = append(obs, g.walls()...)
	}
	return obs
}

func (g *Generator) walls() []pathfind.Obstacle {
	l := g.layout
	r, step := l.Obstacles.WallRadius, l.Obstacles.WallSpacing
	left, right := l.Floor.MinX-wallMargin, l.Floor.MaxX+wallMargin
	back, front := l.Floor.MinZ-wallMargin, l.Floor.MaxZ+wallMargin
	door := l.Door.Pos()

	var out []pathfind.Obstacle
	add := func(p geom.Vec2) {
		if math.Abs(p.X-door.X) <= l.Door.Width/2 && math.Abs(p.Z-door.Z) <= 2*wallMargin+r {
			return
		}
		out = append(out, pathfind.Circle(p, r))
	}
	for z := back; z <= front+1e-9; z += step {
		add(geom.Vec2{X: left, Z: z})
		add(geom.Vec2{X: right, Z: z})
	}
	for x := left; x <= right+1e-9; x += step {
		add(geom.Vec2{X: x, Z: back})
		add(geom.Vec2{X: x, Z: front})
	}
	return out
}

func (g *Generator) Grid() *pathfind.Grid {
	f := g.layout.Floor
	return pathfind.New(pathfind.Bounds{MinX: f.MinX, MaxX: f.MaxX, MinZ: f.MinZ, MaxZ: f.MaxZ}, g.Obstacles(), f.CellSize)
}

// Generate builds the full catalog from scratch. It never reads a previous
// catalog, so running it twice yields identical routes.
func (g *Generator) Generate() []Route {
	l := g.layout
	grid := g.Grid()
	var out []Route

	orch := l.Orchestrator
	for _, d := range l.Departments {
		if r, ok := g.deskToDesk(grid, orch, d.Head); ok {
			out = append(out, r)
		}
		if r, ok := g.deskToDesk(grid, d.Head, orch); ok {
			out = append(out, r)
		}
		for _, a := range d.Agents {
			if r, ok := g.deskToDesk(grid, d.Head, a); ok {
				out = append(out, r)
			}
			if r, ok := g.deskToDesk(grid, a, d.Head); ok {
				out = append(out, r)
			}
		}
	}

	for _, m := range l.Members()[1:] {
		if r, ok := g.toDoor(grid, m); ok {
			out = append(out, r)
		}
		if r, ok := g.fromDoor(grid, m); ok {
			out = append(out, r)
		}
	}

	for i := 0; i < l.Meeting.Seats; i++ {
		if r, ok := g.toSeat(grid, orch, i); ok {
			out = append(out, r)
		}
	}
	for _, m := range l.Members()[1:] {
		seat, ok := l.Meeting.Assignments[m.Name]
		if !ok {
			continue
		}
		if r, ok := g.toSeat(grid, m, seat); ok {
			out = append(out, r)
		}
	}

	g.log.Printf("generated %d routes around %d obstacles", len(out), len(grid.Obstacles()))
	return out
}

func (g *Generator) desk(m layout.Member) (layout.Desk, bool) {
	d, ok := g.layout.Desk(m.Name)
	if !ok {
		g.log.Printf("no desk for %q; skipping its routes", m.Name)
	}
	return d, ok
}

func (g *Generator) deskToDesk(grid *pathfind.Grid, from, to layout.Member) (Route, bool) {
	fd, ok := g.desk(from)
	if !ok {
		return Route{}, false
	}
	td, ok := g.desk(to)
	if !ok {
		return Route{}, false
	}
	start := g.layout.ChairAnchor(fd)
	end := g.layout.FrontAnchor(td)
	pts := grid.FindPath(start, end)
	return Route{
		ID:               g.token(from) + "_to_" + g.token(to),
		Name:             from.Name + " → " + to.Name,
		StartName:        from.Name,
		EndName:          to.Name,
		Points:           pts,
		FinalOrientation: geom.Heading(pts[len(pts)-1], td.Pos()),
	}, true
}

func (g *Generator) toDoor(grid *pathfind.Grid, m layout.Member) (Route, bool) {
	d, ok := g.desk(m)
	if !ok {
		return Route{}, false
	}
	door := g.layout.Door
	pts := append(grid.FindPath(g.layout.ChairAnchor(d), door.Inside()), door.Pos())
	return Route{
		ID:               g.token(m) + "_to_door",
		Name:             m.Name + " → " + door.Name,
		StartName:        m.Name,
		EndName:          door.Name,
		Points:           pathfind.Simplify(pts),
		FinalOrientation: geom.Heading(door.Inside(), door.Pos()),
	}, true
}

func (g *Generator) fromDoor(grid *pathfind.Grid, m layout.Member) (Route, bool) {
	d, ok := g.desk(m)
	if !ok {
		return Route{}, false
	}
	door := g.layout.Door
	pts := append([]geom.Vec2{door.Pos()}, grid.FindPath(door.Inside(), g.layout.ChairAnchor(d))...)
	return Route{
		ID:               "door_to_" + g.token(m),
		Name:             door.Name + " → " + m.Name,
		StartName:        door.Name,
		EndName:          m.Name,
		Points:           pathfind.Simplify(pts),
		FinalOrientation: geom.Heading(pts[len(pts)-1], d.Pos()),
	}, true
}

func (g *Generator) toSeat(grid *pathfind.Grid, m layout.Member, seat int) (Route, bool) {
	d, ok := g.desk(m)
	if !ok {
		return Route{}, false
	}
	pos, yaw := g.layout.Meeting.SeatPos(seat)
	idx := seat
	chair := roster.ChairName(seat)
	return Route{
		ID:               fmt.Sprintf("%s_to_warroom_chair%d", g.token(m), seat+1),
		Name:             m.Name + " → " + chair,
		StartName:        m.Name,
		EndName:          chair,
		Points:           grid.FindPath(g.layout.ChairAnchor(d), pos),
		FinalOrientation: yaw,
		IsWarRoom:        true,
		ChairIndex:       &idx,
	}, true
}

// token is the short id fragment for a member: the orchestrator by name,
// heads by role, agents by key.
func (g *Generator) token(m layout.Member) string {
	switch g.names.KindOf(m.Name) {
	case roster.KindOrchestrator:
		return slug(m.Name)
	case roster.KindHead:
		if m.Role != "" {
			return slug(m.Role)
		}
	case roster.KindAgent:
		if m.Key != "" {
			return slug(m.Key)
		}
		return slug(strings.TrimSuffix(m.Name, "-agent"))
	}
	return slug(m.Name)
}

func slug(s string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

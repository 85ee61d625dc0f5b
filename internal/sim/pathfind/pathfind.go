package pathfind

import (
	"container/heap"
	"math"

	"clawoffice.ai/internal/sim/geom"
)

const (
	DefaultCellSize = 0.05
	// FreeSearchRadius bounds the ring search (in cells) used when the goal cell is blocked.
	FreeSearchRadius = 20
	// collinearEpsilon is the cross-product threshold below which a waypoint is dropped.
	collinearEpsilon = 0.001
)

type Shape int

const (
	ShapeBox Shape = iota + 1
	ShapeCircle
)

// Obstacle is an axis-aligned square (Radius is the half-extent) or a circle.
// Boundaries are inclusive.
type Obstacle struct {
	Shape  Shape
	Center geom.Vec2
	Radius float64
}

func Box(center geom.Vec2, half float64) Obstacle {
	return Obstacle{Shape: ShapeBox, Center: center, Radius: half}
}

func Circle(center geom.Vec2, r float64) Obstacle {
	return Obstacle{Shape: ShapeCircle, Center: center, Radius: r}
}

func (o Obstacle) Contains(p geom.Vec2) bool {
	switch o.Shape {
	case ShapeBox:
		return p.X >= o.Center.X-o.Radius && p.X <= o.Center.X+o.Radius &&
			p.Z >= o.Center.Z-o.Radius && p.Z <= o.Center.Z+o.Radius
	case ShapeCircle:
		dx, dz := p.X-o.Center.X, p.Z-o.Center.Z
		return dx*dx+dz*dz <= o.Radius*o.Radius
	}
	return false
}

// Bounds is the walkable floor rectangle (inclusive).
type Bounds struct {
	MinX, MaxX float64
	MinZ, MaxZ float64
}

func (b Bounds) Contains(p geom.Vec2) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Z >= b.MinZ && p.Z <= b.MaxZ
}

type cell struct{ I, J int }

// Grid is an occupancy view over a floor plan. It is immutable once built and
// safe to share between goroutines.
type Grid struct {
	cellSize  float64
	bounds    Bounds
	obstacles []Obstacle

	// occupancy cache over the cells covering bounds
	minI, minJ int
	cols, rows int
	blocked    []bool
}

func New(bounds Bounds, obstacles []Obstacle, cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	obs := make([]Obstacle, len(obstacles))
	copy(obs, obstacles)
	g := &Grid{cellSize: cellSize, bounds: bounds, obstacles: obs}
	lo := g.snap(geom.Vec2{X: bounds.MinX, Z: bounds.MinZ})
	hi := g.snap(geom.Vec2{X: bounds.MaxX, Z: bounds.MaxZ})
	g.minI, g.minJ = lo.I-1, lo.J-1
	g.cols, g.rows = hi.I-lo.I+3, hi.J-lo.J+3
	if g.cols > 0 && g.rows > 0 {
		g.blocked = make([]bool, g.cols*g.rows)
		for j := 0; j < g.rows; j++ {
			for i := 0; i < g.cols; i++ {
				g.blocked[j*g.cols+i] = g.Blocked(g.center(cell{I: g.minI + i, J: g.minJ + j}))
			}
		}
	}
	return g
}

func (g *Grid) CellSize() float64     { return g.cellSize }
func (g *Grid) Bounds() Bounds        { return g.bounds }
func (g *Grid) Obstacles() []Obstacle { return append([]Obstacle(nil), g.obstacles...) }

// Blocked reports whether p lies outside the floor or inside any obstacle.
func (g *Grid) Blocked(p geom.Vec2) bool {
	if !g.bounds.Contains(p) {
		return true
	}
	for _, o := range g.obstacles {
		if o.Contains(p) {
			return true
		}
	}
	return false
}

// snap rounds half toward +inf on each axis.
func (g *Grid) snap(p geom.Vec2) cell {
	return cell{
		I: int(math.Floor(p.X/g.cellSize + 0.5)),
		J: int(math.Floor(p.Z/g.cellSize + 0.5)),
	}
}

func (g *Grid) center(c cell) geom.Vec2 {
	return geom.Vec2{X: float64(c.I) * g.cellSize, Z: float64(c.J) * g.cellSize}
}

func (g *Grid) cellBlocked(c cell) bool {
	idx, ok := g.index(c)
	return !ok || g.blocked[idx]
}

// nearestFree scans square rings of growing radius around c and returns the
// first free cell on the ring perimeter, scanning dx then dz from low to high.
func (g *Grid) nearestFree(c cell) (cell, bool) {
	for r := 1; r <= FreeSearchRadius; r++ {
		for dx := -r; dx <= r; dx++ {
			for dz := -r; dz <= r; dz++ {
				if abs(dx) != r && abs(dz) != r {
					continue
				}
				n := cell{I: c.I + dx, J: c.J + dz}
				if !g.cellBlocked(n) {
					return n, true
				}
			}
		}
	}
	return c, false
}

// neighbour order is fixed: +x, -x, +z, -z.
var neighbourDeltas = [4]cell{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// FindPath returns a simplified polyline from start to end. The first and last
// points are always the exact requested coordinates. If no path exists the
// result is the direct two-point connector.
func (g *Grid) FindPath(start, end geom.Vec2) []geom.Vec2 {
	s := g.snap(start)
	e := g.snap(end)
	if g.cellBlocked(e) {
		if free, ok := g.nearestFree(e); ok {
			e = free
		}
	}
	if s == e {
		return []geom.Vec2{start, end}
	}

	cells, ok := g.search(s, e)
	if !ok {
		return []geom.Vec2{start, end}
	}
	path := make([]geom.Vec2, len(cells))
	for i, c := range cells {
		path[i] = g.center(c)
	}
	path[0] = start
	path[len(path)-1] = end
	return Simplify(path)
}

func (g *Grid) index(c cell) (int, bool) {
	i, j := c.I-g.minI, c.J-g.minJ
	if i < 0 || j < 0 || i >= g.cols || j >= g.rows {
		return 0, false
	}
	return j*g.cols + i, true
}

func (g *Grid) cellAt(idx int) cell {
	return cell{I: g.minI + idx%g.cols, J: g.minJ + idx/g.cols}
}

// search runs A* over the occupancy cache. The start cell itself is never
// tested for occupancy. A start outside the cache has only blocked neighbours.
func (g *Grid) search(s, e cell) ([]cell, bool) {
	si, ok := g.index(s)
	if !ok {
		return nil, false
	}
	ei, ok := g.index(e)
	if !ok {
		return nil, false
	}
	n := len(g.blocked)
	gScore := make([]int32, n)
	parent := make([]int32, n)
	closed := make([]bool, n)
	for i := range gScore {
		gScore[i] = -1
		parent[i] = -1
	}
	gScore[si] = 0

	open := &openSet{}
	var seq uint64
	heap.Push(open, openEntry{idx: si, g: 0, f: int32(manhattan(s, e)), seq: seq})

	for open.Len() > 0 {
		cur := heap.Pop(open).(openEntry)
		if closed[cur.idx] || cur.g != gScore[cur.idx] {
			continue
		}
		if cur.idx == ei {
			return g.reconstruct(parent, si, ei), true
		}
		closed[cur.idx] = true
		cc := g.cellAt(cur.idx)

		for _, d := range neighbourDeltas {
			nc := cell{I: cc.I + d.I, J: cc.J + d.J}
			ni, ok := g.index(nc)
			if !ok || closed[ni] || g.blocked[ni] {
				continue
			}
			tentative := cur.g + 1
			if old := gScore[ni]; old >= 0 && tentative >= old {
				continue
			}
			gScore[ni] = tentative
			parent[ni] = int32(cur.idx)
			seq++
			heap.Push(open, openEntry{idx: ni, g: tentative, f: tentative + int32(manhattan(nc, e)), seq: seq})
		}
	}
	return nil, false
}

func (g *Grid) reconstruct(parent []int32, si, ei int) []cell {
	var out []cell
	for i := ei; ; i = int(parent[i]) {
		out = append(out, g.cellAt(i))
		if i == si {
			break
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Simplify drops waypoints that are collinear with the previously kept point
// and the following point. It is applied until no point can be dropped, so
// Simplify(Simplify(p)) == Simplify(p).
func Simplify(path []geom.Vec2) []geom.Vec2 {
	out := append([]geom.Vec2(nil), path...)
	for {
		next := simplifyOnce(out)
		if len(next) == len(out) {
			return next
		}
		out = next
	}
}

func simplifyOnce(path []geom.Vec2) []geom.Vec2 {
	if len(path) <= 2 {
		return path
	}
	out := []geom.Vec2{path[0]}
	for i := 1; i < len(path)-1; i++ {
		prev := out[len(out)-1]
		cur, nxt := path[i], path[i+1]
		dx1, dz1 := cur.X-prev.X, cur.Z-prev.Z
		dx2, dz2 := nxt.X-cur.X, nxt.Z-cur.Z
		if math.Abs(dx1*dz2-dz1*dx2) > collinearEpsilon {
			out = append(out, cur)
		}
	}
	return append(out, path[len(path)-1])
}

func manhattan(a, b cell) int { return abs(a.I-b.I) + abs(a.J-b.J) }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type openEntry struct {
	idx int
	g   int32
	f   int32
	seq uint64
}

// openSet orders by f, then by insertion sequence.
type openSet []openEntry

func (o openSet) Len() int { return len(o) }
func (o openSet) Less(i, j int) bool {
	if o[i].f != o[j].f {
		return o[i].f < o[j].f
	}
	return o[i].seq < o[j].seq
}
func (o openSet) Swap(i, j int) { o[i], o[j] = o[j], o[i] }
func (o *openSet) Push(x any)   { *o = append(*o, x.(openEntry)) }
func (o *openSet) Pop() any {
	old := *o
	n := len(old)
	x := old[n-1]
	*o = old[:n-1]
	return x
}

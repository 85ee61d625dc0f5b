package layout

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"clawoffice.ai/internal/sim/geom"
)

type Layout struct {
	Floor        Floor           `yaml:"floor"`
	Door         Door            `yaml:"door"`
	Meeting      Meeting         `yaml:"meeting"`
	Obstacles    Obstacles       `yaml:"obstacles"`
	Seat         Seat            `yaml:"seat"`
	Orchestrator Member          `yaml:"orchestrator"`
	Departments  []Department    `yaml:"departments"`
	Desks        map[string]Desk `yaml:"desks"`
}

type Floor struct {
	MinX     float64 `yaml:"min_x"`
	MaxX     float64 `yaml:"max_x"`
	MinZ     float64 `yaml:"min_z"`
	MaxZ     float64 `yaml:"max_z"`
	CellSize float64 `yaml:"cell_size"`
}

// Door is the exit. Inside is the walkable point just inside the doorway that
// paths are planned to; Pos is where agents vanish and appear.
type Door struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
	X       float64  `yaml:"x"`
	Z       float64  `yaml:"z"`
	InsideX float64  `yaml:"inside_x"`
	InsideZ float64  `yaml:"inside_z"`
	Width   float64  `yaml:"width"`
}

func (d Door) Pos() geom.Vec2    { return geom.Vec2{X: d.X, Z: d.Z} }
func (d Door) Inside() geom.Vec2 { return geom.Vec2{X: d.InsideX, Z: d.InsideZ} }

type Meeting struct {
	CenterX     float64 `yaml:"center_x"`
	CenterZ     float64 `yaml:"center_z"`
	TableRadius float64 `yaml:"table_radius"`
	SeatRadius  float64 `yaml:"seat_radius"`
	Seats       int     `yaml:"seats"`
	// Assignments maps a participant name to its seat index.
	Assignments map[string]int `yaml:"assignments"`
}

func (m Meeting) Center() geom.Vec2 { return geom.Vec2{X: m.CenterX, Z: m.CenterZ} }

// SeatPos returns the seat position and the yaw facing the table centre.
func (m Meeting) SeatPos(i int) (geom.Vec2, float64) {
	a := float64(i) * 2 * math.Pi / float64(m.Seats)
	p := geom.Vec2{X: m.CenterX + math.Cos(a)*m.SeatRadius, Z: m.CenterZ + math.Sin(a)*m.SeatRadius}
	return p, geom.Heading(p, m.Center())
}

type Obstacles struct {
	DeskHalfExtent float64 `yaml:"desk_half_extent"`
	WallRadius     float64 `yaml:"wall_radius"`
	WallSpacing    float64 `yaml:"wall_spacing"`
}

// Seat describes where a seated agent sits relative to its desk and the two
// anchors routes are planned from and to.
type Seat struct {
	LocalX      float64 `yaml:"local_x"`
	LocalZ      float64 `yaml:"local_z"`
	LocalYaw    float64 `yaml:"local_yaw"`
	ChairBehind float64 `yaml:"chair_behind"`
	ChairRight  float64 `yaml:"chair_right"`
	FrontAhead  float64 `yaml:"front_ahead"`
	FrontRight  float64 `yaml:"front_right"`
}

func (s Seat) Local() geom.Transform {
	return geom.Transform{Pos: geom.Vec2{X: s.LocalX, Z: s.LocalZ}, Yaw: s.LocalYaw}
}

type Member struct {
	Name    string   `yaml:"name"`
	Role    string   `yaml:"role"`
	Key     string   `yaml:"key"`
	Aliases []string `yaml:"aliases"`
}

type Department struct {
	Name   string   `yaml:"name"`
	Head   Member   `yaml:"head"`
	Agents []Member `yaml:"agents"`
}

type Desk struct {
	X        float64 `yaml:"x"`
	Z        float64 `yaml:"z"`
	Rotation float64 `yaml:"rotation"`
}

func (d Desk) Pos() geom.Vec2        { return geom.Vec2{X: d.X, Z: d.Z} }
func (d Desk) Frame() geom.Transform { return geom.Transform{Pos: d.Pos(), Yaw: d.Rotation} }

// ChairAnchor is the point beside the chair where walks start.
func (l *Layout) ChairAnchor(d Desk) geom.Vec2 {
	return d.Pos().
		Add(geom.Forward(d.Rotation).Scale(l.Seat.ChairBehind)).
		Add(geom.Right(d.Rotation).Scale(l.Seat.ChairRight))
}

// FrontAnchor is the point in front of the desk where visitors stop.
func (l *Layout) FrontAnchor(d Desk) geom.Vec2 {
	return d.Pos().
		Sub(geom.Forward(d.Rotation).Scale(l.Seat.FrontAhead)).
		Add(geom.Right(d.Rotation).Scale(l.Seat.FrontRight))
}

// Heads returns head names in department order.
func (l *Layout) Heads() []string {
	out := make([]string, 0, len(l.Departments))
	for _, d := range l.Departments {
		out = append(out, d.Head.Name)
	}
	return out
}

// Members returns every seated member, orchestrator first, then each
// department head followed by its agents.
func (l *Layout) Members() []Member {
	out := []Member{l.Orchestrator}
	for _, d := range l.Departments {
		out = append(out, d.Head)
		out = append(out, d.Agents...)
	}
	return out
}

func (l *Layout) Desk(name string) (Desk, bool) {
	d, ok := l.Desks[name]
	return d, ok
}

func Load(path string) (*Layout, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	l := Defaults()
	// Lists and maps from the file replace the defaults wholesale.
	l.Departments = nil
	l.Desks = nil
	l.Meeting.Assignments = nil
	if err := yaml.Unmarshal(raw, l); err != nil {
		return nil, fmt.Errorf("layout.yaml: %w", err)
	}
	if len(l.Departments) == 0 {
		def := Defaults()
		l.Departments = def.Departments
	}
	if len(l.Desks) == 0 {
		l.Desks = DefaultDesks(l)
	}
	if l.Meeting.Assignments == nil {
		l.Meeting.Assignments = DefaultAssignments(l)
	}
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("layout.yaml: %w", err)
	}
	return l, nil
}

func (l *Layout) Validate() error {
	if l.Floor.MinX >= l.Floor.MaxX || l.Floor.MinZ >= l.Floor.MaxZ {
		return fmt.Errorf("empty floor rectangle")
	}
	if strings.TrimSpace(l.Orchestrator.Name) == "" {
		return fmt.Errorf("missing orchestrator name")
	}
	if strings.TrimSpace(l.Door.Name) == "" {
		return fmt.Errorf("missing door name")
	}
	if l.Meeting.Seats <= 0 {
		return fmt.Errorf("meeting needs at least one seat")
	}
	seen := map[string]bool{}
	for _, m := range l.Members() {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("member with empty name")
		}
		if seen[m.Name] {
			return fmt.Errorf("duplicate member %q", m.Name)
		}
		seen[m.Name] = true
		if _, ok := l.Desks[m.Name]; !ok {
			return fmt.Errorf("no desk for %q", m.Name)
		}
	}
	for name, idx := range l.Meeting.Assignments {
		if !seen[name] {
			return fmt.Errorf("meeting assignment for unknown member %q", name)
		}
		if idx < 0 || idx >= l.Meeting.Seats {
			return fmt.Errorf("meeting seat %d out of range for %q", idx, name)
		}
	}
	return nil
}

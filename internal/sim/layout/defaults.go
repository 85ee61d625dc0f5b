package layout

import "math"

func Defaults() *Layout {
	l := &Layout{
		Floor: Floor{MinX: -11.8, MaxX: 11.8, MinZ: -5.8, MaxZ: 5.8, CellSize: 0.05},
		Door: Door{
			Name:    "Exit Door",
			Aliases: []string{"door", "exit", "🚪 PORTE SORTIE"},
			X:       0, Z: 5.9,
			InsideX: 0, InsideZ: 5.2,
			Width: 1.2,
		},
		Meeting: Meeting{CenterX: -8, CenterZ: 3, TableRadius: 1.2, SeatRadius: 1.6, Seats: 6},
		Obstacles: Obstacles{
			DeskHalfExtent: 0.5,
			WallRadius:     0.5,
			WallSpacing:    1,
		},
		Seat: Seat{
			LocalX: 0, LocalZ: 0.6, LocalYaw: math.Pi,
			ChairBehind: 0.7, ChairRight: 0.5,
			FrontAhead: 1.2, FrontRight: 0.3,
		},
		Orchestrator: Member{Name: "CEO", Role: "Orchestrator", Key: "orchestrator", Aliases: []string{"KAOS"}},
		Departments: []Department{
			{
				Name: "Business",
				Head: Member{Name: "Head of Biz (COO)", Role: "COO", Key: "business", Aliases: []string{"Head of Business"}},
				Agents: []Member{
					{Name: "report-agent", Role: "Report", Key: "report"},
					{Name: "pm-agent", Role: "PM", Key: "pm"},
				},
			},
			{
				Name: "Tech",
				Head: Member{Name: "Head of Tech (CTO)", Role: "CTO", Key: "tech"},
				Agents: []Member{
					{Name: "codeur-agent", Role: "Codeur", Key: "codeur"},
					{Name: "debugger-agent", Role: "Debugger", Key: "debugger"},
					{Name: "ui-agent", Role: "UI", Key: "ui"},
					{Name: "ux-agent", Role: "UX", Key: "ux"},
					{Name: "media-tech-agent", Role: "Media Tech", Key: "media-tech"},
				},
			},
			{
				Name: "Security",
				Head: Member{Name: "Head of Security (CISO)", Role: "CISO", Key: "security"},
				Agents: []Member{
					{Name: "monitoring-agent", Role: "Monitoring", Key: "monitoring"},
					{Name: "backup-agent", Role: "Backup", Key: "backup"},
				},
			},
			{
				Name: "Personal",
				Head: Member{Name: "Head of Personal (COS)", Role: "COS", Key: "personal"},
				Agents: []Member{
					{Name: "perso-agent", Role: "Perso", Key: "perso"},
					{Name: "calendar-agent", Role: "Calendar", Key: "calendar"},
				},
			},
			{
				Name: "Growth",
				Head: Member{Name: "Head of Growth (MB)", Role: "MB", Key: "growth"},
				Agents: []Member{
					{Name: "trend-agent", Role: "Trend", Key: "trend"},
					{Name: "ads-agent", Role: "Ads", Key: "ads"},
				},
			},
		},
	}
	l.Desks = DefaultDesks(l)
	l.Meeting.Assignments = DefaultAssignments(l)
	return l
}

// DefaultDesks lays departments out in columns 4m apart: the orchestrator at
// the back, heads on the first row, agents on the two rows behind them.
func DefaultDesks(l *Layout) map[string]Desk {
	const (
		headZ   = 1.0
		agentZ1 = -1.0
		agentZ2 = -3.0
		spacing = 4.0
	)
	desks := map[string]Desk{l.Orchestrator.Name: {X: 0, Z: 4}}
	n := len(l.Departments)
	for di, d := range l.Departments {
		x := (float64(di) - float64(n-1)/2) * spacing
		desks[d.Head.Name] = Desk{X: x, Z: headZ}
		for i, a := range d.Agents {
			switch {
			case len(d.Agents) == 1:
				desks[a.Name] = Desk{X: x, Z: agentZ1}
			case i < 2:
				desks[a.Name] = Desk{X: x + []float64{-1.2, 1.2}[i], Z: agentZ1}
			default:
				off := []float64{-1.2, 0, 1.2}[(i-2)%3]
				desks[a.Name] = Desk{X: x + off, Z: agentZ2 - 2*float64((i-2)/3)}
			}
		}
	}
	return desks
}

// DefaultAssignments seats the orchestrator at seat 0 and heads clockwise after it.
func DefaultAssignments(l *Layout) map[string]int {
	out := map[string]int{l.Orchestrator.Name: 0}
	for i, d := range l.Departments {
		seat := i + 1
		if seat >= l.Meeting.Seats {
			break
		}
		out[d.Head.Name] = seat
	}
	return out
}

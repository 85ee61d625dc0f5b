// Package gateway polls an OpenClaw gateway for recent agent activity and
// turns it into interactions and heartbeats for the office.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"clawoffice.ai/internal/sim/dispatch"
	"clawoffice.ai/internal/sim/office"
	"clawoffice.ai/internal/sim/roster"
)

const (
	DefaultInterval = 5 * time.Second
	// DefaultWindow is how far back an entry still counts as a new interaction.
	DefaultWindow = 5 * time.Minute
)

type Config struct {
	BaseURL  string
	Interval time.Duration
	Window   time.Duration
}

// Entry is one record of the gateway's /api/memory feed. Timestamp is unix
// milliseconds. Interaction, when present, overrides the flat fields.
type Entry struct {
	Timestamp   int64        `json:"timestamp"`
	From        string       `json:"from"`
	To          string       `json:"to"`
	Type        string       `json:"type"`
	Content     string       `json:"content"`
	Source      string       `json:"source,omitempty"`
	Interaction *interaction `json:"interaction,omitempty"`
}

type interaction struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

type memoryResponse struct {
	RecentEntries []Entry `json:"recentEntries"`
}

// Poller is not safe for concurrent use; Run owns it.
type Poller struct {
	cfg    Config
	client *http.Client
	names  *roster.Roster
	log    *log.Logger
	now    func() time.Time

	seen map[string]time.Time
}

func NewPoller(cfg Config, names *roster.Roster, logger *log.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if logger == nil {
		logger = log.Default()
	}
	return &Poller{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		names:  names,
		log:    logger,
		now:    time.Now,
		seen:   map[string]time.Time{},
	}
}

// Run polls until ctx is done, pushing results into the office loop.
func (p *Poller) Run(ctx context.Context, o *office.Office) {
	t := time.NewTicker(p.cfg.Interval)
	defer t.Stop()
	for {
		p.pollInto(ctx, o.Interactions(), o.Heartbeats())
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (p *Poller) pollInto(ctx context.Context, events chan<- dispatch.Interaction, beats chan<- office.HeartbeatBatch) {
	entries, err := p.Fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Printf("gateway poll: %v", err)
		}
		return
	}
	evs, hb := p.Digest(entries)
	for _, ev := range evs {
		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
	if len(hb) > 0 {
		select {
		case beats <- office.HeartbeatBatch{Beats: hb}:
		case <-ctx.Done():
		}
	}
}

// Fetch reads the recent entries from the gateway.
func (p *Poller) Fetch(ctx context.Context) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/api/memory", nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("gateway status %d", resp.StatusCode)
	}
	var body memoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode memory: %w", err)
	}
	return body.RecentEntries, nil
}

// Digest turns entries into new interactions and a heartbeat map. An entry is
// an interaction when it is inside the window, both ends are known people,
// they differ, and it was not seen on an earlier poll. Every known endpoint
// counts as activity.
func (p *Poller) Digest(entries []Entry) ([]dispatch.Interaction, map[string]time.Time) {
	now := p.now()
	cutoff := now.Add(-p.cfg.Window)
	for id, at := range p.seen {
		if at.Before(cutoff) {
			delete(p.seen, id)
		}
	}

	var out []dispatch.Interaction
	beats := map[string]time.Time{}
	for _, e := range entries {
		from, to, typ := e.From, e.To, e.Type
		if e.Interaction != nil {
			from, to, typ = pick(e.Interaction.From, from), pick(e.Interaction.To, to), pick(e.Interaction.Type, typ)
		}
		at := time.UnixMilli(e.Timestamp).UTC()
		fromName, fromOK := p.person(from)
		toName, toOK := p.person(to)
		if fromOK {
			bump(beats, fromName, at)
		}
		if toOK {
			bump(beats, toName, at)
		}
		if !fromOK || !toOK || fromName == toName || at.Before(cutoff) {
			continue
		}
		id := fmt.Sprintf("%s-%s-%d", fromName, toName, e.Timestamp)
		if _, dup := p.seen[id]; dup {
			continue
		}
		p.seen[id] = at
		prio := priorityFor(typ)
		if _, err := dispatch.ParseType(typ); err != nil {
			// Informational entries still walk over, as a plain delegation.
			typ = ""
		}
		out = append(out, dispatch.Interaction{
			From:      fromName,
			To:        toName,
			Type:      typ,
			Content:   truncate(e.Content, 200),
			Timestamp: at,
			Priority:  string(prio),
		})
	}
	return out, beats
}

func (p *Poller) person(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	c := p.names.Canonical(name)
	switch p.names.KindOf(c) {
	case roster.KindOrchestrator, roster.KindHead, roster.KindAgent:
		return c, true
	}
	return c, false
}

// priorityFor ranks delegations above responses above everything else.
func priorityFor(typ string) dispatch.Priority {
	switch dispatch.Type(strings.ToLower(typ)) {
	case dispatch.TypeDelegation:
		return dispatch.PriorityHigh
	case dispatch.TypeResponse:
		return dispatch.PriorityMedium
	}
	return dispatch.PriorityLow
}

func bump(m map[string]time.Time, name string, at time.Time) {
	if at.After(m[name]) {
		m[name] = at
	}
}

func pick(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

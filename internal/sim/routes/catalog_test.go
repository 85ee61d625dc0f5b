package routes

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clawoffice.ai/internal/sim/geom"
	"clawoffice.ai/internal/sim/layout"
	"clawoffice.ai/internal/sim/roster"
)

func line(id, from, to string) Route {
	return Route{
		ID: id, Name: from + " → " + to, StartName: from, EndName: to,
		Points: []geom.Vec2{{X: 0, Z: 0}, {X: 1, Z: 0}},
	}
}

func TestCatalog_LookupWithVariations(t *testing.T) {
	names := roster.New(layout.Defaults())
	c, errs := NewCatalog([]Route{
		line("a", "CTO", "codeur-agent"),
		line("b", "Head of Tech (CTO)", "CEO"),
	}, names)
	if len(errs) != 0 {
		t.Fatalf("errs=%v", errs)
	}
	if r, ok := c.Lookup("tech", "codeur"); !ok || r.ID != "a" {
		t.Fatalf("lookup by keys: %+v %v", r, ok)
	}
	if r, ok := c.Lookup("Head of Tech", "orchestrator"); !ok || r.ID != "b" {
		t.Fatalf("lookup by role names: %+v %v", r, ok)
	}
	if _, ok := c.Lookup("CEO", "codeur-agent"); ok {
		t.Fatalf("unexpected route")
	}
}

func TestCatalog_SkipsInvalidAndDuplicates(t *testing.T) {
	bad := line("bad", "CEO", "CTO")
	bad.Points = bad.Points[:1]
	c, errs := NewCatalog([]Route{line("x", "CEO", "CTO"), line("x", "CTO", "CEO"), bad}, nil)
	if c.Len() != 1 || len(errs) != 2 {
		t.Fatalf("len=%d errs=%v", c.Len(), errs)
	}
}

func TestCatalog_KindAndChair(t *testing.T) {
	names := roster.New(layout.Defaults())
	seat := line("s", "CEO", roster.ChairName(1))
	seat.IsWarRoom = true
	idx := 1
	seat.ChairIndex = &idx
	c, _ := NewCatalog([]Route{
		line("e", "pm-agent", "Exit Door"),
		line("n", "🚪 PORTE SORTIE", "pm-agent"),
		line("t", "CEO", "CTO"),
		seat,
	}, names)

	kinds := map[string]Kind{"e": KindExit, "n": KindEnter, "t": KindConversation, "s": KindMeeting}
	for id, want := range kinds {
		r, _ := c.Get(id)
		if got := c.Kind(r); got != want {
			t.Fatalf("%s kind=%v want %v", id, got, want)
		}
	}
	if r, ok := c.LookupChair("orchestrator", 1); !ok || r.ID != "s" {
		t.Fatalf("chair lookup: %+v %v", r, ok)
	}
	if _, ok := c.LookupChair("CEO", 2); ok {
		t.Fatalf("unexpected chair route")
	}
}

func TestCatalog_ReplaceIsCopyOnWrite(t *testing.T) {
	c, _ := NewCatalog([]Route{line("a", "CEO", "CTO")}, nil)
	moved := line("a", "CEO", "CTO")
	moved.Points = []geom.Vec2{{X: 0, Z: 0}, {X: 0, Z: 2}, {X: 3, Z: 2}}
	next, err := c.Replace(moved)
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if r, _ := next.Get("a"); len(r.Points) != 3 {
		t.Fatalf("replacement not visible: %+v", r)
	}
	if r, _ := c.Get("a"); len(r.Points) != 2 {
		t.Fatalf("original catalog mutated: %+v", r)
	}
	if _, err := c.Replace(Route{ID: "z"}); err == nil {
		t.Fatalf("expected invalid route error")
	}
	added, _ := c.Replace(line("b", "CTO", "CEO"))
	if added.Len() != 2 || !added.Has("CTO", "CEO") {
		t.Fatalf("append failed")
	}
	if c.Digest() == added.Digest() {
		t.Fatalf("digest should change")
	}
}

func TestReversed(t *testing.T) {
	r := line("a", "CEO", "CTO")
	r.Points = append(r.Points, geom.Vec2{X: 1, Z: 1})
	rev := r.Reversed()
	if rev.StartName != "CTO" || rev.Points[0] != (geom.Vec2{X: 1, Z: 1}) || r.Points[0] != (geom.Vec2{}) {
		t.Fatalf("reversed=%+v original=%+v", rev, r)
	}
}

func TestDecode_ValidatesSchema(t *testing.T) {
	if _, err := Decode([]byte(`[{"id":"a","name":"A","startName":"CEO","endName":"CTO","points":[{"x":0,"z":0}],"finalOrientation":0}]`)); err == nil {
		t.Fatalf("expected schema error for a single-point route")
	}
	if _, err := Decode([]byte(`{"id":"a"}`)); err == nil {
		t.Fatalf("expected schema error for non-array")
	}
	rs, err := Decode([]byte(`[{"id":"a","name":"A","startName":"CEO","endName":"War Room Chair 2","points":[{"x":0,"z":0},{"x":1.5,"z":-2}],"finalOrientation":1.2,"isWarRoom":true,"chairIndex":1}]`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(rs) != 1 || *rs[0].ChairIndex != 1 || rs[0].Points[1].Z != -2 {
		t.Fatalf("decoded=%+v", rs)
	}
}

func TestFileRoundTrip(t *testing.T) {
	_, _, rs := generate(t)
	p := filepath.Join(t.TempDir(), "routes", "catalog.json")
	if err := WriteFile(p, rs); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	raw, _ := os.ReadFile(p)
	if !strings.Contains(string(raw), `"startName"`) || strings.Contains(string(raw), `"chairIndex": null`) {
		t.Fatalf("unexpected encoding")
	}
	back, err := LoadFile(p)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(back) != len(rs) {
		t.Fatalf("len=%d want %d", len(back), len(rs))
	}
}

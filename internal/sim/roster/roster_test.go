package roster

import (
	"testing"

	"clawoffice.ai/internal/sim/layout"
)

func TestCanonical(t *testing.T) {
	r := New(layout.Defaults())
	cases := map[string]string{
		"CEO":                "CEO",
		"orchestrator":       "CEO",
		"Orchestrator":       "CEO",
		"tech":               "Head of Tech (CTO)",
		"CTO":                "Head of Tech (CTO)",
		"Head of Tech":       "Head of Tech (CTO)",
		"head of business":   "Head of Biz (COO)",
		"Head of Business":   "Head of Biz (COO)",
		"security":           "Head of Security (CISO)",
		"MB":                 "Head of Growth (MB)",
		"ui":                 "ui-agent",
		"media-tech":         "media-tech-agent",
		"  calendar-agent  ": "calendar-agent",
		"door":               "Exit Door",
		"🚪 PORTE SORTIE":     "Exit Door",
		"chair3":             "War Room Chair 3",
		"somebody-else":      "somebody-else",
	}
	for in, want := range cases {
		if got := r.Canonical(in); got != want {
			t.Fatalf("Canonical(%q)=%q want %q", in, got, want)
		}
	}
}

func TestVariations(t *testing.T) {
	r := New(layout.Defaults())
	v := r.Variations("CTO")
	if v[0] != "Head of Tech (CTO)" {
		t.Fatalf("variations must start with canonical: %v", v)
	}
	if !contains(v, "CTO") || !contains(v, "Head of Tech") || !contains(v, "tech") {
		t.Fatalf("variations=%v", v)
	}
	if u := r.Variations("ghost"); len(u) != 1 || u[0] != "ghost" {
		t.Fatalf("unknown variations=%v", u)
	}
}

func TestKindsAndPeople(t *testing.T) {
	r := New(layout.Defaults())
	if r.KindOf("CEO") != KindOrchestrator || r.KindOf("COO") != KindHead || r.KindOf("pm") != KindAgent {
		t.Fatalf("kind mismatch")
	}
	if !r.IsDoor("exit") || r.IsDoor("CEO") {
		t.Fatalf("door detection mismatch")
	}
	people := r.People()
	if len(people) != 19 || people[0] != "CEO" || people[1] != "Head of Biz (COO)" {
		t.Fatalf("people=%v", people)
	}
}

package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	persistlog "clawoffice.ai/internal/persistence/log"
	"clawoffice.ai/internal/sim/dispatch"
	"clawoffice.ai/internal/sim/events"
	"clawoffice.ai/internal/sim/layout"
	"clawoffice.ai/internal/sim/office"
	"clawoffice.ai/internal/sim/routes"
	"clawoffice.ai/internal/sim/tuning"
)

// replay re-drives a fresh office from the queued records of a movement log
// and checks that it settles every request the same way the log does.
func main() {
	var (
		dataDir    = flag.String("data", "./data", "runtime data directory holding movements/")
		layoutPath = flag.String("layout", "", "path to layout.yaml (default: built-in layout)")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: built-in tuning)")
		routesPath = flag.String("routes", "", "route catalog json (default: generated)")
		maxSettle  = flag.Int("max_settle_frames", 100000, "frames to wait for the queue to drain after the last interaction")
	)
	flag.Parse()

	lay := layout.Defaults()
	if *layoutPath != "" {
		l, err := layout.Load(*layoutPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load layout:", err)
			os.Exit(1)
		}
		lay = l
	}
	tune := tuning.Defaults()
	if *tuningPath != "" {
		t, err := tuning.Load(*tuningPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = t
	}
	var rs []routes.Route
	if *routesPath != "" {
		var err error
		if rs, err = routes.LoadFile(*routesPath); err != nil {
			fmt.Fprintln(os.Stderr, "load routes:", err)
			os.Exit(1)
		}
	}

	logged, err := persistlog.ReadMovements(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read movements:", err)
		os.Exit(1)
	}
	if len(logged) == 0 {
		fmt.Fprintln(os.Stderr, "no movement records found in", *dataDir)
		os.Exit(1)
	}

	res, err := replay(lay, tune, rs, logged, *maxSettle)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: requests=%d outcomes=%d frames=%d\n", res.Requests, res.Outcomes, res.Frames)
}

type result struct {
	Requests int
	Outcomes int
	Frames   uint64
}

// outcome is one request's fate with the request id stripped; ids are fresh
// on every run.
type outcome struct {
	From, To string
	Status   events.MovementStatus
	RouteID  string
}

func replay(lay *layout.Layout, tune tuning.Tuning, rs []routes.Route, logged []events.Movement, maxSettle int) (result, error) {
	var queued []events.Movement
	for _, m := range logged {
		if m.Status == events.MovementQueued {
			queued = append(queued, m)
		}
	}
	if len(queued) == 0 {
		return result{}, fmt.Errorf("no queued records to replay")
	}

	clock := queued[0].At
	rec := &events.Recorder{}
	o, err := office.New(office.Config{
		Layout: lay,
		Tuning: tune,
		Routes: rs,
		Sink:   rec,
		Logger: log.New(&bytes.Buffer{}, "", 0),
		Clock:  func() time.Time { return clock },
	})
	if err != nil {
		return result{}, err
	}
	frame := tune.FrameInterval()
	step := func() {
		clock = clock.Add(frame)
		o.StepOnce(frame)
	}

	for _, m := range queued {
		for clock.Before(m.At) {
			step()
		}
		_, err := o.InteractOnce(dispatch.Interaction{
			From:      m.From,
			To:        m.To,
			Type:      m.Type,
			Timestamp: m.At,
			Priority:  m.Priority,
		})
		if err != nil {
			return result{}, fmt.Errorf("interaction %s → %s at %s: %w", m.From, m.To, m.At.Format(time.RFC3339Nano), err)
		}
	}
	for i := 0; o.Busy(); i++ {
		if i >= maxSettle {
			return result{}, fmt.Errorf("office still busy after %d frames", maxSettle)
		}
		step()
	}

	want := outcomes(logged)
	got := outcomes(rec.Movements)
	if len(got) < len(want) {
		return result{}, fmt.Errorf("replay settled %d requests, log has %d", len(got), len(want))
	}
	for i := range want {
		if want[i] != got[i] {
			return result{}, fmt.Errorf("diverged at outcome %d: log=%+v replay=%+v", i, want[i], got[i])
		}
	}
	return result{Requests: len(queued), Outcomes: len(want), Frames: o.CurrentTick()}, nil
}

// outcomes keeps the terminal records in emission order.
func outcomes(ms []events.Movement) []outcome {
	var out []outcome
	for _, m := range ms {
		switch m.Status {
		case events.MovementCompleted, events.MovementDropped, events.MovementSkipped:
			out = append(out, outcome{From: m.From, To: m.To, Status: m.Status, RouteID: m.RouteID})
		}
	}
	return out
}

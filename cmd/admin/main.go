package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	persistlog "clawoffice.ai/internal/persistence/log"
	"clawoffice.ai/internal/sim/events"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "queue":
			queueCmd(os.Args[2:])
			return
		case "presence":
			presenceCmd(os.Args[2:])
			return
		case "log":
			logCmd(os.Args[2:])
			return
		}
	}
	logCmd(os.Args[1:])
}

// logCmd prints the movement records from the local event logs as JSON lines.
func logCmd(args []string) {
	fs := flag.NewFlagSet("log", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	agent := fs.String("agent", "", "only movements from or to this agent")
	status := fs.String("status", "", "only this status (queued, dispatched, dropped, skipped, completed)")
	limit := fs.Int("limit", 0, "print at most the last N records (0 = all)")
	_ = fs.Parse(args)

	ms, err := persistlog.ReadMovements(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	ms = filterMovements(ms, *agent, *status)
	if *limit > 0 && len(ms) > *limit {
		ms = ms[len(ms)-*limit:]
	}
	enc := json.NewEncoder(os.Stdout)
	for _, m := range ms {
		_ = enc.Encode(m)
	}
}

func filterMovements(ms []events.Movement, agent, status string) []events.Movement {
	agent = strings.ToLower(strings.TrimSpace(agent))
	status = strings.ToLower(strings.TrimSpace(status))
	out := ms[:0:0]
	for _, m := range ms {
		if agent != "" && strings.ToLower(m.From) != agent && strings.ToLower(m.To) != agent {
			continue
		}
		if status != "" && string(m.Status) != status {
			continue
		}
		out = append(out, m)
	}
	return out
}

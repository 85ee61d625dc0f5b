package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clawoffice.ai/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index/office.sqlite)")
	agent := fs.String("agent", "", "agent filter (required for presence)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "recent"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "office.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	enc := json.NewEncoder(os.Stdout)

	switch q {
	case "recent":
		ms, err := idx.RecentMovements(ctx, *agent, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, m := range ms {
			_ = enc.Encode(m)
		}
	case "presence":
		if strings.TrimSpace(*agent) == "" {
			fmt.Fprintln(os.Stderr, "missing -agent")
			os.Exit(2)
		}
		ps, err := idx.PresenceHistory(ctx, *agent)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, p := range ps {
			_ = enc.Encode(p)
		}
	case "catalogs":
		for _, name := range []string{"routes", "tuning"} {
			d, err := idx.CatalogDigest(ctx, name)
			if err != nil {
				fmt.Fprintln(os.Stderr, "query:", err)
				os.Exit(1)
			}
			fmt.Printf("%s\t%s\n", name, d)
		}
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(want recent, presence or catalogs)")
		os.Exit(2)
	}
}

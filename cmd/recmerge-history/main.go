package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"recmerge/internal/config"
	"recmerge/internal/pipeline"
	"recmerge/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	fs := flag.NewFlagSet("recmerge-history", flag.ExitOnError)
	fs.Usage = usage
	dbPath := fs.String("db", cfg.DBPath, "sqlite file holding the runs")
	limit := fs.Int("limit", 20, "number of runs to list")
	runID := fs.String("run", "", "run id to re-export")
	out := fs.String("out", "", "output file for -run (.csv or .xlsx)")
	_ = fs.Parse(os.Args[1:])

	must(cfg.Require("-db or RECMERGE_DB_PATH", *dbPath))
	db, err := storage.Open(*dbPath)
	must(err)
	defer db.Close()

	if strings.TrimSpace(*runID) == "" {
		runs, err := db.ListRuns(*limit)
		must(err)
		if len(runs) == 0 {
			fmt.Println("no runs recorded")
			return
		}
		for _, r := range runs {
			fmt.Printf("%s  %s  records=%d columns=%d sources=%d  %s\n", r.ID, r.CreatedAt, r.Records, r.Columns, r.Sources, r.OutputPath)
		}
		return
	}

	if strings.TrimSpace(*out) == "" {
		must(fmt.Errorf("--out is required with --run"))
	}
	snap, err := db.LoadSnapshot(*runID)
	must(err)
	must(pipeline.ExportRows(snap.Columns, snap.Rows, *out))
	fmt.Printf("exported %d rows of run %s to %s\n", len(snap.Rows), snap.RunID, *out)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: recmerge-history -db runs.db [-limit 20]")
	fmt.Fprintln(os.Stderr, "       recmerge-history -db runs.db -run <id> -out restored.csv")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

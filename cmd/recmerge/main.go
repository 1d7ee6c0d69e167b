package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"recmerge/internal/config"
	"recmerge/internal/logging"
	"recmerge/internal/pipeline"
	"recmerge/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	fs := flag.NewFlagSet("recmerge", flag.ExitOnError)
	fs.Usage = usage
	out := fs.String("out", cfg.OutputPath, "output file (.csv or .xlsx)")
	dbPath := fs.String("db", cfg.DBPath, "sqlite file to record the run in")
	placeholder := fs.String("placeholder", cfg.Placeholder, "value for fields a record lacks")
	_ = fs.Parse(os.Args[1:])

	paths := fs.Args()
	if len(paths) == 0 {
		usage()
		os.Exit(1)
	}
	cfg.Placeholder = *placeholder

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	var db *storage.DB
	if strings.TrimSpace(*dbPath) != "" {
		db, err = storage.Open(*dbPath)
		must(err)
		defer db.Close()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	res, err := pipeline.RunOnce(ctx, cfg, logger, db, paths, *out)
	must(err)

	if res.Empty {
		fmt.Println("No records found to export")
		return
	}
	fmt.Printf("Records have been written to %s\n", *out)
	if res.RunID != "" {
		fmt.Printf("run id: %s\n", res.RunID)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: recmerge [-out combined.csv] [-db runs.db] [-placeholder text] file1.csv file2.html ...")
	fmt.Fprintln(os.Stderr, "supported inputs: .csv .html .htm .xlsx .eml")
	fmt.Fprintln(os.Stderr, "CSV headers are upper-cased; set RECMERGE_ID_FIELD in upper case to match them")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

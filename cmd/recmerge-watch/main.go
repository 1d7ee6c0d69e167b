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
	"recmerge/internal/listener"
	"recmerge/internal/logging"
	"recmerge/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	fs := flag.NewFlagSet("recmerge-watch", flag.ExitOnError)
	out := fs.String("out", cfg.OutputPath, "output file (.csv or .xlsx)")
	dbPath := fs.String("db", cfg.DBPath, "sqlite file to record runs in")
	_ = fs.Parse(os.Args[1:])

	paths := fs.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: recmerge-watch [-out combined.csv] [-db runs.db] file1.csv file2.html ...")
		os.Exit(1)
	}

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

	logger.Info("watching inputs", "files", len(paths), "output", *out)
	must(listener.NewService(cfg, db, logger).Run(ctx, paths, *out))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

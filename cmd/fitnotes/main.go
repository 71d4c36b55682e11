package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/lucasjlepore/fitbridge"
	"github.com/lucasjlepore/fitbridge/events"
	"github.com/lucasjlepore/fitbridge/fitstore"
)

func main() {
	var (
		start   = flag.String("start", "", "Range start (RFC3339 or YYYY-MM-DD); defaults to today's local midnight")
		end     = flag.String("end", "", "Range end (RFC3339 or YYYY-MM-DD); defaults to now")
		unit    = flag.String("unit", "kg", "Weight unit: kg|pound")
		jsonOut = flag.Bool("json", false, "Emit per-day totals as JSON")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <file.fit> [file.fit ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	u, err := parseUnit(*unit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	opts := fitbridge.QueryOptions{
		StartDate: *start,
		EndDate:   *end,
		Unit:      u,
	}
	if err := run(context.Background(), os.Stdout, flag.Args(), opts, *jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "fitnotes failed: %v\n", err)
		os.Exit(1)
	}
}

func parseUnit(s string) (fitbridge.Unit, error) {
	switch u := fitbridge.Unit(s); u {
	case fitbridge.UnitKg, fitbridge.UnitPound:
		return u, nil
	}
	return "", fmt.Errorf("unsupported unit %q (expected kg|pound)", s)
}

func run(ctx context.Context, w io.Writer, paths []string, opts fitbridge.QueryOptions, jsonOut bool) error {
	emitter := events.NewEmitter()
	store := fitstore.New(emitter, fitstore.WithLocation(time.Local))
	if err := store.LoadFiles(ctx, paths...); err != nil {
		return fmt.Errorf("load files: %w", err)
	}

	client := fitbridge.New(store, store, emitter)
	defer client.Close()

	report, err := client.BuildReport(ctx, opts)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}

	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report.Days()); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}

	_, err = fmt.Fprintln(w, fitbridge.BuildDailyNotes(report))
	return err
}

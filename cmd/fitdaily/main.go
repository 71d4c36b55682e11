package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/lucasjlepore/fitbridge"
	"github.com/lucasjlepore/fitbridge/metrics"
	"github.com/lucasjlepore/fitbridge/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

func main() {
	var (
		inDir       = flag.String("in", "", "Directory of .fit files")
		outDir      = flag.String("out", "", "Output directory")
		start       = flag.String("start", "", "Range start (RFC3339 or YYYY-MM-DD); defaults to today's local midnight")
		end         = flag.String("end", "", "Range end (RFC3339 or YYYY-MM-DD); defaults to now")
		unit        = flag.String("unit", "kg", "Weight unit: kg|pound")
		format      = flag.String("format", "parquet", "Daily steps format: parquet|csv|json")
		tz          = flag.String("tz", "", "IANA zone calendar days are computed in (default local)")
		overwrite   = flag.Bool("overwrite", true, "Allow writing into non-empty output directories")
		concurrency = flag.Int("j", 4, "FIT files decoded in parallel")
		dumpMetrics = flag.Bool("metrics", false, "Print collected metrics in Prometheus text format after the run")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s --in fitdir --out outdir [--start 2024-01-01] [--end 2024-01-31] [--unit kg|pound] [--format parquet|csv|json] [file.fit ...]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if (strings.TrimSpace(*inDir) == "" && flag.NArg() == 0) || strings.TrimSpace(*outDir) == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *unit != string(fitbridge.UnitKg) && *unit != string(fitbridge.UnitPound) {
		fmt.Fprintf(os.Stderr, "unsupported unit %q (expected kg|pound)\n", *unit)
		os.Exit(2)
	}

	loc := time.Local
	if *tz != "" {
		var err error
		loc, err = time.LoadLocation(*tz)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load time zone: %v\n", err)
			os.Exit(2)
		}
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := pipeline.Run(ctx, pipeline.Options{
		InputDir:    *inDir,
		FitPaths:    flag.Args(),
		OutDir:      *outDir,
		StartDate:   *start,
		EndDate:     *end,
		Unit:        fitbridge.Unit(*unit),
		Format:      *format,
		Overwrite:   *overwrite,
		Location:    loc,
		Observer:    collector,
		Concurrency: *concurrency,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fitdaily failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("fitdaily complete\n")
	fmt.Printf("Output dir:          %s\n", result.OutputDir)
	fmt.Printf("manifest.json:       %s\n", result.ManifestPath)
	fmt.Printf("daily steps:         %s\n", result.DailyStepsPath)
	fmt.Printf("distance:            %s\n", result.DistancePath)
	fmt.Printf("calories:            %s\n", result.CaloriesPath)
	fmt.Printf("weight:              %s\n", result.WeightPath)
	fmt.Printf("summary:             %s\n", result.SummaryPath)
	fmt.Printf("days:                %d\n", result.Days)
	for _, kind := range result.Missing {
		fmt.Printf("no data:             %s\n", kind)
	}

	if *dumpMetrics {
		if err := writeMetrics(reg); err != nil {
			fmt.Fprintf(os.Stderr, "write metrics: %v\n", err)
			os.Exit(1)
		}
	}
}

func writeMetrics(g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	fmt.Println()
	enc := expfmt.NewEncoder(os.Stdout, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

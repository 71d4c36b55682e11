package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lucasjlepore/fitbridge"
	"github.com/lucasjlepore/fitbridge/events"
	"github.com/lucasjlepore/fitbridge/fitstore"
	"github.com/tormoder/fit"
)

// Run loads the FIT inputs, queries every daily series over the requested
// range and writes the artifacts into opts.OutDir.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if strings.TrimSpace(opts.InputDir) == "" && len(opts.FitPaths) == 0 {
		return nil, fmt.Errorf("input directory or fit paths are required")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	format, err := normalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	paths, err := inputPaths(opts)
	if err != nil {
		return nil, err
	}
	if err := ensureOutputDir(opts.OutDir, opts.Overwrite); err != nil {
		return nil, err
	}

	cfg := newExportConfig(format, opts.Location, opts.Clock, opts.Observer, opts.StartDate, opts.EndDate, opts.Unit)
	emitter := events.NewEmitter()
	storeOpts := []fitstore.Option{fitstore.WithLocation(cfg.loc)}
	if opts.Logger != nil {
		storeOpts = append(storeOpts, fitstore.WithLogger(opts.Logger))
	}
	if opts.Concurrency > 0 {
		storeOpts = append(storeOpts, fitstore.WithLoadConcurrency(opts.Concurrency))
	}
	store := fitstore.New(emitter, storeOpts...)
	if err := store.LoadFiles(ctx, paths...); err != nil {
		return nil, fmt.Errorf("load fit files: %w", err)
	}

	inputs, err := describeInputs(paths)
	if err != nil {
		return nil, fmt.Errorf("describe inputs: %w", err)
	}
	out, err := export(ctx, store, emitter, cfg, inputs)
	if err != nil {
		return nil, err
	}

	for _, name := range out.names {
		if err := os.WriteFile(filepath.Join(opts.OutDir, name), out.files[name], 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}

	return &Result{
		OutputDir:      opts.OutDir,
		ManifestPath:   filepath.Join(opts.OutDir, manifestName),
		DailyStepsPath: filepath.Join(opts.OutDir, dailyStepsName(format)),
		DistancePath:   filepath.Join(opts.OutDir, "distance.json"),
		CaloriesPath:   filepath.Join(opts.OutDir, "calories.json"),
		WeightPath:     filepath.Join(opts.OutDir, "weight.json"),
		SummaryPath:    filepath.Join(opts.OutDir, summaryName),
		Days:           out.days,
		Missing:        out.report.Missing,
	}, nil
}

// RunBytes runs the same export as Run over in-memory FIT files and returns
// the artifacts by name instead of writing them. Inputs of unsupported FIT
// types are skipped with a warning.
func RunBytes(ctx context.Context, opts BytesOptions) (*BytesResult, error) {
	if len(opts.Inputs) == 0 {
		return nil, fmt.Errorf("fit data is required")
	}
	format, err := normalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	cfg := newExportConfig(format, opts.Location, opts.Clock, opts.Observer, opts.StartDate, opts.EndDate, opts.Unit)
	emitter := events.NewEmitter()
	store := fitstore.New(emitter, fitstore.WithLocation(cfg.loc))

	var warnings []string
	inputs := make([]InputFile, 0, len(opts.Inputs))
	for i, in := range opts.Inputs {
		name := in.Name
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("input-%d.fit", i+1)
		}
		if len(in.Data) == 0 {
			return nil, fmt.Errorf("%s: fit data is empty", name)
		}
		err := store.LoadReader(bytes.NewReader(in.Data))
		if errors.Is(err, fitstore.ErrUnsupportedFile) {
			warnings = append(warnings, fmt.Sprintf("%s skipped: %v", name, err))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		inputs = append(inputs, describeInput(name, in.Data))
	}

	out, err := export(ctx, store, emitter, cfg, inputs)
	if err != nil {
		return nil, err
	}
	return &BytesResult{
		Files:    out.files,
		Days:     out.days,
		Missing:  out.report.Missing,
		Warnings: warnings,
	}, nil
}

const (
	manifestName = "manifest.json"
	summaryName  = "summary.txt"
)

func dailyStepsName(format string) string {
	return "daily_steps." + format
}

func normalizeFormat(format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "parquet"
	}
	if format != "parquet" && format != "csv" && format != "json" {
		return "", fmt.Errorf("unsupported format %q (expected parquet|csv|json)", format)
	}
	return format, nil
}

type exportConfig struct {
	format   string
	loc      *time.Location
	clock    clockwork.Clock
	observer fitbridge.Observer
	query    fitbridge.QueryOptions
}

func newExportConfig(format string, loc *time.Location, clock clockwork.Clock, observer fitbridge.Observer, start, end string, unit fitbridge.Unit) exportConfig {
	if loc == nil {
		loc = time.Local
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return exportConfig{
		format:   format,
		loc:      loc,
		clock:    clock,
		observer: observer,
		query:    fitbridge.QueryOptions{StartDate: start, EndDate: end, Unit: unit},
	}
}

type exported struct {
	names  []string // write order, manifest last
	files  map[string][]byte
	report *fitbridge.DailyReport
	days   int
}

func (e *exported) add(name string, data []byte) {
	e.names = append(e.names, name)
	e.files[name] = data
}

// export queries store through a client and renders every artifact.
func export(ctx context.Context, store *fitstore.Store, emitter *events.Emitter, cfg exportConfig, inputs []InputFile) (*exported, error) {
	clientOpts := []fitbridge.Option{fitbridge.WithLocation(cfg.loc), fitbridge.WithClock(cfg.clock)}
	if cfg.observer != nil {
		clientOpts = append(clientOpts, fitbridge.WithObserver(cfg.observer))
	}
	client := fitbridge.New(store, store, emitter, clientOpts...)
	defer client.Close()

	report, err := client.BuildReport(ctx, cfg.query)
	if err != nil {
		return nil, fmt.Errorf("build daily report: %w", err)
	}

	out := &exported{files: make(map[string][]byte), report: report}

	rows := DailyStepRows(report)
	var steps []byte
	switch cfg.format {
	case "csv":
		steps, err = marshalDailyCSV(rows)
	case "json":
		steps, err = marshalJSON(rows)
	default:
		steps, err = MarshalDailyParquet(rows)
	}
	if err != nil {
		return nil, fmt.Errorf("encode daily steps %s: %w", cfg.format, err)
	}
	out.add(dailyStepsName(cfg.format), steps)

	series := []struct {
		name    string
		kind    string
		unit    string
		records []fitbridge.Record
	}{
		{"distance.json", "distance", "m", report.Distance},
		{"calories.json", "calories", "kcal", report.Calories},
		{"weight.json", "weight", string(report.Unit), report.Weight},
	}
	for _, s := range series {
		file := RecordsFile{
			Kind:    s.kind,
			Unit:    s.unit,
			Start:   report.Start,
			End:     report.End,
			Daily:   dailyBuckets(s.records, cfg.loc),
			Records: s.records,
		}
		if file.Records == nil {
			file.Records = []fitbridge.Record{}
		}
		data, err := marshalJSON(file)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", s.name, err)
		}
		out.add(s.name, data)
	}

	out.add(summaryName, []byte(fitbridge.BuildDailyNotes(report)+"\n"))

	days := report.Days()
	out.days = len(days)
	manifest := Manifest{
		FormatVersion: ManifestFormatVersion,
		GeneratedAt:   cfg.clock.Now().UTC(),
		Start:         report.Start,
		End:           report.End,
		Location:      cfg.loc.String(),
		Unit:          report.Unit,
		Inputs:        inputs,
		Artifacts:     append([]string(nil), out.names...),
		Missing:       report.Missing,
		Days:          daySummaryRows(days),
	}
	data, err := marshalJSON(manifest)
	if err != nil {
		return nil, fmt.Errorf("encode manifest.json: %w", err)
	}
	out.add(manifestName, data)
	return out, nil
}

// DailyStepRows flattens the per-source step groups of report, ordered by
// date and then source.
func DailyStepRows(report *fitbridge.DailyReport) []DailyStepRow {
	if report == nil {
		return nil
	}
	rows := make([]DailyStepRow, 0, len(report.Steps))
	for _, group := range report.Steps {
		for _, bucket := range group.Steps {
			rows = append(rows, DailyStepRow{Date: bucket.Date, Source: group.Source, Steps: bucket.Value})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Date != rows[j].Date {
			return rows[i].Date < rows[j].Date
		}
		return rows[i].Source < rows[j].Source
	})
	return rows
}

func inputPaths(opts Options) ([]string, error) {
	paths := append([]string(nil), opts.FitPaths...)
	if dir := strings.TrimSpace(opts.InputDir); dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read input directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".fit") {
				continue
			}
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no .fit files found")
	}
	return paths, nil
}

func describeInputs(paths []string) ([]InputFile, error) {
	out := make([]InputFile, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, describeInput(path, data))
	}
	return out, nil
}

func describeInput(path string, data []byte) InputFile {
	sum := sha256.Sum256(data)
	in := InputFile{
		Path:      path,
		SHA256:    hex.EncodeToString(sum[:]),
		SizeBytes: int64(len(data)),
	}
	if _, id, err := fit.DecodeHeaderAndFileID(bytes.NewReader(data)); err == nil {
		in.Type = fmt.Sprint(id.Type)
		in.Manufacturer = fmt.Sprint(id.Manufacturer)
		if id.SerialNumber != 0xFFFFFFFF {
			in.SerialNumber = id.SerialNumber
		}
	}
	return in
}

func daySummaryRows(days []fitbridge.DaySummary) []DaySummaryRow {
	out := make([]DaySummaryRow, 0, len(days))
	for _, d := range days {
		out = append(out, DaySummaryRow{
			Date:           d.Date,
			Steps:          d.Steps,
			DistanceMeters: d.DistanceMeters,
			Calories:       d.Calories,
			Weight:         d.Weight,
		})
	}
	return out
}

func dailyBuckets(records []fitbridge.Record, loc *time.Location) []fitbridge.DailyBucket {
	samples := make([]*fitbridge.Sample, 0, len(records))
	for _, rec := range records {
		start, err := time.Parse(time.RFC3339Nano, rec.StartDate)
		if err != nil {
			continue
		}
		samples = append(samples, &fitbridge.Sample{Start: start, Value: rec.Value})
	}
	return fitbridge.AggregateDaily(samples, loc)
}

func ensureOutputDir(path string, overwrite bool) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read output directory: %w", err)
	}
	if len(entries) > 0 && !overwrite {
		return fmt.Errorf("output directory is not empty: %s (set overwrite=true to allow)", path)
	}
	return nil
}

func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalDailyCSV(rows []DailyStepRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"date", "source", "steps"}); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := w.Write([]string{r.Date, r.Source, formatFloat(r.Steps)}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

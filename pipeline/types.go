package pipeline

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lucasjlepore/fitbridge"
)

// ManifestFormatVersion is bumped whenever the artifact layout changes.
const ManifestFormatVersion = "fitbridge-daily/v1"

// Options configures a daily export run.
type Options struct {
	InputDir  string
	FitPaths  []string
	OutDir    string
	StartDate string
	EndDate   string
	Unit      fitbridge.Unit
	Format    string // parquet|csv|json
	Overwrite bool

	Location    *time.Location
	Clock       clockwork.Clock
	Observer    fitbridge.Observer
	Logger      *slog.Logger
	Concurrency int
}

// Result returns generated output paths.
type Result struct {
	OutputDir      string   `json:"output_dir"`
	ManifestPath   string   `json:"manifest_path"`
	DailyStepsPath string   `json:"daily_steps_path"`
	DistancePath   string   `json:"distance_path"`
	CaloriesPath   string   `json:"calories_path"`
	WeightPath     string   `json:"weight_path"`
	SummaryPath    string   `json:"summary_path"`
	Days           int      `json:"days"`
	Missing        []string `json:"missing,omitempty"`
}

// InputBytes is one in-memory FIT file.
type InputBytes struct {
	Name string
	Data []byte
}

// BytesOptions configures RunBytes.
type BytesOptions struct {
	Inputs    []InputBytes
	StartDate string
	EndDate   string
	Unit      fitbridge.Unit
	Format    string // parquet|csv|json

	Location *time.Location
	Clock    clockwork.Clock
	Observer fitbridge.Observer
}

// BytesResult holds the artifacts of RunBytes keyed by file name.
type BytesResult struct {
	Files    map[string][]byte
	Days     int
	Missing  []string
	Warnings []string
}

// DailyStepRow is one source's step total for one day.
type DailyStepRow struct {
	Date   string  `json:"date"`
	Source string  `json:"source"`
	Steps  float64 `json:"steps"`
}

// RecordsFile is the JSON artifact for one sample series.
type RecordsFile struct {
	Kind    string                  `json:"kind"`
	Unit    string                  `json:"unit"`
	Start   string                  `json:"start"`
	End     string                  `json:"end"`
	Daily   []fitbridge.DailyBucket `json:"daily"`
	Records []fitbridge.Record      `json:"records"`
}

// Manifest describes one run: what was read and what was written.
type Manifest struct {
	FormatVersion string          `json:"format_version"`
	GeneratedAt   time.Time       `json:"generated_at"`
	Start         string          `json:"start"`
	End           string          `json:"end"`
	Location      string          `json:"location"`
	Unit          fitbridge.Unit  `json:"unit"`
	Inputs        []InputFile     `json:"inputs"`
	Artifacts     []string        `json:"artifacts"`
	Missing       []string        `json:"missing,omitempty"`
	Days          []DaySummaryRow `json:"days"`
}

// InputFile identifies one FIT file fed to the run.
type InputFile struct {
	Path         string `json:"path"`
	SHA256       string `json:"sha256"`
	SizeBytes    int64  `json:"size_bytes"`
	Type         string `json:"type,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	SerialNumber uint32 `json:"serial_number,omitempty"`
}

// DaySummaryRow is the per-day roll-up stored in the manifest.
type DaySummaryRow struct {
	Date           string  `json:"date"`
	Steps          float64 `json:"steps"`
	DistanceMeters float64 `json:"distance_m"`
	Calories       float64 `json:"calories_kcal"`
	Weight         float64 `json:"weight,omitempty"`
}

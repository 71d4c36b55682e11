package fitbridge

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DataType is one of the recording data types known to the backend.
type DataType int

const (
	DataTypeSteps DataType = iota
	DataTypeDistance
	DataTypeWeight
	DataTypeHeight
)

// AllDataTypes is the canonical set recorded when no types are requested.
var AllDataTypes = []DataType{DataTypeSteps, DataTypeDistance, DataTypeWeight, DataTypeHeight}

var dataTypeChannels = map[DataType]string{
	DataTypeSteps:    "STEP_RECORDING",
	DataTypeDistance: "DISTANCE_RECORDING",
	DataTypeWeight:   "WEIGHT_RECORDING",
	DataTypeHeight:   "HEIGHT_RECORDING",
}

var dataTypeNames = map[DataType]string{
	DataTypeSteps:    "steps",
	DataTypeDistance: "distance",
	DataTypeWeight:   "weight",
	DataTypeHeight:   "height",
}

// Channel returns the event name the backend emits recording status on.
func (d DataType) Channel() string {
	return dataTypeChannels[d]
}

// Valid reports whether d is a known data type.
func (d DataType) Valid() bool {
	_, ok := dataTypeChannels[d]
	return ok
}

func (d DataType) String() string {
	if name, ok := dataTypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DataType(%d)", int(d))
}

// ParseDataType accepts either a short name ("steps") or a channel name
// ("STEP_RECORDING").
func ParseDataType(s string) (DataType, error) {
	s = strings.TrimSpace(s)
	for dt, name := range dataTypeNames {
		if strings.EqualFold(s, name) || s == dataTypeChannels[dt] {
			return dt, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDataType, s)
}

// Unit selects the mass unit used by weight queries and writes.
type Unit string

const (
	UnitKg    Unit = "kg"
	UnitPound Unit = "pound"
)

// Sample is one raw timestamped measurement reported by the backend.
type Sample struct {
	Start  time.Time
	End    time.Time
	Value  float64
	Source string
}

// hasValue reports whether the sample carries a usable number. The backend
// reports absent fields as zero.
func (s *Sample) hasValue() bool {
	return s != nil && s.Value != 0 && !math.IsNaN(s.Value)
}

// DataSource identifies the app or device stream a sample came from.
type DataSource struct {
	AppPackage string `json:"app_package"`
	Stream     string `json:"stream,omitempty"`
}

// ID renders the source as "appPackage" or "appPackage:stream".
func (d DataSource) ID() string {
	if d.Stream == "" {
		return d.AppPackage
	}
	return d.AppPackage + ":" + d.Stream
}

// SourceSamples is one per-source row of a step query.
type SourceSamples struct {
	Source DataSource
	Steps  []*Sample
}

// DailyBucket is the total of all samples that started on Date.
type DailyBucket struct {
	Date  string  `json:"date"` // "2024-01-01"
	Value float64 `json:"value"`
}

// SourceGroup holds the daily step buckets of a single source.
type SourceGroup struct {
	Source string        `json:"source"`
	Steps  []DailyBucket `json:"steps"`
}

// Record is a raw sample re-stamped with ISO-8601 timestamps.
type Record struct {
	StartDate string  `json:"startDate"`
	EndDate   string  `json:"endDate"`
	Value     float64 `json:"value"`
	Source    string  `json:"source,omitempty"`
	Day       string  `json:"day,omitempty"`
}

// QueryOptions bounds a history query. Empty dates take their defaults.
type QueryOptions struct {
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	Unit      Unit   `json:"unit,omitempty"`
}

// WeightOptions describes a weight write. Value is in Unit (kg by default).
// StartDate and EndDate bound a delete; when empty the delete targets Date.
type WeightOptions struct {
	Value     float64 `json:"value"`
	Date      string  `json:"date"`
	Unit      Unit    `json:"unit,omitempty"`
	StartDate string  `json:"startDate,omitempty"`
	EndDate   string  `json:"endDate,omitempty"`
}

// HeightOptions describes a height write in meters.
type HeightOptions struct {
	Value     float64 `json:"value"`
	Date      string  `json:"date"`
	StartDate string  `json:"startDate,omitempty"`
	EndDate   string  `json:"endDate,omitempty"`
}

// BodyEntry is a normalized weight (kg) or height (m) write sent to the backend.
type BodyEntry struct {
	Value float64
	At    time.Time
	Start time.Time
	End   time.Time
}

// RecordingStatus is the flattened payload of a recording status event.
type RecordingStatus struct {
	Type      DataType `json:"type"`
	Recording bool     `json:"recording"`
}

// RecordingResult reports whether recording could be started for Type.
type RecordingResult struct {
	Type DataType
	Err  error
}

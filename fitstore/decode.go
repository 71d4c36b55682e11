package fitstore

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lucasjlepore/fitbridge"
	"github.com/tormoder/fit"
)

// ErrUnsupportedFile is returned for FIT files that carry no samples this
// store understands.
var ErrUnsupportedFile = errors.New("unsupported FIT file type")

// fileSamples holds everything extracted from one FIT file.
type fileSamples struct {
	source   fitbridge.DataSource
	steps    []*fitbridge.Sample
	distance []*fitbridge.Sample
	calories []*fitbridge.Sample
	weight   []*fitbridge.Sample
}

func (f *fileSamples) empty() bool {
	return len(f.steps) == 0 && len(f.distance) == 0 && len(f.calories) == 0 && len(f.weight) == 0
}

// decodeFIT decodes an activity, monitoring or weight FIT stream.
func decodeFIT(r io.Reader, loc *time.Location) (*fileSamples, error) {
	decoded, err := fit.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode FIT file: %w", err)
	}

	out := &fileSamples{source: sourceFromFileID(decoded.FileId)}
	switch decoded.Type() {
	case fit.FileTypeActivity:
		activity, err := decoded.Activity()
		if err != nil {
			return nil, fmt.Errorf("activity FIT expected: %w", err)
		}
		extractSessions(out, activity.Sessions)
	case fit.FileTypeMonitoringA:
		mon, err := decoded.MonitoringA()
		if err != nil {
			return nil, fmt.Errorf("monitoring FIT expected: %w", err)
		}
		extractMonitoring(out, mon.Monitorings, loc)
	case fit.FileTypeMonitoringB:
		mon, err := decoded.MonitoringB()
		if err != nil {
			return nil, fmt.Errorf("monitoring FIT expected: %w", err)
		}
		extractMonitoring(out, mon.Monitorings, loc)
	case fit.FileTypeWeight:
		weight, err := decoded.Weight()
		if err != nil {
			return nil, fmt.Errorf("weight FIT expected: %w", err)
		}
		extractWeights(out, weight.WeightScales)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFile, decoded.Type())
	}
	return out, nil
}

func sourceFromFileID(id fit.FileIdMsg) fitbridge.DataSource {
	src := fitbridge.DataSource{
		AppPackage: "fit." + strings.ToLower(fmt.Sprint(id.Manufacturer)),
	}
	if serial := validUint32(id.SerialNumber); serial != 0 {
		src.Stream = strconv.FormatUint(uint64(serial), 10)
	}
	return src
}

// extractSessions turns each activity session into one distance and one
// calorie sample spanning the session.
func extractSessions(out *fileSamples, sessions []*fit.SessionMsg) {
	id := out.source.ID()
	for _, session := range sessions {
		start := validTimeOrZero(session.StartTime)
		if start.IsZero() {
			continue
		}
		end := validTimeOrZero(session.Timestamp)
		if end.IsZero() {
			elapsed := safePositive(session.GetTotalElapsedTimeScaled())
			end = start.Add(time.Duration(elapsed * float64(time.Second)))
		}

		if distance := safePositive(session.GetTotalDistanceScaled()); distance > 0 {
			out.distance = append(out.distance, &fitbridge.Sample{Start: start, End: end, Value: distance, Source: id})
		}
		if calories := validUint16(session.TotalCalories); calories > 0 {
			out.calories = append(out.calories, &fitbridge.Sample{Start: start, End: end, Value: float64(calories), Source: id})
		}
	}
}

// Monitoring counters are cumulative per activity type and reset at the
// start of each local day. Each message becomes the delta since the previous
// message of the same activity type.
type counter struct {
	last   time.Time
	values [3]float64 // cycles, distance (m), calories (kcal)
	seen   [3]bool
}

const (
	fieldCycles = iota
	fieldDistance
	fieldCalories
)

func extractMonitoring(out *fileSamples, msgs []*fit.MonitoringMsg, loc *time.Location) {
	if loc == nil {
		loc = time.Local
	}
	sorted := make([]*fit.MonitoringMsg, 0, len(msgs))
	for _, m := range msgs {
		if m == nil || validTimeOrZero(m.Timestamp).IsZero() {
			continue
		}
		sorted = append(sorted, m)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	id := out.source.ID()
	counters := make(map[fit.ActivityType]*counter)
	for _, m := range sorted {
		ts := m.Timestamp
		c, ok := counters[m.ActivityType]
		if !ok || !sameDay(c.last, ts, loc) {
			c = &counter{last: startOfDay(ts, loc)}
			counters[m.ActivityType] = c
		}
		start := c.last
		c.last = ts

		readings := [3]float64{-1, -1, -1}
		if cycles := m.Cycles; cycles != math.MaxUint32 && isStepActivity(m.ActivityType) {
			readings[fieldCycles] = float64(cycles)
		}
		if distance := m.Distance; distance != math.MaxUint32 {
			readings[fieldDistance] = float64(distance) / 100.0
		}
		if calories := m.Calories; calories != math.MaxUint16 {
			readings[fieldCalories] = float64(calories)
		}

		for field, reading := range readings {
			if reading < 0 {
				continue
			}
			delta := reading
			if c.seen[field] && reading >= c.values[field] {
				delta = reading - c.values[field]
			}
			c.values[field] = reading
			c.seen[field] = true
			if delta <= 0 {
				continue
			}
			sample := &fitbridge.Sample{Start: start, End: ts, Value: delta, Source: id}
			switch field {
			case fieldCycles:
				out.steps = append(out.steps, sample)
			case fieldDistance:
				out.distance = append(out.distance, sample)
			case fieldCalories:
				out.calories = append(out.calories, sample)
			}
		}
	}
}

func extractWeights(out *fileSamples, scales []*fit.WeightScaleMsg) {
	id := out.source.ID()
	for _, ws := range scales {
		if ws == nil {
			continue
		}
		ts := validTimeOrZero(ws.Timestamp)
		kg, ok := weightKg(uint16(ws.Weight))
		if ts.IsZero() || !ok {
			continue
		}
		out.weight = append(out.weight, &fitbridge.Sample{Start: ts, End: ts, Value: kg, Source: id})
	}
}

// weightKg decodes the FIT weight field (kg * 100). 0xFFFE means the scale
// was still calculating.
func weightKg(raw uint16) (float64, bool) {
	if raw == math.MaxUint16 || raw == math.MaxUint16-1 || raw == 0 {
		return 0, false
	}
	return float64(raw) / 100.0, true
}

// MaxWeightKg is the largest weight the FIT weight field can carry.
// 0xFFFE and 0xFFFF are reserved.
const MaxWeightKg = float64(math.MaxUint16-2) / 100

func encodeWeightKg(kg float64) (uint16, error) {
	raw := math.Round(kg * 100)
	if !isFinite(kg) || raw <= 0 || raw > math.MaxUint16-2 {
		return 0, fmt.Errorf("weight %v kg out of range (0, %.2f]", kg, MaxWeightKg)
	}
	return uint16(raw), nil
}

func isStepActivity(t fit.ActivityType) bool {
	return t == fit.ActivityTypeWalking || t == fit.ActivityTypeRunning
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func validTimeOrZero(t time.Time) time.Time {
	if t.IsZero() || fit.IsBaseTime(t) {
		return time.Time{}
	}
	return t
}

func validUint16(v uint16) uint16 {
	if v == math.MaxUint16 {
		return 0
	}
	return v
}

func validUint32(v uint32) uint32 {
	if v == math.MaxUint32 {
		return 0
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func safePositive(v float64) float64 {
	if !isFinite(v) || v <= 0 {
		return 0
	}
	return v
}

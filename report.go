package fitbridge

import (
	"context"
	"sort"
	"time"
)

// DailyReport collects every history query over one range.
type DailyReport struct {
	Range    Range         `json:"-"`
	Start    string        `json:"start"`
	End      string        `json:"end"`
	Unit     Unit          `json:"unit"`
	Steps    []SourceGroup `json:"steps,omitempty"`
	Distance []Record      `json:"distance,omitempty"`
	Calories []Record      `json:"calories,omitempty"`
	Weight   []Record      `json:"weight,omitempty"`
	Missing  []string      `json:"missing,omitempty"`

	location *time.Location
}

// DaySummary is one calendar day of a DailyReport.
type DaySummary struct {
	Date           string        `json:"date"`
	Steps          float64       `json:"steps"`
	StepsBySource  []SourceTotal `json:"steps_by_source,omitempty"`
	DistanceMeters float64       `json:"distance_m"`
	Calories       float64       `json:"calories_kcal"`
	Weight         float64       `json:"weight,omitempty"`
}

// SourceTotal is one source's contribution to a day's steps.
type SourceTotal struct {
	Source string  `json:"source"`
	Value  float64 `json:"value"`
}

// BuildReport runs all history queries for opts. A query with no data is
// listed in Missing instead of failing the report; any other error aborts.
func (c *Client) BuildReport(ctx context.Context, opts QueryOptions) (*DailyReport, error) {
	r, err := c.ResolveRange(opts)
	if err != nil {
		return nil, err
	}
	// Pin the range so every query sees the same window.
	opts.StartDate = r.Start.Format(time.RFC3339Nano)
	opts.EndDate = r.End.Format(time.RFC3339Nano)

	unit := opts.Unit
	if unit == "" {
		unit = UnitKg
	}
	report := &DailyReport{
		Range:    r,
		Start:    ISOTimestamp(r.Start),
		End:      ISOTimestamp(r.End),
		Unit:     unit,
		location: c.loc,
	}

	steps, err := c.DailySteps(ctx, opts)
	if err := report.keep("steps", err); err != nil {
		return nil, err
	}
	report.Steps = steps

	distance, err := c.DailyDistance(ctx, opts)
	if err := report.keep("distance", err); err != nil {
		return nil, err
	}
	report.Distance = distance

	calories, err := c.DailyCalories(ctx, opts)
	if err := report.keep("calories", err); err != nil {
		return nil, err
	}
	report.Calories = calories

	weight, err := c.WeightSamples(ctx, opts)
	if err := report.keep("weight", err); err != nil {
		return nil, err
	}
	report.Weight = weight

	return report, nil
}

func (r *DailyReport) keep(kind string, err error) error {
	if err == nil {
		return nil
	}
	if IsNoData(err) {
		r.Missing = append(r.Missing, kind)
		return nil
	}
	return err
}

func (r *DailyReport) loc() *time.Location {
	if r.location == nil {
		return time.Local
	}
	return r.location
}

// Days folds the report into per-day totals in ascending date order. Weight
// is the last measurement of the day.
func (r *DailyReport) Days() []DaySummary {
	byDate := make(map[string]*DaySummary)
	day := func(date string) *DaySummary {
		d, ok := byDate[date]
		if !ok {
			d = &DaySummary{Date: date}
			byDate[date] = d
		}
		return d
	}

	for _, group := range r.Steps {
		for _, bucket := range group.Steps {
			d := day(bucket.Date)
			d.Steps += bucket.Value
			d.StepsBySource = append(d.StepsBySource, SourceTotal{Source: group.Source, Value: bucket.Value})
		}
	}
	for _, bucket := range dailyTotals(r.Distance, r.loc()) {
		day(bucket.Date).DistanceMeters = bucket.Value
	}
	for _, bucket := range dailyTotals(r.Calories, r.loc()) {
		day(bucket.Date).Calories = bucket.Value
	}

	weights := append([]Record(nil), r.Weight...)
	sort.SliceStable(weights, func(i, j int) bool {
		return weights[i].StartDate < weights[j].StartDate
	})
	for _, w := range weights {
		start, err := time.Parse(isoLayout, w.StartDate)
		if err != nil {
			continue
		}
		day(DateKey(start, r.loc())).Weight = w.Value
	}

	out := make([]DaySummary, 0, len(byDate))
	for _, d := range byDate {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out
}

// dailyTotals buckets ISO-stamped records by the local day they started.
func dailyTotals(records []Record, loc *time.Location) []DailyBucket {
	samples := make([]*Sample, 0, len(records))
	for _, rec := range records {
		start, err := time.Parse(isoLayout, rec.StartDate)
		if err != nil {
			continue
		}
		samples = append(samples, &Sample{Start: start, Value: rec.Value})
	}
	return AggregateDaily(samples, loc)
}

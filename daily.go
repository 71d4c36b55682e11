package fitbridge

import (
	"sort"
	"time"
)

// AggregateDaily sums samples into one bucket per local calendar day of
// their start instant. Nil samples are skipped. Days without samples get no
// bucket. Buckets come back in ascending date order.
func AggregateDaily(samples []*Sample, loc *time.Location) []DailyBucket {
	totals := make(map[string]float64)
	for _, s := range samples {
		if s == nil {
			continue
		}
		totals[DateKey(s.Start, loc)] += s.Value
	}

	out := make([]DailyBucket, 0, len(totals))
	for date, value := range totals {
		out = append(out, DailyBucket{Date: date, Value: value})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out
}

// groupBySource merges backend rows sharing a source id, keeping the order
// in which sources first appeared. Distinct sources are never merged.
func groupBySource(rows []SourceSamples, loc *time.Location) []SourceGroup {
	order := make([]string, 0, len(rows))
	samples := make(map[string][]*Sample, len(rows))
	for _, row := range rows {
		id := row.Source.ID()
		if _, ok := samples[id]; !ok {
			order = append(order, id)
		}
		samples[id] = append(samples[id], row.Steps...)
	}

	out := make([]SourceGroup, 0, len(order))
	for _, id := range order {
		out = append(out, SourceGroup{
			Source: id,
			Steps:  AggregateDaily(samples[id], loc),
		})
	}
	return out
}

// toRecords re-stamps samples with ISO-8601 timestamps, dropping samples
// without a value. convert, when set, is applied to each kept value.
func toRecords(samples []*Sample, convert func(float64) float64) []Record {
	out := make([]Record, 0, len(samples))
	for _, s := range samples {
		if !s.hasValue() {
			continue
		}
		value := s.Value
		if convert != nil {
			value = convert(value)
		}
		out = append(out, Record{
			StartDate: ISOTimestamp(s.Start),
			EndDate:   ISOTimestamp(s.End),
			Value:     value,
			Source:    s.Source,
		})
	}
	return out
}

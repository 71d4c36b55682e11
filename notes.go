package fitbridge

import (
	"fmt"
	"math"
	"strings"
)

// BuildDailyNotes turns a report into a readable per-day summary.
func BuildDailyNotes(r *DailyReport) string {
	if r == nil {
		return ""
	}

	var b strings.Builder

	fmt.Fprintf(
		&b,
		"Period: %s to %s\n",
		r.Range.Start.In(r.loc()).Format("2006-01-02 15:04"),
		r.Range.End.In(r.loc()).Format("2006-01-02 15:04"),
	)

	days := r.Days()
	if len(days) == 0 {
		b.WriteString("No fitness data recorded in this period.\n")
	}
	for _, day := range days {
		fmt.Fprintf(&b, "\n%s\n", day.Date)
		if day.Steps > 0 {
			fmt.Fprintf(&b, "- Steps %s", formatCount(day.Steps))
			if len(day.StepsBySource) > 1 {
				parts := make([]string, 0, len(day.StepsBySource))
				for _, src := range day.StepsBySource {
					parts = append(parts, fmt.Sprintf("%s %s", src.Source, formatCount(src.Value)))
				}
				fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
			}
			b.WriteByte('\n')
		}
		if day.DistanceMeters > 0 {
			fmt.Fprintf(&b, "- Distance %.2f km\n", day.DistanceMeters/1000.0)
		}
		if day.Calories > 0 {
			fmt.Fprintf(&b, "- Calories %.0f kcal\n", day.Calories)
		}
		if day.Weight > 0 {
			fmt.Fprintf(&b, "- Weight %.1f %s\n", day.Weight, weightLabel(r.Unit))
		}
	}

	if len(r.Missing) > 0 {
		b.WriteString("\nNo data: ")
		b.WriteString(strings.Join(r.Missing, ", "))
		b.WriteByte('\n')
	}

	return strings.TrimSpace(b.String())
}

func weightLabel(u Unit) string {
	if u == UnitPound {
		return "lb"
	}
	return "kg"
}

func formatCount(v float64) string {
	n := int64(math.Round(v))
	s := fmt.Sprintf("%d", n)
	if n < 0 {
		return s
	}
	var out strings.Builder
	for i, ch := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out.WriteByte(',')
		}
		out.WriteRune(ch)
	}
	return out.String()
}

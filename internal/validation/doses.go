package validation

import (
	"sort"
	"time"

	"github.com/savegress/vaxguard/pkg/models"
)

const doseDateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD logical calendar date.
func ParseDate(s string) (time.Time, bool) {
	t, err := time.Parse(doseDateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SortDoses returns a copy of the doses sorted ascending by occurrence date.
// The sort is stable and keys on the raw ISO date string, so unparsable
// dates keep their original relative order instead of causing an error.
// Both evaluators and the engine share this one sort; functions that take a
// sorted sequence document that post-condition instead of re-sorting.
func SortDoses(doses []models.Immunization) []models.Immunization {
	if len(doses) == 0 {
		return nil
	}
	sorted := make([]models.Immunization, len(doses))
	copy(sorted, doses)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OccurrenceDate < sorted[j].OccurrenceDate
	})
	return sorted
}

// GroupDosesByVaccine buckets doses by vaccine code, each bucket sorted
// chronologically. This is the single sorting point at the resolution
// boundary; everything downstream receives sorted views.
func GroupDosesByVaccine(doses []models.Immunization) map[string][]models.Immunization {
	groups := make(map[string][]models.Immunization)
	for _, d := range doses {
		groups[d.VaccineCode] = append(groups[d.VaccineCode], d)
	}
	for code, g := range groups {
		groups[code] = SortDoses(g)
	}
	return groups
}

// addMonths adds calendar months with end-of-month clamping, so
// 2023-01-31 + 1 month = 2023-02-28 rather than rolling into March.
// Go's AddDate normalizes overflow instead of clamping, which disagrees
// with how birthdays and month milestones are counted.
func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + months
	y += total / 12
	m = time.Month(total%12 + 1)
	if m < 1 {
		m += 12
		y--
	}
	if last := daysInMonth(y, m); d > last {
		d = last
	}
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func addYears(t time.Time, years int) time.Time {
	return addMonths(t, years*12)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// daysBetween is the whole-day difference from start to end.
func daysBetween(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours() / 24)
}

// monthsBetween is the number of complete calendar months from start to end,
// not a 30-day approximation: Jan 15 to Feb 14 is 0 months, Jan 15 to
// Feb 15 is 1.
func monthsBetween(start, end time.Time) int {
	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	if end.Day() < start.Day() {
		months--
	}
	return months
}

// intervalIn converts the span between two dates into whole units of the
// requested kind, calendar-accurate for months and years.
func intervalIn(unit IntervalUnit, start, end time.Time) int {
	switch unit {
	case UnitDays:
		return daysBetween(start, end)
	case UnitWeeks:
		return daysBetween(start, end) / 7
	case UnitMonths:
		return monthsBetween(start, end)
	default:
		return monthsBetween(start, end) / 12
	}
}

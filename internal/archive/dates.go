package archive

import (
	"fmt"
	"time"
)

const monthDayLayout = "0102"

// refYear anchors MMDD arithmetic to a leap year so Feb 29 stays in
// the cycle.
const refYear = 2000

// DatesInRange lists every date (YYYYMMDD) inside the inclusive year
// range that the site could have content for: nothing before the
// site's first day, nothing after today. The site launched mid-year,
// so the first year is always a partial one.
func DatesInRange(startYear, endYear int, firstDate string, today time.Time) ([]string, error) {
	if startYear > endYear {
		return nil, fmt.Errorf("year range %d-%d is inverted", startYear, endYear)
	}
	launch, err := time.Parse(dateLayout, firstDate)
	if err != nil {
		return nil, fmt.Errorf("parse first date %q: %w", firstDate, err)
	}
	from := time.Date(startYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	if from.Before(launch) {
		from = launch
	}
	to := time.Date(endYear, time.December, 31, 0, 0, 0, 0, time.UTC)
	if now := dayOf(today); to.After(now) {
		to = now
	}
	var dates []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(dateLayout))
	}
	return dates, nil
}

// DatesBetween lists every date from start to end inclusive, both in
// YYYYMMDD form.
func DatesBetween(start, end string) ([]string, error) {
	from, err := time.Parse(dateLayout, start)
	if err != nil {
		return nil, fmt.Errorf("parse start date %q: %w", start, err)
	}
	to, err := time.Parse(dateLayout, end)
	if err != nil {
		return nil, fmt.Errorf("parse end date %q: %w", end, err)
	}
	if from.After(to) {
		return nil, fmt.Errorf("start date %s is after end date %s", start, end)
	}
	var dates []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(dateLayout))
	}
	return dates, nil
}

// DatesForMonthDay expands one MMDD across every operating year of the
// site, skipping years where the combination does not exist (Feb 29)
// and the stretch before the site's first day or after today.
func DatesForMonthDay(monthDay, firstDate string, today time.Time) ([]string, error) {
	if _, err := monthDayRef(monthDay); err != nil {
		return nil, err
	}
	launch, err := time.Parse(dateLayout, firstDate)
	if err != nil {
		return nil, fmt.Errorf("parse first date %q: %w", firstDate, err)
	}
	last := dayOf(today)
	var dates []string
	for year := launch.Year(); year <= last.Year(); year++ {
		date := fmt.Sprintf("%04d%s", year, monthDay)
		d, err := time.Parse(dateLayout, date)
		if err != nil {
			continue
		}
		if d.Before(launch) || d.After(last) {
			continue
		}
		dates = append(dates, date)
	}
	return dates, nil
}

// MonthDaySequence lists the MMDD values from start to end inclusive,
// wrapping across the year boundary when end precedes start (for
// example 1230..0102).
func MonthDaySequence(start, end string) ([]string, error) {
	from, err := monthDayRef(start)
	if err != nil {
		return nil, err
	}
	to, err := monthDayRef(end)
	if err != nil {
		return nil, err
	}
	seq := make([]string, 0, 366)
	d := from
	for {
		seq = append(seq, d.Format(monthDayLayout))
		if d.Equal(to) {
			return seq, nil
		}
		d = d.AddDate(0, 0, 1)
		if d.Year() != refYear {
			d = time.Date(refYear, time.January, 1, 0, 0, 0, 0, time.UTC)
		}
	}
}

// MonthDay formats a time as the MMDD key used for progress
// prioritization and redirect matching.
func MonthDay(t time.Time) string {
	return t.Format(monthDayLayout)
}

func monthDayRef(monthDay string) (time.Time, error) {
	if len(monthDay) != 4 {
		return time.Time{}, fmt.Errorf("invalid month/day %q", monthDay)
	}
	d, err := time.Parse(dateLayout, fmt.Sprintf("%04d%s", refYear, monthDay))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month/day %q: %w", monthDay, err)
	}
	return d, nil
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

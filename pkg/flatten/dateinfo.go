package flatten

import "time"

// DateInfo expands a timestamp into the synthetic DATE_INFO fields attached
// to every persisted record, so warehouse queries can partition and filter
// without parsing timestamps themselves.
func DateInfo(t time.Time) map[string]interface{} {
	t = t.UTC()
	_, week := t.ISOWeek()

	zone, offset := t.Zone()

	return map[string]interface{}{
		"year":              t.Year(),
		"month":             int(t.Month()),
		"day":               t.Day(),
		"hour":              t.Hour(),
		"minute":            t.Minute(),
		"second":            t.Second(),
		"millisecond":       t.Nanosecond() / int(time.Millisecond),
		"day_of_week":       t.Weekday().String(),
		"day_of_week_short": t.Weekday().String()[:3],
		"day_of_year":       t.YearDay(),
		"week_of_year":      week,
		"month_name":        t.Month().String(),
		"month_name_short":  t.Month().String()[:3],
		"quarter":           (int(t.Month())-1)/3 + 1,
		"is_leap_year":      isLeapYear(t.Year()),
		"unix_timestamp":    t.Unix(),
		"iso_string":        t.Format(time.RFC3339Nano),
		"timezone":          zone,
		"timezone_offset":   offset,
	}
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

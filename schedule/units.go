package schedule

import "time"

// The resolvers below compute the next valid wall-clock moment for one
// unit. Coarser units are held at now; finer units are resolved first and
// their results applied, so a requested hour always carries the resolved
// minute, a requested day the resolved hour and minute, and so on.

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// requested returns the integer requested for a unit, or current when the
// value is absent or negative.
func requested(v Value, current int) int {
	if !v.IsSet() || v.Float() < 0 {
		return current
	}
	return v.Int()
}

func normalizeMinute(v Value, now time.Time) (int, error) {
	m := requested(v, now.Minute())
	switch {
	case m > 60:
		return 0, outOfRange("minute", m, "0..60")
	case m == 60:
		m = 0
	}
	return m, nil
}

func normalizeHour(v Value, now time.Time) (int, error) {
	h := requested(v, now.Hour())
	switch {
	case h > 24:
		return 0, outOfRange("hour", h, "0..24")
	case h == 24:
		h = 0
	}
	return h, nil
}

func normalizeDay(v Value, now time.Time) (int, error) {
	d := requested(v, now.Day())
	if d == 0 || d > 31 {
		return 0, outOfRange("day", d, "1..31")
	}
	return d, nil
}

func normalizeMonth(v Value, now time.Time) (int, error) {
	mo := requested(v, int(now.Month()))
	if mo == 0 || mo > 12 {
		return 0, outOfRange("month", mo, "1..12")
	}
	return mo, nil
}

// ResolveMinute returns the next moment within the hour whose minute is
// the requested one, rolling into the next hour when it is not after now.
func ResolveMinute(minute Value, now time.Time) (time.Time, error) {
	m, err := normalizeMinute(minute, now)
	if err != nil {
		return time.Time{}, err
	}

	// Absolute offsets from the start of the hour: the next wall-clock
	// hour may not exist on a DST change.
	hourStart := now.Add(-time.Duration(now.Minute())*time.Minute - time.Duration(now.Second())*time.Second - time.Duration(now.Nanosecond()))
	at := hourStart.Add(time.Duration(m) * time.Minute)
	if !at.After(now) {
		at = at.Add(time.Hour)
	}
	return at, nil
}

// ResolveHour returns today's hour:minute, or tomorrow's when today's is
// not after now.
func ResolveHour(hour, minute Value, now time.Time) (time.Time, error) {
	h, err := normalizeHour(hour, now)
	if err != nil {
		return time.Time{}, err
	}
	mt, err := ResolveMinute(minute, now)
	if err != nil {
		return time.Time{}, err
	}

	at := time.Date(now.Year(), now.Month(), now.Day(), h, mt.Minute(), 0, 0, now.Location())
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at, nil
}

// ResolveDay returns the requested day of the current month at the
// resolved hour and minute. When that moment is not after now it moves
// forward by the length of the current month.
//
// A requested day beyond the length of the current month is read as an
// offset: the result is now plus that many days, at the resolved hour and
// minute.
func ResolveDay(day, hour, minute Value, now time.Time) (time.Time, error) {
	d, err := normalizeDay(day, now)
	if err != nil {
		return time.Time{}, err
	}
	ht, err := ResolveHour(hour, minute, now)
	if err != nil {
		return time.Time{}, err
	}

	length := DaysIn(now.Year(), now.Month())
	if d > length {
		t := now.AddDate(0, 0, d)
		return time.Date(t.Year(), t.Month(), t.Day(), ht.Hour(), ht.Minute(), 0, 0, now.Location()), nil
	}

	at := time.Date(now.Year(), now.Month(), d, ht.Hour(), ht.Minute(), 0, 0, now.Location())
	if !at.After(now) {
		at = at.AddDate(0, 0, length)
	}
	return at, nil
}

// ResolveMonth returns the requested month/day at the resolved hour and
// minute in the current year, or in the next year when that moment is
// not after now. A day past the end of the month overflows into the
// following month.
func ResolveMonth(month, day, hour, minute Value, now time.Time) (time.Time, error) {
	mo, err := normalizeMonth(month, now)
	if err != nil {
		return time.Time{}, err
	}
	d, err := normalizeDay(day, now)
	if err != nil {
		return time.Time{}, err
	}
	ht, err := ResolveHour(hour, minute, now)
	if err != nil {
		return time.Time{}, err
	}

	year := now.Year()
	mo, d = overflow(year, mo, d)
	at := time.Date(year, time.Month(mo), d, ht.Hour(), ht.Minute(), 0, 0, now.Location())

	if !at.After(now) {
		year++
		mo, d = overflow(year, mo, d)
		at = time.Date(year, time.Month(mo), d, ht.Hour(), ht.Minute(), 0, 0, now.Location())
	}
	return at, nil
}

// overflow moves a day past the end of its month into the next month.
// A month pushed past December is normalized by time.Date into January of
// the following year.
func overflow(year, month, day int) (int, int) {
	if length := DaysIn(year, time.Month(month)); day > length {
		return month + 1, day - length
	}
	return month, day
}

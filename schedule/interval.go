package schedule

import (
	"fmt"
	"math"
	"time"
)

// MonthDays is the fixed month length used by interval specs.
const MonthDays = 30.4375

const oneDay = 24 * time.Hour

// step advances an anchor by one level of an interval spec.
type step func(anchor time.Time, v Value) (time.Time, error)

// Interval resolves the spec as a countdown from now. The levels are
// folded minute, hour, day, month, each one advancing the anchor left by
// the previous level, and evaluation stops at the coarsest present field.
//
// An integer minute adds whole minutes and zeroes the seconds; a
// fractional minute adds that many seconds instead. Hours, days and
// months accept fractions as native durations, a month being MonthDays
// days. Absent or negative values count as zero. When no field is present,
// or every present field is zero, the idle default is returned.
func (s Spec) Interval(now time.Time) (Occurrence, error) {
	levels := []struct {
		name string
		v    Value
		step step
	}{
		{"minute", s.Minute, addMinutes},
		{"hour", s.Hour, scaled(time.Hour)},
		{"day", s.Day, scaled(oneDay)},
		{"month", s.Month, scaled(time.Duration(MonthDays * float64(oneDay)))},
	}

	coarsest := -1
	moving := false
	for i, l := range levels {
		if l.v.IsSet() {
			coarsest = i
			if amount(l.v) > 0 {
				moving = true
			}
		}
	}
	if coarsest < 0 || !moving {
		return idle(now), nil
	}

	anchor := now
	for _, l := range levels[:coarsest+1] {
		next, err := l.step(anchor, l.v)
		if err != nil {
			return Occurrence{}, &InvalidFieldError{Field: l.name, Value: l.v.String(), Reason: err.Error()}
		}
		anchor = next
	}
	return Occurrence{At: anchor, Mode: Interval}, nil
}

func amount(v Value) float64 {
	if !v.IsSet() || v.Float() < 0 {
		return 0
	}
	return v.Float()
}

func addMinutes(anchor time.Time, v Value) (time.Time, error) {
	if v.Kind() == Fraction && v.Float() >= 0 {
		d, err := duration(v.Float(), time.Second)
		if err != nil {
			return time.Time{}, err
		}
		// Below one second this can floor back onto the anchor's own
		// second, so the occurrence is due on the next tick.
		return floorSecond(anchor.Add(d)), nil
	}

	d, err := duration(float64(int(amount(v))), time.Minute)
	if err != nil {
		return time.Time{}, err
	}
	return floorMinute(anchor.Add(d)), nil
}

func scaled(unit time.Duration) step {
	return func(anchor time.Time, v Value) (time.Time, error) {
		d, err := duration(amount(v), unit)
		if err != nil {
			return time.Time{}, err
		}
		return floorSecond(anchor.Add(d)), nil
	}
}

func duration(n float64, unit time.Duration) (time.Duration, error) {
	ns := n * float64(unit)
	if ns >= math.MaxInt64 {
		return 0, fmt.Errorf("offset overflows %s", time.Duration(math.MaxInt64))
	}
	return time.Duration(ns), nil
}

// Package schedule turns partially specified date/time descriptions into
// concrete occurrences.
//
// A specification has four fields (month, day, hour, minute). In plan
// mode they describe a wall-clock target, cron style: the next moment
// matching the given fields. In interval mode they describe a countdown
// from the instant the occurrence is computed.
package schedule

import (
	"math"
	"strconv"
	"strings"
	"time"
)

type Mode uint8

const (
	Plan Mode = iota + 1
	Interval
)

func (m Mode) String() string {
	switch m {
	case Plan:
		return "PlanTask"
	case Interval:
		return "IntervalTask"
	default:
		return "unknown"
	}
}

// RawSpec holds the textual fields as they appear in configuration. A
// '*' marks a plan field and a '/' marks an interval field.
type RawSpec struct {
	Month  string
	Day    string
	Hour   string
	Minute string
}

func (r RawSpec) String() string {
	return strings.Join([]string{r.Month, r.Day, r.Hour, r.Minute}, " ")
}

// Spec is a classified time specification.
type Spec struct {
	Mode   Mode
	Month  Value
	Day    Value
	Hour   Value
	Minute Value
}

// Occurrence is a concrete dispatch time, at second precision.
type Occurrence struct {
	At   time.Time
	Mode Mode
}

func (o Occurrence) Unix() int64 {
	return o.At.Unix()
}

// Due reports whether the occurrence is at or before now.
func (o Occurrence) Due(now time.Time) bool {
	return !o.At.After(now)
}

const markerChars = "/*, !@#$%?"

func parseField(name, raw string) (Value, error) {
	s := strings.Map(func(r rune) rune {
		if strings.ContainsRune(markerChars, r) {
			return -1
		}
		return r
	}, raw)
	s = strings.TrimSpace(s)

	if s == "" {
		return None, nil
	}

	if isDigits(s) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return None, &InvalidFieldError{Field: name, Value: raw, Reason: err.Error()}
		}
		return Int(n), nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return None, &InvalidFieldError{Field: name, Value: raw, Reason: "not a number"}
	}
	return Frac(f), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Parse classifies a raw specification. A '/' anywhere, or any
// fractional value, selects interval mode; otherwise the spec is a plan.
// A spec with every field empty is a plan with no fields, which resolves
// to the one-minute idle default.
func Parse(raw RawSpec) (Spec, error) {
	var spec Spec
	var err error

	fields := []struct {
		name string
		raw  string
		dst  *Value
	}{
		{"month", raw.Month, &spec.Month},
		{"day", raw.Day, &spec.Day},
		{"hour", raw.Hour, &spec.Hour},
		{"minute", raw.Minute, &spec.Minute},
	}

	fractional := false
	for _, f := range fields {
		if *f.dst, err = parseField(f.name, f.raw); err != nil {
			return Spec{}, err
		}
		if f.dst.Kind() == Fraction {
			fractional = true
		}
	}

	if fractional || strings.Contains(raw.Month+raw.Day+raw.Hour+raw.Minute, "/") {
		spec.Mode = Interval
	} else {
		spec.Mode = Plan
	}

	return spec, nil
}

// Next computes the occurrence of the spec relative to now.
func (s Spec) Next(now time.Time) (Occurrence, error) {
	if s.Mode == Interval {
		return s.Interval(now)
	}
	return s.Plan(now)
}

// Compute parses raw and returns its next occurrence relative to now.
func Compute(raw RawSpec, now time.Time) (Occurrence, error) {
	spec, err := Parse(raw)
	if err != nil {
		return Occurrence{}, err
	}
	return spec.Next(now)
}

// idle is the default occurrence: now plus one minute, truncated to the
// minute.
func idle(now time.Time) Occurrence {
	return Occurrence{At: floorMinute(now.Add(time.Minute)), Mode: Plan}
}

// Floors work on the instant, not the wall clock, so a repeated DST hour
// keeps its offset.
func floorMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}

func floorSecond(t time.Time) time.Time {
	return t.Truncate(time.Second)
}

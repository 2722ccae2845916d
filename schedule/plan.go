package schedule

import "time"

// Plan resolves the spec as a wall-clock target. The coarsest present
// field picks the resolver; finer fields, present or not, are resolved
// inside it. A spec with no fields yields the idle default.
func (s Spec) Plan(now time.Time) (Occurrence, error) {
	var at time.Time
	var err error

	switch {
	case s.Month.IsSet():
		at, err = ResolveMonth(s.Month, s.Day, s.Hour, s.Minute, now)
	case s.Day.IsSet():
		at, err = ResolveDay(s.Day, s.Hour, s.Minute, now)
	case s.Hour.IsSet():
		at, err = ResolveHour(s.Hour, s.Minute, now)
	case s.Minute.IsSet():
		at, err = ResolveMinute(s.Minute, now)
	default:
		return idle(now), nil
	}

	if err != nil {
		return Occurrence{}, err
	}
	return Occurrence{At: at, Mode: Plan}, nil
}

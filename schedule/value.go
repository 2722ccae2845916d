package schedule

import (
	"strconv"
)

type Kind uint8

const (
	Absent Kind = iota
	Integer
	Fraction
)

// Value is a single field of a time specification. Integer and Fraction
// carry different meanings in interval mode (see Spec.Interval), so the
// kind is decided once during classification and never re-inspected.
type Value struct {
	kind Kind
	n    float64
}

// None is the absent value.
var None = Value{}

func Int(n int) Value {
	return Value{kind: Integer, n: float64(n)}
}

func Frac(f float64) Value {
	return Value{kind: Fraction, n: f}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsSet() bool {
	return v.kind != Absent
}

func (v Value) Int() int {
	return int(v.n)
}

func (v Value) Float() float64 {
	return v.n
}

func (v Value) String() string {
	switch v.kind {
	case Integer:
		return strconv.Itoa(v.Int())
	case Fraction:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	default:
		return "none"
	}
}

package schedule

import "fmt"

// InvalidFieldError reports a time specification field outside its valid
// domain, or one that cannot be read as a number.
type InvalidFieldError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid %s=%q: %s", e.Field, e.Value, e.Reason)
}

func outOfRange(field string, v int, bounds string) error {
	return &InvalidFieldError{
		Field:  field,
		Value:  fmt.Sprint(v),
		Reason: fmt.Sprintf("%s must be in %s", field, bounds),
	}
}

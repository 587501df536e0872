package enums

import "fmt"

// IntervalUnit defines the cadence of a recurring price.
type IntervalUnit string

const (
	IntervalUnitDay   IntervalUnit = "day"
	IntervalUnitWeek  IntervalUnit = "week"
	IntervalUnitMonth IntervalUnit = "month"
	IntervalUnitYear  IntervalUnit = "year"
)

var validIntervalUnits = []IntervalUnit{
	IntervalUnitDay,
	IntervalUnitWeek,
	IntervalUnitMonth,
	IntervalUnitYear,
}

// String implements fmt.Stringer.
func (i IntervalUnit) String() string {
	return string(i)
}

// IsValid reports whether the value is a known IntervalUnit.
func (i IntervalUnit) IsValid() bool {
	for _, candidate := range validIntervalUnits {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseIntervalUnit converts raw input into a IntervalUnit.
func ParseIntervalUnit(value string) (IntervalUnit, error) {
	for _, candidate := range validIntervalUnits {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid interval unit %q", value)
}

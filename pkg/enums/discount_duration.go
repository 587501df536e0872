package enums

import "fmt"

// DiscountDuration controls how long a discount keeps applying.
type DiscountDuration string

const (
	DiscountDurationOnce             DiscountDuration = "once"
	DiscountDurationForever          DiscountDuration = "forever"
	DiscountDurationNumberOfPayments DiscountDuration = "number_of_payments"
)

var validDiscountDurations = []DiscountDuration{
	DiscountDurationOnce,
	DiscountDurationForever,
	DiscountDurationNumberOfPayments,
}

// String implements fmt.Stringer.
func (d DiscountDuration) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DiscountDuration.
func (d DiscountDuration) IsValid() bool {
	for _, candidate := range validDiscountDurations {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDiscountDuration converts raw input into a DiscountDuration.
func ParseDiscountDuration(value string) (DiscountDuration, error) {
	for _, candidate := range validDiscountDurations {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount duration %q", value)
}

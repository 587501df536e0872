package enums

import "fmt"

// DiscountAmountType distinguishes fixed from percentage discounts.
type DiscountAmountType string

const (
	DiscountAmountTypeFixed   DiscountAmountType = "fixed"
	DiscountAmountTypePercent DiscountAmountType = "percent"
)

var validDiscountAmountTypes = []DiscountAmountType{
	DiscountAmountTypeFixed,
	DiscountAmountTypePercent,
}

// String implements fmt.Stringer.
func (d DiscountAmountType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DiscountAmountType.
func (d DiscountAmountType) IsValid() bool {
	for _, candidate := range validDiscountAmountTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDiscountAmountType converts raw input into a DiscountAmountType.
func ParseDiscountAmountType(value string) (DiscountAmountType, error) {
	for _, candidate := range validDiscountAmountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount amount type %q", value)
}

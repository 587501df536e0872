package enums

import "fmt"

// PriceType is the billing model of a price.
type PriceType string

const (
	PriceTypeSubscription  PriceType = "subscription"
	PriceTypeSinglePayment PriceType = "single_payment"
	PriceTypeUsage         PriceType = "usage"
)

var validPriceTypes = []PriceType{
	PriceTypeSubscription,
	PriceTypeSinglePayment,
	PriceTypeUsage,
}

// String implements fmt.Stringer.
func (p PriceType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PriceType.
func (p PriceType) IsValid() bool {
	for _, candidate := range validPriceTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePriceType converts raw input into a PriceType.
func ParsePriceType(value string) (PriceType, error) {
	for _, candidate := range validPriceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid price type %q", value)
}

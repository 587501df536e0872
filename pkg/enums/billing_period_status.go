package enums

import "fmt"

type BillingPeriodStatus string

const (
	BillingPeriodStatusUpcoming  BillingPeriodStatus = "upcoming"
	BillingPeriodStatusActive    BillingPeriodStatus = "active"
	BillingPeriodStatusCompleted BillingPeriodStatus = "completed"
)

var validBillingPeriodStatuses = []BillingPeriodStatus{
	BillingPeriodStatusUpcoming,
	BillingPeriodStatusActive,
	BillingPeriodStatusCompleted,
}

// String implements fmt.Stringer.
func (b BillingPeriodStatus) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BillingPeriodStatus.
func (b BillingPeriodStatus) IsValid() bool {
	for _, candidate := range validBillingPeriodStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBillingPeriodStatus converts raw input into a BillingPeriodStatus.
func ParseBillingPeriodStatus(value string) (BillingPeriodStatus, error) {
	for _, candidate := range validBillingPeriodStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid billing period status %q", value)
}
